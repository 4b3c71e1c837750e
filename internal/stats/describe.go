// Package stats implements the statistical validation pipeline: bootstrap
// confidence intervals, effect sizes, power analysis and assumption-checked
// two-sample hypothesis tests.
//
// Every resampling function takes an explicit *rand.Rand. Distribution
// functions come from gonum.
package stats

import (
	"errors"
	"math"
	"slices"

	"gonum.org/v1/gonum/stat"
)

// ErrInsufficientData is returned when a sample is too small for the
// requested computation.
var ErrInsufficientData = errors.New("insufficient data")

// Summary describes one sample.
type Summary struct {
	N      int     `json:"n" yaml:"n"`
	Mean   float64 `json:"mean" yaml:"mean"`
	Std    float64 `json:"std" yaml:"std"`
	Median float64 `json:"median" yaml:"median"`
	Min    float64 `json:"min" yaml:"min"`
	Max    float64 `json:"max" yaml:"max"`
}

// Describe summarises data. Std is the sample (n-1) standard deviation and
// is zero for fewer than two values.
func Describe(data []float64) Summary {
	s := Summary{N: len(data)}
	if len(data) == 0 {
		return s
	}
	sorted := slices.Clone(data)
	slices.Sort(sorted)
	s.Mean = stat.Mean(data, nil)
	if len(data) > 1 {
		s.Std = stat.StdDev(data, nil)
	}
	s.Median = median(sorted)
	s.Min = sorted[0]
	s.Max = sorted[len(sorted)-1]
	return s
}

// Mean is a statistic function for BootstrapCI.
func Mean(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	return stat.Mean(data, nil)
}

// Median is a statistic function for BootstrapCI.
func Median(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	sorted := slices.Clone(data)
	slices.Sort(sorted)
	return median(sorted)
}

func median(sorted []float64) float64 {
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// variance returns the sample variance, or 0 for fewer than two values.
func variance(data []float64) float64 {
	if len(data) < 2 {
		return 0
	}
	return stat.Variance(data, nil)
}

// finite replaces NaN and infinities with zero so that reports stay
// serialisable.
func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
