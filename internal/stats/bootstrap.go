package stats

import (
	"fmt"
	"math/rand/v2"
	"slices"

	"gonum.org/v1/gonum/stat"
)

// CI is a point estimate with a confidence interval.
type CI struct {
	Point float64 `json:"point" yaml:"point"`
	Lower float64 `json:"lower" yaml:"lower"`
	Upper float64 `json:"upper" yaml:"upper"`
}

// Contains reports whether v lies in [Lower, Upper].
func (c CI) Contains(v float64) bool { return c.Lower <= v && v <= c.Upper }

// StatFunc reduces a sample to a statistic.
type StatFunc func([]float64) float64

// PairStatFunc reduces two samples to a statistic.
type PairStatFunc func(a, b []float64) float64

// BootstrapCI estimates a percentile confidence interval for statFn by
// resampling data with replacement nBootstrap times. The interval is widened
// if necessary so that it always contains the point estimate statFn(data).
func BootstrapCI(data []float64, statFn StatFunc, nBootstrap int, confidenceLevel float64, rng *rand.Rand) (CI, error) {
	if len(data) == 0 {
		return CI{}, fmt.Errorf("bootstrap: %w: empty sample", ErrInsufficientData)
	}
	if err := checkBootstrapArgs(nBootstrap, confidenceLevel); err != nil {
		return CI{}, err
	}

	point := statFn(data)
	buf := make([]float64, len(data))
	estimates := make([]float64, nBootstrap)
	for i := range estimates {
		resample(buf, data, rng)
		estimates[i] = statFn(buf)
	}
	return percentileCI(point, estimates, confidenceLevel), nil
}

// BootstrapPairCI is BootstrapCI for a two-sample statistic; a and b are
// resampled independently.
func BootstrapPairCI(a, b []float64, statFn PairStatFunc, nBootstrap int, confidenceLevel float64, rng *rand.Rand) (CI, error) {
	if len(a) == 0 || len(b) == 0 {
		return CI{}, fmt.Errorf("bootstrap: %w: empty sample", ErrInsufficientData)
	}
	if err := checkBootstrapArgs(nBootstrap, confidenceLevel); err != nil {
		return CI{}, err
	}

	point := statFn(a, b)
	bufA := make([]float64, len(a))
	bufB := make([]float64, len(b))
	estimates := make([]float64, nBootstrap)
	for i := range estimates {
		resample(bufA, a, rng)
		resample(bufB, b, rng)
		estimates[i] = statFn(bufA, bufB)
	}
	return percentileCI(point, estimates, confidenceLevel), nil
}

func checkBootstrapArgs(nBootstrap int, confidenceLevel float64) error {
	if nBootstrap < 1 {
		return fmt.Errorf("bootstrap: n_bootstrap must be positive, got %d", nBootstrap)
	}
	if confidenceLevel <= 0 || confidenceLevel >= 1 {
		return fmt.Errorf("bootstrap: confidence level must be in (0, 1), got %g", confidenceLevel)
	}
	return nil
}

func resample(dst, src []float64, rng *rand.Rand) {
	for i := range dst {
		dst[i] = src[rng.IntN(len(src))]
	}
}

func percentileCI(point float64, estimates []float64, confidenceLevel float64) CI {
	slices.Sort(estimates)
	tail := (1 - confidenceLevel) / 2
	ci := CI{
		Point: point,
		Lower: stat.Quantile(tail, stat.Empirical, estimates, nil),
		Upper: stat.Quantile(1-tail, stat.Empirical, estimates, nil),
	}
	ci.Lower = min(ci.Lower, point)
	ci.Upper = max(ci.Upper, point)
	return ci
}
