package stats

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// CohensD is the standardised mean difference (mean1 - mean2) / pooled SD.
// It is 0 when the pooled standard deviation is 0 or undefined.
func CohensD(mean1, std1 float64, n1 int, mean2, std2 float64, n2 int) float64 {
	df := n1 + n2 - 2
	if df <= 0 {
		return 0
	}
	pooled := math.Sqrt((float64(n1-1)*std1*std1 + float64(n2-1)*std2*std2) / float64(df))
	if pooled == 0 || math.IsNaN(pooled) {
		return 0
	}
	return finite((mean1 - mean2) / pooled)
}

// CohensDSamples computes CohensD from raw samples.
func CohensDSamples(a, b []float64) float64 {
	sa, sb := Describe(a), Describe(b)
	return CohensD(sa.Mean, sa.Std, sa.N, sb.Mean, sb.Std, sb.N)
}

// Effect size magnitudes.
const (
	EffectNegligible = "negligible"
	EffectSmall      = "small"
	EffectMedium     = "medium"
	EffectLarge      = "large"
)

// InterpretCohensD labels |d| with Cohen's conventional thresholds
// 0.2, 0.5 and 0.8.
func InterpretCohensD(d float64) string {
	switch d = math.Abs(d); {
	case d < 0.2:
		return EffectNegligible
	case d < 0.5:
		return EffectSmall
	case d < 0.8:
		return EffectMedium
	default:
		return EffectLarge
	}
}

// PowerAnalysis returns the achieved power of a two-sided two-sample t test
// with n observations per group at significance alpha for effect size d.
// The noncentral t is approximated by a central t shifted by the
// noncentrality parameter d*sqrt(n/2).
func PowerAnalysis(effectSize, alpha float64, n int) float64 {
	if n < 2 || alpha <= 0 || alpha >= 1 {
		return 0
	}
	df := float64(2*n - 2)
	t := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}
	crit := t.Quantile(1 - alpha/2)
	ncp := math.Abs(effectSize) * math.Sqrt(float64(n)/2)
	power := t.Survival(crit-ncp) + t.CDF(-crit-ncp)
	return math.Min(math.Max(power, 0), 1)
}

// maxSampleSize bounds RequiredSampleSize.
const maxSampleSize = 1 << 24

// RequiredSampleSize returns the smallest per-group n that reaches the
// target power for effectSize at alpha.
func RequiredSampleSize(effectSize, alpha, power float64) (int, error) {
	if effectSize == 0 {
		return 0, fmt.Errorf("required sample size: effect size must be non-zero")
	}
	if power <= 0 || power >= 1 {
		return 0, fmt.Errorf("required sample size: power must be in (0, 1), got %g", power)
	}

	hi := 2
	for PowerAnalysis(effectSize, alpha, hi) < power {
		if hi >= maxSampleSize {
			return 0, fmt.Errorf("required sample size: exceeds %d per group", maxSampleSize)
		}
		hi *= 2
	}
	lo := max(hi/2, 2)
	for lo < hi {
		mid := (lo + hi) / 2
		if PowerAnalysis(effectSize, alpha, mid) >= power {
			hi = mid
		} else {
			lo = mid + 1
		}
	}
	return hi, nil
}
