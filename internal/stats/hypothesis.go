package stats

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/nvandessel/acpsim/internal/models"
)

// Test names recorded in TestResult.
const (
	TestStudentT    = "student_t"
	TestWelchT      = "welch_t"
	TestMannWhitney = "mann_whitney_u"
)

// AssumptionAlpha is the significance level of the normality and
// equal-variance pre-checks.
const AssumptionAlpha = 0.05

// MinNormalitySample is the smallest sample the D'Agostino-Pearson test
// accepts.
const MinNormalitySample = 8

// TestResult is the outcome of HypothesisTest.
type TestResult struct {
	TestName  string  `json:"test_name" yaml:"test_name"`
	Statistic float64 `json:"statistic" yaml:"statistic"`
	PValue    float64 `json:"p_value" yaml:"p_value"`

	// DF is the degrees of freedom of t tests; 0 for Mann-Whitney.
	DF float64 `json:"df" yaml:"df"`

	// NormalityP is the smaller of the two normality p-values, or -1 if
	// normality was not tested.
	NormalityP float64 `json:"normality_p" yaml:"normality_p"`

	// EqualVarianceP is the Brown-Forsythe p-value, or -1 if not tested.
	EqualVarianceP float64 `json:"equal_variance_p" yaml:"equal_variance_p"`

	Warnings []models.AssumptionWarning `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

// Significant reports whether the test rejects the null at alpha.
func (r TestResult) Significant(alpha float64) bool { return r.PValue < alpha }

// HypothesisTest compares two independent samples. Normality of both
// samples is checked first; if it holds, a Brown-Forsythe test decides
// between Student's and Welch's t test. Otherwise, or when a sample is too
// small to check, the Mann-Whitney U test is used and a warning recorded.
func HypothesisTest(a, b []float64) (TestResult, error) {
	if len(a) < 2 || len(b) < 2 {
		return TestResult{}, fmt.Errorf("hypothesis test: %w: need at least 2 observations per sample, got %d and %d",
			ErrInsufficientData, len(a), len(b))
	}

	res := TestResult{NormalityP: -1, EqualVarianceP: -1}

	if len(a) < MinNormalitySample || len(b) < MinNormalitySample {
		res.Warnings = append(res.Warnings, models.AssumptionWarning{
			Assumption: "normality",
			Detail:     fmt.Sprintf("samples of %d and %d are too small to test normality (need %d); using Mann-Whitney U", len(a), len(b), MinNormalitySample),
		})
		return mannWhitney(a, b, res), nil
	}

	pa, pb := NormalityTest(a), NormalityTest(b)
	res.NormalityP = math.Min(pa, pb)
	if res.NormalityP < AssumptionAlpha {
		res.Warnings = append(res.Warnings, models.AssumptionWarning{
			Assumption: "normality",
			Detail:     fmt.Sprintf("D'Agostino-Pearson p=%.4g < %.2g; using Mann-Whitney U", res.NormalityP, AssumptionAlpha),
		})
		return mannWhitney(a, b, res), nil
	}

	res.EqualVarianceP = BrownForsythe(a, b)
	if res.EqualVarianceP < AssumptionAlpha {
		res.Warnings = append(res.Warnings, models.AssumptionWarning{
			Assumption: "equal_variance",
			Detail:     fmt.Sprintf("Brown-Forsythe p=%.4g < %.2g; using Welch's t test", res.EqualVarianceP, AssumptionAlpha),
		})
		return welchT(a, b, res), nil
	}
	return studentT(a, b, res), nil
}

// NormalityTest returns the D'Agostino-Pearson K² p-value for data. Samples
// smaller than MinNormalitySample and constant samples return 1.
func NormalityTest(data []float64) float64 {
	n := float64(len(data))
	if len(data) < MinNormalitySample {
		return 1
	}
	mean := stat.Mean(data, nil)
	var m2, m3, m4 float64
	for _, x := range data {
		d := x - mean
		d2 := d * d
		m2 += d2
		m3 += d2 * d
		m4 += d2 * d2
	}
	m2 /= n
	m3 /= n
	m4 /= n
	if m2 <= 1e-300 {
		return 1
	}

	zs := skewZ(m3/math.Pow(m2, 1.5), n)
	zk := kurtosisZ(m4/(m2*m2), n)
	k2 := zs*zs + zk*zk
	if math.IsNaN(k2) {
		return 1
	}
	return distuv.ChiSquared{K: 2}.Survival(k2)
}

// skewZ transforms the sample skewness into an approximately standard
// normal score.
func skewZ(b1, n float64) float64 {
	y := b1 * math.Sqrt((n+1)*(n+3)/(6*(n-2)))
	beta2 := 3 * (n*n + 27*n - 70) * (n + 1) * (n + 3) / ((n - 2) * (n + 5) * (n + 7) * (n + 9))
	w2 := -1 + math.Sqrt(2*(beta2-1))
	delta := 1 / math.Sqrt(0.5*math.Log(w2))
	alpha := math.Sqrt(2 / (w2 - 1))
	if y == 0 {
		y = 1
	}
	r := y / alpha
	return delta * math.Log(r+math.Sqrt(r*r+1))
}

// kurtosisZ transforms the sample (Pearson) kurtosis into an approximately
// standard normal score.
func kurtosisZ(b2, n float64) float64 {
	e := 3 * (n - 1) / (n + 1)
	varb2 := 24 * n * (n - 2) * (n - 3) / ((n + 1) * (n + 1) * (n + 3) * (n + 5))
	x := (b2 - e) / math.Sqrt(varb2)
	sqrtBeta1 := 6 * (n*n - 5*n + 2) / ((n + 7) * (n + 9)) * math.Sqrt(6*(n+3)*(n+5)/(n*(n-2)*(n-3)))
	a := 6 + 8/sqrtBeta1*(2/sqrtBeta1+math.Sqrt(1+4/(sqrtBeta1*sqrtBeta1)))
	term1 := 1 - 2/(9*a)
	denom := 1 + x*math.Sqrt(2/(a-4))
	if denom == 0 {
		return math.NaN()
	}
	term2 := math.Cbrt((1 - 2/a) / denom)
	return (term1 - term2) / math.Sqrt(2/(9*a))
}

// BrownForsythe returns the p-value of Levene's test for equal variances
// using deviations from the group medians.
func BrownForsythe(a, b []float64) float64 {
	za, zb := absDeviations(a), absDeviations(b)
	na, nb := float64(len(za)), float64(len(zb))
	total := na + nb
	ma, mb := stat.Mean(za, nil), stat.Mean(zb, nil)
	grand := (ma*na + mb*nb) / total

	between := na*(ma-grand)*(ma-grand) + nb*(mb-grand)*(mb-grand)
	within := 0.0
	for _, z := range za {
		within += (z - ma) * (z - ma)
	}
	for _, z := range zb {
		within += (z - mb) * (z - mb)
	}
	if within <= 1e-300 {
		if between <= 1e-300 {
			return 1
		}
		return 0
	}

	const k = 2.0
	w := (total - k) / (k - 1) * between / within
	return distuv.F{D1: k - 1, D2: total - k}.Survival(w)
}

func absDeviations(data []float64) []float64 {
	med := Median(data)
	out := make([]float64, len(data))
	for i, x := range data {
		out[i] = math.Abs(x - med)
	}
	return out
}

func studentT(a, b []float64, res TestResult) TestResult {
	na, nb := float64(len(a)), float64(len(b))
	df := na + nb - 2
	pooled := ((na-1)*variance(a) + (nb-1)*variance(b)) / df
	se := math.Sqrt(pooled * (1/na + 1/nb))
	res.TestName = TestStudentT
	res.DF = df
	res.Statistic, res.PValue = tTest(stat.Mean(a, nil)-stat.Mean(b, nil), se, df)
	return res
}

func welchT(a, b []float64, res TestResult) TestResult {
	na, nb := float64(len(a)), float64(len(b))
	va, vb := variance(a)/na, variance(b)/nb
	se := math.Sqrt(va + vb)
	df := (va + vb) * (va + vb) / (va*va/(na-1) + vb*vb/(nb-1))
	if math.IsNaN(df) || math.IsInf(df, 0) {
		df = na + nb - 2
	}
	res.TestName = TestWelchT
	res.DF = df
	res.Statistic, res.PValue = tTest(stat.Mean(a, nil)-stat.Mean(b, nil), se, df)
	return res
}

// tTest returns the t statistic and two-sided p-value for a mean difference
// with standard error se.
func tTest(diff, se, df float64) (float64, float64) {
	// Two constant samples: the statistic is undefined, so report 0 and
	// decide on the means alone.
	if se == 0 {
		if diff == 0 {
			return 0, 1
		}
		return 0, 0
	}
	t := diff / se
	p := 2 * distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}.Survival(math.Abs(t))
	return t, math.Min(p, 1)
}

// mannWhitney runs the two-sided Mann-Whitney U test with tie correction
// and continuity correction under the normal approximation. Statistic is
// U for sample a.
func mannWhitney(a, b []float64, res TestResult) TestResult {
	n1, n2 := len(a), len(b)
	type obs struct {
		v     float64
		first bool
	}
	all := make([]obs, 0, n1+n2)
	for _, v := range a {
		all = append(all, obs{v, true})
	}
	for _, v := range b {
		all = append(all, obs{v, false})
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].v < all[j].v })

	n := float64(n1 + n2)
	rankSumA, tieTerm := 0.0, 0.0
	for i := 0; i < len(all); {
		j := i
		for j < len(all) && all[j].v == all[i].v {
			j++
		}
		rank := float64(i+j+1) / 2
		for k := i; k < j; k++ {
			if all[k].first {
				rankSumA += rank
			}
		}
		t := float64(j - i)
		tieTerm += t*t*t - t
		i = j
	}

	f1, f2 := float64(n1), float64(n2)
	u1 := rankSumA - f1*(f1+1)/2
	u := math.Max(u1, f1*f2-u1)
	mu := f1 * f2 / 2
	sigma := math.Sqrt(f1 * f2 / 12 * ((n + 1) - tieTerm/(n*(n-1))))

	res.TestName = TestMannWhitney
	res.DF = 0
	res.Statistic = u1
	if sigma == 0 || math.IsNaN(sigma) {
		res.PValue = 1
		return res
	}
	z := (u - mu - 0.5) / sigma
	res.PValue = math.Min(2*distuv.UnitNormal.Survival(z), 1)
	return res
}
