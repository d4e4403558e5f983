package drift

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// significanceLevel is the p-value threshold below which a two-sample test
// flags distributional drift.
const significanceLevel = 0.05

// TestResult is the outcome of a two-sample Kolmogorov-Smirnov test.
type TestResult struct {
	Statistic     float64 `json:"statistic"`
	PValue        float64 `json:"p_value"`
	DriftDetected bool    `json:"drift_detected"`
	Message       string  `json:"message"`
	Confidence    string  `json:"confidence"`
}

// neutralResult is substituted when a test cannot run: insufficient samples
// or malformed numeric input. Drift analysis degrades, never aborts.
func neutralResult(message string) TestResult {
	return TestResult{Statistic: 0, PValue: 1, DriftDetected: false, Message: message, Confidence: "low"}
}

// KolmogorovSmirnov compares two samples and reports whether they plausibly
// come from the same distribution. Each side needs at least 2 points.
func KolmogorovSmirnov(baseline, recent []float64) TestResult {
	if len(baseline) < 2 || len(recent) < 2 {
		return neutralResult("insufficient data for KS test")
	}

	x := append([]float64(nil), baseline...)
	y := append([]float64(nil), recent...)
	sort.Float64s(x)
	sort.Float64s(y)

	d := stat.KolmogorovSmirnov(x, nil, y, nil)
	if math.IsNaN(d) || math.IsInf(d, 0) {
		return neutralResult("KS statistic undefined for input")
	}

	ne := float64(len(x)) * float64(len(y)) / float64(len(x)+len(y))
	p := ksPValue(d, ne)

	res := TestResult{
		Statistic:     d,
		PValue:        p,
		DriftDetected: p < significanceLevel,
	}
	switch {
	case p < 0.01:
		res.Confidence = "high"
	case p < significanceLevel:
		res.Confidence = "medium"
	default:
		res.Confidence = "low"
	}
	if res.DriftDetected {
		res.Message = "significant drift detected"
	} else {
		res.Message = "no significant drift"
	}
	return res
}

// ksPValue approximates the two-sided p-value of the KS statistic with the
// asymptotic Kolmogorov distribution, using the small-sample correction
// lambda = (sqrt(ne) + 0.12 + 0.11/sqrt(ne)) * D.
func ksPValue(d, ne float64) float64 {
	if d <= 0 {
		return 1
	}
	sq := math.Sqrt(ne)
	lambda := (sq + 0.12 + 0.11/sq) * d

	sum := 0.0
	sign := 1.0
	for j := 1; j <= 100; j++ {
		term := 2 * sign * math.Exp(-2*lambda*lambda*float64(j)*float64(j))
		sum += term
		if math.Abs(term) < 1e-10 {
			break
		}
		sign = -sign
	}

	switch {
	case sum < 0:
		return 0
	case sum > 1:
		return 1
	default:
		return sum
	}
}
