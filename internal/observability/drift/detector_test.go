package drift

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rxflow/substitute-gateway/internal/observability/metrics"
)

func TestCharEntropy(t *testing.T) {
	if got := CharEntropy(nil); got != 0 {
		t.Errorf("entropy of no samples = %v, want 0", got)
	}
	if got := CharEntropy([]string{"aaaaaaaa"}); got != 0 {
		t.Errorf("entropy of a single repeated character = %v, want 0", got)
	}

	// Entropy grows with symbol diversity at fixed sample size.
	alphabet := "abcdefghijklmnop"
	prev := -1.0
	for symbols := 1; symbols <= 16; symbols *= 2 {
		var s string
		for i := 0; i < 64; i++ {
			s += string(alphabet[i%symbols])
		}
		h := CharEntropy([]string{s})
		if h < 0 {
			t.Fatalf("entropy must be non-negative, got %v", h)
		}
		if h <= prev {
			t.Fatalf("entropy should increase with diversity: %d symbols gave %v, previous %v", symbols, h, prev)
		}
		prev = h
	}

	// Uniform two-symbol distribution is exactly 1 bit.
	h := CharEntropy([]string{"abababab"}) // join adds no symbols for one sample
	assert.InDelta(t, 1.0, h, 1e-9)
}

func TestWordEntropy(t *testing.T) {
	if got := WordEntropy([]string{"stock stock stock"}); got != 0 {
		t.Errorf("entropy of one repeated word = %v, want 0", got)
	}
	// Case-insensitive tokenization: "Stock" and "stock" are one symbol.
	if got := WordEntropy([]string{"Stock stock STOCK"}); got != 0 {
		t.Errorf("word entropy should lower-case tokens, got %v", got)
	}
	h2 := WordEntropy([]string{"fast route", "fast route"})
	assert.InDelta(t, 1.0, h2, 1e-9)
}

func TestKolmogorovSmirnovIdenticalSamples(t *testing.T) {
	res := KolmogorovSmirnov([]float64{10, 10, 10, 10}, []float64{10, 10, 10, 10})
	assert.InDelta(t, 1.0, res.PValue, 1e-9)
	assert.False(t, res.DriftDetected)
}

func TestKolmogorovSmirnovSeparatedSamples(t *testing.T) {
	baseline := make([]float64, 20)
	recent := make([]float64, 20)
	for i := range baseline {
		baseline[i] = 10
		recent[i] = 1000
	}
	res := KolmogorovSmirnov(baseline, recent)
	assert.True(t, res.DriftDetected)
	assert.Equal(t, "high", res.Confidence)
	assert.Less(t, res.PValue, 0.01)
	assert.InDelta(t, 1.0, res.Statistic, 1e-9)
}

func TestKolmogorovSmirnovInsufficientData(t *testing.T) {
	res := KolmogorovSmirnov([]float64{10}, []float64{20, 30})
	assert.Equal(t, 0.0, res.Statistic)
	assert.Equal(t, 1.0, res.PValue)
	assert.False(t, res.DriftDetected)
}

func TestKSPValueBounds(t *testing.T) {
	for _, d := range []float64{0, 0.01, 0.1, 0.5, 0.9, 1} {
		p := ksPValue(d, 10)
		if p < 0 || p > 1 || math.IsNaN(p) {
			t.Errorf("ksPValue(%v, 10) = %v out of [0,1]", d, p)
		}
	}
}

func syntheticMetric(timeMS float64, tokens int, cost float64, output string) metrics.RequestMetric {
	return metrics.RequestMetric{
		TotalExecutionTimeMS: timeMS,
		TotalTokens:          tokens,
		TotalCostUSD:         cost,
		AgentMetrics: []metrics.UnitMetric{
			{AgentName: "recommendation", OutputText: output, TotalTokens: tokens},
		},
	}
}

func TestDetectWithoutBaseline(t *testing.T) {
	d := NewDetector()
	rep := d.Detect([]metrics.RequestMetric{syntheticMetric(100, 10, 0.1, "x")})
	assert.False(t, rep.DriftDetected)
	assert.Equal(t, "no baseline set", rep.Message)
	assert.Equal(t, SeverityNone, Severity(rep))
}

func TestSetBaselineEmptyLeavesUnset(t *testing.T) {
	d := NewDetector()
	d.SetBaseline(nil)
	assert.False(t, d.HasBaseline())
}

func TestDetectStableBehavior(t *testing.T) {
	d := NewDetector()

	var history []metrics.RequestMetric
	for i := 0; i < 20; i++ {
		history = append(history, syntheticMetric(100, 50, 0.01, "recommended PARA-500 from BOG-01 warehouse"))
	}
	d.SetBaseline(history)
	require.True(t, d.HasBaseline())

	rep := d.Detect(history)
	assert.False(t, rep.DriftDetected)
	assert.Empty(t, rep.DriftIndicators)
	assert.Equal(t, "no significant drift", rep.Message)
	assert.InDelta(t, 100.0, rep.StatisticalSummary.BaselineAvgTimeMS, 1e-9)
}

func TestDetectPerformanceAndCostDrift(t *testing.T) {
	d := NewDetector()

	var history, recent []metrics.RequestMetric
	for i := 0; i < 20; i++ {
		history = append(history, syntheticMetric(100, 50, 0.01, "recommended PARA-500 from BOG-01 warehouse"))
		recent = append(recent, syntheticMetric(1000, 500, 0.5, "recommended PARA-500 from BOG-01 warehouse"))
	}
	d.SetBaseline(history)

	rep := d.Detect(recent)
	require.True(t, rep.DriftDetected)

	assert.True(t, rep.KSTests.ExecutionTime.DriftDetected)
	assert.True(t, rep.KSTests.TokenUsage.DriftDetected)
	assert.True(t, rep.KSTests.Costs.DriftDetected)

	// Same text on both sides: entropy indicators must not fire.
	assert.InDelta(t, 0.0, rep.EntropyAnalysis.CharEntropyChangePct, 1e-9)

	assert.Contains(t, rep.DriftIndicators, "execution time distribution has drifted")
	assert.Contains(t, rep.DriftIndicators, "cost distribution has drifted")

	foundPerf := false
	foundCost := false
	for _, r := range rep.Recommendations {
		if r == fmt.Sprintf("performance degradation: average execution time increased by %.1f%%", 900.0) {
			foundPerf = true
		}
		if r == fmt.Sprintf("cost increase: average cost increased by %.1f%%", 4900.0) {
			foundCost = true
		}
	}
	assert.True(t, foundPerf, "expected performance recommendation, got %v", rep.Recommendations)
	assert.True(t, foundCost, "expected cost recommendation, got %v", rep.Recommendations)

	assert.Equal(t, SeverityCritical, Severity(rep))
}

func TestDetectEntropyDrift(t *testing.T) {
	d := NewDetector()

	var history, recent []metrics.RequestMetric
	for i := 0; i < 10; i++ {
		history = append(history, syntheticMetric(100, 50, 0.01,
			fmt.Sprintf("candidate %d scored with distinct justification route warehouse expiry lot %d", i, i*7)))
		recent = append(recent, syntheticMetric(100, 50, 0.01, "aaaa aaaa aaaa aaaa"))
	}
	d.SetBaseline(history)

	rep := d.Detect(recent)
	require.True(t, rep.DriftDetected)
	assert.Greater(t, rep.EntropyAnalysis.CharEntropyChangePct, 15.0)
	assert.Contains(t, rep.Recommendations, "output diversity has decreased: responses may be getting more repetitive")
}

func TestSeverityGrading(t *testing.T) {
	high := TestResult{DriftDetected: true, Confidence: "high"}
	medium := TestResult{DriftDetected: true, Confidence: "medium"}

	tests := []struct {
		name   string
		report Report
		want   string
	}{
		{
			name:   "no drift",
			report: Report{DriftDetected: false},
			want:   SeverityNone,
		},
		{
			name: "critical on two high confidence flags and four indicators",
			report: Report{
				DriftDetected:   true,
				DriftIndicators: []string{"a", "b", "c", "d"},
				KSTests:         KSTests{ExecutionTime: high, Costs: high},
			},
			want: SeverityCritical,
		},
		{
			name: "high on one high confidence flag",
			report: Report{
				DriftDetected:   true,
				DriftIndicators: []string{"a"},
				KSTests:         KSTests{TokenUsage: high},
			},
			want: SeverityHigh,
		},
		{
			name: "medium on two indicators",
			report: Report{
				DriftDetected:   true,
				DriftIndicators: []string{"a", "b"},
				KSTests:         KSTests{ExecutionTime: medium},
			},
			want: SeverityMedium,
		},
		{
			name: "low on a single indicator",
			report: Report{
				DriftDetected:   true,
				DriftIndicators: []string{"a"},
			},
			want: SeverityLow,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Severity(tt.report); got != tt.want {
				t.Errorf("Severity() = %q, want %q", got, tt.want)
			}
		})
	}
}
