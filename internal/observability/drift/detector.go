// Package drift detects statistically significant changes in pipeline
// behavior by comparing recent request metrics against a maintained
// baseline. Two independent signals are combined: Shannon entropy over
// generated text (qualitative diversity shifts) and two-sample KS tests
// over operational numerics (performance and cost regressions).
package drift

import (
	"fmt"
	"sync"

	"gonum.org/v1/gonum/stat"

	"github.com/rxflow/substitute-gateway/internal/observability/metrics"
)

// entropyChangeThreshold is the relative entropy change that counts as a
// drift indicator.
const entropyChangeThreshold = 0.15

// Severity levels returned by Severity.
const (
	SeverityNone     = "none"
	SeverityLow      = "low"
	SeverityMedium   = "medium"
	SeverityHigh     = "high"
	SeverityCritical = "critical"
)

// Baseline is the reference distribution drift is measured against. It is
// owned exclusively by the Detector.
type Baseline struct {
	ExecutionTimes []float64
	TokenCounts    []float64
	Costs          []float64
	TextSamples    []string
}

// EntropyAnalysis holds the entropy comparison between baseline and recent
// text samples.
type EntropyAnalysis struct {
	BaselineCharEntropy  float64 `json:"baseline_char_entropy"`
	RecentCharEntropy    float64 `json:"recent_char_entropy"`
	CharEntropyChangePct float64 `json:"char_entropy_change_pct"`
	BaselineWordEntropy  float64 `json:"baseline_word_entropy"`
	RecentWordEntropy    float64 `json:"recent_word_entropy"`
	WordEntropyChangePct float64 `json:"word_entropy_change_pct"`
}

// KSTests groups the per-metric two-sample test results.
type KSTests struct {
	ExecutionTime TestResult `json:"execution_time"`
	TokenUsage    TestResult `json:"token_usage"`
	Costs         TestResult `json:"costs"`
}

// StatisticalSummary compares baseline and recent means.
type StatisticalSummary struct {
	BaselineAvgTimeMS float64 `json:"baseline_avg_time_ms"`
	RecentAvgTimeMS   float64 `json:"recent_avg_time_ms"`
	BaselineAvgTokens float64 `json:"baseline_avg_tokens"`
	RecentAvgTokens   float64 `json:"recent_avg_tokens"`
	BaselineAvgCost   float64 `json:"baseline_avg_cost"`
	RecentAvgCost     float64 `json:"recent_avg_cost"`
}

// Report is the immutable result of one drift detection pass.
// DriftDetected is true iff DriftIndicators is non-empty.
type Report struct {
	DriftDetected      bool               `json:"drift_detected"`
	Message            string             `json:"message"`
	DriftIndicators    []string           `json:"drift_indicators"`
	EntropyAnalysis    EntropyAnalysis    `json:"entropy_analysis"`
	KSTests            KSTests            `json:"ks_tests"`
	StatisticalSummary StatisticalSummary `json:"statistical_summary"`
	Recommendations    []string           `json:"recommendations"`
}

// Detector holds the baseline and runs detection passes. SetBaseline and
// Detect share one lock so a baseline refresh cannot interleave with a
// detection pass when requests finalize concurrently.
type Detector struct {
	mu       sync.Mutex
	baseline *Baseline
}

// NewDetector returns a detector with no baseline set. Callers must seed a
// baseline (SetBaseline) before Detect produces meaningful results.
func NewDetector() *Detector {
	return &Detector{}
}

// HasBaseline reports whether a baseline has been established.
func (d *Detector) HasBaseline() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.baseline != nil
}

// SetBaseline replaces the baseline with values extracted from history.
// An empty history leaves the detector unset rather than installing an
// empty reference distribution.
func (d *Detector) SetBaseline(history []metrics.RequestMetric) {
	if len(history) == 0 {
		return
	}

	b := &Baseline{
		ExecutionTimes: make([]float64, 0, len(history)),
		TokenCounts:    make([]float64, 0, len(history)),
		Costs:          make([]float64, 0, len(history)),
	}
	for _, m := range history {
		b.ExecutionTimes = append(b.ExecutionTimes, m.TotalExecutionTimeMS)
		b.TokenCounts = append(b.TokenCounts, float64(m.TotalTokens))
		b.Costs = append(b.Costs, m.TotalCostUSD)
		for _, u := range m.AgentMetrics {
			if u.OutputText != "" {
				b.TextSamples = append(b.TextSamples, u.OutputText)
			}
		}
	}

	d.mu.Lock()
	d.baseline = b
	d.mu.Unlock()
}

// Detect compares recent metrics against the baseline. An unset baseline or
// empty input degrades to a no-drift report with an explanatory message;
// it is an expected condition, not an error.
func (d *Detector) Detect(recent []metrics.RequestMetric) Report {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.baseline == nil {
		return Report{DriftDetected: false, Message: "no baseline set"}
	}
	if len(recent) == 0 {
		return Report{DriftDetected: false, Message: "no recent metrics to analyze"}
	}

	recentTimes := make([]float64, 0, len(recent))
	recentTokens := make([]float64, 0, len(recent))
	recentCosts := make([]float64, 0, len(recent))
	var recentTexts []string
	for _, m := range recent {
		recentTimes = append(recentTimes, m.TotalExecutionTimeMS)
		recentTokens = append(recentTokens, float64(m.TotalTokens))
		recentCosts = append(recentCosts, m.TotalCostUSD)
		for _, u := range m.AgentMetrics {
			if u.OutputText != "" {
				recentTexts = append(recentTexts, u.OutputText)
			}
		}
	}

	baseChar := CharEntropy(d.baseline.TextSamples)
	baseWord := WordEntropy(d.baseline.TextSamples)
	recentChar := CharEntropy(recentTexts)
	recentWord := WordEntropy(recentTexts)

	charChange := relativeChange(baseChar, recentChar)
	wordChange := relativeChange(baseWord, recentWord)

	ks := KSTests{
		ExecutionTime: KolmogorovSmirnov(d.baseline.ExecutionTimes, recentTimes),
		TokenUsage:    KolmogorovSmirnov(d.baseline.TokenCounts, recentTokens),
		Costs:         KolmogorovSmirnov(d.baseline.Costs, recentCosts),
	}

	// Indicator order is fixed: char entropy, word entropy, then the three
	// KS tests.
	var indicators []string
	if charChange > entropyChangeThreshold {
		indicators = append(indicators, fmt.Sprintf("text entropy changed by %.1f%%", charChange*100))
	}
	if wordChange > entropyChangeThreshold {
		indicators = append(indicators, fmt.Sprintf("word entropy changed by %.1f%%", wordChange*100))
	}
	if ks.ExecutionTime.DriftDetected {
		indicators = append(indicators, "execution time distribution has drifted")
	}
	if ks.TokenUsage.DriftDetected {
		indicators = append(indicators, "token usage distribution has drifted")
	}
	if ks.Costs.DriftDetected {
		indicators = append(indicators, "cost distribution has drifted")
	}

	summary := StatisticalSummary{
		BaselineAvgTimeMS: mean(d.baseline.ExecutionTimes),
		RecentAvgTimeMS:   mean(recentTimes),
		BaselineAvgTokens: mean(d.baseline.TokenCounts),
		RecentAvgTokens:   mean(recentTokens),
		BaselineAvgCost:   mean(d.baseline.Costs),
		RecentAvgCost:     mean(recentCosts),
	}

	var recommendations []string
	if recentChar < baseChar*(1-entropyChangeThreshold) {
		recommendations = append(recommendations, "output diversity has decreased: responses may be getting more repetitive")
	} else if recentChar > baseChar*(1+entropyChangeThreshold) {
		recommendations = append(recommendations, "output diversity has increased: responses may be getting less consistent")
	}
	if ks.ExecutionTime.DriftDetected && summary.BaselineAvgTimeMS > 0 && summary.RecentAvgTimeMS > summary.BaselineAvgTimeMS*1.2 {
		recommendations = append(recommendations, fmt.Sprintf(
			"performance degradation: average execution time increased by %.1f%%",
			(summary.RecentAvgTimeMS/summary.BaselineAvgTimeMS-1)*100))
	}
	if ks.Costs.DriftDetected && summary.BaselineAvgCost > 0 && summary.RecentAvgCost > summary.BaselineAvgCost*1.2 {
		recommendations = append(recommendations, fmt.Sprintf(
			"cost increase: average cost increased by %.1f%%",
			(summary.RecentAvgCost/summary.BaselineAvgCost-1)*100))
	}

	report := Report{
		DriftDetected:   len(indicators) > 0,
		DriftIndicators: indicators,
		EntropyAnalysis: EntropyAnalysis{
			BaselineCharEntropy:  baseChar,
			RecentCharEntropy:    recentChar,
			CharEntropyChangePct: charChange * 100,
			BaselineWordEntropy:  baseWord,
			RecentWordEntropy:    recentWord,
			WordEntropyChangePct: wordChange * 100,
		},
		KSTests:            ks,
		StatisticalSummary: summary,
		Recommendations:    recommendations,
	}
	if report.DriftDetected {
		report.Message = fmt.Sprintf("drift detected: %d indicator(s)", len(indicators))
	} else {
		report.Message = "no significant drift"
	}
	return report
}

// Severity grades a report: critical when at least 2 high-confidence KS
// flags or 4+ indicators fired; high for 1 high-confidence flag or 3+
// indicators; medium for 2+ indicators; low otherwise.
func Severity(r Report) string {
	if !r.DriftDetected {
		return SeverityNone
	}

	highConfidence := 0
	for _, t := range []TestResult{r.KSTests.ExecutionTime, r.KSTests.TokenUsage, r.KSTests.Costs} {
		if t.DriftDetected && t.Confidence == "high" {
			highConfidence++
		}
	}

	indicators := len(r.DriftIndicators)
	switch {
	case highConfidence >= 2 || indicators >= 4:
		return SeverityCritical
	case highConfidence == 1 || indicators >= 3:
		return SeverityHigh
	case indicators >= 2:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

func relativeChange(baseline, recent float64) float64 {
	if baseline <= 0 {
		return 0
	}
	diff := recent - baseline
	if diff < 0 {
		diff = -diff
	}
	return diff / baseline
}

func mean(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	return stat.Mean(vals, nil)
}
