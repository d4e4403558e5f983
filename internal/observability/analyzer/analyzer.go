// Package analyzer grades pipeline output with a language model. Each
// analysis asks the model for a strict JSON object and falls back to
// neutral scores when the reply cannot be parsed or the call fails, so
// request handling never depends on analyzer availability.
package analyzer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rxflow/substitute-gateway/internal/llm"
	"github.com/rxflow/substitute-gateway/internal/observability/metrics"
)

// TextQuality scores one generated text on a 0-10 scale per dimension.
type TextQuality struct {
	AgentName         string   `json:"agent_name,omitempty"`
	CoherenceScore    float64  `json:"coherence_score"`
	CompletenessScore float64  `json:"completeness_score"`
	ClarityScore      float64  `json:"clarity_score"`
	ProfessionalScore float64  `json:"professional_score"`
	OverallScore      float64  `json:"overall_score"`
	Issues            []string `json:"issues"`
	Strengths         []string `json:"strengths"`
	Recommendation    string   `json:"recommendation"`
}

// Reasoning scores the decision quality of a single pipeline step.
type Reasoning struct {
	LogicScore            float64  `json:"logic_score"`
	AppropriatenessScore  float64  `json:"appropriateness_score"`
	JustificationScore    float64  `json:"justification_score"`
	ConsistencyScore      float64  `json:"consistency_score"`
	OverallReasoningScore float64  `json:"overall_reasoning_score"`
	ReasoningExplanation  string   `json:"reasoning_explanation"`
	PotentialIssues       []string `json:"potential_issues"`
	ConfidenceLevel       string   `json:"confidence_level"`
}

// Performance summarizes cost and latency characteristics of a request.
type Performance struct {
	PerformanceScore        float64  `json:"performance_score"`
	CostEfficiencyScore     float64  `json:"cost_efficiency_score"`
	Bottlenecks             []string `json:"bottlenecks"`
	OptimizationSuggestions []string `json:"optimization_suggestions"`
	AnomaliesDetected       []string `json:"anomalies_detected"`
	Summary                 string   `json:"summary"`
}

// Analyzer runs model-graded evaluations over recorded metrics.
type Analyzer struct {
	gen llm.Generator
}

// New returns an Analyzer backed by gen.
func New(gen llm.Generator) *Analyzer {
	return &Analyzer{gen: gen}
}

const textQualitySystem = `You are an expert AI quality analyst. Analyze the quality of AI-generated text and provide scores from 0-10 for the following dimensions:
- Coherence: How logically structured and consistent is the text?
- Completeness: Does it fully address the requirements?
- Clarity: How clear and understandable is it?
- Professional: Does it maintain appropriate professional tone?

Return ONLY a JSON object with this exact format:
{
  "coherence_score": <0-10>,
  "completeness_score": <0-10>,
  "clarity_score": <0-10>,
  "professional_score": <0-10>,
  "overall_score": <0-10>,
  "issues": ["issue1", "issue2"],
  "strengths": ["strength1", "strength2"],
  "recommendation": "brief recommendation"
}`

// AnalyzeTextQuality grades one generated text within an optional context.
func (a *Analyzer) AnalyzeTextQuality(ctx context.Context, text, textContext string) TextQuality {
	user := fmt.Sprintf("Context: %s\n\nText to analyze:\n%s\n\nProvide your analysis in JSON format:", textContext, text)

	reply, err := a.gen.Generate(ctx, textQualitySystem, user)
	if err != nil {
		return TextQuality{
			CoherenceScore: 5, CompletenessScore: 5, ClarityScore: 5, ProfessionalScore: 5, OverallScore: 5,
			Issues:         []string{fmt.Sprintf("analysis error: %v", err)},
			Strengths:      []string{},
			Recommendation: "error during analysis",
		}
	}

	var out TextQuality
	if !decodeReply(reply, &out) {
		return TextQuality{
			CoherenceScore: 7, CompletenessScore: 7, ClarityScore: 7, ProfessionalScore: 7, OverallScore: 7,
			Issues:         []string{"unable to fully analyze"},
			Strengths:      []string{"response generated"},
			Recommendation: "manual review recommended",
		}
	}
	return out
}

const reasoningSystem = `You are an expert in analyzing AI reasoning and decision-making processes. Evaluate the agent's reasoning quality based on:
- Logic: Is the reasoning logically sound?
- Appropriateness: Is the decision appropriate for the input?
- Justification: Is the reasoning well-explained?
- Consistency: Is the decision consistent with best practices?

Return ONLY a JSON object with this format:
{
  "logic_score": <0-10>,
  "appropriateness_score": <0-10>,
  "justification_score": <0-10>,
  "consistency_score": <0-10>,
  "overall_reasoning_score": <0-10>,
  "reasoning_explanation": "brief explanation",
  "potential_issues": ["issue1", "issue2"],
  "confidence_level": "high|medium|low"
}`

// AnalyzeReasoning grades the input/output pair of one pipeline step.
func (a *Analyzer) AnalyzeReasoning(ctx context.Context, agentName, input, output, decision string) Reasoning {
	user := fmt.Sprintf("Agent: %s\n\nInput:\n%s\n\nOutput:\n%s\n\nDecision Made: %s\n\nAnalyze the reasoning quality in JSON format:",
		agentName, input, output, decision)

	reply, err := a.gen.Generate(ctx, reasoningSystem, user)
	if err != nil {
		return Reasoning{
			LogicScore: 5, AppropriatenessScore: 5, JustificationScore: 5, ConsistencyScore: 5, OverallReasoningScore: 5,
			ReasoningExplanation: fmt.Sprintf("analysis error: %v", err),
			PotentialIssues:      []string{"could not complete analysis"},
			ConfidenceLevel:      "low",
		}
	}

	var out Reasoning
	if !decodeReply(reply, &out) {
		return Reasoning{
			LogicScore: 7, AppropriatenessScore: 7, JustificationScore: 7, ConsistencyScore: 7, OverallReasoningScore: 7,
			ReasoningExplanation: "standard reasoning applied",
			PotentialIssues:      []string{},
			ConfidenceLevel:      "medium",
		}
	}
	return out
}

const performanceSystem = `You are an expert in analyzing AI system performance. Review the execution metrics and provide insights about:
- Performance bottlenecks
- Cost optimization opportunities
- Efficiency improvements
- Unusual patterns or anomalies

Return ONLY a JSON object:
{
  "performance_score": <0-10>,
  "cost_efficiency_score": <0-10>,
  "bottlenecks": ["bottleneck1"],
  "optimization_suggestions": ["suggestion1"],
  "anomalies_detected": ["anomaly1"],
  "summary": "brief summary"
}`

// AnalyzePerformance grades the latency and cost profile of a request.
func (a *Analyzer) AnalyzePerformance(ctx context.Context, m metrics.RequestMetric) Performance {
	var agents strings.Builder
	for _, am := range m.AgentMetrics {
		fmt.Fprintf(&agents, "- %s: %.0fms, %d tokens, $%.4f\n",
			am.AgentName, am.ExecutionTimeMS, am.TotalTokens, am.EstimatedCostUSD)
	}

	user := fmt.Sprintf("Request Metrics:\n- Total Time: %.0fms\n- Total Tokens: %d\n- Total Cost: $%.4f\n- Strategy: %s\n- Success: %t\n\nAgent Executions:\n%s\nAnalyze in JSON format:",
		m.TotalExecutionTimeMS, m.TotalTokens, m.TotalCostUSD, m.Strategy, m.Success, agents.String())

	reply, err := a.gen.Generate(ctx, performanceSystem, user)
	if err != nil {
		return Performance{
			PerformanceScore: 5, CostEfficiencyScore: 5,
			Bottlenecks:             []string{},
			OptimizationSuggestions: []string{},
			AnomaliesDetected:       []string{fmt.Sprintf("analysis error: %v", err)},
			Summary:                 "could not complete performance analysis",
		}
	}

	var out Performance
	if !decodeReply(reply, &out) {
		return Performance{
			PerformanceScore: 7, CostEfficiencyScore: 7,
			Bottlenecks:             []string{},
			OptimizationSuggestions: []string{},
			AnomaliesDetected:       []string{},
			Summary:                 "standard performance",
		}
	}
	return out
}

// Report bundles every analysis produced for one request.
type Report struct {
	TextQuality         []TextQuality `json:"text_quality"`
	ReasoningAnalysis   []Reasoning   `json:"reasoning_analysis"`
	PerformanceAnalysis Performance   `json:"performance_analysis"`
	ComprehensiveReport string        `json:"comprehensive_report"`
}

const reportSystem = "You are an AI Observability expert. Generate a comprehensive, actionable report summarizing the AI system's performance, quality, and areas for improvement."

// AnalyzeRequest evaluates a finished request. Quality and reasoning are
// graded on the recommendation step, the one whose output reaches users;
// when no recommendation step ran, the last executed step stands in.
// A performance review and a narrative summary cover the whole request.
func (a *Analyzer) AnalyzeRequest(ctx context.Context, m metrics.RequestMetric) Report {
	rep := Report{
		TextQuality:       []TextQuality{},
		ReasoningAnalysis: []Reasoning{},
	}

	if target := targetStep(m); target != nil {
		if target.OutputText != "" {
			q := a.AnalyzeTextQuality(ctx, target.OutputText, fmt.Sprintf("Agent: %s", target.AgentName))
			q.AgentName = target.AgentName
			rep.TextQuality = append(rep.TextQuality, q)
		}
		if target.InputText != "" && target.OutputText != "" {
			rep.ReasoningAnalysis = append(rep.ReasoningAnalysis,
				a.AnalyzeReasoning(ctx, target.AgentName, target.InputText, target.OutputText, ""))
		}
	}
	rep.PerformanceAnalysis = a.AnalyzePerformance(ctx, m)
	rep.ComprehensiveReport = a.narrative(ctx, m, rep)
	return rep
}

func targetStep(m metrics.RequestMetric) *metrics.UnitMetric {
	for i := range m.AgentMetrics {
		if m.AgentMetrics[i].AgentName == "recommendation" {
			return &m.AgentMetrics[i]
		}
	}
	if n := len(m.AgentMetrics); n > 0 {
		return &m.AgentMetrics[n-1]
	}
	return nil
}

func (a *Analyzer) narrative(ctx context.Context, m metrics.RequestMetric, rep Report) string {
	quality, _ := json.MarshalIndent(rep.TextQuality, "", "  ")
	reasoning, _ := json.MarshalIndent(rep.ReasoningAnalysis, "", "  ")
	perf, _ := json.MarshalIndent(rep.PerformanceAnalysis, "", "  ")

	user := fmt.Sprintf(`Generate an observability report for request %s:

**Performance Metrics:**
- Total execution time: %.0fms
- Total tokens used: %d
- Total cost: $%.4f
- Agents executed: %d

**Quality Analysis:**
%s

**Reasoning Analysis:**
%s

**Performance Analysis:**
%s

Provide a clear, structured report with key findings and recommendations.`,
		m.RequestID, m.TotalExecutionTimeMS, m.TotalTokens, m.TotalCostUSD, len(m.AgentMetrics),
		quality, reasoning, perf)

	reply, err := a.gen.Generate(ctx, reportSystem, user)
	if err != nil {
		return fmt.Sprintf("error generating comprehensive report: %v", err)
	}
	return reply
}

// decodeReply extracts the outermost JSON object from a model reply and
// unmarshals it into v. Models often wrap the object in prose or fences.
func decodeReply(reply string, v any) bool {
	start := strings.Index(reply, "{")
	end := strings.LastIndex(reply, "}")
	if start == -1 || end <= start {
		return false
	}
	return json.Unmarshal([]byte(reply[start:end+1]), v) == nil
}
