// Package metrics measures the cost, latency, and token footprint of each
// pipeline step and aggregates them into per-request records.
package metrics

import "time"

// UnitMetric is one measured execution of a named pipeline step. It is
// created when the step completes and never mutated afterwards.
type UnitMetric struct {
	AgentName        string    `json:"agent_name"`
	Timestamp        time.Time `json:"timestamp"`
	ExecutionTimeMS  float64   `json:"execution_time_ms"`
	InputText        string    `json:"input_text"`
	OutputText       string    `json:"output_text"`
	InputTokens      int       `json:"input_tokens"`
	OutputTokens     int       `json:"output_tokens"`
	TotalTokens      int       `json:"total_tokens"`
	EstimatedCostUSD float64   `json:"estimated_cost_usd"`
	ModelName        string    `json:"model_name"`
	Success          bool      `json:"success"`
	ErrorMessage     string    `json:"error_message,omitempty"`
}

// RequestMetric aggregates every UnitMetric belonging to one request.
// Totals are computed once at Finalize and are immutable from then on.
type RequestMetric struct {
	RequestID                 string       `json:"request_id"`
	Timestamp                 time.Time    `json:"timestamp"`
	RequestedItem             string       `json:"requested_item"`
	Country                   string       `json:"country"`
	Urgency                   string       `json:"urgency"`
	Strategy                  string       `json:"strategy"`
	TotalExecutionTimeMS      float64      `json:"total_execution_time_ms"`
	TotalTokens               int          `json:"total_tokens"`
	TotalCostUSD              float64      `json:"total_cost_usd"`
	AgentsExecuted            []string     `json:"agents_executed"`
	AgentMetrics              []UnitMetric `json:"agent_metrics"`
	FinalRecommendationsCount int          `json:"final_recommendations_count"`
	Success                   bool         `json:"success"`
}
