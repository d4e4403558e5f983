package metrics

import (
	"errors"
	"time"
)

// Snapshot caps bound stored text independent of actual output length.
const (
	inputSnapshotCap  = 500
	outputSnapshotCap = 1000
)

// Usage errors: the caller drove the Start/Track/Finalize state machine out
// of order. These propagate; they indicate a programming defect, not a
// degraded condition.
var (
	ErrRequestActive   = errors.New("metrics: a request is already being tracked")
	ErrNoActiveRequest = errors.New("metrics: no active request")
)

// RequestInfo carries the request descriptors captured at Start.
type RequestInfo struct {
	RequestedItem string
	Country       string
	Urgency       string
}

// Collector accumulates UnitMetrics for exactly one open request at a time.
// It is not safe for concurrent use; concurrent requests must each own their
// own Collector instance.
type Collector struct {
	counter *TokenCounter

	open      bool
	requestID string
	info      RequestInfo
	openedAt  time.Time
	agents    []string
	units     []UnitMetric
}

// NewCollector returns an idle collector that counts tokens with counter.
func NewCollector(counter *TokenCounter) *Collector {
	return &Collector{counter: counter}
}

// Start opens a new accumulation context. It fails with ErrRequestActive if
// the previous request was never finalized.
func (c *Collector) Start(requestID string, info RequestInfo) error {
	if c.open {
		return ErrRequestActive
	}
	c.open = true
	c.requestID = requestID
	c.info = info
	c.openedAt = time.Now()
	c.agents = nil
	c.units = nil
	return nil
}

// Track records one step execution. Failures (success=false) are recorded,
// not rejected. The returned metric is immutable once created: token counts
// and cost are computed here and never revised.
func (c *Collector) Track(agentName, inputText, outputText string, executionTimeMS float64, modelName string, success bool, errorMessage string) (UnitMetric, error) {
	if !c.open {
		return UnitMetric{}, ErrNoActiveRequest
	}

	inputTokens := c.counter.Count(inputText)
	outputTokens := c.counter.Count(outputText)

	m := UnitMetric{
		AgentName:        agentName,
		Timestamp:        time.Now().UTC(),
		ExecutionTimeMS:  executionTimeMS,
		InputText:        truncate(inputText, inputSnapshotCap),
		OutputText:       truncate(outputText, outputSnapshotCap),
		InputTokens:      inputTokens,
		OutputTokens:     outputTokens,
		TotalTokens:      inputTokens + outputTokens,
		EstimatedCostUSD: CostUSD(inputTokens, outputTokens, modelName),
		ModelName:        modelName,
		Success:          success,
		ErrorMessage:     errorMessage,
	}

	c.units = append(c.units, m)
	c.agents = append(c.agents, agentName)
	return m, nil
}

// Finalize seals the open request into a RequestMetric and clears the
// context. Total duration is the wall-clock span since Start; token and cost
// totals are sums over the tracked units.
func (c *Collector) Finalize(strategy string, recommendationsCount int, success bool) (RequestMetric, error) {
	if !c.open {
		return RequestMetric{}, ErrNoActiveRequest
	}

	totalTokens := 0
	totalCost := 0.0
	for _, u := range c.units {
		totalTokens += u.TotalTokens
		totalCost += u.EstimatedCostUSD
	}

	rm := RequestMetric{
		RequestID:                 c.requestID,
		Timestamp:                 c.openedAt.UTC(),
		RequestedItem:             c.info.RequestedItem,
		Country:                   c.info.Country,
		Urgency:                   c.info.Urgency,
		Strategy:                  strategy,
		TotalExecutionTimeMS:      float64(time.Since(c.openedAt)) / float64(time.Millisecond),
		TotalTokens:               totalTokens,
		TotalCostUSD:              totalCost,
		AgentsExecuted:            c.agents,
		AgentMetrics:              c.units,
		FinalRecommendationsCount: recommendationsCount,
		Success:                   success,
	}

	c.open = false
	c.requestID = ""
	c.info = RequestInfo{}
	c.agents = nil
	c.units = nil

	return rm, nil
}

func truncate(s string, cap int) string {
	if len(s) <= cap {
		return s
	}
	r := []rune(s)
	if len(r) <= cap {
		return s
	}
	return string(r[:cap])
}
