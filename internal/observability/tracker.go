// Package observability wires metric collection, persistence, drift
// detection and model-graded analysis into a single per-request lifecycle.
// Handlers start a Session, the pipeline tracks each step on it, and
// Finalize seals the request and runs the post-request analyses.
package observability

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rxflow/substitute-gateway/internal/observability/analyzer"
	"github.com/rxflow/substitute-gateway/internal/observability/drift"
	"github.com/rxflow/substitute-gateway/internal/observability/metrics"
	"github.com/rxflow/substitute-gateway/internal/observability/store"
)

// DriftConfig controls when baselines are seeded and refreshed.
type DriftConfig struct {
	// BaselineLimit caps how many historical requests seed a baseline.
	BaselineLimit int
	// RefreshEvery is the cadence (in stored requests) of baseline refreshes.
	RefreshEvery int
	// RefreshThreshold is the history size below which no refresh happens.
	RefreshThreshold int
	// RecentWindow is how many trailing requests each detection examines.
	RecentWindow int
	// BootstrapMin is the history size required to seed a baseline at boot.
	BootstrapMin int
}

// DefaultDriftConfig returns the tuning used in production.
func DefaultDriftConfig() DriftConfig {
	return DriftConfig{
		BaselineLimit:    100,
		RefreshEvery:     50,
		RefreshThreshold: 100,
		RecentWindow:     20,
		BootstrapMin:     20,
	}
}

func (c DriftConfig) withDefaults() DriftConfig {
	d := DefaultDriftConfig()
	if c.BaselineLimit <= 0 {
		c.BaselineLimit = d.BaselineLimit
	}
	if c.RefreshEvery <= 0 {
		c.RefreshEvery = d.RefreshEvery
	}
	if c.RefreshThreshold <= 0 {
		c.RefreshThreshold = d.RefreshThreshold
	}
	if c.RecentWindow <= 0 {
		c.RecentWindow = d.RecentWindow
	}
	if c.BootstrapMin <= 0 {
		c.BootstrapMin = d.BootstrapMin
	}
	return c
}

const alertHistoryLimit = 10

// Tracker owns the shared observability state. Sessions are created per
// request and may run concurrently; drift maintenance is serialized.
type Tracker struct {
	store    *store.Store
	detector *drift.Detector
	analyzer *analyzer.Analyzer
	counter  *metrics.TokenCounter
	cfg      DriftConfig
	logger   *slog.Logger

	driftMu sync.Mutex
}

// NewTracker builds a Tracker and seeds the drift baseline from stored
// history when enough of it survived a restart. an may be nil to disable
// model-graded analysis.
func NewTracker(st *store.Store, det *drift.Detector, an *analyzer.Analyzer, counter *metrics.TokenCounter, cfg DriftConfig, logger *slog.Logger) *Tracker {
	t := &Tracker{
		store:    st,
		detector: det,
		analyzer: an,
		counter:  counter,
		cfg:      cfg.withDefaults(),
		logger:   logger,
	}

	recent := st.GetRecentMetrics(t.cfg.BaselineLimit)
	if len(recent) >= t.cfg.BootstrapMin {
		det.SetBaseline(recent)
		logger.Info("drift baseline seeded from history", "samples", len(recent))
	}
	return t
}

// Session tracks one in-flight request. Not safe for concurrent use.
type Session struct {
	tracker   *Tracker
	requestID string
	collector *metrics.Collector
}

// StartRequest opens a tracking session for a new recommendation request.
func (t *Tracker) StartRequest(requestedItem, country, urgency string) (*Session, error) {
	id := uuid.NewString()
	c := metrics.NewCollector(t.counter)
	if err := c.Start(id, metrics.RequestInfo{
		RequestedItem: requestedItem,
		Country:       country,
		Urgency:       urgency,
	}); err != nil {
		return nil, err
	}
	return &Session{tracker: t, requestID: id, collector: c}, nil
}

// RequestID returns the identifier assigned at StartRequest.
func (s *Session) RequestID() string { return s.requestID }

// TrackStep records one pipeline step execution.
func (s *Session) TrackStep(agentName, inputText, outputText string, executionTimeMS float64, modelName string, success bool, errorMessage string) error {
	_, err := s.collector.Track(agentName, inputText, outputText, executionTimeMS, modelName, success, errorMessage)
	return err
}

// Result is what Finalize hands back to the request handler. Metrics omits
// the per-step snapshots; those stay in storage and behind the metrics
// endpoints, not in the response of every recommendation call.
type Result struct {
	RequestID     string                `json:"request_id"`
	Metrics       metrics.RequestMetric `json:"metrics"`
	AIAnalysis    *analyzer.Report      `json:"ai_analysis,omitempty"`
	DriftAnalysis *drift.Report         `json:"drift_analysis,omitempty"`
}

// Finalize seals the session: persists the request metric, runs the
// model-graded analysis when enabled, and performs drift maintenance.
// Analysis and drift failures never fail the request.
func (s *Session) Finalize(ctx context.Context, strategy string, recommendationsCount int, success bool) (Result, error) {
	t := s.tracker

	m, err := s.collector.Finalize(strategy, recommendationsCount, success)
	if err != nil {
		return Result{}, err
	}
	t.store.StoreRequestMetric(m)

	res := Result{RequestID: m.RequestID, Metrics: m}
	res.Metrics.AgentMetrics = nil

	if t.analyzer != nil {
		rep := t.analyzer.AnalyzeRequest(ctx, m)
		t.store.StoreAIAnalysis(m.RequestID, rep)
		res.AIAnalysis = &rep
	}

	if rep, ok := t.maintainDrift(); ok {
		res.DriftAnalysis = &rep
	}
	return res, nil
}

// maintainDrift seeds or refreshes the baseline and runs detection over the
// trailing window. Runs on every finalized request once two are stored.
func (t *Tracker) maintainDrift() (drift.Report, bool) {
	t.driftMu.Lock()
	defer t.driftMu.Unlock()

	recent := t.store.GetRecentMetrics(2 * t.cfg.BaselineLimit)
	if len(recent) < 2 {
		return drift.Report{}, false
	}

	if !t.detector.HasBaseline() {
		start := len(recent) - t.cfg.BaselineLimit
		if start < 0 {
			start = 0
		}
		t.detector.SetBaseline(recent[start:])
	}

	// Periodic refresh keeps the baseline trailing behind the detection
	// window instead of overlapping it.
	if len(recent) >= t.cfg.RefreshThreshold && len(recent)%t.cfg.RefreshEvery == 0 {
		lo := len(recent) - t.cfg.BaselineLimit
		hi := len(recent) - t.cfg.RecentWindow
		if lo < 0 {
			lo = 0
		}
		if hi > lo {
			t.detector.SetBaseline(recent[lo:hi])
			t.logger.Info("drift baseline refreshed", "samples", hi-lo)
		}
	}

	window := recent
	if len(window) > t.cfg.RecentWindow {
		window = window[len(window)-t.cfg.RecentWindow:]
	}
	rep := t.detector.Detect(window)
	t.store.StoreDriftReport(rep)

	if rep.DriftDetected {
		t.logger.Warn("behavioral drift detected",
			"severity", drift.Severity(rep),
			"indicators", rep.DriftIndicators)
	}
	return rep, true
}

// Alert is one drift-history entry that actually detected drift, graded
// by severity for the alerts endpoint.
type Alert struct {
	Timestamp       time.Time `json:"timestamp"`
	Severity        string    `json:"severity"`
	Indicators      []string  `json:"indicators"`
	Recommendations []string  `json:"recommendations"`
}

// DriftAlerts filters the recent drift history down to detections.
func (t *Tracker) DriftAlerts() []Alert {
	alerts := []Alert{}
	for _, entry := range t.store.GetDriftHistory(alertHistoryLimit) {
		if !entry.Analysis.DriftDetected {
			continue
		}
		alerts = append(alerts, Alert{
			Timestamp:       entry.Timestamp,
			Severity:        drift.Severity(entry.Analysis),
			Indicators:      entry.Analysis.DriftIndicators,
			Recommendations: entry.Analysis.Recommendations,
		})
	}
	return alerts
}

// SetBaseline rebuilds the drift baseline from the last numSamples stored
// requests. At least two samples are required for the two-sample tests.
func (t *Tracker) SetBaseline(numSamples int) error {
	t.driftMu.Lock()
	defer t.driftMu.Unlock()

	recent := t.store.GetRecentMetrics(numSamples)
	if len(recent) < 2 {
		return fmt.Errorf("need at least 2 stored requests to set a baseline, have %d", len(recent))
	}
	t.detector.SetBaseline(recent)
	t.logger.Info("drift baseline set manually", "samples", len(recent))
	return nil
}
