// Package store persists observability records to day-partitioned JSONL
// files and keeps bounded in-memory recency caches for queries. The store is
// the single source of truth for historical data; a durable-write failure is
// logged and swallowed so observability never fails the primary request.
package store

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rxflow/substitute-gateway/internal/observability/drift"
	"github.com/rxflow/substitute-gateway/internal/observability/metrics"
)

// Cache bounds. Recency queries never scan files; anything beyond these
// windows is only reachable through the day partitions.
const (
	maxRecentMetrics  = 100
	maxRecentAnalyses = 100
	maxDriftHistory   = 50
	preloadDays       = 7
)

// Record type discriminators, one per record stream.
const (
	recordTypeMetric   = "request_metric"
	recordTypeDrift    = "drift_report"
	recordTypeAnalysis = "ai_analysis"
)

// record is the self-describing envelope written one per line. Records are
// independently parseable; no state spans lines.
type record struct {
	Type      string          `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// AnalysisRecord wraps one stored AI analysis result.
type AnalysisRecord struct {
	RequestID string          `json:"request_id"`
	Timestamp time.Time       `json:"timestamp"`
	Analysis  json.RawMessage `json:"analysis"`
}

// DriftRecord wraps one stored drift report.
type DriftRecord struct {
	Timestamp time.Time    `json:"timestamp"`
	Analysis  drift.Report `json:"analysis"`
}

// AgentCount pairs a step name with its occurrence count.
type AgentCount struct {
	Agent string `json:"agent"`
	Count int    `json:"count"`
}

// Summary aggregates the cached metrics inside a look-back window.
type Summary struct {
	Count                int          `json:"count"`
	TimePeriodHours      int          `json:"time_period_hours"`
	SuccessRate          float64      `json:"success_rate"`
	AvgExecutionTimeMS   float64      `json:"avg_execution_time_ms"`
	AvgTokensPerRequest  float64      `json:"avg_tokens_per_request"`
	AvgCostPerRequestUSD float64      `json:"avg_cost_per_request_usd"`
	TotalCostUSD         float64      `json:"total_cost_usd"`
	MostUsedAgents       []AgentCount `json:"most_used_agents"`
	Timestamp            time.Time    `json:"timestamp"`
	Message              string       `json:"message,omitempty"`
}

// Store is safe for concurrent use. One mutex serializes cache mutation,
// cache reads, and file appends (correctness over throughput).
type Store struct {
	dir    string
	logger *slog.Logger

	mu             sync.Mutex
	recentMetrics  []metrics.RequestMetric
	recentAnalyses []AnalysisRecord
	driftHistory   []DriftRecord
}

// New opens (or creates) the storage directory and preloads the last 7 day
// partitions into the caches, so recency queries and drift baselines are
// available immediately after a restart.
func New(dir string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("store: create directory %s: %w", dir, err)
	}
	s := &Store{dir: dir, logger: logger}
	s.preload()
	return s, nil
}

// preload reads recent partitions oldest-first so cache order stays
// chronological. A malformed line is skipped with a warning, never fatal.
func (s *Store) preload() {
	now := time.Now().UTC()
	for daysAgo := preloadDays - 1; daysAgo >= 0; daysAgo-- {
		path := filepath.Join(s.dir, partitionName(now.AddDate(0, 0, -daysAgo)))
		f, err := os.Open(path)
		if err != nil {
			continue
		}

		scanner := bufio.NewScanner(f)
		scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			var rec record
			if err := json.Unmarshal([]byte(line), &rec); err != nil {
				s.logger.Warn("skipping malformed record", slog.String("file", path), slog.String("error", err.Error()))
				continue
			}
			switch rec.Type {
			case recordTypeMetric:
				var m metrics.RequestMetric
				if err := json.Unmarshal(rec.Data, &m); err != nil {
					s.logger.Warn("skipping malformed request metric", slog.String("file", path), slog.String("error", err.Error()))
					continue
				}
				s.recentMetrics = append(s.recentMetrics, m)
			case recordTypeAnalysis:
				var a AnalysisRecord
				if err := json.Unmarshal(rec.Data, &a); err != nil {
					s.logger.Warn("skipping malformed analysis record", slog.String("file", path), slog.String("error", err.Error()))
					continue
				}
				s.recentAnalyses = append(s.recentAnalyses, a)
			case recordTypeDrift:
				var d DriftRecord
				if err := json.Unmarshal(rec.Data, &d); err != nil {
					s.logger.Warn("skipping malformed drift record", slog.String("file", path), slog.String("error", err.Error()))
					continue
				}
				s.driftHistory = append(s.driftHistory, d)
			}
		}
		if err := scanner.Err(); err != nil {
			s.logger.Warn("could not read partition", slog.String("file", path), slog.String("error", err.Error()))
		}
		f.Close()
	}

	s.recentMetrics = tail(s.recentMetrics, maxRecentMetrics)
	s.recentAnalyses = tail(s.recentAnalyses, maxRecentAnalyses)
	s.driftHistory = tail(s.driftHistory, maxDriftHistory)
}

// StoreRequestMetric appends a finalized request metric to the cache and to
// today's partition.
func (s *Store) StoreRequestMetric(m metrics.RequestMetric) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.recentMetrics = append(s.recentMetrics, m)
	s.recentMetrics = tail(s.recentMetrics, maxRecentMetrics)
	s.appendRecord(recordTypeMetric, m)
}

// StoreAIAnalysis records an analysis result keyed by request id.
func (s *Store) StoreAIAnalysis(requestID string, analysis any) {
	raw, err := json.Marshal(analysis)
	if err != nil {
		s.logger.Warn("could not serialize analysis", slog.String("request_id", requestID), slog.String("error", err.Error()))
		return
	}
	rec := AnalysisRecord{RequestID: requestID, Timestamp: time.Now().UTC(), Analysis: raw}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.recentAnalyses = append(s.recentAnalyses, rec)
	s.recentAnalyses = tail(s.recentAnalyses, maxRecentAnalyses)
	s.appendRecord(recordTypeAnalysis, rec)
}

// StoreDriftReport records one drift detection result.
func (s *Store) StoreDriftReport(r drift.Report) {
	rec := DriftRecord{Timestamp: time.Now().UTC(), Analysis: r}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.driftHistory = append(s.driftHistory, rec)
	s.driftHistory = tail(s.driftHistory, maxDriftHistory)
	s.appendRecord(recordTypeDrift, rec)
}

// appendRecord durably appends one envelope line to today's partition.
// Callers hold s.mu. The line is written with a single Write call so a
// record is never split across writers.
func (s *Store) appendRecord(recType string, data any) {
	raw, err := json.Marshal(data)
	if err != nil {
		s.logger.Warn("could not serialize record", slog.String("type", recType), slog.String("error", err.Error()))
		return
	}
	line, err := json.Marshal(record{Type: recType, Timestamp: time.Now().UTC(), Data: raw})
	if err != nil {
		s.logger.Warn("could not serialize envelope", slog.String("type", recType), slog.String("error", err.Error()))
		return
	}

	path := filepath.Join(s.dir, partitionName(time.Now().UTC()))
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		s.logger.Warn("could not open partition", slog.String("file", path), slog.String("error", err.Error()))
		return
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		s.logger.Warn("could not append record", slog.String("file", path), slog.String("error", err.Error()))
	}
}

// GetRecentMetrics returns up to limit cached metrics, most recent last.
// It reads the cache only; it never scans partitions.
func (s *Store) GetRecentMetrics(limit int) []metrics.RequestMetric {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := tail(s.recentMetrics, limit)
	return append([]metrics.RequestMetric(nil), out...)
}

// GetMetricsByRequestID scans the cache newest-first for a request id.
func (s *Store) GetMetricsByRequestID(requestID string) (metrics.RequestMetric, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := len(s.recentMetrics) - 1; i >= 0; i-- {
		if s.recentMetrics[i].RequestID == requestID {
			return s.recentMetrics[i], true
		}
	}
	return metrics.RequestMetric{}, false
}

// GetRecentAnalyses returns up to limit cached analysis records.
func (s *Store) GetRecentAnalyses(limit int) []AnalysisRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := tail(s.recentAnalyses, limit)
	return append([]AnalysisRecord(nil), out...)
}

// GetDriftHistory returns up to limit cached drift records.
func (s *Store) GetDriftHistory(limit int) []DriftRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := tail(s.driftHistory, limit)
	return append([]DriftRecord(nil), out...)
}

// GetSummary aggregates cached metrics newer than now minus hours.
func (s *Store) GetSummary(hours int) Summary {
	cutoff := time.Now().UTC().Add(-time.Duration(hours) * time.Hour)

	s.mu.Lock()
	defer s.mu.Unlock()

	var window []metrics.RequestMetric
	for _, m := range s.recentMetrics {
		if m.Timestamp.After(cutoff) {
			window = append(window, m)
		}
	}

	if len(window) == 0 {
		return Summary{
			Count:           0,
			TimePeriodHours: hours,
			Timestamp:       time.Now().UTC(),
			Message:         "no metrics in time period",
		}
	}

	var succeeded int
	var sumTime, sumCost float64
	var sumTokens int
	counts := make(map[string]int)
	var firstSeen []string
	for _, m := range window {
		if m.Success {
			succeeded++
		}
		sumTime += m.TotalExecutionTimeMS
		sumTokens += m.TotalTokens
		sumCost += m.TotalCostUSD
		for _, agent := range m.AgentsExecuted {
			if _, ok := counts[agent]; !ok {
				firstSeen = append(firstSeen, agent)
			}
			counts[agent]++
		}
	}

	// Top 5 by count, ties broken by first-seen order (stable sort over the
	// first-seen sequence).
	top := make([]AgentCount, 0, len(firstSeen))
	for _, agent := range firstSeen {
		top = append(top, AgentCount{Agent: agent, Count: counts[agent]})
	}
	sort.SliceStable(top, func(i, j int) bool { return top[i].Count > top[j].Count })
	if len(top) > 5 {
		top = top[:5]
	}

	n := float64(len(window))
	return Summary{
		Count:                len(window),
		TimePeriodHours:      hours,
		SuccessRate:          float64(succeeded) / n * 100,
		AvgExecutionTimeMS:   sumTime / n,
		AvgTokensPerRequest:  float64(sumTokens) / n,
		AvgCostPerRequestUSD: sumCost / n,
		TotalCostUSD:         sumCost,
		MostUsedAgents:       top,
		Timestamp:            time.Now().UTC(),
	}
}

// Cleanup removes day partitions older than the retention window, matched by
// the date encoded in the filename, not file mtime. Returns the number of
// files removed.
func (s *Store) Cleanup(daysToKeep int) int {
	cutoff := time.Now().UTC().AddDate(0, 0, -daysToKeep)
	removed := 0

	entries, err := filepath.Glob(filepath.Join(s.dir, "metrics_*.jsonl"))
	if err != nil {
		s.logger.Warn("could not list partitions", slog.String("error", err.Error()))
		return 0
	}
	for _, path := range entries {
		name := filepath.Base(path)
		dateStr := strings.TrimSuffix(strings.TrimPrefix(name, "metrics_"), ".jsonl")
		fileDate, err := time.Parse("20060102", dateStr)
		if err != nil {
			s.logger.Warn("could not parse partition date", slog.String("file", name), slog.String("error", err.Error()))
			continue
		}
		if fileDate.Before(cutoff) {
			if err := os.Remove(path); err != nil {
				s.logger.Warn("could not remove partition", slog.String("file", name), slog.String("error", err.Error()))
				continue
			}
			removed++
		}
	}
	return removed
}

func partitionName(t time.Time) string {
	return "metrics_" + t.Format("20060102") + ".jsonl"
}

func tail[T any](s []T, n int) []T {
	if n <= 0 || len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
