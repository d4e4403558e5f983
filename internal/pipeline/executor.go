package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/rxflow/substitute-gateway/internal/catalog"
	"github.com/rxflow/substitute-gateway/internal/llm"
)

// Tracker receives a before/after state snapshot for every executed step.
// The observability session satisfies this.
type Tracker interface {
	TrackStep(agentName, inputText, outputText string, executionTimeMS float64, modelName string, success bool, errorMessage string) error
}

// Pipeline runs the fixed sequence of recommendation steps. One Pipeline is
// shared across requests; per-request state lives in State.
type Pipeline struct {
	steps  []Step
	model  string
	logger *slog.Logger
}

// New assembles the standard eight-step pipeline.
func New(cat *catalog.Catalog, data Datasets, gen llm.Generator, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		steps: []Step{
			managerStep{gen: gen},
			catalogSearchStep{catalog: cat},
			complianceStep{gen: gen, data: data},
			inventoryStep{data: data},
			logisticsStep{data: data},
			costStep{data: data},
			coordinatorStep{data: data, now: time.Now},
			recommendationStep{gen: gen},
		},
		model:  gen.ModelName(),
		logger: logger,
	}
}

// Run executes every step in order, reporting each to the tracker. The
// first step error aborts the run; the partially filled state is returned
// alongside the error so the caller can still finalize its metrics.
func (p *Pipeline) Run(ctx context.Context, tracker Tracker, req Request) (*State, error) {
	st := NewState(req)

	for _, step := range p.steps {
		if err := ctx.Err(); err != nil {
			return st, err
		}

		before := st.Summary()
		started := time.Now()
		err := step.Run(ctx, st)
		elapsedMS := float64(time.Since(started)) / float64(time.Millisecond)

		after := ""
		errMsg := ""
		success := err == nil
		if success {
			after = st.Summary()
		} else {
			errMsg = err.Error()
		}

		if trackErr := tracker.TrackStep(step.Name(), before, after, elapsedMS, p.model, success, errMsg); trackErr != nil {
			p.logger.Error("failed to track step", "step", step.Name(), "error", trackErr)
		}

		if err != nil {
			p.logger.Error("pipeline step failed", "step", step.Name(), "error", err)
			return st, fmt.Errorf("step %s: %w", step.Name(), err)
		}
		p.logger.Debug("pipeline step finished", "step", step.Name(), "took_ms", elapsedMS)
	}
	return st, nil
}
