package enrich

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/furgoplaza/enrich-cli/internal/model"
)

// BatchSummary aggregates outcomes across a batch run.
type BatchSummary struct {
	Targets      int `json:"targets"`
	Succeeded    int `json:"succeeded"`
	Skipped      int `json:"skipped"`
	Failed       int `json:"failed"`
	Insufficient int `json:"insufficient"`
}

// Dispatcher runs area enrichment over many targets sequentially, with a
// fixed delay between targets. Sequential on purpose: the upstreams are
// quota-limited and a parallel batch trips their rate limits.
type Dispatcher struct {
	runner   *Runner
	interval time.Duration
}

// NewDispatcher creates a batch dispatcher.
func NewDispatcher(runner *Runner, interval time.Duration) *Dispatcher {
	return &Dispatcher{runner: runner, interval: interval}
}

// Run enriches each area in ids with the given pipelines. Cancelling ctx
// stops the batch between targets; the current target is never abandoned
// half-persisted.
func (d *Dispatcher) Run(ctx context.Context, ids []string, pipelines []model.PipelineType) (*BatchSummary, error) {
	limiter := rate.NewLimiter(rate.Every(d.interval), 1)
	summary := &BatchSummary{Targets: len(ids)}

	for i, id := range ids {
		if i > 0 {
			if err := limiter.Wait(ctx); err != nil {
				return summary, err
			}
		} else if err := ctx.Err(); err != nil {
			return summary, err
		}

		runs, err := d.runner.EnrichArea(ctx, id, pipelines)
		if err != nil {
			zap.L().Error("batch target failed",
				zap.String("area", id),
				zap.Error(err),
			)
			summary.Failed++
			if ctx.Err() != nil {
				return summary, ctx.Err()
			}
			continue
		}
		summary.tally(runs)
	}

	zap.L().Info("batch finished",
		zap.Int("targets", summary.Targets),
		zap.Int("succeeded", summary.Succeeded),
		zap.Int("skipped", summary.Skipped),
		zap.Int("failed", summary.Failed),
		zap.Int("insufficient", summary.Insufficient),
	)
	return summary, nil
}

func (s *BatchSummary) tally(runs []model.EnrichmentRun) {
	for _, run := range runs {
		switch run.Status {
		case model.RunStatusSuccess:
			s.Succeeded++
		case model.RunStatusSkipped:
			s.Skipped++
		case model.RunStatusInsufficient:
			s.Insufficient++
		case model.RunStatusFailed:
			s.Failed++
		}
	}
}
