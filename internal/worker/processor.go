// Package worker runs the asynq handlers of the background process.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/dharsanguruparan/ReportDrop/internal/metrics"
	"github.com/dharsanguruparan/ReportDrop/internal/queue"
	"github.com/dharsanguruparan/ReportDrop/internal/staging"
)

// Processor is plugged into the asynq worker loop.
type Processor struct {
	dirs    []string
	metrics *metrics.Metrics
	logger  *zap.Logger
	now     func() time.Time
}

// NewProcessor constructs a worker processor sweeping dirs. m may be nil.
func NewProcessor(dirs []string, m *metrics.Metrics, logger *zap.Logger) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{dirs: dirs, metrics: m, logger: logger, now: time.Now}
}

// Handler registers the task handlers.
func (p *Processor) Handler() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.SweepStagingTask, p.handleSweep)
	return mux
}

func (p *Processor) handleSweep(ctx context.Context, task *asynq.Task) error {
	var payload queue.SweepPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("decode payload: %w: %w", err, asynq.SkipRetry)
	}
	if payload.MaxAgeSeconds <= 0 {
		return fmt.Errorf("sweep max age must be positive: %w", asynq.SkipRetry)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	res := staging.Sweep(p.dirs, payload.MaxAge(), p.now())
	if p.metrics != nil {
		p.metrics.SweptArtifacts.Add(float64(len(res.Removed)))
	}
	for _, err := range res.Errors {
		p.logger.Warn("sweep failed", zap.Error(err))
	}
	p.logger.Info("staging swept",
		zap.Int("removed", len(res.Removed)),
		zap.Int("errors", len(res.Errors)),
		zap.Duration("max_age", payload.MaxAge()))
	return nil
}
