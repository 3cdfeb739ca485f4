// Package queue defines the background tasks ReportDrop hands to asynq.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// SweepStagingTask removes staged artifacts orphaned by crashed requests.
	SweepStagingTask = "staging:sweep"
)

// SweepPayload is serialized into the task payload.
type SweepPayload struct {
	MaxAgeSeconds int64 `json:"max_age_seconds"`
}

// MaxAge returns the payload age as a duration.
func (p SweepPayload) MaxAge() time.Duration {
	return time.Duration(p.MaxAgeSeconds) * time.Second
}

// NewSweepTask builds a sweep task for artifacts older than maxAge. Only one
// sweep is allowed in the queue at a time.
func NewSweepTask(maxAge time.Duration) (*asynq.Task, error) {
	data, err := json.Marshal(SweepPayload{MaxAgeSeconds: int64(maxAge / time.Second)})
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return asynq.NewTask(SweepStagingTask, data, asynq.MaxRetry(0), asynq.Unique(time.Minute)), nil
}

// EnqueueSweep enqueues a one-off sweep.
func EnqueueSweep(ctx context.Context, client *asynq.Client, maxAge time.Duration) error {
	task, err := NewSweepTask(maxAge)
	if err != nil {
		return err
	}
	if _, err := client.EnqueueContext(ctx, task); err != nil {
		return fmt.Errorf("enqueue sweep task: %w", err)
	}
	return nil
}
