// Package worker implements background tasks that keep the cached rate snapshot warm.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"converterservice/internal/rates"
)

// TaskTypeRefreshRates refreshes the cached rate snapshot.
const TaskTypeRefreshRates = "rates:refresh"

// uniqueWindow is how long a manually enqueued refresh blocks duplicates.
const uniqueWindow = time.Minute

// ErrRefreshPending is returned when an identical refresh task is already queued.
var ErrRefreshPending = errors.New("a rate refresh is already pending")

// RefreshPayload is the payload of a TaskTypeRefreshRates task.
type RefreshPayload struct {
	// Force refetches even when the cached snapshot is still fresh.
	Force bool `json:"force"`
}

// Refresher is the cache-backed primary provider as seen by the worker.
type Refresher interface {
	FetchRates(ctx context.Context) (*rates.Snapshot, error)
	Refresh(ctx context.Context) (*rates.Snapshot, error)
}

// NewRefreshRatesHandler returns a function to handle rate refresh tasks.
func NewRefreshRatesHandler(r Refresher, logger *zap.SugaredLogger) func(context.Context, *asynq.Task) error {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload RefreshPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			logger.Errorw("Invalid task payload", "type", t.Type(), "error", err)
			return nil
		}

		fetch := r.FetchRates
		if payload.Force {
			fetch = r.Refresh
		}

		snap, err := fetch(ctx)
		if err != nil {
			logger.Errorw("Rate refresh failed", "force", payload.Force, "error", err)
			if !rates.IsConnectivity(err) {
				return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
			}
			return err
		}

		logger.Infow("Task completed", "type", t.Type(), "base", snap.Base, "timestamp", snap.Timestamp)
		return nil
	}
}

// NewRefreshTask builds a refresh task.
func NewRefreshTask(force bool, opts ...asynq.Option) (*asynq.Task, error) {
	data, err := json.Marshal(RefreshPayload{Force: force})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeRefreshRates, data, opts...), nil
}

// AsynqEnqueuer is responsible for enqueuing tasks to an Asynq queue with specific configurations for retries and timeouts.
type AsynqEnqueuer struct {
	client   *asynq.Client
	maxRetry int
	timeout  time.Duration
}

// NewAsynqEnqueuer creates a new AsynqEnqueuer with the given client, retry limit, and task timeout duration.
func NewAsynqEnqueuer(client *asynq.Client, maxRetry int, timeout time.Duration) *AsynqEnqueuer {
	return &AsynqEnqueuer{
		client:   client,
		maxRetry: maxRetry,
		timeout:  timeout,
	}
}

// EnqueueRefresh enqueues a forced refresh and returns the task ID.
// A second call within uniqueWindow fails with ErrRefreshPending.
func (e *AsynqEnqueuer) EnqueueRefresh(ctx context.Context) (string, error) {
	task, err := NewRefreshTask(true,
		asynq.MaxRetry(e.maxRetry),
		asynq.Timeout(e.timeout),
		asynq.Unique(uniqueWindow),
	)
	if err != nil {
		return "", err
	}

	info, err := e.client.EnqueueContext(ctx, task)
	if errors.Is(err, asynq.ErrDuplicateTask) {
		return "", ErrRefreshPending
	}
	if err != nil {
		return "", err
	}
	return info.ID, nil
}

// RegisterSchedule registers the periodic, non-forced refresh on s.
func (e *AsynqEnqueuer) RegisterSchedule(s *asynq.Scheduler, cronspec string) (string, error) {
	task, err := NewRefreshTask(false,
		asynq.MaxRetry(e.maxRetry),
		asynq.Timeout(e.timeout),
	)
	if err != nil {
		return "", err
	}
	return s.Register(cronspec, task)
}
