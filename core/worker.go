package core

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	"github.com/BranchIntl/postqueue/connector"
	"github.com/BranchIntl/postqueue/errors"
	"github.com/BranchIntl/postqueue/queue"
)

// Worker claims publish jobs from the queue and runs them through the
// target's connector
type Worker struct {
	id       string
	hostname string
	pid      int
	queue    *queue.Queue[PublishJob]
	registry Registry
	stats    Statistics
	timeout  time.Duration
	onResult ResultHandler

	// Statistics
	processed  int64
	failed     int64
	inProgress int64
	lastJob    atomic.Int64
	startTime  time.Time
}

// NewWorker creates a new worker
func NewWorker(
	id string,
	q *queue.Queue[PublishJob],
	registry Registry,
	stats Statistics,
	timeout time.Duration,
	onResult ResultHandler,
) *Worker {
	hostname, _ := os.Hostname()

	return &Worker{
		id:        id,
		hostname:  hostname,
		pid:       os.Getpid(),
		queue:     q,
		registry:  registry,
		stats:     stats,
		timeout:   timeout,
		onResult:  onResult,
		startTime: time.Now(),
	}
}

// GetID returns the worker's unique ID
func (w *Worker) GetID() string {
	return fmt.Sprintf("%s:%d-%s", w.hostname, w.pid, w.id)
}

func (w *Worker) info() WorkerInfo {
	return WorkerInfo{
		ID:       w.GetID(),
		Hostname: w.hostname,
		Pid:      w.pid,
		Started:  w.startTime,
	}
}

// Work claims and processes jobs until ctx is done or wake is closed. After
// draining every claimable job it sleeps until the next wake-up.
func (w *Worker) Work(ctx context.Context, wake <-chan struct{}) error {
	workerInfo := w.info()

	if err := w.stats.RegisterWorker(ctx, workerInfo); err != nil {
		slog.Error("Failed to register worker", "error", err)
	}

	defer func() {
		// ctx may already be cancelled here
		if err := w.stats.UnregisterWorker(context.WithoutCancel(ctx), w.GetID()); err != nil {
			slog.Error("Failed to unregister worker", "error", err)
		}
	}()

	slog.Info("Worker started", "id", w.GetID())

	for {
		w.drain(ctx)

		select {
		case <-ctx.Done():
			slog.Info("Worker stopping", "id", w.GetID())
			return nil
		case _, ok := <-wake:
			if !ok {
				slog.Info("Worker wake channel closed", "id", w.GetID())
				return nil
			}
		}
	}
}

// drain processes claimable jobs until none are left or ctx is done
func (w *Worker) drain(ctx context.Context) {
	for ctx.Err() == nil {
		item, ok := w.queue.ClaimNext()
		if !ok {
			return
		}
		w.processJob(ctx, item)
	}
}

// processJob handles a single claimed job. The claim is always released
// through Complete or Fail before returning.
func (w *Worker) processJob(ctx context.Context, item queue.Item[PublishJob]) {
	startTime := time.Now()
	workerInfo := w.info()
	info := jobInfo(item)

	atomic.AddInt64(&w.inProgress, 1)
	defer atomic.AddInt64(&w.inProgress, -1)
	w.lastJob.Store(startTime.UnixNano())

	// Record job started
	if err := w.stats.RecordJobStarted(ctx, info, workerInfo); err != nil {
		slog.Error("Failed to record job start", "error", err)
	}

	c, ok := w.registry.Get(item.Data.Target)
	if !ok {
		err := fmt.Errorf("%w: %s", errors.ErrConnectorNotFound, item.Data.Target)
		w.handleJobError(ctx, item, workerInfo, err, startTime)
		return
	}

	result, err := w.executeJob(ctx, c, item.Data)
	if w.onResult != nil {
		w.onResult(item, result)
	}

	if err != nil {
		if ctx.Err() != nil {
			// the engine is shutting down; give the job up rather than retry it
			err = fmt.Errorf("%w: %w", errors.ErrCancelled, err)
		}
		w.handleJobError(ctx, item, workerInfo, err, startTime)
		return
	}

	w.handleJobSuccess(ctx, item, workerInfo, result, startTime)
}

// executeJob runs one publish attempt under the per-job timeout with panic
// recovery. A failed PostResult is turned into an error.
func (w *Worker) executeJob(ctx context.Context, c connector.Connector, job PublishJob) (result connector.PostResult, err error) {
	jobCtx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
			result = connector.PostResult{
				Error:     err.Error(),
				Timestamp: time.Now(),
				Platform:  c.Platform(),
				Cause:     err,
			}
		}
	}()

	switch {
	case job.GroupID != "":
		gp, ok := c.(connector.GroupPublisher)
		if !ok {
			err = fmt.Errorf("%w: %s cannot publish to groups", errors.ErrUnsupported, c.Platform())
			return connector.PostResult{
				Error:     err.Error(),
				Timestamp: time.Now(),
				Platform:  c.Platform(),
				Cause:     err,
			}, err
		}
		result = gp.PublishToGroup(jobCtx, job.GroupID, job.Content)
	case job.ScheduledTime != nil:
		result = c.SchedulePost(jobCtx, job.Content, *job.ScheduledTime)
	default:
		result = c.PublishPost(jobCtx, job.Content)
	}

	if !result.Success {
		if result.Cause != nil {
			return result, result.Cause
		}
		return result, fmt.Errorf("%s", result.Error)
	}
	return result, nil
}

// handleJobSuccess completes the item and records it
func (w *Worker) handleJobSuccess(ctx context.Context, item queue.Item[PublishJob], worker WorkerInfo, result connector.PostResult, startTime time.Time) {
	duration := time.Since(startTime)

	if err := w.queue.Complete(item.ID); err != nil {
		slog.Error("Failed to complete item", "item", item.ID, "error", err)
	}

	atomic.AddInt64(&w.processed, 1)

	if err := w.stats.RecordJobCompleted(ctx, jobInfo(item), worker, duration); err != nil {
		slog.Error("Failed to record job completion", "error", err)
	}

	slog.Debug("Job completed",
		"item", item.ID, "target", item.Data.Target, "post", result.PostID, "duration", duration)
}

// handleJobError fails the item, retrying when the cause allows it
func (w *Worker) handleJobError(ctx context.Context, item queue.Item[PublishJob], worker WorkerInfo, err error, startTime time.Time) {
	duration := time.Since(startTime)

	retryable := errors.IsRetryable(err)
	if failErr := w.queue.Fail(item.ID, err, retryable); failErr != nil {
		slog.Error("Failed to fail item", "item", item.ID, "error", failErr)
	}

	atomic.AddInt64(&w.failed, 1)

	if recErr := w.stats.RecordJobFailed(ctx, jobInfo(item), worker, err, duration); recErr != nil {
		slog.Error("Failed to record job failure", "error", recErr)
	}

	slog.Error("Job failed",
		"item", item.ID, "target", item.Data.Target, "attempt", item.Attempt,
		"retryable", retryable, "error", err)
}

// GetStats returns current worker statistics
func (w *Worker) GetStats() WorkerStats {
	var lastJob time.Time
	if ns := w.lastJob.Load(); ns != 0 {
		lastJob = time.Unix(0, ns)
	}

	return WorkerStats{
		ID:         w.GetID(),
		Processed:  atomic.LoadInt64(&w.processed),
		Failed:     atomic.LoadInt64(&w.failed),
		InProgress: atomic.LoadInt64(&w.inProgress),
		StartTime:  w.startTime,
		LastJob:    lastJob,
	}
}
