package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/BranchIntl/postqueue/core"
	"github.com/BranchIntl/postqueue/errors"
	redisconn "github.com/BranchIntl/postqueue/internal/redis"
	"github.com/gomodule/redigo/redis"
)

// Statistics stores publish counters and worker registrations in Redis
type Statistics struct {
	pool      *redis.Pool
	namespace string
	options   Options
	now       func() time.Time
}

// Failure is one entry of the failure log
type Failure struct {
	JobID    string    `json:"job_id"`
	Target   string    `json:"target"`
	Attempt  int       `json:"attempt"`
	Error    string    `json:"error"`
	Worker   string    `json:"worker"`
	FailedAt time.Time `json:"failed_at"`
}

type currentJob struct {
	JobID   string    `json:"job_id"`
	Target  string    `json:"target"`
	Attempt int       `json:"attempt"`
	RunAt   time.Time `json:"run_at"`
}

// NewStatistics creates a new Redis statistics backend
func NewStatistics(options Options) *Statistics {
	return &Statistics{
		namespace: options.Namespace,
		options:   options,
		now:       time.Now,
	}
}

// Connect establishes connection to Redis
func (r *Statistics) Connect(ctx context.Context) error {
	r.pool = redisconn.NewPool(r.options.Options)

	conn, err := r.pool.GetContext(ctx)
	if err != nil {
		return errors.NewConnectionError(redisconn.Redact(r.options.URI), err)
	}
	defer conn.Close()

	if _, err := conn.Do("PING"); err != nil {
		return errors.NewConnectionError(redisconn.Redact(r.options.URI),
			fmt.Errorf("ping failed: %w", err))
	}

	return nil
}

// Close closes the Redis connection pool
func (r *Statistics) Close() error {
	if r.pool != nil {
		return r.pool.Close()
	}
	return nil
}

// Health checks the Redis connection health
func (r *Statistics) Health() error {
	if r.pool == nil {
		return errors.ErrNotConnected
	}

	conn := r.pool.Get()
	defer conn.Close()

	if _, err := conn.Do("PING"); err != nil {
		return errors.NewConnectionError(redisconn.Redact(r.options.URI),
			fmt.Errorf("health check failed: %w", err))
	}

	return nil
}

// Type returns the statistics backend type
func (r *Statistics) Type() string {
	return "redis"
}

func (r *Statistics) conn(ctx context.Context) (redis.Conn, error) {
	if r.pool == nil {
		return nil, errors.ErrNotConnected
	}
	return r.pool.GetContext(ctx)
}

// RegisterWorker adds a worker to the worker set
func (r *Statistics) RegisterWorker(ctx context.Context, worker core.WorkerInfo) error {
	conn, err := r.conn(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	workerData, err := json.Marshal(worker)
	if err != nil {
		return fmt.Errorf("failed to marshal worker info: %w", err)
	}

	_ = conn.Send("MULTI")
	_ = conn.Send("SADD", r.workersKey(), worker.ID)
	_ = conn.Send("SET", r.workerKey(worker.ID), workerData)
	_ = conn.Send("SET", r.workerStatKey("processed", worker.ID), 0)
	_ = conn.Send("SET", r.workerStatKey("failed", worker.ID), 0)
	_ = conn.Send("SET", r.workerStartedKey(worker.ID), worker.Started.Format(time.RFC3339))
	if _, err := conn.Do("EXEC"); err != nil {
		return fmt.Errorf("failed to register worker: %w", err)
	}

	return nil
}

// UnregisterWorker removes a worker and its keys
func (r *Statistics) UnregisterWorker(ctx context.Context, workerID string) error {
	conn, err := r.conn(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	_ = conn.Send("MULTI")
	_ = conn.Send("SREM", r.workersKey(), workerID)
	_ = conn.Send("DEL",
		r.workerKey(workerID),
		r.workerStatKey("processed", workerID),
		r.workerStatKey("failed", workerID),
		r.workerStartedKey(workerID),
		r.workerJobKey(workerID),
	)
	if _, err := conn.Do("EXEC"); err != nil {
		return fmt.Errorf("failed to unregister worker: %w", err)
	}

	return nil
}

// RecordJobStarted stores the worker's current job
func (r *Statistics) RecordJobStarted(ctx context.Context, job core.JobInfo, worker core.WorkerInfo) error {
	conn, err := r.conn(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	work, err := json.Marshal(currentJob{
		JobID:   job.ID,
		Target:  job.Target,
		Attempt: job.Attempt,
		RunAt:   r.now(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal work data: %w", err)
	}

	if _, err := conn.Do("SET", r.workerJobKey(worker.ID), work); err != nil {
		return fmt.Errorf("failed to set worker job: %w", err)
	}

	return nil
}

// RecordJobCompleted increments the processed counters
func (r *Statistics) RecordJobCompleted(ctx context.Context, job core.JobInfo, worker core.WorkerInfo, duration time.Duration) error {
	conn, err := r.conn(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	_ = conn.Send("MULTI")
	r.sendCounters(conn, "processed", job, worker)
	if _, err := conn.Do("EXEC"); err != nil {
		return fmt.Errorf("failed to record completion: %w", err)
	}

	return nil
}

// RecordJobFailed increments the failed counters and appends to the failure log
func (r *Statistics) RecordJobFailed(ctx context.Context, job core.JobInfo, worker core.WorkerInfo, err error, duration time.Duration) error {
	conn, connErr := r.conn(ctx)
	if connErr != nil {
		return connErr
	}
	defer conn.Close()

	failure := Failure{
		JobID:    job.ID,
		Target:   job.Target,
		Attempt:  job.Attempt,
		Worker:   worker.ID,
		FailedAt: r.now(),
	}
	if err != nil {
		failure.Error = err.Error()
	}

	failureJSON, jsonErr := json.Marshal(failure)
	if jsonErr != nil {
		return fmt.Errorf("failed to marshal failure data: %w", jsonErr)
	}

	_ = conn.Send("MULTI")
	r.sendCounters(conn, "failed", job, worker)
	_ = conn.Send("LPUSH", r.failedKey(), failureJSON)
	if r.options.MaxFailures > 0 {
		_ = conn.Send("LTRIM", r.failedKey(), 0, r.options.MaxFailures-1)
	}
	if _, err := conn.Do("EXEC"); err != nil {
		return fmt.Errorf("failed to record failure: %w", err)
	}

	return nil
}

// sendCounters queues the global, per-target and per-worker increments
func (r *Statistics) sendCounters(conn redis.Conn, stat string, job core.JobInfo, worker core.WorkerInfo) {
	_ = conn.Send("INCR", r.statKey(stat))
	_ = conn.Send("INCR", r.targetStatKey(stat, job.Target))
	_ = conn.Send("SADD", r.targetsKey(), job.Target)
	_ = conn.Send("INCR", r.workerStatKey(stat, worker.ID))
	_ = conn.Send("DEL", r.workerJobKey(worker.ID))
}

// GetWorkerStats returns statistics for a specific worker
func (r *Statistics) GetWorkerStats(ctx context.Context, workerID string) (core.WorkerStats, error) {
	conn, err := r.conn(ctx)
	if err != nil {
		return core.WorkerStats{}, err
	}
	defer conn.Close()

	values, err := redis.Values(conn.Do("MGET",
		r.workerStatKey("processed", workerID),
		r.workerStatKey("failed", workerID),
		r.workerStartedKey(workerID),
		r.workerJobKey(workerID),
	))
	if err != nil {
		return core.WorkerStats{}, fmt.Errorf("failed to get worker stats: %w", err)
	}

	var processed, failed int64
	var started, job string
	if _, err := redis.Scan(values, &processed, &failed, &started, &job); err != nil {
		return core.WorkerStats{}, fmt.Errorf("failed to parse worker stats: %w", err)
	}

	stats := core.WorkerStats{
		ID:        workerID,
		Processed: processed,
		Failed:    failed,
	}
	if started != "" {
		stats.StartTime, _ = time.Parse(time.RFC3339, started)
	}
	if job != "" {
		var current currentJob
		if err := json.Unmarshal([]byte(job), &current); err == nil {
			stats.InProgress = 1
			stats.LastJob = current.RunAt
		}
	}

	return stats, nil
}

// GetTargetStats returns counters for a publish target
func (r *Statistics) GetTargetStats(ctx context.Context, target string) (core.TargetStats, error) {
	conn, err := r.conn(ctx)
	if err != nil {
		return core.TargetStats{}, err
	}
	defer conn.Close()

	return r.targetStats(conn, target)
}

func (r *Statistics) targetStats(conn redis.Conn, target string) (core.TargetStats, error) {
	values, err := redis.Int64s(conn.Do("MGET",
		r.targetStatKey("processed", target),
		r.targetStatKey("failed", target),
	))
	if err != nil {
		return core.TargetStats{}, fmt.Errorf("failed to get target stats: %w", err)
	}

	return core.TargetStats{
		Target:    target,
		Processed: values[0],
		Failed:    values[1],
	}, nil
}

// GetGlobalStats returns global statistics
func (r *Statistics) GetGlobalStats(ctx context.Context) (core.GlobalStats, error) {
	conn, err := r.conn(ctx)
	if err != nil {
		return core.GlobalStats{}, err
	}
	defer conn.Close()

	totals, err := redis.Int64s(conn.Do("MGET", r.statKey("processed"), r.statKey("failed")))
	if err != nil {
		return core.GlobalStats{}, fmt.Errorf("failed to get global stats: %w", err)
	}

	activeWorkers, err := redis.Int64(conn.Do("SCARD", r.workersKey()))
	if err != nil {
		return core.GlobalStats{}, fmt.Errorf("failed to get active workers: %w", err)
	}

	targets, err := redis.Strings(conn.Do("SMEMBERS", r.targetsKey()))
	if err != nil {
		return core.GlobalStats{}, fmt.Errorf("failed to list targets: %w", err)
	}

	targetStats := make(map[string]core.TargetStats, len(targets))
	for _, target := range targets {
		stats, err := r.targetStats(conn, target)
		if err != nil {
			return core.GlobalStats{}, err
		}
		targetStats[target] = stats
	}

	return core.GlobalStats{
		TotalProcessed: totals[0],
		TotalFailed:    totals[1],
		ActiveWorkers:  activeWorkers,
		TargetStats:    targetStats,
	}, nil
}

// Failures returns up to limit entries of the failure log, newest first
func (r *Statistics) Failures(ctx context.Context, limit int) ([]Failure, error) {
	conn, err := r.conn(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	if limit <= 0 {
		return nil, nil
	}

	raw, err := redis.ByteSlices(conn.Do("LRANGE", r.failedKey(), 0, limit-1))
	if err != nil {
		return nil, fmt.Errorf("failed to read failures: %w", err)
	}

	failures := make([]Failure, 0, len(raw))
	for _, entry := range raw {
		var f Failure
		if err := json.Unmarshal(entry, &f); err != nil {
			return nil, fmt.Errorf("failed to decode failure: %w", err)
		}
		failures = append(failures, f)
	}
	return failures, nil
}

// Helper methods for Redis keys

func (r *Statistics) workersKey() string {
	return r.namespace + "workers"
}

func (r *Statistics) workerKey(workerID string) string {
	return fmt.Sprintf("%sworker:%s", r.namespace, workerID)
}

func (r *Statistics) workerStartedKey(workerID string) string {
	return fmt.Sprintf("%sworker:%s:started", r.namespace, workerID)
}

func (r *Statistics) workerJobKey(workerID string) string {
	return fmt.Sprintf("%sworker:%s:job", r.namespace, workerID)
}

func (r *Statistics) statKey(stat string) string {
	return fmt.Sprintf("%sstat:%s", r.namespace, stat)
}

func (r *Statistics) workerStatKey(stat, workerID string) string {
	return fmt.Sprintf("%sstat:%s:worker:%s", r.namespace, stat, workerID)
}

func (r *Statistics) targetStatKey(stat, target string) string {
	return fmt.Sprintf("%sstat:%s:target:%s", r.namespace, stat, target)
}

func (r *Statistics) targetsKey() string {
	return r.namespace + "targets"
}

func (r *Statistics) failedKey() string {
	return r.namespace + "failed"
}
