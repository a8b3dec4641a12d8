package core

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/BranchIntl/postqueue/connector"
	"github.com/BranchIntl/postqueue/errors"
	"github.com/BranchIntl/postqueue/queue"
	"github.com/hashicorp/go-multierror"
)

// Engine is the main orchestration engine. It owns the publish queue and
// runs a worker pool that drains it through registered connectors.
type Engine struct {
	stats    Statistics
	registry Registry
	config   *Config
	queue    *queue.Queue[PublishJob]

	workerPool *WorkerPool

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewEngine creates a new engine with dependency injection
func NewEngine(
	stats Statistics,
	registry Registry,
	options ...EngineOption,
) *Engine {
	config := defaultConfig()
	for _, opt := range options {
		opt(config)
	}
	if config.Concurrency < 1 {
		config.Concurrency = 1
	}

	return &Engine{
		stats:    stats,
		registry: registry,
		config:   config,
		queue:    queue.New[PublishJob](config.QueueOptions...),
	}
}

// Queue returns the engine's publish queue
func (e *Engine) Queue() *queue.Queue[PublishJob] {
	return e.queue
}

// Start begins processing jobs
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.cancel != nil {
		return fmt.Errorf("engine already started")
	}

	if err := e.stats.Connect(ctx); err != nil {
		return errors.NewConnectionError("",
			fmt.Errorf("failed to connect statistics: %w", err))
	}

	e.ctx, e.cancel = context.WithCancel(ctx)

	wake := make(chan struct{}, e.config.Concurrency)
	poller := NewPoller(e.queue, e.config.PollInterval, wake, e.config.Concurrency)

	e.workerPool = NewWorkerPool(
		e.queue,
		e.registry,
		e.stats,
		e.config.Concurrency,
		e.config.PublishTimeout,
		e.config.ResultHandler,
		wake,
	)

	// Start components
	e.wg.Add(2)
	go func() {
		defer e.wg.Done()
		if err := poller.Start(e.ctx); err != nil {
			slog.Error("Poller error", "error", err)
		}
	}()

	go func() {
		defer e.wg.Done()
		if err := e.workerPool.Start(e.ctx); err != nil {
			slog.Error("Worker pool error", "error", err)
		}
	}()

	slog.Info("Engine started", "workers", e.config.Concurrency)
	return nil
}

// Stop gracefully shuts down the engine. In-flight publishes are cancelled
// through their context; their items end up failed.
func (e *Engine) Stop() error {
	e.mu.Lock()
	cancel := e.cancel
	e.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()

	var result *multierror.Error

	// Wait for graceful shutdown
	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		slog.Info("Engine stopped gracefully")
		e.mu.Lock()
		e.ctx, e.cancel, e.workerPool = nil, nil, nil
		e.mu.Unlock()
	case <-time.After(e.config.ShutdownTimeout):
		slog.Warn("Engine shutdown timeout exceeded")
		result = multierror.Append(result, errors.ErrShutdownTimeout)
	}

	if err := e.stats.Close(); err != nil {
		slog.Error("Error closing statistics", "error", err)
		result = multierror.Append(result, fmt.Errorf("close statistics: %w", err))
	}

	return result.ErrorOrNil()
}

// Health returns the current health status. An engine that is not running
// is unhealthy.
func (e *Engine) Health() HealthStatus {
	statsHealth := e.stats.Health()

	active := 0
	e.mu.Lock()
	running := e.cancel != nil
	if e.workerPool != nil {
		active = e.workerPool.ActiveWorkers()
	}
	e.mu.Unlock()

	return HealthStatus{
		Healthy:       running && statsHealth == nil,
		StatsHealth:   statsHealth,
		ActiveWorkers: active,
		QueuedJobs:    e.queue.Counts(),
		LastCheck:     time.Now(),
	}
}

// Enqueue adds a publish job to the queue
func (e *Engine) Enqueue(job PublishJob, priority int) (queue.Item[PublishJob], error) {
	if strings.TrimSpace(job.Target) == "" {
		return queue.Item[PublishJob]{}, errors.ErrEmptyTarget
	}
	return e.queue.Enqueue(job, priority), nil
}

// Cancel withdraws a job that has not been claimed yet
func (e *Engine) Cancel(id string) error {
	return e.queue.Remove(id)
}

// Register binds a connector to a publish target
func (e *Engine) Register(target string, c connector.Connector) error {
	return e.registry.Register(target, c)
}

// WorkerStats returns per-worker statistics, empty before Start
func (e *Engine) WorkerStats() []WorkerStats {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.workerPool == nil {
		return nil
	}
	return e.workerPool.GetWorkerStats()
}

// Run starts the engine and blocks until shutdown signals are received
// This is a convenience method that combines Start() + signal handling + Stop()
func (e *Engine) Run(ctx context.Context) error {
	// Start the engine
	if err := e.Start(ctx); err != nil {
		return err
	}

	// Set up signal handling
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	// Wait for either context cancellation or signal
	select {
	case <-ctx.Done():
		slog.Info("Context cancelled, shutting down...")
	case sig := <-sigChan:
		slog.Info("Received signal, shutting down...", "signal", sig)
	}

	// Graceful shutdown
	return e.Stop()
}
