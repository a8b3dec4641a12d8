package core

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/BranchIntl/postqueue/connector"
	"github.com/BranchIntl/postqueue/queue"
)

// TestSetup provides common test dependencies
type TestSetup struct {
	Stats    *MockStatistics
	Registry *MockRegistry
	Queue    *queue.Queue[PublishJob]
}

// NewTestSetup creates a standard test setup with all mocks
func NewTestSetup() *TestSetup {
	// Set up a discard logger for tests to avoid noise
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError + 4, // job failures are expected in tests
	}))
	slog.SetDefault(logger)

	return &TestSetup{
		Stats:    NewMockStatistics(),
		Registry: NewMockRegistry(),
		Queue: queue.New[PublishJob](
			queue.WithBackoff(queue.Backoff{}),
			queue.WithLogger(logger),
		),
	}
}

// ContextWithTimeout creates a context with standard timeout for tests
func ContextWithTimeout(t *testing.T) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), time.Second)
}

// ContextWithCustomTimeout creates a context with custom timeout
func ContextWithCustomTimeout(t *testing.T, timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), timeout)
}

// JobBuilder helps create test jobs with fluent interface
type JobBuilder struct {
	job PublishJob
}

// NewJob starts building a test job
func NewJob() *JobBuilder {
	return &JobBuilder{
		job: PublishJob{
			Target:  "mock:main",
			Content: connector.PostContent{Text: "hello"},
		},
	}
}

// WithTarget sets the job target
func (b *JobBuilder) WithTarget(target string) *JobBuilder {
	b.job.Target = target
	return b
}

// WithText sets the post text
func (b *JobBuilder) WithText(text string) *JobBuilder {
	b.job.Content.Text = text
	return b
}

// ScheduledAt makes the job a scheduled post
func (b *JobBuilder) ScheduledAt(at time.Time) *JobBuilder {
	b.job.ScheduledTime = &at
	return b
}

// InGroup makes the job a group post
func (b *JobBuilder) InGroup(groupID string) *JobBuilder {
	b.job.GroupID = groupID
	return b
}

// Build returns the job
func (b *JobBuilder) Build() PublishJob {
	return b.job
}

// EngineBuilder helps create engines for testing
type EngineBuilder struct {
	setup   *TestSetup
	options []EngineOption
}

// NewEngine starts building a test engine
func (s *TestSetup) NewEngine() *EngineBuilder {
	return &EngineBuilder{
		setup: s,
		options: []EngineOption{
			WithPollInterval(10 * time.Millisecond),
			WithQueueOptions(queue.WithBackoff(queue.Backoff{})),
		},
	}
}

// WithOptions adds engine options
func (b *EngineBuilder) WithOptions(options ...EngineOption) *EngineBuilder {
	b.options = append(b.options, options...)
	return b
}

// Build creates the engine
func (b *EngineBuilder) Build() *Engine {
	return NewEngine(b.setup.Stats, b.setup.Registry, b.options...)
}

// WorkerBuilder helps create workers for testing
type WorkerBuilder struct {
	setup    *TestSetup
	id       string
	timeout  time.Duration
	onResult ResultHandler
}

// NewWorker starts building a test worker
func (s *TestSetup) NewWorker() *WorkerBuilder {
	return &WorkerBuilder{
		setup:   s,
		id:      "test-worker",
		timeout: time.Second,
	}
}

// WithID sets the worker ID
func (b *WorkerBuilder) WithID(id string) *WorkerBuilder {
	b.id = id
	return b
}

// WithTimeout sets the per-job timeout
func (b *WorkerBuilder) WithTimeout(d time.Duration) *WorkerBuilder {
	b.timeout = d
	return b
}

// WithResultHandler sets the result callback
func (b *WorkerBuilder) WithResultHandler(h ResultHandler) *WorkerBuilder {
	b.onResult = h
	return b
}

// Build creates the worker
func (b *WorkerBuilder) Build() *Worker {
	return NewWorker(b.id, b.setup.Queue, b.setup.Registry, b.setup.Stats, b.timeout, b.onResult)
}

// ErrorTestCase represents a test case for error scenarios
type ErrorTestCase struct {
	Name        string
	SetupError  func(*TestSetup)
	ExpectedErr string
}

// RunConnectionErrorTests runs standard connection error tests
func RunConnectionErrorTests(t *testing.T, testCases []ErrorTestCase, testFunc func(*TestSetup) error) {
	for _, tc := range testCases {
		t.Run(tc.Name, func(t *testing.T) {
			setup := NewTestSetup()
			tc.SetupError(setup)

			err := testFunc(setup)

			if tc.ExpectedErr != "" {
				if err == nil {
					t.Errorf("Expected error containing '%s', got nil", tc.ExpectedErr)
				} else if !strings.Contains(err.Error(), tc.ExpectedErr) {
					t.Errorf("Expected error containing '%s', got '%s'", tc.ExpectedErr, err.Error())
				}
			} else if err != nil {
				t.Errorf("Expected no error, got: %v", err)
			}
		})
	}
}

// RegisterConnector binds a mock connector to target
func (s *TestSetup) RegisterConnector(target string) *MockConnector {
	c := NewMockConnector("mock")
	_ = s.Registry.Register(target, c)
	return c
}

// ClosedWake returns a closed wake channel, so Work returns once the queue is drained
func ClosedWake() <-chan struct{} {
	wake := make(chan struct{})
	close(wake)
	return wake
}

// WaitForStatus polls until the item reaches status or the timeout passes
func WaitForStatus(t *testing.T, q *queue.Queue[PublishJob], id string, status queue.Status, timeout time.Duration) queue.Item[PublishJob] {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for {
		item, ok := q.Get(id)
		if ok && item.Status == status {
			return item
		}
		if time.Now().After(deadline) {
			t.Fatalf("Timeout waiting for item %s to reach %s (last: %s)", id, status, item.Status)
		}
		time.Sleep(5 * time.Millisecond)
	}
}
