package core

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/BranchIntl/postqueue/connector"
)

// MockJobCall represents a job call for testing
type MockJobCall struct {
	JobID    string
	Target   string
	Attempt  int
	WorkerID string
	Err      error
}

// MockStatistics implements the Statistics interface for testing
type MockStatistics struct {
	mu              sync.RWMutex
	connected       bool
	connectError    error
	closeError      error
	healthError     error
	registerError   error
	unregisterError error
	recordError     error
	workers         map[string]WorkerInfo
	jobsStarted     []MockJobCall
	jobsCompleted   []MockJobCall
	jobsFailed      []MockJobCall
}

func NewMockStatistics() *MockStatistics {
	return &MockStatistics{
		workers:       make(map[string]WorkerInfo),
		jobsStarted:   make([]MockJobCall, 0),
		jobsCompleted: make([]MockJobCall, 0),
		jobsFailed:    make([]MockJobCall, 0),
	}
}

func (m *MockStatistics) RegisterWorker(ctx context.Context, worker WorkerInfo) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.registerError != nil {
		return m.registerError
	}

	m.workers[worker.ID] = worker
	return nil
}

func (m *MockStatistics) UnregisterWorker(ctx context.Context, workerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.unregisterError != nil {
		return m.unregisterError
	}

	delete(m.workers, workerID)
	return nil
}

func (m *MockStatistics) RecordJobStarted(ctx context.Context, job JobInfo, worker WorkerInfo) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.recordError != nil {
		return m.recordError
	}

	m.jobsStarted = append(m.jobsStarted, MockJobCall{
		JobID:    job.ID,
		Target:   job.Target,
		Attempt:  job.Attempt,
		WorkerID: worker.ID,
	})
	return nil
}

func (m *MockStatistics) RecordJobCompleted(ctx context.Context, job JobInfo, worker WorkerInfo, duration time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.recordError != nil {
		return m.recordError
	}

	m.jobsCompleted = append(m.jobsCompleted, MockJobCall{
		JobID:    job.ID,
		Target:   job.Target,
		Attempt:  job.Attempt,
		WorkerID: worker.ID,
	})
	return nil
}

func (m *MockStatistics) RecordJobFailed(ctx context.Context, job JobInfo, worker WorkerInfo, err error, duration time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.recordError != nil {
		return m.recordError
	}

	m.jobsFailed = append(m.jobsFailed, MockJobCall{
		JobID:    job.ID,
		Target:   job.Target,
		Attempt:  job.Attempt,
		WorkerID: worker.ID,
		Err:      err,
	})
	return nil
}

func (m *MockStatistics) GetWorkerStats(ctx context.Context, workerID string) (WorkerStats, error) {
	return WorkerStats{ID: workerID}, nil
}

func (m *MockStatistics) GetTargetStats(ctx context.Context, target string) (TargetStats, error) {
	return TargetStats{Target: target}, nil
}

func (m *MockStatistics) GetGlobalStats(ctx context.Context) (GlobalStats, error) {
	return GlobalStats{}, nil
}

func (m *MockStatistics) Connect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.connectError != nil {
		return m.connectError
	}

	m.connected = true
	return nil
}

func (m *MockStatistics) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.connected = false
	return m.closeError
}

func (m *MockStatistics) Health() error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.healthError != nil {
		return m.healthError
	}

	if !m.connected {
		return fmt.Errorf("not connected")
	}

	return nil
}

func (m *MockStatistics) Type() string {
	return "mock"
}

// Test helpers
func (m *MockStatistics) SetConnectError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connectError = err
}

func (m *MockStatistics) SetCloseError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closeError = err
}

func (m *MockStatistics) SetHealthError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.healthError = err
}

func (m *MockStatistics) SetRecordError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recordError = err
}

func (m *MockStatistics) GetJobsStarted() []MockJobCall {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]MockJobCall(nil), m.jobsStarted...)
}

func (m *MockStatistics) GetJobsCompleted() []MockJobCall {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]MockJobCall(nil), m.jobsCompleted...)
}

func (m *MockStatistics) GetJobsFailed() []MockJobCall {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]MockJobCall(nil), m.jobsFailed...)
}

func (m *MockStatistics) WorkerCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.workers)
}

// MockRegistry implements the Registry interface for testing
type MockRegistry struct {
	mu         sync.RWMutex
	connectors map[string]connector.Connector
}

func NewMockRegistry() *MockRegistry {
	return &MockRegistry{
		connectors: make(map[string]connector.Connector),
	}
}

func (m *MockRegistry) Register(target string, c connector.Connector) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.connectors[target] = c
	return nil
}

func (m *MockRegistry) Get(target string) (connector.Connector, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.connectors[target]
	return c, ok
}

// PublishFunc decides the outcome of a MockConnector publish call
type PublishFunc func(ctx context.Context, content connector.PostContent) connector.PostResult

// MockConnector implements connector.Connector for testing
type MockConnector struct {
	mu        sync.Mutex
	platform  string
	publish   PublishFunc
	published []connector.PostContent
	scheduled []time.Time
}

func NewMockConnector(platform string) *MockConnector {
	m := &MockConnector{platform: platform}
	m.publish = func(ctx context.Context, content connector.PostContent) connector.PostResult {
		return connector.PostResult{Success: true, PostID: "post-1", Platform: platform, Timestamp: time.Now()}
	}
	return m
}

// OnPublish replaces the publish behaviour
func (m *MockConnector) OnPublish(fn PublishFunc) *MockConnector {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.publish = fn
	return m
}

func (m *MockConnector) Platform() string { return m.platform }

func (m *MockConnector) AuthorizationURL() (string, error) {
	return "https://example.com/oauth", nil
}

func (m *MockConnector) HandleAuthorizationCode(ctx context.Context, code string) (connector.SocialAccount, error) {
	return connector.SocialAccount{Platform: m.platform, IsConnected: true}, nil
}

func (m *MockConnector) RefreshAccessTokenIfNeeded(ctx context.Context) (bool, error) {
	return false, nil
}

func (m *MockConnector) PublishPost(ctx context.Context, content connector.PostContent) connector.PostResult {
	m.mu.Lock()
	m.published = append(m.published, content)
	fn := m.publish
	m.mu.Unlock()

	return fn(ctx, content)
}

func (m *MockConnector) SchedulePost(ctx context.Context, content connector.PostContent, at time.Time) connector.PostResult {
	m.mu.Lock()
	m.scheduled = append(m.scheduled, at)
	m.mu.Unlock()

	return m.PublishPost(ctx, content)
}

func (m *MockConnector) PostMetrics(ctx context.Context, postID string) (connector.Metrics, error) {
	return connector.Metrics{PostID: postID, Platform: m.platform}, nil
}

func (m *MockConnector) ValidateContent(content connector.PostContent) error {
	return connector.Violations(m.platform, connector.ValidateBase(content))
}

func (m *MockConnector) IsAuthenticated() bool { return true }

func (m *MockConnector) Account() (connector.SocialAccount, bool) {
	return connector.SocialAccount{Platform: m.platform, IsConnected: true}, true
}

func (m *MockConnector) ClearAccountData() {}

func (m *MockConnector) Disconnect(ctx context.Context) error { return nil }

func (m *MockConnector) PublishCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.published)
}

func (m *MockConnector) Scheduled() []time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]time.Time(nil), m.scheduled...)
}

// MockGroupConnector adds group publishing to MockConnector
type MockGroupConnector struct {
	*MockConnector
	groups []string
}

func NewMockGroupConnector(platform string) *MockGroupConnector {
	return &MockGroupConnector{MockConnector: NewMockConnector(platform)}
}

func (m *MockGroupConnector) PublishToGroup(ctx context.Context, groupID string, content connector.PostContent) connector.PostResult {
	m.mu.Lock()
	m.groups = append(m.groups, groupID)
	m.mu.Unlock()

	return m.MockConnector.PublishPost(ctx, content)
}

func (m *MockGroupConnector) Groups() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.groups...)
}
