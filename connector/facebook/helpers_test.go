package facebook

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/BranchIntl/postqueue/connector"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// TestSetup bundles a connector with the simulator behind it
type TestSetup struct {
	Clock     *testClock
	API       *Simulator
	Connector *Connector
}

func testConfig() connector.AuthConfig {
	return connector.AuthConfig{
		ClientID:     "fb-client",
		ClientSecret: "fb-secret",
		RedirectURI:  "https://app.example.com/oauth/facebook",
		Scopes:       []string{"pages_manage_posts", "pages_read_engagement", "publish_to_groups"},
	}
}

func NewTestSetup(t *testing.T, opts ...Option) *TestSetup {
	t.Helper()

	clock := &testClock{now: testNow}
	api := NewSimulator(42, clock.Now)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	base := []Option{WithClock(clock.Now), WithLogger(logger)}
	c := New(testConfig(), api, append(base, opts...)...)

	return &TestSetup{Clock: clock, API: api, Connector: c}
}

// Authorize completes the OAuth flow against the simulator
func (s *TestSetup) Authorize(t *testing.T) connector.SocialAccount {
	t.Helper()

	account, err := s.Connector.HandleAuthorizationCode(context.Background(), "auth-code")
	require.NoError(t, err)
	return account
}

func textOfLength(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = 'a'
	}
	return string(b)
}

func timePtr(t time.Time) *time.Time { return &t }
