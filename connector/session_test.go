package connector

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	qerrors "github.com/BranchIntl/postqueue/errors"
	"github.com/stretchr/testify/assert"
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

// countingRefresher records every exchange it performs
type countingRefresher struct {
	calls int
	token Token
	err   error
}

func (r *countingRefresher) RefreshAccessToken(ctx context.Context, refreshToken string) (Token, error) {
	r.calls++
	if r.err != nil {
		return Token{}, r.err
	}
	return r.token, nil
}

func newTestSession(t *testing.T) (*Session, *testClock) {
	t.Helper()
	clock := &testClock{now: testNow}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s := NewSession("testplatform", AuthConfig{
		ClientID:    "client",
		RedirectURI: "https://example.com/callback",
		Scopes:      []string{"a", "b"},
	}, WithClock(clock.Now), WithLogger(logger))
	return s, clock
}

func accountExpiringIn(d time.Duration) SocialAccount {
	return SocialAccount{
		ID:           "user-1",
		Username:     "user",
		IsConnected:  true,
		AccessToken:  "old-token",
		RefreshToken: "refresh-token",
		TokenExpiry:  testNow.Add(d),
	}
}

func TestSession_IsAuthenticated(t *testing.T) {
	tests := []struct {
		name    string
		account *SocialAccount
		want    bool
	}{
		{name: "no account", account: nil, want: false},
		{name: "valid", account: ptr(accountExpiringIn(time.Hour)), want: true},
		{name: "expired", account: ptr(accountExpiringIn(-time.Minute)), want: false},
		{name: "disconnected", account: func() *SocialAccount {
			a := accountExpiringIn(time.Hour)
			a.IsConnected = false
			return &a
		}(), want: false},
		{name: "no token", account: func() *SocialAccount {
			a := accountExpiringIn(time.Hour)
			a.AccessToken = ""
			return &a
		}(), want: false},
		{name: "no expiry", account: func() *SocialAccount {
			a := accountExpiringIn(0)
			a.TokenExpiry = time.Time{}
			return &a
		}(), want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newTestSession(t)
			if tt.account != nil {
				s.SetAccount(*tt.account)
			}
			assert.Equal(t, tt.want, s.IsAuthenticated())
		})
	}
}

func TestSession_RefreshWithinThreshold(t *testing.T) {
	s, clock := newTestSession(t)
	s.SetAccount(accountExpiringIn(30 * time.Minute))

	refresher := &countingRefresher{token: Token{
		AccessToken:  "new-token",
		RefreshToken: "new-refresh",
		ExpiresIn:    2 * time.Hour,
	}}

	refreshed, err := s.RefreshIfNeeded(context.Background(), 60*time.Minute, refresher)
	require.NoError(t, err)
	assert.True(t, refreshed)
	assert.Equal(t, 1, refresher.calls)

	account, ok := s.Account()
	require.True(t, ok)
	assert.Equal(t, "new-token", account.AccessToken)
	assert.Equal(t, "new-refresh", account.RefreshToken)
	assert.Equal(t, clock.Now().Add(2*time.Hour), account.TokenExpiry)
	assert.True(t, account.TokenExpiry.After(testNow.Add(30*time.Minute)))
}

func TestSession_NoRefreshOutsideThreshold(t *testing.T) {
	s, _ := newTestSession(t)
	original := accountExpiringIn(120 * time.Minute)
	s.SetAccount(original)

	refresher := &countingRefresher{token: Token{AccessToken: "new-token"}}

	refreshed, err := s.RefreshIfNeeded(context.Background(), 60*time.Minute, refresher)
	require.NoError(t, err)
	assert.False(t, refreshed)
	assert.Equal(t, 0, refresher.calls)

	account, _ := s.Account()
	assert.Equal(t, "old-token", account.AccessToken)
	assert.Equal(t, original.TokenExpiry, account.TokenExpiry)
}

func TestSession_RefreshFailureKeepsAccount(t *testing.T) {
	s, _ := newTestSession(t)
	original := accountExpiringIn(10 * time.Minute)
	s.SetAccount(original)

	refresher := &countingRefresher{err: errors.New("upstream 500")}

	refreshed, err := s.RefreshIfNeeded(context.Background(), time.Hour, refresher)
	assert.False(t, refreshed)
	assert.ErrorIs(t, err, qerrors.ErrTokenRefreshFailed)
	assert.Contains(t, err.Error(), "upstream 500")

	account, ok := s.Account()
	require.True(t, ok)
	assert.Equal(t, original.AccessToken, account.AccessToken)
	assert.Equal(t, original.TokenExpiry, account.TokenExpiry)
	assert.True(t, s.IsAuthenticated())
}

func TestSession_RefreshWithoutRefreshToken(t *testing.T) {
	s, _ := newTestSession(t)
	account := accountExpiringIn(5 * time.Minute)
	account.RefreshToken = ""
	s.SetAccount(account)

	refresher := &countingRefresher{token: Token{AccessToken: "new"}}

	refreshed, err := s.RefreshIfNeeded(context.Background(), time.Hour, refresher)
	assert.False(t, refreshed)
	assert.ErrorIs(t, err, qerrors.ErrTokenRefreshFailed)
	assert.Equal(t, 0, refresher.calls)
}

func TestSession_RefreshWithoutAccount(t *testing.T) {
	s, _ := newTestSession(t)

	refreshed, err := s.RefreshIfNeeded(context.Background(), time.Hour, &countingRefresher{})
	assert.False(t, refreshed)
	assert.ErrorIs(t, err, qerrors.ErrNotAuthenticated)
}

func TestSession_RefreshKeepsRefreshTokenWhenNotRotated(t *testing.T) {
	s, _ := newTestSession(t)
	s.SetAccount(accountExpiringIn(time.Minute))

	refresher := RefreshFunc(func(ctx context.Context, refreshToken string) (Token, error) {
		assert.Equal(t, "refresh-token", refreshToken)
		return Token{AccessToken: "new-token", ExpiresIn: time.Hour}, nil
	})

	refreshed, err := s.RefreshIfNeeded(context.Background(), time.Hour, refresher)
	require.NoError(t, err)
	assert.True(t, refreshed)

	account, _ := s.Account()
	assert.Equal(t, "refresh-token", account.RefreshToken)
}

func TestSession_ClearAccountData(t *testing.T) {
	s, _ := newTestSession(t)
	s.SetAccount(accountExpiringIn(time.Hour))
	require.True(t, s.IsAuthenticated())

	s.ClearAccountData()

	assert.False(t, s.IsAuthenticated())
	_, ok := s.Account()
	assert.False(t, ok)
	assert.Empty(t, s.AccessToken())
}

func TestSession_AccountIsCopy(t *testing.T) {
	s, _ := newTestSession(t)
	s.SetAccount(accountExpiringIn(time.Hour))

	account, _ := s.Account()
	account.AccessToken = "tampered"

	assert.Equal(t, "old-token", s.AccessToken())
}

func TestSession_SetAccountStampsPlatform(t *testing.T) {
	s, _ := newTestSession(t)
	s.SetAccount(SocialAccount{ID: "x", Platform: "other"})

	account, _ := s.Account()
	assert.Equal(t, "testplatform", account.Platform)
}

func TestSession_State(t *testing.T) {
	s, clock := newTestSession(t)

	state, err := s.NewState()
	require.NoError(t, err)
	assert.NotEmpty(t, state)

	assert.False(t, s.CheckState("forged"))
	assert.False(t, s.CheckState(""))
	assert.True(t, s.CheckState(state))
	assert.False(t, s.CheckState(state), "state must be single use")

	expired, err := s.NewState()
	require.NoError(t, err)
	clock.Advance(stateTTL + time.Second)
	assert.False(t, s.CheckState(expired))
}

func TestSession_StateDeterministicWithSeededRandom(t *testing.T) {
	seed := bytes.Repeat([]byte{7}, 64)

	a := NewSession("p", AuthConfig{}, WithRandom(bytes.NewReader(seed)))
	b := NewSession("p", AuthConfig{}, WithRandom(bytes.NewReader(seed)))

	sa, err := a.NewState()
	require.NoError(t, err)
	sb, err := b.NewState()
	require.NoError(t, err)

	assert.Equal(t, sa, sb)
}

func TestSession_StateRandomFailure(t *testing.T) {
	s := NewSession("p", AuthConfig{}, WithRandom(bytes.NewReader(nil)))

	_, err := s.NewState()
	assert.Error(t, err)
}

func TestSession_Acquire(t *testing.T) {
	s, _ := newTestSession(t)

	release, err := s.Acquire(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = s.Acquire(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	release()
	release() // second release is a no-op

	again, err := s.Acquire(context.Background())
	require.NoError(t, err)
	again()
}

func TestSession_Results(t *testing.T) {
	s, _ := newTestSession(t)

	failed := s.ErrorResult(qerrors.ErrNotAuthenticated)
	assert.False(t, failed.Success)
	assert.Equal(t, "not authenticated", failed.Error)
	assert.Equal(t, "testplatform", failed.Platform)
	assert.Equal(t, testNow, failed.Timestamp)
	assert.ErrorIs(t, failed.Cause, qerrors.ErrNotAuthenticated)

	assert.NotEmpty(t, s.ErrorResult(nil).Error)

	ok := s.SuccessResult("123", "https://example.com/123")
	assert.True(t, ok.Success)
	assert.Equal(t, "123", ok.PostID)
	assert.Empty(t, ok.Error)
}

func TestSession_ConfigIsCopied(t *testing.T) {
	cfg := AuthConfig{ClientID: "c", Scopes: []string{"a"}}
	s := NewSession("p", cfg)

	cfg.Scopes[0] = "mutated"
	got := s.Config()
	got.Scopes = append(got.Scopes, "extra")

	assert.Equal(t, []string{"a"}, s.Config().Scopes)
}

func ptr[T any](v T) *T { return &v }
