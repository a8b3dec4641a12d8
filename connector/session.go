package connector

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/BranchIntl/postqueue/errors"
	"github.com/google/uuid"
)

// stateTTL bounds how long an issued OAuth state value stays redeemable
const stateTTL = 15 * time.Minute

// SessionOption configures a Session
type SessionOption func(*Session)

// WithClock sets the time source used for expiry checks and timestamps
func WithClock(clock func() time.Time) SessionOption {
	return func(s *Session) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithRandom sets the entropy source used for OAuth state values
func WithRandom(r io.Reader) SessionOption {
	return func(s *Session) {
		if r != nil {
			s.random = r
		}
	}
}

// WithLogger sets the session logger
func WithLogger(logger *slog.Logger) SessionOption {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Session is the account holder embedded by platform connectors. It owns the
// SocialAccount, issues and checks OAuth state values, and serializes
// authenticated operations through Acquire.
type Session struct {
	platform string
	config   AuthConfig
	clock    func() time.Time
	random   io.Reader
	logger   *slog.Logger

	// sem admits one authenticated operation at a time
	sem chan struct{}

	mu      sync.Mutex
	account *SocialAccount
	states  map[string]time.Time
}

// NewSession creates a session for platform. cfg is copied.
func NewSession(platform string, cfg AuthConfig, opts ...SessionOption) *Session {
	s := &Session{
		platform: platform,
		config:   cfg.clone(),
		clock:    time.Now,
		random:   rand.Reader,
		logger:   slog.Default(),
		sem:      make(chan struct{}, 1),
		states:   make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("platform", platform)
	return s
}

func (s *Session) Platform() string        { return s.platform }
func (s *Session) Config() AuthConfig      { return s.config.clone() }
func (s *Session) Now() time.Time          { return s.clock() }
func (s *Session) Logger() *slog.Logger    { return s.logger }
func (s *Session) Random() io.Reader       { return s.random }
func (s *Session) Clock() func() time.Time { return s.clock }

// Acquire blocks until the caller holds the session's operation slot or ctx
// is done. The returned func releases the slot.
func (s *Session) Acquire(ctx context.Context) (func(), error) {
	select {
	case s.sem <- struct{}{}:
		var once sync.Once
		return func() { once.Do(func() { <-s.sem }) }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// NewState issues a random OAuth state value
func (s *Session) NewState() (string, error) {
	id, err := uuid.NewRandomFromReader(s.random)
	if err != nil {
		return "", fmt.Errorf("generate oauth state: %w", err)
	}
	state := id.String()

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock()
	for k, issued := range s.states {
		if now.Sub(issued) > stateTTL {
			delete(s.states, k)
		}
	}
	s.states[state] = now
	return state, nil
}

// CheckState reports whether state was issued by this session and not yet
// used. A state value is accepted at most once. Connectors never call it
// themselves: whoever receives the OAuth redirect checks the state against
// the session that issued the authorization URL.
func (s *Session) CheckState(state string) bool {
	if state == "" {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock()
	for k, issued := range s.states {
		if subtle.ConstantTimeCompare([]byte(k), []byte(state)) == 1 {
			delete(s.states, k)
			return now.Sub(issued) <= stateTTL
		}
	}
	return false
}

// SetAccount replaces the held account
func (s *Session) SetAccount(account SocialAccount) {
	s.mu.Lock()
	defer s.mu.Unlock()

	account.Platform = s.platform
	s.account = &account
}

// Account returns a copy of the held account
func (s *Session) Account() (SocialAccount, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.account == nil {
		return SocialAccount{}, false
	}
	return *s.account, true
}

// AccessToken returns the held user-level access token, if any
func (s *Session) AccessToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.account == nil {
		return ""
	}
	return s.account.AccessToken
}

// IsAuthenticated reports whether a connected account with an unexpired
// access token is held. A zero expiry never expires.
func (s *Session) IsAuthenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.authenticatedLocked(s.clock())
}

func (s *Session) authenticatedLocked(now time.Time) bool {
	a := s.account
	if a == nil || !a.IsConnected || a.AccessToken == "" {
		return false
	}
	return a.TokenExpiry.IsZero() || now.Before(a.TokenExpiry)
}

// RefreshIfNeeded renews the access token when it expires within threshold.
//
// It returns (false, nil) when the token is still fresh, (true, nil) after a
// successful renewal, and an error wrapping ErrTokenRefreshFailed when the
// renewal was needed but failed. On failure the held account is unchanged.
// The caller should hold the operation slot from Acquire.
func (s *Session) RefreshIfNeeded(ctx context.Context, threshold time.Duration, refresher TokenRefresher) (bool, error) {
	s.mu.Lock()
	if s.account == nil || s.account.AccessToken == "" {
		s.mu.Unlock()
		return false, errors.ErrNotAuthenticated
	}
	now := s.clock()
	expiry := s.account.TokenExpiry
	if expiry.IsZero() || expiry.Sub(now) > threshold {
		s.mu.Unlock()
		return false, nil
	}
	refreshToken := s.account.RefreshToken
	accountID := s.account.ID
	s.mu.Unlock()

	if refreshToken == "" {
		return false, fmt.Errorf("%w: no refresh token", errors.ErrTokenRefreshFailed)
	}
	if refresher == nil {
		return false, fmt.Errorf("%w: no refresher configured", errors.ErrTokenRefreshFailed)
	}

	token, err := refresher.RefreshAccessToken(ctx, refreshToken)
	if err != nil {
		s.logger.Warn("Token refresh failed", "account", accountID, "error", err)
		return false, fmt.Errorf("%w: %w", errors.ErrTokenRefreshFailed, err)
	}
	if token.AccessToken == "" {
		return false, fmt.Errorf("%w: empty access token", errors.ErrTokenRefreshFailed)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// The account may have been cleared while the exchange was in flight.
	if s.account == nil || s.account.ID != accountID {
		return false, fmt.Errorf("%w: account changed during refresh", errors.ErrTokenRefreshFailed)
	}

	now = s.clock()
	s.account.AccessToken = token.AccessToken
	if token.RefreshToken != "" {
		s.account.RefreshToken = token.RefreshToken
	}
	if token.ExpiresIn > 0 {
		s.account.TokenExpiry = now.Add(token.ExpiresIn)
	} else {
		s.account.TokenExpiry = time.Time{}
	}
	s.account.LastSyncTime = now

	s.logger.Info("Access token refreshed", "account", accountID, "expires", s.account.TokenExpiry)
	return true, nil
}

// ClearAccountData drops the held account and any outstanding state values
func (s *Session) ClearAccountData() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.account = nil
	s.states = make(map[string]time.Time)
}

// ErrorResult builds a failed PostResult for err
func (s *Session) ErrorResult(err error) PostResult {
	msg := "unknown error"
	if err != nil && err.Error() != "" {
		msg = err.Error()
	}
	return PostResult{
		Success:   false,
		Error:     msg,
		Timestamp: s.clock(),
		Platform:  s.platform,
		Cause:     err,
	}
}

// SuccessResult builds a successful PostResult
func (s *Session) SuccessResult(postID, url string) PostResult {
	return PostResult{
		Success:   true,
		PostID:    postID,
		URL:       url,
		Timestamp: s.clock(),
		Platform:  s.platform,
	}
}
