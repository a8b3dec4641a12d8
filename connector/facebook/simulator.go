package facebook

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/BranchIntl/postqueue/connector"
)

// Remote operation names, used for fault injection and call accounting
const (
	OpExchangeCode    = "exchange_code"
	OpExchangeToken   = "exchange_token"
	OpFetchUser       = "fetch_user"
	OpFetchPages      = "fetch_pages"
	OpSubmitPost      = "submit_post"
	OpSubmitGroupPost = "submit_group_post"
	OpFetchInsights   = "fetch_insights"
	OpRevokeToken     = "revoke_token"
)

const (
	simulatedTokenTTL = 2 * time.Hour
	idAlphabet        = "0123456789abcdefghijklmnopqrstuvwxyz"
)

// graphError is a rejection by the remote side. Rejections are permanent:
// repeating the same request cannot succeed.
type graphError struct {
	msg string
}

func (e *graphError) Error() string   { return e.msg }
func (e *graphError) Temporary() bool { return false }

var (
	errInvalidCode    = &graphError{"invalid authorization code"}
	errInvalidToken   = &graphError{"invalid or revoked access token"}
	errMissingRefresh = &graphError{"refresh token required"}
)

// SubmittedPost is a post accepted by the Simulator
type SubmittedPost struct {
	ID          string
	TargetID    string
	GroupID     string
	Fields      PostFields
	AccessToken string
	CreatedAt   time.Time
}

// Simulator is an in-process GraphAPI. It is deterministic for a given seed
// and clock, and lets tests inject failures and latency per operation.
type Simulator struct {
	mu       sync.Mutex
	rng      *rand.Rand
	clock    func() time.Time
	latency  time.Duration
	failures map[string]error
	calls    map[string]int
	revoked  map[string]bool
	posts    []SubmittedPost
}

// NewSimulator creates a simulator seeded with seed. A nil clock uses time.Now.
func NewSimulator(seed uint64, clock func() time.Time) *Simulator {
	if clock == nil {
		clock = time.Now
	}
	return &Simulator{
		rng:      rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		clock:    clock,
		failures: make(map[string]error),
		calls:    make(map[string]int),
		revoked:  make(map[string]bool),
	}
}

// SetError makes every call to op fail with err. A nil err clears it.
func (s *Simulator) SetError(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err == nil {
		delete(s.failures, op)
		return
	}
	s.failures[op] = err
}

// SetLatency delays every call by d, or until its context is done
func (s *Simulator) SetLatency(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latency = d
}

// Calls returns how many times op was invoked
func (s *Simulator) Calls(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op]
}

// Posts returns every accepted post in submission order
func (s *Simulator) Posts() []SubmittedPost {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]SubmittedPost(nil), s.posts...)
}

// Revoked reports whether token was revoked
func (s *Simulator) Revoked(token string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.revoked[token]
}

func (s *Simulator) ExchangeCode(ctx context.Context, cfg connector.AuthConfig, code string) (connector.Token, error) {
	if err := s.begin(ctx, OpExchangeCode); err != nil {
		return connector.Token{}, err
	}
	if code == "" {
		return connector.Token{}, errInvalidCode
	}
	return s.newToken(), nil
}

func (s *Simulator) ExchangeToken(ctx context.Context, cfg connector.AuthConfig, refreshToken string) (connector.Token, error) {
	if err := s.begin(ctx, OpExchangeToken); err != nil {
		return connector.Token{}, err
	}
	if refreshToken == "" {
		return connector.Token{}, errMissingRefresh
	}
	return s.newToken(), nil
}

func (s *Simulator) FetchUser(ctx context.Context, accessToken string) (User, error) {
	if err := s.begin(ctx, OpFetchUser); err != nil {
		return User{}, err
	}
	if err := s.checkToken(accessToken); err != nil {
		return User{}, err
	}
	return User{
		ID:         "fb_user_" + s.randomID(),
		Name:       "Simulated Facebook User",
		Email:      "user.fb@example.com",
		PictureURL: "https://placehold.co/400x400/4267B2/ffffff?text=FB",
	}, nil
}

func (s *Simulator) FetchPages(ctx context.Context, userToken string) ([]connector.Page, error) {
	if err := s.begin(ctx, OpFetchPages); err != nil {
		return nil, err
	}
	if err := s.checkToken(userToken); err != nil {
		return nil, err
	}
	return []connector.Page{
		{ID: "fb_page_1", Name: "Simulated Business Page", Category: "Business", AccessToken: "fb_page_token_1" + s.randomID()},
		{ID: "fb_page_2", Name: "Simulated Store Page", Category: "Retail", AccessToken: "fb_page_token_2" + s.randomID()},
	}, nil
}

func (s *Simulator) SubmitPost(ctx context.Context, targetID string, fields PostFields, accessToken string) (string, error) {
	if err := s.begin(ctx, OpSubmitPost); err != nil {
		return "", err
	}
	if err := s.checkToken(accessToken); err != nil {
		return "", err
	}

	id := targetID + "_" + s.randomID()
	s.record(SubmittedPost{ID: id, TargetID: targetID, Fields: fields, AccessToken: accessToken})
	return id, nil
}

func (s *Simulator) SubmitGroupPost(ctx context.Context, groupID string, fields PostFields, accessToken string) (string, error) {
	if err := s.begin(ctx, OpSubmitGroupPost); err != nil {
		return "", err
	}
	if err := s.checkToken(accessToken); err != nil {
		return "", err
	}

	id := s.randomID()
	s.record(SubmittedPost{ID: id, GroupID: groupID, Fields: fields, AccessToken: accessToken})
	return id, nil
}

func (s *Simulator) FetchInsights(ctx context.Context, postID, accessToken string) ([]connector.Insight, error) {
	if err := s.begin(ctx, OpFetchInsights); err != nil {
		return nil, err
	}
	if err := s.checkToken(accessToken); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return []connector.Insight{
		{Name: "post_impressions", Period: "lifetime", Value: s.rng.Int64N(10000)},
		{Name: "post_engaged_users", Period: "lifetime", Value: s.rng.Int64N(1000)},
	}, nil
}

func (s *Simulator) RevokeToken(ctx context.Context, accessToken string) error {
	if err := s.begin(ctx, OpRevokeToken); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.revoked[accessToken] = true
	return nil
}

// begin accounts for a call, applies latency and returns any injected failure
func (s *Simulator) begin(ctx context.Context, op string) error {
	s.mu.Lock()
	s.calls[op]++
	latency := s.latency
	injected := s.failures[op]
	s.mu.Unlock()

	if latency > 0 {
		timer := time.NewTimer(latency)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return injected
}

func (s *Simulator) checkToken(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if token == "" || s.revoked[token] {
		return errInvalidToken
	}
	return nil
}

func (s *Simulator) newToken() connector.Token {
	return connector.Token{
		AccessToken:  "fb_access_" + s.randomID(),
		RefreshToken: "fb_refresh_" + s.randomID(),
		ExpiresIn:    simulatedTokenTTL,
	}
}

func (s *Simulator) record(post SubmittedPost) {
	s.mu.Lock()
	defer s.mu.Unlock()
	post.CreatedAt = s.clock()
	s.posts = append(s.posts, post)
}

func (s *Simulator) randomID() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	b := make([]byte, 13)
	for i := range b {
		b[i] = idAlphabet[s.rng.IntN(len(idAlphabet))]
	}
	return string(b)
}
