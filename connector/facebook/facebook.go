// Package facebook implements connector.Connector on top of the Facebook
// Graph API. Publishing goes to the user's own feed, or to a managed page
// once one is bound with SetPage.
package facebook

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/BranchIntl/postqueue/connector"
	"github.com/BranchIntl/postqueue/errors"
	"github.com/jellydator/ttlcache/v3"
)

const (
	// Platform is the tag stored on accounts and results
	Platform = "facebook"

	apiVersion       = "v17.0"
	authorizeURL     = "https://www.facebook.com/" + apiVersion + "/dialog/oauth"
	refreshThreshold = 60 * time.Minute

	defaultPageCacheTTL = 5 * time.Minute
)

var (
	_ connector.Connector      = (*Connector)(nil)
	_ connector.PageManager    = (*Connector)(nil)
	_ connector.GroupPublisher = (*Connector)(nil)
)

type options struct {
	pageID       string
	clock        func() time.Time
	random       io.Reader
	logger       *slog.Logger
	pageCacheTTL time.Duration
}

// Option configures a Connector
type Option func(*options)

// WithPageID binds the connector to a page once authorized
func WithPageID(pageID string) Option {
	return func(o *options) {
		o.pageID = pageID
	}
}

// WithClock sets the time source
func WithClock(clock func() time.Time) Option {
	return func(o *options) {
		o.clock = clock
	}
}

// WithRandom sets the entropy source for OAuth state values
func WithRandom(r io.Reader) Option {
	return func(o *options) {
		o.random = r
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithPageCacheTTL sets how long a fetched page list is reused
func WithPageCacheTTL(ttl time.Duration) Option {
	return func(o *options) {
		if ttl > 0 {
			o.pageCacheTTL = ttl
		}
	}
}

// Connector publishes to Facebook profiles, pages and groups
type Connector struct {
	*connector.Session

	api   GraphAPI
	pages *ttlcache.Cache[string, []connector.Page]

	mu        sync.Mutex
	pageID    string
	pageToken string
}

// New creates a Facebook connector talking to api
func New(cfg connector.AuthConfig, api GraphAPI, opts ...Option) *Connector {
	o := &options{pageCacheTTL: defaultPageCacheTTL}
	for _, opt := range opts {
		opt(o)
	}

	session := connector.NewSession(Platform, cfg,
		connector.WithClock(o.clock),
		connector.WithRandom(o.random),
		connector.WithLogger(o.logger),
	)

	return &Connector{
		Session: session,
		api:     api,
		pages: ttlcache.New(
			ttlcache.WithTTL[string, []connector.Page](o.pageCacheTTL),
		),
		pageID: o.pageID,
	}
}

// AuthorizationURL returns the OAuth dialog URL with a fresh state value
func (c *Connector) AuthorizationURL() (string, error) {
	state, err := c.NewState()
	if err != nil {
		return "", err
	}

	cfg := c.Config()
	params := url.Values{}
	params.Set("client_id", cfg.ClientID)
	params.Set("redirect_uri", cfg.RedirectURI)
	params.Set("scope", strings.Join(cfg.Scopes, ","))
	params.Set("response_type", "code")
	params.Set("state", state)

	return authorizeURL + "?" + params.Encode(), nil
}

// HandleAuthorizationCode exchanges code for a user token, loads the
// profile and, when a page was configured, derives its page token. It does
// not look at the OAuth state; the redirect handler checks it with
// CheckState before passing code on.
func (c *Connector) HandleAuthorizationCode(ctx context.Context, code string) (connector.SocialAccount, error) {
	release, err := c.Acquire(ctx)
	if err != nil {
		return connector.SocialAccount{}, err
	}
	defer release()

	cfg := c.Config()
	token, err := c.api.ExchangeCode(ctx, cfg, code)
	if err != nil {
		c.Logger().Error("Authorization code exchange failed", "error", err)
		return connector.SocialAccount{}, fmt.Errorf("%w: %w", errors.ErrAuthorizationFailed, err)
	}

	user, err := c.api.FetchUser(ctx, token.AccessToken)
	if err != nil {
		c.Logger().Error("Failed to fetch user profile", "error", err)
		return connector.SocialAccount{}, fmt.Errorf("%w: %w", errors.ErrAuthorizationFailed, err)
	}

	now := c.Now()
	account := connector.SocialAccount{
		ID:                user.ID,
		Platform:          Platform,
		Username:          user.Name,
		DisplayName:       user.Name,
		ProfilePictureURL: user.PictureURL,
		IsConnected:       true,
		LastSyncTime:      now,
		AccessToken:       token.AccessToken,
		RefreshToken:      token.RefreshToken,
	}
	if token.ExpiresIn > 0 {
		account.TokenExpiry = now.Add(token.ExpiresIn)
	}
	c.SetAccount(account)
	c.pages.DeleteAll()

	if pageID := c.boundPageID(); pageID != "" {
		if _, err := c.bindPage(ctx, pageID, token.AccessToken); err != nil {
			c.dropSession()
			return connector.SocialAccount{}, fmt.Errorf("%w: %w", errors.ErrAuthorizationFailed, err)
		}
	}

	c.Logger().Info("Account connected", "account", account.ID)
	return account, nil
}

// RefreshAccessTokenIfNeeded renews the user token when it expires within
// the hour and re-derives the bound page token from it.
func (c *Connector) RefreshAccessTokenIfNeeded(ctx context.Context) (bool, error) {
	release, err := c.Acquire(ctx)
	if err != nil {
		return false, err
	}
	defer release()

	return c.refresh(ctx)
}

// PublishPost publishes content immediately
func (c *Connector) PublishPost(ctx context.Context, content connector.PostContent) connector.PostResult {
	release, err := c.begin(ctx)
	if err != nil {
		return c.ErrorResult(err)
	}
	defer release()

	if err := c.ValidateContent(content); err != nil {
		return c.ErrorResult(err)
	}

	return c.submit(ctx, "publish", FormatContent(content))
}

// SchedulePost creates an unpublished post that goes live at at
func (c *Connector) SchedulePost(ctx context.Context, content connector.PostContent, at time.Time) connector.PostResult {
	release, err := c.begin(ctx)
	if err != nil {
		return c.ErrorResult(err)
	}
	defer release()

	content.ScheduledTime = &at
	if err := c.ValidateContent(content); err != nil {
		return c.ErrorResult(err)
	}

	return c.submit(ctx, "schedule", scheduled(FormatContent(content), at))
}

// PublishToGroup posts content into a group as the user
func (c *Connector) PublishToGroup(ctx context.Context, groupID string, content connector.PostContent) connector.PostResult {
	release, err := c.begin(ctx)
	if err != nil {
		return c.ErrorResult(err)
	}
	defer release()

	violations := Validate(content, c.Now())
	if strings.TrimSpace(groupID) == "" {
		violations = append(violations, "group id is required")
	}
	if err := connector.Violations(Platform, violations); err != nil {
		return c.ErrorResult(err)
	}

	token := c.AccessToken()
	if token == "" {
		return c.ErrorResult(errors.ErrNoAccessToken)
	}

	id, err := c.api.SubmitGroupPost(ctx, groupID, FormatContent(content), token)
	if err != nil {
		c.Logger().Error("Group post failed", "group", groupID, "error", err)
		return c.ErrorResult(errors.NewRemoteError(Platform, "publish to group", err))
	}

	c.Logger().Info("Group post published", "group", groupID, "post", id)
	return c.SuccessResult(id, groupPostURL(groupID, id))
}

// PostMetrics fetches engagement insights for a post
func (c *Connector) PostMetrics(ctx context.Context, postID string) (connector.Metrics, error) {
	release, err := c.begin(ctx)
	if err != nil {
		return connector.Metrics{}, err
	}
	defer release()

	_, token, err := c.target()
	if err != nil {
		return connector.Metrics{}, err
	}

	insights, err := c.api.FetchInsights(ctx, postID, token)
	if err != nil {
		c.Logger().Error("Failed to fetch post insights", "post", postID, "error", err)
		return connector.Metrics{}, errors.NewRemoteError(Platform, "fetch insights", err)
	}

	return connector.Metrics{
		PostID:      postID,
		Platform:    Platform,
		Insights:    insights,
		RetrievedAt: c.Now(),
	}, nil
}

// ValidateContent applies the shared rules plus the text ceiling and the
// scheduling window
func (c *Connector) ValidateContent(content connector.PostContent) error {
	return connector.Violations(Platform, Validate(content, c.Now()))
}

// SetPage binds pageID and fetches its page token. It returns false when
// the user does not manage that page.
func (c *Connector) SetPage(ctx context.Context, pageID string) (bool, error) {
	release, err := c.Acquire(ctx)
	if err != nil {
		return false, err
	}
	defer release()

	if !c.IsAuthenticated() {
		return false, errors.ErrNotAuthenticated
	}
	return c.bindPage(ctx, pageID, c.AccessToken())
}

// Pages lists the pages the user manages
func (c *Connector) Pages(ctx context.Context) ([]connector.Page, error) {
	release, err := c.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	pages, err := c.fetchPages(ctx, c.AccessToken())
	if err != nil {
		return nil, err
	}
	return append([]connector.Page(nil), pages...), nil
}

// BoundPage returns the page posts are published to, if any
func (c *Connector) BoundPage() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pageID, c.pageID != "" && c.pageToken != ""
}

// ClearAccountData drops the user account together with the page binding
func (c *Connector) ClearAccountData() {
	c.clear()
}

// Disconnect revokes the user token and clears all account data. A failed
// revocation is logged; the local data is cleared regardless.
func (c *Connector) Disconnect(ctx context.Context) error {
	release, err := c.Acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

	if token := c.AccessToken(); token != "" {
		if err := c.api.RevokeToken(ctx, token); err != nil {
			c.Logger().Warn("Token revocation failed", "error", err)
		}
	}

	c.clear()
	c.Logger().Info("Account disconnected")
	return nil
}

// begin acquires the operation slot and makes sure the held token is usable.
// On success the caller must invoke the returned release func.
func (c *Connector) begin(ctx context.Context) (func(), error) {
	release, err := c.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	if !c.IsAuthenticated() {
		release()
		return nil, errors.ErrNotAuthenticated
	}
	if _, err := c.refresh(ctx); err != nil {
		release()
		return nil, err
	}
	return release, nil
}

// refresh runs the shared refresh protocol. Caller holds the slot.
func (c *Connector) refresh(ctx context.Context) (bool, error) {
	refresher := connector.RefreshFunc(func(ctx context.Context, refreshToken string) (connector.Token, error) {
		return c.api.ExchangeToken(ctx, c.Config(), refreshToken)
	})

	refreshed, err := c.RefreshIfNeeded(ctx, refreshThreshold, refresher)
	if err != nil || !refreshed {
		return false, err
	}

	c.pages.DeleteAll()
	if pageID := c.boundPageID(); pageID != "" {
		if _, err := c.bindPage(ctx, pageID, c.AccessToken()); err != nil {
			// the user connection stays valid; publishing keeps the old page token
			c.Logger().Warn("Failed to refresh page token", "page", pageID, "error", err)
		}
	}
	return true, nil
}

// submit sends fields to the bound page or the user feed
func (c *Connector) submit(ctx context.Context, op string, fields PostFields) connector.PostResult {
	target, token, err := c.target()
	if err != nil {
		return c.ErrorResult(err)
	}

	id, err := c.api.SubmitPost(ctx, target, fields, token)
	if err != nil {
		c.Logger().Error("Post submission failed", "op", op, "target", target, "error", err)
		return c.ErrorResult(errors.NewRemoteError(Platform, op, err))
	}

	c.Logger().Info("Post submitted", "op", op, "target", target, "post", id)
	return c.SuccessResult(id, postURL(id))
}

// target returns the feed to post to and the token that may post there
func (c *Connector) target() (string, string, error) {
	c.mu.Lock()
	pageID, pageToken := c.pageID, c.pageToken
	c.mu.Unlock()

	if pageID != "" {
		if pageToken == "" {
			return "", "", errors.ErrNoAccessToken
		}
		return pageID, pageToken, nil
	}

	token := c.AccessToken()
	if token == "" {
		return "", "", errors.ErrNoAccessToken
	}
	return "me", token, nil
}

// bindPage looks pageID up among the user's pages and stores its token.
// An unknown page clears the binding; a fetch error leaves it untouched.
func (c *Connector) bindPage(ctx context.Context, pageID, userToken string) (bool, error) {
	pages, err := c.fetchPages(ctx, userToken)
	if err != nil {
		return false, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for _, p := range pages {
		if p.ID == pageID {
			c.pageID = p.ID
			c.pageToken = p.AccessToken
			c.Logger().Info("Page token obtained", "page", pageID)
			return true, nil
		}
	}

	c.Logger().Warn("Page not found or not managed by user", "page", pageID)
	c.pageID = ""
	c.pageToken = ""
	return false, nil
}

// fetchPages returns the pages for userToken, reusing a cached list
func (c *Connector) fetchPages(ctx context.Context, userToken string) ([]connector.Page, error) {
	if item := c.pages.Get(userToken); item != nil {
		return item.Value(), nil
	}

	pages, err := c.api.FetchPages(ctx, userToken)
	if err != nil {
		return nil, errors.NewRemoteError(Platform, "fetch pages", err)
	}

	c.pages.Set(userToken, pages, ttlcache.DefaultTTL)
	return pages, nil
}

func (c *Connector) boundPageID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pageID
}

// dropSession signs the user out but keeps the configured page, so a later
// authorization binds the same page again
func (c *Connector) dropSession() {
	c.Session.ClearAccountData()

	c.mu.Lock()
	c.pageToken = ""
	c.mu.Unlock()

	c.pages.DeleteAll()
}

func (c *Connector) clear() {
	c.Session.ClearAccountData()

	c.mu.Lock()
	c.pageID = ""
	c.pageToken = ""
	c.mu.Unlock()

	c.pages.DeleteAll()
}
