// Package connector defines the contract every social platform integration
// implements, together with Session, the shared helper that holds account
// state and runs the token refresh protocol.
package connector

import (
	"context"
	"time"
)

// Connector authenticates against one platform and publishes content to it.
//
// Publish and schedule calls never return errors: every failure, including a
// missing or expired login, is reported through PostResult. Metrics calls
// return errors since there is no meaningful empty result.
type Connector interface {
	// Platform returns the tag stored on accounts and results
	Platform() string

	// AuthorizationURL builds the OAuth redirect URL with a fresh state value
	AuthorizationURL() (string, error)

	// HandleAuthorizationCode exchanges code for tokens and stores the account
	HandleAuthorizationCode(ctx context.Context, code string) (SocialAccount, error)

	// RefreshAccessTokenIfNeeded renews the token when it is close to expiry.
	// It reports whether a refresh took place; a non-nil error means the held
	// token could not be renewed and must not be relied on.
	RefreshAccessTokenIfNeeded(ctx context.Context) (bool, error)

	PublishPost(ctx context.Context, content PostContent) PostResult
	SchedulePost(ctx context.Context, content PostContent, at time.Time) PostResult
	PostMetrics(ctx context.Context, postID string) (Metrics, error)

	// ValidateContent returns a *errors.ValidationError listing every
	// violated rule, or nil
	ValidateContent(content PostContent) error

	IsAuthenticated() bool
	Account() (SocialAccount, bool)
	ClearAccountData()

	// Disconnect revokes the held token where the platform supports it and
	// clears all account data
	Disconnect(ctx context.Context) error
}

// PageManager is implemented by connectors that can publish as a managed page
type PageManager interface {
	SetPage(ctx context.Context, pageID string) (bool, error)
	Pages(ctx context.Context) ([]Page, error)
}

// GroupPublisher is implemented by connectors that can post into groups
type GroupPublisher interface {
	PublishToGroup(ctx context.Context, groupID string, content PostContent) PostResult
}

// TokenRefresher exchanges a refresh token for a new access token
type TokenRefresher interface {
	RefreshAccessToken(ctx context.Context, refreshToken string) (Token, error)
}

// RefreshFunc adapts a function to TokenRefresher
type RefreshFunc func(ctx context.Context, refreshToken string) (Token, error)

func (f RefreshFunc) RefreshAccessToken(ctx context.Context, refreshToken string) (Token, error) {
	return f(ctx, refreshToken)
}
