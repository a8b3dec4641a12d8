package facebook

import (
	"context"

	"github.com/BranchIntl/postqueue/connector"
)

// User is the profile returned for an access token
type User struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Email      string `json:"email,omitempty"`
	PictureURL string `json:"picture_url,omitempty"`
}

// GraphAPI is the remote boundary of the connector. Every call may block on
// the network and must honour ctx.
type GraphAPI interface {
	ExchangeCode(ctx context.Context, cfg connector.AuthConfig, code string) (connector.Token, error)
	ExchangeToken(ctx context.Context, cfg connector.AuthConfig, refreshToken string) (connector.Token, error)
	FetchUser(ctx context.Context, accessToken string) (User, error)
	FetchPages(ctx context.Context, userToken string) ([]connector.Page, error)
	SubmitPost(ctx context.Context, targetID string, fields PostFields, accessToken string) (string, error)
	SubmitGroupPost(ctx context.Context, groupID string, fields PostFields, accessToken string) (string, error)
	FetchInsights(ctx context.Context, postID, accessToken string) ([]connector.Insight, error)
	RevokeToken(ctx context.Context, accessToken string) error
}
