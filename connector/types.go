package connector

import "time"

// AuthConfig holds the OAuth client registration for one platform
type AuthConfig struct {
	ClientID     string   `json:"client_id"`
	ClientSecret string   `json:"-"`
	RedirectURI  string   `json:"redirect_uri"`
	Scopes       []string `json:"scopes"`
}

// clone returns a deep copy so callers cannot mutate a connector's config
func (c AuthConfig) clone() AuthConfig {
	c.Scopes = append([]string(nil), c.Scopes...)
	return c
}

// SocialAccount is the user-level identity a connector holds after a
// successful authorization
type SocialAccount struct {
	ID                string    `json:"id"`
	Platform          string    `json:"platform"`
	Username          string    `json:"username"`
	DisplayName       string    `json:"display_name"`
	ProfilePictureURL string    `json:"profile_picture_url,omitempty"`
	IsConnected       bool      `json:"is_connected"`
	LastSyncTime      time.Time `json:"last_sync_time"`
	AccessToken       string    `json:"access_token"`
	RefreshToken      string    `json:"refresh_token,omitempty"`
	TokenExpiry       time.Time `json:"token_expiry"`
}

// Link is a shared URL with optional preview metadata
type Link struct {
	URL          string `json:"url"`
	Title        string `json:"title,omitempty"`
	Description  string `json:"description,omitempty"`
	ThumbnailURL string `json:"thumbnail_url,omitempty"`
}

// Media is an attached image or video
type Media struct {
	URL  string `json:"url"`
	Type string `json:"type"`
}

// PostContent is the platform-neutral description of a post
type PostContent struct {
	Text          string     `json:"text,omitempty"`
	Link          *Link      `json:"link,omitempty"`
	Media         []Media    `json:"media,omitempty"`
	ScheduledTime *time.Time `json:"scheduled_time,omitempty"`
}

// Empty reports whether the content carries nothing to publish
func (c PostContent) Empty() bool {
	return c.Text == "" && c.Link == nil && len(c.Media) == 0
}

// PostResult is the uniform outcome of a publish or schedule call
type PostResult struct {
	Success   bool      `json:"success"`
	PostID    string    `json:"post_id,omitempty"`
	URL       string    `json:"url,omitempty"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Platform  string    `json:"platform"`

	// Cause is the typed failure behind Error, for retry classification.
	Cause error `json:"-"`
}

// Insight is a single named metric value
type Insight struct {
	Name   string `json:"name"`
	Period string `json:"period"`
	Value  int64  `json:"value"`
}

// Metrics holds engagement data for one post
type Metrics struct {
	PostID      string    `json:"post_id"`
	Platform    string    `json:"platform"`
	Insights    []Insight `json:"insights"`
	RetrievedAt time.Time `json:"retrieved_at"`
}

// Value returns the named insight, or zero when absent
func (m Metrics) Value(name string) int64 {
	for _, in := range m.Insights {
		if in.Name == name {
			return in.Value
		}
	}
	return 0
}

// Page is a secondary identity (business page, channel) managed by the user
type Page struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Category    string `json:"category"`
	AccessToken string `json:"-"`
}

// Token is the result of an OAuth code or refresh-token exchange
type Token struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    time.Duration
}
