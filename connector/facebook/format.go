package facebook

import (
	"strings"
	"time"

	"github.com/BranchIntl/postqueue/connector"
)

// PostFields is the Graph API feed payload
type PostFields struct {
	Message              string `json:"message,omitempty"`
	Link                 string `json:"link,omitempty"`
	Name                 string `json:"name,omitempty"`
	Description          string `json:"description,omitempty"`
	Picture              string `json:"picture,omitempty"`
	Published            *bool  `json:"published,omitempty"`
	ScheduledPublishTime int64  `json:"scheduled_publish_time,omitempty"`
}

// FormatContent maps generic content onto feed fields. Media attachments
// need a separate upload flow and are not part of the feed payload.
func FormatContent(content connector.PostContent) PostFields {
	fields := PostFields{Message: content.Text}
	if content.Link != nil {
		fields.Link = content.Link.URL
		fields.Name = content.Link.Title
		fields.Description = content.Link.Description
		fields.Picture = content.Link.ThumbnailURL
	}
	return fields
}

// scheduled marks fields as an unpublished post to go live at at
func scheduled(fields PostFields, at time.Time) PostFields {
	published := false
	fields.Published = &published
	fields.ScheduledPublishTime = at.Unix()
	return fields
}

// postURL turns a "<target>_<post>" id into its permalink
func postURL(postID string) string {
	return "https://facebook.com/" + strings.Replace(postID, "_", "/posts/", 1)
}

func groupPostURL(groupID, postID string) string {
	return "https://facebook.com/groups/" + groupID + "/posts/" + postID
}
