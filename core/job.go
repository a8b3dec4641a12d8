package core

import (
	"time"

	"github.com/BranchIntl/postqueue/connector"
	"github.com/BranchIntl/postqueue/queue"
)

// PublishJob is the payload carried by the engine's queue
type PublishJob struct {
	// Target names the registered connector to publish through
	Target  string                `json:"target"`
	Content connector.PostContent `json:"content"`

	// ScheduledTime makes the job a scheduled post instead of an immediate one
	ScheduledTime *time.Time `json:"scheduled_time,omitempty"`

	// GroupID publishes into a group; the connector must be a GroupPublisher
	GroupID string `json:"group_id,omitempty"`
}

func jobInfo(item queue.Item[PublishJob]) JobInfo {
	return JobInfo{
		ID:       item.ID,
		Target:   item.Data.Target,
		Priority: item.Priority,
		Attempt:  item.Attempt,
	}
}
