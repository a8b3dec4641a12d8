package facebook

import (
	"time"
	"unicode/utf16"

	"github.com/BranchIntl/postqueue/connector"
)

const (
	// MaxTextLength is the longest accepted post body, in UTF-16 code units
	// as Facebook counts them
	MaxTextLength = 63206

	// MinScheduleLead is how far ahead a scheduled post must be
	MinScheduleLead = 10 * time.Minute

	// MaxScheduleLead is the furthest a post may be scheduled (six 30-day months)
	MaxScheduleLead = 6 * 30 * 24 * time.Hour
)

const (
	msgTextTooLong     = "post text cannot exceed 63,206 characters"
	msgScheduleTooSoon = "scheduled time must be at least 10 minutes in the future"
	msgScheduleTooLate = "scheduled time cannot be more than 6 months in the future"
)

// Validate returns every rule content breaks when evaluated at now
func Validate(content connector.PostContent, now time.Time) []string {
	violations := connector.ValidateBase(content)

	if textLength(content.Text) > MaxTextLength {
		violations = append(violations, msgTextTooLong)
	}

	if content.ScheduledTime != nil {
		at := *content.ScheduledTime
		if at.Before(now.Add(MinScheduleLead)) {
			violations = append(violations, msgScheduleTooSoon)
		}
		if at.After(now.Add(MaxScheduleLead)) {
			violations = append(violations, msgScheduleTooLate)
		}
	}

	return violations
}

// textLength counts UTF-16 code units, so characters outside the basic
// multilingual plane count twice
func textLength(text string) int {
	return len(utf16.Encode([]rune(text)))
}
