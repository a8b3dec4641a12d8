package connector

import (
	"fmt"
	"strings"

	"github.com/BranchIntl/postqueue/errors"
)

// ValidateBase applies the rules shared by every platform and returns the
// violations found. Platform validators start from this list and append.
func ValidateBase(content PostContent) []string {
	var violations []string

	if strings.TrimSpace(content.Text) == "" && content.Link == nil && len(content.Media) == 0 {
		violations = append(violations, "post content cannot be empty")
	}
	if content.Link != nil && strings.TrimSpace(content.Link.URL) == "" {
		violations = append(violations, "link URL is required")
	}
	for i, m := range content.Media {
		if strings.TrimSpace(m.URL) == "" {
			violations = append(violations, fmt.Sprintf("media item %d is missing a URL", i+1))
		}
	}

	return violations
}

// Violations turns a violation list into a validation error, or nil if empty
func Violations(platform string, violations []string) error {
	if len(violations) == 0 {
		return nil
	}
	return errors.NewValidationError(platform, violations)
}
