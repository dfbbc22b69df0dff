package pipeline

import (
	"fmt"

	"github.com/lehigh-university-libraries/mockups/internal/catalog"
)

// Eligible reports whether r may enter the step chain. A record needs an ID,
// a description and the Pending status.
//
// Records that fail this check are still visited and committed as Error, so
// re-running over Completed or Error rows marks them Error again.
func Eligible(r catalog.Record) error {
	if reason := Ineligibility(r); reason != "" {
		return fmt.Errorf("%w: %s", ErrIneligible, reason)
	}
	return nil
}

// Ineligibility returns why r is not eligible, or "" when it is
func Ineligibility(r catalog.Record) string {
	switch {
	case r.ID == "":
		return "missing ID"
	case r.Description == "":
		return "missing description"
	case r.Status != catalog.StatusPending:
		return fmt.Sprintf("status is %q, not %q", string(r.Status), string(catalog.StatusPending))
	}
	return ""
}
