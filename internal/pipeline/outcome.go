package pipeline

import (
	"time"

	"github.com/lehigh-university-libraries/mockups/internal/catalog"
)

// Outcome is the result of visiting one record
type Outcome struct {
	RecordID string
	// Position is 0 when the record could not be resolved to a sheet row.
	Position int
	// Status is the value written back; empty when nothing was committed.
	Status    catalog.Status
	Failure   *Failure
	Prompt    string
	LocalPath string
	RemoteRef string
	CommitErr error
}

// Summary collects the outcomes of one run in visiting order
type Summary struct {
	StartedAt  time.Time
	FinishedAt time.Time
	Outcomes   []Outcome
}

// Count returns how many records were committed with status
func (s *Summary) Count(status catalog.Status) int {
	n := 0
	for _, o := range s.Outcomes {
		if o.Status == status {
			n++
		}
	}
	return n
}

// Unresolved returns how many visited records had no status written
func (s *Summary) Unresolved() int {
	n := 0
	for _, o := range s.Outcomes {
		if o.Status == "" {
			n++
		}
	}
	return n
}
