package catalog

import (
	"context"
	"fmt"
)

// Status is the workflow state persisted in the Status column
type Status string

const (
	StatusPending   Status = "Pending"
	StatusCompleted Status = "Completed"
	StatusError     Status = "Error"
)

// FirstDataRow is the sheet position of the first record; row 1 holds headers.
const FirstDataRow = 2

// Column headers understood by the sheet source
const (
	HeaderID          = "ID"
	HeaderDescription = "Description"
	HeaderCategory    = "Category"
	HeaderColor       = "Color"
	HeaderMaterial    = "Material"
	HeaderNotes       = "Additional Notes"
	HeaderStatus      = "Status"
)

// Record represents one product row of the catalog.
//
// Optional attributes are nil when the column does not exist in the sheet and
// point to an empty string when the column exists but the cell is blank.
type Record struct {
	ID          string
	Description string
	Category    *string
	Color       *string
	Material    *string
	Notes       *string
	Status      Status
}

// Source exposes an ordered snapshot of records and accepts status write-backs
// addressed by sheet position.
type Source interface {
	Records(ctx context.Context) ([]Record, error)
	CommitStatus(ctx context.Context, position int, status Status) error
}

// Position returns the sheet position of the record at index i of a snapshot
func Position(i int) int {
	return i + FirstDataRow
}

// PositionIndex maps every ID in the snapshot to the position of its first
// occurrence. Later duplicates never replace an earlier entry.
func PositionIndex(records []Record) map[string]int {
	index := make(map[string]int, len(records))
	for i, r := range records {
		if _, exists := index[r.ID]; exists {
			continue
		}
		index[r.ID] = Position(i)
	}
	return index
}

// Text returns a pointer to s, for building optional record attributes
func Text(s string) *string {
	return &s
}

func (s Status) String() string {
	return string(s)
}

// Validate reports whether s is one of the statuses this tool writes
func (s Status) Validate() error {
	switch s {
	case StatusPending, StatusCompleted, StatusError:
		return nil
	default:
		return fmt.Errorf("unknown status: %q", string(s))
	}
}
