package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// SheetSource reads product records from a Google Sheets worksheet and writes
// status values back into its Status column.
type SheetSource struct {
	SpreadsheetID string
	Worksheet     string
	service       *sheets.Service
	statusColumn  int
}

// NewSheetSource creates a Sheets-backed record source
func NewSheetSource(ctx context.Context, spreadsheetID, worksheet string, opts ...option.ClientOption) (*SheetSource, error) {
	if spreadsheetID == "" {
		return nil, fmt.Errorf("spreadsheet ID is required")
	}
	if worksheet == "" {
		return nil, fmt.Errorf("worksheet name is required")
	}

	opts = append([]option.ClientOption{option.WithScopes(sheets.SpreadsheetsScope)}, opts...)
	service, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}

	return &SheetSource{
		SpreadsheetID: spreadsheetID,
		Worksheet:     worksheet,
		service:       service,
	}, nil
}

// Records reads the whole worksheet once and returns the data rows in order
func (s *SheetSource) Records(ctx context.Context) ([]Record, error) {
	resp, err := s.service.Spreadsheets.Values.Get(s.SpreadsheetID, quoteSheet(s.Worksheet)).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to read worksheet %q: %w", s.Worksheet, err)
	}

	records, statusColumn, err := parseRows(resp.Values)
	if err != nil {
		return nil, err
	}
	s.statusColumn = statusColumn

	slog.Debug("Read worksheet", "worksheet", s.Worksheet, "records", len(records), "status_column", columnLetter(statusColumn))
	return records, nil
}

// CommitStatus writes status into the Status cell of the given sheet row
func (s *SheetSource) CommitStatus(ctx context.Context, position int, status Status) error {
	if err := status.Validate(); err != nil {
		return err
	}
	if position < FirstDataRow {
		return fmt.Errorf("invalid row position %d", position)
	}
	if s.statusColumn == 0 {
		if err := s.loadHeader(ctx); err != nil {
			return err
		}
	}

	cell := fmt.Sprintf("%s!%s%d", quoteSheet(s.Worksheet), columnLetter(s.statusColumn), position)
	values := &sheets.ValueRange{
		Values: [][]interface{}{{string(status)}},
	}

	_, err := s.service.Spreadsheets.Values.Update(s.SpreadsheetID, cell, values).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("failed to update %s: %w", cell, err)
	}
	return nil
}

func (s *SheetSource) loadHeader(ctx context.Context) error {
	headerRange := fmt.Sprintf("%s!1:1", quoteSheet(s.Worksheet))
	resp, err := s.service.Spreadsheets.Values.Get(s.SpreadsheetID, headerRange).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to read header row: %w", err)
	}
	_, statusColumn, err := parseRows(resp.Values)
	if err != nil {
		return err
	}
	s.statusColumn = statusColumn
	return nil
}

// parseRows converts raw worksheet values into records. The first row is the
// header. It returns the 1-based index of the Status column.
func parseRows(values [][]interface{}) ([]Record, int, error) {
	if len(values) == 0 {
		return nil, 0, fmt.Errorf("worksheet has no header row")
	}

	columns := make(map[string]int)
	for i, cell := range values[0] {
		name := strings.TrimSpace(fmt.Sprint(cell))
		if _, exists := columns[name]; !exists {
			columns[name] = i
		}
	}

	for _, required := range []string{HeaderID, HeaderStatus} {
		if _, ok := columns[required]; !ok {
			return nil, 0, fmt.Errorf("worksheet is missing required column %q", required)
		}
	}

	records := make([]Record, 0, len(values)-1)
	for _, row := range values[1:] {
		// Cells past the last non-empty one are omitted by the API; inside the
		// header width they read as empty strings.
		cell := func(name string) (string, bool) {
			i, ok := columns[name]
			if !ok {
				return "", false
			}
			if i >= len(row) || row[i] == nil {
				return "", true
			}
			return fmt.Sprint(row[i]), true
		}
		optional := func(name string) *string {
			v, ok := cell(name)
			if !ok {
				return nil
			}
			return Text(v)
		}

		id, _ := cell(HeaderID)
		description, _ := cell(HeaderDescription)
		status, _ := cell(HeaderStatus)

		records = append(records, Record{
			ID:          id,
			Description: description,
			Category:    optional(HeaderCategory),
			Color:       optional(HeaderColor),
			Material:    optional(HeaderMaterial),
			Notes:       optional(HeaderNotes),
			Status:      Status(status),
		})
	}

	return records, columns[HeaderStatus] + 1, nil
}

// columnLetter converts a 1-based column number to A1 notation (1 -> A, 27 -> AA)
func columnLetter(n int) string {
	var letters []byte
	for n > 0 {
		n--
		letters = append([]byte{byte('A' + n%26)}, letters...)
		n /= 26
	}
	return string(letters)
}

func quoteSheet(name string) string {
	return "'" + strings.ReplaceAll(name, "'", "''") + "'"
}
