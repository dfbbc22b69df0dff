package report

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lehigh-university-libraries/mockups/internal/catalog"
	"github.com/lehigh-university-libraries/mockups/internal/pipeline"
	"github.com/parquet-go/parquet-go"
	"gopkg.in/yaml.v3"
)

// Meta describes the run a report belongs to
type Meta struct {
	RunID       string `yaml:"run_id"`
	Spreadsheet string `yaml:"spreadsheet"`
	Worksheet   string `yaml:"worksheet"`
	Provider    string `yaml:"provider"`
	TextModel   string `yaml:"text_model"`
	ImageModel  string `yaml:"image_model"`
}

// Entry is the outcome of one visited record
type Entry struct {
	RunID       string `yaml:"-" parquet:"run_id"`
	ID          string `yaml:"id" parquet:"id"`
	Position    int    `yaml:"position" parquet:"position"`
	Status      string `yaml:"status" parquet:"status"`
	FailureKind string `yaml:"failure_kind,omitempty" parquet:"failure_kind"`
	FailureStep string `yaml:"failure_step,omitempty" parquet:"failure_step"`
	Detail      string `yaml:"detail,omitempty" parquet:"detail"`
	Prompt      string `yaml:"prompt,omitempty" parquet:"prompt"`
	LocalPath   string `yaml:"local_path,omitempty" parquet:"local_path"`
	RemoteRef   string `yaml:"remote_ref,omitempty" parquet:"remote_ref"`
	CommitError string `yaml:"commit_error,omitempty" parquet:"commit_error"`
}

// Run is the persisted report of a pipeline run
type Run struct {
	Meta       Meta    `yaml:"config"`
	StartedAt  string  `yaml:"started_at"`
	FinishedAt string  `yaml:"finished_at"`
	Completed  int     `yaml:"completed"`
	Errors     int     `yaml:"errors"`
	Unresolved int     `yaml:"unresolved"`
	Entries    []Entry `yaml:"results"`
}

// FromSummary converts a pipeline summary into a report
func FromSummary(meta Meta, summary *pipeline.Summary) *Run {
	run := &Run{
		Meta:       meta,
		StartedAt:  summary.StartedAt.Format(time.RFC3339),
		FinishedAt: summary.FinishedAt.Format(time.RFC3339),
		Completed:  summary.Count(catalog.StatusCompleted),
		Errors:     summary.Count(catalog.StatusError),
		Unresolved: summary.Unresolved(),
		Entries:    make([]Entry, 0, len(summary.Outcomes)),
	}

	for _, o := range summary.Outcomes {
		entry := Entry{
			RunID:     meta.RunID,
			ID:        o.RecordID,
			Position:  o.Position,
			Status:    string(o.Status),
			Prompt:    o.Prompt,
			LocalPath: o.LocalPath,
			RemoteRef: o.RemoteRef,
		}
		if o.Failure != nil {
			entry.FailureKind = string(o.Failure.Kind)
			entry.FailureStep = string(o.Failure.Step)
			entry.Detail = o.Failure.Err.Error()
		}
		if o.CommitErr != nil {
			entry.CommitError = o.CommitErr.Error()
		}
		run.Entries = append(run.Entries, entry)
	}

	return run
}

// Save writes the report as YAML or Parquet depending on the file extension
func Save(path string, run *Run) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create report directory: %w", err)
		}
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		return saveYAML(path, run)
	case ".parquet":
		return saveParquet(path, run)
	default:
		return fmt.Errorf("unsupported report format: %s (supported: .yaml, .yml, .parquet)", ext)
	}
}

// Load reads a report written by Save
func Load(path string) (*Run, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		return loadYAML(path)
	case ".parquet":
		return loadParquet(path)
	default:
		return nil, fmt.Errorf("unsupported report format: %s (supported: .yaml, .yml, .parquet)", ext)
	}
}

func saveYAML(path string, run *Run) error {
	data, err := yaml.Marshal(run)
	if err != nil {
		return fmt.Errorf("failed to marshal YAML: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write YAML file: %w", err)
	}
	return nil
}

func loadYAML(path string) (*Run, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read report: %w", err)
	}

	var run Run
	if err := yaml.Unmarshal(data, &run); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	for i := range run.Entries {
		run.Entries[i].RunID = run.Meta.RunID
	}
	return &run, nil
}

// saveParquet writes one row per entry. Run-level metadata other than the
// run ID is not part of the Parquet layout.
func saveParquet(path string, run *Run) error {
	if err := parquet.WriteFile(path, run.Entries); err != nil {
		return fmt.Errorf("failed to write parquet file: %w", err)
	}
	return nil
}

func loadParquet(path string) (*Run, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	pf, err := parquet.OpenFile(file, info.Size())
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet: %w", err)
	}

	slog.Debug("Parquet report opened", "path", path, "num_rows", pf.NumRows())

	reader := parquet.NewGenericReader[Entry](pf)
	defer reader.Close()

	run := &Run{}
	rows := make([]Entry, 128)
	for {
		n, err := reader.Read(rows)
		run.Entries = append(run.Entries, rows[:n]...)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read parquet rows: %w", err)
		}
	}

	for _, e := range run.Entries {
		run.Meta.RunID = e.RunID
		switch catalog.Status(e.Status) {
		case catalog.StatusCompleted:
			run.Completed++
		case catalog.StatusError:
			run.Errors++
		case "":
			run.Unresolved++
		}
	}
	return run, nil
}
