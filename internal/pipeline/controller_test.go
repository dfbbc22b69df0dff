package pipeline

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/lehigh-university-libraries/mockups/internal/catalog"
	"github.com/lehigh-university-libraries/mockups/internal/storage"
)

type commit struct {
	position int
	status   catalog.Status
}

type fakeSource struct {
	records   []catalog.Record
	readErr   error
	commitErr error
	commits   []commit
}

func (f *fakeSource) Records(ctx context.Context) ([]catalog.Record, error) {
	return f.records, f.readErr
}

func (f *fakeSource) CommitStatus(ctx context.Context, position int, status catalog.Status) error {
	if f.commitErr != nil {
		return f.commitErr
	}
	f.commits = append(f.commits, commit{position, status})
	return nil
}

func (f *fakeSource) statusAt(position int) catalog.Status {
	var last catalog.Status
	for _, c := range f.commits {
		if c.position == position {
			last = c.status
		}
	}
	return last
}

type fakePrompts struct {
	calls    int
	payloads []string
	err      error
	block    bool
}

func (f *fakePrompts) Complete(ctx context.Context, system, payload string) (string, error) {
	f.calls++
	f.payloads = append(f.payloads, payload)
	if f.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if f.err != nil {
		return "", f.err
	}
	return "mockup: " + payload, nil
}

type fakeImages struct {
	calls  int
	failOn string
	sizes  []string
}

func (f *fakeImages) Generate(ctx context.Context, prompt, size string, count int) ([][]byte, error) {
	f.calls++
	f.sizes = append(f.sizes, size)
	if f.failOn != "" && strings.Contains(prompt, f.failOn) {
		return nil, errors.New("connection reset by peer")
	}
	return [][]byte{[]byte("png:" + prompt)}, nil
}

type failingStore struct{}

func (failingStore) Write(name string, data []byte) (string, error) {
	return "", errors.New("disk full")
}

type fakeArchive struct {
	uploads map[string][]byte
	folders []string
}

func (f *fakeArchive) Upload(ctx context.Context, name string, data []byte, folderID string) (string, error) {
	if f.uploads == nil {
		f.uploads = make(map[string][]byte)
	}
	f.uploads[name] = data
	f.folders = append(f.folders, folderID)
	return "https://drive.example/" + name, nil
}

type harness struct {
	source  *fakeSource
	prompts *fakePrompts
	images  *fakeImages
	archive *fakeArchive
	dir     string
	logs    *bytes.Buffer
	ctrl    *Controller
}

func newHarness(t *testing.T, records ...catalog.Record) *harness {
	t.Helper()
	h := &harness{
		source:  &fakeSource{records: records},
		prompts: &fakePrompts{},
		images:  &fakeImages{},
		archive: &fakeArchive{},
		dir:     filepath.Join(t.TempDir(), "output"),
		logs:    &bytes.Buffer{},
	}
	h.build(t, storage.New(h.dir), Options{FolderID: "folder-1"})
	return h
}

func (h *harness) build(t *testing.T, store ArtifactStore, opts Options) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(h.logs, nil))
	ctrl, err := New(h.source, h.prompts, h.images, store, h.archive, opts, logger)
	if err != nil {
		t.Fatalf("Failed to create controller: %v", err)
	}
	h.ctrl = ctrl
}

func (h *harness) run(t *testing.T, ids ...string) *Summary {
	t.Helper()
	summary, err := h.ctrl.Run(context.Background(), ids...)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	return summary
}

func pending(id, description string) catalog.Record {
	return catalog.Record{ID: id, Description: description, Status: catalog.StatusPending}
}

func TestNewRequiresCollaborators(t *testing.T) {
	if _, err := New(nil, &fakePrompts{}, &fakeImages{}, failingStore{}, &fakeArchive{}, Options{}, nil); err == nil {
		t.Error("Expected error for missing source")
	}
}

func TestRunCompletesPendingRecord(t *testing.T) {
	h := newHarness(t, pending("42", "Silicone baby feeding set"))

	summary := h.run(t)

	if got := h.source.statusAt(2); got != catalog.StatusCompleted {
		t.Fatalf("Expected Completed at row 2, got %q", got)
	}

	localPath := filepath.Join(h.dir, "mockup_id_42.png")
	local, err := os.ReadFile(localPath)
	if err != nil {
		t.Fatalf("Expected local artifact: %v", err)
	}
	remote, ok := h.archive.uploads["generated_id_42.png"]
	if !ok {
		t.Fatalf("Expected upload named generated_id_42.png, got %v", h.archive.uploads)
	}
	if !bytes.Equal(local, remote) {
		t.Error("Local and remote artifacts differ")
	}
	if h.archive.folders[0] != "folder-1" {
		t.Errorf("Expected upload into folder-1, got %s", h.archive.folders[0])
	}

	out := summary.Outcomes[0]
	if out.Failure != nil {
		t.Errorf("Unexpected failure: %v", out.Failure)
	}
	if out.RemoteRef != "https://drive.example/generated_id_42.png" {
		t.Errorf("Unexpected remote reference: %s", out.RemoteRef)
	}
	if out.LocalPath != localPath {
		t.Errorf("Unexpected local path: %s", out.LocalPath)
	}
	if h.images.sizes[0] != "1024x1024" {
		t.Errorf("Expected default size 1024x1024, got %s", h.images.sizes[0])
	}

	logs := h.logs.String()
	if !strings.Contains(logs, "Image uploaded") || !strings.Contains(logs, "id=42") {
		t.Errorf("Expected uploaded log line for id 42, got:\n%s", logs)
	}
}

func TestRunMissingDescriptionMakesNoCalls(t *testing.T) {
	h := newHarness(t, pending("7", ""))

	summary := h.run(t)

	if h.prompts.calls != 0 || h.images.calls != 0 || len(h.archive.uploads) != 0 {
		t.Errorf("Expected no external calls, got prompts=%d images=%d uploads=%d",
			h.prompts.calls, h.images.calls, len(h.archive.uploads))
	}
	if got := h.source.statusAt(2); got != catalog.StatusError {
		t.Errorf("Expected Error, got %q", got)
	}

	f := summary.Outcomes[0].Failure
	if f == nil || f.Kind != KindEligibility || !errors.Is(f, ErrIneligible) {
		t.Errorf("Expected eligibility failure, got %v", f)
	}
	if !strings.Contains(h.logs.String(), "id=7") {
		t.Errorf("Expected eligibility log for id 7, got:\n%s", h.logs.String())
	}
}

func TestRunImageFailure(t *testing.T) {
	h := newHarness(t, pending("9", "Desk lamp"))
	h.images.failOn = "Desk lamp"

	summary := h.run(t)

	if h.prompts.calls != 1 || h.images.calls != 1 {
		t.Errorf("Expected one prompt and one image call, got %d and %d", h.prompts.calls, h.images.calls)
	}
	if got := h.source.statusAt(2); got != catalog.StatusError {
		t.Errorf("Expected Error, got %q", got)
	}
	if _, err := os.Stat(filepath.Join(h.dir, "mockup_id_9.png")); !os.IsNotExist(err) {
		t.Errorf("Expected no local artifact, stat returned %v", err)
	}
	if len(h.archive.uploads) != 0 {
		t.Error("Expected no upload")
	}

	f := summary.Outcomes[0].Failure
	if f == nil || f.Kind != KindService || f.Step != StepImage {
		t.Errorf("Expected service failure at image step, got %v", f)
	}
	if summary.Outcomes[0].Prompt == "" {
		t.Error("Expected prompt to be recorded before the image failure")
	}
}

func TestRunDuplicateIDsBindToFirstRow(t *testing.T) {
	h := newHarness(t,
		pending("5", "Ceramic mug"),
		pending("6", "Wool scarf"),
		pending("5", "Ceramic mug, second listing"),
	)

	h.run(t)

	if len(h.source.commits) != 3 {
		t.Fatalf("Expected 3 commits, got %d", len(h.source.commits))
	}
	if h.source.commits[0].position != 2 || h.source.commits[2].position != 2 {
		t.Errorf("Expected both ID 5 commits to target row 2, got %+v", h.source.commits)
	}
	for _, c := range h.source.commits {
		if c.position == 4 {
			t.Errorf("Row 4 must not be written, got %+v", c)
		}
	}
}

func TestRunIsolatesFailures(t *testing.T) {
	h := newHarness(t,
		pending("1", "Oak cutting board"),
		pending("2", "Desk lamp"),
		pending("3", "Linen apron"),
	)
	h.images.failOn = "Desk lamp"

	h.run(t)

	expected := map[int]catalog.Status{
		2: catalog.StatusCompleted,
		3: catalog.StatusError,
		4: catalog.StatusCompleted,
	}
	for row, status := range expected {
		if got := h.source.statusAt(row); got != status {
			t.Errorf("Row %d: expected %q, got %q", row, status, got)
		}
	}
}

func TestRunLeavesNoRecordPending(t *testing.T) {
	h := newHarness(t,
		pending("1", "Oak cutting board"),
		catalog.Record{ID: "2", Description: "Mug", Status: catalog.StatusCompleted},
		catalog.Record{ID: "3", Description: "Scarf", Status: catalog.StatusError},
		catalog.Record{ID: "", Description: "No ID", Status: catalog.StatusPending},
		catalog.Record{ID: "5", Description: "Blank status"},
		pending("6", "Desk lamp"),
	)
	h.images.failOn = "Desk lamp"

	summary := h.run(t)

	if len(summary.Outcomes) != 6 {
		t.Fatalf("Expected 6 outcomes, got %d", len(summary.Outcomes))
	}
	for _, o := range summary.Outcomes {
		if o.Status != catalog.StatusCompleted && o.Status != catalog.StatusError {
			t.Errorf("Record %q ended with status %q", o.RecordID, o.Status)
		}
	}
	if summary.Count(catalog.StatusCompleted) != 1 || summary.Count(catalog.StatusError) != 5 {
		t.Errorf("Unexpected counts: completed=%d errors=%d",
			summary.Count(catalog.StatusCompleted), summary.Count(catalog.StatusError))
	}
	if h.source.statusAt(3) != catalog.StatusError {
		t.Error("Expected previously Completed row to be flagged Error")
	}
}

func TestEligibleIneligibleRecordsSkipServices(t *testing.T) {
	tests := []struct {
		name   string
		record catalog.Record
	}{
		{name: "empty description", record: catalog.Record{ID: "1", Status: catalog.StatusPending}},
		{name: "empty id", record: catalog.Record{Description: "Mug", Status: catalog.StatusPending}},
		{name: "completed", record: catalog.Record{ID: "1", Description: "Mug", Status: catalog.StatusCompleted}},
		{name: "error", record: catalog.Record{ID: "1", Description: "Mug", Status: catalog.StatusError}},
		{name: "lowercase pending", record: catalog.Record{ID: "1", Description: "Mug", Status: "pending"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := Eligible(tt.record); !errors.Is(err, ErrIneligible) {
				t.Fatalf("Expected ErrIneligible, got %v", err)
			}

			h := newHarness(t, tt.record)
			h.run(t)

			if h.prompts.calls != 0 || h.images.calls != 0 || len(h.archive.uploads) != 0 {
				t.Error("Expected no external calls")
			}
			if got := h.source.statusAt(2); got != catalog.StatusError {
				t.Errorf("Expected Error, got %q", got)
			}
		})
	}
}

func TestReprocessingOverwritesLocalArtifact(t *testing.T) {
	h := newHarness(t, pending("5", "Ceramic mug"))

	h.run(t)
	h.run(t)

	entries, err := os.ReadDir(h.dir)
	if err != nil {
		t.Fatalf("Failed to read output dir: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "mockup_id_5.png" {
		t.Errorf("Expected a single mockup_id_5.png, got %v", entries)
	}
}

func TestRunRequestedIDMissingFromSnapshot(t *testing.T) {
	h := newHarness(t, pending("1", "Oak cutting board"), pending("2", "Wool scarf"))

	summary := h.run(t, "2", "99")

	if len(summary.Outcomes) != 2 {
		t.Fatalf("Expected 2 outcomes, got %d", len(summary.Outcomes))
	}
	if summary.Outcomes[0].RecordID != "2" || summary.Outcomes[0].Status != catalog.StatusCompleted {
		t.Errorf("Unexpected first outcome: %+v", summary.Outcomes[0])
	}

	missing := summary.Outcomes[1]
	if missing.Failure == nil || missing.Failure.Kind != KindSourceIndex {
		t.Errorf("Expected source index failure, got %v", missing.Failure)
	}
	if missing.Status != "" || missing.Position != 0 {
		t.Errorf("Expected no commit for unresolved record, got %+v", missing)
	}
	if len(h.source.commits) != 1 || h.source.commits[0].position != 3 {
		t.Errorf("Expected a single commit to row 3, got %+v", h.source.commits)
	}
	if summary.Unresolved() != 1 {
		t.Errorf("Expected 1 unresolved, got %d", summary.Unresolved())
	}
}

func TestRunPersistFailureSkipsUpload(t *testing.T) {
	h := newHarness(t, pending("3", "Linen apron"))
	h.build(t, failingStore{}, Options{})

	summary := h.run(t)

	f := summary.Outcomes[0].Failure
	if f == nil || f.Kind != KindPersist || f.Step != StepStore {
		t.Errorf("Expected persist failure, got %v", f)
	}
	if len(h.archive.uploads) != 0 {
		t.Error("Expected no upload after persist failure")
	}
	if h.source.statusAt(2) != catalog.StatusError {
		t.Error("Expected Error status")
	}
}

func TestRunCommitFailureContinues(t *testing.T) {
	h := newHarness(t, pending("1", "Oak cutting board"), pending("2", "Wool scarf"))
	h.source.commitErr = errors.New("quota exceeded")

	summary := h.run(t)

	if len(summary.Outcomes) != 2 {
		t.Fatalf("Expected both records visited, got %d", len(summary.Outcomes))
	}
	for _, o := range summary.Outcomes {
		if o.CommitErr == nil {
			t.Errorf("Expected commit error on %q", o.RecordID)
		}
	}
}

func TestRunSourceErrorAborts(t *testing.T) {
	h := newHarness(t)
	h.source.readErr = errors.New("permission denied")

	if _, err := h.ctrl.Run(context.Background()); err == nil {
		t.Fatal("Expected error, got nil")
	}
	if len(h.source.commits) != 0 {
		t.Error("Expected no commits")
	}
}

func TestRunStepTimeout(t *testing.T) {
	h := newHarness(t, pending("8", "Bamboo toothbrush"))
	h.prompts.block = true
	h.build(t, storage.New(h.dir), Options{StepTimeout: 20 * time.Millisecond})

	summary := h.run(t)

	f := summary.Outcomes[0].Failure
	if f == nil || f.Step != StepPrompt || !errors.Is(f, context.DeadlineExceeded) {
		t.Errorf("Expected prompt timeout, got %v", f)
	}
	if h.source.statusAt(2) != catalog.StatusError {
		t.Error("Expected Error status after timeout")
	}
}

func TestProcessStopsWhenCancelled(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary := h.ctrl.Process(ctx, []catalog.Record{pending("1", "Mug")}, nil)

	if len(summary.Outcomes) != 0 || len(h.source.commits) != 0 {
		t.Errorf("Expected no records visited, got %d outcomes", len(summary.Outcomes))
	}
}
