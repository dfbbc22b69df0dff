package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lehigh-university-libraries/mockups/internal/catalog"
)

// PromptSynthesizer turns a system instruction and a user payload into a
// single image prompt
type PromptSynthesizer interface {
	Complete(ctx context.Context, system, payload string) (string, error)
}

// ImageSynthesizer turns a prompt into decoded image bytes
type ImageSynthesizer interface {
	Generate(ctx context.Context, prompt, size string, count int) ([][]byte, error)
}

// ArtifactStore persists image bytes locally
type ArtifactStore interface {
	Write(name string, data []byte) (string, error)
}

// Archive persists image bytes remotely and returns a shareable reference
type Archive interface {
	Upload(ctx context.Context, name string, data []byte, folderID string) (string, error)
}

// Options are the fixed parameters of a run
type Options struct {
	ImageSize   string
	FolderID    string
	StepTimeout time.Duration
}

// Controller drives every record of a snapshot through prompt synthesis,
// image synthesis, local storage and archival, then commits a terminal
// status for it. Records are processed one at a time.
type Controller struct {
	source    catalog.Source
	prompts   PromptSynthesizer
	images    ImageSynthesizer
	artifacts ArtifactStore
	archive   Archive
	opts      Options
	logger    *slog.Logger
}

// New creates a controller. A nil logger uses slog.Default().
func New(source catalog.Source, prompts PromptSynthesizer, images ImageSynthesizer, artifacts ArtifactStore, archive Archive, opts Options, logger *slog.Logger) (*Controller, error) {
	if source == nil || prompts == nil || images == nil || artifacts == nil || archive == nil {
		return nil, errors.New("controller requires source, prompt synthesizer, image synthesizer, artifact store, and archive")
	}
	if opts.ImageSize == "" {
		opts.ImageSize = "1024x1024"
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Controller{
		source:    source,
		prompts:   prompts,
		images:    images,
		artifacts: artifacts,
		archive:   archive,
		opts:      opts,
		logger:    logger,
	}, nil
}

// Run reads one snapshot from the source and processes it. When ids is not
// empty only records with those IDs are visited. An error is returned only
// when the snapshot cannot be read; per-record failures are reported in the
// summary.
func (c *Controller) Run(ctx context.Context, ids ...string) (*Summary, error) {
	records, err := c.source.Records(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read records: %w", err)
	}
	c.logger.Info("Successfully read product details", "records", len(records))

	return c.Process(ctx, records, ids), nil
}

// Process visits the selected records of snapshot in order
func (c *Controller) Process(ctx context.Context, snapshot []catalog.Record, ids []string) *Summary {
	summary := &Summary{StartedAt: time.Now()}
	positions := catalog.PositionIndex(snapshot)

	for _, record := range selectRecords(snapshot, ids) {
		if err := ctx.Err(); err != nil {
			c.logger.Warn("Run interrupted, remaining records left unchanged", "err", err)
			break
		}
		summary.Outcomes = append(summary.Outcomes, c.processRecord(ctx, record, positions))
	}

	summary.FinishedAt = time.Now()
	c.logger.Info("Run finished",
		"visited", len(summary.Outcomes),
		"completed", summary.Count(catalog.StatusCompleted),
		"errors", summary.Count(catalog.StatusError),
		"unresolved", summary.Unresolved())
	return summary
}

// selectRecords returns the processing set. Requested IDs missing from the
// snapshot are returned as bare records so they surface as resolve failures.
func selectRecords(snapshot []catalog.Record, ids []string) []catalog.Record {
	if len(ids) == 0 {
		return snapshot
	}

	wanted := make(map[string]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}

	var selected []catalog.Record
	found := make(map[string]bool, len(ids))
	for _, r := range snapshot {
		if wanted[r.ID] {
			selected = append(selected, r)
			found[r.ID] = true
		}
	}
	for _, id := range ids {
		if !found[id] {
			selected = append(selected, catalog.Record{ID: id})
			found[id] = true
		}
	}
	return selected
}

func (c *Controller) processRecord(ctx context.Context, record catalog.Record, positions map[string]int) Outcome {
	logger := c.logger.With("id", record.ID)
	out := Outcome{RecordID: record.ID}

	position, ok := positions[record.ID]
	if !ok {
		out.Failure = fail(KindSourceIndex, StepResolve, record.ID, errors.New("ID not found in snapshot"))
		logger.Error("Unable to resolve sheet row, status left unchanged", "err", out.Failure.Err)
		return out
	}
	out.Position = position

	status := catalog.StatusCompleted
	if f := c.runSteps(ctx, record, &out); f != nil {
		out.Failure = f
		status = catalog.StatusError
		if f.Kind == KindEligibility {
			logger.Error("Product details missing or product status is not Pending", "status", record.Status, "err", f.Err)
		} else {
			logger.Error("Encountered an error during image generation", "step", f.Step, "kind", f.Kind, "err", f.Err)
		}
	}

	c.commit(ctx, logger, &out, status)
	return out
}

// recordState carries values between steps of one record
type recordState struct {
	record  catalog.Record
	payload string
	image   []byte
	out     *Outcome
}

type step struct {
	name Step
	run  func(ctx context.Context, st *recordState) *Failure
}

// runSteps validates the record and then runs the chain, stopping at the
// first failure
func (c *Controller) runSteps(ctx context.Context, record catalog.Record, out *Outcome) *Failure {
	if err := Eligible(record); err != nil {
		return fail(KindEligibility, StepValidate, record.ID, err)
	}

	st := &recordState{record: record, out: out}
	steps := []step{
		{StepInput, c.buildInput},
		{StepPrompt, c.synthesizePrompt},
		{StepImage, c.synthesizeImage},
		{StepStore, c.storeLocal},
		{StepUpload, c.upload},
	}

	for _, s := range steps {
		c.logger.Debug("Running step", "id", record.ID, "step", s.name)
		if f := s.run(ctx, st); f != nil {
			return f
		}
	}
	return nil
}

func (c *Controller) buildInput(ctx context.Context, st *recordState) *Failure {
	payload, err := NewProductInput(st.record).UserPayload()
	if err != nil {
		return fail(KindService, StepInput, st.record.ID, err)
	}
	st.payload = payload
	return nil
}

func (c *Controller) synthesizePrompt(ctx context.Context, st *recordState) *Failure {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	prompt, err := c.prompts.Complete(callCtx, SystemInstruction, st.payload)
	if err != nil {
		return fail(KindService, StepPrompt, st.record.ID, err)
	}
	st.out.Prompt = prompt

	c.logger.Info("Successfully created text-to-image prompt", "id", st.record.ID, "prompt", prompt)
	return nil
}

func (c *Controller) synthesizeImage(ctx context.Context, st *recordState) *Failure {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	images, err := c.images.Generate(callCtx, st.out.Prompt, c.opts.ImageSize, 1)
	if err != nil {
		return fail(KindService, StepImage, st.record.ID, err)
	}
	if len(images) == 0 || len(images[0]) == 0 {
		return fail(KindService, StepImage, st.record.ID, errors.New("image service returned no image data"))
	}
	st.image = images[0]

	c.logger.Info("Successfully generated mockup image", "id", st.record.ID, "bytes", len(st.image))
	return nil
}

func (c *Controller) storeLocal(ctx context.Context, st *recordState) *Failure {
	path, err := c.artifacts.Write(LocalName(st.record.ID), st.image)
	if err != nil {
		return fail(KindPersist, StepStore, st.record.ID, err)
	}
	st.out.LocalPath = path

	c.logger.Info("Saved mockup image", "id", st.record.ID, "path", path)
	return nil
}

func (c *Controller) upload(ctx context.Context, st *recordState) *Failure {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	ref, err := c.archive.Upload(callCtx, RemoteName(st.record.ID), st.image, c.opts.FolderID)
	if err != nil {
		return fail(KindService, StepUpload, st.record.ID, err)
	}
	st.out.RemoteRef = ref

	c.logger.Info("Image uploaded to archive folder", "id", st.record.ID, "folder", c.opts.FolderID, "ref", ref)
	return nil
}

// commit writes the terminal status. It runs even when ctx was cancelled
// mid-record so a visited record is never left Pending.
func (c *Controller) commit(ctx context.Context, logger *slog.Logger, out *Outcome, status catalog.Status) {
	callCtx, cancel := c.callContext(context.WithoutCancel(ctx))
	defer cancel()

	if err := c.source.CommitStatus(callCtx, out.Position, status); err != nil {
		out.CommitErr = err
		logger.Error("Failed to update product status", "row", out.Position, "status", status, "err", err)
		return
	}
	out.Status = status
	logger.Info("Status of the product changed", "row", out.Position, "status", status)
}

func (c *Controller) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.opts.StepTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.opts.StepTimeout)
}
