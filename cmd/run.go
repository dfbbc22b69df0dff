package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"github.com/lehigh-university-libraries/mockups/internal/archive"
	"github.com/lehigh-university-libraries/mockups/internal/catalog"
	"github.com/lehigh-university-libraries/mockups/internal/config"
	"github.com/lehigh-university-libraries/mockups/internal/gemini"
	"github.com/lehigh-university-libraries/mockups/internal/ollama"
	"github.com/lehigh-university-libraries/mockups/internal/openai"
	"github.com/lehigh-university-libraries/mockups/internal/pipeline"
	"github.com/lehigh-university-libraries/mockups/internal/providers"
	"github.com/lehigh-university-libraries/mockups/internal/report"
	"github.com/lehigh-university-libraries/mockups/internal/storage"
	"github.com/spf13/cobra"
	"google.golang.org/api/option"
)

const lockFile = ".mockups.lock"

func newRunCmd() *cobra.Command {
	var configPath string
	var provider string
	var model string
	var imageModel string
	var outputDir string
	var reportPath string
	var ids []string
	var verbose bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Generate mockups for every Pending product in the catalog",
		Long: `Reads the catalog worksheet once and visits every row in order.

Rows with an ID, a description and the Pending status get an LLM-written image
prompt, a generated 1024x1024 mockup saved as output/mockup_id_<ID>.png, and a
copy uploaded to Google Drive as generated_id_<ID>.png. The row is then marked
Completed. Any failure marks the row Error and the run moves on.

Rows that are not eligible (missing ID or description, or a status other than
Pending) are marked Error as well, so re-running over a finished sheet flags
its rows again.`,
		Example: `  # Process the whole sheet with OpenAI
  mockups run

  # Use Gemini for prompts and save a run report
  mockups run --provider gemini --report reports/run.yaml

  # Only revisit two products
  mockups run --id 42 --id 57`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				slog.Error("Encountered an error", "err", err)
				return err
			}

			flags := cmd.Flags()
			if flags.Changed("provider") {
				cfg.Provider = provider
			}
			if flags.Changed("model") {
				cfg.TextModel = model
			}
			if flags.Changed("image-model") {
				cfg.ImageModel = imageModel
			}
			if flags.Changed("output") {
				cfg.OutputDir = outputDir
			}
			if flags.Changed("report") {
				cfg.ReportPath = reportPath
			}
			cfg.ResolveTextModel()

			logger, closeLog, err := setupLogger(cfg.LogFile, verbose)
			if err != nil {
				return err
			}
			defer closeLog()

			runID := uuid.NewString()
			logger = logger.With("run_id", runID)

			if err := cfg.Validate(); err != nil {
				logger.Error("Encountered an error", "err", err)
				return err
			}

			return executeRun(cmd.Context(), cfg, runID, ids, logger)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "Path to a YAML config file")
	cmd.Flags().StringVar(&provider, "provider", "openai", "LLM provider for prompts (openai, gemini, or ollama)")
	cmd.Flags().StringVar(&model, "model", "", "Prompt model (defaults to provider's default)")
	cmd.Flags().StringVar(&imageModel, "image-model", "gpt-image-1", "OpenAI image model")
	cmd.Flags().StringVar(&outputDir, "output", "output", "Directory for generated images")
	cmd.Flags().StringVar(&reportPath, "report", "", "Write a run report (.yaml or .parquet)")
	cmd.Flags().StringArrayVar(&ids, "id", nil, "Only process products with this ID (repeatable)")
	cmd.Flags().BoolVar(&verbose, "verbose", false, "Verbose logging")

	return cmd
}

func executeRun(ctx context.Context, cfg *config.Config, runID string, ids []string, logger *slog.Logger) error {
	if err := os.MkdirAll(cfg.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	lock := flock.New(filepath.Join(cfg.OutputDir, lockFile))
	ok, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("failed to acquire run lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("another run is already using %s", cfg.OutputDir)
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			logger.Warn("Failed to release run lock", "err", err)
		}
	}()

	logger.Info("Starting run",
		"spreadsheet", cfg.SpreadsheetID,
		"worksheet", cfg.Worksheet,
		"provider", cfg.Provider,
		"model", cfg.TextModel,
		"image_model", cfg.ImageModel)

	controller, err := newController(ctx, cfg, logger)
	if err != nil {
		logger.Error("Encountered an error", "err", err)
		return err
	}

	summary, err := controller.Run(ctx, ids...)
	if err != nil {
		logger.Error("Encountered an error", "err", err)
		return err
	}

	run := report.FromSummary(report.Meta{
		RunID:       runID,
		Spreadsheet: cfg.SpreadsheetID,
		Worksheet:   cfg.Worksheet,
		Provider:    cfg.Provider,
		TextModel:   cfg.TextModel,
		ImageModel:  cfg.ImageModel,
	}, summary)

	fmt.Println(report.Render(run))

	if cfg.ReportPath != "" {
		if err := report.Save(cfg.ReportPath, run); err != nil {
			return fmt.Errorf("failed to save report: %w", err)
		}
		logger.Info("Run report saved", "path", cfg.ReportPath)
	}

	return nil
}

func newController(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*pipeline.Controller, error) {
	credentials := option.WithCredentialsFile(cfg.CredentialsFile)

	source, err := catalog.NewSheetSource(ctx, cfg.SpreadsheetID, cfg.Worksheet, credentials)
	if err != nil {
		return nil, err
	}

	drive, err := archive.NewDrive(ctx, credentials)
	if err != nil {
		return nil, err
	}

	openaiClient := openai.New()
	openaiClient.APIKey = cfg.OpenAIAPIKey

	var provider providers.Provider
	switch cfg.Provider {
	case "openai":
		provider = openaiClient
	case "gemini":
		provider = gemini.New()
	case "ollama":
		provider = ollama.New()
	default:
		return nil, fmt.Errorf("unsupported provider: %s", cfg.Provider)
	}

	return pipeline.New(
		source,
		&providers.Synthesizer{Provider: provider, Model: cfg.TextModel},
		openai.NewImages(openaiClient, cfg.ImageModel),
		storage.New(cfg.OutputDir),
		drive,
		pipeline.Options{
			ImageSize:   cfg.ImageSize,
			FolderID:    cfg.DriveFolderID,
			StepTimeout: cfg.StepTimeout,
		},
		logger,
	)
}
