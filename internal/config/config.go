package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/lehigh-university-libraries/mockups/internal/providers"
	"gopkg.in/yaml.v3"
)

// ErrInvalid is wrapped by every configuration problem found before a run
var ErrInvalid = errors.New("invalid configuration")

var imageSizePattern = regexp.MustCompile(`^[1-9][0-9]*x[1-9][0-9]*$`)

// Config holds everything a run needs
type Config struct {
	SpreadsheetID   string        `yaml:"spreadsheet_id"`
	Worksheet       string        `yaml:"worksheet"`
	DriveFolderID   string        `yaml:"drive_folder_id"`
	CredentialsFile string        `yaml:"credentials_file"`
	Provider        string        `yaml:"provider"`
	TextModel       string        `yaml:"text_model"`
	ImageModel      string        `yaml:"image_model"`
	ImageSize       string        `yaml:"image_size"`
	OutputDir       string        `yaml:"output_dir"`
	LogFile         string        `yaml:"log_file"`
	StepTimeout     time.Duration `yaml:"step_timeout"`
	ReportPath      string        `yaml:"report_path"`

	// API keys only come from the environment
	OpenAIAPIKey string `yaml:"-"`
	GeminiAPIKey string `yaml:"-"`
}

// Default returns the built-in settings
func Default() *Config {
	return &Config{
		Worksheet:   "Products",
		Provider:    "openai",
		ImageModel:  "gpt-image-1",
		ImageSize:   "1024x1024",
		OutputDir:   "output",
		LogFile:     "process_logs.log",
		StepTimeout: 2 * time.Minute,
	}
}

// Load builds a Config from defaults, the optional YAML file at path and the
// environment, in increasing order of precedence. It does not validate.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to read config file: %v", ErrInvalid, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("%w: failed to parse config file %s: %v", ErrInvalid, path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) applyEnv() error {
	setString(&c.SpreadsheetID, "MOCKUPS_SPREADSHEET_ID")
	setString(&c.Worksheet, "MOCKUPS_WORKSHEET")
	setString(&c.DriveFolderID, "MOCKUPS_DRIVE_FOLDER_ID")
	setString(&c.CredentialsFile, "GOOGLE_APPLICATION_CREDENTIALS")
	setString(&c.Provider, "MOCKUPS_PROVIDER")
	setString(&c.ImageModel, "MOCKUPS_IMAGE_MODEL")
	setString(&c.OutputDir, "MOCKUPS_OUTPUT_DIR")
	setString(&c.LogFile, "MOCKUPS_LOG_FILE")
	setString(&c.ReportPath, "MOCKUPS_REPORT")

	if v := os.Getenv("MOCKUPS_STEP_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%w: MOCKUPS_STEP_TIMEOUT: %v", ErrInvalid, err)
		}
		c.StepTimeout = d
	}

	c.OpenAIAPIKey = os.Getenv("OPENAI_API_KEY")
	c.GeminiAPIKey = os.Getenv("GEMINI_API_KEY")
	return nil
}

// ResolveTextModel fills TextModel from the provider's model variable
// (OPENAI_MODEL, GEMINI_MODEL, OLLAMA_MODEL) or its default when unset
func (c *Config) ResolveTextModel() {
	if c.TextModel != "" {
		return
	}
	switch c.Provider {
	case "openai":
		c.TextModel = os.Getenv("OPENAI_MODEL")
	case "gemini":
		c.TextModel = os.Getenv("GEMINI_MODEL")
	case "ollama":
		c.TextModel = os.Getenv("OLLAMA_MODEL")
	}
	if c.TextModel == "" {
		c.TextModel = providers.DefaultModel(c.Provider)
	}
}

// Validate reports the first missing or malformed setting
func (c *Config) Validate() error {
	if err := c.ValidateSource(); err != nil {
		return err
	}

	switch c.Provider {
	case "openai", "ollama":
	case "gemini":
		if c.GeminiAPIKey == "" {
			return fmt.Errorf("%w: GEMINI_API_KEY environment variable not set", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: unsupported provider: %s", ErrInvalid, c.Provider)
	}

	// Images are always generated through OpenAI
	if c.OpenAIAPIKey == "" {
		return fmt.Errorf("%w: OPENAI_API_KEY environment variable not set", ErrInvalid)
	}
	if c.ImageModel == "" {
		return fmt.Errorf("%w: image model is required", ErrInvalid)
	}
	if !imageSizePattern.MatchString(c.ImageSize) {
		return fmt.Errorf("%w: image size %q must look like 1024x1024", ErrInvalid, c.ImageSize)
	}
	if c.OutputDir == "" {
		return fmt.Errorf("%w: output directory is required", ErrInvalid)
	}
	if c.StepTimeout <= 0 {
		return fmt.Errorf("%w: step timeout must be positive", ErrInvalid)
	}
	return nil
}

// ValidateSource checks only what is needed to read the worksheet
func (c *Config) ValidateSource() error {
	if c.SpreadsheetID == "" {
		return fmt.Errorf("%w: spreadsheet ID is required (MOCKUPS_SPREADSHEET_ID)", ErrInvalid)
	}
	if c.Worksheet == "" {
		return fmt.Errorf("%w: worksheet name is required", ErrInvalid)
	}
	if c.CredentialsFile == "" {
		return fmt.Errorf("%w: service account credentials are required (GOOGLE_APPLICATION_CREDENTIALS)", ErrInvalid)
	}
	if _, err := os.Stat(c.CredentialsFile); err != nil {
		return fmt.Errorf("%w: credentials file: %v", ErrInvalid, err)
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}
