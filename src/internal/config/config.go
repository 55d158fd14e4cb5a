// Package config loads refcheck settings from defaults, an optional YAML
// file, a .env file and REFCHECK_* environment variables, in that order of
// increasing precedence.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"refcheck/src/internal/extract"
	"refcheck/src/internal/pipeline"
	"refcheck/src/internal/ratelimit"
)

// EnvPrefix is prepended to every environment override, e.g.
// REFCHECK_EXTRACTION_MODEL.
const EnvPrefix = "REFCHECK"

type Config struct {
	WindowSize   int              `mapstructure:"window_size"`
	Overlap      int              `mapstructure:"overlap"`
	ContactEmail string           `mapstructure:"contact_email"`
	LogLevel     string           `mapstructure:"log_level"`
	MetricsAddr  string           `mapstructure:"metrics_addr"`
	Format       string           `mapstructure:"format"`
	Extraction   ExtractionConfig `mapstructure:"extraction"`
	Validation   ValidationConfig `mapstructure:"validation"`
}

type ExtractionConfig struct {
	MaxConcurrent     int     `mapstructure:"max_concurrent"`
	RequestsPerMinute int     `mapstructure:"requests_per_minute"`
	BaseURL           string  `mapstructure:"base_url"`
	APIKey            string  `mapstructure:"api_key"`
	Model             string  `mapstructure:"model"`
	Temperature       float64 `mapstructure:"temperature"`
	PromptTemplate    string  `mapstructure:"prompt_template"`
	// PromptFile, when set, replaces PromptTemplate with the file contents.
	PromptFile string `mapstructure:"prompt_file"`
}

type ValidationConfig struct {
	MaxConcurrent     int    `mapstructure:"max_concurrent"`
	RequestsPerMinute int    `mapstructure:"requests_per_minute"`
	PubMedAPIKey      string `mapstructure:"pubmed_api_key"`
}

func setDefaults(v *viper.Viper) {
	d := pipeline.DefaultSettings()
	v.SetDefault("window_size", d.WindowSize)
	v.SetDefault("overlap", d.Overlap)
	v.SetDefault("contact_email", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("metrics_addr", "")
	v.SetDefault("format", "yaml")

	v.SetDefault("extraction.max_concurrent", d.Extraction.MaxConcurrent)
	v.SetDefault("extraction.requests_per_minute", d.Extraction.RequestsPerMinute)
	v.SetDefault("extraction.base_url", extract.DefaultBaseURL)
	v.SetDefault("extraction.api_key", "")
	v.SetDefault("extraction.model", extract.DefaultModel)
	v.SetDefault("extraction.temperature", 0.0)
	v.SetDefault("extraction.prompt_template", "")
	v.SetDefault("extraction.prompt_file", "")

	v.SetDefault("validation.max_concurrent", d.Validation.MaxConcurrent)
	v.SetDefault("validation.requests_per_minute", d.Validation.RequestsPerMinute)
	v.SetDefault("validation.pubmed_api_key", "")
}

// Load reads configuration. path may be empty, in which case only defaults
// and the environment apply. A missing .env file is not an error.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	if c.Extraction.APIKey == "" {
		c.Extraction.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if c.Validation.PubMedAPIKey == "" {
		c.Validation.PubMedAPIKey = os.Getenv("NCBI_API_KEY")
	}
	if c.Extraction.PromptFile != "" {
		b, err := os.ReadFile(c.Extraction.PromptFile)
		if err != nil {
			return nil, fmt.Errorf("config: prompt file: %w", err)
		}
		c.Extraction.PromptTemplate = string(b)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate rejects settings the windower and limiters cannot work with.
func (c *Config) Validate() error {
	if c.WindowSize <= 0 {
		return fmt.Errorf("config: window_size must be positive, got %d", c.WindowSize)
	}
	if c.Overlap < 0 {
		return fmt.Errorf("config: overlap must not be negative, got %d", c.Overlap)
	}
	switch strings.ToLower(c.Format) {
	case "yaml", "json", "bibtex":
	default:
		return fmt.Errorf("config: unknown format %q", c.Format)
	}
	if c.Extraction.MaxConcurrent <= 0 || c.Validation.MaxConcurrent <= 0 {
		return fmt.Errorf("config: max_concurrent must be positive")
	}
	if c.Extraction.RequestsPerMinute <= 0 || c.Validation.RequestsPerMinute <= 0 {
		return fmt.Errorf("config: requests_per_minute must be positive")
	}
	return nil
}

// Settings converts c into pipeline settings.
func (c *Config) Settings() pipeline.Settings {
	return pipeline.Settings{
		WindowSize: c.WindowSize,
		Overlap:    c.Overlap,
		Extraction: ratelimit.Options{
			Name:              "extraction",
			MaxConcurrent:     c.Extraction.MaxConcurrent,
			RequestsPerMinute: c.Extraction.RequestsPerMinute,
		},
		Validation: ratelimit.Options{
			Name:              "validation",
			MaxConcurrent:     c.Validation.MaxConcurrent,
			RequestsPerMinute: c.Validation.RequestsPerMinute,
		},
		Extract: extract.Config{
			BaseURL:        c.Extraction.BaseURL,
			APIKey:         c.Extraction.APIKey,
			Model:          c.Extraction.Model,
			Temperature:    c.Extraction.Temperature,
			PromptTemplate: c.Extraction.PromptTemplate,
		},
		Contact:      c.ContactEmail,
		PubMedAPIKey: c.Validation.PubMedAPIKey,
	}
}
