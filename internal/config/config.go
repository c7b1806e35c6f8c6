// Package config loads researchd configuration.
//
// Precedence, highest first: environment variables, the YAML file, the
// defaults from Default().
package config

import (
	"fmt"
	"net/url"
	"time"
)

// Config is the complete researchd configuration.
type Config struct {
	Model     ModelConfig     `koanf:"model"`
	Memory    MemoryConfig    `koanf:"memory"`
	Prompts   PromptsConfig   `koanf:"prompts"`
	Quality   QualityConfig   `koanf:"quality"`
	Lifecycle LifecycleConfig `koanf:"lifecycle"`
	Server    ServerConfig    `koanf:"server"`
	Logging   LoggingConfig   `koanf:"logging"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
}

// ModelConfig configures the language model client.
type ModelConfig struct {
	APIKey            Secret   `koanf:"api_key"`
	BaseURL           string   `koanf:"base_url"`
	Model             string   `koanf:"model"`
	Timeout           Duration `koanf:"timeout"`
	MaxRetries        int      `koanf:"max_retries"`
	RequestsPerMinute int      `koanf:"requests_per_minute"`
	Burst             int      `koanf:"burst"`
	ScrubSecrets      bool     `koanf:"scrub_secrets"`
}

// MemoryConfig configures the project memory store.
type MemoryConfig struct {
	DataDir      string `koanf:"data_dir"`
	Version      string `koanf:"version"`
	SummaryChars int    `koanf:"summary_chars"`
}

// PromptsConfig configures the instruction source.
type PromptsConfig struct {
	Dir   string `koanf:"dir"`
	Watch bool   `koanf:"watch"`
}

// QualityConfig configures the three validation tiers.
type QualityConfig struct {
	MinCitations         int     `koanf:"min_citations"`
	Tolerance            float64 `koanf:"tolerance"`
	MinContextSimilarity float64 `koanf:"min_context_similarity"`
	ContextWords         int     `koanf:"context_words"`
	MinSharedTokens      int     `koanf:"min_shared_tokens"`
	PassThreshold        float64 `koanf:"pass_threshold"`
}

// LifecycleConfig configures executor scheduling.
type LifecycleConfig struct {
	Concurrent      bool     `koanf:"concurrent"`
	MaxConcurrency  int      `koanf:"max_concurrency"`
	ExecutorTimeout Duration `koanf:"executor_timeout"`
}

// ServerConfig configures the read-only HTTP surface.
type ServerConfig struct {
	HTTPPort        int      `koanf:"http_port"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
}

// LoggingConfig holds the user-facing logging knobs.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	OTEL   bool   `koanf:"otel"`
}

// TelemetryConfig configures OpenTelemetry export.
type TelemetryConfig struct {
	Enabled        bool     `koanf:"enabled"`
	Endpoint       string   `koanf:"endpoint"`
	Protocol       string   `koanf:"protocol"`
	Insecure       bool     `koanf:"insecure"`
	ServiceName    string   `koanf:"service_name"`
	SampleRate     float64  `koanf:"sample_rate"`
	ExportInterval Duration `koanf:"export_interval"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Model: ModelConfig{
			BaseURL:           "https://api.anthropic.com",
			Model:             "claude-sonnet-4-5",
			Timeout:           Duration(60 * time.Second),
			MaxRetries:        3,
			RequestsPerMinute: 50,
			Burst:             5,
			ScrubSecrets:      true,
		},
		Memory: MemoryConfig{
			DataDir:      "./data/project_memories",
			Version:      "4.0",
			SummaryChars: 200,
		},
		Prompts: PromptsConfig{
			Dir: "./prompts",
		},
		Quality: QualityConfig{
			MinCitations:         2,
			Tolerance:            2.0,
			MinContextSimilarity: 0.5,
			ContextWords:         6,
			MinSharedTokens:      3,
			PassThreshold:        0.85,
		},
		Lifecycle: LifecycleConfig{
			Concurrent:      true,
			ExecutorTimeout: Duration(5 * time.Minute),
		},
		Server: ServerConfig{
			HTTPPort:        9190,
			ShutdownTimeout: Duration(10 * time.Second),
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Telemetry: TelemetryConfig{
			Endpoint:       "localhost:4317",
			Protocol:       "grpc",
			ServiceName:    "researchd",
			SampleRate:     1.0,
			ExportInterval: Duration(15 * time.Second),
		},
	}
}

// Validate checks every section.
func (c *Config) Validate() error {
	if _, err := url.ParseRequestURI(c.Model.BaseURL); err != nil {
		return fmt.Errorf("%w: model.base_url %q: %v", ErrInvalidConfig, c.Model.BaseURL, err)
	}
	if c.Model.Model == "" {
		return fmt.Errorf("%w: model.model is required", ErrInvalidConfig)
	}
	if c.Model.MaxRetries < 0 {
		return fmt.Errorf("%w: model.max_retries must be >= 0", ErrInvalidConfig)
	}
	if c.Model.RequestsPerMinute <= 0 {
		return fmt.Errorf("%w: model.requests_per_minute must be > 0", ErrInvalidConfig)
	}
	if c.Memory.DataDir == "" {
		return fmt.Errorf("%w: memory.data_dir is required", ErrInvalidConfig)
	}
	if c.Memory.SummaryChars <= 0 {
		return fmt.Errorf("%w: memory.summary_chars must be > 0", ErrInvalidConfig)
	}
	if c.Quality.MinCitations < 0 {
		return fmt.Errorf("%w: quality.min_citations must be >= 0", ErrInvalidConfig)
	}
	if c.Quality.Tolerance <= 1 {
		return fmt.Errorf("%w: quality.tolerance must be > 1", ErrInvalidConfig)
	}
	if c.Quality.MinContextSimilarity < 0 || c.Quality.MinContextSimilarity > 1 {
		return fmt.Errorf("%w: quality.min_context_similarity must be in [0,1]", ErrInvalidConfig)
	}
	if c.Quality.ContextWords <= 0 || c.Quality.MinSharedTokens <= 0 {
		return fmt.Errorf("%w: quality.context_words and quality.min_shared_tokens must be > 0", ErrInvalidConfig)
	}
	if c.Quality.PassThreshold < 0 || c.Quality.PassThreshold > 1 {
		return fmt.Errorf("%w: quality.pass_threshold must be in [0,1]", ErrInvalidConfig)
	}
	if c.Lifecycle.MaxConcurrency < 0 {
		return fmt.Errorf("%w: lifecycle.max_concurrency must be >= 0", ErrInvalidConfig)
	}
	if c.Server.HTTPPort < 0 || c.Server.HTTPPort > 65535 {
		return fmt.Errorf("%w: server.http_port out of range", ErrInvalidConfig)
	}
	switch c.Telemetry.Protocol {
	case "grpc", "http/protobuf":
	default:
		return fmt.Errorf("%w: telemetry.protocol must be grpc or http/protobuf", ErrInvalidConfig)
	}
	return nil
}

// RequireCredential returns ErrMissingCredential when no API key is set.
func (c *Config) RequireCredential() error {
	if !c.Model.APIKey.IsSet() {
		return ErrMissingCredential
	}
	return nil
}
