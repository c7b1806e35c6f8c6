package main

import (
	"context"
	"fmt"

	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/researchd/internal/config"
	"github.com/fyrsmithlabs/researchd/internal/logging"
	"github.com/fyrsmithlabs/researchd/internal/memory"
	"github.com/fyrsmithlabs/researchd/internal/quality"
	"github.com/fyrsmithlabs/researchd/internal/telemetry"
)

// app holds process-wide dependencies built from configuration.
type app struct {
	cfg       *config.Config
	logger    *logging.Logger
	telemetry *telemetry.Telemetry
}

func loadApp(ctx context.Context, opts *globalOptions) (*app, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}
	if opts.logLevel != "" {
		cfg.Logging.Level = opts.logLevel
	}

	tel, err := telemetry.New(ctx, telemetryConfig(cfg))
	if err != nil {
		return nil, err
	}
	logger, err := newLogger(cfg, tel)
	if err != nil {
		_ = tel.Shutdown(ctx)
		return nil, err
	}
	if tel.Degraded() {
		logger.Warn(ctx, "telemetry export unavailable, continuing without it")
	}
	return &app{cfg: cfg, logger: logger, telemetry: tel}, nil
}

func (a *app) close(ctx context.Context) {
	_ = a.logger.Sync()
	_ = a.telemetry.Shutdown(ctx)
}

func (a *app) store() (*memory.Store, error) {
	return memory.NewStore(a.cfg.Memory.DataDir,
		memory.WithVersion(a.cfg.Memory.Version),
		memory.WithSummaryChars(a.cfg.Memory.SummaryChars),
		memory.WithLogger(a.logger),
	)
}

func (a *app) scorer(m *quality.Metrics) *quality.Scorer {
	return quality.NewScorer(
		quality.WithThreshold(a.cfg.Quality.PassThreshold),
		quality.WithScorerMetrics(m),
	)
}

func telemetryConfig(cfg *config.Config) telemetry.Config {
	tc := telemetry.NewDefaultConfig()
	tc.Enabled = cfg.Telemetry.Enabled
	tc.Endpoint = cfg.Telemetry.Endpoint
	tc.Protocol = cfg.Telemetry.Protocol
	tc.Insecure = cfg.Telemetry.Insecure
	tc.ServiceName = cfg.Telemetry.ServiceName
	tc.ServiceVersion = version
	tc.SampleRate = cfg.Telemetry.SampleRate
	if d := cfg.Telemetry.ExportInterval.Duration(); d > 0 {
		tc.ExportInterval = d
	}
	return tc
}

func newLogger(cfg *config.Config, tel *telemetry.Telemetry) (*logging.Logger, error) {
	lc := logging.NewDefaultConfig()
	level, err := zapcore.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("%w: logging.level: %v", config.ErrInvalidConfig, err)
	}
	lc.Level = level
	if cfg.Logging.Format != "" {
		lc.Format = cfg.Logging.Format
	}
	lc.Output.OTEL = cfg.Logging.OTEL
	return logging.NewLogger(lc, tel.LoggerProvider())
}
