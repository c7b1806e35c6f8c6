package main

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	httpapi "github.com/fyrsmithlabs/researchd/internal/http"
	"github.com/fyrsmithlabs/researchd/internal/quality"
)

type serveOptions struct {
	host string
	port int
}

func newServeCmd(global *globalOptions) *cobra.Command {
	opts := &serveOptions{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve project memory and metrics over HTTP",
		Long: `Serve starts a read-only HTTP server over the memory data directory with
/health, /metrics and the /api/v1/projects endpoints. It stops on SIGINT
or SIGTERM.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), global, opts)
		},
	}
	cmd.Flags().StringVar(&opts.host, "host", "localhost", "listen host")
	cmd.Flags().IntVar(&opts.port, "port", 0, "listen port (default: server.http_port)")
	return cmd
}

// newRegistry holds the process and quality collectors exposed at /metrics.
func newRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	quality.NewMetrics(reg)
	return reg
}

func serve(ctx context.Context, global *globalOptions, opts *serveOptions) error {
	a, err := loadApp(ctx, global)
	if err != nil {
		return err
	}
	defer a.close(context.WithoutCancel(ctx))

	store, err := a.store()
	if err != nil {
		return err
	}
	port := opts.port
	if port == 0 {
		port = a.cfg.Server.HTTPPort
	}
	srv, err := httpapi.NewServer(store, newRegistry(), a.logger, &httpapi.Config{Host: opts.host, Port: port})
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.cfg.Server.ShutdownTimeout.Duration())
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		a.logger.Error(shutdownCtx, "http shutdown failed", zap.Error(err))
		return err
	}
	return <-errCh
}
