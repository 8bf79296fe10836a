package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/okian/clash/internal/config"
	"github.com/okian/clash/pkg/logger"
	"github.com/okian/clash/pkg/metrics"
)

func main() {
	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		// The logger may not be initialized yet.
		fmt.Fprintln(os.Stderr, "clash:", err)
		os.Exit(1)
	}
}

// newRootCmd builds the command tree. Running the binary without a
// subcommand starts the HTTP server.
func newRootCmd() *cobra.Command {
	var cfg *config.Config

	root := &cobra.Command{
		Use:           "clash",
		Short:         "Event conflict detection and scoring service",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			loaded, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			cfg = loaded
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), cfg)
		},
	}

	cfgFn := func() *config.Config { return cfg }
	root.AddCommand(
		serveCmd(cfgFn),
		detectCmd(cfgFn),
		scoreCmd(cfgFn),
		importCmd(cfgFn),
	)
	return root
}

// setup loads configuration (defaults -> optional file -> env) and applies
// the logging and metrics settings.
func setup(ctx context.Context) (*config.Config, error) {
	if err := logger.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize logging: %w", err)
	}
	cfg, err := config.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := logger.SetFormat(cfg.LogFormat); err != nil {
		return nil, err
	}
	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		logger.Get().Warn(ctx, "invalid log_level; falling back to info",
			logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}
	metrics.Configure(metrics.WithMetricsEnabled(cfg.MetricsEnabled), metrics.WithTenant(cfg.Tenant))
	return cfg, nil
}
