package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/SanjoDeundiak/oscam-supervisor/pkg/lib"
	"github.com/SanjoDeundiak/oscam-supervisor/pkg/lib/config"
	"github.com/SanjoDeundiak/oscam-supervisor/pkg/lib/deployer"
	"github.com/SanjoDeundiak/oscam-supervisor/pkg/lib/journal"
	"github.com/SanjoDeundiak/oscam-supervisor/pkg/lib/supervisor"
)

const (
	defaultConfigPath = "oscamd.yaml"
	shutdownTimeout   = 15 * time.Second
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		configPath string
		autostart  bool
	)

	cmd := &cobra.Command{
		Use:           "oscamd",
		Short:         "Oscam supervisor daemon",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if autostart {
				cfg.Autostart = true
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return run(ctx, cfg)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path of the YAML configuration")
	cmd.Flags().BoolVar(&autostart, "autostart", false, "start the supervised process immediately")

	return cmd
}

func run(ctx context.Context, cfg *config.Config) error {
	logger, err := newLogger(os.Stderr, cfg.LogLevel)
	if err != nil {
		return err
	}

	events := journal.RunNew[lib.StatusEvent](cfg.JournalLimit)
	defer events.Stop()

	sup, err := supervisor.New(supervisor.Options{
		Name:         cfg.DisplayName,
		Layout:       cfg.Layout(),
		Payload:      deployer.FilePayload(cfg.Payload),
		Sink:         lib.MultiSink{journal.Sink(events), logSink(logger.With("component", cfg.Name))},
		Logger:       logger.With("component", "supervisor"),
		KillTimeout:  cfg.KillTimeout,
		DrainTimeout: cfg.DrainTimeout,
	})
	if err != nil {
		return fmt.Errorf("failed to create supervisor: %w", err)
	}

	srv, err := NewGRPCServer(cfg, NewSupervisorServiceServer(sup, events, logger.With("component", "server")))
	if err != nil {
		return fmt.Errorf("failed to initialize server: %w", err)
	}
	logger.Info("Listening", "address", srv.Addr().String(), "tls", cfg.TLS.Enabled())

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.Serve()
	}()

	if cfg.Autostart {
		sup.Start()
	}

	select {
	case <-ctx.Done():
	case err = <-serveErr:
		err = fmt.Errorf("failed to serve: %w", err)
	}

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if serr := sup.Shutdown(shutdownCtx); serr != nil {
		logger.Error("Supervisor shutdown failed", "error", serr)
	}

	// Stopping the journal ends following watchers, so GracefulStop can return.
	events.Stop()
	srv.Stop()

	return err
}
