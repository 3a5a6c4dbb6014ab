package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/internal/config"
	"github.com/MrEthical07/goSession/internal/logging"
	"github.com/spf13/cobra"
)

// host is the state shared by every subcommand after PersistentPreRunE.
type host struct {
	cfg    *config.HostConfig
	logger *slog.Logger
	stdout io.Writer
}

// BuildRootCmd returns the gosession command tree writing results to stdout
// and logs to stderr.
func BuildRootCmd(stdout, stderr io.Writer) *cobra.Command {
	var configFile, backend, logLevel string
	h := &host{stdout: stdout}

	cmd := &cobra.Command{
		Use:          "gosession",
		Short:        "Client session and auth gate for the booking site",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configFile)
			if err != nil {
				return err
			}
			if backend != "" {
				cfg.Storage.Backend = backend
				if err := cfg.Validate(); err != nil {
					return err
				}
			}
			if logLevel != "" {
				cfg.Log.Level = logLevel
			}
			h.cfg = cfg
			h.logger = logging.New(stderr, cfg.Log.Level, cfg.Log.Format)
			return nil
		},
	}
	cmd.CompletionOptions.DisableDefaultCmd = true
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default $HOME/.gosession/config.yaml)")
	cmd.PersistentFlags().StringVar(&backend, "backend", "", "storage backend: memory, file, redis or sqlite")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn or error")

	cmd.AddCommand(
		newLoginCmd(h),
		newLogoutCmd(h),
		newWhoamiCmd(h),
		newGateCmd(h),
		newServeCmd(h),
	)
	return cmd
}

// openStore opens the configured backend and builds a store over it. The
// returned close function flushes the store before releasing the backend.
func (h *host) openStore(ctx context.Context, scheduler goSession.Scheduler) (*goSession.Store, func(), error) {
	backend, release, err := openStorage(h.cfg.Storage, h.logger)
	if err != nil {
		return nil, nil, err
	}

	b := goSession.New().
		WithConfig(h.cfg.StoreConfig()).
		WithStorage(backend).
		WithEventSink(goSession.NewSlogSink(h.logger.With("component", "events"))).
		WithLogger(h.logger)
	if scheduler != nil {
		b = b.WithScheduler(scheduler)
	}

	store, err := b.Build(ctx)
	if err != nil {
		release()
		return nil, nil, fmt.Errorf("build session store: %w", err)
	}

	closeFn := func() {
		store.Close()
		release()
	}
	return store, closeFn, nil
}
