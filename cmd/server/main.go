package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/mcoot/memorygrid/internal/api"
	"github.com/mcoot/memorygrid/internal/config"
	"github.com/mcoot/memorygrid/internal/factory"
	"github.com/mcoot/memorygrid/internal/services/janitor"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newCmd() *cobra.Command {
	cfg := &config.Config{}
	var envFile string

	cmd := &cobra.Command{
		Use:   "memgrid-server",
		Short: "Serve memory grid sessions over websockets",
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := config.ApplyEnv(cmd.Flags(), envFile); err != nil {
				return err
			}
			return cfg.Validate()
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), cfg)
		},
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	config.RegisterFlags(cmd.Flags(), cfg)
	cmd.Flags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading MEMGRID_* variables")

	cmd.CompletionOptions.HiddenDefaultCmd = true
	return cmd
}

func run(ctx context.Context, cfg *config.Config) error {
	logger := cfg.Logger(os.Stdout)
	slog.SetDefault(logger)

	app, err := factory.New(cfg.Factory(logger))
	if err != nil {
		return fmt.Errorf("create application: %w", err)
	}
	defer func() {
		if err := app.Close(); err != nil {
			logger.Error("close application", slog.String("error", err.Error()))
		}
	}()

	server := api.NewServer(app.Router, cfg.Server(), logger)
	sweeper := janitor.New(app.SessionController, app.AuthService, app.Clock, cfg.JanitorInterval, cfg.SessionTTL, logger)

	logger.Info("memory grid server starting",
		slog.String("addr", server.Addr()),
		slog.String("storage", cfg.Storage),
		slog.Duration("keepalive", cfg.Keepalive),
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.ListenAndRun(ctx)
	})
	g.Go(func() error {
		return sweeper.Run(ctx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("server stopped")
	return nil
}
