package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/globetrotter/globetrotter-api/internal/config"
	"github.com/globetrotter/globetrotter-api/internal/database"
	"github.com/globetrotter/globetrotter-api/internal/di"
	"github.com/globetrotter/globetrotter-api/internal/observability"
	"github.com/globetrotter/globetrotter-api/internal/tools/loadgen"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var envFile string
	cmd := &cobra.Command{
		Use:           "globetrotter-api",
		Short:         "GlobeTrotter authentication and session API",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return config.LoadEnvFile(envFile)
		},
	}
	cmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading the environment")

	cmd.AddCommand(newServeCommand())
	cmd.AddCommand(newMigrateCommand())
	cmd.AddCommand(newSweepCommand())
	cmd.AddCommand(newLoadgenCommand())
	return cmd
}

func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
}

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the retention sweeper",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			ctx, stop := signalContext(cmd)
			defer stop()

			a, cleanup, err := di.InitializeApp(ctx, cfg)
			if err != nil {
				return fmt.Errorf("initialize app: %w", err)
			}
			defer cleanup()
			return a.Run(ctx)
		},
	}
}

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			ctx, stop := signalContext(cmd)
			defer stop()

			db, err := database.Open(ctx, cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer func() { _ = database.Close(db) }()
			if err := database.AutoMigrate(ctx, db); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "schema up to date")
			return nil
		},
	}
}

func newSweepCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Delete expired sessions, reset tokens and blacklist entries once",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			ctx, stop := signalContext(cmd)
			defer stop()

			logger := observability.NewLogger(cfg, os.Stdout, nil)
			m, cleanup, err := di.InitializeMaintenance(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer cleanup()

			res, err := m.Sweeper.RunOnce(ctx)
			logger.InfoContext(ctx, "retention sweep finished",
				slog.Int64("sessions_deleted", res.Sessions),
				slog.Int64("reset_tokens_deleted", res.ResetTokens),
				slog.Int64("revoked_tokens_deleted", res.RevokedTokens))
			return err
		},
	}
}

func newLoadgenCommand() *cobra.Command {
	var cfg loadgen.Config
	cmd := &cobra.Command{
		Use:   "loadgen",
		Short: "Drive signup, refresh and logout traffic against a running API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext(cmd)
			defer stop()

			res, err := loadgen.Run(ctx, cfg)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "total=%d failures=%d rate_limited=%d classes=%v\n",
				res.TotalRequests, res.Failures, res.RateLimited, res.StatusClasses)
			if res.Failures > 0 {
				return fmt.Errorf("%d requests failed", res.Failures)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&cfg.BaseURL, "base-url", "http://localhost:8080", "API base URL")
	cmd.Flags().StringVar(&cfg.Profile, "profile", "mixed", "traffic profile: health, auth or mixed")
	cmd.Flags().DurationVar(&cfg.Duration, "duration", 10*time.Second, "how long to send traffic")
	cmd.Flags().IntVar(&cfg.RPS, "rps", 10, "requests started per second")
	cmd.Flags().IntVar(&cfg.Concurrency, "concurrency", 4, "parallel workers")
	cmd.Flags().Int64Var(&cfg.Seed, "seed", time.Now().UnixNano(), "seed for scenario selection and generated emails")
	return cmd
}
