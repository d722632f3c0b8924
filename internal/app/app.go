package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/globetrotter/globetrotter-api/internal/config"
	"github.com/globetrotter/globetrotter-api/internal/database"
	"github.com/globetrotter/globetrotter-api/internal/health"
	"github.com/globetrotter/globetrotter-api/internal/observability"
)

type App struct {
	Config        *config.Config
	Logger        *slog.Logger
	Server        *http.Server
	Observability *observability.Runtime
	DB            *gorm.DB
	Redis         redis.UniversalClient
	Readiness     *health.ProbeRunner

	ShutdownTimeout              time.Duration
	ShutdownHTTPDrainTimeout     time.Duration
	ShutdownObservabilityTimeout time.Duration

	// StopBackgroundTasks stops the retention sweeper and waits for an
	// in-flight sweep.
	StopBackgroundTasks func()
}

func New(
	cfg *config.Config,
	logger *slog.Logger,
	server *http.Server,
	runtime *observability.Runtime,
	db *gorm.DB,
	redisClient redis.UniversalClient,
	readiness *health.ProbeRunner,
	stopBackgroundTasks func(),
) *App {
	if stopBackgroundTasks == nil {
		stopBackgroundTasks = func() {}
	}
	return &App{
		Config:                       cfg,
		Logger:                       logger,
		Server:                       server,
		Observability:                runtime,
		DB:                           db,
		Redis:                        redisClient,
		Readiness:                    readiness,
		ShutdownTimeout:              cfg.ShutdownTimeout,
		ShutdownHTTPDrainTimeout:     cfg.ShutdownHTTPDrainTimeout,
		ShutdownObservabilityTimeout: cfg.ShutdownObservabilityTimeout,
		StopBackgroundTasks:          stopBackgroundTasks,
	}
}

// Run serves HTTP until ctx is cancelled or the listener fails, then shuts
// everything down in order: HTTP drain, background tasks, storage clients,
// telemetry.
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.Logger.Info("http server listening", "addr", a.Server.Addr)
		if err := a.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		return a.Shutdown(context.Background())
	})
	return g.Wait()
}

func (a *App) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, positive(a.ShutdownTimeout, 20*time.Second))
	defer cancel()
	a.Logger.InfoContext(ctx, "shutting down")

	var errs []error
	drainCtx, drainCancel := context.WithTimeout(ctx, positive(a.ShutdownHTTPDrainTimeout, 10*time.Second))
	if err := a.Server.Shutdown(drainCtx); err != nil {
		errs = append(errs, err)
	}
	drainCancel()

	a.StopBackgroundTasks()

	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if a.DB != nil {
		if err := database.Close(a.DB); err != nil {
			errs = append(errs, err)
		}
	}

	obsCtx, obsCancel := context.WithTimeout(ctx, positive(a.ShutdownObservabilityTimeout, 5*time.Second))
	defer obsCancel()
	if err := a.Observability.Shutdown(obsCtx); err != nil {
		errs = append(errs, err)
	}

	if err := errors.Join(errs...); err != nil {
		a.Logger.ErrorContext(ctx, "shutdown finished with errors", "error", err)
		return err
	}
	a.Logger.InfoContext(ctx, "shutdown complete")
	return nil
}

func positive(d, fallback time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return fallback
}
