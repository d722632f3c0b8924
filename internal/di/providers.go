package di

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/google/wire"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/globetrotter/globetrotter-api/internal/app"
	"github.com/globetrotter/globetrotter-api/internal/config"
	"github.com/globetrotter/globetrotter-api/internal/database"
	"github.com/globetrotter/globetrotter-api/internal/health"
	"github.com/globetrotter/globetrotter-api/internal/http/handler"
	"github.com/globetrotter/globetrotter-api/internal/http/middleware"
	"github.com/globetrotter/globetrotter-api/internal/http/router"
	"github.com/globetrotter/globetrotter-api/internal/observability"
	"github.com/globetrotter/globetrotter-api/internal/repository"
	"github.com/globetrotter/globetrotter-api/internal/security"
	"github.com/globetrotter/globetrotter-api/internal/service"
)

const (
	defaultProbeTimeout  = 2 * time.Second
	defaultProbeCacheTTL = 2 * time.Second
)

var StorageSet = wire.NewSet(
	provideDB,
	provideRedis,
	repository.NewUserRepository,
	repository.NewSessionRepository,
	repository.NewRevokedTokenRepository,
	repository.NewPasswordResetRepository,
)

var ServiceSet = wire.NewSet(
	provideTokenIssuer,
	providePasswordHasher,
	provideRevocationCache,
	provideTokenService,
	provideSessionService,
	provideRevocationService,
	providePasswordResetService,
	provideResetNotifier,
	provideResetTokenExposure,
	provideAuthService,
	provideProfileService,
	provideRetentionSweeper,
	wire.Bind(new(service.AuthServiceInterface), new(*service.AuthService)),
	wire.Bind(new(service.ProfileServiceInterface), new(*service.ProfileService)),
	wire.Bind(new(middleware.RevocationChecker), new(*service.RevocationService)),
)

var HTTPSet = wire.NewSet(
	handler.NewAuthHandler,
	handler.NewProfileHandler,
	provideGlobalRateLimiter,
	provideAuthRateLimiter,
	provideForgotRateLimiter,
	provideReadiness,
	provideRouterDependencies,
	router.NewRouter,
	provideHTTPServer,
)

// provideObservability's cleanup flushes exporters. App.Shutdown does the same
// on the normal path, so the cleanup only matters when a later provider fails.
func provideObservability(ctx context.Context, cfg *config.Config) (*observability.Runtime, func(), error) {
	rt, err := observability.InitRuntime(ctx, cfg, os.Stdout)
	if err != nil {
		return nil, nil, err
	}
	timeout := cfg.ShutdownObservabilityTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	cleanup := func() {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
		defer cancel()
		_ = rt.Shutdown(ctx)
	}
	return rt, cleanup, nil
}

func provideLogger(rt *observability.Runtime) *slog.Logger {
	return rt.Logger
}

// provideDB opens the database and brings the schema up to date.
func provideDB(ctx context.Context, cfg *config.Config) (*gorm.DB, func(), error) {
	db, err := database.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	if err := database.AutoMigrate(ctx, db); err != nil {
		_ = database.Close(db)
		return nil, nil, err
	}
	return db, func() { _ = database.Close(db) }, nil
}

// provideRedis returns nil when REDIS_URL is unset; every consumer then falls
// back to its in-process implementation.
func provideRedis(ctx context.Context, cfg *config.Config) (redis.UniversalClient, func(), error) {
	if cfg.RedisURL == "" {
		return nil, func() {}, nil
	}
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, func() { _ = client.Close() }, nil
}

func provideTokenIssuer(cfg *config.Config) *security.TokenIssuer {
	return security.NewTokenIssuer(cfg.JWTIssuer, cfg.JWTAudience, cfg.JWTAccessSecret, cfg.JWTAccessTTL)
}

func providePasswordHasher(cfg *config.Config) *security.PasswordHasher {
	return security.NewPasswordHasher(cfg.BcryptCost)
}

func provideRevocationCache(cfg *config.Config, client redis.UniversalClient) service.RevocationCacheStore {
	if client == nil {
		return service.NewInMemoryRevocationCacheStore()
	}
	return service.NewRedisRevocationCacheStore(client, cfg.RedisKeyPrefix)
}

func provideTokenService(cfg *config.Config, issuer *security.TokenIssuer, sessions repository.SessionRepository) *service.TokenService {
	return service.NewTokenService(issuer, sessions, cfg.TokenHashPepper, cfg.RefreshTokenTTL)
}

func provideSessionService(cfg *config.Config, sessions repository.SessionRepository) *service.SessionService {
	return service.NewSessionService(sessions, cfg.TokenHashPepper)
}

func provideRevocationService(cfg *config.Config, issuer *security.TokenIssuer, repo repository.RevokedTokenRepository, cache service.RevocationCacheStore, logger *slog.Logger) *service.RevocationService {
	return service.NewRevocationService(issuer, repo, cache, cfg.TokenHashPepper, logger)
}

func providePasswordResetService(cfg *config.Config, repo repository.PasswordResetRepository, hasher *security.PasswordHasher) *service.PasswordResetService {
	return service.NewPasswordResetService(repo, hasher, cfg.TokenHashPepper, cfg.PasswordResetTTL)
}

func provideResetNotifier(logger *slog.Logger) service.ResetNotifier {
	return service.NewLogResetNotifier(logger)
}

func provideResetTokenExposure(cfg *config.Config) service.ResetTokenExposure {
	return service.ResetTokenExposure(cfg.ExposeResetToken)
}

func provideAuthService(
	users repository.UserRepository,
	hasher *security.PasswordHasher,
	tokens *service.TokenService,
	sessions *service.SessionService,
	revocations *service.RevocationService,
	resets *service.PasswordResetService,
	notifier service.ResetNotifier,
	expose service.ResetTokenExposure,
	logger *slog.Logger,
) *service.AuthService {
	return service.NewAuthService(users, hasher, tokens, sessions, revocations, resets, notifier, expose, logger)
}

func provideProfileService(users repository.UserRepository, hasher *security.PasswordHasher, revocations *service.RevocationService, logger *slog.Logger) *service.ProfileService {
	return service.NewProfileService(users, hasher, revocations, logger)
}

func provideRetentionSweeper(
	cfg *config.Config,
	sessions repository.SessionRepository,
	resets repository.PasswordResetRepository,
	revoked repository.RevokedTokenRepository,
	logger *slog.Logger,
) *service.RetentionSweeper {
	return service.NewRetentionSweeper(sessions, resets, revoked, cfg.RetentionSweepInterval, logger)
}

func failureMode(cfg *config.Config) middleware.FailureMode {
	if cfg.RateLimitFailOpen {
		return middleware.FailOpen
	}
	return middleware.FailClosed
}

// newScopedLimiter shares counters through Redis when a client is available
// so every replica enforces the same budget.
func newScopedLimiter(cfg *config.Config, client redis.UniversalClient, scope string, limit int, window time.Duration) *middleware.RateLimiter {
	if client == nil {
		return middleware.NewRateLimiter(scope, limit, window)
	}
	backend := middleware.NewRedisSlidingWindowLimiter(client, cfg.RedisKeyPrefix)
	return middleware.NewDistributedRateLimiter(backend, scope, limit, window, failureMode(cfg))
}

func provideGlobalRateLimiter(cfg *config.Config) router.GlobalRateLimiterFunc {
	return middleware.APIRateLimit(cfg.APIRateLimitPerMinute)
}

func provideAuthRateLimiter(cfg *config.Config, client redis.UniversalClient) router.AuthRateLimiterFunc {
	return newScopedLimiter(cfg, client, "auth", cfg.AuthRateLimit, cfg.AuthRateLimitWindow).
		WithMessage(router.AuthRateLimitMessage).
		Middleware()
}

func provideForgotRateLimiter(cfg *config.Config, client redis.UniversalClient) router.ForgotRateLimiterFunc {
	return newScopedLimiter(cfg, client, "forgot", cfg.ForgotRateLimit, cfg.ForgotRateLimitWindow).
		WithMessage(router.ForgotRateLimitMessage).
		Middleware()
}

func provideReadiness(db *gorm.DB, client redis.UniversalClient) *health.ProbeRunner {
	checkers := []health.Checker{health.NewDBChecker(db)}
	if client != nil {
		checkers = append(checkers, health.NewRedisChecker(client))
	}
	return health.NewProbeRunner(defaultProbeTimeout, defaultProbeCacheTTL, checkers...)
}

func provideRouterDependencies(
	cfg *config.Config,
	authHandler *handler.AuthHandler,
	profileHandler *handler.ProfileHandler,
	issuer *security.TokenIssuer,
	revocations middleware.RevocationChecker,
	globalLimiter router.GlobalRateLimiterFunc,
	authLimiter router.AuthRateLimiterFunc,
	forgotLimiter router.ForgotRateLimiterFunc,
	readiness *health.ProbeRunner,
) router.Dependencies {
	return router.Dependencies{
		AuthHandler:       authHandler,
		ProfileHandler:    profileHandler,
		TokenIssuer:       issuer,
		Revocations:       revocations,
		CORSOrigins:       cfg.CORSAllowedOrigins,
		APIRateLimitRPM:   cfg.APIRateLimitPerMinute,
		GlobalRateLimiter: globalLimiter,
		AuthRateLimiter:   authLimiter,
		ForgotRateLimiter: forgotLimiter,
		Readiness:         readiness,
		EnableOTelHTTP:    cfg.OTELTracingEnabled || cfg.OTELMetricsEnabled,
	}
}

func provideHTTPServer(cfg *config.Config, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           h,
		ReadHeaderTimeout: cfg.HTTPReadHeaderTimeout,
		ReadTimeout:       cfg.HTTPReadTimeout,
		WriteTimeout:      cfg.HTTPWriteTimeout,
		IdleTimeout:       cfg.HTTPIdleTimeout,
	}
}

// provideBackgroundTasks starts the retention sweeper. The returned function
// stops it and waits for reset requests still being issued.
func provideBackgroundTasks(ctx context.Context, sweeper *service.RetentionSweeper, auth *service.AuthService) func() {
	stopSweeper := sweeper.Start(ctx)
	return func() {
		stopSweeper()
		auth.WaitPendingResets()
	}
}

func provideApp(
	cfg *config.Config,
	logger *slog.Logger,
	server *http.Server,
	rt *observability.Runtime,
	db *gorm.DB,
	client redis.UniversalClient,
	readiness *health.ProbeRunner,
	stop func(),
) *app.App {
	return app.New(cfg, logger, server, rt, db, client, readiness, stop)
}

// Maintenance bundles what the one-shot CLI commands need.
type Maintenance struct {
	DB      *gorm.DB
	Sweeper *service.RetentionSweeper
}

func newMaintenance(db *gorm.DB, sweeper *service.RetentionSweeper) *Maintenance {
	return &Maintenance{DB: db, Sweeper: sweeper}
}

