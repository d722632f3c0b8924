package config

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	AppEnv   string `env:"APP_ENV,default=development"`
	HTTPAddr string `env:"HTTP_ADDR,default=:8080"`
	LogLevel string `env:"LOG_LEVEL,default=info"`

	DatabaseURL    string `env:"DATABASE_URL,default=sqlite:globetrotter.db"`
	RedisURL       string `env:"REDIS_URL"`
	RedisKeyPrefix string `env:"REDIS_KEY_PREFIX,default=globetrotter"`

	JWTIssuer        string        `env:"JWT_ISSUER,default=globetrotter-api"`
	JWTAudience      string        `env:"JWT_AUDIENCE,default=globetrotter-web"`
	JWTAccessSecret  string        `env:"JWT_ACCESS_SECRET"`
	JWTAccessTTL     time.Duration `env:"JWT_ACCESS_TTL,default=15m"`
	RefreshTokenTTL  time.Duration `env:"REFRESH_TOKEN_TTL,default=720h"`
	PasswordResetTTL time.Duration `env:"PASSWORD_RESET_TTL,default=1h"`
	TokenHashPepper  string        `env:"TOKEN_HASH_PEPPER"`
	BcryptCost       int           `env:"BCRYPT_COST,default=12"`
	ExposeResetToken bool          `env:"AUTH_EXPOSE_RESET_TOKEN,default=false"`

	AuthRateLimit         int           `env:"AUTH_RATE_LIMIT,default=10"`
	AuthRateLimitWindow   time.Duration `env:"AUTH_RATE_LIMIT_WINDOW,default=15m"`
	ForgotRateLimit       int           `env:"FORGOT_RATE_LIMIT,default=3"`
	ForgotRateLimitWindow time.Duration `env:"FORGOT_RATE_LIMIT_WINDOW,default=1h"`
	APIRateLimitPerMinute int           `env:"API_RATE_LIMIT_RPM,default=600"`
	RateLimitFailOpen     bool          `env:"RATE_LIMIT_FAIL_OPEN,default=false"`

	RetentionSweepInterval time.Duration `env:"RETENTION_SWEEP_INTERVAL,default=1h"`
	CORSAllowedOrigins     []string      `env:"CORS_ALLOWED_ORIGINS,default=http://localhost:5173"`

	HTTPReadHeaderTimeout time.Duration `env:"HTTP_READ_HEADER_TIMEOUT,default=5s"`
	HTTPReadTimeout       time.Duration `env:"HTTP_READ_TIMEOUT,default=15s"`
	HTTPWriteTimeout      time.Duration `env:"HTTP_WRITE_TIMEOUT,default=15s"`
	HTTPIdleTimeout       time.Duration `env:"HTTP_IDLE_TIMEOUT,default=60s"`

	ShutdownTimeout              time.Duration `env:"SHUTDOWN_TIMEOUT,default=20s"`
	ShutdownHTTPDrainTimeout     time.Duration `env:"SHUTDOWN_HTTP_DRAIN_TIMEOUT,default=10s"`
	ShutdownObservabilityTimeout time.Duration `env:"SHUTDOWN_OBSERVABILITY_TIMEOUT,default=5s"`

	OTELServiceName           string        `env:"OTEL_SERVICE_NAME,default=globetrotter-api"`
	OTELEnvironment           string        `env:"OTEL_ENVIRONMENT,default=development"`
	OTELExporterOTLPEndpoint  string        `env:"OTEL_EXPORTER_OTLP_ENDPOINT,default=localhost:4317"`
	OTELExporterOTLPInsecure  bool          `env:"OTEL_EXPORTER_OTLP_INSECURE,default=true"`
	OTELMetricsEnabled        bool          `env:"OTEL_METRICS_ENABLED,default=false"`
	OTELTracingEnabled        bool          `env:"OTEL_TRACING_ENABLED,default=false"`
	OTELLogsEnabled           bool          `env:"OTEL_LOGS_ENABLED,default=false"`
	OTELMetricsExportInterval time.Duration `env:"OTEL_METRICS_EXPORT_INTERVAL,default=15s"`
	OTELTraceSampleRatio      float64       `env:"OTEL_TRACE_SAMPLE_RATIO,default=1"`
}

func Load() (*Config, error) {
	return LoadWithLookuper(context.Background(), envconfig.OsLookuper())
}

// LoadWithLookuper is Load with an injectable environment source.
func LoadWithLookuper(ctx context.Context, lookuper envconfig.Lookuper) (*Config, error) {
	cfg := &Config{}
	err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: cfg, Lookuper: lookuper})
	if err != nil {
		err = fmt.Errorf("%w: %w", errParseEnvironment, err)
	} else if verr := cfg.Validate(); verr != nil {
		err = fmt.Errorf("%w: %w", errInvalidConfig, verr)
	}

	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	recordConfigValidationEvent(ctx, cfg.AppEnv, outcome, classifyConfigLoadError(err))
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) IsProduction() bool {
	return normalizeConfigProfile(c.AppEnv) == "production"
}

func (c *Config) Validate() error {
	var errs []error
	if len(c.JWTAccessSecret) < 32 {
		errs = append(errs, fmt.Errorf("%w: JWT_ACCESS_SECRET must be at least 32 bytes", errWeakSecret))
	}
	if len(c.TokenHashPepper) < 16 {
		errs = append(errs, fmt.Errorf("%w: TOKEN_HASH_PEPPER must be at least 16 bytes", errWeakSecret))
	}
	if strings.TrimSpace(c.DatabaseURL) == "" {
		errs = append(errs, errors.New("DATABASE_URL is required"))
	}
	if c.BcryptCost < 12 || c.BcryptCost > 31 {
		errs = append(errs, errors.New("BCRYPT_COST must be between 12 and 31"))
	}
	if c.JWTAccessTTL <= 0 || c.RefreshTokenTTL <= 0 || c.PasswordResetTTL <= 0 {
		errs = append(errs, errors.New("token TTLs must be positive"))
	}
	if c.RefreshTokenTTL <= c.JWTAccessTTL {
		errs = append(errs, errors.New("REFRESH_TOKEN_TTL must exceed JWT_ACCESS_TTL"))
	}
	if c.AuthRateLimit <= 0 || c.ForgotRateLimit <= 0 || c.APIRateLimitPerMinute <= 0 {
		errs = append(errs, errors.New("rate limits must be positive"))
	}
	if c.AuthRateLimitWindow <= 0 || c.ForgotRateLimitWindow <= 0 {
		errs = append(errs, errors.New("rate limit windows must be positive"))
	}
	if c.RetentionSweepInterval <= 0 {
		errs = append(errs, errors.New("RETENTION_SWEEP_INTERVAL must be positive"))
	}
	if c.IsProduction() && c.ExposeResetToken {
		errs = append(errs, fmt.Errorf("%w: AUTH_EXPOSE_RESET_TOKEN must be disabled", errUnsafeProduction))
	}
	if c.OTELTraceSampleRatio < 0 || c.OTELTraceSampleRatio > 1 {
		errs = append(errs, errors.New("OTEL_TRACE_SAMPLE_RATIO must be within [0,1]"))
	}
	return errors.Join(errs...)
}
