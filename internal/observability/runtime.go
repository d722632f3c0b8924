package observability

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/globetrotter/globetrotter-api/internal/config"

	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

type Runtime struct {
	Logger         *slog.Logger
	LoggerProvider *sdklog.LoggerProvider
	MeterProvider  *sdkmetric.MeterProvider
	TracerProvider *sdktrace.TracerProvider
}

// InitRuntime sets up logs first so metric and tracing setup is logged
// through the final handler.
func InitRuntime(ctx context.Context, cfg *config.Config, out io.Writer) (*Runtime, error) {
	lp, err := InitLogs(ctx, cfg)
	if err != nil {
		return nil, err
	}
	logger := NewLogger(cfg, out, lp)
	slog.SetDefault(logger)

	rt := &Runtime{Logger: logger, LoggerProvider: lp}
	rt.MeterProvider, err = InitMetrics(ctx, cfg, logger)
	if err != nil {
		_ = rt.Shutdown(ctx)
		return nil, err
	}
	rt.TracerProvider, err = InitTracing(ctx, cfg, logger)
	if err != nil {
		_ = rt.Shutdown(ctx)
		return nil, err
	}
	return rt, nil
}

func (r *Runtime) Shutdown(ctx context.Context) error {
	if r == nil {
		return nil
	}
	var errs []error
	if r.MeterProvider != nil {
		if err := r.MeterProvider.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if r.TracerProvider != nil {
		if err := r.TracerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if r.LoggerProvider != nil {
		if err := r.LoggerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
