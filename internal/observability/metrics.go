package observability

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/globetrotter/globetrotter-api/internal/config"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

const meterName = "globetrotter-api"

type AppMetrics struct {
	authEvents            metric.Int64Counter
	repositoryOperations  metric.Int64Counter
	tokenValidations      metric.Int64Counter
	rateLimitDecisions    metric.Int64Counter
	rateLimitRetryAfter   metric.Float64Histogram
	retentionSweepRows    metric.Int64Counter
	retentionSweepRuns    metric.Int64Counter
	revocationCacheEvents metric.Int64Counter
}

var (
	metricsMu  sync.RWMutex
	appMetrics *AppMetrics
)

func InitMetrics(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*sdkmetric.MeterProvider, error) {
	var mp *sdkmetric.MeterProvider
	if !cfg.OTELMetricsEnabled {
		mp = sdkmetric.NewMeterProvider()
		logger.Info("otel metrics disabled")
	} else {
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(cfg.OTELExporterOTLPEndpoint)}
		if cfg.OTELExporterOTLPInsecure {
			opts = append(opts, otlpmetricgrpc.WithInsecure())
		}
		exporter, err := otlpmetricgrpc.New(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("create otlp metric exporter: %w", err)
		}
		res, err := newResource(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("create metric resource: %w", err)
		}
		reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(cfg.OTELMetricsExportInterval))
		mp = sdkmetric.NewMeterProvider(sdkmetric.WithResource(res), sdkmetric.WithReader(reader))
		logger.Info("otel metrics initialized", "endpoint", cfg.OTELExporterOTLPEndpoint)
	}
	otel.SetMeterProvider(mp)

	m, err := newAppMetrics(mp.Meter(meterName))
	if err != nil {
		return nil, err
	}
	setAppMetrics(m)
	return mp, nil
}

func newAppMetrics(meter metric.Meter) (*AppMetrics, error) {
	var (
		m   AppMetrics
		err error
	)
	if m.authEvents, err = meter.Int64Counter("auth.events"); err != nil {
		return nil, err
	}
	if m.repositoryOperations, err = meter.Int64Counter("repository.operations"); err != nil {
		return nil, err
	}
	if m.tokenValidations, err = meter.Int64Counter("auth.access_token.validations"); err != nil {
		return nil, err
	}
	if m.rateLimitDecisions, err = meter.Int64Counter("ratelimit.decisions"); err != nil {
		return nil, err
	}
	if m.rateLimitRetryAfter, err = meter.Float64Histogram("ratelimit.retry_after", metric.WithUnit("s")); err != nil {
		return nil, err
	}
	if m.retentionSweepRows, err = meter.Int64Counter("retention.sweep.rows_deleted"); err != nil {
		return nil, err
	}
	if m.retentionSweepRuns, err = meter.Int64Counter("retention.sweep.runs"); err != nil {
		return nil, err
	}
	if m.revocationCacheEvents, err = meter.Int64Counter("revocation.cache.events"); err != nil {
		return nil, err
	}
	return &m, nil
}

func setAppMetrics(m *AppMetrics) {
	metricsMu.Lock()
	appMetrics = m
	metricsMu.Unlock()
}

func currentMetrics() *AppMetrics {
	metricsMu.RLock()
	defer metricsMu.RUnlock()
	return appMetrics
}

// RecordAuthEvent counts an auth flow outcome, e.g. ("login", "invalid_credentials").
func RecordAuthEvent(ctx context.Context, event, status string) {
	m := currentMetrics()
	if m == nil {
		return
	}
	m.authEvents.Add(ctx, 1, metric.WithAttributes(
		attribute.String("event", event),
		attribute.String("status", status),
	))
}

func RecordRepositoryOperation(ctx context.Context, entity, operation, outcome string) {
	m := currentMetrics()
	if m == nil {
		return
	}
	m.repositoryOperations.Add(ctx, 1, metric.WithAttributes(
		attribute.String("entity", entity),
		attribute.String("operation", operation),
		attribute.String("outcome", outcome),
	))
}

func RecordAccessTokenValidation(ctx context.Context, outcome string) {
	m := currentMetrics()
	if m == nil {
		return
	}
	m.tokenValidations.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func RecordRateLimitDecision(ctx context.Context, scope, outcome, mode string) {
	m := currentMetrics()
	if m == nil {
		return
	}
	m.rateLimitDecisions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("scope", scope),
		attribute.String("outcome", outcome),
		attribute.String("mode", mode),
	))
}

func RecordRateLimitRetryAfter(ctx context.Context, scope string, retryAfter time.Duration) {
	m := currentMetrics()
	if m == nil || retryAfter <= 0 {
		return
	}
	m.rateLimitRetryAfter.Record(ctx, retryAfter.Seconds(), metric.WithAttributes(attribute.String("scope", scope)))
}

func RecordRetentionSweep(ctx context.Context, table, outcome string, deleted int64) {
	m := currentMetrics()
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("table", table), attribute.String("outcome", outcome))
	m.retentionSweepRuns.Add(ctx, 1, attrs)
	if deleted > 0 {
		m.retentionSweepRows.Add(ctx, deleted, metric.WithAttributes(attribute.String("table", table)))
	}
}

// RecordRevocationCacheEvent counts revocation cache hits, misses, fills and errors.
func RecordRevocationCacheEvent(ctx context.Context, store, event string) {
	m := currentMetrics()
	if m == nil {
		return
	}
	m.revocationCacheEvents.Add(ctx, 1, metric.WithAttributes(
		attribute.String("store", store),
		attribute.String("event", event),
	))
}
