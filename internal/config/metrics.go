package config

import (
	"context"
	"errors"
	"strings"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	errParseEnvironment = errors.New("parse environment")
	errInvalidConfig    = errors.New("validate config")
	errWeakSecret       = errors.New("weak signing material")
	errUnsafeProduction = errors.New("unsafe in production")
)

var (
	configMetricsOnce sync.Once
	configCounter     metric.Int64Counter
)

// recordConfigValidationEvent counts config loads by deployment profile and
// failure class.
func recordConfigValidationEvent(ctx context.Context, profile, outcome, errorClass string) {
	configMetricsOnce.Do(func() {
		counter, err := otel.Meter("globetrotter-api/config").Int64Counter(
			"globetrotter.config.loads",
			metric.WithDescription("Configuration load attempts"),
		)
		if err == nil {
			configCounter = counter
		}
	})
	if configCounter == nil {
		return
	}
	configCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("profile", normalizeConfigProfile(profile)),
		attribute.String("outcome", outcome),
		attribute.String("error_class", errorClass),
	))
}

var profileAliases = map[string]string{
	"production":  "production",
	"prod":        "production",
	"staging":     "staging",
	"stage":       "staging",
	"development": "development",
	"dev":         "development",
	"local":       "development",
	"test":        "test",
	"ci":          "test",
}

// normalizeConfigProfile folds APP_ENV spellings onto a fixed set so the
// profile label stays low-cardinality.
func normalizeConfigProfile(profile string) string {
	v := strings.TrimSpace(strings.ToLower(profile))
	if v == "" {
		return "unknown"
	}
	if canonical, ok := profileAliases[v]; ok {
		return canonical
	}
	return "other"
}

func classifyConfigLoadError(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, errParseEnvironment):
		return "parse"
	case errors.Is(err, errWeakSecret):
		return "secret"
	case errors.Is(err, errUnsafeProduction):
		return "production_guard"
	case errors.Is(err, errInvalidConfig):
		return "validation"
	default:
		return "load"
	}
}
