package observability

import (
	"log/slog"
	"net/http"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel/trace"
)

// Audit logs a security-relevant event tied to the inbound request and
// counts it under auth.events.
func Audit(r *http.Request, event, outcome string, attrs ...any) {
	base := []any{
		"event", event,
		"outcome", outcome,
		"method", r.Method,
		"path", r.URL.Path,
		"request_id", chimiddleware.GetReqID(r.Context()),
	}
	if sc := trace.SpanContextFromContext(r.Context()); sc.IsValid() {
		base = append(base, "trace_id", sc.TraceID().String(), "span_id", sc.SpanID().String())
	}
	base = append(base, attrs...)
	slog.InfoContext(r.Context(), "audit", base...)
	RecordAuthEvent(r.Context(), event, outcome)
}
