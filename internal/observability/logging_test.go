package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/globetrotter/globetrotter-api/internal/config"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for raw, want := range cases {
		if got := ParseLevel(raw); got != want {
			t.Fatalf("ParseLevel(%q)=%v want %v", raw, got, want)
		}
	}
}

func TestNewLoggerWritesJSONWithServiceAttrs(t *testing.T) {
	var buf bytes.Buffer
	cfg := &config.Config{LogLevel: "info", OTELServiceName: "globetrotter-api", AppEnv: "test"}
	logger := NewLogger(cfg, &buf, nil)

	logger.Debug("hidden")
	logger.Info("hello", "user_id", 7)

	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("expected a single json line, got %q: %v", buf.String(), err)
	}
	if entry["msg"] != "hello" || entry["service"] != "globetrotter-api" || entry["env"] != "test" {
		t.Fatalf("unexpected log entry: %v", entry)
	}
}

func TestFanoutHandlerDeliversToAllEnabledHandlers(t *testing.T) {
	var a, b bytes.Buffer
	h := fanoutHandler{
		slog.NewJSONHandler(&a, &slog.HandlerOptions{Level: slog.LevelInfo}),
		slog.NewJSONHandler(&b, &slog.HandlerOptions{Level: slog.LevelError}),
	}
	logger := slog.New(h).With("k", "v")

	logger.Info("info line")
	if a.Len() == 0 || b.Len() != 0 {
		t.Fatalf("info should reach only the first handler: a=%q b=%q", a.String(), b.String())
	}
	logger.Error("error line")
	if b.Len() == 0 {
		t.Fatal("error should reach the second handler")
	}
	if !h.Enabled(context.Background(), slog.LevelInfo) || h.Enabled(context.Background(), slog.LevelDebug) {
		t.Fatal("unexpected Enabled result")
	}
}
