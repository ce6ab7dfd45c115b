package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("json handler honours level", func(t *testing.T) {
		t.Parallel()
		var buf bytes.Buffer
		logger := New(Options{Level: "warn", Writer: &buf})

		logger.Info("dropped")
		logger.Warn("kept", "wizard_id", "w-1")

		lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
		if len(lines) != 1 {
			t.Fatalf("expected one record, got %d: %q", len(lines), buf.String())
		}
		var record map[string]any
		if err := json.Unmarshal([]byte(lines[0]), &record); err != nil {
			t.Fatalf("expected JSON output: %v", err)
		}
		if record["msg"] != "kept" || record["wizard_id"] != "w-1" {
			t.Fatalf("unexpected record: %v", record)
		}
	})

	t.Run("text handler", func(t *testing.T) {
		t.Parallel()
		var buf bytes.Buffer
		New(Options{Format: "TEXT", Writer: &buf}).Info("hello")
		if !strings.Contains(buf.String(), "msg=hello") {
			t.Fatalf("expected text output, got %q", buf.String())
		}
	})
}

func TestParseLevel(t *testing.T) {
	t.Parallel()
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for input, want := range cases {
		if got := ParseLevel(input); got != want {
			t.Fatalf("ParseLevel(%q) = %s, want %s", input, got, want)
		}
	}
}

func TestContextWithLogger(t *testing.T) {
	t.Parallel()

	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	ctx := ContextWithLogger(context.Background(), logger)
	if got := FromContext(ctx); got != logger {
		t.Fatalf("expected logger to round trip through context")
	}
	if got := FromContext(context.Background()); got != nil {
		t.Fatalf("expected nil logger for bare context")
	}
	if got := ContextWithLogger(ctx, nil); got != ctx {
		t.Fatalf("expected nil logger to leave context untouched")
	}
}
