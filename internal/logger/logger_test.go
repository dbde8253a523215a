package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/pagebot/pagebot-go/internal/ctxutil"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name  string
		level string
		want  slog.Level
	}{
		{name: "Valid debug level", level: "debug", want: slog.LevelDebug},
		{name: "Valid info level", level: "info", want: slog.LevelInfo},
		{name: "Valid warn level", level: "warn", want: slog.LevelWarn},
		{name: "Valid error level", level: "error", want: slog.LevelError},
		{name: "Invalid level defaults to info", level: "invalid", want: slog.LevelInfo},
		{name: "Empty level defaults to info", level: "", want: slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log := New(tt.level)
			if log == nil {
				t.Fatal("New() returned nil")
			}
			if got := log.GetLevel(); got != tt.want {
				t.Errorf("New(%q) level = %v, want %v", tt.level, got, tt.want)
			}
		})
	}
}

func decodeEntry(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("Failed to parse JSON log %q: %v", buf.String(), err)
	}
	return entry
}

func TestLogger_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter("info", &buf)

	log.Info("test message")

	entry := decodeEntry(t, &buf)
	for _, field := range []string{"timestamp", "level", "message"} {
		if _, ok := entry[field]; !ok {
			t.Errorf("JSON log missing required field %q", field)
		}
	}
	if entry["message"] != "test message" {
		t.Errorf("message = %v, want %q", entry["message"], "test message")
	}
	if entry["level"] != "info" {
		t.Errorf("level = %v, want %q", entry["level"], "info")
	}
}

func TestLogger_WarnLevelName(t *testing.T) {
	var buf bytes.Buffer
	NewWithWriter("info", &buf).Warn("careful")

	if got := decodeEntry(t, &buf)["level"]; got != "warning" {
		t.Errorf("level = %v, want warning", got)
	}
}

func TestLogger_Fields(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter("info", &buf)

	log.WithModule("webhook").
		WithRequestID("req-123").
		WithError(errors.New("boom")).
		WithFields(map[string]any{"event_count": 2}).
		Info("batch processed")

	entry := decodeEntry(t, &buf)
	if entry["module"] != "webhook" {
		t.Errorf("module = %v, want webhook", entry["module"])
	}
	if entry["request_id"] != "req-123" {
		t.Errorf("request_id = %v, want req-123", entry["request_id"])
	}
	if entry["error"] != "boom" {
		t.Errorf("error = %v, want boom", entry["error"])
	}
	if entry["event_count"] != float64(2) {
		t.Errorf("event_count = %v, want 2", entry["event_count"])
	}
}

func TestLogger_ContextValues(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter("info", &buf)

	ctx := ctxutil.WithSenderID(context.Background(), "psid-42")
	ctx = ctxutil.WithPlatform(ctx, ctxutil.PlatformMessenger)
	log.InfoContext(ctx, "reply sent")

	entry := decodeEntry(t, &buf)
	if entry["sender_id"] != "psid-42" {
		t.Errorf("sender_id = %v, want psid-42", entry["sender_id"])
	}
	if entry["platform"] != "messenger" {
		t.Errorf("platform = %v, want messenger", entry["platform"])
	}
}

func TestLogger_SetLevel(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter("info", &buf)
	child := log.WithModule("bot")

	child.Debug("hidden")
	if buf.Len() != 0 {
		t.Fatalf("debug record written at info level: %s", buf.String())
	}

	if err := log.SetLevel("debug"); err != nil {
		t.Fatalf("SetLevel(debug) error = %v", err)
	}
	child.Debug("visible")
	if buf.Len() == 0 {
		t.Error("derived logger should follow the parent's level change")
	}

	if err := log.SetLevel("invalid"); err == nil {
		t.Error("SetLevel(invalid) error = nil, want error")
	}
}

func TestLogger_ShutdownWithoutRemote(t *testing.T) {
	log := New("info")
	if err := log.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() error = %v, want nil", err)
	}
}
