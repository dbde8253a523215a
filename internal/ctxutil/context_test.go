package ctxutil

import (
	"context"
	"testing"
	"time"
)

func TestSenderIDContext(t *testing.T) {
	t.Parallel()

	t.Run("empty context", func(t *testing.T) {
		t.Parallel()
		if senderID := GetSenderID(context.Background()); senderID != "" {
			t.Errorf("Expected empty string, got %s", senderID)
		}
	})

	t.Run("with sender ID", func(t *testing.T) {
		t.Parallel()
		ctx := WithSenderID(context.Background(), "1254459154682919")
		if got := GetSenderID(ctx); got != "1254459154682919" {
			t.Errorf("Expected senderID 1254459154682919, got %s", got)
		}
		if got := MustGetSenderID(ctx); got != "1254459154682919" {
			t.Errorf("MustGetSenderID = %s", got)
		}
	})

	t.Run("must get panics when missing", func(t *testing.T) {
		t.Parallel()
		defer func() {
			if r := recover(); r == nil {
				t.Error("Expected panic for missing senderID")
			}
		}()
		_ = MustGetSenderID(context.Background())
	})
}

func TestRequestIDContext(t *testing.T) {
	t.Parallel()

	if _, ok := GetRequestID(context.Background()); ok {
		t.Error("Expected no request ID in empty context")
	}

	ctx := WithRequestID(context.Background(), "req-123")
	requestID, ok := GetRequestID(ctx)
	if !ok || requestID != "req-123" {
		t.Errorf("GetRequestID = (%q, %v), want (req-123, true)", requestID, ok)
	}
}

func TestPreserveTracing(t *testing.T) {
	t.Parallel()

	parent, cancel := context.WithTimeout(context.Background(), time.Millisecond)
	parent = WithSenderID(parent, "psid-1")
	parent = WithPlatform(parent, PlatformMessenger)
	parent = WithRequestID(parent, "req-1")
	cancel()

	detached := PreserveTracing(parent)

	if detached.Err() != nil {
		t.Errorf("detached context should not inherit cancellation, got %v", detached.Err())
	}
	if _, hasDeadline := detached.Deadline(); hasDeadline {
		t.Error("detached context should not inherit deadline")
	}
	if got := GetSenderID(detached); got != "psid-1" {
		t.Errorf("senderID = %q, want psid-1", got)
	}
	if got := GetPlatform(detached); got != PlatformMessenger {
		t.Errorf("platform = %q, want %q", got, PlatformMessenger)
	}
	if got, _ := GetRequestID(detached); got != "req-1" {
		t.Errorf("requestID = %q, want req-1", got)
	}
}
