package log

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

// TestRedactingHandler tests masking of identity attributes.
func TestRedactingHandler(t *testing.T) {
	t.Parallel()

	t.Run("masks identity keys", func(t *testing.T) {
		t.Parallel()
		var buf bytes.Buffer
		logger := NewLogger(&buf, true, true)

		logger.Info("blocked channel", "identity", "somecreator", "count", 3)

		out := buf.String()
		if strings.Contains(out, "somecreator") {
			t.Errorf("expected identity to be masked, got %q", out)
		}
		if !strings.Contains(out, "identity="+MaskValue) {
			t.Errorf("expected mask value, got %q", out)
		}
		if !strings.Contains(out, "count=3") {
			t.Errorf("expected non-identity attribute to pass through, got %q", out)
		}
	})

	t.Run("masks keys case-insensitively and inside groups", func(t *testing.T) {
		t.Parallel()
		var buf bytes.Buffer
		logger := NewJSONLogger(&buf, true, true)

		logger.Info("fragment", slog.Group("fragment", slog.String("Handle", "abc"), slog.String("tag", "comment")))

		out := buf.String()
		if strings.Contains(out, "abc") {
			t.Errorf("expected grouped handle masked, got %q", out)
		}
		if !strings.Contains(out, "comment") {
			t.Errorf("expected tag kept, got %q", out)
		}
	})

	t.Run("masks attributes added with With", func(t *testing.T) {
		t.Parallel()
		var buf bytes.Buffer
		logger := NewLogger(&buf, true, true).With("channel", "secret-channel")

		logger.Warn("sync")

		if strings.Contains(buf.String(), "secret-channel") {
			t.Errorf("expected With attribute masked, got %q", buf.String())
		}
	})

	t.Run("passes through when redaction is off", func(t *testing.T) {
		t.Parallel()
		var buf bytes.Buffer
		logger := NewLogger(&buf, true, false)

		logger.Info("blocked channel", "identity", "somecreator")

		if !strings.Contains(buf.String(), "somecreator") {
			t.Errorf("expected identity in output, got %q", buf.String())
		}
	})

	t.Run("non-verbose drops info", func(t *testing.T) {
		t.Parallel()
		var buf bytes.Buffer
		logger := NewLogger(&buf, false, true)

		logger.Info("hidden")
		logger.Warn("shown")

		out := buf.String()
		if strings.Contains(out, "hidden") || !strings.Contains(out, "shown") {
			t.Errorf("unexpected level filtering: %q", out)
		}
	})

	t.Run("nil handler falls back to default", func(t *testing.T) {
		t.Parallel()
		h := NewRedactingHandler(nil, true)
		if h.handler == nil {
			t.Error("expected default handler")
		}
	})
}
