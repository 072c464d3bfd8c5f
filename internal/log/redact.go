package log

import (
	"context"
	"io"
	"log/slog"
	"strings"
)

// identityKeys are attribute keys whose values name a channel.
var identityKeys = map[string]bool{
	"identity":     true,
	"identities":   true,
	"handle":       true,
	"display_name": true,
	"channel":      true,
	"subject":      true,
}

// MaskValue is the string used to replace identity values.
const MaskValue = "***"

// RedactingHandler wraps an slog.Handler and masks identity attributes.
// Redaction can be switched off, in which case records pass through
// unchanged apart from the allocation of a new record.
type RedactingHandler struct {
	handler slog.Handler
	redact  bool
}

// NewRedactingHandler creates a RedactingHandler wrapping the given handler.
// If handler is nil, slog.Default().Handler() is used.
func NewRedactingHandler(handler slog.Handler, redact bool) *RedactingHandler {
	if handler == nil {
		handler = slog.Default().Handler()
	}
	return &RedactingHandler{handler: handler, redact: redact}
}

// Enabled reports whether the handler handles records at the given level.
func (h *RedactingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

// Handle masks the record's identity attributes and passes it on.
func (h *RedactingHandler) Handle(ctx context.Context, r slog.Record) error {
	if !h.redact {
		return h.handler.Handle(ctx, r)
	}

	masked := slog.NewRecord(r.Time, r.Level, r.Message, r.PC)
	r.Attrs(func(a slog.Attr) bool {
		masked.AddAttrs(h.maskAttr(a))
		return true
	})
	return h.handler.Handle(ctx, masked)
}

// WithAttrs returns a new handler with the given attributes added.
func (h *RedactingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if !h.redact {
		return &RedactingHandler{handler: h.handler.WithAttrs(attrs), redact: false}
	}
	masked := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		masked[i] = h.maskAttr(a)
	}
	return &RedactingHandler{handler: h.handler.WithAttrs(masked), redact: true}
}

// WithGroup returns a new handler with the given group name.
func (h *RedactingHandler) WithGroup(name string) slog.Handler {
	return &RedactingHandler{handler: h.handler.WithGroup(name), redact: h.redact}
}

// maskAttr masks a single attribute, recursing into groups.
func (h *RedactingHandler) maskAttr(a slog.Attr) slog.Attr {
	if a.Value.Kind() == slog.KindGroup {
		attrs := a.Value.Group()
		masked := make([]slog.Attr, len(attrs))
		for i, ga := range attrs {
			masked[i] = h.maskAttr(ga)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(masked...)}
	}

	if identityKeys[strings.ToLower(a.Key)] {
		return slog.String(a.Key, MaskValue)
	}
	return a
}

// NewLogger creates a text slog.Logger.
// verbose selects Debug over Warn; redact masks identity attributes.
func NewLogger(w io.Writer, verbose, redact bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: levelFor(verbose)}
	return slog.New(NewRedactingHandler(slog.NewTextHandler(w, opts), redact))
}

// NewJSONLogger creates a JSON slog.Logger, useful for log aggregation.
func NewJSONLogger(w io.Writer, verbose, redact bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: levelFor(verbose)}
	return slog.New(NewRedactingHandler(slog.NewJSONHandler(w, opts), redact))
}

func levelFor(verbose bool) slog.Level {
	if verbose {
		return slog.LevelDebug
	}
	return slog.LevelWarn
}
