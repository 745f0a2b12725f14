package logging

import (
	"context"
	"log/slog"
)

// CapturingHandler wraps an slog.Handler, copying every record into a
// LogCollector under a fixed key before passing it on.
type CapturingHandler struct {
	underlying slog.Handler
	collector  *LogCollector
	key        string
	attrs      []slog.Attr
}

// NewCapturingHandler creates a handler that captures records under key.
func NewCapturingHandler(underlying slog.Handler, collector *LogCollector, key string) *CapturingHandler {
	return &CapturingHandler{
		underlying: underlying,
		collector:  collector,
		key:        key,
	}
}

// WithCapture returns a logger derived from base whose records are also captured
// under key.
func WithCapture(base *slog.Logger, collector *LogCollector, key string) *slog.Logger {
	return slog.New(NewCapturingHandler(base.Handler(), collector, key))
}

// Enabled reports true for every level so that debug records are captured even
// when the underlying handler would drop them.
func (h *CapturingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return true
}

// Handle captures r and forwards it to the underlying handler if that handler
// accepts its level.
func (h *CapturingHandler) Handle(ctx context.Context, r slog.Record) error {
	entry := LogEntry{
		Time:    r.Time,
		Level:   r.Level.String(),
		Message: r.Message,
	}
	if n := r.NumAttrs() + len(h.attrs); n > 0 {
		entry.Attributes = make(map[string]any, n)
		for _, attr := range h.attrs {
			entry.Attributes[attr.Key] = resolveValue(attr.Value)
		}
		r.Attrs(func(a slog.Attr) bool {
			entry.Attributes[a.Key] = resolveValue(a.Value)
			return true
		})
	}
	h.collector.Add(h.key, entry)

	if !h.underlying.Enabled(ctx, r.Level) {
		return nil
	}
	return h.underlying.Handle(ctx, r)
}

// WithAttrs must return a CapturingHandler, otherwise capture is lost on .With().
func (h *CapturingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)

	return &CapturingHandler{
		underlying: h.underlying.WithAttrs(attrs),
		collector:  h.collector,
		key:        h.key,
		attrs:      merged,
	}
}

// WithGroup groups output of the underlying handler. Captured attributes stay flat.
func (h *CapturingHandler) WithGroup(name string) slog.Handler {
	return &CapturingHandler{
		underlying: h.underlying.WithGroup(name),
		collector:  h.collector,
		key:        h.key,
		attrs:      h.attrs,
	}
}

// resolveValue converts a slog.Value to something encoding/json can render.
func resolveValue(v slog.Value) any {
	v = v.Resolve()

	switch v.Kind() {
	case slog.KindString:
		return v.String()
	case slog.KindInt64:
		return v.Int64()
	case slog.KindUint64:
		return v.Uint64()
	case slog.KindFloat64:
		return v.Float64()
	case slog.KindBool:
		return v.Bool()
	case slog.KindDuration:
		return v.Duration().String()
	case slog.KindTime:
		return v.Time()
	case slog.KindGroup:
		attrs := v.Group()
		group := make(map[string]any, len(attrs))
		for _, attr := range attrs {
			group[attr.Key] = resolveValue(attr.Value)
		}
		return group
	default:
		if err, ok := v.Any().(error); ok {
			return err.Error()
		}
		return v.Any()
	}
}
