package errorlog

import (
	"context"
	"log/slog"
	"strings"
)

// Handler is a slog.Handler that records error-level records into a Log and
// forwards every record to the wrapped handler.
type Handler struct {
	next   slog.Handler
	log    *Log
	attrs  []slog.Attr
	prefix string
}

// NewHandler wraps next so that records at slog.LevelError or above are
// also stored in log.
func NewHandler(next slog.Handler, log *Log) *Handler {
	return &Handler{next: next, log: log}
}

func (h *Handler) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= slog.LevelError || h.next.Enabled(ctx, level)
}

func (h *Handler) Handle(ctx context.Context, r slog.Record) error {
	if r.Level >= slog.LevelError && h.log != nil {
		fields := make(map[string]any, len(h.attrs)+r.NumAttrs())
		for _, a := range h.attrs {
			addAttr(fields, "", a)
		}
		r.Attrs(func(a slog.Attr) bool {
			addAttr(fields, h.prefix, a)
			return true
		})
		if len(fields) == 0 {
			fields = nil
		}
		h.log.Record(Entry{Message: r.Message, Timestamp: r.Time, Context: fields})
	}
	if h.next.Enabled(ctx, r.Level) {
		return h.next.Handle(ctx, r)
	}
	return nil
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	qualified := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	qualified = append(qualified, h.attrs...)
	for _, a := range attrs {
		qualified = append(qualified, slog.Attr{Key: h.prefix + a.Key, Value: a.Value})
	}
	return &Handler{next: h.next.WithAttrs(attrs), log: h.log, attrs: qualified, prefix: h.prefix}
}

func (h *Handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return &Handler{next: h.next.WithGroup(name), log: h.log, attrs: h.attrs, prefix: h.prefix + name + "."}
}

func addAttr(fields map[string]any, prefix string, a slog.Attr) {
	v := a.Value.Resolve()
	if v.Kind() == slog.KindGroup {
		p := prefix
		if a.Key != "" {
			p = prefix + a.Key + "."
		}
		for _, ga := range v.Group() {
			addAttr(fields, p, ga)
		}
		return
	}
	key := strings.TrimSuffix(prefix+a.Key, ".")
	if key == "" {
		return
	}
	if err, ok := v.Any().(error); ok {
		fields[key] = err.Error()
		return
	}
	fields[key] = v.Any()
}

var _ slog.Handler = (*Handler)(nil)
