package logging

import (
	"context"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"
)

// syncWriter serializes whole log lines onto a shared destination.
type syncWriter struct {
	mu  sync.Mutex
	out io.Writer
}

func (w *syncWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.out.Write(p)
}

// consoleHandler renders human-readable lines:
//
//	2026-08-28T10:00:00Z INFO daemon: task started task_id=... user=...
//
// The component attribute becomes the message prefix instead of a key=value
// pair. Inherited attributes are rendered once, when With is called, so
// Handle only formats the per-record tail.
type consoleHandler struct {
	sink      *syncWriter
	level     *slog.LevelVar
	component string
	prefix    string
	group     string
}

func newConsoleHandler(sink *syncWriter, lvl *slog.LevelVar) slog.Handler {
	return &consoleHandler{sink: sink, level: lvl}
}

func (h *consoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *consoleHandler) Handle(_ context.Context, record slog.Record) error {
	ts := record.Time
	if ts.IsZero() {
		ts = time.Now()
	}

	var b strings.Builder
	b.Grow(96 + len(h.prefix))
	b.WriteString(ts.UTC().Format(time.RFC3339))
	b.WriteByte(' ')
	b.WriteString(levelLabel(record.Level))
	b.WriteByte(' ')
	if h.component != "" {
		b.WriteString(h.component)
		b.WriteString(": ")
	}
	b.WriteString(record.Message)
	b.WriteString(h.prefix)
	record.Attrs(func(attr slog.Attr) bool {
		writeAttr(&b, h.group, attr)
		return true
	})
	b.WriteByte('\n')

	_, err := io.WriteString(h.sink, b.String())
	return err
}

func (h *consoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	var b strings.Builder
	b.WriteString(h.prefix)
	for _, attr := range attrs {
		attr.Value = attr.Value.Resolve()
		if clone.component == "" && h.group == "" && attr.Key == FieldComponent {
			clone.component = attr.Value.String()
			continue
		}
		writeAttr(&b, h.group, attr)
	}
	clone.prefix = b.String()
	return &clone
}

func (h *consoleHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	if clone.group == "" {
		clone.group = name
	} else {
		clone.group += "." + name
	}
	return &clone
}

// writeAttr appends " key=value" to b, flattening groups into dotted keys.
func writeAttr(b *strings.Builder, group string, attr slog.Attr) {
	if attr.Equal(slog.Attr{}) {
		return
	}
	attr.Value = attr.Value.Resolve()
	if attr.Value.Kind() == slog.KindGroup {
		nested := group
		if attr.Key != "" {
			if nested == "" {
				nested = attr.Key
			} else {
				nested += "." + attr.Key
			}
		}
		for _, member := range attr.Value.Group() {
			writeAttr(b, nested, member)
		}
		return
	}
	key := attr.Key
	if group != "" && key != "" {
		key = group + "." + key
	}
	if key == "" {
		return
	}
	b.WriteByte(' ')
	b.WriteString(key)
	b.WriteByte('=')
	b.WriteString(valueText(attr.Value))
}

func valueText(v slog.Value) string {
	switch v.Kind() {
	case slog.KindTime:
		return v.Time().UTC().Format(time.RFC3339)
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			return quoteIfNeeded(err.Error())
		}
	}
	return quoteIfNeeded(v.String())
}

func quoteIfNeeded(s string) string {
	if s == "" {
		return `""`
	}
	for _, r := range s {
		if r <= ' ' || r == '=' || r == '"' {
			return strconv.Quote(s)
		}
	}
	return s
}

func levelLabel(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "ERROR"
	case level >= slog.LevelWarn:
		return "WARN"
	case level >= slog.LevelInfo:
		return "INFO"
	default:
		return "DEBUG"
	}
}
