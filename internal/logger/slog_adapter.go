package logger

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"strings"
)

// NewSlogHandler returns a slog.Handler that forwards records to l.
// If l is nil, it returns nil.
func NewSlogHandler(l *Logger) slog.Handler {
	if l == nil {
		return nil
	}
	return &slogAdapter{log: l}
}

// StdLogger adapts l into a *log.Logger emitting at the given level. It is
// used for http.Server.ErrorLog so transport errors land in the same file.
func StdLogger(l *Logger, level slog.Level) *log.Logger {
	return slog.NewLogLogger(NewSlogHandler(l), level)
}

type slogAdapter struct {
	log    *Logger
	groups []string
	attrs  []slog.Attr
}

func (h *slogAdapter) Enabled(_ context.Context, level slog.Level) bool {
	return slogLevelToLoggerLevel(level) >= h.log.GetLevel()
}

func (h *slogAdapter) Handle(_ context.Context, record slog.Record) error {
	attrs := append([]slog.Attr(nil), h.attrs...)
	record.Attrs(func(attr slog.Attr) bool {
		attrs = append(attrs, attr)
		return true
	})

	message := strings.TrimRight(record.Message, "\n")
	if text := formatAttrs(attrs, h.groups); text != "" {
		message = strings.TrimSpace(message + " " + text)
	}

	h.log.log(slogLevelToLoggerLevel(record.Level), "%s", message)
	return nil
}

func (h *slogAdapter) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &slogAdapter{
		log:    h.log,
		groups: append([]string(nil), h.groups...),
		attrs:  append(append([]slog.Attr(nil), h.attrs...), attrs...),
	}
}

func (h *slogAdapter) WithGroup(name string) slog.Handler {
	groups := append([]string(nil), h.groups...)
	if name != "" {
		groups = append(groups, name)
	}
	return &slogAdapter{
		log:    h.log,
		groups: groups,
		attrs:  append([]slog.Attr(nil), h.attrs...),
	}
}

func slogLevelToLoggerLevel(level slog.Level) Level {
	switch {
	case level >= slog.LevelError:
		return LevelError
	case level >= slog.LevelWarn:
		return LevelWarn
	case level >= slog.LevelInfo:
		return LevelInfo
	default:
		return LevelDebug
	}
}

func formatAttrs(attrs []slog.Attr, groups []string) string {
	parts := make([]string, 0, len(attrs))
	var walk func(attr slog.Attr, prefix []string)
	walk = func(attr slog.Attr, prefix []string) {
		if attr.Equal(slog.Attr{}) {
			return
		}
		key := attr.Key
		if key == "" {
			key = "attr"
		}
		path := append(append([]string(nil), prefix...), key)
		if attr.Value.Kind() == slog.KindGroup {
			for _, nested := range attr.Value.Group() {
				walk(nested, path)
			}
			return
		}
		parts = append(parts, fmt.Sprintf("%s=%v", strings.Join(path, "."), attr.Value))
	}
	for _, attr := range attrs {
		walk(attr, groups)
	}
	return strings.Join(parts, " ")
}
