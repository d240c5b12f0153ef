package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

var disabledLogger = slog.New(&disabledHandler{})

// disabledHandler is a slog.Handler that is disabled for all levels
type disabledHandler struct{}

func (d *disabledHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (d *disabledHandler) Handle(context.Context, slog.Record) error { return nil }
func (d *disabledHandler) WithAttrs([]slog.Attr) slog.Handler        { return d }
func (d *disabledHandler) WithGroup(string) slog.Handler             { return d }

// DisabledLogger returns a logger that is disabled for all logging levels.
// Components use it when the caller doesn't supply one.
func DisabledLogger() *slog.Logger {
	return disabledLogger
}

// OrDisabled returns l, or the disabled logger when l is nil
func OrDisabled(l *slog.Logger) *slog.Logger {
	if l == nil {
		return disabledLogger
	}
	return l
}

// ParseLevel converts a config level name to a slog.Level
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

// Log output formats
const (
	FormatText = "text"
	FormatJSON = "json"
)

// ParseFormat normalizes a config format name. Empty means text.
func ParseFormat(s string) (string, error) {
	switch f := strings.ToLower(strings.TrimSpace(s)); f {
	case "", FormatText:
		return FormatText, nil
	case FormatJSON:
		return f, nil
	default:
		return "", fmt.Errorf("unknown log format %q", s)
	}
}

// New builds a logger writing to w
func New(w io.Writer, level slog.Level, format string) (*slog.Logger, error) {
	f, err := ParseFormat(format)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	if f == FormatJSON {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}
