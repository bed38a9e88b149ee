// Package logging builds the process logger from observability settings.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/ahrav/go-appraise/internal/llm/configuration"
)

// Logger pairs a slog.Logger with the level variable driving it, so the
// level can change when the config file is reloaded.
type Logger struct {
	*slog.Logger
	level *slog.LevelVar
}

// New builds a JSON or text logger writing to w (stderr when nil).
func New(cfg configuration.ObservabilityConfig, w io.Writer) *Logger {
	if w == nil {
		w = os.Stderr
	}
	level := new(slog.LevelVar)
	level.Set(ParseLevel(cfg.LogLevel))

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if strings.EqualFold(strings.TrimSpace(cfg.LogFormat), "json") {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return &Logger{Logger: slog.New(handler), level: level}
}

// SetLevel changes the minimum level of every logger derived from l.
func (l *Logger) SetLevel(level string) {
	l.level.Set(ParseLevel(level))
}

// Level returns the current minimum level.
func (l *Logger) Level() slog.Level { return l.level.Level() }

// ParseLevel maps a level name to a slog level; unknown names yield info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
