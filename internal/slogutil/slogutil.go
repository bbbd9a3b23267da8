package slogutil

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Silent is above every standard level, so nothing is logged at it.
const Silent = slog.Level(100)

var discard = slog.New(slog.DiscardHandler)

// NewLogger returns a logger writing rp's line format to w.
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(NewRPHandler(w, &slog.HandlerOptions{Level: level}))
}

// NewFormatLogger is NewLogger, except that format "json" selects slog's
// JSON handler.
func NewFormatLogger(w io.Writer, level slog.Level, format string) *slog.Logger {
	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
	}
	return NewLogger(w, level)
}

// NewFileLogger appends line-format logs to path. The caller closes the file.
func NewFileLogger(path string, level slog.Level) (*slog.Logger, *os.File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, err
	}
	return NewLogger(f, level), f, nil
}

// NewDiscardLogger returns a logger that drops every record.
func NewDiscardLogger() *slog.Logger {
	return discard
}

// OrDiscard returns logger, or the discard logger when logger is nil.
func OrDiscard(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return discard
	}
	return logger
}

// LevelFromString parses a configured level name. Anything slog cannot
// parse, apart from "warning", means info.
func LevelFromString(s string) slog.Level {
	if strings.EqualFold(s, "warning") {
		return slog.LevelWarn
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// verbosityLevels maps the number of -v flags to a level.
var verbosityLevels = [...]slog.Level{slog.LevelWarn, slog.LevelInfo, slog.LevelDebug}

// LevelFromVerbosity converts -v counts and -q to a level. quiet wins.
func LevelFromVerbosity(verbosity int, quiet bool) slog.Level {
	switch {
	case quiet:
		return Silent
	case verbosity < 0:
		verbosity = 0
	case verbosity >= len(verbosityLevels):
		verbosity = len(verbosityLevels) - 1
	}
	return verbosityLevels[verbosity]
}

// teeHandler fans records out to several handlers, each applying its own
// level.
type teeHandler []slog.Handler

// NewTeeHandler returns a handler that writes every record to all of hs.
func NewTeeHandler(hs ...slog.Handler) slog.Handler {
	return teeHandler(hs)
}

// NewTeeLogger returns a logger over NewTeeHandler(hs...).
func NewTeeLogger(hs ...slog.Handler) *slog.Logger {
	return slog.New(NewTeeHandler(hs...))
}

func (t teeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range t {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (t teeHandler) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range t {
		if h.Enabled(ctx, r.Level) {
			errs = append(errs, h.Handle(ctx, r.Clone()))
		}
	}
	return errors.Join(errs...)
}

func (t teeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return t.each(func(h slog.Handler) slog.Handler { return h.WithAttrs(attrs) })
}

func (t teeHandler) WithGroup(name string) slog.Handler {
	return t.each(func(h slog.Handler) slog.Handler { return h.WithGroup(name) })
}

func (t teeHandler) each(fn func(slog.Handler) slog.Handler) teeHandler {
	out := make(teeHandler, len(t))
	for i, h := range t {
		out[i] = fn(h)
	}
	return out
}
