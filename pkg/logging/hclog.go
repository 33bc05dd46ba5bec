package logging

import (
	"context"
	"io"
	"log"
	"log/slog"

	"github.com/hashicorp/go-hclog"
)

// HCLogShim adapts a *slog.Logger to the hclog.Logger interface, for
// the handful of teacher subsystems (the streaming tool-client debug
// trace, ported from a go-plugin-era component) that were written
// against hclog rather than slog. Only this module's own toolclient
// tracing calls into it; no go-plugin subsystem survived the trim.
type HCLogShim struct {
	logger *slog.Logger
	name   string
	level  hclog.Level
}

// NewHCLogShim wraps logger for callers that need an hclog.Logger.
func NewHCLogShim(logger *slog.Logger) *HCLogShim {
	return &HCLogShim{logger: logger, level: hclog.Debug}
}

func (h *HCLogShim) log(level slog.Level, msg string, args ...any) {
	h.logger.Log(context.Background(), level, msg, args...)
}

func (h *HCLogShim) Log(level hclog.Level, msg string, args ...any) {
	h.log(hclogToSlogLevel(level), msg, args...)
}

func hclogToSlogLevel(level hclog.Level) slog.Level {
	switch level {
	case hclog.Trace:
		return slog.LevelDebug - 4
	case hclog.Debug:
		return slog.LevelDebug
	case hclog.Info:
		return slog.LevelInfo
	case hclog.Warn:
		return slog.LevelWarn
	case hclog.Error:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func (h *HCLogShim) Trace(msg string, args ...any) { h.log(slog.LevelDebug-4, msg, args...) }
func (h *HCLogShim) Debug(msg string, args ...any) { h.log(slog.LevelDebug, msg, args...) }
func (h *HCLogShim) Info(msg string, args ...any)  { h.log(slog.LevelInfo, msg, args...) }
func (h *HCLogShim) Warn(msg string, args ...any)  { h.log(slog.LevelWarn, msg, args...) }
func (h *HCLogShim) Error(msg string, args ...any) { h.log(slog.LevelError, msg, args...) }

func (h *HCLogShim) IsTrace() bool { return h.level <= hclog.Trace }
func (h *HCLogShim) IsDebug() bool { return h.level <= hclog.Debug }
func (h *HCLogShim) IsInfo() bool  { return h.level <= hclog.Info }
func (h *HCLogShim) IsWarn() bool  { return h.level <= hclog.Warn }
func (h *HCLogShim) IsError() bool { return h.level <= hclog.Error }

func (h *HCLogShim) ImpliedArgs() []any { return nil }

func (h *HCLogShim) With(args ...any) hclog.Logger {
	return &HCLogShim{logger: h.logger.With(args...), name: h.name, level: h.level}
}

func (h *HCLogShim) Name() string { return h.name }

func (h *HCLogShim) Named(name string) hclog.Logger {
	full := name
	if h.name != "" {
		full = h.name + "." + name
	}
	return &HCLogShim{logger: h.logger.With("subsystem", full), name: full, level: h.level}
}

func (h *HCLogShim) ResetNamed(name string) hclog.Logger {
	return &HCLogShim{logger: h.logger.With("subsystem", name), name: name, level: h.level}
}

func (h *HCLogShim) SetLevel(level hclog.Level) { h.level = level }
func (h *HCLogShim) GetLevel() hclog.Level      { return h.level }

func (h *HCLogShim) StandardLogger(opts *hclog.StandardLoggerOptions) *log.Logger {
	return log.New(h.StandardWriter(opts), "", 0)
}

func (h *HCLogShim) StandardWriter(opts *hclog.StandardLoggerOptions) io.Writer {
	return io.Discard
}
