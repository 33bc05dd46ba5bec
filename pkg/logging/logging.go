// Package logging sets up the structured logger shared by every
// component in this module. Components never reach into a package
// global; a *slog.Logger is constructed here once and passed down
// through constructors.
package logging

import (
	"context"
	"log/slog"
	"os"
	"runtime"
	"strings"
)

const modulePackagePrefix = "github.com/a2afabric/agentrt"

// ParseLevel converts a level name to a slog.Level. Unknown names
// fall back to LevelWarn, matching the teacher's conservative default.
func ParseLevel(name string) slog.Level {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}

// New builds the module's root logger. When level is above debug
// (info, warn, error), log records originating outside this module's
// own packages (third-party library chatter reached via an injected
// logger) are suppressed; at debug or lower, every record passes.
func New(level slog.Level) *slog.Logger {
	handler := &filteringHandler{
		handler:  slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}),
		minLevel: level,
	}
	return slog.New(handler)
}

type filteringHandler struct {
	handler  slog.Handler
	minLevel slog.Level
}

func (h *filteringHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= h.minLevel
}

func (h *filteringHandler) Handle(ctx context.Context, record slog.Record) error {
	if h.minLevel <= slog.LevelDebug || h.isOwnPackage(record.PC) {
		return h.handler.Handle(ctx, record)
	}
	return nil
}

func (h *filteringHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &filteringHandler{handler: h.handler.WithAttrs(attrs), minLevel: h.minLevel}
}

func (h *filteringHandler) WithGroup(name string) slog.Handler {
	return &filteringHandler{handler: h.handler.WithGroup(name), minLevel: h.minLevel}
}

func (h *filteringHandler) isOwnPackage(pc uintptr) bool {
	if pc == 0 {
		return true
	}
	fn := runtime.FuncForPC(pc)
	if fn == nil {
		return true
	}
	return strings.HasPrefix(fn.Name(), modulePackagePrefix)
}
