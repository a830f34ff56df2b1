// Package logging provides the shared slog construction and the adapter
// every binary uses to satisfy types.Logger.
package logging

import (
	"log/slog"
	"os"

	"postroom/internal/types"
)

// New creates a JSON slog.Logger at the given level name. Unrecognized
// names fall back to info.
func New(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: lvl,
	}))
}

// Adapter wraps *slog.Logger to implement types.Logger. slog satisfies
// Info, Error and Warn directly, but its With returns *slog.Logger, so
// an adapter is needed.
type Adapter struct {
	logger *slog.Logger
}

// NewAdapter wraps an slog.Logger.
func NewAdapter(logger *slog.Logger) *Adapter {
	return &Adapter{logger: logger}
}

func (a *Adapter) Info(msg string, args ...any)  { a.logger.Info(msg, args...) }
func (a *Adapter) Error(msg string, args ...any) { a.logger.Error(msg, args...) }
func (a *Adapter) Warn(msg string, args ...any)  { a.logger.Warn(msg, args...) }
func (a *Adapter) With(args ...any) types.Logger {
	return &Adapter{logger: a.logger.With(args...)}
}

// Compile-time assertion that Adapter implements types.Logger.
var _ types.Logger = (*Adapter)(nil)
