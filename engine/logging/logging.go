// Package logging holds the structured logger shared by every engine package.
// By default nothing is logged; call SetLogger to enable output.
package logging

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// nopHandler discards every record. Enabled reports false so callers skip
// attribute formatting entirely while logging is disabled.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

var loggerPtr atomic.Pointer[slog.Logger]

func init() {
	loggerPtr.Store(slog.New(nopHandler{}))
}

// SetLogger installs the logger used by the engine and all of its sub-packages.
// Passing nil restores the silent default. Safe for concurrent use.
//
// Log levels used by the engine:
//   - [slog.LevelDebug]: per-acquisition and per-copy diagnostics, dirty listings
//   - [slog.LevelInfo]: lifecycle events (backend ready, scheduler started/stopped)
//   - [slog.LevelWarn]: spurious wakeups, resource release failures
//   - [slog.LevelError]: backend copy failures that stop a scheduler
//
// Parameters:
//   - l: the logger to install, or nil to disable logging
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = slog.New(nopHandler{})
	}
	loggerPtr.Store(l)
}

// Logger returns the currently installed logger. Safe for concurrent use.
//
// Returns:
//   - *slog.Logger: the active logger (never nil)
func Logger() *slog.Logger {
	return loggerPtr.Load()
}
