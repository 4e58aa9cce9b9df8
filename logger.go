package ember

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
)

// nopHandler is a slog.Handler that silently discards all log records.
// The Enabled method returns false so the caller skips message formatting
// entirely, making disabled logging effectively zero-cost.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

// newNopLogger creates a logger that silently discards all output.
func newNopLogger() *slog.Logger { return slog.New(nopHandler{}) }

// loggerPtr stores the active logger. Accessed atomically so that
// SetLogger can be called concurrently with logging from any goroutine.
var loggerPtr atomic.Pointer[slog.Logger]

func init() {
	l := newNopLogger()
	loggerPtr.Store(l)
}

// propagators are called from SetLogger to hand the new logger to
// sub-packages (pool, draw) without introducing import cycles.
var (
	propagatorsMu sync.Mutex
	propagators   []func(*slog.Logger)
)

// SetLogger configures the logger for ember and all its sub-packages.
// By default, ember produces no log output. Call SetLogger to enable logging.
//
// SetLogger is safe for concurrent use: it stores the new logger atomically.
// Pass nil to disable logging (restore default silent behavior).
//
// Log levels used by ember:
//   - [slog.LevelDebug]: per-frame diagnostics (instruction counts, buffer sizes)
//   - [slog.LevelInfo]: lifecycle events (pipeline construction, pool drain)
//   - [slog.LevelWarn]: non-fatal issues (double lease release, destroy errors)
//
// Example:
//
//	// Enable info-level logging to stderr:
//	ember.SetLogger(slog.Default())
//
//	// Enable debug-level logging for full diagnostics:
//	ember.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
//	    Level: slog.LevelDebug,
//	})))
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = newNopLogger()
	}
	loggerPtr.Store(l)

	propagatorsMu.Lock()
	ps := make([]func(*slog.Logger), len(propagators))
	copy(ps, propagators)
	propagatorsMu.Unlock()
	for _, p := range ps {
		p(l)
	}
}

// Logger returns the current logger used by ember.
// Sub-packages call this to share the same logger configuration.
//
// Logger is safe for concurrent use.
func Logger() *slog.Logger {
	return loggerPtr.Load()
}

// RegisterLoggerPropagator registers a callback invoked whenever SetLogger
// runs. The pool and draw packages register themselves at init time so one
// SetLogger call configures the whole module. The callback is invoked
// immediately with the current logger.
func RegisterLoggerPropagator(p func(*slog.Logger)) {
	propagatorsMu.Lock()
	propagators = append(propagators, p)
	propagatorsMu.Unlock()
	p(loggerPtr.Load())
}
