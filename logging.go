package pagetrack

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
)

// Logger is a minimal printf-style logging interface.
// It's compatible with the standard library log.Logger.
type Logger interface {
	// Printf logs a formatted message.
	Printf(format string, v ...any)
}

// StructuredLogger provides leveled, structured logging. It is compatible
// with log/slog through NewSlogAdapter.
//
//	c, _ := pagetrack.New(
//	    pagetrack.WithHost("https://collect.example.com"),
//	    pagetrack.WithStructuredLogger(pagetrack.NewSlogAdapter(slog.Default())),
//	)
type StructuredLogger interface {
	// Debug logs a debug-level message with optional key-value pairs.
	Debug(msg string, args ...any)
	// Info logs an info-level message with optional key-value pairs.
	Info(msg string, args ...any)
	// Warn logs a warning-level message with optional key-value pairs.
	Warn(msg string, args ...any)
	// Error logs an error-level message with optional key-value pairs.
	Error(msg string, args ...any)
}

// stderrLogger is used when Debug is set and no logger is configured, and
// as the last resort for async errors nobody handles.
var stderrLogger = log.New(os.Stderr, "pagetrack: ", log.LstdFlags)

// printfLoggerWrapper wraps a printf-style logger to implement StructuredLogger.
type printfLoggerWrapper struct {
	logger Logger
}

// WrapPrintfLogger wraps a printf-style Logger (like *log.Logger) to
// implement StructuredLogger. All levels go to Printf with a level tag
// and the key-value pairs appended.
func WrapPrintfLogger(l Logger) StructuredLogger {
	return &printfLoggerWrapper{logger: l}
}

// WrapStdLogger wraps a *log.Logger. It is equivalent to WrapPrintfLogger(l).
func WrapStdLogger(l *log.Logger) StructuredLogger {
	return &printfLoggerWrapper{logger: l}
}

func (w *printfLoggerWrapper) Debug(msg string, args ...any) {
	w.logger.Printf("%s", "[DEBUG] "+msg+formatArgs(args))
}

func (w *printfLoggerWrapper) Info(msg string, args ...any) {
	w.logger.Printf("%s", "[INFO] "+msg+formatArgs(args))
}

func (w *printfLoggerWrapper) Warn(msg string, args ...any) {
	w.logger.Printf("%s", "[WARN] "+msg+formatArgs(args))
}

func (w *printfLoggerWrapper) Error(msg string, args ...any) {
	w.logger.Printf("%s", "[ERROR] "+msg+formatArgs(args))
}

var _ StructuredLogger = (*printfLoggerWrapper)(nil)

// formatArgs formats structured logging arguments as a string.
func formatArgs(args []any) string {
	if len(args) == 0 {
		return ""
	}
	result := " |"
	for i := 0; i < len(args); i += 2 {
		var value any
		if i+1 < len(args) {
			value = args[i+1]
		}
		result += fmt.Sprintf(" %v=%v", args[i], value)
	}
	return result
}

// debugLogger adapts a StructuredLogger to the printf Logger the internal
// packages take. Internal messages are diagnostics and log at debug level.
type debugLogger struct {
	logger StructuredLogger
}

func (d debugLogger) Printf(format string, v ...any) {
	d.logger.Debug(fmt.Sprintf(format, v...))
}

// warnLogger is debugLogger for messages an operator should see.
type warnLogger struct {
	logger StructuredLogger
}

func (w warnLogger) Printf(format string, v ...any) {
	w.logger.Warn(fmt.Sprintf(format, v...))
}

// NopLogger discards all log messages.
type NopLogger struct{}

// Printf implements Logger.Printf.
func (NopLogger) Printf(format string, v ...any) {}

// Debug implements StructuredLogger.Debug.
func (NopLogger) Debug(msg string, args ...any) {}

// Info implements StructuredLogger.Info.
func (NopLogger) Info(msg string, args ...any) {}

// Warn implements StructuredLogger.Warn.
func (NopLogger) Warn(msg string, args ...any) {}

// Error implements StructuredLogger.Error.
func (NopLogger) Error(msg string, args ...any) {}

var (
	_ Logger           = NopLogger{}
	_ StructuredLogger = NopLogger{}
)

// SlogAdapter adapts a *slog.Logger to StructuredLogger.
//
//	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
//	c, _ := pagetrack.New(
//	    pagetrack.WithHost(host),
//	    pagetrack.WithStructuredLogger(pagetrack.NewSlogAdapter(logger)),
//	)
type SlogAdapter struct {
	logger *slog.Logger
	ctx    context.Context
}

// NewSlogAdapter creates a new SlogAdapter. If logger is nil,
// slog.Default() is used.
func NewSlogAdapter(logger *slog.Logger) *SlogAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogAdapter{logger: logger, ctx: context.Background()}
}

// Debug implements StructuredLogger.Debug.
func (a *SlogAdapter) Debug(msg string, args ...any) {
	a.logger.DebugContext(a.ctx, msg, args...)
}

// Info implements StructuredLogger.Info.
func (a *SlogAdapter) Info(msg string, args ...any) {
	a.logger.InfoContext(a.ctx, msg, args...)
}

// Warn implements StructuredLogger.Warn.
func (a *SlogAdapter) Warn(msg string, args ...any) {
	a.logger.WarnContext(a.ctx, msg, args...)
}

// Error implements StructuredLogger.Error.
func (a *SlogAdapter) Error(msg string, args ...any) {
	a.logger.ErrorContext(a.ctx, msg, args...)
}

// Printf implements Logger.Printf at info level.
func (a *SlogAdapter) Printf(format string, v ...any) {
	a.logger.InfoContext(a.ctx, fmt.Sprintf(format, v...))
}

// WithContext returns an adapter that passes ctx to the slog handler, so
// handlers can pick up trace correlation from it.
func (a *SlogAdapter) WithContext(ctx context.Context) *SlogAdapter {
	return &SlogAdapter{logger: a.logger, ctx: ctx}
}

// WithGroup returns a new SlogAdapter with a log group prefix.
func (a *SlogAdapter) WithGroup(name string) *SlogAdapter {
	return &SlogAdapter{logger: a.logger.WithGroup(name), ctx: a.ctx}
}

// With returns a new SlogAdapter with the given attributes added.
func (a *SlogAdapter) With(args ...any) *SlogAdapter {
	return &SlogAdapter{logger: a.logger.With(args...), ctx: a.ctx}
}
