// Package logger wraps a process-wide zerolog logger.
package logger

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

var log zerolog.Logger

// Init initializes the global logger with the specified level and format.
// level can be: "debug", "info", "warn", "error". format "json" emits one
// JSON object per line; anything else is human-friendly console output.
// Logs go to stderr so stdout stays free for reports.
func Init(level, format string) {
	InitWithWriter(os.Stderr, level, format)
}

// InitWithWriter is Init with an explicit destination.
func InitWithWriter(out io.Writer, level, format string) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}

	writer := out
	if format != "json" {
		writer = zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05"}
	}

	log = zerolog.New(writer).
		Level(lvl).
		With().
		Timestamp().
		Logger()
}

func init() {
	// Default logger before Init() is called
	Init("warn", "console")
}

// --- Convenience functions ---

func Debug() *zerolog.Event { return log.Debug() }
func Info() *zerolog.Event  { return log.Info() }
func Warn() *zerolog.Event  { return log.Warn() }
func Error() *zerolog.Event { return log.Error() }

// With returns a child logger carrying the given job identifiers.
func With(jobID, workspace string) zerolog.Logger {
	return log.With().Str("job_id", jobID).Str("workspace", workspace).Logger()
}

// Get returns the underlying zerolog.Logger for advanced usage.
func Get() zerolog.Logger {
	return log
}
