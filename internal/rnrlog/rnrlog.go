// Package rnrlog builds the structured logger every other package logs
// through, generalizing cmd/mirrorshuttle/config.go:logHandler's tint/JSON
// handler selection to rnr's own set of attributes (op, job_id, error-type)
// in place of mirrorshuttle's single "op" field.
package rnrlog

import (
	"io"
	"log/slog"
	"time"

	"github.com/lmittmann/tint"
)

// Options configures the handler New builds.
type Options struct {
	// JSON selects slog.NewJSONHandler instead of a tint human handler. No
	// CLI flag sets it.
	JSON bool
	// Debug raises the level to slog.LevelDebug regardless of Level.
	Debug bool
	// NoColor disables tint's ANSI coloring, matching -b/--nocolor.
	NoColor bool
	// Level is the handler's minimum level when Debug is false. The zero
	// value is slog.LevelInfo.
	Level slog.Level
}

// New builds the process-wide logger, writing to w (normally stderr so
// stdout stays free for the panel UI / scripted output).
func New(w io.Writer, opts Options) *slog.Logger {
	level := opts.Level
	if opts.Debug {
		level = slog.LevelDebug
	}

	var handler slog.Handler
	if opts.JSON {
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	} else {
		handler = tint.NewHandler(w, &tint.Options{
			Level:      level,
			TimeFormat: time.TimeOnly,
			NoColor:    opts.NoColor,
		})
	}

	return slog.New(handler)
}

// ForJob returns a logger with a job_id attribute attached, for per-job
// log lines emitted by the Controller and Executors.
func ForJob(log *slog.Logger, jobID int64) *slog.Logger {
	return log.With("job_id", jobID)
}

// RuntimeError logs a non-fatal error that left the calling job or scan
// able to continue, tagging it the way the teacher tags its "runtime"
// errors as distinct from "fatal" ones.
func RuntimeError(log *slog.Logger, msg string, err error, args ...any) {
	log.Error(msg, append([]any{"error", err, "error-type", "runtime"}, args...)...)
}

// FatalError logs an error that is about to end the process.
func FatalError(log *slog.Logger, msg string, err error, args ...any) {
	log.Error(msg, append([]any{"error", err, "error-type", "fatal"}, args...)...)
}
