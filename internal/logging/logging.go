// Package logging wires a structured log/slog logger whose output is
// rotated on disk via lumberjack, matching the on-disk layout of spec
// §6.1 (<HOME>/.repolex/logs/). Grounded on BeadsLog's cmd/bd daemon
// logger (a slog.Logger threaded through as a small interface, see
// daemon_event_loop.go/daemon_server.go/daemon_watcher.go), generalized
// from an in-process daemon logger to a rotated-file handler since
// repolex has no daemon but does have long-lived CLI invocations
// (add/update) worth logging to disk.
package logging

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/repolex/repolex/internal/apperrors"
)

// Options controls New.
type Options struct {
	// Dir is the log directory, normally <repolex home>/logs.
	Dir string
	// Level is the minimum level to emit; zero value is slog.LevelInfo.
	Level slog.Level
	// AlsoStderr additionally writes to stderr, for interactive CLI runs.
	AlsoStderr bool
}

// New builds a JSON slog.Logger writing to Dir/repolex.log, rotated at
// 10MB with 5 backups kept for 28 days (BeadsLog's lumberjack dependency
// was otherwise unused in the copied teacher slice; these figures are new
// wiring, not copied from a teacher call site).
func New(opts Options) (*slog.Logger, error) {
	if opts.Dir == "" {
		return nil, apperrors.New(apperrors.KindValidation, "logging: Dir must not be empty")
	}
	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, apperrors.Wrap(apperrors.KindStorage, "creating log directory "+opts.Dir, err)
	}

	rotator := &lumberjack.Logger{
		Filename:   filepath.Join(opts.Dir, "repolex.log"),
		MaxSize:    10, // megabytes
		MaxBackups: 5,
		MaxAge:     28, // days
		Compress:   true,
	}

	var w io.Writer = rotator
	if opts.AlsoStderr {
		w = io.MultiWriter(rotator, os.Stderr)
	}

	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: opts.Level})
	return slog.New(handler), nil
}

// Discard returns a logger that drops everything, for tests and library
// callers that don't want repolex writing to disk on their behalf.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}
