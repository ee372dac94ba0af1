// Package simlog sets up the process-wide structured logger.
//
// Mirrors the slog.SetDefault(logutil.NewLogger(...)) call-site convention
// without depending on an unavailable logutil package, building the same
// shape directly on top of log/slog.
package simlog

import (
	"io"
	"log/slog"
)

// NewLogger builds a text-handler logger writing to w at the given level,
// with source location attached to every record when level is debug or
// more verbose.
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level:     level,
		AddSource: level <= slog.LevelDebug,
	}))
}
