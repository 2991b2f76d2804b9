package logger

import (
	"log/slog"
	"os"
)

// New returns the process-wide structured logger. Audit-relevant entries
// are tagged by services with log_type=audit on top of this handler.
func New() *slog.Logger {
	level := slog.LevelInfo
	if os.Getenv("KINDMESH_DEBUG") == "true" {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}
