package noc

import (
	"context"
	"log/slog"
)

// LevelTrace is the slog level used for per-flit diagnostic tracing. Watched
// flits log their progress through request building, allocation, and
// transfer at this level.
const LevelTrace slog.Level = slog.LevelInfo + 1

// Trace emits a diagnostic trace record.
func Trace(msg string, args ...any) {
	slog.Log(context.Background(), LevelTrace, msg, args...)
}
