package fatvol

import (
	"context"
	"log/slog"
)

// levelTrace sits below slog.LevelDebug, matching the convention used by
// from-scratch FAT implementations for routine lifecycle noise (mount,
// close) that nobody wants on by default even when debug logging is on.
const levelTrace = slog.LevelDebug - 4

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(discardWriter{}, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

func (v *Volume) trace(msg string, args ...any) {
	v.log.Log(context.Background(), levelTrace, msg, args...)
}

func (v *Volume) diagnostic(msg string, args ...any) {
	v.log.Warn(msg, args...)
}
