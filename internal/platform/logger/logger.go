package logger

import (
	"io"
	"log/slog"
	"os"
)

// New returns a structured logger. Development gets readable text at debug
// level; every other environment gets JSON at info.
func New(environment string) *slog.Logger {
	return newWithWriter(os.Stdout, environment)
}

func newWithWriter(w io.Writer, environment string) *slog.Logger {
	if environment == "development" {
		return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelInfo}))
}
