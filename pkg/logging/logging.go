// Package logging configures colored structured logging with tint for
// log/slog.
//
// Environment variables:
//
//	LOG_LEVEL: debug, info, warn, error (default: info)
package logging

import (
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
)

// Setup configures colored logging for the named service at the level
// specified by the LOG_LEVEL env var (default: INFO).
func Setup(service string) {
	SetupWithLevel(service, levelFromEnv())
}

// SetupWithLevel configures colored logging at the given level.
func SetupWithLevel(service string, level slog.Level) {
	handler := tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: time.Kitchen,
		AddSource:  true,
	})
	slog.SetDefault(slog.New(handler).With("service", service))
}

func levelFromEnv() slog.Level {
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
