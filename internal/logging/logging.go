// Package logging configures the process-wide structured logger used by
// cmd/orchestrad and, by default, by supervisor.Runtime and
// cron.Scheduler when no logger is supplied explicitly.
package logging

import (
	"log/slog"
	"os"
	"strings"
)

// Init configures and installs a slog default logger: JSON if
// ORCHESTRA_JSON_LOG is 1/true/json, text otherwise. The level comes
// from ORCHESTRA_LOG_LEVEL (debug/info/warn/error, default info).
func Init(service string) *slog.Logger {
	mode := strings.ToLower(os.Getenv("ORCHESTRA_JSON_LOG"))
	json := mode == "1" || mode == "true" || mode == "json"

	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: levelFromEnv()}
	if json {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler).With("service", service)
	slog.SetDefault(logger)
	logger.Info("logging initialized", "json", json)
	return logger
}

func levelFromEnv() slog.Leveler {
	switch strings.ToLower(os.Getenv("ORCHESTRA_LOG_LEVEL")) {
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
