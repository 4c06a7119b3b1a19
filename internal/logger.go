package internal

import (
	"log/slog"
	"os"
	"strings"
)

// GetLoggerFromString builds the process logger from a level name.
// Unknown names fall back to info rather than failing startup.
func GetLoggerFromString(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToUpper(level) {
	case "DEBUG":
		lvl = slog.LevelDebug
	case "WARN":
		lvl = slog.LevelWarn
	case "ERROR":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
