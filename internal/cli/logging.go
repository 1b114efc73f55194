package cli

import (
	"io"
	"log/slog"
	"os"

	"github.com/clean-dependency-project/astudios/internal/logger"
)

// NewLoggers creates default loggers with JSON output on stderr.
func NewLoggers(level slog.Level) (*slog.Logger, *slog.Logger) {
	return NewLoggersWithFormat(os.Stderr, level, "json")
}

// NewLoggersWithFormat creates the (stdout, stderr) logger pair. Both write
// to w, which is stderr in practice, so stdout stays clean for command
// output. An unknown format falls back to JSON.
func NewLoggersWithFormat(w io.Writer, level slog.Level, format string) (*slog.Logger, *slog.Logger) {
	handler, err := logger.NewHandler(w, level, format)
	if err != nil {
		handler, _ = logger.NewHandler(w, level, "json")
	}

	stdout := slog.New(handler)
	stderr := slog.New(handler)

	return stdout, stderr
}

// ParseLogLevelOrDefault parses a log level string or returns a default level.
func ParseLogLevelOrDefault(levelStr string) slog.Level {
	level, err := logger.ParseLevel(levelStr)
	if err != nil {
		return slog.LevelInfo
	}
	return level
}
