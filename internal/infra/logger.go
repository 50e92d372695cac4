package infra

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Logger is the logger every ipstudio component receives at construction.
type Logger = zerolog.Logger

// NewLogger builds the process logger. APP_ENV=development prints colored
// console lines at debug level; anything else writes JSON at info level.
// LOG_LEVEL overrides the level in both cases.
func NewLogger(appEnv string) zerolog.Logger {
	return newLogger(os.Stdout, appEnv, os.Getenv("LOG_LEVEL"))
}

func newLogger(w io.Writer, appEnv, levelName string) zerolog.Logger {
	dev := appEnv == "development"
	level := zerolog.InfoLevel
	if dev {
		level = zerolog.DebugLevel
	}
	if parsed, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(levelName))); err == nil && levelName != "" {
		level = parsed
	}
	if dev {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	return zerolog.New(w).
		Level(level).
		With().
		Timestamp().
		Str("service", "ipstudio").
		Str("env", appEnv).
		Logger()
}
