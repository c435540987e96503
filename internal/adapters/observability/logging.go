package observability

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// NewLogger returns a zerolog Logger.
// APP_ENV=dev (or development) uses a human-friendly console writer,
// APP_ENV=test discards everything below warn. LOG_LEVEL overrides the level.
func NewLogger(env string) zerolog.Logger {
	return newLogger(env, os.Getenv("LOG_LEVEL"), os.Stdout)
}

func newLogger(env, level string, out io.Writer) zerolog.Logger {
	var l zerolog.Logger
	switch strings.ToLower(env) {
	case "dev", "development":
		l = zerolog.New(zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}).
			With().Timestamp().Logger().Level(zerolog.DebugLevel)
	case "test":
		l = zerolog.New(out).With().Timestamp().Logger().Level(zerolog.WarnLevel)
	default:
		l = zerolog.New(out).With().Timestamp().Logger().Level(zerolog.InfoLevel)
	}
	if lvl, err := zerolog.ParseLevel(strings.ToLower(level)); err == nil && level != "" {
		l = l.Level(lvl)
	}
	return l
}
