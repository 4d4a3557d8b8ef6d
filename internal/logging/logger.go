// Package logging configures the process-wide zerolog logger.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Init builds the application logger and installs it as zerolog's global
// logger. Development gets a human readable console writer; every other
// environment logs JSON lines to stdout.
func Init(env, level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.TimeFieldFormat = time.RFC3339

	var out io.Writer = os.Stdout
	if env == "development" {
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: "15:04:05"}
	}
	logger := zerolog.New(out).Level(lvl).With().Timestamp().Str("service", "fest-registration").Logger()
	log.Logger = logger
	return logger
}
