package infra

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// NewLogger builds the service logger. Development runs get debug
// level and a human-readable console; everything else emits JSON at
// info level with a service tag for log aggregation.
func NewLogger(appEnv string) zerolog.Logger {
	zerolog.DurationFieldUnit = time.Millisecond

	level := zerolog.InfoLevel
	var out io.Writer = os.Stdout
	if appEnv == "development" {
		level = zerolog.DebugLevel
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.Kitchen}
	}

	return zerolog.New(out).
		Level(level).
		With().
		Timestamp().
		Str("service", "jewelbench").
		Logger()
}
