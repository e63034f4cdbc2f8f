// Package logging configures NOVA's structured logger from
// pkg/config.LogConfig, following the pack's zerolog idiom
// (grounded on the other_examples/cuemby-warren manifest's wiring of
// github.com/rs/zerolog alongside prometheus/client_golang — see
// DESIGN.md) in place of the teacher's unstructured fmt.Fprintf
// stderr logging.
package logging

import (
	"os"

	"github.com/rs/zerolog"
)

// New builds a zerolog.Logger writing to stderr at level, pretty-
// printed when pretty is true (for interactive use; JSON otherwise,
// for production log collection). An unrecognized level falls back to
// info rather than failing startup over a config typo.
func New(level string, pretty bool) zerolog.Logger {
	parsed, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		parsed = zerolog.InfoLevel
	}

	var w = os.Stderr
	logger := zerolog.New(w).Level(parsed).With().Timestamp().Logger()
	if pretty {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: w}).Level(parsed).With().Timestamp().Logger()
	}
	return logger
}
