// Package logger provides JSON structured logging using zerolog
package logger

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New builds the process logger at the given level. An unparsable level
// falls back to info rather than failing startup.
func New(level string) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339

	parsed, err := zerolog.ParseLevel(level)
	if err != nil {
		parsed = zerolog.InfoLevel
	}

	return zerolog.New(os.Stdout).
		Level(parsed).
		With().
		Timestamp().
		Logger()
}
