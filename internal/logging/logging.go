// Package logging configures the zerolog logger shared by the binaries.
package logging

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New builds the service logger. Dev gets human-readable console output,
// everything else structured JSON.
func New(service, env string) zerolog.Logger {
	if env == "dev" {
		return zerolog.New(zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}).With().
			Timestamp().
			Str("service", service).
			Logger()
	}

	return zerolog.New(os.Stdout).With().
		Timestamp().
		Str("service", service).
		Logger()
}
