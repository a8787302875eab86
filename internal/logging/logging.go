// Package logging wraps zerolog with the field conventions the rest of
// this module relies on: every logger carries a "component" field so
// transport/discovery/syncengine output can be filtered independently.
package logging

import (
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// New builds a base logger at the given level (parsed case-insensitively,
// falling back to info on an unrecognized value).
func New(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger().Level(lvl)
}

// Component returns a child logger tagged with the given component name,
// e.g. logging.Component(base, "transport").
func Component(base zerolog.Logger, name string) zerolog.Logger {
	return base.With().Str("component", name).Logger()
}
