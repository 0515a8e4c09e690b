// Package logging provides the structured, per-component loggers used by
// every task in the fabric (dispatcher, room, connection, server).
package logging

import (
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Log is the process-wide base logger. Initialize sets its level and
// format; until then it logs at info level to a pretty console writer so
// tests and ad-hoc tools still see output.
var Log zerolog.Logger

func init() {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	Log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()
}

// Initialize configures the global logger from a level name ("debug",
// "info", "warn", "error") and a format ("json" or "console").
func Initialize(level, format string) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)

	var w = os.Stderr
	if format == "json" {
		Log = zerolog.New(w).With().Timestamp().Logger()
		return
	}
	Log = zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()
}

// Component returns a sub-logger tagged with the given component name, the
// way the corpus's websocket fleets scope loggers per subsystem
// (dispatcher, room, connection, server, transport, pubsub, statestore).
func Component(name string) zerolog.Logger {
	return Log.With().Str("component", name).Logger()
}
