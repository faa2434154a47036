// Package logging constructs the process-wide *slog.Logger handle
// passed into every component, replacing the "global debug flag"
// design note in spec.md §9 with a passed-in handle rather than
// process-wide mutable state.
package logging

import (
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
)

// New returns a tint-colorized slog.Logger writing to stderr. debug
// selects slog.LevelDebug over the default slog.LevelInfo.
func New(debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}

	return slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: time.RFC3339,
	}))
}
