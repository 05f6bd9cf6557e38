// Package logging builds the process-wide zerolog logger from config.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"

	"talekeeper/internal/config"
)

// New returns a logger writing to w at the configured level. Unknown levels
// fall back to info rather than failing; config validation already rejected
// them for file-based configs.
func New(w io.Writer, cfg config.LoggingConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	if cfg.Pretty {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}

// Default is the logger used before config is loaded.
func Default() zerolog.Logger {
	return zerolog.New(os.Stderr).Level(zerolog.InfoLevel).With().Timestamp().Logger()
}
