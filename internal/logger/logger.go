// Package logger configures the zerolog logger shared by every component.
package logger

import (
	"os"

	"github.com/rs/zerolog"

	"github.com/onchainsignal/tracker/internal/config"
)

// New returns a configured zerolog.Logger. Development environments get
// human-readable console output and debug level; everything else gets
// level-filtered JSON suitable for log aggregation.
func New(cfg *config.Config) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	if cfg.IsDevelopment() {
		lvl = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(lvl)

	if cfg.IsDevelopment() {
		out := zerolog.ConsoleWriter{Out: os.Stderr}
		return zerolog.New(out).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stderr).With().Timestamp().Logger()
}
