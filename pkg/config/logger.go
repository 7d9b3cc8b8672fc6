package config

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// NewLogger returns a console logger at the given level. An invalid level falls
// back to info and is reported through the returned logger.
func NewLogger(w io.Writer, level string) zerolog.Logger {
	if w == nil {
		w = os.Stderr
	}
	logger := zerolog.New(zerolog.ConsoleWriter{
		Out:     w,
		NoColor: false,
	}).With().Timestamp().Logger()

	parsed := zerolog.InfoLevel
	if level != "" {
		if l, err := zerolog.ParseLevel(level); err == nil {
			parsed = l
		} else {
			logger.Warn().Str("invalid_level", level).Msg("Invalid log level, using default 'info'")
		}
	}
	return logger.Level(parsed)
}
