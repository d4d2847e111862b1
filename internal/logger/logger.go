package logger

import (
	"os"

	"github.com/rs/zerolog"
	"go.uber.org/fx"

	"squadron-stats/internal/config"
)

// New builds the application logger at the configured level. Unknown
// level names fall back to info.
func New(cfg *config.Config) zerolog.Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	logger := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Caller().
		Logger()

	return logger.Level(level)
}

var Module = fx.Provide(New)
