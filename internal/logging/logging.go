package logging

import (
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Setup configures zerolog for the process and returns the root logger.
// Development gets a console writer at debug level, everything else JSON
// at info. A non-empty level overrides the default.
func Setup(env, level string) zerolog.Logger {
	var w io.Writer = os.Stdout
	lvl := zerolog.InfoLevel
	if env == "dev" || env == "development" {
		w = zerolog.ConsoleWriter{Out: os.Stdout}
		lvl = zerolog.DebugLevel
	}
	return SetupWithWriter(w, lvl, level)
}

func SetupWithWriter(w io.Writer, def zerolog.Level, level string) zerolog.Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if level != "" {
		if parsed, err := zerolog.ParseLevel(level); err == nil {
			def = parsed
		}
	}

	logger := zerolog.New(w).With().Timestamp().Logger().Level(def)
	log.Logger = logger
	return logger
}
