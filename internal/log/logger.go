package log

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	config "github.com/burnsync/burnsync/configs"
)

// InitLogger replaces the zerolog global logger with one configured
// from the log section of the config.
func InitLogger() {
	level := zerolog.InfoLevel
	if lvl, err := zerolog.ParseLevel(config.Cfg.Log.Level); err == nil && lvl != zerolog.NoLevel {
		level = lvl
	}
	zerolog.SetGlobalLevel(level)

	log.Logger = NewLogger("syncer")
}

func NewLogger(name string) zerolog.Logger {
	return zerolog.New(output()).With().Timestamp().Str("component", name).Logger()
}

func output() io.Writer {
	if config.Cfg.Log.Prettify {
		return zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	}
	return os.Stderr
}
