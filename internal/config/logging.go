package config

import (
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// SetupLogger installs the global zerolog logger on w: human-friendly when w
// is a terminal, JSON otherwise.
func SetupLogger(w *os.File) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	var out io.Writer = w
	if isatty.IsTerminal(w.Fd()) || isatty.IsCygwinTerminal(w.Fd()) {
		out = zerolog.ConsoleWriter{Out: w}
	}
	log.Logger = zerolog.New(out).With().Timestamp().Logger()
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
}

// ApplyLevel switches the global level, logging only when it changes.
func ApplyLevel(cfg *Config) {
	lvl := cfg.Level()
	if zerolog.GlobalLevel() == lvl {
		return
	}
	zerolog.SetGlobalLevel(lvl)
	log.Info().Str("module", "config").Str("level", lvl.String()).Msg("log level set")
}
