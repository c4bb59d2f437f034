package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Init configures the global logger. Development gets a console writer,
// everything else emits JSON lines.
func Init(env, level, service string) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	zerolog.TimeFieldFormat = time.RFC3339

	log.Logger = New(os.Stdout, env, service)
}

// New builds a logger writing to w.
func New(w io.Writer, env, service string) zerolog.Logger {
	if env == "development" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05"}
	}
	zl := zerolog.New(w).With().Timestamp()
	if service != "" {
		zl = zl.Str("service", service)
	}
	return zl.Logger()
}
