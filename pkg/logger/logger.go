package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Options configures the process logger.
type Options struct {
	// Level is any zerolog level name; unknown values fall back to info.
	Level string
	// Pretty switches to human-readable console output.
	Pretty bool
	// Out defaults to stdout.
	Out io.Writer
}

// New builds a zerolog.Logger tagged with the service name.
func New(opts Options) zerolog.Logger {
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}
	if opts.Pretty {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen}
	}

	ctx := zerolog.New(out).
		Level(ParseLevel(opts.Level)).
		With().
		Timestamp().
		Str("service", "lightning-timesheet")
	if opts.Pretty {
		ctx = ctx.Caller()
	}
	return ctx.Logger()
}

// WithComponent returns a child logger tagged with the emitting component,
// e.g. "settlement", "wallet_client", "trigger".
func WithComponent(log zerolog.Logger, component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// ParseLevel maps a level name to a zerolog level, defaulting to info.
func ParseLevel(level string) zerolog.Level {
	name := strings.ToLower(strings.TrimSpace(level))
	lvl, err := zerolog.ParseLevel(name)
	if err != nil || name == "" {
		return zerolog.InfoLevel
	}
	return lvl
}
