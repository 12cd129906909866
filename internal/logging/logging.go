// Package logging builds the process logger.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-colorable"
	"github.com/rs/zerolog"
)

const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

// Options selects the logger's level and output format.
type Options struct {
	Level  string
	Format string
	// Out defaults to stderr.
	Out     io.Writer
	NoColor bool
}

// New returns a logger writing human-readable lines (console) or one JSON
// object per line (json).
func New(opts Options) (zerolog.Logger, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return zerolog.Nop(), err
	}

	out := opts.Out
	switch strings.ToLower(strings.TrimSpace(opts.Format)) {
	case "", FormatConsole:
		if out == nil {
			out = colorable.NewColorable(os.Stderr)
		}
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.TimeOnly, NoColor: opts.NoColor}
	case FormatJSON:
		if out == nil {
			out = os.Stderr
		}
	default:
		return zerolog.Nop(), fmt.Errorf("unknown log format %q", opts.Format)
	}

	return zerolog.New(out).Level(level).With().Timestamp().Logger(), nil
}

// ParseLevel accepts zerolog level names; empty means info.
func ParseLevel(s string) (zerolog.Level, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return zerolog.InfoLevel, nil
	}
	level, err := zerolog.ParseLevel(s)
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("unknown log level %q", s)
	}
	return level, nil
}
