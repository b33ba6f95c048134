// Package logging builds the process slog.Handler.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
	"golang.org/x/term"
)

// Format selects the handler family.
type Format string

const (
	FormatAuto   Format = "auto"
	FormatJSON   Format = "json"
	FormatPretty Format = "pretty"
)

// ParseLevel maps debug, info, warn and error to slog levels.
// Empty means info.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

// NewHandler returns a colorized tint handler for pretty output and a JSON
// handler otherwise. Auto picks pretty only when out is a terminal.
func NewHandler(out io.Writer, format Format, level slog.Leveler) slog.Handler {
	if format == FormatAuto || format == "" {
		format = FormatJSON
		if isTerminal(out) {
			format = FormatPretty
		}
	}
	if format == FormatPretty {
		return tint.NewHandler(out, &tint.Options{
			Level:      level,
			TimeFormat: time.TimeOnly,
			NoColor:    !isTerminal(out),
		})
	}
	return slog.NewJSONHandler(out, &slog.HandlerOptions{Level: level})
}

// Setup installs the default logger from the configured format and level.
func Setup(format, level string) (*slog.Logger, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}
	logger := slog.New(NewHandler(os.Stderr, Format(format), lvl))
	slog.SetDefault(logger)
	return logger, nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
