// Package logging builds the structured logger shared by every part of the
// chat server.
package logging

import (
	"log/slog"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
)

// LevelTrace is one tick below slog.LevelDebug, for line-by-line protocol
// tracing that's too noisy even for debug builds.
const LevelTrace = slog.Level(-8)

var levelNames = map[slog.Leveler]string{
	LevelTrace: "TRACE",
}

// New builds a slog.Logger writing text-formatted records to stdout. The
// level is selected by name ("trace", "debug", "info", "warn", "error"),
// defaulting to info for anything else. When stdout is attached to a real
// terminal, source file:line is included on each record; when it's piped or
// redirected (the common case for a supervised production process), it's
// omitted to keep logs machine-parseable and compact.
func New(level string) *slog.Logger {
	lvl := parseLevel(level)

	opts := &slog.HandlerOptions{
		Level:     lvl,
		AddSource: isatty.IsTerminal(os.Stdout.Fd()),
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.LevelKey {
				l := a.Value.Any().(slog.Level)
				name, ok := levelNames[l]
				if !ok {
					name = l.String()
				}
				a.Value = slog.StringValue(name)
			}
			return a
		},
	}

	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "trace":
		return LevelTrace
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	case "info":
		fallthrough
	default:
		return slog.LevelInfo
	}
}
