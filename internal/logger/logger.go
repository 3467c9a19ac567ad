// Package logger builds the slog loggers used across openvault.
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"

	charmlog "github.com/charmbracelet/log"
)

// Output formats accepted by ParseFormat.
const (
	FormatText   = "text"
	FormatJSON   = "json"
	FormatPretty = "pretty"
)

type config struct {
	level  slog.Level
	pretty bool
	json   bool
	writer io.Writer
}

// New returns a logger. Without options it writes Info-level text to stderr,
// keeping stdout free for command output and the MCP stdio transport.
func New(opts ...Option) *slog.Logger {
	c := &config{level: slog.LevelInfo, writer: os.Stderr}
	for _, o := range opts {
		o(c)
	}

	switch {
	case c.json:
		return slog.New(slog.NewJSONHandler(c.writer, &slog.HandlerOptions{Level: c.level}))
	case c.pretty:
		h := charmlog.NewWithOptions(c.writer, charmlog.Options{
			ReportTimestamp: true,
			Level:           charmLevel(c.level),
		})
		return slog.New(h)
	default:
		return slog.New(slog.NewTextHandler(c.writer, &slog.HandlerOptions{Level: c.level}))
	}
}

// ParseFormat maps a configured format name to options.
func ParseFormat(format string) Option {
	f := strings.ToLower(strings.TrimSpace(format))
	return func(c *config) {
		c.json = f == FormatJSON
		c.pretty = f == FormatPretty
	}
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func charmLevel(l slog.Level) charmlog.Level {
	if l <= slog.LevelDebug {
		return charmlog.DebugLevel
	}
	return charmlog.InfoLevel
}
