// Package logging configures the logrus logger shared by the scalper
// packages and commands.
package logging

import (
	"fmt"
	"io"
	"os"

	log "github.com/sirupsen/logrus"
)

// New builds a logger writing to w at the given level. An empty level
// means info; format is "text" (default) or "json".
func New(w io.Writer, level, format string) (*log.Logger, error) {
	l := log.New()
	if w == nil {
		w = os.Stderr
	}
	l.SetOutput(w)

	lvl := log.InfoLevel
	if level != "" {
		parsed, err := log.ParseLevel(level)
		if err != nil {
			return nil, fmt.Errorf("log level: %w", err)
		}
		lvl = parsed
	}
	l.SetLevel(lvl)

	switch format {
	case "", "text":
		l.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	case "json":
		l.SetFormatter(&log.JSONFormatter{})
	default:
		return nil, fmt.Errorf("log format %q: want text or json", format)
	}
	return l, nil
}

// Setup applies level and format to the standard logrus logger and
// returns it.
func Setup(level, format string) (*log.Logger, error) {
	l, err := New(os.Stderr, level, format)
	if err != nil {
		return nil, err
	}
	std := log.StandardLogger()
	std.SetOutput(l.Out)
	std.SetLevel(l.GetLevel())
	std.SetFormatter(l.Formatter)
	return std, nil
}
