// Package log builds the slog loggers used by the negotiate-token command.
// Every handler it returns is wrapped in a RedactingHandler.
package log

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Default rotation limits for Options.File.
const (
	DefaultMaxSize    = 10 << 20
	DefaultMaxBackups = 3
)

// Options configures New.
type Options struct {
	// Level is "debug", "info", "warn" or "error". Default: "warn".
	Level string

	// File, when set, sends output to a RotatingFile instead of Writer.
	File string

	// MaxSize and MaxBackups tune rotation of File.
	MaxSize    int64
	MaxBackups int

	// JSON selects the JSON handler instead of text.
	JSON bool

	// Writer receives output when File is empty. Default: os.Stderr.
	Writer io.Writer
}

// ParseLevel maps a level name to a slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "", "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level %q", s)
	}
}

// New returns a redacting logger and a closer for any file it opened.
func New(opts Options) (*slog.Logger, io.Closer, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, nil, err
	}

	var w io.Writer = os.Stderr
	if opts.Writer != nil {
		w = opts.Writer
	}
	var closer io.Closer = nopCloser{}

	if opts.File != "" {
		maxSize, maxBackups := opts.MaxSize, opts.MaxBackups
		if maxSize == 0 {
			maxSize = DefaultMaxSize
		}
		if maxBackups == 0 {
			maxBackups = DefaultMaxBackups
		}
		rf, err := NewRotatingFile(opts.File, maxSize, maxBackups)
		if err != nil {
			return nil, nil, err
		}
		w, closer = rf, rf
	}

	hopts := &slog.HandlerOptions{Level: level}
	var h slog.Handler
	if opts.JSON {
		h = slog.NewJSONHandler(w, hopts)
	} else {
		h = slog.NewTextHandler(w, hopts)
	}

	return slog.New(NewRedactingHandler(h)), closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
