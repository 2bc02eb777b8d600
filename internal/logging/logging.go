// Package logging builds the process-wide slog logger.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Options selects the log format, level and optional rotating file.
type Options struct {
	Format string // text or json
	Level  string // debug, info, warn, error
	File   string
}

// ParseLevel maps a level name to slog.Level. Unknown names are info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// New returns a logger writing to stdout and, when opts.File is set, to a
// rotating file. Close the returned io.Closer on shutdown.
func New(stdout io.Writer, opts Options) (*slog.Logger, io.Closer, error) {
	var out io.Writer = stdout
	var closer io.Closer = nopCloser{}
	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0o755); err != nil {
			return nil, nil, fmt.Errorf("log dir: %w", err)
		}
		lj := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    50, // MB
			MaxBackups: 5,
			MaxAge:     28, // days
			Compress:   true,
		}
		out = io.MultiWriter(stdout, lj)
		closer = lj
	}

	ho := &slog.HandlerOptions{Level: ParseLevel(opts.Level)}
	var h slog.Handler
	if strings.EqualFold(opts.Format, "json") {
		h = slog.NewJSONHandler(out, ho)
	} else {
		h = slog.NewTextHandler(out, ho)
	}
	return slog.New(h), closer, nil
}

// Setup builds the logger with New over os.Stdout and installs it as the slog default.
func Setup(opts Options) (*slog.Logger, io.Closer, error) {
	logger, closer, err := New(os.Stdout, opts)
	if err != nil {
		return nil, nil, err
	}
	slog.SetDefault(logger)
	return logger, closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
