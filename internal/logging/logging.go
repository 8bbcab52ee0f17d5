// Package logging configures the process-wide logrus logger.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
)

// Options selects level, formatter and an optional log file.
type Options struct {
	Level  string // trace|debug|info|warn|error; unknown falls back to info
	Format string // text|json
	File   string // appended to in addition to stderr when set
}

// Setup applies opts to the standard logrus logger. The returned closer
// releases the log file and restores stderr output (a no-op when File is empty).
func Setup(opts Options) (io.Closer, error) {
	return Configure(logrus.StandardLogger(), os.Stderr, opts)
}

// Configure applies opts to l, writing to stderr and, when set, opts.File.
func Configure(l *logrus.Logger, stderr io.Writer, opts Options) (io.Closer, error) {
	if strings.EqualFold(strings.TrimSpace(opts.Format), "json") {
		l.SetFormatter(&logrus.JSONFormatter{})
	} else {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	lvl, err := logrus.ParseLevel(strings.TrimSpace(opts.Level))
	if err != nil {
		lvl = logrus.InfoLevel
	}
	l.SetLevel(lvl)

	if opts.File == "" {
		l.SetOutput(stderr)
		return nopCloser{}, nil
	}
	if dir := filepath.Dir(opts.File); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("logging: mkdir: %w", err)
		}
	}
	f, err := os.OpenFile(opts.File, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("logging: open log file: %w", err)
	}
	l.SetOutput(io.MultiWriter(stderr, f))
	return &fileCloser{l: l, stderr: stderr, f: f}, nil
}

// fileCloser points the logger back at stderr before closing the file.
type fileCloser struct {
	l      *logrus.Logger
	stderr io.Writer
	f      *os.File
}

func (c *fileCloser) Close() error {
	c.l.SetOutput(c.stderr)
	return c.f.Close()
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
