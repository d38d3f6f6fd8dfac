// Package logging builds the process logger from config.Log.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/goflash/devserver/config"
)

// New returns a logger writing to w in the configured format, and a
// function that flushes buffered output. The flush function is never nil.
//
//	logger, sync, err := logging.New(cfg.Log, os.Stderr)
//	defer sync()
func New(cfg config.Log, w io.Writer) (*slog.Logger, func() error, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, nop, err
	}
	opts := &slog.HandlerOptions{Level: level}

	switch cfg.Format {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nop, nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nop, nil
	case "zap":
		h, sync := newZapHandler(w, level)
		return slog.New(h), sync, nil
	}
	return nil, nop, fmt.Errorf("logging: unknown format %q", cfg.Format)
}

// ParseLevel maps "debug", "info", "warn" and "error" to slog levels. An
// empty string means info.
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if s == "" {
		return slog.LevelInfo, nil
	}
	if err := l.UnmarshalText([]byte(strings.ToUpper(s))); err != nil {
		return 0, fmt.Errorf("logging: %w", err)
	}
	return l, nil
}

func nop() error { return nil }
