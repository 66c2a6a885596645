// Package logging builds the process logger. Console output goes through clog,
// JSON output through slog's handler; both redact secrets with masq.
package logging

import (
	"io"
	"log/slog"
	"strings"

	"github.com/m-mizutani/clog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/masq"
)

// ParseLevel maps a level name to slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, goerr.New("unknown log level", goerr.V("level", s))
}

// New creates a logger writing to w. format is "console" or "json".
func New(w io.Writer, level, format string) (*slog.Logger, error) {
	lv, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}

	filter := masq.New(
		masq.WithTag("secret"),
		masq.WithFieldName("Authorization"),
		masq.WithFieldPrefix("api_key"),
		masq.WithContain("Bearer "),
	)

	switch format {
	case "json":
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
			Level:       lv,
			ReplaceAttr: filter,
		})), nil
	case "console", "":
		return slog.New(clog.New(
			clog.WithWriter(w),
			clog.WithLevel(lv),
			clog.WithReplaceAttr(filter),
			clog.WithSource(lv == slog.LevelDebug),
		)), nil
	}
	return nil, goerr.New("unknown log format", goerr.V("format", format))
}

// Setup installs a new logger as the slog default.
func Setup(w io.Writer, level, format string) error {
	logger, err := New(w, level, format)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)
	return nil
}
