package app

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// newLogger builds an isolated slog.Logger writing to w. Level names are
// those slog itself understands ("debug", "INFO", "warn+2", ...); an empty
// level means info. Format is "json" or "text", text being the default.
func newLogger(level, format string, w io.Writer) (*slog.Logger, error) {
	var lvl slog.Level
	if level != "" {
		if err := lvl.UnmarshalText([]byte(level)); err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", level, err)
		}
	}

	opts := &slog.HandlerOptions{Level: lvl}
	switch strings.ToLower(format) {
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("invalid log format %q", format)
	}
}
