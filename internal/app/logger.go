package app

import (
	"log/slog"
	"os"
)

// NewLogger returns the process logger. JSON output is opt-in via
// LOG_FORMAT=json; the text handler stays the development default.
func NewLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{AddSource: true}
	var handler slog.Handler
	if cfg != nil && cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.New(handler).With(slog.String("service", "edusales"))
}
