package config

import (
	"io"
	"log/slog"
	"time"

	"github.com/lmittmann/tint"
)

// NewLogger builds the process logger: JSON in "json" format, otherwise a
// colourised console handler.
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	if c.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: c.SlogLevel()}))
	}
	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      c.SlogLevel(),
		TimeFormat: time.RFC3339,
		NoColor:    c.IsProduction(),
	}))
}
