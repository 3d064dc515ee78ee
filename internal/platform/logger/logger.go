package logger

import (
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"

	"eventreg/internal/platform/config"
)

// New returns a structured logger: JSON for machines, tint-colored text for
// local runs. It also becomes the slog default.
func New(cfg config.Log) *slog.Logger {
	logger := slog.New(NewHandler(os.Stdout, cfg))
	slog.SetDefault(logger)
	return logger
}

// NewHandler builds the handler for cfg writing to w.
func NewHandler(w io.Writer, cfg config.Log) slog.Handler {
	if cfg.Format == "text" {
		return tint.NewHandler(w, &tint.Options{
			Level:      cfg.Level,
			TimeFormat: time.Kitchen,
		})
	}
	return slog.NewJSONHandler(w, &slog.HandlerOptions{Level: cfg.Level})
}

// Discard is a logger for tests.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
