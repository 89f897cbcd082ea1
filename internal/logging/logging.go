package logging

import (
	"io"
	"log/slog"
	"os"
)

// New returns the process logger: JSON in production, text otherwise.
func New(production bool) *slog.Logger {
	return NewWriter(os.Stderr, production)
}

// NewWriter is New with an explicit destination.
func NewWriter(w io.Writer, production bool) *slog.Logger {
	if production {
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// Nop discards everything. Use in tests.
func Nop() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
