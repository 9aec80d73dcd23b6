package testutil

import (
	"io"
	"log/slog"
)

// SilentLogger returns a logger that discards everything. Tests pass it
// to policies so assertion output stays readable.
func SilentLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
