// Package stdlog provides a logger implementation using the standard library's slog package
// used as adapter for logging interfaces.
package stdlog

import (
	"io"
	"log/slog"
	"os"
)

// NewSlogLogger creates a new slog.Logger instance with the specified writer and format.
func NewSlogLogger(w io.Writer, isText bool) *slog.Logger {
	var handler slog.Handler
	if isText {
		handler = slog.NewTextHandler(w, nil)
	} else {
		handler = slog.NewJSONHandler(w, nil)
	}
	return slog.New(handler)
}

// Output resolves a configured output name to a writer. Unknown names fall
// back to stderr.
func Output(name string) io.Writer {
	switch name {
	case "stdout":
		return os.Stdout
	default:
		return os.Stderr
	}
}
