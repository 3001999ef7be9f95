// Package logging builds the application's charmbracelet logger.
package logging

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
)

// New creates a [log.Logger] writing to w with timestamps and caller reporting enabled.
// level is one of debug, info, warn or error; format is "text" or "json".
//
// The writer defaults to [os.Stderr].
func New(w io.Writer, level, format string) (*log.Logger, error) {
	if w == nil {
		w = os.Stderr
	}

	lvl, err := log.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("parsing log level: %w", err)
	}

	opts := log.Options{
		ReportTimestamp: true,
		ReportCaller:    true,
		Level:           lvl,
	}
	if format == "json" {
		opts.Formatter = log.JSONFormatter
	}
	return log.NewWithOptions(w, opts), nil
}

// Discard returns a logger that drops everything. Useful in tests.
func Discard() *log.Logger {
	return log.New(io.Discard)
}
