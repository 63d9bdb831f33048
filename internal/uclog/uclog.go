// Package uclog is a minimal, colorized wrapper around an io.Writer, in the
// same spirit as the teacher's log.Logger (log/logger.go): a thin shim, not a
// structured-logging framework, because nothing downstream of it parses log
// output -- it exists for a human staring at a terminal. Color coding uses
// github.com/fatih/color, matching the progress/status coloring idiom
// elsewhere in the pack.
package uclog

import (
	"fmt"
	"io"

	"github.com/fatih/color"
)

// Logger wraps an io.Writer with leveled, colorized line helpers.
type Logger struct {
	io.Writer
	Verbose bool
}

// New returns a Logger that writes to w.
func New(w io.Writer) *Logger {
	return &Logger{Writer: w}
}

// Logln logs a plain line.
func (l *Logger) Logln(args ...interface{}) {
	fmt.Fprintln(l, args...)
}

// Logf logs a formatted line.
func (l *Logger) Logf(format string, args ...interface{}) {
	fmt.Fprintf(l, format+"\n", args...)
}

// Event logs a scheduler/checkout event line, prefixed with a bold verb.
func (l *Logger) Event(verb, detail string) {
	fmt.Fprintf(l, "%s %s\n", color.New(color.Bold, color.FgCyan).Sprint(verb), detail)
}

// Success logs a line in green, for a completed operation.
func (l *Logger) Success(format string, args ...interface{}) {
	fmt.Fprintln(l, color.New(color.FgGreen).Sprintf(format, args...))
}

// Warn logs a line in yellow, for a downgraded per-dependency failure.
func (l *Logger) Warn(format string, args ...interface{}) {
	fmt.Fprintln(l, color.New(color.FgYellow).Sprintf(format, args...))
}

// Error logs a line in red, for a terminal failure about to abort the run.
func (l *Logger) Error(format string, args ...interface{}) {
	fmt.Fprintln(l, color.New(color.FgRed, color.Bold).Sprintf(format, args...))
}

// Debugf logs a formatted line only when Verbose is set.
func (l *Logger) Debugf(format string, args ...interface{}) {
	if !l.Verbose {
		return
	}
	fmt.Fprintln(l, color.New(color.Faint).Sprintf(format, args...))
}
