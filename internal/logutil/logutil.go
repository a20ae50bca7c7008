// Package logutil is a minimal io.Writer-wrapping logger, the same
// shape as the teacher's log package: no structured fields, no
// levels, just line-oriented progress output for clone/fetch/download
// events.
package logutil

import (
	"fmt"
	"io"
)

// Logger wraps an io.Writer with line/format helpers.
type Logger struct {
	io.Writer
}

// New returns a Logger writing to w.
func New(w io.Writer) *Logger { return &Logger{Writer: w} }

// Logln logs a line.
func (l *Logger) Logln(args ...interface{}) {
	fmt.Fprintln(l, args...)
}

// Logf logs a formatted string (no trailing newline).
func (l *Logger) Logf(format string, args ...interface{}) {
	fmt.Fprintf(l, format, args...)
}

// LogDepotfln logs a formatted line prefixed with "depot: ".
func (l *Logger) LogDepotfln(format string, args ...interface{}) {
	fmt.Fprintf(l, "depot: "+format+"\n", args...)
}
