// Package diag centralizes the core's verbosity-gated stderr diagnostics:
// plain fmt.Fprintf calls gated by an integer knob, no structured logger.
package diag

import (
	"fmt"
	"io"
	"os"
)

// Emitter gates PROF-WARNING/PROF-INFO lines behind a verbosity level: each
// class only prints once the caller's requested level reaches it.
type Emitter struct {
	Verbosity int
	Out       io.Writer
}

// New returns an Emitter writing to os.Stderr.
func New(verbosity int) *Emitter {
	return &Emitter{Verbosity: verbosity, Out: os.Stderr}
}

// Warnf prints a warning if the current verbosity is at least level.
func (e *Emitter) Warnf(level int, format string, args ...any) {
	if e == nil || e.Verbosity < level {
		return
	}
	fmt.Fprintf(e.out(), "PROF-WARNING: "+format+"\n", args...)
}

// Infof prints an informational line if the current verbosity is at least
// level.
func (e *Emitter) Infof(level int, format string, args ...any) {
	if e == nil || e.Verbosity < level {
		return
	}
	fmt.Fprintf(e.out(), "PROF-INFO: "+format+"\n", args...)
}

func (e *Emitter) out() io.Writer {
	if e.Out != nil {
		return e.Out
	}
	return os.Stderr
}
