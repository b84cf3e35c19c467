package core

import (
	"fmt"
	"io"
)

// DebugWriter is a function type for writing debug messages
type DebugWriter func(string)

// Notifier receives the human-facing messages of the engine: protocol
// warnings such as a forced NACK, and per-operation traces.
type Notifier interface {
	Warn(msg string)
	Info(msg string)
}

// WriterNotifier prints warnings to W, and traces too when Verbose is set.
type WriterNotifier struct {
	W       io.Writer
	Verbose bool
}

func (n *WriterNotifier) Warn(msg string) {
	fmt.Fprintf(n.W, "WARNING: %s\r\n", msg)
}

func (n *WriterNotifier) Info(msg string) {
	if n.Verbose {
		fmt.Fprintf(n.W, "%s\r\n", msg)
	}
}

// FuncNotifier forwards both levels to a DebugWriter, as platform debug
// output (UART, USB) is usually wired.
type FuncNotifier DebugWriter

func (f FuncNotifier) Warn(msg string) { f("WARNING: " + msg) }
func (f FuncNotifier) Info(msg string) { f(msg) }

type discard struct{}

func (discard) Warn(string) {}
func (discard) Info(string) {}

// Discard drops every message. The binary interface uses it.
var Discard Notifier = discard{}
