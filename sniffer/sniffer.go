package sniffer

import (
	"context"

	"i2cprobe/protocol"

	"tinygo.org/x/drivers"
)

// OutputSize is the capacity of the output ring.
const OutputSize = 4096

// LinkError marks a failure of the host link during a session.
type LinkError struct {
	Err error
}

func (e *LinkError) Error() string { return "sniffer: link: " + e.Err.Error() }
func (e *LinkError) Unwrap() error { return e.Err }

// Sniffer streams decoded events from Lines to Link until the host sends a
// byte or the context is cancelled.
type Sniffer struct {
	Lines   EdgeSource
	Link    drivers.UART
	Framing Framing
}

// Run owns the lines for the duration of the call. Each pass either decodes
// a pending line change or, when the lines are quiet, drains output and
// checks for cancellation. The byte that ends the session is consumed.
func (s *Sniffer) Run(ctx context.Context) error {
	out := protocol.NewOutputRing(s.Link, OutputSize)
	dec := NewDecoder(s.Lines.Latch())
	frame := make([]byte, 0, 3)

	for {
		if s.Lines.Pending() {
			if ev, ok := dec.Step(s.Lines.Sample()); ok {
				frame = AppendEvent(frame[:0], ev, s.Framing)
				out.Queue(frame...)
			}
			continue
		}

		if err := out.Service(); err != nil {
			return &LinkError{err}
		}
		if s.Link.Buffered() > 0 {
			var b [1]byte
			if _, err := s.Link.Read(b[:]); err != nil {
				return &LinkError{err}
			}
			break
		}
		if ctx.Err() != nil {
			break
		}
	}

	if s.Framing == Text {
		out.Queue('\r', '\n')
	}
	if err := out.Flush(); err != nil {
		return &LinkError{err}
	}
	return nil
}

// Owner is the transfer side that must give up the lines while sniffing.
type Owner interface {
	Release() error
	Configure() error
}

// Sniff releases the bus from o, runs s, and gives the bus back.
func Sniff(ctx context.Context, o Owner, s *Sniffer) error {
	if err := o.Release(); err != nil {
		return err
	}
	runErr := s.Run(ctx)
	if err := o.Configure(); err != nil {
		return err
	}
	return runErr
}
