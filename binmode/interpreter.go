// Package binmode is the binary scripting interface: a host sends one opcode
// at a time over the link and gets a status byte (and data) back.
package binmode

import (
	"context"
	"errors"
	"runtime"

	"i2cprobe/core"
	"i2cprobe/protocol"
	"i2cprobe/sniffer"

	"tinygo.org/x/drivers"
)

// linkError marks failures of the host link itself. They end the session;
// every other error only turns into a failure reply.
type linkError struct {
	err error
}

func (e *linkError) Error() string { return "binmode: link: " + e.err.Error() }
func (e *linkError) Unwrap() error { return e.err }

// Options are the optional collaborators of the interpreter.
type Options struct {
	Peripherals Peripherals
	// Lines enables the sniffer opcode.
	Lines sniffer.EdgeSource
}

// Interpreter executes binary commands against an engine.
type Interpreter struct {
	eng    *core.Engine
	link   drivers.UART
	periph Peripherals
	lines  sniffer.EdgeSource
	reg    *Registry
	buf    []byte
	ctx    context.Context
}

// New creates an interpreter with the opcode families registered.
func New(eng *core.Engine, link drivers.UART, opts Options) *Interpreter {
	in := &Interpreter{
		eng:    eng,
		link:   link,
		periph: opts.Peripherals,
		lines:  opts.Lines,
		reg:    NewRegistry(),
		buf:    make([]byte, protocol.TransferBufferSize),
		ctx:    context.Background(),
	}
	in.reg.Register(protocol.FamilyControl, "control", in.control)
	in.reg.Register(protocol.FamilyBulk, "bulk_write", in.bulkWrite)
	in.reg.Register(protocol.FamilyPeripherals, "peripherals", in.peripherals)
	in.reg.Register(protocol.FamilyPullups, "pullups", in.pullups)
	in.reg.Register(protocol.FamilySpeed, "set_speed", in.setSpeed)
	return in
}

// Run announces the mode and serves commands until the exit opcode, a link
// error or cancellation. A failed command never ends the loop.
func (in *Interpreter) Run(ctx context.Context) error {
	in.ctx = ctx
	if err := in.write([]byte(protocol.ModeIdentifier)); err != nil {
		return err
	}
	for {
		op, err := in.readByte()
		if err != nil {
			return err
		}
		if op == protocol.OpExit {
			return nil
		}
		if err := in.reg.Dispatch(op); err != nil {
			var le *linkError
			if errors.As(err, &le) {
				return err
			}
			if err := in.writeByte(core.Status(err)); err != nil {
				return err
			}
		}
	}
}

// readByte blocks until one byte arrives. drivers.UART implementations such
// as machine.UART return zero bytes when idle instead of blocking.
func (in *Interpreter) readByte() (byte, error) {
	var b [1]byte
	for {
		n, err := in.link.Read(b[:])
		if n == 1 {
			return b[0], nil
		}
		if err != nil {
			return 0, &linkError{err}
		}
		if err := in.ctx.Err(); err != nil {
			return 0, &linkError{err}
		}
		runtime.Gosched()
	}
}

func (in *Interpreter) readFull(p []byte) error {
	for i := range p {
		b, err := in.readByte()
		if err != nil {
			return err
		}
		p[i] = b
	}
	return nil
}

func (in *Interpreter) write(p []byte) error {
	if _, err := in.link.Write(p); err != nil {
		return &linkError{err}
	}
	return nil
}

func (in *Interpreter) writeByte(b byte) error {
	return in.write([]byte{b})
}

func (in *Interpreter) ok() error {
	return in.writeByte(protocol.StatusSuccess)
}
