//go:build rp2040 || rp2350

package main

import (
	"errors"
	"machine"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
)

// rpPin exposes a machine.Pin as a gpio.PinIO so the bit-bang backend and
// the sniffer monitor run unchanged on the microcontroller.
type rpPin struct {
	pin  machine.Pin
	name string
	pull gpio.Pull
}

var _ gpio.PinIO = (*rpPin)(nil)

var errNoEdge = errors.New("rp2040: edge detection not supported")

func newPin(pin machine.Pin, name string) *rpPin {
	return &rpPin{pin: pin, name: name, pull: gpio.Float}
}

func (p *rpPin) String() string   { return p.name }
func (p *rpPin) Halt() error      { return nil }
func (p *rpPin) Name() string     { return p.name }
func (p *rpPin) Number() int      { return int(p.pin) }
func (p *rpPin) Function() string { return "" }

// In configures the pin as an input. Edges are never reported.
func (p *rpPin) In(pull gpio.Pull, edge gpio.Edge) error {
	if edge != gpio.NoEdge {
		return errNoEdge
	}
	mode := machine.PinInput
	switch pull {
	case gpio.PullUp:
		mode = machine.PinInputPullup
	case gpio.PullDown:
		mode = machine.PinInputPulldown
	}
	p.pin.Configure(machine.PinConfig{Mode: mode})
	p.pull = pull
	return nil
}

func (p *rpPin) Read() gpio.Level {
	return gpio.Level(p.pin.Get())
}

func (p *rpPin) WaitForEdge(time.Duration) bool { return false }
func (p *rpPin) Pull() gpio.Pull                { return p.pull }
func (p *rpPin) DefaultPull() gpio.Pull         { return gpio.Float }

// Out latches the level before switching to output, so the switch never
// glitches the line.
func (p *rpPin) Out(l gpio.Level) error {
	p.pin.Set(bool(l))
	p.pin.Configure(machine.PinConfig{Mode: machine.PinOutput})
	return nil
}

func (p *rpPin) PWM(gpio.Duty, physic.Frequency) error {
	return errors.New("rp2040: PWM not supported on bus pins")
}
