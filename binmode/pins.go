package binmode

import (
	"fmt"

	"i2cprobe/core"
	"i2cprobe/protocol"

	"periph.io/x/conn/v3/gpio"
)

// PinPeripherals drives the power, pull-up, AUX and CS lines of a board
// directly. A nil pin is not wired on the board.
type PinPeripherals struct {
	Power  gpio.PinIO
	Pullup gpio.PinIO
	Aux    gpio.PinIO
	CS     gpio.PinIO

	selected AuxPin
}

var _ Peripherals = (*PinPeripherals)(nil)

func (p *PinPeripherals) Configure(bits byte) error {
	for _, l := range []struct {
		pin gpio.PinIO
		bit byte
	}{
		{p.Power, 1 << 3},
		{p.Pullup, 1 << 2},
		{p.Aux, 1 << 1},
		{p.CS, 1 << 0},
	} {
		if l.pin == nil {
			continue
		}
		if err := l.pin.Out(gpio.Level(bits&l.bit != 0)); err != nil {
			return err
		}
	}
	return nil
}

func (p *PinPeripherals) auxPin() (gpio.PinIO, error) {
	pin, name := p.Aux, "AUX"
	if p.selected == AuxPinCS {
		pin, name = p.CS, "CS"
	}
	if pin == nil {
		return nil, fmt.Errorf("%w: no %s pin", core.ErrUnsupported, name)
	}
	return pin, nil
}

func (p *PinPeripherals) SetAux(s AuxState) error {
	pin, err := p.auxPin()
	if err != nil {
		return err
	}
	switch s {
	case AuxDriveLow:
		return pin.Out(gpio.Low)
	case AuxDriveHigh:
		return pin.Out(gpio.High)
	}
	return pin.In(gpio.Float, gpio.NoEdge)
}

// ReadAux leaves the pin as an input.
func (p *PinPeripherals) ReadAux() (gpio.Level, error) {
	pin, err := p.auxPin()
	if err != nil {
		return gpio.Low, err
	}
	if err := pin.In(gpio.Float, gpio.NoEdge); err != nil {
		return gpio.Low, err
	}
	return pin.Read(), nil
}

func (p *PinPeripherals) SelectAux(pin AuxPin) {
	p.selected = pin
}

// PullupSelect adds the pull-up voltage select of v4 boards to
// PinPeripherals: bit 0 selects 3.3V, bit 1 selects 5V, neither turns the
// supply off.
type PullupSelect struct {
	PinPeripherals
	V3V3 gpio.PinOut
	V5   gpio.PinOut
}

var _ PullupControl = (*PullupSelect)(nil)

func (p *PullupSelect) Pullups(op byte) (byte, error) {
	sel := protocol.Operand(op) & 0x03
	if sel == 0x03 {
		return protocol.StatusFailure, nil
	}
	// Both off first so the rails are never joined.
	for _, pin := range []gpio.PinOut{p.V3V3, p.V5} {
		if err := pin.Out(gpio.Low); err != nil {
			return protocol.StatusFailure, err
		}
	}
	switch sel {
	case 0x01:
		if err := p.V3V3.Out(gpio.High); err != nil {
			return protocol.StatusFailure, err
		}
	case 0x02:
		if err := p.V5.Out(gpio.High); err != nil {
			return protocol.StatusFailure, err
		}
	}
	return protocol.StatusSuccess, nil
}
