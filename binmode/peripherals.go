package binmode

import "periph.io/x/conn/v3/gpio"

// AuxState is the drive state of the auxiliary pin.
type AuxState uint8

const (
	AuxDriveLow AuxState = iota
	AuxDriveHigh
	AuxHighZ
)

// AuxPin selects which physical pin the AUX commands act on.
type AuxPin uint8

const (
	AuxPinAux AuxPin = iota
	AuxPinCS
)

// Peripherals is the board's power, pull-up, AUX and CS control.
type Peripherals interface {
	// Configure applies the low nibble of a peripheral opcode:
	// bit 3 power, bit 2 pull-ups, bit 1 AUX, bit 0 CS.
	Configure(bits byte) error
	SetAux(state AuxState) error
	ReadAux() (gpio.Level, error)
	SelectAux(pin AuxPin)
}

// PullupControl is implemented by boards with a switchable pull-up supply.
// The reply byte is sent to the host as is.
type PullupControl interface {
	Pullups(op byte) (byte, error)
}
