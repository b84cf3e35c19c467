package core

import (
	"fmt"

	"periph.io/x/conn/v3/physic"
)

// Backend is the set of bus primitives both transfer implementations provide.
// Backends know nothing about acknowledgment bookkeeping; the Engine does.
type Backend interface {
	// Configure programs the backend for tier and takes ownership of the lines.
	Configure(tier SpeedTier) error

	// Disable releases the lines (peripheral off or pins floated).
	Disable() error

	// Start issues a start or repeated start condition.
	Start() error

	// Stop issues a stop condition.
	Stop() error

	// TxByte clocks out b MSB first and returns the ninth bit.
	TxByte(b byte) (Ack, error)

	// ReadByte clocks in one byte, leaving the ACK slot open.
	ReadByte() (byte, error)

	// SendAck drives the master's ACK (nack=false) or NACK bit.
	SendAck(nack bool) error

	// Speeds lists the bus frequency of each tier.
	Speeds() []physic.Frequency
}

// BusChecker is implemented by backends that can observe both lines directly.
type BusChecker interface {
	// BusIdle reports whether SDA and SCL both read high.
	BusIdle() (bool, error)
}

// Backends holds the implementations a session may select from.
// Hardware is nil on boards without a usable controller.
type Backends struct {
	Software Backend
	Hardware Backend
}

func (b Backends) pick(m Mode) (Backend, error) {
	var be Backend
	switch m {
	case SoftwareBitBang:
		be = b.Software
	case HardwarePeripheral:
		be = b.Hardware
	default:
		return nil, fmt.Errorf("%w: mode %s", ErrUnsupported, m)
	}
	if be == nil {
		return nil, fmt.Errorf("%w: no %s backend on this board", ErrUnsupported, m)
	}
	return be, nil
}

// Software speed tiers. The half-bit delay is half of each period.
var SoftwareSpeeds = []physic.Frequency{
	5 * physic.KiloHertz,
	50 * physic.KiloHertz,
	100 * physic.KiloHertz,
	400 * physic.KiloHertz,
}

// Hardware speed tiers.
var HardwareSpeeds = []physic.Frequency{
	100 * physic.KiloHertz,
	400 * physic.KiloHertz,
	1 * physic.MegaHertz,
}

// TierFor returns the fastest tier of speeds not above f.
func TierFor(speeds []physic.Frequency, f physic.Frequency) (SpeedTier, error) {
	best := -1
	for i, s := range speeds {
		if s <= f && (best < 0 || s > speeds[best]) {
			best = i
		}
	}
	if best < 0 {
		return 0, fmt.Errorf("%w: %s is below the slowest tier", ErrSpeedRange, f)
	}
	return SpeedTier(best), nil
}
