package core

import "fmt"

// Mode selects which backend moves bytes on the bus.
type Mode uint8

const (
	SoftwareBitBang Mode = iota
	HardwarePeripheral
)

func (m Mode) String() string {
	switch m {
	case SoftwareBitBang:
		return "software"
	case HardwarePeripheral:
		return "hardware"
	}
	return fmt.Sprintf("Mode(%d)", uint8(m))
}

// Target selects the hardware controller instance on boards with two of them.
type Target uint8

const (
	// Primary is the controller wired to the external bus header.
	Primary Target = iota
	// Secondary is the controller wired to the onboard EEPROM.
	Secondary
)

func (t Target) String() string {
	switch t {
	case Primary:
		return "primary"
	case Secondary:
		return "secondary"
	}
	return fmt.Sprintf("Target(%d)", uint8(t))
}

// SpeedTier is an index into the active backend's speed table.
type SpeedTier uint8

// Ack is the level of the ninth clock of a byte transfer.
type Ack uint8

const (
	ACK  Ack = 0 // line pulled low by the receiver
	NACK Ack = 1
)

func (a Ack) String() string {
	if a == ACK {
		return "ACK"
	}
	return "NACK"
}

// Pending is the kind of byte whose acknowledgment slot is still unresolved.
type Pending uint8

const (
	PendingNone Pending = iota
	// PendingRead leaves the master's ACK bit to be driven.
	PendingRead
	// PendingWrite was already clocked by the write; resolving it is bookkeeping.
	PendingWrite
)

// Session is the configuration and transfer state of one bus.
type Session struct {
	Mode   Mode
	Target Target
	Speed  SpeedTier

	pending Pending
}

// NewSession creates a session with nothing pending.
func NewSession(mode Mode, target Target, speed SpeedTier) *Session {
	return &Session{
		Mode:   mode,
		Target: target,
		Speed:  speed,
	}
}

// AckPending reports whether a byte was transferred without its ACK being resolved.
func (s *Session) AckPending() bool {
	return s.pending != PendingNone
}

// Pending returns the kind of the unresolved acknowledgment.
func (s *Session) Pending() Pending {
	return s.pending
}

func (s *Session) String() string {
	return fmt.Sprintf("%s/%s tier %d", s.Mode, s.Target, s.Speed)
}
