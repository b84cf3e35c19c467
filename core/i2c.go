// I2C master transfer engine
// Owns the session's acknowledgment state and routes every primitive to the
// backend selected once at construction.
package core

import (
	"fmt"

	"periph.io/x/conn/v3/physic"
)

// Engine drives one bus through the backend selected by its session.
// It is not safe for concurrent use; exactly one caller issues operations.
type Engine struct {
	s        *Session
	backends Backends
	active   Backend
	notify   Notifier
}

// New selects the backend for s.Mode. A nil notifier discards messages.
func New(s *Session, b Backends, n Notifier) (*Engine, error) {
	active, err := b.pick(s.Mode)
	if err != nil {
		return nil, err
	}
	if n == nil {
		n = Discard
	}
	return &Engine{s: s, backends: b, active: active, notify: n}, nil
}

// Session returns the session the engine operates on.
func (e *Engine) Session() *Session {
	return e.s
}

// AckPending reports whether the last byte's acknowledgment is unresolved.
func (e *Engine) AckPending() bool {
	return e.s.AckPending()
}

// Speeds lists the tiers of the active backend.
func (e *Engine) Speeds() []physic.Frequency {
	return e.active.Speeds()
}

// Configure programs the active backend for the session's tier.
func (e *Engine) Configure() error {
	e.s.pending = PendingNone
	return e.active.Configure(e.s.Speed)
}

// Release hands the lines back: the peripheral is disabled or the pins float.
func (e *Engine) Release() error {
	e.s.pending = PendingNone
	return e.active.Disable()
}

// SetTier switches to tier. The previous tier stays active when tier is out
// of range for the backend.
func (e *Engine) SetTier(tier SpeedTier) error {
	if n := len(e.active.Speeds()); int(tier) >= n {
		return fmt.Errorf("%w: tier %d, backend has %d", ErrSpeedRange, tier, n)
	}
	if err := e.active.Configure(tier); err != nil {
		return err
	}
	e.s.Speed = tier
	e.s.pending = PendingNone
	return nil
}

// SetTarget switches the controller instance and reconfigures it.
func (e *Engine) SetTarget(t Target) error {
	e.s.Target = t
	return e.Configure()
}

// SetMode switches backends. The old one is released first.
func (e *Engine) SetMode(m Mode) error {
	next, err := e.backends.pick(m)
	if err != nil {
		return err
	}
	if err := e.Release(); err != nil {
		return err
	}
	e.active = next
	e.s.Mode = m
	return e.Configure()
}

// flushNack resolves a pending acknowledgment ahead of a start or stop.
// An open read slot is closed with NACK since no more data is wanted.
func (e *Engine) flushNack() error {
	p := e.s.pending
	e.s.pending = PendingNone
	if p != PendingRead {
		return nil
	}
	e.notify.Warn("unresolved ACK sent as NACK")
	return e.active.SendAck(true)
}

// flushAck resolves a pending acknowledgment ahead of more data.
func (e *Engine) flushAck() error {
	p := e.s.pending
	e.s.pending = PendingNone
	if p != PendingRead {
		return nil
	}
	e.notify.Info("ACK")
	return e.active.SendAck(false)
}

// Start issues a start (or repeated start) condition.
func (e *Engine) Start() error {
	if err := e.flushNack(); err != nil {
		return err
	}
	if err := e.active.Start(); err != nil {
		return err
	}
	e.notify.Info("I2C START BIT")
	return nil
}

// Stop issues a stop condition.
func (e *Engine) Stop() error {
	if err := e.flushNack(); err != nil {
		return err
	}
	if err := e.active.Stop(); err != nil {
		return err
	}
	e.notify.Info("I2C STOP BIT")
	return nil
}

// TxByte transmits b and returns the receiver's acknowledgment.
func (e *Engine) TxByte(b byte) (Ack, error) {
	if err := e.flushAck(); err != nil {
		return NACK, err
	}
	ack, err := e.active.TxByte(b)
	if err != nil {
		return NACK, err
	}
	e.s.pending = PendingWrite
	return ack, nil
}

// ReadByte clocks in one byte. The ACK slot stays open until the next
// operation or an explicit SendAck.
func (e *Engine) ReadByte() (byte, error) {
	if err := e.flushAck(); err != nil {
		return 0, err
	}
	b, err := e.active.ReadByte()
	if err != nil {
		return 0, err
	}
	e.s.pending = PendingRead
	return b, nil
}

// SendAck resolves the pending acknowledgment explicitly. After a write the
// slot was already clocked, so only the bookkeeping is cleared.
func (e *Engine) SendAck(nack bool) error {
	p := e.s.pending
	if p == PendingNone {
		return ErrNoAckPending
	}
	e.s.pending = PendingNone
	if p == PendingWrite {
		return nil
	}
	if nack {
		e.notify.Info("NACK")
	} else {
		e.notify.Info("ACK")
	}
	return e.active.SendAck(nack)
}
