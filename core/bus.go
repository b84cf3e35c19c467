package core

import (
	"fmt"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"
	"tinygo.org/x/drivers"
)

var (
	_ i2c.Bus     = (*Engine)(nil)
	_ drivers.I2C = (*Engine)(nil)
)

func (e *Engine) String() string {
	return "i2cprobe(" + e.s.String() + ")"
}

// Tx performs one transaction with the 7-bit address addr: the write phase
// when w is non-empty (or r is empty, which probes the address), then a
// repeated start and the read phase when r is non-empty. The last byte read
// is NACKed. The bus is always stopped, also on error.
func (e *Engine) Tx(addr uint16, w, r []byte) error {
	if addr > 0x7F {
		return fmt.Errorf("%w: 10-bit address 0x%03X", ErrUnsupported, addr)
	}
	if err := e.Start(); err != nil {
		return err
	}
	if err := e.tx(byte(addr), w, r); err != nil {
		_ = e.Stop()
		return err
	}
	return e.Stop()
}

func (e *Engine) tx(addr byte, w, r []byte) error {
	if len(w) > 0 || len(r) == 0 {
		if err := e.writeAddr(addr << 1); err != nil {
			return err
		}
		for i, b := range w {
			ack, err := e.TxByte(b)
			if err != nil {
				return err
			}
			if ack == NACK {
				return fmt.Errorf("%w: byte %d of %d to 0x%02X", ErrNack, i+1, len(w), addr)
			}
		}
		if len(r) == 0 {
			return nil
		}
		if err := e.Start(); err != nil {
			return err
		}
	}
	if err := e.writeAddr(addr<<1 | 1); err != nil {
		return err
	}
	for i := range r {
		b, err := e.ReadByte()
		if err != nil {
			return err
		}
		r[i] = b
		if err := e.SendAck(i == len(r)-1); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) writeAddr(a byte) error {
	ack, err := e.TxByte(a)
	if err != nil {
		return err
	}
	if ack == NACK {
		return fmt.Errorf("%w: address 0x%02X", ErrNack, a>>1)
	}
	return nil
}

// SetSpeed selects the fastest tier of the active backend not above f.
func (e *Engine) SetSpeed(f physic.Frequency) error {
	tier, err := TierFor(e.active.Speeds(), f)
	if err != nil {
		return err
	}
	return e.SetTier(tier)
}
