// Package bitbang implements the I2C master on two general-purpose lines.
//
// Both lines are open drain: a line is released by switching it to input and
// letting the pull-up take it high, and driven by switching it to output low.
// No clock stretching is honoured.
package bitbang

import (
	"errors"
	"fmt"
	"time"

	"i2cprobe/core"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
)

// Bus is the bit-level master over SCL and SDA.
type Bus struct {
	SCL gpio.PinIO
	SDA gpio.PinIO

	// Calculated delay between clock transitions
	halfPeriod time.Duration

	delay func(time.Duration)
	err   error
}

// NewBus creates a bus on the given lines. Lines are untouched until Configure.
func NewBus(scl, sda gpio.PinIO) *Bus {
	return &Bus{
		SCL:        scl,
		SDA:        sda,
		halfPeriod: core.SoftwareSpeeds[0].Period() / 2,
		delay:      time.Sleep,
	}
}

// Configure sets the half-bit delay for tier and releases both lines.
func (b *Bus) Configure(tier core.SpeedTier) error {
	if int(tier) >= len(core.SoftwareSpeeds) {
		return fmt.Errorf("%w: software tier %d", core.ErrSpeedRange, tier)
	}
	b.halfPeriod = core.SoftwareSpeeds[tier].Period() / 2
	return b.Release()
}

// Release floats both lines.
func (b *Bus) Release() error {
	b.release(b.SDA)
	b.release(b.SCL)
	return b.result()
}

func (b *Bus) release(p gpio.PinIO) {
	if b.err != nil {
		return
	}
	if err := p.In(gpio.PullUp, gpio.NoEdge); err != nil {
		b.err = fmt.Errorf("release %s: %w", p, err)
	}
}

func (b *Bus) drive(p gpio.PinIO) {
	if b.err != nil {
		return
	}
	if err := p.Out(gpio.Low); err != nil {
		b.err = fmt.Errorf("drive %s: %w", p, err)
	}
}

func (b *Bus) set(p gpio.PinIO, l gpio.Level) {
	if l == gpio.High {
		b.release(p)
	} else {
		b.drive(p)
	}
}

func (b *Bus) wait() {
	b.delay(b.halfPeriod)
}

// result returns and clears the first pin error of the last primitive.
func (b *Bus) result() error {
	err := b.err
	b.err = nil
	return err
}

// Idle reports whether both lines read high while released.
func (b *Bus) Idle() (bool, error) {
	b.release(b.SDA)
	b.release(b.SCL)
	if err := b.result(); err != nil {
		return false, err
	}
	return b.SDA.Read() == gpio.High && b.SCL.Read() == gpio.High, nil
}

// StartCondition releases both lines, then pulls SDA low while SCL is high.
// It reports fault, leaving the bus as observed, when either line stays low.
// From the middle of a transfer (SCL low) this is a repeated start.
func (b *Bus) StartCondition() (fault bool, err error) {
	b.release(b.SDA)
	b.wait()
	b.release(b.SCL)
	b.wait()
	if err := b.result(); err != nil {
		return false, err
	}
	if b.SCL.Read() == gpio.Low || b.SDA.Read() == gpio.Low {
		return true, nil
	}
	b.drive(b.SDA)
	b.wait()
	b.drive(b.SCL)
	b.wait()
	return false, b.result()
}

// StopCondition releases SDA while SCL is high. The clock is pulled low
// first so that a stop on an idle bus never shows a start.
func (b *Bus) StopCondition() error {
	b.drive(b.SCL)
	b.wait()
	b.drive(b.SDA)
	b.wait()
	b.release(b.SCL)
	b.wait()
	b.release(b.SDA)
	b.wait()
	return b.result()
}

// WriteBit presents l on SDA and clocks it.
func (b *Bus) WriteBit(l gpio.Level) error {
	b.set(b.SDA, l)
	b.wait()
	b.release(b.SCL)
	b.wait()
	b.drive(b.SCL)
	return b.result()
}

// ReadBit releases SDA and samples it while SCL is high.
func (b *Bus) ReadBit() (gpio.Level, error) {
	b.release(b.SDA)
	b.wait()
	b.release(b.SCL)
	b.wait()
	if err := b.result(); err != nil {
		return gpio.Low, err
	}
	l := b.SDA.Read()
	b.drive(b.SCL)
	b.wait()
	return l, b.result()
}

// WriteValue clocks out v MSB first.
func (b *Bus) WriteValue(v byte) error {
	for bit := 7; bit >= 0; bit-- {
		if err := b.WriteBit(gpio.Level(v&(1<<bit) != 0)); err != nil {
			return err
		}
	}
	return nil
}

// ReadValue clocks in one byte MSB first.
func (b *Bus) ReadValue() (byte, error) {
	var v byte
	for i := 0; i < 8; i++ {
		l, err := b.ReadBit()
		if err != nil {
			return 0, err
		}
		v <<= 1
		if l == gpio.High {
			v |= 1
		}
	}
	return v, nil
}

// Backend adapts Bus to core.Backend.
type Backend struct {
	*Bus
}

var (
	_ core.Backend    = Backend{}
	_ core.BusChecker = Backend{}
)

// New creates the software backend on scl and sda.
func New(scl, sda gpio.PinIO) Backend {
	return Backend{NewBus(scl, sda)}
}

func (b Backend) Disable() error {
	return b.Release()
}

var errLineLow = errors.New("SDA or SCL held low")

func (b Backend) Start() error {
	fault, err := b.StartCondition()
	if err != nil {
		return err
	}
	if fault {
		return fmt.Errorf("%w: %v", core.ErrBusFault, errLineLow)
	}
	return nil
}

func (b Backend) Stop() error {
	return b.StopCondition()
}

func (b Backend) TxByte(v byte) (core.Ack, error) {
	if err := b.WriteValue(v); err != nil {
		return core.NACK, err
	}
	l, err := b.ReadBit()
	if err != nil {
		return core.NACK, err
	}
	if l == gpio.High {
		return core.NACK, nil
	}
	return core.ACK, nil
}

func (b Backend) ReadByte() (byte, error) {
	return b.ReadValue()
}

func (b Backend) SendAck(nack bool) error {
	return b.WriteBit(gpio.Level(nack))
}

func (b Backend) Speeds() []physic.Frequency {
	return core.SoftwareSpeeds
}

func (b Backend) BusIdle() (bool, error) {
	return b.Idle()
}
