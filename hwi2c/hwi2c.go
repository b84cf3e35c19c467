// Package hwi2c drives the I2C master through a controller's control and
// status registers. Every primitive sets one control bit (or loads the
// transmit register) and spins until the hardware clears it. There is no
// timeout: a wedged controller hangs the caller.
package hwi2c

import (
	"errors"
	"fmt"
	"time"

	"i2cprobe/core"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
)

// Revision carries the silicon errata workarounds of one controller revision.
type Revision struct {
	// MaskedControl writes control bits with a full-width read-modify-write
	// instead of single-bit access (errata item #26).
	MaskedControl bool

	// EnableSettle holds the data line low for SettleTime on either side of
	// enabling the controller, and uses full-width writes during setup
	// (errata item #10).
	EnableSettle bool
}

var (
	// RevisionLegacy is silicon before revision B4.
	RevisionLegacy = Revision{MaskedControl: true}
	// RevisionB4 is silicon revision B4 and later.
	RevisionB4 = Revision{EnableSettle: true}
	// RevisionClean needs no workaround.
	RevisionClean = Revision{}
)

// DefaultSettleTime is the hold time on each side of the enable.
const DefaultSettleTime = 200 * time.Microsecond

// Board describes the controllers wired to the bus.
type Board struct {
	Primary   *Controller
	Secondary *Controller // nil on single-controller boards

	Revision Revision

	// SettlePin is the data line driven low around the enable when
	// Revision.EnableSettle is set.
	SettlePin  gpio.PinOut
	SettleTime time.Duration
}

// Backend is the register implementation of core.Backend.
type Backend struct {
	board   Board
	session *core.Session
	sleep   func(time.Duration)
}

var _ core.Backend = (*Backend)(nil)

var errNoController = errors.New("hwi2c: board has no primary controller")

// New creates the backend. The session's Target picks the controller every
// primitive touches.
func New(board Board, s *core.Session) (*Backend, error) {
	if board.Primary == nil {
		return nil, errNoController
	}
	if board.Revision.EnableSettle && board.SettlePin == nil {
		return nil, fmt.Errorf("hwi2c: enable settle needs a data line pin")
	}
	if board.SettleTime == 0 {
		board.SettleTime = DefaultSettleTime
	}
	return &Backend{board: board, session: s, sleep: time.Sleep}, nil
}

func (b *Backend) ctrl() *Controller {
	if b.session.Target == core.Secondary && b.board.Secondary != nil {
		return b.board.Secondary
	}
	return b.board.Primary
}

// control sets mask in CON honouring the revision's access rule.
func (b *Backend) control(c *Controller, mask uint16) {
	if b.board.Revision.MaskedControl {
		c.CON.Set(c.CON.Get() | mask)
		return
	}
	c.CON.SetBits(mask)
}

func (b *Backend) Speeds() []physic.Frequency {
	return core.HardwareSpeeds
}

// Configure disables 10-bit addressing and SMBus thresholds, enables clock
// stretching, clears the address and mask, loads BRG for tier and enables
// the selected controller. Selecting the secondary controller disables the
// primary one.
func (b *Backend) Configure(tier core.SpeedTier) error {
	if int(tier) >= len(brgReload) {
		return fmt.Errorf("%w: hardware tier %d", core.ErrSpeedRange, tier)
	}
	c := b.ctrl()
	if c != b.board.Primary {
		disable(b.board.Primary)
	}

	const setupClear = conA10M | conSCLREL | conSMEN
	c.ADD.Set(0)
	c.MSK.Set(0)
	c.BRG.Set(brgReload[tier])

	if b.board.Revision.EnableSettle {
		c.CON.Set(c.CON.Get() &^ setupClear)
		if err := b.settle(); err != nil {
			return err
		}
		c.CON.Set(c.CON.Get() | conI2CEN)
		return nil
	}
	c.CON.ClearBits(setupClear)
	c.CON.SetBits(conI2CEN)
	return nil
}

func (b *Backend) settle() error {
	if err := b.board.SettlePin.Out(gpio.High); err != nil {
		return fmt.Errorf("hwi2c: settle %s: %w", b.board.SettlePin, err)
	}
	b.sleep(b.board.SettleTime)
	if err := b.board.SettlePin.Out(gpio.Low); err != nil {
		return fmt.Errorf("hwi2c: settle %s: %w", b.board.SettlePin, err)
	}
	b.sleep(b.board.SettleTime)
	return nil
}

// I2CEN is cleared with a full-width write, which is valid on every revision.
func disable(c *Controller) {
	if c == nil {
		return
	}
	c.CON.Set(c.CON.Get() &^ conI2CEN)
}

// Disable turns every controller off. Safe when never enabled.
func (b *Backend) Disable() error {
	disable(b.board.Primary)
	disable(b.board.Secondary)
	return nil
}

func (b *Backend) Start() error {
	c := b.ctrl()
	b.control(c, conSEN)
	waitClear(c.CON, conSEN)
	if c.STAT.HasBits(statBCL) {
		c.STAT.ClearBits(statBCL)
		return fmt.Errorf("%w: bus collision on start", core.ErrBusFault)
	}
	return nil
}

func (b *Backend) Stop() error {
	c := b.ctrl()
	b.control(c, conPEN)
	waitClear(c.CON, conPEN)
	return nil
}

func (b *Backend) TxByte(v byte) (core.Ack, error) {
	c := b.ctrl()
	c.TRN.Set(uint16(v))
	waitClear(c.STAT, statTRSTAT)
	if c.STAT.HasBits(statACKSTAT) {
		return core.NACK, nil
	}
	return core.ACK, nil
}

func (b *Backend) ReadByte() (byte, error) {
	c := b.ctrl()
	b.control(c, conRCEN)
	waitClear(c.CON, conRCEN)
	return byte(c.RCV.Get()), nil
}

// SendAck loads ACKDT and starts the acknowledge sequence.
func (b *Backend) SendAck(nack bool) error {
	c := b.ctrl()
	if b.board.Revision.MaskedControl {
		v := c.CON.Get()&^conACKDT | conACKEN
		if nack {
			v |= conACKDT
		}
		c.CON.Set(v)
	} else {
		if nack {
			c.CON.SetBits(conACKDT)
		} else {
			c.CON.ClearBits(conACKDT)
		}
		c.CON.SetBits(conACKEN)
	}
	waitClear(c.CON, conACKEN)
	return nil
}
