package binmode

import (
	"encoding/binary"
	"errors"
	"fmt"

	"i2cprobe/core"
	"i2cprobe/protocol"
	"i2cprobe/sniffer"
)

// control handles family 0, where the whole byte is the opcode.
func (in *Interpreter) control(op byte) error {
	switch op {
	case protocol.OpIdentify:
		return in.write([]byte(protocol.ModeIdentifier))

	case protocol.OpStart:
		if err := in.eng.Start(); err != nil {
			return err
		}
		return in.ok()

	case protocol.OpStop:
		if err := in.eng.Stop(); err != nil {
			return err
		}
		return in.ok()

	case protocol.OpRead:
		b, err := in.eng.ReadByte()
		if err != nil {
			return err
		}
		return in.writeByte(b)

	case protocol.OpAck, protocol.OpNack:
		if err := in.eng.SendAck(op == protocol.OpNack); err != nil {
			return err
		}
		return in.ok()

	case protocol.OpWriteRead:
		return in.writeThenRead()

	case protocol.OpAux:
		return in.aux()

	case protocol.OpSniff:
		return in.sniff()
	}
	return fmt.Errorf("%w: 0x%02X", core.ErrUnknownOpcode, op)
}

// writeThenRead runs a whole transaction from one request:
// write count (u16 BE), read count (u16 BE), write bytes.
// An oversized request is refused before its payload is consumed.
func (in *Interpreter) writeThenRead() error {
	var hdr [4]byte
	if err := in.readFull(hdr[:]); err != nil {
		return err
	}
	wn := int(binary.BigEndian.Uint16(hdr[0:2]))
	rn := int(binary.BigEndian.Uint16(hdr[2:4]))
	if wn > protocol.TransferBufferSize || rn > protocol.TransferBufferSize {
		return fmt.Errorf("%w: write %d read %d", core.ErrRequestTooLarge, wn, rn)
	}
	if err := in.readFull(in.buf[:wn]); err != nil {
		return err
	}

	if err := in.eng.Start(); err != nil {
		return err
	}
	for i := 0; i < wn; i++ {
		ack, err := in.eng.TxByte(in.buf[i])
		if err != nil {
			return err
		}
		if ack == core.NACK {
			if err := in.eng.Stop(); err != nil {
				return err
			}
			return fmt.Errorf("%w: byte %d of %d", core.ErrNack, i+1, wn)
		}
	}
	for i := 0; i < rn; i++ {
		b, err := in.eng.ReadByte()
		if err != nil {
			return err
		}
		in.buf[i] = b
		if err := in.eng.SendAck(i == rn-1); err != nil {
			return err
		}
	}
	if err := in.eng.Stop(); err != nil {
		return err
	}
	if err := in.ok(); err != nil {
		return err
	}
	return in.write(in.buf[:rn])
}

// aux acknowledges the opcode, then executes one AUX sub-command and
// replies its result byte.
func (in *Interpreter) aux() error {
	if err := in.ok(); err != nil {
		return err
	}
	sub, err := in.readByte()
	if err != nil {
		return err
	}
	return in.writeByte(in.auxResult(sub))
}

func (in *Interpreter) auxResult(sub byte) byte {
	if in.periph == nil {
		return protocol.StatusFailure
	}
	var err error
	switch sub {
	case protocol.AuxLow:
		err = in.periph.SetAux(AuxDriveLow)
	case protocol.AuxHigh:
		err = in.periph.SetAux(AuxDriveHigh)
	case protocol.AuxHighZ:
		err = in.periph.SetAux(AuxHighZ)
	case protocol.AuxRead:
		l, err := in.periph.ReadAux()
		if err != nil {
			return protocol.StatusFailure
		}
		if l {
			return 1
		}
		return 0
	case protocol.AuxUseAux:
		in.periph.SelectAux(AuxPinAux)
	case protocol.AuxUseCS:
		in.periph.SelectAux(AuxPinCS)
	default:
		return protocol.StatusFailure
	}
	return core.Status(err)
}

func (in *Interpreter) sniff() error {
	if in.lines == nil {
		return fmt.Errorf("%w: no sniffer lines", core.ErrUnsupported)
	}
	s := &sniffer.Sniffer{Lines: in.lines, Link: in.link, Framing: sniffer.Binary}
	if err := sniffer.Sniff(in.ctx, in.eng, s); err != nil {
		var le *sniffer.LinkError
		if errors.As(err, &le) {
			return &linkError{le.Err}
		}
		return err
	}
	return in.ok()
}

// bulkWrite writes operand+1 bytes, replying the raw ACK bit of each.
func (in *Interpreter) bulkWrite(op byte) error {
	n := int(protocol.Operand(op)) + 1
	if err := in.ok(); err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		b, err := in.readByte()
		if err != nil {
			return err
		}
		ack, err := in.eng.TxByte(b)
		if err != nil {
			ack = core.NACK
		}
		if err := in.writeByte(byte(ack)); err != nil {
			return err
		}
	}
	return nil
}

func (in *Interpreter) peripherals(op byte) error {
	if in.periph == nil {
		return fmt.Errorf("%w: no peripheral control", core.ErrUnsupported)
	}
	if err := in.periph.Configure(protocol.Operand(op)); err != nil {
		return err
	}
	return in.ok()
}

func (in *Interpreter) pullups(op byte) error {
	pc, ok := in.periph.(PullupControl)
	if !ok {
		return fmt.Errorf("%w: no pull-up control", core.ErrUnsupported)
	}
	res, err := pc.Pullups(op)
	if err != nil {
		return err
	}
	return in.writeByte(res)
}

func (in *Interpreter) setSpeed(op byte) error {
	if err := in.eng.SetTier(core.SpeedTier(op & protocol.SpeedMask)); err != nil {
		return err
	}
	return in.ok()
}
