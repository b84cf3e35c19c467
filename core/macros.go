package core

import (
	"fmt"
	"io"

	"periph.io/x/conn/v3/gpio"
)

// Scan probes every address byte 0x00..0xFF and returns those acknowledged.
// Read addresses that answer get one byte read and NACKed so the device lets
// go of the bus.
func (e *Engine) Scan() ([]byte, error) {
	if c, ok := e.active.(BusChecker); ok {
		idle, err := c.BusIdle()
		if err != nil {
			return nil, err
		}
		if !idle {
			return nil, fmt.Errorf("%w: lines low before scan", ErrBusFault)
		}
	}

	var found []byte
	for i := 0; i <= 0xFF; i++ {
		a := byte(i)
		if err := e.Start(); err != nil {
			return found, err
		}
		ack, err := e.TxByte(a)
		if err != nil {
			return found, err
		}
		if ack == ACK {
			found = append(found, a)
			if a&1 == 1 {
				if _, err := e.ReadByte(); err != nil {
					return found, err
				}
				if err := e.SendAck(true); err != nil {
					return found, err
				}
			}
		}
		if err := e.Stop(); err != nil {
			return found, err
		}
	}
	return found, nil
}

// WriteScan renders scan results the way the console prints them:
// 0xA0(0x50 W) 0xA1(0x50 R)
func WriteScan(w io.Writer, found []byte) error {
	if _, err := fmt.Fprintf(w, "Found devices at:\r\n"); err != nil {
		return err
	}
	for _, a := range found {
		dir := "W"
		if a&1 == 1 {
			dir = "R"
		}
		if _, err := fmt.Fprintf(w, "0x%02X(0x%02X %s) ", a, a>>1, dir); err != nil {
			return err
		}
	}
	_, err := io.WriteString(w, "\r\n")
	return err
}

// Settings returns the settings line the console shows for this bus.
func (e *Engine) Settings() string {
	return fmt.Sprintf("I2C (mode speed)=( %d %d )", e.s.Mode, e.s.Speed)
}

// SelectEEPROM switches to the controller wired to the onboard EEPROM and
// drives its write-protect line low. wp may be nil on boards without one.
func (e *Engine) SelectEEPROM(wp gpio.PinOut) error {
	if err := e.SetTarget(Secondary); err != nil {
		return err
	}
	if wp == nil {
		return nil
	}
	return wp.Out(gpio.Low)
}
