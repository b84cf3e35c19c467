//go:build rp2040 || rp2350

package main

import (
	"machine"

	"tinygo.org/x/drivers"
)

// usbLink is the host link over USB CDC. machine.Serial has no Read, so
// Read drains whatever is buffered and returns zero bytes when idle.
type usbLink struct {
	s machine.Serialer
}

var _ drivers.UART = usbLink{}

// InitUSB initializes USB serial communication
// TinyGo sets up USB CDC-ACM on RP2040 and RP2350
func InitUSB() usbLink {
	// machine.Serial is USB CDC, not a UART; the config is ignored
	machine.Serial.Configure(machine.UARTConfig{})
	return usbLink{s: machine.Serial}
}

func (u usbLink) Read(p []byte) (int, error) {
	n := 0
	for n < len(p) && u.s.Buffered() > 0 {
		b, err := u.s.ReadByte()
		if err != nil {
			return n, err
		}
		p[n] = b
		n++
	}
	return n, nil
}

func (u usbLink) Write(p []byte) (int, error) {
	return u.s.Write(p)
}

func (u usbLink) Buffered() int {
	return u.s.Buffered()
}
