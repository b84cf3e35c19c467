package serial

import (
	"io"
	"time"
)

// Port is the byte stream to the probe: a serial device, or a pipe in tests.
type Port interface {
	io.ReadWriteCloser

	// Flush discards input the probe sent before we started listening.
	Flush() error
}

// Config holds serial port configuration
type Config struct {
	// Device path (e.g., "/dev/ttyUSB0", "COM3")
	Device string

	// Baud rate; USB CDC links ignore it
	Baud int

	// ReadTimeout bounds a single read (0 = blocking)
	ReadTimeout time.Duration
}

// DefaultConfig returns the probe's default link settings.
func DefaultConfig(device string) *Config {
	return &Config{
		Device:      device,
		Baud:        115200,
		ReadTimeout: 100 * time.Millisecond,
	}
}
