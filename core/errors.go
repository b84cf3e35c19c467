package core

import (
	"errors"

	"i2cprobe/protocol"
)

var (
	// ErrBusFault means a start condition could not be asserted because a
	// line read low while released: a short or missing pull-up resistors.
	ErrBusFault = errors.New("i2c: bus fault, short or no pull-up resistors")

	// ErrNack means a peer declined a byte inside a multi-byte transaction.
	ErrNack = errors.New("i2c: not acknowledged")

	ErrNoAckPending    = errors.New("i2c: no acknowledgment pending")
	ErrSpeedRange      = errors.New("i2c: speed tier out of range")
	ErrRequestTooLarge = errors.New("i2c: request exceeds transfer buffer")
	ErrUnknownOpcode   = errors.New("i2c: unknown opcode")
	ErrUnsupported     = errors.New("i2c: unsupported")
)

// Status maps the result of an operation to the binary protocol reply byte.
func Status(err error) byte {
	if err == nil {
		return protocol.StatusSuccess
	}
	return protocol.StatusFailure
}
