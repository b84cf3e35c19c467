// Package protocol holds the wire constants of the binary I2C command protocol
// and the buffered host-link plumbing shared by the firmware side and the host side.
package protocol

// Version represents the i2cprobe firmware version
const Version = "0.1.0"

// ModeIdentifier is the reply to OpIdentify and the banner sent when binary mode starts.
const ModeIdentifier = "I2C1"

// Reply status bytes
const (
	StatusFailure = 0x00
	StatusSuccess = 0x01
)

// Family 0 opcodes (full byte)
const (
	OpExit      = 0x00
	OpIdentify  = 0x01
	OpStart     = 0x02
	OpStop      = 0x03
	OpRead      = 0x04
	OpAck       = 0x06
	OpNack      = 0x07
	OpWriteRead = 0x08
	OpAux       = 0x09
	OpSniff     = 0x0F
)

// Opcode families (top nibble)
const (
	FamilyControl     = 0x0
	FamilyBulk        = 0x1
	FamilyPeripherals = 0x4
	FamilyPullups     = 0x5
	FamilySpeed       = 0x6
)

// AUX sub-commands of OpAux
const (
	AuxLow    = 0x00
	AuxHigh   = 0x01
	AuxHighZ  = 0x02
	AuxRead   = 0x03
	AuxUseAux = 0x10
	AuxUseCS  = 0x20
)

const (
	// TransferBufferSize bounds both counts of a write-then-read request.
	TransferBufferSize = 4096

	// BulkMax is the largest byte count of one bulk transfer opcode.
	BulkMax = 16

	// SpeedMask extracts the tier from a set-speed opcode.
	SpeedMask = 0x03
)

// Family returns the command family encoded in the top nibble of op.
func Family(op byte) byte {
	return op >> 4
}

// Operand returns the bottom nibble of op.
func Operand(op byte) byte {
	return op & 0x0F
}

// BulkOpcode encodes a bulk transfer of n bytes (1..16).
func BulkOpcode(n int) byte {
	return FamilyBulk<<4 | byte(n-1)&0x0F
}

// SpeedOpcode encodes a set-speed request for tier.
func SpeedOpcode(tier uint8) byte {
	return FamilySpeed<<4 | tier&SpeedMask
}
