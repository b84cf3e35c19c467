package hwi2c

// Register16 is one 16-bit memory-mapped register. TinyGo's
// *volatile.Register16 satisfies it.
type Register16 interface {
	Get() uint16
	Set(value uint16)
	SetBits(value uint16)
	ClearBits(value uint16)
	HasBits(value uint16) bool
}

// Controller is the register block of one I2C controller instance.
type Controller struct {
	CON  Register16 // control
	STAT Register16 // status
	ADD  Register16 // own/general-call address
	MSK  Register16 // address mask
	BRG  Register16 // baud rate generator reload
	TRN  Register16 // transmit
	RCV  Register16 // receive
}

// CON bits
const (
	conSEN    uint16 = 1 << 0 // start
	conRSEN   uint16 = 1 << 1 // repeated start
	conPEN    uint16 = 1 << 2 // stop
	conRCEN   uint16 = 1 << 3 // receive enable
	conACKEN  uint16 = 1 << 4 // send ACKDT
	conACKDT  uint16 = 1 << 5 // 1 = NACK
	conSMEN   uint16 = 1 << 8 // SMBus input thresholds
	conA10M   uint16 = 1 << 10
	conSCLREL uint16 = 1 << 12
	conI2CEN  uint16 = 1 << 15
)

// STAT bits
const (
	statBCL     uint16 = 1 << 10 // bus collision
	statTRSTAT  uint16 = 1 << 14 // transmit in progress
	statACKSTAT uint16 = 1 << 15 // 1 = NACK received
)

// baud rate generator reloads for 100 kHz, 400 kHz and 1 MHz at Fcy 16 MHz
var brgReload = [...]uint16{157, 37, 13}

// waitClear spins until the hardware clears every bit of mask.
func waitClear(r Register16, mask uint16) {
	for r.HasBits(mask) {
	}
}
