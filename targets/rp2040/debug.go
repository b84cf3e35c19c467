//go:build rp2040 || rp2350

package main

import (
	"machine"

	"i2cprobe/core"
)

var (
	debugUART    *machine.UART
	debugEnabled bool
)

// InitDebugUART initializes UART1 on GPIO8 (TX) and GPIO9 (RX) for debugging
// Baud rate: 115200
func InitDebugUART() {
	debugUART = machine.UART1

	err := debugUART.Configure(machine.UARTConfig{
		BaudRate: 115200,
		TX:       machine.GPIO8, // UART1 TX
		RX:       machine.GPIO9, // UART1 RX
	})

	if err != nil {
		debugEnabled = false
		return
	}

	debugEnabled = true

	DebugPrintln("=== i2cprobe debug UART ===")
}

// DebugPrintln writes a string to the debug UART with newline
func DebugPrintln(s string) {
	if !debugEnabled || debugUART == nil {
		return
	}
	debugUART.Write([]byte(s))
	debugUART.Write([]byte("\r\n"))
}

// debugNotifier sends engine warnings to the debug UART; USB carries the
// binary protocol and must stay clean.
func debugNotifier() core.Notifier {
	if !debugEnabled {
		return core.Discard
	}
	return core.FuncNotifier(DebugPrintln)
}
