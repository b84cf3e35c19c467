//go:build rp2040 || rp2350

package main

import (
	"context"
	"machine"
	"time"

	"i2cprobe/binmode"
	"i2cprobe/bitbang"
	"i2cprobe/core"
	"i2cprobe/sniffer"
)

// Bus lines; pico pins 6 and 7
const (
	pinSDA = machine.GPIO4
	pinSCL = machine.GPIO5
	pinAUX = machine.GPIO2
	pinCS  = machine.GPIO3
)

var (
	// Debug counters
	sessions  uint32
	runErrors uint32
)

func main() {
	// Disable watchdog on boot to clear any previous state
	err := machine.Watchdog.Configure(machine.WatchdogConfig{TimeoutMillis: 0})
	if err != nil {
		return
	}

	link := InitUSB()
	InitDebugUART()

	mode := GetMode()
	scl, sda := newPin(pinSCL, "GPIO5"), newPin(pinSDA, "GPIO4")

	// Snapshot the idle lines before the master takes them
	mon, err := sniffer.NewPinMonitor(scl, sda)
	if err != nil {
		return
	}

	s := core.NewSession(core.SoftwareBitBang, core.Primary, mode.Tier)
	eng, err := core.New(s, core.Backends{Software: bitbang.New(scl, sda)}, debugNotifier())
	if err != nil {
		return
	}
	if err := eng.Configure(); err != nil {
		return
	}

	periph := &binmode.PinPeripherals{Aux: newPin(pinAUX, "GPIO2"), CS: newPin(pinCS, "GPIO3")}
	in := binmode.New(eng, link, binmode.Options{Peripherals: periph, Lines: mon})
	ctx := context.Background()

	for {
		// Recover from panics so one bad session does not crash the firmware
		func() {
			defer func() {
				if r := recover(); r != nil {
					runErrors++
					DebugPrintln("recovered from panic, reconfiguring bus")
					if err := eng.Configure(); err != nil {
						runErrors++
						DebugPrintln("reconfigure failed: " + err.Error())
					}
				}
			}()

			if mode.Sniff {
				if err := sniffer.Sniff(ctx, eng, &sniffer.Sniffer{Lines: mon, Link: link, Framing: sniffer.Text}); err != nil {
					runErrors++
				}
				return
			}

			// Run returns when the host sends the exit opcode; the next
			// session announces the mode again.
			if err := in.Run(ctx); err != nil {
				runErrors++
			}
			sessions++
		}()

		// Yield to other goroutines
		time.Sleep(10 * time.Microsecond)
	}
}
