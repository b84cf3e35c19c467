package main

import (
	"testing"

	"i2cprobe/binmode"
	"i2cprobe/config"
	"i2cprobe/protocol"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/gpio/gpiotest"
)

func TestPeripheralsByBoard(t *testing.T) {
	cfg := config.DefaultConfig("GPIO3", "GPIO2")
	p, err := peripherals(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := p.(binmode.PullupControl); ok {
		t.Error("v3 board should not offer pull-up control")
	}
}

func TestPeripheralsV4(t *testing.T) {
	v33 := &gpiotest.Pin{N: "TEST_VPU33", Num: 100}
	v5 := &gpiotest.Pin{N: "TEST_VPU5", Num: 101}
	aux := &gpiotest.Pin{N: "TEST_AUX", Num: 102}
	for _, p := range []gpio.PinIO{v33, v5, aux} {
		if err := gpioreg.Register(p); err != nil {
			t.Fatal(err)
		}
	}
	defer func() {
		for _, p := range []gpio.PinIO{v33, v5, aux} {
			gpioreg.Unregister(p.Name())
		}
	}()

	cfg := config.DefaultConfig("GPIO3", "GPIO2")
	cfg.Board = "v4"
	cfg.Revision = ""
	cfg.Pins.AUX = "TEST_AUX"
	cfg.Pins.Pullup3V3 = "TEST_VPU33"
	cfg.Pins.Pullup5V = "TEST_VPU5"
	p, err := peripherals(cfg)
	if err != nil {
		t.Fatal(err)
	}
	pc, ok := p.(binmode.PullupControl)
	if !ok {
		t.Fatal("v4 board should offer pull-up control")
	}
	if res, err := pc.Pullups(0x52); err != nil || res != protocol.StatusSuccess {
		t.Fatalf("Pullups = 0x%02X, %v", res, err)
	}
	if v5.L != gpio.High || v33.L != gpio.Low {
		t.Errorf("3V3=%s 5V=%s", v33.L, v5.L)
	}
	if err := p.SetAux(binmode.AuxDriveHigh); err != nil {
		t.Fatal(err)
	}
	if aux.L != gpio.High {
		t.Error("AUX not driven")
	}
}

func TestMissingPin(t *testing.T) {
	if _, err := pin("scl", ""); err == nil {
		t.Error("expected error for an empty name")
	}
	if _, err := pin("scl", "NO_SUCH_GPIO"); err == nil {
		t.Error("expected error for an unknown pin")
	}
	if p, err := optionalPin(""); p != nil || err != nil {
		t.Errorf("optionalPin(\"\") = %v, %v", p, err)
	}
}
