package sniffer

import (
	"fmt"

	"periph.io/x/conn/v3/gpio"
)

// EdgeSource is the change-notification view of the two bus lines.
type EdgeSource interface {
	// Pending reports whether either line changed since the last call, and
	// latches the new levels for Sample.
	Pending() bool
	// Sample returns the levels latched by the last Pending.
	Sample() Sample
	// Latch takes the current levels as the baseline, dropping any change
	// that happened before the call.
	Latch() Sample
}

// PinMonitor detects line changes by comparing level snapshots of the two
// lines. It never drives them.
type PinMonitor struct {
	SCL gpio.PinIn
	SDA gpio.PinIn

	last Sample
}

// NewPinMonitor switches both lines to floating inputs and takes the
// initial snapshot.
func NewPinMonitor(scl, sda gpio.PinIn) (*PinMonitor, error) {
	for _, p := range []gpio.PinIn{scl, sda} {
		if err := p.In(gpio.Float, gpio.NoEdge); err != nil {
			return nil, fmt.Errorf("sniffer: input %s: %w", p, err)
		}
	}
	m := &PinMonitor{SCL: scl, SDA: sda}
	m.last = m.read()
	return m, nil
}

func (m *PinMonitor) read() Sample {
	return Sample{SCL: m.SCL.Read(), SDA: m.SDA.Read()}
}

func (m *PinMonitor) Pending() bool {
	cur := m.read()
	if cur == m.last {
		return false
	}
	m.last = cur
	return true
}

func (m *PinMonitor) Sample() Sample {
	return m.last
}

func (m *PinMonitor) Latch() Sample {
	m.last = m.read()
	return m.last
}
