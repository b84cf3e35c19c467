// Package sniffer passively decodes I2C bus activity into start, stop and
// data symbols and streams them to the host link.
package sniffer

import (
	"fmt"

	"periph.io/x/conn/v3/gpio"
)

// Kind is the type of a decoded bus event.
type Kind uint8

const (
	Start Kind = iota + 1
	Stop
	Data
)

// Event is one decoded bus symbol. Value and Nack are set for Data only;
// Nack is the data line level on the ninth clock.
type Event struct {
	Kind  Kind
	Value byte
	Nack  bool
}

func (e Event) String() string {
	switch e.Kind {
	case Start:
		return "["
	case Stop:
		return "]"
	case Data:
		if e.Nack {
			return fmt.Sprintf("0x%02X-", e.Value)
		}
		return fmt.Sprintf("0x%02X+", e.Value)
	}
	return "?"
}

// Sample is the level of both lines at one instant.
type Sample struct {
	SCL gpio.Level
	SDA gpio.Level
}

// Decoder turns successive line samples into events.
type Decoder struct {
	prev       Sample
	collecting bool
	bits       uint8
	value      byte
}

// NewDecoder starts idle with initial as the previous sample.
func NewDecoder(initial Sample) *Decoder {
	return &Decoder{prev: initial}
}

// Step consumes the sample taken after a line-change notification.
func (d *Decoder) Step(cur Sample) (Event, bool) {
	prev := d.prev
	d.prev = cur

	switch {
	case d.collecting && !bool(prev.SCL) && bool(cur.SCL):
		if d.bits < 8 {
			d.value <<= 1
			if cur.SDA {
				d.value |= 1
			}
			d.bits++
			return Event{}, false
		}
		ev := Event{Kind: Data, Value: d.value, Nack: bool(cur.SDA)}
		d.bits = 0
		d.value = 0
		return ev, true

	case bool(prev.SCL && cur.SCL && prev.SDA && !cur.SDA):
		d.collecting = true
		d.bits = 0
		d.value = 0
		return Event{Kind: Start}, true

	case bool(prev.SCL && cur.SCL && !prev.SDA && cur.SDA):
		d.collecting = false
		d.bits = 0
		d.value = 0
		return Event{Kind: Stop}, true
	}
	return Event{}, false
}
