package sniffer

import (
	"errors"
	"io"

	"i2cprobe/protocol"
)

// Framing selects how events are rendered on the host link.
type Framing uint8

const (
	// Text is for terminals: [ ] and hex digits.
	Text Framing = iota
	// Binary escapes each data byte with a backslash and sends it raw.
	Binary
)

// Escape precedes a raw data byte in Binary framing.
const Escape = '\\'

const hexDigits = "0123456789ABCDEF"

// AppendEvent renders ev onto dst.
func AppendEvent(dst []byte, ev Event, f Framing) []byte {
	switch ev.Kind {
	case Start:
		return append(dst, '[')
	case Stop:
		return append(dst, ']')
	case Data:
		if f == Binary {
			dst = append(dst, Escape, ev.Value)
		} else {
			dst = append(dst, hexDigits[ev.Value>>4], hexDigits[ev.Value&0x0F])
		}
		if ev.Nack {
			return append(dst, '-')
		}
		return append(dst, '+')
	}
	return dst
}

var errFraming = errors.New("sniffer: malformed binary frame")

// Parser decodes a Binary framed stream back into events.
type Parser struct {
	r io.ByteReader
}

// NewParser reads frames from r.
func NewParser(r io.ByteReader) *Parser {
	return &Parser{r: r}
}

// Next returns the next event. It returns io.EOF at the end of stream or at
// the status byte that closes a sniffer session.
func (p *Parser) Next() (Event, error) {
	c, err := p.r.ReadByte()
	if err != nil {
		return Event{}, err
	}
	switch c {
	case protocol.StatusSuccess:
		return Event{}, io.EOF
	case '[':
		return Event{Kind: Start}, nil
	case ']':
		return Event{Kind: Stop}, nil
	case Escape:
		v, err := p.r.ReadByte()
		if err != nil {
			return Event{}, unexpected(err)
		}
		a, err := p.r.ReadByte()
		if err != nil {
			return Event{}, unexpected(err)
		}
		if a != '+' && a != '-' {
			return Event{}, errFraming
		}
		return Event{Kind: Data, Value: v, Nack: a == '-'}, nil
	}
	return Event{}, errFraming
}

func unexpected(err error) error {
	if err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}
