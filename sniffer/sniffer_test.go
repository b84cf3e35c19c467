package sniffer

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/google/go-cmp/cmp"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"
)

var idle = Sample{SCL: gpio.High, SDA: gpio.High}

// waveform builds the line samples of a transaction, one per change.
type waveform struct {
	cur     Sample
	samples []Sample
}

func (w *waveform) set(scl, sda gpio.Level) {
	w.cur = Sample{SCL: scl, SDA: sda}
	w.samples = append(w.samples, w.cur)
}

func (w *waveform) start() {
	w.set(gpio.High, gpio.Low)
}

// restart raises SDA while SCL is low, then issues a start.
func (w *waveform) restart() {
	w.set(gpio.Low, w.cur.SDA)
	if !w.cur.SDA {
		w.set(gpio.Low, gpio.High)
	}
	w.set(gpio.High, gpio.High)
	w.start()
}

func (w *waveform) bit(l gpio.Level) {
	w.set(gpio.Low, w.cur.SDA)
	if w.cur.SDA != l {
		w.set(gpio.Low, l)
	}
	w.set(gpio.High, l)
}

func (w *waveform) sendByte(v byte, nack bool) {
	for i := 7; i >= 0; i-- {
		w.bit(gpio.Level(v&(1<<i) != 0))
	}
	w.bit(gpio.Level(nack))
}

func (w *waveform) stop() {
	w.set(gpio.Low, w.cur.SDA)
	if w.cur.SDA {
		w.set(gpio.Low, gpio.Low)
	}
	w.set(gpio.High, gpio.Low)
	w.set(gpio.High, gpio.High)
}

func newWaveform() *waveform {
	return &waveform{cur: idle}
}

func decodeAll(samples []Sample) []Event {
	d := NewDecoder(idle)
	var evs []Event
	for _, s := range samples {
		if ev, ok := d.Step(s); ok {
			evs = append(evs, ev)
		}
	}
	return evs
}

func TestDecodeByteWithNack(t *testing.T) {
	w := newWaveform()
	w.start()
	w.sendByte(0xAA, true)

	want := []Event{{Kind: Start}, {Kind: Data, Value: 0xAA, Nack: true}}
	if diff := cmp.Diff(want, decodeAll(w.samples)); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeTransaction(t *testing.T) {
	w := newWaveform()
	w.start()
	w.sendByte(0xA0, false)
	w.sendByte(0x00, false)
	w.restart()
	w.sendByte(0xA1, false)
	w.sendByte(0x5C, true)
	w.stop()

	want := []Event{
		{Kind: Start},
		{Kind: Data, Value: 0xA0},
		{Kind: Data, Value: 0x00},
		{Kind: Start},
		{Kind: Data, Value: 0xA1},
		{Kind: Data, Value: 0x5C, Nack: true},
		{Kind: Stop},
	}
	if diff := cmp.Diff(want, decodeAll(w.samples)); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeIgnoresDataBeforeStart(t *testing.T) {
	w := newWaveform()
	w.set(gpio.Low, gpio.High)
	w.sendByte(0xFF, false)
	if evs := decodeAll(w.samples); len(evs) != 0 {
		t.Errorf("expected no events while idle, got %v", evs)
	}
}

func TestAppendEvent(t *testing.T) {
	evs := []Event{{Kind: Start}, {Kind: Data, Value: 0xAA, Nack: true}, {Kind: Data, Value: 0x0F}, {Kind: Stop}}
	var text, bin []byte
	for _, ev := range evs {
		text = AppendEvent(text, ev, Text)
		bin = AppendEvent(bin, ev, Binary)
	}
	if string(text) != "[AA-0F+]" {
		t.Errorf("text framing %q", text)
	}
	if want := []byte{'[', '\\', 0xAA, '-', '\\', 0x0F, '+', ']'}; !bytes.Equal(bin, want) {
		t.Errorf("binary framing % X, want % X", bin, want)
	}

	p := NewParser(bufio.NewReader(bytes.NewReader(append(bin, 0x01))))
	var got []Event
	for {
		ev, err := p.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatal(err)
		}
		got = append(got, ev)
	}
	if diff := cmp.Diff(evs, got); diff != "" {
		t.Errorf("parsed events mismatch (-want +got):\n%s", diff)
	}
}

func TestParserTruncated(t *testing.T) {
	p := NewParser(bytes.NewReader([]byte{'\\', 0x10}))
	if _, err := p.Next(); !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("expected ErrUnexpectedEOF, got %v", err)
	}
}

// scripted replays samples as line changes.
type scripted struct {
	samples []Sample
	cur     Sample
}

func (s *scripted) Pending() bool {
	if len(s.samples) == 0 {
		return false
	}
	s.cur, s.samples = s.samples[0], s.samples[1:]
	return true
}

func (s *scripted) Sample() Sample { return s.cur }
func (s *scripted) Latch() Sample  { return s.cur }

// hostLink is a drivers.UART whose host sends a byte once the lines go quiet.
type hostLink struct {
	bytes.Buffer
	lines *scripted
	in    []byte
}

func (h *hostLink) Buffered() int {
	if len(h.lines.samples) == 0 {
		return len(h.in)
	}
	return 0
}

func (h *hostLink) Read(p []byte) (int, error) {
	n := copy(p, h.in)
	h.in = h.in[n:]
	return n, nil
}

func TestRunStopsOnHostByte(t *testing.T) {
	w := newWaveform()
	w.start()
	w.sendByte(0xAA, true)
	w.stop()

	for _, tt := range []struct {
		framing Framing
		want    string
	}{
		{Text, "[AA-]\r\n"},
		{Binary, "[\\\xAA-]"},
	} {
		lines := &scripted{samples: append([]Sample(nil), w.samples...), cur: idle}
		link := &hostLink{lines: lines, in: []byte{'x'}}
		s := &Sniffer{Lines: lines, Link: link, Framing: tt.framing}

		if err := s.Run(context.Background()); err != nil {
			t.Fatal(err)
		}
		if got := link.String(); got != tt.want {
			t.Errorf("framing %d: got %q, want %q", tt.framing, got, tt.want)
		}
		if len(link.in) != 0 {
			t.Error("the stopping byte should be consumed")
		}
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	lines := &scripted{cur: idle}
	link := &hostLink{lines: lines}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := &Sniffer{Lines: lines, Link: link, Framing: Binary}
	if err := s.Run(ctx); err != nil {
		t.Fatal(err)
	}
}

type owner struct{ calls []string }

func (o *owner) Release() error   { o.calls = append(o.calls, "release"); return nil }
func (o *owner) Configure() error { o.calls = append(o.calls, "configure"); return nil }

func TestSniffHandsBusBack(t *testing.T) {
	lines := &scripted{cur: idle}
	link := &hostLink{lines: lines, in: []byte{0}}
	o := &owner{}
	if err := Sniff(context.Background(), o, &Sniffer{Lines: lines, Link: link}); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"release", "configure"}, o.calls); diff != "" {
		t.Errorf("owner calls (-want +got):\n%s", diff)
	}
}

func TestPinMonitor(t *testing.T) {
	scl := &gpiotest.Pin{N: "SCL", L: gpio.High}
	sda := &gpiotest.Pin{N: "SDA", L: gpio.High}
	m, err := NewPinMonitor(scl, sda)
	if err != nil {
		t.Fatal(err)
	}
	if m.Pending() {
		t.Error("no change yet")
	}
	sda.Out(gpio.Low)
	if !m.Pending() {
		t.Fatal("SDA change not detected")
	}
	if got := m.Sample(); got != (Sample{SCL: gpio.High, SDA: gpio.Low}) {
		t.Errorf("unexpected sample %+v", got)
	}
	if m.Pending() {
		t.Error("change reported twice")
	}
}

// quietLink is a drivers.UART with the host byte already waiting.
type quietLink struct {
	bytes.Buffer
	in []byte
}

func (q *quietLink) Buffered() int { return len(q.in) }

func (q *quietLink) Read(p []byte) (int, error) {
	n := copy(p, q.in)
	q.in = q.in[n:]
	return n, nil
}

func TestRunLatchesCurrentLevels(t *testing.T) {
	scl := &gpiotest.Pin{N: "SCL", L: gpio.High}
	sda := &gpiotest.Pin{N: "SDA", L: gpio.Low}
	m, err := NewPinMonitor(scl, sda)
	if err != nil {
		t.Fatal(err)
	}

	// The bus goes idle between sessions; no stop is seen.
	sda.Out(gpio.High)

	link := &quietLink{in: []byte{'x'}}
	s := &Sniffer{Lines: m, Link: link, Framing: Text}
	if err := s.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got := link.String(); got != "\r\n" {
		t.Errorf("got %q, want only the line end", got)
	}
}
