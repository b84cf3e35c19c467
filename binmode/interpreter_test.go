package binmode

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"testing"

	"i2cprobe/core"
	"i2cprobe/sniffer"

	"github.com/google/go-cmp/cmp"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
)

// scriptLink is a drivers.UART fed from a fixed host script.
type scriptLink struct {
	in  []byte
	out bytes.Buffer
}

func (l *scriptLink) Read(p []byte) (int, error) {
	if len(l.in) == 0 {
		return 0, io.EOF
	}
	n := copy(p, l.in)
	l.in = l.in[n:]
	return n, nil
}

func (l *scriptLink) Write(p []byte) (int, error) { return l.out.Write(p) }
func (l *scriptLink) Buffered() int               { return len(l.in) }

// busTrace is a backend recording the primitives issued.
type busTrace struct {
	trace    []string
	nackOn   map[byte]bool
	reads    []byte
	speeds   []physic.Frequency
	startErr error
}

func (b *busTrace) log(format string, args ...interface{}) {
	b.trace = append(b.trace, fmt.Sprintf(format, args...))
}

func (b *busTrace) Configure(t core.SpeedTier) error { b.log("configure %d", t); return nil }
func (b *busTrace) Disable() error                   { b.log("disable"); return nil }
func (b *busTrace) Stop() error                      { b.log("stop"); return nil }
func (b *busTrace) Speeds() []physic.Frequency       { return b.speeds }

func (b *busTrace) Start() error {
	if b.startErr != nil {
		return b.startErr
	}
	b.log("start")
	return nil
}

func (b *busTrace) TxByte(v byte) (core.Ack, error) {
	b.log("write %02X", v)
	if b.nackOn[v] {
		return core.NACK, nil
	}
	return core.ACK, nil
}

func (b *busTrace) ReadByte() (byte, error) {
	var v byte
	if len(b.reads) > 0 {
		v, b.reads = b.reads[0], b.reads[1:]
	}
	b.log("read %02X", v)
	return v, nil
}

func (b *busTrace) SendAck(nack bool) error {
	if nack {
		b.log("nack")
	} else {
		b.log("ack")
	}
	return nil
}

type fakePeripherals struct {
	configured []byte
	aux        []AuxState
	level      gpio.Level
	selected   AuxPin
}

func (p *fakePeripherals) Configure(bits byte) error {
	p.configured = append(p.configured, bits)
	return nil
}
func (p *fakePeripherals) SetAux(s AuxState) error      { p.aux = append(p.aux, s); return nil }
func (p *fakePeripherals) ReadAux() (gpio.Level, error) { return p.level, nil }
func (p *fakePeripherals) SelectAux(pin AuxPin)         { p.selected = pin }

type pullupBoard struct {
	fakePeripherals
}

func (p *pullupBoard) Pullups(op byte) (byte, error) { return 0x01, nil }

type quietLines struct{}

func (quietLines) Pending() bool { return false }
func (quietLines) Sample() sniffer.Sample {
	return sniffer.Sample{SCL: gpio.High, SDA: gpio.High}
}
func (q quietLines) Latch() sniffer.Sample { return q.Sample() }

const banner = "I2C1"

func run(t *testing.T, b *busTrace, opts Options, script ...byte) (*scriptLink, *core.Engine) {
	t.Helper()
	if b.speeds == nil {
		b.speeds = core.SoftwareSpeeds
	}
	e, err := core.New(core.NewSession(core.SoftwareBitBang, core.Primary, 1), core.Backends{Software: b}, nil)
	if err != nil {
		t.Fatal(err)
	}
	link := &scriptLink{in: script}
	if err := New(e, link, opts).Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	return link, e
}

func TestReplies(t *testing.T) {
	tests := []struct {
		name   string
		setup  func(b *busTrace)
		opts   Options
		script []byte
		reply  []byte
		trace  []string
	}{
		{
			name:   "identify",
			script: []byte{0x01, 0x00},
			reply:  []byte("I2C1"),
		},
		{
			name:   "start read ack read nack stop",
			setup:  func(b *busTrace) { b.reads = []byte{0x11, 0x22} },
			script: []byte{0x02, 0x04, 0x06, 0x04, 0x07, 0x03, 0x00},
			reply:  []byte{0x01, 0x11, 0x01, 0x22, 0x01, 0x01},
			trace:  []string{"start", "read 11", "ack", "read 22", "nack", "stop"},
		},
		{
			name:   "start on faulted bus",
			setup:  func(b *busTrace) { b.startErr = core.ErrBusFault },
			script: []byte{0x02, 0x00},
			reply:  []byte{0x00},
		},
		{
			name:   "ack with nothing pending",
			script: []byte{0x06, 0x00},
			reply:  []byte{0x00},
		},
		{
			name:   "write then read",
			setup:  func(b *busTrace) { b.reads = []byte{1, 2, 3} },
			script: []byte{0x08, 0x00, 0x02, 0x00, 0x03, 0xA0, 0x10, 0x00},
			reply:  []byte{0x01, 1, 2, 3},
			trace: []string{
				"start", "write A0", "write 10",
				"read 01", "ack", "read 02", "ack", "read 03", "nack",
				"stop",
			},
		},
		{
			name:   "write then read too large",
			script: []byte{0x08, 0x10, 0x01, 0x00, 0x00, 0x00},
			reply:  []byte{0x00},
		},
		{
			name:   "write then read read count too large",
			script: []byte{0x08, 0x00, 0x00, 0x10, 0x01, 0x00},
			reply:  []byte{0x00},
		},
		{
			name:   "write then read empty",
			script: []byte{0x08, 0x00, 0x00, 0x00, 0x00, 0x00},
			reply:  []byte{0x01},
			trace:  []string{"start", "stop"},
		},
		{
			name:   "write then read nack",
			setup:  func(b *busTrace) { b.nackOn = map[byte]bool{0xA0: true} },
			script: []byte{0x08, 0x00, 0x02, 0x00, 0x01, 0xA0, 0x10, 0x00},
			reply:  []byte{0x00},
			trace:  []string{"start", "write A0", "stop"},
		},
		{
			name:   "bulk write",
			setup:  func(b *busTrace) { b.nackOn = map[byte]bool{0x55: true} },
			script: []byte{0x11, 0xA0, 0x55, 0x00},
			reply:  []byte{0x01, 0x00, 0x01},
			trace:  []string{"write A0", "write 55"},
		},
		{
			name:   "bulk write one byte",
			script: []byte{0x10, 0xAA, 0x00},
			reply:  []byte{0x01, 0x00},
			trace:  []string{"write AA"},
		},
		{
			name:   "bulk write sixteen bytes",
			script: append(append([]byte{0x1F}, bytes.Repeat([]byte{0x55}, 16)...), 0x00),
			reply:  append([]byte{0x01}, make([]byte, 16)...),
			trace: []string{
				"write 55", "write 55", "write 55", "write 55",
				"write 55", "write 55", "write 55", "write 55",
				"write 55", "write 55", "write 55", "write 55",
				"write 55", "write 55", "write 55", "write 55",
			},
		},
		{
			name:   "set speed",
			script: []byte{0x63, 0x00},
			reply:  []byte{0x01},
			trace:  []string{"configure 3"},
		},
		{
			name:   "set speed out of range",
			setup:  func(b *busTrace) { b.speeds = core.HardwareSpeeds },
			script: []byte{0x63, 0x00},
			reply:  []byte{0x00},
		},
		{
			name:   "unknown opcodes keep the loop alive",
			script: []byte{0x05, 0x7F, 0xFF, 0x01, 0x00},
			reply:  []byte{0x00, 0x00, 0x00, 'I', '2', 'C', '1'},
		},
		{
			name:   "peripherals without collaborator",
			script: []byte{0x4C, 0x00},
			reply:  []byte{0x00},
		},
		{
			name:   "peripherals",
			opts:   Options{Peripherals: &fakePeripherals{}},
			script: []byte{0x4C, 0x00},
			reply:  []byte{0x01},
		},
		{
			name:   "pullups unsupported",
			opts:   Options{Peripherals: &fakePeripherals{}},
			script: []byte{0x51, 0x00},
			reply:  []byte{0x00},
		},
		{
			name:   "pullups",
			opts:   Options{Peripherals: &pullupBoard{}},
			script: []byte{0x51, 0x00},
			reply:  []byte{0x01},
		},
		{
			name:   "aux read and unknown sub-command",
			opts:   Options{Peripherals: &fakePeripherals{level: gpio.High}},
			script: []byte{0x09, 0x03, 0x09, 0x55, 0x00},
			reply:  []byte{0x01, 0x01, 0x01, 0x00},
		},
		{
			name:   "sniffer",
			opts:   Options{Lines: quietLines{}},
			script: []byte{0x0F, 0xFF, 0x00},
			reply:  []byte{0x01},
			trace:  []string{"disable", "configure 1"},
		},
		{
			name:   "sniffer without lines",
			script: []byte{0x0F, 0x00},
			reply:  []byte{0x00},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := &busTrace{}
			if tt.setup != nil {
				tt.setup(b)
			}
			link, _ := run(t, b, tt.opts, tt.script...)

			want := append([]byte(banner), tt.reply...)
			if diff := cmp.Diff(want, link.out.Bytes()); diff != "" {
				t.Errorf("reply mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tt.trace, b.trace); diff != "" {
				t.Errorf("trace mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestAuxCommands(t *testing.T) {
	p := &fakePeripherals{}
	run(t, &busTrace{}, Options{Peripherals: p}, 0x09, 0x00, 0x09, 0x01, 0x09, 0x02, 0x09, 0x20, 0x00)

	if diff := cmp.Diff([]AuxState{AuxDriveLow, AuxDriveHigh, AuxHighZ}, p.aux); diff != "" {
		t.Errorf("aux states (-want +got):\n%s", diff)
	}
	if p.selected != AuxPinCS {
		t.Errorf("expected CS selected, got %d", p.selected)
	}
}

func TestSpeedPersists(t *testing.T) {
	_, e := run(t, &busTrace{}, Options{}, 0x60, 0x00)
	if e.Session().Speed != 0 {
		t.Errorf("expected tier 0, got %d", e.Session().Speed)
	}
}

func TestLinkErrorEndsLoop(t *testing.T) {
	b := &busTrace{speeds: core.SoftwareSpeeds}
	e, err := core.New(core.NewSession(core.SoftwareBitBang, core.Primary, 0), core.Backends{Software: b}, nil)
	if err != nil {
		t.Fatal(err)
	}
	link := &scriptLink{in: []byte{0x08, 0x00}}
	err = New(e, link, Options{}).Run(context.Background())
	if !errors.Is(err, io.EOF) {
		t.Errorf("expected io.EOF, got %v", err)
	}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	var got byte
	r.Register(0x3, "test", func(op byte) error { got = op; return nil })

	if err := r.Dispatch(0x3A); err != nil {
		t.Fatal(err)
	}
	if got != 0x3A {
		t.Errorf("handler got 0x%02X", got)
	}
	if c, ok := r.Lookup(0x30); !ok || c.Name != "test" {
		t.Errorf("Lookup = %v, %v", c, ok)
	}
	if err := r.Dispatch(0x20); !errors.Is(err, core.ErrUnknownOpcode) {
		t.Errorf("expected ErrUnknownOpcode, got %v", err)
	}
}

// startLines reports one start condition, then stays quiet.
type startLines struct{ fired bool }

func (l *startLines) Pending() bool {
	if l.fired {
		return false
	}
	l.fired = true
	return true
}
func (l *startLines) Sample() sniffer.Sample {
	if l.fired {
		return sniffer.Sample{SCL: gpio.High, SDA: gpio.Low}
	}
	return l.Latch()
}
func (l *startLines) Latch() sniffer.Sample { return sniffer.Sample{SCL: gpio.High, SDA: gpio.High} }

var errHostGone = errors.New("host gone")

// brokenLink accepts the banner and fails every later write.
type brokenLink struct {
	scriptLink
	writes int
}

func (l *brokenLink) Write(p []byte) (int, error) {
	l.writes++
	if l.writes > 1 {
		return 0, errHostGone
	}
	return l.out.Write(p)
}

func TestSnifferLinkErrorEndsLoop(t *testing.T) {
	b := &busTrace{speeds: core.SoftwareSpeeds}
	e, err := core.New(core.NewSession(core.SoftwareBitBang, core.Primary, 1), core.Backends{Software: b}, nil)
	if err != nil {
		t.Fatal(err)
	}
	link := &brokenLink{scriptLink: scriptLink{in: []byte{0x0F, 0x02}}}
	err = New(e, link, Options{Lines: &startLines{}}).Run(context.Background())
	if !errors.Is(err, errHostGone) {
		t.Fatalf("expected errHostGone, got %v", err)
	}
	if link.writes != 2 {
		t.Errorf("expected no status write after the link failed, got %d writes", link.writes)
	}
	if diff := cmp.Diff([]string{"disable", "configure 1"}, b.trace); diff != "" {
		t.Errorf("trace mismatch (-want +got):\n%s", diff)
	}
}
