// Package client drives a probe running the binary I2C protocol from the host.
package client

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"i2cprobe/core"
	"i2cprobe/host/serial"
	"i2cprobe/protocol"
	"i2cprobe/sniffer"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"
)

// ErrFailed is returned when the probe replies the failure status.
var ErrFailed = errors.New("client: probe replied failure")

var _ i2c.Bus = (*Client)(nil)

// Client represents a connection to a probe in binary I2C mode
type Client struct {
	link *protocol.Link
	name string

	// Timeout bounds the wait for each reply
	Timeout time.Duration
}

// New wraps an open byte stream to the probe.
func New(port io.ReadWriter) *Client {
	return &Client{
		link:    protocol.NewLink(port),
		name:    "probe",
		Timeout: 2 * time.Second,
	}
}

// Connect opens device with the default link settings and waits for the
// mode banner.
func Connect(device string, baud int) (*Client, error) {
	cfg := serial.DefaultConfig(device)
	if baud != 0 {
		cfg.Baud = baud
	}
	port, err := serial.Open(cfg)
	if err != nil {
		return nil, err
	}
	c := New(port)
	c.name = port.String()
	if err := c.WaitBanner(); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

// Close closes the connection
func (c *Client) Close() error {
	return c.link.Close()
}

func (c *Client) String() string {
	return c.name
}

func (c *Client) send(b ...byte) error {
	_, err := c.link.Write(b)
	return err
}

// readFull waits at most Timeout for len(p) bytes.
func (c *Client) readFull(p []byte) error {
	deadline := time.Now().Add(c.Timeout)
	for i := 0; i < len(p); {
		if c.link.Buffered() == 0 {
			if time.Now().After(deadline) {
				return fmt.Errorf("client: timeout after %s waiting for %d bytes", c.Timeout, len(p)-i)
			}
			time.Sleep(time.Millisecond)
			continue
		}
		n, err := c.link.Read(p[i:])
		if err != nil {
			return err
		}
		i += n
	}
	return nil
}

func (c *Client) readByte() (byte, error) {
	var b [1]byte
	err := c.readFull(b[:])
	return b[0], err
}

func (c *Client) status(what string) error {
	b, err := c.readByte()
	if err != nil {
		return err
	}
	if b != protocol.StatusSuccess {
		return fmt.Errorf("%w: %s", ErrFailed, what)
	}
	return nil
}

// WaitBanner consumes the identifier the probe sends when binary mode starts.
func (c *Client) WaitBanner() error {
	id := make([]byte, len(protocol.ModeIdentifier))
	if err := c.readFull(id); err != nil {
		return err
	}
	if string(id) != protocol.ModeIdentifier {
		return fmt.Errorf("client: unexpected banner %q", id)
	}
	return nil
}

// Identify returns the mode identifier.
func (c *Client) Identify() (string, error) {
	if err := c.send(protocol.OpIdentify); err != nil {
		return "", err
	}
	id := make([]byte, len(protocol.ModeIdentifier))
	if err := c.readFull(id); err != nil {
		return "", err
	}
	return string(id), nil
}

func (c *Client) Start() error {
	if err := c.send(protocol.OpStart); err != nil {
		return err
	}
	return c.status("start")
}

func (c *Client) Stop() error {
	if err := c.send(protocol.OpStop); err != nil {
		return err
	}
	return c.status("stop")
}

// ReadByte reads one byte and leaves its ACK pending.
func (c *Client) ReadByte() (byte, error) {
	if err := c.send(protocol.OpRead); err != nil {
		return 0, err
	}
	return c.readByte()
}

// Ack resolves the pending acknowledgment.
func (c *Client) Ack(nack bool) error {
	op := byte(protocol.OpAck)
	if nack {
		op = protocol.OpNack
	}
	if err := c.send(op); err != nil {
		return err
	}
	return c.status("ack")
}

// Write sends p in bulk chunks and returns each byte's acknowledgment.
func (c *Client) Write(p []byte) ([]core.Ack, error) {
	acks := make([]core.Ack, 0, len(p))
	for len(p) > 0 {
		n := len(p)
		if n > protocol.BulkMax {
			n = protocol.BulkMax
		}
		if err := c.send(protocol.BulkOpcode(n)); err != nil {
			return acks, err
		}
		if err := c.status("bulk write"); err != nil {
			return acks, err
		}
		for _, b := range p[:n] {
			if err := c.send(b); err != nil {
				return acks, err
			}
			a, err := c.readByte()
			if err != nil {
				return acks, err
			}
			acks = append(acks, core.Ack(a))
		}
		p = p[n:]
	}
	return acks, nil
}

// WriteThenRead runs start, write w, read n bytes, stop on the probe.
func (c *Client) WriteThenRead(w []byte, n int) ([]byte, error) {
	if len(w) > protocol.TransferBufferSize || n > protocol.TransferBufferSize {
		return nil, fmt.Errorf("client: %w: write %d read %d", core.ErrRequestTooLarge, len(w), n)
	}
	req := make([]byte, 5, 5+len(w))
	req[0] = protocol.OpWriteRead
	binary.BigEndian.PutUint16(req[1:3], uint16(len(w)))
	binary.BigEndian.PutUint16(req[3:5], uint16(n))
	req = append(req, w...)
	if err := c.send(req...); err != nil {
		return nil, err
	}
	if err := c.status("write then read"); err != nil {
		return nil, err
	}
	r := make([]byte, n)
	if err := c.readFull(r); err != nil {
		return nil, err
	}
	return r, nil
}

// SetTier selects a software speed tier on the probe.
func (c *Client) SetTier(t core.SpeedTier) error {
	if err := c.send(protocol.SpeedOpcode(uint8(t))); err != nil {
		return err
	}
	return c.status("set speed")
}

// SetSpeed selects the fastest software tier not above f.
func (c *Client) SetSpeed(f physic.Frequency) error {
	t, err := core.TierFor(core.SoftwareSpeeds, f)
	if err != nil {
		return err
	}
	return c.SetTier(t)
}

// Tx implements i2c.Bus. A combined write and read uses a repeated start;
// a single direction runs as one write-then-read request.
func (c *Client) Tx(addr uint16, w, r []byte) error {
	if addr > 0x7F {
		return fmt.Errorf("%w: 10-bit address 0x%03X", core.ErrUnsupported, addr)
	}
	aw, ar := byte(addr<<1), byte(addr<<1|1)
	if len(w) > 0 && len(r) > 0 {
		return c.txRestart(aw, ar, w, r)
	}
	var got []byte
	var err error
	if len(r) > 0 {
		got, err = c.WriteThenRead([]byte{ar}, len(r))
	} else {
		got, err = c.WriteThenRead(append([]byte{aw}, w...), 0)
	}
	if errors.Is(err, ErrFailed) {
		return fmt.Errorf("%w: 0x%02X: %v", core.ErrNack, addr, err)
	}
	copy(r, got)
	return err
}

func (c *Client) txRestart(aw, ar byte, w, r []byte) (err error) {
	if err := c.Start(); err != nil {
		return err
	}
	defer func() {
		if serr := c.Stop(); err == nil {
			err = serr
		}
	}()
	if err := c.expectAcks(append([]byte{aw}, w...)); err != nil {
		return err
	}
	if err := c.Start(); err != nil {
		return err
	}
	if err := c.expectAcks([]byte{ar}); err != nil {
		return err
	}
	for i := range r {
		b, err := c.ReadByte()
		if err != nil {
			return err
		}
		r[i] = b
		if err := c.Ack(i == len(r)-1); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) expectAcks(p []byte) error {
	acks, err := c.Write(p)
	if err != nil {
		return err
	}
	for i, a := range acks {
		if a == core.NACK {
			return fmt.Errorf("%w: byte %d (0x%02X)", core.ErrNack, i, p[i])
		}
	}
	return nil
}

// Scan probes every address byte and returns those acknowledged.
func (c *Client) Scan() ([]byte, error) {
	var found []byte
	for i := 0; i <= 0xFF; i++ {
		a := byte(i)
		if err := c.Start(); err != nil {
			return found, err
		}
		acks, err := c.Write([]byte{a})
		if err != nil {
			return found, err
		}
		if acks[0] == core.ACK {
			found = append(found, a)
			if a&1 == 1 {
				if _, err := c.ReadByte(); err != nil {
					return found, err
				}
				if err := c.Ack(true); err != nil {
					return found, err
				}
			}
		}
		if err := c.Stop(); err != nil {
			return found, err
		}
	}
	return found, nil
}

// Sniff streams bus events to fn until ctx is cancelled, then stops the
// sniffer and waits for the probe to return to command mode.
func (c *Client) Sniff(ctx context.Context, fn func(sniffer.Event)) error {
	if err := c.send(protocol.OpSniff); err != nil {
		return err
	}
	events := make(chan sniffer.Event, 64)
	done := make(chan error, 1)
	go func() {
		p := sniffer.NewParser(bufio.NewReader(c.link))
		for {
			ev, err := p.Next()
			if err == io.EOF {
				done <- nil
				return
			}
			if err != nil {
				done <- err
				return
			}
			events <- ev
		}
	}()

	stopped := false
	ctxDone := ctx.Done()
	for {
		select {
		case ev := <-events:
			fn(ev)
		case err := <-done:
			for len(events) > 0 {
				fn(<-events)
			}
			return err
		case <-ctxDone:
			if !stopped {
				stopped = true
				ctxDone = nil
				if err := c.send(0xFF); err != nil {
					return err
				}
			}
		}
	}
}

// Exit leaves binary I2C mode.
func (c *Client) Exit() error {
	return c.send(protocol.OpExit)
}
