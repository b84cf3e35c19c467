package protocol

import (
	"errors"
	"io"
	"os"
	"sync"
	"time"

	"tinygo.org/x/drivers"
)

var _ drivers.UART = (*Link)(nil)

// Link adapts a blocking byte stream (a serial port, a pipe) to drivers.UART.
// A background reader fills a ring buffer so Buffered can report pending input
// without blocking, which is what the sniffer's cancellation check needs.
type Link struct {
	port io.ReadWriter

	mu    sync.Mutex
	cond  *sync.Cond
	input *FifoBuffer
	err   error

	writeMutex sync.Mutex

	closeOnce sync.Once
	stopChan  chan struct{}
	doneChan  chan struct{}
}

// NewLink starts the background reader on port.
func NewLink(port io.ReadWriter) *Link {
	l := &Link{
		port:     port,
		input:    NewFifoBuffer(TransferBufferSize + BulkMax),
		stopChan: make(chan struct{}),
		doneChan: make(chan struct{}),
	}
	l.cond = sync.NewCond(&l.mu)
	go l.readLoop()
	return l
}

func (l *Link) readLoop() {
	defer close(l.doneChan)

	buffer := make([]byte, 256)

	for {
		select {
		case <-l.stopChan:
			l.fail(io.EOF)
			return
		default:
		}

		n, err := l.port.Read(buffer)
		if n > 0 {
			l.mu.Lock()
			// Block the reader rather than drop input when the consumer lags.
			for written := 0; written < n; {
				written += l.input.Write(buffer[written:n])
				if written < n {
					l.mu.Unlock()
					time.Sleep(time.Millisecond)
					l.mu.Lock()
				}
			}
			l.cond.Broadcast()
			l.mu.Unlock()
		}
		if err != nil {
			if errors.Is(err, io.ErrClosedPipe) || errors.Is(err, os.ErrClosed) {
				l.fail(err)
				return
			}
			// tarm/serial reports a read timeout as io.EOF
			time.Sleep(10 * time.Millisecond)
		}
	}
}

func (l *Link) fail(err error) {
	l.mu.Lock()
	if l.err == nil {
		l.err = err
	}
	l.cond.Broadcast()
	l.mu.Unlock()
}

// Read blocks until at least one byte is available or the link is closed.
func (l *Link) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	for l.input.IsEmpty() && l.err == nil {
		l.cond.Wait()
	}
	if l.input.IsEmpty() {
		return 0, l.err
	}
	return l.input.Read(p), nil
}

// Write sends p to the port.
func (l *Link) Write(p []byte) (int, error) {
	l.writeMutex.Lock()
	defer l.writeMutex.Unlock()
	return l.port.Write(p)
}

// Buffered returns the number of received bytes not yet read.
func (l *Link) Buffered() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.input.Available()
}

// Close stops the reader and closes the port when it is closable. Only the
// first call has an effect.
func (l *Link) Close() error {
	var err error
	l.closeOnce.Do(func() {
		close(l.stopChan)
		if c, ok := l.port.(io.Closer); ok {
			err = c.Close()
		}
		<-l.doneChan
	})
	return err
}
