package protocol

import "io"

// FifoBuffer is a circular buffer for serial I/O
type FifoBuffer struct {
	buf   []byte
	read  int
	write int
	size  int
}

// NewFifoBuffer creates a new FifoBuffer with the specified capacity
func NewFifoBuffer(capacity int) *FifoBuffer {
	return &FifoBuffer{
		buf:  make([]byte, capacity),
		size: capacity,
	}
}

// Write appends data to the FIFO buffer and returns how much fitted.
func (f *FifoBuffer) Write(data []byte) int {
	written := 0
	for _, b := range data {
		nextWrite := (f.write + 1) % f.size
		if nextWrite == f.read {
			// Buffer full
			break
		}
		f.buf[f.write] = b
		f.write = nextWrite
		written++
	}
	return written
}

// Read reads up to len(data) bytes from the FIFO buffer
func (f *FifoBuffer) Read(data []byte) int {
	read := 0
	for i := range data {
		if f.read == f.write {
			break
		}
		data[i] = f.buf[f.read]
		f.read = (f.read + 1) % f.size
		read++
	}
	return read
}

// Available returns the number of bytes available for reading
func (f *FifoBuffer) Available() int {
	if f.write >= f.read {
		return f.write - f.read
	}
	return f.size - f.read + f.write
}

// Free returns the number of bytes available for writing
func (f *FifoBuffer) Free() int {
	return f.size - f.Available() - 1
}

// Pop removes n bytes from the front
func (f *FifoBuffer) Pop(n int) {
	for i := 0; i < n && f.read != f.write; i++ {
		f.read = (f.read + 1) % f.size
	}
}

// IsEmpty returns true if the buffer is empty
func (f *FifoBuffer) IsEmpty() bool {
	return f.read == f.write
}

// Reset clears the buffer
func (f *FifoBuffer) Reset() {
	f.read = 0
	f.write = 0
}

// OutputRing queues outgoing bytes so that time-critical loops never block on
// the host link. Queued data reaches the link only when Service or Flush runs.
type OutputRing struct {
	fifo    *FifoBuffer
	w       io.Writer
	chunk   []byte
	dropped int
}

// NewOutputRing creates a ring of the given capacity draining into w.
func NewOutputRing(w io.Writer, capacity int) *OutputRing {
	return &OutputRing{
		fifo:  NewFifoBuffer(capacity),
		w:     w,
		chunk: make([]byte, 64),
	}
}

// Queue appends data. Bytes that do not fit are counted as dropped.
func (o *OutputRing) Queue(data ...byte) {
	n := o.fifo.Write(data)
	o.dropped += len(data) - n
}

// Service writes at most one chunk of queued data to the link.
func (o *OutputRing) Service() error {
	if o.fifo.IsEmpty() {
		return nil
	}
	n := o.fifo.Read(o.chunk)
	_, err := o.w.Write(o.chunk[:n])
	return err
}

// Flush writes everything still queued.
func (o *OutputRing) Flush() error {
	for !o.fifo.IsEmpty() {
		if err := o.Service(); err != nil {
			return err
		}
	}
	return nil
}

// Pending returns the number of queued bytes.
func (o *OutputRing) Pending() int {
	return o.fifo.Available()
}

// Dropped returns how many bytes were discarded because the ring was full.
func (o *OutputRing) Dropped() int {
	return o.dropped
}
