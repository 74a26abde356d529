package telemetry

import "bytes"

// LineFIFO is a circular byte buffer that accumulates raw serial reads and
// hands back complete newline-terminated lines. When a write would overflow
// the fixed capacity the oldest bytes are discarded, so an over-long line
// without a newline degrades into a decode miss instead of unbounded growth.
type LineFIFO struct {
	buf   []byte
	read  int
	write int
	size  int
}

// NewLineFIFO creates a LineFIFO with the specified capacity in bytes.
func NewLineFIFO(capacity int) *LineFIFO {
	if capacity < 2 {
		capacity = 2
	}
	return &LineFIFO{
		buf:  make([]byte, capacity),
		size: capacity,
	}
}

// Write appends data to the FIFO, evicting the oldest bytes on overflow.
func (f *LineFIFO) Write(data []byte) {
	for _, b := range data {
		nextWrite := (f.write + 1) % f.size
		if nextWrite == f.read {
			// Buffer full: drop the oldest byte
			f.read = (f.read + 1) % f.size
		}
		f.buf[f.write] = b
		f.write = nextWrite
	}
}

// Available returns the number of buffered bytes.
func (f *LineFIFO) Available() int {
	if f.write >= f.read {
		return f.write - f.read
	}
	return f.size - f.read + f.write
}

// IsEmpty returns true if no bytes are buffered.
func (f *LineFIFO) IsEmpty() bool {
	return f.read == f.write
}

// Reset clears the buffer.
func (f *LineFIFO) Reset() {
	f.read = 0
	f.write = 0
}

// data returns buffered bytes as a contiguous slice.
// The wrapped case copies both segments so line scanning stays simple.
func (f *LineFIFO) data() []byte {
	if f.read <= f.write {
		return f.buf[f.read:f.write]
	}
	avail := f.Available()
	result := make([]byte, avail)
	firstLen := f.size - f.read
	copy(result, f.buf[f.read:])
	copy(result[firstLen:], f.buf[:f.write])
	return result
}

// pop removes n bytes from the front.
func (f *LineFIFO) pop(n int) {
	for i := 0; i < n && f.read != f.write; i++ {
		f.read = (f.read + 1) % f.size
	}
}

// NextLine extracts the next complete line, without its terminator. The
// second return value is false when no full line is buffered yet. Trailing
// carriage returns are stripped so CRLF devices behave like LF devices.
func (f *LineFIFO) NextLine() ([]byte, bool) {
	data := f.data()
	idx := bytes.IndexByte(data, '\n')
	if idx < 0 {
		return nil, false
	}
	line := make([]byte, idx)
	copy(line, data[:idx])
	f.pop(idx + 1)
	line = bytes.TrimRight(line, "\r")
	return line, true
}
