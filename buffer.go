package socket

import "github.com/pkg/errors"

// ErrBufferOverflow is returned when an operation would move past a buffer's capacity.
var ErrBufferOverflow = errors.New("buffer overflow")

// Buffer is a fixed-capacity byte buffer that tracks how much of it has been filled.
// It holds exactly one header, one body, or one wire-ready frame. For outbound
// frames the filled count doubles as the number of bytes already transmitted.
type Buffer struct {
	data   []byte
	filled int
}

// NewBuffer allocates a buffer of exactly capacity bytes.
func NewBuffer(capacity int) *Buffer {
	if capacity < 0 {
		capacity = 0
	}
	return &Buffer{data: make([]byte, capacity)}
}

// Cap returns the declared capacity.
func (b *Buffer) Cap() int {
	return len(b.data)
}

// Len returns the number of bytes filled so far.
func (b *Buffer) Len() int {
	return b.filled
}

// Remaining returns the number of bytes still missing.
func (b *Buffer) Remaining() int {
	return len(b.data) - b.filled
}

// Complete reports whether the buffer is completely filled.
func (b *Buffer) Complete() bool {
	return b.filled == len(b.data)
}

// Bytes returns the whole underlying storage.
func (b *Buffer) Bytes() []byte {
	return b.data
}

// Unfilled returns the tail of the storage that has not been filled yet.
func (b *Buffer) Unfilled() []byte {
	return b.data[b.filled:]
}

// WriteAt copies p into the buffer at off. It implements io.WriterAt for sequential
// writers: off must equal Len, so the filled count stays the number of bytes written.
func (b *Buffer) WriteAt(p []byte, off int64) (int, error) {
	if off != int64(b.filled) {
		return 0, errors.Wrapf(ErrBufferOverflow, "write at offset %d, filled %d", off, b.filled)
	}
	if len(p) > b.Remaining() {
		return 0, errors.Wrapf(ErrBufferOverflow, "write of %d bytes with %d remaining", len(p), b.Remaining())
	}
	return b.Fill(p), nil
}

// Fill appends as much of p as fits at the fill position and returns the number of
// bytes consumed.
func (b *Buffer) Fill(p []byte) int {
	n := copy(b.data[b.filled:], p)
	b.filled += n
	return n
}

// Advance marks n more bytes as filled without copying.
func (b *Buffer) Advance(n int) error {
	if n < 0 || n > b.Remaining() {
		return errors.Wrapf(ErrBufferOverflow, "advance by %d with %d remaining", n, b.Remaining())
	}
	b.filled += n
	return nil
}

// Reset empties the buffer while keeping its storage.
func (b *Buffer) Reset() {
	b.filled = 0
}
