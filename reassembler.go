package socket

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

type phase int

const (
	awaitingHeader phase = iota
	awaitingBody
)

// Reassembler rebuilds frames from arbitrarily sized chunks of a byte stream.
//
// A chunk may hold less than a header, a header and part of a body, or several
// complete frames; state is carried across calls to Feed. A Reassembler has no
// lock: it must only be fed from one goroutine at a time, which a session
// guarantees by keeping a single read outstanding.
type Reassembler struct {
	limit int
	order binary.ByteOrder

	phase  phase
	header *Buffer
	body   *Buffer
	err    error
}

// NewReassembler returns a reassembler that rejects bodies longer than limit.
func NewReassembler(limit int, order binary.ByteOrder) *Reassembler {
	if order == nil {
		order = DefaultByteOrder
	}
	return &Reassembler{
		limit:  limit,
		order:  order,
		header: NewBuffer(HeaderSize),
	}
}

// Feed consumes chunk and calls emit once per completed body, in arrival order.
// The emitted slice is owned by the callee.
//
// A declared length above the limit returns an error wrapping ErrProtocolViolation;
// the rest of the chunk is discarded and every later call fails the same way.
// An error returned by emit stops processing and is returned as is.
func (r *Reassembler) Feed(chunk []byte, emit func(body []byte) error) error {
	if r.err != nil {
		return r.err
	}

	for {
		switch r.phase {
		case awaitingHeader:
			if len(chunk) == 0 {
				return nil
			}
			chunk = chunk[r.header.Fill(chunk):]
			if !r.header.Complete() {
				return nil
			}

			size := int(r.order.Uint16(r.header.Bytes()))
			if size > r.limit {
				r.err = errors.Wrapf(ErrProtocolViolation, "declared body length %d exceeds limit %d", size, r.limit)
				return r.err
			}
			r.body = NewBuffer(size)
			r.phase = awaitingBody

		case awaitingBody:
			chunk = chunk[r.body.Fill(chunk):]
			if !r.body.Complete() {
				return nil
			}

			body := r.body.Bytes()
			r.body = nil
			r.header.Reset()
			r.phase = awaitingHeader
			if err := emit(body); err != nil {
				return err
			}
		}
	}
}

// Buffered reports how many bytes of the current frame have been captured.
func (r *Reassembler) Buffered() int {
	if r.phase == awaitingBody {
		return HeaderSize + r.body.Len()
	}
	return r.header.Len()
}
