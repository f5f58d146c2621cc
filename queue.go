package socket

import (
	"encoding/binary"
	"io"
	"sync"
)

// transmitFunc starts one asynchronous write of p and reports the result through done.
type transmitFunc func(p []byte, done func(n int, err error))

// outboundQueue serializes sends into a single active transmission.
//
// Only the front entry is ever handed to transmit. The mutex covers the
// append/inspect/decide steps and is released before a transmit is started.
type outboundQueue struct {
	limit int
	order binary.ByteOrder

	transmit transmitFunc
	onFail   func(error)
	onSent   func(size int)

	mu      sync.Mutex
	entries []*Buffer
	closed  bool
}

func newOutboundQueue(limit int, order binary.ByteOrder, transmit transmitFunc, onFail func(error), onSent func(int)) *outboundQueue {
	return &outboundQueue{
		limit:    limit,
		order:    order,
		transmit: transmit,
		onFail:   onFail,
		onSent:   onSent,
	}
}

// enqueue appends body to the tail and starts transmitting it when nothing else is in flight.
func (q *outboundQueue) enqueue(body []byte) error {
	frame, err := newOutboundFrame(body, q.limit, q.order)
	if err != nil {
		return err
	}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrSessionClosed
	}
	idle := len(q.entries) == 0
	q.entries = append(q.entries, frame)
	q.mu.Unlock()

	if idle {
		q.transmit(frame.Unfilled(), q.written)
	}
	return nil
}

// written handles completion of the transmit of the front entry.
func (q *outboundQueue) written(n int, err error) {
	if err != nil {
		q.onFail(&ChannelError{Op: "write", Err: err})
		return
	}

	q.mu.Lock()
	if q.closed || len(q.entries) == 0 {
		q.mu.Unlock()
		return
	}

	front := q.entries[0]
	if n == 0 {
		q.mu.Unlock()
		q.onFail(&ChannelError{Op: "write", Err: io.ErrNoProgress})
		return
	}
	if err := front.Advance(n); err != nil {
		q.mu.Unlock()
		q.onFail(&ChannelError{Op: "write", Err: err})
		return
	}

	var next *Buffer
	sent := front.Complete()
	if !sent {
		next = front
	} else {
		q.entries[0] = nil
		q.entries = q.entries[1:]
		if len(q.entries) > 0 {
			next = q.entries[0]
		}
	}
	q.mu.Unlock()

	if sent {
		q.onSent(front.Cap() - HeaderSize)
	}
	if next != nil {
		q.transmit(next.Unfilled(), q.written)
	}
}

// close drops every pending entry. Later enqueues fail with ErrSessionClosed.
func (q *outboundQueue) close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.closed = true
	for i := range q.entries {
		q.entries[i] = nil
	}
	q.entries = nil
}

// pending returns the number of queued entries, including the one in flight.
func (q *outboundQueue) pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}
