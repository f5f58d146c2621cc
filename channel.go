package socket

import (
	"net"
	"time"
)

// Channel is a connected byte stream with asynchronous partial reads and writes.
//
// ReadSome and WriteSome start one operation and return immediately; done is
// called exactly once when the operation completes, possibly with fewer bytes
// than requested. A session never has two reads, or two writes, outstanding on
// the same channel. Close aborts outstanding operations, which then complete
// with an error.
type Channel interface {
	ReadSome(p []byte, done func(n int, err error))
	WriteSome(p []byte, done func(n int, err error))
	Close() error
}

// ChannelError reports a failed read or write on a session's channel.
type ChannelError struct {
	Op  string
	Err error
}

func (e *ChannelError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *ChannelError) Unwrap() error {
	return e.Err
}

// netChannel runs each operation of a net.Conn on its own goroutine and reports
// completion through the callback.
type netChannel struct {
	conn        net.Conn
	idleTimeout time.Duration
}

// NewNetChannel adapts conn to a Channel. A positive idleTimeout bounds how long a
// read or write may wait before failing with a timeout.
func NewNetChannel(conn net.Conn, idleTimeout time.Duration) Channel {
	return &netChannel{conn: conn, idleTimeout: idleTimeout}
}

func (c *netChannel) ReadSome(p []byte, done func(int, error)) {
	go func() {
		if c.idleTimeout > 0 {
			_ = c.conn.SetReadDeadline(time.Now().Add(c.idleTimeout))
		}
		done(c.conn.Read(p))
	}()
}

func (c *netChannel) WriteSome(p []byte, done func(int, error)) {
	go func() {
		if c.idleTimeout > 0 {
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.idleTimeout))
		}
		done(c.conn.Write(p))
	}()
}

func (c *netChannel) Close() error {
	return c.conn.Close()
}

// RemoteAddr returns the peer address of the underlying connection.
func (c *netChannel) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}
