// Package socket provides full-duplex sessions over stream connections using a
// 2-byte length-prefixed framing. Inbound bytes are reassembled into messages
// regardless of how the stream is chunked, and concurrent sends are queued so that
// at most one write is ever outstanding on the connection.
package socket

import (
	"context"
	"net"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Errors returned by session operations.
var (
	// ErrInvalidOnMessage is returned when no message handler is provided.
	ErrInvalidOnMessage = errors.New("invalid on message callback")
	// ErrInvalidChannel is returned when a session is created without a channel.
	ErrInvalidChannel = errors.New("invalid channel")
	// ErrInvalidMaxSize is returned when the body size limit cannot be represented by the header.
	ErrInvalidMaxSize = errors.New("invalid max message size")
)

// ErrSessionClosed is returned when operating on a closed session.
var ErrSessionClosed = errors.New("session closed")

// Default configuration values.
const (
	// defaultReadBufferSize is the chunk size handed to each read.
	defaultReadBufferSize = 2048
)

// Session binds one channel to a reassembler and an outbound queue.
//
// Reads are re-armed one at a time, so decoding never runs concurrently with itself.
// Send may be called from any goroutine. The session is torn down on the first
// channel error, protocol violation, handler failure or explicit Close, and it is
// only reported done once every outstanding read and write has completed.
type Session struct {
	id      string
	channel Channel
	logger  Logger
	metrics Metrics
	opts    options

	reassembler *Reassembler
	queue       *outboundQueue
	readBuf     []byte

	startOnce sync.Once
	closed    atomic.Bool

	mu      sync.Mutex
	pending int  // outstanding channel operations
	torn    bool // teardown bookkeeping finished
	err     error
	closing chan struct{}
	done    chan struct{}
}

// NewSession creates a session over ch. The session does not read until Start or Run.
func NewSession(ch Channel, opt ...Option) (*Session, error) {
	opts, err := buildOptions(opt)
	if err != nil {
		return nil, err
	}
	return newSession(ch, opts)
}

// NewConn creates a session over a connected net.Conn.
// Returns an error if required options (onMessage) are missing.
func NewConn(conn net.Conn, opt ...Option) (*Session, error) {
	opts, err := buildOptions(opt)
	if err != nil {
		return nil, err
	}
	if conn == nil {
		return nil, ErrInvalidChannel
	}
	return newSession(NewNetChannel(conn, opts.idleTimeout), opts)
}

func buildOptions(opt []Option) (options, error) {
	var opts options
	for _, o := range opt {
		o(&opts)
	}
	return opts, checkOptions(&opts)
}

// checkOptions validates and sets default values for session options.
func checkOptions(opts *options) error {
	if opts.maxBodySize == 0 {
		opts.maxBodySize = DefaultMaxBodySize
	}

	if opts.maxBodySize < 0 || opts.maxBodySize > MaxBodySizeLimit {
		return ErrInvalidMaxSize
	}

	if opts.readBufferSize <= 0 {
		opts.readBufferSize = defaultReadBufferSize
	}

	if opts.byteOrder == nil {
		opts.byteOrder = DefaultByteOrder
	}

	if opts.onMessage == nil {
		return ErrInvalidOnMessage
	}

	if opts.onError == nil {
		opts.onError = func(err error) ErrorAction { return Disconnect }
	}

	if opts.logger == nil {
		opts.logger = defaultLogger()
	}

	if opts.metrics == nil {
		opts.metrics = nopMetrics{}
	}

	return nil
}

func newSession(ch Channel, opts options) (*Session, error) {
	if ch == nil {
		return nil, ErrInvalidChannel
	}

	id, err := uuid.NewRandom()
	if err != nil {
		return nil, errors.Wrap(err, "generate session id")
	}

	s := &Session{
		id:          id.String(),
		channel:     ch,
		logger:      opts.logger,
		metrics:     opts.metrics,
		opts:        opts,
		reassembler: NewReassembler(opts.maxBodySize, opts.byteOrder),
		readBuf:     make([]byte, opts.readBufferSize),
		closing:     make(chan struct{}),
		done:        make(chan struct{}),
	}
	s.queue = newOutboundQueue(opts.maxBodySize, opts.byteOrder, s.write, s.fail, s.metrics.FrameSent)

	if opts.registry != nil {
		opts.registry.Add(s)
	}
	s.metrics.SessionOpened()

	return s, nil
}

// ID returns the session identity. It is unique for the life of the process.
func (s *Session) ID() string {
	return s.id
}

// Addr returns the remote address, or nil if the channel does not expose one.
func (s *Session) Addr() net.Addr {
	if a, ok := s.channel.(interface{ RemoteAddr() net.Addr }); ok {
		return a.RemoteAddr()
	}
	return nil
}

// Start arms the first read. Calling it again has no effect.
func (s *Session) Start() {
	s.startOnce.Do(func() {
		s.logger.Info("session established", "id", s.id, "addr", s.Addr())
		s.logger.Debug("session options", "id", s.id,
			"max_body_size", s.opts.maxBodySize,
			"read_buffer_size", s.opts.readBufferSize,
			"idle_timeout", s.opts.idleTimeout)
		s.armRead()
	})
}

// Run starts the session and blocks until it is torn down and every outstanding
// operation has completed. Canceling ctx closes the session.
// Returns nil after an explicit Close, otherwise the teardown cause.
func (s *Session) Run(ctx context.Context) error {
	s.Start()

	select {
	case <-ctx.Done():
		s.closeWith(ctx.Err())
	case <-s.closing:
	}
	<-s.done

	err := s.Err()
	if errors.Is(err, ErrSessionClosed) {
		return nil
	}
	return err
}

// Send queues body for transmission. Messages are written in the order Send is called.
// The body is copied, so the caller may reuse it.
//
// Returns:
//   - nil: the message was queued (not yet written)
//   - ErrMessageTooLarge: the body exceeds the size limit; the session stays open
//   - ErrSessionClosed: the session is closed
func (s *Session) Send(body []byte) error {
	if s.closed.Load() {
		return ErrSessionClosed
	}

	err := s.queue.enqueue(body)
	if errors.Is(err, ErrMessageTooLarge) {
		s.metrics.SendRejected()
	}
	return err
}

// Write queues the body of message for transmission. See Send.
func (s *Session) Write(message Message) error {
	return s.Send(message.Body())
}

// Close tears the session down. Safe to call multiple times.
func (s *Session) Close() error {
	s.closeWith(ErrSessionClosed)
	return nil
}

// IsClosed returns true if the session has been closed.
func (s *Session) IsClosed() bool {
	return s.closed.Load()
}

// Done returns a channel that is closed once the session is torn down and no
// operation is outstanding.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Err returns the teardown cause, or nil while the session is open.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Echo is a message handler that sends every message back unchanged.
func Echo(s *Session, m Message) error {
	return s.Write(m)
}

// begin records an outstanding operation. It fails once the session is closed.
func (s *Session) begin() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed.Load() {
		return false
	}
	s.pending++
	return true
}

// end records the completion of an operation.
func (s *Session) end() {
	s.mu.Lock()
	s.pending--
	finished := s.torn && s.pending == 0
	s.mu.Unlock()

	if finished {
		close(s.done)
	}
}

func (s *Session) armRead() {
	if !s.begin() {
		return
	}
	s.channel.ReadSome(s.readBuf, s.onRead)
}

func (s *Session) onRead(n int, err error) {
	defer s.end()

	if n > 0 {
		if ferr := s.reassembler.Feed(s.readBuf[:n], s.deliver); ferr != nil {
			if errors.Is(ferr, ErrProtocolViolation) {
				s.fail(ferr)
			} else {
				s.closeWith(ferr)
			}
			return
		}
	}

	if err != nil {
		s.fail(&ChannelError{Op: "read", Err: err})
		return
	}

	s.armRead()
}

// deliver hands one decoded body to the message handler.
func (s *Session) deliver(body []byte) error {
	if s.closed.Load() {
		return ErrSessionClosed
	}
	s.metrics.FrameReceived(len(body))

	if err := s.opts.onMessage(s, Bytes(body)); err != nil {
		if s.opts.onError(err) == Disconnect {
			return err
		}
		s.logger.Debug("message handler error suppressed", "id", s.id, "error", err)
	}
	return nil
}

// write starts one transmit on behalf of the outbound queue.
func (s *Session) write(p []byte, done func(int, error)) {
	if !s.begin() {
		return
	}
	s.channel.WriteSome(p, func(n int, err error) {
		defer s.end()
		if n > len(p) {
			n, err = 0, errors.Wrapf(ErrBufferOverflow, "channel reported %d bytes written of %d", n, len(p))
		}
		done(n, err)
	})
}

// fail tears the session down after a channel error or protocol violation.
// Errors arriving after teardown are ignored.
func (s *Session) fail(err error) {
	if s.closed.Load() {
		return
	}
	s.logger.Debug("session error", "id", s.id, "addr", s.Addr(), "error", err)
	s.opts.onError(err)
	s.closeWith(err)
}

// closeWith performs teardown once: the queue is dropped, the channel closed, the
// registry and metrics notified. Done is closed when no operation is outstanding.
func (s *Session) closeWith(cause error) {
	s.mu.Lock()
	if s.closed.Load() {
		s.mu.Unlock()
		return
	}
	s.closed.Store(true)
	s.err = cause
	s.mu.Unlock()
	close(s.closing)

	s.queue.close()
	_ = s.channel.Close()

	if s.opts.registry != nil {
		s.opts.registry.Remove(s.id)
	}
	s.metrics.SessionClosed(cause)

	if cause != nil && !errors.Is(cause, ErrSessionClosed) && !errors.Is(cause, context.Canceled) {
		s.logger.Info("session closed with error", "id", s.id, "addr", s.Addr(), "error", cause)
	} else {
		s.logger.Info("session closed", "id", s.id, "addr", s.Addr())
	}

	s.mu.Lock()
	s.torn = true
	finished := s.pending == 0
	s.mu.Unlock()

	if finished {
		close(s.done)
	}
}
