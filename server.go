package socket

import (
	"context"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// Handler is the interface for handling incoming connections.
type Handler interface {
	// Handle is called on its own goroutine for each new connection and owns it
	// until it returns. ctx is canceled when the server stops.
	Handle(ctx context.Context, conn net.Conn)
}

// HandlerFunc adapts a function to a Handler.
type HandlerFunc func(ctx context.Context, conn net.Conn)

// Handle calls f(ctx, conn).
func (f HandlerFunc) Handle(ctx context.Context, conn net.Conn) {
	f(ctx, conn)
}

// SessionHandler runs a Session for every connection it handles and keeps it in a
// SessionTable for the session's lifetime.
type SessionHandler struct {
	table  *SessionTable
	logger Logger
	opts   []Option
}

// NewSessionHandler returns a handler that creates sessions with opt and registers
// them in table.
func NewSessionHandler(table *SessionTable, opt ...Option) *SessionHandler {
	h := &SessionHandler{table: table, logger: defaultLogger()}
	var probe options
	for _, o := range opt {
		o(&probe)
	}
	if probe.logger != nil {
		h.logger = probe.logger
	}
	h.opts = append(append([]Option(nil), opt...), RegistryOption(table))
	return h
}

// Handle creates a session for conn and runs it until it is torn down or ctx is canceled.
func (h *SessionHandler) Handle(ctx context.Context, conn net.Conn) {
	s, err := NewConn(conn, h.opts...)
	if err != nil {
		h.logger.Error("create session failed", "addr", conn.RemoteAddr(), "error", err)
		_ = conn.Close()
		return
	}
	_ = s.Run(ctx)
}

// Table returns the registry the handler registers sessions in.
func (h *SessionHandler) Table() *SessionTable {
	return h.table
}

// Server represents a TCP server that listens for incoming connections.
type Server struct {
	listener        *net.TCPListener
	logger          Logger
	shutdownTimeout time.Duration

	mu          sync.Mutex
	shutdown    bool
	shutdownNow chan struct{} // signals immediate shutdown, bypassing timeout
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// ServerLoggerOption sets the logger for the server.
func ServerLoggerOption(logger Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

// ServerShutdownTimeoutOption sets the graceful shutdown timeout.
// When the context is canceled, the server keeps accepting for up to this duration
// before closing the listener and canceling the handlers. Default is 0
// (immediate shutdown).
func ServerShutdownTimeoutOption(timeout time.Duration) ServerOption {
	return func(s *Server) {
		s.shutdownTimeout = timeout
	}
}

// New creates a new TCP server bound to the specified address.
// Returns an error if the address cannot be bound.
func New(addr *net.TCPAddr, opts ...ServerOption) (*Server, error) {
	listener, err := net.ListenTCP(addr.Network(), addr)
	if err != nil {
		return nil, errors.Wrapf(err, "listen %s", addr)
	}

	s := &Server{
		listener:    listener,
		logger:      slog.Default(),
		shutdownNow: make(chan struct{}),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// Serve starts accepting connections and dispatching them to the handler.
// It blocks until the context is canceled, Close is called, or an unrecoverable
// accept error occurs. Before returning it cancels the context passed to the
// handlers and waits for all of them to return.
func (s *Server) Serve(ctx context.Context, handler Handler) error {
	s.logger.Info("server started", "addr", s.listener.Addr())

	handlerCtx, cancel := context.WithCancel(ctx)
	stop := make(chan struct{})
	var group errgroup.Group
	defer func() {
		close(stop)
		cancel()
		_ = group.Wait()
	}()

	go func() {
		select {
		case <-ctx.Done():
		case <-stop:
			return
		}

		// Wait for shutdown timeout if configured, but allow early exit via Close()
		if s.shutdownTimeout > 0 {
			s.logger.Info("graceful shutdown initiated", "timeout", s.shutdownTimeout)
			select {
			case <-time.After(s.shutdownTimeout):
			case <-s.shutdownNow:
				s.logger.Debug("shutdown timeout bypassed via Close()")
			}
		}

		s.mu.Lock()
		s.shutdown = true
		s.mu.Unlock()
		// Set a deadline to unblock Accept
		_ = s.listener.SetDeadline(time.Now())
	}()

	for {
		conn, err := s.listener.AcceptTCP()
		if err != nil {
			s.mu.Lock()
			isShutdown := s.shutdown
			s.mu.Unlock()

			if isShutdown {
				s.logger.Info("server stopped", "addr", s.listener.Addr())
				return ctx.Err()
			}

			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			s.logger.Error("accept error", "error", err)
			return errors.Wrap(err, "accept")
		}

		s.logger.Debug("accepted connection", "remote_addr", conn.RemoteAddr())
		_ = conn.SetNoDelay(true)
		group.Go(func() error {
			handler.Handle(handlerCtx, conn)
			return nil
		})
	}
}

// Close stops the server by closing the underlying listener.
// If a shutdown timeout is configured, Close() bypasses the remaining timeout.
func (s *Server) Close() error {
	s.mu.Lock()
	s.shutdown = true
	s.mu.Unlock()

	select {
	case s.shutdownNow <- struct{}{}:
	default:
	}

	return s.listener.Close()
}

// Addr returns the listener's network address.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}
