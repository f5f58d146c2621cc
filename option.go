package socket

import (
	"encoding/binary"
	"time"
)

// ErrorAction defines the action to take when a message handler fails.
type ErrorAction int

const (
	// Disconnect closes the session when an error occurs.
	Disconnect ErrorAction = iota
	// Continue suppresses the error and continues processing.
	Continue
)

// options holds the configuration for a session.
type options struct {
	logger   Logger
	registry Registry
	metrics  Metrics

	onMessage func(s *Session, message Message) error
	// onError is called for every error seen by the session.
	// Its result only matters for handler errors: channel failures and protocol
	// violations always close the session.
	onError func(error) ErrorAction

	maxBodySize    int              // largest body accepted or sent
	byteOrder      binary.ByteOrder // byte order of the length prefix
	readBufferSize int              // size of the chunk handed to each read
	idleTimeout    time.Duration    // read/write deadline for net.Conn channels
}

// Option is a function that configures session options.
type Option func(*options)

// MessageMaxSize returns an Option that sets the maximum body size.
// Inbound frames declaring a larger body are a protocol violation; outbound
// messages larger than this are rejected. Must be within [1, 65535].
func MessageMaxSize(size int) Option {
	return func(o *options) {
		o.maxBodySize = size
	}
}

// ByteOrderOption returns an Option that sets the byte order of the length prefix.
// Both peers must use the same order. Defaults to little-endian.
func ByteOrderOption(order binary.ByteOrder) Option {
	return func(o *options) {
		o.byteOrder = order
	}
}

// ReadBufferSizeOption returns an Option that sets how many bytes a single read may deliver.
func ReadBufferSizeOption(size int) Option {
	return func(o *options) {
		o.readBufferSize = size
	}
}

// IdleTimeoutOption returns an Option that sets the read/write deadline applied to
// each operation on a net.Conn. A session that sees no traffic for this long is closed.
// Zero disables the deadline.
func IdleTimeoutOption(timeout time.Duration) Option {
	return func(o *options) {
		o.idleTimeout = timeout
	}
}

// OnErrorOption returns an Option that sets the error callback.
// Return Disconnect to close the session after a handler error, or Continue to
// keep it running.
func OnErrorOption(cb func(error) ErrorAction) Option {
	return func(o *options) {
		o.onError = cb
	}
}

// OnMessageOption returns an Option that sets the message handler callback.
// This callback is required and is invoked for each received message, in order.
func OnMessageOption(cb func(*Session, Message) error) Option {
	return func(o *options) {
		o.onMessage = cb
	}
}

// LoggerOption returns an Option that sets the logger.
// If not set, the default slog logger will be used.
func LoggerOption(logger Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// RegistryOption returns an Option that registers the session in r on creation and
// removes it on teardown.
func RegistryOption(r Registry) Option {
	return func(o *options) {
		o.registry = r
	}
}

// MetricsOption returns an Option that reports session activity to m.
func MetricsOption(m Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}
