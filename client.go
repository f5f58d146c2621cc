package socket

import (
	"context"
	"net"

	"github.com/pkg/errors"
)

// Dial connects to addr on the named network and returns a started session.
// ctx bounds the connection attempt only; use Run or Close to manage the session.
func Dial(ctx context.Context, network, addr string, opt ...Option) (*Session, error) {
	opts, err := buildOptions(opt)
	if err != nil {
		return nil, err
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, network, addr)
	if err != nil {
		return nil, errors.Wrapf(err, "dial %s %s", network, addr)
	}
	if tcp, ok := conn.(*net.TCPConn); ok {
		_ = tcp.SetNoDelay(true)
	}

	s, err := newSession(NewNetChannel(conn, opts.idleTimeout), opts)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	s.Start()
	return s, nil
}
