package socket

import (
	"context"
	"net"
	"testing"
	"time"
)

func startEchoServer(t *testing.T) (*Server, *SessionTable) {
	t.Helper()

	server, err := New(&net.TCPAddr{IP: net.ParseIP("127.0.0.1"), Port: 0}, ServerLoggerOption(NopLogger()))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	table := NewSessionTable()
	handler := NewSessionHandler(table, OnMessageOption(Echo), LoggerOption(NopLogger()))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = server.Serve(ctx, handler)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return server, table
}

func TestDial_Echo(t *testing.T) {
	server, _ := startEchoServer(t)

	replies := make(chan string, 4)
	s, err := Dial(context.Background(), "tcp", server.Addr().String(),
		LoggerOption(NopLogger()),
		OnMessageOption(func(_ *Session, m Message) error {
			replies <- string(m.Body())
			return nil
		}),
	)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer s.Close()

	for _, body := range []string{"first", "second", "third"} {
		if err := s.Send([]byte(body)); err != nil {
			t.Fatalf("Send failed: %v", err)
		}
	}

	for _, want := range []string{"first", "second", "third"} {
		select {
		case got := <-replies:
			if got != want {
				t.Errorf("reply = %q, want %q", got, want)
			}
		case <-time.After(5 * time.Second):
			t.Fatalf("timeout waiting for %q", want)
		}
	}
}

func TestDial_InvalidOptions(t *testing.T) {
	_, err := Dial(context.Background(), "tcp", "127.0.0.1:1")
	if err != ErrInvalidOnMessage {
		t.Errorf("expected ErrInvalidOnMessage, got %v", err)
	}
}

func TestDial_Refused(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen failed: %v", err)
	}
	addr := listener.Addr().String()
	listener.Close()

	_, err = Dial(context.Background(), "tcp", addr, OnMessageOption(Echo))
	if err == nil {
		t.Error("expected dial error")
	}
}
