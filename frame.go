package socket

import (
	"encoding/binary"
	"math"

	"github.com/pkg/errors"
)

// Wire format: every frame is a 2-byte unsigned body length followed by the body.
// There is no magic number, checksum or version field; both ends agree on the
// byte order out of band.
const (
	// HeaderSize is the size of the length prefix.
	HeaderSize = 2
	// DefaultMaxBodySize is the largest body accepted by default.
	DefaultMaxBodySize = 2046
	// MaxBodySizeLimit is the largest body length a header can represent.
	MaxBodySizeLimit = math.MaxUint16
)

// DefaultByteOrder is the byte order of the length prefix unless configured otherwise.
var DefaultByteOrder binary.ByteOrder = binary.LittleEndian

var (
	// ErrProtocolViolation is returned when a peer declares a body longer than the limit.
	// The stream cannot be resynchronized afterwards.
	ErrProtocolViolation = errors.New("protocol violation")
	// ErrMessageTooLarge is returned when a message exceeds the maximum allowed size.
	ErrMessageTooLarge = errors.New("message too large")
)

func checkBodySize(n, limit int) error {
	if n > limit {
		return errors.Wrapf(ErrMessageTooLarge, "body of %d bytes exceeds limit %d", n, limit)
	}
	return nil
}

// AppendFrame appends the encoded frame for body to dst.
// The caller is responsible for keeping body within the peer's limit.
func AppendFrame(dst, body []byte, order binary.ByteOrder) []byte {
	var header [HeaderSize]byte
	order.PutUint16(header[:], uint16(len(body)))
	dst = append(dst, header[:]...)
	return append(dst, body...)
}

// EncodeFrame returns the wire bytes of body, rejecting bodies over limit.
func EncodeFrame(body []byte, limit int, order binary.ByteOrder) ([]byte, error) {
	if err := checkBodySize(len(body), limit); err != nil {
		return nil, err
	}
	return AppendFrame(make([]byte, 0, HeaderSize+len(body)), body, order), nil
}

// newOutboundFrame wraps body into a wire-ready buffer. Size is checked before
// anything is allocated.
func newOutboundFrame(body []byte, limit int, order binary.ByteOrder) (*Buffer, error) {
	if err := checkBodySize(len(body), limit); err != nil {
		return nil, err
	}
	frame := NewBuffer(HeaderSize + len(body))
	order.PutUint16(frame.data[:HeaderSize], uint16(len(body)))
	copy(frame.data[HeaderSize:], body)
	return frame, nil
}
