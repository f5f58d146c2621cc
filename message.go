package socket

// Message is the interface for messages transmitted over the connection.
// Implementations should provide the message length and body.
type Message interface {
	// Length returns the length of the message body.
	Length() int
	// Body returns the raw message data.
	Body() []byte
}

// Bytes is a Message backed by a byte slice. Decoded frames are delivered as Bytes;
// the receiver owns the slice.
type Bytes []byte

// Length returns the body length.
func (b Bytes) Length() int {
	return len(b)
}

// Body returns the body.
func (b Bytes) Body() []byte {
	return b
}
