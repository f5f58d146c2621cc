package socket

// Metrics receives session activity. Implementations must be safe for concurrent use.
type Metrics interface {
	SessionOpened()
	// SessionClosed is called once per session with the teardown cause.
	SessionClosed(cause error)
	FrameReceived(size int)
	FrameSent(size int)
	// SendRejected is called when an outbound message exceeds the size limit.
	SendRejected()
}

type nopMetrics struct{}

func (nopMetrics) SessionOpened()      {}
func (nopMetrics) SessionClosed(error) {}
func (nopMetrics) FrameReceived(int)   {}
func (nopMetrics) FrameSent(int)       {}
func (nopMetrics) SendRejected()       {}
