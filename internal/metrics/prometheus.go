// Package metrics reports session activity to Prometheus.
package metrics

import (
	"context"
	"io"
	"net"
	"os"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"

	socket "github.com/Zereker/socket/v2"
)

// Close reasons used as the "reason" label of sessions_closed_total.
const (
	ReasonClosed   = "closed"
	ReasonCanceled = "canceled"
	ReasonEOF      = "eof"
	ReasonTimeout  = "timeout"
	ReasonProtocol = "protocol_violation"
	ReasonChannel  = "channel_error"
	ReasonHandler  = "handler_error"
)

// Prometheus implements socket.Metrics with Prometheus collectors.
type Prometheus struct {
	active        prometheus.Gauge
	opened        prometheus.Counter
	closed        *prometheus.CounterVec
	framesIn      prometheus.Counter
	framesOut     prometheus.Counter
	bodyBytesIn   prometheus.Counter
	bodyBytesOut  prometheus.Counter
	sendsRejected prometheus.Counter
	bodySizes     prometheus.Histogram
}

// NewPrometheus creates the collectors under namespace and registers them with reg.
func NewPrometheus(reg prometheus.Registerer, namespace string) (*Prometheus, error) {
	p := &Prometheus{
		active: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "session", Name: "active",
			Help: "Sessions currently open.",
		}),
		opened: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "session", Name: "opened_total",
			Help: "Sessions created.",
		}),
		closed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "session", Name: "closed_total",
			Help: "Sessions torn down, by reason.",
		}, []string{"reason"}),
		framesIn: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "frame", Name: "received_total",
			Help: "Frames decoded from peers.",
		}),
		framesOut: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "frame", Name: "sent_total",
			Help: "Frames fully written to peers.",
		}),
		bodyBytesIn: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "frame", Name: "received_body_bytes_total",
			Help: "Body bytes decoded from peers.",
		}),
		bodyBytesOut: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "frame", Name: "sent_body_bytes_total",
			Help: "Body bytes fully written to peers.",
		}),
		sendsRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "frame", Name: "send_rejected_total",
			Help: "Outbound messages rejected for exceeding the size limit.",
		}),
		bodySizes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "frame", Name: "received_body_size_bytes",
			Help:    "Size of decoded bodies.",
			Buckets: []float64{0, 16, 64, 256, 512, 1024, 2046},
		}),
	}

	for _, c := range []prometheus.Collector{
		p.active, p.opened, p.closed, p.framesIn, p.framesOut,
		p.bodyBytesIn, p.bodyBytesOut, p.sendsRejected, p.bodySizes,
	} {
		if err := reg.Register(c); err != nil {
			return nil, errors.Wrap(err, "register session metrics")
		}
	}
	return p, nil
}

// SessionOpened counts a new session and raises the active gauge.
func (p *Prometheus) SessionOpened() {
	p.opened.Inc()
	p.active.Inc()
}

// SessionClosed lowers the active gauge and counts the teardown by reason.
func (p *Prometheus) SessionClosed(cause error) {
	p.active.Dec()
	p.closed.WithLabelValues(Reason(cause)).Inc()
}

// FrameReceived counts a decoded frame and observes its body size.
func (p *Prometheus) FrameReceived(size int) {
	p.framesIn.Inc()
	p.bodyBytesIn.Add(float64(size))
	p.bodySizes.Observe(float64(size))
}

// FrameSent counts a fully written frame and its body bytes.
func (p *Prometheus) FrameSent(size int) {
	p.framesOut.Inc()
	p.bodyBytesOut.Add(float64(size))
}

// SendRejected counts an outbound message rejected for its size.
func (p *Prometheus) SendRejected() {
	p.sendsRejected.Inc()
}

// Reason classifies a session teardown cause.
func Reason(cause error) string {
	var chErr *socket.ChannelError
	switch {
	case cause == nil, errors.Is(cause, socket.ErrSessionClosed):
		return ReasonClosed
	case errors.Is(cause, context.Canceled), errors.Is(cause, context.DeadlineExceeded):
		return ReasonCanceled
	case errors.Is(cause, socket.ErrProtocolViolation):
		return ReasonProtocol
	case errors.Is(cause, io.EOF):
		return ReasonEOF
	case errors.Is(cause, os.ErrDeadlineExceeded), isTimeout(cause):
		return ReasonTimeout
	case errors.As(cause, &chErr):
		return ReasonChannel
	default:
		return ReasonHandler
	}
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
