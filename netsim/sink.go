package netsim

import "errors"

// ErrSinkClosed is returned by a Sink whose receiver has gone away.
var ErrSinkClosed = errors.New("netsim: sink closed")

// Sink is the capability a registered agent exposes to receive messages.
// It is erased over the message type on purpose: a re-implementation
// should never leak a concrete channel type into Server's signatures, the
// same way commbus.HandlerFunc erases handler implementations behind a
// single-method shape.
type Sink interface {
	// Send delivers msg to the receiver. It returns ErrSinkClosed (or a
	// wrapping error) if the receiver has been dropped.
	Send(msg ProtocolMessage) error
}

// ChanSink is the reference Sink implementation: a buffered Go channel of
// fixed capacity. When the buffer is full, Send blocks until the receiver
// drains a message or the sink is closed, and the server lock stays held
// for that time (see spec.md §5 "Suspension points").
type ChanSink struct {
	ch     chan ProtocolMessage
	closed chan struct{}
}

// NewChanSink creates a ChanSink with the given buffer size.
func NewChanSink(buffer int) *ChanSink {
	return &ChanSink{
		ch:     make(chan ProtocolMessage, buffer),
		closed: make(chan struct{}),
	}
}

// Send implements Sink.
func (s *ChanSink) Send(msg ProtocolMessage) error {
	select {
	case <-s.closed:
		return ErrSinkClosed
	default:
	}
	select {
	case s.ch <- msg:
		return nil
	case <-s.closed:
		return ErrSinkClosed
	}
}

// Messages exposes the receive side of the channel for the registering
// client to consume.
func (s *ChanSink) Messages() <-chan ProtocolMessage {
	return s.ch
}

// Close marks the sink closed; subsequent Send calls return ErrSinkClosed.
// Safe to call more than once.
func (s *ChanSink) Close() {
	select {
	case <-s.closed:
	default:
		close(s.closed)
	}
}
