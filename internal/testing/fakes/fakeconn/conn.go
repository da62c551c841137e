// Package fakeconn provides a fake message-oriented connection for testing
// the bridge loop without a websocket server.
package fakeconn

import (
	"context"
	"fmt"
	"sync"

	"github.com/acolita/shell-bridge/internal/endpoint"
)

// Conn is a scripted stand-in for endpoint.Conn.
type Conn struct {
	mu        sync.Mutex
	sent      []string
	sendErr   error
	sendCalls int

	inbound   chan []byte
	closed    chan struct{}
	closeOnce sync.Once
}

// New creates a fake connection with room for 64 undelivered frames.
func New() *Conn {
	return &Conn{
		inbound: make(chan []byte, 64),
		closed:  make(chan struct{}),
	}
}

// Deliver queues a raw inbound frame.
func (c *Conn) Deliver(frame []byte) {
	c.inbound <- frame
}

// DeliverText queues an inbound text frame.
func (c *Conn) DeliverText(text string) {
	c.Deliver([]byte(text))
}

// CloseStream simulates the remote side closing the connection. Frames
// already delivered are still returned by Receive first.
func (c *Conn) CloseStream() {
	c.closeOnce.Do(func() { close(c.closed) })
}

// SetSendError makes every subsequent Send fail with err. Nil clears it.
func (c *Conn) SetSendError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sendErr = err
}

// Send records text as an outbound frame.
func (c *Conn) Send(ctx context.Context, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.sendCalls++
	if c.sendErr != nil {
		return c.sendErr
	}
	c.sent = append(c.sent, text)
	return nil
}

// Receive returns the next delivered frame.
func (c *Conn) Receive(ctx context.Context) ([]byte, error) {
	select {
	case f := <-c.inbound:
		return f, nil
	default:
	}

	select {
	case f := <-c.inbound:
		return f, nil
	case <-c.closed:
		return nil, fmt.Errorf("%w: closed by fake", endpoint.ErrStreamClosed)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// --- Test inspection methods ---

// Sent returns all successfully sent frames in order.
func (c *Conn) Sent() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.sent))
	copy(out, c.sent)
	return out
}

// SendCalls returns how many times Send was called, including failures.
func (c *Conn) SendCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sendCalls
}
