package mocks

import (
	"errors"
	"sync"

	"github.com/dkeye/Nearby/internal/core"
)

var ErrFull = errors.New("full")

// FakeConn is an in-memory core.SignalConnection with a bounded queue.
// A zero capacity rejects every frame, like a stalled consumer.
type FakeConn struct {
	mu     sync.Mutex
	cap    int
	frames []core.Frame
	closed bool
}

func NewFakeConn(capacity int) *FakeConn { return &FakeConn{cap: capacity} }

func (c *FakeConn) TrySend(f core.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || len(c.frames) >= c.cap {
		return ErrFull
	}
	c.frames = append(c.frames, f)
	return nil
}

func (c *FakeConn) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

// Received returns every accepted frame as a string, in order.
func (c *FakeConn) Received() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.frames))
	for _, f := range c.frames {
		out = append(out, string(f))
	}
	return out
}

func (c *FakeConn) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}
