package imaging

import (
	"context"
	"errors"
)

// ErrGateClosed is returned by Acquire once the gate is closed.
var ErrGateClosed = errors.New("imaging: decode gate closed")

// Gate bounds how many decodes run at once. A decode of an image at the
// pixel limit holds close to 100 MB of raster, so the number in flight is
// what bounds memory.
//
// Slots are tokens in a buffered channel: Acquire takes one, the returned
// release puts it back.
type Gate struct {
	slots chan struct{}
	done  chan struct{}
}

// NewGate creates a gate admitting n concurrent holders. n < 1 means 1.
func NewGate(n int) *Gate {
	if n < 1 {
		n = 1
	}
	g := &Gate{
		slots: make(chan struct{}, n),
		done:  make(chan struct{}),
	}
	for range n {
		g.slots <- struct{}{}
	}
	return g
}

// Acquire blocks until a slot is free, ctx is done, or the gate is closed.
// The release func must be called exactly once.
func (g *Gate) Acquire(ctx context.Context) (release func(), err error) {
	select {
	case <-g.done:
		return nil, ErrGateClosed
	default:
	}

	select {
	case <-g.slots:
		return func() { g.slots <- struct{}{} }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-g.done:
		return nil, ErrGateClosed
	}
}

// Close wakes every waiter with ErrGateClosed. Holders may still release.
func (g *Gate) Close() {
	select {
	case <-g.done:
	default:
		close(g.done)
	}
}

// Cap is the number of concurrent holders the gate admits.
func (g *Gate) Cap() int { return cap(g.slots) }
