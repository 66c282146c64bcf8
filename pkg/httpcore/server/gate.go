package server

import (
	"context"
	"sync"
)

// writableGate implements the write-side half of the connection's
// backpressure contract: PauseWriting blocks any goroutine in Wait until
// a matching ResumeWriting, modelling a transport whose send buffer is
// momentarily full.
type writableGate struct {
	mu   sync.Mutex
	open chan struct{}
}

func newWritableGate() *writableGate {
	ch := make(chan struct{})
	close(ch)
	return &writableGate{open: ch}
}

// Pause closes the gate; Wait callers block until Resume.
func (g *writableGate) Pause() {
	g.mu.Lock()
	defer g.mu.Unlock()
	select {
	case <-g.open:
		g.open = make(chan struct{})
	default:
		// already paused
	}
}

// Resume reopens the gate, releasing every blocked Wait.
func (g *writableGate) Resume() {
	g.mu.Lock()
	defer g.mu.Unlock()
	select {
	case <-g.open:
		// already open
	default:
		close(g.open)
	}
}

// Wait blocks until the gate is open or ctx is done.
func (g *writableGate) Wait(ctx context.Context) error {
	g.mu.Lock()
	ch := g.open
	g.mu.Unlock()
	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
