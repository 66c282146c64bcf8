package httpcore

import (
	"sync"
)

// signal is a broadcast-once primitive: Set closes the channel exactly
// once so any number of goroutines can Wait concurrently; Wait returns
// immediately once closed.
type signal struct {
	once sync.Once
	ch   chan struct{}
}

func newSignal() *signal {
	return &signal{ch: make(chan struct{})}
}

func (s *signal) Set() {
	s.once.Do(func() { close(s.ch) })
}

func (s *signal) Done() <-chan struct{} { return s.ch }

func (s *signal) IsSet() bool {
	select {
	case <-s.ch:
		return true
	default:
		return false
	}
}

// Message is the base shared by Request and Response: a header
// collection, an optional body, and the synchronisation needed to await
// body completion.
type Message struct {
	headers *Headers
	content Content

	mu sync.RWMutex
}

func newMessage() Message {
	return Message{headers: NewHeaders()}
}

// Headers returns the message's header collection.
func (m *Message) Headers() *Headers {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.headers
}

// Content returns the message's body, or nil if none was set.
func (m *Message) Content() Content {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.content
}

// SetContent attaches body to the message.
func (m *Message) SetContent(body Content) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.content = body
}

// dispose is called on connection loss: it nulls the content reference so
// no further bytes can be read or written through it.
func (m *Message) dispose() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.content != nil {
		m.content.Dispose()
	}
	m.content = nil
}
