// Package auth holds the client's authenticated identity. The sync
// core never reads ambient global state; the Session is constructed
// here and handed to the aggregator and mutator explicitly.
package auth

import (
	"sync"
	"time"

	"github.com/hoot-im/hoot/internal/bus"
	"github.com/hoot-im/hoot/internal/contacts"
)

// Session is the authenticated user's identity for the lifetime of a
// sign-in. UserID is the user's normalized phone number; it is the
// stable identifier used both as a conversation participant and as a
// message sender id.
type Session struct {
	UserID      string
	DisplayName string
}

// Authenticator is the identity collaborator: it exposes the current
// session and notifies listeners on sign-in/sign-out transitions.
type Authenticator interface {
	// Current returns the active session, or nil when signed out.
	Current() *Session

	// Listen registers a transition listener, invoked with the new
	// session (nil on sign-out). The returned function removes the
	// listener.
	Listen(fn func(*Session)) func()
}

// Memory is an in-process Authenticator. The daemon signs it in from
// per-session config at startup; tests drive transitions directly.
type Memory struct {
	mu        sync.RWMutex
	current   *Session
	listeners map[int]func(*Session)
	next      int
	bus       *bus.Bus
}

// NewMemory creates a signed-out authenticator. Transitions are also
// published on the bus (kinds "auth.signed_in", "auth.signed_out")
// when one is provided.
func NewMemory(b *bus.Bus) *Memory {
	return &Memory{
		listeners: make(map[int]func(*Session)),
		bus:       b,
	}
}

// SignIn activates a session for the given raw phone number.
func (m *Memory) SignIn(rawPhone, displayName string) *Session {
	sess := &Session{
		UserID:      contacts.Normalize(rawPhone),
		DisplayName: displayName,
	}
	m.transition(sess, "auth.signed_in")
	return sess
}

// SignOut clears the active session.
func (m *Memory) SignOut() {
	m.transition(nil, "auth.signed_out")
}

// Current implements Authenticator.
func (m *Memory) Current() *Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Listen implements Authenticator.
func (m *Memory) Listen(fn func(*Session)) func() {
	m.mu.Lock()
	id := m.next
	m.next++
	m.listeners[id] = fn
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.listeners, id)
		m.mu.Unlock()
	}
}

func (m *Memory) transition(sess *Session, kind string) {
	m.mu.Lock()
	m.current = sess
	fns := make([]func(*Session), 0, len(m.listeners))
	for _, fn := range m.listeners {
		fns = append(fns, fn)
	}
	m.mu.Unlock()

	for _, fn := range fns {
		fn(sess)
	}
	if m.bus != nil {
		m.bus.Publish(bus.Event{Kind: kind, Timestamp: time.Now(), Payload: sess})
	}
}
