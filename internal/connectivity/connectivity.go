// Package connectivity classifies the current network and reports changes.
package connectivity

import (
	"fmt"
	"strings"
	"sync"
)

// Status is a connectivity class.
type Status int

const (
	Offline Status = iota
	Metered
	Unmetered
)

// String returns the lower-case name of s.
func (s Status) String() string {
	switch s {
	case Offline:
		return "offline"
	case Metered:
		return "metered"
	case Unmetered:
		return "unmetered"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// ParseStatus parses a status name. Matching is case-insensitive.
func ParseStatus(s string) (Status, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "offline":
		return Offline, nil
	case "metered":
		return Metered, nil
	case "unmetered":
		return Unmetered, nil
	default:
		return Offline, fmt.Errorf("unknown connectivity status %q", s)
	}
}

// Monitor reports the current connectivity class and notifies on change.
type Monitor interface {
	Status() Status
	// Subscribe registers fn for change notifications. The returned func
	// removes the registration and is safe to call more than once.
	Subscribe(fn func(Status)) (unsubscribe func())
}

// notifier is the listener registry shared by the monitors in this package.
type notifier struct {
	mu        sync.Mutex
	nextID    int
	listeners map[int]func(Status)
}

func (n *notifier) subscribe(fn func(Status)) func() {
	n.mu.Lock()
	if n.listeners == nil {
		n.listeners = make(map[int]func(Status))
	}
	id := n.nextID
	n.nextID++
	n.listeners[id] = fn
	n.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			n.mu.Lock()
			delete(n.listeners, id)
			n.mu.Unlock()
		})
	}
}

// notify calls every listener outside the lock.
func (n *notifier) notify(s Status) {
	n.mu.Lock()
	fns := make([]func(Status), 0, len(n.listeners))
	for _, fn := range n.listeners {
		fns = append(fns, fn)
	}
	n.mu.Unlock()

	for _, fn := range fns {
		fn(s)
	}
}

// Static is a Monitor whose status is set explicitly.
type Static struct {
	notifier
	mu     sync.RWMutex
	status Status
}

// NewStatic returns a Static monitor reporting s.
func NewStatic(s Status) *Static {
	return &Static{status: s}
}

// Status implements Monitor.
func (m *Static) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

// Subscribe implements Monitor.
func (m *Static) Subscribe(fn func(Status)) func() {
	return m.subscribe(fn)
}

// Set changes the status. Listeners are notified on every call, even when
// the class is unchanged, matching how platform reachability callbacks fire.
func (m *Static) Set(s Status) {
	m.mu.Lock()
	m.status = s
	m.mu.Unlock()
	m.notify(s)
}
