package photoset

import (
	"sync"

	"github.com/hpungsan/funnier/internal/photo"
)

// Change summarizes a completed sync.
type Change struct {
	Total      int `json:"total"`
	New        int `json:"new"`
	Downloaded int `json:"downloaded"`
}

// Listener receives cache events. Methods are called synchronously from the
// goroutine doing the work and must not block.
type Listener interface {
	// ItemAdded is called for every image downloaded by a warm pass.
	ItemAdded(p photo.Record)
	// Message carries human-readable progress text.
	Message(text string)
	// Changed is called once per sync that merged a new remote listing.
	Changed(c Change)
}

// ListenerFuncs adapts plain functions to Listener. Nil fields are skipped.
type ListenerFuncs struct {
	OnItemAdded func(photo.Record)
	OnMessage   func(string)
	OnChanged   func(Change)
}

func (f ListenerFuncs) ItemAdded(p photo.Record) {
	if f.OnItemAdded != nil {
		f.OnItemAdded(p)
	}
}

func (f ListenerFuncs) Message(text string) {
	if f.OnMessage != nil {
		f.OnMessage(text)
	}
}

func (f ListenerFuncs) Changed(c Change) {
	if f.OnChanged != nil {
		f.OnChanged(c)
	}
}

// Subscription is the handle returned by Subscribe.
type Subscription struct {
	r    *registry
	id   int
	once sync.Once
}

// Close removes the listener. It is safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() { s.r.remove(s.id) })
}

type registry struct {
	mu        sync.Mutex
	nextID    int
	order     []int
	listeners map[int]Listener
}

func (r *registry) add(l Listener) *Subscription {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listeners == nil {
		r.listeners = make(map[int]Listener)
	}
	id := r.nextID
	r.nextID++
	r.listeners[id] = l
	r.order = append(r.order, id)
	return &Subscription{r: r, id: id}
}

func (r *registry) remove(id int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.listeners, id)
	for i, v := range r.order {
		if v == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// snapshot returns the listeners in subscription order.
func (r *registry) snapshot() []Listener {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Listener, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.listeners[id])
	}
	return out
}

func (r *registry) itemAdded(p photo.Record) {
	for _, l := range r.snapshot() {
		l.ItemAdded(p)
	}
}

func (r *registry) message(text string) {
	for _, l := range r.snapshot() {
		l.Message(text)
	}
}

func (r *registry) changed(c Change) {
	for _, l := range r.snapshot() {
		l.Changed(c)
	}
}
