package scheduler

import "sync"

// Closer is implemented by coroutines that hold resources beyond their
// last pin, such as a thread context.
type Closer interface {
	Close()
}

// Registry is a reference-counted Pinner. A coroutine stays in the registry
// while at least one pin is outstanding; when the count drops to zero the
// entry is removed and the coroutine is closed if it implements Closer.
type Registry struct {
	mu      sync.Mutex
	nextID  uint64
	ids     map[Coroutine]uint64
	entries map[uint64]*registryEntry
}

type registryEntry struct {
	co   Coroutine
	refs int
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		ids:     make(map[Coroutine]uint64),
		entries: make(map[uint64]*registryEntry),
	}
}

// Pin adds a reference to co and returns the matching release func.
func (r *Registry) Pin(co Coroutine) func() {
	r.mu.Lock()
	id, ok := r.ids[co]
	if !ok {
		r.nextID++
		id = r.nextID
		r.ids[co] = id
		r.entries[id] = &registryEntry{co: co}
	}
	r.entries[id].refs++
	r.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { r.unpin(id) })
	}
}

func (r *Registry) unpin(id uint64) {
	r.mu.Lock()
	e, ok := r.entries[id]
	if !ok {
		r.mu.Unlock()
		return
	}
	e.refs--
	if e.refs > 0 {
		r.mu.Unlock()
		return
	}
	delete(r.entries, id)
	delete(r.ids, e.co)
	r.mu.Unlock()

	if c, ok := e.co.(Closer); ok {
		c.Close()
	}
}

// Live returns the number of pinned coroutines.
func (r *Registry) Live() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Refs returns the pin count for co, zero when it is not pinned.
func (r *Registry) Refs(co Coroutine) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id, ok := r.ids[co]; ok {
		return r.entries[id].refs
	}
	return 0
}
