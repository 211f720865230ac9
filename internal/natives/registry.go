// Package natives holds the host functions reachable through call(...) and
// the listeners reachable through emit(...).
package natives

import (
	"fmt"
	"sort"
	"sync"

	"github.com/starford/yamui/internal/apperr"
)

// Func is a native function. Args are the resolved action arguments after
// the function name.
type Func func(args []string) error

// Listener receives an emitted event.
type Listener func(event string, args []string)

// ListenerID identifies a registered listener. The zero ID is never issued.
type ListenerID uint64

type listener struct {
	id    ListenerID
	event string
	fn    Listener
}

// Registry is safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	funcs     map[string]Func
	listeners []listener
	nextID    ListenerID
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{funcs: make(map[string]Func)}
}

// Register installs fn under name, replacing any previous function.
func (r *Registry) Register(name string, fn Func) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if fn == nil {
		delete(r.funcs, name)
		return
	}
	r.funcs[name] = fn
}

// Unregister removes name.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.funcs, name)
}

// Call runs the function registered under name.
func (r *Registry) Call(name string, args []string) error {
	r.mu.RLock()
	fn, ok := r.funcs[name]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("natives: function %q: %w", name, apperr.ErrNotFound)
	}
	return fn(args)
}

// Names returns the registered function names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.funcs))
	for n := range r.funcs {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// AddListener registers fn for event. An empty event matches every event.
func (r *Registry) AddListener(event string, fn Listener) ListenerID {
	if fn == nil {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	r.listeners = append(r.listeners, listener{id: r.nextID, event: event, fn: fn})
	return r.nextID
}

// RemoveListener unregisters a listener and reports whether it existed.
func (r *Registry) RemoveListener(id ListenerID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, l := range r.listeners {
		if l.id == id {
			r.listeners = append(r.listeners[:i:i], r.listeners[i+1:]...)
			return true
		}
	}
	return false
}

// Emit calls every listener for event in registration order and returns
// the number of listeners called.
func (r *Registry) Emit(event string, args []string) int {
	r.mu.RLock()
	var targets []Listener
	for _, l := range r.listeners {
		if l.event == "" || l.event == event {
			targets = append(targets, l.fn)
		}
	}
	r.mu.RUnlock()
	for _, fn := range targets {
		fn(event, args)
	}
	return len(targets)
}
