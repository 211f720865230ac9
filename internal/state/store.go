// Package state implements the reactive key/value store shared by every
// runtime component.
//
// The store is the only core object that may be called from any goroutine.
// Watch callbacks run synchronously on the goroutine that called Set, after
// the value is committed and the lock is released, so a callback may call
// back into the store. Callbacks that touch renderer objects must re-post
// themselves onto the UI loop.
package state

import (
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
)

// Callback receives the changed key and its new value.
type Callback func(key, value string)

// Handle identifies a registered watch. The zero Handle is never issued.
type Handle uint64

// Pair is one seed entry.
type Pair struct {
	Key   string
	Value string
}

type watch struct {
	id      Handle
	key     string
	cb      Callback
	removed atomic.Bool
}

// Store holds string values keyed by name.
type Store struct {
	mu      sync.Mutex
	entries map[string]string
	watches []*watch
	nextID  Handle
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{entries: make(map[string]string)}
}

// Set stores value under key and notifies matching watches in registration
// order. Setting the current value is a no-op. An empty key is ignored.
// Set reports whether the stored value changed.
func (s *Store) Set(key, value string) bool {
	if key == "" {
		return false
	}
	s.mu.Lock()
	if old, ok := s.entries[key]; ok && old == value {
		s.mu.Unlock()
		return false
	}
	s.entries[key] = value
	var targets []*watch
	for _, w := range s.watches {
		if w.key == "" || w.key == key {
			targets = append(targets, w)
		}
	}
	s.mu.Unlock()

	for _, w := range targets {
		// A watch removed by an earlier callback in this round is skipped.
		if w.removed.Load() {
			continue
		}
		w.cb(key, value)
	}
	return true
}

// Get returns the value stored under key, or def.
func (s *Store) Get(key, def string) string {
	if v, ok := s.Lookup(key); ok {
		return v
	}
	return def
}

// Lookup returns the value stored under key and whether it exists.
func (s *Store) Lookup(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.entries[key]
	return v, ok
}

// SetInt stores a base-10 integer.
func (s *Store) SetInt(key string, v int) bool {
	return s.Set(key, strconv.Itoa(v))
}

// GetInt parses the value under key as a base-10 integer, or returns def.
func (s *Store) GetInt(key string, def int) int {
	v, ok := s.Lookup(key)
	if !ok {
		return def
	}
	i, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return def
	}
	return i
}

// SetBool stores "true" or "false".
func (s *Store) SetBool(key string, v bool) bool {
	return s.Set(key, strconv.FormatBool(v))
}

// GetBool interprets "true"/"1" and "false"/"0" (case-insensitive), or
// returns def.
func (s *Store) GetBool(key string, def bool) bool {
	v, ok := s.Lookup(key)
	if !ok {
		return def
	}
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "true", "1":
		return true
	case "false", "0":
		return false
	}
	return def
}

// Watch registers cb for changes to key, or to every key when key is empty.
func (s *Store) Watch(key string, cb Callback) Handle {
	if cb == nil {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	w := &watch{id: s.nextID, key: key, cb: cb}
	s.watches = append(s.watches, w)
	return w.id
}

// Unwatch removes a watch. It reports whether the handle was registered.
func (s *Store) Unwatch(h Handle) bool {
	if h == 0 {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, w := range s.watches {
		if w.id == h {
			w.removed.Store(true)
			s.watches = append(s.watches[:i:i], s.watches[i+1:]...)
			return true
		}
	}
	return false
}

// Seed stores pairs without notifying and without overwriting keys that
// already hold a value.
func (s *Store) Seed(pairs []Pair) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range pairs {
		if p.Key == "" {
			continue
		}
		if _, ok := s.entries[p.Key]; ok {
			continue
		}
		s.entries[p.Key] = p.Value
	}
}

// Snapshot returns a copy of every entry.
func (s *Store) Snapshot() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.entries))
	for k, v := range s.entries {
		out[k] = v
	}
	return out
}

// Keys returns the stored keys in sorted order.
func (s *Store) Keys() []string {
	s.mu.Lock()
	keys := make([]string, 0, len(s.entries))
	for k := range s.entries {
		keys = append(keys, k)
	}
	s.mu.Unlock()
	sort.Strings(keys)
	return keys
}

// Len returns the number of entries.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// WatchCount returns the number of registered watches.
func (s *Store) WatchCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.watches)
}

// Clear drops every entry. Watches stay registered.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]string)
}

// Deinit drops every entry and every watch. Handle numbering continues, so
// handles issued before Deinit are never reissued.
func (s *Store) Deinit() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, w := range s.watches {
		w.removed.Store(true)
	}
	s.entries = make(map[string]string)
	s.watches = nil
}
