package binding

import (
	"sync"
	"sync/atomic"

	"github.com/starford/yamui/internal/expr"
	"github.com/starford/yamui/internal/state"
)

// Store is the part of the state store a runtime needs.
type Store interface {
	StateReader
	Watch(key string, cb state.Callback) state.Handle
	Unwatch(h state.Handle) bool
}

// Config describes one widget instance to bind.
type Config struct {
	// Text is the widget's text template. An empty template binds nothing
	// but still holds the scope for event resolution.
	Text  string
	Scope *Scope
	Store Store
	// Apply receives the resolved text. It runs on the goroutine that calls
	// Refresh.
	Apply func(text string)
	// Post, when set, schedules refreshes caused by state changes instead of
	// running them on the goroutine that changed the state.
	Post func(func())
}

// Runtime is a live widget binding.
type Runtime struct {
	cfg       Config
	deps      []string
	mu        sync.Mutex
	watches   []state.Handle
	torn      atomic.Bool
	refreshes atomic.Int64
	text      atomic.Value
}

// Bind resolves and applies the initial text and watches every distinct
// state dependency of the template.
func Bind(cfg Config) *Runtime {
	r := &Runtime{cfg: cfg}
	cfg.Scope.Acquire()
	r.deps = TemplateDeps(cfg.Scope, cfg.Text)
	r.apply()
	if cfg.Store != nil {
		for _, key := range r.deps {
			h := cfg.Store.Watch(key, r.onChange)
			r.mu.Lock()
			r.watches = append(r.watches, h)
			r.mu.Unlock()
		}
	}
	return r
}

func (r *Runtime) onChange(string, string) {
	if r.torn.Load() {
		return
	}
	if r.cfg.Post != nil {
		r.cfg.Post(r.Refresh)
		return
	}
	r.Refresh()
}

// Refresh re-resolves the template and applies it. It does nothing after
// Teardown.
func (r *Runtime) Refresh() {
	if r.torn.Load() {
		return
	}
	r.apply()
	r.refreshes.Add(1)
}

func (r *Runtime) apply() {
	if r.cfg.Text == "" {
		r.text.Store("")
		return
	}
	txt := expr.Interpolate(r.cfg.Text, Resolver(r.cfg.Scope, r.cfg.Store))
	r.text.Store(txt)
	if r.cfg.Apply != nil {
		r.cfg.Apply(txt)
	}
}

// Text returns the last resolved text.
func (r *Runtime) Text() string {
	s, _ := r.text.Load().(string)
	return s
}

// Template returns the bound template.
func (r *Runtime) Template() string { return r.cfg.Text }

// Deps returns the watched state keys.
func (r *Runtime) Deps() []string { return append([]string(nil), r.deps...) }

// Scope returns the scope the runtime holds.
func (r *Runtime) Scope() *Scope { return r.cfg.Scope }

// Refreshes counts refreshes since Bind.
func (r *Runtime) Refreshes() int { return int(r.refreshes.Load()) }

// WatchCount returns the number of live watches.
func (r *Runtime) WatchCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.watches)
}

// EventInfo is the widget state reported with an event.
type EventInfo struct {
	Value   *string `json:"value,omitempty"`
	Checked *bool   `json:"checked,omitempty"`
}

// EventResolver resolves the "value" and "checked" pseudo-identifiers from
// info, then props and state as usual.
func (r *Runtime) EventResolver(info EventInfo) expr.Resolver {
	base := Resolver(r.cfg.Scope, r.cfg.Store)
	return expr.ResolverFunc(func(name string) (expr.Value, bool) {
		switch {
		case name == "value" && info.Value != nil:
			return expr.String(*info.Value), true
		case name == "checked" && info.Checked != nil:
			return expr.Bool(*info.Checked), true
		}
		return base.Resolve(name)
	})
}

// Teardown removes every watch and releases the scope. Calling it again is
// a no-op.
func (r *Runtime) Teardown() {
	if !r.torn.CompareAndSwap(false, true) {
		return
	}
	r.mu.Lock()
	watches := r.watches
	r.watches = nil
	r.mu.Unlock()
	if r.cfg.Store != nil {
		for _, h := range watches {
			r.cfg.Store.Unwatch(h)
		}
	}
	r.cfg.Scope.Release()
}

// TornDown reports whether Teardown ran.
func (r *Runtime) TornDown() bool { return r.torn.Load() }
