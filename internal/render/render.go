// Package render defines the boundary between the runtime and a widget
// backend, and provides Memory, a headless backend that records the widget
// tree.
package render

import (
	"fmt"
	"sync"

	"github.com/starford/yamui/internal/apperr"
)

// Handle identifies a backend object. The zero Handle is never issued.
type Handle uint64

// Kind is the type of a backend object.
type Kind string

const (
	KindRoot      Kind = "root"
	KindScreen    Kind = "screen"
	KindContainer Kind = "container"
	KindPanel     Kind = "panel"
	KindLabel     Kind = "label"
	KindButton    Kind = "button"
	KindImage     Kind = "img"
	KindSymbol    Kind = "symbol"
	KindSpacer    Kind = "spacer"
	KindOverlay   Kind = "overlay"
)

// Attrs are presentation attributes passed through to the backend.
type Attrs map[string]string

// Backend creates, updates and destroys widgets. Destroying an object
// destroys its subtree; the backend reports each destroyed object to the
// teardown hooks, children before parents.
type Backend interface {
	Root() Handle
	Create(kind Kind, attrs Attrs, parent Handle) (Handle, error)
	SetText(h Handle, text string) error
	Destroy(h Handle) error
	DestroyChildren(h Handle) error
	OnTeardown(fn func(Handle))
}

type object struct {
	kind        Kind
	attrs       Attrs
	text        string
	parent      Handle
	children    []Handle
	textUpdates int
}

// Memory is an in-process Backend safe for concurrent use.
type Memory struct {
	mu      sync.Mutex
	objects map[Handle]*object
	next    Handle
	root    Handle
	hooks   []func(Handle)
}

// NewMemory returns a backend holding only the root object.
func NewMemory() *Memory {
	m := &Memory{objects: make(map[Handle]*object)}
	m.next = 1
	m.root = m.next
	m.objects[m.root] = &object{kind: KindRoot}
	return m
}

// Root returns the root object.
func (m *Memory) Root() Handle { return m.root }

// Create adds an object under parent.
func (m *Memory) Create(kind Kind, attrs Attrs, parent Handle) (Handle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.objects[parent]
	if !ok {
		return 0, fmt.Errorf("render: parent %d: %w", parent, apperr.ErrNotFound)
	}
	m.next++
	h := m.next
	cp := make(Attrs, len(attrs))
	for k, v := range attrs {
		cp[k] = v
	}
	m.objects[h] = &object{kind: kind, attrs: cp, parent: parent, text: cp["text"]}
	delete(cp, "text")
	p.children = append(p.children, h)
	return h, nil
}

// SetText replaces the text of h.
func (m *Memory) SetText(h Handle, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.objects[h]
	if !ok {
		return fmt.Errorf("render: object %d: %w", h, apperr.ErrNotFound)
	}
	o.text = text
	o.textUpdates++
	return nil
}

// Destroy removes h and its subtree. The root cannot be destroyed.
func (m *Memory) Destroy(h Handle) error {
	if h == m.root {
		return m.DestroyChildren(h)
	}
	m.mu.Lock()
	o, ok := m.objects[h]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("render: object %d: %w", h, apperr.ErrNotFound)
	}
	if p, ok := m.objects[o.parent]; ok {
		p.children = removeHandle(p.children, h)
	}
	var gone []Handle
	m.collect(h, &gone)
	hooks := m.hooks
	m.mu.Unlock()
	notify(hooks, gone)
	return nil
}

// DestroyChildren removes every descendant of h, keeping h.
func (m *Memory) DestroyChildren(h Handle) error {
	m.mu.Lock()
	o, ok := m.objects[h]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("render: object %d: %w", h, apperr.ErrNotFound)
	}
	children := o.children
	o.children = nil
	var gone []Handle
	for _, c := range children {
		m.collect(c, &gone)
	}
	hooks := m.hooks
	m.mu.Unlock()
	notify(hooks, gone)
	return nil
}

// collect removes h's subtree in post-order. Callers hold m.mu.
func (m *Memory) collect(h Handle, out *[]Handle) {
	o, ok := m.objects[h]
	if !ok {
		return
	}
	for _, c := range o.children {
		m.collect(c, out)
	}
	delete(m.objects, h)
	*out = append(*out, h)
}

func notify(hooks []func(Handle), gone []Handle) {
	for _, h := range gone {
		for _, fn := range hooks {
			fn(h)
		}
	}
}

func removeHandle(hs []Handle, h Handle) []Handle {
	for i, c := range hs {
		if c == h {
			return append(hs[:i:i], hs[i+1:]...)
		}
	}
	return hs
}

// OnTeardown registers fn for every destroyed object.
func (m *Memory) OnTeardown(fn func(Handle)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hooks = append(m.hooks, fn)
}

// Text returns the text of h.
func (m *Memory) Text(h Handle) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.objects[h]
	if !ok {
		return "", false
	}
	return o.text, true
}

// TextUpdates counts SetText calls on h.
func (m *Memory) TextUpdates(h Handle) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if o, ok := m.objects[h]; ok {
		return o.textUpdates
	}
	return 0
}

// Count returns the number of live objects, the root included.
func (m *Memory) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}

// Exists reports whether h is live.
func (m *Memory) Exists(h Handle) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[h]
	return ok
}

// TreeNode is a snapshot of one object and its subtree.
type TreeNode struct {
	Handle   Handle      `json:"handle"`
	Kind     Kind        `json:"kind"`
	Text     string      `json:"text,omitempty"`
	Attrs    Attrs       `json:"attrs,omitempty"`
	Children []*TreeNode `json:"children,omitempty"`
}

// Tree snapshots the subtree rooted at h, or nil if h is unknown.
func (m *Memory) Tree(h Handle) *TreeNode {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tree(h)
}

func (m *Memory) tree(h Handle) *TreeNode {
	o, ok := m.objects[h]
	if !ok {
		return nil
	}
	n := &TreeNode{Handle: h, Kind: o.kind, Text: o.text}
	if len(o.attrs) > 0 {
		n.Attrs = make(Attrs, len(o.attrs))
		for k, v := range o.attrs {
			n.Attrs[k] = v
		}
	}
	for _, c := range o.children {
		if t := m.tree(c); t != nil {
			n.Children = append(n.Children, t)
		}
	}
	return n
}

// Find returns the first object in depth-first order whose snapshot
// satisfies match.
func (t *TreeNode) Find(match func(*TreeNode) bool) *TreeNode {
	if t == nil {
		return nil
	}
	if match(t) {
		return t
	}
	for _, c := range t.Children {
		if f := c.Find(match); f != nil {
			return f
		}
	}
	return nil
}

// Texts returns the text of every object carrying text, depth-first.
func (t *TreeNode) Texts() []string {
	var out []string
	var visit func(*TreeNode)
	visit = func(n *TreeNode) {
		if n.Text != "" {
			out = append(out, n.Text)
		}
		for _, c := range n.Children {
			visit(c)
		}
	}
	if t != nil {
		visit(t)
	}
	return out
}
