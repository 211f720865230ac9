// Package binding connects widget text templates to the state store: it
// resolves component props through scope chains and keeps one watch per
// state dependency for every live widget.
package binding

import (
	"sync/atomic"

	"github.com/starford/yamui/internal/expr"
)

// StateReader is the read side of the state store.
type StateReader interface {
	Lookup(key string) (string, bool)
}

// Prop is one prop of a component instance.
type Prop struct {
	Name     string
	Template string
}

// Scope binds the props of one component instance. Scopes are reference
// counted: the creator holds the first reference, every bound widget holds
// one more, and a child scope holds one on its parent.
type Scope struct {
	parent *Scope
	props  []Prop
	refs   atomic.Int32
}

// NewScope creates a scope holding one reference. A non-nil parent gains a
// reference until the new scope is released.
func NewScope(parent *Scope, props []Prop) *Scope {
	s := &Scope{parent: parent, props: props}
	s.refs.Store(1)
	if parent != nil {
		parent.Acquire()
	}
	return s
}

// Parent returns the enclosing scope.
func (s *Scope) Parent() *Scope { return s.parent }

// Props returns the scope's own props.
func (s *Scope) Props() []Prop { return s.props }

// Acquire adds a reference.
func (s *Scope) Acquire() {
	if s != nil {
		s.refs.Add(1)
	}
}

// Release drops a reference. The last release also releases the parent.
func (s *Scope) Release() {
	if s == nil {
		return
	}
	if s.refs.Add(-1) == 0 && s.parent != nil {
		s.parent.Release()
	}
}

// Refs returns the current reference count.
func (s *Scope) Refs() int {
	if s == nil {
		return 0
	}
	return int(s.refs.Load())
}

// lookup finds name in s or its ancestors and returns the scope declaring it.
func (s *Scope) lookup(name string) (Prop, *Scope, bool) {
	for cur := s; cur != nil; cur = cur.parent {
		for _, p := range cur.props {
			if p.Name == name {
				return p, cur, true
			}
		}
	}
	return Prop{}, nil, false
}

// Resolver returns a resolver that looks identifiers up as props of s and
// its ancestors first and as state keys second. A prop's template is
// interpolated in the scope that instantiated its component.
func Resolver(s *Scope, store StateReader) expr.Resolver {
	return expr.ResolverFunc(func(name string) (expr.Value, bool) {
		if p, owner, ok := s.lookup(name); ok {
			if inner, whole := expr.WholeExpr(p.Template); whole {
				v, err := expr.Evaluate(inner, Resolver(owner.parent, store))
				if err != nil {
					return expr.String(""), true
				}
				return v, true
			}
			return expr.String(expr.Interpolate(p.Template, Resolver(owner.parent, store))), true
		}
		if store == nil {
			return expr.Value{}, false
		}
		v, ok := store.Lookup(name)
		if !ok {
			return expr.Value{}, false
		}
		return expr.String(v), true
	})
}

// Deps returns the state keys an identifier ultimately depends on: the
// identifier itself when it is not a prop, or the dependencies of the prop's
// template otherwise.
func Deps(s *Scope, ident string) []string {
	var out []string
	seen := make(map[string]bool)
	collectDeps(s, ident, seen, &out)
	return out
}

func collectDeps(s *Scope, ident string, seen map[string]bool, out *[]string) {
	p, owner, ok := s.lookup(ident)
	if !ok {
		if !seen[ident] {
			seen[ident] = true
			*out = append(*out, ident)
		}
		return
	}
	for _, id := range expr.TemplateIdentifiers(p.Template) {
		collectDeps(owner.parent, id, seen, out)
	}
}

// TemplateDeps returns the distinct state keys a template depends on.
func TemplateDeps(s *Scope, tmpl string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, id := range expr.TemplateIdentifiers(tmpl) {
		collectDeps(s, id, seen, &out)
	}
	return out
}
