package schema

import (
	"fmt"
	"strings"

	"github.com/starford/yamui/internal/apperr"
	"github.com/starford/yamui/internal/yamlcore"
)

// ComponentDef is a reusable, parameterized widget subtree.
type ComponentDef struct {
	Name string
	// Props are the declared prop names in declaration order. Defaults holds
	// the templates used when an instance does not supply a prop.
	Props    []string
	Defaults map[string]string
	Layout   *Layout
	Widgets  []*Widget
	Line     int
}

// HasProp reports whether name is a declared prop.
func (c *ComponentDef) HasProp(name string) bool {
	for _, p := range c.Props {
		if p == name {
			return true
		}
	}
	return false
}

func compileComponents(n *yamlcore.Node, sc *widgetScope) (map[string]*ComponentDef, []string, error) {
	defs := make(map[string]*ComponentDef)
	if n == nil || n.Kind == yamlcore.KindEmpty {
		return defs, nil, nil
	}
	if n.Kind != yamlcore.KindMapping {
		return nil, nil, fmt.Errorf("schema: line %d: components must be a mapping: %w", n.Line, apperr.ErrInvalidShape)
	}
	for _, c := range n.Children {
		if c.Kind != yamlcore.KindMapping {
			return nil, nil, fmt.Errorf("schema: line %d: component %q must be a mapping: %w", c.Line, c.Key, apperr.ErrInvalidShape)
		}
		sc.components[c.Key] = c
	}

	names := n.Keys()
	for _, c := range n.Children {
		props, defaults := declaredProps(c.Child("props"))
		if p := c.Child("props"); p != nil && p.Kind == yamlcore.KindScalar {
			return nil, nil, fmt.Errorf("schema: line %d: component %q: props must be a sequence or a mapping: %w", p.Line, c.Key, apperr.ErrInvalidShape)
		}
		inner := &widgetScope{components: sc.components, props: make(map[string]bool, len(props)), logger: sc.logger}
		for _, p := range props {
			inner.props[p] = true
		}
		layout, err := compileLayout(c.Child("layout"), LayoutColumn)
		if err != nil {
			return nil, nil, fmt.Errorf("schema: component %q: %w", c.Key, err)
		}
		widgets, err := compileWidgets(c.Child("widgets"), inner)
		if err != nil {
			return nil, nil, fmt.Errorf("schema: component %q: %w", c.Key, err)
		}
		defs[c.Key] = &ComponentDef{
			Name:     c.Key,
			Props:    props,
			Defaults: defaults,
			Layout:   layout,
			Widgets:  widgets,
			Line:     c.Line,
		}
	}
	if err := checkCycles(defs, names); err != nil {
		return nil, nil, err
	}
	return defs, names, nil
}

// checkCycles rejects a component that instantiates itself, directly or
// through other components.
func checkCycles(defs map[string]*ComponentDef, names []string) error {
	const (
		unvisited = iota
		active
		done
	)
	marks := make(map[string]int, len(defs))
	var path []string

	var visit func(name string) error
	visit = func(name string) error {
		switch marks[name] {
		case active:
			return fmt.Errorf("schema: component cycle %s -> %s: %w",
				strings.Join(path, " -> "), name, apperr.ErrInvalidShape)
		case done:
			return nil
		}
		def, ok := defs[name]
		if !ok {
			return nil
		}
		marks[name] = active
		path = append(path, name)
		var err error
		walk(def.Widgets, func(w *Widget) {
			if err == nil && w.Kind == KindComponent {
				err = visit(w.Component)
			}
		})
		path = path[:len(path)-1]
		marks[name] = done
		return err
	}

	for _, name := range names {
		if err := visit(name); err != nil {
			return err
		}
	}
	return nil
}
