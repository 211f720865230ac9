package schema

import (
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/yamui/internal/action"
	"github.com/starford/yamui/internal/apperr"
	"github.com/starford/yamui/internal/expr"
	"github.com/starford/yamui/internal/yamlcore"
)

// WidgetKind is the compiled type of a widget.
type WidgetKind int

const (
	KindUnknown WidgetKind = iota
	KindLabel
	KindButton
	KindImg
	KindSpacer
	KindRow
	KindColumn
	KindPanel
	KindComponent
)

var widgetKinds = map[string]WidgetKind{
	"label":  KindLabel,
	"button": KindButton,
	"img":    KindImg,
	"spacer": KindSpacer,
	"row":    KindRow,
	"column": KindColumn,
	"panel":  KindPanel,
}

func (k WidgetKind) String() string {
	for name, v := range widgetKinds {
		if v == k {
			return name
		}
	}
	if k == KindComponent {
		return "component"
	}
	return "unknown"
}

// Container reports whether widgets of this kind hold children.
func (k WidgetKind) Container() bool {
	return k == KindRow || k == KindColumn || k == KindPanel
}

// Event names a widget interaction.
type Event string

const (
	EventClick   Event = "click"
	EventPress   Event = "press"
	EventRelease Event = "release"
	EventChange  Event = "change"
	EventFocus   Event = "focus"
	EventBlur    Event = "blur"
)

// Events lists every event in document key order.
var Events = []Event{EventClick, EventPress, EventRelease, EventChange, EventFocus, EventBlur}

// Key returns the document key that declares handlers for e.
func (e Event) Key() string { return "on_" + string(e) }

// ParseEvent accepts "click" or "on_click".
func ParseEvent(s string) (Event, bool) {
	s = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), "on_")
	for _, e := range Events {
		if string(e) == s {
			return e, true
		}
	}
	return "", false
}

// DefaultSpacerSize is the height of a spacer without a size.
const DefaultSpacerSize = 12

var sizePattern = regexp.MustCompile(`^\d+%?$`)

// Widget is one compiled UI element.
type Widget struct {
	Kind    WidgetKind
	Type    string
	ID      string
	Text    string
	Variant string
	Style   string
	Src     string
	Size    int
	Width   string
	Height  string
	Align   string
	// Grow is the flex grow factor, or -1 when unset.
	Grow     int
	Layout   *Layout
	Children []*Widget
	Events   map[Event]action.List

	// Bindings are the state keys the text (or, for a component reference,
	// the prop templates) depends on. PropRefs are identifiers resolved by
	// the enclosing component's props instead.
	Bindings []string
	PropRefs []string

	// Component names the referenced component for KindComponent, and Props
	// holds the instance's prop templates.
	Component string
	Props     map[string]string

	Line int
}

// context of the widget being compiled.
type widgetScope struct {
	components map[string]*yamlcore.Node
	props      map[string]bool
	logger     *slog.Logger
}

func compileWidgets(n *yamlcore.Node, sc *widgetScope) ([]*Widget, error) {
	if n == nil || n.Kind == yamlcore.KindEmpty {
		return nil, nil
	}
	if n.Kind != yamlcore.KindSequence {
		return nil, fmt.Errorf("schema: line %d: widgets must be a sequence: %w", n.Line, apperr.ErrInvalidShape)
	}
	out := make([]*Widget, 0, len(n.Children))
	for _, c := range n.Children {
		w, err := compileWidget(c, sc)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, nil
}

func compileWidget(n *yamlcore.Node, sc *widgetScope) (*Widget, error) {
	if n.Kind != yamlcore.KindMapping {
		return nil, fmt.Errorf("schema: line %d: widget must be a mapping: %w", n.Line, apperr.ErrInvalidShape)
	}
	typ := strings.TrimSpace(n.String("type", ""))
	if typ == "" {
		return nil, fmt.Errorf("schema: line %d: widget without type: %w", n.Line, apperr.ErrInvalidShape)
	}
	w := &Widget{
		Type:    typ,
		ID:      n.String("id", ""),
		Text:    n.String("text", ""),
		Variant: n.String("variant", ""),
		Style:   n.String("style", ""),
		Src:     n.String("src", ""),
		Size:    n.Int("size", DefaultSpacerSize),
		Width:   n.String("width", ""),
		Height:  n.String("height", ""),
		Align:   n.String("align", ""),
		Grow:    n.Int("grow", -1),
		Line:    n.Line,
	}
	if err := validation.ValidateStruct(w,
		validation.Field(&w.Width, validation.Match(sizePattern)),
		validation.Field(&w.Height, validation.Match(sizePattern)),
		validation.Field(&w.Size, validation.Min(0)),
	); err != nil {
		return nil, fmt.Errorf("schema: line %d: widget %s: %v: %w", n.Line, typ, err, apperr.ErrInvalidShape)
	}

	if k, ok := widgetKinds[typ]; ok {
		w.Kind = k
	} else if _, ok := sc.components[typ]; ok {
		w.Kind = KindComponent
		w.Component = typ
	} else {
		sc.logger.Warn("schema: unsupported widget type",
			slog.String("category", "render"),
			slog.String("type", typ),
			slog.Int("line", n.Line))
	}

	events, err := compileEvents(n, sc.logger)
	if err != nil {
		return nil, err
	}
	w.Events = events

	switch w.Kind {
	case KindRow, KindColumn, KindPanel:
		def := LayoutColumn
		if w.Kind == KindRow {
			def = LayoutRow
		}
		if w.Kind == KindPanel && n.Child("layout") == nil {
			break
		}
		if w.Layout, err = compileLayout(n.Child("layout"), def); err != nil {
			return nil, err
		}
	}
	if w.Kind.Container() {
		if w.Children, err = compileWidgets(n.Child("widgets"), sc); err != nil {
			return nil, err
		}
	}

	templates := []string{w.Text}
	if w.Kind == KindComponent {
		w.Props = instanceProps(n, sc.components[typ])
		templates = templates[:0]
		for _, name := range sortedKeys(w.Props) {
			templates = append(templates, w.Props[name])
		}
	}
	w.Bindings, w.PropRefs = classify(templates, sc.props)
	return w, nil
}

func compileEvents(n *yamlcore.Node, logger *slog.Logger) (map[Event]action.List, error) {
	var events map[Event]action.List
	for _, e := range Events {
		c := n.Child(e.Key())
		if c == nil {
			continue
		}
		list, err := action.Compile(c)
		if err != nil {
			return nil, fmt.Errorf("schema: %s: %w", e.Key(), err)
		}
		warnDropped(logger, list)
		if len(list) == 0 {
			continue
		}
		if events == nil {
			events = make(map[Event]action.List)
		}
		events[e] = list
	}
	return events, nil
}

func warnDropped(logger *slog.Logger, list action.List) {
	for _, a := range list {
		if a.Dropped > 0 {
			logger.Warn("schema: extra action arguments dropped",
				slog.String("category", "action"),
				slog.String("action", a.Type.String()),
				slog.Int("dropped", a.Dropped))
		}
	}
}

// instanceProps reads the prop templates a component reference supplies.
// Keys on the instance that name a declared prop win over declared defaults.
func instanceProps(n *yamlcore.Node, def *yamlcore.Node) map[string]string {
	names, defaults := declaredProps(def.Child("props"))
	out := make(map[string]string, len(names))
	for _, name := range names {
		if v, ok := n.Scalar(name); ok {
			out[name] = v
		} else if d, ok := defaults[name]; ok {
			out[name] = d
		}
	}
	return out
}

// declaredProps accepts a sequence of names or a mapping of name to default.
func declaredProps(n *yamlcore.Node) ([]string, map[string]string) {
	if n == nil {
		return nil, nil
	}
	var names []string
	defaults := make(map[string]string)
	switch n.Kind {
	case yamlcore.KindSequence:
		for _, c := range n.Children {
			if c.Kind == yamlcore.KindScalar && strings.TrimSpace(c.Value) != "" {
				names = append(names, strings.TrimSpace(c.Value))
			}
		}
	case yamlcore.KindMapping:
		for _, c := range n.Children {
			names = append(names, c.Key)
			if c.Kind == yamlcore.KindScalar {
				defaults[c.Key] = c.Value
			}
		}
	}
	return names, defaults
}

// classify splits the identifiers of templates into state keys and prop
// references.
func classify(templates []string, props map[string]bool) (bindings, propRefs []string) {
	seen := make(map[string]bool)
	for _, t := range templates {
		for _, id := range expr.TemplateIdentifiers(t) {
			if seen[id] {
				continue
			}
			seen[id] = true
			if props[id] {
				propRefs = append(propRefs, id)
			} else {
				bindings = append(bindings, id)
			}
		}
	}
	return bindings, propRefs
}

// walk calls fn for w and every descendant.
func walk(ws []*Widget, fn func(*Widget)) {
	for _, w := range ws {
		fn(w)
		walk(w.Children, fn)
	}
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
