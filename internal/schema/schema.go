// Package schema compiles a parsed UI document into styles, components and
// lazily compiled screens.
package schema

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/starford/yamui/internal/action"
	"github.com/starford/yamui/internal/apperr"
	"github.com/starford/yamui/internal/state"
	"github.com/starford/yamui/internal/yamlcore"
)

// DocKind distinguishes the two document shapes.
type DocKind int

const (
	DocUI DocKind = iota + 1
	DocSensor
)

func (k DocKind) String() string {
	switch k {
	case DocUI:
		return "ui"
	case DocSensor:
		return "sensor"
	}
	return "unknown"
}

// App is the document-level configuration.
type App struct {
	InitialScreen string
	Locale        string
	Title         string
}

// Screen is a compiled screen.
type Screen struct {
	Name    string
	Title   string
	Layout  *Layout
	Widgets []*Widget
	OnLoad  action.List
	Line    int
}

// Schema is a compiled document. Screens compile on first use; Validate
// compiles all of them up front.
type Schema struct {
	Kind   DocKind
	App    App
	State  []state.Pair
	Sensor *SensorDashboard

	styles         map[string]*Style
	styleNames     []string
	components     map[string]*ComponentDef
	componentNames []string
	componentNodes map[string]*yamlcore.Node

	screenNodes map[string]*yamlcore.Node
	screenNames []string

	mu      sync.Mutex
	screens map[string]*Screen

	logger *slog.Logger
}

// Compile builds a schema from a parsed document root. A nil logger uses
// slog.Default.
func Compile(root *yamlcore.Node, logger *slog.Logger) (*Schema, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if root == nil || root.Kind == yamlcore.KindEmpty {
		return nil, fmt.Errorf("schema: empty document: %w", apperr.ErrMissingSection)
	}
	if root.Kind != yamlcore.KindMapping {
		return nil, fmt.Errorf("schema: document root must be a mapping, got %s: %w", root.Kind, apperr.ErrInvalidShape)
	}

	s := &Schema{
		styles:         make(map[string]*Style),
		componentNodes: make(map[string]*yamlcore.Node),
		screenNodes:    make(map[string]*yamlcore.Node),
		screens:        make(map[string]*Screen),
		logger:         logger,
	}
	screens := root.Child("screens")
	sensors := root.Child("sensor_templates")
	switch {
	case screens != nil:
		s.Kind = DocUI
	case sensors != nil:
		s.Kind = DocSensor
	default:
		return nil, fmt.Errorf("schema: document has neither screens nor sensor_templates: %w", apperr.ErrMissingSection)
	}

	var err error
	if s.State, err = compileState(root.Child("state")); err != nil {
		return nil, err
	}
	if err := s.compileStyles(root.Child("styles")); err != nil {
		return nil, err
	}
	sc := &widgetScope{components: s.componentNodes, logger: logger}
	if s.components, s.componentNames, err = compileComponents(root.Child("components"), sc); err != nil {
		return nil, err
	}

	if s.Kind == DocSensor {
		if err := s.compileSensor(root, sensors); err != nil {
			return nil, err
		}
	} else if err := s.indexScreens(screens); err != nil {
		return nil, err
	}

	if err := s.compileApp(root.Child("app")); err != nil {
		return nil, err
	}
	return s, nil
}

func compileState(n *yamlcore.Node) ([]state.Pair, error) {
	if n == nil || n.Kind == yamlcore.KindEmpty {
		return nil, nil
	}
	if n.Kind != yamlcore.KindMapping {
		return nil, fmt.Errorf("schema: line %d: state must be a mapping: %w", n.Line, apperr.ErrInvalidShape)
	}
	pairs := make([]state.Pair, 0, len(n.Children))
	for _, c := range n.Children {
		switch c.Kind {
		case yamlcore.KindScalar, yamlcore.KindEmpty:
			pairs = append(pairs, state.Pair{Key: c.Key, Value: c.Value})
		default:
			return nil, fmt.Errorf("schema: line %d: state %q must be a scalar: %w", c.Line, c.Key, apperr.ErrInvalidShape)
		}
	}
	return pairs, nil
}

func (s *Schema) compileStyles(n *yamlcore.Node) error {
	if n == nil || n.Kind == yamlcore.KindEmpty {
		return nil
	}
	if n.Kind != yamlcore.KindMapping {
		return fmt.Errorf("schema: line %d: styles must be a mapping: %w", n.Line, apperr.ErrInvalidShape)
	}
	for _, c := range n.Children {
		st, err := compileStyle(c)
		if err != nil {
			return err
		}
		s.styles[c.Key] = st
		s.styleNames = append(s.styleNames, c.Key)
	}
	return nil
}

func (s *Schema) indexScreens(n *yamlcore.Node) error {
	if n.Kind == yamlcore.KindEmpty || (n.Kind == yamlcore.KindMapping && len(n.Children) == 0) {
		return fmt.Errorf("schema: line %d: screens is empty: %w", n.Line, apperr.ErrMissingSection)
	}
	if n.Kind != yamlcore.KindMapping {
		return fmt.Errorf("schema: line %d: screens must be a mapping: %w", n.Line, apperr.ErrInvalidShape)
	}
	for _, c := range n.Children {
		if c.Kind != yamlcore.KindMapping && c.Kind != yamlcore.KindEmpty {
			return fmt.Errorf("schema: line %d: screen %q must be a mapping: %w", c.Line, c.Key, apperr.ErrInvalidShape)
		}
		if _, dup := s.screenNodes[c.Key]; dup {
			return fmt.Errorf("schema: line %d: duplicate screen %q: %w", c.Line, c.Key, apperr.ErrInvalidShape)
		}
		s.screenNodes[c.Key] = c
		s.screenNames = append(s.screenNames, c.Key)
	}
	return nil
}

func (s *Schema) compileSensor(root, templates *yamlcore.Node) error {
	layout, err := compileSensorLayout(root.Child("layout"))
	if err != nil {
		return err
	}
	tpls, err := compileSensorTemplates(templates, s.logger)
	if err != nil {
		return err
	}
	s.Sensor = &SensorDashboard{Layout: layout, Templates: tpls}
	s.screens[SensorScreenName] = sensorScreen(s.Sensor)
	s.screenNames = []string{SensorScreenName}
	return nil
}

func (s *Schema) compileApp(n *yamlcore.Node) error {
	if n != nil && n.Kind != yamlcore.KindMapping && n.Kind != yamlcore.KindEmpty {
		return fmt.Errorf("schema: line %d: app must be a mapping: %w", n.Line, apperr.ErrInvalidShape)
	}
	s.App = App{
		Locale: n.String("locale", ""),
		Title:  n.String("title", ""),
	}
	if want := strings.TrimSpace(n.String("initial_screen", "")); want != "" {
		name, ok := s.lookupScreen(want)
		if !ok {
			return fmt.Errorf("schema: app.initial_screen %q: %w: %w", want, apperr.ErrInvalidShape, apperr.ErrScreenNotFound)
		}
		s.App.InitialScreen = name
		return nil
	}
	for _, name := range s.screenNames {
		if s.screenNodes[name].Bool("initial", false) {
			s.App.InitialScreen = name
			return nil
		}
	}
	s.App.InitialScreen = s.screenNames[0]
	return nil
}

// lookupScreen resolves name exactly, then ignoring case.
func (s *Schema) lookupScreen(name string) (string, bool) {
	for _, n := range s.screenNames {
		if n == name {
			return n, true
		}
	}
	for _, n := range s.screenNames {
		if strings.EqualFold(n, name) {
			return n, true
		}
	}
	return "", false
}

// HasScreen reports whether name resolves to a screen.
func (s *Schema) HasScreen(name string) bool {
	_, ok := s.lookupScreen(name)
	return ok
}

// InitialScreen returns the screen shown after loading.
func (s *Schema) InitialScreen() string { return s.App.InitialScreen }

// ScreenNames returns screen names in document order.
func (s *Schema) ScreenNames() []string {
	return append([]string(nil), s.screenNames...)
}

// Screen returns the compiled screen, compiling it on first use.
func (s *Schema) Screen(name string) (*Screen, error) {
	resolved, ok := s.lookupScreen(name)
	if !ok {
		return nil, fmt.Errorf("schema: screen %q: %w", name, apperr.ErrScreenNotFound)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if sc, ok := s.screens[resolved]; ok {
		return sc, nil
	}
	sc, err := s.compileScreen(resolved, s.screenNodes[resolved])
	if err != nil {
		return nil, err
	}
	s.screens[resolved] = sc
	return sc, nil
}

func (s *Schema) compileScreen(name string, n *yamlcore.Node) (*Screen, error) {
	layout, err := compileLayout(n.Child("layout"), LayoutColumn)
	if err != nil {
		return nil, fmt.Errorf("schema: screen %q: %w", name, err)
	}
	sc := &widgetScope{components: s.componentNodes, logger: s.logger}
	widgets, err := compileWidgets(n.Child("widgets"), sc)
	if err != nil {
		return nil, fmt.Errorf("schema: screen %q: %w", name, err)
	}
	onLoad, err := action.Compile(n.Child("on_load"))
	if err != nil {
		return nil, fmt.Errorf("schema: screen %q: on_load: %w", name, err)
	}
	warnDropped(s.logger, onLoad)
	return &Screen{
		Name:    name,
		Title:   n.String("title", name),
		Layout:  layout,
		Widgets: widgets,
		OnLoad:  onLoad,
		Line:    n.Line,
	}, nil
}

// Validate compiles every screen and returns all failures.
func (s *Schema) Validate() error {
	var errs []error
	for _, name := range s.screenNames {
		if _, err := s.Screen(name); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Component returns the named component definition.
func (s *Schema) Component(name string) (*ComponentDef, error) {
	if c, ok := s.components[name]; ok {
		return c, nil
	}
	return nil, fmt.Errorf("schema: component %q: %w", name, apperr.ErrComponentNotFound)
}

// ComponentNames returns component names in document order.
func (s *Schema) ComponentNames() []string {
	return append([]string(nil), s.componentNames...)
}

// Style returns the named style.
func (s *Schema) Style(name string) (*Style, bool) {
	st, ok := s.styles[name]
	return st, ok
}

// StyleNames returns style names in document order.
func (s *Schema) StyleNames() []string {
	return append([]string(nil), s.styleNames...)
}
