// Package engine ties one runtime instance together: the loaded schema, the
// state store, the navigation controller, the action executor and the
// widget backend.
//
// Apart from the accessors documented as safe, Engine methods must be
// called from the UI loop.
package engine

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/starford/yamui/internal/action"
	"github.com/starford/yamui/internal/apperr"
	"github.com/starford/yamui/internal/binding"
	"github.com/starford/yamui/internal/nav"
	"github.com/starford/yamui/internal/natives"
	"github.com/starford/yamui/internal/render"
	"github.com/starford/yamui/internal/schema"
	"github.com/starford/yamui/internal/state"
	"github.com/starford/yamui/internal/telemetry"
	"github.com/starford/yamui/internal/yamlcore"
)

// Engine is one runtime instance.
type Engine struct {
	id          string
	logger      *slog.Logger
	store       *state.Store
	backend     render.Backend
	sink        telemetry.Sink
	post        func(func())
	natives     *natives.Registry
	maxDepth    int
	navMaxDepth int
	limits      yamlcore.Limits

	nav  *nav.Controller
	exec *action.Executor

	mu      sync.RWMutex
	schema  *schema.Schema
	docName string

	wmu     sync.Mutex
	widgets map[render.Handle]*widget
	ids     map[string]render.Handle
}

// widget is a live widget that carries a binding.
type widget struct {
	handle  render.Handle
	def     *schema.Widget
	runtime *binding.Runtime
}

// New returns an engine with no document loaded.
func New(opts ...Option) *Engine {
	e := &Engine{
		id:       uuid.NewString(),
		logger:   slog.Default(),
		sink:     telemetry.Discard,
		maxDepth: DefaultMaxComponentDepth,
		limits:   yamlcore.DefaultLimits,
		widgets:  make(map[render.Handle]*widget),
		ids:      make(map[string]render.Handle),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.store == nil {
		e.store = state.NewStore()
	}
	if e.backend == nil {
		e.backend = render.NewMemory()
	}
	if e.natives == nil {
		e.natives = natives.NewRegistry()
	}

	e.nav = nav.NewController(screenRenderer{e},
		nav.WithMaxDepth(e.navMaxDepth),
		nav.WithLogger(e.logger))
	e.exec = &action.Executor{
		Store: e.store,
		Handlers: action.Handlers{
			Goto:       e.nav.Goto,
			Push:       e.nav.Push,
			Pop:        e.nav.Pop,
			ShowModal:  e.nav.ShowModal,
			CloseModal: e.nav.CloseModal,
			CallNative: e.natives.Call,
			EmitEvent: func(event string, args []string) error {
				e.natives.Emit(event, args)
				return nil
			},
		},
		Observer: e.observeAction,
		Logger:   e.logger,
	}
	e.backend.OnTeardown(e.handleTeardown)
	e.store.Watch("", func(key, value string) {
		e.emit(telemetry.Event{Type: telemetry.TypeStateChange, Subject: key, Arg0: value})
	})
	e.registerBuiltins()
	return e
}

func (e *Engine) registerBuiltins() {
	e.natives.Register("ui_goto", func(args []string) error {
		return e.nav.Goto(firstArg(args))
	})
	e.natives.Register("ui_push", func(args []string) error {
		return e.nav.Push(firstArg(args))
	})
	e.natives.Register("ui_pop", func([]string) error {
		return e.nav.Pop()
	})
	e.natives.Register("log", func(args []string) error {
		e.logger.Info("native: log",
			slog.String("category", "native"),
			slog.String("message", strings.Join(args, " ")))
		return nil
	})
}

func firstArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}

func (e *Engine) emit(ev telemetry.Event) {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	e.sink.Emit(ev)
}

func (e *Engine) observeAction(a action.Action, args []string, err error) {
	ev := telemetry.Event{Type: telemetry.TypeAction, Subject: a.Type.String()}
	if len(args) > 0 {
		ev.Arg0 = args[0]
	}
	if len(args) > 1 {
		ev.Arg1 = args[1]
	}
	e.emit(ev)
	if err != nil {
		e.emit(telemetry.Event{Type: telemetry.TypeError, Subject: a.String(), Detail: err.Error()})
	}
}

// ID returns the instance id. Safe for concurrent use.
func (e *Engine) ID() string { return e.id }

// Store returns the state store. Safe for concurrent use.
func (e *Engine) Store() *state.Store { return e.store }

// Natives returns the native registry. Safe for concurrent use.
func (e *Engine) Natives() *natives.Registry { return e.natives }

// Backend returns the widget backend.
func (e *Engine) Backend() render.Backend { return e.backend }

// Nav returns the navigation controller.
func (e *Engine) Nav() *nav.Controller { return e.nav }

// Schema returns the loaded schema, or nil. Safe for concurrent use.
func (e *Engine) Schema() *schema.Schema {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.schema
}

// DocumentName returns the name of the loaded document. Safe for concurrent
// use.
func (e *Engine) DocumentName() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.docName
}

// Compile parses and compiles data without loading it.
func (e *Engine) Compile(data []byte) (*schema.Schema, error) {
	root, err := yamlcore.ParseWithLimits(data, e.limits)
	if err != nil {
		return nil, err
	}
	s, err := schema.Compile(root, e.logger)
	if err != nil {
		return nil, err
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Load compiles data and makes it the active document. A document that
// fails to parse or compile leaves the previous one active. The current
// screen is kept when the new document still defines it; otherwise the new
// initial screen is shown. Seeded state never overwrites existing keys.
func (e *Engine) Load(name string, data []byte) error {
	start := time.Now()
	s, err := e.Compile(data)
	if err != nil {
		e.emit(telemetry.Event{Type: telemetry.TypeError, Subject: name, Detail: err.Error()})
		return fmt.Errorf("engine: load %s: %w", name, err)
	}

	target := s.InitialScreen()
	if top := e.nav.Top(); top != "" && s.HasScreen(top) {
		target = top
	}

	e.mu.Lock()
	e.schema = s
	e.docName = name
	e.mu.Unlock()
	e.store.Seed(s.State)

	e.nav.Reset()
	navErr := e.nav.Goto(target)

	e.logger.Info("engine: document loaded",
		slog.String("category", "runtime"),
		slog.String("document", name),
		slog.String("kind", s.Kind.String()),
		slog.String("screen", target),
		slog.Duration("elapsed", time.Since(start)))
	e.emit(telemetry.Event{Type: telemetry.TypeDocumentLoad, Subject: name, Detail: s.Kind.String(), Arg0: target})
	if navErr != nil {
		return fmt.Errorf("engine: load %s: %w", name, navErr)
	}
	return nil
}

// Goto replaces the current screen.
func (e *Engine) Goto(screen string) error { return e.nav.Goto(screen) }

// Push opens screen on top of the current one.
func (e *Engine) Push(screen string) error { return e.nav.Push(screen) }

// Replace replaces the current screen.
func (e *Engine) Replace(screen string) error { return e.nav.Replace(screen) }

// Pop returns to the previous screen.
func (e *Engine) Pop() error { return e.nav.Pop() }

// ShowModal opens a modal built from component.
func (e *Engine) ShowModal(component string) error { return e.nav.ShowModal(component) }

// CloseModal closes the top modal.
func (e *Engine) CloseModal() error { return e.nav.CloseModal() }

// Execute runs an action list against the global state.
func (e *Engine) Execute(list action.List) error {
	return e.exec.Execute(list, binding.Resolver(nil, e.store))
}

// CallNative runs a registered native function.
func (e *Engine) CallNative(name string, args []string) error {
	return e.natives.Call(name, args)
}

// DispatchEvent delivers a widget event. A widget without handlers for ev
// ignores it.
func (e *Engine) DispatchEvent(h render.Handle, ev schema.Event, info binding.EventInfo) error {
	e.wmu.Lock()
	w, ok := e.widgets[h]
	e.wmu.Unlock()
	if !ok {
		return fmt.Errorf("engine: widget %d: %w", h, apperr.ErrNotFound)
	}
	list := w.def.Events[ev]
	e.emit(telemetry.Event{Type: telemetry.TypeEvent, Subject: string(ev), Detail: w.def.ID, Value: float64(len(list))})
	if len(list) == 0 {
		return nil
	}
	return e.exec.Execute(list, w.runtime.EventResolver(info))
}

// DispatchByID delivers an event to the widget with the given id.
func (e *Engine) DispatchByID(id string, ev schema.Event, info binding.EventInfo) error {
	h, ok := e.Lookup(id)
	if !ok {
		return fmt.Errorf("engine: widget %q: %w", id, apperr.ErrNotFound)
	}
	return e.DispatchEvent(h, ev, info)
}

// Lookup returns the handle of the live widget with the given id.
func (e *Engine) Lookup(id string) (render.Handle, bool) {
	e.wmu.Lock()
	defer e.wmu.Unlock()
	h, ok := e.ids[id]
	return h, ok
}

// Runtime returns the binding of the live widget with the given id.
func (e *Engine) Runtime(id string) (*binding.Runtime, bool) {
	e.wmu.Lock()
	defer e.wmu.Unlock()
	h, ok := e.ids[id]
	if !ok {
		return nil, false
	}
	w, ok := e.widgets[h]
	if !ok {
		return nil, false
	}
	return w.runtime, true
}

// WidgetIDs returns the ids of live widgets.
func (e *Engine) WidgetIDs() []string {
	e.wmu.Lock()
	defer e.wmu.Unlock()
	out := make([]string, 0, len(e.ids))
	for id := range e.ids {
		out = append(out, id)
	}
	return out
}

// LiveWidgets returns the number of live bound widgets.
func (e *Engine) LiveWidgets() int {
	e.wmu.Lock()
	defer e.wmu.Unlock()
	return len(e.widgets)
}

// Tree snapshots the widget tree when the backend supports it.
func (e *Engine) Tree() *render.TreeNode {
	t, ok := e.backend.(interface {
		Tree(render.Handle) *render.TreeNode
	})
	if !ok {
		return nil
	}
	return t.Tree(e.backend.Root())
}

// handleTeardown releases the binding of a destroyed widget.
func (e *Engine) handleTeardown(h render.Handle) {
	e.wmu.Lock()
	w, ok := e.widgets[h]
	if ok {
		delete(e.widgets, h)
		if w.def.ID != "" && e.ids[w.def.ID] == h {
			delete(e.ids, w.def.ID)
		}
	}
	e.wmu.Unlock()
	if ok {
		w.runtime.Teardown()
	}
}

// Close tears down every widget and drops the document.
func (e *Engine) Close() {
	e.nav.Reset()
	if err := e.backend.DestroyChildren(e.backend.Root()); err != nil {
		e.logger.Warn("engine: teardown failed", slog.String("error", err.Error()))
	}
	e.mu.Lock()
	e.schema = nil
	e.docName = ""
	e.mu.Unlock()
}
