// Package control is the operation layer shared by the HTTP API and the MCP
// server. Every call that touches the engine runs on the UI loop through a
// Dispatcher.
package control

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cast"

	"github.com/starford/yamui/internal/apperr"
	"github.com/starford/yamui/internal/binding"
	"github.com/starford/yamui/internal/docstore"
	"github.com/starford/yamui/internal/engine"
	"github.com/starford/yamui/internal/render"
	"github.com/starford/yamui/internal/schema"
	"github.com/starford/yamui/internal/telemetry"
	"github.com/starford/yamui/internal/trace"
)

// Dispatcher runs fn on the UI loop and waits for it.
type Dispatcher interface {
	Do(ctx context.Context, fn func()) error
}

// Service exposes runtime operations to control surfaces.
type Service struct {
	eng     *engine.Engine
	loop    Dispatcher
	docs    *docstore.Store
	journal *trace.Journal
}

// NewService wires a service. docs and journal may be nil; the operations
// needing them then fail with apperr.ErrUnsupported.
func NewService(eng *engine.Engine, loop Dispatcher, docs *docstore.Store, journal *trace.Journal) *Service {
	return &Service{eng: eng, loop: loop, docs: docs, journal: journal}
}

// Info summarizes the running instance.
type Info struct {
	ID       string `json:"id"`
	Document string `json:"document"`
	Kind     string `json:"kind,omitempty"`
	Screen   string `json:"screen"`
	Widgets  int    `json:"widgets"`
}

// NavState is the navigation snapshot.
type NavState struct {
	Stack   []string `json:"stack"`
	Top     string   `json:"top"`
	Modals  []string `json:"modals"`
	Pending int      `json:"pending"`
}

// ScreenInfo describes one screen of the loaded document.
type ScreenInfo struct {
	Name    string `json:"name"`
	Title   string `json:"title,omitempty"`
	Initial bool   `json:"initial"`
	Current bool   `json:"current"`
	Widgets int    `json:"widgets"`
}

// DocumentInfo is a stored document and whether it is the active one.
type DocumentInfo struct {
	docstore.Doc
	Active bool `json:"active"`
}

// Report is the result of compiling a document without loading it.
type Report struct {
	Kind          string   `json:"kind"`
	InitialScreen string   `json:"initial_screen"`
	Screens       []string `json:"screens"`
	Components    []string `json:"components"`
	Styles        []string `json:"styles"`
}

func (s *Service) do(ctx context.Context, fn func() error) error {
	var err error
	if doErr := s.loop.Do(ctx, func() { err = fn() }); doErr != nil {
		return doErr
	}
	return err
}

// Info returns the instance summary.
func (s *Service) Info(ctx context.Context) (Info, error) {
	var out Info
	err := s.do(ctx, func() error {
		out = Info{
			ID:       s.eng.ID(),
			Document: s.eng.DocumentName(),
			Screen:   s.eng.Nav().Top(),
			Widgets:  s.eng.LiveWidgets(),
		}
		if sc := s.eng.Schema(); sc != nil {
			out.Kind = sc.Kind.String()
		}
		return nil
	})
	return out, err
}

// State returns a copy of every state entry.
func (s *Service) State(_ context.Context) map[string]string {
	return s.eng.Store().Snapshot()
}

// GetState returns one state value.
func (s *Service) GetState(_ context.Context, key string) (string, error) {
	v, ok := s.eng.Store().Lookup(key)
	if !ok {
		return "", fmt.Errorf("state %q: %w", key, apperr.ErrNotFound)
	}
	return v, nil
}

// SetState stores value under key. Numbers and booleans are converted to
// their string form.
func (s *Service) SetState(ctx context.Context, key string, value any) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", fmt.Errorf("state key: %w", apperr.ErrMissingArgument)
	}
	str, err := cast.ToStringE(value)
	if err != nil {
		return "", fmt.Errorf("state %q: value %v: %w", key, value, apperr.ErrInvalidShape)
	}
	err = s.do(ctx, func() error {
		s.eng.Store().Set(key, str)
		return nil
	})
	return str, err
}

// Nav returns the navigation snapshot.
func (s *Service) Nav(ctx context.Context) (NavState, error) {
	var out NavState
	err := s.do(ctx, func() error {
		n := s.eng.Nav()
		out = NavState{Stack: n.Stack(), Top: n.Top(), Modals: n.Modals(), Pending: n.Queue().Depth()}
		return nil
	})
	return out, err
}

// Navigate applies one navigation operation: goto, push, replace, pop,
// modal or close_modal.
func (s *Service) Navigate(ctx context.Context, op, target string) (NavState, error) {
	op = strings.ToLower(strings.TrimSpace(op))
	err := s.do(ctx, func() error {
		switch op {
		case "goto":
			return s.eng.Goto(target)
		case "push":
			return s.eng.Push(target)
		case "replace":
			return s.eng.Replace(target)
		case "pop":
			return s.eng.Pop()
		case "modal", "show_modal":
			return s.eng.ShowModal(target)
		case "close_modal":
			return s.eng.CloseModal()
		}
		return fmt.Errorf("navigate %q: %w", op, apperr.ErrUnsupported)
	})
	if err != nil {
		return NavState{}, err
	}
	return s.Nav(ctx)
}

// Screens lists the screens of the loaded document.
func (s *Service) Screens(ctx context.Context) ([]ScreenInfo, error) {
	var out []ScreenInfo
	err := s.do(ctx, func() error {
		sc := s.eng.Schema()
		if sc == nil {
			return fmt.Errorf("no document loaded: %w", apperr.ErrNotFound)
		}
		top := s.eng.Nav().Top()
		out = make([]ScreenInfo, 0, len(sc.ScreenNames()))
		for _, name := range sc.ScreenNames() {
			info := ScreenInfo{Name: name, Initial: name == sc.InitialScreen(), Current: name == top}
			if scr, err := sc.Screen(name); err == nil {
				info.Title = scr.Title
				info.Widgets = len(scr.Widgets)
			}
			out = append(out, info)
		}
		return nil
	})
	return out, err
}

// Tree snapshots the live widget tree.
func (s *Service) Tree(ctx context.Context) (*render.TreeNode, error) {
	var out *render.TreeNode
	err := s.do(ctx, func() error {
		out = s.eng.Tree()
		if out == nil {
			return fmt.Errorf("widget tree: %w", apperr.ErrUnsupported)
		}
		return nil
	})
	return out, err
}

// Dispatch delivers an event to the widget with the given id.
func (s *Service) Dispatch(ctx context.Context, id, event string, info binding.EventInfo) error {
	ev, ok := schema.ParseEvent(event)
	if !ok {
		return fmt.Errorf("event %q: %w", event, apperr.ErrUnsupported)
	}
	return s.do(ctx, func() error {
		return s.eng.DispatchByID(id, ev, info)
	})
}

// CallNative calls a registered native function with args converted to
// strings.
func (s *Service) CallNative(ctx context.Context, name string, args []any) error {
	strs := make([]string, 0, len(args))
	for _, a := range args {
		v, err := cast.ToStringE(a)
		if err != nil {
			return fmt.Errorf("native %s: argument %v: %w", name, a, apperr.ErrInvalidShape)
		}
		strs = append(strs, v)
	}
	return s.do(ctx, func() error {
		return s.eng.CallNative(name, strs)
	})
}

// Natives lists the registered native functions.
func (s *Service) Natives() []string { return s.eng.Natives().Names() }

// Documents lists stored documents.
func (s *Service) Documents(_ context.Context) ([]DocumentInfo, error) {
	if s.docs == nil {
		return nil, fmt.Errorf("documents: %w", apperr.ErrUnsupported)
	}
	docs, err := s.docs.List()
	if err != nil {
		return nil, err
	}
	active := s.eng.DocumentName()
	out := make([]DocumentInfo, len(docs))
	for i, d := range docs {
		out[i] = DocumentInfo{Doc: d, Active: strings.EqualFold(d.Name, active)}
	}
	return out, nil
}

// ReadDocument returns the stored bytes of a document.
func (s *Service) ReadDocument(_ context.Context, name string) (docstore.Doc, []byte, error) {
	if s.docs == nil {
		return docstore.Doc{}, nil, fmt.Errorf("documents: %w", apperr.ErrUnsupported)
	}
	d, err := s.docs.Stat(name)
	if err != nil {
		return docstore.Doc{}, nil, err
	}
	data, err := s.docs.Read(name)
	return d, data, err
}

// LoadDocument makes the stored document active.
func (s *Service) LoadDocument(ctx context.Context, name string) (Info, error) {
	if s.docs == nil {
		return Info{}, fmt.Errorf("documents: %w", apperr.ErrUnsupported)
	}
	d, err := s.docs.Stat(name)
	if err != nil {
		return Info{}, err
	}
	data, err := s.docs.Read(d.Name)
	if err != nil {
		return Info{}, err
	}
	if err := s.do(ctx, func() error { return s.eng.Load(d.Name, data) }); err != nil {
		return Info{}, err
	}
	return s.Info(ctx)
}

// PutDocument validates and stores a document. A non-empty ifMatch must
// equal the checksum of the stored version. Replacing the active document
// reloads it.
func (s *Service) PutDocument(ctx context.Context, name string, content []byte, ifMatch string) (docstore.Doc, error) {
	if s.docs == nil {
		return docstore.Doc{}, fmt.Errorf("documents: %w", apperr.ErrUnsupported)
	}
	if _, err := s.eng.Compile(content); err != nil {
		return docstore.Doc{}, err
	}
	d, err := s.docs.WriteIf(name, content, ifMatch)
	if err != nil {
		return docstore.Doc{}, err
	}
	if strings.EqualFold(d.Name, s.eng.DocumentName()) {
		if err := s.do(ctx, func() error { return s.eng.Load(d.Name, content) }); err != nil {
			return d, err
		}
	}
	return d, nil
}

// Reload reloads d when it is the active document and reports whether it
// was. A failing reload keeps the previous document active.
func (s *Service) Reload(ctx context.Context, d docstore.Doc, data []byte) (bool, error) {
	if !strings.EqualFold(d.Name, s.eng.DocumentName()) {
		return false, nil
	}
	return true, s.do(ctx, func() error { return s.eng.Load(d.Name, data) })
}

// Check compiles a document without loading it.
func (s *Service) Check(content []byte) (Report, error) {
	sc, err := s.eng.Compile(content)
	if err != nil {
		return Report{}, err
	}
	return NewReport(sc), nil
}

// NewReport summarizes a compiled schema.
func NewReport(sc *schema.Schema) Report {
	r := Report{
		Kind:          sc.Kind.String(),
		InitialScreen: sc.InitialScreen(),
		Screens:       sc.ScreenNames(),
		Components:    sc.ComponentNames(),
		Styles:        sc.StyleNames(),
	}
	for _, f := range []*[]string{&r.Screens, &r.Components, &r.Styles} {
		if *f == nil {
			*f = []string{}
		}
	}
	return r
}

// Trace returns recent journal records, newest first.
func (s *Service) Trace(_ context.Context, limit int, typ string) ([]trace.Record, error) {
	if s.journal == nil {
		return nil, fmt.Errorf("trace: %w", apperr.ErrUnsupported)
	}
	return s.journal.Recent(limit, telemetry.Type(typ))
}
