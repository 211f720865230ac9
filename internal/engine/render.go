package engine

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/starford/yamui/internal/apperr"
	"github.com/starford/yamui/internal/binding"
	"github.com/starford/yamui/internal/render"
	"github.com/starford/yamui/internal/schema"
	"github.com/starford/yamui/internal/telemetry"
)

// screenRenderer adapts the engine to nav.Renderer.
type screenRenderer struct{ e *Engine }

func (r screenRenderer) ScreenExists(name string) bool {
	s := r.e.Schema()
	return s != nil && s.HasScreen(name)
}

func (r screenRenderer) RenderScreen(name string) error { return r.e.renderScreen(name) }

func (r screenRenderer) ShowModal(component string) (any, error) {
	return r.e.showModal(component)
}

func (r screenRenderer) CloseModal(handle any) { r.e.closeModal(handle) }

func (e *Engine) renderScreen(name string) error {
	s := e.Schema()
	if s == nil {
		return fmt.Errorf("engine: no document loaded: %w", apperr.ErrScreenNotFound)
	}
	scr, err := s.Screen(name)
	if err != nil {
		return err
	}
	start := time.Now()
	root := e.backend.Root()
	if err := e.backend.DestroyChildren(root); err != nil {
		return fmt.Errorf("engine: clear screen: %w", err)
	}

	attrs := layoutAttrs(render.Attrs{"name": scr.Name, "title": scr.Title}, scr.Layout)
	h, err := e.backend.Create(render.KindScreen, attrs, root)
	if err != nil {
		return fmt.Errorf("engine: create screen %s: %w", scr.Name, err)
	}
	rc := &renderCtx{schema: s}
	if err := e.renderWidgets(rc, scr.Widgets, h, nil, 0); err != nil {
		return fmt.Errorf("engine: render screen %s: %w", scr.Name, err)
	}

	elapsed := time.Since(start)
	e.logger.Debug("engine: screen rendered",
		slog.String("category", "render"),
		slog.String("screen", scr.Name),
		slog.Int("widgets", rc.count),
		slog.Duration("elapsed", elapsed))
	e.emit(telemetry.Event{Type: telemetry.TypeScreenLoad, Subject: scr.Name, Value: float64(rc.count)})
	e.emit(telemetry.Event{Type: telemetry.TypePerf, Subject: "render:" + scr.Name, Value: float64(elapsed.Microseconds()) / 1000})

	if len(scr.OnLoad) > 0 {
		if err := e.exec.Execute(scr.OnLoad, binding.Resolver(nil, e.store)); err != nil {
			e.logger.Warn("engine: on_load failed",
				slog.String("category", "action"),
				slog.String("screen", scr.Name),
				slog.String("error", err.Error()))
		}
	}
	return nil
}

type renderCtx struct {
	schema *schema.Schema
	count  int
}

func (e *Engine) renderWidgets(rc *renderCtx, ws []*schema.Widget, parent render.Handle, sc *binding.Scope, depth int) error {
	for _, w := range ws {
		if err := e.renderWidget(rc, w, parent, sc, depth); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) renderWidget(rc *renderCtx, w *schema.Widget, parent render.Handle, sc *binding.Scope, depth int) error {
	attrs := e.widgetAttrs(rc.schema, w)
	switch w.Kind {
	case schema.KindLabel:
		h, err := e.backend.Create(render.KindLabel, attrs, parent)
		if err != nil {
			return err
		}
		e.bind(h, h, w, sc)

	case schema.KindButton:
		h, err := e.backend.Create(render.KindButton, attrs, parent)
		if err != nil {
			return err
		}
		label, err := e.backend.Create(render.KindLabel, render.Attrs{}, h)
		if err != nil {
			return err
		}
		e.bind(h, label, w, sc)

	case schema.KindImg:
		if name, ok := strings.CutPrefix(w.Src, render.SymbolPrefix); ok {
			glyph, _ := render.Symbol(name)
			attrs["symbol"] = name
			attrs["text"] = glyph
			h, err := e.backend.Create(render.KindSymbol, attrs, parent)
			if err != nil {
				return err
			}
			e.track(h, w, sc)
			break
		}
		attrs["src"] = w.Src
		h, err := e.backend.Create(render.KindImage, attrs, parent)
		if err != nil {
			return err
		}
		e.track(h, w, sc)

	case schema.KindSpacer:
		attrs["size"] = strconv.Itoa(w.Size)
		if _, err := e.backend.Create(render.KindSpacer, attrs, parent); err != nil {
			return err
		}

	case schema.KindRow, schema.KindColumn, schema.KindPanel:
		kind := render.KindContainer
		if w.Kind == schema.KindPanel {
			kind = render.KindPanel
		}
		h, err := e.backend.Create(kind, layoutAttrs(attrs, w.Layout), parent)
		if err != nil {
			return err
		}
		e.track(h, w, sc)
		if err := e.renderWidgets(rc, w.Children, h, sc, depth); err != nil {
			return err
		}

	case schema.KindComponent:
		return e.renderComponent(rc, w, parent, sc, depth+1)

	default:
		e.logger.Warn("engine: skipping unsupported widget",
			slog.String("category", "render"),
			slog.String("type", w.Type),
			slog.Int("line", w.Line))
		return nil
	}
	rc.count++
	return nil
}

func (e *Engine) renderComponent(rc *renderCtx, w *schema.Widget, parent render.Handle, sc *binding.Scope, depth int) error {
	if depth > e.maxDepth {
		return fmt.Errorf("engine: component %s nested deeper than %d: %w", w.Component, e.maxDepth, apperr.ErrInvalidShape)
	}
	def, err := rc.schema.Component(w.Component)
	if err != nil {
		return err
	}
	props := make([]binding.Prop, 0, len(def.Props))
	for _, name := range def.Props {
		tmpl, ok := w.Props[name]
		if !ok {
			tmpl = def.Defaults[name]
		}
		props = append(props, binding.Prop{Name: name, Template: tmpl})
	}
	inner := binding.NewScope(sc, props)
	defer inner.Release()

	attrs := layoutAttrs(e.widgetAttrs(rc.schema, w), def.Layout)
	attrs["component"] = def.Name
	h, err := e.backend.Create(render.KindContainer, attrs, parent)
	if err != nil {
		return err
	}
	e.track(h, w, inner)
	rc.count++
	return e.renderWidgets(rc, def.Widgets, h, inner, depth)
}

// bind attaches a text binding that writes into target and registers the
// widget under h for events.
func (e *Engine) bind(h, target render.Handle, w *schema.Widget, sc *binding.Scope) {
	rt := binding.Bind(binding.Config{
		Text:  w.Text,
		Scope: sc,
		Store: e.store,
		Apply: func(text string) {
			if err := e.backend.SetText(target, text); err != nil {
				e.logger.Debug("engine: set text on destroyed widget",
					slog.String("category", "render"),
					slog.Uint64("handle", uint64(target)))
			}
		},
		Post: e.post,
	})
	e.register(h, w, rt)
}

// track registers a widget without text so it can receive events.
func (e *Engine) track(h render.Handle, w *schema.Widget, sc *binding.Scope) {
	if w.ID == "" && len(w.Events) == 0 {
		return
	}
	e.register(h, w, binding.Bind(binding.Config{Scope: sc, Store: e.store}))
}

func (e *Engine) register(h render.Handle, w *schema.Widget, rt *binding.Runtime) {
	e.wmu.Lock()
	defer e.wmu.Unlock()
	e.widgets[h] = &widget{handle: h, def: w, runtime: rt}
	if w.ID != "" {
		e.ids[w.ID] = h
	}
}

func (e *Engine) widgetAttrs(s *schema.Schema, w *schema.Widget) render.Attrs {
	a := render.Attrs{}
	set := func(k, v string) {
		if v != "" {
			a[k] = v
		}
	}
	set("id", w.ID)
	set("variant", w.Variant)
	set("width", w.Width)
	set("height", w.Height)
	set("align", w.Align)
	if w.Grow >= 0 {
		a["grow"] = strconv.Itoa(w.Grow)
	}
	if w.Style != "" {
		a["style"] = w.Style
		if st, ok := s.Style(w.Style); ok {
			set("bg_color", st.BgColor)
			set("text_color", st.TextColor)
			set("accent_color", st.AccentColor)
			set("border_color", st.BorderColor)
			set("font", st.Font)
			set("text_align", st.TextAlign)
			a["radius"] = strconv.Itoa(st.Radius)
			a["padding_x"] = strconv.Itoa(st.PaddingX)
			a["padding_y"] = strconv.Itoa(st.PaddingY)
			if st.Shadow > 0 {
				a["shadow"] = strconv.Itoa(st.Shadow)
			}
		} else {
			e.logger.Warn("engine: unknown style",
				slog.String("category", "render"),
				slog.String("style", w.Style),
				slog.Int("line", w.Line))
		}
	}
	return a
}

func layoutAttrs(a render.Attrs, l *schema.Layout) render.Attrs {
	if l == nil {
		return a
	}
	a["layout"] = l.Type
	a["gap"] = strconv.Itoa(l.Gap)
	if l.Align != "" {
		a["layout_align"] = l.Align
	}
	if l.Justify != "" {
		a["justify"] = l.Justify
	}
	if l.Padding > 0 {
		a["padding"] = strconv.Itoa(l.Padding)
	}
	if l.Columns > 0 {
		a["columns"] = strconv.Itoa(l.Columns)
		a["row_gap"] = strconv.Itoa(l.RowGap)
	}
	if l.Background != "" {
		a["background"] = l.Background
	}
	return a
}

// showModal renders component into an overlay above the current screen.
// Props take their default templates.
func (e *Engine) showModal(component string) (any, error) {
	s := e.Schema()
	if s == nil {
		return nil, fmt.Errorf("engine: no document loaded: %w", apperr.ErrComponentNotFound)
	}
	def, err := s.Component(component)
	if err != nil {
		return nil, err
	}
	overlay, err := e.backend.Create(render.KindOverlay, render.Attrs{"component": def.Name}, e.backend.Root())
	if err != nil {
		return nil, err
	}
	panel, err := e.backend.Create(render.KindPanel, layoutAttrs(render.Attrs{}, def.Layout), overlay)
	if err != nil {
		_ = e.backend.Destroy(overlay)
		return nil, err
	}
	props := make([]binding.Prop, 0, len(def.Props))
	for _, name := range def.Props {
		props = append(props, binding.Prop{Name: name, Template: def.Defaults[name]})
	}
	sc := binding.NewScope(nil, props)
	defer sc.Release()

	rc := &renderCtx{schema: s}
	if err := e.renderWidgets(rc, def.Widgets, panel, sc, 1); err != nil {
		_ = e.backend.Destroy(overlay)
		return nil, err
	}
	e.emit(telemetry.Event{Type: telemetry.TypeModal, Subject: def.Name, Detail: "open"})
	return overlay, nil
}

func (e *Engine) closeModal(handle any) {
	h, ok := handle.(render.Handle)
	if !ok {
		return
	}
	if err := e.backend.Destroy(h); err != nil {
		e.logger.Debug("engine: modal already gone", slog.Uint64("handle", uint64(h)))
	}
	e.emit(telemetry.Event{Type: telemetry.TypeModal, Detail: "close"})
}
