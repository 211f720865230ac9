package engine

import (
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/starford/yamui/internal/apperr"
	"github.com/starford/yamui/internal/binding"
	"github.com/starford/yamui/internal/render"
	"github.com/starford/yamui/internal/schema"
	"github.com/starford/yamui/internal/telemetry"
)

const counterDoc = `
app:
  initial_screen: home
state:
  count: "0"
  label: global
styles:
  card:
    bg_color: "#112233"
components:
  stat_card:
    props:
      - label
      - value
    widgets:
      - type: label
        id: stat_text
        text: "{{label}}: {{value}}"
  confirm:
    widgets:
      - type: label
        text: Sure?
      - type: button
        id: confirm_ok
        text: OK
        on_click: close_modal()
screens:
  home:
    title: Counter
    widgets:
      - type: label
        id: count_label
        style: card
        text: "{{count}}"
      - type: button
        id: inc
        text: Add
        on_click: set(count, {{count}} + 1)
      - type: stat_card
        label: Clicks
        value: "{{count}}"
      - type: gauge
        text: dropped
      - type: img
        id: ok_icon
        src: symbol:ok
    on_load:
      - set(loaded, yes)
  settings:
    widgets:
      - type: label
        text: Settings
      - type: button
        id: back
        text: Back
        on_click: goto(home)
`

func newTestEngine(t *testing.T, opts ...Option) (*Engine, *render.Memory, *telemetry.Recorder) {
	t.Helper()
	mem := render.NewMemory()
	rec := &telemetry.Recorder{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	opts = append([]Option{WithBackend(mem), WithSink(rec), WithLogger(logger)}, opts...)
	return New(opts...), mem, rec
}

func mustLoad(t *testing.T, e *Engine, doc string) {
	t.Helper()
	if err := e.Load("test.yaml", []byte(doc)); err != nil {
		t.Fatalf("Load: %v", err)
	}
}

func click(t *testing.T, e *Engine, id string) {
	t.Helper()
	if err := e.DispatchByID(id, schema.EventClick, binding.EventInfo{}); err != nil {
		t.Fatalf("click %s: %v", id, err)
	}
}

func textOf(t *testing.T, e *Engine, mem *render.Memory, id string) string {
	t.Helper()
	h, ok := e.Lookup(id)
	if !ok {
		t.Fatalf("widget %q not live", id)
	}
	txt, _ := mem.Text(h)
	return txt
}

func TestCounterEndToEnd(t *testing.T) {
	e, mem, rec := newTestEngine(t)
	mustLoad(t, e, counterDoc)

	if got := textOf(t, e, mem, "count_label"); got != "0" {
		t.Fatalf("initial text = %q", got)
	}
	for i := 0; i < 3; i++ {
		click(t, e, "inc")
	}
	if got := e.Store().Get("count", ""); got != "3" {
		t.Fatalf("count = %q", got)
	}
	if got := textOf(t, e, mem, "count_label"); got != "3" {
		t.Errorf("label text = %q", got)
	}
	rt, ok := e.Runtime("count_label")
	if !ok {
		t.Fatal("no runtime for count_label")
	}
	if rt.Refreshes() != 3 {
		t.Errorf("refreshes = %d", rt.Refreshes())
	}
	h, _ := e.Lookup("count_label")
	if n := mem.TextUpdates(h); n != 4 {
		t.Errorf("text updates = %d, want initial apply plus 3", n)
	}
	if got := len(rec.OfType(telemetry.TypeEvent)); got != 3 {
		t.Errorf("event telemetry = %d", got)
	}
	if got := rec.OfType(telemetry.TypeScreenLoad); len(got) != 1 || got[0].Subject != "home" {
		t.Errorf("screen_load = %+v", got)
	}
}

func TestButtonTextOnInnerLabel(t *testing.T) {
	e, _, _ := newTestEngine(t)
	mustLoad(t, e, counterDoc)
	btn := e.Tree().Find(func(n *render.TreeNode) bool {
		return n.Kind == render.KindButton && n.Attrs["id"] == "inc"
	})
	if btn == nil {
		t.Fatal("button not rendered")
	}
	if diff := cmp.Diff([]string{"Add"}, btn.Texts()); diff != "" {
		t.Errorf("button texts (-want +got):\n%s", diff)
	}
}

func TestStyleAttrsResolved(t *testing.T) {
	e, _, _ := newTestEngine(t)
	mustLoad(t, e, counterDoc)
	n := e.Tree().Find(func(n *render.TreeNode) bool { return n.Attrs["id"] == "count_label" })
	if n == nil {
		t.Fatal("label not rendered")
	}
	if n.Attrs["style"] != "card" || n.Attrs["bg_color"] != "#112233" || n.Attrs["radius"] != "16" {
		t.Errorf("attrs = %v", n.Attrs)
	}
}

func TestComponentPropShadowsState(t *testing.T) {
	e, mem, _ := newTestEngine(t)
	mustLoad(t, e, counterDoc)
	if got := textOf(t, e, mem, "stat_text"); got != "Clicks: 0" {
		t.Fatalf("stat text = %q", got)
	}
	click(t, e, "inc")
	if got := textOf(t, e, mem, "stat_text"); got != "Clicks: 1" {
		t.Errorf("stat text after click = %q", got)
	}
	e.Store().Set("label", "changed")
	if got := textOf(t, e, mem, "stat_text"); got != "Clicks: 1" {
		t.Errorf("global label leaked into prop: %q", got)
	}
}

func TestSymbolAndUnknownWidget(t *testing.T) {
	e, _, _ := newTestEngine(t)
	mustLoad(t, e, counterDoc)
	tree := e.Tree()
	sym := tree.Find(func(n *render.TreeNode) bool { return n.Kind == render.KindSymbol })
	if sym == nil || sym.Attrs["symbol"] != "ok" {
		t.Fatalf("symbol node = %+v", sym)
	}
	want, _ := render.Symbol("ok")
	if sym.Text != want {
		t.Errorf("glyph = %q", sym.Text)
	}
	for _, txt := range tree.Texts() {
		if txt == "dropped" {
			t.Error("unsupported widget was rendered")
		}
	}
}

func TestOnLoadRuns(t *testing.T) {
	e, _, _ := newTestEngine(t)
	mustLoad(t, e, counterDoc)
	if got := e.Store().Get("loaded", ""); got != "yes" {
		t.Errorf("loaded = %q", got)
	}
}

func TestNavigationTearsDownBindings(t *testing.T) {
	e, _, _ := newTestEngine(t)
	mustLoad(t, e, counterDoc)
	rt, _ := e.Runtime("count_label")
	if err := e.Goto("settings"); err != nil {
		t.Fatalf("Goto: %v", err)
	}
	if !rt.TornDown() {
		t.Error("old runtime still live")
	}
	if _, ok := e.Runtime("count_label"); ok {
		t.Error("count_label still registered")
	}
	// Only the engine's own telemetry watch remains.
	if n := e.Store().WatchCount(); n != 1 {
		t.Errorf("watch count = %d", n)
	}
	click(t, e, "back")
	if diff := cmp.Diff([]string{"home"}, e.Nav().Stack()); diff != "" {
		t.Errorf("stack (-want +got):\n%s", diff)
	}
	if _, ok := e.Runtime("count_label"); !ok {
		t.Error("home not rendered again")
	}
}

func TestLoadFailureKeepsDocument(t *testing.T) {
	e, mem, _ := newTestEngine(t)
	mustLoad(t, e, counterDoc)
	click(t, e, "inc")

	err := e.Load("broken.yaml", []byte("app:\n  title: nothing here\n"))
	if !errors.Is(err, apperr.ErrMissingSection) {
		t.Fatalf("err = %v", err)
	}
	if e.DocumentName() != "test.yaml" {
		t.Errorf("document = %q", e.DocumentName())
	}
	if got := textOf(t, e, mem, "count_label"); got != "1" {
		t.Errorf("label = %q", got)
	}
}

func TestHotReloadKeepsScreenAndState(t *testing.T) {
	e, _, _ := newTestEngine(t)
	mustLoad(t, e, counterDoc)
	click(t, e, "inc")
	if err := e.Goto("settings"); err != nil {
		t.Fatalf("Goto: %v", err)
	}

	mustLoad(t, e, strings.Replace(counterDoc, "text: Settings", "text: Preferences", 1))
	if top := e.Nav().Top(); top != "settings" {
		t.Errorf("top after reload = %q", top)
	}
	if got := e.Store().Get("count", ""); got != "1" {
		t.Errorf("count reseeded to %q", got)
	}
	found := false
	for _, txt := range e.Tree().Texts() {
		found = found || txt == "Preferences"
	}
	if !found {
		t.Error("reloaded screen not rendered")
	}

	mustLoad(t, e, strings.Replace(counterDoc, "  settings:", "  about:", 1))
	if top := e.Nav().Top(); top != "home" {
		t.Errorf("top after screen removed = %q", top)
	}
}

func TestComponentDepthLimit(t *testing.T) {
	doc := `
components:
  a:
    widgets:
      - type: b
  b:
    widgets:
      - type: c
  c:
    widgets:
      - type: label
        text: deep
screens:
  main:
    widgets:
      - type: a
`
	e, _, _ := newTestEngine(t, WithMaxComponentDepth(2))
	if err := e.Load("deep.yaml", []byte(doc)); !errors.Is(err, apperr.ErrInvalidShape) {
		t.Fatalf("err = %v, want ErrInvalidShape", err)
	}

	e, _, _ = newTestEngine(t, WithMaxComponentDepth(3))
	mustLoad(t, e, doc)
}

func TestModalLifecycle(t *testing.T) {
	e, mem, rec := newTestEngine(t)
	mustLoad(t, e, counterDoc)
	before := mem.Count()

	if err := e.ShowModal("confirm"); err != nil {
		t.Fatalf("ShowModal: %v", err)
	}
	if n := len(e.Nav().Modals()); n != 1 {
		t.Fatalf("modals = %d", n)
	}
	if e.Tree().Find(func(n *render.TreeNode) bool { return n.Kind == render.KindOverlay }) == nil {
		t.Fatal("overlay missing")
	}
	click(t, e, "confirm_ok")
	if n := len(e.Nav().Modals()); n != 0 {
		t.Errorf("modals after close = %d", n)
	}
	if mem.Count() != before {
		t.Errorf("objects = %d, want %d", mem.Count(), before)
	}
	if got := len(rec.OfType(telemetry.TypeModal)); got != 2 {
		t.Errorf("modal telemetry = %d", got)
	}

	if err := e.ShowModal("missing"); !errors.Is(err, apperr.ErrComponentNotFound) {
		t.Errorf("missing modal err = %v", err)
	}
}

func TestNativeCalls(t *testing.T) {
	doc := `
state:
  count: "2"
screens:
  main:
    widgets:
      - type: button
        id: beep
        text: Beep
        on_click:
          - call(beep, {{count}} * 2)
          - emit(beeped, done)
`
	e, _, _ := newTestEngine(t)
	var got, emitted []string
	e.Natives().Register("beep", func(args []string) error {
		got = args
		return nil
	})
	e.Natives().AddListener("beeped", func(event string, args []string) {
		emitted = append(emitted, event)
		emitted = append(emitted, args...)
	})
	mustLoad(t, e, doc)
	click(t, e, "beep")
	if diff := cmp.Diff([]string{"4"}, got); diff != "" {
		t.Errorf("native args (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"beeped", "done"}, emitted); diff != "" {
		t.Errorf("emitted (-want +got):\n%s", diff)
	}
}

func TestBuiltinNatives(t *testing.T) {
	e, _, _ := newTestEngine(t)
	mustLoad(t, e, counterDoc)
	if err := e.CallNative("ui_push", []string{"settings"}); err != nil {
		t.Fatalf("ui_push: %v", err)
	}
	if diff := cmp.Diff([]string{"home", "settings"}, e.Nav().Stack()); diff != "" {
		t.Errorf("stack (-want +got):\n%s", diff)
	}
	if err := e.CallNative("ui_pop", nil); err != nil {
		t.Fatalf("ui_pop: %v", err)
	}
	if err := e.CallNative("ui_pop", nil); !errors.Is(err, apperr.ErrCannotPopRoot) {
		t.Errorf("root pop err = %v", err)
	}
	if err := e.CallNative("nope", nil); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("unknown native err = %v", err)
	}
}

func TestDispatchErrors(t *testing.T) {
	e, _, _ := newTestEngine(t)
	mustLoad(t, e, counterDoc)
	if err := e.DispatchEvent(9999, schema.EventClick, binding.EventInfo{}); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("unknown handle err = %v", err)
	}
	if err := e.DispatchByID("inc", schema.EventFocus, binding.EventInfo{}); err != nil {
		t.Errorf("event without handlers err = %v", err)
	}
}

func TestSensorDashboard(t *testing.T) {
	doc := `
layout:
  columns: 2
sensor_templates:
  temperature:
    title: Temperature
    widgets:
      - type: label
        text: "{{temp}} C"
`
	e, _, _ := newTestEngine(t)
	e.Store().Set("temp", "21")
	mustLoad(t, e, doc)
	scr := e.Tree().Find(func(n *render.TreeNode) bool { return n.Kind == render.KindScreen })
	if scr == nil || scr.Attrs["layout"] != schema.LayoutGrid || scr.Attrs["columns"] != "2" {
		t.Fatalf("screen = %+v", scr)
	}
	if diff := cmp.Diff([]string{"Temperature", "21 C"}, scr.Texts()); diff != "" {
		t.Errorf("texts (-want +got):\n%s", diff)
	}
	e.Store().Set("temp", "22")
	if got := e.Tree().Texts(); got[len(got)-1] != "22 C" {
		t.Errorf("after update texts = %v", got)
	}
}

func TestPosterDefersRefresh(t *testing.T) {
	var pending []func()
	e, mem, _ := newTestEngine(t, WithPoster(func(fn func()) { pending = append(pending, fn) }))
	mustLoad(t, e, counterDoc)
	e.Store().Set("count", "7")
	if got := textOf(t, e, mem, "count_label"); got != "0" {
		t.Errorf("refresh ran before posted closure: %q", got)
	}
	for _, fn := range pending {
		fn()
	}
	if got := textOf(t, e, mem, "count_label"); got != "7" {
		t.Errorf("label = %q", got)
	}
}

func TestClose(t *testing.T) {
	e, mem, _ := newTestEngine(t)
	mustLoad(t, e, counterDoc)
	e.Close()
	if mem.Count() != 1 {
		t.Errorf("objects after close = %d", mem.Count())
	}
	if e.Schema() != nil || e.LiveWidgets() != 0 {
		t.Error("engine kept document state")
	}
}
