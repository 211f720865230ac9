package schema

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/starford/yamui/internal/action"
	"github.com/starford/yamui/internal/apperr"
	"github.com/starford/yamui/internal/state"
	"github.com/starford/yamui/internal/yamlcore"
)

const counterDoc = `
app:
  initial_screen: Home
  locale: en
state:
  count: "0"
  label: global
styles:
  card:
    bg_color: "#112233"
    radius: 8
components:
  stat_card:
    props:
      - label
      - value
    layout:
      type: row
      gap: 4
    widgets:
      - type: label
        text: "{{label}}: {{value}} of {{total}}"
screens:
  home:
    title: Counter
    widgets:
      - type: label
        id: count_label
        text: "{{count}}"
      - type: button
        id: inc
        text: Add
        on_click: set(count, {{count}} + 1)
      - type: stat_card
        label: Clicks
        value: "{{count}}"
      - type: row
        widgets:
          - type: spacer
          - type: img
            src: symbol:ok
    on_load:
      - set(loaded, yes)
  settings:
    widgets:
      - type: label
        text: Settings
`

func mustCompile(t *testing.T, doc string) *Schema {
	t.Helper()
	root, err := yamlcore.Parse([]byte(doc))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	s, err := Compile(root, nil)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	return s
}

func compileErr(t *testing.T, doc string) error {
	t.Helper()
	root, err := yamlcore.Parse([]byte(doc))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	s, err := Compile(root, nil)
	if err == nil {
		err = s.Validate()
	}
	return err
}

func TestCompileDocument(t *testing.T) {
	s := mustCompile(t, counterDoc)

	if s.Kind != DocUI {
		t.Errorf("Kind = %v", s.Kind)
	}
	if diff := cmp.Diff(App{InitialScreen: "home", Locale: "en"}, s.App); diff != "" {
		t.Errorf("app (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]state.Pair{{Key: "count", Value: "0"}, {Key: "label", Value: "global"}}, s.State); diff != "" {
		t.Errorf("state (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"home", "settings"}, s.ScreenNames()); diff != "" {
		t.Errorf("screens (-want +got):\n%s", diff)
	}
	if err := s.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	st, ok := s.Style("card")
	if !ok {
		t.Fatal("style card missing")
	}
	want := Style{Name: "card", BgColor: "#112233", Radius: 8, Padding: DefaultPadding, PaddingX: DefaultPadding, PaddingY: DefaultPadding}
	if diff := cmp.Diff(want, *st); diff != "" {
		t.Errorf("style (-want +got):\n%s", diff)
	}
}

func TestCompileScreen(t *testing.T) {
	s := mustCompile(t, counterDoc)
	home, err := s.Screen("HOME")
	if err != nil {
		t.Fatalf("Screen: %v", err)
	}
	if home.Name != "home" || home.Title != "Counter" {
		t.Errorf("screen = %q %q", home.Name, home.Title)
	}
	if home.Layout.Type != LayoutColumn || home.Layout.Gap != DefaultGap {
		t.Errorf("default layout = %+v", home.Layout)
	}
	if len(home.Widgets) != 4 {
		t.Fatalf("widgets = %d", len(home.Widgets))
	}

	label := home.Widgets[0]
	if label.Kind != KindLabel || label.ID != "count_label" {
		t.Errorf("label = %+v", label)
	}
	if diff := cmp.Diff([]string{"count"}, label.Bindings); diff != "" {
		t.Errorf("label bindings (-want +got):\n%s", diff)
	}

	button := home.Widgets[1]
	click := button.Events[EventClick]
	if len(click) != 1 || click[0].Type != action.TypeSet || click[0].Arg(1) != "{{count}} + 1" {
		t.Errorf("on_click = %v", click)
	}

	card := home.Widgets[2]
	if card.Kind != KindComponent || card.Component != "stat_card" {
		t.Fatalf("component ref = %+v", card)
	}
	if diff := cmp.Diff(map[string]string{"label": "Clicks", "value": "{{count}}"}, card.Props); diff != "" {
		t.Errorf("props (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"count"}, card.Bindings); diff != "" {
		t.Errorf("instance bindings (-want +got):\n%s", diff)
	}

	row := home.Widgets[3]
	if row.Kind != KindRow || row.Layout.Type != LayoutRow || len(row.Children) != 2 {
		t.Fatalf("row = %+v", row)
	}
	if row.Children[0].Size != DefaultSpacerSize || row.Children[1].Src != "symbol:ok" {
		t.Errorf("row children = %+v %+v", row.Children[0], row.Children[1])
	}

	if len(home.OnLoad) != 1 || home.OnLoad[0].Arg(0) != "loaded" {
		t.Errorf("on_load = %v", home.OnLoad)
	}

	again, _ := s.Screen("home")
	if again != home {
		t.Error("screen not cached")
	}
}

func TestComponentPropsShadowState(t *testing.T) {
	s := mustCompile(t, counterDoc)
	def, err := s.Component("stat_card")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"label", "value"}, def.Props); diff != "" {
		t.Errorf("props (-want +got):\n%s", diff)
	}
	if def.Layout.Type != LayoutRow || def.Layout.Gap != 4 {
		t.Errorf("layout = %+v", def.Layout)
	}
	w := def.Widgets[0]
	if diff := cmp.Diff([]string{"label", "value"}, w.PropRefs); diff != "" {
		t.Errorf("prop refs (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"total"}, w.Bindings); diff != "" {
		t.Errorf("state bindings (-want +got):\n%s", diff)
	}

	if _, err := s.Component("missing"); !errors.Is(err, apperr.ErrComponentNotFound) {
		t.Errorf("missing component err = %v", err)
	}
}

func TestPropDefaults(t *testing.T) {
	s := mustCompile(t, `
components:
  badge:
    props:
      text: none
      tone: info
    widgets:
      - type: label
        text: "{{text}}"
screens:
  main:
    widgets:
      - type: badge
        text: hi
`)
	main, err := s.Screen("main")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(map[string]string{"text": "hi", "tone": "info"}, main.Widgets[0].Props); diff != "" {
		t.Errorf("props (-want +got):\n%s", diff)
	}
}

func TestInitialScreenFallbacks(t *testing.T) {
	s := mustCompile(t, "screens:\n  a:\n    title: A\n  b:\n    initial: true\n")
	if s.InitialScreen() != "b" {
		t.Errorf("initial flag: %q", s.InitialScreen())
	}
	s = mustCompile(t, "screens:\n  first:\n    title: A\n  second:\n    title: B\n")
	if s.InitialScreen() != "first" {
		t.Errorf("first screen: %q", s.InitialScreen())
	}
	err := compileErr(t, "app:\n  initial_screen: nowhere\nscreens:\n  a:\n    title: A\n")
	if !errors.Is(err, apperr.ErrScreenNotFound) || !errors.Is(err, apperr.ErrInvalidShape) {
		t.Errorf("unknown initial screen err = %v", err)
	}
}

func TestCompileErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want error
	}{
		{"empty", "", apperr.ErrMissingSection},
		{"no screens", "app:\n  locale: en\n", apperr.ErrMissingSection},
		{"empty screens", "screens:\n", apperr.ErrMissingSection},
		{"root sequence", "- a\n- b\n", apperr.ErrInvalidShape},
		{"screens scalar", "screens: many\n", apperr.ErrInvalidShape},
		{"nested state", "state:\n  a:\n    b: c\nscreens:\n  x:\n    title: X\n", apperr.ErrInvalidShape},
		{"bad color", "styles:\n  s:\n    bg_color: red\nscreens:\n  x:\n    title: X\n", apperr.ErrInvalidShape},
		{"negative radius", "styles:\n  s:\n    radius: -1\nscreens:\n  x:\n    title: X\n", apperr.ErrInvalidShape},
		{"bad text align", "styles:\n  s:\n    text_align: diagonal\nscreens:\n  x:\n    title: X\n", apperr.ErrInvalidShape},
		{"bad layout", "screens:\n  x:\n    layout:\n      type: circle\n", apperr.ErrInvalidShape},
		{"bad justify", "screens:\n  x:\n    layout:\n      justify: sideways\n", apperr.ErrInvalidShape},
		{"widget without type", "screens:\n  x:\n    widgets:\n      - text: hi\n", apperr.ErrInvalidShape},
		{"widgets mapping", "screens:\n  x:\n    widgets:\n      a: b\n", apperr.ErrInvalidShape},
		{"bad width", "screens:\n  x:\n    widgets:\n      - type: label\n        width: wide\n", apperr.ErrInvalidShape},
		{"unknown action", "screens:\n  x:\n    widgets:\n      - type: button\n        on_click: explode()\n", apperr.ErrUnknownAction},
		{"on_load mapping", "screens:\n  x:\n    on_load:\n      a: b\n", apperr.ErrInvalidShape},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := compileErr(t, tt.doc); !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestComponentCycle(t *testing.T) {
	err := compileErr(t, `
components:
  a:
    widgets:
      - type: panel
        widgets:
          - type: b
  b:
    widgets:
      - type: a
screens:
  x:
    title: X
`)
	if !errors.Is(err, apperr.ErrInvalidShape) {
		t.Fatalf("err = %v", err)
	}
	if !strings.Contains(err.Error(), "a -> b -> a") {
		t.Errorf("cycle path missing from %q", err)
	}

	err = compileErr(t, "components:\n  self:\n    widgets:\n      - type: self\nscreens:\n  x:\n    title: X\n")
	if !errors.Is(err, apperr.ErrInvalidShape) {
		t.Fatalf("self reference err = %v", err)
	}
}

func TestUnknownWidgetTypeIsKept(t *testing.T) {
	s := mustCompile(t, "screens:\n  x:\n    widgets:\n      - type: slider\n      - type: label\n        text: ok\n")
	sc, err := s.Screen("x")
	if err != nil {
		t.Fatal(err)
	}
	if sc.Widgets[0].Kind != KindUnknown || sc.Widgets[1].Kind != KindLabel {
		t.Errorf("kinds = %v %v", sc.Widgets[0].Kind, sc.Widgets[1].Kind)
	}
}

func TestSensorDocument(t *testing.T) {
	s := mustCompile(t, `
layout:
  columns: 3
  padding: 10
styles:
  warm:
    bg_color: "#FF8800"
sensor_templates:
  temperature:
    title: Temperature
    subtitle: Living room
    style: warm
    widgets:
      - type: label
        text: "{{temp}} C"
        variant: value
      - type: gauge
        text: ignored
  humidity:
    widgets:
      - type: label
        text: "{{humidity}}%"
`)
	if s.Kind != DocSensor {
		t.Fatalf("Kind = %v", s.Kind)
	}
	want := SensorLayout{Columns: 3, HSpacing: 16, VSpacing: 16, Padding: 10, Background: "#0F0F18"}
	if diff := cmp.Diff(want, s.Sensor.Layout); diff != "" {
		t.Errorf("layout (-want +got):\n%s", diff)
	}
	if s.InitialScreen() != SensorScreenName {
		t.Errorf("initial = %q", s.InitialScreen())
	}
	sc, err := s.Screen(SensorScreenName)
	if err != nil {
		t.Fatal(err)
	}
	if sc.Layout.Type != LayoutGrid || sc.Layout.Columns != 3 {
		t.Errorf("screen layout = %+v", sc.Layout)
	}
	if len(sc.Widgets) != 2 {
		t.Fatalf("cards = %d", len(sc.Widgets))
	}
	temp := sc.Widgets[0]
	if temp.Style != "warm" || len(temp.Children) != 3 {
		t.Fatalf("temperature card = %+v", temp)
	}
	if diff := cmp.Diff([]string{"temp"}, temp.Children[2].Bindings); diff != "" {
		t.Errorf("bindings (-want +got):\n%s", diff)
	}
	if hum := sc.Widgets[1]; hum.Children[0].Text != "humidity" || len(hum.Children) != 2 {
		t.Errorf("humidity card = %+v", hum.Children)
	}
}

func TestSensorErrors(t *testing.T) {
	if err := compileErr(t, "sensor_templates:\n  t:\n    widgets:\n      - type: label\n"); !errors.Is(err, apperr.ErrInvalidShape) {
		t.Errorf("label without text err = %v", err)
	}
	if err := compileErr(t, "layout:\n  columns: 0\nsensor_templates:\n  t:\n    title: T\n"); !errors.Is(err, apperr.ErrInvalidShape) {
		t.Errorf("zero columns err = %v", err)
	}
}

func TestParseEvent(t *testing.T) {
	for in, want := range map[string]Event{"click": EventClick, "on_change": EventChange, "BLUR": EventBlur} {
		if got, ok := ParseEvent(in); !ok || got != want {
			t.Errorf("ParseEvent(%q) = %q %v", in, got, ok)
		}
	}
	if _, ok := ParseEvent("hover"); ok {
		t.Error("hover accepted")
	}
}
