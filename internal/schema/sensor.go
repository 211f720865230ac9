package schema

import (
	"fmt"
	"log/slog"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/yamui/internal/apperr"
	"github.com/starford/yamui/internal/yamlcore"
)

// SensorScreenName is the screen synthesized for sensor dashboards.
const SensorScreenName = "sensors"

// SensorLayout arranges sensor cards in a grid.
type SensorLayout struct {
	Columns    int
	HSpacing   int
	VSpacing   int
	Padding    int
	Background string
}

// DefaultSensorLayout is used for absent layout keys.
var DefaultSensorLayout = SensorLayout{
	Columns:    2,
	HSpacing:   16,
	VSpacing:   16,
	Padding:    18,
	Background: "#0F0F18",
}

// SensorTemplate is one card of a sensor dashboard.
type SensorTemplate struct {
	Name     string
	Title    string
	Subtitle string
	Style    string
	Widgets  []*Widget
}

// SensorDashboard is the compiled form of a sensor document.
type SensorDashboard struct {
	Layout    SensorLayout
	Templates []*SensorTemplate
}

func compileSensorLayout(n *yamlcore.Node) (SensorLayout, error) {
	l := DefaultSensorLayout
	if n == nil {
		return l, nil
	}
	l.Columns = n.Int("columns", l.Columns)
	l.HSpacing = n.Int("h_spacing", l.HSpacing)
	l.VSpacing = n.Int("v_spacing", l.VSpacing)
	l.Padding = n.Int("padding", l.Padding)
	l.Background = n.String("background_color", l.Background)
	err := validation.ValidateStruct(&l,
		validation.Field(&l.Columns, validation.Required, validation.Min(1)),
		validation.Field(&l.HSpacing, validation.Min(0)),
		validation.Field(&l.VSpacing, validation.Min(0)),
		validation.Field(&l.Padding, validation.Min(0)),
		validation.Field(&l.Background, validation.Match(colorPattern)),
	)
	if err != nil {
		return l, fmt.Errorf("schema: line %d: sensor layout: %v: %w", n.Line, err, apperr.ErrInvalidShape)
	}
	return l, nil
}

func compileSensorTemplates(n *yamlcore.Node, logger *slog.Logger) ([]*SensorTemplate, error) {
	if n.Kind != yamlcore.KindMapping || len(n.Children) == 0 {
		return nil, fmt.Errorf("schema: line %d: sensor_templates must be a non-empty mapping: %w", n.Line, apperr.ErrInvalidShape)
	}
	out := make([]*SensorTemplate, 0, len(n.Children))
	for _, c := range n.Children {
		if c.Kind != yamlcore.KindMapping {
			return nil, fmt.Errorf("schema: line %d: sensor template %q must be a mapping: %w", c.Line, c.Key, apperr.ErrInvalidShape)
		}
		tpl := &SensorTemplate{
			Name:     c.Key,
			Title:    c.String("title", c.Key),
			Subtitle: c.String("subtitle", ""),
			Style:    c.String("style", ""),
		}
		widgets := c.Child("widgets")
		if widgets != nil && widgets.Kind != yamlcore.KindSequence && widgets.Kind != yamlcore.KindEmpty {
			return nil, fmt.Errorf("schema: line %d: sensor template %q: widgets must be a sequence: %w", widgets.Line, c.Key, apperr.ErrInvalidShape)
		}
		var items []*yamlcore.Node
		if widgets != nil {
			items = widgets.Children
		}
		for _, wn := range items {
			typ := strings.TrimSpace(wn.String("type", ""))
			if typ != "label" {
				logger.Warn("schema: unsupported sensor widget type",
					slog.String("category", "render"),
					slog.String("template", c.Key),
					slog.String("type", typ))
				continue
			}
			text, ok := wn.Scalar("text")
			if !ok {
				return nil, fmt.Errorf("schema: line %d: sensor template %q: label without text: %w", wn.Line, c.Key, apperr.ErrInvalidShape)
			}
			w := &Widget{
				Kind:    KindLabel,
				Type:    typ,
				ID:      wn.String("id", ""),
				Text:    text,
				Variant: wn.String("variant", ""),
				Grow:    -1,
				Line:    wn.Line,
			}
			w.Bindings, _ = classify([]string{text}, nil)
			tpl.Widgets = append(tpl.Widgets, w)
		}
		out = append(out, tpl)
	}
	return out, nil
}

// sensorScreen arranges every template as a titled panel in a grid.
func sensorScreen(d *SensorDashboard) *Screen {
	s := &Screen{
		Name:  SensorScreenName,
		Title: "Sensors",
		Layout: &Layout{
			Type:       LayoutGrid,
			Columns:    d.Layout.Columns,
			Gap:        d.Layout.HSpacing,
			RowGap:     d.Layout.VSpacing,
			Padding:    d.Layout.Padding,
			Background: d.Layout.Background,
		},
	}
	for _, tpl := range d.Templates {
		card := &Widget{
			Kind:   KindPanel,
			Type:   "panel",
			ID:     "sensor." + tpl.Name,
			Style:  tpl.Style,
			Grow:   -1,
			Layout: &Layout{Type: LayoutColumn, Gap: DefaultGap / 2},
		}
		card.Children = append(card.Children, &Widget{Kind: KindLabel, Type: "label", Text: tpl.Title, Variant: "title", Grow: -1})
		if tpl.Subtitle != "" {
			card.Children = append(card.Children, &Widget{Kind: KindLabel, Type: "label", Text: tpl.Subtitle, Variant: "subtitle", Grow: -1})
		}
		card.Children = append(card.Children, tpl.Widgets...)
		for _, w := range card.Children[:len(card.Children)-len(tpl.Widgets)] {
			w.Bindings, _ = classify([]string{w.Text}, nil)
		}
		s.Widgets = append(s.Widgets, card)
	}
	return s
}
