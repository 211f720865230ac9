package schema

import (
	"fmt"
	"regexp"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/yamui/internal/apperr"
	"github.com/starford/yamui/internal/yamlcore"
)

// Style defaults.
const (
	DefaultRadius  = 16
	DefaultPadding = 12
)

var colorPattern = regexp.MustCompile(`^#([0-9A-Fa-f]{6})$`)

// Style is a named set of visual attributes. Empty strings and zero values
// leave the renderer default in place.
type Style struct {
	Name        string `json:"name"`
	BgColor     string `json:"bg_color,omitempty"`
	TextColor   string `json:"text_color,omitempty"`
	AccentColor string `json:"accent_color,omitempty"`
	BorderColor string `json:"border_color,omitempty"`
	Radius      int    `json:"radius"`
	Padding     int    `json:"padding"`
	PaddingX    int    `json:"padding_x"`
	PaddingY    int    `json:"padding_y"`
	Font        string `json:"font,omitempty"`
	TextAlign   string `json:"text_align,omitempty"`
	Shadow      int    `json:"shadow,omitempty"`
}

// Validate checks colors, sizes and alignment names.
func (s *Style) Validate() error {
	color := validation.Match(colorPattern).Error("must be a #RRGGBB color")
	return validation.ValidateStruct(s,
		validation.Field(&s.BgColor, color),
		validation.Field(&s.TextColor, color),
		validation.Field(&s.AccentColor, color),
		validation.Field(&s.BorderColor, color),
		validation.Field(&s.Radius, validation.Min(0)),
		validation.Field(&s.Padding, validation.Min(0)),
		validation.Field(&s.PaddingX, validation.Min(0)),
		validation.Field(&s.PaddingY, validation.Min(0)),
		validation.Field(&s.Shadow, validation.Min(0)),
		validation.Field(&s.TextAlign, validation.In("left", "center", "right", "auto")),
	)
}

func compileStyle(n *yamlcore.Node) (*Style, error) {
	if n.Kind != yamlcore.KindMapping {
		return nil, fmt.Errorf("schema: line %d: style %q must be a mapping: %w", n.Line, n.Key, apperr.ErrInvalidShape)
	}
	s := &Style{
		Name:        n.Key,
		BgColor:     n.String("bg_color", ""),
		TextColor:   n.String("text_color", ""),
		AccentColor: n.String("accent_color", ""),
		BorderColor: n.String("border_color", ""),
		Radius:      n.Int("radius", DefaultRadius),
		Padding:     n.Int("padding", DefaultPadding),
		Font:        n.String("font", ""),
		TextAlign:   n.String("text_align", ""),
		Shadow:      n.Int("shadow", 0),
	}
	s.PaddingX = n.Int("padding_x", s.Padding)
	s.PaddingY = n.Int("padding_y", s.Padding)
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("schema: line %d: style %q: %v: %w", n.Line, n.Key, err, apperr.ErrInvalidShape)
	}
	return s, nil
}

// Layout types.
const (
	LayoutColumn = "column"
	LayoutRow    = "row"
	LayoutGrid   = "grid"
)

// DefaultGap separates children of a flex container.
const DefaultGap = 12

var alignments = []any{"start", "center", "end", "space_between", "space_around", "space_evenly", "stretch"}

// Layout describes how a container arranges its children.
type Layout struct {
	Type    string `json:"type"`
	Gap     int    `json:"gap"`
	Align   string `json:"align,omitempty"`
	Justify string `json:"justify,omitempty"`
	Padding int    `json:"padding,omitempty"`
	// Columns is only set on grid layouts.
	Columns int `json:"columns,omitempty"`
	// RowGap is the vertical spacing of grid layouts.
	RowGap     int    `json:"row_gap,omitempty"`
	Background string `json:"background,omitempty"`
}

// Validate checks the layout type and alignment names.
func (l *Layout) Validate() error {
	return validation.ValidateStruct(l,
		validation.Field(&l.Type, validation.Required, validation.In(LayoutColumn, LayoutRow, LayoutGrid)),
		validation.Field(&l.Gap, validation.Min(0)),
		validation.Field(&l.Padding, validation.Min(0)),
		validation.Field(&l.Align, validation.In(alignments...)),
		validation.Field(&l.Justify, validation.In(alignments...)),
		validation.Field(&l.Columns, validation.Min(0)),
		validation.Field(&l.Background, validation.Match(colorPattern)),
	)
}

// compileLayout reads a layout block. A missing block yields the default
// layout of type def.
func compileLayout(n *yamlcore.Node, def string) (*Layout, error) {
	l := &Layout{Type: def, Gap: DefaultGap}
	if n == nil || n.Kind == yamlcore.KindEmpty {
		return l, nil
	}
	if n.Kind != yamlcore.KindMapping {
		return nil, fmt.Errorf("schema: line %d: layout must be a mapping: %w", n.Line, apperr.ErrInvalidShape)
	}
	l.Type = n.String("type", def)
	l.Gap = n.Int("gap", DefaultGap)
	l.Align = n.String("align", "")
	l.Justify = n.String("justify", "")
	l.Padding = n.Int("padding", 0)
	if l.Type == LayoutGrid {
		return nil, fmt.Errorf("schema: line %d: layout type grid is reserved for sensor dashboards: %w", n.Line, apperr.ErrInvalidShape)
	}
	if err := l.Validate(); err != nil {
		return nil, fmt.Errorf("schema: line %d: layout: %v: %w", n.Line, err, apperr.ErrInvalidShape)
	}
	return l, nil
}
