package render

import (
	"sort"
	"strings"
)

// SymbolPrefix marks an img source that names a built-in glyph.
const SymbolPrefix = "symbol:"

// Glyphs use the FontAwesome private-use code points shipped with the
// display font.
var symbols = map[string]string{
	"ok":           "",
	"close":        "",
	"power":        "",
	"settings":     "",
	"home":         "",
	"refresh":      "",
	"wifi":         "",
	"bell":         "",
	"warning":      "",
	"plus":         "",
	"minus":        "",
	"left":         "",
	"right":        "",
	"up":           "",
	"down":         "",
	"battery_full": "",
	"gps":          "",
	"trash":        "",
	"edit":         "",
}

// Symbol returns the glyph for name, ignoring case.
func Symbol(name string) (string, bool) {
	g, ok := symbols[strings.ToLower(strings.TrimSpace(name))]
	return g, ok
}

// SymbolNames lists the known glyph names.
func SymbolNames() []string {
	names := make([]string, 0, len(symbols))
	for n := range symbols {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
