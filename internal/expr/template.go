package expr

import (
	"math"
	"strconv"
	"strings"
)

// Span is one piece of a template: literal text or the source of a {{ }}
// expression.
type Span struct {
	Text string
	Expr bool
}

// Spans splits a template into literal and expression spans. An unclosed
// "{{" is kept as literal text.
func Spans(tmpl string) []Span {
	var out []Span
	for tmpl != "" {
		open := strings.Index(tmpl, "{{")
		if open < 0 {
			out = append(out, Span{Text: tmpl})
			break
		}
		end := strings.Index(tmpl[open+2:], "}}")
		if end < 0 {
			out = append(out, Span{Text: tmpl})
			break
		}
		if open > 0 {
			out = append(out, Span{Text: tmpl[:open]})
		}
		out = append(out, Span{Text: tmpl[open+2 : open+2+end], Expr: true})
		tmpl = tmpl[open+2+end+2:]
	}
	return out
}

// HasExpr reports whether tmpl contains at least one {{ }} span.
func HasExpr(tmpl string) bool {
	for _, s := range Spans(tmpl) {
		if s.Expr {
			return true
		}
	}
	return false
}

// WholeExpr reports whether s, ignoring surrounding whitespace, is exactly
// one {{ }} span, and returns its source.
func WholeExpr(s string) (string, bool) {
	spans := Spans(strings.TrimSpace(s))
	if len(spans) != 1 || !spans[0].Expr {
		return "", false
	}
	return spans[0].Text, true
}

// Interpolate renders tmpl, replacing each {{ }} span by its value. A span
// that fails to evaluate renders as the empty string.
func Interpolate(tmpl string, r Resolver) string {
	if !strings.Contains(tmpl, "{{") {
		return tmpl
	}
	var b strings.Builder
	for _, s := range Spans(tmpl) {
		if !s.Expr {
			b.WriteString(s.Text)
			continue
		}
		if v, err := EvaluateToString(s.Text, r); err == nil {
			b.WriteString(v)
		}
	}
	return b.String()
}

// TemplateIdentifiers returns the distinct identifiers referenced by all
// expression spans of tmpl, in order of first appearance.
func TemplateIdentifiers(tmpl string) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, s := range Spans(tmpl) {
		if !s.Expr {
			continue
		}
		for _, id := range CollectIdentifiers(s.Text) {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out
}

// Literal renders v as expression source that evaluates back to an
// equivalent value. Strings that read as numbers or booleans are emitted
// bare so that substituted state values take part in arithmetic.
func Literal(v Value) string {
	switch v.kind {
	case KindNull:
		return "null"
	case KindBool, KindNumber:
		return v.String()
	}
	s := strings.TrimSpace(v.s)
	if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsInf(f, 0) && !math.IsNaN(f) && isPlainNumber(s) {
		return s
	}
	switch strings.ToLower(s) {
	case "true", "false":
		return strings.ToLower(s)
	}
	return `"` + literalEscaper.Replace(v.s) + `"`
}

var literalEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`, "\t", `\t`, "\r", `\r`)

func isPlainNumber(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !isDigit(c) && c != '.' && c != '-' && c != '+' && c != 'e' && c != 'E' {
			return false
		}
	}
	return true
}
