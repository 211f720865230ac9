// Package expr implements the expression language used inside {{ }} spans:
// arithmetic, string concatenation, comparisons, boolean logic, ternary and
// null-coalescing over Null, Bool, Number and String values.
package expr

import (
	"math"
	"strconv"
	"strings"
)

// Kind tags a Value.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	default:
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Value is the result of evaluating an expression. The zero Value is null.
type Value struct {
	kind Kind
	b    bool
	n    float64
	s    string
}

func Null() Value              { return Value{} }
func Bool(b bool) Value        { return Value{kind: KindBool, b: b} }
func Number(n float64) Value   { return Value{kind: KindNumber, n: n} }
func String(s string) Value    { return Value{kind: KindString, s: s} }
func (v Value) Kind() Kind     { return v.kind }
func (v Value) IsNull() bool   { return v.kind == KindNull }
func (v Value) IsString() bool { return v.kind == KindString }

// Truthy converts v to a boolean. Numbers are true when not within 1e-9 of
// zero, strings when non-empty.
func (v Value) Truthy() bool {
	switch v.kind {
	case KindBool:
		return v.b
	case KindNumber:
		return math.Abs(v.n) > 1e-9
	case KindString:
		return v.s != ""
	default:
		return false
	}
}

// Float converts v to a number. Strings that do not parse as numbers
// convert to their longest numeric prefix, or 0.
func (v Value) Float() float64 {
	switch v.kind {
	case KindNumber:
		return v.n
	case KindBool:
		if v.b {
			return 1
		}
		return 0
	case KindString:
		return parseNumberPrefix(v.s)
	default:
		return 0
	}
}

// String renders v the way it appears in interpolated text.
func (v Value) String() string {
	switch v.kind {
	case KindString:
		return v.s
	case KindNumber:
		return FormatNumber(v.n)
	case KindBool:
		if v.b {
			return "true"
		}
		return "false"
	default:
		return ""
	}
}

// FormatNumber rounds to three decimals and trims trailing zeros and point.
func FormatNumber(n float64) string {
	s := strconv.FormatFloat(n, 'f', 3, 64)
	if strings.ContainsRune(s, '.') {
		s = strings.TrimRight(s, "0")
		s = strings.TrimSuffix(s, ".")
	}
	if s == "-0" {
		return "0"
	}
	return s
}

func parseNumberPrefix(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	end := 0
	if end < len(s) && (s[end] == '+' || s[end] == '-') {
		end++
	}
	digits := false
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
		digits = true
	}
	if end < len(s) && s[end] == '.' {
		end++
		for end < len(s) && s[end] >= '0' && s[end] <= '9' {
			end++
			digits = true
		}
	}
	if !digits {
		return 0
	}
	f, err := strconv.ParseFloat(strings.TrimSuffix(s[:end], "."), 64)
	if err != nil {
		return 0
	}
	return f
}

func equal(a, b Value) bool {
	switch {
	case a.kind == KindString || b.kind == KindString:
		return a.String() == b.String()
	case a.kind == KindBool || b.kind == KindBool:
		return a.Truthy() == b.Truthy()
	default:
		return math.Abs(a.Float()-b.Float()) < 1e-6
	}
}
