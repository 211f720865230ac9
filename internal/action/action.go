// Package action compiles event handler text such as "set(count, {{count}} + 1)"
// into action lists and executes them against a pluggable runtime.
package action

import (
	"fmt"
	"strings"

	"github.com/starford/yamui/internal/apperr"
	"github.com/starford/yamui/internal/yamlcore"
)

// MaxArgs is the number of arguments an action keeps.
const MaxArgs = 3

// Type identifies an action.
type Type int

const (
	TypeSet Type = iota + 1
	TypeGoto
	TypePush
	TypePop
	TypeModal
	TypeCloseModal
	TypeCall
	TypeEmit
)

var typeNames = map[Type]string{
	TypeSet:        "set",
	TypeGoto:       "goto",
	TypePush:       "push",
	TypePop:        "pop",
	TypeModal:      "modal",
	TypeCloseModal: "close_modal",
	TypeCall:       "call",
	TypeEmit:       "emit",
}

func (t Type) String() string {
	if n, ok := typeNames[t]; ok {
		return n
	}
	return fmt.Sprintf("action(%d)", int(t))
}

// LookupType resolves an action name, ignoring case.
func LookupType(name string) (Type, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for t, n := range typeNames {
		if n == name {
			return t, true
		}
	}
	return 0, false
}

// Action is one compiled operation. Args may contain {{ }} expressions that
// are resolved at execution time.
type Action struct {
	Type Type
	Args []string
	// Dropped counts arguments beyond MaxArgs that were discarded.
	Dropped int
}

// Arg returns argument i or the empty string.
func (a Action) Arg(i int) string {
	if i < len(a.Args) {
		return a.Args[i]
	}
	return ""
}

func (a Action) String() string {
	return a.Type.String() + "(" + strings.Join(a.Args, ", ") + ")"
}

// List is an ordered action sequence.
type List []Action

// Parse compiles one handler such as "goto(home)" or "close_modal".
func Parse(text string) (Action, error) {
	text = strings.TrimSpace(text)
	name, inner := text, ""
	if open := strings.IndexByte(text, '('); open >= 0 {
		end := strings.LastIndexByte(text, ')')
		if end < open {
			return Action{}, fmt.Errorf("action %q: missing closing parenthesis: %w", text, apperr.ErrInvalidShape)
		}
		if strings.TrimSpace(text[end+1:]) != "" {
			return Action{}, fmt.Errorf("action %q: text after closing parenthesis: %w", text, apperr.ErrInvalidShape)
		}
		name, inner = text[:open], text[open+1:end]
	}
	typ, ok := LookupType(name)
	if !ok {
		return Action{}, fmt.Errorf("action %q: %w", strings.TrimSpace(name), apperr.ErrUnknownAction)
	}

	a := Action{Type: typ}
	args := splitArgs(inner)
	if len(args) > MaxArgs {
		a.Dropped = len(args) - MaxArgs
		args = args[:MaxArgs]
	}
	a.Args = args

	switch typ {
	case TypeSet, TypeGoto, TypePush, TypeModal, TypeCall, TypeEmit:
		if strings.TrimSpace(a.Arg(0)) == "" {
			return Action{}, fmt.Errorf("action %s: first argument is required: %w", typ, apperr.ErrMissingArgument)
		}
	}
	return a, nil
}

// Compile accepts a scalar handler or a sequence of scalar handlers. A nil
// or empty node compiles to an empty list.
func Compile(n *yamlcore.Node) (List, error) {
	if n == nil {
		return nil, nil
	}
	switch n.Kind {
	case yamlcore.KindEmpty:
		return nil, nil
	case yamlcore.KindScalar:
		if strings.TrimSpace(n.Value) == "" {
			return nil, nil
		}
		a, err := Parse(n.Value)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", n.Line, err)
		}
		return List{a}, nil
	case yamlcore.KindSequence:
		list := make(List, 0, len(n.Children))
		for _, c := range n.Children {
			if c.Kind != yamlcore.KindScalar {
				return nil, fmt.Errorf("line %d: action entries must be scalars, got %s: %w", c.Line, c.Kind, apperr.ErrInvalidShape)
			}
			a, err := Parse(c.Value)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", c.Line, err)
			}
			list = append(list, a)
		}
		return list, nil
	default:
		return nil, fmt.Errorf("line %d: actions must be a scalar or a sequence, got %s: %w", n.Line, n.Kind, apperr.ErrInvalidShape)
	}
}

// splitArgs splits on commas that are outside quotes and {{ }} spans, then
// trims each argument and strips one level of surrounding quotes.
func splitArgs(inner string) []string {
	if strings.TrimSpace(inner) == "" {
		return nil
	}
	var (
		out   []string
		quote byte
		depth int
		start int
	)
	for i := 0; i < len(inner); i++ {
		c := inner[i]
		if quote != 0 {
			if c == '\\' {
				i++
			} else if c == quote {
				quote = 0
			}
			continue
		}
		switch {
		case c == '"' || c == '\'':
			quote = c
		case c == '{' && i+1 < len(inner) && inner[i+1] == '{':
			depth++
			i++
		case c == '}' && i+1 < len(inner) && inner[i+1] == '}' && depth > 0:
			depth--
			i++
		case c == ',' && depth == 0:
			out = append(out, cleanArg(inner[start:i]))
			start = i + 1
		}
	}
	return append(out, cleanArg(inner[start:]))
}

func cleanArg(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && (s[0] == '"' || s[0] == '\'') && s[len(s)-1] == s[0] {
		return unescape(s[1 : len(s)-1])
	}
	return s
}

func unescape(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			i++
			switch s[i] {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			case 'r':
				b.WriteByte('\r')
			default:
				b.WriteByte(s[i])
			}
			continue
		}
		b.WriteByte(s[i])
	}
	return b.String()
}
