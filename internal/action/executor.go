package action

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/starford/yamui/internal/apperr"
	"github.com/starford/yamui/internal/expr"
)

// Setter is the part of the state store the executor writes to.
type Setter interface {
	Set(key, value string) bool
}

// Handlers is the runtime table actions delegate to. A nil entry makes the
// corresponding action fail with apperr.ErrUnsupported.
type Handlers struct {
	Goto       func(screen string) error
	Push       func(screen string) error
	Pop        func() error
	ShowModal  func(component string) error
	CloseModal func() error
	CallNative func(name string, args []string) error
	EmitEvent  func(event string, args []string) error
}

// Observer is told about every executed action with its resolved arguments.
type Observer func(a Action, args []string, err error)

// Executor runs action lists.
type Executor struct {
	Store    Setter
	Handlers Handlers
	Observer Observer
	Logger   *slog.Logger
}

func (e *Executor) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}

// Execute runs every action in order with arguments resolved through r. A
// failing action does not stop the list; the first error is returned.
func (e *Executor) Execute(list List, r expr.Resolver) error {
	var first error
	for _, a := range list {
		args, err := e.resolveArgs(a, r)
		if err == nil {
			err = e.run(a, args)
		}
		if e.Observer != nil {
			e.Observer(a, args, err)
		}
		if err != nil {
			e.logger().Warn("action: failed",
				slog.String("category", "action"),
				slog.String("action", a.String()),
				slog.String("error", err.Error()))
			if first == nil {
				first = err
			}
		}
	}
	return first
}

func (e *Executor) resolveArgs(a Action, r expr.Resolver) ([]string, error) {
	if len(a.Args) == 0 {
		return nil, nil
	}
	out := make([]string, len(a.Args))
	for i, raw := range a.Args {
		v, err := ResolveArg(raw, r)
		if err != nil {
			return nil, fmt.Errorf("action %s: argument %d: %w", a.Type, i, err)
		}
		out[i] = v
	}
	return out, nil
}

func (e *Executor) run(a Action, args []string) error {
	arg := func(i int) string {
		if i < len(args) {
			return args[i]
		}
		return ""
	}
	unsupported := fmt.Errorf("action %s: no handler: %w", a.Type, apperr.ErrUnsupported)

	switch a.Type {
	case TypeSet:
		if e.Store == nil {
			return unsupported
		}
		key := strings.TrimSpace(arg(0))
		if key == "" {
			return fmt.Errorf("action set: key resolved to empty: %w", apperr.ErrMissingArgument)
		}
		e.Store.Set(key, arg(1))
		return nil
	case TypeGoto, TypePush, TypeModal:
		target := strings.TrimSpace(arg(0))
		if target == "" {
			return fmt.Errorf("action %s: target resolved to empty: %w", a.Type, apperr.ErrMissingArgument)
		}
		var h func(string) error
		switch a.Type {
		case TypeGoto:
			h = e.Handlers.Goto
		case TypePush:
			h = e.Handlers.Push
		default:
			h = e.Handlers.ShowModal
		}
		if h == nil {
			return unsupported
		}
		return h(target)
	case TypePop:
		if e.Handlers.Pop == nil {
			return unsupported
		}
		return e.Handlers.Pop()
	case TypeCloseModal:
		if e.Handlers.CloseModal == nil {
			return unsupported
		}
		return e.Handlers.CloseModal()
	case TypeCall, TypeEmit:
		name := strings.TrimSpace(arg(0))
		if name == "" {
			return fmt.Errorf("action %s: name resolved to empty: %w", a.Type, apperr.ErrMissingArgument)
		}
		h := e.Handlers.CallNative
		if a.Type == TypeEmit {
			h = e.Handlers.EmitEvent
		}
		if h == nil {
			return unsupported
		}
		return h(name, args[1:])
	}
	return fmt.Errorf("action %s: %w", a.Type, apperr.ErrUnknownAction)
}

// ResolveArg turns a raw argument into its runtime value.
//
// An argument that is exactly one {{expr}} evaluates expr. An argument that
// mixes {{ }} spans with arithmetic, such as "{{count}} + 1", is evaluated
// with each span replaced by the literal of its value. The literal text
// between spans must then hold only numbers, parentheses and operators set
// off by whitespace, so "{{y}}-{{m}}-{{d}}" and "{{a}}/{{b}}" stay text.
// Any other argument is interpolated as text.
func ResolveArg(raw string, r expr.Resolver) (string, error) {
	if inner, ok := expr.WholeExpr(raw); ok {
		return expr.EvaluateToString(inner, r)
	}
	if !expr.HasExpr(raw) {
		return raw, nil
	}
	if v, ok := evalComposite(raw, r); ok {
		return v, nil
	}
	return expr.Interpolate(raw, r), nil
}

func evalComposite(raw string, r expr.Resolver) (string, bool) {
	spans := expr.Spans(raw)
	operators := 0
	for _, s := range spans {
		if s.Expr {
			continue
		}
		n, ok := arithmeticText(s.Text)
		if !ok {
			return "", false
		}
		operators += n
	}
	if operators == 0 {
		return "", false
	}

	var b strings.Builder
	for _, s := range spans {
		if !s.Expr {
			b.WriteString(s.Text)
			continue
		}
		v, err := expr.Evaluate(s.Text, r)
		if err != nil {
			return "", false
		}
		b.WriteString(" ")
		b.WriteString(expr.Literal(v))
		b.WriteString(" ")
	}
	v, err := expr.EvaluateToString(b.String(), nil)
	if err != nil {
		return "", false
	}
	return v, true
}

const operatorChars = "+-*/%<>=!&|?:"

// arithmeticText reports whether s, a literal run between {{ }} spans, is
// made of numbers, parentheses and whitespace-delimited operators, and how
// many operators it holds.
func arithmeticText(s string) (int, bool) {
	isSpace := func(i int) bool { return i >= 0 && i < len(s) && (s[i] == ' ' || s[i] == '\t') }
	operators := 0
	for i := 0; i < len(s); {
		c := s[i]
		switch {
		case c == ' ' || c == '\t' || c == '(' || c == ')':
			i++
		case c >= '0' && c <= '9' || c == '.':
			for i < len(s) && (s[i] >= '0' && s[i] <= '9' || s[i] == '.') {
				i++
			}
		case strings.IndexByte(operatorChars, c) >= 0:
			j := i
			for j < len(s) && strings.IndexByte(operatorChars, s[j]) >= 0 {
				j++
			}
			if !isSpace(i-1) || !isSpace(j) {
				return 0, false
			}
			operators++
			i = j
		default:
			return 0, false
		}
	}
	return operators, true
}
