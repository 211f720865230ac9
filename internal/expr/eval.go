package expr

import (
	"fmt"

	"github.com/starford/yamui/internal/apperr"
)

// Resolver looks up identifiers. A false result makes the identifier
// evaluate to the empty string.
type Resolver interface {
	Resolve(name string) (Value, bool)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(name string) (Value, bool)

func (f ResolverFunc) Resolve(name string) (Value, bool) { return f(name) }

// MapResolver resolves identifiers from a map of strings.
type MapResolver map[string]string

func (m MapResolver) Resolve(name string) (Value, bool) {
	v, ok := m[name]
	if !ok {
		return Value{}, false
	}
	return String(v), true
}

// Evaluate parses and evaluates src. Only the taken branch of a ternary and
// the right side of a non-short-circuited ?? are evaluated, so a resolver
// is never consulted for identifiers in skipped operands.
func Evaluate(src string, r Resolver) (Value, error) {
	n, err := Compile(src)
	if err != nil {
		return Value{}, err
	}
	return n.Eval(r)
}

// EvaluateToString evaluates src and renders the result as text.
func EvaluateToString(src string, r Resolver) (string, error) {
	v, err := Evaluate(src, r)
	if err != nil {
		return "", err
	}
	return v.String(), nil
}

// Expr is a parsed expression that can be evaluated repeatedly.
type Expr struct {
	root node
	src  string
}

// Compile parses src without evaluating it.
func Compile(src string) (*Expr, error) {
	p := &parser{lex: lexer{src: src}}
	if err := p.advance(); err != nil {
		return nil, err
	}
	root, err := p.ternary()
	if err != nil {
		return nil, err
	}
	if p.tok.kind != tokEOF {
		return nil, syntaxErr(p.tok.pos, "unexpected %s", p.tok.kind)
	}
	return &Expr{root: root, src: src}, nil
}

// Eval evaluates a compiled expression. A nil resolver resolves nothing.
func (e *Expr) Eval(r Resolver) (Value, error) {
	return e.root.eval(r)
}

func (e *Expr) String() string { return e.src }

type node interface {
	eval(r Resolver) (Value, error)
}

type literal struct{ v Value }

func (n literal) eval(Resolver) (Value, error) { return n.v, nil }

type ident struct{ name string }

func (n ident) eval(r Resolver) (Value, error) {
	if r != nil {
		if v, ok := r.Resolve(n.name); ok {
			return v, nil
		}
	}
	return String(""), nil
}

type unary struct {
	op      tokenKind
	operand node
}

func (n unary) eval(r Resolver) (Value, error) {
	v, err := n.operand.eval(r)
	if err != nil {
		return Value{}, err
	}
	if n.op == tokBang {
		return Bool(!v.Truthy()), nil
	}
	return Number(-v.Float()), nil
}

type binary struct {
	op          tokenKind
	left, right node
	pos         int
}

func (n binary) eval(r Resolver) (Value, error) {
	switch n.op {
	case tokAnd, tokOr:
		l, err := n.left.eval(r)
		if err != nil {
			return Value{}, err
		}
		if n.op == tokAnd && !l.Truthy() {
			return Bool(false), nil
		}
		if n.op == tokOr && l.Truthy() {
			return Bool(true), nil
		}
		rv, err := n.right.eval(r)
		if err != nil {
			return Value{}, err
		}
		return Bool(rv.Truthy()), nil
	case tokCoalesce:
		l, err := n.left.eval(r)
		if err != nil {
			return Value{}, err
		}
		if !l.IsNull() && !(l.IsString() && l.s == "") {
			return l, nil
		}
		return n.right.eval(r)
	}

	l, err := n.left.eval(r)
	if err != nil {
		return Value{}, err
	}
	rv, err := n.right.eval(r)
	if err != nil {
		return Value{}, err
	}
	switch n.op {
	case tokPlus:
		if l.IsString() || rv.IsString() {
			return String(l.String() + rv.String()), nil
		}
		return Number(l.Float() + rv.Float()), nil
	case tokMinus:
		return Number(l.Float() - rv.Float()), nil
	case tokStar:
		return Number(l.Float() * rv.Float()), nil
	case tokSlash:
		d := rv.Float()
		if d == 0 {
			return Value{}, fmt.Errorf("expr: offset %d: %w", n.pos, apperr.ErrDivideByZero)
		}
		return Number(l.Float() / d), nil
	case tokGreater:
		return Bool(l.Float() > rv.Float()), nil
	case tokGreaterEqual:
		return Bool(l.Float() >= rv.Float()), nil
	case tokLess:
		return Bool(l.Float() < rv.Float()), nil
	case tokLessEqual:
		return Bool(l.Float() <= rv.Float()), nil
	case tokEqual:
		return Bool(equal(l, rv)), nil
	case tokNotEqual:
		return Bool(!equal(l, rv)), nil
	}
	return Value{}, fmt.Errorf("expr: offset %d: operator %s: %w", n.pos, n.op, apperr.ErrEvalSyntax)
}

type ternary struct {
	cond, then, otherwise node
}

func (n ternary) eval(r Resolver) (Value, error) {
	c, err := n.cond.eval(r)
	if err != nil {
		return Value{}, err
	}
	if c.Truthy() {
		return n.then.eval(r)
	}
	return n.otherwise.eval(r)
}

// parser is a recursive-descent parser; each method handles one
// precedence level, lowest first.
type parser struct {
	lex lexer
	tok token
}

func (p *parser) advance() error {
	tok, err := p.lex.next()
	if err != nil {
		return err
	}
	p.tok = tok
	return nil
}

func (p *parser) ternary() (node, error) {
	cond, err := p.coalesce()
	if err != nil {
		return nil, err
	}
	if p.tok.kind != tokQuestion {
		return cond, nil
	}
	if err := p.advance(); err != nil {
		return nil, err
	}
	then, err := p.ternary()
	if err != nil {
		return nil, err
	}
	if p.tok.kind != tokColon {
		return nil, syntaxErr(p.tok.pos, "expected : in conditional, got %s", p.tok.kind)
	}
	if err := p.advance(); err != nil {
		return nil, err
	}
	otherwise, err := p.ternary()
	if err != nil {
		return nil, err
	}
	return ternary{cond: cond, then: then, otherwise: otherwise}, nil
}

// binaryLevel parses left-associative chains of ops over operands produced
// by next.
func (p *parser) binaryLevel(next func() (node, error), ops ...tokenKind) (node, error) {
	left, err := next()
	if err != nil {
		return nil, err
	}
	for {
		op, pos := p.tok.kind, p.tok.pos
		if !containsKind(ops, op) {
			return left, nil
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := next()
		if err != nil {
			return nil, err
		}
		left = binary{op: op, left: left, right: right, pos: pos}
	}
}

func containsKind(ops []tokenKind, k tokenKind) bool {
	for _, op := range ops {
		if op == k {
			return true
		}
	}
	return false
}

func (p *parser) coalesce() (node, error) { return p.binaryLevel(p.or, tokCoalesce) }
func (p *parser) or() (node, error)       { return p.binaryLevel(p.and, tokOr) }
func (p *parser) and() (node, error)      { return p.binaryLevel(p.equality, tokAnd) }
func (p *parser) equality() (node, error) {
	return p.binaryLevel(p.comparison, tokEqual, tokNotEqual)
}
func (p *parser) comparison() (node, error) {
	return p.binaryLevel(p.term, tokGreater, tokGreaterEqual, tokLess, tokLessEqual)
}
func (p *parser) term() (node, error)   { return p.binaryLevel(p.factor, tokPlus, tokMinus) }
func (p *parser) factor() (node, error) { return p.binaryLevel(p.unary, tokStar, tokSlash) }

func (p *parser) unary() (node, error) {
	if p.tok.kind == tokBang || p.tok.kind == tokMinus {
		op := p.tok.kind
		if err := p.advance(); err != nil {
			return nil, err
		}
		operand, err := p.unary()
		if err != nil {
			return nil, err
		}
		return unary{op: op, operand: operand}, nil
	}
	return p.primary()
}

func (p *parser) primary() (node, error) {
	tok := p.tok
	var n node
	switch tok.kind {
	case tokNumber:
		n = literal{Number(tok.num)}
	case tokString:
		n = literal{String(tok.text)}
	case tokTrue:
		n = literal{Bool(true)}
	case tokFalse:
		n = literal{Bool(false)}
	case tokNull:
		n = literal{Null()}
	case tokIdent:
		n = ident{name: tok.text}
	case tokLParen:
		if err := p.advance(); err != nil {
			return nil, err
		}
		inner, err := p.ternary()
		if err != nil {
			return nil, err
		}
		if p.tok.kind != tokRParen {
			return nil, syntaxErr(p.tok.pos, "expected ), got %s", p.tok.kind)
		}
		n = inner
	default:
		return nil, syntaxErr(tok.pos, "unexpected %s", tok.kind)
	}
	if err := p.advance(); err != nil {
		return nil, err
	}
	return n, nil
}
