package expr

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/starford/yamui/internal/apperr"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokNumber
	tokString
	tokTrue
	tokFalse
	tokNull
	tokPlus
	tokMinus
	tokStar
	tokSlash
	tokLParen
	tokRParen
	tokBang
	tokNotEqual
	tokEqual
	tokGreater
	tokGreaterEqual
	tokLess
	tokLessEqual
	tokAnd
	tokOr
	tokQuestion
	tokCoalesce
	tokColon
)

var tokenNames = map[tokenKind]string{
	tokEOF: "end of expression", tokIdent: "identifier", tokNumber: "number", tokString: "string",
	tokTrue: "true", tokFalse: "false", tokNull: "null", tokPlus: "+", tokMinus: "-", tokStar: "*",
	tokSlash: "/", tokLParen: "(", tokRParen: ")", tokBang: "!", tokNotEqual: "!=", tokEqual: "==",
	tokGreater: ">", tokGreaterEqual: ">=", tokLess: "<", tokLessEqual: "<=", tokAnd: "&&",
	tokOr: "||", tokQuestion: "?", tokCoalesce: "??", tokColon: ":",
}

var singleTokens = map[byte]tokenKind{
	'+': tokPlus, '-': tokMinus, '*': tokStar, '/': tokSlash, '(': tokLParen, ')': tokRParen,
	'!': tokBang, '>': tokGreater, '<': tokLess, '?': tokQuestion, ':': tokColon,
}

func (k tokenKind) String() string { return tokenNames[k] }

type token struct {
	kind tokenKind
	text string
	num  float64
	pos  int
}

type lexer struct {
	src string
	pos int
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

// Identifiers may contain dots and dashes so that state keys such as
// "wifi.status" or "sensor-1" can be referenced directly.
func isIdentPart(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9') || c == '.' || c == '-'
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func syntaxErr(pos int, format string, args ...any) error {
	return fmt.Errorf("expr: offset %d: %s: %w", pos, fmt.Sprintf(format, args...), apperr.ErrEvalSyntax)
}

func (l *lexer) next() (token, error) {
	for l.pos < len(l.src) && (l.src[l.pos] == ' ' || l.src[l.pos] == '\t' || l.src[l.pos] == '\n' || l.src[l.pos] == '\r') {
		l.pos++
	}
	start := l.pos
	if l.pos >= len(l.src) {
		return token{kind: tokEOF, pos: start}, nil
	}
	c := l.src[l.pos]

	switch {
	case isDigit(c) || (c == '.' && l.pos+1 < len(l.src) && isDigit(l.src[l.pos+1])):
		return l.number()
	case isIdentStart(c):
		for l.pos < len(l.src) && isIdentPart(l.src[l.pos]) {
			l.pos++
		}
		text := l.src[start:l.pos]
		switch strings.ToLower(text) {
		case "true":
			return token{kind: tokTrue, text: text, pos: start}, nil
		case "false":
			return token{kind: tokFalse, text: text, pos: start}, nil
		case "null":
			return token{kind: tokNull, text: text, pos: start}, nil
		}
		return token{kind: tokIdent, text: text, pos: start}, nil
	case c == '"' || c == '\'':
		return l.str(c)
	}

	two := ""
	if l.pos+1 < len(l.src) {
		two = l.src[l.pos : l.pos+2]
	}
	switch two {
	case "!=":
		l.pos += 2
		return token{kind: tokNotEqual, pos: start}, nil
	case "==":
		l.pos += 2
		return token{kind: tokEqual, pos: start}, nil
	case ">=":
		l.pos += 2
		return token{kind: tokGreaterEqual, pos: start}, nil
	case "<=":
		l.pos += 2
		return token{kind: tokLessEqual, pos: start}, nil
	case "&&":
		l.pos += 2
		return token{kind: tokAnd, pos: start}, nil
	case "||":
		l.pos += 2
		return token{kind: tokOr, pos: start}, nil
	case "??":
		l.pos += 2
		return token{kind: tokCoalesce, pos: start}, nil
	}

	if k, ok := singleTokens[c]; ok {
		l.pos++
		return token{kind: k, pos: start}, nil
	}
	return token{}, syntaxErr(start, "unexpected character %q", c)
}

func (l *lexer) number() (token, error) {
	start := l.pos
	for l.pos < len(l.src) && isDigit(l.src[l.pos]) {
		l.pos++
	}
	if l.pos < len(l.src) && l.src[l.pos] == '.' {
		l.pos++
		for l.pos < len(l.src) && isDigit(l.src[l.pos]) {
			l.pos++
		}
	}
	if l.pos < len(l.src) && (l.src[l.pos] == 'e' || l.src[l.pos] == 'E') {
		save := l.pos
		l.pos++
		if l.pos < len(l.src) && (l.src[l.pos] == '+' || l.src[l.pos] == '-') {
			l.pos++
		}
		if l.pos < len(l.src) && isDigit(l.src[l.pos]) {
			for l.pos < len(l.src) && isDigit(l.src[l.pos]) {
				l.pos++
			}
		} else {
			l.pos = save
		}
	}
	text := l.src[start:l.pos]
	n, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return token{}, syntaxErr(start, "bad number %q", text)
	}
	return token{kind: tokNumber, text: text, num: n, pos: start}, nil
}

func (l *lexer) str(quote byte) (token, error) {
	start := l.pos
	l.pos++
	var b strings.Builder
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		switch {
		case c == '\\' && l.pos+1 < len(l.src):
			l.pos++
			switch e := l.src[l.pos]; e {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			case 'r':
				b.WriteByte('\r')
			default:
				b.WriteByte(e)
			}
		case c == quote:
			l.pos++
			return token{kind: tokString, text: b.String(), pos: start}, nil
		default:
			b.WriteByte(c)
		}
		l.pos++
	}
	return token{}, syntaxErr(start, "unterminated string")
}

// CollectIdentifiers returns the distinct identifiers referenced by an
// expression in order of first appearance, without evaluating it. Lexing
// stops at the first malformed token.
func CollectIdentifiers(src string) []string {
	l := &lexer{src: src}
	var out []string
	seen := make(map[string]struct{})
	for {
		tok, err := l.next()
		if err != nil || tok.kind == tokEOF {
			return out
		}
		if tok.kind != tokIdent {
			continue
		}
		if _, ok := seen[tok.text]; ok {
			continue
		}
		seen[tok.text] = struct{}{}
		out = append(out, tok.text)
	}
}
