package yamlcore

import (
	"fmt"
	"strings"

	"github.com/starford/yamui/internal/apperr"
)

// Limits bounds the resources a single document may consume.
type Limits struct {
	MaxBytes int
	MaxDepth int
	MaxNodes int
}

// DefaultLimits are the limits applied by Parse.
var DefaultLimits = Limits{
	MaxBytes: 256 << 10,
	MaxDepth: 32,
	MaxNodes: 16384,
}

type frame struct {
	node        *Node
	indent      int
	childIndent int
}

type parser struct {
	lim   Limits
	stack []frame
	nodes int
}

// Parse parses data with DefaultLimits.
func Parse(data []byte) (*Node, error) {
	return ParseWithLimits(data, DefaultLimits)
}

// ParseWithLimits parses a document. The returned root is a mapping or a
// sequence, or empty when the document holds no content. Errors wrap
// apperr.ErrParseSyntax or apperr.ErrParseOutOfMemory.
func ParseWithLimits(data []byte, lim Limits) (*Node, error) {
	if lim.MaxBytes > 0 && len(data) > lim.MaxBytes {
		return nil, fmt.Errorf("yamlcore: document is %d bytes, limit is %d: %w",
			len(data), lim.MaxBytes, apperr.ErrParseOutOfMemory)
	}
	root := &Node{Kind: KindEmpty}
	p := &parser{
		lim:   lim,
		stack: []frame{{node: root, indent: -1, childIndent: -1}},
	}
	for i, raw := range strings.Split(string(data), "\n") {
		if err := p.line(i+1, strings.TrimSuffix(raw, "\r")); err != nil {
			return nil, err
		}
	}
	return root, nil
}

func (p *parser) line(no int, raw string) error {
	indent := 0
	for indent < len(raw) && (raw[indent] == ' ' || raw[indent] == '\t') {
		if raw[indent] == '\t' {
			return syntaxErr(no, "tab character in indentation")
		}
		indent++
	}
	text := strings.TrimRight(stripComment(raw[indent:]), " \t")
	if text == "" {
		return nil
	}

	for len(p.stack) > 1 && indent <= p.stack[len(p.stack)-1].indent {
		p.stack = p.stack[:len(p.stack)-1]
	}
	parent := &p.stack[len(p.stack)-1]
	switch {
	case parent.childIndent < 0:
		parent.childIndent = indent
	case indent != parent.childIndent:
		return syntaxErr(no, fmt.Sprintf("indentation %d matches no enclosing block", indent))
	}

	if text == "-" || strings.HasPrefix(text, "- ") {
		return p.sequenceItem(no, indent, parent, text)
	}

	key, raw, ok, err := splitKeyValue(text, true)
	if err != nil {
		return syntaxErr(no, err.Error())
	}
	if !ok {
		return syntaxErr(no, "expected \"key: value\"")
	}
	if err := attach(parent.node, KindMapping); err != nil {
		return syntaxErr(no, err.Error())
	}
	child := &Node{Key: key, Line: no}
	if err := p.count(no); err != nil {
		return err
	}
	parent.node.Children = append(parent.node.Children, child)
	return p.value(no, child, raw, indent)
}

func (p *parser) sequenceItem(no, indent int, parent *frame, text string) error {
	if err := attach(parent.node, KindSequence); err != nil {
		return syntaxErr(no, err.Error())
	}
	rest := text[1:]
	trimmed := strings.TrimLeft(rest, " ")
	keyCol := indent + 1 + len(rest) - len(trimmed)

	item := &Node{Line: no}
	if err := p.count(no); err != nil {
		return err
	}
	parent.node.Children = append(parent.node.Children, item)
	if trimmed == "" {
		return p.push(no, item, indent, -1)
	}

	key, raw, ok, err := splitKeyValue(trimmed, false)
	if err != nil {
		return syntaxErr(no, err.Error())
	}
	if !ok {
		v, err := unquote(trimmed)
		if err != nil {
			return syntaxErr(no, err.Error())
		}
		item.Kind = KindScalar
		item.Value = v
		return nil
	}

	item.Kind = KindMapping
	if err := p.push(no, item, indent, keyCol); err != nil {
		return err
	}
	child := &Node{Key: key, Line: no}
	if err := p.count(no); err != nil {
		return err
	}
	item.Children = append(item.Children, child)
	return p.value(no, child, raw, keyCol)
}

// value fills n from the raw text after its separator. An empty value opens
// a nested block owned by n.
func (p *parser) value(no int, n *Node, raw string, indent int) error {
	if raw == "" {
		n.Kind = KindEmpty
		return p.push(no, n, indent, -1)
	}
	v, err := unquote(raw)
	if err != nil {
		return syntaxErr(no, err.Error())
	}
	n.Kind = KindScalar
	n.Value = v
	return nil
}

func (p *parser) push(no int, n *Node, indent, childIndent int) error {
	if p.lim.MaxDepth > 0 && len(p.stack) > p.lim.MaxDepth {
		return fmt.Errorf("yamlcore: line %d: nesting deeper than %d: %w", no, p.lim.MaxDepth, apperr.ErrParseOutOfMemory)
	}
	p.stack = append(p.stack, frame{node: n, indent: indent, childIndent: childIndent})
	return nil
}

func (p *parser) count(no int) error {
	p.nodes++
	if p.lim.MaxNodes > 0 && p.nodes > p.lim.MaxNodes {
		return fmt.Errorf("yamlcore: line %d: more than %d nodes: %w", no, p.lim.MaxNodes, apperr.ErrParseOutOfMemory)
	}
	return nil
}

// attach settles the kind of a container on its first child and rejects
// later children of the other kind.
func attach(n *Node, kind Kind) error {
	switch n.Kind {
	case KindEmpty:
		n.Kind = kind
		return nil
	case kind:
		return nil
	default:
		what := "mapping entry"
		if kind == KindSequence {
			what = "sequence item"
		}
		return fmt.Errorf("%s under a %s", what, n.Kind)
	}
}

func syntaxErr(no int, msg string) error {
	return fmt.Errorf("yamlcore: line %d: %s: %w", no, msg, apperr.ErrParseSyntax)
}

// stripComment cuts s at the first '#' that is outside quotes and starts the
// line or follows whitespace.
func stripComment(s string) string {
	var quote byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			if c == '\\' {
				i++
			} else if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'':
			quote = c
		case c == '#' && (i == 0 || s[i-1] == ' ' || s[i-1] == '\t'):
			return s[:i]
		}
	}
	return s
}

// splitKeyValue splits at the first ':' that is outside quotes, parentheses
// and {{ }} spans and is followed by a space or the end of the text. With
// loose set, a line without such a separator splits at its first unquoted
// ':' instead, so "title:Home" is a mapping entry. It reports ok=false when
// there is no separator.
func splitKeyValue(s string, loose bool) (key, raw string, ok bool, err error) {
	var quote byte
	parens, braces := 0, 0
	first := -1
	for i := 0; i < len(s); i++ {
		c := s[i]
		if quote != 0 {
			if c == '\\' {
				i++
			} else if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case '"', '\'':
			quote = c
		case '(':
			parens++
		case ')':
			if parens > 0 {
				parens--
			}
		case '{':
			if i+1 < len(s) && s[i+1] == '{' {
				braces++
				i++
			}
		case '}':
			if i+1 < len(s) && s[i+1] == '}' && braces > 0 {
				braces--
				i++
			}
		case ':':
			if parens > 0 || braces > 0 {
				continue
			}
			if i+1 < len(s) && s[i+1] != ' ' {
				if first < 0 {
					first = i
				}
				continue
			}
			return splitAt(s, i)
		}
	}
	if loose && first >= 0 {
		return splitAt(s, first)
	}
	return "", "", false, nil
}

func splitAt(s string, i int) (key, raw string, ok bool, err error) {
	k, err := unquote(strings.TrimSpace(s[:i]))
	if err != nil {
		return "", "", false, err
	}
	if k == "" {
		return "", "", false, fmt.Errorf("empty key")
	}
	return k, strings.TrimSpace(s[i+1:]), true, nil
}

// unquote strips surrounding quotes and resolves escapes. Plain scalars are
// returned unchanged.
func unquote(s string) (string, error) {
	if s == "" || (s[0] != '"' && s[0] != '\'') {
		return s, nil
	}
	q := s[0]
	var b strings.Builder
	for i := 1; i < len(s); i++ {
		c := s[i]
		if c == '\\' && i+1 < len(s) {
			i++
			switch s[i] {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			case 'r':
				b.WriteByte('\r')
			case '"', '\'', '\\':
				b.WriteByte(s[i])
			default:
				b.WriteByte('\\')
				b.WriteByte(s[i])
			}
			continue
		}
		if c == q {
			if strings.TrimSpace(s[i+1:]) != "" {
				return "", fmt.Errorf("unexpected text after closing quote")
			}
			return b.String(), nil
		}
		b.WriteByte(c)
	}
	return "", fmt.Errorf("unterminated quoted scalar")
}
