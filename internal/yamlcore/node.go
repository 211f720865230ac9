// Package yamlcore parses the indentation-based YAML subset used by UI
// documents into a generic tree of mappings, sequences and scalars.
//
// Supported: block mappings ("key: value", "key:" followed by a nested block),
// block sequences ("- value", "- key: value"), "#" line comments and
// single/double-quoted scalars with \n \t \r \" \' \\ escapes. Anchors,
// multi-document streams and flow collections are not supported.
package yamlcore

import (
	"strconv"
	"strings"
)

// Kind is the shape of a node.
type Kind int

const (
	// KindEmpty is a node that has been opened ("key:" or "-") but never
	// received a value or a child.
	KindEmpty Kind = iota
	KindScalar
	KindMapping
	KindSequence
)

func (k Kind) String() string {
	switch k {
	case KindEmpty:
		return "empty"
	case KindScalar:
		return "scalar"
	case KindMapping:
		return "mapping"
	case KindSequence:
		return "sequence"
	default:
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Node is one parsed element. Mapping children carry a non-empty Key;
// sequence items do not.
type Node struct {
	Kind     Kind
	Key      string
	Value    string
	Children []*Node
	Line     int
}

// Child returns the first mapping child named key, or nil.
func (n *Node) Child(key string) *Node {
	if n == nil || n.Kind != KindMapping {
		return nil
	}
	for _, c := range n.Children {
		if c.Key == key {
			return c
		}
	}
	return nil
}

// Scalar returns the value of the scalar child named key.
func (n *Node) Scalar(key string) (string, bool) {
	c := n.Child(key)
	if c == nil || c.Kind != KindScalar {
		return "", false
	}
	return c.Value, true
}

// String returns the scalar child named key or def.
func (n *Node) String(key, def string) string {
	if v, ok := n.Scalar(key); ok {
		return v
	}
	return def
}

// Int returns the scalar child named key parsed as a base-10 integer, or def
// when it is absent or malformed.
func (n *Node) Int(key string, def int) int {
	v, ok := n.Scalar(key)
	if !ok {
		return def
	}
	i, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return def
	}
	return i
}

// Bool returns the scalar child named key as a boolean, or def.
func (n *Node) Bool(key string, def bool) bool {
	v, ok := n.Scalar(key)
	if !ok {
		return def
	}
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "true", "yes", "on", "1":
		return true
	case "false", "no", "off", "0":
		return false
	}
	return def
}

// Keys returns the keys of a mapping node in document order.
func (n *Node) Keys() []string {
	if n == nil || n.Kind != KindMapping {
		return nil
	}
	keys := make([]string, 0, len(n.Children))
	for _, c := range n.Children {
		keys = append(keys, c.Key)
	}
	return keys
}

// Len returns the number of children.
func (n *Node) Len() int {
	if n == nil {
		return 0
	}
	return len(n.Children)
}
