package yamlcore

import (
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"gopkg.in/yaml.v3"

	"github.com/starford/yamui/internal/apperr"
)

var ignoreLine = cmpopts.IgnoreFields(Node{}, "Line")

func scalar(key, value string) *Node {
	return &Node{Kind: KindScalar, Key: key, Value: value}
}

func mapping(key string, children ...*Node) *Node {
	return &Node{Kind: KindMapping, Key: key, Children: children}
}

func sequence(key string, children ...*Node) *Node {
	return &Node{Kind: KindSequence, Key: key, Children: children}
}

func TestParseDocument(t *testing.T) {
	doc := `# counter app
app:
  initial_screen: home
state:
  count: "0"
screens:
  home:
    widgets:
      - type: label
        text: "{{count}}"   # bound
      - type: button
        text: 'Add # one'
        on_click:
          - set(count, {{count}} + 1)
          - "goto(home)"
      -
        type: spacer
`
	got, err := Parse([]byte(doc))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	want := mapping("",
		mapping("app", scalar("initial_screen", "home")),
		mapping("state", scalar("count", "0")),
		mapping("screens",
			mapping("home",
				sequence("widgets",
					mapping("", scalar("type", "label"), scalar("text", "{{count}}")),
					mapping("",
						scalar("type", "button"),
						scalar("text", "Add # one"),
						sequence("on_click",
							scalar("", "set(count, {{count}} + 1)"),
							scalar("", "goto(home)"),
						),
					),
					mapping("", scalar("type", "spacer")),
				),
			),
		),
	)
	if diff := cmp.Diff(want, got, ignoreLine); diff != "" {
		t.Errorf("tree mismatch (-want +got):\n%s", diff)
	}
}

func TestParseScalars(t *testing.T) {
	tests := []struct {
		line string
		want string
	}{
		{`v: plain text`, "plain text"},
		{`v: "quoted: with colon"`, "quoted: with colon"},
		{`v: 'single'`, "single"},
		{`v: "esc \n \t \" \' \\ end"`, "esc \n \t \" ' \\ end"},
		{`v: "# not a comment"`, "# not a comment"},
		{`v: value # trailing comment`, "value"},
		{`v: a#b`, "a#b"},
		{`v: {{ a ? "x" : "y" }}`, `{{ a ? "x" : "y" }}`},
		{`v: http://example.com`, "http://example.com"},
		{`v: ""`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			root, err := Parse([]byte(tt.line))
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			got, ok := root.Scalar("v")
			if !ok {
				t.Fatalf("no scalar v in %+v", root)
			}
			if got != tt.want {
				t.Errorf("value = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseKeyWithoutSpace(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want *Node
	}{
		{"top level", "key:value\n", mapping("", scalar("key", "value"))},
		{"nested", "screens:\n  home:\n    title:Home\n",
			mapping("", mapping("screens", mapping("home", scalar("title", "Home"))))},
		{"spaced separator wins", "url: http://example.com\n",
			mapping("", scalar("url", "http://example.com"))},
		{"colon in template", "text:{{ a ? b : c }}\n",
			mapping("", scalar("text", "{{ a ? b : c }}"))},
		{"quoted key", "\"a:b\":c\n", mapping("", scalar("a:b", "c"))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse([]byte(tt.doc))
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			if diff := cmp.Diff(tt.want, got, ignoreLine); diff != "" {
				t.Errorf("tree (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseEmptyBlock(t *testing.T) {
	root, err := Parse([]byte("a:\nb: 1\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if k := root.Child("a").Kind; k != KindEmpty {
		t.Errorf("a kind = %v, want empty", k)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want error
	}{
		{"tab indent", "a:\n\tb: 1\n", apperr.ErrParseSyntax},
		{"no separator", "a:\n  just words\n", apperr.ErrParseSyntax},
		{"sequence under mapping", "a:\n  b: 1\n  - c\n", apperr.ErrParseSyntax},
		{"mapping under sequence", "a:\n  - c\n  b: 1\n", apperr.ErrParseSyntax},
		{"unmatched dedent", "a:\n    b: 1\n  c: 2\n", apperr.ErrParseSyntax},
		{"child of scalar", "a: 1\n  b: 2\n", apperr.ErrParseSyntax},
		{"unterminated quote", "a: \"open\n", apperr.ErrParseSyntax},
		{"text after quote", "a: \"x\" y\n", apperr.ErrParseSyntax},
		{"empty key", ": v\n", apperr.ErrParseSyntax},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestParseErrorReportsLine(t *testing.T) {
	_, err := Parse([]byte("a: 1\nb: 2\n\tc: 3\n"))
	if err == nil || !strings.Contains(err.Error(), "line 3") {
		t.Fatalf("err = %v, want line 3", err)
	}
}

func TestParseLimits(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 40; i++ {
		fmt.Fprintf(&b, "%sk%d:\n", strings.Repeat("  ", i), i)
	}
	_, err := Parse([]byte(b.String()))
	if !errors.Is(err, apperr.ErrParseOutOfMemory) {
		t.Fatalf("deep nesting err = %v", err)
	}

	_, err = ParseWithLimits([]byte("a: 1\nb: 2\nc: 3\n"), Limits{MaxNodes: 2})
	if !errors.Is(err, apperr.ErrParseOutOfMemory) {
		t.Fatalf("node limit err = %v", err)
	}

	_, err = ParseWithLimits([]byte("a: 1\n"), Limits{MaxBytes: 2})
	if !errors.Is(err, apperr.ErrParseOutOfMemory) {
		t.Fatalf("size limit err = %v", err)
	}
}

func TestNodeAccessors(t *testing.T) {
	root, err := Parse([]byte("size: 24\nbad: x\nflag: TRUE\nname: n\n"))
	if err != nil {
		t.Fatal(err)
	}
	if got := root.Int("size", 12); got != 24 {
		t.Errorf("Int = %d", got)
	}
	if got := root.Int("bad", 12); got != 12 {
		t.Errorf("Int(bad) = %d", got)
	}
	if got := root.Int("missing", 7); got != 7 {
		t.Errorf("Int(missing) = %d", got)
	}
	if !root.Bool("flag", false) {
		t.Error("Bool(flag) = false")
	}
	if got := root.String("name", "d"); got != "n" {
		t.Errorf("String = %q", got)
	}
	if diff := cmp.Diff([]string{"size", "bad", "flag", "name"}, root.Keys()); diff != "" {
		t.Errorf("Keys (-want +got):\n%s", diff)
	}
	var nilNode *Node
	if nilNode.Child("x") != nil || nilNode.Len() != 0 {
		t.Error("nil node accessors should be safe")
	}
}

var alphabet = []string{"a", "b", "key", "with space", "colon: in", "#hash", `q"uote`, "{{x}}", "line\nbreak", "tab\tbed", `back\slash`, "ünï"}

func randomTree(r *rand.Rand, depth int) *Node {
	root := &Node{Kind: KindMapping}
	fill(r, root, depth)
	return root
}

func fill(r *rand.Rand, n *Node, depth int) {
	count := 1 + r.Intn(4)
	for i := 0; i < count; i++ {
		c := &Node{}
		if n.Kind == KindMapping {
			c.Key = fmt.Sprintf("%s%d", alphabet[r.Intn(len(alphabet))], i)
		}
		switch pick := r.Intn(6); {
		case depth > 0 && pick == 0:
			c.Kind = KindMapping
			fill(r, c, depth-1)
		case depth > 0 && pick == 1:
			c.Kind = KindSequence
			fill(r, c, depth-1)
		case pick == 2:
			c.Kind = KindEmpty
		default:
			c.Kind = KindScalar
			c.Value = alphabet[r.Intn(len(alphabet))]
			if r.Intn(4) == 0 {
				c.Value = ""
			}
		}
		n.Children = append(n.Children, c)
	}
}

func TestRoundTrip(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	for i := 0; i < 200; i++ {
		tree := randomTree(r, 4)
		encoded := Encode(tree)
		got, err := Parse(encoded)
		if err != nil {
			t.Fatalf("iteration %d: Parse(Encode): %v\n%s", i, err, encoded)
		}
		if diff := cmp.Diff(tree, got, ignoreLine); diff != "" {
			t.Fatalf("iteration %d: round trip mismatch (-want +got):\n%s\n%s", i, diff, encoded)
		}
	}
}

func TestRoundTripParsedDocument(t *testing.T) {
	doc := "screens:\n  home:\n    widgets:\n      - type: label\n        text: hi\n      -\n        - nested\n"
	first, err := Parse([]byte(doc))
	if err != nil {
		t.Fatal(err)
	}
	second, err := Parse(Encode(first))
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(first, second, ignoreLine); diff != "" {
		t.Errorf("mismatch (-first +second):\n%s", diff)
	}
}

// fromYAML converts a yaml.v3 node into our tree so the encoder output can be
// checked against an independent parser.
func fromYAML(y *yaml.Node, key string) *Node {
	switch y.Kind {
	case yaml.DocumentNode:
		return fromYAML(y.Content[0], key)
	case yaml.MappingNode:
		n := &Node{Kind: KindMapping, Key: key}
		for i := 0; i+1 < len(y.Content); i += 2 {
			n.Children = append(n.Children, fromYAML(y.Content[i+1], y.Content[i].Value))
		}
		return n
	case yaml.SequenceNode:
		n := &Node{Kind: KindSequence, Key: key}
		for _, c := range y.Content {
			n.Children = append(n.Children, fromYAML(c, ""))
		}
		return n
	default:
		if y.Tag == "!!null" {
			return &Node{Kind: KindEmpty, Key: key}
		}
		return &Node{Kind: KindScalar, Key: key, Value: y.Value}
	}
}

func TestEncodeIsValidYAML(t *testing.T) {
	r := rand.New(rand.NewSource(11))
	for i := 0; i < 100; i++ {
		tree := randomTree(r, 3)
		var y yaml.Node
		if err := yaml.Unmarshal(Encode(tree), &y); err != nil {
			t.Fatalf("iteration %d: yaml.v3 rejected output: %v\n%s", i, err, Encode(tree))
		}
		if diff := cmp.Diff(tree, fromYAML(&y, ""), ignoreLine); diff != "" {
			t.Fatalf("iteration %d: yaml.v3 disagrees (-ours +yaml):\n%s", i, diff)
		}
	}
}
