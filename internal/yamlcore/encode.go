package yamlcore

import "strings"

// Encode serializes a tree back into the supported subset. Every key and
// scalar is double-quoted, so Parse(Encode(n)) reproduces the structure of n.
func Encode(n *Node) []byte {
	var b strings.Builder
	writeChildren(&b, n, 0)
	return []byte(b.String())
}

func writeChildren(b *strings.Builder, n *Node, indent int) {
	pad := strings.Repeat(" ", indent)
	for _, c := range n.Children {
		b.WriteString(pad)
		if n.Kind == KindSequence {
			b.WriteString("-")
		} else {
			b.WriteString(quote(c.Key))
			b.WriteString(":")
		}
		switch c.Kind {
		case KindScalar:
			b.WriteString(" ")
			b.WriteString(quote(c.Value))
			b.WriteString("\n")
		case KindEmpty:
			b.WriteString("\n")
		default:
			b.WriteString("\n")
			writeChildren(b, c, indent+2)
		}
	}
}

var quoteReplacer = strings.NewReplacer(
	`\`, `\\`,
	`"`, `\"`,
	"\n", `\n`,
	"\t", `\t`,
	"\r", `\r`,
)

func quote(s string) string {
	return `"` + quoteReplacer.Replace(s) + `"`
}
