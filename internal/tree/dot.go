package tree

import (
	"fmt"
	"strings"
)

// Dot renders the tree as a Graphviz digraph. Node identifiers follow
// pre-order numbering so the output is deterministic.
func Dot(root *Node) string {
	var b strings.Builder
	b.WriteString("digraph tree {\n")
	b.WriteString("  node [shape=plaintext];\n")

	ids := make(map[*Node]int)
	Visit(root, func(n *Node, _ int) {
		id := len(ids)
		ids[n] = id
		fmt.Fprintf(&b, "  n%d [label=%s];\n", id, DotQuote(n.Label))
	})
	Visit(root, func(n *Node, _ int) {
		for _, c := range n.Children {
			fmt.Fprintf(&b, "  n%d -> n%d;\n", ids[n], ids[c])
		}
	})

	b.WriteString("}\n")
	return b.String()
}

// DotQuote returns s as a double-quoted Graphviz string.
func DotQuote(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`)
	return `"` + r.Replace(s) + `"`
}
