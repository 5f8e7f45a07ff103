// Package tree holds the labeled trees gramstats computes statistics over,
// their pre-order text encoding, and an explicit-stack walker supporting
// pre-order visits and bottom-up synthesis.
package tree

import "strings"

// Node is a labeled tree node. A leaf has no children. Trees are produced by
// a parser and treated as read-only afterwards.
type Node struct {
	Label    string
	Children []*Node
}

// New builds a node with the given children.
func New(label string, children ...*Node) *Node {
	return &Node{Label: label, Children: children}
}

// IsLeaf reports whether n has no children.
func (n *Node) IsLeaf() bool {
	return len(n.Children) == 0
}

// ChildLabels returns the ordered labels of n's children.
func (n *Node) ChildLabels() []string {
	labels := make([]string, len(n.Children))
	for i, c := range n.Children {
		labels[i] = c.Label
	}
	return labels
}

// Size returns the number of nodes in the tree rooted at n.
func (n *Node) Size() int {
	count := 0
	Walk[struct{}](n, func(*Node, int) { count++ }, nil)
	return count
}

// String renders the tree as an s-expression, e.g. (S a (B c)).
func (n *Node) String() string {
	var b strings.Builder
	var write func(*Node)
	write = func(n *Node) {
		if n.IsLeaf() {
			b.WriteString(n.Label)
			return
		}
		b.WriteByte('(')
		b.WriteString(n.Label)
		for _, c := range n.Children {
			b.WriteByte(' ')
			write(c)
		}
		b.WriteByte(')')
	}
	write(n)
	return b.String()
}
