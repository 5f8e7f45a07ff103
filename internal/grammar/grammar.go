// Package grammar models context-free grammars observed in (or supplied for)
// a corpus of labeled trees: nonterminal label -> ordered set of productions.
package grammar

import (
	"sort"
	"strings"

	"github.com/jward/gramstats/internal/tree"
)

// Production is the ordered sequence of child labels under a nonterminal.
type Production []string

// Key joins the production's labels with ":", the form used in tables.
func (p Production) Key() string {
	return strings.Join(p, ":")
}

// String joins the production's labels with spaces, the grammar file form.
func (p Production) String() string {
	return strings.Join(p, " ")
}

// ProductionOf returns the production instantiated at n.
func ProductionOf(n *tree.Node) Production {
	return Production(n.ChildLabels())
}

// ParseKey splits a ":"-joined production key.
func ParseKey(key string) Production {
	if key == "" {
		return Production{}
	}
	return Production(strings.Split(key, ":"))
}

// Rule renders a production as "A => b:c".
func Rule(nonterm string, p Production) string {
	return nonterm + " => " + p.Key()
}

// ParseRule is the inverse of Rule.
func ParseRule(rule string) (string, Production, bool) {
	nt, key, ok := strings.Cut(rule, "=>")
	if !ok {
		return "", nil, false
	}
	return strings.TrimSpace(nt), ParseKey(strings.TrimSpace(key)), true
}

// Grammar maps nonterminals to their productions. Productions keep the order
// in which they were first added so tables derived from a grammar are stable.
type Grammar struct {
	prods map[string][]Production
	index map[string]map[string]int // nonterm -> production key -> position
}

// New returns an empty grammar.
func New() *Grammar {
	return &Grammar{
		prods: make(map[string][]Production),
		index: make(map[string]map[string]int),
	}
}

// Add records p under nonterm and reports whether it was new.
func (g *Grammar) Add(nonterm string, p Production) bool {
	idx, ok := g.index[nonterm]
	if !ok {
		idx = make(map[string]int)
		g.index[nonterm] = idx
	}
	key := p.Key()
	if _, seen := idx[key]; seen {
		return false
	}
	idx[key] = len(g.prods[nonterm])
	g.prods[nonterm] = append(g.prods[nonterm], append(make(Production, 0, len(p)), p...))
	return true
}

// Observe adds the production of every internal node under root.
func (g *Grammar) Observe(root *tree.Node) {
	tree.Visit(root, func(n *tree.Node, _ int) {
		if !n.IsLeaf() {
			g.Add(n.Label, ProductionOf(n))
		}
	})
}

// Infer builds the grammar instantiated by a forest.
func Infer(trees []*tree.Node) *Grammar {
	g := New()
	for _, t := range trees {
		g.Observe(t)
	}
	return g
}

// Merge adds every production of other to g.
func (g *Grammar) Merge(other *Grammar) {
	for _, nt := range other.Nonterminals() {
		for _, p := range other.prods[nt] {
			g.Add(nt, p)
		}
	}
}

// Nonterminals returns the nonterminal labels in sorted order.
func (g *Grammar) Nonterminals() []string {
	nts := make([]string, 0, len(g.prods))
	for nt := range g.prods {
		nts = append(nts, nt)
	}
	sort.Strings(nts)
	return nts
}

// IsNonterminal reports whether label has at least one production.
func (g *Grammar) IsNonterminal(label string) bool {
	return len(g.prods[label]) > 0
}

// Productions returns nonterm's productions in insertion order.
func (g *Grammar) Productions(nonterm string) []Production {
	return g.prods[nonterm]
}

// Index returns the position of p among nonterm's productions.
func (g *Grammar) Index(nonterm string, p Production) (int, bool) {
	i, ok := g.index[nonterm][p.Key()]
	return i, ok
}

// Has reports whether nonterm -> p is in the grammar.
func (g *Grammar) Has(nonterm string, p Production) bool {
	_, ok := g.Index(nonterm, p)
	return ok
}

// Len returns the total number of productions.
func (g *Grammar) Len() int {
	total := 0
	for _, ps := range g.prods {
		total += len(ps)
	}
	return total
}

// NonterminalChildren counts the labels of p that are nonterminals of g.
func (g *Grammar) NonterminalChildren(p Production) int {
	count := 0
	for _, label := range p {
		if g.IsNonterminal(label) {
			count++
		}
	}
	return count
}

// Rows renders the grammar as table rows, one (nonterm, production key) pair
// per production.
func (g *Grammar) Rows() [][]string {
	var rows [][]string
	for _, nt := range g.Nonterminals() {
		for _, p := range g.prods[nt] {
			rows = append(rows, []string{nt, p.Key()})
		}
	}
	return rows
}

// FromRows is the inverse of Rows. Columns after the first are each read as
// a production of the first.
func FromRows(rows [][]string) *Grammar {
	g := New()
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		for _, key := range row[1:] {
			g.Add(row[0], ParseKey(key))
		}
	}
	return g
}
