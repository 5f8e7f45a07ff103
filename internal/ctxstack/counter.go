package ctxstack

import (
	"fmt"
	"sort"

	"github.com/jward/gramstats/internal/grammar"
	"github.com/jward/gramstats/internal/tree"
)

// EntryMode selects what an internal node contributes to the window of its
// descendants.
type EntryMode int

const (
	// EntryLabel pushes the node's label (the default).
	EntryLabel EntryMode = iota
	// EntryRule pushes the node's full rule, e.g. "A => b:C".
	EntryRule
)

// Option configures a Counter.
type Option func(*Counter)

// WithEntryMode selects the window entry variant.
func WithEntryMode(mode EntryMode) Option {
	return func(c *Counter) {
		c.mode = mode
	}
}

type jointKey struct {
	nonterm    string
	production string
	context    string
}

type marginalKey struct {
	context string
	nonterm string
}

// Count is the number of times a production was chosen under a context.
type Count struct {
	Nonterm    string
	Production grammar.Production
	Context    Window
	N          int
}

// Probability is P(production | context) for one nonterminal.
type Probability struct {
	Nonterm    string
	Production grammar.Production
	Context    Window
	P          float64
}

// Counter accumulates joint (production, context) counts and marginal
// (context, nonterminal) counts across a forest. Joint and marginal counts
// are always incremented together, so normalized probabilities for one
// nonterminal under one context sum to 1.
type Counter struct {
	grammar  *grammar.Grammar
	k        int
	mode     EntryMode
	stack    *Stack
	joint    map[jointKey]int
	marginal map[marginalKey]int
	contexts map[string]Window
}

// NewCounter returns a counter for windows of length k over g. g decides
// which production a node instantiates and which children are nonterminals.
func NewCounter(g *grammar.Grammar, k int, opts ...Option) *Counter {
	c := &Counter{
		grammar:  g,
		k:        k,
		stack:    NewStack(k),
		joint:    make(map[jointKey]int),
		marginal: make(map[marginalKey]int),
		contexts: make(map[string]Window),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Window returns the configured context length.
func (c *Counter) Window() int {
	return c.k
}

// Observe counts every tree of the forest, resetting the context stack at
// the start of each tree.
func (c *Counter) Observe(trees []*tree.Node) error {
	for i, t := range trees {
		if err := c.ObserveTree(t); err != nil {
			return fmt.Errorf("tree %d: %w", i, err)
		}
	}
	return nil
}

// ObserveTree counts one tree.
func (c *Counter) ObserveTree(root *tree.Node) error {
	c.stack.Reset()
	var err error
	tree.Visit(root, func(n *tree.Node, _ int) {
		if err == nil {
			err = c.visit(n)
		}
	})
	return err
}

func (c *Counter) visit(n *tree.Node) error {
	top := c.stack.Top()
	if n.IsLeaf() {
		c.stack.PopPending()
		return nil
	}
	c.stack.PopPending()

	p := grammar.ProductionOf(n)
	if !c.grammar.Has(n.Label, p) {
		return fmt.Errorf("ctxstack: production %q not in grammar", grammar.Rule(n.Label, p))
	}
	c.Add(n.Label, p, top.Window, 1)

	entry := n.Label
	if c.mode == EntryRule {
		entry = grammar.Rule(n.Label, p)
	}
	// Several nonterminal children share the new window, so it persists;
	// otherwise it is consumed by the next node visited.
	c.stack.Push(Frame{
		Window:     top.Window.Shift(entry),
		PendingPop: c.grammar.NonterminalChildren(p) <= 1,
	})
	return nil
}

// Add records n observations of nonterm -> p under context. It is also how
// counts persisted by an earlier run are folded back in.
func (c *Counter) Add(nonterm string, p grammar.Production, context Window, n int) {
	ck := context.Key()
	if _, ok := c.contexts[ck]; !ok {
		c.contexts[ck] = append(Window(nil), context...)
	}
	c.joint[jointKey{nonterm: nonterm, production: p.Key(), context: ck}] += n
	c.marginal[marginalKey{context: ck, nonterm: nonterm}] += n
}

// Counts returns the joint counts sorted by nonterminal, production, and
// context.
func (c *Counter) Counts() []Count {
	keys := c.sortedKeys()
	out := make([]Count, 0, len(keys))
	for _, k := range keys {
		out = append(out, Count{
			Nonterm:    k.nonterm,
			Production: grammar.ParseKey(k.production),
			Context:    c.contexts[k.context],
			N:          c.joint[k],
		})
	}
	return out
}

// Marginal returns how often nonterm was expanded under context.
func (c *Counter) Marginal(nonterm string, context Window) int {
	return c.marginal[marginalKey{context: context.Key(), nonterm: nonterm}]
}

// Probabilities normalizes each joint count by its (context, nonterminal)
// marginal, in the same order as Counts.
func (c *Counter) Probabilities() []Probability {
	keys := c.sortedKeys()
	out := make([]Probability, 0, len(keys))
	for _, k := range keys {
		total := c.marginal[marginalKey{context: k.context, nonterm: k.nonterm}]
		if total == 0 {
			continue
		}
		out = append(out, Probability{
			Nonterm:    k.nonterm,
			Production: grammar.ParseKey(k.production),
			Context:    c.contexts[k.context],
			P:          float64(c.joint[k]) / float64(total),
		})
	}
	return out
}

func (c *Counter) sortedKeys() []jointKey {
	keys := make([]jointKey, 0, len(c.joint))
	for k := range c.joint {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if a.nonterm != b.nonterm {
			return a.nonterm < b.nonterm
		}
		if a.production != b.production {
			return a.production < b.production
		}
		return a.context < b.context
	})
	return keys
}
