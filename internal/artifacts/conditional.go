package artifacts

import (
	"context"
	"fmt"

	"github.com/jward/gramstats/internal/ctxstack"
	"github.com/jward/gramstats/internal/grammar"
	"github.com/jward/gramstats/internal/registry"
	"github.com/jward/gramstats/internal/store"
)

// Conditional tables have rows of (window, rule, context..., value), with
// window context columns.

// conditionalCounts counts each rule against the window of the last
// ancestor labels in scope.
func conditionalCounts(ctx context.Context, in *registry.Input) (store.Table, error) {
	g, err := grammarFrom(in, "infer_grammar")
	if err != nil {
		return nil, err
	}
	k := in.Config.ContextWindow
	c := ctxstack.NewCounter(g, k)
	if err := addConditionalRows(c, in.Prior, "prior"); err != nil {
		return nil, err
	}
	if err := c.Observe(in.Config.Trees); err != nil {
		return nil, err
	}

	var t store.Table
	for _, cnt := range c.Counts() {
		row := store.Row{k, grammar.Rule(cnt.Nonterm, cnt.Production)}
		for _, entry := range cnt.Context {
			row = append(row, entry)
		}
		t = append(t, append(row, cnt.N))
	}
	return in.Save(t)
}

// conditionalProbabilities normalizes conditional counts by the number of
// times the rule's nonterminal was expanded under the same window.
func conditionalProbabilities(ctx context.Context, in *registry.Input) (store.Table, error) {
	counts, err := in.Dependency("conditional_counts")
	if err != nil {
		return nil, err
	}
	g, err := grammarFrom(in, "infer_grammar")
	if err != nil {
		return nil, err
	}

	k := in.Config.ContextWindow
	if len(counts) > 0 {
		if k, err = store.Int(counts[0][0]); err != nil {
			return nil, fmt.Errorf("conditional_counts row 1: %w", err)
		}
	}
	c := ctxstack.NewCounter(g, k)
	if err := addConditionalRows(c, counts, "conditional_counts"); err != nil {
		return nil, err
	}

	var t store.Table
	for _, p := range c.Probabilities() {
		row := store.Row{k, grammar.Rule(p.Nonterm, p.Production)}
		for _, entry := range p.Context {
			row = append(row, entry)
		}
		t = append(t, append(row, p.P))
	}
	return in.Save(t)
}

// addConditionalRows folds count rows into c. Every row must carry c's
// window length.
func addConditionalRows(c *ctxstack.Counter, rows store.Table, source string) error {
	k := c.Window()
	for i, row := range rows {
		if len(row) != k+3 {
			return fmt.Errorf("%s row %d: want %d columns for window %d, got %d", source, i+1, k+3, k, len(row))
		}
		window, err := store.Int(row[0])
		if err != nil {
			return fmt.Errorf("%s row %d: %w", source, i+1, err)
		}
		if window != k {
			return fmt.Errorf("%s row %d: window %d does not match %d", source, i+1, window, k)
		}
		nt, p, ok := grammar.ParseRule(store.Format(row[1]))
		if !ok {
			return fmt.Errorf("%s row %d: malformed rule %q", source, i+1, store.Format(row[1]))
		}
		prev := make(ctxstack.Window, k)
		for j := range prev {
			prev[j] = store.Format(row[2+j])
		}
		n, err := store.Int(row[k+2])
		if err != nil {
			return fmt.Errorf("%s row %d: %w", source, i+1, err)
		}
		c.Add(nt, p, prev, n)
	}
	return nil
}
