package artifacts

import (
	"context"
	"fmt"
	"sort"

	"github.com/jward/gramstats/internal/grammar"
	"github.com/jward/gramstats/internal/registry"
	"github.com/jward/gramstats/internal/store"
	"github.com/jward/gramstats/internal/tree"
)

type prodKey struct {
	nonterm string
	key     string
}

// productionCount counts how often each production of the inferred grammar
// is instantiated. Every production of the grammar gets a row, zero counts
// included.
func productionCount(ctx context.Context, in *registry.Input) (store.Table, error) {
	g, err := grammarFrom(in, "infer_grammar")
	if err != nil {
		return nil, err
	}

	counts := make(map[prodKey]int)
	for _, nt := range g.Nonterminals() {
		for _, p := range g.Productions(nt) {
			counts[prodKey{nt, p.Key()}] = 0
		}
	}
	for i, row := range in.Prior {
		if len(row) != 3 {
			return nil, fmt.Errorf("prior row %d: want 3 columns, got %d", i+1, len(row))
		}
		n, err := store.Int(row[2])
		if err != nil {
			return nil, fmt.Errorf("prior row %d: %w", i+1, err)
		}
		counts[prodKey{store.Format(row[0]), store.Format(row[1])}] += n
	}

	for i, t := range in.Config.Trees {
		var missing error
		tree.Visit(t, func(n *tree.Node, _ int) {
			if n.IsLeaf() || missing != nil {
				return
			}
			p := grammar.ProductionOf(n)
			if !g.Has(n.Label, p) {
				missing = fmt.Errorf("tree %d: production %q not in grammar", i, grammar.Rule(n.Label, p))
				return
			}
			counts[prodKey{n.Label, p.Key()}]++
		})
		if missing != nil {
			return nil, missing
		}
	}

	keys := make([]prodKey, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sortProductions(g, keys)

	t := make(store.Table, len(keys))
	for i, k := range keys {
		t[i] = store.Row{k.nonterm, k.key, counts[k]}
	}
	return in.Save(t)
}

// sortProductions orders keys by nonterminal, then by the production's
// position in g. Productions g does not know sort last by key.
func sortProductions(g *grammar.Grammar, keys []prodKey) {
	index := func(k prodKey) int {
		if i, ok := g.Index(k.nonterm, grammar.ParseKey(k.key)); ok {
			return i
		}
		return len(g.Productions(k.nonterm))
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if a.nonterm != b.nonterm {
			return a.nonterm < b.nonterm
		}
		ia, ib := index(a), index(b)
		if ia != ib {
			return ia < ib
		}
		return a.key < b.key
	})
}

// productionProbability normalizes production counts per nonterminal.
// Nonterminals never observed get no rows.
func productionProbability(ctx context.Context, in *registry.Input) (store.Table, error) {
	counts, err := in.Dependency("production_count")
	if err != nil {
		return nil, err
	}

	totals := make(map[string]int)
	for i, row := range counts {
		if len(row) != 3 {
			return nil, fmt.Errorf("production_count row %d: want 3 columns, got %d", i+1, len(row))
		}
		n, err := store.Int(row[2])
		if err != nil {
			return nil, fmt.Errorf("production_count row %d: %w", i+1, err)
		}
		totals[store.Format(row[0])] += n
	}

	var t store.Table
	for _, row := range counts {
		nt := store.Format(row[0])
		total := totals[nt]
		if total == 0 {
			continue
		}
		n, _ := store.Int(row[2])
		t = append(t, store.Row{nt, store.Format(row[1]), float64(n) / float64(total)})
	}
	return in.Save(t)
}
