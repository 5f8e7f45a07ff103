package artifacts

import (
	"context"
	"fmt"
	"sort"

	"github.com/jward/gramstats/internal/registry"
	"github.com/jward/gramstats/internal/store"
	"github.com/jward/gramstats/internal/tree"
)

func symbolCount(ctx context.Context, in *registry.Input) (store.Table, error) {
	return countSymbols(in, func(*tree.Node) bool { return true })
}

func nonTermCount(ctx context.Context, in *registry.Input) (store.Table, error) {
	return countSymbols(in, func(n *tree.Node) bool { return !n.IsLeaf() })
}

func termCount(ctx context.Context, in *registry.Input) (store.Table, error) {
	return countSymbols(in, (*tree.Node).IsLeaf)
}

// countSymbols tallies the labels of the nodes keep accepts, starting from
// the prior counts.
func countSymbols(in *registry.Input, keep func(*tree.Node) bool) (store.Table, error) {
	counts, err := priorCounts(in.Prior)
	if err != nil {
		return nil, err
	}
	tree.WalkForest(in.Config.Trees, func(n *tree.Node, _ int) {
		if keep(n) {
			counts[n.Label]++
		}
	})
	return in.Save(countTable(counts))
}

func priorCounts(prior store.Table) (map[string]int, error) {
	counts := make(map[string]int)
	for i, row := range prior {
		if len(row) != 2 {
			return nil, fmt.Errorf("prior row %d: want 2 columns, got %d", i+1, len(row))
		}
		n, err := store.Int(row[1])
		if err != nil {
			return nil, fmt.Errorf("prior row %d: %w", i+1, err)
		}
		counts[store.Format(row[0])] += n
	}
	return counts, nil
}

func countTable(counts map[string]int) store.Table {
	labels := make([]string, 0, len(counts))
	for l := range counts {
		labels = append(labels, l)
	}
	sort.Strings(labels)
	t := make(store.Table, len(labels))
	for i, l := range labels {
		t[i] = store.Row{l, counts[l]}
	}
	return t
}
