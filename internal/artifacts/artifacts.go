// Package artifacts implements the built-in tables and images.
//
// Each compute function receives its prior table (when incremental mode
// found one), folds the current corpus into it, persists the result through
// Input.Save and returns it for dependents.
package artifacts

import (
	"fmt"

	"github.com/jward/gramstats/internal/config"
	"github.com/jward/gramstats/internal/grammar"
	"github.com/jward/gramstats/internal/registry"
	"github.com/jward/gramstats/internal/store"
)

// Builtins returns the built-in descriptors in registration order.
func Builtins() []registry.Descriptor {
	return []registry.Descriptor{
		{Name: "symbol_count", Kind: registry.KindTable, Decoder: store.IntColumns(-1), Compute: symbolCount},
		{Name: "non_term_count", Kind: registry.KindTable, Decoder: store.IntColumns(-1), Compute: nonTermCount},
		{Name: "term_count", Kind: registry.KindTable, Decoder: store.IntColumns(-1), Compute: termCount},
		{Name: "infer_grammar", Kind: registry.KindTable, Ext: ".grammar", Decoder: grammarLine, Compute: inferGrammar},
		{
			Name:      "verify_grammar",
			Kind:      registry.KindTable,
			DependsOn: []string{"infer_grammar"},
			Requires:  []string{config.GrammarSupplied},
			Compute:   verifyGrammar,
		},
		{
			Name:      "grammar",
			Kind:      registry.KindTable,
			DependsOn: []string{"verify_grammar"},
			Requires:  []string{config.GrammarSupplied},
			Compute:   suppliedGrammar,
		},
		{
			Name:      "production_count",
			Kind:      registry.KindTable,
			DependsOn: []string{"infer_grammar"},
			Decoder:   store.IntColumns(-1),
			Compute:   productionCount,
		},
		{
			Name:      "production_probability",
			Kind:      registry.KindTable,
			DependsOn: []string{"production_count", "infer_grammar"},
			Compute:   productionProbability,
		},
		{
			Name:      "conditional_counts",
			Kind:      registry.KindTable,
			DependsOn: []string{"infer_grammar"},
			Decoder:   store.IntColumns(0, -1),
			Compute:   conditionalCounts,
		},
		{
			Name:      "conditional_probabilities",
			Kind:      registry.KindTable,
			DependsOn: []string{"conditional_counts", "infer_grammar"},
			Compute:   conditionalProbabilities,
		},
		{Name: "prod_ngrams", Kind: registry.KindTable, Compute: prodNgrams},
		{Name: "tree_number", Kind: registry.KindTable, Compute: treeNumber},
		{
			Name:     "avg_filecov",
			Kind:     registry.KindTable,
			Requires: []string{config.CoverageSupplied},
			Decoder:  store.FloatColumns(1, 2),
			Compute:  avgFileCoverage,
		},
		{Name: "asts", Kind: registry.KindImage, Compute: astImages},
		{
			Name:      "grammar_graph",
			Kind:      registry.KindImage,
			DependsOn: []string{"infer_grammar"},
			Compute:   grammarGraph,
		},
	}
}

// Register adds every built-in artifact to r.
func Register(r *registry.Registry) error {
	for _, d := range Builtins() {
		if err := r.Register(d); err != nil {
			return fmt.Errorf("artifacts: %w", err)
		}
	}
	return nil
}

// grammarTable renders g as (nonterm, production key) rows.
func grammarTable(g *grammar.Grammar) store.Table {
	rows := g.Rows()
	t := make(store.Table, len(rows))
	for i, row := range rows {
		t[i] = store.Row{row[0], row[1]}
	}
	return t
}

// grammarFrom reads a grammar published by name.
func grammarFrom(in *registry.Input, name string) (*grammar.Grammar, error) {
	t, err := in.Dependency(name)
	if err != nil {
		return nil, err
	}
	return grammar.FromRows(t.Strings()), nil
}
