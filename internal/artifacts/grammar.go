package artifacts

import (
	"context"
	"fmt"

	"github.com/jward/gramstats/internal/ctxlog"
	"github.com/jward/gramstats/internal/grammar"
	"github.com/jward/gramstats/internal/registry"
	"github.com/jward/gramstats/internal/store"
)

// grammarLine decodes one "A : b c" line of a persisted grammar file.
func grammarLine(line string) (store.Row, error) {
	g, err := grammar.ParseString(line)
	if err != nil {
		return nil, err
	}
	rows := g.Rows()
	if len(rows) != 1 {
		return nil, fmt.Errorf("want one production, got %d", len(rows))
	}
	return store.Row{rows[0][0], rows[0][1]}, nil
}

// inferGrammar unions the productions of the corpus with the prior grammar
// and writes the grammar file.
func inferGrammar(ctx context.Context, in *registry.Input) (store.Table, error) {
	g := grammar.FromRows(in.Prior.Strings())
	for _, t := range in.Config.Trees {
		g.Observe(t)
	}
	if err := in.WriteFile(in.Path, []byte(g.Format())); err != nil {
		return nil, err
	}
	return grammarTable(g), nil
}

// verifyGrammar warns about every inferred production the supplied grammar
// does not list. It writes nothing.
func verifyGrammar(ctx context.Context, in *registry.Input) (store.Table, error) {
	inferred, err := grammarFrom(in, "infer_grammar")
	if err != nil {
		return nil, err
	}
	known := in.Config.Grammar
	if known == nil {
		return nil, fmt.Errorf("no grammar supplied")
	}

	logger := ctxlog.FromContext(ctx)
	mismatches := inferred.Missing(known)
	for _, m := range mismatches {
		logger.Warn("inferred grammar has a production the supplied grammar lacks", "production", m.String())
	}
	t := make(store.Table, len(mismatches))
	for i, m := range mismatches {
		t[i] = store.Row{m.Nonterminal, m.Production.Key()}
	}
	return t, nil
}

// suppliedGrammar publishes the grammar given on the command line.
func suppliedGrammar(ctx context.Context, in *registry.Input) (store.Table, error) {
	if in.Config.Grammar == nil {
		return nil, fmt.Errorf("no grammar supplied")
	}
	return grammarTable(in.Config.Grammar), nil
}
