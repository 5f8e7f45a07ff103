package artifacts

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jward/gramstats/internal/ctxlog"
	"github.com/jward/gramstats/internal/registry"
	"github.com/jward/gramstats/internal/store"
	"github.com/jward/gramstats/internal/tree"
)

// astImages renders every tree under the artifact path as <index>.dot and
// the renderer's formats.
func astImages(ctx context.Context, in *registry.Input) (store.Table, error) {
	logger := ctxlog.FromContext(ctx)
	for i, root := range in.Config.Trees {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		base := filepath.Join(in.Path, strconv.Itoa(i))
		if err := in.Render(ctx, base, tree.Dot(root)); err != nil {
			return nil, err
		}
		logger.Debug("rendered tree", "index", i, "base", base)
	}
	return nil, nil
}

// grammarGraph renders the inferred grammar as nonterminal -> child symbol
// edges, one edge per distinct pair.
func grammarGraph(ctx context.Context, in *registry.Input) (store.Table, error) {
	g, err := grammarFrom(in, "infer_grammar")
	if err != nil {
		return nil, err
	}

	var b strings.Builder
	b.WriteString("digraph grammar {\n")
	b.WriteString("  node [shape=box];\n")
	for _, nt := range g.Nonterminals() {
		fmt.Fprintf(&b, "  %s;\n", tree.DotQuote(nt))
		seen := make(map[string]bool)
		for _, p := range g.Productions(nt) {
			for _, sym := range p {
				if seen[sym] {
					continue
				}
				seen[sym] = true
				fmt.Fprintf(&b, "  %s -> %s;\n", tree.DotQuote(nt), tree.DotQuote(sym))
			}
		}
	}
	b.WriteString("}\n")

	return nil, in.Render(ctx, in.Path, b.String())
}
