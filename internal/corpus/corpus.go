// Package corpus loads forests of labeled trees: pre-order tree files,
// blank-line separated trees on standard input, and source files parsed with
// tree-sitter. Coverage files accompanying tree files are loaded here too.
package corpus

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/jward/gramstats/internal/tree"
)

// Sorted returns a sorted copy of paths. Trees are always loaded in path
// order so tables derived from them are reproducible.
func Sorted(paths []string) []string {
	out := append([]string(nil), paths...)
	sort.Strings(out)
	return out
}

// LoadFiles reads one tree per file. Files are parsed in parallel; the
// returned forest follows the order of paths.
func LoadFiles(ctx context.Context, paths []string) ([]*tree.Node, error) {
	return loadParallel(ctx, paths, func(_ context.Context, path string) (*tree.Node, error) {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return tree.Parse(f)
	})
}

// LoadReader reads a forest of blank-line separated trees.
func LoadReader(r io.Reader) ([]*tree.Node, error) {
	trees, err := tree.ParseForest(r)
	if err != nil {
		return nil, fmt.Errorf("corpus: %w", err)
	}
	return trees, nil
}

// LoadSource parses source files with tree-sitter and converts each syntax
// tree to a labeled tree.
func LoadSource(ctx context.Context, paths []string) ([]*tree.Node, error) {
	return loadParallel(ctx, paths, func(ctx context.Context, path string) (*tree.Node, error) {
		lang, ok := LanguageForFile(path)
		if !ok {
			return nil, fmt.Errorf("unsupported file type")
		}
		src, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		return ParseSource(ctx, src, lang)
	})
}

func loadParallel(ctx context.Context, paths []string, load func(context.Context, string) (*tree.Node, error)) ([]*tree.Node, error) {
	trees := make([]*tree.Node, len(paths))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(max(runtime.NumCPU(), 1))
	for i, path := range paths {
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			t, err := load(gCtx, path)
			if err != nil {
				return fmt.Errorf("corpus: %s: %w", path, err)
			}
			trees[i] = t
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return trees, nil
}
