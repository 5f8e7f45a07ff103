package artifacts

import (
	"context"
	"math/big"
	"strings"

	"github.com/jward/gramstats/internal/registry"
	"github.com/jward/gramstats/internal/store"
	"github.com/jward/gramstats/internal/tree"
)

// prodNgrams lists, per tree, every distinct top-down label path of length N.
func prodNgrams(ctx context.Context, in *registry.Input) (store.Table, error) {
	n := in.Config.NGram
	var t store.Table
	for i, root := range in.Config.Trees {
		for _, gram := range treeNgrams(root, n) {
			row := store.Row{i}
			for _, label := range gram {
				row = append(row, label)
			}
			t = append(t, row)
		}
	}
	t.Sort()
	return in.Save(t)
}

// treeNgrams synthesizes, bottom up, the label paths of length at most n
// starting at each node, and collects the ones of length exactly n.
func treeNgrams(root *tree.Node, n int) [][]string {
	seen := make(map[string]bool)
	var grams [][]string
	collect := func(path []string) {
		if len(path) != n {
			return
		}
		key := strings.Join(path, "\x00")
		if !seen[key] {
			seen[key] = true
			grams = append(grams, path)
		}
	}

	tree.Walk[[][]string](root, nil, func(node *tree.Node, _ int, children [][][]string) [][]string {
		paths := [][]string{{node.Label}}
		local := map[string]bool{node.Label: true}
		collect(paths[0])
		for _, child := range children {
			for _, p := range child {
				if len(p) >= n {
					p = p[:n-1]
				}
				path := append([]string{node.Label}, p...)
				key := strings.Join(path, "\x00")
				if local[key] {
					continue
				}
				local[key] = true
				collect(path)
				paths = append(paths, path)
			}
		}
		return paths
	})
	return grams
}

// treeNumber assigns each tree the product of successive primes raised to
// the child count of each node in pre-order. Distinct shapes get distinct
// numbers.
func treeNumber(ctx context.Context, in *registry.Input) (store.Table, error) {
	t := make(store.Table, 0, len(in.Config.Trees))
	for i, root := range in.Config.Trees {
		t = append(t, store.Row{i, shapeNumber(root)})
	}
	return in.Save(t)
}

func shapeNumber(root *tree.Node) *big.Int {
	acc := big.NewInt(1)
	primes := newPrimes()
	tree.Visit(root, func(n *tree.Node, _ int) {
		p := primes.next()
		if k := len(n.Children); k > 0 {
			acc.Mul(acc, new(big.Int).Exp(big.NewInt(p), big.NewInt(int64(k)), nil))
		}
	})
	return acc
}

// primes yields 2, 3, 5, ... by trial division against the primes found so
// far.
type primes struct {
	found []int64
}

func newPrimes() *primes {
	return &primes{}
}

func (p *primes) next() int64 {
	if len(p.found) == 0 {
		p.found = append(p.found, 2)
		return 2
	}
	for c := p.found[len(p.found)-1] + 1; ; c++ {
		prime := true
		for _, q := range p.found {
			if q*q > c {
				break
			}
			if c%q == 0 {
				prime = false
				break
			}
		}
		if prime {
			p.found = append(p.found, c)
			return c
		}
	}
}
