package gramstats

import (
	"context"
	"fmt"
	"math/rand"
	"testing"

	"github.com/jward/gramstats/internal/config"
	"github.com/jward/gramstats/internal/tree"
)

// benchCorpus builds n trees over a small expression grammar. The seed is
// fixed so every run measures the same forest.
func benchCorpus(n int) []*tree.Node {
	rng := rand.New(rand.NewSource(1))
	var expr func(depth int) *tree.Node
	expr = func(depth int) *tree.Node {
		if depth == 0 || rng.Intn(3) == 0 {
			return tree.New("Lit", tree.New(fmt.Sprintf("n%d", rng.Intn(10))))
		}
		switch rng.Intn(3) {
		case 0:
			return tree.New("Add", expr(depth-1), tree.New("+"), expr(depth-1))
		case 1:
			return tree.New("Mul", expr(depth-1), tree.New("*"), expr(depth-1))
		default:
			return tree.New("Paren", tree.New("("), expr(depth-1), tree.New(")"))
		}
	}
	trees := make([]*tree.Node, n)
	for i := range trees {
		trees[i] = tree.New("Prog", expr(6), tree.New(";"))
	}
	return trees
}

func benchConfig(b *testing.B, trees []*tree.Node) *config.Config {
	b.Helper()
	cfg := config.Default()
	cfg.OutputDir = b.TempDir()
	cfg.Trees = trees
	cfg.Capabilities[config.GenerateImages] = false
	return cfg
}

func BenchmarkProduce_Tables(b *testing.B) {
	trees := benchCorpus(200)
	e, err := New()
	if err != nil {
		b.Fatal(err)
	}
	defer e.Close()
	cfg := benchConfig(b, trees)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := e.Produce(context.Background(), cfg); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkAvailable(b *testing.B) {
	e, err := New()
	if err != nil {
		b.Fatal(err)
	}
	defer e.Close()
	cfg := benchConfig(b, benchCorpus(1))

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := e.Available(context.Background(), cfg); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkCorpusDigest(b *testing.B) {
	trees := benchCorpus(500)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		CorpusDigest(trees)
	}
}
