package render

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleDot = "digraph tree {\n  n0 [label=\"S\"];\n}\n"

func TestGraphviz_WritesDotBeforeRendering(t *testing.T) {
	t.Parallel()

	base := filepath.Join(t.TempDir(), "imgs", "0")
	g := &Graphviz{Command: "gramstats-no-such-layout-tool", Formats: []string{"png"}}
	assert.False(t, g.Available())

	written, err := g.Render(context.Background(), base, sampleDot)
	require.Error(t, err)
	assert.Equal(t, []string{base + ".dot"}, written)

	data, err := os.ReadFile(base + ".dot")
	require.NoError(t, err)
	assert.Equal(t, sampleDot, string(data))
}

func TestGraphviz_Render(t *testing.T) {
	t.Parallel()

	g := NewGraphviz()
	if !g.Available() {
		t.Skip("dot not installed")
	}
	base := filepath.Join(t.TempDir(), "tree")
	written, err := g.Render(context.Background(), base, sampleDot)
	require.NoError(t, err)
	assert.Equal(t, []string{base + ".dot", base + ".plain", base + ".png"}, written)
	for _, p := range written {
		assert.FileExists(t, p)
	}
}

func TestFunc(t *testing.T) {
	t.Parallel()

	var got string
	r := Func(func(_ context.Context, base, dot string) ([]string, error) {
		got = base + "|" + dot
		return []string{base + ".png"}, nil
	})
	written, err := r.Render(context.Background(), "b", "d")
	require.NoError(t, err)
	assert.Equal(t, "b|d", got)
	assert.Equal(t, []string{"b.png"}, written)
}
