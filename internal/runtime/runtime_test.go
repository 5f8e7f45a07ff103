package runtime

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/google/go-cmp/cmp"
	"github.com/risor-io/risor/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/gramstats/internal/config"
	"github.com/jward/gramstats/internal/ctxlog"
	"github.com/jward/gramstats/internal/registry"
	"github.com/jward/gramstats/internal/render"
	"github.com/jward/gramstats/internal/store"
	"github.com/jward/gramstats/internal/tree"
)

// newInput builds an Input for name over trees, writing into a temp dir.
func newInput(t *testing.T, name string, trees ...*tree.Node) (*registry.Input, *store.Namespace) {
	t.Helper()
	cfg := config.Default()
	cfg.OutputDir = t.TempDir()
	cfg.Trees = trees
	ns := store.NewNamespace()
	return &registry.Input{
		Name:   name,
		Path:   cfg.PathFor(name, ".csv"),
		Tables: ns,
		Config: cfg,
		Store:  store.NewFileStore(false, ""),
	}, ns
}

func mustParse(t *testing.T, name, src string) Script {
	t.Helper()
	s, err := ParseScript(name, src)
	require.NoError(t, err)
	return s
}

// =============================================================================
// Directives
// =============================================================================

func TestParseScript_Directives(t *testing.T) {
	t.Parallel()

	s := mustParse(t, "cov_rank", `// Ranks files by coverage.
// depends: avg_filecov, symbol_count
// requires: coverageSupplied
// ext: .tsv

// depends: not_a_directive
rows := []
rows
`)
	assert.Equal(t, "cov_rank", s.Name)
	assert.Equal(t, registry.KindTable, s.Kind)
	assert.Equal(t, []string{"avg_filecov", "symbol_count"}, s.DependsOn)
	assert.Equal(t, []string{config.CoverageSupplied}, s.Requires)
	assert.Equal(t, ".tsv", s.Ext)
}

func TestParseScript_ImageKind(t *testing.T) {
	t.Parallel()

	s := mustParse(t, "g", "// kind: image\n\"digraph {}\"\n")
	assert.Equal(t, registry.KindImage, s.Kind)
}

func TestParseScript_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		src  string
		want string
	}{
		{"unknown capability", "// requires: gpu\n[]", `unknown capability "gpu"`},
		{"unknown kind", "// kind: movie\n[]", `unknown kind "movie"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := ParseScript("bad", tt.src)
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

// =============================================================================
// Loading and registration
// =============================================================================

func TestScripts_FromFS(t *testing.T) {
	t.Parallel()

	fsys := fstest.MapFS{
		"zeta.risor":        {Data: []byte("[]")},
		"alpha.risor":       {Data: []byte("// depends: symbol_count\n[]")},
		"README.md":         {Data: []byte("not a script")},
		"lib/helpers.risor": {Data: []byte("func helper() { return 1 }")},
	}
	rt := NewRuntime("", WithRuntimeFS(fsys))
	scripts, err := rt.Scripts()
	require.NoError(t, err)
	require.Len(t, scripts, 2)
	assert.Equal(t, "alpha", scripts[0].Name)
	assert.Equal(t, "alpha.risor", scripts[0].Path)
	assert.Equal(t, []string{"symbol_count"}, scripts[0].DependsOn)
	assert.Equal(t, "zeta", scripts[1].Name)
}

func TestScripts_FromDir(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "depth.risor"), []byte("[]"), 0o644))

	scripts, err := NewRuntime(dir).Scripts()
	require.NoError(t, err)
	require.Len(t, scripts, 1)
	assert.Equal(t, filepath.Join(dir, "depth.risor"), scripts[0].Path)

	none, err := NewRuntime(filepath.Join(dir, "missing")).Scripts()
	require.NoError(t, err)
	assert.Empty(t, none)

	none, err = NewRuntime("").Scripts()
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestRegister_ScriptsJoinRegistry(t *testing.T) {
	t.Parallel()

	fsys := fstest.MapFS{
		"depth.risor":  {Data: []byte("// depends: symbol_count\n[]")},
		"broken.risor": {Data: []byte("// kind: image\n\"digraph {}\"")},
	}
	reg := registry.New()
	require.NoError(t, reg.Register(registry.Descriptor{
		Name:    "symbol_count",
		Kind:    registry.KindTable,
		Compute: func(context.Context, *registry.Input) (store.Table, error) { return nil, nil },
	}))
	require.NoError(t, NewRuntime("", WithRuntimeFS(fsys)).Register(reg))

	d, ok := reg.Lookup("depth")
	require.True(t, ok)
	assert.Equal(t, []string{"symbol_count"}, d.DependsOn)
	assert.Equal(t, "depth.risor", d.Source)
	assert.Equal(t, ".csv", d.Ext)

	img, ok := reg.Lookup("broken")
	require.True(t, ok)
	assert.Equal(t, registry.KindImage, img.Kind)

	order, err := reg.TopologicalOrder()
	require.NoError(t, err)
	assert.Equal(t, []string{"symbol_count", "broken", "depth"}, order)
}

// =============================================================================
// Evaluation
// =============================================================================

const depthScript = `// One row per tree: index, node count, depth.
rows := []
for i, t := range trees {
    nodes := preorder(t)
    depth := 0
    for _, n := range nodes {
        if n["depth"] > depth {
            depth = n["depth"]
        }
    }
    rows.append([i, len(nodes), depth])
}
rows
`

func TestRun_TableScript(t *testing.T) {
	t.Parallel()

	in, _ := newInput(t, "tree_depth",
		tree.New("S", tree.New("A", tree.New("a")), tree.New("b")),
		tree.New("x"),
	)
	s := mustParse(t, "tree_depth", depthScript)

	got, err := NewRuntime("").Run(context.Background(), s, in)
	require.NoError(t, err)
	if diff := cmp.Diff(store.Table{{0, 4, 3}, {1, 1, 1}}, got); diff != "" {
		t.Errorf("table mismatch (-want +got):\n%s", diff)
	}

	data, err := os.ReadFile(in.Path)
	require.NoError(t, err)
	assert.Equal(t, "0, 4, 3\n1, 1, 1\n\n", string(data))
}

func TestRun_PriorAndDependencies(t *testing.T) {
	t.Parallel()

	in, ns := newInput(t, "total")
	require.NoError(t, ns.Publish("symbol_count", store.Table{{"S", 2}, {"a", 3}}))
	in.Prior = store.Table{{10}}
	in.HasPrior = true

	s := mustParse(t, "total", `// depends: symbol_count
total := 0
for _, row := range tables["symbol_count"] {
    total += row[1]
}
if prior != nil {
    total += prior[0][0]
}
[[total, config["name"], config["ngram"]]]
`)
	got, err := NewRuntime("").Run(context.Background(), s, in)
	require.NoError(t, err)
	assert.Equal(t, store.Table{{15, "total", config.DefaultNGram}}, got)
}

func TestRun_MissingDependency(t *testing.T) {
	t.Parallel()

	in, _ := newInput(t, "total")
	s := mustParse(t, "total", "// depends: symbol_count\n[]")
	_, err := NewRuntime("").Run(context.Background(), s, in)
	assert.ErrorContains(t, err, `dependency "symbol_count" has not been produced`)
}

func TestRun_LogForwardsToSlog(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	ctx := ctxlog.WithLogger(context.Background(), ctxlog.New("info", "text", &buf))
	in, _ := newInput(t, "chatty")
	s := mustParse(t, "chatty", `log.warn("odd corpus", {"trees": len(trees)})
[]
`)
	got, err := NewRuntime("").Run(ctx, s, in)
	require.NoError(t, err)
	assert.Empty(t, got)

	out := buf.String()
	assert.Contains(t, out, "level=WARN")
	assert.Contains(t, out, `msg="odd corpus"`)
	assert.Contains(t, out, "script=chatty")
	assert.Contains(t, out, "trees=0")
}

func TestRun_ImageScript(t *testing.T) {
	t.Parallel()

	in, _ := newInput(t, "shape")
	in.Path = filepath.Join(in.Config.OutputDir, "shape")
	var gotBase, gotDot string
	in.Renderer = render.Func(func(_ context.Context, base, dot string) ([]string, error) {
		gotBase, gotDot = base, dot
		return []string{base + ".dot"}, nil
	})

	s := mustParse(t, "shape", "// kind: image\n\"digraph { a -> b }\"\n")
	got, err := NewRuntime("").Run(context.Background(), s, in)
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Equal(t, in.Path, gotBase)
	assert.Equal(t, "digraph { a -> b }", gotDot)
}

func TestRun_BadResults(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		src  string
		want string
	}{
		{"not a list", "42", "must evaluate to a list of rows"},
		{"row not a list", "[1, 2]", "row 1: expected list"},
		{"bad cell", "[[{}]]", "row 1 column 1: unsupported cell type"},
		{"image not a string", "// kind: image\n[]", "must evaluate to a string"},
		{"script error", "no_such_function()", "runtime: script bad"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			in, _ := newInput(t, "bad")
			in.Renderer = render.Func(func(context.Context, string, string) ([]string, error) { return nil, nil })
			s := mustParse(t, "bad", tt.src)
			_, err := NewRuntime("").Run(context.Background(), s, in)
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestRunSource_HostFunctions(t *testing.T) {
	t.Parallel()

	rt := NewRuntime("")
	got, err := rt.RunSource(context.Background(), `rule(parse_tree(src))`, map[string]any{
		"src": object.NewString("2:S\n0:a\n1:B\n0:b\n"),
	})
	require.NoError(t, err)
	s, ok := got.(*object.String)
	require.True(t, ok)
	assert.Equal(t, "S => a:B", s.Value())

	got, err = rt.RunSource(context.Background(), `len(preorder(parse_tree(src)))`, map[string]any{
		"src": object.NewString("2:S\n0:a\n1:B\n0:b\n"),
	})
	require.NoError(t, err)
	assert.Equal(t, object.NewInt(4), got)

	_, err = rt.RunSource(context.Background(), `parse_tree("x")`, nil)
	assert.ErrorContains(t, err, "parse_tree")
}

func TestToTable_Nil(t *testing.T) {
	t.Parallel()

	got, err := toTable(object.Nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestTableObject_RoundTrip(t *testing.T) {
	t.Parallel()

	in := store.Table{{"S", 1, 0.5, true}}
	got, err := toTable(tableObject(in))
	require.NoError(t, err)
	assert.Equal(t, in, got)
}
