package artifacts

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/gramstats/internal/config"
	"github.com/jward/gramstats/internal/corpus"
	"github.com/jward/gramstats/internal/ctxlog"
	"github.com/jward/gramstats/internal/grammar"
	"github.com/jward/gramstats/internal/registry"
	"github.com/jward/gramstats/internal/render"
	"github.com/jward/gramstats/internal/store"
	"github.com/jward/gramstats/internal/tree"
)

// harness runs single artifacts against a namespace the test controls.
type harness struct {
	t       *testing.T
	ctx     context.Context
	cfg     *config.Config
	ns      *store.Namespace
	renders map[string]string
	logs    *bytes.Buffer
}

func newHarness(t *testing.T, trees ...*tree.Node) *harness {
	t.Helper()
	cfg := config.Default()
	cfg.OutputDir = t.TempDir()
	cfg.Trees = trees
	logs := &bytes.Buffer{}
	return &harness{
		t:       t,
		ctx:     ctxlog.WithLogger(context.Background(), ctxlog.New("debug", "text", logs)),
		cfg:     cfg,
		ns:      store.NewNamespace(),
		renders: map[string]string{},
		logs:    logs,
	}
}

func builtin(t *testing.T, name string) registry.Descriptor {
	t.Helper()
	for _, d := range Builtins() {
		if d.Name == name {
			if d.Kind == registry.KindTable && d.Ext == "" {
				d.Ext = ".csv"
			}
			return d
		}
	}
	t.Fatalf("no builtin %q", name)
	return registry.Descriptor{}
}

func (h *harness) path(name string) string {
	return h.cfg.PathFor(name, builtin(h.t, name).Ext)
}

func (h *harness) run(name string, prior store.Table) (store.Table, error) {
	h.t.Helper()
	d := builtin(h.t, name)
	in := &registry.Input{
		Name:     name,
		Path:     h.path(name),
		Prior:    prior,
		HasPrior: prior != nil,
		Tables:   h.ns,
		Config:   h.cfg,
		Store:    store.NewFileStore(false, ""),
		Renderer: render.Func(func(_ context.Context, base, dot string) ([]string, error) {
			h.renders[base] = dot
			return []string{base + ".dot"}, nil
		}),
	}
	t, err := d.Compute(h.ctx, in)
	if err != nil {
		return nil, err
	}
	require.NoError(h.t, h.ns.Publish(name, t))
	return t, nil
}

func (h *harness) mustRun(name string, prior store.Table) store.Table {
	h.t.Helper()
	t, err := h.run(name, prior)
	require.NoError(h.t, err)
	return t
}

func (h *harness) file(name string) string {
	h.t.Helper()
	data, err := os.ReadFile(h.path(name))
	require.NoError(h.t, err)
	return string(data)
}

func diffTables(t *testing.T, want, got store.Table) {
	t.Helper()
	if diff := cmp.Diff(want.Strings(), got.Strings()); diff != "" {
		t.Errorf("table mismatch (-want +got):\n%s", diff)
	}
}

func parse(t *testing.T, s string) *tree.Node {
	t.Helper()
	n, err := tree.ParseString(s)
	require.NoError(t, err)
	return n
}

// sab is (S a b).
func sab() *tree.Node {
	return tree.New("S", tree.New("a"), tree.New("b"))
}

// =============================================================================
// Registration
// =============================================================================

func TestRegister_AllBuiltinsResolve(t *testing.T) {
	t.Parallel()

	r := registry.New(registry.WithStrict())
	require.NoError(t, Register(r))
	assert.Equal(t, len(Builtins()), r.Len())

	order, err := r.TopologicalOrder()
	require.NoError(t, err)
	pos := map[string]int{}
	for i, n := range order {
		pos[n] = i
	}
	assert.Less(t, pos["infer_grammar"], pos["production_count"])
	assert.Less(t, pos["production_count"], pos["production_probability"])
	assert.Less(t, pos["verify_grammar"], pos["grammar"])
	assert.Less(t, pos["conditional_counts"], pos["conditional_probabilities"])

	assert.Error(t, Register(r), "registering twice in strict mode fails")
}

// =============================================================================
// Symbol counts
// =============================================================================

func TestSymbolCount_ThreeNodeTree(t *testing.T) {
	t.Parallel()

	h := newHarness(t, sab())
	got := h.mustRun("symbol_count", nil)
	diffTables(t, store.Table{{"S", 1}, {"a", 1}, {"b", 1}}, got)
	assert.Equal(t, "S, 1\na, 1\nb, 1\n\n", h.file("symbol_count"))
}

func TestSymbolCount_FoldsPrior(t *testing.T) {
	t.Parallel()

	h := newHarness(t, sab())
	got := h.mustRun("symbol_count", store.Table{{"S", 2}, {"z", 5}})
	diffTables(t, store.Table{{"S", 3}, {"a", 1}, {"b", 1}, {"z", 5}}, got)

	_, err := h.run("non_term_count", store.Table{{"S"}})
	assert.ErrorContains(t, err, "want 2 columns")
}

func TestTermAndNonTermCounts(t *testing.T) {
	t.Parallel()

	h := newHarness(t, parse(t, "2:S\n1:A\n0:a\n0:b\n"), sab())
	diffTables(t, store.Table{{"A", 1}, {"S", 2}}, h.mustRun("non_term_count", nil))
	diffTables(t, store.Table{{"a", 2}, {"b", 2}}, h.mustRun("term_count", nil))
}

// =============================================================================
// Grammar
// =============================================================================

func TestInferGrammar_WritesGrammarFile(t *testing.T) {
	t.Parallel()

	h := newHarness(t, parse(t, "2:S\n1:A\n0:x\n0:b\n"), sab())
	got := h.mustRun("infer_grammar", nil)
	diffTables(t, store.Table{{"A", "x"}, {"S", "A:b"}, {"S", "a:b"}}, got)
	assert.Equal(t, "A : x\nS : A b\nS : a b\n", h.file("infer_grammar"))
	assert.Equal(t, filepath.Join(h.cfg.OutputDir, "infer_grammar.grammar"), h.path("infer_grammar"))
}

func TestInferGrammar_UnionsPrior(t *testing.T) {
	t.Parallel()

	prior, err := store.Decode("T : c d\nS : a b\n", grammarLine)
	require.NoError(t, err)

	h := newHarness(t, sab())
	got := h.mustRun("infer_grammar", prior)
	diffTables(t, store.Table{{"S", "a:b"}, {"T", "c:d"}}, got)
}

func TestVerifyGrammar_WarnsOnUnknownProductions(t *testing.T) {
	t.Parallel()

	h := newHarness(t, sab(), tree.New("S", tree.New("c")))
	known, err := grammar.ParseString("S : a b\n")
	require.NoError(t, err)
	h.cfg.Grammar = known

	h.mustRun("infer_grammar", nil)
	got := h.mustRun("verify_grammar", nil)
	diffTables(t, store.Table{{"S", "c"}}, got)
	assert.Contains(t, h.logs.String(), "level=WARN")
	assert.Contains(t, h.logs.String(), "S -> c")

	published := h.mustRun("grammar", nil)
	diffTables(t, store.Table{{"S", "a:b"}}, published)
}

// =============================================================================
// Productions
// =============================================================================

func TestProductionCount_TwoTreesOneProduction(t *testing.T) {
	t.Parallel()

	h := newHarness(t, sab(), sab())
	require.NoError(t, h.ns.Publish("infer_grammar", store.Table{{"S", "a:b"}}))

	got := h.mustRun("production_count", nil)
	diffTables(t, store.Table{{"S", "a:b", 2}}, got)
}

func TestProductionCount_ZeroRowsAndPrior(t *testing.T) {
	t.Parallel()

	h := newHarness(t, sab())
	require.NoError(t, h.ns.Publish("infer_grammar", store.Table{{"S", "a:b"}, {"S", "c"}}))

	got := h.mustRun("production_count", store.Table{{"S", "c", 3}})
	diffTables(t, store.Table{{"S", "a:b", 1}, {"S", "c", 3}}, got)
}

func TestProductionCount_UnknownProduction(t *testing.T) {
	t.Parallel()

	h := newHarness(t, sab())
	require.NoError(t, h.ns.Publish("infer_grammar", store.Table{{"S", "c"}}))
	_, err := h.run("production_count", nil)
	assert.ErrorContains(t, err, `"S => a:b" not in grammar`)
}

func TestProductionProbability(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	require.NoError(t, h.ns.Publish("production_count", store.Table{
		{"S", "a:b", 3}, {"S", "c", 1}, {"T", "x", 0},
	}))
	got := h.mustRun("production_probability", nil)
	diffTables(t, store.Table{{"S", "a:b", 0.75}, {"S", "c", 0.25}}, got)
}

// =============================================================================
// Conditional statistics
// =============================================================================

func chain() *tree.Node {
	return tree.New("S",
		tree.New("A", tree.New("a")),
		tree.New("B", tree.New("C", tree.New("c"))),
	)
}

func TestConditionalCounts(t *testing.T) {
	t.Parallel()

	h := newHarness(t, chain())
	h.mustRun("infer_grammar", nil)
	got := h.mustRun("conditional_counts", nil)
	diffTables(t, store.Table{
		{2, "A => a", "<s>", "S", 1},
		{2, "B => C", "<s>", "S", 1},
		{2, "C => c", "S", "B", 1},
		{2, "S => A:B", "<s>", "<s>", 1},
	}, got)

	decoded, err := store.Decode(h.file("conditional_counts"), builtin(t, "conditional_counts").Decoder)
	require.NoError(t, err)
	diffTables(t, got, decoded)
}

func TestConditionalCounts_FoldsPrior(t *testing.T) {
	t.Parallel()

	h := newHarness(t, chain())
	h.mustRun("infer_grammar", nil)
	got := h.mustRun("conditional_counts", store.Table{{2, "S => A:B", "<s>", "<s>", 4}})
	assert.Equal(t, "5", got.Strings()[3][4])

	h2 := newHarness(t, chain())
	h2.mustRun("infer_grammar", nil)
	_, err := h2.run("conditional_counts", store.Table{{3, "S => A:B", "<s>", "<s>", "<s>", 4}})
	assert.ErrorContains(t, err, "want 5 columns")
}

func TestConditionalProbabilities_SumToOne(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	require.NoError(t, h.ns.Publish("infer_grammar", store.Table{{"S", "A"}, {"S", "A:A"}, {"A", "x"}}))
	require.NoError(t, h.ns.Publish("conditional_counts", store.Table{
		{1, "S => A", "<s>", 6},
		{1, "S => A:A", "<s>", 4},
		{1, "A => x", "S", 14},
	}))

	got := h.mustRun("conditional_probabilities", nil)
	diffTables(t, store.Table{
		{1, "A => x", "S", 1.0},
		{1, "S => A", "<s>", 0.6},
		{1, "S => A:A", "<s>", 0.4},
	}, got)
}

// =============================================================================
// Tree shape
// =============================================================================

func TestProdNgrams(t *testing.T) {
	t.Parallel()

	h := newHarness(t, tree.New("S", tree.New("A", tree.New("a")), tree.New("b")), sab())
	h.cfg.NGram = 2
	got := h.mustRun("prod_ngrams", nil)
	diffTables(t, store.Table{
		{0, "A", "a"},
		{0, "S", "A"},
		{0, "S", "b"},
		{1, "S", "a"},
		{1, "S", "b"},
	}, got)
}

func TestTreeNgrams_LengthThree(t *testing.T) {
	t.Parallel()

	grams := treeNgrams(chain(), 3)
	var joined []string
	for _, g := range grams {
		joined = append(joined, g[0]+" "+g[1]+" "+g[2])
	}
	assert.ElementsMatch(t, []string{"S A a", "S B C", "B C c"}, joined)
}

func TestTreeNumber(t *testing.T) {
	t.Parallel()

	h := newHarness(t, sab(), parse(t, "1:S\n1:A\n0:a\n"), tree.New("x"))
	got := h.mustRun("tree_number", nil)
	// (S a b): 2^2. (S (A a)): 2^1 * 3^1. A lone leaf: 1.
	diffTables(t, store.Table{{0, "4"}, {1, "6"}, {2, "1"}}, got)
}

func TestShapeNumber_DistinguishesShapes(t *testing.T) {
	t.Parallel()

	left := parse(t, "2:S\n1:A\n0:a\n0:b\n")
	right := parse(t, "2:S\n0:a\n1:B\n0:b\n")
	assert.NotEqual(t, shapeNumber(left).String(), shapeNumber(right).String())

	p := newPrimes()
	var first []int64
	for range 8 {
		first = append(first, p.next())
	}
	assert.Equal(t, []int64{2, 3, 5, 7, 11, 13, 17, 19}, first)
}

// =============================================================================
// Coverage
// =============================================================================

func TestAvgFileCoverage(t *testing.T) {
	t.Parallel()

	h := newHarness(t, sab(), sab())
	h.cfg.Coverage = []*corpus.Coverage{
		{Path: "1.coverage", Files: map[string]corpus.FileCoverage{
			"main.sl": {LineCount: 4, Executed: []int{1, 2}},
			"lib.sl":  {LineCount: 0},
		}},
		{Path: "2.coverage", Files: map[string]corpus.FileCoverage{
			"main.sl": {LineCount: 4, Executed: []int{1, 2, 3, 4}},
		}},
	}
	got := h.mustRun("avg_filecov", store.Table{{"old.sl", 1.0, 1.0}})
	diffTables(t, store.Table{
		{"lib.sl", 1.0, 0.5},
		{"main.sl", 1.5, 0.75},
		{"old.sl", 1.0, 0.5},
	}, got)
}

// =============================================================================
// Images
// =============================================================================

func TestAstImages(t *testing.T) {
	t.Parallel()

	h := newHarness(t, sab(), tree.New("x"))
	got := h.mustRun("asts", nil)
	assert.Nil(t, got)

	dir := filepath.Join(h.cfg.OutputDir, "asts")
	require.Len(t, h.renders, 2)
	assert.Contains(t, h.renders[filepath.Join(dir, "0")], `label="S"`)
	assert.Contains(t, h.renders[filepath.Join(dir, "1")], `label="x"`)
}

func TestGrammarGraph(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	require.NoError(t, h.ns.Publish("infer_grammar", store.Table{{"S", "A:b"}, {"S", "A"}, {"A", "x"}}))
	h.mustRun("grammar_graph", nil)

	dot := h.renders[filepath.Join(h.cfg.OutputDir, "grammar_graph")]
	assert.Contains(t, dot, `"S" -> "A";`)
	assert.Contains(t, dot, `"S" -> "b";`)
	assert.Contains(t, dot, `"A" -> "x";`)
	assert.Equal(t, 1, bytes.Count([]byte(dot), []byte(`"S" -> "A";`)))
}

func TestImages_RendererFailureIsPersistenceError(t *testing.T) {
	t.Parallel()

	h := newHarness(t, sab())
	d := builtin(t, "asts")
	in := &registry.Input{
		Name:   "asts",
		Path:   h.path("asts"),
		Tables: h.ns,
		Config: h.cfg,
		Store:  store.NewFileStore(false, ""),
		Renderer: render.Func(func(context.Context, string, string) ([]string, error) {
			return nil, os.ErrPermission
		}),
	}
	_, err := d.Compute(h.ctx, in)
	assert.ErrorIs(t, err, registry.ErrPersistence)
	assert.ErrorIs(t, err, os.ErrPermission)
}
