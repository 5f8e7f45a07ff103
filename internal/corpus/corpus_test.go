package corpus

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// =============================================================================
// Tree files
// =============================================================================

func TestLoadFiles_KeepsInputOrder(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	var paths []string
	for _, label := range []string{"A", "B", "C", "D", "E", "F", "G", "H"} {
		paths = append(paths, writeFile(t, dir, label+".ast", "1:"+label+"\n0:x\n"))
	}

	trees, err := LoadFiles(context.Background(), paths)
	require.NoError(t, err)
	require.Len(t, trees, len(paths))
	for i, tr := range trees {
		assert.Equal(t, strings.TrimSuffix(filepath.Base(paths[i]), ".ast"), tr.Label)
	}
}

func TestLoadFiles_ReportsPath(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	good := writeFile(t, dir, "good.ast", "0:x\n")
	bad := writeFile(t, dir, "bad.ast", "2:S\n0:a\n")

	_, err := LoadFiles(context.Background(), []string{good, bad})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad.ast")

	_, err = LoadFiles(context.Background(), []string{filepath.Join(dir, "missing.ast")})
	assert.Error(t, err)
}

func TestLoadReader_Forest(t *testing.T) {
	t.Parallel()

	trees, err := LoadReader(strings.NewReader("2:S\n0:a\n0:b\n\n1:T\n0:c\n"))
	require.NoError(t, err)
	require.Len(t, trees, 2)
	assert.Equal(t, "(S a b)", trees[0].String())
	assert.Equal(t, "(T c)", trees[1].String())
}

func TestSorted(t *testing.T) {
	t.Parallel()

	in := []string{"b", "a", "c"}
	assert.Equal(t, []string{"a", "b", "c"}, Sorted(in))
	assert.Equal(t, []string{"b", "a", "c"}, in)
}

// =============================================================================
// Source files
// =============================================================================

func TestLanguageForFile(t *testing.T) {
	t.Parallel()

	lang, ok := LanguageForFile("main.GO")
	require.True(t, ok)
	assert.Equal(t, "go", lang)
	_, ok = LanguageForFile("notes.txt")
	assert.False(t, ok)
}

func TestParseSource_NamedNodesOnly(t *testing.T) {
	t.Parallel()

	root, err := ParseSource(context.Background(), []byte("package main\n"), "go")
	require.NoError(t, err)
	assert.Equal(t, "source_file", root.Label)
	require.Len(t, root.Children, 1)
	assert.Equal(t, "package_clause", root.Children[0].Label)
	require.Len(t, root.Children[0].Children, 1)
	assert.Equal(t, "package_identifier", root.Children[0].Children[0].Label)
}

func TestLoadSource(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := writeFile(t, dir, "x.py", "x = 1\n")
	trees, err := LoadSource(context.Background(), []string{path})
	require.NoError(t, err)
	require.Len(t, trees, 1)
	assert.Equal(t, "module", trees[0].Label)

	_, err = LoadSource(context.Background(), []string{writeFile(t, dir, "x.txt", "")})
	assert.ErrorContains(t, err, "unsupported")
}

// =============================================================================
// Coverage
// =============================================================================

func TestCoveragePath(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "test/ex/29.sl.coverage", CoveragePath("test/ex/29.sl.ast"))
}

func TestParseCoverage(t *testing.T) {
	t.Parallel()

	files, err := ParseCoverage(strings.NewReader("a.sl, 4, 1, 2, 2\nb.sl, 0\n\n"))
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, []int{1, 2}, files["a.sl"].Executed)
	assert.InDelta(t, 0.5, files["a.sl"].Ratio(), 1e-12)
	assert.Equal(t, 1.0, files["b.sl"].Ratio())

	_, err = ParseCoverage(strings.NewReader("a.sl, x\n"))
	assert.ErrorContains(t, err, "line count")
}

func TestLoadCoverage(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	ast := writeFile(t, dir, "1.sl.ast", "0:x\n")
	writeFile(t, dir, "1.sl.coverage", "1.sl, 2, 1\n")

	covs, err := LoadCoverage([]string{ast})
	require.NoError(t, err)
	require.Len(t, covs, 1)
	assert.Equal(t, []string{"1.sl"}, covs[0].FileNames())

	_, err = LoadCoverage([]string{filepath.Join(dir, "2.sl.ast")})
	assert.Error(t, err)
}
