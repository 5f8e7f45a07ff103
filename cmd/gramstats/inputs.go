package main

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jward/gramstats/internal/config"
	"github.com/jward/gramstats/internal/corpus"
	"github.com/jward/gramstats/internal/grammar"
	"github.com/jward/gramstats/internal/tree"
)

// buildConfig turns flags, arguments and standard input into a run
// configuration. Validation failures carry the exit code of the check that
// caught them.
func (o *options) buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.Default()
	if o.configPath != "" {
		loaded, err := config.Load(o.configPath)
		if err != nil {
			return nil, exitf(exitConfiguration, "%v", err)
		}
		cfg = loaded
		if o.scriptsDir == "" {
			o.scriptsDir = cfg.ScriptsDir
		}
		if o.ledger == "" {
			o.ledger = cfg.Ledger
		}
	}

	flags := cmd.Flags()
	if flags.Changed("outdir") {
		cfg.OutputDir = o.outDir
	}
	if flags.Changed("imgs") {
		v, err := parseBool(o.imgs)
		if err != nil {
			return nil, err
		}
		cfg.Capabilities[config.GenerateImages] = v
	}
	if flags.Changed("tables") {
		v, err := parseBool(o.tables)
		if err != nil {
			return nil, err
		}
		cfg.Capabilities[config.GenerateTables] = v
	}
	if flags.Changed("window") {
		cfg.ContextWindow = o.window
	}
	if flags.Changed("ngram") {
		cfg.NGram = o.ngram
	}
	cfg.ListOnly = cfg.ListOnly || o.list
	cfg.Excluded = append(cfg.Excluded, o.excluded...)

	for _, spec := range o.artspecs {
		name, path, err := parseArtSpec(spec)
		if err != nil {
			return nil, err
		}
		cfg.Requested[name] = path
	}
	if len(cfg.Requested) > 0 {
		cfg.Capabilities[config.GenerateImages] = false
		cfg.Capabilities[config.GenerateTables] = false
	}

	if o.useTables != "" {
		if err := requireDir(o.useTables, exitFileNotFound); err != nil {
			return nil, err
		}
		cfg.Incremental = true
		cfg.IncrementalSourceDir = o.useTables
	}

	if o.coverage && o.readStdin {
		return nil, exitf(exitStdinAndCoverage, "cannot process both coverage and stdin, supply one or the other")
	}
	if len(args) > 0 && o.readStdin {
		return nil, exitf(exitStdinAndFiles, "cannot process both files and stdin, supply one or the other")
	}
	if len(args) == 0 && !o.readStdin && !cfg.Incremental {
		return nil, exitf(exitNoArgs, "you must provide a list of syntax trees to characterize")
	}

	if info, err := os.Stat(cfg.OutputDir); err == nil && !info.IsDir() {
		return nil, exitf(exitFileInsteadOfDir, "output path %s is a file, not a directory", cfg.OutputDir)
	}

	paths, err := existingFiles(args)
	if err != nil {
		return nil, err
	}
	if cfg.Trees, err = o.loadTrees(cmd, paths); err != nil {
		return nil, err
	}
	if o.coverage {
		if cfg.Coverage, err = loadCoverage(paths); err != nil {
			return nil, err
		}
	}
	if o.grammarPath != "" {
		if cfg.Grammar, err = loadGrammar(o.grammarPath); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// parseBool accepts only the literal words "true" and "false".
func parseBool(s string) (bool, error) {
	switch s {
	case "true":
		return true, nil
	case "false":
		return false, nil
	}
	return false, exitf(exitBadBool, "expected true or false, got %q", s)
}

// parseArtSpec splits "name" or "name:path". The path is made absolute.
func parseArtSpec(spec string) (name, path string, err error) {
	name, path, _ = strings.Cut(spec, ":")
	if name == "" {
		return "", "", exitf(exitBadArtspec, "bad artifact spec %q", spec)
	}
	if path == "" {
		return name, "", nil
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", "", exitf(exitBadArtspec, "bad artifact path in %q: %v", spec, err)
	}
	return name, abs, nil
}

func requireDir(path string, code int) error {
	info, err := os.Stat(path)
	if err != nil {
		return exitf(code, "%s does not exist", path)
	}
	if !info.IsDir() {
		return exitf(exitFileInsteadOfDir, "%s is a file, not a directory", path)
	}
	return nil
}

// existingFiles checks that every path exists and returns them sorted.
func existingFiles(paths []string) ([]string, error) {
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, exitf(exitFileNotFound, "%s does not exist", p)
			}
			return nil, exitf(exitBadFileRead, "%v", err)
		}
	}
	return corpus.Sorted(paths), nil
}

func (o *options) loadTrees(cmd *cobra.Command, paths []string) ([]*tree.Node, error) {
	var (
		trees []*tree.Node
		err   error
	)
	switch {
	case o.readStdin:
		trees, err = corpus.LoadReader(o.stdin)
	case o.source:
		trees, err = corpus.LoadSource(cmd.Context(), paths)
	case len(paths) > 0:
		trees, err = corpus.LoadFiles(cmd.Context(), paths)
	}
	if err != nil {
		return nil, exitf(exitBadFileRead, "%v", err)
	}
	return trees, nil
}

func loadCoverage(paths []string) ([]*corpus.Coverage, error) {
	cov, err := corpus.LoadCoverage(paths)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, exitf(exitFileNotFound, "%v", err)
		}
		return nil, exitf(exitBadFileRead, "%v", err)
	}
	return cov, nil
}

func loadGrammar(path string) (*grammar.Grammar, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, exitf(exitFileNotFound, "%s does not exist", path)
		}
		return nil, exitf(exitBadFileRead, "%v", err)
	}
	defer f.Close()
	g, err := grammar.Parse(f)
	if err != nil {
		return nil, exitf(exitBadFileRead, "%s: %v", path, err)
	}
	return g, nil
}

func validateFormat(format string) error {
	switch format {
	case "text", "json":
		return nil
	}
	return exitf(exitOption, "unknown format %q (want text or json)", format)
}
