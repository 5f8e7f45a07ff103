// Package runtime embeds a Risor VM so user scripts can define artifacts.
//
// Every .risor file in the scripts directory becomes one artifact named
// after the file. Leading "//" comment lines may carry directives:
//
//	// depends: production_count, infer_grammar
//	// requires: coverageSupplied
//	// kind: table
//	// ext: .tsv
//
// A table script evaluates to a list of rows, each a list of values. An
// image script evaluates to Graphviz dot text.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/risor-io/risor"
	"github.com/risor-io/risor/importer"
	"github.com/risor-io/risor/object"

	"github.com/jward/gramstats/internal/config"
	"github.com/jward/gramstats/internal/ctxlog"
	"github.com/jward/gramstats/internal/registry"
	"github.com/jward/gramstats/internal/store"
)

// Ext is the file extension of artifact scripts.
const Ext = ".risor"

// Script is one parsed artifact script.
type Script struct {
	Name      string
	Path      string
	Source    string
	Kind      registry.Kind
	DependsOn []string
	Requires  []string
	Ext       string
}

// Runtime loads artifact scripts and evaluates them against a corpus.
type Runtime struct {
	scriptsDir string
	fsys       fs.FS
}

// RuntimeOption configures a Runtime.
type RuntimeOption func(*Runtime)

// WithRuntimeFS loads scripts from fsys instead of the scripts directory.
// Risor import statements resolve against the same filesystem.
func WithRuntimeFS(fsys fs.FS) RuntimeOption {
	return func(r *Runtime) {
		r.fsys = fsys
	}
}

// NewRuntime returns a Runtime reading scripts from scriptsDir.
func NewRuntime(scriptsDir string, opts ...RuntimeOption) *Runtime {
	r := &Runtime{scriptsDir: scriptsDir}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Runtime) source() fs.FS {
	if r.fsys != nil {
		return r.fsys
	}
	if r.scriptsDir == "" {
		return nil
	}
	return os.DirFS(r.scriptsDir)
}

// Scripts parses every script at the top of the scripts directory, sorted
// by name. A missing directory holds no scripts.
func (r *Runtime) Scripts() ([]Script, error) {
	fsys := r.source()
	if fsys == nil {
		return nil, nil
	}
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("runtime: reading scripts: %w", err)
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && path.Ext(e.Name()) == Ext {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	scripts := make([]Script, 0, len(names))
	for _, name := range names {
		data, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, fmt.Errorf("runtime: loading script %s: %w", name, err)
		}
		s, err := ParseScript(strings.TrimSuffix(name, Ext), string(data))
		if err != nil {
			return nil, err
		}
		s.Path = name
		if r.fsys == nil {
			s.Path = filepath.Join(r.scriptsDir, name)
		}
		scripts = append(scripts, s)
	}
	return scripts, nil
}

// ParseScript reads the directives at the head of src. Directive parsing
// stops at the first line that is neither blank nor a comment.
func ParseScript(name, src string) (Script, error) {
	s := Script{Name: name, Source: src, Kind: registry.KindTable}
	for i, line := range strings.Split(src, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, "//") {
			break
		}
		key, value, ok := strings.Cut(strings.TrimSpace(strings.TrimPrefix(line, "//")), ":")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)
		switch strings.TrimSpace(key) {
		case "depends":
			s.DependsOn = append(s.DependsOn, splitList(value)...)
		case "requires":
			for _, c := range splitList(value) {
				if !config.IsCapability(c) {
					return Script{}, fmt.Errorf("runtime: script %s line %d: unknown capability %q", name, i+1, c)
				}
				s.Requires = append(s.Requires, c)
			}
		case "kind":
			switch registry.Kind(value) {
			case registry.KindTable, registry.KindImage:
				s.Kind = registry.Kind(value)
			default:
				return Script{}, fmt.Errorf("runtime: script %s line %d: unknown kind %q", name, i+1, value)
			}
		case "ext":
			s.Ext = value
		}
	}
	return s, nil
}

func splitList(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	})
}

// Descriptor turns s into a registry descriptor whose compute function
// evaluates the script.
func (r *Runtime) Descriptor(s Script) registry.Descriptor {
	return registry.Descriptor{
		Name:      s.Name,
		Kind:      s.Kind,
		DependsOn: s.DependsOn,
		Requires:  s.Requires,
		Ext:       s.Ext,
		Source:    s.Path,
		Compute: func(ctx context.Context, in *registry.Input) (store.Table, error) {
			return r.Run(ctx, s, in)
		},
	}
}

// Register loads every script and registers it with reg. Scripts register
// after the built-ins, so a script named like a built-in replaces it.
func (r *Runtime) Register(reg *registry.Registry) error {
	scripts, err := r.Scripts()
	if err != nil {
		return err
	}
	for _, s := range scripts {
		if err := reg.Register(r.Descriptor(s)); err != nil {
			return fmt.Errorf("runtime: %w", err)
		}
	}
	return nil
}

// Run evaluates s for one artifact. Tables are persisted through in.Save;
// image scripts hand their dot text to the renderer.
func (r *Runtime) Run(ctx context.Context, s Script, in *registry.Input) (store.Table, error) {
	globals, err := r.buildGlobals(ctx, s, in)
	if err != nil {
		return nil, err
	}
	result, err := r.eval(ctx, s.Source, s.Name, globals)
	if err != nil {
		return nil, err
	}

	if s.Kind == registry.KindImage {
		dot, ok := result.(*object.String)
		if !ok {
			return nil, fmt.Errorf("runtime: script %s: image scripts must evaluate to a string, got %s", s.Name, result.Type())
		}
		return nil, in.Render(ctx, in.Path, dot.Value())
	}

	t, err := toTable(result)
	if err != nil {
		return nil, fmt.Errorf("runtime: script %s: %w", s.Name, err)
	}
	return in.Save(t)
}

// RunSource evaluates source with the host functions plus extra globals and
// returns its value. Useful for testing without script files.
func (r *Runtime) RunSource(ctx context.Context, source string, extra map[string]any) (object.Object, error) {
	globals := hostFuncs()
	for k, v := range extra {
		globals[k] = v
	}
	return r.eval(ctx, source, "<inline>", globals)
}

func (r *Runtime) eval(ctx context.Context, source, label string, globals map[string]any) (object.Object, error) {
	var opts []risor.Option
	for name, val := range globals {
		opts = append(opts, risor.WithGlobal(name, val))
	}
	if imp := r.buildImporter(globals); imp != nil {
		opts = append(opts, risor.WithImporter(imp))
	}

	result, err := risor.Eval(ctx, source, opts...)
	if err != nil {
		return nil, fmt.Errorf("runtime: script %s: %w", label, err)
	}
	return result, nil
}

// buildImporter lets scripts import helper modules from the scripts
// directory. Returns nil when no script source is configured.
func (r *Runtime) buildImporter(globals map[string]any) importer.Importer {
	globalNames := make([]string, 0, len(globals))
	for name := range globals {
		globalNames = append(globalNames, name)
	}

	if r.fsys != nil {
		return importer.NewFSImporter(importer.FSImporterOptions{
			GlobalNames: globalNames,
			SourceFS:    r.fsys,
			Extensions:  []string{Ext},
		})
	}
	if r.scriptsDir != "" {
		return importer.NewLocalImporter(importer.LocalImporterOptions{
			GlobalNames: globalNames,
			SourceDir:   r.scriptsDir,
			Extensions:  []string{Ext},
		})
	}
	return nil
}

// buildGlobals exposes the corpus, the prior table, declared dependencies,
// configuration and a logger to the script.
func (r *Runtime) buildGlobals(ctx context.Context, s Script, in *registry.Input) (map[string]any, error) {
	globals := hostFuncs()

	trees := make([]object.Object, len(in.Config.Trees))
	for i, t := range in.Config.Trees {
		trees[i] = treeObject(t)
	}
	globals["trees"] = object.NewList(trees)

	if in.HasPrior {
		globals["prior"] = tableObject(in.Prior)
	} else {
		globals["prior"] = object.Nil
	}

	tables := make(map[string]object.Object, len(s.DependsOn))
	for _, dep := range s.DependsOn {
		t, err := in.Dependency(dep)
		if err != nil {
			return nil, err
		}
		tables[dep] = tableObject(t)
	}
	globals["tables"] = object.NewMap(tables)
	globals["config"] = configObject(in)

	logger := ctxlog.FromContext(ctx).With("script", s.Name)
	globals["log"] = logModule(logger)
	return globals, nil
}

func configObject(in *registry.Input) object.Object {
	caps := make([]object.Object, 0, len(config.Capabilities))
	for _, c := range config.Capabilities {
		if in.Config.Capable(c) {
			caps = append(caps, object.NewString(c))
		}
	}
	return object.NewMap(map[string]object.Object{
		"name":           object.NewString(in.Name),
		"path":           object.NewString(in.Path),
		"output_dir":     object.NewString(in.Config.OutputDir),
		"context_window": object.NewInt(int64(in.Config.ContextWindow)),
		"ngram":          object.NewInt(int64(in.Config.NGram)),
		"incremental":    object.NewBool(in.Config.Incremental),
		"capabilities":   object.NewList(caps),
	})
}
