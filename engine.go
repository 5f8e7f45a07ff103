package gramstats

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"time"

	"github.com/jward/gramstats/internal/artifacts"
	"github.com/jward/gramstats/internal/config"
	"github.com/jward/gramstats/internal/ctxlog"
	"github.com/jward/gramstats/internal/registry"
	"github.com/jward/gramstats/internal/render"
	"github.com/jward/gramstats/internal/runtime"
	"github.com/jward/gramstats/internal/store"
	"github.com/jward/gramstats/internal/tree"
)

// metadataCorpusDigest holds the digest of the corpus the last successful run
// consumed.
const metadataCorpusDigest = "corpus_digest"

// Engine owns the artifact registry and runs it against configurations.
type Engine struct {
	registry   *registry.Registry
	runtime    *runtime.Runtime
	ledger     *store.Ledger
	renderer   render.Renderer
	logger     *slog.Logger
	scriptsDir string
	scriptsFS  fs.FS
	ledgerPath string
	strict     bool
	extra      []registry.Descriptor
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger handed to artifacts through the context.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithScriptsDir registers every Risor script in dir as an artifact.
func WithScriptsDir(dir string) Option {
	return func(e *Engine) {
		e.scriptsDir = dir
	}
}

// WithScriptsFS loads Risor scripts from fsys instead of a directory on disk.
func WithScriptsFS(fsys fs.FS) Option {
	return func(e *Engine) {
		e.scriptsFS = fsys
	}
}

// WithLedger records runs in a SQLite database at path.
func WithLedger(path string) Option {
	return func(e *Engine) {
		e.ledgerPath = path
	}
}

// WithRenderer replaces the Graphviz renderer used by image artifacts.
func WithRenderer(r render.Renderer) Option {
	return func(e *Engine) {
		e.renderer = r
	}
}

// WithStrict makes registering an artifact name twice an error.
func WithStrict() Option {
	return func(e *Engine) {
		e.strict = true
	}
}

// WithArtifacts registers additional artifacts after the built-ins and
// before scripts.
func WithArtifacts(descs ...registry.Descriptor) Option {
	return func(e *Engine) {
		e.extra = append(e.extra, descs...)
	}
}

// New creates an Engine and registers the built-in artifacts, any extra
// artifacts, then scripts.
func New(opts ...Option) (*Engine, error) {
	e := &Engine{}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if e.renderer == nil {
		e.renderer = render.NewGraphviz()
	}

	regOpts := []registry.Option{registry.WithLogger(e.logger)}
	if e.strict {
		regOpts = append(regOpts, registry.WithStrict())
	}
	e.registry = registry.New(regOpts...)

	if err := artifacts.Register(e.registry); err != nil {
		return nil, fmt.Errorf("gramstats: %w", err)
	}
	for _, d := range e.extra {
		if err := e.registry.Register(d); err != nil {
			return nil, fmt.Errorf("gramstats: %w", err)
		}
	}

	var rtOpts []runtime.RuntimeOption
	if e.scriptsFS != nil {
		rtOpts = append(rtOpts, runtime.WithRuntimeFS(e.scriptsFS))
	}
	e.runtime = runtime.NewRuntime(e.scriptsDir, rtOpts...)
	if err := e.runtime.Register(e.registry); err != nil {
		return nil, fmt.Errorf("gramstats: %w", err)
	}

	if e.ledgerPath != "" {
		l, err := store.NewLedger(e.ledgerPath)
		if err != nil {
			return nil, fmt.Errorf("gramstats: open ledger: %w", err)
		}
		if err := l.Migrate(); err != nil {
			l.Close()
			return nil, fmt.Errorf("gramstats: migrate ledger: %w", err)
		}
		e.ledger = l
	}
	return e, nil
}

// Close releases the ledger, if any.
func (e *Engine) Close() error {
	if e.ledger == nil {
		return nil
	}
	return e.ledger.Close()
}

// Registry returns the artifact registry.
func (e *Engine) Registry() *registry.Registry {
	return e.registry
}

// Ledger returns the run ledger, or nil when none was configured.
func (e *Engine) Ledger() *store.Ledger {
	return e.ledger
}

// Produced describes one artifact a run executed.
type Produced struct {
	Name     string
	Kind     registry.Kind
	Path     string
	Rows     int
	Digest   string
	Duration time.Duration
}

// Result is the outcome of Produce.
type Result struct {
	// RunID is the ledger run identifier, empty without a ledger.
	RunID     string
	Artifacts []Produced
	// Tables holds every table published during the run.
	Tables store.Reader
}

// Available returns the artifacts a configuration would run, downgrading
// missing capabilities to warnings as list-only mode does.
func (e *Engine) Available(ctx context.Context, cfg *config.Config) (registry.RunSet, error) {
	listed := *cfg
	listed.ListOnly = true
	return e.plan(ctx, &listed)
}

func (e *Engine) plan(ctx context.Context, cfg *config.Config) (registry.RunSet, error) {
	if err := cfg.Validate(); err != nil {
		return nil, registry.NewConfigurationError(err)
	}
	return e.registry.Filter(e.withLogger(ctx), cfg)
}

func (e *Engine) withLogger(ctx context.Context) context.Context {
	return ctxlog.WithLogger(ctx, e.logger)
}

// Produce runs every artifact the configuration selects, in dependency
// order. The first failure abandons the rest of the run. In list-only mode
// nothing executes and the result lists the planned artifacts.
func (e *Engine) Produce(ctx context.Context, cfg *config.Config) (*Result, error) {
	ctx = e.withLogger(ctx)
	set, err := e.plan(ctx, cfg)
	if err != nil {
		return nil, err
	}

	ns := store.NewNamespace()
	res := &Result{Tables: ns}
	if cfg.ListOnly {
		for _, entry := range set {
			res.Artifacts = append(res.Artifacts, Produced{Name: entry.Name(), Kind: entry.Descriptor.Kind, Path: entry.Path})
		}
		return res, nil
	}

	if e.ledger != nil {
		run, err := e.ledger.BeginRun(cfg.Hash())
		if err != nil {
			return nil, fmt.Errorf("gramstats: %w", err)
		}
		res.RunID = run.ID
	}

	runErr := e.execute(ctx, cfg, set, ns, res)
	if e.ledger != nil {
		if err := e.ledger.FinishRun(res.RunID, runErr); err != nil && runErr == nil {
			runErr = fmt.Errorf("gramstats: %w", err)
		}
		if runErr == nil {
			if err := e.ledger.SetMetadata(metadataCorpusDigest, CorpusDigest(cfg.Trees)); err != nil {
				runErr = fmt.Errorf("gramstats: %w", err)
			}
		}
	}
	return res, runErr
}

func (e *Engine) execute(ctx context.Context, cfg *config.Config, set registry.RunSet, ns *store.Namespace, res *Result) error {
	logger := ctxlog.FromContext(ctx)
	files := store.NewFileStore(cfg.Incremental, cfg.IncrementalSourceDir)

	for _, entry := range set {
		if err := ctx.Err(); err != nil {
			return err
		}
		d := entry.Descriptor
		in := &registry.Input{
			Name:     d.Name,
			Path:     entry.Path,
			Tables:   ns,
			Config:   cfg,
			Store:    files,
			Renderer: e.renderer,
		}
		if d.Kind == registry.KindTable {
			prior, ok, err := files.Load(d.File(), d.Decoder)
			if err != nil {
				return &registry.PersistenceError{Artifact: d.Name, Path: d.File(), Err: err}
			}
			in.Prior, in.HasPrior = prior, ok
		}

		logger.Debug("producing artifact", "name", d.Name, "kind", d.Kind, "prior", in.HasPrior)
		start := time.Now()
		t, err := d.Compute(ctx, in)
		if err != nil {
			var pe *registry.PersistenceError
			if errors.As(err, &pe) {
				return err
			}
			return &registry.ComputeError{Artifact: d.Name, Err: err}
		}
		elapsed := time.Since(start)

		if err := ns.Publish(d.Name, t); err != nil {
			return &registry.ComputeError{Artifact: d.Name, Err: err}
		}

		p := Produced{Name: d.Name, Kind: d.Kind, Path: entry.Path, Rows: len(t), Duration: elapsed}
		if d.Kind == registry.KindTable {
			p.Digest = store.Digest(t)
		}
		res.Artifacts = append(res.Artifacts, p)
		logger.Info("produced artifact", "name", d.Name, "rows", p.Rows, "duration", elapsed)

		if e.ledger != nil {
			rec := &store.ArtifactRecord{
				RunID:    res.RunID,
				Name:     p.Name,
				Kind:     string(p.Kind),
				Path:     p.Path,
				Rows:     p.Rows,
				Digest:   p.Digest,
				Duration: p.Duration,
			}
			if _, err := e.ledger.RecordArtifact(rec); err != nil {
				return fmt.Errorf("gramstats: %w", err)
			}
		}
	}
	return nil
}

// CorpusDigest hashes the pre-order encoding of every tree.
func CorpusDigest(trees []*tree.Node) string {
	h := sha256.New()
	for _, t := range trees {
		tree.Encode(h, t)
		h.Write([]byte{'\n'})
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}

// CorpusChanged reports whether trees differ from the corpus of the last
// successful run recorded in the ledger. Without a ledger, or before any
// run, it reports true.
func (e *Engine) CorpusChanged(trees []*tree.Node) bool {
	if e.ledger == nil {
		return true
	}
	stored, err := e.ledger.GetMetadata(metadataCorpusDigest)
	if err != nil || stored == "" {
		return true
	}
	return stored != CorpusDigest(trees)
}
