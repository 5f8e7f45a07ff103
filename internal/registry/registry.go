// Package registry catalogs the artifacts gramstats can produce, resolves
// their dependencies, and filters them down to the ordered set one
// configuration needs.
//
// A Registry is populated during an explicit initialization phase and frozen
// the first time it is resolved. It is not safe for concurrent use.
package registry

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/jward/gramstats/internal/config"
	"github.com/jward/gramstats/internal/render"
	"github.com/jward/gramstats/internal/store"
)

// Kind is the category of an artifact's output.
type Kind string

const (
	KindTable Kind = "table"
	KindImage Kind = "image"
)

// Toggle returns the capability that enables every artifact of this kind.
func (k Kind) Toggle() string {
	if k == KindImage {
		return config.GenerateImages
	}
	return config.GenerateTables
}

// ComputeFunc produces an artifact. Table artifacts persist through
// in.Save and return the table to publish for their dependents; image
// artifacts return nil.
type ComputeFunc func(ctx context.Context, in *Input) (store.Table, error)

// Descriptor declares one artifact.
type Descriptor struct {
	Name      string
	Kind      Kind
	DependsOn []string
	Requires  []string
	// Ext is appended to Name for the default output file and for the file
	// a prior table is loaded from. Tables default to ".csv".
	Ext string
	// Decoder reads the prior table. Nil means store.DefaultDecoder.
	Decoder store.Decoder
	Compute ComputeFunc
	// Source is "builtin" or the path of the script defining the artifact.
	Source string
}

// File is the artifact's default file name.
func (d *Descriptor) File() string {
	return d.Name + d.Ext
}

// Input is everything a compute function may read.
type Input struct {
	Name     string
	Path     string
	Prior    store.Table
	HasPrior bool
	Tables   store.Reader
	Config   *config.Config
	Store    *store.FileStore
	Renderer render.Renderer
}

// Dependency returns a table published by an artifact that already ran.
func (in *Input) Dependency(name string) (store.Table, error) {
	t, ok := in.Tables.Table(name)
	if !ok {
		return nil, fmt.Errorf("dependency %q has not been produced", name)
	}
	return t, nil
}

// Save persists t at the artifact's path and returns it.
func (in *Input) Save(t store.Table) (store.Table, error) {
	if _, err := in.Store.Save(in.Path, t); err != nil {
		return nil, &PersistenceError{Artifact: in.Name, Path: in.Path, Err: err}
	}
	return t, nil
}

// WriteFile persists raw output at path.
func (in *Input) WriteFile(path string, data []byte) error {
	if err := store.WriteFile(path, data); err != nil {
		return &PersistenceError{Artifact: in.Name, Path: path, Err: err}
	}
	return nil
}

// Render hands dot text to the renderer, writing images next to base.
func (in *Input) Render(ctx context.Context, base, dot string) error {
	if in.Renderer == nil {
		return fmt.Errorf("no renderer configured")
	}
	if _, err := in.Renderer.Render(ctx, base, dot); err != nil {
		return &PersistenceError{Artifact: in.Name, Path: base, Err: err}
	}
	return nil
}

// Option configures a Registry.
type Option func(*Registry)

// WithStrict makes registering a name twice a DuplicateArtifact error.
func WithStrict() Option {
	return func(r *Registry) {
		r.strict = true
	}
}

// WithLogger sets the logger used for registration notices.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		r.logger = logger
	}
}

// Registry maps artifact names to descriptors.
type Registry struct {
	strict bool
	logger *slog.Logger
	descs  map[string]*Descriptor
	order  []string
	frozen bool
	memo   map[string]RunSet
}

// New creates an empty registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		descs:  make(map[string]*Descriptor),
		memo:   make(map[string]RunSet),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds d. A name registered twice keeps its first position and
// takes the later descriptor, unless the registry is strict.
func (r *Registry) Register(d Descriptor) error {
	if r.frozen {
		return configf(d.Name, "register %q after resolution", d.Name)
	}
	if d.Name == "" {
		return configf("", "artifact without a name")
	}
	if d.Kind != KindTable && d.Kind != KindImage {
		return configf(d.Name, "artifact %q has unknown kind %q", d.Name, d.Kind)
	}
	if d.Compute == nil {
		return configf(d.Name, "artifact %q has no compute function", d.Name)
	}
	if d.Kind == KindTable && d.Ext == "" {
		d.Ext = ".csv"
	}
	if d.Source == "" {
		d.Source = "builtin"
	}
	d.DependsOn = append([]string(nil), d.DependsOn...)
	d.Requires = append([]string(nil), d.Requires...)

	if _, ok := r.descs[d.Name]; ok {
		if r.strict {
			return duplicateError(d.Name)
		}
		r.logger.Debug("artifact re-registered", "name", d.Name, "source", d.Source)
	} else {
		r.order = append(r.order, d.Name)
	}
	r.descs[d.Name] = &d
	return nil
}

// Freeze ends the registration phase.
func (r *Registry) Freeze() {
	r.frozen = true
}

// Frozen reports whether registration has ended.
func (r *Registry) Frozen() bool {
	return r.frozen
}

// All returns every descriptor in first-registration order.
func (r *Registry) All() []*Descriptor {
	out := make([]*Descriptor, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.descs[name])
	}
	return out
}

// Lookup returns the descriptor registered under name.
func (r *Registry) Lookup(name string) (*Descriptor, bool) {
	d, ok := r.descs[name]
	return d, ok
}

// Len returns the number of registered artifacts.
func (r *Registry) Len() int {
	return len(r.order)
}
