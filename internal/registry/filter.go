package registry

import (
	"context"
	"log/slog"

	"github.com/jward/gramstats/internal/config"
	"github.com/jward/gramstats/internal/ctxlog"
)

// Entry is one artifact selected to run.
type Entry struct {
	Descriptor *Descriptor
	// Path is where the artifact writes its output.
	Path string
	// Required is false when the artifact only runs because a required
	// artifact depends on it.
	Required bool
}

// Name returns the artifact name.
func (e Entry) Name() string {
	return e.Descriptor.Name
}

// RunSet is the ordered list of artifacts one configuration runs. Every
// entry's dependencies appear before it.
type RunSet []Entry

// Names returns the artifact names in run order.
func (rs RunSet) Names() []string {
	out := make([]string, len(rs))
	for i, e := range rs {
		out[i] = e.Name()
	}
	return out
}

// Filter computes the run set for cfg and freezes the registry. An artifact
// is required when it is not excluded, it is requested or its kind is
// toggled on, and its capabilities are satisfied. An artifact runs when it
// is required or a required artifact transitively depends on it; exclusion
// does not stop a needed dependency.
//
// A requested artifact, or a dependency of a required one, whose
// capabilities are missing is a MissingCapabilityError. In list-only mode it
// is logged as a warning and left out instead. Artifacts enabled only by
// their kind toggle are skipped silently when a capability is missing.
//
// Results are memoized by cfg.Hash for the life of the registry.
func (r *Registry) Filter(ctx context.Context, cfg *config.Config) (RunSet, error) {
	r.Freeze()
	key := cfg.Hash()
	if rs, ok := r.memo[key]; ok {
		return rs, nil
	}

	order, err := r.TopologicalOrder()
	if err != nil {
		return nil, err
	}
	reachedBy, err := r.ReachedBy()
	if err != nil {
		return nil, err
	}

	logger := ctxlog.FromContext(ctx)
	missing := func(d *Descriptor) string {
		for _, c := range d.Requires {
			if !cfg.Capable(c) {
				return c
			}
		}
		return ""
	}

	required := make(map[string]bool)
	for _, name := range order {
		d := r.descs[name]
		if cfg.IsExcluded(name) {
			continue
		}
		requested := cfg.IsRequested(name)
		if !requested && !cfg.Capable(d.Kind.Toggle()) {
			continue
		}
		if c := missing(d); c != "" {
			if !requested {
				continue
			}
			if err := r.disallow(cfg, logger, name, c); err != nil {
				return nil, err
			}
			continue
		}
		required[name] = true
	}

	var rs RunSet
	for _, name := range order {
		d := r.descs[name]
		needed := required[name]
		if !needed {
			for _, dependent := range reachedBy[name] {
				if required[dependent] {
					needed = true
					break
				}
			}
		}
		if !needed {
			continue
		}
		if c := missing(d); c != "" {
			if err := r.disallow(cfg, logger, name, c); err != nil {
				return nil, err
			}
			continue
		}
		rs = append(rs, Entry{
			Descriptor: d,
			Path:       cfg.PathFor(name, d.Ext),
			Required:   required[name],
		})
	}

	r.memo[key] = rs
	return rs, nil
}

func (r *Registry) disallow(cfg *config.Config, logger *slog.Logger, name, capability string) error {
	err := &MissingCapabilityError{Artifact: name, Capability: capability}
	if !cfg.ListOnly {
		return err
	}
	logger.Warn(err.Error(), "artifact", name, "capability", capability)
	return nil
}
