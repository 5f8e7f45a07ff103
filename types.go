package gramstats

import (
	"github.com/jward/gramstats/internal/config"
	"github.com/jward/gramstats/internal/registry"
	"github.com/jward/gramstats/internal/store"
)

// Public type aliases for internal types used in the Engine API.

type Config = config.Config
type Table = store.Table
type Row = store.Row
type Descriptor = registry.Descriptor
type Input = registry.Input
type RunSet = registry.RunSet
type Run = store.Run
type ArtifactRecord = store.ArtifactRecord

// Error kinds, reachable with errors.Is.
var (
	ErrConfiguration     = registry.ErrConfiguration
	ErrMissingCapability = registry.ErrMissingCapability
	ErrCompute           = registry.ErrCompute
	ErrPersistence       = registry.ErrPersistence
)

// DefaultConfig returns a configuration with both kind toggles on.
func DefaultConfig() *Config {
	return config.Default()
}
