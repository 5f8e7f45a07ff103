// Package config is the typed configuration the engine consumes. CLI flags
// and an optional YAML file populate it; the artifact filter memoizes on its
// Hash.
package config

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/jward/gramstats/internal/corpus"
	"github.com/jward/gramstats/internal/grammar"
	"github.com/jward/gramstats/internal/tree"
)

// Capability names.
const (
	GenerateImages   = "generateImages"
	GenerateTables   = "generateTables"
	CoverageSupplied = "coverageSupplied"
	GrammarSupplied  = "grammarSupplied"
)

// Capabilities lists every recognized capability name.
var Capabilities = []string{GenerateImages, GenerateTables, CoverageSupplied, GrammarSupplied}

// IsCapability reports whether name is a recognized capability.
func IsCapability(name string) bool {
	for _, c := range Capabilities {
		if c == name {
			return true
		}
	}
	return false
}

// Defaults.
const (
	DefaultOutputDir     = "gramstats"
	DefaultContextWindow = 2
	DefaultNGram         = 3
)

// Config is everything one run needs. Corpus data (trees, the supplied
// grammar, coverage) is never read from YAML.
type Config struct {
	Trees    []*tree.Node       `yaml:"-"`
	Grammar  *grammar.Grammar   `yaml:"-"`
	Coverage []*corpus.Coverage `yaml:"-"`

	OutputDir            string            `yaml:"output_dir"`
	Incremental          bool              `yaml:"incremental"`
	IncrementalSourceDir string            `yaml:"incremental_source_dir"`
	Capabilities         map[string]bool   `yaml:"capabilities"`
	Requested            map[string]string `yaml:"requested"`
	Excluded             []string          `yaml:"excluded"`
	ListOnly             bool              `yaml:"list_only"`
	ContextWindow        int               `yaml:"context_window"`
	NGram                int               `yaml:"ngram"`
	ScriptsDir           string            `yaml:"scripts_dir"`
	Ledger               string            `yaml:"ledger"`
}

// Default returns a configuration that generates every table and image into
// DefaultOutputDir.
func Default() *Config {
	return &Config{
		OutputDir: DefaultOutputDir,
		Capabilities: map[string]bool{
			GenerateImages: true,
			GenerateTables: true,
		},
		Requested:     map[string]string{},
		ContextWindow: DefaultContextWindow,
		NGram:         DefaultNGram,
	}
}

// Load reads a YAML file over Default. Unknown keys are rejected.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if cfg.Capabilities == nil {
		cfg.Capabilities = map[string]bool{}
	}
	if cfg.Requested == nil {
		cfg.Requested = map[string]string{}
	}
	return cfg, nil
}

// Validate reports the first inconsistency in c.
func (c *Config) Validate() error {
	for name := range c.Capabilities {
		if !IsCapability(name) {
			return fmt.Errorf("config: unknown capability %q", name)
		}
	}
	if c.ContextWindow < 0 {
		return fmt.Errorf("config: context window must be non-negative, got %d", c.ContextWindow)
	}
	if c.NGram < 1 {
		return fmt.Errorf("config: ngram length must be positive, got %d", c.NGram)
	}
	if c.Incremental && c.IncrementalSourceDir == "" {
		return errors.New("config: incremental mode needs a source directory")
	}
	for _, name := range c.Excluded {
		if _, ok := c.Requested[name]; ok {
			return fmt.Errorf("config: %q is both requested and excluded", name)
		}
	}
	for i, t := range c.Trees {
		if err := tree.CheckLabels(t); err != nil {
			return fmt.Errorf("config: tree %d: %w", i, err)
		}
	}
	return nil
}

// Capable reports whether capability name is satisfied. Coverage and grammar
// capabilities are also satisfied by supplying the data itself.
func (c *Config) Capable(name string) bool {
	if c.Capabilities[name] {
		return true
	}
	switch name {
	case CoverageSupplied:
		return len(c.Coverage) > 0
	case GrammarSupplied:
		return c.Grammar != nil
	}
	return false
}

// IsRequested reports whether name was explicitly requested.
func (c *Config) IsRequested(name string) bool {
	_, ok := c.Requested[name]
	return ok
}

// IsExcluded reports whether name was excluded.
func (c *Config) IsExcluded(name string) bool {
	for _, x := range c.Excluded {
		if x == name {
			return true
		}
	}
	return false
}

// PathFor returns where artifact name writes its output: the custom path it
// was requested with, or name+ext under the output directory.
func (c *Config) PathFor(name, ext string) string {
	if p := c.Requested[name]; p != "" {
		return p
	}
	return filepath.Join(c.OutputDir, name+ext)
}

// Hash is a digest of every input that affects which artifacts run and where
// they write.
func (c *Config) Hash() string {
	h := sha256.New()

	names := make([]string, 0, len(c.Requested))
	for name := range c.Requested {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(h, "requested:%s=%s\n", name, c.Requested[name])
	}

	excluded := append([]string(nil), c.Excluded...)
	sort.Strings(excluded)
	fmt.Fprintf(h, "excluded:%s\n", strings.Join(excluded, ","))

	for _, name := range Capabilities {
		fmt.Fprintf(h, "capability:%s=%t\n", name, c.Capable(name))
	}
	fmt.Fprintf(h, "list_only:%t\n", c.ListOnly)
	fmt.Fprintf(h, "output_dir:%s\n", c.OutputDir)

	return hex.EncodeToString(h.Sum(nil))
}
