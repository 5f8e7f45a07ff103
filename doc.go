// Package gramstats computes statistics over a corpus of labeled trees:
// symbol and production counts, inferred grammars, context-conditioned
// production probabilities, n-grams, tree shape numbers, coverage averages,
// and Graphviz renderings.
//
// # Artifacts
//
// Every output is an artifact registered under a unique name. An artifact
// declares the artifacts it depends on and the capabilities it requires
// (generateTables, generateImages, coverageSupplied, grammarSupplied). For one
// configuration the engine selects the artifacts to run, orders them so
// dependencies run first, and executes them one by one. Each artifact sees
// the tables its predecessors published.
//
// # Usage
//
//	e, err := gramstats.New(gramstats.WithLedger("gramstats.db"))
//	if err != nil { ... }
//	defer e.Close()
//
//	cfg := gramstats.DefaultConfig()
//	cfg.Trees = trees
//	cfg.OutputDir = "out"
//	res, err := e.Produce(ctx, cfg)
//
// # Incremental mode
//
// With Config.Incremental set, each table artifact first loads the table it
// wrote in IncrementalSourceDir and folds the new corpus into it, so counts
// accumulate across runs.
//
// # Scripts
//
// Risor scripts in the scripts directory become additional artifacts. See
// package internal/runtime for the directive syntax.
package gramstats
