package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/jward/gramstats"
	"github.com/jward/gramstats/internal/ctxlog"
	"github.com/jward/gramstats/scripts"
)

var version = "dev"

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		if msg := err.Error(); msg != "" {
			fmt.Fprintf(os.Stderr, "Error: %s\n", msg)
		}
		os.Exit(exitCode(err))
	}
}

// run builds the command tree and executes it against args.
func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	cmd := newRootCmd(stdin, stdout, stderr)
	cmd.SetArgs(args)
	return cmd.ExecuteContext(ctx)
}

// options holds every flag value of one invocation.
type options struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	outDir      string
	imgs        string
	tables      string
	list        bool
	artspecs    []string
	excluded    []string
	coverage    bool
	useTables   string
	readStdin   bool
	grammarPath string
	source      bool
	window      int
	ngram       int
	showVersion bool

	scriptsDir string
	ledger     string
	configPath string
	strict     bool
	logLevel   string
	logFormat  string
	format     string
}

func newRootCmd(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	o := &options{stdin: stdin, stdout: stdout, stderr: stderr}

	root := &cobra.Command{
		Use:           "gramstats [flags] [FILE]...",
		Short:         "Statistics over corpora of labeled trees",
		Long:          "Gramstats reads syntax trees in pre-order form (or source files, with --source) and produces count and probability tables, an inferred grammar, and Graphviz renderings.",
		SilenceErrors: true,
		SilenceUsage:  true,
		Args:          cobra.ArbitraryArgs,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return validateFormat(o.format)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.runProduce(cmd, args)
		},
	}
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return exitf(exitOption, "%v", err)
	})

	pf := root.PersistentFlags()
	pf.StringVar(&o.scriptsDir, "scripts-dir", "", "load artifact scripts from this directory instead of the bundled ones")
	pf.StringVar(&o.ledger, "ledger", "", "record runs in this SQLite database")
	pf.StringVar(&o.configPath, "config", "", "YAML configuration file; flags override its values")
	pf.BoolVar(&o.strict, "strict", false, "fail when an artifact name is registered twice")
	pf.StringVar(&o.logLevel, "log-level", "info", "log level: debug|info|warn|error")
	pf.StringVar(&o.logFormat, "log-format", "text", "log format: text|json")
	pf.StringVar(&o.format, "format", "text", "output format for listings: json|text")

	f := root.Flags()
	f.StringVarP(&o.outDir, "outdir", "o", "", "output directory (default \"gramstats\")")
	f.StringVarP(&o.imgs, "imgs", "i", "true", "generate images: true|false")
	f.StringVarP(&o.tables, "tables", "t", "true", "generate tables: true|false")
	f.BoolVarP(&o.list, "artifacts", "a", false, "list the artifacts this invocation would generate and exit")
	f.StringArrayVarP(&o.artspecs, "artifact", "A", nil, "generate only this artifact, as name or name:path (repeatable; overrides -i and -t)")
	f.StringArrayVarP(&o.excluded, "exclude", "E", nil, "exclude an artifact unless another one needs it (repeatable)")
	f.BoolVarP(&o.coverage, "coverage", "c", false, "read a .coverage file next to each tree file")
	f.StringVarP(&o.useTables, "usetables", "T", "", "fold the tables found in this directory into the results")
	f.BoolVarP(&o.readStdin, "stdin", "s", false, "read trees from standard input, separated by blank lines")
	f.StringVarP(&o.grammarPath, "grammar", "g", "", "known grammar to verify the inferred one against")
	f.BoolVar(&o.source, "source", false, "treat FILE arguments as source code and parse them with tree-sitter")
	f.IntVar(&o.window, "window", 0, "context window length for conditional tables (default 2)")
	f.IntVar(&o.ngram, "ngram", 0, "n-gram length for prod_ngrams (default 3)")
	f.BoolVarP(&o.showVersion, "version", "v", false, "print the version")

	root.AddCommand(newArtifactsCmd(o))
	root.AddCommand(newHistoryCmd(o))
	root.AddCommand(newVersionCmd(o))
	return root
}

// newEngine builds an Engine from the persistent flags.
func (o *options) newEngine() (*gramstats.Engine, error) {
	opts := []gramstats.Option{gramstats.WithLogger(ctxlog.New(o.logLevel, o.logFormat, o.stderr))}
	if o.scriptsDir != "" {
		opts = append(opts, gramstats.WithScriptsDir(o.scriptsDir))
	} else {
		opts = append(opts, gramstats.WithScriptsFS(scripts.FS))
	}
	if o.ledger != "" {
		opts = append(opts, gramstats.WithLedger(o.ledger))
	}
	if o.strict {
		opts = append(opts, gramstats.WithStrict())
	}
	e, err := gramstats.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("creating engine: %w", err)
	}
	return e, nil
}

func (o *options) runProduce(cmd *cobra.Command, args []string) error {
	if o.showVersion {
		fmt.Fprintf(o.stdout, "gramstats version %s\n", version)
		return &ExitError{Code: exitVersion}
	}
	start := time.Now()

	cfg, err := o.buildConfig(cmd, args)
	if err != nil {
		return err
	}
	e, err := o.newEngine()
	if err != nil {
		return err
	}
	defer e.Close()

	for name := range cfg.Requested {
		if _, ok := e.Registry().Lookup(name); !ok {
			return exitf(exitBadArtspec, "unknown artifact %q", name)
		}
	}

	ctx := cmd.Context()
	if o.list {
		set, err := e.Available(ctx, cfg)
		if err != nil {
			return err
		}
		for _, name := range set.Names() {
			fmt.Fprintln(o.stdout, name)
		}
		return nil
	}

	if cfg.Incremental && e.Ledger() != nil && !e.CorpusChanged(cfg.Trees) {
		fmt.Fprintln(o.stderr, "Notice: corpus unchanged since the last recorded run; its counts will be folded in again")
	}
	res, err := e.Produce(ctx, cfg)
	if err != nil {
		return err
	}
	fmt.Fprintf(o.stderr, "Produced %d artifacts from %d trees in %s\n",
		len(res.Artifacts), len(cfg.Trees), time.Since(start).Round(time.Millisecond))
	fmt.Fprintf(o.stderr, "Output: %s\n", cfg.OutputDir)
	return nil
}

func newVersionCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(o.stdout, "gramstats version %s\n", version)
			return nil
		},
	}
}

// noArgs is cobra.NoArgs with the args exit code.
func noArgs(cmd *cobra.Command, args []string) error {
	if err := cobra.NoArgs(cmd, args); err != nil {
		return exitf(exitArgs, "%v", err)
	}
	return nil
}
