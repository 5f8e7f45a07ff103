package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newArtifactsCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "artifacts",
		Short: "List every registered artifact, including scripts",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := o.newEngine()
			if err != nil {
				return err
			}
			defer e.Close()

			arts := toCLIArtifacts(e.Registry().All())
			if o.format == "json" {
				return writeJSON(o.stdout, arts)
			}
			formatArtifactsText(o.stdout, arts)
			return nil
		},
	}
}

func newHistoryCmd(o *options) *cobra.Command {
	var (
		limit int
		runID string
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show runs recorded in the ledger",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if o.ledger == "" {
				return exitf(exitOption, "history needs --ledger")
			}
			e, err := o.newEngine()
			if err != nil {
				return err
			}
			defer e.Close()
			ledger := e.Ledger()

			if runID != "" {
				recs, err := ledger.Artifacts(runID)
				if err != nil {
					return err
				}
				arts := toCLIRunArtifacts(recs)
				if o.format == "json" {
					return writeJSON(o.stdout, arts)
				}
				formatRunArtifactsText(o.stdout, arts)
				return nil
			}

			runs, err := ledger.Runs(limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 && o.format == "text" {
				fmt.Fprintln(o.stdout, "No runs recorded.")
				return nil
			}
			out := toCLIRuns(runs)
			if o.format == "json" {
				return writeJSON(o.stdout, out)
			}
			formatRunsText(o.stdout, out)
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of runs to show")
	cmd.Flags().StringVar(&runID, "run", "", "show the artifacts of this run")
	return cmd
}
