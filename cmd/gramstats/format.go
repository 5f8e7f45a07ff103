package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/jward/gramstats/internal/registry"
	"github.com/jward/gramstats/internal/store"
)

// CLIArtifact is one catalog entry.
type CLIArtifact struct {
	Name      string   `json:"name"`
	Kind      string   `json:"kind"`
	DependsOn []string `json:"depends_on,omitempty"`
	Requires  []string `json:"requires,omitempty"`
	File      string   `json:"file"`
	Source    string   `json:"source"`
}

// CLIRun is one ledger run.
type CLIRun struct {
	ID         string     `json:"id"`
	ConfigHash string     `json:"config_hash"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Status     string     `json:"status"`
	Error      string     `json:"error,omitempty"`
}

// CLIRunArtifact is one artifact a recorded run wrote.
type CLIRunArtifact struct {
	Name       string  `json:"name"`
	Kind       string  `json:"kind"`
	Path       string  `json:"path"`
	Rows       int     `json:"rows"`
	Digest     string  `json:"digest,omitempty"`
	DurationMS float64 `json:"duration_ms"`
}

func toCLIArtifacts(descs []*registry.Descriptor) []CLIArtifact {
	out := make([]CLIArtifact, len(descs))
	for i, d := range descs {
		out[i] = CLIArtifact{
			Name:      d.Name,
			Kind:      string(d.Kind),
			DependsOn: d.DependsOn,
			Requires:  d.Requires,
			File:      d.File(),
			Source:    d.Source,
		}
	}
	return out
}

func toCLIRuns(runs []*store.Run) []CLIRun {
	out := make([]CLIRun, len(runs))
	for i, r := range runs {
		out[i] = CLIRun{
			ID:         r.ID,
			ConfigHash: r.ConfigHash,
			StartedAt:  r.StartedAt,
			FinishedAt: r.FinishedAt,
			Status:     r.Status,
			Error:      r.Error,
		}
	}
	return out
}

func toCLIRunArtifacts(recs []*store.ArtifactRecord) []CLIRunArtifact {
	out := make([]CLIRunArtifact, len(recs))
	for i, r := range recs {
		out[i] = CLIRunArtifact{
			Name:       r.Name,
			Kind:       r.Kind,
			Path:       r.Path,
			Rows:       r.Rows,
			Digest:     r.Digest,
			DurationMS: float64(r.Duration.Microseconds()) / 1000,
		}
	}
	return out
}

// writeJSON encodes v indented.
func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// formatArtifactsText formats the catalog as aligned columns.
func formatArtifactsText(w io.Writer, arts []CLIArtifact) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tKIND\tDEPENDS ON\tREQUIRES\tSOURCE")
	for _, a := range arts {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			a.Name, a.Kind, dashIfEmpty(a.DependsOn), dashIfEmpty(a.Requires), a.Source)
	}
	tw.Flush()
}

// formatRunsText formats ledger runs as aligned columns.
func formatRunsText(w io.Writer, runs []CLIRun) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTARTED\tSTATUS\tERROR")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
			r.ID, r.StartedAt.Local().Format(time.DateTime), r.Status, r.Error)
	}
	tw.Flush()
}

// formatRunArtifactsText formats a run's artifacts as aligned columns.
func formatRunArtifactsText(w io.Writer, arts []CLIRunArtifact) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tKIND\tROWS\tDURATION\tPATH")
	for _, a := range arts {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%.1fms\t%s\n", a.Name, a.Kind, a.Rows, a.DurationMS, a.Path)
	}
	tw.Flush()
}

func dashIfEmpty(items []string) string {
	if len(items) == 0 {
		return "-"
	}
	return strings.Join(items, ",")
}
