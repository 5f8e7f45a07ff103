package artifacts

import (
	"context"
	"fmt"
	"sort"

	"github.com/jward/gramstats/internal/registry"
	"github.com/jward/gramstats/internal/store"
)

// avgFileCoverage sums, per program file, the fraction of lines each run
// executed, and averages the sum over the number of trees.
func avgFileCoverage(ctx context.Context, in *registry.Input) (store.Table, error) {
	totals := make(map[string]float64)
	for i, row := range in.Prior {
		if len(row) != 3 {
			return nil, fmt.Errorf("prior row %d: want 3 columns, got %d", i+1, len(row))
		}
		sum, err := store.Float(row[1])
		if err != nil {
			return nil, fmt.Errorf("prior row %d: %w", i+1, err)
		}
		totals[store.Format(row[0])] = sum
	}
	for _, cov := range in.Config.Coverage {
		for _, name := range cov.FileNames() {
			totals[name] += cov.Files[name].Ratio()
		}
	}

	runs := len(in.Config.Trees)
	if runs == 0 {
		runs = len(in.Config.Coverage)
	}
	names := make([]string, 0, len(totals))
	for name := range totals {
		names = append(names, name)
	}
	sort.Strings(names)

	t := make(store.Table, 0, len(names))
	for _, name := range names {
		avg := 0.0
		if runs > 0 {
			avg = totals[name] / float64(runs)
		}
		t = append(t, store.Row{name, totals[name], avg})
	}
	return in.Save(t)
}
