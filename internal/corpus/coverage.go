package corpus

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
)

// FileCoverage is statement coverage of one program file for one run.
type FileCoverage struct {
	LineCount int
	Executed  []int
}

// Ratio is the fraction of executable lines that ran. A file with no
// executable lines counts as fully covered.
func (f FileCoverage) Ratio() float64 {
	if f.LineCount == 0 {
		return 1.0
	}
	return float64(len(f.Executed)) / float64(f.LineCount)
}

// Coverage is the parsed contents of one .coverage file.
type Coverage struct {
	Path  string
	Files map[string]FileCoverage
}

// FileNames returns the covered file names in sorted order.
func (c *Coverage) FileNames() []string {
	names := make([]string, 0, len(c.Files))
	for name := range c.Files {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CoveragePath returns the coverage file that accompanies a tree file:
// "x/1.sl.ast" -> "x/1.sl.coverage".
func CoveragePath(treePath string) string {
	return strings.TrimSuffix(treePath, ".ast") + ".coverage"
}

// ParseCoverage reads rows of "file, line_count, executed..." from r.
func ParseCoverage(r io.Reader) (map[string]FileCoverage, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	files := make(map[string]FileCoverage)
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("coverage: %w", err)
		}
		line, _ := cr.FieldPos(0)
		if len(rec) < 2 {
			return nil, fmt.Errorf("coverage: line %d: want file and line count, got %d column(s)", line, len(rec))
		}
		count, err := strconv.Atoi(strings.TrimSpace(rec[1]))
		if err != nil {
			return nil, fmt.Errorf("coverage: line %d: line count: %w", line, err)
		}
		seen := make(map[int]bool, len(rec)-2)
		executed := make([]int, 0, len(rec)-2)
		for _, col := range rec[2:] {
			col = strings.TrimSpace(col)
			if col == "" {
				continue
			}
			n, err := strconv.Atoi(col)
			if err != nil {
				return nil, fmt.Errorf("coverage: line %d: executed line: %w", line, err)
			}
			if !seen[n] {
				seen[n] = true
				executed = append(executed, n)
			}
		}
		sort.Ints(executed)
		files[strings.TrimSpace(rec[0])] = FileCoverage{LineCount: count, Executed: executed}
	}
	return files, nil
}

// LoadCoverage loads the coverage file for each tree path, in order.
func LoadCoverage(treePaths []string) ([]*Coverage, error) {
	out := make([]*Coverage, 0, len(treePaths))
	for _, tp := range treePaths {
		path := CoveragePath(tp)
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("coverage: %w", err)
		}
		files, err := ParseCoverage(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		out = append(out, &Coverage{Path: path, Files: files})
	}
	return out, nil
}
