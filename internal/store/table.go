package store

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Row is one table row. Columns are strings, ints, or float64 probabilities.
type Row []any

// Table is an ordered sequence of rows with uniform arity.
type Table []Row

// Decoder turns one persisted line into a row.
type Decoder func(line string) (Row, error)

// Separator joins the columns of a persisted row.
const Separator = ", "

// DefaultDecoder splits line on commas and trims each column.
func DefaultDecoder(line string) (Row, error) {
	parts := strings.Split(line, ",")
	row := make(Row, len(parts))
	for i, p := range parts {
		row[i] = strings.TrimSpace(p)
	}
	return row, nil
}

// IntColumns returns a decoder like DefaultDecoder that parses the columns at
// idx as integers. Negative indexes count from the end of the row.
func IntColumns(idx ...int) Decoder {
	return typedColumns(idx, func(s string) (any, error) {
		return strconv.Atoi(s)
	})
}

// FloatColumns is IntColumns for float64 columns.
func FloatColumns(idx ...int) Decoder {
	return typedColumns(idx, func(s string) (any, error) {
		return strconv.ParseFloat(s, 64)
	})
}

func typedColumns(idx []int, parse func(string) (any, error)) Decoder {
	return func(line string) (Row, error) {
		row, _ := DefaultDecoder(line)
		for _, i := range idx {
			if i < 0 {
				i += len(row)
			}
			if i < 0 || i >= len(row) {
				return nil, fmt.Errorf("column %d out of range for %d columns", i, len(row))
			}
			v, err := parse(row[i].(string))
			if err != nil {
				return nil, fmt.Errorf("column %d: %w", i, err)
			}
			row[i] = v
		}
		return row, nil
	}
}

// Format renders a single column value.
func Format(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}

// Encode serializes t: comma-and-space separated columns, one row per line,
// terminated by a blank line.
func Encode(t Table) string {
	var b strings.Builder
	for i, row := range t {
		if i > 0 {
			b.WriteByte('\n')
		}
		for j, col := range row {
			if j > 0 {
				b.WriteString(Separator)
			}
			b.WriteString(Format(col))
		}
	}
	b.WriteString("\n\n")
	return b.String()
}

// Decode parses the non-empty lines of s with dec. A nil dec means
// DefaultDecoder.
func Decode(s string, dec Decoder) (Table, error) {
	if dec == nil {
		dec = DefaultDecoder
	}
	var t Table
	for i, line := range strings.Split(s, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		row, err := dec(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", i+1, err)
		}
		t = append(t, row)
	}
	return t, nil
}

// Digest returns the sha256 of the encoded table.
func Digest(t Table) string {
	sum := sha256.Sum256([]byte(Encode(t)))
	return hex.EncodeToString(sum[:])
}

// Strings renders every column with Format.
func (t Table) Strings() [][]string {
	out := make([][]string, len(t))
	for i, row := range t {
		out[i] = make([]string, len(row))
		for j, col := range row {
			out[i][j] = Format(col)
		}
	}
	return out
}

// Sort orders rows lexicographically by their formatted columns, ints and
// floats compared numerically.
func (t Table) Sort() {
	sort.SliceStable(t, func(i, j int) bool {
		a, b := t[i], t[j]
		for c := 0; c < len(a) && c < len(b); c++ {
			if cmp := compare(a[c], b[c]); cmp != 0 {
				return cmp < 0
			}
		}
		return len(a) < len(b)
	})
}

func compare(a, b any) int {
	if fa, ok := number(a); ok {
		if fb, ok := number(b); ok {
			switch {
			case fa < fb:
				return -1
			case fa > fb:
				return 1
			}
			return 0
		}
	}
	return strings.Compare(Format(a), Format(b))
}

func number(v any) (float64, bool) {
	switch x := v.(type) {
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case float64:
		return x, true
	}
	return 0, false
}

// Int reads an integer column whether it was decoded as int or left as text.
func Int(v any) (int, error) {
	switch x := v.(type) {
	case int:
		return x, nil
	case int64:
		return int(x), nil
	case float64:
		return int(x), nil
	case string:
		return strconv.Atoi(strings.TrimSpace(x))
	}
	return 0, fmt.Errorf("not an integer: %v", v)
}

// Float reads a float column whether it was decoded or left as text.
func Float(v any) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case int:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case string:
		return strconv.ParseFloat(strings.TrimSpace(x), 64)
	}
	return 0, fmt.Errorf("not a number: %v", v)
}

// Reader is read access to tables published by earlier artifacts.
type Reader interface {
	Table(name string) (Table, bool)
}

// Namespace holds the tables published during one run. Each name is written
// once.
type Namespace struct {
	tables map[string]Table
	order  []string
}

// NewNamespace returns an empty namespace.
func NewNamespace() *Namespace {
	return &Namespace{tables: make(map[string]Table)}
}

// Table returns the table published under name.
func (n *Namespace) Table(name string) (Table, bool) {
	t, ok := n.tables[name]
	return t, ok
}

// Publish stores t under name. Publishing a name twice is an error.
func (n *Namespace) Publish(name string, t Table) error {
	if _, ok := n.tables[name]; ok {
		return fmt.Errorf("store: table %q already published", name)
	}
	n.tables[name] = t
	n.order = append(n.order, name)
	return nil
}

// Names returns the published names in publication order.
func (n *Namespace) Names() []string {
	return append([]string(nil), n.order...)
}
