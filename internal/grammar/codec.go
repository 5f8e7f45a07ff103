package grammar

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Parse reads a grammar file. Each non-empty line is "A : b c", split on the
// first colon; right-hand side symbols are whitespace separated. Lines
// starting with '#' are comments.
func Parse(r io.Reader) (*Grammar, error) {
	g := New()
	sc := bufio.NewScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		nt, rhs, ok := strings.Cut(line, ":")
		if !ok {
			return nil, fmt.Errorf("grammar: line %d: expected \"nonterm : symbols\", got %q", lineNo, line)
		}
		nt = strings.TrimSpace(nt)
		if nt == "" {
			return nil, fmt.Errorf("grammar: line %d: empty nonterminal", lineNo)
		}
		g.Add(nt, Production(strings.Fields(rhs)))
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("grammar: read: %w", err)
	}
	return g, nil
}

// ParseString is Parse over a string.
func ParseString(s string) (*Grammar, error) {
	return Parse(strings.NewReader(s))
}

// Format renders g in the grammar file form accepted by Parse, one production
// per line, nonterminals sorted.
func (g *Grammar) Format() string {
	var b strings.Builder
	for _, nt := range g.Nonterminals() {
		for _, p := range g.prods[nt] {
			b.WriteString(nt)
			b.WriteString(" : ")
			b.WriteString(p.String())
			b.WriteByte('\n')
		}
	}
	return b.String()
}

// Mismatch is a production present in one grammar and absent in another.
type Mismatch struct {
	Nonterminal string
	Production  Production // nil when the whole nonterminal is missing
}

func (m Mismatch) String() string {
	if m.Production == nil {
		return fmt.Sprintf("nonterminal %q", m.Nonterminal)
	}
	return fmt.Sprintf("%s -> %s", m.Nonterminal, m.Production)
}

// Missing returns what g has that other lacks: nonterminals other does not
// define at all, and productions of shared nonterminals other does not list.
func (g *Grammar) Missing(other *Grammar) []Mismatch {
	var out []Mismatch
	for _, nt := range g.Nonterminals() {
		if !other.IsNonterminal(nt) {
			out = append(out, Mismatch{Nonterminal: nt})
			continue
		}
		for _, p := range g.prods[nt] {
			if !other.Has(nt, p) {
				out = append(out, Mismatch{Nonterminal: nt, Production: p})
			}
		}
	}
	return out
}
