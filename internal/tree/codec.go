package tree

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// SyntaxError reports malformed pre-order input.
type SyntaxError struct {
	Line int // 1-based line within the parsed chunk
	Msg  string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("tree: line %d: %s", e.Line, e.Msg)
}

// pending is an internal node still waiting for children during Parse.
type pending struct {
	node      *Node
	remaining int
}

// Parse decodes a single tree from its pre-order enumeration. Each non-empty
// line is "N:label" where N is the number of children of that node. Labels
// are non-empty and may not contain colons, commas or whitespace, which
// separate fields in tables and grammar files.
//
//	2:root
//	1:left
//	0:x
//	0:right
func Parse(r io.Reader) (*Node, error) {
	sc := newScanner(r)

	var root *Node
	var stack []*pending
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := sc.Text()
		if line == "" {
			continue
		}
		count, label, err := parseLine(line)
		if err != nil {
			return nil, &SyntaxError{Line: lineNo, Msg: err.Error()}
		}
		if root != nil && len(stack) == 0 {
			return nil, &SyntaxError{Line: lineNo, Msg: "node after the tree was complete"}
		}

		n := &Node{Label: label}
		if len(stack) == 0 {
			root = n
		} else {
			parent := stack[len(stack)-1]
			parent.node.Children = append(parent.node.Children, n)
			parent.remaining--
			if parent.remaining == 0 {
				stack = stack[:len(stack)-1]
			}
		}
		if count > 0 {
			stack = append(stack, &pending{node: n, remaining: count})
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("tree: read: %w", err)
	}
	if root == nil {
		return nil, &SyntaxError{Line: lineNo, Msg: "no nodes found"}
	}
	if len(stack) > 0 {
		top := stack[len(stack)-1]
		return nil, &SyntaxError{
			Line: lineNo,
			Msg:  fmt.Sprintf("input ended with %d child(ren) of %q missing", top.remaining, top.node.Label),
		}
	}
	return root, nil
}

// ParseString is Parse over a string.
func ParseString(s string) (*Node, error) {
	return Parse(strings.NewReader(s))
}

func parseLine(line string) (int, string, error) {
	countStr, label, ok := strings.Cut(line, ":")
	if !ok {
		return 0, "", fmt.Errorf("expected colon, none found")
	}
	count, err := strconv.Atoi(countStr)
	if err != nil || count < 0 {
		return 0, "", fmt.Errorf("expected children:label where children is a non-negative int, got %q", countStr)
	}
	if err := CheckLabel(label); err != nil {
		return 0, "", err
	}
	return count, label, nil
}

// CheckLabel reports whether label can be written to tables and grammar
// files and read back unchanged.
func CheckLabel(label string) error {
	if label == "" {
		return fmt.Errorf("empty label")
	}
	if i := strings.IndexFunc(label, isSeparator); i >= 0 {
		r, _ := utf8.DecodeRuneInString(label[i:])
		return fmt.Errorf("label %q contains separator %q", label, r)
	}
	return nil
}

// CheckLabels runs CheckLabel over every node of root.
func CheckLabels(root *Node) error {
	var err error
	Visit(root, func(n *Node, _ int) {
		if err == nil {
			err = CheckLabel(n.Label)
		}
	})
	return err
}

func isSeparator(r rune) bool {
	return r == ':' || r == ',' || unicode.IsSpace(r)
}

// Split breaks a stream holding several trees separated by blank lines into
// one chunk per tree.
func Split(r io.Reader) ([]string, error) {
	sc := newScanner(r)
	var chunks []string
	var lines []string
	for sc.Scan() {
		line := sc.Text()
		if line == "" {
			if len(lines) > 0 {
				chunks = append(chunks, strings.Join(lines, "\n"))
				lines = lines[:0]
			}
			continue
		}
		lines = append(lines, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("tree: read: %w", err)
	}
	if len(lines) > 0 {
		chunks = append(chunks, strings.Join(lines, "\n"))
	}
	return chunks, nil
}

// ParseForest decodes blank-line separated trees, in stream order.
func ParseForest(r io.Reader) ([]*Node, error) {
	chunks, err := Split(r)
	if err != nil {
		return nil, err
	}
	trees := make([]*Node, 0, len(chunks))
	for i, chunk := range chunks {
		t, err := ParseString(chunk)
		if err != nil {
			return nil, fmt.Errorf("tree %d: %w", i, err)
		}
		trees = append(trees, t)
	}
	return trees, nil
}

// Encode writes the pre-order enumeration of root. Encode and Parse
// round-trip for labels without newlines.
func Encode(w io.Writer, root *Node) error {
	bw := bufio.NewWriter(w)
	var werr error
	Visit(root, func(n *Node, _ int) {
		if werr != nil {
			return
		}
		_, werr = fmt.Fprintf(bw, "%d:%s\n", len(n.Children), n.Label)
	})
	if werr != nil {
		return fmt.Errorf("tree: encode: %w", werr)
	}
	return bw.Flush()
}

func newScanner(r io.Reader) *bufio.Scanner {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	return sc
}
