// Package render hands Graphviz text to an external layout tool.
package render

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/jward/gramstats/internal/store"
)

// Renderer turns a dot description into image files next to base. base has
// no extension; Render returns every path it wrote.
type Renderer interface {
	Render(ctx context.Context, base, dot string) ([]string, error)
}

// Func adapts a function to Renderer.
type Func func(ctx context.Context, base, dot string) ([]string, error)

// Render calls f.
func (f Func) Render(ctx context.Context, base, dot string) ([]string, error) {
	return f(ctx, base, dot)
}

// Graphviz runs the dot binary once per output format. Failures are not
// retried.
type Graphviz struct {
	Command string
	Formats []string
}

// NewGraphviz returns a renderer producing .plain and .png files with dot
// from PATH.
func NewGraphviz() *Graphviz {
	return &Graphviz{Command: "dot", Formats: []string{"plain", "png"}}
}

// Available reports whether the command can be found.
func (g *Graphviz) Available() bool {
	_, err := exec.LookPath(g.Command)
	return err == nil
}

// Render writes base.dot, then base.<format> for each format.
func (g *Graphviz) Render(ctx context.Context, base, dot string) ([]string, error) {
	dotPath := base + ".dot"
	if err := store.WriteFile(dotPath, []byte(dot)); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	written := []string{dotPath}
	for _, format := range g.Formats {
		out := base + "." + format
		cmd := exec.CommandContext(ctx, g.Command, "-T"+format, "-o", out)
		cmd.Stdin = strings.NewReader(dot)
		var stderr bytes.Buffer
		cmd.Stderr = &stderr
		if err := cmd.Run(); err != nil {
			return written, fmt.Errorf("render: %s -T%s %s: %w: %s", g.Command, format, out, err, strings.TrimSpace(stderr.String()))
		}
		written = append(written, out)
	}
	return written, nil
}
