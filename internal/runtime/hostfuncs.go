package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/risor-io/risor/object"

	"github.com/jward/gramstats/internal/grammar"
	"github.com/jward/gramstats/internal/store"
	"github.com/jward/gramstats/internal/tree"
)

// hostFuncs returns the builtins every script sees.
func hostFuncs() map[string]any {
	return map[string]any{
		"parse_tree": makeParseTreeFn(),
		"preorder":   makePreorderFn(),
		"rule":       makeRuleFn(),
	}
}

// treeObject converts a tree to nested maps of {label, children}.
func treeObject(n *tree.Node) object.Object {
	children := make([]object.Object, len(n.Children))
	for i, c := range n.Children {
		children[i] = treeObject(c)
	}
	return object.NewMap(map[string]object.Object{
		"label":    object.NewString(n.Label),
		"children": object.NewList(children),
	})
}

func tableObject(t store.Table) object.Object {
	rows := make([]object.Object, len(t))
	for i, row := range t {
		cells := make([]object.Object, len(row))
		for j, v := range row {
			cells[j] = cellObject(v)
		}
		rows[i] = object.NewList(cells)
	}
	return object.NewList(rows)
}

func cellObject(v any) object.Object {
	switch v := v.(type) {
	case int:
		return object.NewInt(int64(v))
	case int64:
		return object.NewInt(v)
	case float64:
		return object.NewFloat(v)
	case bool:
		return object.NewBool(v)
	case string:
		return object.NewString(v)
	default:
		return object.NewString(store.Format(v))
	}
}

// toTable converts a script's result, a list of row lists, to a table.
func toTable(obj object.Object) (store.Table, error) {
	if _, ok := obj.(*object.NilType); ok {
		return store.Table{}, nil
	}
	list, ok := obj.(*object.List)
	if !ok {
		return nil, fmt.Errorf("table scripts must evaluate to a list of rows, got %s", obj.Type())
	}
	items := list.Value()
	t := make(store.Table, len(items))
	for i, item := range items {
		row, ok := item.(*object.List)
		if !ok {
			return nil, fmt.Errorf("row %d: expected list, got %s", i+1, item.Type())
		}
		cells := row.Value()
		t[i] = make(store.Row, len(cells))
		for j, cell := range cells {
			v, err := cellValue(cell)
			if err != nil {
				return nil, fmt.Errorf("row %d column %d: %w", i+1, j+1, err)
			}
			t[i][j] = v
		}
	}
	return t, nil
}

func cellValue(obj object.Object) (any, error) {
	switch v := obj.(type) {
	case *object.Int:
		return int(v.Value()), nil
	case *object.Float:
		return v.Value(), nil
	case *object.String:
		return v.Value(), nil
	case *object.Bool:
		return v.Value(), nil
	}
	return nil, fmt.Errorf("unsupported cell type %s", obj.Type())
}

// makeParseTreeFn creates "parse_tree", which decodes one tree in pre-order
// form.
//
// parse_tree(text) → {label, children}
func makeParseTreeFn() *object.Builtin {
	return object.NewBuiltin("parse_tree", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("parse_tree", 1, len(args))
		}
		src, ok := args[0].(*object.String)
		if !ok {
			return object.Errorf("parse_tree: source must be a string, got %s", args[0].Type())
		}
		n, err := tree.ParseString(src.Value())
		if err != nil {
			return object.Errorf("parse_tree: %v", err)
		}
		return treeObject(n)
	})
}

// makePreorderFn creates "preorder", which flattens a tree into its nodes in
// pre-order. Each entry is {label, depth, arity}.
//
// preorder(tree) → []map
func makePreorderFn() *object.Builtin {
	return object.NewBuiltin("preorder", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("preorder", 1, len(args))
		}
		root, err := nodeFrom(args[0])
		if err != nil {
			return object.Errorf("preorder: %v", err)
		}
		var nodes []object.Object
		tree.Visit(root, func(n *tree.Node, depth int) {
			nodes = append(nodes, object.NewMap(map[string]object.Object{
				"label": object.NewString(n.Label),
				"depth": object.NewInt(int64(depth)),
				"arity": object.NewInt(int64(len(n.Children))),
			}))
		})
		return object.NewList(nodes)
	})
}

// makeRuleFn creates "rule", which renders a node's production the way the
// built-in tables do.
//
// rule(tree) → "A => b:c"
func makeRuleFn() *object.Builtin {
	return object.NewBuiltin("rule", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("rule", 1, len(args))
		}
		n, err := nodeFrom(args[0])
		if err != nil {
			return object.Errorf("rule: %v", err)
		}
		return object.NewString(grammar.Rule(n.Label, grammar.ProductionOf(n)))
	})
}

// nodeFrom converts a {label, children} map back to a tree.
func nodeFrom(obj object.Object) (*tree.Node, error) {
	m, ok := obj.(*object.Map)
	if !ok {
		return nil, fmt.Errorf("expected tree map, got %s", obj.Type())
	}
	fields := m.Value()
	label, ok := fields["label"].(*object.String)
	if !ok {
		return nil, fmt.Errorf("tree map has no string label")
	}
	n := tree.New(label.Value())
	if children, ok := fields["children"].(*object.List); ok {
		for _, c := range children.Value() {
			child, err := nodeFrom(c)
			if err != nil {
				return nil, err
			}
			n.Children = append(n.Children, child)
		}
	}
	return n, nil
}

// logModule provides log.info/warn/error for Risor scripts, forwarding to
// logger.
func logModule(logger *slog.Logger) *object.Module {
	level := func(name string, fn func(string, ...any)) *object.Builtin {
		return object.NewBuiltin(name, func(ctx context.Context, args ...object.Object) object.Object {
			if len(args) == 0 {
				return object.Errorf("log.%s: missing message", name)
			}
			msg, ok := args[0].(*object.String)
			if !ok {
				return object.Errorf("log.%s: message must be a string, got %s", name, args[0].Type())
			}
			var attrs []any
			if len(args) > 1 {
				fields, ok := args[1].(*object.Map)
				if !ok {
					return object.Errorf("log.%s: fields must be a map, got %s", name, args[1].Type())
				}
				values := fields.Value()
				keys := make([]string, 0, len(values))
				for k := range values {
					keys = append(keys, k)
				}
				sort.Strings(keys)
				for _, k := range keys {
					attrs = append(attrs, k, values[k].Interface())
				}
			}
			fn(msg.Value(), attrs...)
			return object.Nil
		})
	}
	return object.NewBuiltinsModule("log", map[string]object.Object{
		"info":  level("info", logger.Info),
		"warn":  level("warn", logger.Warn),
		"error": level("error", logger.Error),
	})
}
