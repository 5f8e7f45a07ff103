package tree

// VisitFunc is called once per node in pre-order. depth is 1 for the root.
type VisitFunc func(n *Node, depth int)

// FinalizeFunc synthesizes a node's result from its children's results, which
// arrive in child order. It runs after every descendant has been finalized.
type FinalizeFunc[R any] func(n *Node, depth int, children []R) R

// walkFrame is one pending node on the explicit traversal stack.
type walkFrame[R any] struct {
	node    *Node
	depth   int
	next    int // index of the next child to descend into
	results []R
}

// Walk traverses the tree rooted at root with an explicit stack. visit is
// called before any descendant is visited; finalize is called after all
// children are finalized and receives their results in order. Either
// callback may be nil. Walk returns the root's synthesized result.
func Walk[R any](root *Node, visit VisitFunc, finalize FinalizeFunc[R]) R {
	var zero R
	if root == nil {
		return zero
	}

	if visit != nil {
		visit(root, 1)
	}
	stack := []*walkFrame[R]{{node: root, depth: 1}}

	for len(stack) > 0 {
		top := stack[len(stack)-1]

		if top.next < len(top.node.Children) {
			child := top.node.Children[top.next]
			top.next++
			if visit != nil {
				visit(child, top.depth+1)
			}
			stack = append(stack, &walkFrame[R]{node: child, depth: top.depth + 1})
			continue
		}

		stack = stack[:len(stack)-1]
		if finalize == nil {
			continue
		}
		result := finalize(top.node, top.depth, top.results)
		if len(stack) == 0 {
			return result
		}
		parent := stack[len(stack)-1]
		parent.results = append(parent.results, result)
	}
	return zero
}

// Visit is Walk without synthesis.
func Visit(root *Node, visit VisitFunc) {
	Walk[struct{}](root, visit, nil)
}

// WalkForest visits each tree independently, in forest order. Callers that
// need an accumulator close over it in visit.
func WalkForest(trees []*Node, visit VisitFunc) {
	for _, t := range trees {
		Visit(t, visit)
	}
}
