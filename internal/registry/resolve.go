package registry

import "sort"

// checkDependencies verifies every dependsOn entry names a registered
// artifact.
func (r *Registry) checkDependencies() error {
	for _, name := range r.order {
		for _, dep := range r.descs[name].DependsOn {
			if _, ok := r.descs[dep]; !ok {
				return missingDependencyError(name, dep)
			}
		}
	}
	return nil
}

// TopologicalOrder returns every artifact name with dependencies before
// their dependents. The traversal is a depth-first post-order started from
// each artifact in registration order, so independent artifacts keep their
// registration order. A cycle is a ConfigurationError naming the chain.
func (r *Registry) TopologicalOrder() ([]string, error) {
	if err := r.checkDependencies(); err != nil {
		return nil, err
	}

	const (
		white = iota
		gray
		black
	)
	type frame struct {
		name string
		next int
	}

	color := make(map[string]int, len(r.order))
	order := make([]string, 0, len(r.order))
	for _, root := range r.order {
		if color[root] != white {
			continue
		}
		color[root] = gray
		stack := []frame{{name: root}}
		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			deps := r.descs[top.name].DependsOn
			if top.next < len(deps) {
				dep := deps[top.next]
				top.next++
				switch color[dep] {
				case white:
					color[dep] = gray
					stack = append(stack, frame{name: dep})
				case gray:
					path := []string{}
					for i := len(stack) - 1; i >= 0; i-- {
						if stack[i].name == dep {
							for _, f := range stack[i:] {
								path = append(path, f.name)
							}
							break
						}
					}
					return nil, cycleError(append(path, dep))
				}
				continue
			}
			color[top.name] = black
			order = append(order, top.name)
			stack = stack[:len(stack)-1]
		}
	}
	return order, nil
}

// ReachedBy returns, for every artifact B, the artifacts that transitively
// depend on B, in registration order. Each artifact is expanded once:
// reached-by sets are built in reverse topological order from the sets of
// direct dependents.
func (r *Registry) ReachedBy() (map[string][]string, error) {
	order, err := r.TopologicalOrder()
	if err != nil {
		return nil, err
	}

	dependents := make(map[string][]string, len(r.order))
	for _, name := range r.order {
		for _, dep := range r.descs[name].DependsOn {
			dependents[dep] = append(dependents[dep], name)
		}
	}

	sets := make(map[string]map[string]bool, len(order))
	for i := len(order) - 1; i >= 0; i-- {
		name := order[i]
		set := make(map[string]bool)
		for _, d := range dependents[name] {
			set[d] = true
			for x := range sets[d] {
				set[x] = true
			}
		}
		sets[name] = set
	}

	pos := make(map[string]int, len(r.order))
	for i, name := range r.order {
		pos[name] = i
	}
	reached := make(map[string][]string, len(sets))
	for name, set := range sets {
		list := make([]string, 0, len(set))
		for x := range set {
			list = append(list, x)
		}
		sort.Slice(list, func(i, j int) bool { return pos[list[i]] < pos[list[j]] })
		reached[name] = list
	}
	return reached, nil
}
