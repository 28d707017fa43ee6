package supervisor

// validateGraph checks that every declared dependency resolves to a
// registered task and that the dependency graph is acyclic. order is the
// registration order of task ids; deps maps each id to its declared
// dependency ids in declaration order. Tasks and their dependency lists
// are walked in registration order, so the first violation encountered
// is always the one reported.
//
// On success it returns a topological order (dependencies before
// dependents) with ties broken by registration order, for logging only.
func validateGraph(order []TaskId, deps map[TaskId][]TaskId) ([]TaskId, error) {
	known := make(map[TaskId]struct{}, len(order))
	for _, id := range order {
		known[id] = struct{}{}
	}

	for _, id := range order {
		for _, d := range deps[id] {
			if d == id {
				return nil, &CircularDependencyError{TaskID: id, DependencyID: id}
			}
			if _, ok := known[d]; !ok {
				return nil, &DependencyValidationError{TaskID: id, DependencyID: d}
			}
		}
	}

	const (
		white = iota
		gray
		black
	)
	color := make(map[TaskId]int, len(order))
	topo := make([]TaskId, 0, len(order))
	var cycleErr error

	var visit func(id TaskId) bool
	visit = func(id TaskId) bool {
		color[id] = gray
		for _, d := range deps[id] {
			switch color[d] {
			case white:
				if visit(d) {
					return true
				}
			case gray:
				cycleErr = &CircularDependencyError{TaskID: id, DependencyID: d}
				return true
			}
		}
		color[id] = black
		topo = append(topo, id)
		return false
	}

	for _, id := range order {
		if color[id] == white {
			if visit(id) {
				return nil, cycleErr
			}
		}
	}
	return topo, nil
}
