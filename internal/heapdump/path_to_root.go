package heapdump

// pathFinder implements the shortest-path-to-root query:
// forward BFS seeded from every GC root, walking outbound edges, with a
// parent-edge map recording how each child was first reached. BFS from
// the roots guarantees the shortest path and a single full-graph pass
// answers the query for any target reached during that pass, at the cost
// of doing the walk even when the target is shallow.
type pathFinder struct {
	store *objectStore
}

func newPathFinder(store *objectStore) *pathFinder {
	return &pathFinder{store: store}
}

type parentEdge struct {
	parent ID32
	field  string
}

// FindPath returns the path from some GC root to target, inclusive, or
// nil if target is unreachable from any root. If target is itself a
// root, the single-element path is returned without a BFS.
func (f *pathFinder) FindPath(roots []GCRoot, target ID32) ([]PathStep, error) {
	for _, r := range roots {
		if r.ObjectID32 == target {
			return []PathStep{{ObjectID32: target}}, nil
		}
	}

	visited := map[ID32]struct{}{}
	parent := map[ID32]parentEdge{}
	queue := make([]ID32, 0, len(roots))
	for _, r := range roots {
		if _, ok := visited[r.ObjectID32]; ok {
			continue
		}
		visited[r.ObjectID32] = struct{}{}
		queue = append(queue, r.ObjectID32)
	}

	found := false
	for len(queue) > 0 && !found {
		o := queue[0]
		queue = queue[1:]

		obj, err := f.store.ByID32(o)
		if err != nil {
			continue
		}
		refs, err := f.store.References(obj)
		if err != nil {
			return nil, err
		}
		for _, r := range refs {
			if _, ok := visited[r.TargetID32]; ok {
				continue
			}
			visited[r.TargetID32] = struct{}{}
			parent[r.TargetID32] = parentEdge{parent: o, field: r.FieldName}
			if r.TargetID32 == target {
				found = true
				break
			}
			queue = append(queue, r.TargetID32)
		}
	}

	if _, ok := visited[target]; !ok {
		return nil, nil
	}

	// Walk parent pointers from target back to its root, then reverse so
	// the chain reads root -> ... -> target, and attach each edge's field
	// label to the step it departs *from*.
	var ids []ID32
	cur := target
	for {
		ids = append(ids, cur)
		edge, ok := parent[cur]
		if !ok {
			break
		}
		cur = edge.parent
	}
	for i, j := 0, len(ids)-1; i < j; i, j = i+1, j-1 {
		ids[i], ids[j] = ids[j], ids[i]
	}

	path := make([]PathStep, len(ids))
	for i, id := range ids {
		path[i].ObjectID32 = id
		if i < len(ids)-1 {
			if edge, ok := parent[ids[i+1]]; ok {
				path[i].FieldName = edge.field
			}
		}
	}
	return path, nil
}
