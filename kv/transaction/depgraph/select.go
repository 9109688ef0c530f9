package depgraph

// SelectGraph copies vs into out together with boundary stubs for every parent outside vs, so out is
// self-contained and can be resolved against itself.
func (g *Graph) SelectGraph(vs []*Vertex, out *Graph) {
	g.checkResolved()
	picked := make(map[uint64]bool, len(vs))
	for _, v := range vs {
		picked[v.ID] = true
	}
	sorted := append([]*Vertex(nil), vs...)
	SortVertices(sorted)
	for _, v := range sorted {
		out.absorb(v, true)
	}
	for _, v := range sorted {
		for _, p := range v.Parents() {
			if !picked[p.ID] {
				out.absorbStub(p)
			}
		}
	}
}

func isCmtUkn(s Status) bool {
	return s == StatusUnknown || s == StatusCommitting || s == StatusCommitted
}

// SelectGraphCmtUkn copies v and every ancestor reachable through unknown, committing or committed vertices.
// Other parents met on the way are copied as stubs.
func (g *Graph) SelectGraphCmtUkn(v *Vertex, out *Graph) {
	g.checkResolved()
	selected := []*Vertex{v}
	seen := map[uint64]bool{v.ID: true}
	for i := 0; i < len(selected); i++ {
		for _, p := range selected[i].Parents() {
			if seen[p.ID] || !isCmtUkn(p.Status) {
				continue
			}
			seen[p.ID] = true
			selected = append(selected, p)
		}
	}
	g.SelectGraph(selected, out)
}

// MinInterferenceGraph copies v and its undecided ancestors up to depth edges away into out, and returns how
// many vertices were selected. A negative depth is unbounded. In quick mode the walk stops at the first cycle it
// meets among the selected vertices, whether or not the cycle passes through v.
func (g *Graph) MinInterferenceGraph(v *Vertex, out *Graph, quick bool, depth int) int {
	g.checkResolved()
	selected := []*Vertex{v}
	// shallowest distance from v each selected vertex was reached at
	dist := map[uint64]int{v.ID: 0}
	onPath := make(map[uint64]bool)
	cycle := false

	var visit func(u *Vertex, d int)
	visit = func(u *Vertex, d int) {
		if depth >= 0 && d >= depth {
			return
		}
		onPath[u.ID] = true
		for _, p := range u.Parents() {
			if quick && onPath[p.ID] {
				cycle = true
			}
			if cycle {
				break
			}
			if p.Status.Decided() {
				continue
			}
			if pd, ok := dist[p.ID]; ok {
				if depth < 0 || pd <= d+1 {
					continue
				}
			} else {
				selected = append(selected, p)
			}
			dist[p.ID] = d + 1
			visit(p, d+1)
		}
		onPath[u.ID] = false
	}
	visit(v, 0)

	g.SelectGraph(selected, out)
	return len(selected)
}

// AllAncestorsCommitted reports whether every transitive ancestor of v is committed or executed.
func (g *Graph) AllAncestorsCommitted(v *Vertex) bool {
	g.checkResolved()
	seen := make(map[uint64]bool)
	stack := v.Parents()
	for len(stack) > 0 {
		u := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[u.ID] {
			continue
		}
		seen[u.ID] = true
		if !u.Status.IsCommit() {
			return false
		}
		stack = append(stack, u.Parents()...)
	}
	return true
}

// HasInterestingCycle reports whether scc is a real cycle (more than one member, or a self edge) that still
// has a member not yet committed.
func HasInterestingCycle(scc []*Vertex) bool {
	if len(scc) == 0 {
		return false
	}
	if len(scc) == 1 && !scc[0].HasParent(scc[0].ID) {
		return false
	}
	for _, v := range scc {
		if v.Status < StatusCommitted {
			return true
		}
	}
	return false
}
