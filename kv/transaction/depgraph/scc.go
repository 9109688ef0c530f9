package depgraph

// tarjan computes strongly connected components of the sub-graph reached from roots through parent edges,
// restricted to vertices accepted by pred. A component is emitted only after every component it depends on, so
// the result lists ancestors first. Members of a component are sorted by id.
type tarjan struct {
	pred    func(*Vertex) bool
	index   map[uint64]int
	lowlink map[uint64]int
	onStack map[uint64]bool
	stack   []*Vertex
	next    int
	sccs    [][]*Vertex
}

func (t *tarjan) visit(v *Vertex) {
	t.index[v.ID] = t.next
	t.lowlink[v.ID] = t.next
	t.next++
	t.stack = append(t.stack, v)
	t.onStack[v.ID] = true

	for _, p := range v.Parents() {
		if !t.pred(p) {
			continue
		}
		if _, ok := t.index[p.ID]; !ok {
			t.visit(p)
			if t.lowlink[p.ID] < t.lowlink[v.ID] {
				t.lowlink[v.ID] = t.lowlink[p.ID]
			}
		} else if t.onStack[p.ID] && t.index[p.ID] < t.lowlink[v.ID] {
			t.lowlink[v.ID] = t.index[p.ID]
		}
	}

	if t.lowlink[v.ID] != t.index[v.ID] {
		return
	}
	var scc []*Vertex
	for {
		w := t.stack[len(t.stack)-1]
		t.stack = t.stack[:len(t.stack)-1]
		t.onStack[w.ID] = false
		scc = append(scc, w)
		if w == v {
			break
		}
	}
	SortVertices(scc)
	t.sccs = append(t.sccs, scc)
}

func (g *Graph) tarjan(roots []*Vertex, pred func(*Vertex) bool) [][]*Vertex {
	g.checkResolved()
	if pred == nil {
		pred = func(*Vertex) bool { return true }
	}
	t := &tarjan{
		pred:    pred,
		index:   make(map[uint64]int),
		lowlink: make(map[uint64]int),
		onStack: make(map[uint64]bool),
	}
	for _, r := range roots {
		if _, ok := t.index[r.ID]; ok || !pred(r) {
			continue
		}
		t.visit(r)
	}
	return t.sccs
}

// StronglyConnected returns the components of root's ancestor closure restricted to pred, ancestors first.
// A nil pred accepts every vertex.
func (g *Graph) StronglyConnected(root *Vertex, pred func(*Vertex) bool) [][]*Vertex {
	return g.tarjan([]*Vertex{root}, pred)
}

// FindSCC returns the component containing v.
func (g *Graph) FindSCC(v *Vertex) []*Vertex {
	for _, scc := range g.StronglyConnected(v, nil) {
		for _, m := range scc {
			if m == v {
				return scc
			}
		}
	}
	return nil
}

// SCCs returns every component of the graph, ancestors first. Roots are visited in ascending id order, so the
// result depends only on the graph structure.
func (g *Graph) SCCs() [][]*Vertex {
	return g.tarjan(g.Vertices(), nil)
}
