package depgraph

import (
	"github.com/pingcap/log"
	"go.uber.org/zap"
)

type tombstone struct {
	status Status
	epoch  uint64
}

// Graph is an index from transaction id to vertex. It is NOT safe for concurrent use; the owning scheduler
// serializes every access.
type Graph struct {
	index map[uint64]*Vertex
	// Empty marks a graph that carries no dependency information at all, as opposed to zero vertices.
	Empty bool

	// unresolved is set on a decoded graph until RebuildEdgePointer runs.
	unresolved bool
	tombstones map[uint64]tombstone
}

func New() *Graph {
	return &Graph{
		index:      make(map[uint64]*Vertex),
		tombstones: make(map[uint64]tombstone),
	}
}

// NewEmpty returns the "no information" sentinel.
func NewEmpty() *Graph {
	g := New()
	g.Empty = true
	return g
}

func (g *Graph) Len() int {
	return len(g.index)
}

func (g *Graph) Find(id uint64) *Vertex {
	return g.index[id]
}

// FindOrCreate returns the vertex for id, registering a new Unknown one if needed. An id that was garbage
// collected comes back with its final status.
func (g *Graph) FindOrCreate(id uint64) *Vertex {
	if v, ok := g.index[id]; ok {
		return v
	}
	v := newVertex(id)
	if ts, ok := g.tombstones[id]; ok {
		v.Status = ts.status
		v.Epoch = ts.epoch
	}
	g.index[id] = v
	return v
}

// Remove erases id and every edge touching it. Removing an absent id is a no-op.
func (g *Graph) Remove(id uint64) {
	v, ok := g.index[id]
	if !ok {
		return
	}
	for pid, p := range v.parents {
		if p != nil {
			delete(p.children, id)
		}
		delete(v.parents, pid)
	}
	for cid, c := range v.children {
		delete(c.parents, id)
		delete(v.children, cid)
	}
	delete(g.index, id)
}

// Forget removes a decided vertex and remembers its outcome, so late messages naming it do not bring it back
// as Unknown.
func (g *Graph) Forget(id uint64) {
	v, ok := g.index[id]
	if !ok {
		return
	}
	if !v.Status.Decided() {
		log.Panic("forgetting an undecided transaction", zap.Stringer("vertex", v))
	}
	g.tombstones[id] = tombstone{status: v.Status, epoch: v.Epoch}
	g.Remove(id)
}

// Tombstone returns the final status of a forgotten id.
func (g *Graph) Tombstone(id uint64) (Status, bool) {
	ts, ok := g.tombstones[id]
	return ts.status, ok
}

// PurgeTombstones drops tombstones of vertices created before epoch and returns how many were dropped.
func (g *Graph) PurgeTombstones(epoch uint64) int {
	n := 0
	for id, ts := range g.tombstones {
		if ts.epoch < epoch {
			delete(g.tombstones, id)
			n++
		}
	}
	return n
}

func (g *Graph) NumTombstones() int {
	return len(g.tombstones)
}

// Vertices returns every vertex in ascending id order.
func (g *Graph) Vertices() []*Vertex {
	vs := make([]*Vertex, 0, len(g.index))
	for _, v := range g.index {
		vs = append(vs, v)
	}
	SortVertices(vs)
	return vs
}

// AddEdge makes parent an ancestor of child. Both ids are created if missing.
func (g *Graph) AddEdge(child, parent uint64) {
	g.checkResolved()
	g.link(g.FindOrCreate(child), g.FindOrCreate(parent))
}

func (g *Graph) link(v, p *Vertex) {
	v.parents[p.ID] = p
	p.children[v.ID] = v
}

func (g *Graph) checkResolved() {
	if g.unresolved {
		log.Panic("graph used before RebuildEdgePointer")
	}
}

// RebuildEdgePointer resolves every parent id of g against index. Passing g itself resolves a decoded graph in
// place. A parent missing from index is a dangling edge and panics.
func (g *Graph) RebuildEdgePointer(index *Graph) {
	for _, v := range g.index {
		for pid := range v.parents {
			p := index.Find(pid)
			if p == nil {
				log.Panic("dangling edge", zap.Uint64("txn", v.ID), zap.Uint64("parent", pid))
			}
			v.parents[pid] = p
			if index == g {
				p.children[v.ID] = v
			}
		}
	}
	g.unresolved = false
}

// absorb merges the scalar state of in into the local vertex with the same id, and its parent ids when
// withParents is set. Missing parents become Unknown placeholders.
func (g *Graph) absorb(in *Vertex, withParents bool) (*Vertex, bool) {
	local := g.FindOrCreate(in.ID)
	advanced := local.Upgrade(in.Status)
	if local.Epoch == 0 {
		local.Epoch = in.Epoch
	}
	if local.Partition == NoPartition {
		local.Partition = in.Partition
	}
	if withParents {
		for pid := range in.parents {
			if !local.HasParent(pid) {
				g.link(local, g.FindOrCreate(pid))
			}
		}
	}
	return local, advanced
}

// absorbStub copies a boundary vertex without its parents. A stub never claims Committing, since that status
// promises a complete parent set.
func (g *Graph) absorbStub(in *Vertex) {
	local := g.FindOrCreate(in.ID)
	status := in.Status
	if status == StatusCommitting {
		status = StatusDispatched
	}
	local.Upgrade(status)
	if local.Epoch == 0 {
		local.Epoch = in.Epoch
	}
	if local.Partition == NoPartition {
		local.Partition = in.Partition
	}
}

// AggregateVertex merges one incoming view into the local vertex: status is the max of both, parents are the
// union, epoch and partition keep the local value unless it is unset. It reports whether the status advanced.
func (g *Graph) AggregateVertex(in *Vertex) (*Vertex, bool) {
	g.checkResolved()
	return g.absorb(in, true)
}

// Aggregate merges every vertex of in, in ascending id order, and returns the local vertices whose status
// advanced. Vertices that end up without an epoch are stamped with epoch. Aggregating the Empty sentinel is a
// no-op. The incoming graph does not need resolved edges.
func (g *Graph) Aggregate(epoch uint64, in *Graph) []*Vertex {
	g.checkResolved()
	if in == nil || in.Empty {
		return nil
	}
	var advanced []*Vertex
	for _, v := range in.Vertices() {
		local, up := g.absorb(v, true)
		if local.Epoch == 0 && local.Status >= StatusStarted {
			local.Epoch = epoch
		}
		if up {
			advanced = append(advanced, local)
		}
	}
	return advanced
}

// Clone returns a deep, resolved copy of g.
func (g *Graph) Clone() *Graph {
	out := New()
	out.Empty = g.Empty
	out.Aggregate(0, g)
	return out
}

// Equal compares vertex ids, statuses and parent id sets.
func (g *Graph) Equal(o *Graph) bool {
	if g.Empty != o.Empty || len(g.index) != len(o.index) {
		return false
	}
	for id, v := range g.index {
		ov, ok := o.index[id]
		if !ok || ov.Status != v.Status || len(ov.parents) != len(v.parents) {
			return false
		}
		for pid := range v.parents {
			if !ov.HasParent(pid) {
				return false
			}
		}
	}
	return true
}
