package depgraph

import (
	"fmt"
	"math"
	"sort"

	"github.com/pingcap/log"
	"go.uber.org/zap"
)

// Status is the dependency state of a transaction. Statuses only ever move forward.
type Status int8

const (
	StatusUnknown Status = iota
	StatusStarted
	StatusDispatched
	StatusCommitting
	StatusCommitted
	StatusAborted
	StatusExecuted
)

var statusNames = [...]string{"unknown", "started", "dispatched", "committing", "committed", "aborted", "executed"}

func (s Status) String() string {
	if int(s) >= 0 && int(s) < len(statusNames) {
		return statusNames[s]
	}
	return fmt.Sprintf("Status(%d)", int8(s))
}

// Decided reports whether the commit/abort outcome is known.
func (s Status) Decided() bool {
	return s >= StatusCommitted
}

// IsCommit reports a decided commit, applied or not.
func (s Status) IsCommit() bool {
	return s == StatusCommitted || s == StatusExecuted
}

// NoPartition marks a vertex whose owning partition is not known yet.
const NoPartition uint32 = math.MaxUint32

// MergeStatus returns the more advanced of a and b. Committed or executed merged with aborted is a split decision
// and panics.
func MergeStatus(id uint64, a, b Status) Status {
	if (a == StatusAborted && b.IsCommit()) || (b == StatusAborted && a.IsCommit()) {
		log.Panic("conflicting decision for transaction",
			zap.Uint64("txn", id), zap.Stringer("local", a), zap.Stringer("incoming", b))
	}
	if a > b {
		return a
	}
	return b
}

// Vertex is one transaction in a dependency graph. Parent edges are keyed by id; the pointer side is resolved
// through the owning graph's index and may be nil until RebuildEdgePointer runs on a decoded graph.
type Vertex struct {
	ID        uint64
	Status    Status
	Epoch     uint64
	Partition uint32

	parents  map[uint64]*Vertex
	children map[uint64]*Vertex
}

func newVertex(id uint64) *Vertex {
	return &Vertex{
		ID:        id,
		Partition: NoPartition,
		parents:   make(map[uint64]*Vertex),
		children:  make(map[uint64]*Vertex),
	}
}

// NumParents is the size of the parent set.
func (v *Vertex) NumParents() int {
	return len(v.parents)
}

func (v *Vertex) HasParent(id uint64) bool {
	_, ok := v.parents[id]
	return ok
}

// ParentIDs returns the parent set in ascending order.
func (v *Vertex) ParentIDs() []uint64 {
	return sortedIDs(v.parents)
}

// Parents returns the resolved parents in ascending id order.
func (v *Vertex) Parents() []*Vertex {
	res := make([]*Vertex, 0, len(v.parents))
	for _, id := range sortedIDs(v.parents) {
		p := v.parents[id]
		if p == nil {
			log.Panic("traversing an unresolved edge", zap.Uint64("txn", v.ID), zap.Uint64("parent", id))
		}
		res = append(res, p)
	}
	return res
}

// Children returns the vertices of the same graph that list v as a parent, in ascending id order.
func (v *Vertex) Children() []*Vertex {
	res := make([]*Vertex, 0, len(v.children))
	for _, id := range sortedIDs(v.children) {
		res = append(res, v.children[id])
	}
	return res
}

// Upgrade moves the status forward to s. Lower statuses are ignored.
func (v *Vertex) Upgrade(s Status) bool {
	merged := MergeStatus(v.ID, v.Status, s)
	if merged == v.Status {
		return false
	}
	v.Status = merged
	return true
}

func (v *Vertex) String() string {
	return fmt.Sprintf("{id:%d status:%s epoch:%d par:%d parents:%v}", v.ID, v.Status, v.Epoch, v.Partition, v.ParentIDs())
}

func sortedIDs(m map[uint64]*Vertex) []uint64 {
	ids := make([]uint64, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// SortVertices orders vs by ascending id in place.
func SortVertices(vs []*Vertex) {
	sort.Slice(vs, func(i, j int) bool { return vs[i].ID < vs[j].ID })
}
