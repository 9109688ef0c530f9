package depgraph

import (
	"github.com/pingcap/log"
	"github.com/rcckv/rcckv/proto/pkg/rccpb"
	"go.uber.org/zap"
)

// Marshal encodes g with edges as parent ids, vertices in ascending id order.
func (g *Graph) Marshal() *rccpb.Graph {
	if g.Empty {
		return &rccpb.Graph{Kind: rccpb.KindEmptyGraph}
	}
	pb := &rccpb.Graph{Kind: rccpb.KindGraph, Vertices: make([]*rccpb.Vertex, 0, len(g.index))}
	for _, v := range g.Vertices() {
		pb.Vertices = append(pb.Vertices, &rccpb.Vertex{
			TxnId:     v.ID,
			Status:    int32(v.Status),
			Epoch:     v.Epoch,
			Partition: v.Partition,
			Parents:   v.ParentIDs(),
		})
	}
	return pb
}

// Unmarshal decodes a wire graph. Edges stay unresolved: call RebuildEdgePointer before traversing the result.
// A nil message decodes to the Empty sentinel.
func Unmarshal(pb *rccpb.Graph) *Graph {
	g := New()
	if pb == nil {
		g.Empty = true
		return g
	}
	switch pb.Kind {
	case rccpb.KindEmptyGraph:
		g.Empty = true
		return g
	case rccpb.KindGraph:
	default:
		log.Panic("unexpected graph kind", zap.Stringer("kind", pb.Kind))
	}
	for _, pv := range pb.Vertices {
		if pv.Status < int32(StatusUnknown) || pv.Status > int32(StatusExecuted) {
			log.Panic("invalid vertex status", zap.Uint64("txn", pv.TxnId), zap.Int32("status", pv.Status))
		}
		v := g.FindOrCreate(pv.TxnId)
		v.Upgrade(Status(pv.Status))
		if v.Epoch == 0 {
			v.Epoch = pv.Epoch
		}
		if v.Partition == NoPartition {
			v.Partition = pv.Partition
		}
		for _, pid := range pv.Parents {
			if _, ok := v.parents[pid]; !ok {
				v.parents[pid] = nil
				g.unresolved = true
			}
		}
	}
	return g
}
