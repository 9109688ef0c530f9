package server

import (
	"github.com/pingcap/errors"
	"github.com/rcckv/rcckv/kv/transaction/depgraph"
	"github.com/rcckv/rcckv/proto/pkg/rccpb"
)

// decodeGraph checks a wire graph and decodes it with resolved edges. Graphs on the wire are self-contained:
// every parent id is itself a vertex of the message, and every vertex appears once.
func decodeGraph(pb *rccpb.Graph) (*depgraph.Graph, error) {
	if pb == nil {
		return depgraph.NewEmpty(), nil
	}
	switch pb.Kind {
	case rccpb.KindEmptyGraph:
		return depgraph.NewEmpty(), nil
	case rccpb.KindGraph:
	default:
		return nil, errors.Errorf("unexpected graph kind %s", pb.Kind)
	}
	ids := make(map[uint64]bool, len(pb.Vertices))
	for _, v := range pb.Vertices {
		if v.Status < int32(depgraph.StatusUnknown) || v.Status > int32(depgraph.StatusExecuted) {
			return nil, errors.Errorf("txn %d has invalid status %d", v.TxnId, v.Status)
		}
		if ids[v.TxnId] {
			return nil, errors.Errorf("txn %d appears twice", v.TxnId)
		}
		ids[v.TxnId] = true
	}
	for _, v := range pb.Vertices {
		for _, p := range v.Parents {
			if !ids[p] {
				return nil, errors.Errorf("txn %d has dangling parent %d", v.TxnId, p)
			}
		}
	}
	g := depgraph.Unmarshal(pb)
	g.RebuildEdgePointer(g)
	return g, nil
}
