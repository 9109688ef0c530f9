package txn

import (
	"sort"

	"github.com/rcckv/rcckv/proto/pkg/rccpb"
)

// Workspace is the key/value payload of a piece: input values on the way in, output values on the way out.
type Workspace map[int32][]byte

func (ws Workspace) Clone() Workspace {
	if ws == nil {
		return nil
	}
	out := make(Workspace, len(ws))
	for k, v := range ws {
		out[k] = append([]byte(nil), v...)
	}
	return out
}

// Output maps a piece's inner id to the values it produced.
type Output map[int32]Workspace

// Merge copies every piece output of o into out.
func (out Output) Merge(o Output) {
	for inner, ws := range o {
		out[inner] = ws
	}
}

// Piece is one partition-local sub-operation of a transaction.
type Piece struct {
	TxnID     uint64
	InnerID   int32
	Type      int32
	Partition uint32
	Input     Workspace
}

func (p *Piece) ToProto() *rccpb.Piece {
	return &rccpb.Piece{
		TxnId:     p.TxnID,
		InnerId:   p.InnerID,
		Type:      p.Type,
		Partition: p.Partition,
		Input:     p.Input,
	}
}

func PieceFromProto(pb *rccpb.Piece) *Piece {
	return &Piece{
		TxnID:     pb.TxnId,
		InnerID:   pb.InnerId,
		Type:      pb.Type,
		Partition: pb.Partition,
		Input:     Workspace(pb.Input),
	}
}

// MarshalBatch wraps pieces into the tagged wire envelope.
func MarshalBatch(pieces []*Piece) *rccpb.PieceBatch {
	batch := &rccpb.PieceBatch{Kind: rccpb.KindPieceBatch}
	for _, p := range pieces {
		batch.Pieces = append(batch.Pieces, p.ToProto())
	}
	return batch
}

// UnmarshalBatch decodes a piece batch. A batch with the wrong kind yields nil.
func UnmarshalBatch(batch *rccpb.PieceBatch) []*Piece {
	if batch == nil || batch.Kind != rccpb.KindPieceBatch {
		return nil
	}
	pieces := make([]*Piece, 0, len(batch.Pieces))
	for _, pb := range batch.Pieces {
		pieces = append(pieces, PieceFromProto(pb))
	}
	return pieces
}

// OutputToProto lists the outputs ordered by inner id.
func OutputToProto(out Output) []*rccpb.Output {
	inners := make([]int, 0, len(out))
	for inner := range out {
		inners = append(inners, int(inner))
	}
	sort.Ints(inners)
	res := make([]*rccpb.Output, 0, len(out))
	for _, inner := range inners {
		res = append(res, &rccpb.Output{InnerId: int32(inner), Values: out[int32(inner)]})
	}
	return res
}

func OutputFromProto(pbs []*rccpb.Output) Output {
	out := make(Output, len(pbs))
	for _, pb := range pbs {
		out[pb.InnerId] = Workspace(pb.Values)
	}
	return out
}
