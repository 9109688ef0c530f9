package server

import (
	"context"

	"github.com/pingcap/log"
	"github.com/rcckv/rcckv/kv/transaction/frame"
	"github.com/rcckv/rcckv/kv/transaction/txn"
	"github.com/rcckv/rcckv/proto/pkg/rccpb"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var _ rccpb.RccServer = new(Server)

// Server is the gRPC face of one partition. It checks every request before it reaches the scheduler, since the
// scheduler treats malformed input as a bug and panics.
type Server struct {
	partition uint32
	sched     frame.Sched
}

func NewServer(partition uint32, sched frame.Sched) *Server {
	return &Server{partition: partition, sched: sched}
}

func (server *Server) Dispatch(ctx context.Context, req *rccpb.DispatchRequest) (*rccpb.DispatchResponse, error) {
	pieces := txn.UnmarshalBatch(req.Batch)
	if len(pieces) == 0 {
		return nil, status.Errorf(codes.InvalidArgument, "empty or untagged piece batch")
	}
	id := pieces[0].TxnID
	for _, p := range pieces {
		if p.TxnID != id {
			return nil, status.Errorf(codes.InvalidArgument, "batch mixes txn %d and %d", id, p.TxnID)
		}
		if p.Partition != server.partition {
			return nil, status.Errorf(codes.InvalidArgument, "piece for partition %d sent to partition %d",
				p.Partition, server.partition)
		}
	}

	select {
	case res := <-server.sched.OnDispatch(pieces):
		resp := &rccpb.DispatchResponse{Res: res.Res}
		if res.Graph != nil {
			resp.Graph = res.Graph.Marshal()
		}
		return resp, nil
	case <-ctx.Done():
		return nil, status.Error(codes.DeadlineExceeded, ctx.Err().Error())
	}
}

func (server *Server) Commit(ctx context.Context, req *rccpb.CommitRequest) (*rccpb.CommitResponse, error) {
	g, err := decodeGraph(req.Graph)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	select {
	case res := <-server.sched.OnCommit(req.TxnId, g):
		resp := &rccpb.CommitResponse{
			Committed: res.Committed,
			Outputs:   txn.OutputToProto(res.Output),
		}
		if res.Err != nil {
			log.Warn("commit failed", zap.Uint64("txn", req.TxnId), zap.Error(res.Err))
			resp.Error = res.Err.Error()
		}
		return resp, nil
	case <-ctx.Done():
		return nil, status.Error(codes.DeadlineExceeded, ctx.Err().Error())
	}
}

func (server *Server) Inquire(ctx context.Context, req *rccpb.InquireRequest) (*rccpb.InquireResponse, error) {
	select {
	case g := <-server.sched.OnInquire(req.Epoch, req.TxnId):
		return &rccpb.InquireResponse{Graph: g.Marshal()}, nil
	case <-ctx.Done():
		return nil, status.Error(codes.DeadlineExceeded, ctx.Err().Error())
	}
}
