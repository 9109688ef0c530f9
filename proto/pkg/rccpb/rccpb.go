// Package rccpb holds the wire messages and the gRPC service of the
// dependency-graph commit protocol. The messages mirror proto/rccpb.proto and
// are encoded by github.com/golang/protobuf through their struct tags.
package rccpb

import (
	"context"

	"github.com/golang/protobuf/proto"
	"google.golang.org/grpc"
)

// Kind tags the payload of a Graph or PieceBatch.
type Kind int32

const (
	KindUnspecified Kind = 0
	KindGraph       Kind = 1
	KindEmptyGraph  Kind = 2
	KindPieceBatch  Kind = 3
)

var kindName = map[Kind]string{
	KindUnspecified: "KIND_UNSPECIFIED",
	KindGraph:       "KIND_GRAPH",
	KindEmptyGraph:  "KIND_EMPTY_GRAPH",
	KindPieceBatch:  "KIND_PIECE_BATCH",
}

func (k Kind) String() string {
	if s, ok := kindName[k]; ok {
		return s
	}
	return "KIND_UNKNOWN"
}

type Vertex struct {
	TxnId     uint64   `protobuf:"varint,1,opt,name=txn_id,json=txnId,proto3" json:"txn_id,omitempty"`
	Status    int32    `protobuf:"varint,2,opt,name=status,proto3" json:"status,omitempty"`
	Epoch     uint64   `protobuf:"varint,3,opt,name=epoch,proto3" json:"epoch,omitempty"`
	Partition uint32   `protobuf:"varint,4,opt,name=partition,proto3" json:"partition,omitempty"`
	Parents   []uint64 `protobuf:"varint,5,rep,packed,name=parents,proto3" json:"parents,omitempty"`
}

func (m *Vertex) Reset()         { *m = Vertex{} }
func (m *Vertex) String() string { return proto.CompactTextString(m) }
func (*Vertex) ProtoMessage()    {}

type Graph struct {
	Kind     Kind      `protobuf:"varint,1,opt,name=kind,proto3" json:"kind,omitempty"`
	Vertices []*Vertex `protobuf:"bytes,2,rep,name=vertices,proto3" json:"vertices,omitempty"`
}

func (m *Graph) Reset()         { *m = Graph{} }
func (m *Graph) String() string { return proto.CompactTextString(m) }
func (*Graph) ProtoMessage()    {}

type Piece struct {
	TxnId     uint64           `protobuf:"varint,1,opt,name=txn_id,json=txnId,proto3" json:"txn_id,omitempty"`
	InnerId   int32            `protobuf:"varint,2,opt,name=inner_id,json=innerId,proto3" json:"inner_id,omitempty"`
	Type      int32            `protobuf:"varint,3,opt,name=type,proto3" json:"type,omitempty"`
	Partition uint32           `protobuf:"varint,4,opt,name=partition,proto3" json:"partition,omitempty"`
	Input     map[int32][]byte `protobuf:"bytes,5,rep,name=input,proto3" json:"input,omitempty" protobuf_key:"varint,1,opt,name=key,proto3" protobuf_val:"bytes,2,opt,name=value,proto3"`
}

func (m *Piece) Reset()         { *m = Piece{} }
func (m *Piece) String() string { return proto.CompactTextString(m) }
func (*Piece) ProtoMessage()    {}

type PieceBatch struct {
	Kind   Kind     `protobuf:"varint,1,opt,name=kind,proto3" json:"kind,omitempty"`
	Pieces []*Piece `protobuf:"bytes,2,rep,name=pieces,proto3" json:"pieces,omitempty"`
}

func (m *PieceBatch) Reset()         { *m = PieceBatch{} }
func (m *PieceBatch) String() string { return proto.CompactTextString(m) }
func (*PieceBatch) ProtoMessage()    {}

type Output struct {
	InnerId int32            `protobuf:"varint,1,opt,name=inner_id,json=innerId,proto3" json:"inner_id,omitempty"`
	Values  map[int32][]byte `protobuf:"bytes,2,rep,name=values,proto3" json:"values,omitempty" protobuf_key:"varint,1,opt,name=key,proto3" protobuf_val:"bytes,2,opt,name=value,proto3"`
}

func (m *Output) Reset()         { *m = Output{} }
func (m *Output) String() string { return proto.CompactTextString(m) }
func (*Output) ProtoMessage()    {}

type DispatchRequest struct {
	Batch *PieceBatch `protobuf:"bytes,1,opt,name=batch,proto3" json:"batch,omitempty"`
}

func (m *DispatchRequest) Reset()         { *m = DispatchRequest{} }
func (m *DispatchRequest) String() string { return proto.CompactTextString(m) }
func (*DispatchRequest) ProtoMessage()    {}

type DispatchResponse struct {
	Res   int32  `protobuf:"varint,1,opt,name=res,proto3" json:"res,omitempty"`
	Graph *Graph `protobuf:"bytes,2,opt,name=graph,proto3" json:"graph,omitempty"`
}

func (m *DispatchResponse) Reset()         { *m = DispatchResponse{} }
func (m *DispatchResponse) String() string { return proto.CompactTextString(m) }
func (*DispatchResponse) ProtoMessage()    {}

type CommitRequest struct {
	TxnId uint64 `protobuf:"varint,1,opt,name=txn_id,json=txnId,proto3" json:"txn_id,omitempty"`
	Graph *Graph `protobuf:"bytes,2,opt,name=graph,proto3" json:"graph,omitempty"`
}

func (m *CommitRequest) Reset()         { *m = CommitRequest{} }
func (m *CommitRequest) String() string { return proto.CompactTextString(m) }
func (*CommitRequest) ProtoMessage()    {}

type CommitResponse struct {
	Committed bool      `protobuf:"varint,1,opt,name=committed,proto3" json:"committed,omitempty"`
	Outputs   []*Output `protobuf:"bytes,2,rep,name=outputs,proto3" json:"outputs,omitempty"`
	Error     string    `protobuf:"bytes,3,opt,name=error,proto3" json:"error,omitempty"`
}

func (m *CommitResponse) Reset()         { *m = CommitResponse{} }
func (m *CommitResponse) String() string { return proto.CompactTextString(m) }
func (*CommitResponse) ProtoMessage()    {}

type InquireRequest struct {
	Epoch uint64 `protobuf:"varint,1,opt,name=epoch,proto3" json:"epoch,omitempty"`
	TxnId uint64 `protobuf:"varint,2,opt,name=txn_id,json=txnId,proto3" json:"txn_id,omitempty"`
}

func (m *InquireRequest) Reset()         { *m = InquireRequest{} }
func (m *InquireRequest) String() string { return proto.CompactTextString(m) }
func (*InquireRequest) ProtoMessage()    {}

type InquireResponse struct {
	Graph *Graph `protobuf:"bytes,1,opt,name=graph,proto3" json:"graph,omitempty"`
}

func (m *InquireResponse) Reset()         { *m = InquireResponse{} }
func (m *InquireResponse) String() string { return proto.CompactTextString(m) }
func (*InquireResponse) ProtoMessage()    {}

// ApplyState is persisted in the meta column family by the execution engine.
type ApplyState struct {
	AppliedSeq uint64 `protobuf:"varint,1,opt,name=applied_seq,json=appliedSeq,proto3" json:"applied_seq,omitempty"`
}

func (m *ApplyState) Reset()         { *m = ApplyState{} }
func (m *ApplyState) String() string { return proto.CompactTextString(m) }
func (*ApplyState) ProtoMessage()    {}

// RccClient is the client API for the Rcc service.
type RccClient interface {
	Dispatch(ctx context.Context, in *DispatchRequest, opts ...grpc.CallOption) (*DispatchResponse, error)
	Commit(ctx context.Context, in *CommitRequest, opts ...grpc.CallOption) (*CommitResponse, error)
	Inquire(ctx context.Context, in *InquireRequest, opts ...grpc.CallOption) (*InquireResponse, error)
}

type rccClient struct {
	cc *grpc.ClientConn
}

func NewRccClient(cc *grpc.ClientConn) RccClient {
	return &rccClient{cc}
}

func (c *rccClient) Dispatch(ctx context.Context, in *DispatchRequest, opts ...grpc.CallOption) (*DispatchResponse, error) {
	out := new(DispatchResponse)
	err := c.cc.Invoke(ctx, "/rccpb.Rcc/Dispatch", in, out, opts...)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *rccClient) Commit(ctx context.Context, in *CommitRequest, opts ...grpc.CallOption) (*CommitResponse, error) {
	out := new(CommitResponse)
	err := c.cc.Invoke(ctx, "/rccpb.Rcc/Commit", in, out, opts...)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *rccClient) Inquire(ctx context.Context, in *InquireRequest, opts ...grpc.CallOption) (*InquireResponse, error) {
	out := new(InquireResponse)
	err := c.cc.Invoke(ctx, "/rccpb.Rcc/Inquire", in, out, opts...)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// RccServer is the server API for the Rcc service.
type RccServer interface {
	Dispatch(context.Context, *DispatchRequest) (*DispatchResponse, error)
	Commit(context.Context, *CommitRequest) (*CommitResponse, error)
	Inquire(context.Context, *InquireRequest) (*InquireResponse, error)
}

func RegisterRccServer(s *grpc.Server, srv RccServer) {
	s.RegisterService(&_Rcc_serviceDesc, srv)
}

func _Rcc_Dispatch_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(DispatchRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RccServer).Dispatch(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: "/rccpb.Rcc/Dispatch",
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(RccServer).Dispatch(ctx, req.(*DispatchRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _Rcc_Commit_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(CommitRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RccServer).Commit(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: "/rccpb.Rcc/Commit",
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(RccServer).Commit(ctx, req.(*CommitRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _Rcc_Inquire_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(InquireRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RccServer).Inquire(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: "/rccpb.Rcc/Inquire",
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(RccServer).Inquire(ctx, req.(*InquireRequest))
	}
	return interceptor(ctx, in, info, handler)
}

var _Rcc_serviceDesc = grpc.ServiceDesc{
	ServiceName: "rccpb.Rcc",
	HandlerType: (*RccServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Dispatch",
			Handler:    _Rcc_Dispatch_Handler,
		},
		{
			MethodName: "Commit",
			Handler:    _Rcc_Commit_Handler,
		},
		{
			MethodName: "Inquire",
			Handler:    _Rcc_Inquire_Handler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "rccpb.proto",
}
