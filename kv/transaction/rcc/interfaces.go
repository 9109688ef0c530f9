package rcc

import (
	"github.com/rcckv/rcckv/kv/transaction/depgraph"
	"github.com/rcckv/rcckv/kv/transaction/txn"
)

// ConflictResolver finds the transactions a piece depends on.
type ConflictResolver interface {
	// Conflicts registers p and returns the ids of active transactions it conflicts with.
	Conflicts(p *txn.Piece) []uint64
	// Release forgets everything registered for txnID.
	Release(txnID uint64)
}

// Executor applies the pieces of a committed transaction to the local store.
type Executor interface {
	Execute(txnID uint64, pieces []*txn.Piece) (txn.Output, error)
	// Abort releases whatever the pieces of an aborted transaction reserved.
	Abort(txnID uint64, pieces []*txn.Piece)
}

// Commo sends inquiries to other partitions. done is called exactly once, from any goroutine.
type Commo interface {
	Partitions() []uint32
	SendInquire(partition uint32, epoch, txnID uint64, done func(*depgraph.Graph, error))
}

const (
	DispatchOK int32 = iota
	DispatchRejected
)

type DispatchResult struct {
	Res   int32
	Graph *depgraph.Graph
}

// CommitResult is the outcome of a transaction on this partition. An abort is Committed == false with a nil Err.
type CommitResult struct {
	Committed bool
	Output    txn.Output
	Err       error
}
