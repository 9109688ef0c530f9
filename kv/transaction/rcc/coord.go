package rcc

import (
	"context"
	"sort"
	"sync"

	"github.com/pingcap/errors"
	"github.com/pingcap/log"
	"github.com/rcckv/rcckv/kv/transaction/depgraph"
	"github.com/rcckv/rcckv/kv/transaction/txn"
	"go.uber.org/zap"
)

// ErrRejected is returned by a Client when a partition refuses a dispatch.
var ErrRejected = errors.New("dispatch rejected")

// Client reaches the schedulers of every partition on behalf of a Coordinator.
type Client interface {
	Dispatch(ctx context.Context, partition uint32, pieces []*txn.Piece) (*depgraph.Graph, error)
	Commit(ctx context.Context, partition uint32, txnID uint64, g *depgraph.Graph) (*CommitResult, error)
}

// IDAllocator hands out transaction ids. Ids must be unique across coordinators.
type IDAllocator interface {
	Next() uint64
}

// Coordinator drives transactions through dispatch and commit.
type Coordinator struct {
	client Client
	ids    IDAllocator
}

func NewCoordinator(client Client, ids IDAllocator) *Coordinator {
	return &Coordinator{client: client, ids: ids}
}

// Run executes d to completion, retrying under a fresh id while its retry budget lasts.
func (c *Coordinator) Run(ctx context.Context, d *txn.TxData) *txn.TxReply {
	for {
		d.StartAttempt()
		committed, err := c.attempt(ctx, d)
		if err != nil {
			return d.Finish(false, err)
		}
		if committed {
			return d.Finish(true, nil)
		}
		old := d.ID
		if !d.Retry(c.ids.Next()) {
			return d.Finish(false, nil)
		}
		log.Debug("transaction aborted, retrying", zap.Uint64("txn", old), zap.Uint64("new", d.ID))
	}
}

type dispatchReply struct {
	partition uint32
	graph     *depgraph.Graph
	err       error
}

type commitReply struct {
	partition uint32
	res       *CommitResult
	err       error
}

// attempt runs one round. A rejected dispatch or an abort returns false with a nil error.
func (c *Coordinator) attempt(ctx context.Context, d *txn.TxData) (bool, error) {
	byPartition := d.PiecesByPartition()
	partitions := d.Partitions()

	replies := make([]dispatchReply, len(partitions))
	var wg sync.WaitGroup
	for i, par := range partitions {
		wg.Add(1)
		go func(i int, par uint32) {
			defer wg.Done()
			g, err := c.client.Dispatch(ctx, par, byPartition[par])
			replies[i] = dispatchReply{partition: par, graph: g, err: err}
		}(i, par)
	}
	wg.Wait()

	g := depgraph.New()
	rejected := false
	var accepted []uint32
	for _, r := range replies {
		if r.err != nil {
			if errors.Cause(r.err) == ErrRejected {
				rejected = true
				continue
			}
			return false, errors.Annotatef(r.err, "dispatch txn %d to partition %d", d.ID, r.partition)
		}
		d.MarkDispatched(byPartition[r.partition])
		g.Aggregate(0, r.graph)
		accepted = append(accepted, r.partition)
	}
	root := g.FindOrCreate(d.ID)
	if rejected {
		// The participants that accepted the pieces still need an outcome, or their graphs would wait forever.
		root.Upgrade(depgraph.StatusAborted)
	} else {
		root.Upgrade(depgraph.StatusCommitting)
	}

	commits := make([]commitReply, len(accepted))
	for i, par := range accepted {
		wg.Add(1)
		go func(i int, par uint32) {
			defer wg.Done()
			res, err := c.client.Commit(ctx, par, d.ID, g)
			commits[i] = commitReply{partition: par, res: res, err: err}
		}(i, par)
	}
	wg.Wait()

	sort.Slice(commits, func(i, j int) bool { return commits[i].partition < commits[j].partition })
	committed := !rejected
	for _, r := range commits {
		if r.err != nil {
			return false, errors.Annotatef(r.err, "commit txn %d on partition %d", d.ID, r.partition)
		}
		if r.res.Err != nil {
			return false, errors.Annotatef(r.res.Err, "execute txn %d on partition %d", d.ID, r.partition)
		}
		if !r.res.Committed {
			committed = false
			continue
		}
		d.MarkFinished(r.res.Output)
	}
	return committed, nil
}
