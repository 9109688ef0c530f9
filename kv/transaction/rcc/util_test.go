package rcc

import (
	"sync"
	"testing"
	"time"

	"github.com/rcckv/rcckv/kv/transaction/depgraph"
	"github.com/rcckv/rcckv/kv/transaction/txn"
)

// fixedConflicts returns a preset dependency list per transaction.
type fixedConflicts struct {
	mu       sync.Mutex
	deps     map[uint64][]uint64
	released []uint64
}

func newFixedConflicts(deps map[uint64][]uint64) *fixedConflicts {
	return &fixedConflicts{deps: deps}
}

func (c *fixedConflicts) Conflicts(p *txn.Piece) []uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.deps[p.TxnID]
}

func (c *fixedConflicts) Release(id uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.released = append(c.released, id)
}

type recordExecutor struct {
	mu       sync.Mutex
	executed []uint64
	aborted  []uint64
}

func (e *recordExecutor) Execute(id uint64, pieces []*txn.Piece) (txn.Output, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.executed = append(e.executed, id)
	out := make(txn.Output)
	for _, p := range pieces {
		out[p.InnerID] = txn.Workspace{txn.InputValue: txn.EncodeInt(int64(id))}
	}
	return out, nil
}

func (e *recordExecutor) Abort(id uint64, pieces []*txn.Piece) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.aborted = append(e.aborted, id)
}

func (e *recordExecutor) Executed() []uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]uint64(nil), e.executed...)
}

func (e *recordExecutor) Aborted() []uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]uint64(nil), e.aborted...)
}

type inquiry struct {
	partition uint32
	txnID     uint64
}

// stubCommo answers every inquiry synchronously through answer.
type stubCommo struct {
	partitions []uint32
	answer     func(partition uint32, id uint64) *depgraph.Graph

	mu   sync.Mutex
	sent []inquiry
}

func (c *stubCommo) Partitions() []uint32 {
	return c.partitions
}

func (c *stubCommo) SendInquire(partition uint32, epoch, id uint64, done func(*depgraph.Graph, error)) {
	c.mu.Lock()
	c.sent = append(c.sent, inquiry{partition: partition, txnID: id})
	c.mu.Unlock()
	done(c.answer(partition, id), nil)
}

func (c *stubCommo) Sent() []inquiry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]inquiry(nil), c.sent...)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1000, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func pieces(id uint64, partition uint32) []*txn.Piece {
	return []*txn.Piece{{
		TxnID:     id,
		Type:      txn.PiecePut,
		Partition: partition,
		Input:     txn.Workspace{txn.InputKey: []byte("k"), txn.InputValue: []byte("v")},
	}}
}

// commitGraph builds what a coordinator would send: id committing with the given parents.
func commitGraph(id uint64, parents ...uint64) *depgraph.Graph {
	g := depgraph.New()
	for _, p := range parents {
		g.AddEdge(id, p)
	}
	g.FindOrCreate(id).Upgrade(depgraph.StatusCommitting)
	return g
}

func waitCommit(t *testing.T, ch <-chan CommitResult) CommitResult {
	select {
	case res := <-ch:
		return res
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for commit result")
	}
	return CommitResult{}
}

func assertPending(t *testing.T, ch <-chan CommitResult) {
	select {
	case res := <-ch:
		t.Fatalf("unexpected commit result %+v", res)
	default:
	}
}

func waitGraph(t *testing.T, ch <-chan *depgraph.Graph) *depgraph.Graph {
	select {
	case g := <-ch:
		return g
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for inquiry answer")
	}
	return nil
}
