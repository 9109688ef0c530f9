package rcc

import (
	"math/rand"
	"testing"
	"time"

	"github.com/rcckv/rcckv/kv/transaction/depgraph"
	"github.com/rcckv/rcckv/kv/transaction/txn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestScheduler(opts Options, deps map[uint64][]uint64, commo Commo) (*Scheduler, *recordExecutor) {
	if opts.Partition == 0 {
		opts.Partition = 1
	}
	if opts.FridgeTimeout == 0 {
		opts.FridgeTimeout = time.Hour
	}
	if opts.InquireTimeout == 0 {
		opts.InquireTimeout = time.Hour
	}
	exec := &recordExecutor{}
	return NewScheduler(opts, newFixedConflicts(deps), exec, commo), exec
}

func dispatch(t *testing.T, s *Scheduler, id uint64) DispatchResult {
	res := <-s.OnDispatch(pieces(id, s.Partition()))
	require.Equal(t, DispatchOK, res.Res)
	return res
}

func TestMutualCycleCommits(t *testing.T) {
	deps := map[uint64][]uint64{1: {2}, 2: {1}}
	s, exec := newTestScheduler(Options{}, deps, nil)

	dispatch(t, s, 1)
	dispatch(t, s, 2)
	ch1 := s.OnCommit(1, commitGraph(1, 2))
	assertPending(t, ch1)
	ch2 := s.OnCommit(2, commitGraph(2, 1))

	res1, res2 := waitCommit(t, ch1), waitCommit(t, ch2)
	assert.True(t, res1.Committed)
	assert.True(t, res2.Committed)
	assert.Nil(t, res1.Err)
	assert.Equal(t, txn.EncodeInt(1), res1.Output[0][txn.InputValue])
	assert.Equal(t, []uint64{1, 2}, exec.Executed())
	st, ok := s.Status(1)
	assert.True(t, ok)
	assert.Equal(t, depgraph.StatusExecuted, st)

	// The same graph delivered in the opposite order is decided and applied the same way.
	s2, exec2 := newTestScheduler(Options{}, deps, nil)
	dispatch(t, s2, 2)
	dispatch(t, s2, 1)
	ch2 = s2.OnCommit(2, commitGraph(2, 1))
	ch1 = s2.OnCommit(1, commitGraph(1, 2))
	assert.True(t, waitCommit(t, ch1).Committed)
	assert.True(t, waitCommit(t, ch2).Committed)
	assert.Equal(t, []uint64{1, 2}, exec2.Executed())
}

func TestChainWaitsForAncestor(t *testing.T) {
	s, exec := newTestScheduler(Options{}, map[uint64][]uint64{3: {1}}, nil)
	dispatch(t, s, 1)
	res := dispatch(t, s, 3)
	require.NotNil(t, res.Graph.Find(3))
	assert.True(t, res.Graph.Find(3).HasParent(1))
	assert.NotNil(t, res.Graph.Find(1))

	ch3 := s.OnCommit(3, commitGraph(3, 1))
	assertPending(t, ch3)
	assert.Equal(t, 1, s.Stats().Waitlist)
	ch1 := s.OnCommit(1, commitGraph(1))
	assert.True(t, waitCommit(t, ch1).Committed)
	assert.True(t, waitCommit(t, ch3).Committed)
	assert.Equal(t, []uint64{1, 3}, exec.Executed())
	assert.Equal(t, 0, s.Stats().Waitlist)
}

func TestDecideObservesCommittingClosure(t *testing.T) {
	var decided [][]uint64
	opts := Options{OnDecide: func(scc []*depgraph.Vertex) {
		in := make(map[uint64]bool)
		var ids []uint64
		for _, v := range scc {
			in[v.ID] = true
			ids = append(ids, v.ID)
		}
		for _, v := range scc {
			assert.True(t, v.Status >= depgraph.StatusCommitting, "member %v", v)
			for _, p := range v.Parents() {
				if !in[p.ID] {
					assert.True(t, p.Status.Decided(), "ancestor %v of %v", p, v)
				}
			}
		}
		decided = append(decided, ids)
	}}
	s, _ := newTestScheduler(opts, map[uint64][]uint64{1: {2}, 2: {1}, 3: {1}}, nil)
	for id := uint64(1); id <= 3; id++ {
		dispatch(t, s, id)
	}
	ch3 := s.OnCommit(3, commitGraph(3, 1))
	ch1 := s.OnCommit(1, commitGraph(1, 2))
	assertPending(t, ch1)
	assertPending(t, ch3)
	ch2 := s.OnCommit(2, commitGraph(2, 1))
	for _, ch := range []<-chan CommitResult{ch1, ch2, ch3} {
		assert.True(t, waitCommit(t, ch).Committed)
	}
	assert.Equal(t, [][]uint64{{1, 2}, {3}}, decided)
}

func TestMaxCycleLengthAborts(t *testing.T) {
	s, exec := newTestScheduler(Options{MaxCycleLength: 1}, map[uint64][]uint64{1: {2}, 2: {1}}, nil)
	dispatch(t, s, 1)
	dispatch(t, s, 2)
	ch1 := s.OnCommit(1, commitGraph(1, 2))
	ch2 := s.OnCommit(2, commitGraph(2, 1))

	res1 := waitCommit(t, ch1)
	assert.False(t, res1.Committed)
	assert.Nil(t, res1.Err)
	assert.False(t, waitCommit(t, ch2).Committed)
	assert.Equal(t, []uint64{1, 2}, exec.Aborted())
	assert.Empty(t, exec.Executed())

	released := s.conflicts.(*fixedConflicts).released
	assert.Equal(t, []uint64{1, 2}, released)
}

func TestAbortedAncestorCascades(t *testing.T) {
	s, exec := newTestScheduler(Options{}, nil, nil)
	dispatch(t, s, 2)

	g := commitGraph(2, 1)
	remote := g.Find(1)
	remote.Upgrade(depgraph.StatusAborted)
	remote.Partition = 9

	res := waitCommit(t, s.OnCommit(2, g))
	assert.False(t, res.Committed)
	assert.Equal(t, []uint64{2}, exec.Aborted())
	st, _ := s.Status(2)
	assert.Equal(t, depgraph.StatusAborted, st)
}

// TestDecidedRemoteParentIsTransparent commits 10 behind 5, which another partition already committed. The
// unknown ancestor 3 of 5 was settled by that partition and must not hold 10 back.
func TestDecidedRemoteParentIsTransparent(t *testing.T) {
	s, exec := newTestScheduler(Options{}, nil, nil)
	dispatch(t, s, 10)

	g := commitGraph(10, 5)
	g.AddEdge(5, 3)
	remote := g.Find(5)
	remote.Upgrade(depgraph.StatusCommitted)
	remote.Partition = 2

	res := waitCommit(t, s.OnCommit(10, g))
	assert.True(t, res.Committed)
	assert.Equal(t, []uint64{10}, exec.Executed())
	stats := s.Stats()
	assert.Equal(t, 0, stats.Waitlist)
	assert.Equal(t, 0, stats.Fridge)
	assert.Equal(t, uint64(1), stats.Epoch)
	st, ok := s.Status(3)
	assert.True(t, ok)
	assert.Equal(t, depgraph.StatusUnknown, st)
}

func TestInquireOwnerPartition(t *testing.T) {
	commo := &stubCommo{
		partitions: []uint32{1, 2},
		answer: func(par uint32, id uint64) *depgraph.Graph {
			g := depgraph.New()
			v := g.FindOrCreate(id)
			v.Upgrade(depgraph.StatusCommitting)
			v.Partition = par
			return g
		},
	}
	s, exec := newTestScheduler(Options{}, nil, commo)
	require.Nil(t, s.Start())

	dispatch(t, s, 10)
	g := commitGraph(10, 5)
	remote := g.Find(5)
	remote.Upgrade(depgraph.StatusDispatched)
	remote.Partition = 2

	res := waitCommit(t, s.OnCommit(10, g))
	require.Nil(t, s.Stop())
	assert.True(t, res.Committed)
	assert.Equal(t, []inquiry{{partition: 2, txnID: 5}}, commo.Sent())
	// The remote transaction is decided here too, by the same rule its owner uses.
	st, _ := s.Status(5)
	assert.Equal(t, depgraph.StatusCommitted, st)
	assert.Equal(t, []uint64{10}, exec.Executed())
}

func TestEpochBroadcastResolvesUnknownAncestor(t *testing.T) {
	commo := &stubCommo{
		partitions: []uint32{1, 2, 3},
		answer: func(par uint32, id uint64) *depgraph.Graph {
			if par != 2 {
				return depgraph.NewEmpty()
			}
			g := depgraph.New()
			v := g.FindOrCreate(id)
			v.Upgrade(depgraph.StatusCommitted)
			v.Partition = 2
			return g
		},
	}
	s, _ := newTestScheduler(Options{}, nil, commo)
	require.Nil(t, s.Start())

	dispatch(t, s, 10)
	ch := s.OnCommit(10, commitGraph(10, 5))
	assertPending(t, ch)
	assert.Empty(t, commo.Sent())

	s.TickEpoch()
	res := waitCommit(t, ch)
	require.Nil(t, s.Stop())
	assert.True(t, res.Committed)
	assert.Equal(t, []inquiry{{partition: 2, txnID: 5}, {partition: 3, txnID: 5}}, commo.Sent())
}

func TestFridge(t *testing.T) {
	clock := newFakeClock()
	s, exec := newTestScheduler(Options{FridgeTimeout: 10 * time.Millisecond, Now: clock.Now},
		map[uint64][]uint64{2: {1}}, nil)
	dispatch(t, s, 1)
	dispatch(t, s, 2)

	ch2 := s.OnCommit(2, commitGraph(2, 1))
	stats := s.Stats()
	assert.Equal(t, 1, stats.Waitlist)
	assert.Equal(t, 0, stats.Fridge)

	clock.Advance(20 * time.Millisecond)
	s.CheckWaitlist()
	stats = s.Stats()
	assert.Equal(t, 0, stats.Waitlist)
	assert.Equal(t, 1, stats.Fridge)
	assertPending(t, ch2)

	// Committing the blocker thaws the frozen entry.
	ch1 := s.OnCommit(1, commitGraph(1))
	assert.True(t, waitCommit(t, ch1).Committed)
	assert.True(t, waitCommit(t, ch2).Committed)
	assert.Equal(t, []uint64{1, 2}, exec.Executed())
	stats = s.Stats()
	assert.Equal(t, 0, stats.Waitlist)
	assert.Equal(t, 0, stats.Fridge)
}

func TestGarbageCollection(t *testing.T) {
	s, _ := newTestScheduler(Options{}, map[uint64][]uint64{2: {1}}, nil)
	dispatch(t, s, 1)
	assert.True(t, waitCommit(t, s.OnCommit(1, commitGraph(1))).Committed)
	dispatch(t, s, 3)
	assert.True(t, waitCommit(t, s.OnCommit(3, commitGraph(3))).Committed)
	// 2 depends on 1 but never commits, so 1 has to stay.
	dispatch(t, s, 2)
	assert.Equal(t, 3, s.Stats().Vertices)

	s.TickEpoch()
	assert.Equal(t, 3, s.Stats().Vertices)
	s.TickEpoch()
	stats := s.Stats()
	assert.Equal(t, uint64(3), stats.Epoch)
	assert.Equal(t, 2, stats.Vertices)
	assert.Equal(t, 1, stats.Tombstones)

	st, ok := s.Status(3)
	assert.True(t, ok)
	assert.Equal(t, depgraph.StatusExecuted, st)
	g := waitGraph(t, s.OnInquire(3, 3))
	require.Equal(t, 1, g.Len())
	assert.Equal(t, depgraph.StatusExecuted, g.Find(3).Status)

	// Late messages about a collected transaction do not bring it back.
	assert.Equal(t, DispatchRejected, (<-s.OnDispatch(pieces(3, 1))).Res)
	assert.True(t, waitCommit(t, s.OnCommit(3, commitGraph(3))).Committed)
	assert.Equal(t, 2, s.Stats().Vertices)

	for i := 0; i < tombstoneEpochs; i++ {
		s.TickEpoch()
	}
	assert.Equal(t, 0, s.Stats().Tombstones)
	assert.True(t, waitGraph(t, s.OnInquire(20, 3)).Empty)
}

func TestOnInquire(t *testing.T) {
	s, _ := newTestScheduler(Options{}, nil, nil)

	assert.True(t, waitGraph(t, s.OnInquire(1, 42)).Empty)

	dispatch(t, s, 7)
	ch := s.OnInquire(1, 7)
	select {
	case g := <-ch:
		t.Fatalf("inquiry answered early with %v", g.Vertices())
	default:
	}
	assert.True(t, waitCommit(t, s.OnCommit(7, commitGraph(7))).Committed)
	g := waitGraph(t, ch)
	require.NotNil(t, g.Find(7))
	assert.True(t, g.Find(7).Status >= depgraph.StatusCommitting)

	g = waitGraph(t, s.OnInquire(1, 7))
	assert.Equal(t, depgraph.StatusExecuted, g.Find(7).Status)
}

func TestDispatchDedupsPieces(t *testing.T) {
	s, exec := newTestScheduler(Options{}, nil, nil)
	dispatch(t, s, 1)
	dispatch(t, s, 1)
	res := waitCommit(t, s.OnCommit(1, commitGraph(1)))
	assert.True(t, res.Committed)
	assert.Len(t, res.Output, 1)
	assert.Equal(t, []uint64{1}, exec.Executed())
	assert.Equal(t, DispatchRejected, (<-s.OnDispatch(pieces(1, 1))).Res)
}

func TestMalformedDispatchPanics(t *testing.T) {
	s, _ := newTestScheduler(Options{}, nil, nil)
	assert.Panics(t, func() { s.OnDispatch(nil) })
	assert.Panics(t, func() {
		s.OnDispatch([]*txn.Piece{{TxnID: 1, Partition: 1}, {TxnID: 2, Partition: 1}})
	})
	assert.Panics(t, func() { s.OnDispatch(pieces(1, 2)) })
	assert.Equal(t, 0, s.Stats().Vertices)
}

// TestDeterministicReplay commits the same random graph in two different orders on two schedulers. Both must
// reach the same decisions and the same final graph, and each must apply dependent transactions in condensation
// order.
func TestDeterministicReplay(t *testing.T) {
	const n = 12
	r := rand.New(rand.NewSource(11))
	deps := make(map[uint64][]uint64)
	ref := depgraph.New()
	for i := uint64(1); i <= n; i++ {
		ref.FindOrCreate(i)
		for j := uint64(1); j <= n; j++ {
			if i != j && r.Intn(5) == 0 {
				deps[i] = append(deps[i], j)
				ref.AddEdge(i, j)
			}
		}
	}
	comp := make(map[uint64]int)
	for c, scc := range ref.SCCs() {
		for _, v := range scc {
			comp[v.ID] = c
		}
	}

	run := func(order []uint64) (*Scheduler, map[uint64]depgraph.Status, []uint64) {
		s, exec := newTestScheduler(Options{MaxCycleLength: 3}, deps, nil)
		for i := uint64(1); i <= n; i++ {
			dispatch(t, s, i)
		}
		chs := make(map[uint64]<-chan CommitResult)
		for _, id := range order {
			chs[id] = s.OnCommit(id, commitGraph(id, deps[id]...))
		}
		statuses := make(map[uint64]depgraph.Status)
		for id, ch := range chs {
			waitCommit(t, ch)
			statuses[id], _ = s.Status(id)
		}
		return s, statuses, exec.Executed()
	}

	order := make([]uint64, n)
	for i := range order {
		order[i] = uint64(i + 1)
	}
	s1, st1, exec1 := run(order)
	r.Shuffle(n, func(i, j int) { order[i], order[j] = order[j], order[i] })
	s2, st2, exec2 := run(order)
	assert.Equal(t, st1, st2)
	// Both schedulers end with the same vertices, statuses and edges.
	s1.lock()
	s2.lock()
	assert.True(t, s1.graph.Equal(s2.graph))
	assert.Equal(t, s1.graph.Len(), s2.graph.Len())
	s2.unlock()
	s1.unlock()

	for _, executed := range [][]uint64{exec1, exec2} {
		pos := make(map[uint64]int)
		for i, id := range executed {
			pos[id] = i
		}
		for id, parents := range deps {
			for _, p := range parents {
				pi, ok1 := pos[p]
				ci, ok2 := pos[id]
				if !ok1 || !ok2 {
					continue
				}
				if comp[p] == comp[id] {
					assert.Equal(t, p < id, pi < ci, "txn %d and %d in one component", p, id)
				} else {
					assert.True(t, pi < ci, "txn %d before its ancestor %d", id, p)
				}
			}
		}
		committed := 0
		for _, st := range st1 {
			if st.IsCommit() {
				committed++
			}
		}
		assert.Len(t, executed, committed)
	}
}
