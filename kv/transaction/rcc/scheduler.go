package rcc

import (
	"sort"
	"sync"
	"time"

	"github.com/pingcap/log"
	"github.com/rcckv/rcckv/kv/config"
	"github.com/rcckv/rcckv/kv/transaction/depgraph"
	"github.com/rcckv/rcckv/kv/transaction/txn"
	"github.com/rcckv/rcckv/kv/util/worker"
	"go.uber.org/zap"
)

// tombstoneEpochs is how long the outcome of a collected transaction is remembered.
const tombstoneEpochs = 16

type Options struct {
	Partition uint32
	// EpochDuration is the watchdog period. Zero disables the ticker; TickEpoch can still be called directly.
	EpochDuration  time.Duration
	FridgeTimeout  time.Duration
	InquireTimeout time.Duration
	// MaxCycleLength aborts components larger than this that still hold an undecided cycle. Zero means no limit.
	MaxCycleLength int
	// OnDecide is called with the lock held, right before a component is decided.
	OnDecide func(scc []*depgraph.Vertex)
	Now      func() time.Time
}

func OptionsFromConfig(conf *config.Config) Options {
	return Options{
		Partition:      conf.PartitionID,
		EpochDuration:  conf.EpochDuration.Duration,
		FridgeTimeout:  conf.FridgeTimeout.Duration,
		InquireTimeout: conf.InquireTimeout.Duration,
		MaxCycleLength: conf.MaxCycleLength,
	}
}

// txBox holds what this partition knows locally about a transaction it participates in.
type txBox struct {
	pieces  map[int32]*txn.Piece
	waiters []chan CommitResult
	done    bool
	result  CommitResult
}

func (b *txBox) sortedPieces() []*txn.Piece {
	res := make([]*txn.Piece, 0, len(b.pieces))
	for _, p := range b.pieces {
		res = append(res, p)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].InnerID < res[j].InnerID })
	return res
}

type Stats struct {
	Epoch      uint64
	Vertices   int
	Waitlist   int
	Fridge     int
	Tombstones int
}

// Scheduler owns the dependency graph of one partition.
type Scheduler struct {
	opts      Options
	conflicts ConflictResolver
	exec      Executor
	commo     Commo

	mu        sync.Mutex
	graph     *depgraph.Graph
	epoch     uint64
	boxes     map[uint64]*txBox
	wait      *waitQueue
	inquirers map[uint64][]chan *depgraph.Graph
	inquired  map[uint64]time.Time
	// outbox collects work that must run after mu is released.
	outbox []func()

	wg      sync.WaitGroup
	worker  *worker.Worker
	closeCh chan struct{}
}

func NewScheduler(opts Options, conflicts ConflictResolver, exec Executor, commo Commo) *Scheduler {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	s := &Scheduler{
		opts:      opts,
		conflicts: conflicts,
		exec:      exec,
		commo:     commo,
		graph:     depgraph.New(),
		epoch:     1,
		boxes:     make(map[uint64]*txBox),
		wait:      newWaitQueue(),
		inquirers: make(map[uint64][]chan *depgraph.Graph),
		inquired:  make(map[uint64]time.Time),
		closeCh:   make(chan struct{}),
	}
	s.worker = worker.NewWorker("rcc-inquire", &s.wg)
	return s
}

func (s *Scheduler) Start() error {
	s.worker.Start(&inquireHandler{s: s})
	if s.opts.EpochDuration > 0 {
		s.wg.Add(1)
		go s.runWatchdog()
	}
	log.Info("rcc scheduler started", zap.Uint32("partition", s.opts.Partition),
		zap.Duration("epoch", s.opts.EpochDuration))
	return nil
}

func (s *Scheduler) Stop() error {
	close(s.closeCh)
	s.worker.Stop()
	s.wg.Wait()
	return nil
}

func (s *Scheduler) Partition() uint32 {
	return s.opts.Partition
}

func (s *Scheduler) lock() {
	s.mu.Lock()
}

// unlock releases mu, then runs the work queued while it was held.
func (s *Scheduler) unlock() {
	s.updateGauges()
	pending := s.outbox
	s.outbox = nil
	s.mu.Unlock()
	for _, f := range pending {
		f()
	}
}

func (s *Scheduler) later(f func()) {
	s.outbox = append(s.outbox, f)
}

func (s *Scheduler) box(id uint64) *txBox {
	b, ok := s.boxes[id]
	if !ok {
		b = &txBox{pieces: make(map[int32]*txn.Piece)}
		s.boxes[id] = b
	}
	return b
}

func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{
		Epoch:      s.epoch,
		Vertices:   s.graph.Len(),
		Waitlist:   s.wait.waitlist.Len(),
		Fridge:     s.wait.fridge.Len(),
		Tombstones: s.graph.NumTombstones(),
	}
}

// Status returns the local status of id, consulting tombstones for collected transactions.
func (s *Scheduler) Status(id uint64) (depgraph.Status, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v := s.graph.Find(id); v != nil {
		return v.Status, true
	}
	return s.graph.Tombstone(id)
}

func (s *Scheduler) updateGauges() {
	queueGauge.WithLabelValues("waitlist").Set(float64(s.wait.waitlist.Len()))
	queueGauge.WithLabelValues("fridge").Set(float64(s.wait.fridge.Len()))
	vertexGauge.Set(float64(s.graph.Len()))
	epochGauge.Set(float64(s.epoch))
}

// OnDispatch admits a batch of pieces of one transaction. The result carries the part of the local graph the
// coordinator needs to learn about the new dependencies.
func (s *Scheduler) OnDispatch(pieces []*txn.Piece) <-chan DispatchResult {
	if len(pieces) == 0 {
		log.Panic("dispatching an empty batch", zap.Uint32("partition", s.opts.Partition))
	}
	id := pieces[0].TxnID
	for _, p := range pieces {
		if p.TxnID != id {
			log.Panic("dispatching a batch of mixed transactions", zap.Uint64("txn", id), zap.Uint64("other", p.TxnID))
		}
		if p.Partition != s.opts.Partition {
			log.Panic("dispatching a piece to the wrong partition", zap.Uint64("txn", id),
				zap.Uint32("piece", p.Partition), zap.Uint32("partition", s.opts.Partition))
		}
	}

	ch := make(chan DispatchResult, 1)
	s.lock()
	defer s.unlock()

	if st, ok := s.graph.Tombstone(id); ok && s.graph.Find(id) == nil {
		log.Debug("dispatch of a collected transaction rejected", zap.Uint64("txn", id), zap.Stringer("status", st))
		ch <- DispatchResult{Res: DispatchRejected}
		return ch
	}
	v := s.graph.FindOrCreate(id)
	if v.Status.Decided() || (s.boxes[id] != nil && s.boxes[id].done) {
		log.Debug("dispatch of a decided transaction rejected", zap.Stringer("vertex", v))
		ch <- DispatchResult{Res: DispatchRejected}
		return ch
	}
	if v.Epoch == 0 {
		v.Epoch = s.epoch
	}
	if v.Partition == depgraph.NoPartition {
		v.Partition = s.opts.Partition
	}
	v.Upgrade(depgraph.StatusStarted)

	b := s.box(id)
	for _, p := range pieces {
		if _, ok := b.pieces[p.InnerID]; ok {
			continue
		}
		b.pieces[p.InnerID] = p
		for _, cid := range s.conflicts.Conflicts(p) {
			if cid != id {
				s.graph.AddEdge(id, cid)
			}
		}
	}
	if v.Upgrade(depgraph.StatusDispatched) {
		s.wait.thawBlockedOn(id)
	}

	out := depgraph.New()
	s.graph.MinInterferenceGraph(v, out, false, 1)
	ch <- DispatchResult{Res: DispatchOK, Graph: out}
	return ch
}

// OnCommit merges the coordinator's aggregated graph and schedules id for decision. The channel fires once the
// transaction has been executed or aborted locally.
func (s *Scheduler) OnCommit(id uint64, g *depgraph.Graph) <-chan CommitResult {
	ch := make(chan CommitResult, 1)
	s.lock()
	defer s.unlock()

	if st, ok := s.graph.Tombstone(id); ok && s.graph.Find(id) == nil {
		ch <- CommitResult{Committed: st.IsCommit()}
		return ch
	}

	advanced := s.graph.Aggregate(s.epoch, g)
	v := s.graph.FindOrCreate(id)
	if v.Epoch == 0 {
		v.Epoch = s.epoch
	}
	if v.Partition == depgraph.NoPartition {
		v.Partition = s.opts.Partition
	}
	v.Upgrade(depgraph.StatusCommitting)

	b := s.box(id)
	if b.done {
		ch <- b.result
		return ch
	}
	b.waiters = append(b.waiters, ch)

	s.answerIfInquired(v)
	s.wait.thawBlockedOn(id)
	s.handleAdvanced(advanced)
	s.wait.add(id, s.opts.Now())
	s.checkWaitlist()
	return ch
}

// handleAdvanced reacts to vertices whose status moved forward through aggregation.
func (s *Scheduler) handleAdvanced(vs []*depgraph.Vertex) {
	now := s.opts.Now()
	for _, u := range vs {
		s.wait.thawBlockedOn(u.ID)
		if u.Status < depgraph.StatusCommitting {
			continue
		}
		s.answerIfInquired(u)
		if b, ok := s.boxes[u.ID]; ok && !b.done {
			s.wait.add(u.ID, now)
		}
	}
}

// finished reports whether u needs nothing more from this partition.
func (s *Scheduler) finished(u *depgraph.Vertex) bool {
	if b, ok := s.boxes[u.ID]; ok {
		return b.done
	}
	return u.Status.Decided()
}

// pending is the traversal predicate of the waitlist. Vertices executed or aborted here are behind us, and so
// are remote vertices whose outcome is already known: their ancestors were settled by the partition that decided
// them.
func (s *Scheduler) pending(u *depgraph.Vertex) bool {
	return !s.finished(u)
}
