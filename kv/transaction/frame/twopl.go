package frame

import (
	"sync"

	"github.com/pingcap/log"
	"github.com/rcckv/rcckv/kv/transaction/depgraph"
	"github.com/rcckv/rcckv/kv/transaction/latches"
	"github.com/rcckv/rcckv/kv/transaction/rcc"
	"github.com/rcckv/rcckv/kv/transaction/txn"
	"go.uber.org/zap"
)

// TwoPL is the locking baseline. Dispatch only stages pieces; commit latches every key the transaction touches on
// this partition, executes right away and releases the latches. It tracks no dependencies, so inquiries are
// always answered with the Empty graph.
type TwoPL struct {
	partition uint32
	registry  *txn.Registry
	latches   *latches.Latches
	exec      rcc.Executor

	mu     sync.Mutex
	staged map[uint64][]*txn.Piece
	wg     sync.WaitGroup
}

func NewTwoPL(partition uint32, registry *txn.Registry, exec rcc.Executor) *TwoPL {
	return &TwoPL{
		partition: partition,
		registry:  registry,
		latches:   latches.NewLatches(),
		exec:      exec,
		staged:    make(map[uint64][]*txn.Piece),
	}
}

func (s *TwoPL) Start() error {
	log.Info("2pl scheduler started", zap.Uint32("partition", s.partition))
	return nil
}

// Stop waits for running commits.
func (s *TwoPL) Stop() error {
	s.wg.Wait()
	return nil
}

func (s *TwoPL) OnDispatch(pieces []*txn.Piece) <-chan rcc.DispatchResult {
	if len(pieces) == 0 {
		log.Panic("dispatching an empty batch", zap.Uint32("partition", s.partition))
	}
	id := pieces[0].TxnID
	for _, p := range pieces {
		if p.TxnID != id || p.Partition != s.partition {
			log.Panic("malformed batch", zap.Uint64("txn", id), zap.Uint64("piece txn", p.TxnID),
				zap.Uint32("piece partition", p.Partition))
		}
	}
	s.mu.Lock()
	s.staged[id] = append(s.staged[id], pieces...)
	s.mu.Unlock()

	g := depgraph.New()
	v := g.FindOrCreate(id)
	v.Upgrade(depgraph.StatusDispatched)
	v.Partition = s.partition
	ch := make(chan rcc.DispatchResult, 1)
	ch <- rcc.DispatchResult{Res: rcc.DispatchOK, Graph: g}
	return ch
}

func (s *TwoPL) OnCommit(id uint64, g *depgraph.Graph) <-chan rcc.CommitResult {
	s.mu.Lock()
	pieces := s.staged[id]
	delete(s.staged, id)
	s.mu.Unlock()

	aborted := false
	if g != nil {
		if v := g.Find(id); v != nil && v.Status == depgraph.StatusAborted {
			aborted = true
		}
	}

	ch := make(chan rcc.CommitResult, 1)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if aborted {
			s.exec.Abort(id, pieces)
			ch <- rcc.CommitResult{Committed: false}
			return
		}
		var keys [][]byte
		for _, p := range pieces {
			keys = append(keys, s.registry.Keys(p)...)
		}
		s.latches.WaitForLatches(id, keys)
		defer s.latches.ReleaseLatches(id)
		s.latches.Validate(id, keys)

		res := rcc.CommitResult{Committed: true}
		if len(pieces) > 0 {
			res.Output, res.Err = s.exec.Execute(id, pieces)
		}
		ch <- res
	}()
	return ch
}

func (s *TwoPL) OnInquire(epoch, id uint64) <-chan *depgraph.Graph {
	ch := make(chan *depgraph.Graph, 1)
	ch <- depgraph.NewEmpty()
	return ch
}
