package rcc

import (
	"github.com/pingcap/log"
	"github.com/rcckv/rcckv/kv/transaction/depgraph"
	"go.uber.org/zap"
)

// CheckWaitlist re-examines every waiting transaction until a full pass makes no progress.
func (s *Scheduler) CheckWaitlist() {
	s.lock()
	defer s.unlock()
	s.checkWaitlist()
}

func (s *Scheduler) checkWaitlist() {
	for {
		progress := false
		for _, id := range s.wait.waiting() {
			if s.tryFinish(id) {
				progress = true
			}
		}
		if !progress {
			return
		}
	}
}

// tryFinish decides and executes whatever it can of id's ancestry. It reports whether any vertex was decided or
// executed.
func (s *Scheduler) tryFinish(id uint64) bool {
	if !s.wait.contains(id) {
		return false
	}
	v := s.graph.Find(id)
	if v == nil || s.finished(v) {
		s.wait.remove(id)
		return false
	}
	if blocker := s.findBlocker(v); blocker != nil {
		s.block(id, blocker)
		return false
	}

	progress := false
	for _, scc := range s.graph.StronglyConnected(v, s.pending) {
		if !decided(scc) {
			s.Decide(scc)
			progress = true
		}
		if s.Execute(scc) {
			progress = true
		}
	}
	if s.finished(v) {
		s.wait.remove(id)
	}
	return progress
}

// findBlocker returns the smallest-id ancestor of v, v included, that has not reached Committing. Only vertices
// still pending locally are walked.
func (s *Scheduler) findBlocker(v *depgraph.Vertex) *depgraph.Vertex {
	var blocker *depgraph.Vertex
	seen := map[uint64]bool{v.ID: true}
	queue := []*depgraph.Vertex{v}
	for len(queue) > 0 {
		u := queue[0]
		queue = queue[1:]
		if u.Status < depgraph.StatusCommitting && (blocker == nil || u.ID < blocker.ID) {
			blocker = u
		}
		for _, p := range u.Parents() {
			if seen[p.ID] || !s.pending(p) {
				continue
			}
			seen[p.ID] = true
			queue = append(queue, p)
		}
	}
	return blocker
}

func (s *Scheduler) block(id uint64, blocker *depgraph.Vertex) {
	e := s.wait.entry(id)
	now := s.opts.Now()
	if !e.hasBlocker || e.blocker != blocker.ID {
		e.blocker = blocker.ID
		e.hasBlocker = true
		e.since = now
	}
	s.InquireAboutIfNeeded(blocker)
	if now.Sub(e.since) >= s.opts.FridgeTimeout {
		log.Debug("freezing blocked transaction", zap.Uint64("txn", id), zap.Stringer("blocker", blocker))
		s.wait.freeze(id)
	}
}

func decided(scc []*depgraph.Vertex) bool {
	for _, v := range scc {
		if !v.Status.Decided() {
			return false
		}
	}
	return true
}

// allAncestorsFinished reports whether every parent outside scc is decided.
func allAncestorsFinished(scc []*depgraph.Vertex) (*depgraph.Vertex, bool) {
	in := make(map[uint64]bool, len(scc))
	for _, v := range scc {
		in[v.ID] = true
	}
	for _, v := range scc {
		for _, p := range v.Parents() {
			if !in[p.ID] && !p.Status.Decided() {
				return p, false
			}
		}
	}
	return nil, true
}

// Decide commits or aborts every undecided member of scc. The outcome depends only on the structure of the
// component and its parents, so every partition holding the same graph decides the same way. Every member must
// be at least Committing and every parent outside scc already decided.
func (s *Scheduler) Decide(scc []*depgraph.Vertex) {
	for _, v := range scc {
		if v.Status < depgraph.StatusCommitting {
			log.Panic("deciding a transaction that is not committing", zap.Stringer("vertex", v))
		}
	}
	if p, ok := allAncestorsFinished(scc); !ok {
		log.Panic("deciding before an ancestor", zap.Uint64("txn", scc[0].ID), zap.Stringer("ancestor", p))
	}
	if s.opts.OnDecide != nil {
		s.opts.OnDecide(scc)
	}

	outcome := s.decision(scc)
	sccSizeHistogram.Observe(float64(len(scc)))
	for _, v := range scc {
		if v.Status.Decided() {
			continue
		}
		v.Upgrade(outcome)
		decisionCounter.WithLabelValues(outcome.String()).Inc()
		s.wait.thawBlockedOn(v.ID)
	}
	if outcome == depgraph.StatusAborted {
		log.Info("component aborted", zap.Int("size", len(scc)), zap.Uint64("first", scc[0].ID))
	}
}

func (s *Scheduler) decision(scc []*depgraph.Vertex) depgraph.Status {
	// A member decided elsewhere already fixes the outcome of the whole component.
	for _, v := range scc {
		if v.Status.Decided() {
			if v.Status.IsCommit() {
				return depgraph.StatusCommitted
			}
			return depgraph.StatusAborted
		}
	}
	for _, v := range scc {
		for _, p := range v.Parents() {
			if p.Status == depgraph.StatusAborted {
				return depgraph.StatusAborted
			}
		}
	}
	if s.opts.MaxCycleLength > 0 && len(scc) > s.opts.MaxCycleLength && depgraph.HasInterestingCycle(scc) {
		return depgraph.StatusAborted
	}
	return depgraph.StatusCommitted
}

// Execute applies, in ascending id order, every decided member of scc this partition participates in and has
// not finished yet. It reports whether anything was applied or aborted.
func (s *Scheduler) Execute(scc []*depgraph.Vertex) bool {
	progress := false
	for _, v := range scc {
		b, ok := s.boxes[v.ID]
		if !ok || b.done || !v.Status.Decided() {
			continue
		}
		if v.Status == depgraph.StatusAborted {
			s.Abort(v)
			progress = true
			continue
		}
		res := CommitResult{Committed: true}
		if pieces := b.sortedPieces(); len(pieces) > 0 {
			res.Output, res.Err = s.exec.Execute(v.ID, pieces)
		}
		if res.Err != nil {
			log.Error("execute committed transaction", zap.Uint64("txn", v.ID), zap.Error(res.Err))
		} else {
			v.Upgrade(depgraph.StatusExecuted)
		}
		s.finish(v, b, res)
		progress = true
	}
	return progress
}

// Abort releases the local reservations of an aborted transaction and reports the abort to its waiters.
func (s *Scheduler) Abort(v *depgraph.Vertex) {
	b, ok := s.boxes[v.ID]
	if !ok || b.done {
		return
	}
	if v.Status != depgraph.StatusAborted {
		log.Panic("aborting a transaction that was not aborted", zap.Stringer("vertex", v))
	}
	s.exec.Abort(v.ID, b.sortedPieces())
	s.finish(v, b, CommitResult{Committed: false})
}

func (s *Scheduler) finish(v *depgraph.Vertex, b *txBox, res CommitResult) {
	b.done = true
	b.result = res
	s.conflicts.Release(v.ID)
	for _, ch := range b.waiters {
		ch := ch
		s.later(func() { ch <- res })
	}
	b.waiters = nil
	s.wait.remove(v.ID)
	s.answerIfInquired(v)
	s.wait.thawBlockedOn(v.ID)
}
