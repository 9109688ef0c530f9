package rcc

import (
	"time"

	"github.com/pingcap/log"
	"github.com/rcckv/rcckv/kv/transaction/depgraph"
	"go.uber.org/zap"
)

func (s *Scheduler) runWatchdog() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.opts.EpochDuration)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.TickEpoch()
		case <-s.closeCh:
			return
		}
	}
}

// TickEpoch advances the epoch. It thaws the fridge, broadcasts inquiries about ancestors that have blocked a
// transaction for a whole epoch and collects finished vertices that are at least two epochs old.
func (s *Scheduler) TickEpoch() {
	s.lock()
	defer s.unlock()

	s.epoch++
	if n := s.wait.thawAll(); n > 0 {
		log.Debug("fridge thawed", zap.Uint64("epoch", s.epoch), zap.Int("count", n))
	}
	s.checkWaitlist()

	now := s.opts.Now()
	ids := append(s.wait.waiting(), s.wait.frozen()...)
	broadcast := make(map[uint64]bool)
	for _, id := range ids {
		e := s.wait.entry(id)
		if !e.hasBlocker || now.Sub(e.since) < s.opts.EpochDuration {
			continue
		}
		if !e.broadcastAt.IsZero() && now.Sub(e.broadcastAt) < s.opts.EpochDuration {
			continue
		}
		e.broadcastAt = now
		if broadcast[e.blocker] {
			continue
		}
		broadcast[e.blocker] = true
		log.Info("transaction blocked for an epoch, broadcasting inquiry",
			zap.Uint64("txn", id), zap.Uint64("blocker", e.blocker), zap.Uint64("epoch", s.epoch))
		s.broadcastInquire(e.blocker)
	}

	s.gc()
}

// gc forgets vertices finished at least two epochs ago whose children are finished too, and drops Unknown
// placeholders nothing refers to anymore.
func (s *Scheduler) gc() {
	collected := 0
	for _, v := range s.graph.Vertices() {
		if s.graph.Find(v.ID) != v || v.Epoch+2 > s.epoch {
			continue
		}
		if len(s.inquirers[v.ID]) > 0 || s.wait.contains(v.ID) {
			continue
		}
		if !s.finished(v) {
			if v.Status == depgraph.StatusUnknown && len(v.Children()) == 0 && s.boxes[v.ID] == nil {
				s.graph.Remove(v.ID)
				delete(s.inquired, v.ID)
				collected++
			}
			continue
		}
		childrenDone := true
		for _, c := range v.Children() {
			if !s.finished(c) {
				childrenDone = false
				break
			}
		}
		if !childrenDone {
			continue
		}
		s.graph.Forget(v.ID)
		delete(s.boxes, v.ID)
		delete(s.inquired, v.ID)
		collected++
	}
	if s.epoch > tombstoneEpochs {
		s.graph.PurgeTombstones(s.epoch - tombstoneEpochs)
	}
	if collected > 0 {
		gcCounter.Add(float64(collected))
		log.Debug("dependency graph collected", zap.Uint64("epoch", s.epoch), zap.Int("count", collected))
	}
}
