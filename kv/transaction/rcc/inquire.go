package rcc

import (
	"github.com/pingcap/log"
	"github.com/rcckv/rcckv/kv/transaction/depgraph"
	"github.com/rcckv/rcckv/kv/util/worker"
	"go.uber.org/zap"
)

type inquireTask struct {
	partition uint32
	epoch     uint64
	txnID     uint64
}

// inquireHandler sends inquiries on the worker goroutine, so a slow peer never holds the scheduler lock.
type inquireHandler struct {
	s *Scheduler
}

func (h *inquireHandler) Handle(t worker.Task) {
	task, ok := t.(inquireTask)
	if !ok {
		log.Error("unexpected task", zap.Any("task", t))
		return
	}
	inquiryCounter.WithLabelValues("sent").Inc()
	h.s.commo.SendInquire(task.partition, task.epoch, task.txnID, func(g *depgraph.Graph, err error) {
		if err != nil {
			inquiryCounter.WithLabelValues("failed").Inc()
			log.Warn("inquire failed", zap.Uint32("partition", task.partition), zap.Uint64("txn", task.txnID),
				zap.Error(err))
			return
		}
		h.s.InquireAck(task.txnID, g)
	})
}

// OnInquire answers another partition's question about id. The answer is sent once the local view of id is at
// least Committing. Unknown ids are answered with the Empty graph, collected ids with their final status.
func (s *Scheduler) OnInquire(epoch, id uint64) <-chan *depgraph.Graph {
	ch := make(chan *depgraph.Graph, 1)
	s.lock()
	defer s.unlock()

	v := s.graph.Find(id)
	if v == nil {
		if st, ok := s.graph.Tombstone(id); ok {
			g := depgraph.New()
			g.FindOrCreate(id).Upgrade(st)
			inquiryCounter.WithLabelValues("tombstone").Inc()
			ch <- g
			return ch
		}
		inquiryCounter.WithLabelValues("empty").Inc()
		ch <- depgraph.NewEmpty()
		return ch
	}
	if v.Status >= depgraph.StatusCommitting {
		g := depgraph.New()
		s.graph.SelectGraphCmtUkn(v, g)
		inquiryCounter.WithLabelValues("served").Inc()
		ch <- g
		return ch
	}
	log.Debug("inquiry parked", zap.Uint64("txn", id), zap.Uint64("epoch", epoch), zap.Stringer("status", v.Status))
	inquiryCounter.WithLabelValues("parked").Inc()
	s.inquirers[id] = append(s.inquirers[id], ch)
	return ch
}

// InquireAck merges the answer to an inquiry about id.
func (s *Scheduler) InquireAck(id uint64, g *depgraph.Graph) {
	s.lock()
	defer s.unlock()
	if g == nil || g.Empty {
		log.Debug("inquiry answered without information", zap.Uint64("txn", id))
		return
	}
	advanced := s.graph.Aggregate(s.epoch, g)
	s.handleAdvanced(advanced)
	if v := s.graph.Find(id); v != nil && v.Status >= depgraph.StatusCommitting {
		delete(s.inquired, id)
	}
	s.checkWaitlist()
}

// InquireAboutIfNeeded asks the owner of u for its view when u is still short of Committing and no inquiry was
// sent recently. Vertices owned by this partition or by no known partition are left to the epoch broadcast.
func (s *Scheduler) InquireAboutIfNeeded(u *depgraph.Vertex) {
	if s.commo == nil || u.Status >= depgraph.StatusCommitting {
		return
	}
	if u.Partition == depgraph.NoPartition || u.Partition == s.opts.Partition {
		return
	}
	now := s.opts.Now()
	if t, ok := s.inquired[u.ID]; ok && now.Sub(t) < s.opts.InquireTimeout {
		return
	}
	s.inquired[u.ID] = now
	s.sendInquire(u.Partition, u.ID)
}

// AnswerIfInquired answers the parked inquiries about v once it reached Committing.
func (s *Scheduler) AnswerIfInquired(v *depgraph.Vertex) {
	s.answerIfInquired(v)
}

func (s *Scheduler) answerIfInquired(v *depgraph.Vertex) {
	chs, ok := s.inquirers[v.ID]
	if !ok || v.Status < depgraph.StatusCommitting {
		return
	}
	delete(s.inquirers, v.ID)
	for _, ch := range chs {
		g := depgraph.New()
		s.graph.SelectGraphCmtUkn(v, g)
		ch := ch
		s.later(func() { ch <- g })
	}
}

// broadcastInquire asks every other partition about id.
func (s *Scheduler) broadcastInquire(id uint64) {
	if s.commo == nil {
		return
	}
	s.inquired[id] = s.opts.Now()
	for _, p := range s.commo.Partitions() {
		if p == s.opts.Partition {
			continue
		}
		s.sendInquire(p, id)
	}
}

func (s *Scheduler) sendInquire(partition uint32, id uint64) {
	task := inquireTask{partition: partition, epoch: s.epoch, txnID: id}
	s.later(func() { s.worker.TrySend(task) })
}
