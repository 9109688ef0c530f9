package rcc

import (
	"time"

	"github.com/google/btree"
)

type idItem uint64

func (a idItem) Less(b btree.Item) bool {
	return a < b.(idItem)
}

type waitEntry struct {
	id uint64
	// blocker is the undecided ancestor the entry last waited on.
	blocker    uint64
	hasBlocker bool
	// since is when the entry started waiting on blocker.
	since       time.Time
	broadcastAt time.Time
	frozen      bool
}

// waitQueue holds the waitlist and the fridge, two disjoint sets ordered by transaction id. Fridge entries are
// indexed by their blocker so new information about the blocker thaws them without scanning.
type waitQueue struct {
	waitlist *btree.BTree
	fridge   *btree.BTree
	entries  map[uint64]*waitEntry
	frozenOn map[uint64]map[uint64]struct{}
}

func newWaitQueue() *waitQueue {
	return &waitQueue{
		waitlist: btree.New(8),
		fridge:   btree.New(8),
		entries:  make(map[uint64]*waitEntry),
		frozenOn: make(map[uint64]map[uint64]struct{}),
	}
}

// add puts id on the waitlist, thawing it if it was frozen.
func (q *waitQueue) add(id uint64, now time.Time) {
	if e, ok := q.entries[id]; ok {
		if e.frozen {
			q.thaw(id)
		}
		return
	}
	q.entries[id] = &waitEntry{id: id, since: now}
	q.waitlist.ReplaceOrInsert(idItem(id))
}

func (q *waitQueue) entry(id uint64) *waitEntry {
	return q.entries[id]
}

func (q *waitQueue) contains(id uint64) bool {
	_, ok := q.entries[id]
	return ok
}

func (q *waitQueue) remove(id uint64) {
	e, ok := q.entries[id]
	if !ok {
		return
	}
	if e.frozen {
		q.unindex(e)
		q.fridge.Delete(idItem(id))
	} else {
		q.waitlist.Delete(idItem(id))
	}
	delete(q.entries, id)
}

// freeze moves a waitlist entry to the fridge.
func (q *waitQueue) freeze(id uint64) {
	e, ok := q.entries[id]
	if !ok || e.frozen {
		return
	}
	e.frozen = true
	q.waitlist.Delete(idItem(id))
	q.fridge.ReplaceOrInsert(idItem(id))
	if e.hasBlocker {
		set, ok := q.frozenOn[e.blocker]
		if !ok {
			set = make(map[uint64]struct{})
			q.frozenOn[e.blocker] = set
		}
		set[id] = struct{}{}
	}
}

func (q *waitQueue) unindex(e *waitEntry) {
	if !e.hasBlocker {
		return
	}
	if set, ok := q.frozenOn[e.blocker]; ok {
		delete(set, e.id)
		if len(set) == 0 {
			delete(q.frozenOn, e.blocker)
		}
	}
}

func (q *waitQueue) thaw(id uint64) {
	e, ok := q.entries[id]
	if !ok || !e.frozen {
		return
	}
	q.unindex(e)
	e.frozen = false
	q.fridge.Delete(idItem(id))
	q.waitlist.ReplaceOrInsert(idItem(id))
}

// thawBlockedOn re-admits every fridge entry waiting on blocker and returns how many moved.
func (q *waitQueue) thawBlockedOn(blocker uint64) int {
	set, ok := q.frozenOn[blocker]
	if !ok {
		return 0
	}
	n := 0
	for id := range set {
		q.thaw(id)
		n++
	}
	return n
}

// thawAll empties the fridge into the waitlist.
func (q *waitQueue) thawAll() int {
	ids := ascend(q.fridge)
	for _, id := range ids {
		q.thaw(id)
	}
	return len(ids)
}

// waiting returns the waitlist in ascending id order.
func (q *waitQueue) waiting() []uint64 {
	return ascend(q.waitlist)
}

func (q *waitQueue) frozen() []uint64 {
	return ascend(q.fridge)
}

func ascend(t *btree.BTree) []uint64 {
	ids := make([]uint64, 0, t.Len())
	t.Ascend(func(i btree.Item) bool {
		ids = append(ids, uint64(i.(idItem)))
		return true
	})
	return ids
}
