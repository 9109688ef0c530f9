package latches

import (
	"sync"
)

// Latching provides mutual exclusion between transactions that touch the same keys when a partition runs the two
// phase locking baseline. A transaction latches the keys of all its local pieces at once when it commits and releases all of
// them once it has been executed or aborted.
//
// A latch is a per-key lock owned by one transaction. Only one transaction can hold a latch at a time, and a
// transaction that already owns a key may latch it again without waiting.
//
// Latching is implemented using a single map which maps keys to a Go WaitGroup. Access to this map is guarded by a mutex
// to ensure that latching is atomic and consistent. Since the mutex is a global lock, it would cause intolerable contention
// in a real system.

type latch struct {
	owner uint64
	wg    *sync.WaitGroup
}

type holding struct {
	keys [][]byte
	wgs  []*sync.WaitGroup
}

type Latches struct {
	// Before modifying any property of a key, the transaction must have the latch for that key. `Latches` maps each
	// latched key to its owner and a WaitGroup. Transactions who find a key locked should wait on that WaitGroup.
	latchMap map[string]latch
	// Keys and wait groups held by each owner, released together.
	held map[uint64]*holding
	// Mutex to guard latchMap and held.
	latchGuard sync.Mutex
	// An optional validation function, only used for testing.
	Validation func(owner uint64, keys [][]byte)
}

// NewLatches creates a new Latches object for managing a partition's latches. There should only be one such object,
// shared between all threads.
func NewLatches() *Latches {
	return &Latches{
		latchMap: make(map[string]latch),
		held:     make(map[uint64]*holding),
	}
}

// AcquireLatches tries to lock all keys for owner. If this succeeds, nil is returned. If any of the keys is locked by
// another owner, AcquireLatches returns a WaitGroup which the caller can use to be woken when the lock is free.
func (l *Latches) AcquireLatches(owner uint64, keysToLatch [][]byte) *sync.WaitGroup {
	l.latchGuard.Lock()
	defer l.latchGuard.Unlock()

	// Check none of the keys we want to write are locked by someone else.
	for _, key := range keysToLatch {
		if lt, ok := l.latchMap[string(key)]; ok && lt.owner != owner {
			return lt.wg
		}
	}

	h := l.held[owner]
	if h == nil {
		h = new(holding)
		l.held[owner] = h
	}
	wg := new(sync.WaitGroup)
	wg.Add(1)
	h.wgs = append(h.wgs, wg)
	for _, key := range keysToLatch {
		if _, ok := l.latchMap[string(key)]; ok {
			continue
		}
		l.latchMap[string(key)] = latch{owner: owner, wg: wg}
		h.keys = append(h.keys, key)
	}
	return nil
}

// ReleaseLatches releases every latch held by owner. It will wakeup any threads blocked on one of the latches.
func (l *Latches) ReleaseLatches(owner uint64) {
	l.latchGuard.Lock()
	defer l.latchGuard.Unlock()

	h, ok := l.held[owner]
	if !ok {
		return
	}
	delete(l.held, owner)
	for _, key := range h.keys {
		delete(l.latchMap, string(key))
	}
	for _, wg := range h.wgs {
		wg.Done()
	}
}

// Holding returns the keys currently latched by owner.
func (l *Latches) Holding(owner uint64) [][]byte {
	l.latchGuard.Lock()
	defer l.latchGuard.Unlock()
	if h, ok := l.held[owner]; ok {
		return append([][]byte(nil), h.keys...)
	}
	return nil
}

// WaitForLatches attempts to lock all keys in keysToLatch using AcquireLatches. If a latch is already locked, then
// WaitForLatches will wait for it to become unlocked then try again. Therefore WaitForLatches may block for an unbounded
// length of time.
func (l *Latches) WaitForLatches(owner uint64, keysToLatch [][]byte) {
	for {
		wg := l.AcquireLatches(owner, keysToLatch)
		if wg == nil {
			return
		}
		wg.Wait()
	}
}

// Validate calls the function in Validation, if it exists.
func (l *Latches) Validate(owner uint64, latched [][]byte) {
	if l.Validation != nil {
		l.Validation(owner, latched)
	}
}
