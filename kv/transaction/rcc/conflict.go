package rcc

import (
	"sort"
	"sync"

	"github.com/rcckv/rcckv/kv/transaction/txn"
)

// KeyConflicts is the ConflictResolver used by the server: two transactions conflict when their pieces share a
// key, whatever the access type. A transaction stays registered until it is released.
type KeyConflicts struct {
	registry *txn.Registry

	mu     sync.Mutex
	active map[string]map[uint64]struct{}
	keys   map[uint64][]string
}

func NewKeyConflicts(registry *txn.Registry) *KeyConflicts {
	return &KeyConflicts{
		registry: registry,
		active:   make(map[string]map[uint64]struct{}),
		keys:     make(map[uint64][]string),
	}
}

// Conflicts registers the keys of p for its transaction and returns the other active transactions that touched
// any of them, ascending.
func (c *KeyConflicts) Conflicts(p *txn.Piece) []uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	found := make(map[uint64]struct{})
	for _, key := range c.registry.Keys(p) {
		k := string(key)
		owners, ok := c.active[k]
		if !ok {
			owners = make(map[uint64]struct{})
			c.active[k] = owners
		}
		for id := range owners {
			if id != p.TxnID {
				found[id] = struct{}{}
			}
		}
		if _, ok := owners[p.TxnID]; !ok {
			owners[p.TxnID] = struct{}{}
			c.keys[p.TxnID] = append(c.keys[p.TxnID], k)
		}
	}
	res := make([]uint64, 0, len(found))
	for id := range found {
		res = append(res, id)
	}
	sort.Slice(res, func(i, j int) bool { return res[i] < res[j] })
	return res
}

func (c *KeyConflicts) Release(txnID uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range c.keys[txnID] {
		owners := c.active[k]
		delete(owners, txnID)
		if len(owners) == 0 {
			delete(c.active, k)
		}
	}
	delete(c.keys, txnID)
}

// Len returns the number of keys with at least one active transaction.
func (c *KeyConflicts) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.active)
}
