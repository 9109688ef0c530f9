package storage

import (
	"bytes"
	"context"
	"sync"

	"github.com/Connor1996/badger/y"
	"github.com/petar/GoLLRB/llrb"
	"github.com/pingcap/errors"
	"github.com/rcckv/rcckv/kv/util/engine_util"
)

// MemStorage is a Storage backed by in-memory LLRB trees, one per column family. Data is not written to disk.
// It backs tests and the `mem` db path of the server.
type MemStorage struct {
	mu  sync.RWMutex
	cfs map[string]*llrb.LLRB
}

func NewMemStorage() *MemStorage {
	cfs := make(map[string]*llrb.LLRB, len(engine_util.CFs))
	for _, cf := range engine_util.CFs {
		cfs[cf] = llrb.New()
	}
	return &MemStorage{cfs: cfs}
}

func (s *MemStorage) Start() error {
	return nil
}

func (s *MemStorage) Stop() error {
	return nil
}

func (s *MemStorage) Reader(ctx context.Context) (StorageReader, error) {
	return &memReader{s}, nil
}

func (s *MemStorage) Write(ctx context.Context, batch []Modify) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range batch {
		tree, ok := s.cfs[m.Cf()]
		if !ok {
			return errors.Errorf("mem-storage: bad CF %s", m.Cf())
		}
		switch data := m.Data.(type) {
		case Put:
			tree.ReplaceOrInsert(memItem{key: data.Key, value: data.Value})
		case Delete:
			tree.Delete(memItem{key: data.Key})
		}
	}
	return nil
}

// Get reads a single key, returning nil if it is absent.
func (s *MemStorage) Get(cf string, key []byte) []byte {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tree, ok := s.cfs[cf]
	if !ok {
		return nil
	}
	result := tree.Get(memItem{key: key})
	if result == nil {
		return nil
	}
	return result.(memItem).value
}

func (s *MemStorage) Len(cf string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if tree, ok := s.cfs[cf]; ok {
		return tree.Len()
	}
	return -1
}

// memReader is a StorageReader which reads from a MemStorage.
type memReader struct {
	inner *MemStorage
}

func (mr *memReader) GetCF(cf string, key []byte) ([]byte, error) {
	mr.inner.mu.RLock()
	defer mr.inner.mu.RUnlock()
	tree, ok := mr.inner.cfs[cf]
	if !ok {
		return nil, errors.Errorf("mem-storage: bad CF %s", cf)
	}
	result := tree.Get(memItem{key: key})
	if result == nil {
		return nil, nil
	}
	return result.(memItem).value, nil
}

func (mr *memReader) IterCF(cf string) engine_util.DBIterator {
	tree, ok := mr.inner.cfs[cf]
	if !ok {
		return nil
	}
	it := &memIter{mu: &mr.inner.mu, data: tree}
	mr.inner.mu.RLock()
	if min := tree.Min(); min != nil {
		it.item = min.(memItem)
	}
	mr.inner.mu.RUnlock()
	return it
}

func (mr *memReader) Close() {}

type memIter struct {
	mu   *sync.RWMutex
	data *llrb.LLRB
	item memItem
}

func (it *memIter) Item() engine_util.DBItem {
	return it.item
}

func (it *memIter) Valid() bool {
	return it.item.key != nil
}

func (it *memIter) Next() {
	it.mu.RLock()
	defer it.mu.RUnlock()
	first := true
	oldItem := it.item
	it.item = memItem{}
	it.data.AscendGreaterOrEqual(oldItem, func(item llrb.Item) bool {
		// Skip the first item, which will be it.item
		if first {
			first = false
			return true
		}
		it.item = item.(memItem)
		return false
	})
}

func (it *memIter) Seek(key []byte) {
	it.mu.RLock()
	defer it.mu.RUnlock()
	it.item = memItem{}
	it.data.AscendGreaterOrEqual(memItem{key: key}, func(item llrb.Item) bool {
		it.item = item.(memItem)
		return false
	})
}

func (it *memIter) Close() {}

type memItem struct {
	key   []byte
	value []byte
}

func (it memItem) Key() []byte {
	return it.key
}

func (it memItem) KeyCopy(dst []byte) []byte {
	return y.SafeCopy(dst, it.key)
}

func (it memItem) Value() ([]byte, error) {
	return it.value, nil
}

func (it memItem) ValueSize() int {
	return len(it.value)
}

func (it memItem) ValueCopy(dst []byte) ([]byte, error) {
	return y.SafeCopy(dst, it.value), nil
}

func (it memItem) Less(than llrb.Item) bool {
	other := than.(memItem)
	return bytes.Compare(it.key, other.key) < 0
}
