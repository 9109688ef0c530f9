package frame

import (
	"sync"
	"testing"

	"github.com/rcckv/rcckv/kv/config"
	"github.com/rcckv/rcckv/kv/storage"
	"github.com/rcckv/rcckv/kv/transaction/depgraph"
	"github.com/rcckv/rcckv/kv/transaction/executor"
	"github.com/rcckv/rcckv/kv/transaction/rcc"
	"github.com/rcckv/rcckv/kv/transaction/txn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSchedulerByMode(t *testing.T) {
	registry := txn.NewKVRegistry()
	exec := executor.NewEngine(storage.NewMemStorage(), registry)
	conf := config.NewTestConfig()

	s, err := NewScheduler(conf, registry, exec, nil)
	require.Nil(t, err)
	_, ok := s.(*rcc.Scheduler)
	assert.True(t, ok)

	conf.Mode = config.Mode2PL
	s, err = NewScheduler(conf, registry, exec, nil)
	require.Nil(t, err)
	_, ok = s.(*TwoPL)
	assert.True(t, ok)

	conf.Mode = "occ"
	_, err = NewScheduler(conf, registry, exec, nil)
	assert.NotNil(t, err)
}

func addPiece(id uint64, key string) []*txn.Piece {
	return []*txn.Piece{{
		TxnID:     id,
		Type:      txn.PieceAdd,
		Partition: 1,
		Input:     txn.Workspace{txn.InputKey: []byte(key), txn.InputValue: txn.EncodeInt(1)},
	}}
}

func TestTwoPLSerializesCommits(t *testing.T) {
	registry := txn.NewKVRegistry()
	exec := executor.NewEngine(storage.NewMemStorage(), registry)
	s := NewTwoPL(1, registry, exec)
	require.Nil(t, s.Start())

	var mu sync.Mutex
	latched := make(map[string]uint64)
	s.latches.Validation = func(owner uint64, keys [][]byte) {
		mu.Lock()
		defer mu.Unlock()
		for _, k := range keys {
			latched[string(k)] = owner
		}
	}

	const n = 16
	var wg sync.WaitGroup
	for i := uint64(1); i <= n; i++ {
		res := <-s.OnDispatch(addPiece(i, "x"))
		require.Equal(t, rcc.DispatchOK, res.Res)
		wg.Add(1)
		go func(id uint64) {
			defer wg.Done()
			res := <-s.OnCommit(id, nil)
			assert.True(t, res.Committed)
			assert.Nil(t, res.Err)
		}(i)
	}
	wg.Wait()
	require.Nil(t, s.Stop())

	val, err := exec.Read([]byte("x"))
	require.Nil(t, err)
	assert.Equal(t, txn.EncodeInt(n), val)
	assert.Contains(t, latched, "x")
	assert.Nil(t, s.latches.Holding(1))
}

func TestTwoPLAbortAndInquire(t *testing.T) {
	registry := txn.NewKVRegistry()
	exec := executor.NewEngine(storage.NewMemStorage(), registry)
	s := NewTwoPL(1, registry, exec)

	<-s.OnDispatch(addPiece(1, "x"))
	g := depgraph.New()
	g.FindOrCreate(1).Upgrade(depgraph.StatusAborted)
	res := <-s.OnCommit(1, g)
	assert.False(t, res.Committed)
	val, err := exec.Read([]byte("x"))
	require.Nil(t, err)
	assert.Nil(t, val)

	assert.True(t, (<-s.OnInquire(1, 1)).Empty)
	assert.Panics(t, func() { s.OnDispatch(addPiece(2, "x")[:0]) })
}
