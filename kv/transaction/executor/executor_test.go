package executor

import (
	"testing"

	"github.com/rcckv/rcckv/kv/config"
	"github.com/rcckv/rcckv/kv/storage"
	"github.com/rcckv/rcckv/kv/storage/standalone_storage"
	"github.com/rcckv/rcckv/kv/transaction/txn"
	"github.com/rcckv/rcckv/kv/util/engine_util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func addPiece(id uint64, inner int32, key string, delta int64) *txn.Piece {
	return &txn.Piece{
		TxnID:   id,
		InnerID: inner,
		Type:    txn.PieceAdd,
		Input:   txn.Workspace{txn.InputKey: []byte(key), txn.InputValue: txn.EncodeInt(delta)},
	}
}

func TestExecuteInOrder(t *testing.T) {
	e := NewEngine(storage.NewMemStorage(), txn.NewKVRegistry())

	out, err := e.Execute(1, []*txn.Piece{addPiece(1, 0, "x", 5), addPiece(1, 1, "x", 2)})
	require.Nil(t, err)
	assert.Equal(t, txn.EncodeInt(5), out[0][txn.InputValue])
	assert.Equal(t, txn.EncodeInt(7), out[1][txn.InputValue])

	_, err = e.Execute(2, []*txn.Piece{addPiece(2, 0, "x", -10)})
	require.Nil(t, err)
	val, err := e.Read([]byte("x"))
	require.Nil(t, err)
	assert.Equal(t, txn.EncodeInt(-3), val)
	assert.Equal(t, uint64(2), e.AppliedSeq())
}

func TestExecuteFailureWritesNothing(t *testing.T) {
	st := storage.NewMemStorage()
	e := NewEngine(st, txn.NewKVRegistry())

	bad := &txn.Piece{TxnID: 1, InnerID: 1, Type: 99}
	_, err := e.Execute(1, []*txn.Piece{addPiece(1, 0, "x", 5), bad})
	assert.NotNil(t, err)
	val, err := e.Read([]byte("x"))
	require.Nil(t, err)
	assert.Nil(t, val)

	put := &txn.Piece{TxnID: 2, Type: txn.PiecePut, Input: txn.Workspace{txn.InputKey: []byte("k"), txn.InputValue: []byte("v")}}
	get := &txn.Piece{TxnID: 2, InnerID: 1, Type: txn.PieceGet, Input: txn.Workspace{txn.InputKey: []byte("k")}}
	out, err := e.Execute(2, []*txn.Piece{put, get})
	require.Nil(t, err)
	assert.Equal(t, []byte("v"), out[1][txn.InputValue])
}

func TestRecoverAppliedSeq(t *testing.T) {
	conf := config.NewTestConfig()
	st := standalone_storage.NewStandAloneStorage(conf)
	require.Nil(t, st.Start())

	e := NewEngine(st, txn.NewKVRegistry())
	require.Nil(t, e.Recover())
	assert.Equal(t, uint64(0), e.AppliedSeq())
	for i := uint64(1); i <= 3; i++ {
		_, err := e.Execute(i, []*txn.Piece{addPiece(i, 0, "c", 1)})
		require.Nil(t, err)
	}
	require.Nil(t, st.Stop())

	require.Nil(t, st.Start())
	defer st.Stop()
	e = NewEngine(st, txn.NewKVRegistry())
	require.Nil(t, e.Recover())
	assert.Equal(t, uint64(3), e.AppliedSeq())
	_, err := e.Execute(4, []*txn.Piece{addPiece(4, 0, "c", 1)})
	require.Nil(t, err)
	val, err := e.Read([]byte("c"))
	require.Nil(t, err)
	assert.Equal(t, txn.EncodeInt(4), val)
}

// TestApplyStateMonotonic finishes execution 3 before execution 2, as two commits on disjoint keys may, and
// checks a restart still resumes after 3.
func TestApplyStateMonotonic(t *testing.T) {
	st := storage.NewMemStorage()
	e := NewEngine(st, txn.NewKVRegistry())
	put := func(key string) []storage.Modify {
		return []storage.Modify{{Data: storage.Put{Key: []byte(key), Value: []byte("v"), Cf: engine_util.CfDefault}}}
	}
	require.Nil(t, e.write(30, 3, put("a")))
	require.Nil(t, e.write(20, 2, put("b")))
	assert.Equal(t, []byte("v"), st.Get(engine_util.CfDefault, []byte("b")))

	restarted := NewEngine(st, txn.NewKVRegistry())
	require.Nil(t, restarted.Recover())
	assert.Equal(t, uint64(3), restarted.AppliedSeq())
}
