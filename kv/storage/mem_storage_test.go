package storage

import (
	"context"
	"testing"

	"github.com/rcckv/rcckv/kv/util/engine_util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemStorageWriteRead(t *testing.T) {
	s := NewMemStorage()
	ctx := context.Background()
	err := s.Write(ctx, []Modify{
		{Data: Put{Key: []byte("b"), Value: []byte("2"), Cf: engine_util.CfDefault}},
		{Data: Put{Key: []byte("a"), Value: []byte("1"), Cf: engine_util.CfDefault}},
		{Data: Put{Key: []byte("a"), Value: []byte("w"), Cf: engine_util.CfWrite}},
	})
	require.Nil(t, err)
	assert.Equal(t, 2, s.Len(engine_util.CfDefault))
	assert.Equal(t, 1, s.Len(engine_util.CfWrite))
	assert.Equal(t, -1, s.Len("nope"))

	r, err := s.Reader(ctx)
	require.Nil(t, err)
	defer r.Close()
	val, err := r.GetCF(engine_util.CfDefault, []byte("a"))
	require.Nil(t, err)
	assert.Equal(t, []byte("1"), val)
	val, err = r.GetCF(engine_util.CfDefault, []byte("c"))
	require.Nil(t, err)
	assert.Nil(t, val)
	_, err = r.GetCF("nope", []byte("a"))
	assert.NotNil(t, err)

	iter := r.IterCF(engine_util.CfDefault)
	var keys []string
	for ; iter.Valid(); iter.Next() {
		keys = append(keys, string(iter.Item().Key()))
	}
	iter.Close()
	assert.Equal(t, []string{"a", "b"}, keys)

	require.Nil(t, s.Write(ctx, []Modify{{Data: Delete{Key: []byte("a"), Cf: engine_util.CfDefault}}}))
	assert.Nil(t, s.Get(engine_util.CfDefault, []byte("a")))
	assert.Equal(t, []byte("2"), s.Get(engine_util.CfDefault, []byte("b")))
}

func TestMemStorageSeek(t *testing.T) {
	s := NewMemStorage()
	ctx := context.Background()
	var batch []Modify
	for _, k := range []string{"k1", "k3", "k5"} {
		batch = append(batch, Modify{Data: Put{Key: []byte(k), Value: []byte(k), Cf: engine_util.CfWrite}})
	}
	require.Nil(t, s.Write(ctx, batch))
	r, _ := s.Reader(ctx)
	iter := r.IterCF(engine_util.CfWrite)
	iter.Seek([]byte("k2"))
	require.True(t, iter.Valid())
	assert.Equal(t, []byte("k3"), iter.Item().KeyCopy(nil))
	iter.Seek([]byte("k6"))
	assert.False(t, iter.Valid())

	err := s.Write(ctx, []Modify{{Data: Put{Key: []byte("x"), Cf: "bad"}}})
	assert.NotNil(t, err)
}
