package mvcc

import (
	"bytes"
	"math"

	"github.com/rcckv/rcckv/kv/storage"
	"github.com/rcckv/rcckv/kv/util/codec"
	"github.com/rcckv/rcckv/kv/util/engine_util"
)

// SeqMax is the largest execution sequence; reading at SeqMax sees every applied write.
const SeqMax uint64 = math.MaxUint64

// MvccTxn stages the writes of one execution. Executions are numbered by a sequence that grows in the order the
// scheduler applies transactions, so reading at Seq sees exactly the writes of earlier executions. The buffered
// writes are flushed with one Storage.Write call.
type MvccTxn struct {
	RoTxn
	writes []storage.Modify
}

// A 'transaction' which will only read from the DB.
type RoTxn struct {
	Reader storage.StorageReader
	Seq    uint64
}

func NewTxn(reader storage.StorageReader, seq uint64) *MvccTxn {
	return &MvccTxn{
		RoTxn: RoTxn{Reader: reader, Seq: seq},
	}
}

// Writes returns all changes added to this transaction.
func (txn *MvccTxn) Writes() []storage.Modify {
	return txn.writes
}

// mostRecentWriteBefore finds the write with the given key and the largest sequence not above seq.
func (txn *RoTxn) mostRecentWriteBefore(key []byte, seq uint64) (*Write, uint64, error) {
	iter := txn.Reader.IterCF(engine_util.CfWrite)
	defer iter.Close()
	iter.Seek(codec.EncodeKey(key, seq))
	if !iter.Valid() {
		return nil, 0, nil
	}
	item := iter.Item()
	if !bytes.Equal(codec.UserKey(item.Key()), key) {
		return nil, 0, nil
	}
	value, err := item.Value()
	if err != nil {
		return nil, 0, err
	}
	write, err := ParseWrite(value)
	if err != nil {
		return nil, 0, err
	}
	return write, codec.Seq(item.Key()), nil
}

// GetValue finds the value for key as of this transaction's sequence, including writes staged by the transaction
// itself. It returns nil when the key is absent or deleted.
func (txn *MvccTxn) GetValue(key []byte) ([]byte, error) {
	for i := len(txn.writes) - 1; i >= 0; i-- {
		m := txn.writes[i]
		if m.Cf() != engine_util.CfDefault || !bytes.Equal(codec.UserKey(m.Key()), key) {
			continue
		}
		if put, ok := m.Data.(storage.Put); ok {
			return put.Value, nil
		}
		return nil, nil
	}
	return txn.RoTxn.GetValue(key)
}

// GetValue finds the value for key, valid at the sequence of this transaction.
// I.e., the most recent value applied by an earlier execution.
func (txn *RoTxn) GetValue(key []byte) ([]byte, error) {
	write, _, err := txn.mostRecentWriteBefore(key, txn.Seq)
	if err != nil || write == nil {
		return nil, err
	}
	if write.Kind == WriteKindDelete {
		return nil, nil
	}
	return txn.getValue(key, write.Seq)
}

// getValue gets the value at precisely the given key and seq, without searching.
func (txn *RoTxn) getValue(key []byte, seq uint64) ([]byte, error) {
	return txn.Reader.GetCF(engine_util.CfDefault, codec.EncodeKey(key, seq))
}

// PutWrite records write at key and seq.
func (txn *MvccTxn) PutWrite(key []byte, seq uint64, write *Write) {
	txn.writes = append(txn.writes, storage.Modify{
		Data: storage.Put{
			Key:   codec.EncodeKey(key, seq),
			Value: write.ToBytes(),
			Cf:    engine_util.CfWrite,
		},
	})
}

// PutValue stages key = value at this transaction's sequence, with the matching write record.
func (txn *MvccTxn) PutValue(key []byte, value []byte) {
	txn.writes = append(txn.writes, storage.Modify{
		Data: storage.Put{
			Key:   codec.EncodeKey(key, txn.Seq),
			Value: value,
			Cf:    engine_util.CfDefault,
		},
	})
	txn.PutWrite(key, txn.Seq, &Write{Seq: txn.Seq, Kind: WriteKindPut})
}

// DeleteValue removes a key/value pair in this transaction.
func (txn *MvccTxn) DeleteValue(key []byte) {
	txn.writes = append(txn.writes, storage.Modify{
		Data: storage.Delete{
			Key: codec.EncodeKey(key, txn.Seq),
			Cf:  engine_util.CfDefault,
		},
	})
	txn.PutWrite(key, txn.Seq, &Write{Seq: txn.Seq, Kind: WriteKindDelete})
}
