package storage

import (
	"context"

	"github.com/rcckv/rcckv/kv/util/engine_util"
)

// Storage is the local row store a partition applies executed pieces to. Writes arrive only from the
// execution engine, after a transaction has been decided and all its ancestors have finished.
type Storage interface {
	Start() error
	Stop() error
	Write(ctx context.Context, batch []Modify) error
	Reader(ctx context.Context) (StorageReader, error)
}

type StorageReader interface {
	// When the key doesn't exist, return nil for the value
	GetCF(cf string, key []byte) ([]byte, error)
	IterCF(cf string) engine_util.DBIterator
	Close()
}
