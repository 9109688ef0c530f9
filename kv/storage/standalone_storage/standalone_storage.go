package standalone_storage

import (
	"context"

	"github.com/Connor1996/badger"
	"github.com/pingcap/errors"
	"github.com/pingcap/log"
	"github.com/rcckv/rcckv/kv/config"
	"github.com/rcckv/rcckv/kv/storage"
	"github.com/rcckv/rcckv/kv/util/engine_util"
	"go.uber.org/zap"
)

// StandAloneStorage is an implementation of `Storage` backed by a single local badger instance.
type StandAloneStorage struct {
	path string
	db   *badger.DB
}

func NewStandAloneStorage(conf *config.Config) *StandAloneStorage {
	return &StandAloneStorage{path: conf.DBPath}
}

func (s *StandAloneStorage) Start() error {
	db, err := engine_util.CreateDB(s.path)
	if err != nil {
		return err
	}
	s.db = db
	log.Info("standalone storage started", zap.String("path", s.path))
	return nil
}

func (s *StandAloneStorage) Stop() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return errors.Trace(err)
}

func (s *StandAloneStorage) Reader(ctx context.Context) (storage.StorageReader, error) {
	return NewStandAloneReader(s.db.NewTransaction(false)), nil
}

func (s *StandAloneStorage) Write(ctx context.Context, batch []storage.Modify) error {
	wb := new(engine_util.WriteBatch)
	for _, m := range batch {
		switch data := m.Data.(type) {
		case storage.Put:
			wb.SetCF(data.Cf, data.Key, data.Value)
		case storage.Delete:
			wb.DeleteCF(data.Cf, data.Key)
		}
	}
	return wb.WriteToDB(s.db)
}

// StandAloneReader reads from one badger snapshot until closed.
type StandAloneReader struct {
	txn *badger.Txn
}

func NewStandAloneReader(txn *badger.Txn) *StandAloneReader {
	return &StandAloneReader{txn}
}

func (reader *StandAloneReader) GetCF(cf string, key []byte) ([]byte, error) {
	val, err := engine_util.GetCFFromTxn(reader.txn, cf, key)
	if err == badger.ErrKeyNotFound {
		return nil, nil
	}
	return val, err
}

func (reader *StandAloneReader) IterCF(cf string) engine_util.DBIterator {
	return engine_util.NewCFIterator(cf, reader.txn)
}

func (reader *StandAloneReader) Close() {
	reader.txn.Discard()
}
