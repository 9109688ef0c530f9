package executor

import (
	"context"
	"sync"

	"github.com/golang/protobuf/proto"
	"github.com/pingcap/errors"
	"github.com/pingcap/log"
	"github.com/rcckv/rcckv/kv/storage"
	"github.com/rcckv/rcckv/kv/transaction/mvcc"
	"github.com/rcckv/rcckv/kv/transaction/txn"
	"github.com/rcckv/rcckv/kv/util/engine_util"
	"github.com/rcckv/rcckv/proto/pkg/rccpb"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// ApplyStateKey holds the last applied execution sequence in the meta column family.
var ApplyStateKey = []byte("apply_state")

// Engine applies committed transactions to a Storage. Each execution reads at and writes under the next sequence
// number, so the versions in the store follow the order the scheduler executed transactions in.
type Engine struct {
	storage  storage.Storage
	registry *txn.Registry
	seq      atomic.Uint64

	// writeMu serializes batch writes. persisted is the sequence held by the stored apply state.
	writeMu   sync.Mutex
	persisted uint64
}

func NewEngine(st storage.Storage, registry *txn.Registry) *Engine {
	return &Engine{storage: st, registry: registry}
}

// Recover loads the last applied sequence, so a restarted partition keeps numbering after it.
func (e *Engine) Recover() error {
	reader, err := e.storage.Reader(context.Background())
	if err != nil {
		return errors.Trace(err)
	}
	defer reader.Close()
	val, err := reader.GetCF(engine_util.CfMeta, ApplyStateKey)
	if err != nil {
		return errors.Trace(err)
	}
	if val == nil {
		return nil
	}
	state := new(rccpb.ApplyState)
	if err := proto.Unmarshal(val, state); err != nil {
		return errors.Annotate(err, "decode apply state")
	}
	e.seq.Store(state.AppliedSeq)
	e.writeMu.Lock()
	e.persisted = state.AppliedSeq
	e.writeMu.Unlock()
	log.Info("execution engine recovered", zap.Uint64("seq", state.AppliedSeq))
	return nil
}

// AppliedSeq is the sequence of the last execution.
func (e *Engine) AppliedSeq() uint64 {
	return e.seq.Load()
}

// Execute runs the handler of every piece in order inside one mvcc transaction and writes the result atomically,
// together with the new apply state. Nothing is written if a handler fails.
func (e *Engine) Execute(txnID uint64, pieces []*txn.Piece) (txn.Output, error) {
	seq := e.seq.Inc()
	reader, err := e.storage.Reader(context.Background())
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer reader.Close()

	mvccTxn := mvcc.NewTxn(reader, seq)
	out := make(txn.Output, len(pieces))
	for _, p := range pieces {
		def, err := e.registry.Get(p.Type)
		if err != nil {
			return nil, errors.Annotatef(err, "txn %d piece %d", txnID, p.InnerID)
		}
		ws := make(txn.Workspace)
		if err := def.Handler(mvccTxn, p, ws); err != nil {
			return nil, errors.Annotatef(err, "txn %d piece %d", txnID, p.InnerID)
		}
		out[p.InnerID] = ws
	}

	if err := e.write(txnID, seq, mvccTxn.Writes()); err != nil {
		return nil, err
	}
	log.Debug("transaction executed", zap.Uint64("txn", txnID), zap.Uint64("seq", seq), zap.Int("pieces", len(pieces)))
	return out, nil
}

// write flushes the writes of execution seq. The apply state is written along with them unless a later
// execution already persisted a larger sequence.
func (e *Engine) write(txnID, seq uint64, writes []storage.Modify) error {
	e.writeMu.Lock()
	defer e.writeMu.Unlock()
	if seq > e.persisted {
		state, err := proto.Marshal(&rccpb.ApplyState{AppliedSeq: seq})
		if err != nil {
			return errors.Trace(err)
		}
		writes = append(writes, storage.Modify{Data: storage.Put{
			Key:   ApplyStateKey,
			Value: state,
			Cf:    engine_util.CfMeta,
		}})
	}
	if err := e.storage.Write(context.Background(), writes); err != nil {
		return errors.Annotatef(err, "write txn %d", txnID)
	}
	if seq > e.persisted {
		e.persisted = seq
	}
	return nil
}

// Abort has nothing to undo: pieces only touch the store once executed.
func (e *Engine) Abort(txnID uint64, pieces []*txn.Piece) {
	log.Debug("transaction aborted", zap.Uint64("txn", txnID), zap.Int("pieces", len(pieces)))
}

// Read returns the latest value of key.
func (e *Engine) Read(key []byte) ([]byte, error) {
	reader, err := e.storage.Reader(context.Background())
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer reader.Close()
	return (&mvcc.RoTxn{Reader: reader, Seq: mvcc.SeqMax}).GetValue(key)
}
