package txn

import (
	"sync"

	"github.com/pingcap/errors"
	"github.com/rcckv/rcckv/kv/transaction/mvcc"
)

// KeyFunc returns the user keys a piece reads or writes. Two pieces conflict when their key sets overlap.
type KeyFunc func(input Workspace) [][]byte

// Handler executes one piece inside an execution's mvcc transaction, filling out with the piece's results.
type Handler func(txn *mvcc.MvccTxn, p *Piece, out Workspace) error

// PieceDef is the application logic of one piece type.
type PieceDef struct {
	Keys    KeyFunc
	Handler Handler
}

// Registry maps a piece type to its definition. It is filled once at startup.
type Registry struct {
	mu   sync.RWMutex
	defs map[int32]PieceDef
}

func NewRegistry() *Registry {
	return &Registry{defs: make(map[int32]PieceDef)}
}

func (r *Registry) Register(pieceType int32, def PieceDef) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.defs[pieceType] = def
}

func (r *Registry) Get(pieceType int32) (PieceDef, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.defs[pieceType]
	if !ok {
		return PieceDef{}, errors.Errorf("unknown piece type %d", pieceType)
	}
	return def, nil
}

// Keys returns the keys of p, or nil when its type is unknown.
func (r *Registry) Keys(p *Piece) [][]byte {
	def, err := r.Get(p.Type)
	if err != nil || def.Keys == nil {
		return nil
	}
	return def.Keys(p.Input)
}

// Built-in piece types used by the server and the tests. Inputs are keyed by the InputKey/InputValue slots.
const (
	PieceGet int32 = 1
	PiecePut int32 = 2
	PieceAdd int32 = 3
	PieceDel int32 = 4

	InputKey   int32 = 0
	InputValue int32 = 1
)

// NewKVRegistry returns a registry with the built-in get/put/add/delete pieces.
func NewKVRegistry() *Registry {
	r := NewRegistry()
	keyOf := func(in Workspace) [][]byte { return [][]byte{in[InputKey]} }
	r.Register(PieceGet, PieceDef{Keys: keyOf, Handler: handleGet})
	r.Register(PiecePut, PieceDef{Keys: keyOf, Handler: handlePut})
	r.Register(PieceAdd, PieceDef{Keys: keyOf, Handler: handleAdd})
	r.Register(PieceDel, PieceDef{Keys: keyOf, Handler: handleDel})
	return r
}

func handleGet(txn *mvcc.MvccTxn, p *Piece, out Workspace) error {
	val, err := txn.GetValue(p.Input[InputKey])
	if err != nil {
		return errors.Trace(err)
	}
	out[InputValue] = val
	return nil
}

func handlePut(txn *mvcc.MvccTxn, p *Piece, out Workspace) error {
	txn.PutValue(p.Input[InputKey], p.Input[InputValue])
	return nil
}

// handleAdd adds the signed decimal delta in InputValue to the value at InputKey and returns the new value.
func handleAdd(txn *mvcc.MvccTxn, p *Piece, out Workspace) error {
	key := p.Input[InputKey]
	old, err := txn.GetValue(key)
	if err != nil {
		return errors.Trace(err)
	}
	cur, err := DecodeInt(old)
	if err != nil {
		return errors.Annotatef(err, "add on key %q", key)
	}
	delta, err := DecodeInt(p.Input[InputValue])
	if err != nil {
		return errors.Annotatef(err, "add delta for key %q", key)
	}
	val := EncodeInt(cur + delta)
	txn.PutValue(key, val)
	out[InputValue] = val
	return nil
}

func handleDel(txn *mvcc.MvccTxn, p *Piece, out Workspace) error {
	txn.DeleteValue(p.Input[InputKey])
	return nil
}
