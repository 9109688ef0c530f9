package txn

import (
	"sort"
)

// PieceStatus tracks one piece on the coordinator side.
type PieceStatus int

const (
	PieceInit PieceStatus = iota
	PieceDispatched
	PieceFinished
)

// TxReply is what the client of a transaction receives once it completes.
type TxReply struct {
	TxnID     uint64
	Committed bool
	Output    Output
	// Attempts counts dispatch rounds, including the successful one.
	Attempts int
	Err      error
}

// TxData is the coordinator's view of one transaction: its pieces, their progress, the retry budget and the
// completion callback. It is not safe for concurrent use.
type TxData struct {
	ID     uint64
	Pieces []*Piece

	status      map[int32]PieceStatus
	nDispatched int
	nFinished   int
	output      Output

	// RetryBudget is how many more times the transaction may be retried after an abort.
	RetryBudget int
	attempts    int

	Callback func(*TxReply)
}

// NewTxData builds a transaction from its pieces, stamping each with id.
func NewTxData(id uint64, pieces []*Piece, retryBudget int) *TxData {
	d := &TxData{Pieces: pieces, RetryBudget: retryBudget}
	d.reset(id)
	return d
}

func (d *TxData) reset(id uint64) {
	d.ID = id
	d.status = make(map[int32]PieceStatus, len(d.Pieces))
	for _, p := range d.Pieces {
		p.TxnID = id
		d.status[p.InnerID] = PieceInit
	}
	d.nDispatched = 0
	d.nFinished = 0
	d.output = make(Output)
}

// Partitions lists the partitions the transaction touches, ascending.
func (d *TxData) Partitions() []uint32 {
	seen := make(map[uint32]bool)
	var pars []uint32
	for _, p := range d.Pieces {
		if !seen[p.Partition] {
			seen[p.Partition] = true
			pars = append(pars, p.Partition)
		}
	}
	sort.Slice(pars, func(i, j int) bool { return pars[i] < pars[j] })
	return pars
}

// PiecesByPartition groups the pieces by target partition.
func (d *TxData) PiecesByPartition() map[uint32][]*Piece {
	res := make(map[uint32][]*Piece)
	for _, p := range d.Pieces {
		res[p.Partition] = append(res[p.Partition], p)
	}
	return res
}

func (d *TxData) MarkDispatched(pieces []*Piece) {
	for _, p := range pieces {
		if d.status[p.InnerID] == PieceInit {
			d.status[p.InnerID] = PieceDispatched
			d.nDispatched++
		}
	}
}

// MarkFinished records the output of the pieces found in out.
func (d *TxData) MarkFinished(out Output) {
	for inner, ws := range out {
		if d.status[inner] != PieceFinished {
			d.status[inner] = PieceFinished
			d.nFinished++
		}
		d.output[inner] = ws
	}
}

func (d *TxData) Status(inner int32) PieceStatus {
	return d.status[inner]
}

func (d *TxData) AllDispatched() bool {
	return d.nDispatched == len(d.Pieces)
}

func (d *TxData) AllFinished() bool {
	return d.nFinished == len(d.Pieces)
}

func (d *TxData) Output() Output {
	return d.output
}

// StartAttempt counts a new dispatch round.
func (d *TxData) StartAttempt() {
	d.attempts++
}

// Retry restarts the transaction under a fresh id if budget remains.
func (d *TxData) Retry(newID uint64) bool {
	if d.RetryBudget <= 0 {
		return false
	}
	d.RetryBudget--
	d.reset(newID)
	return true
}

// Finish builds the reply and fires the callback, if any.
func (d *TxData) Finish(committed bool, err error) *TxReply {
	reply := &TxReply{
		TxnID:     d.ID,
		Committed: committed,
		Output:    d.output,
		Attempts:  d.attempts,
		Err:       err,
	}
	if d.Callback != nil {
		d.Callback(reply)
	}
	return reply
}
