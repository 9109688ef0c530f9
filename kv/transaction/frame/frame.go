package frame

import (
	"github.com/pingcap/errors"
	"github.com/rcckv/rcckv/kv/config"
	"github.com/rcckv/rcckv/kv/transaction/depgraph"
	"github.com/rcckv/rcckv/kv/transaction/rcc"
	"github.com/rcckv/rcckv/kv/transaction/txn"
)

// Sched is what the server needs from the scheduler of a partition, whatever the concurrency control mode.
type Sched interface {
	Start() error
	Stop() error
	OnDispatch(pieces []*txn.Piece) <-chan rcc.DispatchResult
	OnCommit(txnID uint64, g *depgraph.Graph) <-chan rcc.CommitResult
	OnInquire(epoch, txnID uint64) <-chan *depgraph.Graph
}

// NewScheduler builds the scheduler for conf.Mode. commo is only used in rcc mode.
func NewScheduler(conf *config.Config, registry *txn.Registry, exec rcc.Executor, commo rcc.Commo) (Sched, error) {
	switch conf.Mode {
	case config.ModeRcc:
		return rcc.NewScheduler(rcc.OptionsFromConfig(conf), rcc.NewKeyConflicts(registry), exec, commo), nil
	case config.Mode2PL:
		return NewTwoPL(conf.PartitionID, registry, exec), nil
	}
	return nil, errors.Errorf("unknown mode %q", conf.Mode)
}
