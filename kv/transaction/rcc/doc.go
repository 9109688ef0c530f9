// Package rcc is the dependency-graph scheduler of one partition.
//
// A transaction reaches a partition as a batch of pieces (OnDispatch). The scheduler records the conflicts of
// those pieces as edges in its dependency graph and hands back the piece of the graph the coordinator needs. Once
// the coordinator has gathered every participant's view it sends the aggregated graph back (OnCommit). From then on
// the transaction waits on the waitlist until every ancestor is at least Committing, at which point the strongly
// connected components of its ancestry are decided and executed in a deterministic order: components ancestors
// first, transaction id ascending inside a component. Every partition that sees the same graph reaches the same
// decisions and applies the same order.
//
// Ancestors owned by other partitions are resolved by inquiring about them (InquireAboutIfNeeded); the answer is
// aggregated through InquireAck. Entries stuck for too long move to the fridge and are thawed either when their
// blocker advances or on the next epoch tick, which also broadcasts inquiries for long-blocked ancestors and
// garbage collects finished vertices.
//
// All state is guarded by a single mutex. Entry points return a buffered channel that is written after the lock
// is released.
package rcc
