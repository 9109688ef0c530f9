package transaction

// The transaction package groups rcckv's transaction layer. A client transaction (txn.TxData) is split into pieces, one
// group per partition. The coordinator (rcc.Coordinator) dispatches each group to its partition, merges the dependency
// graphs the partitions reply with and sends the merged graph back in the commit phase.
//
// On each partition the scheduler (rcc.Scheduler) keeps a depgraph.Graph. Dispatch adds an edge from every earlier
// transaction that touched one of the same keys. Commit marks the vertex Committing and puts it on the waitlist. A
// vertex leaves the waitlist once every transaction it depends on has either finished or sits in the same strongly
// connected component; the component is then decided (commit or abort) and executed in ascending id order. Vertices
// whose ancestors are owned by another partition are resolved with inquiries, and an epoch watchdog retries stuck
// inquiries and collects finished vertices.
//
// Execution (executor.Engine) runs the registered piece handlers against an mvcc.MvccTxn. Each execution gets the next
// sequence number, and every write is stored under its key and that sequence, so a read at sequence N sees exactly the
// writes of the first N-1 executions.
//
// The frame package selects the concurrency control mode at startup: the dependency graph scheduler, or a plain two
// phase locking scheduler built on the latches package for comparison.
