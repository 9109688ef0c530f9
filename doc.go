package rcckv

/*
rcckv is a partitioned key/value store whose transactions are ordered by a dependency graph rather than by locks or
timestamps. Every partition runs a scheduler that records which transactions touched the same keys, collapses cycles
into strongly connected components and executes each component in a deterministic order, so all partitions agree on
the serial order without a second round of locking.

Building rcckv produces one executable, rcckv-server (kv/main.go). Each process serves one partition.

The `rcckv` module is organized into the following packages:

* `kv`: the server, its configuration, storage and the transaction layer.
* `kv/transaction/depgraph`: vertices, the dependency graph, SCC search and graph selection for the wire.
* `kv/transaction/rcc`: the per-partition scheduler (waitlist, fridge, inquiries, epochs) and the coordinator.
* `proto`: the Protocol Buffers messages and gRPC service used between partitions and clients.
*/
