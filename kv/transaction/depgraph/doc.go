// Package depgraph implements the dependency graph of the commit protocol.
//
// A vertex is one transaction; its parents are the transactions it must be ordered after. Partial views of the
// graph gathered at different partitions are combined with Aggregate, which is idempotent, commutative and
// associative over vertex ids, statuses and parent sets. Components are computed with Tarjan's algorithm and
// listed ancestors first; inside a component the canonical order is ascending transaction id. Any two
// partitions holding the same graph therefore agree on every decision and on the execution order.
//
// Edges are stored as ids and resolved through the graph's index. A graph decoded from the wire must be passed
// to RebuildEdgePointer before it is traversed.
package depgraph
