// Package engine implements the node-graph execution core: pull-based,
// memoized evaluation over a fixed graph of operation nodes.
//
// Each node wraps one registered operation. Executing a node recursively
// executes its upstream dependencies, merges their results in declared
// order (later upstreams win on key conflicts), binds the merged tree to
// the operation's parameters, and stores the mapped return value as the
// node's memoized result. A result, once present, is shared by every
// downstream consumer; the single-flight lock guarantees concurrent
// consumers converge on one computation.
//
// Propagation is either linear (automatic fan-out to all downstream nodes
// on completion) or port-driven: a node whose operation declares named
// ports suppresses automatic fan-out and decides at runtime which port's
// downstream subgraph to execute, and when. Port triggers issued while the
// node's result is still absent are queued in a per-node FIFO and flushed
// when the node leaves its in-flight state; combined with result clearing
// over a port's downstream closure this is what lets control-flow
// operations re-execute the same physical subgraph any number of times.
//
// Binding and operation failures never unwind out of Execute. The failing
// node stores a structured error result ({error: {message, nodeId,
// nodeName, timestamp}}) and behaves as ready for downstream consumption,
// so graphs branch on error.* fields instead of aborting.
package engine
