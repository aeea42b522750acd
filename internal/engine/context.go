package engine

import (
	"context"

	"github.com/vk/portflow/internal/vtree"
)

// ExecContext is the explicit execution context handed to operations that
// declare a context parameter. It carries the owning node's identity and
// wiring accessors plus the port-trigger capability control-flow operations
// are built from.
type ExecContext struct {
	node *Node
}

// Node returns the owning node.
func (c *ExecContext) Node() *Node { return c.node }

// NodeID returns the owning node's id.
func (c *ExecContext) NodeID() string { return c.node.id }

// NodeName returns the owning node's name.
func (c *ExecContext) NodeName() string { return c.node.name }

// Graph returns the graph the owning node belongs to.
func (c *ExecContext) Graph() *Graph { return c.node.graph }

// TriggerPort requests propagation through one of the owning node's ports.
// See Node.TriggerPort for the queue-while-absent semantics that make this
// safe to call from inside the operation itself.
func (c *ExecContext) TriggerPort(ctx context.Context, port string) error {
	return c.node.TriggerPort(ctx, port)
}

// DownstreamOf returns the cached downstream closure of one of the owning
// node's ports.
func (c *ExecContext) DownstreamOf(port string) []*Node {
	return c.node.DownstreamOf(port)
}

// ClearResults resets the given nodes to absent so a triggered port
// re-evaluates them. Iteration operations call this between steps.
func (c *ExecContext) ClearResults(nodes []*Node) {
	Clear(nodes)
}

// SwapResult replaces the owning node's current result with t (nil restores
// "absent") and returns the previous value. Iteration operations use this to
// publish interim per-step values under output.* while their own invocation
// is still running: once a result is present, port triggers take the
// immediate path and body nodes pulling this node observe the interim tree.
func (c *ExecContext) SwapResult(t *vtree.Tree) *vtree.Tree {
	c.node.mu.Lock()
	defer c.node.mu.Unlock()
	prev := c.node.result
	c.node.result = t
	return prev
}
