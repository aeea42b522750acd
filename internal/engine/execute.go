package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vk/portflow/internal/ctxlog"
	"github.com/vk/portflow/internal/vtree"
)

// Execute returns the node's result, computing it first if absent. The
// computation pulls every upstream result recursively, merges them in
// declared order, binds parameters, and invokes the operation.
//
// Execute is single-flight: while a computation is in progress, concurrent
// callers wait for that same computation instead of starting another.
// Binding and invocation failures are converted into a structured error
// result and do not surface as an error here; only a UsageError (a
// construction-time mistake) propagates to the caller. The caller argument
// is optional and used for log attribution only.
func (n *Node) Execute(ctx context.Context, caller *Node) (*vtree.Tree, error) {
	logger := ctxlog.FromContext(ctx)
	for {
		n.mu.Lock()
		if n.result != nil {
			res := n.result
			n.mu.Unlock()
			return res, nil
		}
		if n.inFlight {
			ch := n.flightCh
			n.mu.Unlock()
			logger.Debug("Waiting on in-flight evaluation.", "node_id", n.id, "caller_id", callerID(caller))
			<-ch
			continue
		}
		n.inFlight = true
		n.flightCh = make(chan struct{})
		n.mu.Unlock()
		return n.evaluate(ctx, caller)
	}
}

// evaluate runs one computation pass while holding the single-flight lock.
// The deferred block is the only exit path: it commits the result, releases
// the lock, wakes waiters, flushes the pending-port queue in FIFO order, and
// fans out for linear nodes.
func (n *Node) evaluate(ctx context.Context, caller *Node) (res *vtree.Tree, hardErr error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Evaluating node.", "node_id", n.id, "operation", n.op.Type, "caller_id", callerID(caller))

	defer func() {
		n.mu.Lock()
		if res != nil {
			n.result = res
		}
		n.inFlight = false
		pending := n.pending
		n.pending = nil
		ch := n.flightCh
		n.flightCh = nil
		n.mu.Unlock()

		close(ch)
		n.notifyStop()
		n.flushPending(ctx, pending)
		if hardErr == nil && !n.IsPortDriven() {
			if err := n.fanOut(ctx); err != nil {
				logger.Error("Downstream fan-out failed.", "node_id", n.id, "error", err)
			}
		}
	}()

	n.notifyStart()

	// Upstream results are awaited in declared order; later upstreams win
	// on key conflicts.
	merged := vtree.New()
	for _, up := range n.upstream {
		r, err := up.Execute(ctx, n)
		if err != nil {
			return nil, fmt.Errorf("node '%s': upstream '%s': %w", n.id, up.id, err)
		}
		merged.Merge(r)
	}

	args, err := n.graph.bind.Bind(n.op, merged, n.inputMap)
	if err != nil {
		return n.recordFailure(ctx, err), nil
	}
	if i := n.op.ContextParam(); i >= 0 {
		args[i] = &ExecContext{node: n}
	}

	ret, opErr := invokeHandler(ctx, n, args)
	var usage *UsageError
	if errors.As(opErr, &usage) {
		// Precondition violation: fail hard before any result is stored.
		return nil, fmt.Errorf("node '%s': %w", n.id, opErr)
	}
	if opErr != nil {
		return n.recordFailure(ctx, &InvocationError{NodeID: n.id, Err: opErr}), nil
	}

	out, mapErr := n.mapOutput(ret)
	if mapErr != nil {
		return n.recordFailure(ctx, &InvocationError{NodeID: n.id, Err: mapErr}), nil
	}
	if n.mergeOutputWithInput {
		// Operation outputs win over the merged upstream data.
		final := merged.Clone()
		final.Merge(out)
		out = final
	}

	logger.Debug("Node evaluation finished.", "node_id", n.id)
	return out, nil
}

// invokeHandler calls the operation function, converting panics into plain
// errors so a misbehaving handler cannot unwind the engine.
func invokeHandler(ctx context.Context, n *Node, args []any) (ret any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("operation panicked: %v", r)
		}
	}()
	return n.op.Fn(ctx, args)
}

// mapOutput routes the operation's return value through the node's output
// mappings into output.* paths. With no mappings the whole return value is
// stored at "output".
func (n *Node) mapOutput(ret any) (*vtree.Tree, error) {
	out := vtree.New()
	if len(n.outputMap) == 0 {
		if ret == nil {
			return out, nil
		}
		if err := out.Set("output", ret); err != nil {
			return nil, err
		}
		return out, nil
	}

	retTree := vtree.FromPlain(ret)
	for _, m := range n.outputMap {
		v, ok := retTree.Get(m.Source)
		if !ok {
			continue
		}
		if err := out.Set("output."+m.Target, v); err != nil {
			return nil, fmt.Errorf("output mapping '%s' -> '%s': %w", m.Source, m.Target, err)
		}
	}
	return out, nil
}

// recordFailure stores the failure record and renders the structured error
// result consumed downstream in place of a normal output.
func (n *Node) recordFailure(ctx context.Context, cause error) *vtree.Tree {
	nodeErr := &NodeError{
		Message:   cause.Error(),
		NodeID:    n.id,
		NodeName:  n.name,
		Timestamp: time.Now(),
	}
	n.mu.Lock()
	n.lastErr = nodeErr
	n.mu.Unlock()

	ctxlog.FromContext(ctx).Error("Node evaluation failed.",
		"node_id", n.id, "node_name", n.name, "error", cause)
	n.notifyError(cause)

	return vtree.FromPlain(nodeErr.asResult())
}

// TriggerPort requests propagation through a named port. While the node's
// result is absent the request is queued and flushed when the node leaves
// its in-flight state; once a result is present the port's downstream set
// executes immediately. Triggering an undeclared or unwired port is a
// no-op; triggering on a linear node executes unconditional fan-out.
func (n *Node) TriggerPort(ctx context.Context, port string) error {
	n.mu.Lock()
	if n.result == nil {
		n.pending = append(n.pending, port)
		n.mu.Unlock()
		ctxlog.FromContext(ctx).Debug("Port trigger queued.", "node_id", n.id, "port", port)
		return nil
	}
	n.mu.Unlock()
	return n.firePort(ctx, port)
}

// flushPending drains one snapshot of the queue in request order. Triggers
// requested while draining are not re-queued here; they take the immediate
// path because the result is present by then.
func (n *Node) flushPending(ctx context.Context, pending []string) {
	for _, port := range pending {
		if err := n.firePort(ctx, port); err != nil {
			ctxlog.FromContext(ctx).Error("Queued port trigger failed.",
				"node_id", n.id, "port", port, "error", err)
		}
	}
}

func (n *Node) firePort(ctx context.Context, port string) error {
	if !n.IsPortDriven() {
		return n.fanOut(ctx)
	}
	if !contains(n.ports, port) {
		return nil
	}
	for _, target := range n.outputPorts[port] {
		if err := target.executeFrom(ctx, n); err != nil {
			return err
		}
	}
	return nil
}

func (n *Node) fanOut(ctx context.Context) error {
	for _, d := range n.downstream {
		if err := d.executeFrom(ctx, n); err != nil {
			return err
		}
	}
	return nil
}

// executeFrom drives a node during propagation (fan-out or a port trigger).
// Unlike Execute it never waits: a node that already holds a result is
// memoized, and a node in flight is being computed by a consumer that is
// itself pulling the caller's result, so waiting here would deadlock the
// propagation chain.
func (n *Node) executeFrom(ctx context.Context, caller *Node) error {
	n.mu.Lock()
	if n.result != nil || n.inFlight {
		n.mu.Unlock()
		return nil
	}
	n.inFlight = true
	n.flightCh = make(chan struct{})
	n.mu.Unlock()
	_, err := n.evaluate(ctx, caller)
	return err
}

func callerID(caller *Node) string {
	if caller == nil {
		return ""
	}
	return caller.id
}
