package flow

import (
	"context"

	"github.com/vk/portflow/internal/engine"
	"github.com/vk/portflow/internal/vtree"
)

// loop is the shared iteration skeleton. It computes the body port's
// downstream closure once, swaps an interim result onto the owning node so
// body triggers take the immediate path and body nodes can read the
// per-step values, and restores the original result when the loop ends.
type loop struct {
	ec       *engine.ExecContext
	closure  []*engine.Node
	interim  *vtree.Tree
	prev     *vtree.Tree
	restored bool
}

func beginLoop(ec *engine.ExecContext) *loop {
	l := &loop{
		ec:      ec,
		closure: ec.DownstreamOf(PortBody),
		interim: vtree.New(),
	}
	l.prev = ec.SwapResult(l.interim)
	return l
}

// step runs one iteration: clear the body closure, publish this step's
// values under output.*, then drive the body port to completion. Steps are
// strictly sequential; the trigger returns only when the whole cleared
// subgraph has been re-evaluated.
func (l *loop) step(ctx context.Context, values map[string]any) error {
	engine.Clear(l.closure)
	for k, v := range values {
		if err := l.interim.Set("output."+k, v); err != nil {
			return err
		}
	}
	return l.ec.TriggerPort(ctx, PortBody)
}

// restore puts the node's original result back. Safe to call more than
// once; the deferred call covers error exits.
func (l *loop) restore() {
	if l.restored {
		return
	}
	l.restored = true
	l.ec.SwapResult(l.prev)
}

// signalDone restores the original result and triggers the done port. The
// result is absent again at that point, so the trigger queues and flushes
// only after the engine has committed the loop's aggregate result; the done
// subgraph therefore observes the final output, never interim step values.
func (l *loop) signalDone(ctx context.Context) error {
	l.restore()
	return l.ec.TriggerPort(ctx, PortDone)
}
