package engine

import (
	"sync"

	"github.com/vk/portflow/internal/binder"
	"github.com/vk/portflow/internal/registry"
	"github.com/vk/portflow/internal/vtree"
)

// State is a node's position in the evaluation lifecycle.
type State int32

const (
	// StateAbsent means the node has no computed result in this pass.
	StateAbsent State = iota
	// StateInFlight means exactly one evaluation is currently running.
	StateInFlight
	// StateReady means a result is present and consumable downstream.
	StateReady
	// StateFailed means the node holds a structured error result. For
	// downstream consumption it behaves exactly like StateReady.
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateAbsent:
		return "absent"
	case StateInFlight:
		return "in-flight"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// OutputMapping routes one path of the operation's return value into the
// node's result under output.<Target>. An empty Source selects the whole
// return value.
type OutputMapping struct {
	Source string
	Target string
}

// Node is a single vertex of the execution graph: one operation instance,
// its input/output path mappings, its memoized result, and its wiring. The
// wiring is fixed once the graph is built; only the computed state resets.
type Node struct {
	id   string
	name string
	op   *registry.Operation

	inputMap             []binder.Mapping
	outputMap            []OutputMapping
	mergeOutputWithInput bool

	// ports caches the operation's declared ports for the node's lifetime.
	// Empty means the node is linear and fans out unconditionally.
	ports []string

	graph *Graph

	// Wiring. Owned by the Graph, shared references only.
	upstream    []*Node
	downstream  []*Node
	outputPorts map[string][]*Node

	// mu guards every field below: the memoized result, the in-flight
	// marker and its waiter channel, the failure record, and the
	// pending-port queue.
	mu       sync.Mutex
	result   *vtree.Tree
	inFlight bool
	flightCh chan struct{}
	lastErr  *NodeError
	pending  []string

	closureMu sync.Mutex
	closures  map[string][]*Node

	obsMu   sync.Mutex
	onStart []func(*Node)
	onStop  []func(*Node)
	onError []func(*Node, error)
}

// ID returns the node's stable identifier.
func (n *Node) ID() string { return n.id }

// Name returns the node's human-readable name.
func (n *Node) Name() string { return n.name }

// OperationType returns the type tag of the node's operation.
func (n *Node) OperationType() string { return n.op.Type }

// Ports returns the node's declared output ports. The slice is the cached
// copy read once at construction; callers must not modify it.
func (n *Node) Ports() []string { return n.ports }

// IsPortDriven reports whether fan-out is explicit via declared ports.
func (n *Node) IsPortDriven() bool { return len(n.ports) > 0 }

// Upstream returns the node's upstream dependencies in declared order.
func (n *Node) Upstream() []*Node { return n.upstream }

// Downstream returns every downstream node across all ports.
func (n *Node) Downstream() []*Node { return n.downstream }

// PortTargets returns the immediate downstream set wired to a port.
func (n *Node) PortTargets(port string) []*Node { return n.outputPorts[port] }

// State derives the node's lifecycle state.
func (n *Node) State() State {
	n.mu.Lock()
	defer n.mu.Unlock()
	switch {
	case n.inFlight:
		return StateInFlight
	case n.lastErr != nil:
		return StateFailed
	case n.result != nil:
		return StateReady
	}
	return StateAbsent
}

// Result peeks at the current result without forcing evaluation. It returns
// nil while the result is absent.
func (n *Node) Result() *vtree.Tree {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.result
}

// HasError reports whether the node's last evaluation failed.
func (n *Node) HasError() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.lastErr != nil
}

// ErrorMessage returns the recorded failure message, or "".
func (n *Node) ErrorMessage() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.lastErr == nil {
		return ""
	}
	return n.lastErr.Message
}

// LastError returns a copy of the recorded failure, or nil.
func (n *Node) LastError() *NodeError {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.lastErr == nil {
		return nil
	}
	e := *n.lastErr
	return &e
}

// OnStart registers an observer notified when an evaluation begins.
// Notifications are fire-and-forget; observer panics are discarded.
func (n *Node) OnStart(fn func(*Node)) {
	n.obsMu.Lock()
	defer n.obsMu.Unlock()
	n.onStart = append(n.onStart, fn)
}

// OnStop registers an observer notified when an evaluation finishes,
// successfully or not.
func (n *Node) OnStop(fn func(*Node)) {
	n.obsMu.Lock()
	defer n.obsMu.Unlock()
	n.onStop = append(n.onStop, fn)
}

// OnError registers an observer notified when an evaluation fails.
func (n *Node) OnError(fn func(*Node, error)) {
	n.obsMu.Lock()
	defer n.obsMu.Unlock()
	n.onError = append(n.onError, fn)
}

func (n *Node) notifyStart() {
	n.obsMu.Lock()
	observers := append([]func(*Node){}, n.onStart...)
	n.obsMu.Unlock()
	for _, fn := range observers {
		safeNotify(func() { fn(n) })
	}
}

func (n *Node) notifyStop() {
	n.obsMu.Lock()
	observers := append([]func(*Node){}, n.onStop...)
	n.obsMu.Unlock()
	for _, fn := range observers {
		safeNotify(func() { fn(n) })
	}
}

func (n *Node) notifyError(err error) {
	n.obsMu.Lock()
	observers := append([]func(*Node, error){}, n.onError...)
	n.obsMu.Unlock()
	for _, fn := range observers {
		safeNotify(func() { fn(n, err) })
	}
}

// safeNotify shields the engine from observer panics; no return value is
// expected from observers.
func safeNotify(fn func()) {
	defer func() { _ = recover() }()
	fn()
}
