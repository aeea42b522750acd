package engine

import (
	"fmt"

	"github.com/vk/portflow/internal/binder"
	"github.com/vk/portflow/internal/registry"
)

// DefaultPort is the implicit single fan-out port of a linear node.
const DefaultPort = ""

// NodeSpec describes one node to add to a graph.
type NodeSpec struct {
	ID   string
	Name string
	// Type is the registered operation type tag.
	Type                 string
	InputMap             []binder.Mapping
	OutputMap            []OutputMapping
	MergeOutputWithInput bool
}

// Graph owns the node collection and its wiring. It is built once before
// execution begins and is structurally read-only afterwards; the only
// mutable state during evaluation lives inside the nodes themselves.
type Graph struct {
	reg  *registry.Registry
	bind *binder.Binder

	nodes map[string]*Node
	order []string
}

// NewGraph creates an empty graph whose nodes resolve operations from reg
// and bind parameters through b.
func NewGraph(reg *registry.Registry, b *binder.Binder) *Graph {
	return &Graph{
		reg:   reg,
		bind:  b,
		nodes: make(map[string]*Node),
	}
}

// AddNode creates a node from its spec. The operation type must be
// registered; its declared ports are read once here and cached on the node
// for its lifetime.
func (g *Graph) AddNode(spec NodeSpec) (*Node, error) {
	if spec.ID == "" {
		return nil, fmt.Errorf("node spec must have an id")
	}
	if _, exists := g.nodes[spec.ID]; exists {
		return nil, fmt.Errorf("duplicate node id '%s'", spec.ID)
	}
	op, ok := g.reg.Lookup(spec.Type)
	if !ok {
		return nil, fmt.Errorf("node '%s': unknown operation type '%s'", spec.ID, spec.Type)
	}

	name := spec.Name
	if name == "" {
		name = spec.ID
	}
	ports := make([]string, len(op.Ports))
	copy(ports, op.Ports)

	n := &Node{
		id:                   spec.ID,
		name:                 name,
		op:                   op,
		inputMap:             spec.InputMap,
		outputMap:            spec.OutputMap,
		mergeOutputWithInput: spec.MergeOutputWithInput,
		ports:                ports,
		graph:                g,
		outputPorts:          make(map[string][]*Node),
		closures:             make(map[string][]*Node),
	}
	g.nodes[spec.ID] = n
	g.order = append(g.order, spec.ID)
	return n, nil
}

// Connect wires a directed edge from a port of one node to another node.
// Linear nodes only accept DefaultPort; port-driven nodes only accept their
// declared ports. Self-referential edges are not allowed.
func (g *Graph) Connect(fromID, port, toID string) error {
	if fromID == toID {
		return fmt.Errorf("self-referential edge not allowed: %s -> %s", fromID, toID)
	}
	from, ok := g.nodes[fromID]
	if !ok {
		return fmt.Errorf("source node not found: %s", fromID)
	}
	to, ok := g.nodes[toID]
	if !ok {
		return fmt.Errorf("destination node not found: %s", toID)
	}

	if from.IsPortDriven() {
		if !contains(from.ports, port) {
			return fmt.Errorf("node '%s' declares no port '%s'", fromID, port)
		}
	} else if port != DefaultPort {
		return fmt.Errorf("node '%s' is linear and has no named ports", fromID)
	}

	from.outputPorts[port] = append(from.outputPorts[port], to)
	if !containsNode(from.downstream, to) {
		from.downstream = append(from.downstream, to)
	}
	if !containsNode(to.upstream, from) {
		to.upstream = append(to.upstream, from)
	}
	return nil
}

// Node looks up a node by id.
func (g *Graph) Node(id string) (*Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// Nodes returns all nodes in insertion order.
func (g *Graph) Nodes() []*Node {
	out := make([]*Node, 0, len(g.order))
	for _, id := range g.order {
		out = append(out, g.nodes[id])
	}
	return out
}

// Roots returns the nodes with no upstream dependencies, in insertion
// order. Hosts typically start execution from these.
func (g *Graph) Roots() []*Node {
	var out []*Node
	for _, id := range g.order {
		if len(g.nodes[id].upstream) == 0 {
			out = append(out, g.nodes[id])
		}
	}
	return out
}

// DownstreamOf returns the ordered, de-duplicated closure of nodes reachable
// from the given port: the port's immediate targets plus everything further
// downstream of them across all edges. The closure is computed once per
// (node, port) and cached, which is safe because wiring never changes.
func (n *Node) DownstreamOf(port string) []*Node {
	n.closureMu.Lock()
	defer n.closureMu.Unlock()
	if closure, ok := n.closures[port]; ok {
		return closure
	}

	var closure []*Node
	seen := map[*Node]bool{}
	queue := append([]*Node{}, n.outputPorts[port]...)
	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]
		if seen[next] {
			continue
		}
		seen[next] = true
		closure = append(closure, next)
		queue = append(queue, next.downstream...)
	}

	n.closures[port] = closure
	return closure
}

// Clear resets the result of every node in the set to absent so the same
// physical subgraph can be evaluated again. Wiring is untouched.
func Clear(nodes []*Node) {
	for _, n := range nodes {
		n.mu.Lock()
		n.result = nil
		n.lastErr = nil
		n.mu.Unlock()
	}
}

func contains(list []string, s string) bool {
	for _, e := range list {
		if e == s {
			return true
		}
	}
	return false
}

func containsNode(list []*Node, n *Node) bool {
	for _, e := range list {
		if e == n {
			return true
		}
	}
	return false
}
