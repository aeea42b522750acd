package registry

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/zclconf/go-cty/cty"
)

// Handler is the callable behind an operation. It receives the bound
// arguments in declared parameter order; a parameter flagged IsContext
// carries the engine's execution context instead of bound data. The returned
// value is a plain nested map/slice/scalar (or nil).
type Handler func(ctx context.Context, args []any) (any, error)

// Param describes one declared operation parameter.
type Param struct {
	// Name is the parameter name used as the inputMap destination key.
	Name string
	// Type is the semantic type bound values are coerced to. Use
	// cty.DynamicPseudoType for parameters that accept any shape.
	Type cty.Type
	// IsContext marks the single parameter that receives the execution
	// context rather than bound input data.
	IsContext bool
}

// Operation is the static descriptor for one node type: a stable type tag,
// an ordered parameter list, the declared output ports, and the handler.
// Descriptors are registered once at startup and never mutated afterwards.
type Operation struct {
	Type   string
	Params []Param
	// Ports lists the declared output ports. An operation with no ports is
	// linear: its nodes fan out to every downstream node unconditionally. A
	// non-empty list makes nodes port-driven; propagation then only happens
	// through explicit port triggers.
	Ports []string
	Fn    Handler
}

// ContextParam returns the index of the context-flagged parameter, or -1.
func (o *Operation) ContextParam() int {
	for i, p := range o.Params {
		if p.IsContext {
			return i
		}
	}
	return -1
}

// Module is the interface all operation packages implement to be registered.
type Module interface {
	Register(r *Registry)
}

// Registry maps operation type tags to their descriptors for a single
// application instance. It is populated before any execution begins and is
// read-only afterwards.
type Registry struct {
	ops   map[string]*Operation
	order []string
}

// New creates and initializes a new Registry instance.
func New() *Registry {
	return &Registry{ops: make(map[string]*Operation)}
}

// RegisterOperation registers an operation descriptor. Registering a
// duplicate type tag is a programmer error and panics.
func (r *Registry) RegisterOperation(op *Operation) {
	if op == nil || op.Type == "" {
		panic("registry: operation descriptor must have a type tag")
	}
	if _, exists := r.ops[op.Type]; exists {
		panic(fmt.Sprintf("operation with type tag '%s' already registered", op.Type))
	}
	slog.Debug("Registering operation.", "type", op.Type, "ports", op.Ports)
	r.ops[op.Type] = op
	r.order = append(r.order, op.Type)
}

// Lookup returns the descriptor for a type tag.
func (r *Registry) Lookup(typeTag string) (*Operation, bool) {
	op, ok := r.ops[typeTag]
	return op, ok
}

// MustLookup is Lookup for startup paths where a missing operation is a
// construction-time mistake.
func (r *Registry) MustLookup(typeTag string) *Operation {
	op, ok := r.ops[typeTag]
	if !ok {
		panic(fmt.Sprintf("unknown operation type tag '%s'", typeTag))
	}
	return op
}

// Types returns all registered type tags in registration order.
func (r *Registry) Types() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Install runs Register for each module against this registry.
func (r *Registry) Install(modules ...Module) {
	for _, m := range modules {
		m.Register(r)
	}
}
