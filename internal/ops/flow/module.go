// Package flow provides the built-in control-flow operations: for-each over
// generic, string and number collections, map, repeat, and while. Each
// declares a "body" and a "done" port and re-executes the body port's
// downstream closure once per iteration step by clearing its results and
// triggering the port again.
package flow

import (
	"fmt"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/portflow/internal/engine"
	"github.com/vk/portflow/internal/registry"
)

// Port names shared by every control-flow operation.
const (
	PortBody = "body"
	PortDone = "done"
)

// Module implements registry.Module for the control-flow operations.
type Module struct{}

// Register registers all control-flow operations.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterOperation(&registry.Operation{
		Type:  "flow.for_each",
		Ports: []string{PortBody, PortDone},
		Params: []registry.Param{
			{Name: "items", Type: cty.DynamicPseudoType},
			{Name: "context", Type: cty.DynamicPseudoType, IsContext: true},
		},
		Fn: onForEach,
	})
	r.RegisterOperation(&registry.Operation{
		Type:  "flow.for_each_string",
		Ports: []string{PortBody, PortDone},
		Params: []registry.Param{
			{Name: "items", Type: cty.List(cty.String)},
			{Name: "context", Type: cty.DynamicPseudoType, IsContext: true},
		},
		Fn: onForEach,
	})
	r.RegisterOperation(&registry.Operation{
		Type:  "flow.for_each_number",
		Ports: []string{PortBody, PortDone},
		Params: []registry.Param{
			{Name: "items", Type: cty.List(cty.Number)},
			{Name: "context", Type: cty.DynamicPseudoType, IsContext: true},
		},
		Fn: onForEach,
	})
	r.RegisterOperation(&registry.Operation{
		Type:  "flow.map",
		Ports: []string{PortBody, PortDone},
		Params: []registry.Param{
			{Name: "items", Type: cty.DynamicPseudoType},
			{Name: "context", Type: cty.DynamicPseudoType, IsContext: true},
		},
		Fn: onMap,
	})
	r.RegisterOperation(&registry.Operation{
		Type:  "flow.repeat",
		Ports: []string{PortBody, PortDone},
		Params: []registry.Param{
			{Name: "count", Type: cty.Number},
			{Name: "context", Type: cty.DynamicPseudoType, IsContext: true},
		},
		Fn: onRepeat,
	})
	r.RegisterOperation(&registry.Operation{
		Type:  "flow.while",
		Ports: []string{PortBody, PortDone},
		Params: []registry.Param{
			{Name: "condition", Type: cty.Bool},
			{Name: "max_iterations", Type: cty.Number},
			{Name: "context", Type: cty.DynamicPseudoType, IsContext: true},
		},
		Fn: onWhile,
	})
}

// execContext extracts the engine execution context from a handler argument.
func execContext(args []any, idx int) (*engine.ExecContext, error) {
	ec, ok := args[idx].(*engine.ExecContext)
	if !ok {
		return nil, fmt.Errorf("missing execution context argument")
	}
	return ec, nil
}

// asList normalizes a bound collection argument. Unmapped collections are
// nil, which iterates zero times.
func asList(v any) []any {
	if v == nil {
		return nil
	}
	if list, ok := v.([]any); ok {
		return list
	}
	return []any{v}
}

// asInt truncates a bound numeric argument.
func asInt(v any) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	case int64:
		return int(n)
	}
	return 0
}
