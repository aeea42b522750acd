// Package util provides general-purpose operations: environment variable
// lookup, logging of node data, and plain HTTP requests.
package util

import (
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/portflow/internal/registry"
)

// Module implements registry.Module for the utility operations.
type Module struct{}

// Register registers the utility operations.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterOperation(&registry.Operation{
		Type: "util.env_vars",
		Fn:   onEnvVars,
	})
	r.RegisterOperation(&registry.Operation{
		Type: "util.print",
		Params: []registry.Param{
			{Name: "value", Type: cty.DynamicPseudoType},
			{Name: "label", Type: cty.String},
		},
		Fn: onPrint,
	})
	r.RegisterOperation(&registry.Operation{
		Type: "util.http_request",
		Params: []registry.Param{
			{Name: "url", Type: cty.String},
			{Name: "method", Type: cty.String},
			{Name: "body", Type: cty.String},
			{Name: "headers", Type: cty.Map(cty.String)},
		},
		Fn: onHTTPRequest,
	})
}
