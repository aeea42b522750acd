package graphio

import "github.com/hashicorp/hcl/v2"

// documentRoot decodes the top-level blocks of a graph document.
type documentRoot struct {
	Nodes  []*nodeBlock `hcl:"node,block"`
	Remain hcl.Body     `hcl:",remain"`
}

// nodeBlock is the HCL schema for a single `node "op_type" "name"` block.
type nodeBlock struct {
	Type string `hcl:"type,label"`
	Name string `hcl:"name,label"`

	// ID overrides the generated node id. Wiring always refers to nodes by
	// their name label, so explicit ids are only needed by hosts that
	// address nodes directly.
	ID          string   `hcl:"id,optional"`
	MergeOutput bool     `hcl:"merge_output,optional"`
	DependsOn   []string `hcl:"depends_on,optional"`

	Input  *attrsBlock  `hcl:"input,block"`
	Output *attrsBlock  `hcl:"output,block"`
	Ports  []*portBlock `hcl:"port,block"`
}

// attrsBlock captures a block body whose attributes are read as raw
// expressions rather than decoded into a fixed struct.
type attrsBlock struct {
	Body hcl.Body `hcl:",remain"`
}

// portBlock wires one declared port of a port-driven node to named targets.
type portBlock struct {
	Name string   `hcl:"name,label"`
	To   []string `hcl:"to"`
}
