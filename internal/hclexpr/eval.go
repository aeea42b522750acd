// Package hclexpr implements the binder's expression evaluator on top of
// HCL template syntax. A mapping string such as "${output.user.name}" or
// "item ${output.index + 1} of ${output.total}" is parsed as an HCL
// template and evaluated against the node's merged input tree, which is
// exposed as top-level variables.
package hclexpr

import (
	"fmt"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/function"
	"github.com/zclconf/go-cty/cty/function/stdlib"
	ctyjson "github.com/zclconf/go-cty/cty/json"

	"github.com/vk/portflow/internal/vtree"
)

// Evaluator renders HCL templates. The zero value is not usable; use New.
type Evaluator struct {
	funcs map[string]function.Function
}

// New returns an evaluator with the standard function table.
func New() *Evaluator {
	return &Evaluator{funcs: templateFuncs()}
}

// IsTemplate reports whether the mapping string contains expression markers.
// Strings without markers are treated as direct paths by the binder.
func (e *Evaluator) IsTemplate(s string) bool {
	return strings.Contains(s, "${") || strings.Contains(s, "%{")
}

// Render parses the string as an HCL template and evaluates it against the
// given variable scope, returning the resulting text.
func (e *Evaluator) Render(s string, scope map[string]any) (string, error) {
	expr, diags := hclsyntax.ParseTemplate([]byte(s), "mapping", hcl.InitialPos)
	if diags.HasErrors() {
		return "", fmt.Errorf("parsing template %q: %w", s, diags)
	}

	vars := make(map[string]cty.Value, len(scope))
	for name, v := range scope {
		cv, err := vtree.PlainToCty(v)
		if err != nil {
			return "", fmt.Errorf("exposing variable %q: %w", name, err)
		}
		vars[name] = cv
	}

	val, diags := expr.Value(&hcl.EvalContext{
		Variables: vars,
		Functions: e.funcs,
	})
	if diags.HasErrors() {
		return "", fmt.Errorf("evaluating template %q: %w", s, diags)
	}

	if str, err := convert.Convert(val, cty.String); err == nil {
		if str.IsNull() {
			return "null", nil
		}
		return str.AsString(), nil
	}
	// Composite results (a template that is exactly one list/object
	// expression) render as their JSON text, which the binder's literal
	// sniff turns back into structure.
	encoded, err := ctyjson.Marshal(val, val.Type())
	if err != nil {
		return "", fmt.Errorf("template %q result: %w", s, err)
	}
	return string(encoded), nil
}

// templateFuncs is the function table available inside expressions. The
// selection mirrors the HCL ecosystem's common string/collection helpers.
func templateFuncs() map[string]function.Function {
	return map[string]function.Function{
		"upper":      stdlib.UpperFunc,
		"lower":      stdlib.LowerFunc,
		"format":     stdlib.FormatFunc,
		"join":       stdlib.JoinFunc,
		"split":      stdlib.SplitFunc,
		"trimspace":  stdlib.TrimSpaceFunc,
		"length":     stdlib.LengthFunc,
		"coalesce":   stdlib.CoalesceFunc,
		"contains":   stdlib.ContainsFunc,
		"keys":       stdlib.KeysFunc,
		"values":     stdlib.ValuesFunc,
		"merge":      stdlib.MergeFunc,
		"jsonencode": stdlib.JSONEncodeFunc,
		"jsondecode": stdlib.JSONDecodeFunc,
		"abs":        stdlib.AbsoluteFunc,
		"ceil":       stdlib.CeilFunc,
		"floor":      stdlib.FloorFunc,
		"max":        stdlib.MaxFunc,
		"min":        stdlib.MinFunc,
	}
}
