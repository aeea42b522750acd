// Package binder converts a node's merged upstream input tree into the
// ordered, typed argument list its operation expects. A mapping whose source
// string carries no expression markers is a direct path into the input tree
// and preserves composite structure; anything else is rendered as a template
// and re-parsed as a JSON literal before coercion.
package binder

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"

	"github.com/vk/portflow/internal/registry"
	"github.com/vk/portflow/internal/vtree"
)

// Evaluator renders a mapping string against a variable scope. It is the
// narrow seam that keeps the expression language pluggable: the binder's
// control flow never depends on which engine is behind it.
type Evaluator interface {
	// IsTemplate reports whether the string contains expression markers.
	IsTemplate(s string) bool
	// Render evaluates the template against the scope, producing text.
	Render(s string, scope map[string]any) (string, error)
}

// Mapping is one inputMap entry: a destination parameter path and the
// source path or expression that produces its value. A dotted target such
// as "config.url" addresses a sub-path inside the "config" parameter.
type Mapping struct {
	Target string
	Source string
}

// BindError reports a failure to produce a single parameter. Per the
// engine's failure policy one BindError aborts the whole node evaluation.
type BindError struct {
	Param  string
	Source string
	Err    error
}

func (e *BindError) Error() string {
	return fmt.Sprintf("binding parameter '%s' from %q: %v", e.Param, e.Source, e.Err)
}

func (e *BindError) Unwrap() error { return e.Err }

// Binder produces operation argument lists.
type Binder struct {
	eval Evaluator
}

// New returns a Binder backed by the given expression evaluator. A nil
// evaluator is allowed; it restricts mappings to direct paths.
func New(eval Evaluator) *Binder {
	return &Binder{eval: eval}
}

// Bind produces the ordered argument list for op from the merged input tree
// and the node's input mappings. The slot for a context-flagged parameter is
// left nil; the engine injects the execution context there. Mapped
// parameters whose source path is absent keep their zero value.
func (b *Binder) Bind(op *registry.Operation, input *vtree.Tree, mappings []Mapping) ([]any, error) {
	args := make([]any, len(op.Params))
	slot := make(map[string]int, len(op.Params))
	for i, p := range op.Params {
		slot[p.Name] = i
		if !p.IsContext {
			args[i] = zeroValue(p.Type)
		}
	}

	// Sub-path targets accumulate into a per-parameter tree, coerced as a
	// whole after all mappings are applied.
	partial := make(map[string]*vtree.Tree)

	for _, m := range mappings {
		paramName, subPath, _ := strings.Cut(m.Target, ".")
		idx, ok := slot[paramName]
		if !ok {
			return nil, &BindError{Param: paramName, Source: m.Source,
				Err: fmt.Errorf("operation '%s' declares no such parameter", op.Type)}
		}
		param := op.Params[idx]
		if param.IsContext {
			return nil, &BindError{Param: paramName, Source: m.Source,
				Err: fmt.Errorf("context parameter cannot be mapped")}
		}

		value, present, err := b.resolve(m.Source, param, subPath == "", input)
		if err != nil {
			return nil, &BindError{Param: paramName, Source: m.Source, Err: err}
		}
		if !present {
			continue
		}

		if subPath == "" {
			coerced, err := coerce(value, param.Type)
			if err != nil {
				return nil, &BindError{Param: paramName, Source: m.Source, Err: err}
			}
			args[idx] = coerced
			continue
		}

		tree, ok := partial[paramName]
		if !ok {
			tree = vtree.New()
			partial[paramName] = tree
		}
		if err := tree.Set(subPath, value); err != nil {
			return nil, &BindError{Param: paramName, Source: m.Source, Err: err}
		}
	}

	for paramName, tree := range partial {
		idx := slot[paramName]
		coerced, err := coerce(tree.ToPlain(), op.Params[idx].Type)
		if err != nil {
			return nil, &BindError{Param: paramName, Err: err}
		}
		args[idx] = coerced
	}

	return args, nil
}

// resolve produces the raw (pre-coercion) value for one mapping. The
// returned bool is false when a direct path is absent from the input tree.
func (b *Binder) resolve(source string, param registry.Param, wholeParam bool, input *vtree.Tree) (any, bool, error) {
	if b.eval == nil || !b.eval.IsTemplate(source) {
		v, ok := input.Get(source)
		return v, ok, nil
	}

	// String parameters whose template is not statically quoted fail closed
	// to a string literal: the rendered text is the value, no JSON re-parse.
	autoQuote := wholeParam && param.Type == cty.String && !staticallyQuoted(source)

	scope, _ := input.ToPlain().(map[string]any)
	rendered, err := b.eval.Render(source, scope)
	if err != nil {
		return nil, false, err
	}
	if autoQuote {
		return rendered, true, nil
	}
	return parseRendered(rendered), true, nil
}

// staticallyQuoted reports whether the template's static portion already
// wraps the expression in double quotes.
func staticallyQuoted(s string) bool {
	trimmed := strings.TrimSpace(s)
	return strings.HasPrefix(trimmed, `"`) && strings.HasSuffix(trimmed, `"`)
}

// parseRendered interprets rendered template text. Text that looks like a
// JSON literal is parsed as one; everything else is taken as a plain string.
func parseRendered(s string) any {
	if looksLikeJSON(s) {
		var out any
		if err := json.Unmarshal([]byte(strings.TrimSpace(s)), &out); err == nil {
			return out
		}
	}
	return s
}

// looksLikeJSON applies the literal sniff: an object, array or string
// opener, a signed digit, or a case-insensitive boolean/null token.
func looksLikeJSON(s string) bool {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return false
	}
	switch trimmed[0] {
	case '{', '[', '"', '-', '+':
		return true
	}
	if trimmed[0] >= '0' && trimmed[0] <= '9' {
		return true
	}
	switch strings.ToLower(trimmed) {
	case "true", "false", "null":
		return true
	}
	return false
}

// coerce converts a plain value to the parameter's declared cty type and
// back to plain Go form. Dynamic parameters pass through untouched, which is
// what preserves composite structure for direct path bindings.
func coerce(v any, ty cty.Type) (any, error) {
	if ty == cty.NilType || ty == cty.DynamicPseudoType {
		return v, nil
	}
	cv, err := vtree.PlainToCty(v)
	if err != nil {
		return nil, err
	}
	converted, err := convert.Convert(cv, ty)
	if err != nil {
		return nil, fmt.Errorf("cannot coerce to %s: %w", ty.FriendlyName(), err)
	}
	return vtree.CtyToPlain(converted)
}

// zeroValue returns the unmapped-parameter default for a declared type:
// zero for value types, nil (absent) for everything else.
func zeroValue(ty cty.Type) any {
	switch ty {
	case cty.String:
		return ""
	case cty.Number:
		return float64(0)
	case cty.Bool:
		return false
	default:
		return nil
	}
}
