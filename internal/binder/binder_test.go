package binder

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/portflow/internal/hclexpr"
	"github.com/vk/portflow/internal/registry"
	"github.com/vk/portflow/internal/vtree"
)

func opWith(params ...registry.Param) *registry.Operation {
	return &registry.Operation{
		Type:   "test.op",
		Params: params,
		Fn:     func(ctx context.Context, args []any) (any, error) { return nil, nil },
	}
}

func TestUnmappedParamsGetZeroValues(t *testing.T) {
	b := New(hclexpr.New())
	op := opWith(
		registry.Param{Name: "name", Type: cty.String},
		registry.Param{Name: "count", Type: cty.Number},
		registry.Param{Name: "flag", Type: cty.Bool},
		registry.Param{Name: "items", Type: cty.DynamicPseudoType},
	)

	args, err := b.Bind(op, vtree.New(), nil)
	require.NoError(t, err)
	assert.Equal(t, []any{"", float64(0), false, nil}, args)
}

func TestDirectPathPreservesStructure(t *testing.T) {
	b := New(hclexpr.New())
	op := opWith(registry.Param{Name: "items", Type: cty.DynamicPseudoType})
	input := vtree.FromPlain(map[string]any{
		"output": map[string]any{
			"list": []any{"a", map[string]any{"k": "v"}, float64(3)},
		},
	})

	args, err := b.Bind(op, input, []Mapping{{Target: "items", Source: "output.list"}})
	require.NoError(t, err)

	want := []any{"a", map[string]any{"k": "v"}, float64(3)}
	if diff := cmp.Diff(want, args[0]); diff != "" {
		t.Fatalf("direct path binding mangled structure (-want +got):\n%s", diff)
	}
}

func TestDirectPathCoercion(t *testing.T) {
	b := New(hclexpr.New())
	op := opWith(registry.Param{Name: "count", Type: cty.Number})
	input := vtree.FromPlain(map[string]any{"output": map[string]any{"n": "42"}})

	args, err := b.Bind(op, input, []Mapping{{Target: "count", Source: "output.n"}})
	require.NoError(t, err)
	assert.Equal(t, float64(42), args[0])
}

func TestAbsentDirectPathKeepsZeroValue(t *testing.T) {
	b := New(hclexpr.New())
	op := opWith(registry.Param{Name: "name", Type: cty.String})

	args, err := b.Bind(op, vtree.New(), []Mapping{{Target: "name", Source: "output.missing"}})
	require.NoError(t, err)
	assert.Equal(t, "", args[0])
}

func TestTemplateBindingRendersAndParses(t *testing.T) {
	b := New(hclexpr.New())
	op := opWith(
		registry.Param{Name: "count", Type: cty.Number},
		registry.Param{Name: "flag", Type: cty.Bool},
	)
	input := vtree.FromPlain(map[string]any{
		"output": map[string]any{"n": float64(2), "ok": true},
	})

	args, err := b.Bind(op, input, []Mapping{
		{Target: "count", Source: "${output.n + 1}"},
		{Target: "flag", Source: "${output.ok}"},
	})
	require.NoError(t, err)
	assert.Equal(t, float64(3), args[0])
	assert.Equal(t, true, args[1])
}

func TestStringTemplateAutoQuotes(t *testing.T) {
	b := New(hclexpr.New())
	op := opWith(registry.Param{Name: "label", Type: cty.String})
	input := vtree.FromPlain(map[string]any{
		"output": map[string]any{"n": float64(7)},
	})

	// The rendered text is a bare number, but the declared type is string
	// and the template is unquoted, so it fails closed to a string literal.
	args, err := b.Bind(op, input, []Mapping{{Target: "label", Source: "${output.n}"}})
	require.NoError(t, err)
	assert.Equal(t, "7", args[0])
}

func TestTemplateJSONObjectLiteral(t *testing.T) {
	b := New(hclexpr.New())
	op := opWith(registry.Param{Name: "config", Type: cty.DynamicPseudoType})
	input := vtree.FromPlain(map[string]any{
		"output": map[string]any{"obj": map[string]any{"k": "v"}},
	})

	args, err := b.Bind(op, input, []Mapping{
		{Target: "config", Source: "${jsonencode(output.obj)}"},
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"k": "v"}, args[0])
}

func TestSubPathTargetsBuildCompositeParam(t *testing.T) {
	b := New(hclexpr.New())
	op := opWith(registry.Param{Name: "config", Type: cty.DynamicPseudoType})
	input := vtree.FromPlain(map[string]any{
		"output": map[string]any{"host": "example.com", "port": float64(8080)},
	})

	args, err := b.Bind(op, input, []Mapping{
		{Target: "config.host", Source: "output.host"},
		{Target: "config.port", Source: "output.port"},
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"host": "example.com", "port": float64(8080)}, args[0])
}

func TestBindErrorsAbortTheWholeBinding(t *testing.T) {
	b := New(hclexpr.New())
	op := opWith(registry.Param{Name: "count", Type: cty.Number})
	input := vtree.FromPlain(map[string]any{"output": map[string]any{"n": "not-a-number"}})

	_, err := b.Bind(op, input, []Mapping{{Target: "count", Source: "output.n"}})
	require.Error(t, err)
	var bindErr *BindError
	require.ErrorAs(t, err, &bindErr)
	assert.Equal(t, "count", bindErr.Param)
}

func TestUnknownTargetParamFails(t *testing.T) {
	b := New(hclexpr.New())
	op := opWith(registry.Param{Name: "count", Type: cty.Number})

	_, err := b.Bind(op, vtree.New(), []Mapping{{Target: "nope", Source: "output.n"}})
	var bindErr *BindError
	require.ErrorAs(t, err, &bindErr)
}

func TestContextSlotLeftNil(t *testing.T) {
	b := New(hclexpr.New())
	op := opWith(
		registry.Param{Name: "count", Type: cty.Number},
		registry.Param{Name: "context", Type: cty.DynamicPseudoType, IsContext: true},
	)

	args, err := b.Bind(op, vtree.New(), nil)
	require.NoError(t, err)
	assert.Nil(t, args[1])
}
