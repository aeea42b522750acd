package flow_test

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/portflow/internal/binder"
	"github.com/vk/portflow/internal/engine"
	"github.com/vk/portflow/internal/hclexpr"
	"github.com/vk/portflow/internal/ops/flow"
	"github.com/vk/portflow/internal/registry"
)

type stepRecord struct {
	item  any
	index float64
	first bool
	last  bool
}

// harness wires a control node, a recording body node and a done node.
type harness struct {
	g     *engine.Graph
	ctl   *engine.Node
	steps *[]stepRecord
	done  *atomic.Int32
	final map[string]any
}

func newHarness(t *testing.T, ctlType string, ctlInputs []binder.Mapping) *harness {
	t.Helper()

	steps := &[]stepRecord{}
	doneCount := &atomic.Int32{}
	h := &harness{steps: steps, done: doneCount}

	reg := registry.New()
	reg.Install(&flow.Module{})
	reg.RegisterOperation(&registry.Operation{
		Type: "test.record_step",
		Params: []registry.Param{
			{Name: "item", Type: cty.DynamicPseudoType},
			{Name: "index", Type: cty.Number},
			{Name: "first", Type: cty.Bool},
			{Name: "last", Type: cty.Bool},
		},
		Fn: func(ctx context.Context, args []any) (any, error) {
			*steps = append(*steps, stepRecord{
				item:  args[0],
				index: args[1].(float64),
				first: args[2].(bool),
				last:  args[3].(bool),
			})
			return nil, nil
		},
	})
	reg.RegisterOperation(&registry.Operation{
		Type:   "test.record_done",
		Params: []registry.Param{{Name: "summary", Type: cty.DynamicPseudoType}},
		Fn: func(ctx context.Context, args []any) (any, error) {
			doneCount.Add(1)
			h.final, _ = args[0].(map[string]any)
			return nil, nil
		},
	})
	require.NoError(t, reg.Validate(context.Background()))

	g := engine.NewGraph(reg, binder.New(hclexpr.New()))
	ctl, err := g.AddNode(engine.NodeSpec{ID: "ctl", Type: ctlType, InputMap: ctlInputs})
	require.NoError(t, err)
	_, err = g.AddNode(engine.NodeSpec{
		ID:   "body",
		Type: "test.record_step",
		InputMap: []binder.Mapping{
			{Target: "item", Source: "output.currentItem"},
			{Target: "index", Source: "output.currentIndex"},
			{Target: "first", Source: "output.isFirst"},
			{Target: "last", Source: "output.isLast"},
		},
	})
	require.NoError(t, err)
	_, err = g.AddNode(engine.NodeSpec{
		ID:       "finish",
		Type:     "test.record_done",
		InputMap: []binder.Mapping{{Target: "summary", Source: "output"}},
	})
	require.NoError(t, err)
	require.NoError(t, g.Connect("ctl", flow.PortBody, "body"))
	require.NoError(t, g.Connect("ctl", flow.PortDone, "finish"))

	h.g = g
	h.ctl = ctl
	return h
}

func TestForEachOverThreeStrings(t *testing.T) {
	h := newHarness(t, "flow.for_each_string", []binder.Mapping{
		{Target: "items", Source: `${["a", "b", "c"]}`},
	})

	res, err := h.ctl.Execute(context.Background(), nil)
	require.NoError(t, err)

	require.Len(t, *h.steps, 3, "body port must be triggered once per item")
	for i, want := range []string{"a", "b", "c"} {
		step := (*h.steps)[i]
		assert.Equal(t, want, step.item)
		assert.Equal(t, float64(i), step.index)
		assert.Equal(t, i == 0, step.first, "isFirst true only at index 0")
		assert.Equal(t, i == 2, step.last, "isLast true only at index 2")
	}

	assert.Equal(t, int32(1), h.done.Load(), "done triggered exactly once, after all items")

	count, ok := res.Get("output.itemCount")
	require.True(t, ok)
	assert.Equal(t, 3, count)
	require.NotNil(t, h.final, "done subgraph sees the final aggregate, not step values")
	assert.Equal(t, 3, h.final["itemCount"])
}

func TestForEachEmptyCollection(t *testing.T) {
	h := newHarness(t, "flow.for_each", nil)

	res, err := h.ctl.Execute(context.Background(), nil)
	require.NoError(t, err)

	assert.Empty(t, *h.steps)
	assert.Equal(t, int32(1), h.done.Load())
	count, _ := res.Get("output.itemCount")
	assert.Equal(t, 0, count)
}

func TestRepeatZero(t *testing.T) {
	h := newHarness(t, "flow.repeat", []binder.Mapping{
		{Target: "count", Source: "${0}"},
	})

	res, err := h.ctl.Execute(context.Background(), nil)
	require.NoError(t, err)

	assert.Empty(t, *h.steps, "repeat(0) triggers the body zero times")
	assert.Equal(t, int32(1), h.done.Load())
	count, _ := res.Get("output.count")
	assert.Equal(t, 0, count)
}

func TestRepeatNegativeIsUsageError(t *testing.T) {
	h := newHarness(t, "flow.repeat", []binder.Mapping{
		{Target: "count", Source: "${-1}"},
	})

	_, err := h.ctl.Execute(context.Background(), nil)
	require.Error(t, err)
	var usage *engine.UsageError
	assert.ErrorAs(t, err, &usage)
	assert.Empty(t, *h.steps, "no port is triggered before the precondition check")
	assert.Equal(t, int32(0), h.done.Load())
}

func TestRepeatCountsAndFlags(t *testing.T) {
	h := newHarness(t, "flow.repeat", []binder.Mapping{
		{Target: "count", Source: "${3}"},
	})

	// repeat exposes counter/total instead of item/index; the body mapping
	// for item and index resolves absent, which is fine for this recorder.
	_, err := h.ctl.Execute(context.Background(), nil)
	require.NoError(t, err)
	assert.Len(t, *h.steps, 3)
	assert.Equal(t, int32(1), h.done.Load())
}

func TestWhileRunsToMaxIterationsGuard(t *testing.T) {
	h := newHarness(t, "flow.while", []binder.Mapping{
		{Target: "condition", Source: "${true}"},
		{Target: "max_iterations", Source: "${3}"},
	})

	res, err := h.ctl.Execute(context.Background(), nil)
	require.NoError(t, err)

	// The condition is fixed at bind time, so a true condition always runs
	// to the guard.
	assert.Len(t, *h.steps, 3)
	assert.Equal(t, int32(1), h.done.Load())
	iters, _ := res.Get("output.iterations")
	assert.Equal(t, 3, iters)
}

func TestWhileFalseConditionSkipsBody(t *testing.T) {
	h := newHarness(t, "flow.while", []binder.Mapping{
		{Target: "condition", Source: "${false}"},
		{Target: "max_iterations", Source: "${10}"},
	})

	_, err := h.ctl.Execute(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, *h.steps)
	assert.Equal(t, int32(1), h.done.Load())
}

func TestMapCollectsPerItemValues(t *testing.T) {
	h := newHarness(t, "flow.map", []binder.Mapping{
		{Target: "items", Source: `${["x", "y"]}`},
	})

	res, err := h.ctl.Execute(context.Background(), nil)
	require.NoError(t, err)

	items, ok := res.Get("output.items")
	require.True(t, ok)
	// Nothing downstream transformed the current item, so map yields the
	// identity mapping.
	assert.Equal(t, []any{"x", "y"}, items)
	assert.Equal(t, int32(1), h.done.Load())
}

func TestIterationStateIsRestoredAfterLoop(t *testing.T) {
	h := newHarness(t, "flow.for_each_string", []binder.Mapping{
		{Target: "items", Source: `${["a"]}`},
	})

	res, err := h.ctl.Execute(context.Background(), nil)
	require.NoError(t, err)

	// The interim per-step values must not leak into the final result.
	_, ok := res.Get("output.currentItem")
	assert.False(t, ok)
	assert.Equal(t, engine.StateReady, h.ctl.State())
}
