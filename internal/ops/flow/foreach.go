package flow

import (
	"context"
)

// onForEach iterates a fixed collection, driving the body subgraph once per
// item. Body nodes read the per-step values from this node's interim
// result: output.currentItem, output.currentIndex, output.totalCount,
// output.isFirst, output.isLast. The string and number variants share this
// handler; their descriptors differ only in the declared collection type.
func onForEach(ctx context.Context, args []any) (any, error) {
	ec, err := execContext(args, 1)
	if err != nil {
		return nil, err
	}
	items := asList(args[0])

	l := beginLoop(ec)
	defer l.restore()

	for i, item := range items {
		err := l.step(ctx, map[string]any{
			"currentItem":  item,
			"currentIndex": i,
			"totalCount":   len(items),
			"isFirst":      i == 0,
			"isLast":       i == len(items)-1,
		})
		if err != nil {
			return nil, err
		}
	}

	if err := l.signalDone(ctx); err != nil {
		return nil, err
	}
	return map[string]any{
		"itemCount": len(items),
		"items":     items,
	}, nil
}

// onMap is onForEach with collection semantics: after each body pass it
// collects the value then present at output.currentItem. The transform
// happens downstream through the body port; a body that writes nothing
// back yields the identity mapping.
func onMap(ctx context.Context, args []any) (any, error) {
	ec, err := execContext(args, 1)
	if err != nil {
		return nil, err
	}
	items := asList(args[0])

	l := beginLoop(ec)
	defer l.restore()

	mapped := make([]any, 0, len(items))
	for i, item := range items {
		err := l.step(ctx, map[string]any{
			"currentItem":  item,
			"currentIndex": i,
			"totalCount":   len(items),
			"isFirst":      i == 0,
			"isLast":       i == len(items)-1,
		})
		if err != nil {
			return nil, err
		}
		current, _ := l.interim.Get("output.currentItem")
		mapped = append(mapped, current)
	}

	if err := l.signalDone(ctx); err != nil {
		return nil, err
	}
	return map[string]any{
		"itemCount": len(items),
		"items":     mapped,
	}, nil
}
