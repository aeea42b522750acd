package flow

import (
	"context"

	"github.com/vk/portflow/internal/engine"
)

// onRepeat drives the body subgraph a fixed number of times, exposing
// output.counter, output.total, output.isFirst and output.isLast per step.
// A negative count is a usage error, raised before any port is triggered.
func onRepeat(ctx context.Context, args []any) (any, error) {
	ec, err := execContext(args, 1)
	if err != nil {
		return nil, err
	}
	count := asInt(args[0])
	if count < 0 {
		return nil, engine.NewUsageError("repeat count must be non-negative, got %d", count)
	}

	l := beginLoop(ec)
	defer l.restore()

	for i := 0; i < count; i++ {
		err := l.step(ctx, map[string]any{
			"counter": i,
			"total":   count,
			"isFirst": i == 0,
			"isLast":  i == count-1,
		})
		if err != nil {
			return nil, err
		}
	}

	if err := l.signalDone(ctx); err != nil {
		return nil, err
	}
	return map[string]any{"count": count}, nil
}
