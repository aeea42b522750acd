package flow

import (
	"context"
)

// onWhile drives the body subgraph while the condition flag holds and the
// iteration counter stays below max_iterations, exposing output.iteration
// and output.maxIterations per step.
//
// The condition is fixed at bind time: there is currently no channel for
// the body to report the next-iteration condition back to this node, so a
// true condition always runs the loop to the max_iterations guard. Known
// gap, kept until a feedback mechanism is agreed.
func onWhile(ctx context.Context, args []any) (any, error) {
	ec, err := execContext(args, 2)
	if err != nil {
		return nil, err
	}
	condition, _ := args[0].(bool)
	maxIterations := asInt(args[1])

	l := beginLoop(ec)
	defer l.restore()

	iterations := 0
	for condition && iterations < maxIterations {
		err := l.step(ctx, map[string]any{
			"iteration":     iterations,
			"maxIterations": maxIterations,
		})
		if err != nil {
			return nil, err
		}
		iterations++
	}

	if err := l.signalDone(ctx); err != nil {
		return nil, err
	}
	return map[string]any{
		"iterations":    iterations,
		"maxIterations": maxIterations,
	}, nil
}
