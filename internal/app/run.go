package app

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/vk/portflow/internal/ctxlog"
	"github.com/vk/portflow/internal/engine"
)

// Run loads the configured graph document and evaluates it. Execution is
// pull-based: pulling the graph's roots propagates through linear fan-out
// and port triggers to everything reachable. After the run every evaluated
// node's result is printed to the application writer.
func (a *App) Run(ctx context.Context) error {
	runID := uuid.NewString()
	logger := a.logger.With("run_id", runID)
	ctx = ctxlog.WithLogger(ctx, logger)
	logger.Debug("App.Run method started.")

	graph, err := a.loader.Load(ctx, a.config.GraphPath)
	if err != nil {
		return fmt.Errorf("failed to load graph: %w", err)
	}
	logger.Debug("Graph built from document.", "node_count", len(graph.Nodes()))

	roots := graph.Roots()
	if len(roots) == 0 {
		logger.Warn("No root nodes found in graph, execution not required.")
		return nil
	}

	logger.Info("Starting graph execution.", "roots", len(roots))
	for _, root := range roots {
		if _, err := root.Execute(ctx, nil); err != nil {
			return fmt.Errorf("execution failed at node '%s': %w", root.Name(), err)
		}
	}
	logger.Info("Execution finished.")

	return a.printResults(graph)
}

// printResults writes the result tree of every evaluated node to the
// application writer, one JSON document per node in insertion order.
func (a *App) printResults(g *engine.Graph) error {
	for _, n := range g.Nodes() {
		state := n.State()
		if state != engine.StateReady && state != engine.StateFailed {
			continue
		}
		encoded, err := json.MarshalIndent(n.Result().ToPlain(), "", "  ")
		if err != nil {
			return fmt.Errorf("node '%s' produced an unprintable result: %w", n.Name(), err)
		}
		fmt.Fprintf(a.outW, "%s: %s\n", n.Name(), encoded)
	}
	return nil
}
