package graphio

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/google/uuid"
	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/portflow/internal/binder"
	"github.com/vk/portflow/internal/ctxlog"
	"github.com/vk/portflow/internal/engine"
	"github.com/vk/portflow/internal/registry"
)

// Loader parses HCL graph documents and materializes them as engine graphs.
type Loader struct {
	reg  *registry.Registry
	bind *binder.Binder
}

// NewLoader creates a loader whose graphs resolve operations from reg and
// bind parameters through b.
func NewLoader(reg *registry.Registry, b *binder.Binder) *Loader {
	return &Loader{reg: reg, bind: b}
}

// Load parses every .hcl file under the given paths (files or directories)
// and builds a single wired graph from the node blocks found across them.
func (l *Loader) Load(ctx context.Context, paths ...string) (*engine.Graph, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Graph document loader started.", "path_count", len(paths))

	files, err := findHCLFiles(paths)
	if err != nil {
		return nil, err
	}
	logger.Debug("Discovered graph documents.", "count", len(files))

	parser := hclparse.NewParser()
	var blocks []*nodeBlock

	for _, file := range files {
		hclFile, diags := parser.ParseHCLFile(file)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to parse %s: %w", file, diags)
		}
		fileBlocks, err := decodeDocument(hclFile.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", file, err)
		}
		blocks = append(blocks, fileBlocks...)
	}

	return l.build(ctx, blocks, parser.Files())
}

// LoadSource builds a graph from an in-memory document. The filename is
// only used for diagnostics.
func (l *Loader) LoadSource(ctx context.Context, src []byte, filename string) (*engine.Graph, error) {
	parser := hclparse.NewParser()
	hclFile, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse %s: %w", filename, diags)
	}
	blocks, err := decodeDocument(hclFile.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", filename, err)
	}
	return l.build(ctx, blocks, parser.Files())
}

func decodeDocument(body hcl.Body) ([]*nodeBlock, error) {
	var root documentRoot
	diags := gohcl.DecodeBody(body, nil, &root)
	if diags.HasErrors() {
		return nil, diags
	}
	return root.Nodes, nil
}

// build turns decoded node blocks into a wired graph. Nodes are added
// first, then edges, so forward references between blocks are fine.
func (l *Loader) build(ctx context.Context, blocks []*nodeBlock, sources map[string]*hcl.File) (*engine.Graph, error) {
	logger := ctxlog.FromContext(ctx)
	g := engine.NewGraph(l.reg, l.bind)

	idByName := make(map[string]string, len(blocks))
	for _, block := range blocks {
		if block.Name == "" {
			return nil, fmt.Errorf("node of type '%s' has no name label", block.Type)
		}
		if _, dup := idByName[block.Name]; dup {
			return nil, fmt.Errorf("duplicate node name '%s'", block.Name)
		}

		id := block.ID
		if id == "" {
			id = uuid.NewString()
		}
		idByName[block.Name] = id

		inputMap, err := decodeInputMap(block, sources)
		if err != nil {
			return nil, err
		}
		outputMap, err := decodeOutputMap(block)
		if err != nil {
			return nil, err
		}

		if _, err := g.AddNode(engine.NodeSpec{
			ID:                   id,
			Name:                 block.Name,
			Type:                 block.Type,
			InputMap:             inputMap,
			OutputMap:            outputMap,
			MergeOutputWithInput: block.MergeOutput,
		}); err != nil {
			return nil, err
		}
		logger.Debug("Added node from document.", "name", block.Name, "type", block.Type, "id", id)
	}

	for _, block := range blocks {
		toID := idByName[block.Name]
		for _, dep := range block.DependsOn {
			fromID, ok := idByName[dep]
			if !ok {
				return nil, fmt.Errorf("node '%s' depends on unknown node '%s'", block.Name, dep)
			}
			if err := g.Connect(fromID, engine.DefaultPort, toID); err != nil {
				return nil, fmt.Errorf("node '%s': %w", block.Name, err)
			}
		}
		for _, port := range block.Ports {
			fromID := idByName[block.Name]
			for _, target := range port.To {
				targetID, ok := idByName[target]
				if !ok {
					return nil, fmt.Errorf("node '%s' port '%s' targets unknown node '%s'", block.Name, port.Name, target)
				}
				if err := g.Connect(fromID, port.Name, targetID); err != nil {
					return nil, fmt.Errorf("node '%s': %w", block.Name, err)
				}
			}
		}
	}

	logger.Debug("Graph document loading complete.", "nodes", len(blocks))
	return g, nil
}

// decodeInputMap reads the input block's attributes as raw source text so
// that templates survive verbatim instead of being evaluated at load time.
// Each attribute value must be a quoted string: either an upstream path
// like "output.user.name" or a template like "${output.index + 1}".
func decodeInputMap(block *nodeBlock, sources map[string]*hcl.File) ([]binder.Mapping, error) {
	if block.Input == nil {
		return nil, nil
	}
	attrs, diags := block.Input.Body.JustAttributes()
	if diags.HasErrors() {
		return nil, fmt.Errorf("node '%s': invalid input block: %w", block.Name, diags)
	}

	mappings := make([]binder.Mapping, 0, len(attrs))
	for name, attr := range attrs {
		// A quoted string parses to a TemplateExpr, except when it is exactly
		// one interpolation ("${...}"), which parses to a TemplateWrapExpr.
		switch attr.Expr.(type) {
		case *hclsyntax.TemplateExpr, *hclsyntax.TemplateWrapExpr:
		default:
			return nil, fmt.Errorf("node '%s': input '%s' must be a quoted string", block.Name, name)
		}
		mappings = append(mappings, binder.Mapping{
			Target: name,
			Source: exprSourceText(attr.Expr, sources),
		})
	}
	// JustAttributes returns a map; sort for a stable binding order.
	sort.Slice(mappings, func(i, j int) bool { return mappings[i].Target < mappings[j].Target })
	return mappings, nil
}

// decodeOutputMap reads the output block's attributes as plain path
// strings: each attribute routes a path of the handler's return value to a
// key of the node's output subtree.
func decodeOutputMap(block *nodeBlock) ([]engine.OutputMapping, error) {
	if block.Output == nil {
		return nil, nil
	}
	attrs, diags := block.Output.Body.JustAttributes()
	if diags.HasErrors() {
		return nil, fmt.Errorf("node '%s': invalid output block: %w", block.Name, diags)
	}

	mappings := make([]engine.OutputMapping, 0, len(attrs))
	for name, attr := range attrs {
		val, valDiags := attr.Expr.Value(nil)
		if valDiags.HasErrors() || val.Type() != cty.String {
			return nil, fmt.Errorf("node '%s': output '%s' must be a literal path string", block.Name, name)
		}
		mappings = append(mappings, engine.OutputMapping{
			Source: val.AsString(),
			Target: name,
		})
	}
	sort.Slice(mappings, func(i, j int) bool { return mappings[i].Target < mappings[j].Target })
	return mappings, nil
}

// exprSourceText recovers the literal source of an attribute expression
// from the parsed file bytes, with the surrounding quotes stripped. This
// keeps template markers intact for the engine's binder to render later.
func exprSourceText(expr hcl.Expression, sources map[string]*hcl.File) string {
	rng := expr.Range()
	file, ok := sources[rng.Filename]
	if !ok || rng.End.Byte > len(file.Bytes) {
		return ""
	}
	text := string(file.Bytes[rng.Start.Byte:rng.End.Byte])
	if len(text) >= 2 && text[0] == '"' && text[len(text)-1] == '"' {
		return text[1 : len(text)-1]
	}
	return text
}

// findHCLFiles walks the given paths and returns every .hcl file found,
// de-duplicated, in discovery order. Missing paths are skipped.
func findHCLFiles(paths []string) ([]string, error) {
	var all []string
	seen := make(map[string]struct{})

	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("error accessing path %s: %w", path, err)
		}

		if info.IsDir() {
			err := filepath.Walk(path, func(p string, info os.FileInfo, err error) error {
				if err != nil {
					return err
				}
				if !info.IsDir() && filepath.Ext(p) == ".hcl" {
					if _, dup := seen[p]; !dup {
						all = append(all, p)
						seen[p] = struct{}{}
					}
				}
				return nil
			})
			if err != nil {
				return nil, err
			}
		} else if filepath.Ext(path) == ".hcl" {
			if _, dup := seen[path]; !dup {
				all = append(all, path)
				seen[path] = struct{}{}
			}
		}
	}
	return all, nil
}
