package registry

import (
	"context"
	"fmt"
	"strings"

	"github.com/vk/portflow/internal/ctxlog"
)

// Validate performs a strict integrity check over all registered
// descriptors. It is intended to run once at startup, after every module has
// registered, so descriptor mistakes surface before the first execution.
func (r *Registry) Validate(ctx context.Context) error {
	var errs []string
	logger := ctxlog.FromContext(ctx)

	for _, typeTag := range r.order {
		op := r.ops[typeTag]

		if op.Fn == nil {
			errs = append(errs, fmt.Sprintf("operation '%s': no handler function", typeTag))
		}

		seenParams := make(map[string]struct{}, len(op.Params))
		contextParams := 0
		for _, p := range op.Params {
			if p.Name == "" {
				errs = append(errs, fmt.Sprintf("operation '%s': parameter with empty name", typeTag))
				continue
			}
			if _, dup := seenParams[p.Name]; dup {
				errs = append(errs, fmt.Sprintf("operation '%s': duplicate parameter '%s'", typeTag, p.Name))
			}
			seenParams[p.Name] = struct{}{}
			if p.IsContext {
				contextParams++
			}
		}
		if contextParams > 1 {
			errs = append(errs, fmt.Sprintf("operation '%s': more than one context parameter", typeTag))
		}

		seenPorts := make(map[string]struct{}, len(op.Ports))
		for _, port := range op.Ports {
			if port == "" {
				errs = append(errs, fmt.Sprintf("operation '%s': declared port with empty name", typeTag))
				continue
			}
			if _, dup := seenPorts[port]; dup {
				errs = append(errs, fmt.Sprintf("operation '%s': duplicate port '%s'", typeTag, port))
			}
			seenPorts[port] = struct{}{}
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("registry validation failed:\n- %s", strings.Join(errs, "\n- "))
	}

	logger.Debug("Registry validation passed.", "operations", len(r.order))
	return nil
}
