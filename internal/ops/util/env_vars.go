package util

import (
	"context"
	"os"
	"strings"
)

// onEnvVars returns the process environment as a map under "all".
func onEnvVars(ctx context.Context, args []any) (any, error) {
	envMap := make(map[string]any)
	for _, e := range os.Environ() {
		pair := strings.SplitN(e, "=", 2)
		if len(pair) == 2 {
			envMap[pair[0]] = pair[1]
		}
	}
	return map[string]any{"all": envMap}, nil
}
