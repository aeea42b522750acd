package util

import (
	"context"
	"encoding/json"
	"fmt"
)

// onPrint writes the bound value to stdout, one JSON document per call,
// and passes the value through as its result.
func onPrint(ctx context.Context, args []any) (any, error) {
	value := args[0]
	label, _ := args[1].(string)

	encoded, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("value is not printable: %w", err)
	}
	if label != "" {
		fmt.Printf("%s: %s\n", label, encoded)
	} else {
		fmt.Printf("%s\n", encoded)
	}
	return map[string]any{"value": value}, nil
}
