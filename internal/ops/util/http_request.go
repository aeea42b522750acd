package util

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/vk/portflow/internal/ctxlog"
)

// onHTTPRequest performs a plain HTTP request and returns status_code,
// status and body. Method defaults to GET.
func onHTTPRequest(ctx context.Context, args []any) (any, error) {
	url, _ := args[0].(string)
	method, _ := args[1].(string)
	body, _ := args[2].(string)
	headers, _ := args[3].(map[string]any)

	if url == "" {
		return nil, fmt.Errorf("url is required")
	}
	if method == "" {
		method = http.MethodGet
	}

	logger := ctxlog.FromContext(ctx)
	logger.Info("Making HTTP request", "method", method, "url", url)

	var reqBody io.Reader
	if body != "" {
		reqBody = strings.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for k, v := range headers {
		if s, ok := v.(string); ok {
			req.Header.Set(k, s)
		}
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	logger.Info("Received HTTP response", "status", resp.Status)

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return map[string]any{
		"status_code": resp.StatusCode,
		"status":      resp.Status,
		"body":        string(bodyBytes),
	}, nil
}
