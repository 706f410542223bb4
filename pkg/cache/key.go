package cache

import (
	"encoding/json"
	"fmt"
)

// RenderKey builds the render cache key for a module, request path and the
// props the page computed. Props are serialized as JSON; map keys are
// sorted by encoding/json so equal props always produce equal keys.
func RenderKey(module, urlPath string, props any) (string, error) {
	return joinKey(module, urlPath, props)
}

// IncrementalKey builds the incremental cache key for a module, request path
// and matched route parameters.
func IncrementalKey(module, urlPath string, params map[string]string) (string, error) {
	if params == nil {
		params = map[string]string{}
	}
	return joinKey(module, urlPath, params)
}

func joinKey(module, urlPath string, v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("cache key for %s: %w", module, err)
	}
	return module + "|" + urlPath + "|" + string(b), nil
}
