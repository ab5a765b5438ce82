package tools

import (
	"context"
	"fmt"
)

// Tool is a named fetch capability the warmer invokes by name. Fetch receives
// the source's tool_params verbatim and returns either a sized collection
// (counted item by item) or a single value.
//
// A tool that also populates the cache store does so inside Fetch; the
// warmer never touches the store itself.
type Tool interface {
	Name() string
	Fetch(ctx context.Context, params map[string]any) (any, error)
}

// ---- param helpers ----

// StringParam reads a string parameter, with a default when absent.
// A present-but-wrong-type value is an error so config typos surface as
// failed warm results instead of silent defaults.
func StringParam(params map[string]any, key, def string) (string, error) {
	v, ok := params[key]
	if !ok || v == nil {
		return def, nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("param %q: expected string, got %T", key, v)
	}
	return s, nil
}

// IntParam reads an integer parameter, with a default when absent.
// JSON numbers decode as float64; both forms are accepted.
func IntParam(params map[string]any, key string, def int) (int, error) {
	v, ok := params[key]
	if !ok || v == nil {
		return def, nil
	}
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		return int(n), nil
	default:
		return 0, fmt.Errorf("param %q: expected number, got %T", key, v)
	}
}
