// Package params resolves "$" references in step configs against the workflow context.
package params

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/oliveagle/jsonpath"
)

var templateToken = regexp.MustCompile(`\{(\$[^{}]*)\}`)

// Resolve returns a copy of cfg in which references are replaced by values from wctx.
//
// A string that is entirely a JSONPath ("$", "$.a.b", "$.list[0]") is replaced by
// the value it points to, keeping its type; an unresolvable path yields nil.
// Tokens of the form "{$.path}" inside a longer string are interpolated.
// Everything else passes through unchanged.
func Resolve(wctx map[string]any, cfg map[string]any) map[string]any {
	if cfg == nil {
		return map[string]any{}
	}
	out := make(map[string]any, len(cfg))
	for k, v := range cfg {
		out[k] = resolveValue(wctx, v)
	}
	return out
}

func resolveValue(wctx map[string]any, v any) any {
	switch val := v.(type) {
	case map[string]any:
		return Resolve(wctx, val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = resolveValue(wctx, item)
		}
		return out
	case string:
		return resolveString(wctx, val)
	default:
		return v
	}
}

func resolveString(wctx map[string]any, s string) any {
	if isPath(s) {
		return Lookup(wctx, s)
	}
	if !strings.Contains(s, "{$") {
		return s
	}
	return templateToken.ReplaceAllStringFunc(s, func(token string) string {
		path := token[1 : len(token)-1]
		if !isPath(path) {
			return token
		}
		value := Lookup(wctx, path)
		if value == nil {
			return ""
		}
		return fmt.Sprintf("%v", value)
	})
}

func isPath(s string) bool {
	return s == "$" || strings.HasPrefix(s, "$.") || strings.HasPrefix(s, "$[")
}

// Lookup evaluates a JSONPath against wctx, returning nil when it does not resolve.
// Malformed paths resolve to nil as well.
func Lookup(wctx map[string]any, path string) (value any) {
	if path == "$" {
		return wctx
	}
	// jsonpath panics on some malformed filter expressions.
	defer func() {
		if recover() != nil {
			value = nil
		}
	}()
	value, err := jsonpath.JsonPathLookup(map[string]any(wctx), path)
	if err != nil {
		return nil
	}
	return value
}
