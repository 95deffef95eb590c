// Package schema holds the structured-output format descriptor and the
// provider-safe JSON Schema transformations adapters need before submitting a
// caller-supplied schema to a vendor API.
package schema

// Format describes the JSON Schema a provider response must validate against.
// Schema is a standard JSON Schema object (type/properties/required/items/enum).
type Format struct {
	// Name labels the schema in vendor payloads that require one (OpenAI,
	// Perplexity). Empty defaults to "simpleai_output".
	Name string

	// Schema is the JSON Schema the result must satisfy.
	Schema map[string]any

	// Strict requests vendor-side strict adherence where supported.
	Strict bool
}

// DefaultName is used when Format.Name is empty.
const DefaultName = "simpleai_output"

// PayloadName returns the schema name to embed in vendor payloads.
func (f *Format) PayloadName() string {
	if f == nil || f.Name == "" {
		return DefaultName
	}
	return f.Name
}

// AnthropicUnsupportedKeywords are JSON Schema keywords the Anthropic
// structured-output endpoint currently rejects.
var AnthropicUnsupportedKeywords = []string{
	"minimum",
	"maximum",
	"exclusiveMinimum",
	"exclusiveMaximum",
	"multipleOf",
	"minItems",
	"maxItems",
	"uniqueItems",
}

// ClosedObjects returns a deep copy of schema with additionalProperties=false
// set on every object-like node. Several vendors reject strict schemas whose
// object nodes leave additionalProperties open.
func ClosedObjects(schema map[string]any) map[string]any {
	out, _ := copyValue(schema).(map[string]any)
	closeObjects(out)
	return out
}

func closeObjects(node any) {
	switch n := node.(type) {
	case map[string]any:
		if isObjectNode(n) {
			n["additionalProperties"] = false
		}
		for _, v := range n {
			closeObjects(v)
		}
	case []any:
		for _, item := range n {
			closeObjects(item)
		}
	}
}

func isObjectNode(n map[string]any) bool {
	switch t := n["type"].(type) {
	case string:
		if t == "object" {
			return true
		}
	case []any:
		for _, item := range t {
			if s, ok := item.(string); ok && s == "object" {
				return true
			}
		}
	}
	for _, key := range []string{"properties", "required", "patternProperties", "additionalProperties"} {
		if _, ok := n[key]; ok {
			return true
		}
	}
	return false
}

// StripKeywords returns a deep copy of schema with the given keywords removed
// from every node.
func StripKeywords(schema map[string]any, keywords []string) map[string]any {
	drop := make(map[string]bool, len(keywords))
	for _, k := range keywords {
		drop[k] = true
	}
	out, _ := copyValue(schema).(map[string]any)
	stripKeywords(out, drop)
	return out
}

func stripKeywords(node any, drop map[string]bool) {
	switch n := node.(type) {
	case map[string]any:
		for k := range n {
			if drop[k] {
				delete(n, k)
				continue
			}
			stripKeywords(n[k], drop)
		}
	case []any:
		for _, item := range n {
			stripKeywords(item, drop)
		}
	}
}

func copyValue(v any) any {
	switch x := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, item := range x {
			out[k] = copyValue(item)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, item := range x {
			out[i] = copyValue(item)
		}
		return out
	default:
		return v
	}
}
