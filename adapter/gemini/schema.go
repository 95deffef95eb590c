package gemini

import (
	"fmt"

	"google.golang.org/genai"
)

var schemaTypes = map[string]genai.Type{
	"string":  genai.TypeString,
	"number":  genai.TypeNumber,
	"integer": genai.TypeInteger,
	"boolean": genai.TypeBoolean,
	"array":   genai.TypeArray,
	"object":  genai.TypeObject,
}

// responseSchema converts a JSON Schema node into the typed schema the
// GenerateContent config takes. Unknown keywords are dropped; nodes the typed
// form cannot express (e.g. union types) return an error so the caller can
// fall back to the raw JSON schema field.
func responseSchema(node map[string]any) (*genai.Schema, error) {
	if node == nil {
		return nil, nil
	}
	out := &genai.Schema{}

	switch t := node["type"].(type) {
	case nil:
	case string:
		typ, ok := schemaTypes[t]
		if !ok {
			return nil, fmt.Errorf("unsupported schema type %q", t)
		}
		out.Type = typ
	default:
		return nil, fmt.Errorf("unsupported schema type %v", t)
	}

	if desc, ok := node["description"].(string); ok {
		out.Description = desc
	}
	if format, ok := node["format"].(string); ok {
		out.Format = format
	}
	if nullable, ok := node["nullable"].(bool); ok && nullable {
		yes := true
		out.Nullable = &yes
	}

	if values, ok := node["enum"].([]any); ok {
		for _, v := range values {
			s, ok := v.(string)
			if !ok {
				return nil, fmt.Errorf("enum value %v is not a string", v)
			}
			out.Enum = append(out.Enum, s)
		}
	}

	if props, ok := node["properties"].(map[string]any); ok {
		out.Properties = make(map[string]*genai.Schema, len(props))
		for name, raw := range props {
			sub, ok := raw.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("property %q is not a schema object", name)
			}
			conv, err := responseSchema(sub)
			if err != nil {
				return nil, fmt.Errorf("property %q: %w", name, err)
			}
			out.Properties[name] = conv
		}
	}

	switch req := node["required"].(type) {
	case nil:
	case []string:
		out.Required = req
	case []any:
		for _, v := range req {
			if s, ok := v.(string); ok {
				out.Required = append(out.Required, s)
			}
		}
	}

	if items, ok := node["items"].(map[string]any); ok {
		conv, err := responseSchema(items)
		if err != nil {
			return nil, fmt.Errorf("items: %w", err)
		}
		out.Items = conv
	}

	return out, nil
}
