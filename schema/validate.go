package schema

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrValidate is the sentinel wrapped by all validation failures in this package.
var ErrValidate = errors.New("schema: output does not match schema")

// ValidationError reports where and why a document diverged from its schema.
type ValidationError struct {
	Path   string // JSON pointer-ish location, "$" for the root
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("schema: %s at %s", e.Reason, e.Path)
}

func (e *ValidationError) Unwrap() error { return ErrValidate }

// StripFences removes a surrounding Markdown code fence (``` or ```json) from
// raw model output. Text without a fence is returned trimmed but otherwise
// unchanged.
func StripFences(s string) string {
	t := strings.TrimSpace(s)
	if !strings.HasPrefix(t, "```") {
		return t
	}
	t = strings.TrimPrefix(t, "```")
	if i := strings.IndexByte(t, '\n'); i >= 0 {
		lang := strings.TrimSpace(t[:i])
		if lang == "" || isFenceLang(lang) {
			t = t[i+1:]
		}
	}
	t = strings.TrimSpace(t)
	t = strings.TrimSuffix(t, "```")
	return strings.TrimSpace(t)
}

func isFenceLang(s string) bool {
	for _, r := range s {
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}

// Validate parses raw (after fence stripping) as JSON and checks it against
// f.Schema. It returns the decoded document on success. A nil Format or nil
// Schema validates anything that parses as JSON.
func (f *Format) Validate(raw string) (any, error) {
	text := StripFences(raw)
	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, &ValidationError{Path: "$", Reason: fmt.Sprintf("invalid JSON: %v", err)}
	}
	if f == nil || f.Schema == nil {
		return doc, nil
	}
	if err := validateNode(doc, f.Schema, "$"); err != nil {
		return nil, err
	}
	return doc, nil
}

// Decode validates raw against the format and unmarshals it into v, rejecting
// fields v does not declare.
func (f *Format) Decode(raw string, v any) error {
	if _, err := f.Validate(raw); err != nil {
		return err
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(StripFences(raw))))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return &ValidationError{Path: "$", Reason: err.Error()}
	}
	return nil
}

func validateNode(doc any, schema map[string]any, path string) error {
	if enum, ok := schema["enum"].([]any); ok {
		if !enumContains(enum, doc) {
			return &ValidationError{Path: path, Reason: "value not in enum"}
		}
	}
	typ, _ := schema["type"].(string)
	switch typ {
	case "object":
		obj, ok := doc.(map[string]any)
		if !ok {
			return &ValidationError{Path: path, Reason: "expected object"}
		}
		return validateObject(obj, schema, path)
	case "array":
		arr, ok := doc.([]any)
		if !ok {
			return &ValidationError{Path: path, Reason: "expected array"}
		}
		if items, ok := schema["items"].(map[string]any); ok {
			for i, item := range arr {
				if err := validateNode(item, items, fmt.Sprintf("%s[%d]", path, i)); err != nil {
					return err
				}
			}
		}
	case "string":
		if _, ok := doc.(string); !ok {
			return &ValidationError{Path: path, Reason: "expected string"}
		}
	case "number":
		if !isNumber(doc) {
			return &ValidationError{Path: path, Reason: "expected number"}
		}
	case "integer":
		if !isInteger(doc) {
			return &ValidationError{Path: path, Reason: "expected integer"}
		}
	case "boolean":
		if _, ok := doc.(bool); !ok {
			return &ValidationError{Path: path, Reason: "expected boolean"}
		}
	case "null":
		if doc != nil {
			return &ValidationError{Path: path, Reason: "expected null"}
		}
	case "":
		// Untyped node: only structural keywords apply.
		if obj, ok := doc.(map[string]any); ok {
			if _, hasProps := schema["properties"]; hasProps {
				return validateObject(obj, schema, path)
			}
		}
	}
	return nil
}

func validateObject(obj map[string]any, schema map[string]any, path string) error {
	props, _ := schema["properties"].(map[string]any)
	if required, ok := schema["required"].([]any); ok {
		for _, r := range required {
			name, ok := r.(string)
			if !ok {
				continue
			}
			if _, present := obj[name]; !present {
				return &ValidationError{Path: path, Reason: "missing required property " + quote(name)}
			}
		}
	}
	for name, val := range obj {
		sub, ok := props[name].(map[string]any)
		if !ok {
			if ap, declared := schema["additionalProperties"]; declared {
				if allowed, isBool := ap.(bool); isBool && !allowed {
					return &ValidationError{Path: path, Reason: "unexpected property " + quote(name)}
				}
				if apSchema, isMap := ap.(map[string]any); isMap {
					if err := validateNode(val, apSchema, path+"."+name); err != nil {
						return err
					}
				}
			}
			continue
		}
		if err := validateNode(val, sub, path+"."+name); err != nil {
			return err
		}
	}
	return nil
}

func quote(name string) string { return fmt.Sprintf("%q", name) }

func enumContains(enum []any, doc any) bool {
	for _, e := range enum {
		if jsonEqual(e, doc) {
			return true
		}
	}
	return false
}

func jsonEqual(a, b any) bool {
	if fa, aok := toFloat(a); aok {
		fb, bok := toFloat(b)
		return bok && fa == fb
	}
	ab, err1 := json.Marshal(a)
	bb, err2 := json.Marshal(b)
	return err1 == nil && err2 == nil && bytes.Equal(ab, bb)
}

func isNumber(v any) bool {
	_, ok := toFloat(v)
	return ok
}

func isInteger(v any) bool {
	f, ok := toFloat(v)
	return ok && f == float64(int64(f))
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case json.Number:
		f, err := x.Float64()
		return f, err == nil
	case float64:
		return x, true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	default:
		return 0, false
	}
}
