package extract

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// StripFences removes markdown code fence lines (```json, ```) that models
// wrap around JSON output.
func StripFences(text string) string {
	lines := strings.Split(text, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			continue
		}
		kept = append(kept, line)
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}

// Field is one key/value pair of a JSON object, in document order.
type Field struct {
	Key   string
	Value json.RawMessage
}

// Fields decodes a JSON object into its members without losing key order.
func Fields(raw json.RawMessage) ([]Field, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, errors.New("not a JSON object")
	}
	var fields []Field
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected token %v", tok)
		}
		var v json.RawMessage
		if err := dec.Decode(&v); err != nil {
			return nil, fmt.Errorf("field %q: %w", key, err)
		}
		fields = append(fields, Field{Key: key, Value: v})
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return fields, nil
}

// Kind returns the JSON kind of raw: '{', '[', '"', 'n', 't', 'f', or a digit
// class '0'. It returns 0 for empty input.
func Kind(raw json.RawMessage) byte {
	t := bytes.TrimSpace(raw)
	if len(t) == 0 {
		return 0
	}
	switch c := t[0]; c {
	case '{', '[', '"', 'n', 't', 'f':
		return c
	default:
		return '0'
	}
}

// Array decodes raw as a JSON array of raw elements.
func Array(raw json.RawMessage) ([]json.RawMessage, bool) {
	if Kind(raw) != '[' {
		return nil, false
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, false
	}
	return items, true
}

// Recover parses a complete response that produced no streamed records. It
// accepts a bare array, or an object whose first array-valued property has
// a first element that passes validate. Elements failing validate are
// dropped.
func Recover(text string, validate Validator) ([]json.RawMessage, error) {
	stripped := StripFences(text)
	body := trimToJSON(stripped)
	if body == "" {
		return nil, errors.New("empty response")
	}
	raw := json.RawMessage(body)
	if !json.Valid(raw) {
		// Prose before the payload may hold a stray brace; try again from
		// the first array.
		arr := trimToArray(stripped)
		if arr == "" || !json.Valid([]byte(arr)) {
			return nil, errors.New("response is not valid JSON")
		}
		raw = json.RawMessage(arr)
	}

	if items, ok := Array(raw); ok {
		return filter(items, validate), nil
	}
	if Kind(raw) == '{' {
		fields, err := Fields(raw)
		if err != nil {
			return nil, err
		}
		for _, f := range fields {
			items, ok := Array(f.Value)
			if !ok || len(items) == 0 {
				continue
			}
			if validate != nil && !validate(items[0]) {
				continue
			}
			return filter(items, validate), nil
		}
		if validate == nil || validate(raw) {
			return []json.RawMessage{raw}, nil
		}
	}
	return nil, errors.New("no record list found in response")
}

func filter(items []json.RawMessage, validate Validator) []json.RawMessage {
	var out []json.RawMessage
	for _, it := range items {
		if validate == nil || validate(it) {
			out = append(out, it)
		}
	}
	return out
}

// trimToJSON drops prose before the first bracket and after the last one.
func trimToArray(s string) string {
	first := strings.Index(s, "[")
	last := strings.LastIndex(s, "]")
	if first < 0 || last < first {
		return ""
	}
	return s[first : last+1]
}

func trimToJSON(s string) string {
	first := strings.IndexAny(s, "[{")
	last := strings.LastIndexAny(s, "]}")
	if first < 0 || last < first {
		return strings.TrimSpace(s)
	}
	return s[first : last+1]
}
