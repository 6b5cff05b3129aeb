package llm

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Models wrap JSON in prose, code fences, or truncated output more often
// than they return it bare. ExtractObject is the best-effort adapter that
// digs the first balanced {...} out of free text; the fallback ladders in
// the calling stages are built on top of it.

var ErrNoJSONObject = errors.New("no JSON object found in model output")

// ExtractObject returns the first balanced top-level JSON object in raw.
// Braces inside string literals are ignored. The result is additionally
// required to be valid JSON.
func ExtractObject(raw string) ([]byte, error) {
	start := -1
	depth := 0
	inString := false
	escaped := false

	for i := 0; i < len(raw); i++ {
		c := raw[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			if start >= 0 {
				inString = true
			}
		case '{':
			if start < 0 {
				start = i
			}
			depth++
		case '}':
			if start < 0 {
				continue
			}
			depth--
			if depth == 0 {
				candidate := []byte(raw[start : i+1])
				if !json.Valid(candidate) {
					return nil, fmt.Errorf("%w: candidate is not valid JSON", ErrNoJSONObject)
				}
				return candidate, nil
			}
		}
	}
	return nil, ErrNoJSONObject
}

// DecodeObject extracts the first JSON object from raw and unmarshals it
// into out.
func DecodeObject(raw string, out any) error {
	obj, err := ExtractObject(raw)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(obj, out); err != nil {
		return fmt.Errorf("decode model JSON: %w", err)
	}
	return nil
}
