// Package secrets keeps secret references out of payloads that leave the
// process. A secret reference is any string of the form "secret://<path>";
// the engine never resolves them, so the only safe handling is removal.
package secrets

import (
	"encoding/json"
	"strings"
)

// Scheme marks a string value as a secret reference.
const Scheme = "secret://"

const placeholder = "<redacted>"

// IsRef reports whether s is a secret reference.
func IsRef(s string) bool {
	return strings.HasPrefix(strings.TrimSpace(s), Scheme)
}

// RedactJSON replaces every secret reference inside a JSON document with a
// placeholder. The boolean reports whether anything was replaced; when the
// document is already clean the input bytes come back untouched.
func RedactJSON(data []byte) ([]byte, bool, error) {
	if len(data) == 0 {
		return data, false, nil
	}
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return data, false, err
	}
	clean, changed := redactValue(doc)
	if !changed {
		return data, false, nil
	}
	out, err := json.Marshal(clean)
	if err != nil {
		return data, false, err
	}
	return out, true, nil
}

// redactValue walks a decoded JSON document in place. Only the shapes
// json.Unmarshal produces for `any` need handling.
func redactValue(value any) (any, bool) {
	switch v := value.(type) {
	case string:
		if IsRef(v) {
			return placeholder, true
		}
		return v, false
	case map[string]any:
		changed := false
		for k, child := range v {
			if clean, c := redactValue(child); c {
				v[k] = clean
				changed = true
			}
		}
		return v, changed
	case []any:
		changed := false
		for i, child := range v {
			if clean, c := redactValue(child); c {
				v[i] = clean
				changed = true
			}
		}
		return v, changed
	default:
		return v, false
	}
}
