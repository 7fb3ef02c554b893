package schema

import (
	"bytes"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"sync"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"
)

// compiled caches schemas by id and content digest so repeated validations
// (strategy file loads, runtime strategy updates) skip recompilation.
var compiled sync.Map

// ValidateSchema validates a value against a JSON schema document. The value
// may be raw JSON bytes or any Go value; it is normalized to the shapes
// json.Unmarshal produces before validation, so YAML-decoded documents
// validate correctly.
func ValidateSchema(id string, schemaDoc []byte, value any) error {
	if len(schemaDoc) == 0 {
		return fmt.Errorf("schema is empty")
	}
	s, err := compileSchema(id, schemaDoc)
	if err != nil {
		return err
	}
	payload, err := normalize(value)
	if err != nil {
		return fmt.Errorf("normalize payload: %w", err)
	}
	if err := s.Validate(payload); err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}
	return nil
}

func compileSchema(id string, doc []byte) (*jsonschema.Schema, error) {
	if id == "" {
		id = "schema"
	}
	resource := "inmemory://" + id
	key := fmt.Sprintf("%s#%x", resource, sha256.Sum256(doc))
	if cached, ok := compiled.Load(key); ok {
		return cached.(*jsonschema.Schema), nil
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(resource, bytes.NewReader(doc)); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	s, err := compiler.Compile(resource)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	compiled.Store(key, s)
	return s, nil
}

// normalize produces the shapes json.Unmarshal would, whatever the caller
// hands in.
func normalize(value any) (any, error) {
	var raw []byte
	switch v := value.(type) {
	case nil:
		return nil, nil
	case json.RawMessage:
		raw = v
	case []byte:
		raw = v
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encode payload: %w", err)
		}
		raw = data
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	return out, nil
}
