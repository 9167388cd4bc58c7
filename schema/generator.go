// Package schema describes argument shapes as JSON Schema.
package schema

import (
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/invopop/jsonschema"
)

// Generate creates a JSON schema for the shape of T.
// It uses the `invopop/jsonschema` library to reflect on T
// and generate a standard JSON Schema (Draft 2020-12).
func Generate[T any]() (json.RawMessage, error) {
	return GenerateFromType(reflect.TypeFor[T]())
}

// GenerateFromType creates a JSON schema for t.
func GenerateFromType(t reflect.Type) (json.RawMessage, error) {
	base := t
	if base.Kind() == reflect.Pointer {
		base = base.Elem()
	}
	reflector := jsonschema.Reflector{
		// Only structs have a definition to expand inline.
		ExpandedStruct: base.Kind() == reflect.Struct,
	}
	s := reflector.ReflectFromType(t)

	jsonBytes, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema for %s: %w", t, err)
	}

	return jsonBytes, nil
}
