package schema

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate_SimpleStruct(t *testing.T) {
	type TransformOptions struct {
		Filename string `json:"filename"`
		Minify   bool   `json:"minify"`
	}

	s, err := Generate[TransformOptions]()
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(s, &decoded))

	assert.Equal(t, "object", decoded["type"])
	props, ok := decoded["properties"].(map[string]any)
	require.True(t, ok, "properties should be an object")
	assert.Contains(t, props, "filename")
	assert.Contains(t, props, "minify")
}

func TestGenerate_NestedStruct(t *testing.T) {
	type Target struct {
		Env string `json:"env"`
	}
	type Options struct {
		Target  Target   `json:"target"`
		Plugins []string `json:"plugins,omitempty"`
	}

	s, err := Generate[Options]()
	require.NoError(t, err)

	schemaStr := string(s)
	assert.Contains(t, schemaStr, "target")
	assert.Contains(t, schemaStr, "env")
	assert.Contains(t, schemaStr, "plugins")
}

func TestGenerate_PointerType(t *testing.T) {
	type Options struct {
		Name string `json:"name"`
	}

	s, err := Generate[*Options]()
	require.NoError(t, err)
	assert.Contains(t, string(s), "name")
}

func TestGenerate_ScalarType(t *testing.T) {
	s, err := Generate[string]()
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(s, &decoded))
	assert.Equal(t, "string", decoded["type"])
}
