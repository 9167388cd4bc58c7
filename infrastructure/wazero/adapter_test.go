package wazero

import (
	"context"
	"encoding/binary"
	"encoding/json"
	stdErrors "errors"
	"testing"

	"github.com/callbridge/callbridge/bridge"
	"github.com/callbridge/callbridge/config"
	"github.com/callbridge/callbridge/domain/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tetratelabs/wazero"
)

// fakeMemory is a little-endian byte slice standing in for guest memory.
type fakeMemory []byte

func (m fakeMemory) Read(offset, byteCount uint32) ([]byte, bool) {
	end := uint64(offset) + uint64(byteCount)
	if end > uint64(len(m)) {
		return nil, false
	}
	return m[offset:end], true
}

func (m fakeMemory) ReadUint64Le(offset uint32) (uint64, bool) {
	b, ok := m.Read(offset, 8)
	if !ok {
		return 0, false
	}
	return binary.LittleEndian.Uint64(b), true
}

// layout places args at offset 64 onwards and the argv table at offset 8.
func layout(args ...[]byte) (mem fakeMemory, argv uint32) {
	mem = make(fakeMemory, 1024)
	argv = 8
	next := uint32(64)
	for i, a := range args {
		copy(mem[next:], a)
		binary.LittleEndian.PutUint64(mem[argv+uint32(i)*8:], packPtrLen(next, uint32(len(a))))
		next += uint32(len(a))
	}
	return mem, argv
}

type point struct {
	X int `json:"x"`
}

func TestDefaultAdapterConfig(t *testing.T) {
	cfg := defaultAdapterConfig()

	assert.Equal(t, config.DefaultModuleName, cfg.ModuleName)
	assert.Equal(t, uint32(config.DefaultMaxArgumentSize), cfg.MaxArgumentSize)
	assert.Equal(t, uint32(config.DefaultMaxArguments), cfg.MaxArguments)
}

func TestAdapterOptions(t *testing.T) {
	cfg := defaultAdapterConfig()
	WithModuleName("next_swc")(&cfg)
	WithMaxArgumentSize(2048)(&cfg)
	WithMaxArguments(3)(&cfg)

	assert.Equal(t, "next_swc", cfg.ModuleName)
	assert.Equal(t, uint32(2048), cfg.MaxArgumentSize)
	assert.Equal(t, uint32(3), cfg.MaxArguments)

	bc := config.Default()
	bc.ModuleName = "from_yaml"
	bc.MaxArguments = 2
	WithConfig(bc)(&cfg)
	assert.Equal(t, "from_yaml", cfg.ModuleName)
	assert.Equal(t, uint32(2), cfg.MaxArguments)
	assert.Equal(t, bc.MaxArgumentSize, cfg.MaxArgumentSize)
}

func TestPackUnpackPtrLen(t *testing.T) {
	tests := []struct {
		ptr    uint32
		length uint32
	}{
		{0, 0},
		{1, 1},
		{0xFFFFFFFF, 0xFFFFFFFF},
		{0x12345678, 0x9ABCDEF0},
		{100, 50},
	}

	for _, tt := range tests {
		gotPtr, gotLen := unpackPtrLen(packPtrLen(tt.ptr, tt.length))
		assert.Equal(t, tt.ptr, gotPtr)
		assert.Equal(t, tt.length, gotLen)
	}
}

func TestMemoryCallContext(t *testing.T) {
	mem, argv := layout([]byte("hello"), []byte{0xFF}, []byte(`{"x": "bad"}`), nil)
	call := &memoryCallContext{mem: mem, argv: argv, argc: 4, maxSize: 64}

	assert.Equal(t, 4, call.Len())

	text, err := bridge.TextArgument(call, 0)
	require.NoError(t, err)
	assert.Equal(t, "hello", text)

	text, err = bridge.TextArgument(call, 1)
	require.NoError(t, err)
	assert.Equal(t, "�", text)

	empty, err := call.Argument(3)
	require.NoError(t, err)
	assert.Empty(t, empty)

	_, err = bridge.TypedArgument[point](call, 2)
	require.Error(t, err)
	msg := bridge.Translate(err).Message
	assert.Contains(t, msg, "`2`")
	assert.Contains(t, msg, "wazero.point")
	assert.Contains(t, msg, `{"x": "bad"}`)

	_, err = call.Argument(4)
	var argErr *errors.ArgumentError
	require.ErrorAs(t, err, &argErr)
	assert.Equal(t, 4, argErr.Count)
}

func TestMemoryCallContext_Faults(t *testing.T) {
	t.Run("argument too large", func(t *testing.T) {
		mem, argv := layout([]byte("0123456789"))
		call := &memoryCallContext{mem: mem, argv: argv, argc: 1, maxSize: 4}

		_, err := call.Argument(0)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "size 10 exceeds maximum 4 bytes")
	})

	t.Run("argv outside memory", func(t *testing.T) {
		call := &memoryCallContext{mem: make(fakeMemory, 16), argv: 12, argc: 1, maxSize: 64}

		_, err := call.Argument(0)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "outside guest memory")
	})

	t.Run("buffer outside memory", func(t *testing.T) {
		mem := make(fakeMemory, 16)
		binary.LittleEndian.PutUint64(mem, packPtrLen(12, 8))
		call := &memoryCallContext{mem: mem, argv: 0, argc: 1, maxSize: 64}

		_, err := call.Argument(0)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "buffer 0xc+8 is outside guest memory")
	})
}

func newTestRegistry(t *testing.T) *bridge.HandlerRegistry {
	t.Helper()
	registry, err := bridge.NewRegistry(
		bridge.WithMiddleware(bridge.PanicRecoveryMiddleware()),
		bridge.WithTypedHandler("double", func(_ context.Context, p point) (point, error) {
			return point{X: p.X * 2}, nil
		}),
		bridge.WithHandler("fail", func(context.Context, bridge.CallContext) ([]byte, error) {
			return nil, errors.Wrap(stdErrors.New("io error"), "loading config")
		}),
		bridge.WithHandler("garbage", func(context.Context, bridge.CallContext) ([]byte, error) {
			return []byte("{not json"), nil
		}),
		bridge.WithHandler("empty", func(context.Context, bridge.CallContext) ([]byte, error) {
			return nil, nil
		}),
	)
	require.NoError(t, err)
	return registry
}

func decodeEnvelope(t *testing.T, data []byte) (json.RawMessage, *bridge.HostFailure) {
	t.Helper()
	var env struct {
		Error  *bridge.HostFailure `json:"error"`
		Result json.RawMessage     `json:"result"`
	}
	require.NoError(t, json.Unmarshal(data, &env))
	return env.Result, env.Error
}

func TestInvoke(t *testing.T) {
	registry := newTestRegistry(t)
	cfg := defaultAdapterConfig()
	ctx := WithCallerName(context.Background(), "guest")

	t.Run("success", func(t *testing.T) {
		mem, argv := layout([]byte(`{"x":21}`))
		result, failure := decodeEnvelope(t, invoke(ctx, mem, argv, 1, registry, "double", cfg))
		require.Nil(t, failure)
		assert.JSONEq(t, `{"x":42}`, string(result))
	})

	t.Run("decode failure", func(t *testing.T) {
		mem, argv := layout([]byte(`{"x":"bad"}`))
		_, failure := decodeEnvelope(t, invoke(ctx, mem, argv, 1, registry, "double", cfg))
		require.NotNil(t, failure)
		assert.Equal(t, bridge.StatusGenericFailure, failure.Status)
		assert.Contains(t, failure.Message, "Failed to deserialize argument at `0` as wazero.point")
		assert.Equal(t, "decode", failure.Detail.Type)
	})

	t.Run("handler failure keeps chain", func(t *testing.T) {
		mem, argv := layout()
		_, failure := decodeEnvelope(t, invoke(ctx, mem, argv, 0, registry, "fail", cfg))
		require.NotNil(t, failure)
		assert.Equal(t, "loading config\n\nCaused by:\n    io error", failure.Message)
	})

	t.Run("too many arguments", func(t *testing.T) {
		mem, argv := layout()
		_, failure := decodeEnvelope(t, invoke(ctx, mem, argv, cfg.MaxArguments+1, registry, "double", cfg))
		require.NotNil(t, failure)
		assert.Contains(t, failure.Message, "limit is 16")
	})

	t.Run("invalid handler JSON", func(t *testing.T) {
		mem, argv := layout()
		_, failure := decodeEnvelope(t, invoke(ctx, mem, argv, 0, registry, "garbage", cfg))
		require.NotNil(t, failure)
		assert.Contains(t, failure.Message, "handler returned invalid JSON")
	})

	t.Run("empty result is null", func(t *testing.T) {
		mem, argv := layout()
		result, failure := decodeEnvelope(t, invoke(ctx, mem, argv, 0, registry, "empty", cfg))
		require.Nil(t, failure)
		assert.Equal(t, "null", string(result))
	})
}

func TestRegisterWithRuntime(t *testing.T) {
	ctx := context.Background()
	runtime := wazero.NewRuntime(ctx)
	t.Cleanup(func() { _ = runtime.Close(ctx) })

	registry := newTestRegistry(t)
	require.NoError(t, RegisterWithRuntime(ctx, runtime, registry, WithModuleName("next_swc")))

	mod := runtime.Module("next_swc")
	require.NotNil(t, mod)

	defs := mod.ExportedFunctionDefinitions()
	for _, name := range registry.Names() {
		assert.Contains(t, defs, name)
	}
	def, ok := defs["double"]
	require.True(t, ok)
	assert.Equal(t, []string{"argv", "argc"}, def.ParamNames())
	assert.Len(t, def.ResultTypes(), 1)

	err := RegisterWithRuntime(ctx, runtime, registry, WithModuleName("next_swc"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `failed to instantiate host module "next_swc"`)
}

func TestCallerName(t *testing.T) {
	ctx := context.Background()
	_, ok := CallerNameFromContext(ctx)
	assert.False(t, ok)
	assert.Empty(t, callerNameFrom(ctx))

	ctx = WithCallerName(ctx, "plugin")
	name, ok := CallerNameFromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, "plugin", name)
}
