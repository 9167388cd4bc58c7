package wazero

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/callbridge/callbridge/bridge"
	"github.com/callbridge/callbridge/config"
	"github.com/callbridge/callbridge/log"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"
)

// AdapterConfig holds configuration for the wazero adapter.
type AdapterConfig struct {
	// ModuleName is the host module name (default: config.DefaultModuleName).
	ModuleName string

	// MaxArgumentSize limits the size of one argument read from guest memory.
	MaxArgumentSize uint32

	// MaxArguments limits argc.
	MaxArguments uint32
}

// AdapterOption configures the adapter.
type AdapterOption func(*AdapterConfig)

// WithModuleName sets the host module name.
func WithModuleName(name string) AdapterOption {
	return func(c *AdapterConfig) {
		c.ModuleName = name
	}
}

// WithMaxArgumentSize sets the maximum size of a single argument buffer.
func WithMaxArgumentSize(size uint32) AdapterOption {
	return func(c *AdapterConfig) {
		c.MaxArgumentSize = size
	}
}

// WithMaxArguments sets the maximum number of arguments per call.
func WithMaxArguments(n uint32) AdapterOption {
	return func(c *AdapterConfig) {
		c.MaxArguments = n
	}
}

// WithConfig applies the limits and module name from a BridgeConfig.
func WithConfig(cfg config.BridgeConfig) AdapterOption {
	return func(c *AdapterConfig) {
		c.ModuleName = cfg.ModuleName
		c.MaxArgumentSize = cfg.MaxArgumentSize
		c.MaxArguments = cfg.MaxArguments
	}
}

func defaultAdapterConfig() AdapterConfig {
	return AdapterConfig{
		ModuleName:      config.DefaultModuleName,
		MaxArgumentSize: config.DefaultMaxArgumentSize,
		MaxArguments:    config.DefaultMaxArguments,
	}
}

// callResponse is the envelope written back to the guest.
type callResponse struct {
	Error  *bridge.HostFailure `json:"error,omitempty"`
	Result json.RawMessage     `json:"result,omitempty"`
}

// RegisterWithRuntime registers all handlers from registry with a wazero
// runtime under a single host module.
//
// Each handler is wrapped to:
//   - Expose the guest's argv/argc as a bridge.CallContext
//   - Invoke the handler through the registry, which translates failures
//   - Allocate response memory in the guest using the "allocate" export
//   - Return packed i64 ptr+len of the response envelope
func RegisterWithRuntime(ctx context.Context, runtime wazero.Runtime, registry *bridge.HandlerRegistry, opts ...AdapterOption) error {
	cfg := defaultAdapterConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	builder := runtime.NewHostModuleBuilder(cfg.ModuleName)

	for _, name := range registry.Names() {
		funcName := name
		builder.NewFunctionBuilder().
			WithGoModuleFunction(api.GoModuleFunc(func(ctx context.Context, mod api.Module, stack []uint64) {
				stack[0] = handleRegistryCall(ctx, mod, stack, registry, funcName, cfg)
			}), []api.ValueType{api.ValueTypeI32, api.ValueTypeI32}, []api.ValueType{api.ValueTypeI64}).
			WithParameterNames("argv", "argc").
			Export(funcName)
	}

	if _, err := builder.Instantiate(ctx); err != nil {
		return fmt.Errorf("failed to instantiate host module %q: %w", cfg.ModuleName, err)
	}
	return nil
}

// handleRegistryCall runs one guest call and returns the packed response.
func handleRegistryCall(ctx context.Context, mod api.Module, stack []uint64, registry *bridge.HandlerRegistry, name string, cfg AdapterConfig) uint64 {
	ctx = WithCallerName(ctx, CallerName(ctx, mod))
	payload := invoke(ctx, mod.Memory(), api.DecodeU32(stack[0]), api.DecodeU32(stack[1]), registry, name, cfg)
	return writeResponse(ctx, mod, payload)
}

// invoke builds the call context over guest memory, dispatches it and
// encodes the envelope. It never fails: every problem becomes an error envelope.
func invoke(ctx context.Context, mem guestMemory, argv, argc uint32, registry *bridge.HandlerRegistry, name string, cfg AdapterConfig) []byte {
	if argc > cfg.MaxArguments {
		err := fmt.Errorf("call to %s has %d arguments, limit is %d", name, argc, cfg.MaxArguments)
		log.Logger().Warn("wazero: rejected call", zap.String("function", name), zap.Error(err))
		return encodeResponse(nil, bridge.Translate(err))
	}

	call := &memoryCallContext{
		mem:     mem,
		argv:    argv,
		argc:    argc,
		maxSize: cfg.MaxArgumentSize,
	}
	resp, failure := registry.Invoke(ctx, name, call)
	if failure != nil {
		log.Logger().Debug("wazero: host function returned failure",
			zap.String("function", name),
			zap.String("caller", callerNameFrom(ctx)))
	}
	return encodeResponse(resp, failure)
}

func encodeResponse(result []byte, failure *bridge.HostFailure) []byte {
	env := callResponse{Error: failure}
	if failure == nil {
		if len(result) == 0 {
			result = []byte("null")
		}
		env.Result = result
	}

	data, err := json.Marshal(env)
	if err != nil {
		// Result was not valid JSON; report that instead of dropping the call.
		data, _ = json.Marshal(callResponse{
			Error: bridge.Translate(fmt.Errorf("handler returned invalid JSON: %w", err)),
		})
	}
	return data
}

// writeResponse allocates memory in the guest and writes the response bytes.
// Returns packed ptr+len or 0 on failure.
func writeResponse(ctx context.Context, mod api.Module, data []byte) uint64 {
	allocateFn := mod.ExportedFunction("allocate")
	if allocateFn == nil {
		log.Logger().Error("wazero: guest module missing 'allocate' export", zap.String("module", mod.Name()))
		return 0
	}

	results, err := allocateFn.Call(ctx, uint64(len(data)))
	if err != nil || len(results) == 0 {
		log.Logger().Error("wazero: failed to call guest allocate", zap.String("module", mod.Name()), zap.Error(err))
		return 0
	}
	ptr := api.DecodeU32(results[0])

	if !mod.Memory().Write(ptr, data) {
		log.Logger().Error("wazero: failed to write response to guest memory",
			zap.String("module", mod.Name()),
			zap.Uint32("ptr", ptr),
			zap.Int("len", len(data)))
		return 0
	}

	return packPtrLen(ptr, uint32(len(data))) //nolint:gosec // G115: Data length is bounded by guest memory
}

// packPtrLen packs a pointer and length into a single i64.
// Upper 32 bits: pointer, lower 32 bits: length.
func packPtrLen(ptr, length uint32) uint64 {
	return (uint64(ptr) << 32) | uint64(length)
}

// unpackPtrLen unpacks a pointer and length from a packed i64.
func unpackPtrLen(packed uint64) (ptr, length uint32) {
	ptr = uint32(packed >> 32)           //nolint:gosec // G115: Packed format stores 32-bit values
	length = uint32(packed & 0xFFFFFFFF) //nolint:gosec // G115: Packed format stores 32-bit values
	return ptr, length
}
