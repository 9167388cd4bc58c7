// Package wazero exposes a bridge.HandlerRegistry to WebAssembly guests
// running in the wazero runtime.
//
// Every registered handler becomes a host function with the signature
//
//	(argv i32, argc i32) -> i64
//
// argv points to argc little-endian i64 values in guest memory, each a packed
// pointer (upper 32 bits) and length (lower 32 bits) of one argument buffer.
// Arguments are read lazily through a bridge.CallContext, so a handler only
// touches the buffers it asks for.
//
// The result is a packed pointer and length of a JSON envelope written into
// memory obtained from the guest's "allocate" export:
//
//	{"result": <handler JSON>}
//	{"error": {"status": "GenericFailure", "message": "...", "detail": {...}}}
//
// # Basic Usage
//
//	registry, err := bridge.NewRegistry(
//	    bridge.WithMiddleware(bridge.PanicRecoveryMiddleware()),
//	    bridge.WithTypedHandler("transform", transform),
//	)
//	if err != nil {
//	    return err
//	}
//
//	runtime := wazero.NewRuntime(ctx)
//	err = adapter.RegisterWithRuntime(ctx, runtime, registry,
//	    adapter.WithModuleName("next_swc"),
//	)
package wazero
