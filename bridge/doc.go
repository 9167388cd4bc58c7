// Package bridge mediates calls that arrive from a managed host runtime.
//
// It converts positional call arguments into Go values and converts Go
// failures into a single host-visible failure object. It has no dependency on
// a particular runtime: the wazero adapter in infrastructure/wazero is one
// producer of CallContext values, tests are another.
//
// # Basic Usage
//
//	registry, err := bridge.NewRegistry(
//	    bridge.WithMiddleware(bridge.PanicRecoveryMiddleware()),
//	    bridge.WithTypedHandler("transform", func(ctx context.Context, opts Options) (Output, error) {
//	        return transform(ctx, opts)
//	    }),
//	)
//
//	resp, failure := registry.Invoke(ctx, "transform", bridge.Args{payload})
//
// Invoke never returns an untranslated error: handler errors and recovered
// panics come back as a *HostFailure whose message is the full cause chain.
package bridge
