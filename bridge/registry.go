package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/callbridge/callbridge/log"
	"github.com/callbridge/callbridge/schema"
	"go.uber.org/zap"
)

// HandlerRegistry is an immutable collection of named host functions.
// Once created via NewRegistry, handlers cannot be added or removed.
// This ensures thread safety and lock-free lookups during execution.
type HandlerRegistry struct {
	handlers map[string]Handler
	shapes   map[string]json.RawMessage
	names    []string // sorted for consistent iteration
}

// registryBuilder accumulates configuration during registry construction.
type registryBuilder struct {
	handlers   map[string]Handler
	shapes     map[string]json.RawMessage
	middleware []Middleware
	errors     []error
}

// NewRegistry creates an immutable HandlerRegistry with the given options.
// Returns an error if any handler name is registered twice.
//
// Example usage:
//
//	registry, err := NewRegistry(
//	    WithMiddleware(PanicRecoveryMiddleware()),
//	    WithTypedHandler("transform", transform),
//	    WithTextHandler("minify", minify),
//	)
func NewRegistry(opts ...RegistryOption) (*HandlerRegistry, error) {
	b := &registryBuilder{
		handlers: make(map[string]Handler),
		shapes:   make(map[string]json.RawMessage),
	}

	for _, opt := range opts {
		opt(b)
	}

	if len(b.errors) > 0 {
		return nil, b.errors[0]
	}

	names := make([]string, 0, len(b.handlers))
	for name := range b.handlers {
		names = append(names, name)
	}
	sort.Strings(names)

	wrappedHandlers := make(map[string]Handler, len(b.handlers))
	for name, handler := range b.handlers {
		wrapped := handler
		// Apply middleware in reverse order so first middleware wraps outermost
		for i := len(b.middleware) - 1; i >= 0; i-- {
			wrapped = b.middleware[i](wrapped)
		}
		wrappedHandlers[name] = wrapped
	}

	return &HandlerRegistry{
		handlers: wrappedHandlers,
		shapes:   b.shapes,
		names:    names,
	}, nil
}

// Invoke dispatches a call by name. Every failure, including an unknown
// name or a panicking handler, comes back translated; the error result is
// never an untranslated Go error.
func (r *HandlerRegistry) Invoke(ctx context.Context, name string, call CallContext) ([]byte, *HostFailure) {
	handler, ok := r.handlers[name]
	if !ok {
		return nil, Translate(fmt.Errorf("unknown host function: %s", name))
	}

	resp, err := safeCall(HostContextFrom(ctx, name), handler, call)
	if err != nil {
		failure := Translate(err)
		log.Logger().Debug("translated host function failure",
			zap.String("function", name),
			zap.String("status", string(failure.Status)))
		return nil, failure
	}
	return resp, nil
}

// safeCall runs handler and converts a panic that escaped every middleware
// into an error.
func safeCall(ctx context.Context, handler Handler, call CallContext) (resp []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			resp, err = nil, recovered(ctx, r)
		}
	}()
	return handler(ctx, call)
}

// Has returns true if a handler with the given name is registered.
func (r *HandlerRegistry) Has(name string) bool {
	_, ok := r.handlers[name]
	return ok
}

// Names returns a sorted list of all registered handler names.
func (r *HandlerRegistry) Names() []string {
	result := make([]string, len(r.names))
	copy(result, r.names)
	return result
}

// Describe returns the JSON schema of the first argument of a typed handler.
func (r *HandlerRegistry) Describe(name string) (json.RawMessage, bool) {
	s, ok := r.shapes[name]
	return s, ok
}

func (b *registryBuilder) addHandler(name string, handler Handler) error {
	if name == "" {
		return fmt.Errorf("handler name cannot be empty")
	}
	if handler == nil {
		return fmt.Errorf("handler %q is nil", name)
	}
	if _, exists := b.handlers[name]; exists {
		return fmt.Errorf("duplicate handler name: %q", name)
	}
	b.handlers[name] = handler
	return nil
}

// WithHandler registers a raw Handler with the given name.
// Use WithTypedHandler for type-safe registration with automatic JSON handling.
func WithHandler(name string, handler Handler) RegistryOption {
	return func(b *registryBuilder) {
		if err := b.addHandler(name, handler); err != nil {
			b.errors = append(b.errors, err)
		}
	}
}

// WithTypedHandler registers fn wrapped with NewTypedHandler and records
// the JSON schema of Req for Describe.
func WithTypedHandler[Req any, Resp any](name string, fn TypedFunc[Req, Resp]) RegistryOption {
	return func(b *registryBuilder) {
		if fn == nil {
			b.errors = append(b.errors, fmt.Errorf("handler %q is nil", name))
			return
		}
		if err := b.addHandler(name, NewTypedHandler(fn)); err != nil {
			b.errors = append(b.errors, err)
			return
		}
		s, err := schema.Generate[Req]()
		if err != nil {
			b.errors = append(b.errors, fmt.Errorf("describing %q: %w", name, err))
			return
		}
		b.shapes[name] = s
	}
}

// WithTextHandler registers fn wrapped with NewTextHandler.
func WithTextHandler(name string, fn TextFunc) RegistryOption {
	return func(b *registryBuilder) {
		if fn == nil {
			b.errors = append(b.errors, fmt.Errorf("handler %q is nil", name))
			return
		}
		if err := b.addHandler(name, NewTextHandler(fn)); err != nil {
			b.errors = append(b.errors, err)
		}
	}
}

// WithMiddleware adds middleware to the registry.
// Middleware executes in FIFO order (first added wraps first).
func WithMiddleware(mw ...Middleware) RegistryOption {
	return func(b *registryBuilder) {
		b.middleware = append(b.middleware, mw...)
	}
}
