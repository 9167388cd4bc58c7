package bridge

import (
	"context"
	"runtime/debug"
	"time"

	"github.com/callbridge/callbridge/domain/errors"
	"go.uber.org/zap"
)

// Middleware wraps a Handler to add cross-cutting behavior.
// Middleware executes in FIFO order (first registered wraps first, onion model).
type Middleware func(next Handler) Handler

// RegistryOption is a functional option for configuring a HandlerRegistry.
type RegistryOption func(*registryBuilder)

// PanicRecoveryMiddleware returns a middleware that turns a panicking handler
// into an *errors.PanicError. Invoke already recovers on its own; registering
// this after LoggingMiddleware lets the recovered panic be logged as a failure.
func PanicRecoveryMiddleware() Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, call CallContext) (resp []byte, err error) {
			defer func() {
				if r := recover(); r != nil {
					resp, err = nil, recovered(ctx, r)
				}
			}()
			return next(ctx, call)
		}
	}
}

// recovered wraps a recovered panic value as a chain layer naming the function.
func recovered(ctx context.Context, r any) error {
	return errors.Wrapf(&errors.PanicError{Value: r, Stack: debug.Stack()},
		"host function %s panicked", FunctionName(ctx))
}

// LoggingMiddleware returns a middleware that logs every invocation and,
// on failure, the full cause chain. A nil logger disables logging.
func LoggingMiddleware(logger *zap.Logger) Middleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next Handler) Handler {
		return func(ctx context.Context, call CallContext) ([]byte, error) {
			funcName := FunctionName(ctx)
			start := time.Now()

			logger.Debug("invoking host function",
				zap.String("function", funcName),
				zap.Int("args", call.Len()))

			resp, err := next(ctx, call)
			if err != nil {
				logger.Warn("host function failed",
					zap.String("function", funcName),
					zap.Duration("elapsed", time.Since(start)),
					zap.String("trace", errors.Trace(err)),
					zap.Error(err))
				return resp, err
			}

			logger.Debug("host function completed",
				zap.String("function", funcName),
				zap.Duration("elapsed", time.Since(start)),
				zap.Int("response_bytes", len(resp)))
			return resp, nil
		}
	}
}
