package bridge

import (
	"context"
	"encoding/json"

	"github.com/callbridge/callbridge/domain/errors"
)

// Handler is the common signature of a native function exposed to the host.
// It reads its arguments from call and returns a JSON result.
type Handler func(ctx context.Context, call CallContext) ([]byte, error)

// TypedFunc is a native function taking one decoded request value.
type TypedFunc[Req any, Resp any] func(context.Context, Req) (Resp, error)

// TextFunc is a native function taking one text argument.
type TextFunc func(context.Context, string) (string, error)

// NewTypedHandler wraps fn into a Handler. Argument 0 is decoded as Req with
// TypedArgument and the response is marshalled as JSON.
//
// Usage:
//
//	minify := bridge.NewTypedHandler(func(ctx context.Context, opts MinifyOptions) (MinifyOutput, error) {
//	    return runMinify(ctx, opts)
//	})
func NewTypedHandler[Req any, Resp any](fn TypedFunc[Req, Resp]) Handler {
	return func(ctx context.Context, call CallContext) ([]byte, error) {
		req, err := TypedArgument[Req](call, 0)
		if err != nil {
			return nil, err
		}

		resp, err := fn(ctx, req)
		if err != nil {
			return nil, err
		}

		respBytes, err := json.Marshal(resp)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to marshal response as %s", ShapeName[Resp]())
		}
		return respBytes, nil
	}
}

// NewTextHandler wraps fn into a Handler. Argument 0 is read with
// TextArgument and the returned string is encoded as a JSON string.
func NewTextHandler(fn TextFunc) Handler {
	return func(ctx context.Context, call CallContext) ([]byte, error) {
		text, err := TextArgument(call, 0)
		if err != nil {
			return nil, err
		}

		out, err := fn(ctx, text)
		if err != nil {
			return nil, err
		}

		respBytes, err := json.Marshal(out)
		if err != nil {
			return nil, errors.Wrap(err, "failed to marshal response")
		}
		return respBytes, nil
	}
}
