package bridge

import (
	"github.com/callbridge/callbridge/domain/errors"
)

// CallContext is the read-only set of positional arguments for one call.
// Implementations are owned by the host-runtime bridge; buffers returned by
// Argument are borrowed and must not be retained after the call.
type CallContext interface {
	// Len returns the number of arguments supplied for the call.
	Len() int

	// Argument returns the raw buffer at index, or an *errors.ArgumentError
	// when the call has no such argument.
	Argument(index int) ([]byte, error)
}

// Args is a CallContext backed by an in-memory slice.
type Args [][]byte

// Len implements CallContext.
func (a Args) Len() int {
	return len(a)
}

// Argument implements CallContext.
func (a Args) Argument(index int) ([]byte, error) {
	if index < 0 || index >= len(a) {
		return nil, &errors.ArgumentError{Index: index, Count: len(a)}
	}
	return a[index], nil
}

// TextArgument returns the argument at index as text. Invalid UTF-8 is
// replaced with U+FFFD, so the only possible failure is a missing argument,
// which is returned exactly as the CallContext reported it.
func TextArgument(call CallContext, index int) (string, error) {
	buf, err := call.Argument(index)
	if err != nil {
		return "", err
	}
	return lossyString(buf), nil
}

// TypedArgument decodes the JSON argument at index into a fresh T. A decode
// failure names the argument index and T and carries the payload.
func TypedArgument[T any](call CallContext, index int) (T, error) {
	buf, err := call.Argument(index)
	if err != nil {
		var zero T
		return zero, err
	}
	return decode[T](buf, nil, index)
}
