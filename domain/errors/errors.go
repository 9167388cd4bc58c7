// Package errors provides the layered error types produced on the native side
// of the call boundary. All error types support unwrapping via errors.As() and
// errors.Is().
package errors

import (
	stdErrors "errors"
	"fmt"
	"strings"

	"github.com/callbridge/callbridge/domain/entities"
)

// ErrorDetail is an alias to entities.ErrorDetail for convenience.
type ErrorDetail = entities.ErrorDetail

// DetailedError is implemented by error types that can describe themselves as
// a structured ErrorDetail.
type DetailedError interface {
	error
	ToErrorDetail() *entities.ErrorDetail
}

// Layer is implemented by errors that add exactly one context message on top
// of an underlying cause. Trace uses it to print each layer once.
type Layer interface {
	error
	Context() string
	Unwrap() error
}

// Chain attaches a context message to a cause.
type Chain struct {
	Cause error
	Msg   string
}

// Wrap attaches msg as a new outermost context layer. A nil err stays nil.
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return &Chain{Cause: err, Msg: msg}
}

// Wrapf is Wrap with a format string.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return &Chain{Cause: err, Msg: fmt.Sprintf(format, args...)}
}

func (e *Chain) Error() string {
	if e.Cause == nil {
		return e.Msg
	}
	return e.Msg + ": " + e.Cause.Error()
}

// Context returns the message this layer added.
func (e *Chain) Context() string {
	return e.Msg
}

func (e *Chain) Unwrap() error {
	return e.Cause
}

// Format renders the full cause chain for %+v and the one-line form otherwise.
func (e *Chain) Format(s fmt.State, verb rune) {
	formatLayer(e, s, verb)
}

// Trace renders err and every cause beneath it, outermost context first:
//
//	outer context
//
//	Caused by:
//	    0: middle context
//	    1: root cause
//
// A single cause is printed without an index.
func Trace(err error) string {
	if err == nil {
		return ""
	}

	var layers []string
	for cur := err; cur != nil; cur = stdErrors.Unwrap(cur) {
		layers = append(layers, ownMessage(cur))
	}

	var b strings.Builder
	b.WriteString(layers[0])
	causes := layers[1:]
	if len(causes) == 0 {
		return b.String()
	}

	b.WriteString("\n\nCaused by:")
	for i, c := range causes {
		prefix := "    "
		if len(causes) > 1 {
			prefix = fmt.Sprintf("    %d: ", i)
		}
		b.WriteString("\n")
		b.WriteString(prefix)
		b.WriteString(indent(c, len(prefix)))
	}
	return b.String()
}

// ownMessage returns the part of err's message that err itself contributed.
func ownMessage(err error) string {
	if l, ok := err.(Layer); ok {
		return l.Context()
	}

	msg := err.Error()
	if inner := stdErrors.Unwrap(err); inner != nil {
		msg = strings.TrimSuffix(msg, ": "+inner.Error())
	}
	return msg
}

// indent aligns continuation lines of a multi-line cause with the text after
// its prefix of the given width.
func indent(s string, width int) string {
	return strings.ReplaceAll(s, "\n", "\n"+strings.Repeat(" ", width))
}

func formatLayer(err error, s fmt.State, verb rune) {
	switch {
	case verb == 'v' && s.Flag('+'):
		fmt.Fprint(s, Trace(err))
	case verb == 'q':
		fmt.Fprintf(s, "%q", err.Error())
	default:
		fmt.Fprint(s, err.Error())
	}
}

// ArgumentError reports a positional argument that the call does not have.
type ArgumentError struct {
	Index int
	Count int
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("argument at index %d is missing (call has %d arguments)", e.Index, e.Count)
}

// ToErrorDetail implements DetailedError.
func (e *ArgumentError) ToErrorDetail() *entities.ErrorDetail {
	return entities.NewErrorDetail("argument", e.Error()).
		WithCode("argument_missing").
		WithDetails(map[string]any{"index": e.Index, "count": e.Count})
}

// NoIndex marks a DecodeError that did not come from a positional argument.
const NoIndex = -1

// DecodeError reports a payload that could not be decoded into Shape.
// Payload holds the input text verbatim so the failure can be reproduced
// from the message alone.
type DecodeError struct {
	Err     error
	Shape   string
	Payload string
	Index   int
}

// Context returns the decode context layer without the parser message.
func (e *DecodeError) Context() string {
	if e.Index >= 0 {
		return fmt.Sprintf("Failed to deserialize argument at `%d` as %s\nJSON: %s", e.Index, e.Shape, e.Payload)
	}
	return fmt.Sprintf("failed to deserialize as %s\nJSON: %s", e.Shape, e.Payload)
}

func (e *DecodeError) Error() string {
	if e.Err == nil {
		return e.Context()
	}
	return e.Context() + ": " + e.Err.Error()
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Format renders the full cause chain for %+v and the one-line form otherwise.
func (e *DecodeError) Format(s fmt.State, verb rune) {
	formatLayer(e, s, verb)
}

// ToErrorDetail implements DetailedError.
func (e *DecodeError) ToErrorDetail() *entities.ErrorDetail {
	details := map[string]any{"shape": e.Shape, "payload": e.Payload}
	if e.Index >= 0 {
		details["index"] = e.Index
	}
	detail := entities.NewErrorDetail("decode", e.Context()).
		WithCode("decode_failed").
		WithDetails(details)
	if e.Err != nil {
		detail.Wrapped = ToErrorDetail(e.Err)
	}
	return detail
}

// ValidationError reports a decoded value that violates its constraints.
type ValidationError struct {
	Err   error
	Shape string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s failed validation: %v", e.Shape, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// ToErrorDetail implements DetailedError.
func (e *ValidationError) ToErrorDetail() *entities.ErrorDetail {
	return entities.NewErrorDetail("validation", e.Error()).WithCode(e.Shape)
}

// PanicError carries a value recovered from a panicking handler.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	switch v := e.Value.(type) {
	case error:
		return "panic: " + v.Error()
	case string:
		return "panic: " + v
	default:
		return fmt.Sprintf("panic: %v", v)
	}
}

// Unwrap returns the panic value when it is an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// ToErrorDetail implements DetailedError.
func (e *PanicError) ToErrorDetail() *entities.ErrorDetail {
	return entities.NewErrorDetail("panic", e.Error())
}

// ToErrorDetail converts a Go error to a structured ErrorDetail. The first
// DetailedError found in the chain decides the category; anything else is
// reported as internal.
func ToErrorDetail(err error) *entities.ErrorDetail {
	if err == nil {
		return nil
	}

	var e *entities.ErrorDetail
	if stdErrors.As(err, &e) {
		return e
	}

	var de DetailedError
	if stdErrors.As(err, &de) {
		return de.ToErrorDetail()
	}

	return &entities.ErrorDetail{
		Message: err.Error(),
		Type:    "internal",
	}
}
