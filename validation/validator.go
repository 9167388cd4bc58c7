// Package validation checks decoded arguments against `validate` struct tags.
package validation

import (
	stdErrors "errors"
	"reflect"

	"github.com/callbridge/callbridge/bridge"
	"github.com/callbridge/callbridge/domain/errors"
	"github.com/go-playground/validator/v10"
)

// validate is a package-level singleton for better performance.
// Creating a new validator on each call is expensive; reusing is recommended.
var validate = validator.New()

// Struct validates v when it is a struct or a non-nil pointer to one.
// Other kinds carry no tags and always pass.
func Struct(v any) error {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil
	}
	return validate.Struct(v)
}

// Argument decodes the argument at index like bridge.TypedArgument and then
// validates it. A constraint violation is reported as a decode failure of
// that argument, so the message still names the index, the shape and the
// payload.
func Argument[T any](call bridge.CallContext, index int) (T, error) {
	v, err := bridge.TypedArgument[T](call, index)
	if err != nil {
		return v, err
	}

	if verr := Struct(v); verr != nil {
		var zero T
		payload, _ := bridge.TextArgument(call, index)
		return zero, &errors.DecodeError{
			Err:     &errors.ValidationError{Err: verr, Shape: bridge.ShapeName[T]()},
			Shape:   bridge.ShapeName[T](),
			Payload: payload,
			Index:   index,
		}
	}
	return v, nil
}

// FieldErrors returns the per-field violations carried by err, if any.
func FieldErrors(err error) validator.ValidationErrors {
	var ve validator.ValidationErrors
	if stdErrors.As(err, &ve) {
		return ve
	}
	return nil
}
