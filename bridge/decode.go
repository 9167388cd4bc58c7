package bridge

import (
	"encoding/json"
	"reflect"
	"strings"
	"unicode/utf8"

	"github.com/callbridge/callbridge/domain/errors"
)

// DecodeJSON deserializes text into a fresh T. On failure the returned error
// names T and carries text verbatim in addition to the parser message.
func DecodeJSON[T any](text string) (T, error) {
	return decode[T]([]byte(text), &text, errors.NoIndex)
}

// DecodeJSONBytes is DecodeJSON for a byte payload.
func DecodeJSONBytes[T any](data []byte) (T, error) {
	return decode[T](data, nil, errors.NoIndex)
}

// ShapeName returns the name used for T in decode failures.
func ShapeName[T any]() string {
	return reflect.TypeFor[T]().String()
}

// decode unmarshals data into T. text, when set, is the caller's original
// input and is reported verbatim; otherwise data is rendered lossily.
func decode[T any](data []byte, text *string, index int) (T, error) {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		payload := lossyString(data)
		if text != nil {
			payload = *text
		}
		var zero T
		return zero, &errors.DecodeError{
			Err:     err,
			Shape:   ShapeName[T](),
			Payload: payload,
			Index:   index,
		}
	}
	return v, nil
}

// lossyString converts b to a string, replacing each maximal ill-formed
// subsequence with a single U+FFFD.
func lossyString(b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}

	var sb strings.Builder
	sb.Grow(len(b) + 8)
	for len(b) > 0 {
		r, size := utf8.DecodeRune(b)
		if r == utf8.RuneError && size <= 1 {
			sb.WriteRune(utf8.RuneError)
			b = b[invalidPrefixLen(b):]
			continue
		}
		sb.Write(b[:size])
		b = b[size:]
	}
	return sb.String()
}

// invalidPrefixLen returns the length of the ill-formed sequence at the start
// of b: the lead byte plus every continuation byte that could still have
// completed it.
func invalidPrefixLen(b []byte) int {
	lo, hi := byte(0x80), byte(0xBF)
	var need int
	switch c := b[0]; {
	case c >= 0xC2 && c <= 0xDF:
		need = 1
	case c == 0xE0:
		need, lo = 2, 0xA0
	case c == 0xED:
		need, hi = 2, 0x9F
	case c >= 0xE1 && c <= 0xEF:
		need = 2
	case c == 0xF0:
		need, lo = 3, 0x90
	case c >= 0xF1 && c <= 0xF3:
		need = 3
	case c == 0xF4:
		need, hi = 3, 0x8F
	default:
		return 1
	}

	n := 1
	for n <= need && n < len(b) && b[n] >= lo && b[n] <= hi {
		lo, hi = 0x80, 0xBF
		n++
	}
	return n
}
