package model

import (
	"errors"
	"reflect"
	"strings"
)

var (
	// ErrMalformedMessage is returned by DecodeMessage when the payload is not
	// valid JSON or does not match either inbound message shape.
	ErrMalformedMessage = errors.New("model: malformed message")

	// ErrChunkCountMismatch is returned when texts and chunk ids differ in length.
	ErrChunkCountMismatch = errors.New("model: texts and chunk ids differ in length")

	// ErrInvalidRequest is returned for missing tenant or document ids.
	ErrInvalidRequest = errors.New("model: invalid request")
)

// IsValidationError reports whether err means the message decoded but the
// request it describes can never be accepted.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrChunkCountMismatch) || errors.Is(err, ErrInvalidRequest)
}

// TypedError lets an error report its own type name.
type TypedError interface {
	error
	ErrorType() string
}

// wrapper types from errors and fmt that carry no type information of their own.
var genericErrorTypes = map[string]bool{
	"errorString": true,
	"wrapError":   true,
	"wrapErrors":  true,
	"joinError":   true,
}

// ErrorTypeName returns the name recorded as "error type" in dead letters and
// alerts. A TypedError anywhere in the chain wins; otherwise the deepest
// non-generic concrete type is used, without package or pointer.
func ErrorTypeName(err error) string {
	if err == nil {
		return ""
	}
	var typed TypedError
	if errors.As(err, &typed) {
		return typed.ErrorType()
	}

	name := ""
	for e := err; e != nil; e = errors.Unwrap(e) {
		if n := typeName(e); n != "" && !genericErrorTypes[n] {
			name = n
		}
	}
	if name == "" {
		return "Error"
	}
	return name
}

func typeName(err error) string {
	t := reflect.TypeOf(err)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	n := t.Name()
	if i := strings.LastIndex(n, "."); i >= 0 {
		n = n[i+1:]
	}
	return n
}
