// Package serial implements the serialization backend: a generic core that
// recurses over a type's reflected members, pluggable wire formats, and the
// serializable metaclass that synthesizes to_<format>/from_<format>
// declarations. The core never special-cases a specific format.
package serial

import (
	"fmt"

	"github.com/metaforge-lang/metaforge/compiler/errors"
	"github.com/metaforge-lang/metaforge/internal/meta/model"
)

// Value is a build-time instance of a reflected type: member values keyed by
// member name. Member values are int64, float64, string, bool, *Value for
// nested objects, or []interface{} for sequences.
type Value struct {
	Type   model.Handle
	Fields map[string]interface{}
}

// NewValue creates an empty value of the given reflected type
func NewValue(t model.Handle) *Value {
	return &Value{Type: t, Fields: make(map[string]interface{})}
}

// Set assigns a member value and returns the value for chaining
func (v *Value) Set(member string, value interface{}) *Value {
	v.Fields[member] = value
	return v
}

// Get reads a member value
func (v *Value) Get(member string) (interface{}, bool) {
	val, ok := v.Fields[member]
	return val, ok
}

// BackendError is a serialization-layer failure, fatal for the affected
// target only
type BackendError struct {
	Code    string
	Message string
	Member  string
}

// Error implements the error interface
func (e *BackendError) Error() string {
	if e.Member != "" {
		return fmt.Sprintf("%s: %s (member %s)", e.Code, e.Message, e.Member)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsUnsupportedMemberType reports whether err is an UnsupportedMemberType
// failure
func IsUnsupportedMemberType(err error) bool {
	be, ok := err.(*BackendError)
	return ok && be.Code == errors.ErrUnsupportedMemberType
}

// IsUnknownFormat reports whether err names an unregistered wire format
func IsUnknownFormat(err error) bool {
	be, ok := err.(*BackendError)
	return ok && be.Code == errors.ErrUnknownFormat
}

// unsupportedMember builds an UnsupportedMemberType error
func unsupportedMember(member, detail string) *BackendError {
	return &BackendError{
		Code:    errors.ErrUnsupportedMemberType,
		Message: detail,
		Member:  member,
	}
}
