package model

import (
	"fmt"

	"github.com/metaforge-lang/metaforge/compiler/errors"
	"github.com/metaforge-lang/metaforge/compiler/parser"
)

// ReflectError is a model-layer failure: a declaration the model cannot
// fully resolve, a reflection cycle, or a stale handle.
type ReflectError struct {
	Code     string
	Message  string
	Location parser.SourceLocation
}

// Error implements the error interface
func (e *ReflectError) Error() string {
	return fmt.Sprintf("%s:%d:%d: %s: %s",
		e.Location.File, e.Location.Line, e.Location.Column, e.Code, e.Message)
}

// Diagnostic converts the error into a structured diagnostic
func (e *ReflectError) Diagnostic() errors.Diagnostic {
	return errors.New("model", e.Code, e.Message, errors.SourceLocation{
		File:   e.Location.File,
		Line:   e.Location.Line,
		Column: e.Location.Column,
	}, errors.Error)
}

// notReflectable builds a NotReflectable error
func notReflectable(loc parser.SourceLocation, format string, args ...interface{}) *ReflectError {
	return &ReflectError{
		Code:     errors.ErrNotReflectable,
		Message:  fmt.Sprintf(format, args...),
		Location: loc,
	}
}

// reflectionCycle builds a ReflectionCycle error naming the cycle path
func reflectionCycle(loc parser.SourceLocation, path string) *ReflectError {
	return &ReflectError{
		Code:     errors.ErrReflectionCycle,
		Message:  fmt.Sprintf("reflection cycle: %s", path),
		Location: loc,
	}
}

// invalidHandle builds an InvalidHandle error
func invalidHandle(h Handle) *ReflectError {
	return &ReflectError{
		Code:    errors.ErrInvalidHandle,
		Message: fmt.Sprintf("invalid meta-object handle (unit %d, index %d)", h.unit, h.index),
	}
}

// IsNotReflectable reports whether err is a NotReflectable failure
func IsNotReflectable(err error) bool {
	re, ok := err.(*ReflectError)
	return ok && re.Code == errors.ErrNotReflectable
}

// IsReflectionCycle reports whether err is a ReflectionCycle failure
func IsReflectionCycle(err error) bool {
	re, ok := err.(*ReflectError)
	return ok && re.Code == errors.ErrReflectionCycle
}

// IsInvalidHandle reports whether err is an InvalidHandle failure
func IsInvalidHandle(err error) bool {
	re, ok := err.(*ReflectError)
	return ok && re.Code == errors.ErrInvalidHandle
}
