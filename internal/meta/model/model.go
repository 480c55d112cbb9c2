// Package model implements the meta-object model: immutable, queryable
// structural descriptions of declarations, produced once per compilation
// unit. Meta-objects live in a per-unit arena and are referenced everywhere
// else through dense integer handles, never through pointers.
package model

import (
	"github.com/metaforge-lang/metaforge/compiler/parser"
)

// Kind is the tagged-variant discriminator for a meta-object
type Kind int

const (
	// KindType describes a type declaration (or a pre-seeded primitive)
	KindType Kind = iota
	// KindMember describes a data member of a type
	KindMember
	// KindFunction describes a member function declaration
	KindFunction
	// KindNamespace describes a declaration grouping (one per source file)
	KindNamespace
)

// String returns the string representation of the kind
func (k Kind) String() string {
	switch k {
	case KindType:
		return "type"
	case KindMember:
		return "member"
	case KindFunction:
		return "function"
	case KindNamespace:
		return "namespace"
	default:
		return "unknown"
	}
}

// Primitive identifies the built-in primitive types
type Primitive int

const (
	// PrimNone marks a non-primitive meta-object
	PrimNone Primitive = iota
	PrimInt
	PrimFloat
	PrimString
	PrimBool
)

// String returns the source-level name of the primitive
func (p Primitive) String() string {
	switch p {
	case PrimInt:
		return "int"
	case PrimFloat:
		return "float"
	case PrimString:
		return "string"
	case PrimBool:
		return "bool"
	default:
		return ""
	}
}

// Arithmetic reports whether the primitive is a numeric type
func (p Primitive) Arithmetic() bool {
	return p == PrimInt || p == PrimFloat
}

// Qualifiers carries the declaration qualifiers of a meta-object
type Qualifiers struct {
	Public bool
	Static bool
}

// Param describes a member function parameter
type Param struct {
	Name string
	Type Handle
}

// Handle is an opaque reference to a meta-object: a dense index into a
// compilation unit's arena tagged with the unit's identity so that stale or
// foreign handles are detected rather than misread.
type Handle struct {
	unit  uint32
	index int32
}

// Valid reports whether the handle refers to any object at all. The zero
// Handle is the canonical "no object" value; arena slot zero is reserved so
// that no real object ever compares equal to it.
func (h Handle) Valid() bool {
	return h.index > 0
}

// MetaObject is the immutable structural description of one declaration.
// Instances are owned by the arena; callers hold Handles only.
type MetaObject struct {
	Kind      Kind
	Name      string
	Primitive Primitive

	// Sequence marks a homogeneous container type; Elem is its element type
	Sequence bool
	Elem     Handle

	// Base is the base type of a declared type, zero when none
	Base Handle

	// DeclaredType is the member's type, or the function's return type
	DeclaredType Handle

	Qualifiers Qualifiers
	Attributes AttributeSet
	Params     []Param
	Loc        parser.SourceLocation

	members []Handle
}
