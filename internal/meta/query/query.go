// Package query provides the read-only reflection query engine: pure
// functions over meta-object handles plus lazy, restartable sequences for
// composite queries. No query mutates the model.
package query

import (
	"iter"

	"github.com/metaforge-lang/metaforge/internal/meta/model"
)

// Engine wraps a compilation unit for querying. All methods are total on
// valid handles; a stale or out-of-arena handle fails with InvalidHandle.
type Engine struct {
	unit *model.Unit
}

// New creates a query engine over the given unit
func New(unit *model.Unit) *Engine {
	return &Engine{unit: unit}
}

// Unit returns the underlying compilation unit
func (e *Engine) Unit() *model.Unit {
	return e.unit
}

// NameOf returns the declared name of the meta-object
func (e *Engine) NameOf(h model.Handle) (string, error) {
	obj, err := e.unit.Object(h)
	if err != nil {
		return "", err
	}
	return obj.Name, nil
}

// TypeOf returns the declared type of a member, or the return type of a
// function
func (e *Engine) TypeOf(h model.Handle) (model.Handle, error) {
	obj, err := e.unit.Object(h)
	if err != nil {
		return model.Handle{}, err
	}
	return obj.DeclaredType, nil
}

// AttributesOf returns the ordered attribute set of the meta-object
func (e *Engine) AttributesOf(h model.Handle) (model.AttributeSet, error) {
	obj, err := e.unit.Object(h)
	if err != nil {
		return model.AttributeSet{}, err
	}
	return obj.Attributes, nil
}

// KindOf returns the tagged-variant kind of the meta-object
func (e *Engine) KindOf(h model.Handle) (model.Kind, error) {
	obj, err := e.unit.Object(h)
	if err != nil {
		return 0, err
	}
	return obj.Kind, nil
}

// IsClass reports whether the handle describes a declared (non-primitive,
// non-sequence) type
func (e *Engine) IsClass(h model.Handle) (bool, error) {
	obj, err := e.unit.Object(h)
	if err != nil {
		return false, err
	}
	return obj.Kind == model.KindType && obj.Primitive == model.PrimNone && !obj.Sequence, nil
}

// IsArithmetic reports whether the handle describes a numeric primitive type
func (e *Engine) IsArithmetic(h model.Handle) (bool, error) {
	obj, err := e.unit.Object(h)
	if err != nil {
		return false, err
	}
	return obj.Primitive.Arithmetic(), nil
}

// IsString reports whether the handle describes the string primitive
func (e *Engine) IsString(h model.Handle) (bool, error) {
	obj, err := e.unit.Object(h)
	if err != nil {
		return false, err
	}
	return obj.Primitive == model.PrimString, nil
}

// IsFloat reports whether the handle describes the float primitive
func (e *Engine) IsFloat(h model.Handle) (bool, error) {
	obj, err := e.unit.Object(h)
	if err != nil {
		return false, err
	}
	return obj.Primitive == model.PrimFloat, nil
}

// IsBool reports whether the handle describes the bool primitive
func (e *Engine) IsBool(h model.Handle) (bool, error) {
	obj, err := e.unit.Object(h)
	if err != nil {
		return false, err
	}
	return obj.Primitive == model.PrimBool, nil
}

// IsSequence reports whether the handle describes a homogeneous sequence
// type; ElementOf returns its element type
func (e *Engine) IsSequence(h model.Handle) (bool, error) {
	obj, err := e.unit.Object(h)
	if err != nil {
		return false, err
	}
	return obj.Sequence, nil
}

// ElementOf returns the element type of a sequence type
func (e *Engine) ElementOf(h model.Handle) (model.Handle, error) {
	obj, err := e.unit.Object(h)
	if err != nil {
		return model.Handle{}, err
	}
	return obj.Elem, nil
}

// BaseOf returns the base type of a declared type, or an invalid handle
// when the type has none
func (e *Engine) BaseOf(h model.Handle) (model.Handle, error) {
	obj, err := e.unit.Object(h)
	if err != nil {
		return model.Handle{}, err
	}
	return obj.Base, nil
}

// DerivedTypesOf returns the declared types whose base is the given type,
// in reflection order
func (e *Engine) DerivedTypesOf(h model.Handle) ([]model.Handle, error) {
	if _, err := e.unit.Object(h); err != nil {
		return nil, err
	}
	var derived []model.Handle
	for _, t := range e.unit.DeclaredTypes() {
		obj, err := e.unit.Object(t)
		if err != nil {
			return nil, err
		}
		if obj.Base == h {
			derived = append(derived, t)
		}
	}
	return derived, nil
}

// IsPolymorphic reports whether the type participates in an inheritance
// edge: it declares a base, or some declared type derives from it
func (e *Engine) IsPolymorphic(h model.Handle) (bool, error) {
	obj, err := e.unit.Object(h)
	if err != nil {
		return false, err
	}
	if obj.Base.Valid() {
		return true, nil
	}
	derived, err := e.DerivedTypesOf(h)
	if err != nil {
		return false, err
	}
	return len(derived) > 0, nil
}

// MembersOf returns the members of a type as a lazy, finite, restartable
// sequence in declaration order. Iterating the sequence multiple times
// yields identical results.
func (e *Engine) MembersOf(h model.Handle) (iter.Seq[model.Handle], error) {
	members, err := e.unit.MembersOf(h)
	if err != nil {
		return nil, err
	}
	return func(yield func(model.Handle) bool) {
		for _, m := range members {
			if !yield(m) {
				return
			}
		}
	}, nil
}

// DataMembersOf returns only the data members of a type, skipping member
// functions
func (e *Engine) DataMembersOf(h model.Handle) (iter.Seq[model.Handle], error) {
	members, err := e.MembersOf(h)
	if err != nil {
		return nil, err
	}
	return Filter(members, func(m model.Handle) bool {
		kind, err := e.KindOf(m)
		return err == nil && kind == model.KindMember
	}), nil
}
