package query

import (
	"iter"

	"github.com/metaforge-lang/metaforge/internal/meta/model"
)

// Predicate is a side-effect-free test over a meta-object handle
type Predicate func(model.Handle) bool

// Filter produces a lazy sequence of the handles satisfying the predicate.
// The result is finite and restartable whenever the input is.
func Filter(seq iter.Seq[model.Handle], pred Predicate) iter.Seq[model.Handle] {
	return func(yield func(model.Handle) bool) {
		for h := range seq {
			if pred(h) {
				if !yield(h) {
					return
				}
			}
		}
	}
}

// Find returns the first handle satisfying the predicate
func Find(seq iter.Seq[model.Handle], pred Predicate) (model.Handle, bool) {
	for h := range seq {
		if pred(h) {
			return h, true
		}
	}
	return model.Handle{}, false
}

// Collect drains a sequence into a slice
func Collect(seq iter.Seq[model.Handle]) []model.Handle {
	var result []model.Handle
	for h := range seq {
		result = append(result, h)
	}
	return result
}

// Count returns the number of elements in a finite sequence
func Count(seq iter.Seq[model.Handle]) int {
	n := 0
	for range seq {
		n++
	}
	return n
}

// And composes predicates with short-circuit left-to-right evaluation, so
// predicate order never affects synthesis
func And(preds ...Predicate) Predicate {
	return func(h model.Handle) bool {
		for _, p := range preds {
			if !p(h) {
				return false
			}
		}
		return true
	}
}

// Or composes predicates with short-circuit left-to-right evaluation
func Or(preds ...Predicate) Predicate {
	return func(h model.Handle) bool {
		for _, p := range preds {
			if p(h) {
				return true
			}
		}
		return false
	}
}

// Not negates a predicate
func Not(pred Predicate) Predicate {
	return func(h model.Handle) bool {
		return !pred(h)
	}
}

// HasAttribute builds a predicate testing for an attribute by name
func (e *Engine) HasAttribute(name string) Predicate {
	return func(h model.Handle) bool {
		attrs, err := e.AttributesOf(h)
		if err != nil {
			return false
		}
		return attrs.Has(name)
	}
}

// OfArithmeticType builds a predicate testing whether a member's declared
// type is arithmetic
func (e *Engine) OfArithmeticType() Predicate {
	return func(h model.Handle) bool {
		t, err := e.TypeOf(h)
		if err != nil {
			return false
		}
		arith, err := e.IsArithmetic(t)
		return err == nil && arith
	}
}
