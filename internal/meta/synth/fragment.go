// Package synth implements the declaration synthesis engine: metaclass
// generators emit structured fragments against a target declaration, each
// fragment tagged with the provenance of the generator that produced it.
// After a composition plan completes without fatal error, the fragments are
// merged in application order into ordinary source for the host pipeline.
package synth

import (
	"strings"

	"github.com/metaforge-lang/metaforge/compiler/errors"
)

// FragmentKind discriminates the declaration form a fragment contributes
type FragmentKind int

const (
	// FragmentMethod is a method on the target type
	FragmentMethod FragmentKind = iota
	// FragmentFunc is a free function associated with the target (e.g. a
	// static constructor)
	FragmentFunc
	// FragmentField is an extra field injected into the target's struct body
	FragmentField
)

// String returns the string representation of the fragment kind
func (k FragmentKind) String() string {
	switch k {
	case FragmentMethod:
		return "method"
	case FragmentFunc:
		return "func"
	case FragmentField:
		return "field"
	default:
		return "unknown"
	}
}

// Fragment is one unit of generated code: a structured declaration rather
// than raw text, rendered to source only at the host-pipeline boundary.
// Fragments are never mutated after creation; corrections require emitting a
// new fragment.
type Fragment struct {
	Kind FragmentKind

	// Symbol is the contract-level name of the generated declaration, e.g.
	// "to_json" or "find_by_email". Symbols are what callers of the
	// generated artifact are promised.
	Symbol string

	// GoName is the emitted Go identifier, e.g. "ToJSON"
	GoName string

	// Signature is the Go signature following the name, e.g.
	// "() string" or "(data []byte) (*User, error)". For FragmentField it
	// is the field's Go type.
	Signature string

	// Body holds the Go statements of the declaration, one per line,
	// unindented. Empty for FragmentField.
	Body []string

	// Doc is an optional single-line doc comment (without the leading //)
	Doc string

	// Imports lists the packages the fragment's body references
	Imports []string

	Provenance errors.Provenance
}

// FragmentHandle identifies an emitted fragment within one emitter
type FragmentHandle int

// goInitialisms mirrors the Go community casing for common initialisms when
// deriving Go identifiers from contract symbols
var goInitialisms = map[string]string{
	"id":   "ID",
	"sql":  "SQL",
	"json": "JSON",
	"url":  "URL",
	"uuid": "UUID",
	"api":  "API",
	"html": "HTML",
	"db":   "DB",
}

// ReceiverName derives the method receiver identifier for a target type
func ReceiverName(target string) string {
	return strings.ToLower(target[:1])
}

// GoName converts a snake_case contract symbol to a PascalCase Go identifier
func GoName(symbol string) string {
	parts := strings.Split(symbol, "_")
	for i, part := range parts {
		if part == "" {
			continue
		}
		if upper, ok := goInitialisms[strings.ToLower(part)]; ok {
			parts[i] = upper
		} else {
			parts[i] = strings.ToUpper(part[:1]) + part[1:]
		}
	}
	return strings.Join(parts, "")
}
