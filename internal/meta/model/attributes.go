package model

import "github.com/metaforge-lang/metaforge/compiler/parser"

// Attribute is a single named attribute with its arguments, e.g. primaryKey
// or maxLength(100)
type Attribute struct {
	Name string
	Args []parser.Literal
}

// IntArg returns the i-th argument as an int64, or the fallback when the
// argument is absent or not an integer
func (a Attribute) IntArg(i int, fallback int64) int64 {
	if i >= len(a.Args) || a.Args[i].Kind != parser.LitInt {
		return fallback
	}
	return a.Args[i].Int
}

// StringArg returns the i-th argument as a string, or the fallback when the
// argument is absent or not a string or identifier
func (a Attribute) StringArg(i int, fallback string) string {
	if i >= len(a.Args) {
		return fallback
	}
	arg := a.Args[i]
	if arg.Kind != parser.LitString && arg.Kind != parser.LitIdent {
		return fallback
	}
	return arg.Str
}

// AttributeSet is an ordered collection of attributes attached to a
// meta-object. Multiple attributes with the same name are permitted and
// preserved in declaration order. The set is read-only after reflection.
type AttributeSet struct {
	attrs []Attribute
}

// NewAttributeSet builds an attribute set from parsed attribute nodes,
// preserving declaration order
func NewAttributeSet(nodes []*parser.AttributeNode) AttributeSet {
	if len(nodes) == 0 {
		return AttributeSet{}
	}
	attrs := make([]Attribute, 0, len(nodes))
	for _, n := range nodes {
		attrs = append(attrs, Attribute{Name: n.Name, Args: n.Args})
	}
	return AttributeSet{attrs: attrs}
}

// Len returns the number of attributes in the set
func (s AttributeSet) Len() int {
	return len(s.attrs)
}

// At returns the attribute at position i in declaration order
func (s AttributeSet) At(i int) Attribute {
	return s.attrs[i]
}

// Has reports whether the set contains an attribute with the given name
func (s AttributeSet) Has(name string) bool {
	for _, a := range s.attrs {
		if a.Name == name {
			return true
		}
	}
	return false
}

// Get returns the first attribute with the given name
func (s AttributeSet) Get(name string) (Attribute, bool) {
	for _, a := range s.attrs {
		if a.Name == name {
			return a, true
		}
	}
	return Attribute{}, false
}

// All returns every attribute with the given name, in declaration order
func (s AttributeSet) All(name string) []Attribute {
	var result []Attribute
	for _, a := range s.attrs {
		if a.Name == name {
			result = append(result, a)
		}
	}
	return result
}
