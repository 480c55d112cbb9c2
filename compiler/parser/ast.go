// Package parser transforms metaforge token streams into declaration ASTs.
// A declaration file contains type declarations whose members carry ordered
// attribute sets and whose types carry ordered metaclass annotations.
package parser

import (
	"strconv"

	"github.com/metaforge-lang/metaforge/compiler/lexer"
)

// SourceLocation tracks the position of an AST node in source code
type SourceLocation struct {
	File   string
	Line   int // 1-indexed
	Column int // 1-indexed
}

// Program is the root node of a parsed declaration file
type Program struct {
	Types []*TypeDecl
}

// TypeDecl represents a type declaration
type TypeDecl struct {
	Name        string
	Base        string // optional base type name, "" when none
	Annotations []*AnnotationNode
	Members     []*MemberDecl
	Loc         SourceLocation
}

// AnnotationNode represents a metaclass application attached to a type.
// OrderIndex is the textual order of the annotation on its declaration and
// is the composition tie-break.
type AnnotationNode struct {
	Name       string
	Args       []Literal
	OrderIndex int
	Loc        SourceLocation
}

// MemberDecl represents a data member or member function declaration
type MemberDecl struct {
	Name       string
	Type       *TypeRef
	Attributes []*AttributeNode
	IsFunction bool
	Params     []*ParamDecl
	Loc        SourceLocation
}

// ParamDecl represents a member function parameter
type ParamDecl struct {
	Name string
	Type *TypeRef
	Loc  SourceLocation
}

// TypeRefKind represents the kind of a type reference
type TypeRefKind int

const (
	// RefNamed references a primitive or declared type by name
	RefNamed TypeRefKind = iota
	// RefArray references a homogeneous sequence type array<T>
	RefArray
)

// TypeRef represents a reference to a type in a member declaration
type TypeRef struct {
	Kind TypeRefKind
	Name string   // for RefNamed
	Elem *TypeRef // for RefArray
	Loc  SourceLocation
}

// AttributeNode represents a single member attribute, e.g. primaryKey or
// maxLength(100). Attributes are preserved in declaration order and may
// repeat.
type AttributeNode struct {
	Name string
	Args []Literal
	Loc  SourceLocation
}

// LiteralKind represents the kind of a literal argument
type LiteralKind int

const (
	// LitIdent is a bare identifier argument, e.g. json in @serializable(json)
	LitIdent LiteralKind = iota
	// LitString is a quoted string argument
	LitString
	// LitInt is an integer argument
	LitInt
	// LitFloat is a float argument
	LitFloat
	// LitBool is a boolean argument
	LitBool
)

// Literal is an annotation or attribute argument value
type Literal struct {
	Kind  LiteralKind
	Str   string // LitIdent and LitString
	Int   int64
	Float float64
	Bool  bool
}

// String renders the literal the way it appeared in source
func (l Literal) String() string {
	switch l.Kind {
	case LitIdent:
		return l.Str
	case LitString:
		return `"` + l.Str + `"`
	case LitInt:
		return strconv.FormatInt(l.Int, 10)
	case LitFloat:
		return strconv.FormatFloat(l.Float, 'g', -1, 64)
	case LitBool:
		if l.Bool {
			return "true"
		}
		return "false"
	default:
		return ""
	}
}

// TokenLocation creates a SourceLocation from a lexer token
func TokenLocation(token lexer.Token) SourceLocation {
	return SourceLocation{
		File:   token.File,
		Line:   token.Line,
		Column: token.Column,
	}
}
