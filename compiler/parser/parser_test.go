package parser

import (
	"testing"

	"github.com/metaforge-lang/metaforge/compiler/lexer"
)

func parseSource(t *testing.T, source string) (*Program, []ParseError) {
	t.Helper()
	tokens, lexErrors := lexer.New(source, "test.mf").ScanTokens()
	if len(lexErrors) > 0 {
		t.Fatalf("Unexpected lex errors: %v", lexErrors)
	}
	return New(tokens).Parse()
}

func mustParse(t *testing.T, source string) *Program {
	t.Helper()
	program, errors := parseSource(t, source)
	if len(errors) > 0 {
		t.Fatalf("Unexpected parse errors: %v", errors)
	}
	return program
}

// TestParseSimpleType tests parsing a bare type declaration
func TestParseSimpleType(t *testing.T) {
	program := mustParse(t, `type User {
	id: int
	name: string
}`)

	if len(program.Types) != 1 {
		t.Fatalf("Expected 1 type, got %d", len(program.Types))
	}
	decl := program.Types[0]
	if decl.Name != "User" {
		t.Errorf("Expected User, got %s", decl.Name)
	}
	if len(decl.Members) != 2 {
		t.Fatalf("Expected 2 members, got %d", len(decl.Members))
	}
	if decl.Members[0].Name != "id" || decl.Members[0].Type.Name != "int" {
		t.Errorf("Unexpected first member: %+v", decl.Members[0])
	}
	if decl.Members[1].Name != "name" || decl.Members[1].Type.Name != "string" {
		t.Errorf("Unexpected second member: %+v", decl.Members[1])
	}
}

// TestParseAnnotations tests metaclass applications with arguments and
// order indices
func TestParseAnnotations(t *testing.T) {
	program := mustParse(t, `@serializable(json, binary)
@entity("users")
type User {
	id: int
}`)

	decl := program.Types[0]
	if len(decl.Annotations) != 2 {
		t.Fatalf("Expected 2 annotations, got %d", len(decl.Annotations))
	}

	first := decl.Annotations[0]
	if first.Name != "serializable" || first.OrderIndex != 0 {
		t.Errorf("Unexpected first annotation: %+v", first)
	}
	if len(first.Args) != 2 || first.Args[0].Str != "json" || first.Args[1].Str != "binary" {
		t.Errorf("Unexpected serializable args: %+v", first.Args)
	}

	second := decl.Annotations[1]
	if second.Name != "entity" || second.OrderIndex != 1 {
		t.Errorf("Unexpected second annotation: %+v", second)
	}
	if len(second.Args) != 1 || second.Args[0].Kind != LitString || second.Args[0].Str != "users" {
		t.Errorf("Unexpected entity args: %+v", second.Args)
	}
}

// TestParseInheritance tests the optional base type clause
func TestParseInheritance(t *testing.T) {
	program := mustParse(t, `type User {
	id: int
}
type Admin : User {
	level: int
}`)

	if len(program.Types) != 2 {
		t.Fatalf("Expected 2 types, got %d", len(program.Types))
	}
	if program.Types[0].Base != "" {
		t.Errorf("User should have no base, got %s", program.Types[0].Base)
	}
	if program.Types[1].Base != "User" {
		t.Errorf("Admin should extend User, got %s", program.Types[1].Base)
	}
}

// TestParseAttributes tests member attribute lists
func TestParseAttributes(t *testing.T) {
	program := mustParse(t, `type User {
	id: int [primaryKey, auto]
	email: string [unique, maxLength(100)]
}`)

	decl := program.Types[0]
	id := decl.Members[0]
	if len(id.Attributes) != 2 {
		t.Fatalf("Expected 2 attributes on id, got %d", len(id.Attributes))
	}
	if id.Attributes[0].Name != "primaryKey" || id.Attributes[1].Name != "auto" {
		t.Errorf("Unexpected id attributes: %+v", id.Attributes)
	}

	email := decl.Members[1]
	if email.Attributes[1].Name != "maxLength" {
		t.Fatalf("Expected maxLength attribute, got %s", email.Attributes[1].Name)
	}
	if len(email.Attributes[1].Args) != 1 || email.Attributes[1].Args[0].Int != 100 {
		t.Errorf("Unexpected maxLength args: %+v", email.Attributes[1].Args)
	}
}

// TestParseArrayType tests sequence type references
func TestParseArrayType(t *testing.T) {
	program := mustParse(t, `type Post {
	tags: array<string>
	scores: array<array<int>>
}`)

	tags := program.Types[0].Members[0]
	if tags.Type.Kind != RefArray {
		t.Fatalf("Expected array type, got %v", tags.Type.Kind)
	}
	if tags.Type.Elem.Name != "string" {
		t.Errorf("Expected string element, got %s", tags.Type.Elem.Name)
	}

	scores := program.Types[0].Members[1]
	if scores.Type.Kind != RefArray || scores.Type.Elem.Kind != RefArray {
		t.Fatalf("Expected nested array type, got %+v", scores.Type)
	}
	if scores.Type.Elem.Elem.Name != "int" {
		t.Errorf("Expected int element, got %s", scores.Type.Elem.Elem.Name)
	}
}

// TestParseMemberFunction tests member function declarations
func TestParseMemberFunction(t *testing.T) {
	program := mustParse(t, `type Circle {
	radius: float
	area(): float
	scaled(factor: float): float
}`)

	decl := program.Types[0]
	if decl.Members[0].IsFunction {
		t.Error("radius should not be a function")
	}

	area := decl.Members[1]
	if !area.IsFunction || len(area.Params) != 0 {
		t.Errorf("Unexpected area member: %+v", area)
	}
	if area.Type.Name != "float" {
		t.Errorf("Expected float return type, got %s", area.Type.Name)
	}

	scaled := decl.Members[2]
	if !scaled.IsFunction || len(scaled.Params) != 1 {
		t.Fatalf("Unexpected scaled member: %+v", scaled)
	}
	if scaled.Params[0].Name != "factor" || scaled.Params[0].Type.Name != "float" {
		t.Errorf("Unexpected parameter: %+v", scaled.Params[0])
	}
}

// TestParseErrorRecovery tests that the parser recovers at the next type
// declaration after an error
func TestParseErrorRecovery(t *testing.T) {
	program, errors := parseSource(t, `type Broken {
	id int
}
type Fine {
	id: int
}`)

	if len(errors) == 0 {
		t.Fatal("Expected parse errors for missing colon")
	}
	// The second declaration should still parse
	found := false
	for _, decl := range program.Types {
		if decl.Name == "Fine" {
			found = true
		}
	}
	if !found {
		t.Error("Expected parser to recover and parse type Fine")
	}
}

// TestParseErrorLocations tests that errors carry source locations
func TestParseErrorLocations(t *testing.T) {
	_, errors := parseSource(t, "type {\n}")

	if len(errors) == 0 {
		t.Fatal("Expected parse errors")
	}
	if errors[0].Location.File != "test.mf" {
		t.Errorf("Expected file test.mf, got %s", errors[0].Location.File)
	}
	if errors[0].Location.Line == 0 {
		t.Error("Expected a nonzero line number")
	}
}
