package parser

import (
	"fmt"

	"github.com/metaforge-lang/metaforge/compiler/lexer"
)

// ParseError represents a syntax error with its source location
type ParseError struct {
	Message  string
	Location SourceLocation
}

// Error implements the error interface
func (e ParseError) Error() string {
	return fmt.Sprintf("%s:%d:%d: %s", e.Location.File, e.Location.Line, e.Location.Column, e.Message)
}

// Parser transforms token streams into a declaration AST
type Parser struct {
	tokens    []lexer.Token
	current   int
	errors    []ParseError
	panicMode bool
}

// New creates a new Parser from a token stream
func New(tokens []lexer.Token) *Parser {
	return &Parser{
		tokens: tokens,
		errors: []ParseError{},
	}
}

// Parse parses the token stream and returns the AST and any errors
func (p *Parser) Parse() (*Program, []ParseError) {
	program := &Program{Types: []*TypeDecl{}}

	for !p.isAtEnd() {
		if p.match(lexer.TOKEN_COMMENT) {
			continue
		}

		if p.check(lexer.TOKEN_AT) || p.check(lexer.TOKEN_TYPE) {
			if decl := p.parseTypeDecl(); decl != nil {
				program.Types = append(program.Types, decl)
			}
		} else {
			p.addError(fmt.Sprintf("Unexpected token: %s. Expected a type declaration or annotation.", p.peek().Lexeme))
			p.synchronize()
		}
	}

	return program, p.errors
}

// parseTypeDecl parses an annotated type declaration:
//
//	@name(args...) ... type Name [: Base] { members }
func (p *Parser) parseTypeDecl() *TypeDecl {
	annotations := []*AnnotationNode{}
	for p.check(lexer.TOKEN_AT) {
		ann := p.parseAnnotation(len(annotations))
		if ann == nil {
			return nil
		}
		annotations = append(annotations, ann)
	}

	typeToken := p.peek()
	if !p.match(lexer.TOKEN_TYPE) {
		p.addError("Expected 'type' keyword after annotations")
		p.synchronize()
		return nil
	}

	name, ok := p.consumeIdentifier("Expected type name after 'type'")
	if !ok {
		p.synchronize()
		return nil
	}

	decl := &TypeDecl{
		Name:        name,
		Annotations: annotations,
		Members:     []*MemberDecl{},
		Loc:         TokenLocation(typeToken),
	}

	// Optional base type: type Admin : User { ... }
	if p.match(lexer.TOKEN_COLON) {
		base, ok := p.consumeIdentifier("Expected base type name after ':'")
		if !ok {
			p.synchronize()
			return nil
		}
		decl.Base = base
	}

	if !p.consume(lexer.TOKEN_LBRACE, "Expected '{' to open type body") {
		p.synchronize()
		return nil
	}

	for !p.check(lexer.TOKEN_RBRACE) && !p.isAtEnd() {
		if p.match(lexer.TOKEN_COMMENT) {
			continue
		}
		if member := p.parseMember(); member != nil {
			decl.Members = append(decl.Members, member)
		} else {
			p.synchronizeMember()
		}
	}

	if !p.consume(lexer.TOKEN_RBRACE, "Expected '}' to close type body") {
		return nil
	}

	return decl
}

// parseAnnotation parses one metaclass application: @name or @name(args)
func (p *Parser) parseAnnotation(orderIndex int) *AnnotationNode {
	atToken := p.advance() // consume '@'

	name, ok := p.consumeIdentifier("Expected metaclass name after '@'")
	if !ok {
		p.synchronize()
		return nil
	}

	ann := &AnnotationNode{
		Name:       name,
		OrderIndex: orderIndex,
		Loc:        TokenLocation(atToken),
	}

	if p.match(lexer.TOKEN_LPAREN) {
		args, ok := p.parseArguments()
		if !ok {
			return nil
		}
		ann.Args = args
	}

	return ann
}

// parseMember parses a data member or member function declaration:
//
//	name: type [attrs]
//	name(params): type
func (p *Parser) parseMember() *MemberDecl {
	nameToken := p.peek()
	name, ok := p.consumeIdentifier("Expected member name")
	if !ok {
		return nil
	}

	member := &MemberDecl{
		Name: name,
		Loc:  TokenLocation(nameToken),
	}

	// Member function: name(params): returnType
	if p.match(lexer.TOKEN_LPAREN) {
		member.IsFunction = true
		for !p.check(lexer.TOKEN_RPAREN) && !p.isAtEnd() {
			param := p.parseParam()
			if param == nil {
				return nil
			}
			member.Params = append(member.Params, param)
			if !p.check(lexer.TOKEN_RPAREN) && !p.consume(lexer.TOKEN_COMMA, "Expected ',' between parameters") {
				return nil
			}
		}
		if !p.consume(lexer.TOKEN_RPAREN, "Expected ')' after parameter list") {
			return nil
		}
	}

	if !p.consume(lexer.TOKEN_COLON, fmt.Sprintf("Expected ':' after member name '%s'", name)) {
		return nil
	}

	memberType := p.parseTypeRef()
	if memberType == nil {
		return nil
	}
	member.Type = memberType

	// Optional attribute list: [primaryKey, maxLength(100)]
	if p.match(lexer.TOKEN_LBRACKET) {
		for !p.check(lexer.TOKEN_RBRACKET) && !p.isAtEnd() {
			attr := p.parseAttribute()
			if attr == nil {
				return nil
			}
			member.Attributes = append(member.Attributes, attr)
			if !p.check(lexer.TOKEN_RBRACKET) && !p.consume(lexer.TOKEN_COMMA, "Expected ',' between attributes") {
				return nil
			}
		}
		if !p.consume(lexer.TOKEN_RBRACKET, "Expected ']' after attribute list") {
			return nil
		}
	}

	return member
}

// parseParam parses a single function parameter: name: type
func (p *Parser) parseParam() *ParamDecl {
	nameToken := p.peek()
	name, ok := p.consumeIdentifier("Expected parameter name")
	if !ok {
		return nil
	}
	if !p.consume(lexer.TOKEN_COLON, "Expected ':' after parameter name") {
		return nil
	}
	paramType := p.parseTypeRef()
	if paramType == nil {
		return nil
	}
	return &ParamDecl{Name: name, Type: paramType, Loc: TokenLocation(nameToken)}
}

// parseTypeRef parses a type reference: a named type or array<T>
func (p *Parser) parseTypeRef() *TypeRef {
	nameToken := p.peek()
	name, ok := p.consumeIdentifier("Expected type name")
	if !ok {
		return nil
	}

	if name == "array" {
		if !p.consume(lexer.TOKEN_LESS, "Expected '<' after 'array'") {
			return nil
		}
		elem := p.parseTypeRef()
		if elem == nil {
			return nil
		}
		if !p.consume(lexer.TOKEN_GREATER, "Expected '>' to close array type") {
			return nil
		}
		return &TypeRef{Kind: RefArray, Elem: elem, Loc: TokenLocation(nameToken)}
	}

	return &TypeRef{Kind: RefNamed, Name: name, Loc: TokenLocation(nameToken)}
}

// parseAttribute parses one attribute: name or name(args)
func (p *Parser) parseAttribute() *AttributeNode {
	nameToken := p.peek()
	name, ok := p.consumeIdentifier("Expected attribute name")
	if !ok {
		return nil
	}

	attr := &AttributeNode{Name: name, Loc: TokenLocation(nameToken)}

	if p.match(lexer.TOKEN_LPAREN) {
		args, ok := p.parseArguments()
		if !ok {
			return nil
		}
		attr.Args = args
	}

	return attr
}

// parseArguments parses a parenthesized argument list; the opening paren has
// already been consumed
func (p *Parser) parseArguments() ([]Literal, bool) {
	args := []Literal{}

	for !p.check(lexer.TOKEN_RPAREN) && !p.isAtEnd() {
		lit, ok := p.parseLiteral()
		if !ok {
			return nil, false
		}
		args = append(args, lit)
		if !p.check(lexer.TOKEN_RPAREN) && !p.consume(lexer.TOKEN_COMMA, "Expected ',' between arguments") {
			return nil, false
		}
	}

	if !p.consume(lexer.TOKEN_RPAREN, "Expected ')' after argument list") {
		return nil, false
	}

	return args, true
}

// parseLiteral parses a single argument literal
func (p *Parser) parseLiteral() (Literal, bool) {
	token := p.peek()
	switch token.Type {
	case lexer.TOKEN_IDENTIFIER:
		p.advance()
		return Literal{Kind: LitIdent, Str: token.Lexeme}, true
	case lexer.TOKEN_STRING_LITERAL:
		p.advance()
		return Literal{Kind: LitString, Str: token.Literal.(string)}, true
	case lexer.TOKEN_INT_LITERAL:
		p.advance()
		return Literal{Kind: LitInt, Int: token.Literal.(int64)}, true
	case lexer.TOKEN_FLOAT_LITERAL:
		p.advance()
		return Literal{Kind: LitFloat, Float: token.Literal.(float64)}, true
	case lexer.TOKEN_TRUE:
		p.advance()
		return Literal{Kind: LitBool, Bool: true}, true
	case lexer.TOKEN_FALSE:
		p.advance()
		return Literal{Kind: LitBool, Bool: false}, true
	default:
		p.addError(fmt.Sprintf("Expected literal argument, got: %s", token.Lexeme))
		return Literal{}, false
	}
}

// Helper methods for token manipulation

func (p *Parser) isAtEnd() bool {
	if p.current >= len(p.tokens) {
		return true
	}
	return p.tokens[p.current].Type == lexer.TOKEN_EOF
}

func (p *Parser) peek() lexer.Token {
	if p.current >= len(p.tokens) {
		return p.tokens[len(p.tokens)-1]
	}
	return p.tokens[p.current]
}

func (p *Parser) previous() lexer.Token {
	if p.current > 0 {
		return p.tokens[p.current-1]
	}
	return p.tokens[0]
}

func (p *Parser) advance() lexer.Token {
	if !p.isAtEnd() {
		p.current++
	}
	return p.previous()
}

func (p *Parser) check(tokenType lexer.TokenType) bool {
	if p.isAtEnd() {
		return false
	}
	return p.peek().Type == tokenType
}

// match consumes the current token if it matches any of the given types
func (p *Parser) match(types ...lexer.TokenType) bool {
	for _, tokenType := range types {
		if p.check(tokenType) {
			p.advance()
			return true
		}
	}
	return false
}

// consume consumes the expected token or records an error
func (p *Parser) consume(tokenType lexer.TokenType, message string) bool {
	if p.check(tokenType) {
		p.advance()
		return true
	}
	p.addError(message)
	return false
}

// consumeIdentifier consumes an identifier and returns its lexeme
func (p *Parser) consumeIdentifier(message string) (string, bool) {
	if p.check(lexer.TOKEN_IDENTIFIER) {
		return p.advance().Lexeme, true
	}
	p.addError(message)
	return "", false
}

// addError records a parse error at the current token
func (p *Parser) addError(message string) {
	if p.panicMode {
		return
	}
	p.panicMode = true
	p.errors = append(p.errors, ParseError{
		Message:  message,
		Location: TokenLocation(p.peek()),
	})
}

// synchronize skips tokens until the next likely declaration boundary
func (p *Parser) synchronize() {
	p.panicMode = false
	for !p.isAtEnd() {
		if p.check(lexer.TOKEN_TYPE) || p.check(lexer.TOKEN_AT) {
			return
		}
		if p.previous().Type == lexer.TOKEN_RBRACE {
			return
		}
		p.advance()
	}
}

// synchronizeMember skips tokens until the next member or the end of the body
func (p *Parser) synchronizeMember() {
	p.panicMode = false
	for !p.isAtEnd() && !p.check(lexer.TOKEN_RBRACE) {
		if p.check(lexer.TOKEN_IDENTIFIER) && p.current > 0 {
			prev := p.previous().Type
			if prev == lexer.TOKEN_RBRACKET || prev == lexer.TOKEN_IDENTIFIER || prev == lexer.TOKEN_GREATER {
				return
			}
		}
		p.advance()
	}
}
