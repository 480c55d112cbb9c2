package lexer

import "fmt"

// TokenType represents the type of token in a metaforge declaration file
type TokenType int

const (
	// Special tokens
	TOKEN_EOF TokenType = iota
	TOKEN_ERROR
	TOKEN_COMMENT

	// Keywords
	TOKEN_TYPE

	// Literals
	TOKEN_IDENTIFIER
	TOKEN_INT_LITERAL
	TOKEN_FLOAT_LITERAL
	TOKEN_STRING_LITERAL
	TOKEN_TRUE
	TOKEN_FALSE

	// Operators
	TOKEN_AT      // @
	TOKEN_COLON   // :
	TOKEN_COMMA   // ,
	TOKEN_LESS    // <
	TOKEN_GREATER // >

	// Delimiters
	TOKEN_LBRACE   // {
	TOKEN_RBRACE   // }
	TOKEN_LPAREN   // (
	TOKEN_RPAREN   // )
	TOKEN_LBRACKET // [
	TOKEN_RBRACKET // ]
)

// Token represents a single lexical token
type Token struct {
	Type    TokenType
	Lexeme  string
	Literal interface{} // For literals (numbers, strings)
	Line    int
	Column  int
	File    string // Source file path
}

// keywords maps reserved words to their token types
var keywords = map[string]TokenType{
	"type":  TOKEN_TYPE,
	"true":  TOKEN_TRUE,
	"false": TOKEN_FALSE,
}

// String returns a string representation of the token type
func (t TokenType) String() string {
	switch t {
	case TOKEN_EOF:
		return "EOF"
	case TOKEN_ERROR:
		return "ERROR"
	case TOKEN_COMMENT:
		return "COMMENT"
	case TOKEN_TYPE:
		return "TYPE"
	case TOKEN_IDENTIFIER:
		return "IDENTIFIER"
	case TOKEN_INT_LITERAL:
		return "INT_LITERAL"
	case TOKEN_FLOAT_LITERAL:
		return "FLOAT_LITERAL"
	case TOKEN_STRING_LITERAL:
		return "STRING_LITERAL"
	case TOKEN_TRUE:
		return "TRUE"
	case TOKEN_FALSE:
		return "FALSE"
	case TOKEN_AT:
		return "AT"
	case TOKEN_COLON:
		return "COLON"
	case TOKEN_COMMA:
		return "COMMA"
	case TOKEN_LESS:
		return "LESS"
	case TOKEN_GREATER:
		return "GREATER"
	case TOKEN_LBRACE:
		return "LBRACE"
	case TOKEN_RBRACE:
		return "RBRACE"
	case TOKEN_LPAREN:
		return "LPAREN"
	case TOKEN_RPAREN:
		return "RPAREN"
	case TOKEN_LBRACKET:
		return "LBRACKET"
	case TOKEN_RBRACKET:
		return "RBRACKET"
	default:
		return "UNKNOWN"
	}
}

// String returns a string representation of the token
func (t Token) String() string {
	if t.Literal != nil {
		return fmt.Sprintf("%s(%v) [%d:%d]", t.Type, t.Literal, t.Line, t.Column)
	}
	return fmt.Sprintf("%s(%s) [%d:%d]", t.Type, t.Lexeme, t.Line, t.Column)
}

// LexError represents a lexical analysis error
type LexError struct {
	Message string
	Line    int
	Column  int
	File    string
}

// Error implements the error interface
func (e LexError) Error() string {
	return fmt.Sprintf("%s:%d:%d: %s", e.File, e.Line, e.Column, e.Message)
}
