// Package token defines the token kinds produced by the lexer.
package token

import (
	"bang-lang/internal/span"
	"fmt"
)

// Kind is the type of a token.
type Kind int

const (
	// Special tokens
	ILLEGAL Kind = iota
	EOF
	NEWLINE

	// Literals
	IDENT  // add, x, my_var
	INT    // 123
	STRING // "hello"

	// Operators
	ASSIGN // =
	PLUS   // +
	MINUS  // -
	STAR   // *
	SLASH  // /
	POW    // **
	ARROW  // =>

	// Delimiters
	LPAREN     // (
	RPAREN     // )
	LBRACE     // {
	RBRACE     // }
	COMMA      // ,
	COLON      // :
	SEMICOLON  // ;
	UNDERSCORE // _ (default match branch)

	// Keywords
	KW_LET
	KW_FUN
	KW_END
	KW_MATCH
	KW_TRUE
	KW_FALSE
)

var kindNames = map[Kind]string{
	ILLEGAL: "ILLEGAL",
	EOF:     "EOF",
	NEWLINE: "NEWLINE",

	IDENT:  "IDENT",
	INT:    "INT",
	STRING: "STRING",

	ASSIGN: "=",
	PLUS:   "+",
	MINUS:  "-",
	STAR:   "*",
	SLASH:  "/",
	POW:    "**",
	ARROW:  "=>",

	LPAREN:     "(",
	RPAREN:     ")",
	LBRACE:     "{",
	RBRACE:     "}",
	COMMA:      ",",
	COLON:      ":",
	SEMICOLON:  ";",
	UNDERSCORE: "_",

	KW_LET:   "let",
	KW_FUN:   "fun",
	KW_END:   "end",
	KW_MATCH: "match",
	KW_TRUE:  "true",
	KW_FALSE: "false",
}

// String returns the human-readable name for a token kind.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// IsKeyword reports whether k is a reserved word.
func (k Kind) IsKeyword() bool {
	return k >= KW_LET && k <= KW_FALSE
}

// IsLiteral reports whether k is an identifier, integer, or string.
func (k Kind) IsLiteral() bool {
	return k >= IDENT && k <= STRING
}

// OpensBlock reports whether k starts a construct closed by "end".
func (k Kind) OpensBlock() bool {
	return k == KW_FUN || k == KW_MATCH
}

var keywords = map[string]Kind{
	"let":   KW_LET,
	"fun":   KW_FUN,
	"end":   KW_END,
	"match": KW_MATCH,
	"true":  KW_TRUE,
	"false": KW_FALSE,
	"_":     UNDERSCORE,
}

// LookupIdent returns the keyword Kind for ident, or IDENT if it is not reserved.
func LookupIdent(ident string) Kind {
	if kind, ok := keywords[ident]; ok {
		return kind
	}
	return IDENT
}

// Token is a lexical token with its kind, text, and source location.
type Token struct {
	Kind   Kind      `json:"kind"`
	Lexeme string    `json:"lexeme"`
	Span   span.Span `json:"span"`
}

func (t Token) String() string {
	return fmt.Sprintf("%s %q %s", t.Kind, t.Lexeme, t.Span.Start)
}
