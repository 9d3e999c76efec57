// Package ast defines the abstract syntax tree for bang programs.
//
// The node set is closed: the evaluator switches over exactly these types and
// treats anything else as a parser bug.
package ast

import (
	"bang-lang/internal/span"
	"bang-lang/internal/token"
)

// ============================================================
// Node interfaces
// ============================================================

// Node is the interface implemented by all AST nodes.
type Node interface {
	nodeNode()
	GetSpan() span.Span
}

// Expr is the interface for expression nodes. Every construct in the
// language is an expression, including let, fun and match.
type Expr interface {
	Node
	exprNode()
}

// ============================================================
// Base types
// ============================================================

// NodeBase provides the common Span field for all AST nodes.
type NodeBase struct {
	Span span.Span
}

func (n NodeBase) nodeNode()          {}
func (n NodeBase) GetSpan() span.Span { return n.Span }

// ExprBase is embedded by all expression nodes.
type ExprBase struct{ NodeBase }

func (ExprBase) exprNode() {}

// ============================================================
// Program structure
// ============================================================

// Program is the root of a parsed source file. Body holds *ExprStmt nodes in
// source order, terminated by a single *EOI.
type Program struct {
	NodeBase
	Body []Node
}

// ExprStmt wraps a top-level expression.
type ExprStmt struct {
	NodeBase
	Expr Expr
}

// EOI marks the end of input. It contributes nothing to evaluation.
type EOI struct {
	NodeBase
}

// ============================================================
// Expressions
// ============================================================

// Ident is an identifier reference.
type Ident struct {
	ExprBase
	Name string
}

// NumLiteral is an integer numeral kept as its decimal text.
type NumLiteral struct {
	ExprBase
	Text string
}

// StringLiteral is a string literal with escapes already resolved.
type StringLiteral struct {
	ExprBase
	Value string
}

// BoolLiteral is true or false.
type BoolLiteral struct {
	ExprBase
	Value bool
}

// BinaryExpr is an arithmetic operation. Op is one of PLUS, MINUS (the
// additive family), STAR, SLASH (multiplicative) or POW.
type BinaryExpr struct {
	ExprBase
	Op    token.Kind
	Left  Expr
	Right Expr
}

// LetExpr binds Name to the value of Value in the enclosing scope.
type LetExpr struct {
	ExprBase
	Name  string
	Value Expr
}

// FuncDecl defines a named function: fun name(params) body... end
type FuncDecl struct {
	ExprBase
	Name   string
	Params []string
	Body   []Expr
}

// CallExpr calls a builtin or user function by name.
type CallExpr struct {
	ExprBase
	Name string
	Args []Expr
}

// MatchExpr dispatches on the integer value of Subject.
type MatchExpr struct {
	ExprBase
	Subject  Expr
	Branches []*Branch
}

// Branch is one arm of a match. A nil Pattern is the default (_) arm.
type Branch struct {
	NodeBase
	Pattern Expr
	Body    Expr
}

// IsDefault reports whether the branch matches unconditionally.
func (b *Branch) IsDefault() bool { return b.Pattern == nil }

// MapLiteral is {key: value, ...}. A bare identifier key is taken as its own
// name, not resolved.
type MapLiteral struct {
	ExprBase
	Entries []MapEntry
}

// MapEntry is a single key/value pair of a map literal.
type MapEntry struct {
	Key   Expr
	Value Expr
}

// Exprs returns the wrapped top-level expressions of p, skipping EOI.
func (p *Program) Exprs() []Expr {
	var out []Expr
	for _, n := range p.Body {
		if s, ok := n.(*ExprStmt); ok {
			out = append(out, s.Expr)
		}
	}
	return out
}
