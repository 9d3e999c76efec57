// Package parser implements syntax analysis for bang.
// It uses Pratt parsing for arithmetic and recursive descent for let, fun and match.
package parser

import (
	"bang-lang/internal/ast"
	"bang-lang/internal/diag"
	"bang-lang/internal/span"
	"bang-lang/internal/token"
	"fmt"
)

// ============================================================
// Binding power (precedence) levels
// ============================================================

const (
	bpNone     = 0
	bpAdditive = 10 // + -
	bpMultiply = 20 // * /
	bpPower    = 30 // **
)

// infixBP returns the left binding power for an infix operator.
// All operators are left-associative, ** included.
func infixBP(kind token.Kind) int {
	switch kind {
	case token.PLUS, token.MINUS:
		return bpAdditive
	case token.STAR, token.SLASH:
		return bpMultiply
	case token.POW:
		return bpPower
	default:
		return bpNone
	}
}

// ============================================================
// Parser
// ============================================================

// Parser performs syntax analysis on a stream of tokens.
type Parser struct {
	tokens []token.Token
	pos    int
	diags  []diag.Diagnostic
}

// New creates a new parser from a token slice.
func New(tokens []token.Token) *Parser {
	return &Parser{tokens: tokens}
}

// ParseProgram parses the whole token stream. The returned program always ends
// with an EOI node; diagnostics may include warnings alongside errors.
func (p *Parser) ParseProgram() (*ast.Program, []diag.Diagnostic) {
	prog := &ast.Program{}
	startPos := p.peek().Span.Start

	p.skipSep()
	for !p.isAtEnd() {
		before, mark := p.pos, len(p.diags)
		start := p.peek().Span.Start
		expr := p.parseExpr(bpNone)
		if expr == nil {
			p.recoverFrom(mark)
		} else {
			prog.Body = append(prog.Body, &ast.ExprStmt{
				NodeBase: ast.NodeBase{Span: p.makeSpan(start)},
				Expr:     expr,
			})
			p.endOfStatement()
		}
		if p.pos == before {
			p.advance()
		}
		p.skipSep()
	}

	eof := p.peek()
	prog.Body = append(prog.Body, &ast.EOI{NodeBase: ast.NodeBase{Span: eof.Span}})
	prog.Span = span.Span{Start: startPos, End: eof.Span.End}
	return prog, p.diags
}

// ---- navigation helpers ----

func (p *Parser) peek() token.Token {
	if p.pos >= len(p.tokens) {
		return token.Token{Kind: token.EOF}
	}
	return p.tokens[p.pos]
}

func (p *Parser) peekKind() token.Kind {
	return p.peek().Kind
}

func (p *Parser) peekAt(offset int) token.Kind {
	if p.pos+offset >= len(p.tokens) {
		return token.EOF
	}
	return p.tokens[p.pos+offset].Kind
}

func (p *Parser) advance() token.Token {
	tok := p.peek()
	if p.pos < len(p.tokens) {
		p.pos++
	}
	return tok
}

func (p *Parser) check(kind token.Kind) bool {
	return p.peekKind() == kind
}

func (p *Parser) match(kinds ...token.Kind) bool {
	for _, k := range kinds {
		if p.check(k) {
			return true
		}
	}
	return false
}

func (p *Parser) expect(kind token.Kind) (token.Token, bool) {
	if p.check(kind) {
		return p.advance(), true
	}
	tok := p.peek()
	p.error("E2001", tok.Span, fmt.Sprintf("expected '%s', got '%s'", kind, tok.Kind))
	return tok, false
}

func (p *Parser) isAtEnd() bool {
	return p.peekKind() == token.EOF
}

// skipSep skips NEWLINE and SEMICOLON tokens (separators).
func (p *Parser) skipSep() {
	for p.match(token.NEWLINE, token.SEMICOLON) {
		p.advance()
	}
}

// skipNewlines skips NEWLINE tokens only.
func (p *Parser) skipNewlines() {
	for p.check(token.NEWLINE) {
		p.advance()
	}
}

func (p *Parser) error(code string, s span.Span, msg string) {
	p.diags = append(p.diags, diag.Errorf(code, s, "%s", msg))
}

// ============================================================
// Error recovery
// ============================================================

// synchronize skips tokens until a likely statement boundary.
func (p *Parser) synchronize() {
	for !p.isAtEnd() {
		if p.match(token.NEWLINE, token.SEMICOLON) {
			p.advance()
			return
		}
		if p.match(token.KW_END, token.KW_LET, token.KW_FUN, token.KW_MATCH) {
			return
		}
		p.advance()
	}
}

// unexpected reports the current token as unable to start an expression.
func (p *Parser) unexpected() {
	tok := p.peek()
	d := diag.Errorf("E2002", tok.Span, "unexpected token: '%s'", tok.Kind)
	switch tok.Kind {
	case token.UNDERSCORE:
		d = d.WithHint("'_' is only valid as a match pattern")
	case token.KW_END:
		d = d.WithHint("'end' without a matching 'fun' or 'match'")
	}
	p.diags = append(p.diags, d)
	p.synchronize()
}

// recoverFrom resynchronizes after a failed expression. When nothing was
// reported since mark, the current token itself is the problem.
func (p *Parser) recoverFrom(mark int) {
	if len(p.diags) == mark {
		p.unexpected()
		return
	}
	p.synchronize()
}

// endOfStatement requires a separator, a block terminator, or EOF after an expression.
func (p *Parser) endOfStatement() {
	if p.match(token.NEWLINE, token.SEMICOLON, token.KW_END, token.EOF) {
		return
	}
	tok := p.peek()
	p.error("E2001", tok.Span, fmt.Sprintf("expected newline after expression, got '%s'", tok.Kind))
	p.synchronize()
}

// ============================================================
// Expression parsing (Pratt / precedence climbing)
// ============================================================

// parseExpr parses an expression with the given minimum binding power.
func (p *Parser) parseExpr(minBP int) ast.Expr {
	left := p.nud()
	if left == nil {
		return nil
	}

	for {
		bp := infixBP(p.peekKind())
		if bp <= minBP {
			break
		}
		left = p.led(left, bp)
		if left == nil {
			return nil
		}
	}
	return left
}

// nud handles prefix (null denotation) parsing.
func (p *Parser) nud() ast.Expr {
	tok := p.peek()

	switch tok.Kind {
	case token.INT:
		p.advance()
		return &ast.NumLiteral{
			ExprBase: makeExprBase(tok.Span.Start, tok.Span.End),
			Text:     tok.Lexeme,
		}

	case token.STRING:
		p.advance()
		return &ast.StringLiteral{
			ExprBase: makeExprBase(tok.Span.Start, tok.Span.End),
			Value:    tok.Lexeme,
		}

	case token.KW_TRUE, token.KW_FALSE:
		p.advance()
		return &ast.BoolLiteral{
			ExprBase: makeExprBase(tok.Span.Start, tok.Span.End),
			Value:    tok.Kind == token.KW_TRUE,
		}

	case token.IDENT:
		if p.peekAt(1) == token.LPAREN {
			return p.parseCallExpr()
		}
		p.advance()
		return &ast.Ident{
			ExprBase: makeExprBase(tok.Span.Start, tok.Span.End),
			Name:     tok.Lexeme,
		}

	case token.LPAREN:
		p.advance() // '('
		p.skipNewlines()
		expr := p.parseExpr(bpNone)
		p.skipNewlines()
		p.expect(token.RPAREN)
		return expr

	case token.LBRACE:
		return p.parseMapLiteral()

	case token.KW_LET:
		return p.parseLetExpr()

	case token.KW_FUN:
		return p.parseFuncDecl()

	case token.KW_MATCH:
		return p.parseMatchExpr()

	default:
		return nil
	}
}

// led handles infix (left denotation) parsing.
func (p *Parser) led(left ast.Expr, bp int) ast.Expr {
	op := p.advance()
	p.skipNewlines() // allow continuation on the next line after an operator
	right := p.parseExpr(bp)
	if right == nil {
		tok := p.peek()
		p.error("E2002", tok.Span, fmt.Sprintf("expected operand after '%s', got '%s'", op.Kind, tok.Kind))
		return nil
	}
	return &ast.BinaryExpr{
		ExprBase: makeExprBase(left.GetSpan().Start, right.GetSpan().End),
		Op:       op.Kind,
		Left:     left,
		Right:    right,
	}
}

// parseCallExpr parses: IDENT ( args )
func (p *Parser) parseCallExpr() ast.Expr {
	nameTok := p.advance()
	p.advance() // '('
	call := &ast.CallExpr{Name: nameTok.Lexeme}

	p.skipNewlines()
	if !p.check(token.RPAREN) {
		for {
			mark := len(p.diags)
			arg := p.parseExpr(bpNone)
			if arg == nil {
				p.recoverFrom(mark)
				return nil
			}
			call.Args = append(call.Args, arg)
			p.skipNewlines()
			if !p.check(token.COMMA) {
				break
			}
			p.advance() // ','
			p.skipNewlines()
		}
	}
	p.expect(token.RPAREN)

	call.ExprBase = makeExprBase(nameTok.Span.Start, p.prevEnd())
	return call
}

// parseMapLiteral parses: { key: value, ... }
func (p *Parser) parseMapLiteral() ast.Expr {
	start := p.advance() // '{'
	lit := &ast.MapLiteral{}

	p.skipNewlines()
	for !p.check(token.RBRACE) && !p.isAtEnd() {
		mark := len(p.diags)
		key := p.parseExpr(bpNone)
		if key == nil {
			p.recoverFrom(mark)
			return nil
		}
		if _, ok := p.expect(token.COLON); !ok {
			p.synchronize()
			return nil
		}
		p.skipNewlines()
		value := p.parseExpr(bpNone)
		if value == nil {
			p.recoverFrom(mark)
			return nil
		}
		lit.Entries = append(lit.Entries, ast.MapEntry{Key: key, Value: value})

		p.skipNewlines()
		if !p.check(token.COMMA) {
			break
		}
		p.advance() // ','
		p.skipNewlines()
	}
	p.expect(token.RBRACE)

	lit.ExprBase = makeExprBase(start.Span.Start, p.prevEnd())
	return lit
}

// ============================================================
// let / fun / match
// ============================================================

// parseLetExpr parses: let IDENT = expr
func (p *Parser) parseLetExpr() ast.Expr {
	start := p.advance() // 'let'
	let := &ast.LetExpr{}

	nameTok, ok := p.expect(token.IDENT)
	if !ok {
		p.synchronize()
		return nil
	}
	let.Name = nameTok.Lexeme

	if _, ok := p.expect(token.ASSIGN); !ok {
		p.synchronize()
		return nil
	}
	p.skipNewlines()

	let.Value = p.parseExpr(bpNone)
	if let.Value == nil {
		tok := p.peek()
		p.error("E2002", tok.Span, fmt.Sprintf("expected expression after '=', got '%s'", tok.Kind))
		return nil
	}

	let.ExprBase = makeExprBase(start.Span.Start, p.prevEnd())
	return let
}

// parseFuncDecl parses: fun IDENT ( params ) body... end
func (p *Parser) parseFuncDecl() ast.Expr {
	start := p.advance() // 'fun'
	decl := &ast.FuncDecl{}

	nameTok, ok := p.expect(token.IDENT)
	if !ok {
		p.synchronize()
		return nil
	}
	decl.Name = nameTok.Lexeme
	decl.Params = p.parseParamList()
	decl.Body = p.parseBody()

	if len(decl.Body) == 0 {
		p.error("E2003", nameTok.Span, fmt.Sprintf("function '%s' has an empty body", decl.Name))
	}

	decl.ExprBase = makeExprBase(start.Span.Start, p.prevEnd())
	return decl
}

// parseParamList parses: ( ident, ident, ... )
func (p *Parser) parseParamList() []string {
	var params []string

	if _, ok := p.expect(token.LPAREN); !ok {
		return params
	}

	if !p.check(token.RPAREN) {
		nameTok, ok := p.expect(token.IDENT)
		if ok {
			params = append(params, nameTok.Lexeme)
		}
		for p.check(token.COMMA) {
			p.advance() // ','
			p.skipNewlines()
			nameTok, ok = p.expect(token.IDENT)
			if ok {
				params = append(params, nameTok.Lexeme)
			}
		}
	}

	p.expect(token.RPAREN)
	return params
}

// parseBody parses separator-delimited expressions up to and including "end".
func (p *Parser) parseBody() []ast.Expr {
	var body []ast.Expr

	p.skipSep()
	for !p.check(token.KW_END) && !p.isAtEnd() {
		before, mark := p.pos, len(p.diags)
		expr := p.parseExpr(bpNone)
		if expr == nil {
			p.recoverFrom(mark)
		} else {
			body = append(body, expr)
			p.endOfStatement()
		}
		if p.pos == before && !p.check(token.KW_END) {
			p.advance()
		}
		p.skipSep()
	}

	p.expect(token.KW_END)
	return body
}

// parseMatchExpr parses:
//
//	match expr
//	  pattern => expr
//	  _ => expr
//	end
func (p *Parser) parseMatchExpr() ast.Expr {
	start := p.advance() // 'match'
	expr := &ast.MatchExpr{}

	expr.Subject = p.parseExpr(bpNone)
	if expr.Subject == nil {
		tok := p.peek()
		p.error("E2002", tok.Span, fmt.Sprintf("expected expression after 'match', got '%s'", tok.Kind))
		p.synchronize()
	}

	hasDefault := false
	p.skipSep()
	for !p.check(token.KW_END) && !p.isAtEnd() {
		before := p.pos
		if branch := p.parseBranch(); branch != nil {
			expr.Branches = append(expr.Branches, branch)
			hasDefault = hasDefault || branch.IsDefault()
			p.endOfStatement()
		}
		if p.pos == before && !p.check(token.KW_END) {
			p.advance()
		}
		p.skipSep()
	}
	p.expect(token.KW_END)

	expr.ExprBase = makeExprBase(start.Span.Start, p.prevEnd())
	if !hasDefault {
		p.diags = append(p.diags, diag.Warningf("W2001", expr.Span,
			"match has no default branch and fails at runtime when nothing matches").
			WithHint("add a '_ => ...' branch"))
	}
	if expr.Subject == nil {
		return nil
	}
	return expr
}

// parseBranch parses: ( _ | expr ) => expr
func (p *Parser) parseBranch() *ast.Branch {
	start := p.peek()
	branch := &ast.Branch{}

	mark := len(p.diags)
	if p.check(token.UNDERSCORE) {
		p.advance()
	} else {
		branch.Pattern = p.parseExpr(bpNone)
		if branch.Pattern == nil {
			p.recoverFrom(mark)
			return nil
		}
	}

	if _, ok := p.expect(token.ARROW); !ok {
		p.synchronize()
		return nil
	}
	p.skipNewlines()

	branch.Body = p.parseExpr(bpNone)
	if branch.Body == nil {
		p.recoverFrom(mark)
		return nil
	}

	branch.Span = p.makeSpan(start.Span.Start)
	return branch
}

// ============================================================
// Span helpers
// ============================================================

func (p *Parser) prevEnd() span.Position {
	if p.pos > 0 && p.pos-1 < len(p.tokens) {
		return p.tokens[p.pos-1].Span.End
	}
	return p.peek().Span.Start
}

func (p *Parser) makeSpan(start span.Position) span.Span {
	return span.Span{Start: start, End: p.prevEnd()}
}

func makeExprBase(start, end span.Position) ast.ExprBase {
	return ast.ExprBase{NodeBase: ast.NodeBase{Span: span.Span{Start: start, End: end}}}
}
