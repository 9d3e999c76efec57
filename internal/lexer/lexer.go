// Package lexer turns bang source text into tokens.
package lexer

import (
	"bang-lang/internal/diag"
	"bang-lang/internal/span"
	"bang-lang/internal/token"
	"fmt"
	"unicode"
	"unicode/utf8"
)

// Lexer tokenizes source code into a sequence of tokens.
type Lexer struct {
	source string

	pos  int // current read position in source
	line int // current line (1-based)
	col  int // current column (1-based)

	diags []diag.Diagnostic
}

// New creates a new Lexer for the given source text.
func New(source string) *Lexer {
	return &Lexer{
		source: source,
		line:   1,
		col:    1,
	}
}

// Tokenize scans the entire source and returns all tokens and diagnostics.
// The last token is always EOF.
func (l *Lexer) Tokenize() ([]token.Token, []diag.Diagnostic) {
	var tokens []token.Token
	for {
		tok := l.nextToken()
		tokens = append(tokens, tok)
		if tok.Kind == token.EOF {
			break
		}
	}
	return tokens, l.diags
}

// ---- internal helpers ----

func (l *Lexer) peek() byte {
	if l.pos >= len(l.source) {
		return 0
	}
	return l.source[l.pos]
}

func (l *Lexer) peekNext() byte {
	if l.pos+1 >= len(l.source) {
		return 0
	}
	return l.source[l.pos+1]
}

// peekRune decodes the rune at the current position.
func (l *Lexer) peekRune() rune {
	if l.pos >= len(l.source) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(l.source[l.pos:])
	return r
}

// advance consumes one byte. Columns count runes, so UTF-8 continuation
// bytes do not move the column.
func (l *Lexer) advance() byte {
	ch := l.source[l.pos]
	l.pos++
	switch {
	case ch == '\n':
		l.line++
		l.col = 1
	case !utf8.RuneStart(ch):
	default:
		l.col++
	}
	return ch
}

// advanceRune consumes the whole rune at the current position.
func (l *Lexer) advanceRune() rune {
	r, size := utf8.DecodeRuneInString(l.source[l.pos:])
	for ; size > 0; size-- {
		l.advance()
	}
	return r
}

func (l *Lexer) curPos() span.Position {
	return span.Position{Offset: l.pos, Line: l.line, Column: l.col}
}

func (l *Lexer) makeSpan(start span.Position) span.Span {
	return span.Span{Start: start, End: l.curPos()}
}

func (l *Lexer) emit(kind token.Kind, lexeme string, start span.Position) token.Token {
	return token.Token{Kind: kind, Lexeme: lexeme, Span: l.makeSpan(start)}
}

// skipWhitespace skips spaces and tabs but not newlines, which separate statements.
func (l *Lexer) skipWhitespace() {
	for l.pos < len(l.source) {
		ch := l.source[l.pos]
		if ch != ' ' && ch != '\t' && ch != '\r' {
			return
		}
		l.advance()
	}
}

func (l *Lexer) skipLineComment() {
	for l.pos < len(l.source) && l.source[l.pos] != '\n' {
		l.advance()
	}
}

func (l *Lexer) addError(code string, s span.Span, msg string) {
	l.diags = append(l.diags, diag.Errorf(code, s, "%s", msg))
}

// ---- token reading ----

func (l *Lexer) nextToken() token.Token {
	for {
		l.skipWhitespace()
		if ch := l.peek(); ch == '#' || (ch == '/' && l.peekNext() == '/') {
			l.skipLineComment()
			continue
		}
		break
	}

	start := l.curPos()
	if l.pos >= len(l.source) {
		return l.emit(token.EOF, "", start)
	}

	ch := l.peek()
	switch {
	case ch == '\n':
		l.advance()
		return l.emit(token.NEWLINE, "\\n", start)
	case ch == '"':
		return l.readString(start)
	case isDigit(ch):
		return l.readNumber(start)
	case isIdentStart(l.peekRune()):
		return l.readIdentifier(start)
	default:
		return l.readOperator(start)
	}
}

// readString reads a double-quoted string literal. The lexeme holds the unescaped text.
func (l *Lexer) readString(start span.Position) token.Token {
	l.advance() // opening "
	var value []byte

	for l.pos < len(l.source) {
		ch := l.peek()
		switch ch {
		case '"':
			l.advance()
			return l.emit(token.STRING, string(value), start)
		case '\n':
			l.addError("E1001", l.makeSpan(start), "unterminated string literal")
			return l.emit(token.STRING, string(value), start)
		case '\\':
			l.advance()
			if l.pos >= len(l.source) {
				continue
			}
			esc := l.peek()
			switch esc {
			case 'n':
				value = append(value, '\n')
			case 't':
				value = append(value, '\t')
			case '\\':
				value = append(value, '\\')
			case '"':
				value = append(value, '"')
			default:
				l.addError("E1002", l.makeSpan(start), fmt.Sprintf("unknown escape sequence: \\%c", esc))
				value = append(value, esc)
			}
			l.advance()
		default:
			value = append(value, ch)
			l.advance()
		}
	}

	l.addError("E1001", l.makeSpan(start), "unterminated string literal")
	return l.emit(token.STRING, string(value), start)
}

// readNumber reads a run of decimal digits. Numerals are kept as text; the
// evaluator converts them.
func (l *Lexer) readNumber(start span.Position) token.Token {
	numStart := l.pos
	for l.pos < len(l.source) && isDigit(l.peek()) {
		l.advance()
	}
	return l.emit(token.INT, l.source[numStart:l.pos], start)
}

func (l *Lexer) readIdentifier(start span.Position) token.Token {
	identStart := l.pos
	for l.pos < len(l.source) && isIdentPart(l.peekRune()) {
		l.advanceRune()
	}
	lexeme := l.source[identStart:l.pos]
	return l.emit(token.LookupIdent(lexeme), lexeme, start)
}

func (l *Lexer) readOperator(start span.Position) token.Token {
	if l.peek() >= utf8.RuneSelf {
		r := l.advanceRune()
		l.addError("E1003", l.makeSpan(start), fmt.Sprintf("unexpected character: '%c'", r))
		return l.emit(token.ILLEGAL, string(r), start)
	}
	ch := l.advance()

	switch ch {
	case '(':
		return l.emit(token.LPAREN, "(", start)
	case ')':
		return l.emit(token.RPAREN, ")", start)
	case '{':
		return l.emit(token.LBRACE, "{", start)
	case '}':
		return l.emit(token.RBRACE, "}", start)
	case ',':
		return l.emit(token.COMMA, ",", start)
	case ':':
		return l.emit(token.COLON, ":", start)
	case ';':
		return l.emit(token.SEMICOLON, ";", start)
	case '+':
		return l.emit(token.PLUS, "+", start)
	case '-':
		return l.emit(token.MINUS, "-", start)
	case '/':
		return l.emit(token.SLASH, "/", start)
	case '*':
		if l.peek() == '*' {
			l.advance()
			return l.emit(token.POW, "**", start)
		}
		return l.emit(token.STAR, "*", start)
	case '=':
		if l.peek() == '>' {
			l.advance()
			return l.emit(token.ARROW, "=>", start)
		}
		return l.emit(token.ASSIGN, "=", start)
	default:
		l.addError("E1003", l.makeSpan(start), fmt.Sprintf("unexpected character: '%c'", ch))
		return l.emit(token.ILLEGAL, string(ch), start)
	}
}

// ---- character classification ----

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}

func isIdentStart(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}

func isIdentPart(r rune) bool {
	return isIdentStart(r) || unicode.IsDigit(r)
}
