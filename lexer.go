package c5

import (
	"fmt"
	"strings"
)

// Lexer is a stateless function from source text + filename to a
// token stream (spec.md §4.1): it owns the input runes for the
// duration of lexing and never looks back past the current cursor.
type Lexer struct {
	file   string
	input  []rune
	cursor int
	line   int32
	column int32
}

func NewLexer(file, src string) *Lexer {
	return &Lexer{file: file, input: []rune(src), line: 1, column: 1}
}

func (l *Lexer) loc() Location {
	return Location{File: l.file, Line: l.line, Column: l.column, Cursor: int32(l.cursor)}
}

func (l *Lexer) peek() rune {
	if l.cursor >= len(l.input) {
		return eof
	}
	return l.input[l.cursor]
}

func (l *Lexer) peekAt(off int) rune {
	if l.cursor+off >= len(l.input) {
		return eof
	}
	return l.input[l.cursor+off]
}

func (l *Lexer) advance() rune {
	c := l.peek()
	if c == eof {
		return eof
	}
	l.cursor++
	if c == '\n' {
		l.line++
		l.column = 1
	} else {
		l.column++
	}
	return c
}

// Lex runs the lexer to completion and returns every token in the
// input, terminated by a single TokEOF token.
func (l *Lexer) Lex() ([]Token, error) {
	var tokens []Token
	for {
		tok, err := l.next()
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, tok)
		if tok.Kind == TokEOF {
			return tokens, nil
		}
	}
}

func (l *Lexer) skipSpaceAndComments() {
	for {
		switch l.peek() {
		case ' ', '\t', '\r', '\n':
			l.advance()
		case '/':
			if l.peekAt(1) == '/' {
				for l.peek() != '\n' && l.peek() != eof {
					l.advance()
				}
				continue
			}
			if l.peekAt(1) == '*' {
				l.advance()
				l.advance()
				for {
					if l.peek() == eof {
						return
					}
					if l.peek() == '*' && l.peekAt(1) == '/' {
						l.advance()
						l.advance()
						break
					}
					l.advance()
				}
				continue
			}
			return
		default:
			return
		}
	}
}

func isDigit(c rune) bool { return c >= '0' && c <= '9' }
func isIdentStart(c rune) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
func isIdentCont(c rune) bool { return isIdentStart(c) || isDigit(c) }

func (l *Lexer) next() (Token, error) {
	l.skipSpaceAndComments()
	start := l.loc()

	c := l.peek()
	if c == eof {
		return Token{Kind: TokEOF, Span: NewSpan(start, l.loc())}, nil
	}

	switch {
	case isIdentStart(c):
		return l.lexIdentOrKeyword(start)
	case isDigit(c):
		return l.lexNumber(start)
	case c == '"':
		return l.lexString(start)
	case c == '\'':
		return l.lexChar(start)
	}

	// punctuation and operators, longest match first
	two := func(a, b rune) bool { return c == a && l.peekAt(1) == b }
	switch {
	case two(':', ':'):
		l.advance()
		l.advance()
		return l.tok(TokColonColon, "::", start), nil
	case two('-', '>'):
		l.advance()
		l.advance()
		return l.tok(TokArrow, "->", start), nil
	case two('=', '='):
		l.advance()
		l.advance()
		return l.tok(TokEq, "==", start), nil
	case two('!', '='):
		l.advance()
		l.advance()
		return l.tok(TokNeq, "!=", start), nil
	case two('<', '='):
		l.advance()
		l.advance()
		return l.tok(TokLe, "<=", start), nil
	case two('>', '='):
		l.advance()
		l.advance()
		return l.tok(TokGe, ">=", start), nil
	case two('&', '&'):
		l.advance()
		l.advance()
		return l.tok(TokAndAnd, "&&", start), nil
	case two('|', '|'):
		l.advance()
		l.advance()
		return l.tok(TokOrOr, "||", start), nil
	case two('<', '<'):
		l.advance()
		l.advance()
		return l.tok(TokShl, "<<", start), nil
	case two('>', '>'):
		l.advance()
		l.advance()
		return l.tok(TokShr, ">>", start), nil
	}

	single := map[rune]TokenKind{
		'{': TokLBrace, '}': TokRBrace, '(': TokLParen, ')': TokRParen,
		'[': TokLBracket, ']': TokRBracket, ',': TokComma, ';': TokSemicolon,
		':': TokColon, '.': TokDot, '<': TokLAngle, '>': TokRAngle,
		'+': TokPlus, '-': TokMinus, '*': TokStar, '/': TokSlash, '%': TokPercent,
		'=': TokAssign, '!': TokBang, '&': TokAmp, '|': TokPipe, '^': TokCaret, '~': TokTilde,
	}
	if kind, ok := single[c]; ok {
		l.advance()
		return l.tok(kind, string(c), start), nil
	}

	l.advance()
	return Token{}, &backtrackingError{
		Expected: "a valid token",
		Message:  fmt.Sprintf("E001: unexpected character %q", c),
		Span:     NewSpan(start, l.loc()),
	}
}

func (l *Lexer) tok(kind TokenKind, lexeme string, start Location) Token {
	return Token{Kind: kind, Lexeme: lexeme, Span: NewSpan(start, l.loc())}
}

func (l *Lexer) lexIdentOrKeyword(start Location) (Token, error) {
	var b strings.Builder
	for isIdentCont(l.peek()) {
		b.WriteRune(l.advance())
	}
	text := b.String()
	if kind, ok := keywords[text]; ok {
		return l.tok(kind, text, start), nil
	}
	return l.tok(TokIdent, text, start), nil
}

func (l *Lexer) lexNumber(start Location) (Token, error) {
	var b strings.Builder
	for isDigit(l.peek()) {
		b.WriteRune(l.advance())
	}
	isFloat := false
	if l.peek() == '.' && isDigit(l.peekAt(1)) {
		isFloat = true
		b.WriteRune(l.advance())
		for isDigit(l.peek()) {
			b.WriteRune(l.advance())
		}
	}
	kind := TokIntLit
	if isFloat {
		kind = TokFloatLit
	}
	return l.tok(kind, b.String(), start), nil
}

var escapeSeqs = map[rune]rune{
	'n': '\n', 't': '\t', 'r': '\r', '\\': '\\', '\'': '\'', '"': '"', '0': 0,
}

func (l *Lexer) lexEscaped(quote rune, start Location) (string, error) {
	l.advance() // opening quote
	var b strings.Builder
	for {
		c := l.peek()
		if c == eof || c == '\n' {
			return "", &backtrackingError{
				Expected: fmt.Sprintf("closing %q", quote),
				Message:  "E001: unterminated literal",
				Span:     NewSpan(start, l.loc()),
			}
		}
		if c == quote {
			l.advance()
			return b.String(), nil
		}
		if c == '\\' {
			l.advance()
			esc := l.advance()
			r, ok := escapeSeqs[esc]
			if !ok {
				return "", &backtrackingError{
					Expected: "a known escape sequence",
					Message:  fmt.Sprintf("E001: unknown escape sequence \\%c", esc),
					Span:     NewSpan(start, l.loc()),
				}
			}
			b.WriteRune(r)
			continue
		}
		b.WriteRune(l.advance())
	}
}

func (l *Lexer) lexString(start Location) (Token, error) {
	s, err := l.lexEscaped('"', start)
	if err != nil {
		return Token{}, err
	}
	return l.tok(TokStringLit, s, start), nil
}

func (l *Lexer) lexChar(start Location) (Token, error) {
	s, err := l.lexEscaped('\'', start)
	if err != nil {
		return Token{}, err
	}
	return l.tok(TokCharLit, s, start), nil
}
