package c5

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lexKinds(t *testing.T, src string) []TokenKind {
	t.Helper()
	toks, err := NewLexer("test.c5", src).Lex()
	require.NoError(t, err)
	kinds := make([]TokenKind, len(toks))
	for i, tok := range toks {
		kinds[i] = tok.Kind
	}
	return kinds
}

func TestLexKeywordsAndPunctuation(t *testing.T) {
	kinds := lexKinds(t, "fnct int add(int<32> a, int<32> b) -> int<32>;")
	require.Contains(t, kinds, TokFnct)
	require.Contains(t, kinds, TokArrow)
	require.Contains(t, kinds, TokLAngle)
	require.Contains(t, kinds, TokRAngle)
	assert.Equal(t, TokEOF, kinds[len(kinds)-1])
}

func TestLexLongestMatchOperators(t *testing.T) {
	toks, err := NewLexer("test.c5", "a <= b >= c == d != e && f || g << h >> i").Lex()
	require.NoError(t, err)
	var kinds []TokenKind
	for _, tok := range toks {
		kinds = append(kinds, tok.Kind)
	}
	assert.Contains(t, kinds, TokLe)
	assert.Contains(t, kinds, TokGe)
	assert.Contains(t, kinds, TokEq)
	assert.Contains(t, kinds, TokNeq)
	assert.Contains(t, kinds, TokAndAnd)
	assert.Contains(t, kinds, TokOrOr)
	assert.Contains(t, kinds, TokShl)
	assert.Contains(t, kinds, TokShr)
}

func TestLexSingleAngleBracketsAreNotRelational(t *testing.T) {
	// int<32> must lex as IDENT LANGLE INTLIT RANGLE, never a single
	// combined token, since the parser reassembles both generics and
	// comparisons from the bare punctuation contextually.
	kinds := lexKinds(t, "int<32>")
	require.Len(t, kinds, 5) // ident, <, intlit, >, eof
	assert.Equal(t, TokIdent, kinds[0])
	assert.Equal(t, TokLAngle, kinds[1])
	assert.Equal(t, TokIntLit, kinds[2])
	assert.Equal(t, TokRAngle, kinds[3])
}

func TestLexIntAndFloatLiterals(t *testing.T) {
	toks, err := NewLexer("test.c5", "42 3.14 0").Lex()
	require.NoError(t, err)
	require.Equal(t, TokIntLit, toks[0].Kind)
	assert.Equal(t, "42", toks[0].Lexeme)
	require.Equal(t, TokFloatLit, toks[1].Kind)
	assert.Equal(t, "3.14", toks[1].Lexeme)
	require.Equal(t, TokIntLit, toks[2].Kind)
}

func TestLexStringAndCharEscapes(t *testing.T) {
	toks, err := NewLexer("test.c5", `"hi\n" 'a' '\0'`).Lex()
	require.NoError(t, err)
	require.Equal(t, TokStringLit, toks[0].Kind)
	assert.Equal(t, "hi\n", toks[0].Lexeme)
	require.Equal(t, TokCharLit, toks[1].Kind)
	assert.Equal(t, "a", toks[1].Lexeme)
	require.Equal(t, TokCharLit, toks[2].Kind)
	assert.Equal(t, string(rune(0)), toks[2].Lexeme)
}

func TestLexUnterminatedStringIsAnError(t *testing.T) {
	_, err := NewLexer("test.c5", `"unterminated`).Lex()
	require.Error(t, err)
	be, ok := err.(*backtrackingError)
	require.True(t, ok)
	assert.Contains(t, be.Message, "E001")
}

func TestLexUnknownEscapeIsAnError(t *testing.T) {
	_, err := NewLexer("test.c5", `"\q"`).Lex()
	require.Error(t, err)
}

func TestLexSkipsLineAndBlockComments(t *testing.T) {
	kinds := lexKinds(t, "a // line comment\n/* block\ncomment */ b")
	require.Len(t, kinds, 3) // ident, ident, eof
	assert.Equal(t, TokIdent, kinds[0])
	assert.Equal(t, TokIdent, kinds[1])
}

func TestLexUnexpectedCharacterIsAnError(t *testing.T) {
	_, err := NewLexer("test.c5", "@").Lex()
	require.Error(t, err)
	be, ok := err.(*backtrackingError)
	require.True(t, ok)
	assert.Contains(t, be.Message, "E001")
}

func TestLexTracksLineAndColumn(t *testing.T) {
	toks, err := NewLexer("test.c5", "a\nb").Lex()
	require.NoError(t, err)
	assert.Equal(t, int32(1), toks[0].Span.Start.Line)
	assert.Equal(t, int32(2), toks[1].Span.Start.Line)
}
