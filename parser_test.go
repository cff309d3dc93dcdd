package c5

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseUnit(t *testing.T, src string) *Unit {
	t.Helper()
	toks, err := NewLexer("test.c5", src).Lex()
	require.NoError(t, err)
	diags := &Diagnostics{}
	u := NewParser("test.c5", toks, diags).ParseUnit()
	require.False(t, diags.HasErrors(), "unexpected parse diagnostics: %v", diags.All())
	return u
}

func TestParseStructDecl(t *testing.T) {
	u := parseUnit(t, `struct point { int<32> x; int<32> y; };`)
	require.Len(t, u.Decls, 1)
	sd, ok := u.Decls[0].(*StructDecl)
	require.True(t, ok)
	assert.Equal(t, "point", sd.Name)
	require.Len(t, sd.Fields, 2)
	assert.Equal(t, "x", sd.Fields[0].Name)
	assert.Equal(t, "y", sd.Fields[1].Name)
}

func TestParseEmptyStructDecl(t *testing.T) {
	u := parseUnit(t, `struct empty { };`)
	sd := u.Decls[0].(*StructDecl)
	assert.Empty(t, sd.Fields)
}

func TestParseEnumDecl(t *testing.T) {
	u := parseUnit(t, `enum color { red, green, blue };`)
	ed := u.Decls[0].(*EnumDecl)
	assert.Equal(t, []string{"red", "green", "blue"}, ed.Members)
}

func TestParseFuncDeclWithBody(t *testing.T) {
	u := parseUnit(t, `int<32> add(int<32> a, int<32> b) { return a + b; }`)
	fd := u.Decls[0].(*FuncDecl)
	assert.Equal(t, "add", fd.Name)
	require.Len(t, fd.Params, 2)
	require.NotNil(t, fd.Body)
	require.Len(t, fd.Body.Stmts, 1)
	_, ok := fd.Body.Stmts[0].(*ReturnStmt)
	assert.True(t, ok)
}

func TestParseFuncPrototypeHasNilBody(t *testing.T) {
	u := parseUnit(t, `int<32> add(int<32> a, int<32> b);`)
	fd := u.Decls[0].(*FuncDecl)
	assert.Nil(t, fd.Body)
}

func TestParseInclude(t *testing.T) {
	u := parseUnit(t, `include <std.c5h>;`)
	id := u.Decls[0].(*IncludeDecl)
	assert.Equal(t, "std", id.Name)
}

func TestParseGlobalConstVarDecl(t *testing.T) {
	u := parseUnit(t, `const int<32> limit = 10;`)
	vd := u.Decls[0].(*VarDecl)
	assert.True(t, vd.Const)
	assert.Equal(t, "limit", vd.Name)
	require.NotNil(t, vd.Init)
}

func TestParseAssignmentIsLowestPrecedenceRightAssociative(t *testing.T) {
	u := parseUnit(t, `int<32> f() { x = y || z; }`)
	fd := u.Decls[0].(*FuncDecl)
	es := fd.Body.Stmts[0].(*ExprStmt)
	bin := es.Expr.(*BinaryExpr)
	require.Equal(t, OpAssign, bin.Op)
	// rhs must be the whole `y || z`, not just `y`
	_, ok := bin.Right.(*BinaryExpr)
	assert.True(t, ok, "assignment must bind looser than ||, so x = y || z parses as x = (y || z)")
}

func TestParseArithmeticPrecedence(t *testing.T) {
	u := parseUnit(t, `int<32> f() { return 1 + 2 * 3; }`)
	fd := u.Decls[0].(*FuncDecl)
	ret := fd.Body.Stmts[0].(*ReturnStmt)
	bin := ret.Value.(*BinaryExpr)
	assert.Equal(t, OpAdd, bin.Op)
	mulRhs, ok := bin.Right.(*BinaryExpr)
	require.True(t, ok, "* must bind tighter than +, so 1 + 2 * 3 parses as 1 + (2 * 3)")
	assert.Equal(t, OpMul, mulRhs.Op)
}

func TestParseNestedGenericSplitsShrToken(t *testing.T) {
	// the lexer greedily matches ">>" as a single shift-right token, so
	// the parser must split it back into two '>' when closing nested
	// array<...> generics.
	u := parseUnit(t, `array<array<int<32>>> f() { return {1}; }`)
	fd := u.Decls[0].(*FuncDecl)
	outer, ok := fd.ReturnType.(*ArrayTypeExpr)
	require.True(t, ok)
	inner, ok := outer.Elem.(*ArrayTypeExpr)
	require.True(t, ok)
	prim, ok := inner.Elem.(*PrimitiveTypeExpr)
	require.True(t, ok)
	assert.Equal(t, "int", prim.Name)
	assert.Equal(t, 32, prim.Width)
}

func TestParseForeachStmt(t *testing.T) {
	u := parseUnit(t, `int<32> f(array<int<32>> xs) { foreach (i, v in xs) { } }`)
	fd := u.Decls[0].(*FuncDecl)
	fe, ok := fd.Body.Stmts[0].(*ForeachStmt)
	require.True(t, ok)
	assert.Equal(t, "i", fe.IndexName)
	assert.Equal(t, "v", fe.ValueName)
}

func TestParseSingleElementArrayLiteral(t *testing.T) {
	u := parseUnit(t, `int<32> f() { return {1}; }`)
	fd := u.Decls[0].(*FuncDecl)
	ret := fd.Body.Stmts[0].(*ReturnStmt)
	al, ok := ret.Value.(*ArrayLitExpr)
	require.True(t, ok)
	assert.Len(t, al.Items, 1)
}

func TestParseMacroDecl(t *testing.T) {
	u := parseUnit(t, `macro square(x) { x * x }`)
	md := u.Decls[0].(*MacroDecl)
	assert.Equal(t, "square", md.Name)
	assert.Equal(t, []string{"x"}, md.Params)
}

func TestParseReportsDiagnosticAndRecovers(t *testing.T) {
	toks, err := NewLexer("test.c5", `struct bad { int<32> ; }; int<32> ok() { return 0; }`).Lex()
	require.NoError(t, err)
	diags := &Diagnostics{}
	u := NewParser("test.c5", toks, diags).ParseUnit()
	require.True(t, diags.HasErrors())
	assert.Equal(t, ErrParse, diags.All()[0].Code)
	// recovery should still let the following well-formed declaration parse
	var foundOk bool
	for _, d := range u.Decls {
		if fd, ok := d.(*FuncDecl); ok && fd.Name == "ok" {
			foundOk = true
		}
	}
	assert.True(t, foundOk, "parser must resynchronize after a bad declaration and keep parsing")
}
