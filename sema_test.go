package c5

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func analyze(t *testing.T, src string) (*Program, *Diagnostics) {
	t.Helper()
	toks, err := NewLexer("test.c5", src).Lex()
	require.NoError(t, err)
	diags := &Diagnostics{}
	unit := NewParser("test.c5", toks, diags).ParseUnit()
	require.False(t, diags.HasErrors(), "unexpected parse diagnostics: %v", diags.All())

	resolver := NewIncludeResolver(FileHeaderLoader{}, nil)
	prog := NewAnalyzer(NewConfig(), resolver, diags).Analyze("test.c5", unit)
	return prog, diags
}

func TestAnalyzeSimpleFunctionHasNoDiagnostics(t *testing.T) {
	_, diags := analyze(t, `int<32> add(int<32> a, int<32> b) { return a + b; }`)
	assert.False(t, diags.HasErrors(), "diags: %v", diags.All())
}

func TestAnalyzeConstViolationReportsE042(t *testing.T) {
	_, diags := analyze(t, `
		int<32> f() {
			const int<32> limit = 10;
			limit = 20;
			return limit;
		}
	`)
	require.True(t, diags.HasErrors())
	assert.Equal(t, ErrConstViolation, diags.All()[0].Code)
}

func TestAnalyzeConstGlobalUsableAcrossFunctions(t *testing.T) {
	_, diags := analyze(t, `
		const int<32> limit = 10;
		int<32> a() { return limit; }
		int<32> b() { return limit + 1; }
	`)
	assert.False(t, diags.HasErrors(), "diags: %v", diags.All())
}

func TestAnalyzeLiteralOutOfWidthReportsE023(t *testing.T) {
	_, diags := analyze(t, `
		int<32> f() {
			int<8> x = 1000;
			return x;
		}
	`)
	require.True(t, diags.HasErrors())
	assert.Equal(t, ErrLiteralOutOfWidth, diags.All()[0].Code)
}

func TestAnalyzeFloatNarrowingIsAWarningNotAnError(t *testing.T) {
	_, diags := analyze(t, `
		int<32> f() {
			float<32> x = 3.14159265358979;
			return 0;
		}
	`)
	assert.False(t, diags.HasErrors())
	require.NotEmpty(t, diags.All())
	assert.Equal(t, WarnFloatNarrowing, diags.All()[0].Code)
}

func TestAnalyzeSignatureMismatchOnRedeclaration(t *testing.T) {
	_, diags := analyze(t, `
		int<32> f(int<32> a);
		int<32> f(int<32> a, int<32> b) { return a + b; }
	`)
	require.True(t, diags.HasErrors())
	assert.Equal(t, ErrSignatureMismatch, diags.All()[0].Code)
}

func TestAnalyzeForwardDeclarationMatchingDefinitionIsFine(t *testing.T) {
	_, diags := analyze(t, `
		int<32> f(int<32> a);
		int<32> f(int<32> a) { return a; }
	`)
	assert.False(t, diags.HasErrors(), "diags: %v", diags.All())
}

func TestAnalyzeUndefinedIdentifierReportsE030(t *testing.T) {
	_, diags := analyze(t, `int<32> f() { return undefinedThing; }`)
	require.True(t, diags.HasErrors())
	assert.Equal(t, ErrSignatureMismatch, diags.All()[0].Code)
}

func TestAnalyzeDuplicateDefinitionReportsE041(t *testing.T) {
	_, diags := analyze(t, `
		struct point { int<32> x; int<32> y; };
		struct point { int<32> x; int<32> y; };
	`)
	require.True(t, diags.HasErrors())
	assert.Equal(t, ErrDuplicateDef, diags.All()[0].Code)
}

func TestAnalyzeMacroExpansionSubstitutesArguments(t *testing.T) {
	prog, diags := analyze(t, `
		macro square(x) { x * x }
		int<32> f(int<32> n) { return square(n); }
	`)
	require.False(t, diags.HasErrors(), "diags: %v", diags.All())
	require.Len(t, prog.Funcs, 1)
	ret := prog.Funcs[0].Body.Stmts[0].(*ReturnStmt)
	// square(n) must expand in place to n * n, not leave a macro call.
	_, stillACall := ret.Value.(*CallExpr)
	assert.False(t, stillACall)
	bin, ok := ret.Value.(*BinaryExpr)
	require.True(t, ok)
	assert.Equal(t, OpMul, bin.Op)
}

func TestAnalyzeMacroCallingMacroExpandsFully(t *testing.T) {
	prog, diags := analyze(t, `
		macro double(x) { x + x }
		macro quadruple(x) { double(double(x)) }
		int<32> f(int<32> n) { return quadruple(n); }
	`)
	require.False(t, diags.HasErrors(), "diags: %v", diags.All())
	ret := prog.Funcs[0].Body.Stmts[0].(*ReturnStmt)
	_, stillACall := ret.Value.(*CallExpr)
	assert.False(t, stillACall, "nested macro calls must re-expand to a fixed point with no CallExpr left")
}

func TestAnalyzeMacroWrongArgCountReportsDiagnostic(t *testing.T) {
	_, diags := analyze(t, `
		macro square(x) { x * x }
		int<32> f() { return square(1, 2); }
	`)
	require.True(t, diags.HasErrors())
}

func TestAnalyzeLambdaIsLiftedToTopLevelFunc(t *testing.T) {
	prog, diags := analyze(t, `
		int<32> f() {
			let fnct(int<32>, int<32>)->int<32> add = fnct(int<32> a, int<32> b) -> int<32> { return a + b; };
			return add(1, 2);
		}
	`)
	require.False(t, diags.HasErrors(), "diags: %v", diags.All())
	// one user function plus at least one lifted lambda function
	assert.GreaterOrEqual(t, len(prog.Funcs), 2)
	var found bool
	for _, fn := range prog.Funcs {
		if fn.Name != "f" {
			found = true
		}
	}
	assert.True(t, found, "lambda must be lifted into its own top-level FuncDecl")
}

func TestAnalyzeLambdaReturningLambdaBothLift(t *testing.T) {
	prog, diags := analyze(t, `
		int<32> f() {
			let fnct()->fnct(int<32>, int<32>)->int<32> makeAdder = fnct() -> fnct(int<32>, int<32>)->int<32> {
				return fnct(int<32> a, int<32> b) -> int<32> { return a + b; };
			};
			return 0;
		}
	`)
	require.False(t, diags.HasErrors(), "diags: %v", diags.All())
	assert.GreaterOrEqual(t, len(prog.Funcs), 3, "both the outer and inner lambdas must each become their own lifted function")
}

func TestAnalyzeTopLevelStructRegisteredByUnqualifiedName(t *testing.T) {
	prog, diags := analyze(t, `
		struct point { int<32> x; int<32> y; };
		int<32> f() { return 0; }
	`)
	require.False(t, diags.HasErrors(), "diags: %v", diags.All())
	assert.Contains(t, prog.Structs, "point")
}

func TestAnalyzeEnumMembersAreConstSymbols(t *testing.T) {
	prog, diags := analyze(t, `
		enum color { red, green, blue };
		int<32> f() { return 0; }
	`)
	assert.False(t, diags.HasErrors(), "diags: %v", diags.All())
	sym, ok := prog.Global.Lookup("red")
	require.True(t, ok)
	assert.Equal(t, StorageConst, sym.Storage)
}
