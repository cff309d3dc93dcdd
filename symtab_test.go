package c5

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScopeDefineAndLookup(t *testing.T) {
	diags := &Diagnostics{}
	global := NewScope("global", "", nil)

	sym := &Symbol{Kind: SymVariable, Name: "x", VarType: IntType(32, true), Storage: StorageGlobal}
	ok := global.Define(sym, Span{}, diags)
	require.True(t, ok)

	got, found := global.Lookup("x")
	require.True(t, found)
	assert.Same(t, sym, got)
	assert.False(t, diags.HasErrors())
}

func TestScopeDefineDuplicateReportsE041(t *testing.T) {
	diags := &Diagnostics{}
	global := NewScope("global", "", nil)

	global.Define(&Symbol{Kind: SymVariable, Name: "x"}, Span{}, diags)
	ok := global.Define(&Symbol{Kind: SymVariable, Name: "x"}, Span{}, diags)

	assert.False(t, ok)
	require.True(t, diags.HasErrors())
	assert.Equal(t, ErrDuplicateDef, diags.All()[0].Code)
}

func TestScopeLookupWalksToParent(t *testing.T) {
	diags := &Diagnostics{}
	global := NewScope("global", "", nil)
	global.Define(&Symbol{Kind: SymVariable, Name: "g"}, Span{}, diags)

	block := NewScope("block", "", global)
	_, found := block.Lookup("g")
	assert.True(t, found, "a child scope must see its enclosing scope's symbols")
}

func TestScopeShadowingIsAllowed(t *testing.T) {
	diags := &Diagnostics{}
	global := NewScope("global", "", nil)
	outer := &Symbol{Kind: SymVariable, Name: "x", VarType: IntType(32, true)}
	global.Define(outer, Span{}, diags)

	block := NewScope("block", "", global)
	inner := &Symbol{Kind: SymVariable, Name: "x", VarType: IntType(64, true)}
	ok := block.Define(inner, Span{}, diags)

	assert.True(t, ok, "shadowing an outer name in a nested scope must not be a duplicate definition")
	assert.False(t, diags.HasErrors())

	got, _ := block.Lookup("x")
	assert.Same(t, inner, got)
}

func TestScopeLookupLocalDoesNotWalkToParent(t *testing.T) {
	diags := &Diagnostics{}
	global := NewScope("global", "", nil)
	global.Define(&Symbol{Kind: SymVariable, Name: "g"}, Span{}, diags)

	block := NewScope("block", "", global)
	_, found := block.LookupLocal("g")
	assert.False(t, found)
}

func TestScopeNamespaceCreatesOnFirstUseAndReusesAfter(t *testing.T) {
	global := NewScope("global", "", nil)

	a := global.Namespace("std")
	b := global.Namespace("std")
	assert.Same(t, a, b, "the same header namespace must resolve to one scope across repeated includes")
	assert.Equal(t, "namespace", a.Kind)
	assert.Equal(t, "std", a.Name)
}

func TestScopeLookupMissingReturnsFalse(t *testing.T) {
	global := NewScope("global", "", nil)
	_, found := global.Lookup("nope")
	assert.False(t, found)
}
