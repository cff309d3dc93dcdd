package c5

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIncludeResolverStampsNamespace(t *testing.T) {
	loader := NewMemHeaderLoader()
	loader.Add("std.c5h", []byte(`int<32> add(int<32> a, int<32> b) { return a + b; }`))

	resolver := NewIncludeResolver(loader, nil)
	diags := &Diagnostics{}

	toks, err := NewLexer("main.c5", `include <std.c5h>;`).Lex()
	require.NoError(t, err)
	unit := NewParser("main.c5", toks, diags).ParseUnit()
	require.False(t, diags.HasErrors())

	incl := unit.Decls[0].(*IncludeDecl)
	decls := resolver.Resolve(incl, "main.c5", diags)
	require.False(t, diags.HasErrors())
	require.Len(t, decls, 1)

	fd := decls[0].(*FuncDecl)
	assert.Equal(t, "std", fd.Namespace)
}

func TestIncludeResolverNotFoundReportsE010(t *testing.T) {
	loader := NewMemHeaderLoader()
	resolver := NewIncludeResolver(loader, nil)
	diags := &Diagnostics{}

	incl := &IncludeDecl{Name: "missing"}
	decls := resolver.Resolve(incl, "main.c5", diags)

	assert.Nil(t, decls)
	require.True(t, diags.HasErrors())
	assert.Equal(t, ErrIncludeNotFound, diags.All()[0].Code)
}

func TestIncludeResolverDiamondIncludeIsNotReparsed(t *testing.T) {
	loader := NewMemHeaderLoader()
	loader.Add("a.c5h", []byte(`include <shared.c5h>;`))
	loader.Add("b.c5h", []byte(`include <shared.c5h>;`))
	loader.Add("shared.c5h", []byte(`struct point { int<32> x; int<32> y; };`))

	resolver := NewIncludeResolver(loader, nil)
	diags := &Diagnostics{}

	declsA := resolver.Resolve(&IncludeDecl{Name: "a"}, "main.c5", diags)
	declsB := resolver.Resolve(&IncludeDecl{Name: "b"}, "main.c5", diags)

	require.False(t, diags.HasErrors())
	require.Len(t, declsA, 1)
	require.Len(t, declsB, 1)
	// both paths reach the same cached declaration from `shared.c5h`
	assert.Same(t, declsA[0], declsB[0])
}

func TestIncludeResolverCyclicIncludeDoesNotHang(t *testing.T) {
	loader := NewMemHeaderLoader()
	loader.Add("a.c5h", []byte(`include <b.c5h>;`))
	loader.Add("b.c5h", []byte(`include <a.c5h>;`))

	resolver := NewIncludeResolver(loader, nil)
	diags := &Diagnostics{}

	// must return rather than recurse forever
	_ = resolver.Resolve(&IncludeDecl{Name: "a"}, "main.c5", diags)
}
