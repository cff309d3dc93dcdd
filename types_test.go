package c5

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTypeDescriptorSizeAndAlign(t *testing.T) {
	cases := []struct {
		name      string
		ty        *TypeDescriptor
		wantSize  int
		wantAlign int
	}{
		{"void", VoidType, 0, 1},
		{"char", CharType, 1, 1},
		{"int32", IntType(32, true), 4, 4},
		{"uint64", IntType(64, false), 8, 8},
		{"float64", FloatType(64), 8, 8},
		{"pointer", PointerType(IntType(32, true)), 8, 8},
		{"array descriptor", ArrayDescriptorType(IntType(32, true)), 24, 8},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.wantSize, c.ty.Size())
			assert.Equal(t, c.wantAlign, c.ty.Align())
		})
	}
}

func TestStructSizeHonoursPadding(t *testing.T) {
	// struct { int<8> a; int<32> b; } packs 1 + 3 padding + 4 = 8, aligned to 4.
	st := NewStructType("packed", []struct {
		Name string
		Type *TypeDescriptor
	}{
		{"a", IntType(8, true)},
		{"b", IntType(32, true)},
	})
	require.Len(t, st.Fields, 2)
	assert.Equal(t, 0, st.Fields[0].Offset)
	assert.Equal(t, 4, st.Fields[1].Offset)
	assert.Equal(t, 8, st.Size())
	assert.Equal(t, 4, st.Align())
}

func TestEmptyStructHasZeroSize(t *testing.T) {
	st := NewStructType("empty", nil)
	assert.Equal(t, 0, st.Size())
	assert.Equal(t, 1, st.Align())
}

func TestUnionSizeIsLargestVariant(t *testing.T) {
	u := &TypeDescriptor{Kind: KindUnion, Name: "u", Variants: []*TypeDescriptor{
		IntType(8, true), FloatType(64), IntType(32, true),
	}}
	assert.Equal(t, 8, u.Size())
	assert.Equal(t, 8, u.Align())
}

func TestGASSuffix(t *testing.T) {
	assert.Equal(t, "b", CharType.GASSuffix())
	assert.Equal(t, "l", IntType(32, true).GASSuffix())
	assert.Equal(t, "q", IntType(64, true).GASSuffix())
	assert.Equal(t, "q", PointerType(VoidType).GASSuffix())
}

func TestArgClassOf(t *testing.T) {
	assert.Equal(t, ClassSSE, FloatType(64).ArgClassOf())
	assert.Equal(t, ClassInteger, IntType(32, true).ArgClassOf())
	assert.Equal(t, ClassInteger, PointerType(VoidType).ArgClassOf())
}

func TestSignExtendOp(t *testing.T) {
	assert.Equal(t, "movsbq", IntType(8, true).SignExtendOp())
	assert.Equal(t, "movzbq", IntType(8, false).SignExtendOp())
	assert.Equal(t, "movslq", IntType(32, true).SignExtendOp())
	assert.Equal(t, "movl", IntType(32, false).SignExtendOp())
	assert.Equal(t, "movq", IntType(64, true).SignExtendOp())
}

func TestIsCompatiblePointers(t *testing.T) {
	i32 := IntType(32, true)
	voidPtr := PointerType(VoidType)
	i32Ptr := PointerType(i32)
	otherPtr := PointerType(IntType(8, true))

	assert.True(t, IsCompatible(voidPtr, i32Ptr), "void* should convert to any pointer")
	assert.True(t, IsCompatible(i32Ptr, voidPtr), "any pointer should convert to void*")
	assert.True(t, IsCompatible(i32Ptr, i32Ptr), "identical pointee types are compatible")
	assert.False(t, IsCompatible(i32Ptr, otherPtr), "mismatched non-void pointees are not compatible")
	assert.False(t, IsCompatible(i32Ptr, i32), "pointer is not compatible with a bare int")
}

func TestIsCompatibleIntAndFloat(t *testing.T) {
	assert.True(t, IsCompatible(IntType(8, true), IntType(64, true)), "widening int conversion is allowed")
	assert.True(t, IsCompatible(FloatType(32), FloatType(64)), "widening float conversion is allowed")
	assert.False(t, IsCompatible(FloatType(64), IntType(32, true)), "float requires an explicit cast to int")
	assert.False(t, IsCompatible(IntType(32, true), FloatType(64)), "int requires an explicit cast to float")
}

func TestIntRangeSignedAndUnsigned(t *testing.T) {
	min, max := IntRange(8, true)
	assert.Equal(t, int64(-128), min)
	assert.Equal(t, int64(127), max)

	min, max = IntRange(8, false)
	assert.Equal(t, int64(0), min)
	assert.Equal(t, int64(255), max)

	min, max = IntRange(32, true)
	assert.Equal(t, int64(-2147483648), min)
	assert.Equal(t, int64(2147483647), max)
}

func TestTypeDescriptorEqual(t *testing.T) {
	assert.True(t, IntType(32, true).Equal(IntType(32, true)))
	assert.False(t, IntType(32, true).Equal(IntType(32, false)), "signedness differentiates equality")
	assert.False(t, IntType(16, true).Equal(IntType(32, true)), "width differentiates equality")

	a := &TypeDescriptor{Kind: KindStruct, Name: "point"}
	b := &TypeDescriptor{Kind: KindStruct, Name: "point", Fields: []Field{{Name: "x", Type: IntType(32, true)}}}
	assert.True(t, a.Equal(b), "named aggregate types compare by name only")
}
