package c5

import "fmt"

// TypeKind tags the closed set of shapes a TypeDescriptor can take
// (spec.md §3 "Type descriptor").
type TypeKind int

const (
	KindVoid TypeKind = iota
	KindInt
	KindFloat
	KindChar
	KindString
	KindPointer
	KindArray
	KindStruct
	KindUnion
	KindEnum
	KindFunc
)

func (k TypeKind) String() string {
	return [...]string{"void", "int", "float", "char", "string", "pointer", "array", "struct", "union", "enum", "func"}[k]
}

// ArgClass is the System V AMD64 argument classification used to
// assign a value to integer or SSE registers at a call site (spec.md
// §4.5).
type ArgClass int

const (
	ClassInteger ArgClass = iota
	ClassSSE
)

// Field is one member of a struct, with its computed byte offset.
type Field struct {
	Name   string
	Type   *TypeDescriptor
	Offset int
}

// TypeDescriptor is the semantic representation of a type, derived
// from a parsed TypeExpr by the analyser's type-resolution pass
// (spec.md §3 "Type descriptor", §4.4 "Aggregate sizing").
type TypeDescriptor struct {
	Kind     TypeKind
	Width    int // bit width for Int/Float; 0 otherwise
	Signed   bool
	Name     string // user-defined type name, for Struct/Union/Enum
	Pointee  *TypeDescriptor
	Elem     *TypeDescriptor // array element type (for Array and the array<T> builtin)
	Fields   []Field         // struct fields, in source order
	Variants []*TypeDescriptor
	EnumVals []string

	FuncParams []*TypeDescriptor
	FuncReturn *TypeDescriptor
}

var (
	VoidType   = &TypeDescriptor{Kind: KindVoid}
	CharType   = &TypeDescriptor{Kind: KindChar, Width: 8, Signed: true}
	StringType = &TypeDescriptor{Kind: KindString}
)

func IntType(width int, signed bool) *TypeDescriptor {
	return &TypeDescriptor{Kind: KindInt, Width: width, Signed: signed}
}

func FloatType(width int) *TypeDescriptor {
	return &TypeDescriptor{Kind: KindFloat, Width: width, Signed: true}
}

func PointerType(pointee *TypeDescriptor) *TypeDescriptor {
	return &TypeDescriptor{Kind: KindPointer, Width: 64, Pointee: pointee}
}

// ArrayDescriptorType returns the builtin array<T> descriptor: a
// struct of {T* data; int<64> length; int<64> capacity;} per spec.md
// §4.4.
func ArrayDescriptorType(elem *TypeDescriptor) *TypeDescriptor {
	dataPtr := PointerType(elem)
	i64 := IntType(64, true)
	t := &TypeDescriptor{Kind: KindArray, Elem: elem}
	t.Fields = []Field{
		{Name: "data", Type: dataPtr, Offset: 0},
		{Name: "length", Type: i64, Offset: 8},
		{Name: "capacity", Type: i64, Offset: 16},
	}
	return t
}

// Size returns the type's size in bytes.
func (t *TypeDescriptor) Size() int {
	switch t.Kind {
	case KindVoid:
		return 0
	case KindChar:
		return 1
	case KindInt, KindFloat:
		return t.Width / 8
	case KindString, KindPointer, KindFunc:
		return 8
	case KindArray:
		return 24 // { T* data; int64 length; int64 capacity; }
	case KindEnum:
		return 4 // enum constants are int<32> underneath
	case KindStruct:
		if len(t.Fields) == 0 {
			return 0
		}
		last := t.Fields[len(t.Fields)-1]
		raw := last.Offset + last.Type.Size()
		align := t.Align()
		return alignUp(raw, align)
	case KindUnion:
		max := 0
		for _, v := range t.Variants {
			if s := v.Size(); s > max {
				max = s
			}
		}
		return max
	}
	return 0
}

// Align returns the type's natural alignment in bytes.
func (t *TypeDescriptor) Align() int {
	switch t.Kind {
	case KindVoid:
		return 1
	case KindChar:
		return 1
	case KindInt, KindFloat:
		return t.Width / 8
	case KindString, KindPointer, KindFunc:
		return 8
	case KindArray:
		return 8
	case KindEnum:
		return 4
	case KindStruct:
		max := 1
		for _, f := range t.Fields {
			if a := f.Type.Align(); a > max {
				max = a
			}
		}
		return max
	case KindUnion:
		max := 1
		for _, v := range t.Variants {
			if a := v.Align(); a > max {
				max = a
			}
		}
		return max
	}
	return 1
}

func alignUp(n, align int) int {
	if align <= 1 {
		return n
	}
	rem := n % align
	if rem == 0 {
		return n
	}
	return n + (align - rem)
}

// NewStructType lays out fields in source order with natural
// alignment padding, per spec.md §3's struct-offset invariant.
func NewStructType(name string, fieldTypes []struct {
	Name string
	Type *TypeDescriptor
}) *TypeDescriptor {
	t := &TypeDescriptor{Kind: KindStruct, Name: name}
	offset := 0
	for _, ft := range fieldTypes {
		align := ft.Type.Align()
		offset = alignUp(offset, align)
		t.Fields = append(t.Fields, Field{Name: ft.Name, Type: ft.Type, Offset: offset})
		offset += ft.Type.Size()
	}
	return t
}

// GASSuffix returns the AT&T-syntax operand-size suffix for a move
// instruction operating on this type (spec.md §4.5).
func (t *TypeDescriptor) GASSuffix() string {
	switch t.Size() {
	case 1:
		return "b"
	case 2:
		return "w"
	case 4:
		return "l"
	default:
		return "q"
	}
}

// ArgClassOf reports whether this type is passed in an integer or an
// SSE register per the System V AMD64 classification (spec.md §4.5).
func (t *TypeDescriptor) ArgClassOf() ArgClass {
	if t.Kind == KindFloat {
		return ClassSSE
	}
	return ClassInteger
}

// SignExtendOp returns the mnemonic used to load a value of this
// integer type into a 64-bit register, honouring declared signedness
// (spec.md §4.5). Only meaningful for Kind == KindInt/KindChar/KindEnum.
func (t *TypeDescriptor) SignExtendOp() string {
	size := t.Size()
	if size >= 8 {
		return "movq"
	}
	if t.Signed {
		switch size {
		case 1:
			return "movsbq"
		case 2:
			return "movswq"
		case 4:
			return "movslq"
		}
	}
	switch size {
	case 1:
		return "movzbq"
	case 2:
		return "movzwq"
	case 4:
		return "movl" // implicitly zero-extends into the full 64-bit register
	}
	return "movq"
}

// Equal reports whether two type descriptors describe the same type,
// structurally. Named aggregate/enum/union types compare by name
// (they are unique per scope, see symtab.go); everything else
// compares by shape.
func (t *TypeDescriptor) Equal(o *TypeDescriptor) bool {
	if t == nil || o == nil {
		return t == o
	}
	if t.Kind != o.Kind {
		return false
	}
	switch t.Kind {
	case KindInt, KindFloat:
		return t.Width == o.Width && t.Signed == o.Signed
	case KindPointer:
		return t.Pointee.Equal(o.Pointee)
	case KindArray:
		return t.Elem.Equal(o.Elem)
	case KindStruct, KindUnion, KindEnum:
		return t.Name == o.Name
	case KindFunc:
		if len(t.FuncParams) != len(o.FuncParams) || !t.FuncReturn.Equal(o.FuncReturn) {
			return false
		}
		for i := range t.FuncParams {
			if !t.FuncParams[i].Equal(o.FuncParams[i]) {
				return false
			}
		}
		return true
	}
	return true
}

func (t *TypeDescriptor) String() string {
	switch t.Kind {
	case KindInt:
		sign := "signed"
		if !t.Signed {
			sign = "unsigned"
		}
		return fmt.Sprintf("%s int<%d>", sign, t.Width)
	case KindFloat:
		return fmt.Sprintf("float<%d>", t.Width)
	case KindPointer:
		return t.Pointee.String() + "*"
	case KindArray:
		if t.Elem != nil {
			return fmt.Sprintf("array<%s>", t.Elem)
		}
		return "array"
	case KindStruct, KindUnion, KindEnum:
		return t.Name
	case KindFunc:
		return fmt.Sprintf("fnct(...)->%s", t.FuncReturn)
	default:
		return t.Kind.String()
	}
}

// IsCompatible implements the pointer/integer/float compatibility
// rules of spec.md §4.4: pointers are compatible with same-pointee
// pointers or void*; integers of different widths are compatible
// (extension is inserted by codegen); float/int require an explicit
// cast.
func IsCompatible(from, to *TypeDescriptor) bool {
	if from.Equal(to) {
		return true
	}
	switch to.Kind {
	case KindPointer:
		if from.Kind != KindPointer {
			return false
		}
		if to.Pointee.Kind == KindVoid || from.Pointee.Kind == KindVoid {
			return true
		}
		return from.Pointee.Equal(to.Pointee)
	case KindInt:
		return from.Kind == KindInt
	case KindFloat:
		return from.Kind == KindFloat
	}
	return false
}

// IntRange returns the inclusive [min, max] value range representable
// by a signed or unsigned integer of the given width (spec.md §4.4
// "Literal width bound").
func IntRange(width int, signed bool) (min, max int64) {
	if signed {
		if width >= 64 {
			return -(1 << 63), 1<<63 - 1
		}
		max = int64(1)<<(uint(width)-1) - 1
		min = -(int64(1) << (uint(width) - 1))
		return
	}
	if width >= 64 {
		// unsigned int<64>'s true max (2^64-1) does not fit in an
		// int64, so the range returned caps at math.MaxInt64;
		// checkLiteralBinding applies that cap as it is.
		return 0, 1<<63 - 1
	}
	return 0, int64(uint64(1)<<uint(width) - 1)
}
