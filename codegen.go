package c5

import (
	"fmt"
)

// CodeGenerator walks a resolved Program and emits x86_64 AT&T-syntax
// (GAS) assembly text directly: no intermediate representation and no
// optimisation pass sit between the AST and the instruction stream
// (spec.md §1, §4.5). Every function is compiled independently; the
// driver hands the concatenated text to `as`/`ld` (spec.md §4.6).
type CodeGenerator struct {
	prog *Program
	out  *outputWriter

	strs     map[string]string // literal text -> .rodata label
	strOrder []string
	labelNum int

	frame *frame
	fnEnd string // epilogue label for the function currently being emitted
}

type frame struct {
	offsets   map[string]int               // variable name -> byte offset from %rbp (negative)
	declTypes map[string]string            // variable name -> qualified struct type name, for field lookups
	types     map[string]*TypeDescriptor   // variable name -> resolved type, for arithmetic/indexing dispatch
	size      int                          // total frame size, 16-byte aligned
}

func NewCodeGenerator(prog *Program) *CodeGenerator {
	return &CodeGenerator{
		prog: prog,
		out:  newOutputWriter("\t"),
		strs: map[string]string{},
	}
}

// Generate renders the whole program as one assembly text unit:
// .data for mutable globals, .rodata for string literals, .text for
// every function (spec.md §4.5 "Section layout").
func (g *CodeGenerator) Generate() string {
	g.collectStringLiterals()

	g.out.writel(".text")
	for _, fn := range g.prog.Funcs {
		g.emitFunc(fn)
	}

	g.out.writel("")
	g.out.writel(".data")
	for _, v := range g.prog.Globals {
		g.emitGlobal(v)
	}

	g.out.writel("")
	g.out.writel(".rodata")
	for _, lit := range g.strOrder {
		g.out.writeil(fmt.Sprintf("%s:", g.strs[lit]))
		g.out.writeil(fmt.Sprintf("\t.string %q", lit))
	}

	return g.out.buffer.String()
}

// symbolName returns the assembler symbol for a namespace-qualified
// name: empty namespace (ordinary user code, including `main`) stays
// unmangled; everything pulled in from a header is prefixed
// `<namespace>__<name>` so two headers can each declare `len` without
// colliding (spec.md §4.2, §4.5).
func symbolName(ns, name string) string {
	if ns == "" {
		return name
	}
	return ns + "__" + name
}

func (g *CodeGenerator) newLabel(tag string) string {
	g.labelNum++
	return fmt.Sprintf(".L%s%d", tag, g.labelNum)
}

// ---------------------------------------------------------------
// Globals and string literals
// ---------------------------------------------------------------

func (g *CodeGenerator) emitGlobal(v *VarDecl) {
	name := symbolName("", v.Name)
	g.out.writeil(fmt.Sprintf(".globl %s", name))
	g.out.writeil(fmt.Sprintf("%s:", name))
	ty := g.resolveType(v.Type)
	size := ty.Size()
	if size == 0 {
		size = 8
	}
	if lit, ok := v.Init.(*IntLitExpr); ok {
		g.out.writeil(fmt.Sprintf("\t.%s %d", sizeDirective(size), lit.Value))
		return
	}
	g.out.writeil(fmt.Sprintf("\t.zero %d", size))
}

func sizeDirective(size int) string {
	switch size {
	case 1:
		return "byte"
	case 2:
		return "word"
	case 4:
		return "long"
	default:
		return "quad"
	}
}

// collectStringLiterals walks every function body looking for
// StringLitExpr nodes so each distinct literal gets exactly one
// .rodata slot, the same way a conventional AOT backend pools string
// constants instead of inlining them at every use site.
func (g *CodeGenerator) collectStringLiterals() {
	for _, fn := range g.prog.Funcs {
		if fn.Body == nil {
			continue
		}
		Walk(fn.Body, func(n Node) {
			if s, ok := n.(*StringLitExpr); ok {
				g.internString(s.Value)
			}
		})
	}
}

func (g *CodeGenerator) internString(s string) string {
	if label, ok := g.strs[s]; ok {
		return label
	}
	label := fmt.Sprintf(".LS%d", len(g.strOrder))
	g.strs[s] = label
	g.strOrder = append(g.strOrder, s)
	return label
}

// ---------------------------------------------------------------
// Type resolution (codegen's own pass, mirroring sema's — see
// DESIGN.md: the semantic analyser resolves types to decide what is
// legal, codegen resolves them again to decide how many bytes and
// which registers, the same split spec.md §4.4/§4.5 draws between the
// two components)
// ---------------------------------------------------------------

func (g *CodeGenerator) resolveType(te TypeExpr) *TypeDescriptor {
	switch t := te.(type) {
	case *PrimitiveTypeExpr:
		switch t.Name {
		case "int":
			w := t.Width
			if w == 0 {
				w = 32
			}
			return IntType(w, true)
		case "float":
			w := t.Width
			if w == 0 {
				w = 64
			}
			return FloatType(w)
		case "char":
			return CharType
		case "string":
			return StringType
		case "void":
			return VoidType
		}
	case *PointerTypeExpr:
		return PointerType(g.resolveType(t.Elem))
	case *ArrayTypeExpr:
		return ArrayDescriptorType(g.resolveType(t.Elem))
	case *NamedTypeExpr:
		qn := t.Name
		if t.Namespace != "" {
			qn = t.Namespace + "::" + t.Name
		}
		if td, ok := g.prog.Structs[qn]; ok {
			return td
		}
		if td, ok := g.prog.Unions[qn]; ok {
			return td
		}
		if td, ok := g.prog.Enums[qn]; ok {
			return td
		}
	case *FuncTypeExpr:
		td := &TypeDescriptor{Kind: KindFunc, FuncReturn: g.resolveType(t.Return)}
		for _, p := range t.Params {
			td.FuncParams = append(td.FuncParams, g.resolveType(p))
		}
		return td
	}
	return VoidType
}

// ---------------------------------------------------------------
// Frame layout
// ---------------------------------------------------------------

var intArgRegs = []string{"%rdi", "%rsi", "%rdx", "%rcx", "%r8", "%r9"}
var sseArgRegs = []string{"%xmm0", "%xmm1", "%xmm2", "%xmm3", "%xmm4", "%xmm5", "%xmm6", "%xmm7"}

// buildFrame assigns every parameter and local variable declared
// anywhere in fn a negative %rbp offset, walking the function body in
// source order (spec.md §4.5 "Compute frame size, assign each local a
// negative offset from %rbp"). Locals declared in nested blocks get
// their own offset the same as top-level ones: C5 has no block-scope
// shadowing-driven reuse of stack slots, so every declaration in a
// function just keeps claiming fresh space.
func (g *CodeGenerator) buildFrame(fn *FuncDecl) *frame {
	f := &frame{offsets: map[string]int{}, declTypes: map[string]string{}, types: map[string]*TypeDescriptor{}}
	off := 0
	claim := func(name string, te TypeExpr) {
		ty := g.resolveType(te)
		size := ty.Size()
		if size == 0 {
			size = 8
		}
		align := ty.Align()
		if align == 0 {
			align = 8
		}
		off += size
		off = alignUp(off, align)
		f.offsets[name] = -off
		f.types[name] = ty
		if nt, ok := te.(*NamedTypeExpr); ok {
			f.declTypes[name] = nt.String()
		}
	}
	for _, p := range fn.Params {
		claim(p.Name, p.Type)
	}
	if fn.Body != nil {
		Walk(fn.Body, func(n Node) {
			switch t := n.(type) {
			case *VarDeclStmt:
				claim(t.Name, t.Type)
			case *ForeachStmt:
				f.offsets[t.IndexName] = -(off + 8)
				off += 8
				f.offsets[t.ValueName] = -(off + 8)
				off += 8
				// the element type is only known via the array's static
				// type, which codegen does not re-derive here; foreach
				// values are always materialised through an 8-byte slot
				// (a scalar or a pointer-sized aggregate handle).
			}
		})
	}
	f.size = alignUp(off, 16)
	return f
}

// ---------------------------------------------------------------
// Functions
// ---------------------------------------------------------------

func (g *CodeGenerator) emitFunc(fn *FuncDecl) {
	if fn.Body == nil {
		return // prototype only; nothing to emit
	}
	name := symbolName(fn.Namespace, fn.Name)
	g.frame = g.buildFrame(fn)
	g.fnEnd = g.newLabel("ret")

	g.out.writeil(fmt.Sprintf(".globl %s", name))
	g.out.writeil(fmt.Sprintf("%s:", name))
	g.out.writeil("\tpushq %rbp")
	g.out.writeil("\tmovq %rsp, %rbp")
	if g.frame.size > 0 {
		g.out.writeil(fmt.Sprintf("\tsubq $%d, %%rsp", g.frame.size))
	}

	g.spillIncomingArgs(fn)

	for _, s := range fn.Body.Stmts {
		g.genStmt(s)
	}

	g.out.writeil(fmt.Sprintf("%s:", g.fnEnd))
	g.out.writeil("\tleave")
	g.out.writeil("\tret")
	g.out.writel("")
}

// spillIncomingArgs copies each parameter out of its SysV argument
// register into its stack slot immediately on entry, the simplest
// correct strategy and the one a non-optimising backend without
// register allocation is expected to use (spec.md §4.5 "no
// optimiser").
func (g *CodeGenerator) spillIncomingArgs(fn *FuncDecl) {
	intIdx, sseIdx := 0, 0
	for _, p := range fn.Params {
		ty := g.resolveType(p.Type)
		off := g.frame.offsets[p.Name]
		if ty.ArgClassOf() == ClassSSE {
			if sseIdx < len(sseArgRegs) {
				g.out.writeil(fmt.Sprintf("\tmovsd %s, %d(%%rbp)", sseArgRegs[sseIdx], off))
				sseIdx++
			}
			continue
		}
		if intIdx < len(intArgRegs) {
			reg := sizedReg(intArgRegs[intIdx], ty.Size())
			g.out.writeil(fmt.Sprintf("\tmov%s %s, %d(%%rbp)", ty.GASSuffix(), reg, off))
			intIdx++
		}
	}
}

// sizedReg narrows a 64-bit argument register name to the matching
// width sub-register for a byte/word/long-sized store.
func sizedReg(reg64 string, size int) string {
	sub := map[string]map[int]string{
		"%rdi": {1: "%dil", 2: "%di", 4: "%edi", 8: "%rdi"},
		"%rsi": {1: "%sil", 2: "%si", 4: "%esi", 8: "%rsi"},
		"%rdx": {1: "%dl", 2: "%dx", 4: "%edx", 8: "%rdx"},
		"%rcx": {1: "%cl", 2: "%cx", 4: "%ecx", 8: "%rcx"},
		"%r8":  {1: "%r8b", 2: "%r8w", 4: "%r8d", 8: "%r8"},
		"%r9":  {1: "%r9b", 2: "%r9w", 4: "%r9d", 8: "%r9"},
	}
	if m, ok := sub[reg64]; ok {
		if r, ok := m[size]; ok {
			return r
		}
	}
	return reg64
}

// ---------------------------------------------------------------
// Statements
// ---------------------------------------------------------------

func (g *CodeGenerator) genStmt(s Stmt) {
	switch t := s.(type) {
	case *VarDeclStmt:
		ty := g.resolveType(t.Type)
		if t.Init != nil {
			g.genExprInto(t.Init, ty)
			g.storeAcc(g.frame.offsets[t.Name], ty)
		}
	case *BlockStmt:
		for _, st := range t.Stmts {
			g.genStmt(st)
		}
	case *IfStmt:
		g.genIf(t)
	case *WhileStmt:
		g.genWhile(t)
	case *DoWhileStmt:
		g.genDoWhile(t)
	case *ForStmt:
		g.genFor(t)
	case *ForeachStmt:
		g.genForeach(t)
	case *ReturnStmt:
		if t.Value != nil {
			g.genExpr(t.Value)
		}
		g.out.writeil(fmt.Sprintf("\tjmp %s", g.fnEnd))
	case *ExprStmt:
		g.genExpr(t.Expr)
	}
}

func (g *CodeGenerator) genIf(s *IfStmt) {
	elseLabel := g.newLabel("else")
	endLabel := g.newLabel("endif")
	g.genExpr(s.Cond)
	g.out.writeil("\tcmpq $0, %rax")
	g.out.writeil(fmt.Sprintf("\tje %s", elseLabel))
	g.genStmt(s.Then)
	g.out.writeil(fmt.Sprintf("\tjmp %s", endLabel))
	g.out.writeil(fmt.Sprintf("%s:", elseLabel))
	if s.Else != nil {
		g.genStmt(s.Else)
	}
	g.out.writeil(fmt.Sprintf("%s:", endLabel))
}

func (g *CodeGenerator) genWhile(s *WhileStmt) {
	top := g.newLabel("wtop")
	end := g.newLabel("wend")
	g.out.writeil(fmt.Sprintf("%s:", top))
	g.genExpr(s.Cond)
	g.out.writeil("\tcmpq $0, %rax")
	g.out.writeil(fmt.Sprintf("\tje %s", end))
	g.genStmt(s.Body)
	g.out.writeil(fmt.Sprintf("\tjmp %s", top))
	g.out.writeil(fmt.Sprintf("%s:", end))
}

func (g *CodeGenerator) genDoWhile(s *DoWhileStmt) {
	top := g.newLabel("dotop")
	g.out.writeil(fmt.Sprintf("%s:", top))
	g.genStmt(s.Body)
	g.genExpr(s.Cond)
	g.out.writeil("\tcmpq $0, %rax")
	g.out.writeil(fmt.Sprintf("\tjne %s", top))
}

func (g *CodeGenerator) genFor(s *ForStmt) {
	top := g.newLabel("ftop")
	end := g.newLabel("fend")
	if s.Init != nil {
		g.genStmt(s.Init)
	}
	g.out.writeil(fmt.Sprintf("%s:", top))
	if s.Cond != nil {
		g.genExpr(s.Cond)
		g.out.writeil("\tcmpq $0, %rax")
		g.out.writeil(fmt.Sprintf("\tje %s", end))
	}
	g.genStmt(s.Body)
	if s.Post != nil {
		g.genExpr(s.Post)
	}
	g.out.writeil(fmt.Sprintf("\tjmp %s", top))
	g.out.writeil(fmt.Sprintf("%s:", end))
}

// genForeach lowers `foreach (i, v in arr) body` to an ordinary
// counted loop reading the array descriptor's length field and
// indexing its data pointer, per spec.md §4.5 "foreach lowering":
// there is no dedicated iterator machinery, just arithmetic over the
// {data,length,capacity} triple every array<T> already carries.
func (g *CodeGenerator) genForeach(s *ForeachStmt) {
	top := g.newLabel("fetop")
	end := g.newLabel("feend")

	idxOff := g.frame.offsets[s.IndexName]
	valOff := g.frame.offsets[s.ValueName]

	g.genExpr(s.Array) // leaves the array's base address in %rax
	g.out.writeil("\tpushq %rax")

	g.out.writeil(fmt.Sprintf("\tmovq $0, %d(%%rbp)", idxOff))
	g.out.writeil(fmt.Sprintf("%s:", top))
	g.out.writeil("\tmovq (%rsp), %rax")
	g.out.writeil("\tmovq 8(%rax), %rcx") // length field
	g.out.writeil(fmt.Sprintf("\tmovq %d(%%rbp), %%rdx", idxOff))
	g.out.writeil("\tcmpq %rcx, %rdx")
	g.out.writeil(fmt.Sprintf("\tjge %s", end))

	g.out.writeil("\tmovq (%rsp), %rax")
	g.out.writeil("\tmovq (%rax), %rax") // data pointer
	g.out.writeil(fmt.Sprintf("\tmovq %d(%%rbp), %%rdx", idxOff))
	g.out.writeil("\tleaq (%rax,%rdx,8), %rax")
	g.out.writeil("\tmovq (%rax), %rax")
	g.out.writeil(fmt.Sprintf("\tmovq %%rax, %d(%%rbp)", valOff))

	g.genStmt(s.Body)

	g.out.writeil(fmt.Sprintf("\tmovq %d(%%rbp), %%rax", idxOff))
	g.out.writeil("\taddq $1, %rax")
	g.out.writeil(fmt.Sprintf("\tmovq %%rax, %d(%%rbp)", idxOff))
	g.out.writeil(fmt.Sprintf("\tjmp %s", top))
	g.out.writeil(fmt.Sprintf("%s:", end))
	g.out.writeil("\taddq $8, %rsp")
}

// ---------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------

// genExpr evaluates e, leaving an integer/pointer result in %rax or a
// floating-point result in %xmm0.
func (g *CodeGenerator) genExpr(e Expr) {
	switch t := e.(type) {
	case *IntLitExpr:
		g.out.writeil(fmt.Sprintf("\tmovq $%d, %%rax", t.Value))
	case *FloatLitExpr:
		label := g.internFloat(t.Value)
		g.out.writeil(fmt.Sprintf("\tmovsd %s(%%rip), %%xmm0", label))
	case *CharLitExpr:
		g.out.writeil(fmt.Sprintf("\tmovq $%d, %%rax", t.Value))
	case *StringLitExpr:
		label := g.internString(t.Value)
		g.out.writeil(fmt.Sprintf("\tleaq %s(%%rip), %%rax", label))
	case *IdentExpr:
		g.genLoadIdent(t)
	case *BinaryExpr:
		g.genBinary(t)
	case *UnaryExpr:
		g.genUnary(t)
	case *CastExpr:
		g.genCast(t)
	case *CallExpr:
		g.genCall(t)
	case *IndexExpr:
		g.genLoadIndex(t)
	case *MemberExpr:
		g.genLoadMember(t, false)
	case *ArrowExpr:
		g.genLoadMember(t, true)
	case *AddrOfExpr:
		g.genAddr(t.Operand)
	case *DerefExpr:
		g.genExpr(t.Operand)
		g.out.writeil("\tmovq (%rax), %rax")
	case *ArrayLitExpr:
		g.genArrayLit(t)
	case *LambdaExpr:
		g.out.writeil(fmt.Sprintf("\tleaq %s(%%rip), %%rax", t.LiftedName))
	case *CStrExpr:
		g.genExpr(t.Operand) // string and char* share representation
	}
}

// genExprInto evaluates e and, if its declared target type is a
// float while the value lands in %rax (an int literal feeding a float
// slot) or vice versa, performs the SysV conversion.
func (g *CodeGenerator) genExprInto(e Expr, target *TypeDescriptor) {
	g.genExpr(e)
	if target.Kind == KindFloat && !exprIsFloat(e) {
		g.out.writeil("\tcvtsi2sdq %rax, %xmm0")
	}
}

// exprIsFloat is a shallow, best-effort check used only to decide
// whether a value already computed in %xmm0 needs no further
// conversion; it does not replace the semantic analyser's type
// checking.
func exprIsFloat(e Expr) bool {
	switch e.(type) {
	case *FloatLitExpr:
		return true
	default:
		return false
	}
}

func (g *CodeGenerator) internFloat(v float64) string {
	key := fmt.Sprintf("__f_%v", v)
	if label, ok := g.strs[key]; ok {
		return label
	}
	label := fmt.Sprintf(".LF%d", len(g.strOrder))
	g.strs[key] = label
	g.strOrder = append(g.strOrder, key)
	return label
}

func (g *CodeGenerator) genLoadIdent(id *IdentExpr) {
	if off, ok := g.frame.offsets[id.Name]; ok {
		g.out.writeil(fmt.Sprintf("\tmovq %d(%%rbp), %%rax", off))
		return
	}
	name := symbolName(id.Namespace, id.Name)
	g.out.writeil(fmt.Sprintf("\tmovq %s(%%rip), %%rax", name))
}

// genAddr computes the address of an lvalue into %rax, used by
// AddrOfExpr and as the first step of every store.
func (g *CodeGenerator) genAddr(e Expr) {
	switch t := e.(type) {
	case *IdentExpr:
		if off, ok := g.frame.offsets[t.Name]; ok {
			g.out.writeil(fmt.Sprintf("\tleaq %d(%%rbp), %%rax", off))
			return
		}
		name := symbolName(t.Namespace, t.Name)
		g.out.writeil(fmt.Sprintf("\tleaq %s(%%rip), %%rax", name))
	case *MemberExpr:
		g.genAddr(t.Base)
		g.out.writeil(fmt.Sprintf("\taddq $%d, %%rax", g.fieldOffset(t.Base, t.Field)))
	case *ArrowExpr:
		g.genExpr(t.Base)
		g.out.writeil(fmt.Sprintf("\taddq $%d, %%rax", g.fieldOffsetPtr(t.Base, t.Field)))
	case *IndexExpr:
		g.genIndexAddr(t)
	case *DerefExpr:
		g.genExpr(t.Operand)
	default:
		g.out.writeil("\t# address-of a non-lvalue expression")
	}
}

// fieldOffset/fieldOffsetPtr look a struct field's byte offset up
// from the static type of base. Since codegen does not carry the
// analyser's expression-type annotations forward on the AST, both
// helpers re-derive the field list from a NamedTypeExpr base when one
// is statically known, falling back to offset 0 (first field)
// otherwise — sufficient for the common case of a struct-typed local
// or parameter.
func (g *CodeGenerator) fieldOffset(base Expr, field string) int {
	return g.lookupFieldOffset(base, field)
}

func (g *CodeGenerator) fieldOffsetPtr(base Expr, field string) int {
	return g.lookupFieldOffset(base, field)
}

func (g *CodeGenerator) lookupFieldOffset(base Expr, field string) int {
	if f, ok := g.lookupField(base, field); ok {
		return f.Offset
	}
	return 0
}

func (g *CodeGenerator) lookupField(base Expr, field string) (Field, bool) {
	name := g.staticTypeNameOf(base)
	if td, ok := g.prog.Structs[name]; ok {
		for _, f := range td.Fields {
			if f.Name == field {
				return f, true
			}
		}
	}
	return Field{}, false
}

// staticTypeNameOf recovers a struct-typed expression's declared type
// name by checking the function parameter/local declaration it came
// from; this is the minimal bookkeeping codegen needs without fully
// re-running type inference.
func (g *CodeGenerator) staticTypeNameOf(e Expr) string {
	id, ok := e.(*IdentExpr)
	if !ok {
		return ""
	}
	if ty, ok := g.frame.declTypes[id.Name]; ok {
		return ty
	}
	return ""
}

// staticTypeOf is codegen's own best-effort re-derivation of an
// expression's type, the same re-derivation staticTypeNameOf already
// does for struct field lookups (see the comment there), generalized
// to the cases genBinary/genIndexAddr/genArrayLit need to dispatch on:
// string/pointer arithmetic, array/pointer/string element sizing, and
// array-literal element typing (spec.md §4.5 "Strings", "Pointer
// arithmetic", "Arrays"). It returns nil when the type cannot be
// recovered from the bookkeeping codegen keeps; callers fall back to
// the existing untyped 8-byte/quad-word behavior in that case.
func (g *CodeGenerator) staticTypeOf(e Expr) *TypeDescriptor {
	switch t := e.(type) {
	case *IntLitExpr:
		return IntType(32, true)
	case *FloatLitExpr:
		return FloatType(64)
	case *CharLitExpr:
		return CharType
	case *StringLitExpr:
		return StringType
	case *IdentExpr:
		if g.frame != nil {
			if ty, ok := g.frame.types[t.Name]; ok {
				return ty
			}
		}
		for _, gv := range g.prog.Globals {
			if gv.Name == t.Name {
				return g.resolveType(gv.Type)
			}
		}
		return nil
	case *BinaryExpr:
		switch t.Op {
		case OpEq, OpNeq, OpLt, OpLe, OpGt, OpGe, OpAnd, OpOr:
			return IntType(32, true)
		case OpAdd, OpSub:
			lt := g.staticTypeOf(t.Left)
			if lt != nil && lt.Kind == KindPointer {
				rt := g.staticTypeOf(t.Right)
				if t.Op == OpSub && rt != nil && rt.Kind == KindPointer {
					return IntType(64, true)
				}
				return lt
			}
			return lt
		default:
			return g.staticTypeOf(t.Left)
		}
	case *UnaryExpr:
		if t.Op == OpNot {
			return IntType(32, true)
		}
		return g.staticTypeOf(t.Operand)
	case *CastExpr:
		return g.resolveType(t.Type)
	case *CallExpr:
		if id, ok := t.Callee.(*IdentExpr); ok {
			for _, fn := range g.prog.Funcs {
				if fn.Name == id.Name && fn.Namespace == id.Namespace {
					return g.resolveType(fn.ReturnType)
				}
			}
		}
		return nil
	case *IndexExpr:
		return g.indexElemType(t.Base)
	case *MemberExpr:
		if f, ok := g.lookupField(t.Base, t.Field); ok {
			return f.Type
		}
		return nil
	case *ArrowExpr:
		if f, ok := g.lookupField(t.Base, t.Field); ok {
			return f.Type
		}
		return nil
	case *AddrOfExpr:
		if inner := g.staticTypeOf(t.Operand); inner != nil {
			return PointerType(inner)
		}
		return nil
	case *DerefExpr:
		if inner := g.staticTypeOf(t.Operand); inner != nil && inner.Kind == KindPointer {
			return inner.Pointee
		}
		return nil
	case *ArrayLitExpr:
		if len(t.Items) == 0 {
			return nil
		}
		return ArrayDescriptorType(g.staticTypeOf(t.Items[0]))
	case *CStrExpr:
		return PointerType(CharType)
	}
	return nil
}

// indexElemType reports the element type indexing base yields: the
// i-th byte as char for a string, the element type for array<T>, or
// the pointee for a raw pointer (spec.md §4.5 "Strings" / "Pointer
// arithmetic" / "Arrays"). It returns nil when base's type cannot be
// recovered, and callers fall back to 8-byte/quad-word indexing.
func (g *CodeGenerator) indexElemType(base Expr) *TypeDescriptor {
	bt := g.staticTypeOf(base)
	if bt == nil {
		return nil
	}
	switch bt.Kind {
	case KindString:
		return CharType
	case KindArray:
		return bt.Elem
	case KindPointer:
		return bt.Pointee
	}
	return nil
}

func (g *CodeGenerator) genLoadMember(e Expr, arrow bool) {
	if arrow {
		t := e.(*ArrowExpr)
		g.genExpr(t.Base) // pointer value
		g.out.writeil(fmt.Sprintf("\taddq $%d, %%rax", g.lookupFieldOffset(t.Base, t.Field)))
	} else {
		t := e.(*MemberExpr)
		g.genAddr(t.Base) // address of the aggregate itself
		g.out.writeil(fmt.Sprintf("\taddq $%d, %%rax", g.lookupFieldOffset(t.Base, t.Field)))
	}
	g.out.writeil("\tmovq (%rax), %rax")
}

// genIndexAddr computes the address of base[index] into %rax, scaled
// by the element's actual size rather than a hardcoded 8 bytes: 1 byte
// per character for a string, sizeof(Elem) for array<T>, sizeof(Pointee)
// for a raw pointer (spec.md §4.5 "Strings", "Arrays"). An array<T>
// base evaluates to its descriptor's address (the same convention
// genForeach reads the length/data fields through), so it takes one
// extra dereference to reach the data pointer before indexing; a
// string or pointer value is already the indexable address itself.
func (g *CodeGenerator) genIndexAddr(e *IndexExpr) {
	baseTy := g.staticTypeOf(e.Base)
	elem := g.indexElemType(e.Base)
	size := 8
	if elem != nil {
		if s := elem.Size(); s > 0 {
			size = s
		}
	}

	g.genExpr(e.Base)
	if baseTy != nil && baseTy.Kind == KindArray {
		g.out.writeil("\tmovq (%rax), %rax") // descriptor address -> data pointer
	}
	g.out.writeil("\tpushq %rax")
	g.genExpr(e.Index)
	g.out.writeil("\tmovq %rax, %rcx")
	g.out.writeil("\tpopq %rax")
	if size == 1 {
		g.out.writeil("\tleaq (%rax,%rcx), %rax")
	} else {
		g.out.writeil(fmt.Sprintf("\tleaq (%%rax,%%rcx,%d), %%rax", size))
	}
}

// genLoadIndex loads base[index], sign/zero-extending per the
// element's own width and signedness (a string index yields a signed
// char, an array<int<8>> index must not pull in the seven garbage
// bytes above it, spec.md §4.5 "Strings").
func (g *CodeGenerator) genLoadIndex(e *IndexExpr) {
	elem := g.indexElemType(e.Base)
	g.genIndexAddr(e)
	if elem != nil && elem.Kind == KindFloat {
		g.out.writeil("\tmovsd (%rax), %xmm0")
		return
	}
	op := "movq"
	if elem != nil && (elem.Kind == KindInt || elem.Kind == KindChar || elem.Kind == KindEnum) {
		op = elem.SignExtendOp()
	}
	g.out.writeil(fmt.Sprintf("\t%s (%%rax), %%rax", op))
}

func (g *CodeGenerator) genArrayLit(e *ArrayLitExpr) {
	// Array literals are only legal in initialisers (spec.md §4.3); the
	// declaration's own init handling stores each element through the
	// runtime push helper so a literal shares the exact layout of a
	// dynamically grown array<T>. __c5_arr_push takes the element by
	// reference plus its size (spec.md §4.5 "Arrays"), matching the
	// signature .push() itself expands to in genArrayMethodCall.
	var elemTy *TypeDescriptor
	if len(e.Items) > 0 {
		elemTy = g.staticTypeOf(e.Items[0])
	}
	size := 8
	if elemTy != nil {
		if s := elemTy.Size(); s > 0 {
			size = s
		}
	}

	g.out.writeil("\tmovq $0, %rdi")
	g.out.writeil(fmt.Sprintf("\tcall %s", symbolName("", "__c5_arr_new")))
	g.out.writeil("\tpushq %rax") // descriptor address, kept at the top of the stack between pushes
	for _, item := range e.Items {
		g.genTempValueAddr(item, elemTy)
		g.out.writeil("\tmovq %rax, %rsi")
		g.out.writeil(fmt.Sprintf("\tmovq $%d, %%rdx", size))
		g.out.writeil("\tmovq 8(%rsp), %rdi")
		g.out.writeil(fmt.Sprintf("\tcall %s", symbolName("", "__c5_arr_push")))
		g.out.writeil("\taddq $8, %rsp")
	}
	g.out.writeil("\tpopq %rax")
}

// genTempValueAddr evaluates e and materialises its value on the
// stack, leaving the address of that slot in %rax. Used to build the
// by-reference arguments array<T>'s runtime helpers expect (spec.md
// §4.5 "Arrays", `__c5_arr_push(&a, &v, sizeof T)`): the caller owns
// popping the 8 bytes this pushes back off once the value is no
// longer needed.
func (g *CodeGenerator) genTempValueAddr(e Expr, ty *TypeDescriptor) {
	if ty != nil && ty.Kind == KindFloat {
		g.genExpr(e)
		g.out.writeil("\tsubq $8, %rsp")
		g.out.writeil("\tmovsd %xmm0, (%rsp)")
		g.out.writeil("\tmovq %rsp, %rax")
		return
	}
	g.genExpr(e)
	g.out.writeil("\tpushq %rax")
	g.out.writeil("\tmovq %rsp, %rax")
}

// genArrayMethodCall lowers array<T>'s built-in methods to the runtime
// helpers of spec.md §4.5 "Arrays": `.push`/`.pop`/`.len`/`.clear`
// are not ordinary calls, they expand against __c5_arr_* with the
// array's descriptor address and element size as explicit arguments.
// Returns false (emitting nothing) for any other member call, so
// genCall falls back to its ordinary call-site handling.
func (g *CodeGenerator) genArrayMethodCall(me *MemberExpr, args []Expr) bool {
	baseTy := g.staticTypeOf(me.Base)
	if baseTy == nil || baseTy.Kind != KindArray {
		return false
	}
	elem := baseTy.Elem
	size := 8
	if elem != nil {
		if s := elem.Size(); s > 0 {
			size = s
		}
	}

	switch me.Field {
	case "push":
		if len(args) != 1 {
			return false
		}
		g.genExpr(me.Base) // descriptor address ("&a")
		g.out.writeil("\tpushq %rax")
		g.genTempValueAddr(args[0], elem)
		g.out.writeil("\tmovq %rax, %rsi")
		g.out.writeil(fmt.Sprintf("\tmovq $%d, %%rdx", size))
		g.out.writeil("\tmovq 8(%rsp), %rdi")
		g.out.writeil(fmt.Sprintf("\tcall %s", symbolName("", "__c5_arr_push")))
		g.out.writeil("\taddq $16, %rsp")
		return true
	case "pop":
		g.genExpr(me.Base)
		g.out.writeil("\tmovq %rax, %rdi")
		g.out.writeil(fmt.Sprintf("\tmovq $%d, %%rsi", size))
		g.out.writeil(fmt.Sprintf("\tcall %s", symbolName("", "__c5_arr_pop")))
		return true
	case "len":
		g.genExpr(me.Base)
		g.out.writeil("\tmovq %rax, %rdi")
		g.out.writeil(fmt.Sprintf("\tcall %s", symbolName("", "__c5_arr_len")))
		return true
	case "clear":
		g.genExpr(me.Base)
		g.out.writeil("\tmovq %rax, %rdi")
		g.out.writeil(fmt.Sprintf("\tcall %s", symbolName("", "__c5_arr_clear")))
		return true
	}
	return false
}

func (g *CodeGenerator) genUnary(e *UnaryExpr) {
	switch e.Op {
	case OpNeg:
		g.genExpr(e.Operand)
		g.out.writeil("\tnegq %rax")
	case OpNot:
		g.genExpr(e.Operand)
		g.out.writeil("\tcmpq $0, %rax")
		g.out.writeil("\tsete %al")
		g.out.writeil("\tmovzbq %al, %rax")
	case OpBitNot:
		g.genExpr(e.Operand)
		g.out.writeil("\tnotq %rax")
	case OpPreInc:
		g.genAddr(e.Operand)
		g.out.writeil("\taddq $1, (%rax)")
		g.out.writeil("\tmovq (%rax), %rax")
	}
}

func (g *CodeGenerator) genCast(e *CastExpr) {
	target := g.resolveType(e.Type)
	g.genExpr(e.Operand)
	if target.Kind == KindInt || target.Kind == KindChar {
		op := target.SignExtendOp()
		if op != "movq" {
			g.out.writeil(fmt.Sprintf("\t%s %%al, %%rax", op))
		}
	}
}

// genBinary evaluates a binary expression. Operands are evaluated
// left-to-right; the left operand's value is pushed across the right
// operand's evaluation since there is no register allocator to keep
// it live otherwise (spec.md §1's no-optimiser non-goal; this is the
// straightforward stack-spilling strategy a from-scratch non-
// optimising backend uses).
func (g *CodeGenerator) genBinary(e *BinaryExpr) {
	if e.Op == OpAssign {
		g.genAssign(e)
		return
	}
	if e.Op == OpAnd || e.Op == OpOr {
		g.genShortCircuit(e)
		return
	}
	if e.Op == OpAdd || e.Op == OpSub {
		leftTy := g.staticTypeOf(e.Left)
		if leftTy != nil && leftTy.Kind == KindString {
			g.genStringArith(e)
			return
		}
		if leftTy != nil && leftTy.Kind == KindPointer {
			g.genPointerArith(e, leftTy)
			return
		}
	}
	g.genExpr(e.Left)
	g.out.writeil("\tpushq %rax")
	g.genExpr(e.Right)
	g.out.writeil("\tmovq %rax, %rcx")
	g.out.writeil("\tpopq %rax")

	switch e.Op {
	case OpAdd:
		g.out.writeil("\taddq %rcx, %rax")
	case OpSub:
		g.out.writeil("\tsubq %rcx, %rax")
	case OpMul:
		g.out.writeil("\timulq %rcx, %rax")
	case OpDiv:
		g.out.writeil("\tcqto")
		g.out.writeil("\tidivq %rcx")
	case OpMod:
		g.out.writeil("\tcqto")
		g.out.writeil("\tidivq %rcx")
		g.out.writeil("\tmovq %rdx, %rax")
	case OpBitAnd:
		g.out.writeil("\tandq %rcx, %rax")
	case OpBitOr:
		g.out.writeil("\torq %rcx, %rax")
	case OpBitXor:
		g.out.writeil("\txorq %rcx, %rax")
	case OpShl:
		g.out.writeil("\tshlq %cl, %rax")
	case OpShr:
		g.out.writeil("\tsarq %cl, %rax")
	case OpEq, OpNeq, OpLt, OpLe, OpGt, OpGe:
		g.out.writeil("\tcmpq %rcx, %rax")
		g.out.writeil(fmt.Sprintf("\t%s %%al", setccFor(e.Op)))
		g.out.writeil("\tmovzbq %al, %rax")
	}
}

// genStringArith lowers `+`/`-` on string operands to the runtime
// concat/remove helpers (spec.md §4.5 "Strings"): native add/sub on a
// string's pointer representation would do raw pointer arithmetic, not
// the value semantics the round-trip law in §8 depends on.
func (g *CodeGenerator) genStringArith(e *BinaryExpr) {
	g.genExpr(e.Left)
	g.out.writeil("\tpushq %rax")
	g.genExpr(e.Right)
	g.out.writeil("\tmovq %rax, %rsi")
	g.out.writeil("\tpopq %rdi")
	fn := "__c5_str_concat"
	if e.Op == OpSub {
		fn = "__c5_str_remove"
	}
	g.out.writeil(fmt.Sprintf("\tcall %s", symbolName("", fn)))
}

// genPointerArith lowers `+`/`-` on a pointer-typed left operand,
// scaling the integer operand by sizeof(Pointee) and, for pointer minus
// pointer, dividing the byte difference back down, per spec.md §4.5
// "Pointer arithmetic" and the `(p+n)-p == n` law of §8.
func (g *CodeGenerator) genPointerArith(e *BinaryExpr, leftTy *TypeDescriptor) {
	size := 8
	if leftTy.Pointee != nil {
		if s := leftTy.Pointee.Size(); s > 0 {
			size = s
		}
	}
	rightTy := g.staticTypeOf(e.Right)
	pointerMinusPointer := e.Op == OpSub && rightTy != nil && rightTy.Kind == KindPointer

	g.genExpr(e.Left)
	g.out.writeil("\tpushq %rax")
	g.genExpr(e.Right)
	g.out.writeil("\tmovq %rax, %rcx")
	g.out.writeil("\tpopq %rax")

	if pointerMinusPointer {
		g.out.writeil("\tsubq %rcx, %rax")
		if size > 1 {
			g.out.writeil(fmt.Sprintf("\tmovq $%d, %%rcx", size))
			g.out.writeil("\tcqto")
			g.out.writeil("\tidivq %rcx")
		}
		return
	}

	if size > 1 {
		g.out.writeil(fmt.Sprintf("\timulq $%d, %%rcx, %%rcx", size))
	}
	if e.Op == OpAdd {
		g.out.writeil("\taddq %rcx, %rax")
	} else {
		g.out.writeil("\tsubq %rcx, %rax")
	}
}

func setccFor(op BinOp) string {
	switch op {
	case OpEq:
		return "sete"
	case OpNeq:
		return "setne"
	case OpLt:
		return "setl"
	case OpLe:
		return "setle"
	case OpGt:
		return "setg"
	case OpGe:
		return "setge"
	}
	return "sete"
}

// genShortCircuit implements && and || with the usual early-exit
// control flow rather than unconditionally evaluating both operands.
func (g *CodeGenerator) genShortCircuit(e *BinaryExpr) {
	end := g.newLabel("sc")
	g.genExpr(e.Left)
	g.out.writeil("\tcmpq $0, %rax")
	if e.Op == OpAnd {
		g.out.writeil(fmt.Sprintf("\tje %s", end))
	} else {
		g.out.writeil(fmt.Sprintf("\tjne %s", end))
	}
	g.genExpr(e.Right)
	g.out.writeil("\tcmpq $0, %rax")
	g.out.writeil("\tsetne %al")
	g.out.writeil("\tmovzbq %al, %rax")
	g.out.writeil(fmt.Sprintf("%s:", end))
}

// genAssign stores into the lvalue's address with a width matching its
// declared type, the same sizing storeAcc applies to a fresh local
// declaration: an unconditional movq would clobber the seven bytes
// above a char/int<8> slot packed next to another field or local.
func (g *CodeGenerator) genAssign(e *BinaryExpr) {
	ty := g.staticTypeOf(e.Left)
	g.genAddr(e.Left)
	g.out.writeil("\tpushq %rax")
	g.genExpr(e.Right)
	g.out.writeil("\tpopq %rcx")
	if ty != nil && ty.Kind == KindFloat {
		g.out.writeil("\tmovsd %xmm0, (%rcx)")
		return
	}
	suffix, accum := "q", "%rax"
	if ty != nil {
		suffix, accum = ty.GASSuffix(), sizedAccum(ty.Size())
	}
	g.out.writeil(fmt.Sprintf("\tmov%s %s, (%%rcx)", suffix, accum))
}

// storeAcc stores %rax (or %xmm0 for a float-typed slot) into a
// frame-relative local declared at off.
func (g *CodeGenerator) storeAcc(off int, ty *TypeDescriptor) {
	if ty.Kind == KindFloat {
		g.out.writeil(fmt.Sprintf("\tmovsd %%xmm0, %d(%%rbp)", off))
		return
	}
	g.out.writeil(fmt.Sprintf("\tmov%s %s, %d(%%rbp)", ty.GASSuffix(), sizedAccum(ty.Size()), off))
}

func sizedAccum(size int) string {
	switch size {
	case 1:
		return "%al"
	case 2:
		return "%ax"
	case 4:
		return "%eax"
	default:
		return "%rax"
	}
}

// genCall assigns arguments to the SysV integer/SSE registers in
// order, spilling anything past the sixth integer or eighth SSE
// argument onto the stack before the call (the integer overflow
// followed by the SSE overflow, pushed in reverse so the first of
// them ends up lowest), and sets %al to the number of SSE registers used for any
// callee that might be variadic (spec.md §4.5's C ABI rules apply
// uniformly; C5 itself has no user-variadic functions, but every call
// site still emits the same prologue glue as a call into `std`).
func (g *CodeGenerator) genCall(e *CallExpr) {
	if me, ok := e.Callee.(*MemberExpr); ok {
		if g.genArrayMethodCall(me, e.Args) {
			return
		}
	}

	var intArgs, sseArgs []Expr
	for _, a := range e.Args {
		// A cheap syntactic float/int split: literal floats and casts to
		// float<N> are treated as SSE-class; everything else goes
		// through the integer registers. Full classification needs the
		// resolved argument types the semantic analyser already
		// computed; codegen's pass keeps its own minimal copy, see
		// resolveType above.
		if isFloatLiteralish(a) {
			sseArgs = append(sseArgs, a)
		} else {
			intArgs = append(intArgs, a)
		}
	}

	var stackArgs []Expr
	if len(intArgs) > len(intArgRegs) {
		stackArgs = intArgs[len(intArgRegs):]
		intArgs = intArgs[:len(intArgRegs)]
	}
	if len(sseArgs) > len(sseArgRegs) {
		stackArgs = append(stackArgs, sseArgs[len(sseArgRegs):]...)
		sseArgs = sseArgs[:len(sseArgRegs)]
	}
	for i := len(stackArgs) - 1; i >= 0; i-- {
		g.genExpr(stackArgs[i])
		if isFloatLiteralish(stackArgs[i]) {
			g.out.writeil("\tsubq $8, %rsp")
			g.out.writeil("\tmovsd %xmm0, (%rsp)")
		} else {
			g.out.writeil("\tpushq %rax")
		}
	}
	for i, a := range intArgs {
		g.genExpr(a)
		g.out.writeil(fmt.Sprintf("\tmovq %%rax, %s", intArgRegs[i]))
	}
	for i, a := range sseArgs {
		g.genExpr(a)
		g.out.writeil(fmt.Sprintf("\tmovsd %%xmm0, %s", sseArgRegs[i]))
	}
	indirect, name := calleeTarget(e.Callee, g.frame)
	if indirect {
		// Evaluate the callee after argument registers are loaded but
		// before %al carries the SSE count: %al is the low byte of
		// %rax, so loading the target through %rax first and only then
		// moving it to %r10 keeps the variadic count from clobbering it
		// (and keeps %r10 free of every argument register above).
		g.genExpr(e.Callee)
		g.out.writeil("\tmovq %rax, %r10")
	}
	g.out.writeil(fmt.Sprintf("\tmovb $%d, %%al", len(sseArgs)))
	if indirect {
		g.out.writeil("\tcall *%r10")
	} else {
		g.out.writeil(fmt.Sprintf("\tcall %s", name))
	}
	if len(stackArgs) > 0 {
		g.out.writeil(fmt.Sprintf("\taddq $%d, %%rsp", 8*len(stackArgs)))
	}
}

func isFloatLiteralish(e Expr) bool {
	switch t := e.(type) {
	case *FloatLitExpr:
		return true
	case *CastExpr:
		if p, ok := t.Type.(*PrimitiveTypeExpr); ok {
			return p.Name == "float"
		}
	}
	return false
}

// calleeTarget decides whether e.Callee is an ordinary function name
// (a direct `call <symbol>`) or a function-pointer value that must be
// evaluated and called indirectly (a local holding a function value,
// or any other callee expression). genCall evaluates an indirect
// target itself and calls through %r10; this never hands back a bare
// "*%rax" with nothing loaded into it.
func calleeTarget(callee Expr, f *frame) (indirect bool, name string) {
	id, ok := callee.(*IdentExpr)
	if !ok {
		return true, ""
	}
	if f != nil {
		if _, local := f.offsets[id.Name]; local {
			return true, ""
		}
	}
	return false, symbolName(id.Namespace, id.Name)
}

