package c5

import "fmt"

// Program is the semantic analyser's product: a fully resolved,
// macro-expanded, lambda-lifted declaration list plus the scope tree
// codegen reads symbols from (spec.md §3 "Lifecycle": "the AST and
// symbol tables live until codegen ends").
type Program struct {
	Funcs   []*FuncDecl
	Globals []*VarDecl
	Structs map[string]*TypeDescriptor
	Unions  map[string]*TypeDescriptor
	Enums   map[string]*TypeDescriptor
	Global  *Scope
}

// Analyzer runs the two-pass semantic analysis of spec.md §4.4 over
// one or more parsed units (a program's main file plus every header
// it transitively includes).
type Analyzer struct {
	cfg      *Config
	resolver *IncludeResolver
	diags    *Diagnostics

	global  *Scope
	structs map[string]*TypeDescriptor
	unions  map[string]*TypeDescriptor
	enums   map[string]*TypeDescriptor

	funcs    []*FuncDecl
	globals  []*VarDecl
	lambdaID int
}

func NewAnalyzer(cfg *Config, resolver *IncludeResolver, diags *Diagnostics) *Analyzer {
	return &Analyzer{
		cfg:      cfg,
		resolver: resolver,
		diags:    diags,
		global:   NewScope("global", "", nil),
		structs:  map[string]*TypeDescriptor{},
		unions:   map[string]*TypeDescriptor{},
		enums:    map[string]*TypeDescriptor{},
	}
}

func qualify(ns, name string) string {
	if ns == "" {
		return name
	}
	return ns + "::" + name
}

// Analyze expands includes, runs both passes over the resulting flat
// declaration list, and returns the resolved Program. Per spec.md
// §4.4, codegen should only run if diags.HasErrors() is false
// afterward.
func (a *Analyzer) Analyze(file string, unit *Unit) *Program {
	decls := a.flattenIncludes(file, unit.Decls)

	a.collectDeclarations(decls)
	a.resolveAndCheck(decls)

	return &Program{
		Funcs:   a.funcs,
		Globals: a.globals,
		Structs: a.structs,
		Unions:  a.unions,
		Enums:   a.enums,
		Global:  a.global,
	}
}

// flattenIncludes replaces every top-level IncludeDecl with the
// (already namespace-stamped) declarations of the header it names.
func (a *Analyzer) flattenIncludes(file string, decls []Decl) []Decl {
	var out []Decl
	for _, d := range decls {
		if inc, ok := d.(*IncludeDecl); ok {
			out = append(out, a.resolver.Resolve(inc, file, a.diags)...)
			continue
		}
		out = append(out, d)
	}
	return out
}

// ---------------------------------------------------------------
// Pass 1: declaration collection
// ---------------------------------------------------------------

func (a *Analyzer) scopeFor(ns string) *Scope {
	if ns == "" {
		return a.global
	}
	return a.global.Namespace(ns)
}

func (a *Analyzer) collectDeclarations(decls []Decl) {
	// Types first: struct/enum/union members and function signatures
	// may reference each other regardless of declaration order within
	// one translation unit.
	for _, d := range decls {
		switch t := d.(type) {
		case *StructDecl:
			a.collectStruct(t)
		case *EnumDecl:
			a.collectEnum(t)
		case *UnionTypeDecl:
			a.collectUnion(t)
		}
	}
	for _, d := range decls {
		switch t := d.(type) {
		case *FuncDecl:
			a.collectFunc(t)
		case *VarDecl:
			a.collectGlobal(t)
		case *MacroDecl:
			a.collectMacro(t)
		}
	}
}

func (a *Analyzer) collectStruct(t *StructDecl) {
	scope := a.scopeFor(t.Namespace)
	qn := qualify(t.Namespace, t.Name)
	td := &TypeDescriptor{Kind: KindStruct, Name: qn}
	offset := 0
	for _, f := range t.Fields {
		ft := a.resolveTypeExpr(f.Type, scope)
		align := ft.Align()
		offset = alignUp(offset, align)
		td.Fields = append(td.Fields, Field{Name: f.Name, Type: ft, Offset: offset})
		offset += ft.Size()
	}
	a.structs[qn] = td
	scope.Define(&Symbol{Kind: SymType, Name: t.Name, TypeDesc: td}, t.Span(), a.diags)
}

func (a *Analyzer) collectEnum(t *EnumDecl) {
	scope := a.scopeFor(t.Namespace)
	qn := qualify(t.Namespace, t.Name)
	td := &TypeDescriptor{Kind: KindEnum, Name: qn, EnumVals: t.Members}
	a.enums[qn] = td
	scope.Define(&Symbol{Kind: SymType, Name: t.Name, TypeDesc: td}, t.Span(), a.diags)
	for _, m := range t.Members {
		scope.Define(&Symbol{Kind: SymVariable, Name: m, VarType: td, Storage: StorageConst}, t.Span(), a.diags)
	}
}

func (a *Analyzer) collectUnion(t *UnionTypeDecl) {
	scope := a.scopeFor(t.Namespace)
	qn := qualify(t.Namespace, t.Name)
	td := &TypeDescriptor{Kind: KindUnion, Name: qn}
	for _, v := range t.Variants {
		td.Variants = append(td.Variants, a.resolveTypeExpr(v, scope))
	}
	a.unions[qn] = td
	scope.Define(&Symbol{Kind: SymType, Name: t.Name, TypeDesc: td}, t.Span(), a.diags)
}

func (a *Analyzer) collectFunc(t *FuncDecl) {
	scope := a.scopeFor(t.Namespace)
	ret := a.resolveTypeExpr(t.ReturnType, scope)
	var params []*TypeDescriptor
	for _, p := range t.Params {
		params = append(params, a.resolveTypeExpr(p.Type, scope))
	}
	linkage := t.Name
	if t.Namespace != "" {
		linkage = t.Namespace + "__" + t.Name
	}
	if existing, ok := scope.LookupLocal(t.Name); ok && existing.Kind == SymFunction {
		if !sameSignature(existing.ParamTypes, existing.ReturnType, params, ret) {
			a.diags.Errorf(ErrSignatureMismatch, t.Span(), "function %q redeclared with a different signature", t.Name)
			return
		}
		if t.Body != nil {
			existing.FuncDecl = t
			a.funcs = append(a.funcs, t)
		}
		return
	}
	sym := &Symbol{Kind: SymFunction, Name: t.Name, FuncDecl: t, LinkageName: linkage, ParamTypes: params, ReturnType: ret}
	scope.Define(sym, t.Span(), a.diags)
	if t.Body != nil {
		a.funcs = append(a.funcs, t)
	}
}

func sameSignature(aParams []*TypeDescriptor, aRet *TypeDescriptor, bParams []*TypeDescriptor, bRet *TypeDescriptor) bool {
	if len(aParams) != len(bParams) || !aRet.Equal(bRet) {
		return false
	}
	for i := range aParams {
		if !aParams[i].Equal(bParams[i]) {
			return false
		}
	}
	return true
}

func (a *Analyzer) collectGlobal(t *VarDecl) {
	ty := a.resolveTypeExpr(t.Type, a.global)
	storage := StorageGlobal
	if t.Const {
		storage = StorageConst
	}
	a.global.Define(&Symbol{Kind: SymVariable, Name: t.Name, VarType: ty, Storage: storage}, t.Span(), a.diags)
	a.globals = append(a.globals, t)
}

func (a *Analyzer) collectMacro(t *MacroDecl) {
	scope := a.scopeFor(t.Namespace)
	scope.Define(&Symbol{Kind: SymMacro, Name: t.Name, MacroParams: t.Params, MacroBody: t.Body}, t.Span(), a.diags)
}

// resolveTypeExpr turns a syntactic TypeExpr into a semantic
// TypeDescriptor. Unresolvable named types fall back to an opaque
// struct-shaped descriptor so later passes can keep going instead of
// cascading nil-pointer panics; the unresolved-name diagnostic has
// already been reported at that point.
func (a *Analyzer) resolveTypeExpr(te TypeExpr, scope *Scope) *TypeDescriptor {
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
		return PointerType(a.resolveTypeExpr(t.Elem, scope))
	case *ArrayTypeExpr:
		return ArrayDescriptorType(a.resolveTypeExpr(t.Elem, scope))
	case *NamedTypeExpr:
		lookupScope := scope
		if t.Namespace != "" {
			lookupScope = a.global.Namespace(t.Namespace)
		}
		if sym, ok := lookupScope.Lookup(t.Name); ok && sym.Kind == SymType {
			return sym.TypeDesc
		}
		a.diags.Errorf(ErrSignatureMismatch, t.Span(), "unknown type %q", t.String())
		return &TypeDescriptor{Kind: KindStruct, Name: t.String()}
	case *FuncTypeExpr:
		td := &TypeDescriptor{Kind: KindFunc, FuncReturn: a.resolveTypeExpr(t.Return, scope)}
		for _, p := range t.Params {
			td.FuncParams = append(td.FuncParams, a.resolveTypeExpr(p, scope))
		}
		return td
	}
	return VoidType
}

// ---------------------------------------------------------------
// Pass 2: resolution and checking
// ---------------------------------------------------------------

func (a *Analyzer) resolveAndCheck(decls []Decl) {
	for _, d := range decls {
		if fn, ok := d.(*FuncDecl); ok && fn.Body != nil {
			a.checkFunc(fn)
		}
	}
	for _, g := range a.globals {
		if g.Init != nil {
			scope := a.global
			g.Init = a.expandAndLift(g.Init, scope)
			initTy := a.typeOf(g.Init, scope)
			declTy := a.resolveTypeExpr(g.Type, scope)
			a.checkLiteralBinding(g.Init, declTy)
			if !IsCompatible(initTy, declTy) {
				a.diags.Errorf(ErrSignatureMismatch, g.Span(), "cannot initialise %q of type %s with value of type %s", g.Name, declTy, initTy)
			}
		}
	}
}

func (a *Analyzer) checkFunc(fn *FuncDecl) {
	scope := a.scopeFor(fn.Namespace)
	fnScope := NewScope("function", fn.Name, scope)
	for i, p := range fn.Params {
		pt := a.resolveTypeExpr(p.Type, scope)
		fnScope.Define(&Symbol{Kind: SymVariable, Name: p.Name, VarType: pt, Storage: StorageLocal}, p.Span(), a.diags)
		_ = i
	}
	if sym, ok := scope.LookupLocal(fn.Name); ok && sym.Kind == SymFunction {
		sym.FuncScope = fnScope
	}
	a.checkBlock(fn.Body, fnScope)
}

func (a *Analyzer) checkBlock(b *BlockStmt, scope *Scope) {
	block := NewScope("block", "", scope)
	for _, s := range b.Stmts {
		a.checkStmt(s, block)
	}
}

func (a *Analyzer) checkStmt(s Stmt, scope *Scope) {
	switch t := s.(type) {
	case *VarDeclStmt:
		ty := a.resolveTypeExpr(t.Type, scope)
		if t.Init != nil {
			t.Init = a.expandAndLift(t.Init, scope)
			a.checkLiteralBinding(t.Init, ty)
			initTy := a.typeOf(t.Init, scope)
			if !IsCompatible(initTy, ty) {
				a.diags.Errorf(ErrSignatureMismatch, t.Span(), "cannot initialise %q of type %s with value of type %s", t.Name, ty, initTy)
			}
		}
		storage := StorageLocal
		if t.Const {
			storage = StorageConst
		}
		scope.Define(&Symbol{Kind: SymVariable, Name: t.Name, VarType: ty, Storage: storage}, t.Span(), a.diags)
	case *BlockStmt:
		a.checkBlock(t, scope)
	case *IfStmt:
		t.Cond = a.expandAndLift(t.Cond, scope)
		a.checkBlock(t.Then, scope)
		if t.Else != nil {
			a.checkStmt(t.Else, scope)
		}
	case *WhileStmt:
		t.Cond = a.expandAndLift(t.Cond, scope)
		a.checkBlock(t.Body, scope)
	case *DoWhileStmt:
		a.checkBlock(t.Body, scope)
		t.Cond = a.expandAndLift(t.Cond, scope)
	case *ForStmt:
		forScope := NewScope("block", "", scope)
		if t.Init != nil {
			a.checkStmt(t.Init, forScope)
		}
		if t.Cond != nil {
			t.Cond = a.expandAndLift(t.Cond, forScope)
		}
		if t.Post != nil {
			t.Post = a.expandAndLift(t.Post, forScope)
		}
		a.checkBlock(t.Body, forScope)
	case *ForeachStmt:
		t.Array = a.expandAndLift(t.Array, scope)
		arrTy := a.typeOf(t.Array, scope)
		elemTy := VoidType
		if arrTy != nil && arrTy.Kind == KindArray {
			elemTy = arrTy.Elem
		}
		feScope := NewScope("block", "", scope)
		feScope.Define(&Symbol{Kind: SymVariable, Name: t.IndexName, VarType: IntType(64, true), Storage: StorageLocal}, t.Span(), a.diags)
		feScope.Define(&Symbol{Kind: SymVariable, Name: t.ValueName, VarType: elemTy, Storage: StorageLocal}, t.Span(), a.diags)
		a.checkBlock(t.Body, feScope)
	case *ReturnStmt:
		if t.Value != nil {
			t.Value = a.expandAndLift(t.Value, scope)
			a.typeOf(t.Value, scope)
		}
	case *ExprStmt:
		t.Expr = a.expandAndLift(t.Expr, scope)
		a.checkAssignment(t.Expr, scope)
	}
}

// checkAssignment walks an expression looking for `=`-rooted
// assignments whose lvalue resolves to a const symbol (spec.md §4.4
// "Const correctness", E042).
func (a *Analyzer) checkAssignment(e Expr, scope *Scope) {
	bin, ok := e.(*BinaryExpr)
	if !ok || bin.Op != OpAssign {
		return
	}
	if root := a.constRootOf(bin.Left, scope); root != nil {
		a.diags.Errorf(ErrConstViolation, bin.Span(), "cannot assign to const %q", root.Name)
	}
}

// constRootOf walks an lvalue chain (ident, member, arrow, index,
// deref) down to the symbol it roots at, returning it only if that
// symbol is const.
func (a *Analyzer) constRootOf(e Expr, scope *Scope) *Symbol {
	switch t := e.(type) {
	case *IdentExpr:
		lookup := scope
		if t.Namespace != "" {
			lookup = a.global.Namespace(t.Namespace)
		}
		if sym, ok := lookup.Lookup(t.Name); ok && sym.Kind == SymVariable && sym.Storage == StorageConst {
			return sym
		}
		return nil
	case *MemberExpr:
		return a.constRootOf(t.Base, scope)
	case *ArrowExpr:
		return nil // dereferences through a pointer; constness of the pointee is not the pointer variable's
	case *IndexExpr:
		return a.constRootOf(t.Base, scope)
	}
	return nil
}

func (a *Analyzer) checkLiteralBinding(e Expr, declTy *TypeDescriptor) {
	switch lit := e.(type) {
	case *IntLitExpr:
		if declTy.Kind != KindInt {
			return
		}
		min, max := IntRange(declTy.Width, declTy.Signed)
		if lit.Value < min || lit.Value > max {
			a.diags.Errorf(ErrLiteralOutOfWidth, lit.Span(), "integer literal %d out of range [%d,%d] for int<%d>", lit.Value, min, max, declTy.Width)
		}
	case *FloatLitExpr:
		if declTy.Kind != KindFloat {
			return
		}
		if declTy.Width < 64 {
			a.diags.Warnf(WarnFloatNarrowing, lit.Span(), "float literal narrowed to float<%d>", declTy.Width)
		}
	}
}

// typeOf computes an expression's type bottom-up (spec.md §4.4). It
// is deliberately tolerant of unresolved sub-expressions, returning
// VoidType rather than panicking, since a diagnostic for the root
// cause was already raised where resolution failed.
func (a *Analyzer) typeOf(e Expr, scope *Scope) *TypeDescriptor {
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
		lookup := scope
		if t.Namespace != "" {
			lookup = a.global.Namespace(t.Namespace)
		}
		if sym, ok := lookup.Lookup(t.Name); ok {
			switch sym.Kind {
			case SymVariable:
				return sym.VarType
			case SymFunction:
				return &TypeDescriptor{Kind: KindFunc, FuncParams: sym.ParamTypes, FuncReturn: sym.ReturnType}
			}
		}
		a.diags.Errorf(ErrSignatureMismatch, t.Span(), "undefined identifier %q", t.String())
		return VoidType
	case *BinaryExpr:
		if t.Op == OpAssign {
			return a.typeOf(t.Left, scope)
		}
		switch t.Op {
		case OpEq, OpNeq, OpLt, OpLe, OpGt, OpGe, OpAnd, OpOr:
			return IntType(32, true) // boolean result modelled as int<32>
		}
		lt := a.typeOf(t.Left, scope)
		if lt != nil && lt.Kind == KindPointer {
			return lt
		}
		return lt
	case *UnaryExpr:
		return a.typeOf(t.Operand, scope)
	case *CastExpr:
		return a.resolveTypeExpr(t.Type, scope)
	case *CallExpr:
		ct := a.typeOf(t.Callee, scope)
		if ct != nil && ct.Kind == KindFunc {
			return ct.FuncReturn
		}
		return VoidType
	case *IndexExpr:
		bt := a.typeOf(t.Base, scope)
		if bt == nil {
			return VoidType
		}
		if bt.Kind == KindArray {
			return bt.Elem
		}
		if bt.Kind == KindString {
			return CharType
		}
		if bt.Kind == KindPointer {
			return bt.Pointee
		}
		return VoidType
	case *MemberExpr:
		bt := a.typeOf(t.Base, scope)
		return fieldType(bt, t.Field)
	case *ArrowExpr:
		bt := a.typeOf(t.Base, scope)
		if bt != nil && bt.Kind == KindPointer {
			return fieldType(bt.Pointee, t.Field)
		}
		return VoidType
	case *AddrOfExpr:
		return PointerType(a.typeOf(t.Operand, scope))
	case *DerefExpr:
		ot := a.typeOf(t.Operand, scope)
		if ot != nil && ot.Kind == KindPointer {
			return ot.Pointee
		}
		return VoidType
	case *ArrayLitExpr:
		if len(t.Items) == 0 {
			return ArrayDescriptorType(VoidType)
		}
		return ArrayDescriptorType(a.typeOf(t.Items[0], scope))
	case *LambdaExpr:
		var params []*TypeDescriptor
		for _, p := range t.Params {
			params = append(params, a.resolveTypeExpr(p.Type, scope))
		}
		return &TypeDescriptor{Kind: KindFunc, FuncParams: params, FuncReturn: a.resolveTypeExpr(t.ReturnType, scope)}
	case *CStrExpr:
		return PointerType(CharType)
	}
	return VoidType
}

func fieldType(t *TypeDescriptor, name string) *TypeDescriptor {
	if t == nil {
		return VoidType
	}
	for _, f := range t.Fields {
		if f.Name == name {
			return f.Type
		}
	}
	return VoidType
}

// ---------------------------------------------------------------
// Macro expansion
// ---------------------------------------------------------------

// expandAndLift runs macro expansion to a fixed point and then lambda
// lifting over one expression tree, in that order: a macro body may
// itself contain a lambda, so lambdas are only lifted once no more
// macro calls remain to expand (spec.md §4.4).
func (a *Analyzer) expandAndLift(e Expr, scope *Scope) Expr {
	e = a.expandMacros(e, scope)
	e = a.liftLambdas(e, scope)
	return e
}

// expandMacros walks e bottom-up, rewriting any call whose callee is
// an unqualified identifier bound to a macro symbol into the macro
// body with parameters textually substituted by (already-expanded)
// argument expressions (spec.md §4.4, §9 "Macros" — no hygiene pass,
// see DESIGN.md).
func (a *Analyzer) expandMacros(e Expr, scope *Scope) Expr {
	switch t := e.(type) {
	case *CallExpr:
		callee := a.expandMacros(t.Callee, scope)
		var args []Expr
		for _, arg := range t.Args {
			args = append(args, a.expandMacros(arg, scope))
		}
		if id, ok := callee.(*IdentExpr); ok && id.Namespace == "" {
			if sym, ok := scope.Lookup(id.Name); ok && sym.Kind == SymMacro {
				if len(args) != len(sym.MacroParams) {
					a.diags.Errorf(ErrSignatureMismatch, t.Span(), "macro %q expects %d argument(s), got %d", id.Name, len(sym.MacroParams), len(args))
					return t
				}
				subst := map[string]Expr{}
				for i, p := range sym.MacroParams {
					subst[p] = args[i]
				}
				expanded := substituteExpr(sym.MacroBody, subst)
				return a.expandMacros(expanded, scope)
			}
		}
		return &CallExpr{sp: t.sp, Callee: callee, Args: args}
	case *BinaryExpr:
		return &BinaryExpr{sp: t.sp, Op: t.Op, Left: a.expandMacros(t.Left, scope), Right: a.expandMacros(t.Right, scope)}
	case *UnaryExpr:
		return &UnaryExpr{sp: t.sp, Op: t.Op, Operand: a.expandMacros(t.Operand, scope)}
	case *CastExpr:
		return &CastExpr{sp: t.sp, Type: t.Type, Operand: a.expandMacros(t.Operand, scope)}
	case *IndexExpr:
		return &IndexExpr{sp: t.sp, Base: a.expandMacros(t.Base, scope), Index: a.expandMacros(t.Index, scope)}
	case *MemberExpr:
		return &MemberExpr{sp: t.sp, Base: a.expandMacros(t.Base, scope), Field: t.Field}
	case *ArrowExpr:
		return &ArrowExpr{sp: t.sp, Base: a.expandMacros(t.Base, scope), Field: t.Field}
	case *AddrOfExpr:
		return &AddrOfExpr{sp: t.sp, Operand: a.expandMacros(t.Operand, scope)}
	case *DerefExpr:
		return &DerefExpr{sp: t.sp, Operand: a.expandMacros(t.Operand, scope)}
	case *ArrayLitExpr:
		items := make([]Expr, len(t.Items))
		for i, it := range t.Items {
			items[i] = a.expandMacros(it, scope)
		}
		return &ArrayLitExpr{sp: t.sp, Items: items}
	case *CStrExpr:
		return &CStrExpr{sp: t.sp, Operand: a.expandMacros(t.Operand, scope)}
	case *LambdaExpr:
		// Lambda bodies get their own macro-expansion pass when
		// liftLambdas descends into them, since they introduce a new
		// function scope.
		return t
	default:
		return e
	}
}

// substituteExpr deep-copies body, replacing every unqualified
// IdentExpr naming a key of subst with that key's bound expression.
// It does not descend into nested LambdaExpr bodies: a lambda
// parameter shadowing a macro parameter name is resolved by normal
// scoping at the lambda's own call site, not by the macro expander.
func substituteExpr(body Expr, subst map[string]Expr) Expr {
	switch t := body.(type) {
	case *IdentExpr:
		if t.Namespace == "" {
			if repl, ok := subst[t.Name]; ok {
				return repl
			}
		}
		return t
	case *BinaryExpr:
		return &BinaryExpr{sp: t.sp, Op: t.Op, Left: substituteExpr(t.Left, subst), Right: substituteExpr(t.Right, subst)}
	case *UnaryExpr:
		return &UnaryExpr{sp: t.sp, Op: t.Op, Operand: substituteExpr(t.Operand, subst)}
	case *CastExpr:
		return &CastExpr{sp: t.sp, Type: t.Type, Operand: substituteExpr(t.Operand, subst)}
	case *CallExpr:
		args := make([]Expr, len(t.Args))
		for i, arg := range t.Args {
			args[i] = substituteExpr(arg, subst)
		}
		return &CallExpr{sp: t.sp, Callee: substituteExpr(t.Callee, subst), Args: args}
	case *IndexExpr:
		return &IndexExpr{sp: t.sp, Base: substituteExpr(t.Base, subst), Index: substituteExpr(t.Index, subst)}
	case *MemberExpr:
		return &MemberExpr{sp: t.sp, Base: substituteExpr(t.Base, subst), Field: t.Field}
	case *ArrowExpr:
		return &ArrowExpr{sp: t.sp, Base: substituteExpr(t.Base, subst), Field: t.Field}
	case *AddrOfExpr:
		return &AddrOfExpr{sp: t.sp, Operand: substituteExpr(t.Operand, subst)}
	case *DerefExpr:
		return &DerefExpr{sp: t.sp, Operand: substituteExpr(t.Operand, subst)}
	case *ArrayLitExpr:
		items := make([]Expr, len(t.Items))
		for i, it := range t.Items {
			items[i] = substituteExpr(it, subst)
		}
		return &ArrayLitExpr{sp: t.sp, Items: items}
	case *CStrExpr:
		return &CStrExpr{sp: t.sp, Operand: substituteExpr(t.Operand, subst)}
	default:
		return body
	}
}

// ---------------------------------------------------------------
// Lambda lifting
// ---------------------------------------------------------------

// liftLambdas rewrites every LambdaExpr reachable from e into a
// reference to a freshly synthesised top-level function, appending
// that function to a.funcs (spec.md §4.4, §9 "Lambdas"). Lambdas
// never capture enclosing locals (see DESIGN.md Open Questions;
// a reference to one is reported as an undefined identifier), so
// the lifted function's parameter list is exactly the lambda's
// written parameter list and it needs no closure environment.
func (a *Analyzer) liftLambdas(e Expr, scope *Scope) Expr {
	switch t := e.(type) {
	case *LambdaExpr:
		// The lambda's scope hangs off the enclosing namespace or
		// global scope, skipping the enclosing function's scopes, so a
		// name that only an enclosing local would supply does not
		// resolve.
		outer := scope
		for outer.Kind == "block" || outer.Kind == "function" {
			outer = outer.Parent
		}
		// Lift inner lambdas (e.g. a lambda returning a lambda) before
		// this one so the inner function already exists by the time
		// codegen needs to take its address.
		fnScope := NewScope("function", "", outer)
		for _, p := range t.Params {
			fnScope.Define(&Symbol{Kind: SymVariable, Name: p.Name, VarType: a.resolveTypeExpr(p.Type, scope), Storage: StorageLocal}, p.Span(), a.diags)
		}
		a.checkBlock(t.Body, fnScope)
		a.reassignLambdasInBlock(t.Body, fnScope)

		a.lambdaID++
		name := fmt.Sprintf("__lambda_%d", a.lambdaID)
		fd := &FuncDecl{sp: t.sp, Name: name, ReturnType: t.ReturnType, Params: t.Params, Body: t.Body}
		liftSym := &Symbol{Kind: SymFunction, Name: name, FuncDecl: fd, LinkageName: name,
			ReturnType: a.resolveTypeExpr(t.ReturnType, scope), FuncScope: fnScope}
		for _, p := range t.Params {
			liftSym.ParamTypes = append(liftSym.ParamTypes, a.resolveTypeExpr(p.Type, scope))
		}
		a.global.Define(liftSym, t.Span(), a.diags)
		a.funcs = append(a.funcs, fd)
		t.LiftedName = name
		return &IdentExpr{sp: t.sp, Name: name}
	case *BinaryExpr:
		t.Left = a.liftLambdas(t.Left, scope)
		t.Right = a.liftLambdas(t.Right, scope)
		return t
	case *UnaryExpr:
		t.Operand = a.liftLambdas(t.Operand, scope)
		return t
	case *CastExpr:
		t.Operand = a.liftLambdas(t.Operand, scope)
		return t
	case *CallExpr:
		t.Callee = a.liftLambdas(t.Callee, scope)
		for i := range t.Args {
			t.Args[i] = a.liftLambdas(t.Args[i], scope)
		}
		return t
	case *IndexExpr:
		t.Base = a.liftLambdas(t.Base, scope)
		t.Index = a.liftLambdas(t.Index, scope)
		return t
	case *MemberExpr:
		t.Base = a.liftLambdas(t.Base, scope)
		return t
	case *ArrowExpr:
		t.Base = a.liftLambdas(t.Base, scope)
		return t
	case *AddrOfExpr:
		t.Operand = a.liftLambdas(t.Operand, scope)
		return t
	case *DerefExpr:
		t.Operand = a.liftLambdas(t.Operand, scope)
		return t
	case *ArrayLitExpr:
		for i := range t.Items {
			t.Items[i] = a.liftLambdas(t.Items[i], scope)
		}
		return t
	case *CStrExpr:
		t.Operand = a.liftLambdas(t.Operand, scope)
		return t
	default:
		return e
	}
}

// reassignLambdasInBlock rewrites every expression reachable from
// statements in b, lifting any lambda expression found within. It
// shares liftLambdas' expression-level recursion but additionally
// needs to walk statements, which liftLambdas itself does not reach.
func (a *Analyzer) reassignLambdasInBlock(b *BlockStmt, scope *Scope) {
	for _, s := range b.Stmts {
		switch t := s.(type) {
		case *VarDeclStmt:
			if t.Init != nil {
				t.Init = a.liftLambdas(t.Init, scope)
			}
		case *BlockStmt:
			a.reassignLambdasInBlock(t, scope)
		case *IfStmt:
			t.Cond = a.liftLambdas(t.Cond, scope)
			a.reassignLambdasInBlock(t.Then, scope)
			if eb, ok := t.Else.(*BlockStmt); ok {
				a.reassignLambdasInBlock(eb, scope)
			}
		case *WhileStmt:
			t.Cond = a.liftLambdas(t.Cond, scope)
			a.reassignLambdasInBlock(t.Body, scope)
		case *DoWhileStmt:
			a.reassignLambdasInBlock(t.Body, scope)
			t.Cond = a.liftLambdas(t.Cond, scope)
		case *ForStmt:
			if t.Cond != nil {
				t.Cond = a.liftLambdas(t.Cond, scope)
			}
			if t.Post != nil {
				t.Post = a.liftLambdas(t.Post, scope)
			}
			a.reassignLambdasInBlock(t.Body, scope)
		case *ForeachStmt:
			t.Array = a.liftLambdas(t.Array, scope)
			a.reassignLambdasInBlock(t.Body, scope)
		case *ReturnStmt:
			if t.Value != nil {
				t.Value = a.liftLambdas(t.Value, scope)
			}
		case *ExprStmt:
			t.Expr = a.liftLambdas(t.Expr, scope)
		}
	}
}
