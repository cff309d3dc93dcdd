package c5

// Visitor has one method per node kind, reached through each node's
// Accept, so adding a node kind is a compile error at every Visitor
// implementation until it grows the new method (spec.md §9). The
// semantic analyser, the code generator, and the pretty-printer do not
// implement it; they type-switch on Node.
type Visitor interface {
	VisitUnit(*Unit) error

	VisitPrimitiveTypeExpr(*PrimitiveTypeExpr) error
	VisitPointerTypeExpr(*PointerTypeExpr) error
	VisitArrayTypeExpr(*ArrayTypeExpr) error
	VisitNamedTypeExpr(*NamedTypeExpr) error
	VisitFuncTypeExpr(*FuncTypeExpr) error

	VisitFuncDecl(*FuncDecl) error
	VisitVarDecl(*VarDecl) error
	VisitStructDecl(*StructDecl) error
	VisitEnumDecl(*EnumDecl) error
	VisitUnionTypeDecl(*UnionTypeDecl) error
	VisitMacroDecl(*MacroDecl) error
	VisitIncludeDecl(*IncludeDecl) error

	VisitBlockStmt(*BlockStmt) error
	VisitIfStmt(*IfStmt) error
	VisitWhileStmt(*WhileStmt) error
	VisitDoWhileStmt(*DoWhileStmt) error
	VisitForStmt(*ForStmt) error
	VisitForeachStmt(*ForeachStmt) error
	VisitReturnStmt(*ReturnStmt) error
	VisitExprStmt(*ExprStmt) error

	VisitIntLitExpr(*IntLitExpr) error
	VisitFloatLitExpr(*FloatLitExpr) error
	VisitCharLitExpr(*CharLitExpr) error
	VisitStringLitExpr(*StringLitExpr) error
	VisitIdentExpr(*IdentExpr) error
	VisitBinaryExpr(*BinaryExpr) error
	VisitUnaryExpr(*UnaryExpr) error
	VisitCastExpr(*CastExpr) error
	VisitCallExpr(*CallExpr) error
	VisitIndexExpr(*IndexExpr) error
	VisitMemberExpr(*MemberExpr) error
	VisitArrowExpr(*ArrowExpr) error
	VisitAddrOfExpr(*AddrOfExpr) error
	VisitDerefExpr(*DerefExpr) error
	VisitArrayLitExpr(*ArrayLitExpr) error
	VisitLambdaExpr(*LambdaExpr) error
	VisitCStrExpr(*CStrExpr) error
}

// BaseVisitor implements every Visitor method as a no-op returning
// nil. Passes that only care about a handful of node kinds embed it
// and override the methods they need, the way the teacher's tree
// walkers embed a default implementation rather than restating every
// case (grounded on grammar_ast_visitor.go's DefaultVisitor).
type BaseVisitor struct{}

func (BaseVisitor) VisitUnit(*Unit) error { return nil }

func (BaseVisitor) VisitPrimitiveTypeExpr(*PrimitiveTypeExpr) error { return nil }
func (BaseVisitor) VisitPointerTypeExpr(*PointerTypeExpr) error     { return nil }
func (BaseVisitor) VisitArrayTypeExpr(*ArrayTypeExpr) error         { return nil }
func (BaseVisitor) VisitNamedTypeExpr(*NamedTypeExpr) error         { return nil }
func (BaseVisitor) VisitFuncTypeExpr(*FuncTypeExpr) error           { return nil }

func (BaseVisitor) VisitFuncDecl(*FuncDecl) error           { return nil }
func (BaseVisitor) VisitVarDecl(*VarDecl) error             { return nil }
func (BaseVisitor) VisitStructDecl(*StructDecl) error       { return nil }
func (BaseVisitor) VisitEnumDecl(*EnumDecl) error           { return nil }
func (BaseVisitor) VisitUnionTypeDecl(*UnionTypeDecl) error { return nil }
func (BaseVisitor) VisitMacroDecl(*MacroDecl) error         { return nil }
func (BaseVisitor) VisitIncludeDecl(*IncludeDecl) error     { return nil }

func (BaseVisitor) VisitBlockStmt(*BlockStmt) error     { return nil }
func (BaseVisitor) VisitIfStmt(*IfStmt) error           { return nil }
func (BaseVisitor) VisitWhileStmt(*WhileStmt) error     { return nil }
func (BaseVisitor) VisitDoWhileStmt(*DoWhileStmt) error { return nil }
func (BaseVisitor) VisitForStmt(*ForStmt) error         { return nil }
func (BaseVisitor) VisitForeachStmt(*ForeachStmt) error { return nil }
func (BaseVisitor) VisitReturnStmt(*ReturnStmt) error   { return nil }
func (BaseVisitor) VisitExprStmt(*ExprStmt) error       { return nil }

func (BaseVisitor) VisitIntLitExpr(*IntLitExpr) error       { return nil }
func (BaseVisitor) VisitFloatLitExpr(*FloatLitExpr) error   { return nil }
func (BaseVisitor) VisitCharLitExpr(*CharLitExpr) error     { return nil }
func (BaseVisitor) VisitStringLitExpr(*StringLitExpr) error { return nil }
func (BaseVisitor) VisitIdentExpr(*IdentExpr) error         { return nil }
func (BaseVisitor) VisitBinaryExpr(*BinaryExpr) error       { return nil }
func (BaseVisitor) VisitUnaryExpr(*UnaryExpr) error         { return nil }
func (BaseVisitor) VisitCastExpr(*CastExpr) error           { return nil }
func (BaseVisitor) VisitCallExpr(*CallExpr) error           { return nil }
func (BaseVisitor) VisitIndexExpr(*IndexExpr) error         { return nil }
func (BaseVisitor) VisitMemberExpr(*MemberExpr) error       { return nil }
func (BaseVisitor) VisitArrowExpr(*ArrowExpr) error         { return nil }
func (BaseVisitor) VisitAddrOfExpr(*AddrOfExpr) error       { return nil }
func (BaseVisitor) VisitDerefExpr(*DerefExpr) error         { return nil }
func (BaseVisitor) VisitArrayLitExpr(*ArrayLitExpr) error   { return nil }
func (BaseVisitor) VisitLambdaExpr(*LambdaExpr) error       { return nil }
func (BaseVisitor) VisitCStrExpr(*CStrExpr) error           { return nil }

// Walk performs a generic pre-order traversal over a node and all of
// its descendants, invoking fn on each. The code generator uses it to
// collect string literals and to lay out stack frames; it visits
// nodes without replacing them, and the macro-expansion and
// lambda-lifting passes in sema.go recurse on their own.
func Walk(n Node, fn func(Node)) {
	fn(n)
	switch t := n.(type) {
	case *Unit:
		for _, d := range t.Decls {
			Walk(d, fn)
		}
	case *FuncDecl:
		Walk(t.ReturnType, fn)
		if t.Body != nil {
			Walk(t.Body, fn)
		}
	case *VarDecl:
		Walk(t.Type, fn)
		if t.Init != nil {
			Walk(t.Init, fn)
		}
	case *StructDecl:
		for _, f := range t.Fields {
			Walk(f.Type, fn)
		}
	case *UnionTypeDecl:
		for _, v := range t.Variants {
			Walk(v, fn)
		}
	case *MacroDecl:
		Walk(t.Body, fn)
	case *PointerTypeExpr:
		Walk(t.Elem, fn)
	case *ArrayTypeExpr:
		Walk(t.Elem, fn)
	case *FuncTypeExpr:
		for _, p := range t.Params {
			Walk(p, fn)
		}
		Walk(t.Return, fn)
	case *BlockStmt:
		for _, s := range t.Stmts {
			Walk(s, fn)
		}
	case *IfStmt:
		Walk(t.Cond, fn)
		Walk(t.Then, fn)
		if t.Else != nil {
			Walk(t.Else, fn)
		}
	case *WhileStmt:
		Walk(t.Cond, fn)
		Walk(t.Body, fn)
	case *DoWhileStmt:
		Walk(t.Body, fn)
		Walk(t.Cond, fn)
	case *ForStmt:
		if t.Init != nil {
			Walk(t.Init, fn)
		}
		if t.Cond != nil {
			Walk(t.Cond, fn)
		}
		if t.Post != nil {
			Walk(t.Post, fn)
		}
		Walk(t.Body, fn)
	case *ForeachStmt:
		Walk(t.Array, fn)
		Walk(t.Body, fn)
	case *ReturnStmt:
		if t.Value != nil {
			Walk(t.Value, fn)
		}
	case *ExprStmt:
		Walk(t.Expr, fn)
	case *VarDeclStmt:
		Walk(t.VarDecl, fn)
	case *BinaryExpr:
		Walk(t.Left, fn)
		Walk(t.Right, fn)
	case *UnaryExpr:
		Walk(t.Operand, fn)
	case *CastExpr:
		Walk(t.Type, fn)
		Walk(t.Operand, fn)
	case *CallExpr:
		Walk(t.Callee, fn)
		for _, a := range t.Args {
			Walk(a, fn)
		}
	case *IndexExpr:
		Walk(t.Base, fn)
		Walk(t.Index, fn)
	case *MemberExpr:
		Walk(t.Base, fn)
	case *ArrowExpr:
		Walk(t.Base, fn)
	case *AddrOfExpr:
		Walk(t.Operand, fn)
	case *DerefExpr:
		Walk(t.Operand, fn)
	case *ArrayLitExpr:
		for _, it := range t.Items {
			Walk(it, fn)
		}
	case *LambdaExpr:
		for _, p := range t.Params {
			Walk(p.Type, fn)
		}
		Walk(t.ReturnType, fn)
		Walk(t.Body, fn)
	case *CStrExpr:
		Walk(t.Operand, fn)
	}
}
