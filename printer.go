package c5

import "strings"

// treePrinter accumulates an indented, one-node-per-line rendering of
// an AST. It mirrors the teacher's tree_printer.go indent/unindent/
// pwritel helpers, generalized from printing grammar expressions to
// printing C5 declarations/statements/expressions.
type treePrinter struct {
	depth  int
	output strings.Builder
}

func (tp *treePrinter) indent()   { tp.depth++ }
func (tp *treePrinter) unindent() { tp.depth-- }

func (tp *treePrinter) pwritel(s string) {
	tp.output.WriteString(strings.Repeat("  ", tp.depth))
	tp.output.WriteString(s)
	tp.output.WriteRune('\n')
}

// PrintAST renders unit as an indented tree, one node per line, each
// line naming the node kind and its one-line String() form so every
// declaration, statement, and expression is visible in source order
// at its nesting depth. It is the `-ast-only` driver's output.
func PrintAST(unit *Unit) string {
	tp := &treePrinter{}
	tp.pwritel("Unit")
	tp.indent()
	for _, d := range unit.Decls {
		printDecl(tp, d)
	}
	tp.unindent()
	return tp.output.String()
}

func printDecl(tp *treePrinter, d Decl) {
	switch n := d.(type) {
	case *FuncDecl:
		tp.pwritel("FuncDecl " + n.Name + " :: " + n.String())
		if n.Body != nil {
			tp.indent()
			printStmt(tp, n.Body)
			tp.unindent()
		}
	case *VarDecl:
		tp.pwritel("VarDecl " + n.String())
	case *StructDecl:
		tp.pwritel("StructDecl " + n.String())
	case *EnumDecl:
		tp.pwritel("EnumDecl " + n.String())
	case *UnionTypeDecl:
		tp.pwritel("UnionTypeDecl " + n.String())
	case *MacroDecl:
		tp.pwritel("MacroDecl " + n.String())
	case *IncludeDecl:
		tp.pwritel("IncludeDecl " + n.String())
	case *VarDeclStmt:
		printDecl(tp, n.VarDecl)
	default:
		tp.pwritel("Decl " + d.String())
	}
}

func printStmt(tp *treePrinter, s Stmt) {
	switch n := s.(type) {
	case *BlockStmt:
		tp.pwritel("BlockStmt")
		tp.indent()
		for _, st := range n.Stmts {
			printStmt(tp, st)
		}
		tp.unindent()
	case *IfStmt:
		tp.pwritel("IfStmt " + n.Cond.String())
		tp.indent()
		printStmt(tp, n.Then)
		if n.Else != nil {
			printStmt(tp, n.Else)
		}
		tp.unindent()
	case *WhileStmt:
		tp.pwritel("WhileStmt " + n.Cond.String())
		tp.indent()
		printStmt(tp, n.Body)
		tp.unindent()
	case *DoWhileStmt:
		tp.pwritel("DoWhileStmt " + n.Cond.String())
		tp.indent()
		printStmt(tp, n.Body)
		tp.unindent()
	case *ForStmt:
		tp.pwritel("ForStmt " + n.String())
		tp.indent()
		printStmt(tp, n.Body)
		tp.unindent()
	case *ForeachStmt:
		tp.pwritel("ForeachStmt " + n.IndexName + ", " + n.ValueName + " in " + n.Array.String())
		tp.indent()
		printStmt(tp, n.Body)
		tp.unindent()
	case *ReturnStmt:
		tp.pwritel("ReturnStmt " + n.String())
	case *ExprStmt:
		tp.pwritel("ExprStmt " + n.String())
	case *VarDeclStmt:
		printDecl(tp, n.VarDecl)
	default:
		tp.pwritel("Stmt " + s.String())
	}
}
