package c5

import "fmt"

// Parser is a conventional recursive-descent parser over a finished
// token stream (spec.md §4.3): no backtracking machinery survives
// from the teacher's PEG engine, since C5's grammar is LL(1) with a
// one-token-lookahead recovery rule on error rather than ordered
// choice between arbitrary alternatives.
type Parser struct {
	file   string
	tokens []Token
	pos    int
	diags  *Diagnostics
}

func NewParser(file string, tokens []Token, diags *Diagnostics) *Parser {
	return &Parser{file: file, tokens: tokens, diags: diags}
}

func (p *Parser) cur() Token  { return p.tokens[p.pos] }
func (p *Parser) peekAt(off int) Token {
	i := p.pos + off
	if i >= len(p.tokens) {
		return p.tokens[len(p.tokens)-1] // EOF
	}
	return p.tokens[i]
}
func (p *Parser) atEnd() bool { return p.cur().Kind == TokEOF }

func (p *Parser) advance() Token {
	t := p.cur()
	if !p.atEnd() {
		p.pos++
	}
	return t
}

func (p *Parser) check(kind TokenKind) bool { return p.cur().Kind == kind }

func (p *Parser) match(kind TokenKind) bool {
	if p.check(kind) {
		p.advance()
		return true
	}
	return false
}

func (p *Parser) expect(kind TokenKind, production string) (Token, error) {
	if p.check(kind) {
		return p.advance(), nil
	}
	return Token{}, &backtrackingError{
		Production: production,
		Expected:   kind.String(),
		Message:    fmt.Sprintf("E002: expected %s but found %s", kind, p.cur()),
		Span:       p.cur().Span,
	}
}

// expectRAngle consumes one closing '>', splitting a lexed ">>"
// (TokShr) into two virtual '>' tokens when nested generics close
// back-to-back, e.g. `array<array<int<32>>>` (spec.md §4.1 notes the
// lexer never produces a combined relational token for a bare '<'/'>',
// but it still greedily matches the two-character shift operators, so
// the parser is the one that has to undo that here).
func (p *Parser) expectRAngle(production string) (Token, error) {
	if p.check(TokRAngle) {
		return p.advance(), nil
	}
	if p.check(TokShr) {
		cur := p.cur()
		half := Token{Kind: TokRAngle, Lexeme: ">", Span: cur.Span}
		p.tokens[p.pos] = half
		return half, nil
	}
	return Token{}, &backtrackingError{
		Production: production,
		Expected:   TokRAngle.String(),
		Message:    fmt.Sprintf("E002: expected %s but found %s", TokRAngle, p.cur()),
		Span:       p.cur().Span,
	}
}

// ParseUnit parses an entire file's top-level includes and
// declarations, recovering after each failed declaration by skipping
// to the next statement/declaration terminator (spec.md §4.3).
func (p *Parser) ParseUnit() *Unit {
	start := p.cur().Span
	var decls []Decl
	for !p.atEnd() {
		d, err := p.parseTopLevel()
		if err != nil {
			p.reportAndSync(err)
			continue
		}
		if d != nil {
			decls = append(decls, d)
		}
	}
	end := start
	if len(decls) > 0 {
		end = decls[len(decls)-1].Span()
	}
	return &Unit{sp: NewSpan(start.Start, end.End), Decls: decls}
}

func (p *Parser) reportAndSync(err error) {
	if be, ok := err.(*backtrackingError); ok {
		p.diags.Add(Diagnostic{Code: ErrParse, Severity: SeverityError, Message: be.Message, Span: be.Span, Production: be.Production})
	} else {
		p.diags.Errorf(ErrParse, p.cur().Span, "%s", err.Error())
	}
	for !p.atEnd() {
		t := p.advance()
		if t.Kind == TokSemicolon || t.Kind == TokRBrace {
			return
		}
	}
}

func (p *Parser) parseTopLevel() (Decl, error) {
	switch p.cur().Kind {
	case TokInclude:
		return p.parseInclude()
	case TokStruct:
		return p.parseStruct()
	case TokEnum:
		return p.parseEnum()
	case TokType:
		return p.parseUnionType()
	case TokMacro:
		return p.parseMacro()
	default:
		return p.parseFuncOrVarDecl(true)
	}
}

func (p *Parser) parseInclude() (Decl, error) {
	start := p.cur().Span.Start
	p.advance() // 'include'
	if _, err := p.expect(TokLAngle, "include"); err != nil {
		return nil, err
	}
	name, err := p.expect(TokIdent, "include")
	if err != nil {
		return nil, err
	}
	// ".c5h" is lexed as '.' TokDot followed by two identifiers
	// joined across a dot; accept the conventional `name.c5h` spelling.
	if p.match(TokDot) {
		if _, err := p.expect(TokIdent, "include"); err != nil {
			return nil, err
		}
	}
	if _, err := p.expect(TokRAngle, "include"); err != nil {
		return nil, err
	}
	end := p.cur().Span
	if _, err := p.expect(TokSemicolon, "include"); err != nil {
		return nil, err
	}
	return &IncludeDecl{sp: NewSpan(start, end.End), Name: name.Lexeme}, nil
}

func (p *Parser) parseStruct() (Decl, error) {
	start := p.cur().Span.Start
	p.advance() // 'struct'
	name, err := p.expect(TokIdent, "struct_decl")
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(TokLBrace, "struct_decl"); err != nil {
		return nil, err
	}
	var fields []*FieldDecl
	for !p.check(TokRBrace) && !p.atEnd() {
		fstart := p.cur().Span.Start
		ty, err := p.parseType()
		if err != nil {
			return nil, err
		}
		fname, err := p.expect(TokIdent, "struct_decl")
		if err != nil {
			return nil, err
		}
		fend, err := p.expect(TokSemicolon, "struct_decl")
		if err != nil {
			return nil, err
		}
		fields = append(fields, &FieldDecl{sp: NewSpan(fstart, fend.Span.End), Name: fname.Lexeme, Type: ty})
	}
	if _, err := p.expect(TokRBrace, "struct_decl"); err != nil {
		return nil, err
	}
	end, err := p.expect(TokSemicolon, "struct_decl")
	if err != nil {
		return nil, err
	}
	return &StructDecl{sp: NewSpan(start, end.Span.End), Name: name.Lexeme, Fields: fields}, nil
}

func (p *Parser) parseEnum() (Decl, error) {
	start := p.cur().Span.Start
	p.advance() // 'enum'
	name, err := p.expect(TokIdent, "enum_decl")
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(TokLBrace, "enum_decl"); err != nil {
		return nil, err
	}
	var members []string
	for {
		m, err := p.expect(TokIdent, "enum_decl")
		if err != nil {
			return nil, err
		}
		members = append(members, m.Lexeme)
		if !p.match(TokComma) {
			break
		}
	}
	if _, err := p.expect(TokRBrace, "enum_decl"); err != nil {
		return nil, err
	}
	end, err := p.expect(TokSemicolon, "enum_decl")
	if err != nil {
		return nil, err
	}
	return &EnumDecl{sp: NewSpan(start, end.Span.End), Name: name.Lexeme, Members: members}, nil
}

func (p *Parser) parseUnionType() (Decl, error) {
	start := p.cur().Span.Start
	p.advance() // 'type'
	name, err := p.expect(TokIdent, "type_decl")
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(TokLBrace, "type_decl"); err != nil {
		return nil, err
	}
	var variants []TypeExpr
	for {
		ty, err := p.parseType()
		if err != nil {
			return nil, err
		}
		variants = append(variants, ty)
		if !p.match(TokComma) {
			break
		}
	}
	if _, err := p.expect(TokRBrace, "type_decl"); err != nil {
		return nil, err
	}
	end, err := p.expect(TokSemicolon, "type_decl")
	if err != nil {
		return nil, err
	}
	return &UnionTypeDecl{sp: NewSpan(start, end.Span.End), Name: name.Lexeme, Variants: variants}, nil
}

func (p *Parser) parseMacro() (Decl, error) {
	start := p.cur().Span.Start
	p.advance() // 'macro'
	name, err := p.expect(TokIdent, "macro_decl")
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(TokLParen, "macro_decl"); err != nil {
		return nil, err
	}
	var params []string
	if !p.check(TokRParen) {
		for {
			id, err := p.expect(TokIdent, "macro_decl")
			if err != nil {
				return nil, err
			}
			params = append(params, id.Lexeme)
			if !p.match(TokComma) {
				break
			}
		}
	}
	if _, err := p.expect(TokRParen, "macro_decl"); err != nil {
		return nil, err
	}
	if _, err := p.expect(TokLBrace, "macro_decl"); err != nil {
		return nil, err
	}
	body, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	end, err := p.expect(TokRBrace, "macro_decl")
	if err != nil {
		return nil, err
	}
	return &MacroDecl{sp: NewSpan(start, end.Span.End), Name: name.Lexeme, Params: params, Body: body}, nil
}

// parseFuncOrVarDecl handles the shared prefix of fn_decl/global_var/
// var_decl: an optional `let`, optional `const`, optional signed/
// unsigned qualifier, then a type, then an identifier. What follows
// the identifier (`(` vs `;`/`=`) disambiguates function from
// variable (spec.md §4.3 grammar sketch).
func (p *Parser) parseFuncOrVarDecl(topLevel bool) (Decl, error) {
	start := p.cur().Span.Start
	let := p.match(TokLet)
	constQ := p.match(TokConst)
	signed, unsigned := false, false
	switch {
	case p.match(TokSigned):
		signed = true
	case p.match(TokUnsigned):
		unsigned = true
	}
	ty, err := p.parseType()
	if err != nil {
		return nil, err
	}
	name, err := p.expect(TokIdent, "decl")
	if err != nil {
		return nil, err
	}
	if p.check(TokLParen) {
		return p.parseFuncDeclTail(start, signed, unsigned, ty, name.Lexeme)
	}
	var init Expr
	if p.match(TokAssign) {
		init, err = p.parseExpr()
		if err != nil {
			return nil, err
		}
	}
	end, err := p.expect(TokSemicolon, "var_decl")
	if err != nil {
		return nil, err
	}
	return &VarDecl{
		sp: NewSpan(start, end.Span.End), Name: name.Lexeme, Type: ty,
		Let: let, Const: constQ, Signed: signed, Unsigned: unsigned,
		Init: init, Global: topLevel,
	}, nil
}

func (p *Parser) parseFuncDeclTail(start Location, signed, unsigned bool, ret TypeExpr, name string) (Decl, error) {
	p.advance() // '('
	var params []*Param
	if !p.check(TokRParen) {
		for {
			pstart := p.cur().Span.Start
			pty, err := p.parseType()
			if err != nil {
				return nil, err
			}
			pname, err := p.expect(TokIdent, "fn_decl")
			if err != nil {
				return nil, err
			}
			params = append(params, &Param{sp: NewSpan(pstart, pname.Span.End), Name: pname.Lexeme, Type: pty})
			if !p.match(TokComma) {
				break
			}
		}
	}
	if _, err := p.expect(TokRParen, "fn_decl"); err != nil {
		return nil, err
	}
	if p.match(TokSemicolon) {
		end := p.tokens[p.pos-1].Span
		return &FuncDecl{sp: NewSpan(start, end.End), Name: name, Signed: signed, Unsigned: unsigned, ReturnType: ret, Params: params}, nil
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	return &FuncDecl{sp: NewSpan(start, body.Span().End), Name: name, Signed: signed, Unsigned: unsigned, ReturnType: ret, Params: params, Body: body}, nil
}

// ---------------------------------------------------------------
// Types
// ---------------------------------------------------------------

func (p *Parser) parseType() (TypeExpr, error) {
	base, err := p.parseBaseType()
	if err != nil {
		return nil, err
	}
	for p.check(TokStar) {
		start := p.cur().Span.Start
		p.advance()
		base = &PointerTypeExpr{sp: NewSpan(start, p.tokens[p.pos-1].Span.End), Elem: base}
	}
	return base, nil
}

func (p *Parser) parseBaseType() (TypeExpr, error) {
	start := p.cur().Span.Start
	switch {
	case p.check(TokIdent) && (p.cur().Lexeme == "int" || p.cur().Lexeme == "float"):
		name := p.advance().Lexeme
		width := 0
		if p.check(TokLAngle) {
			p.advance()
			n, err := p.expect(TokIntLit, "base_type")
			if err != nil {
				return nil, err
			}
			width = parseIntLiteralUnchecked(n.Lexeme)
			closeTok, err := p.expectRAngle("base_type")
			if err != nil {
				return nil, err
			}
			return &PrimitiveTypeExpr{sp: NewSpan(start, closeTok.Span.End), Name: name, Width: width}, nil
		}
		return &PrimitiveTypeExpr{sp: NewSpan(start, p.tokens[p.pos-1].Span.End), Name: name, Width: width}, nil

	case p.check(TokIdent) && p.cur().Lexeme == "char":
		p.advance()
		return &PrimitiveTypeExpr{sp: NewSpan(start, p.tokens[p.pos-1].Span.End), Name: "char"}, nil

	case p.check(TokIdent) && p.cur().Lexeme == "string":
		p.advance()
		return &PrimitiveTypeExpr{sp: NewSpan(start, p.tokens[p.pos-1].Span.End), Name: "string"}, nil

	case p.check(TokIdent) && p.cur().Lexeme == "void":
		p.advance()
		return &PrimitiveTypeExpr{sp: NewSpan(start, p.tokens[p.pos-1].Span.End), Name: "void"}, nil

	case p.check(TokIdent) && p.cur().Lexeme == "array":
		p.advance()
		if _, err := p.expect(TokLAngle, "base_type"); err != nil {
			return nil, err
		}
		elem, err := p.parseType()
		if err != nil {
			return nil, err
		}
		closeTok, err := p.expectRAngle("base_type")
		if err != nil {
			return nil, err
		}
		return &ArrayTypeExpr{sp: NewSpan(start, closeTok.Span.End), Elem: elem}, nil

	case p.check(TokFnct):
		p.advance()
		if _, err := p.expect(TokLParen, "base_type"); err != nil {
			return nil, err
		}
		var params []TypeExpr
		if !p.check(TokRParen) {
			for {
				pt, err := p.parseType()
				if err != nil {
					return nil, err
				}
				params = append(params, pt)
				if !p.match(TokComma) {
					break
				}
			}
		}
		if _, err := p.expect(TokRParen, "base_type"); err != nil {
			return nil, err
		}
		if _, err := p.expect(TokArrow, "base_type"); err != nil {
			return nil, err
		}
		ret, err := p.parseType()
		if err != nil {
			return nil, err
		}
		return &FuncTypeExpr{sp: NewSpan(start, ret.Span().End), Params: params, Return: ret}, nil

	case p.check(TokIdent):
		id := p.advance().Lexeme
		ns := ""
		if p.match(TokColonColon) {
			ns = id
			next, err := p.expect(TokIdent, "base_type")
			if err != nil {
				return nil, err
			}
			id = next.Lexeme
		}
		return &NamedTypeExpr{sp: NewSpan(start, p.tokens[p.pos-1].Span.End), Namespace: ns, Name: id}, nil
	}
	return nil, &backtrackingError{
		Production: "base_type",
		Expected:   "a type",
		Message:    fmt.Sprintf("E002: expected a type but found %s", p.cur()),
		Span:       p.cur().Span,
	}
}

// parseIntLiteralUnchecked converts a lexed integer literal's decimal
// text to an int for use as a type width; the semantic analyser is
// responsible for validating the width is one of the supported sizes.
func parseIntLiteralUnchecked(text string) int {
	n := 0
	for _, r := range text {
		n = n*10 + int(r-'0')
	}
	return n
}

// ---------------------------------------------------------------
// Statements
// ---------------------------------------------------------------

func (p *Parser) parseBlock() (*BlockStmt, error) {
	start, err := p.expect(TokLBrace, "block")
	if err != nil {
		return nil, err
	}
	var stmts []Stmt
	for !p.check(TokRBrace) && !p.atEnd() {
		s, err := p.parseStmt()
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, s)
	}
	end, err := p.expect(TokRBrace, "block")
	if err != nil {
		return nil, err
	}
	return &BlockStmt{sp: NewSpan(start.Span.Start, end.Span.End), Stmts: stmts}, nil
}

func (p *Parser) parseStmt() (Stmt, error) {
	switch p.cur().Kind {
	case TokLBrace:
		return p.parseBlock()
	case TokIf:
		return p.parseIf()
	case TokWhile:
		return p.parseWhile()
	case TokDo:
		return p.parseDoWhile()
	case TokFor:
		return p.parseFor()
	case TokForeach:
		return p.parseForeach()
	case TokReturn:
		return p.parseReturn()
	}
	if p.isDeclStart() {
		d, err := p.parseFuncOrVarDecl(false)
		if err != nil {
			return nil, err
		}
		vd, ok := d.(*VarDecl)
		if !ok {
			return nil, &backtrackingError{Production: "stmt", Message: "E002: function declarations are not allowed inside a block", Span: d.Span()}
		}
		return &VarDeclStmt{VarDecl: vd}, nil
	}
	start := p.cur().Span.Start
	e, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	end, err := p.expect(TokSemicolon, "expr_stmt")
	if err != nil {
		return nil, err
	}
	return &ExprStmt{sp: NewSpan(start, end.Span.End), Expr: e}, nil
}

// isDeclStart peeks far enough to tell a variable declaration apart
// from an expression statement: `let`/`const`/`signed`/`unsigned`
// always start a declaration, and so does a leading `int`/`float`/
// `char`/`string`/`void`/`array` identifier, whatever follows it.
func (p *Parser) isDeclStart() bool {
	switch p.cur().Kind {
	case TokLet, TokConst, TokSigned, TokUnsigned:
		return true
	}
	if p.cur().Kind != TokIdent {
		return false
	}
	switch p.cur().Lexeme {
	case "int", "float", "char", "string", "void", "array":
		return true
	}
	// A bare user-defined type name declares a variable only if
	// followed (after an optional `::name` and any `*`s) by another
	// identifier rather than `(`, `.`, an operator, etc.
	i := 1
	if p.peekAt(i).Kind == TokColonColon {
		i += 2
	}
	for p.peekAt(i).Kind == TokStar {
		i++
	}
	return p.peekAt(i).Kind == TokIdent
}

func (p *Parser) parseIf() (Stmt, error) {
	start := p.cur().Span.Start
	p.advance() // 'if'
	if _, err := p.expect(TokLParen, "if"); err != nil {
		return nil, err
	}
	cond, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(TokRParen, "if"); err != nil {
		return nil, err
	}
	then, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	end := then.Span()
	var elseStmt Stmt
	if p.match(TokElse) {
		if p.check(TokIf) {
			elseStmt, err = p.parseIf()
		} else {
			elseStmt, err = p.parseBlock()
		}
		if err != nil {
			return nil, err
		}
		end = elseStmt.Span()
	}
	return &IfStmt{sp: NewSpan(start, end.End), Cond: cond, Then: then, Else: elseStmt}, nil
}

func (p *Parser) parseWhile() (Stmt, error) {
	start := p.cur().Span.Start
	p.advance() // 'while'
	if _, err := p.expect(TokLParen, "while"); err != nil {
		return nil, err
	}
	cond, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(TokRParen, "while"); err != nil {
		return nil, err
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	return &WhileStmt{sp: NewSpan(start, body.Span().End), Cond: cond, Body: body}, nil
}

func (p *Parser) parseDoWhile() (Stmt, error) {
	start := p.cur().Span.Start
	p.advance() // 'do'
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(TokWhile, "do_while"); err != nil {
		return nil, err
	}
	if _, err := p.expect(TokLParen, "do_while"); err != nil {
		return nil, err
	}
	cond, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(TokRParen, "do_while"); err != nil {
		return nil, err
	}
	end, err := p.expect(TokSemicolon, "do_while")
	if err != nil {
		return nil, err
	}
	return &DoWhileStmt{sp: NewSpan(start, end.Span.End), Body: body, Cond: cond}, nil
}

func (p *Parser) parseFor() (Stmt, error) {
	start := p.cur().Span.Start
	p.advance() // 'for'
	if _, err := p.expect(TokLParen, "for"); err != nil {
		return nil, err
	}
	var init Stmt
	if !p.check(TokSemicolon) {
		var err error
		init, err = p.parseForClauseStmt()
		if err != nil {
			return nil, err
		}
	} else {
		p.advance()
	}
	var cond Expr
	if !p.check(TokSemicolon) {
		var err error
		cond, err = p.parseExpr()
		if err != nil {
			return nil, err
		}
	}
	if _, err := p.expect(TokSemicolon, "for"); err != nil {
		return nil, err
	}
	var post Expr
	if !p.check(TokRParen) {
		var err error
		post, err = p.parseExpr()
		if err != nil {
			return nil, err
		}
	}
	if _, err := p.expect(TokRParen, "for"); err != nil {
		return nil, err
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	return &ForStmt{sp: NewSpan(start, body.Span().End), Init: init, Cond: cond, Post: post, Body: body}, nil
}

// parseForClauseStmt parses the `for(init; ...)` init clause, which
// is either a var_decl (consuming its own trailing ';') or a bare
// expression (the caller consumes the ';').
func (p *Parser) parseForClauseStmt() (Stmt, error) {
	if p.isDeclStart() {
		d, err := p.parseFuncOrVarDecl(false)
		if err != nil {
			return nil, err
		}
		return &VarDeclStmt{VarDecl: d.(*VarDecl)}, nil
	}
	start := p.cur().Span.Start
	e, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	return &ExprStmt{sp: NewSpan(start, e.Span().End), Expr: e}, nil
}

func (p *Parser) parseForeach() (Stmt, error) {
	start := p.cur().Span.Start
	p.advance() // 'foreach'
	if _, err := p.expect(TokLParen, "foreach"); err != nil {
		return nil, err
	}
	idx, err := p.expect(TokIdent, "foreach")
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(TokComma, "foreach"); err != nil {
		return nil, err
	}
	val, err := p.expect(TokIdent, "foreach")
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(TokIn, "foreach"); err != nil {
		return nil, err
	}
	arr, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(TokRParen, "foreach"); err != nil {
		return nil, err
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	return &ForeachStmt{sp: NewSpan(start, body.Span().End), IndexName: idx.Lexeme, ValueName: val.Lexeme, Array: arr, Body: body}, nil
}

func (p *Parser) parseReturn() (Stmt, error) {
	start := p.cur().Span.Start
	p.advance() // 'return'
	if p.match(TokSemicolon) {
		return &ReturnStmt{sp: NewSpan(start, p.tokens[p.pos-1].Span.End)}, nil
	}
	v, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	end, err := p.expect(TokSemicolon, "return")
	if err != nil {
		return nil, err
	}
	return &ReturnStmt{sp: NewSpan(start, end.Span.End), Value: v}, nil
}

// ---------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------

// precedence levels, low to high, per spec.md §4.3. Assignment binds
// looser than everything else (including `||`), matching C despite
// the spec's ladder not mentioning it explicitly — see DESIGN.md.
var binPrec = map[TokenKind]int{
	TokAssign: 1,
	TokOrOr:   2,
	TokAndAnd: 3,
	TokPipe:   4, TokCaret: 4, TokAmp: 4,
	TokEq: 5, TokNeq: 5,
	TokLAngle: 6, TokLe: 6, TokRAngle: 6, TokGe: 6,
	TokShl: 7, TokShr: 7,
	TokPlus: 8, TokMinus: 8,
	TokStar: 9, TokSlash: 9, TokPercent: 9,
}

var binOpOf = map[TokenKind]BinOp{
	TokAssign: OpAssign, TokOrOr: OpOr, TokAndAnd: OpAnd,
	TokPipe: OpBitOr, TokCaret: OpBitXor, TokAmp: OpBitAnd,
	TokEq: OpEq, TokNeq: OpNeq, TokLAngle: OpLt, TokLe: OpLe, TokRAngle: OpGt, TokGe: OpGe,
	TokShl: OpShl, TokShr: OpShr, TokPlus: OpAdd, TokMinus: OpSub,
	TokStar: OpMul, TokSlash: OpDiv, TokPercent: OpMod,
}

func (p *Parser) parseExpr() (Expr, error) {
	return p.parseBinary(1)
}

func (p *Parser) parseBinary(minPrec int) (Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		prec, ok := binPrec[p.cur().Kind]
		if !ok || prec < minPrec {
			return left, nil
		}
		op := p.advance()
		// '=' is right-associative; everything else is left-associative.
		nextMin := prec + 1
		if op.Kind == TokAssign {
			nextMin = prec
		}
		right, err := p.parseBinary(nextMin)
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{sp: NewSpan(left.Span().Start, right.Span().End), Op: binOpOf[op.Kind], Left: left, Right: right}
	}
}

func (p *Parser) parseUnary() (Expr, error) {
	start := p.cur().Span.Start
	switch p.cur().Kind {
	case TokBang:
		p.advance()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &UnaryExpr{sp: NewSpan(start, operand.Span().End), Op: OpNot, Operand: operand}, nil
	case TokTilde:
		p.advance()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &UnaryExpr{sp: NewSpan(start, operand.Span().End), Op: OpBitNot, Operand: operand}, nil
	case TokMinus:
		p.advance()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &UnaryExpr{sp: NewSpan(start, operand.Span().End), Op: OpNeg, Operand: operand}, nil
	case TokStar:
		p.advance()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &DerefExpr{sp: NewSpan(start, operand.Span().End), Operand: operand}, nil
	case TokAmp:
		p.advance()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &AddrOfExpr{sp: NewSpan(start, operand.Span().End), Operand: operand}, nil
	case TokPlus:
		// a plus-plus prefix increment: the lexer has no dedicated
		// `++` token, so two consecutive TokPlus act as the operator.
		if p.peekAt(1).Kind == TokPlus {
			p.advance()
			p.advance()
			operand, err := p.parseUnary()
			if err != nil {
				return nil, err
			}
			return &UnaryExpr{sp: NewSpan(start, operand.Span().End), Op: OpPreInc, Operand: operand}, nil
		}
	case TokLParen:
		// Could be a parenthesised cast `(type)expr` or a grouped
		// expression `(expr)`; try the cast reading first and fall
		// back by restoring the cursor.
		save := p.pos
		if ce, ok := p.tryParseCast(start); ok {
			return ce, nil
		}
		p.pos = save
	}
	return p.parsePostfix()
}

// tryParseCast speculatively parses `(type)` followed by a unary
// expression. It only consumes input on success; callers must restore
// p.pos themselves on failure since this never leaves a diagnostic.
func (p *Parser) tryParseCast(start Location) (Expr, bool) {
	p.advance() // '('
	ty, err := p.parseType()
	if err != nil {
		return nil, false
	}
	if !p.check(TokRParen) {
		return nil, false
	}
	p.advance()
	switch p.cur().Kind {
	case TokIdent, TokIntLit, TokFloatLit, TokCharLit, TokStringLit, TokLParen, TokMinus, TokBang, TokTilde, TokStar, TokAmp:
	default:
		return nil, false
	}
	operand, err := p.parseUnary()
	if err != nil {
		return nil, false
	}
	return &CastExpr{sp: NewSpan(start, operand.Span().End), Type: ty, Operand: operand}, true
}

func (p *Parser) parsePostfix() (Expr, error) {
	e, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for {
		switch p.cur().Kind {
		case TokLParen:
			p.advance()
			var args []Expr
			if !p.check(TokRParen) {
				for {
					a, err := p.parseExpr()
					if err != nil {
						return nil, err
					}
					args = append(args, a)
					if !p.match(TokComma) {
						break
					}
				}
			}
			end, err := p.expect(TokRParen, "call")
			if err != nil {
				return nil, err
			}
			e = &CallExpr{sp: NewSpan(e.Span().Start, end.Span.End), Callee: e, Args: args}
		case TokLBracket:
			p.advance()
			idx, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			end, err := p.expect(TokRBracket, "index")
			if err != nil {
				return nil, err
			}
			e = &IndexExpr{sp: NewSpan(e.Span().Start, end.Span.End), Base: e, Index: idx}
		case TokDot:
			p.advance()
			field, err := p.expect(TokIdent, "member")
			if err != nil {
				return nil, err
			}
			e = &MemberExpr{sp: NewSpan(e.Span().Start, field.Span.End), Base: e, Field: field.Lexeme}
		case TokArrow:
			p.advance()
			field, err := p.expect(TokIdent, "arrow")
			if err != nil {
				return nil, err
			}
			e = &ArrowExpr{sp: NewSpan(e.Span().Start, field.Span.End), Base: e, Field: field.Lexeme}
		default:
			return e, nil
		}
	}
}

func (p *Parser) parsePrimary() (Expr, error) {
	start := p.cur().Span.Start
	switch p.cur().Kind {
	case TokIntLit:
		t := p.advance()
		v := int64(0)
		for _, r := range t.Lexeme {
			v = v*10 + int64(r-'0')
		}
		return &IntLitExpr{sp: t.Span, Value: v, Text: t.Lexeme}, nil

	case TokFloatLit:
		t := p.advance()
		return &FloatLitExpr{sp: t.Span, Value: parseFloatLiteralUnchecked(t.Lexeme), Text: t.Lexeme}, nil

	case TokCharLit:
		t := p.advance()
		var b byte
		if len(t.Lexeme) > 0 {
			b = t.Lexeme[0]
		}
		return &CharLitExpr{sp: t.Span, Value: b}, nil

	case TokStringLit:
		t := p.advance()
		return &StringLitExpr{sp: t.Span, Value: t.Lexeme}, nil

	case TokFnct:
		return p.parseLambda()

	case TokIdent:
		if p.cur().Lexeme == "c_str" && p.peekAt(1).Kind == TokLParen {
			p.advance()
			p.advance()
			operand, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			end, err := p.expect(TokRParen, "c_str")
			if err != nil {
				return nil, err
			}
			return &CStrExpr{sp: NewSpan(start, end.Span.End), Operand: operand}, nil
		}
		id := p.advance()
		ns, name := "", id.Lexeme
		if p.match(TokColonColon) {
			ns = id.Lexeme
			next, err := p.expect(TokIdent, "identifier")
			if err != nil {
				return nil, err
			}
			name = next.Lexeme
		}
		return &IdentExpr{sp: NewSpan(start, p.tokens[p.pos-1].Span.End), Namespace: ns, Name: name}, nil

	case TokLParen:
		p.advance()
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(TokRParen, "group"); err != nil {
			return nil, err
		}
		return e, nil

	case TokLBrace:
		return p.parseArrayLit()
	}
	return nil, &backtrackingError{
		Production: "primary",
		Expected:   "an expression",
		Message:    fmt.Sprintf("E002: expected an expression but found %s", p.cur()),
		Span:       p.cur().Span,
	}
}

func (p *Parser) parseArrayLit() (Expr, error) {
	start, err := p.expect(TokLBrace, "array_literal")
	if err != nil {
		return nil, err
	}
	var items []Expr
	if !p.check(TokRBrace) {
		for {
			it, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			items = append(items, it)
			if !p.match(TokComma) {
				break
			}
		}
	}
	end, err := p.expect(TokRBrace, "array_literal")
	if err != nil {
		return nil, err
	}
	return &ArrayLitExpr{sp: NewSpan(start.Span.Start, end.Span.End), Items: items}, nil
}

func (p *Parser) parseLambda() (Expr, error) {
	start := p.cur().Span.Start
	p.advance() // 'fnct'
	if _, err := p.expect(TokLParen, "lambda"); err != nil {
		return nil, err
	}
	var params []*Param
	if !p.check(TokRParen) {
		for {
			pstart := p.cur().Span.Start
			pty, err := p.parseType()
			if err != nil {
				return nil, err
			}
			pname, err := p.expect(TokIdent, "lambda")
			if err != nil {
				return nil, err
			}
			params = append(params, &Param{sp: NewSpan(pstart, pname.Span.End), Name: pname.Lexeme, Type: pty})
			if !p.match(TokComma) {
				break
			}
		}
	}
	if _, err := p.expect(TokRParen, "lambda"); err != nil {
		return nil, err
	}
	var ret TypeExpr
	if p.match(TokArrow) {
		var err error
		ret, err = p.parseType()
		if err != nil {
			return nil, err
		}
	} else {
		ret = &PrimitiveTypeExpr{sp: p.cur().Span, Name: "void"}
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	return &LambdaExpr{sp: NewSpan(start, body.Span().End), Params: params, ReturnType: ret, Body: body}, nil
}

func parseFloatLiteralUnchecked(text string) float64 {
	var intPart, fracPart int64
	var fracDigits int
	i := 0
	for i < len(text) && text[i] != '.' {
		intPart = intPart*10 + int64(text[i]-'0')
		i++
	}
	if i < len(text) && text[i] == '.' {
		i++
		for i < len(text) {
			fracPart = fracPart*10 + int64(text[i]-'0')
			fracDigits++
			i++
		}
	}
	v := float64(intPart)
	if fracDigits > 0 {
		div := 1.0
		for j := 0; j < fracDigits; j++ {
			div *= 10
		}
		v += float64(fracPart) / div
	}
	return v
}
