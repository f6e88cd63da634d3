package compiler

import (
	"errors"
	"fmt"
	"io"
	"strings"
)

// ---------------------------------------------------------------------------
// Parser: recursive descent with precedence climbing for binary operators
// ---------------------------------------------------------------------------

// SyntaxError is a parse-time diagnostic.
type SyntaxError struct {
	Pos Position
	Msg string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("line %d:%d: %s", e.Pos.Line, e.Pos.Column, e.Msg)
}

// ErrSyntax is matched by every *SyntaxError via errors.Is.
var ErrSyntax = errors.New("syntax error")

func (e *SyntaxError) Is(target error) bool { return target == ErrSyntax }

// Parser parses SEL source into top-level units.
type Parser struct {
	lexer  *Lexer
	cur    Token
	ops    *OperatorTable
	errors []*SyntaxError
}

// NewParser creates a parser reading tokens from lexer. Binary operator
// prototypes are declared into ops as they are parsed; a nil ops gets a
// fresh table.
func NewParser(lexer *Lexer, ops *OperatorTable) *Parser {
	if ops == nil {
		ops = NewOperatorTable()
	}
	p := &Parser{lexer: lexer, ops: ops}
	p.nextToken()
	return p
}

// NewStringParser parses input with the given operator table.
func NewStringParser(input string, ops *OperatorTable) *Parser {
	return NewParser(NewStringLexer(input), ops)
}

// nextToken advances to the next token.
func (p *Parser) nextToken() {
	p.cur = p.lexer.NextToken()
}

// Current returns the current token.
func (p *Parser) Current() Token {
	return p.cur
}

// Operators returns the table the parser reads and declares into.
func (p *Parser) Operators() *OperatorTable {
	return p.ops
}

// errorf records a parse error at the current token.
func (p *Parser) errorf(format string, args ...interface{}) {
	p.errors = append(p.errors, &SyntaxError{Pos: p.cur.Pos, Msg: fmt.Sprintf(format, args...)})
}

// Errors returns accumulated parse errors.
func (p *Parser) Errors() []*SyntaxError {
	return p.errors
}

func (p *Parser) lastError() error {
	if len(p.errors) == 0 {
		return &SyntaxError{Pos: p.cur.Pos, Msg: "invalid syntax"}
	}
	return p.errors[len(p.errors)-1]
}

// Skip discards the current token. Drivers call it to recover after a
// syntax error.
func (p *Parser) Skip() {
	p.nextToken()
}

// ---------------------------------------------------------------------------
// Top-level parsing
// ---------------------------------------------------------------------------

// ParseUnit parses the next top-level unit. It returns io.EOF at the end of
// input and a *SyntaxError when the unit is malformed, in which case the
// caller should Skip before trying again.
func (p *Parser) ParseUnit() (Unit, error) {
	for p.cur.Is(';') {
		p.nextToken()
	}

	var unit Unit
	switch p.cur.Type {
	case TokenEOF:
		return nil, io.EOF

	case TokenFunc:
		if def := p.parseDefinition(); def != nil {
			unit = def
		}

	case TokenExtern:
		p.nextToken() // eat extern
		if proto := p.parsePrototype(); proto != nil {
			unit = &ExternDecl{Proto: proto}
		}

	case TokenImport:
		pos := p.cur.Pos
		path := p.lexer.ReadLine()
		p.nextToken()
		if path == "" {
			p.errors = append(p.errors, &SyntaxError{Pos: pos, Msg: "expected module path after import"})
			break
		}
		unit = &ImportDecl{At: pos, Path: path}

	default:
		if body := p.parseBlock(); body != nil {
			unit = &TopLevelExpr{Body: body}
		}
	}

	if unit == nil {
		return nil, p.lastError()
	}
	return unit, nil
}

// ParseProgram parses every unit in input, skipping a token after each
// syntax error. It returns the units that parsed and all errors.
func ParseProgram(input string, ops *OperatorTable) ([]Unit, []*SyntaxError) {
	p := NewStringParser(input, ops)
	var units []Unit
	for {
		unit, err := p.ParseUnit()
		if err == io.EOF {
			break
		}
		if err != nil {
			p.Skip()
			continue
		}
		units = append(units, unit)
	}
	return units, p.Errors()
}

// parseDefinition parses 'func' prototype block.
func (p *Parser) parseDefinition() *FunctionDef {
	start := p.cur.Pos.Offset
	p.nextToken() // eat func

	proto := p.parsePrototype()
	if proto == nil {
		return nil
	}

	body := p.parseBlock()
	if body == nil {
		return nil
	}

	return &FunctionDef{
		Proto:  proto,
		Body:   body,
		Source: strings.TrimSpace(p.lexer.Text(start, p.cur.Pos.Offset)),
	}
}

// parsePrototype parses
//
//	identifier '(' params ')'
//	'unary' op '(' param ')'
//	'binary' op precedence? '(' param ',' param ')'
//
// An operator prototype declares its operator before returning, so the body
// and everything after it can already use the operator.
func (p *Parser) parsePrototype() *Prototype {
	proto := &Prototype{At: p.cur.Pos}

	switch p.cur.Type {
	case TokenIdentifier:
		proto.Name = p.cur.Literal
		p.nextToken()

	case TokenUnary:
		p.nextToken()
		if p.cur.Type != TokenChar || !IsOperatorChar(p.cur.Char) {
			p.errorf("expected unary operator")
			return nil
		}
		if op := string(p.cur.Char); IsBuiltinUnary(op) {
			p.errorf("cannot redefine builtin unary operator %s", op)
			return nil
		}
		proto.Kind = UnaryOperator
		proto.Op = string(p.cur.Char)
		proto.Name = UnaryName(proto.Op)
		p.ops.DeclareUnary(proto.Op)
		p.nextToken()

	case TokenBinary:
		p.nextToken()
		if p.cur.Type != TokenChar || !IsOperatorChar(p.cur.Char) {
			p.errorf("expected binary operator")
			return nil
		}
		op := string(p.cur.Char)
		if IsOperatorChar(p.lexer.Peek()) {
			p.nextToken()
			op += string(p.cur.Char)
		}
		if IsBuiltin(op) {
			p.errorf("cannot redefine builtin operator %s", op)
			return nil
		}
		p.nextToken()

		prec := MaxPrecedence
		if p.cur.Type == TokenNumber {
			if p.cur.Kind != NumberInt || p.cur.Num < 1 || p.cur.Num > MaxPrecedence {
				p.errorf("invalid precedence: must be 1~%d", MaxPrecedence)
				return nil
			}
			prec = int(p.cur.Num)
			p.nextToken()
		}

		p.ops.Declare(op, prec)

		proto.Kind = BinaryOperator
		proto.Op = op
		proto.Name = BinaryName(op)
		proto.Precedence = prec

	default:
		p.errorf("expected function name in prototype")
		return nil
	}

	if !p.cur.Is('(') {
		p.errorf("expected '(' in prototype")
		return nil
	}
	p.nextToken()

	if !p.cur.Is(')') {
		for {
			if p.cur.Type != TokenIdentifier {
				p.errorf("expected parameter name, got %s", p.cur)
				return nil
			}
			proto.Params = append(proto.Params, p.cur.Literal)
			p.nextToken()

			if p.cur.Is(')') {
				break
			}
			if !p.cur.Is(',') {
				p.errorf("expected ',' or ')' in parameter list")
				return nil
			}
			p.nextToken()
		}
	}
	p.nextToken() // eat )

	switch proto.Kind {
	case UnaryOperator:
		if len(proto.Params) != 1 {
			p.errorf("invalid number of operands for operator %s", proto.Op)
			return nil
		}
	case BinaryOperator:
		if len(proto.Params) != 2 {
			p.errorf("invalid number of operands for operator %s", proto.Op)
			return nil
		}
	}

	return proto
}

// ---------------------------------------------------------------------------
// Blocks and expressions
// ---------------------------------------------------------------------------

// parseBlock parses '{' expression (';'? expression)* '}' or a single
// expression, which stands for a one-element block.
func (p *Parser) parseBlock() Expr {
	if p.cur.Type != TokenLBlock {
		return p.ParseExpression()
	}
	block := &BlockExpr{At: p.cur.Pos}
	p.nextToken() // eat {

	for {
		if p.cur.Type == TokenRBlock {
			p.nextToken()
			return block
		}
		if p.cur.Type == TokenEOF {
			p.errorf("expected '}' to close block")
			return nil
		}

		expr := p.parseBlock()
		if expr == nil {
			return nil
		}
		block.Exprs = append(block.Exprs, expr)

		for p.cur.Is(';') {
			p.nextToken()
		}
	}
}

// ParseExpression parses a single expression.
func (p *Parser) ParseExpression() Expr {
	switch p.cur.Type {
	case TokenArr:
		return p.parseArrayDecl()
	case TokenVar:
		return p.parseVarDecl()
	case TokenBreak:
		pos := p.cur.Pos
		p.nextToken()
		value := p.ParseExpression()
		if value == nil {
			return nil
		}
		return &BreakExpr{At: pos, Value: value}
	case TokenReturn:
		pos := p.cur.Pos
		p.nextToken()
		value := p.ParseExpression()
		if value == nil {
			return nil
		}
		return &ReturnExpr{At: pos, Value: value}
	default:
		lhs := p.parseUnary()
		if lhs == nil {
			return nil
		}
		return p.parseBinOpRHS(0, lhs)
	}
}

// peekOperator returns the operator spelled by the current token and, when
// the table knows the longer form, the raw character after it.
func (p *Parser) peekOperator() (op string, width int) {
	if p.cur.Type != TokenChar {
		return "", 0
	}
	first := p.cur.Char
	if IsOperatorChar(first) {
		if next := p.lexer.Peek(); IsOperatorChar(next) {
			two := string(first) + string(next)
			if p.ops.Has(two) {
				return two, 2
			}
		}
	}
	return string(first), 1
}

func (p *Parser) precedence(op string) int {
	if op == "" {
		return -1
	}
	return p.ops.Precedence(op)
}

// parseBinOpRHS folds (binop unary)* onto lhs. Operators binding less
// tightly than minPrec end the expression and are left for the caller.
func (p *Parser) parseBinOpRHS(minPrec int, lhs Expr) Expr {
	for {
		op, width := p.peekOperator()
		prec := p.precedence(op)
		if prec < minPrec {
			return lhs
		}

		pos := p.cur.Pos
		for i := 0; i < width; i++ {
			p.nextToken()
		}

		rhs := p.parseUnary()
		if rhs == nil {
			return nil
		}

		next, _ := p.peekOperator()
		if prec < p.precedence(next) {
			rhs = p.parseBinOpRHS(prec+1, rhs)
			if rhs == nil {
				return nil
			}
		}

		lhs = &BinaryExpr{At: pos, Op: op, Left: lhs, Right: rhs}
	}
}

// parseUnary parses opchar unary | primary. Only builtin and declared
// prefix operators are accepted.
func (p *Parser) parseUnary() Expr {
	if p.cur.Type != TokenChar || !IsOperatorChar(p.cur.Char) {
		return p.parsePrimary()
	}
	pos := p.cur.Pos
	op := string(p.cur.Char)
	if !p.ops.HasUnary(op) {
		p.errorf("unknown unary operator %q", p.cur.Char)
		return nil
	}
	p.nextToken()

	operand := p.parseUnary()
	if operand == nil {
		return nil
	}
	return &UnaryExpr{At: pos, Op: op, Operand: operand}
}

// parsePrimary parses literals, names, calls, control flow and parens.
func (p *Parser) parsePrimary() Expr {
	switch p.cur.Type {
	case TokenIdentifier:
		return p.parseIdentifierExpr()
	case TokenNumber:
		return p.parseNumber()
	case TokenIf:
		return p.parseIf()
	case TokenFor:
		return p.parseFor()
	case TokenWhile:
		return p.parseWhile()
	case TokenRept:
		return p.parseRepeat()
	case TokenLoop:
		return p.parseLoop()
	case TokenLBlock:
		return p.parseBlock()
	case TokenChar:
		switch p.cur.Char {
		case '@':
			pos := p.cur.Pos
			p.nextToken() // eat @
			addr := p.parsePrimary()
			if addr == nil {
				return nil
			}
			return &DerefExpr{At: pos, Addr: addr}
		case '(':
			return p.parseParen()
		}
		p.errorf("unknown token %q when expecting an expression", p.cur.Char)
		return nil
	case TokenEOF:
		p.errorf("unexpected end of input")
		return nil
	}
	p.errorf("unexpected %s when expecting an expression", p.cur)
	return nil
}

func (p *Parser) parseNumber() Expr {
	n := &NumberExpr{At: p.cur.Pos, Kind: p.cur.Kind, Float: p.cur.Num, Int: p.cur.Int}
	p.nextToken()
	return n
}

// parseParen parses '(' expression ')'.
func (p *Parser) parseParen() Expr {
	p.nextToken() // eat (
	expr := p.ParseExpression()
	if expr == nil {
		return nil
	}
	if !p.cur.Is(')') {
		p.errorf("expected ')'")
		return nil
	}
	p.nextToken()
	return expr
}

// parseIdentifierExpr parses
//
//	identifier
//	identifier ('[' expression (',' expression)* ']')+
//	identifier '(' (expression (',' expression)*)? ')'
func (p *Parser) parseIdentifierExpr() Expr {
	pos := p.cur.Pos
	name := p.cur.Literal
	p.nextToken() // eat identifier

	switch {
	case p.cur.Is('('):
		call := &CallExpr{At: pos, Callee: name}
		p.nextToken() // eat (
		if !p.cur.Is(')') {
			for {
				arg := p.ParseExpression()
				if arg == nil {
					return nil
				}
				call.Args = append(call.Args, arg)

				if p.cur.Is(')') {
					break
				}
				if !p.cur.Is(',') {
					p.errorf("expected ')' or ',' in argument list")
					return nil
				}
				p.nextToken()
			}
		}
		p.nextToken() // eat )
		return call

	case p.cur.Is('['):
		v := &VariableExpr{At: pos, Name: name}
		for p.cur.Is('[') {
			p.nextToken() // eat [
			if p.cur.Is(']') {
				p.errorf("array index missing")
				return nil
			}
			for {
				idx := p.ParseExpression()
				if idx == nil {
					return nil
				}
				v.Indices = append(v.Indices, idx)
				if !p.cur.Is(',') {
					break
				}
				p.nextToken()
			}
			if !p.cur.Is(']') {
				p.errorf("expected ']' after array index")
				return nil
			}
			p.nextToken() // eat ]
		}
		return v
	}

	return &VariableExpr{At: pos, Name: name}
}

// parseArrayDecl parses 'arr' identifier ('[' int (',' int)* ']')+.
func (p *Parser) parseArrayDecl() Expr {
	decl := &ArrayDecl{At: p.cur.Pos}
	p.nextToken() // eat arr

	if p.cur.Type != TokenIdentifier {
		p.errorf("expected array name after arr")
		return nil
	}
	decl.Name = p.cur.Literal
	p.nextToken()

	if !p.cur.Is('[') {
		p.errorf("expected '[' after array name")
		return nil
	}
	for p.cur.Is('[') {
		p.nextToken() // eat [
		if p.cur.Is(']') {
			p.errorf("array dimension missing")
			return nil
		}
		for {
			if p.cur.Type != TokenNumber || p.cur.Kind != NumberInt {
				p.errorf("length of each dimension must be an integer")
				return nil
			}
			if p.cur.Int < 1 {
				p.errorf("length of each dimension must be 1 or higher")
				return nil
			}
			decl.Dims = append(decl.Dims, int(p.cur.Int))
			p.nextToken()
			if !p.cur.Is(',') {
				break
			}
			p.nextToken()
		}
		if !p.cur.Is(']') {
			p.errorf("expected ']' after array dimension")
			return nil
		}
		p.nextToken() // eat ]
	}
	return decl
}

// parseVarDecl parses 'var' identifier ('=' expression)?.
func (p *Parser) parseVarDecl() Expr {
	decl := &VarDecl{At: p.cur.Pos}
	p.nextToken() // eat var

	if p.cur.Type != TokenIdentifier {
		p.errorf("expected variable name after var")
		return nil
	}
	decl.Name = p.cur.Literal
	p.nextToken()

	if op, width := p.peekOperator(); op == "=" && width == 1 {
		p.nextToken() // eat =
		decl.Init = p.ParseExpression()
		if decl.Init == nil {
			return nil
		}
	}
	return decl
}

// parseIf parses 'if' expression 'then' block ('else' block)?.
func (p *Parser) parseIf() Expr {
	n := &IfExpr{At: p.cur.Pos}
	p.nextToken() // eat if

	if n.Cond = p.ParseExpression(); n.Cond == nil {
		return nil
	}
	if p.cur.Type != TokenThen {
		p.errorf("expected then")
		return nil
	}
	p.nextToken()

	if n.Then = p.parseBlock(); n.Then == nil {
		return nil
	}
	if p.cur.Type == TokenElse {
		p.nextToken()
		if n.Else = p.parseBlock(); n.Else == nil {
			return nil
		}
	}
	return n
}

// parseFor parses 'for' identifier '=' expr ',' expr (',' expr)? block.
// The header may be wrapped in parentheses.
func (p *Parser) parseFor() Expr {
	n := &ForExpr{At: p.cur.Pos}
	p.nextToken() // eat for

	paren := p.cur.Is('(')
	if paren {
		p.nextToken()
	}

	if p.cur.Type != TokenIdentifier {
		p.errorf("expected identifier after for")
		return nil
	}
	n.Var = p.cur.Literal
	p.nextToken()

	if op, width := p.peekOperator(); op != "=" || width != 1 {
		p.errorf("expected '=' after for variable")
		return nil
	}
	p.nextToken()

	if n.Start = p.ParseExpression(); n.Start == nil {
		return nil
	}
	if !p.cur.Is(',') {
		p.errorf("expected ',' after for start value")
		return nil
	}
	p.nextToken()

	if n.End = p.ParseExpression(); n.End == nil {
		return nil
	}

	if p.cur.Is(',') {
		p.nextToken()
		if n.Step = p.ParseExpression(); n.Step == nil {
			return nil
		}
	}

	if paren {
		if !p.cur.Is(')') {
			p.errorf("expected ')' after for header")
			return nil
		}
		p.nextToken()
	}

	if n.Body = p.parseBlock(); n.Body == nil {
		return nil
	}
	return n
}

// parseWhile parses 'while' expression block.
func (p *Parser) parseWhile() Expr {
	n := &WhileExpr{At: p.cur.Pos}
	p.nextToken() // eat while

	if n.Cond = p.ParseExpression(); n.Cond == nil {
		return nil
	}
	if n.Body = p.parseBlock(); n.Body == nil {
		return nil
	}
	return n
}

// parseRepeat parses 'rept' expression block.
func (p *Parser) parseRepeat() Expr {
	n := &RepeatExpr{At: p.cur.Pos}
	p.nextToken() // eat rept

	if n.Count = p.ParseExpression(); n.Count == nil {
		return nil
	}
	if n.Body = p.parseBlock(); n.Body == nil {
		return nil
	}
	return n
}

// parseLoop parses 'loop' block.
func (p *Parser) parseLoop() Expr {
	n := &LoopExpr{At: p.cur.Pos}
	p.nextToken() // eat loop

	if n.Body = p.parseBlock(); n.Body == nil {
		return nil
	}
	return n
}
