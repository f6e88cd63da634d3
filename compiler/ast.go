package compiler

import (
	"strconv"
	"strings"
)

// ---------------------------------------------------------------------------
// AST: Abstract Syntax Tree for SEL
// ---------------------------------------------------------------------------

// Node is the interface implemented by all AST nodes.
type Node interface {
	Pos() Position
	node() // marker method
}

// Expr is the interface for expression nodes. The set of implementations is
// closed; evaluators switch over it exhaustively.
type Expr interface {
	Node
	expr() // marker method
}

// ---------------------------------------------------------------------------
// Expression nodes
// ---------------------------------------------------------------------------

// NumberExpr represents a numeric literal.
type NumberExpr struct {
	At    Position
	Kind  NumberKind
	Int   int64
	Float float64
}

func (n *NumberExpr) Pos() Position { return n.At }
func (n *NumberExpr) node()         {}
func (n *NumberExpr) expr()         {}

// VariableExpr references a variable, or an array element when Indices is
// non-empty: a[i][j] and a[i, j] both produce two indices.
type VariableExpr struct {
	At      Position
	Name    string
	Indices []Expr
}

func (n *VariableExpr) Pos() Position { return n.At }
func (n *VariableExpr) node()         {}
func (n *VariableExpr) expr()         {}

// DerefExpr reads the stack slot at a raw address (@expr).
type DerefExpr struct {
	At   Position
	Addr Expr
}

func (n *DerefExpr) Pos() Position { return n.At }
func (n *DerefExpr) node()         {}
func (n *DerefExpr) expr()         {}

// ArrayDecl declares an array (arr a[2][3]).
type ArrayDecl struct {
	At   Position
	Name string
	Dims []int
}

func (n *ArrayDecl) Pos() Position { return n.At }
func (n *ArrayDecl) node()         {}
func (n *ArrayDecl) expr()         {}

// VarDecl declares a variable in the innermost scope (var x = 1).
// Init is nil when no initializer is given.
type VarDecl struct {
	At   Position
	Name string
	Init Expr
}

func (n *VarDecl) Pos() Position { return n.At }
func (n *VarDecl) node()         {}
func (n *VarDecl) expr()         {}

// UnaryExpr applies a prefix operator.
type UnaryExpr struct {
	At      Position
	Op      string
	Operand Expr
}

func (n *UnaryExpr) Pos() Position { return n.At }
func (n *UnaryExpr) node()         {}
func (n *UnaryExpr) expr()         {}

// BinaryExpr applies an infix operator, including assignment.
type BinaryExpr struct {
	At    Position
	Op    string
	Left  Expr
	Right Expr
}

func (n *BinaryExpr) Pos() Position { return n.At }
func (n *BinaryExpr) node()         {}
func (n *BinaryExpr) expr()         {}

// CallExpr calls a builtin or user function.
type CallExpr struct {
	At     Position
	Callee string
	Args   []Expr
}

func (n *CallExpr) Pos() Position { return n.At }
func (n *CallExpr) node()         {}
func (n *CallExpr) expr()         {}

// IfExpr is if/then/else. Else is nil when absent.
type IfExpr struct {
	At   Position
	Cond Expr
	Then Expr
	Else Expr
}

func (n *IfExpr) Pos() Position { return n.At }
func (n *IfExpr) node()         {}
func (n *IfExpr) expr()         {}

// ForExpr is for var = start, end[, step] body. Step is nil when absent.
type ForExpr struct {
	At    Position
	Var   string
	Start Expr
	End   Expr
	Step  Expr
	Body  Expr
}

func (n *ForExpr) Pos() Position { return n.At }
func (n *ForExpr) node()         {}
func (n *ForExpr) expr()         {}

// WhileExpr is while cond body.
type WhileExpr struct {
	At   Position
	Cond Expr
	Body Expr
}

func (n *WhileExpr) Pos() Position { return n.At }
func (n *WhileExpr) node()         {}
func (n *WhileExpr) expr()         {}

// RepeatExpr is rept count body.
type RepeatExpr struct {
	At    Position
	Count Expr
	Body  Expr
}

func (n *RepeatExpr) Pos() Position { return n.At }
func (n *RepeatExpr) node()         {}
func (n *RepeatExpr) expr()         {}

// LoopExpr repeats its body until a break, return or error.
type LoopExpr struct {
	At   Position
	Body Expr
}

func (n *LoopExpr) Pos() Position { return n.At }
func (n *LoopExpr) node()         {}
func (n *LoopExpr) expr()         {}

// BlockExpr is a braced expression sequence.
type BlockExpr struct {
	At    Position
	Exprs []Expr
}

func (n *BlockExpr) Pos() Position { return n.At }
func (n *BlockExpr) node()         {}
func (n *BlockExpr) expr()         {}

// BreakExpr leaves the innermost loop with a value.
type BreakExpr struct {
	At    Position
	Value Expr
}

func (n *BreakExpr) Pos() Position { return n.At }
func (n *BreakExpr) node()         {}
func (n *BreakExpr) expr()         {}

// ReturnExpr leaves the current function with a value.
type ReturnExpr struct {
	At    Position
	Value Expr
}

func (n *ReturnExpr) Pos() Position { return n.At }
func (n *ReturnExpr) node()         {}
func (n *ReturnExpr) expr()         {}

// ---------------------------------------------------------------------------
// Prototypes and top-level units
// ---------------------------------------------------------------------------

// OperatorKind tells whether a prototype defines an operator.
type OperatorKind int

const (
	NotOperator OperatorKind = iota
	UnaryOperator
	BinaryOperator
)

// Prototype is a function signature.
type Prototype struct {
	At         Position
	Name       string // "unary~" / "binary^^" for operators
	Params     []string
	Kind       OperatorKind
	Op         string // operator spelling, empty for plain functions
	Precedence int    // binary operators only
}

// Arity returns the number of parameters.
func (p *Prototype) Arity() int { return len(p.Params) }

// IsUnaryOp reports whether the prototype defines a unary operator.
func (p *Prototype) IsUnaryOp() bool { return p.Kind == UnaryOperator }

// IsBinaryOp reports whether the prototype defines a binary operator.
func (p *Prototype) IsBinaryOp() bool { return p.Kind == BinaryOperator }

// String formats the prototype as it would be written in source, so that
// "extern " + p.String() parses back to the same prototype.
func (p *Prototype) String() string {
	var head string
	switch p.Kind {
	case UnaryOperator:
		head = "unary " + p.Op
	case BinaryOperator:
		head = "binary " + p.Op + " " + strconv.Itoa(p.Precedence)
	default:
		head = p.Name
	}
	return head + "(" + strings.Join(p.Params, ", ") + ")"
}

// UnaryName returns the function-table name of a unary operator.
func UnaryName(op string) string { return "unary" + op }

// BinaryName returns the function-table name of a binary operator.
func BinaryName(op string) string { return "binary" + op }

// Unit is a top-level program element.
type Unit interface {
	Node
	unit() // marker method
}

// FunctionDef is func prototype body.
type FunctionDef struct {
	Proto  *Prototype
	Body   Expr
	Source string // definition text as written
}

func (n *FunctionDef) Pos() Position { return n.Proto.At }
func (n *FunctionDef) node()         {}
func (n *FunctionDef) unit()         {}

// ExternDecl is extern prototype: a signature without a body.
type ExternDecl struct {
	Proto *Prototype
}

func (n *ExternDecl) Pos() Position { return n.Proto.At }
func (n *ExternDecl) node()         {}
func (n *ExternDecl) unit()         {}

// ImportDecl names a module to load.
type ImportDecl struct {
	At   Position
	Path string
}

func (n *ImportDecl) Pos() Position { return n.At }
func (n *ImportDecl) node()         {}
func (n *ImportDecl) unit()         {}

// TopLevelExpr is an expression evaluated as soon as it is parsed.
type TopLevelExpr struct {
	Body Expr
}

func (n *TopLevelExpr) Pos() Position { return n.Body.Pos() }
func (n *TopLevelExpr) node()         {}
func (n *TopLevelExpr) unit()         {}

// AnonName is the prototype name given to top-level expressions.
const AnonName = "__anon_expr"
