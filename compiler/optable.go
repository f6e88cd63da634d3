package compiler

import "sort"

// MaxPrecedence is the highest precedence a user operator may declare, and
// the default for binary prototypes that omit one.
const MaxPrecedence = 18

// builtinPrecedence holds the operators every table starts with. 1 is the
// lowest precedence.
var builtinPrecedence = map[string]int{
	"**": MaxPrecedence - 4,
	"*":  MaxPrecedence - 5,
	"/":  MaxPrecedence - 5,
	"%":  MaxPrecedence - 5,
	"+":  MaxPrecedence - 6,
	"-":  MaxPrecedence - 6,
	"<":  MaxPrecedence - 8,
	">":  MaxPrecedence - 8,
	"<=": MaxPrecedence - 8,
	">=": MaxPrecedence - 8,
	"==": MaxPrecedence - 9,
	"!=": MaxPrecedence - 9,
	"&&": MaxPrecedence - 13,
	"||": MaxPrecedence - 14,
	"=":  MaxPrecedence - 15,
}

// builtinUnary holds the prefix operators every table starts with.
var builtinUnary = []string{"!", "&", "+", "-"}

// IsBuiltinUnary reports whether op is one of the builtin prefix operators.
func IsBuiltinUnary(op string) bool {
	for _, b := range builtinUnary {
		if b == op {
			return true
		}
	}
	return false
}

// OperatorTable maps binary operator spellings to precedences and records
// which prefix operators exist. The parser reads it to decide where
// expressions end, and operator prototypes write to it while parsing, so
// one table is shared by a parser and the VM it feeds.
type OperatorTable struct {
	prec  map[string]int
	unary map[string]bool
}

// NewOperatorTable returns a table holding the builtin operators.
func NewOperatorTable() *OperatorTable {
	t := &OperatorTable{
		prec:  make(map[string]int, len(builtinPrecedence)),
		unary: make(map[string]bool, len(builtinUnary)),
	}
	for op, p := range builtinPrecedence {
		t.prec[op] = p
	}
	for _, op := range builtinUnary {
		t.unary[op] = true
	}
	return t
}

// Precedence returns the precedence of op, or -1 if op is not a declared
// binary operator.
func (t *OperatorTable) Precedence(op string) int {
	p, ok := t.prec[op]
	if !ok || p <= 0 {
		return -1
	}
	return p
}

// Has reports whether op is a declared binary operator.
func (t *OperatorTable) Has(op string) bool {
	return t.Precedence(op) > 0
}

// Declare installs or overwrites op.
func (t *OperatorTable) Declare(op string, prec int) {
	t.prec[op] = prec
}

// DeclareUnary installs a prefix operator.
func (t *OperatorTable) DeclareUnary(op string) {
	t.unary[op] = true
}

// HasUnary reports whether op may be used as a prefix operator.
func (t *OperatorTable) HasUnary(op string) bool {
	return t.unary[op]
}

// UnaryOperators returns all prefix operators, sorted.
func (t *OperatorTable) UnaryOperators() []string {
	ops := make([]string, 0, len(t.unary))
	for op := range t.unary {
		ops = append(ops, op)
	}
	sort.Strings(ops)
	return ops
}

// IsBuiltin reports whether op is one of the operators a new table starts with.
func IsBuiltin(op string) bool {
	_, ok := builtinPrecedence[op]
	return ok
}

// Operators returns all declared spellings, sorted.
func (t *OperatorTable) Operators() []string {
	ops := make([]string, 0, len(t.prec))
	for op, p := range t.prec {
		if p > 0 {
			ops = append(ops, op)
		}
	}
	sort.Strings(ops)
	return ops
}

// Entries returns a copy of the binary operator precedences.
func (t *OperatorTable) Entries() map[string]int {
	out := make(map[string]int, len(t.prec))
	for op, p := range t.prec {
		out[op] = p
	}
	return out
}

// Clone returns an independent copy of the table.
func (t *OperatorTable) Clone() *OperatorTable {
	c := &OperatorTable{prec: t.Entries(), unary: make(map[string]bool, len(t.unary))}
	for op := range t.unary {
		c.unary[op] = true
	}
	return c
}
