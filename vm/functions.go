package vm

import (
	"sort"

	"github.com/chazu/sel/compiler"
)

// Function is a user-defined function or operator. Externs have a nil Body.
type Function struct {
	Proto  *compiler.Prototype
	Body   compiler.Expr
	Source string
}

// Name returns the function-table key.
func (f *Function) Name() string { return f.Proto.Name }

// IsExtern reports whether the function was declared without a body.
func (f *Function) IsExtern() bool { return f.Body == nil }

// FunctionTable maps names to functions. Operators are stored under
// "unary"+op and "binary"+op.
type FunctionTable struct {
	funcs map[string]*Function
}

// NewFunctionTable returns an empty table.
func NewFunctionTable() *FunctionTable {
	return &FunctionTable{funcs: make(map[string]*Function)}
}

// Define installs f, replacing any function of the same name.
func (t *FunctionTable) Define(f *Function) {
	t.funcs[f.Name()] = f
}

// Lookup returns the function named name.
func (t *FunctionTable) Lookup(name string) (*Function, bool) {
	f, ok := t.funcs[name]
	return f, ok
}

// Len returns the number of functions.
func (t *FunctionTable) Len() int { return len(t.funcs) }

// Names returns all function names, sorted.
func (t *FunctionTable) Names() []string {
	names := make([]string, 0, len(t.funcs))
	for name := range t.funcs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// All returns every function, sorted by name.
func (t *FunctionTable) All() []*Function {
	out := make([]*Function, 0, len(t.funcs))
	for _, name := range t.Names() {
		out = append(out, t.funcs[name])
	}
	return out
}
