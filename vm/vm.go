package vm

import (
	"bufio"
	"io"
	"os"
	"sync/atomic"

	"github.com/chazu/sel/compiler"
	"github.com/tliron/commonlog"
)

// ---------------------------------------------------------------------------
// VM: the SEL tree-walking virtual machine
// ---------------------------------------------------------------------------

// VM holds all state of one running program. Separate VMs share nothing.
type VM struct {
	// Ops is the operator table shared with every parser that feeds this VM.
	Ops *compiler.OperatorTable

	Funcs   *FunctionTable
	Memory  *Memory
	Symbols *SymbolTable

	// Stdout receives builtin output; Stdin feeds input and inputch.
	Stdout io.Writer
	Stdin  *bufio.Reader

	// MaxCallDepth bounds nested user function calls. 0 means unlimited.
	MaxCallDepth int

	// MaxMemory bounds the number of stack slots an array declaration may
	// grow memory to. 0 means unlimited.
	MaxMemory int

	// SearchPath lists directories consulted by imports after the
	// importing file's own directory.
	SearchPath []string

	depth     int
	dirs      []string        // directories of the files being run, innermost last
	importing map[string]bool // absolute paths of modules mid-import
	interrupt atomic.Bool

	log commonlog.Logger
}

// NewVM creates a VM with the builtin operators, empty memory and a
// global frame. Output goes to os.Stdout and input comes from os.Stdin.
func NewVM() *VM {
	return &VM{
		Ops:       compiler.NewOperatorTable(),
		Funcs:     NewFunctionTable(),
		Memory:    NewMemory(),
		Symbols:   NewSymbolTable(),
		Stdout:    os.Stdout,
		Stdin:     bufio.NewReader(os.Stdin),
		importing: make(map[string]bool),
		log:       commonlog.GetLogger("sel.vm"),
	}
}

// SetOutput redirects builtin output.
func (vm *VM) SetOutput(w io.Writer) {
	vm.Stdout = w
}

// SetInput replaces the reader used by input and inputch.
func (vm *VM) SetInput(r io.Reader) {
	if br, ok := r.(*bufio.Reader); ok {
		vm.Stdin = br
		return
	}
	vm.Stdin = bufio.NewReader(r)
}

// NewParser returns a parser over src that declares operators into this
// VM's table.
func (vm *VM) NewParser(src compiler.Source) *compiler.Parser {
	return compiler.NewParser(compiler.NewLexer(src), vm.Ops)
}

// Interrupt asks the running evaluation to stop. Loops and calls observe the
// request and return an error value. Safe to call from any goroutine.
func (vm *VM) Interrupt() {
	vm.interrupt.Store(true)
}

func (vm *VM) interrupted() bool {
	return vm.interrupt.Load()
}

func (vm *VM) clearInterrupt() {
	vm.interrupt.Store(false)
}

// Define installs a function. Operators are written to the operator table
// and stay declared even if the function is later redefined or fails.
func (vm *VM) Define(fn *Function) {
	switch fn.Proto.Kind {
	case compiler.BinaryOperator:
		vm.Ops.Declare(fn.Proto.Op, fn.Proto.Precedence)
		vm.log.Debugf("declared binary operator %s at precedence %d", fn.Proto.Op, fn.Proto.Precedence)
	case compiler.UnaryOperator:
		vm.Ops.DeclareUnary(fn.Proto.Op)
		vm.log.Debugf("declared unary operator %s", fn.Proto.Op)
	}
	vm.Funcs.Define(fn)
	vm.log.Debugf("installed function %s/%d", fn.Name(), fn.Proto.Arity())
}

// Global returns the value of a global variable.
func (vm *VM) Global(name string) (Value, bool) {
	globals := vm.Symbols.Globals()
	for i := len(globals) - 1; i >= 0; i-- {
		if sym := globals[i]; sym.Name == name {
			if sym.Array {
				return Value{}, false
			}
			v, err := vm.Memory.Read(sym.Addr)
			return v, err == nil
		}
	}
	return Value{}, false
}

// withScope runs fn inside a fresh frame. The frame is closed and memory
// truncated to its opening mark however fn exits.
func (vm *VM) withScope(fn func() Value) Value {
	mark := vm.Memory.Mark()
	vm.Symbols.OpenFrame()
	defer func() {
		vm.Symbols.CloseFrame()
		vm.Memory.Truncate(mark)
	}()
	return fn()
}
