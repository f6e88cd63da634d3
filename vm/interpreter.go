package vm

import (
	"math"

	"github.com/chazu/sel/compiler"
)

// ---------------------------------------------------------------------------
// Evaluator: one rule per node kind
// ---------------------------------------------------------------------------

// Eval evaluates e in the current scope.
func (vm *VM) Eval(e compiler.Expr) Value {
	switch n := e.(type) {
	case *compiler.NumberExpr:
		if n.Kind == compiler.NumberInt {
			return Int(n.Int)
		}
		return Double(n.Float)
	case *compiler.VariableExpr:
		return vm.evalVariable(n)
	case *compiler.DerefExpr:
		return vm.evalDeref(n)
	case *compiler.ArrayDecl:
		return vm.evalArrayDecl(n)
	case *compiler.VarDecl:
		return vm.evalVarDecl(n)
	case *compiler.UnaryExpr:
		return vm.evalUnary(n)
	case *compiler.BinaryExpr:
		if n.Op == "=" {
			return vm.evalAssign(n)
		}
		return vm.evalBinary(n)
	case *compiler.CallExpr:
		return vm.evalCall(n)
	case *compiler.IfExpr:
		return vm.evalIf(n)
	case *compiler.ForExpr:
		return vm.evalFor(n)
	case *compiler.WhileExpr:
		return vm.evalWhile(n)
	case *compiler.RepeatExpr:
		return vm.evalRepeat(n)
	case *compiler.LoopExpr:
		return vm.evalLoop(n)
	case *compiler.BlockExpr:
		return vm.evalBlock(n)
	case *compiler.BreakExpr:
		v := vm.Eval(n.Value)
		if !v.IsData() {
			return v
		}
		return v.WithSignal(SignalBreak)
	case *compiler.ReturnExpr:
		v := vm.Eval(n.Value)
		if !v.IsData() {
			return v
		}
		return v.WithSignal(SignalReturn)
	case nil:
		return Errorf("missing expression")
	}
	return Errorf("unsupported expression %T", e)
}

// EvalTopLevel evaluates the body of an anonymous top-level expression. It
// runs in the caller's frame, so assignments at top level declare globals.
func (vm *VM) EvalTopLevel(body compiler.Expr) Value {
	return vm.Eval(body).Plain()
}

// ---------------------------------------------------------------------------
// Variables, arrays and raw addresses
// ---------------------------------------------------------------------------

func (vm *VM) evalVariable(n *compiler.VariableExpr) Value {
	var addr Address
	if len(n.Indices) == 0 {
		sym, _, ok := vm.Symbols.Resolve(n.Name)
		if !ok {
			return Errorf("identifier not found: %s", n.Name)
		}
		addr = sym.Addr
	} else {
		a, errv := vm.elementAddress(n)
		if !errv.IsData() {
			return errv
		}
		addr = a
	}
	return vm.read(addr)
}

// elementAddress computes the slot of an indexed array element. Offsets are
// row-major: a[i][j] of arr a[R][C] is at base + i*C + j.
func (vm *VM) elementAddress(n *compiler.VariableExpr) (Address, Value) {
	sym, _, ok := vm.Symbols.Resolve(n.Name)
	if !ok {
		return 0, Errorf("identifier not found: %s", n.Name)
	}
	if !sym.Array {
		return 0, Errorf("%s is not an array", n.Name)
	}
	if len(n.Indices) != len(sym.Dims) {
		return 0, Errorf("array %s has %d dimensions, got %d indices", n.Name, len(sym.Dims), len(n.Indices))
	}

	offset := 0
	for l, idxExpr := range n.Indices {
		idx := vm.Eval(idxExpr)
		if !idx.IsData() {
			return 0, idx
		}
		if !idx.IsInt() {
			return 0, Errorf("array index must be an integer, got %s", idx)
		}
		i := idx.AsInt()
		if i < 0 || i >= int64(sym.Dims[l]) {
			return 0, Errorf("index %d out of range for dimension %d of %s (size %d)", i, l, n.Name, sym.Dims[l])
		}
		offset = offset*sym.Dims[l] + int(i)
	}
	return sym.Addr + Address(offset), Value{}
}

func (vm *VM) read(addr Address) Value {
	v, err := vm.Memory.Read(addr)
	if err != nil {
		return Errorf("%v", err)
	}
	return v
}

func (vm *VM) write(addr Address, v Value) Value {
	if err := vm.Memory.Write(addr, v); err != nil {
		return Errorf("%v", err)
	}
	return v
}

// rawAddress evaluates the operand of @ into an address.
func (vm *VM) rawAddress(e compiler.Expr) (Address, Value) {
	v := vm.Eval(e)
	if !v.IsData() {
		return 0, v
	}
	if !v.IsUnsignedInt() {
		return 0, Errorf("address must be a non-negative integer, got %s", v)
	}
	return Address(v.AsInt()), Value{}
}

func (vm *VM) evalDeref(n *compiler.DerefExpr) Value {
	addr, errv := vm.rawAddress(n.Addr)
	if !errv.IsData() {
		return errv
	}
	return vm.read(addr)
}

func (vm *VM) evalArrayDecl(n *compiler.ArrayDecl) Value {
	size := 1
	for _, d := range n.Dims {
		if d < 1 {
			return Errorf("length of each dimension must be 1 or higher")
		}
		if size > math.MaxInt/d {
			return Errorf("array too large")
		}
		size *= d
	}
	if vm.MaxMemory > 0 && size > vm.MaxMemory-vm.Memory.Len() {
		return Errorf("array too large")
	}
	base := vm.Memory.Mark()
	for i := 0; i < size; i++ {
		vm.Memory.Append(Int(0))
	}
	dims := make([]int, len(n.Dims))
	copy(dims, n.Dims)
	vm.Symbols.Declare(Symbol{Name: n.Name, Addr: base, Array: true, Dims: dims})
	return Int(int64(size))
}

func (vm *VM) evalVarDecl(n *compiler.VarDecl) Value {
	v := Int(0)
	if n.Init != nil {
		v = vm.Eval(n.Init)
		if !v.IsData() {
			return v
		}
	}
	vm.declare(n.Name, v)
	return v
}

// declare binds name to a fresh slot in the innermost frame.
func (vm *VM) declare(name string, v Value) Address {
	addr := vm.Memory.Append(v)
	vm.Symbols.Declare(Symbol{Name: name, Addr: addr})
	return addr
}

// ---------------------------------------------------------------------------
// Operators
// ---------------------------------------------------------------------------

func (vm *VM) evalUnary(n *compiler.UnaryExpr) Value {
	if n.Op == "&" {
		return vm.addressOf(n.Operand)
	}

	v := vm.Eval(n.Operand)
	if !v.IsData() {
		return v
	}
	if result, ok := unaryOp(n.Op, v); ok {
		return result
	}

	fn, ok := vm.Funcs.Lookup(compiler.UnaryName(n.Op))
	if !ok {
		return Errorf("unknown unary operator %s", n.Op)
	}
	return vm.callFunction(fn, []Value{v})
}

// addressOf returns the stack address of a variable or array element
// without reading it.
func (vm *VM) addressOf(e compiler.Expr) Value {
	v, ok := e.(*compiler.VariableExpr)
	if !ok {
		return Errorf("operand of '&' must be a variable")
	}
	if len(v.Indices) == 0 {
		sym, _, ok := vm.Symbols.Resolve(v.Name)
		if !ok {
			return Errorf("identifier not found: %s", v.Name)
		}
		return Int(int64(sym.Addr))
	}
	addr, errv := vm.elementAddress(v)
	if !errv.IsData() {
		return errv
	}
	return Int(int64(addr))
}

// evalAssign evaluates the right-hand side first, then stores it. Assigning
// to an unbound name declares it in the innermost frame; otherwise the
// nearest binding is overwritten.
func (vm *VM) evalAssign(n *compiler.BinaryExpr) Value {
	v := vm.Eval(n.Right)
	if !v.IsData() {
		return v
	}

	switch lhs := n.Left.(type) {
	case *compiler.VariableExpr:
		if len(lhs.Indices) > 0 {
			addr, errv := vm.elementAddress(lhs)
			if !errv.IsData() {
				return errv
			}
			return vm.write(addr, v)
		}
		sym, _, ok := vm.Symbols.Resolve(lhs.Name)
		if !ok {
			vm.declare(lhs.Name, v)
			return v
		}
		if sym.Array {
			return Errorf("cannot assign to array %s without an index", lhs.Name)
		}
		return vm.write(sym.Addr, v)

	case *compiler.DerefExpr:
		addr, errv := vm.rawAddress(lhs.Addr)
		if !errv.IsData() {
			return errv
		}
		return vm.write(addr, v)
	}
	return Errorf("destination of '=' must be a variable")
}

// evalBinary evaluates both operands before checking either for errors.
func (vm *VM) evalBinary(n *compiler.BinaryExpr) Value {
	l := vm.Eval(n.Left)
	r := vm.Eval(n.Right)
	if !l.IsData() {
		return l
	}
	if !r.IsData() {
		return r
	}

	if compiler.IsBuiltin(n.Op) {
		return binaryOp(n.Op, l, r)
	}

	fn, ok := vm.Funcs.Lookup(compiler.BinaryName(n.Op))
	if !ok {
		return Errorf("unknown binary operator %s", n.Op)
	}
	return vm.callFunction(fn, []Value{l, r})
}

// ---------------------------------------------------------------------------
// Calls
// ---------------------------------------------------------------------------

func (vm *VM) evalCall(n *compiler.CallExpr) Value {
	args := make([]Value, 0, len(n.Args))
	for _, a := range n.Args {
		v := vm.Eval(a)
		if !v.IsData() {
			return v
		}
		args = append(args, v)
	}

	if b, ok := builtins[n.Callee]; ok {
		return b(vm, args)
	}

	fn, ok := vm.Funcs.Lookup(n.Callee)
	if !ok {
		return Errorf("unknown function %s", n.Callee)
	}
	if len(args) != fn.Proto.Arity() {
		return Errorf("%s expects %d arguments, got %d", n.Callee, fn.Proto.Arity(), len(args))
	}
	return vm.callFunction(fn, args)
}

// callFunction binds args to fresh parameter slots and evaluates the body.
// Break and return signals stop at the call boundary.
func (vm *VM) callFunction(fn *Function, args []Value) Value {
	if fn.IsExtern() {
		return Errorf("function %s is declared but has no body", fn.Name())
	}
	if vm.MaxCallDepth > 0 && vm.depth >= vm.MaxCallDepth {
		return Errorf("maximum call depth %d exceeded in %s", vm.MaxCallDepth, fn.Name())
	}
	if vm.interrupted() {
		return Errorf("interrupted")
	}

	vm.depth++
	defer func() { vm.depth-- }()

	result := vm.withScope(func() Value {
		for i, param := range fn.Proto.Params {
			vm.declare(param, args[i])
		}
		return vm.Eval(fn.Body)
	})
	return result.Plain()
}

// ---------------------------------------------------------------------------
// Control flow
// ---------------------------------------------------------------------------

// evalIf opens a scope only for the branch taken. A false condition without
// an else branch yields int 0.
func (vm *VM) evalIf(n *compiler.IfExpr) Value {
	cond := vm.Eval(n.Cond)
	if !cond.IsData() {
		return cond
	}
	if cond.Truthy() {
		return vm.withScope(func() Value { return vm.Eval(n.Then) })
	}
	if n.Else != nil {
		return vm.withScope(func() Value { return vm.Eval(n.Else) })
	}
	return Int(0)
}

// loopBody classifies the result of one iteration. done is true when the
// loop must stop and return result.
func loopBody(v Value) (result Value, done bool) {
	switch v.Signal() {
	case SignalBreak:
		return v.Plain(), true
	case SignalReturn, SignalError:
		return v, true
	}
	return v, false
}

// evalFor binds the loop variable in the current scope, so it outlives the
// loop. The body scope is opened once for all iterations.
func (vm *VM) evalFor(n *compiler.ForExpr) Value {
	start := vm.Eval(n.Start)
	if !start.IsData() {
		return start
	}

	var addr Address
	if sym, _, ok := vm.Symbols.Resolve(n.Var); ok {
		if sym.Array {
			return Errorf("loop variable %s is an array", n.Var)
		}
		if errv := vm.write(sym.Addr, start); errv.IsError() {
			return errv
		}
		addr = sym.Addr
	} else {
		addr = vm.declare(n.Var, start)
	}

	step := Int(1)
	if n.Step != nil {
		step = vm.Eval(n.Step)
		if !step.IsData() {
			return step
		}
	}

	return vm.withScope(func() Value {
		result := Int(0)
		for {
			if vm.interrupted() {
				return Errorf("interrupted")
			}
			cond := vm.Eval(n.End)
			if !cond.IsData() {
				return cond
			}
			if !cond.Truthy() {
				return result
			}

			v, done := loopBody(vm.Eval(n.Body))
			if done {
				return v
			}
			result = v

			cur := vm.read(addr)
			if cur.IsError() {
				return cur
			}
			if errv := vm.write(addr, binaryOp("+", cur, step)); errv.IsError() {
				return errv
			}
		}
	})
}

func (vm *VM) evalWhile(n *compiler.WhileExpr) Value {
	return vm.withScope(func() Value {
		result := Int(0)
		for {
			if vm.interrupted() {
				return Errorf("interrupted")
			}
			cond := vm.Eval(n.Cond)
			if !cond.IsData() {
				return cond
			}
			if !cond.Truthy() {
				return result
			}
			v, done := loopBody(vm.Eval(n.Body))
			if done {
				return v
			}
			result = v
		}
	})
}

// evalRepeat evaluates the count once; it must be a non-negative integer.
func (vm *VM) evalRepeat(n *compiler.RepeatExpr) Value {
	count := vm.Eval(n.Count)
	if !count.IsData() {
		return count
	}
	if !count.IsUnsignedInt() {
		return Errorf("repeat count must be a non-negative integer, got %s", count)
	}

	return vm.withScope(func() Value {
		result := Int(0)
		for i := int64(0); i < count.AsInt(); i++ {
			if vm.interrupted() {
				return Errorf("interrupted")
			}
			v, done := loopBody(vm.Eval(n.Body))
			if done {
				return v
			}
			result = v
		}
		return result
	})
}

func (vm *VM) evalLoop(n *compiler.LoopExpr) Value {
	return vm.withScope(func() Value {
		for {
			if vm.interrupted() {
				return Errorf("interrupted")
			}
			if v, done := loopBody(vm.Eval(n.Body)); done {
				return v
			}
		}
	})
}

// evalBlock runs children in order. Plain results do not stop the block;
// break, return and error do, and keep their signal so the enclosing loop
// or call can absorb them.
func (vm *VM) evalBlock(n *compiler.BlockExpr) Value {
	return vm.withScope(func() Value {
		result := Int(0)
		for _, e := range n.Exprs {
			result = vm.Eval(e)
			if !result.IsData() {
				return result
			}
		}
		return result
	})
}
