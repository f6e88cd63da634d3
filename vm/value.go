package vm

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ---------------------------------------------------------------------------
// Value: tagged scalar carrying a control signal
// ---------------------------------------------------------------------------

// Kind is the numeric representation of a value.
type Kind uint8

const (
	KindInt Kind = iota
	KindDouble
)

func (k Kind) String() string {
	if k == KindDouble {
		return "double"
	}
	return "int"
}

// Signal tells the enclosing construct how to treat a value. Break and
// return travel outward through blocks until a loop or a function call
// absorbs them; errors travel all the way to the top level.
type Signal uint8

const (
	SignalData Signal = iota
	SignalReturn
	SignalBreak
	SignalError
)

func (s Signal) String() string {
	switch s {
	case SignalReturn:
		return "return"
	case SignalBreak:
		return "break"
	case SignalError:
		return "error"
	}
	return "data"
}

// Value is the result of evaluating any expression.
type Value struct {
	kind   Kind
	signal Signal
	i      int64
	f      float64
	msg    string
}

// Int returns an integer value.
func Int(i int64) Value {
	return Value{kind: KindInt, i: i}
}

// Double returns a floating-point value.
func Double(f float64) Value {
	return Value{kind: KindDouble, f: f}
}

// Bool returns int 1 for true and int 0 for false.
func Bool(b bool) Value {
	if b {
		return Int(1)
	}
	return Int(0)
}

// boolOf is Bool in the requested kind: double 1.0/0.0 when wide is set.
func boolOf(b, wide bool) Value {
	if !wide {
		return Bool(b)
	}
	if b {
		return Double(1)
	}
	return Double(0)
}

// Errorf returns an error value with a formatted message.
func Errorf(format string, args ...interface{}) Value {
	return Value{signal: SignalError, msg: fmt.Sprintf(format, args...)}
}

// Kind returns the numeric representation.
func (v Value) Kind() Kind { return v.kind }

// Signal returns the control signal.
func (v Value) Signal() Signal { return v.signal }

// IsError reports whether v is an error value.
func (v Value) IsError() bool { return v.signal == SignalError }

// IsData reports whether v carries no control signal.
func (v Value) IsData() bool { return v.signal == SignalData }

// IsInt reports whether v holds an integer payload.
func (v Value) IsInt() bool { return !v.IsError() && v.kind == KindInt }

// IsUnsignedInt reports whether v is a non-negative integer, the shape
// required of addresses and indices.
func (v Value) IsUnsignedInt() bool { return v.IsInt() && v.i >= 0 }

// AsInt returns the payload as an integer, truncating doubles.
func (v Value) AsInt() int64 {
	if v.kind == KindDouble {
		return int64(v.f)
	}
	return v.i
}

// AsFloat returns the payload as a double, promoting integers.
func (v Value) AsFloat() float64 {
	if v.kind == KindDouble {
		return v.f
	}
	return float64(v.i)
}

// Message returns the diagnostic of an error value.
func (v Value) Message() string { return v.msg }

// WithSignal returns v re-tagged with s. Error values keep their tag.
func (v Value) WithSignal(s Signal) Value {
	if v.IsError() {
		return v
	}
	v.signal = s
	return v
}

// Plain strips break and return signals.
func (v Value) Plain() Value { return v.WithSignal(SignalData) }

// Truthy reports whether the payload is non-zero.
func (v Value) Truthy() bool {
	if v.kind == KindDouble {
		return v.f != 0
	}
	return v.i != 0
}

// Equal reports whether two values have the same signal, kind and payload.
func (v Value) Equal(o Value) bool {
	if v.signal != o.signal {
		return false
	}
	if v.IsError() {
		return v.msg == o.msg
	}
	if v.kind != o.kind {
		return false
	}
	if v.kind == KindDouble {
		return v.f == o.f || (math.IsNaN(v.f) && math.IsNaN(o.f))
	}
	return v.i == o.i
}

func (v Value) String() string {
	if v.IsError() {
		return "error: " + v.msg
	}
	if v.kind == KindInt {
		return strconv.FormatInt(v.i, 10)
	}
	s := strconv.FormatFloat(v.f, 'f', -1, 64)
	if !strings.Contains(s, ".") && !math.IsInf(v.f, 0) && !math.IsNaN(v.f) {
		s += ".0"
	}
	return s
}

// ---------------------------------------------------------------------------
// Builtin operators
// ---------------------------------------------------------------------------

// binaryOp applies a builtin binary operator to two data values. The result
// is a double if either operand is.
func binaryOp(op string, l, r Value) Value {
	wide := l.kind == KindDouble || r.kind == KindDouble
	switch op {
	case "&&":
		return boolOf(l.Truthy() && r.Truthy(), wide)
	case "||":
		return boolOf(l.Truthy() || r.Truthy(), wide)
	}

	if !wide {
		return intOp(op, l.i, r.i)
	}
	return floatOp(op, l.AsFloat(), r.AsFloat())
}

func intOp(op string, a, b int64) Value {
	switch op {
	case "+":
		return Int(a + b)
	case "-":
		return Int(a - b)
	case "*":
		return Int(a * b)
	case "/":
		if b == 0 {
			return Errorf("integer division by zero")
		}
		return Int(a / b)
	case "%":
		if b == 0 {
			return Errorf("integer modulo by zero")
		}
		return Int(a % b)
	case "**":
		if b < 0 {
			return Double(math.Pow(float64(a), float64(b)))
		}
		if n, ok := ipow(a, b); ok {
			return Int(n)
		}
		return Double(math.Pow(float64(a), float64(b)))
	case "==":
		return Bool(a == b)
	case "!=":
		return Bool(a != b)
	case "<":
		return Bool(a < b)
	case ">":
		return Bool(a > b)
	case "<=":
		return Bool(a <= b)
	case ">=":
		return Bool(a >= b)
	}
	return Errorf("unknown binary operator %s", op)
}

func floatOp(op string, a, b float64) Value {
	switch op {
	case "+":
		return Double(a + b)
	case "-":
		return Double(a - b)
	case "*":
		return Double(a * b)
	case "/":
		return Double(a / b)
	case "%":
		return Double(math.Mod(a, b))
	case "**":
		return Double(math.Pow(a, b))
	case "==":
		return boolOf(a == b, true)
	case "!=":
		return boolOf(a != b, true)
	case "<":
		return boolOf(a < b, true)
	case ">":
		return boolOf(a > b, true)
	case "<=":
		return boolOf(a <= b, true)
	case ">=":
		return boolOf(a >= b, true)
	}
	return Errorf("unknown binary operator %s", op)
}

// ipow computes a**b for b >= 0 by repeated squaring. ok is false when
// the result does not fit in an int64.
func ipow(a, b int64) (n int64, ok bool) {
	result := int64(1)
	for {
		if b&1 == 1 {
			if result, ok = mulInt(result, a); !ok {
				return 0, false
			}
		}
		b >>= 1
		if b == 0 {
			return result, true
		}
		if a, ok = mulInt(a, a); !ok {
			return 0, false
		}
	}
}

// mulInt multiplies with overflow detection.
func mulInt(a, b int64) (int64, bool) {
	if a == 0 || b == 0 {
		return 0, true
	}
	if (a == -1 && b == math.MinInt64) || (b == -1 && a == math.MinInt64) {
		return 0, false
	}
	c := a * b
	return c, c/b == a
}

// unaryOp applies a builtin unary operator. ok is false for operators the
// evaluator must look up as user functions.
func unaryOp(op string, v Value) (result Value, ok bool) {
	switch op {
	case "!":
		return Bool(!v.Truthy()), true
	case "+":
		return v, true
	case "-":
		if v.kind == KindDouble {
			return Double(-v.f), true
		}
		return Int(-v.i), true
	}
	return Value{}, false
}
