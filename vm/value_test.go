package vm

import (
	"math"
	"testing"
)

func TestValueKinds(t *testing.T) {
	if !Int(3).IsInt() || Double(3).IsInt() {
		t.Error("IsInt mismatch")
	}
	if !Int(0).IsUnsignedInt() || Int(-1).IsUnsignedInt() || Double(2).IsUnsignedInt() {
		t.Error("IsUnsignedInt mismatch")
	}
	if Errorf("boom").IsInt() {
		t.Error("error values have no usable payload")
	}
	if got := Double(3.9).AsInt(); got != 3 {
		t.Errorf("Double(3.9).AsInt() = %d, want 3", got)
	}
	if got := Int(2).AsFloat(); got != 2.0 {
		t.Errorf("Int(2).AsFloat() = %v, want 2", got)
	}
}

func TestValueSignals(t *testing.T) {
	v := Int(5).WithSignal(SignalBreak)
	if v.Signal() != SignalBreak || v.IsData() {
		t.Errorf("WithSignal(break) = %v/%v", v, v.Signal())
	}
	if p := v.Plain(); !p.IsData() || p.AsInt() != 5 {
		t.Errorf("Plain() = %v/%v", p, p.Signal())
	}

	e := Errorf("bad %d", 1)
	if !e.WithSignal(SignalReturn).IsError() || !e.Plain().IsError() {
		t.Error("error values must keep their signal")
	}
	if e.Message() != "bad 1" {
		t.Errorf("Message() = %q", e.Message())
	}
}

func TestValueString(t *testing.T) {
	tests := []struct {
		v    Value
		want string
	}{
		{Int(42), "42"},
		{Int(-7), "-7"},
		{Double(3.5), "3.5"},
		{Double(2), "2.0"},
		{Errorf("oops"), "error: oops"},
	}
	for _, tc := range tests {
		if got := tc.v.String(); got != tc.want {
			t.Errorf("String() = %q, want %q", got, tc.want)
		}
	}
}

func TestBinaryOp(t *testing.T) {
	tests := []struct {
		op   string
		l, r Value
		want Value
	}{
		{"+", Int(2), Int(3), Int(5)},
		{"+", Int(2), Double(0.5), Double(2.5)},
		{"-", Double(1), Int(3), Double(-2)},
		{"*", Int(4), Int(5), Int(20)},
		{"/", Int(7), Int(2), Int(3)},
		{"/", Int(-7), Int(2), Int(-3)},
		{"/", Double(7), Int(2), Double(3.5)},
		{"%", Int(7), Int(3), Int(1)},
		{"%", Double(7.5), Int(2), Double(1.5)},
		{"**", Int(2), Int(10), Int(1024)},
		{"**", Int(2), Int(0), Int(1)},
		{"**", Int(2), Int(-1), Double(0.5)},
		{"**", Double(4), Double(0.5), Double(2)},
		{"**", Int(2), Int(62), Int(1 << 62)},
		{"**", Int(-2), Int(63), Int(math.MinInt64)},
		{"**", Int(2), Int(64), Double(math.Pow(2, 64))},
		{"<", Int(1), Int(2), Int(1)},
		{"<", Double(1.5), Int(2), Double(1)},
		{">=", Int(1), Double(1), Double(1)},
		{"==", Double(2), Int(2), Double(1)},
		{"!=", Int(2), Int(2), Int(0)},
		{"!=", Double(2), Double(2), Double(0)},
		{"&&", Int(1), Int(2), Int(1)},
		{"&&", Int(1), Double(0), Double(0)},
		{"||", Int(0), Double(0.1), Double(1)},
		{"||", Int(0), Int(0), Int(0)},
	}
	for _, tc := range tests {
		if got := binaryOp(tc.op, tc.l, tc.r); !got.Equal(tc.want) {
			t.Errorf("%v %s %v = %v (%v), want %v (%v)", tc.l, tc.op, tc.r, got, got.Kind(), tc.want, tc.want.Kind())
		}
	}
}

func TestBinaryOpDivisionByZero(t *testing.T) {
	if v := binaryOp("/", Int(1), Int(0)); !v.IsError() {
		t.Errorf("1 / 0 = %v, want error", v)
	}
	if v := binaryOp("%", Int(1), Int(0)); !v.IsError() {
		t.Errorf("1 %% 0 = %v, want error", v)
	}
	if v := binaryOp("/", Double(1), Int(0)); v.IsError() {
		t.Errorf("1.0 / 0 = %v, want +Inf", v)
	}
}

func TestUnaryOp(t *testing.T) {
	tests := []struct {
		op   string
		v    Value
		want Value
	}{
		{"-", Int(3), Int(-3)},
		{"-", Double(1.5), Double(-1.5)},
		{"+", Double(1.5), Double(1.5)},
		{"!", Int(0), Int(1)},
		{"!", Double(0.5), Int(0)},
	}
	for _, tc := range tests {
		got, ok := unaryOp(tc.op, tc.v)
		if !ok || !got.Equal(tc.want) {
			t.Errorf("%s%v = %v, want %v", tc.op, tc.v, got, tc.want)
		}
	}
	if _, ok := unaryOp("~", Int(1)); ok {
		t.Error("~ is not a builtin unary operator")
	}
}
