package vm

import (
	"strings"
	"testing"
)

func TestBuiltinOutput(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"print(1, 2.5)", "1 2.500000 "},
		{"println(3)", "3 \n"},
		{"println()", "\n"},
		{"printch(72, 105)", "Hi"},
		{"x = 2\nprint(x * 3, x / 4.0)", "6 0.500000 "},
	}
	for _, tc := range tests {
		vm, out := newTestVM()
		got := evalOK(t, vm, tc.input)
		if !got.Equal(Int(0)) {
			t.Errorf("eval %q = %v, want 0", tc.input, got)
		}
		if out.String() != tc.want {
			t.Errorf("eval %q printed %q, want %q", tc.input, out.String(), tc.want)
		}
	}
}

func TestBuiltinsCannotBeShadowed(t *testing.T) {
	vm, out := newTestVM()
	got := evalOK(t, vm, "func print(x) 99\nprint(1)")
	if !got.Equal(Int(0)) || out.String() != "1 " {
		t.Errorf("print(1) = %v printing %q", got, out.String())
	}
}

func TestBuiltinInput(t *testing.T) {
	vm, _ := newTestVM()
	vm.SetInput(strings.NewReader("12 3.5\n  -4\tx"))

	for _, want := range []Value{Int(12), Double(3.5), Int(-4)} {
		if got := evalOK(t, vm, "input()"); !got.Equal(want) {
			t.Errorf("input() = %v (%v), want %v", got, got.Kind(), want)
		}
	}
	if got := evalOK(t, vm, "input()"); !got.IsError() || !strings.Contains(got.Message(), "invalid number") {
		t.Errorf("input() on x = %v, want invalid number error", got)
	}
	if got := evalOK(t, vm, "input()"); !got.IsError() || !strings.Contains(got.Message(), "end of input") {
		t.Errorf("input() at EOF = %v, want end of input error", got)
	}
}

func TestBuiltinInputch(t *testing.T) {
	vm, _ := newTestVM()
	vm.SetInput(strings.NewReader("a\n"))

	for _, want := range []Value{Int('a'), Int('\n')} {
		if got := evalOK(t, vm, "inputch()"); !got.Equal(want) {
			t.Errorf("inputch() = %v, want %v", got, want)
		}
	}
	if got := evalOK(t, vm, "inputch()"); !got.IsError() {
		t.Errorf("inputch() at EOF = %v, want error", got)
	}
	if got := evalOK(t, vm, "inputch(1)"); !got.IsError() {
		t.Errorf("inputch(1) = %v, want error", got)
	}
}

func TestBuiltinNames(t *testing.T) {
	want := []string{"input", "inputch", "print", "printch", "println"}
	got := BuiltinNames()
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("BuiltinNames() = %v, want %v", got, want)
	}
	if !IsBuiltin("println") || IsBuiltin("main") {
		t.Error("IsBuiltin mismatch")
	}
}
