package vm

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

const snapshotProgram = `
x = 4
arr a[3]
a[1] = 2.5
func binary ^^ 5 (l, r) l * 10 + r
func unary ~ (v) 0 - v
extern ext(q)
func sq(n) n * n
`

func TestSnapshotRoundTrip(t *testing.T) {
	src, _ := newTestVM()
	evalOK(t, src, snapshotProgram)

	data, err := MarshalSnapshot(src.Snapshot())
	if err != nil {
		t.Fatal(err)
	}
	snap, err := UnmarshalSnapshot(data)
	if err != nil {
		t.Fatal(err)
	}

	dst, _ := newTestVM()
	if err := dst.Restore(snap); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		input string
		want  Value
	}{
		{"sq(x) + (1 ^^ 2) + ~1", Int(27)},
		{"a[1]", Double(2.5)},
		{"&a[0] - &x", Int(1)},
	}
	for _, tc := range tests {
		if got := evalOK(t, dst, tc.input); !got.Equal(tc.want) {
			t.Errorf("after restore %q = %v, want %v", tc.input, got, tc.want)
		}
	}
	if got := evalOK(t, dst, "ext(1)"); !got.IsError() || !strings.Contains(got.Message(), "has no body") {
		t.Errorf("ext(1) = %v, want extern error", got)
	}
	if prec := dst.Ops.Precedence("^^"); prec != 5 {
		t.Errorf("restored ^^ precedence = %d, want 5", prec)
	}
}

func TestSnapshotCanonical(t *testing.T) {
	vm, _ := newTestVM()
	evalOK(t, vm, snapshotProgram)

	a, err := MarshalSnapshot(vm.Snapshot())
	if err != nil {
		t.Fatal(err)
	}
	b, err := MarshalSnapshot(vm.Snapshot())
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(a, b) {
		t.Error("snapshot encoding is not deterministic")
	}
}

func TestSaveLoadSnapshot(t *testing.T) {
	vm, _ := newTestVM()
	evalOK(t, vm, "total = 10\nfunc add(n) total + n")

	var buf bytes.Buffer
	if err := vm.SaveSnapshot(&buf); err != nil {
		t.Fatal(err)
	}

	other, _ := newTestVM()
	evalOK(t, other, "junk = 1")
	if err := other.LoadSnapshot(&buf); err != nil {
		t.Fatal(err)
	}
	if got := evalOK(t, other, "add(5)"); !got.Equal(Int(15)) {
		t.Errorf("add(5) = %v, want 15", got)
	}
	if got := evalOK(t, other, "junk"); !got.IsError() {
		t.Errorf("junk survived restore: %v", got)
	}
}

func TestRestoreRejectsBadSnapshots(t *testing.T) {
	vm, _ := newTestVM()

	bad := &Snapshot{Symbols: []SymbolRecord{{Name: "x", Addr: 3}}}
	if err := vm.Restore(bad); !errors.Is(err, ErrAddressOutOfRange) {
		t.Errorf("Restore(dangling symbol) = %v, want ErrAddressOutOfRange", err)
	}

	bad = &Snapshot{Functions: []FunctionRecord{{Name: "f", Source: "1 + 2"}}}
	if err := vm.Restore(bad); err == nil {
		t.Error("Restore accepted a non-definition function source")
	}

	oneSlot := []SlotRecord{{Kind: KindInt, Int: 7}}
	for _, frames := range [][]int{{0, 100}, {1}, {0, 1, 0}, {0, -1}} {
		bad = &Snapshot{
			Memory:  oneSlot,
			Symbols: []SymbolRecord{{Name: "x", Addr: 0}},
			Frames:  frames,
		}
		if err := vm.Restore(bad); err == nil {
			t.Errorf("Restore accepted frame marks %v", frames)
		}
	}

	bad = &Snapshot{
		Memory:  oneSlot,
		Symbols: []SymbolRecord{{Name: "a", Addr: 0, Array: true, Dims: []int{4}}},
	}
	if err := vm.Restore(bad); !errors.Is(err, ErrAddressOutOfRange) {
		t.Errorf("Restore(oversized array) = %v, want ErrAddressOutOfRange", err)
	}

	if v := evalOK(t, vm, "1 + 1"); v.AsInt() != 2 {
		t.Errorf("VM unusable after rejected restores: got %v", v)
	}

	good := &Snapshot{
		Memory:  oneSlot,
		Symbols: []SymbolRecord{{Name: "x", Addr: 0}},
		Frames:  []int{0, 1},
	}
	if err := vm.Restore(good); err != nil {
		t.Errorf("Restore(frames [0 1]) = %v", err)
	}

	if _, err := UnmarshalSnapshot([]byte{0xff, 0x00}); err == nil {
		t.Error("UnmarshalSnapshot accepted garbage")
	}
}
