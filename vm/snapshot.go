package vm

import (
	"fmt"
	"io"

	"github.com/chazu/sel/compiler"
	"github.com/fxamacker/cbor/v2"
)

// ---------------------------------------------------------------------------
// Snapshots: CBOR images of VM state
// ---------------------------------------------------------------------------

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("vm: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// Snapshot is the persistent state of a VM between top-level units.
// Functions are stored as source and re-parsed on restore.
type Snapshot struct {
	Memory    []SlotRecord     `cbor:"1,keyasint"`
	Symbols   []SymbolRecord   `cbor:"2,keyasint"`
	Frames    []int            `cbor:"3,keyasint"`
	Operators map[string]int   `cbor:"4,keyasint"`
	Functions []FunctionRecord `cbor:"5,keyasint"`
	Unary     []string         `cbor:"6,keyasint,omitempty"`
}

// SlotRecord is one stack slot.
type SlotRecord struct {
	Kind  Kind    `cbor:"1,keyasint"`
	Int   int64   `cbor:"2,keyasint,omitempty"`
	Float float64 `cbor:"3,keyasint,omitempty"`
}

// SymbolRecord is one symbol table entry.
type SymbolRecord struct {
	Name  string `cbor:"1,keyasint"`
	Addr  int    `cbor:"2,keyasint"`
	Array bool   `cbor:"3,keyasint,omitempty"`
	Dims  []int  `cbor:"4,keyasint,omitempty"`
}

// FunctionRecord is one function, as written.
type FunctionRecord struct {
	Name   string `cbor:"1,keyasint"`
	Source string `cbor:"2,keyasint"`
}

// Snapshot captures the VM's memory, symbols, operators and functions.
func (vm *VM) Snapshot() *Snapshot {
	snap := &Snapshot{
		Frames:    vm.Symbols.Frames(),
		Operators: vm.Ops.Entries(),
		Unary:     vm.Ops.UnaryOperators(),
	}
	for _, v := range vm.Memory.Slots() {
		rec := SlotRecord{Kind: v.Kind()}
		if v.Kind() == KindDouble {
			rec.Float = v.AsFloat()
		} else {
			rec.Int = v.AsInt()
		}
		snap.Memory = append(snap.Memory, rec)
	}
	for _, sym := range vm.Symbols.Entries() {
		snap.Symbols = append(snap.Symbols, SymbolRecord{
			Name:  sym.Name,
			Addr:  int(sym.Addr),
			Array: sym.Array,
			Dims:  sym.Dims,
		})
	}
	for _, fn := range vm.Funcs.All() {
		snap.Functions = append(snap.Functions, FunctionRecord{Name: fn.Name(), Source: fn.Source})
	}
	return snap
}

// Restore replaces the VM's state with snap. Parsers created before Restore
// keep reading the previous operator table.
func (vm *VM) Restore(snap *Snapshot) error {
	ops := compiler.NewOperatorTable()
	for op, prec := range snap.Operators {
		ops.Declare(op, prec)
	}
	for _, op := range snap.Unary {
		ops.DeclareUnary(op)
	}

	funcs := NewFunctionTable()
	for _, rec := range snap.Functions {
		p := compiler.NewStringParser(rec.Source, ops)
		unit, err := p.ParseUnit()
		if err != nil {
			return fmt.Errorf("restore function %s: %w", rec.Name, err)
		}
		switch u := unit.(type) {
		case *compiler.FunctionDef:
			funcs.Define(&Function{Proto: u.Proto, Body: u.Body, Source: rec.Source})
		case *compiler.ExternDecl:
			funcs.Define(&Function{Proto: u.Proto, Source: rec.Source})
		default:
			return fmt.Errorf("restore function %s: source is not a definition", rec.Name)
		}
	}

	mem := NewMemory()
	for _, rec := range snap.Memory {
		if rec.Kind == KindDouble {
			mem.Append(Double(rec.Float))
		} else {
			mem.Append(Int(rec.Int))
		}
	}

	syms := NewSymbolTable()
	for _, rec := range snap.Symbols {
		if rec.Addr < 0 || rec.Addr >= mem.Len() {
			return fmt.Errorf("restore symbol %s: %w: %d", rec.Name, ErrAddressOutOfRange, rec.Addr)
		}
		if rec.Array && !arrayFits(rec.Addr, rec.Dims, mem.Len()) {
			return fmt.Errorf("restore array %s: %w: %d%v", rec.Name, ErrAddressOutOfRange, rec.Addr, rec.Dims)
		}
		syms.Declare(Symbol{Name: rec.Name, Addr: Address(rec.Addr), Array: rec.Array, Dims: rec.Dims})
	}
	if len(snap.Frames) > 0 {
		if err := checkFrames(snap.Frames, len(snap.Symbols)); err != nil {
			return err
		}
		syms.frames = append([]int(nil), snap.Frames...)
	}

	vm.Ops = ops
	vm.Funcs = funcs
	vm.Memory = mem
	vm.Symbols = syms
	vm.log.Infof("restored snapshot: %d functions, %d slots", funcs.Len(), mem.Len())
	return nil
}

// checkFrames requires frame marks to start at 0, never decrease and stay
// within the symbol table.
func checkFrames(frames []int, nsyms int) error {
	if frames[0] != 0 {
		return fmt.Errorf("restore frames: global frame starts at %d", frames[0])
	}
	for i, mark := range frames {
		if mark > nsyms || (i > 0 && mark < frames[i-1]) {
			return fmt.Errorf("restore frames: bad mark %d at %d", mark, i)
		}
	}
	return nil
}

// arrayFits reports whether an array at addr with dims lies inside memory
// of n slots.
func arrayFits(addr int, dims []int, n int) bool {
	size := 1
	for _, d := range dims {
		if d < 1 || size > n/d {
			return false
		}
		size *= d
	}
	return len(dims) > 0 && addr+size <= n
}

// MarshalSnapshot serializes a Snapshot to canonical CBOR.
func MarshalSnapshot(s *Snapshot) ([]byte, error) {
	return cborEncMode.Marshal(s)
}

// UnmarshalSnapshot deserializes a Snapshot from CBOR bytes.
func UnmarshalSnapshot(data []byte) (*Snapshot, error) {
	var s Snapshot
	if err := cbor.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("vm: unmarshal snapshot: %w", err)
	}
	return &s, nil
}

// SaveSnapshot writes the VM's state to w.
func (vm *VM) SaveSnapshot(w io.Writer) error {
	data, err := MarshalSnapshot(vm.Snapshot())
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// LoadSnapshot restores the VM's state from r.
func (vm *VM) LoadSnapshot(r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("vm: read snapshot: %w", err)
	}
	snap, err := UnmarshalSnapshot(data)
	if err != nil {
		return err
	}
	return vm.Restore(snap)
}
