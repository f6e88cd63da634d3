package vm

import (
	"errors"
	"fmt"
)

// ---------------------------------------------------------------------------
// Memory: the linear value stack
// ---------------------------------------------------------------------------

// ErrAddressOutOfRange is returned for reads and writes outside the stack.
var ErrAddressOutOfRange = errors.New("address out of range")

// Address indexes a slot in Memory.
type Address int

// Memory is a growable stack of value slots. Variables, array elements and
// function parameters all live here; scopes release their slots by
// truncating back to the mark taken when they opened.
type Memory struct {
	slots []Value
}

// NewMemory returns an empty stack.
func NewMemory() *Memory {
	return &Memory{slots: make([]Value, 0, 64)}
}

// Len returns the number of live slots.
func (m *Memory) Len() int { return len(m.slots) }

func (m *Memory) check(a Address) error {
	if a < 0 || int(a) >= len(m.slots) {
		return fmt.Errorf("%w: %d (stack size %d)", ErrAddressOutOfRange, a, len(m.slots))
	}
	return nil
}

// Read returns the value at a.
func (m *Memory) Read(a Address) (Value, error) {
	if err := m.check(a); err != nil {
		return Value{}, err
	}
	return m.slots[a], nil
}

// Write stores v at a.
func (m *Memory) Write(a Address, v Value) error {
	if err := m.check(a); err != nil {
		return err
	}
	m.slots[a] = v
	return nil
}

// Append pushes v and returns its address.
func (m *Memory) Append(v Value) Address {
	m.slots = append(m.slots, v)
	return Address(len(m.slots) - 1)
}

// Mark returns the address the next Append will use.
func (m *Memory) Mark() Address { return Address(len(m.slots)) }

// Truncate drops every slot at or above mark.
func (m *Memory) Truncate(mark Address) {
	if mark < 0 {
		mark = 0
	}
	if int(mark) < len(m.slots) {
		m.slots = m.slots[:mark]
	}
}

// Slots returns a copy of the live slots.
func (m *Memory) Slots() []Value {
	out := make([]Value, len(m.slots))
	copy(out, m.slots)
	return out
}
