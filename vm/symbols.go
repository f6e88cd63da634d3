package vm

// ---------------------------------------------------------------------------
// SymbolTable: name bindings partitioned into lexical frames
// ---------------------------------------------------------------------------

// Symbol binds a name to a stack address. Arrays record their dimension
// sizes; Addr is the address of element zero.
type Symbol struct {
	Name  string
	Addr  Address
	Array bool
	Dims  []int
}

// Size returns the number of slots the symbol occupies.
func (s Symbol) Size() int {
	if !s.Array {
		return 1
	}
	n := 1
	for _, d := range s.Dims {
		n *= d
	}
	return n
}

// SymbolTable is an ordered list of bindings. frames[i] is the index of the
// first entry of frame i; frame 0 is the global frame and is never closed.
type SymbolTable struct {
	entries []Symbol
	frames  []int
}

// NewSymbolTable returns a table holding only the global frame.
func NewSymbolTable() *SymbolTable {
	return &SymbolTable{frames: []int{0}}
}

// OpenFrame starts a new innermost frame.
func (t *SymbolTable) OpenFrame() {
	t.frames = append(t.frames, len(t.entries))
}

// CloseFrame drops the innermost frame and every entry declared in it.
func (t *SymbolTable) CloseFrame() {
	if len(t.frames) <= 1 {
		return
	}
	start := t.frames[len(t.frames)-1]
	t.entries = t.entries[:start]
	t.frames = t.frames[:len(t.frames)-1]
}

// Depth returns the number of open frames, counting the global frame.
func (t *SymbolTable) Depth() int { return len(t.frames) }

// Declare binds sym in the innermost frame. A later declaration of the same
// name shadows earlier ones.
func (t *SymbolTable) Declare(sym Symbol) {
	t.entries = append(t.entries, sym)
}

// Resolve finds the innermost binding of name and the index of the frame
// that owns it.
func (t *SymbolTable) Resolve(name string) (Symbol, int, bool) {
	for i := len(t.entries) - 1; i >= 0; i-- {
		if t.entries[i].Name == name {
			return t.entries[i], t.frameOf(i), true
		}
	}
	return Symbol{}, -1, false
}

func (t *SymbolTable) frameOf(entry int) int {
	for f := len(t.frames) - 1; f >= 0; f-- {
		if t.frames[f] <= entry {
			return f
		}
	}
	return 0
}

// Entries returns a copy of all bindings, outermost first.
func (t *SymbolTable) Entries() []Symbol {
	out := make([]Symbol, len(t.entries))
	copy(out, t.entries)
	return out
}

// Frames returns a copy of the frame start indices.
func (t *SymbolTable) Frames() []int {
	out := make([]int, len(t.frames))
	copy(out, t.frames)
	return out
}

// Globals returns the bindings of the global frame.
func (t *SymbolTable) Globals() []Symbol {
	end := len(t.entries)
	if len(t.frames) > 1 {
		end = t.frames[1]
	}
	out := make([]Symbol, end)
	copy(out, t.entries[:end])
	return out
}
