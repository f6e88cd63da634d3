package vm

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"unicode"
)

// ---------------------------------------------------------------------------
// Builtins: the fixed standard library
// ---------------------------------------------------------------------------

// Builtin is a standard library function. It receives evaluated arguments.
type Builtin func(vm *VM, args []Value) Value

// builtins are dispatched by name before the function table is consulted,
// so user functions cannot shadow them.
var builtins = map[string]Builtin{
	"print":   builtinPrint,
	"println": builtinPrintln,
	"printch": builtinPrintch,
	"input":   builtinInput,
	"inputch": builtinInputch,
}

// IsBuiltin reports whether name is a standard library function.
func IsBuiltin(name string) bool {
	_, ok := builtins[name]
	return ok
}

// BuiltinNames returns the standard library function names, sorted.
func BuiltinNames() []string {
	names := make([]string, 0, len(builtins))
	for name := range builtins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func writeValues(w io.Writer, args []Value) {
	for _, a := range args {
		if a.Kind() == KindDouble {
			fmt.Fprintf(w, "%f ", a.AsFloat())
		} else {
			fmt.Fprintf(w, "%d ", a.AsInt())
		}
	}
}

// print writes each argument followed by a space.
func builtinPrint(vm *VM, args []Value) Value {
	writeValues(vm.Stdout, args)
	return Int(0)
}

// println is print followed by a newline.
func builtinPrintln(vm *VM, args []Value) Value {
	writeValues(vm.Stdout, args)
	fmt.Fprintln(vm.Stdout)
	return Int(0)
}

// printch writes each argument as the character with that code.
func builtinPrintch(vm *VM, args []Value) Value {
	for _, a := range args {
		fmt.Fprintf(vm.Stdout, "%c", rune(a.AsInt()))
	}
	return Int(0)
}

// input reads one whitespace-delimited number. Integral text yields an int.
func builtinInput(vm *VM, args []Value) Value {
	if len(args) != 0 {
		return Errorf("input() requires no arguments")
	}

	var word []rune
	for {
		r, _, err := vm.Stdin.ReadRune()
		if err != nil {
			if len(word) > 0 {
				break
			}
			return Errorf("input(): end of input")
		}
		if unicode.IsSpace(r) {
			if len(word) > 0 {
				break
			}
			continue
		}
		word = append(word, r)
	}

	text := string(word)
	if i, err := strconv.ParseInt(text, 10, 64); err == nil {
		return Int(i)
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return Errorf("input(): invalid number %q", text)
	}
	return Double(f)
}

// inputch reads one character and returns its code.
func builtinInputch(vm *VM, args []Value) Value {
	if len(args) != 0 {
		return Errorf("inputch() requires no arguments")
	}
	r, _, err := vm.Stdin.ReadRune()
	if err != nil {
		return Errorf("inputch(): end of input")
	}
	return Int(int64(r))
}
