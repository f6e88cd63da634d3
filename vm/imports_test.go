package vm

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeModule(t *testing.T, dir, name, src string) string {
	t.Helper()
	path := filepath.Join(dir, filepath.FromSlash(name)+ModuleExt)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestImportDefinitionsAndOperators(t *testing.T) {
	dir := t.TempDir()
	writeModule(t, dir, "lib", "func binary ^^ 5 (a, b) a * 10 + b\nfunc sq(x) x * x\nloaded = 1\n")

	vm, _ := newTestVM()
	vm.SearchPath = []string{dir}
	got := evalOK(t, vm, "import lib\nsq(3) + (1 ^^ 2)")
	if !got.Equal(Int(21)) {
		t.Errorf("got %v, want 21", got)
	}
	if v, ok := vm.Global("loaded"); !ok || !v.Equal(Int(1)) {
		t.Errorf("module top-level expression did not run: loaded = %v, %v", v, ok)
	}
}

func TestImportResolvesAgainstImportingFile(t *testing.T) {
	dir := t.TempDir()
	writeModule(t, dir, "sub/a", "import b\nfunc fa() fb() + 1\n")
	writeModule(t, dir, "sub/b", "func fb() 41\n")

	vm, _ := newTestVM()
	vm.SearchPath = []string{dir}
	if got := evalOK(t, vm, "import sub/a\nfa()"); !got.Equal(Int(42)) {
		t.Errorf("fa() = %v, want 42", got)
	}
}

func TestImportNotFound(t *testing.T) {
	vm, _ := newTestVM()
	vm.SearchPath = []string{t.TempDir()}
	if err := vm.Import("nosuch", nil); !errors.Is(err, ErrModuleNotFound) {
		t.Errorf("Import(nosuch) = %v, want ErrModuleNotFound", err)
	}

	_, err := vm.EvalString("import nosuch\n1")
	if !errors.Is(err, ErrModuleNotFound) {
		t.Errorf("EvalString err = %v, want ErrModuleNotFound", err)
	}
}

func TestImportCycle(t *testing.T) {
	dir := t.TempDir()
	writeModule(t, dir, "c1", "import c2\nfunc one() 1\n")
	writeModule(t, dir, "c2", "import c1\nfunc two() 2\n")

	vm, _ := newTestVM()
	vm.SearchPath = []string{dir}
	got, err := vm.EvalString("import c1\none() + two()")
	if !errors.Is(err, ErrImportCycle) {
		t.Errorf("err = %v, want ErrImportCycle", err)
	}
	if !got.Equal(Int(3)) {
		t.Errorf("one() + two() = %v, want 3", got)
	}
}

func TestRunFile(t *testing.T) {
	dir := t.TempDir()
	writeModule(t, dir, "helper", "func twice(x) x * 2\n")
	main := writeModule(t, dir, "main", "import helper\ntwice(21)\nimport main\n")

	vm, _ := newTestVM()
	var values []Value
	var importErrs []error
	err := vm.RunFile(main, func(ev Event) {
		switch ev.Kind {
		case EventExpression:
			values = append(values, ev.Value)
		case EventImportError:
			importErrs = append(importErrs, ev.Err)
		}
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(values) != 1 || !values[0].Equal(Int(42)) {
		t.Errorf("values = %v, want [42]", values)
	}
	if len(importErrs) != 1 || !errors.Is(importErrs[0], ErrImportCycle) {
		t.Errorf("import errors = %v, want one import cycle", importErrs)
	}

	if err := vm.RunFile(filepath.Join(dir, "missing.sel"), nil); err == nil {
		t.Error("RunFile on a missing file succeeded")
	}
}
