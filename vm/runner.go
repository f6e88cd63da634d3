package vm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/chazu/sel/compiler"
)

// ---------------------------------------------------------------------------
// Runner: drives a parser unit by unit
// ---------------------------------------------------------------------------

// EventKind classifies the outcome of one top-level unit.
type EventKind int

const (
	EventDefinition EventKind = iota
	EventExtern
	EventImport
	EventExpression
	EventSyntaxError
	EventImportError
)

func (k EventKind) String() string {
	switch k {
	case EventDefinition:
		return "definition"
	case EventExtern:
		return "extern"
	case EventImport:
		return "import"
	case EventExpression:
		return "expression"
	case EventSyntaxError:
		return "syntax error"
	case EventImportError:
		return "import error"
	}
	return fmt.Sprintf("EventKind(%d)", int(k))
}

// Event reports what happened to one top-level unit.
type Event struct {
	Kind  EventKind
	Name  string // function name or module path
	Value Value  // result of an expression
	Err   error  // syntax or import failure
	Pos   compiler.Position
}

// Handler receives events as units are processed. It may be nil.
type Handler func(Event)

func (h Handler) emit(ev Event) {
	if h != nil {
		h(ev)
	}
}

// Run processes units from p until end of input or an Interrupt. After a
// syntax error the offending token is skipped and parsing resumes.
func (vm *VM) Run(p *compiler.Parser, handle Handler) {
	for !vm.interrupted() {
		unit, err := p.ParseUnit()
		if err == io.EOF {
			return
		}
		if err != nil {
			ev := Event{Kind: EventSyntaxError, Err: err}
			var se *compiler.SyntaxError
			if errors.As(err, &se) {
				ev.Pos = se.Pos
			}
			handle.emit(ev)
			p.Skip()
			continue
		}
		vm.Exec(unit, handle)
	}
}

// Exec processes a single parsed unit.
func (vm *VM) Exec(unit compiler.Unit, handle Handler) {
	switch u := unit.(type) {
	case *compiler.FunctionDef:
		vm.Define(&Function{Proto: u.Proto, Body: u.Body, Source: u.Source})
		handle.emit(Event{Kind: EventDefinition, Name: u.Proto.Name, Pos: u.Pos()})

	case *compiler.ExternDecl:
		if _, ok := vm.Funcs.Lookup(u.Proto.Name); !ok {
			vm.Define(&Function{Proto: u.Proto, Source: "extern " + u.Proto.String()})
		}
		handle.emit(Event{Kind: EventExtern, Name: u.Proto.Name, Pos: u.Pos()})

	case *compiler.ImportDecl:
		if err := vm.Import(u.Path, handle); err != nil {
			handle.emit(Event{Kind: EventImportError, Name: u.Path, Err: err, Pos: u.Pos()})
			return
		}
		handle.emit(Event{Kind: EventImport, Name: u.Path, Pos: u.Pos()})

	case *compiler.TopLevelExpr:
		v := vm.EvalTopLevel(u.Body)
		handle.emit(Event{Kind: EventExpression, Value: v, Pos: u.Pos()})
	}
}

// EvalString runs src and returns the value of its last top-level
// expression (int 0 if it has none) together with any syntax and import
// errors. Evaluation errors are reported through the returned value. A
// pending Interrupt from an earlier evaluation is discarded.
func (vm *VM) EvalString(src string) (Value, error) {
	return vm.EvalStringContext(context.Background(), src)
}

// EvalStringContext is EvalString bounded by ctx: when ctx ends the
// evaluation is interrupted and its value is the error "interrupted". No
// unit after the interrupted one runs.
func (vm *VM) EvalStringContext(ctx context.Context, src string) (Value, error) {
	if ctx.Err() != nil {
		return Errorf("interrupted"), nil
	}
	vm.clearInterrupt()
	fired := make(chan struct{})
	stop := context.AfterFunc(ctx, func() {
		vm.Interrupt()
		close(fired)
	})
	defer func() {
		if !stop() {
			<-fired
		}
		vm.clearInterrupt()
	}()

	last := Int(0)
	var errs []error
	vm.Run(vm.NewParser(compiler.NewStringSource(src)), func(ev Event) {
		switch ev.Kind {
		case EventExpression:
			last = ev.Value
		case EventSyntaxError, EventImportError:
			errs = append(errs, ev.Err)
		}
	})
	return last, errors.Join(errs...)
}

// RunFile runs the program in path. Imports resolve against the file's
// directory first.
func (vm *VM) RunFile(path string, handle Handler) error {
	src, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if abs, err := filepath.Abs(path); err == nil {
		vm.importing[abs] = true
		defer delete(vm.importing, abs)
	}
	vm.clearInterrupt()
	vm.pushDir(filepath.Dir(path))
	defer vm.popDir()

	vm.Run(vm.NewParser(compiler.NewStringSource(string(src))), handle)
	return nil
}

func (vm *VM) pushDir(dir string) {
	vm.dirs = append(vm.dirs, dir)
}

func (vm *VM) popDir() {
	if len(vm.dirs) > 0 {
		vm.dirs = vm.dirs[:len(vm.dirs)-1]
	}
}
