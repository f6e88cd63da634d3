package vm

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/chazu/sel/compiler"
)

// ModuleExt is appended to every imported module name.
const ModuleExt = ".sel"

var (
	// ErrModuleNotFound is returned when no search directory holds the module.
	ErrModuleNotFound = errors.New("module not found")

	// ErrImportCycle is returned when a module imports itself, directly or
	// through other modules.
	ErrImportCycle = errors.New("import cycle")
)

// searchDirs returns the import search order: the importing file's
// directory, the configured search path, then the working directory.
func (vm *VM) searchDirs() []string {
	var dirs []string
	if len(vm.dirs) > 0 {
		dirs = append(dirs, vm.dirs[len(vm.dirs)-1])
	}
	dirs = append(dirs, vm.SearchPath...)
	return append(dirs, ".")
}

// ResolveModule finds the file for module name.
func (vm *VM) ResolveModule(name string) (string, error) {
	file := filepath.FromSlash(name) + ModuleExt
	if filepath.IsAbs(file) {
		if fi, err := os.Stat(file); err == nil && !fi.IsDir() {
			return file, nil
		}
		return "", fmt.Errorf("%w: %s", ErrModuleNotFound, file)
	}

	dirs := vm.searchDirs()
	for _, dir := range dirs {
		path := filepath.Join(dir, file)
		if fi, err := os.Stat(path); err == nil && !fi.IsDir() {
			return path, nil
		}
	}
	return "", fmt.Errorf("%w: %s (searched %s)", ErrModuleNotFound, file, strings.Join(dirs, ", "))
}

// Import loads module name into this VM. The module is parsed with its own
// lexer against the VM's operator and function tables, so its definitions
// and operators stay visible after it returns. Its events are forwarded to
// handle.
func (vm *VM) Import(name string, handle Handler) error {
	path, err := vm.ResolveModule(name)
	if err != nil {
		return err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("import %s: %w", name, err)
	}
	if vm.importing[abs] {
		return fmt.Errorf("%w: %s", ErrImportCycle, name)
	}

	src, err := os.ReadFile(abs)
	if err != nil {
		return fmt.Errorf("import %s: %w", name, err)
	}

	vm.log.Infof("importing %s from %s", name, abs)
	vm.importing[abs] = true
	vm.pushDir(filepath.Dir(abs))
	defer func() {
		vm.popDir()
		delete(vm.importing, abs)
	}()

	vm.Run(vm.NewParser(compiler.NewStringSource(string(src))), handle)
	return nil
}
