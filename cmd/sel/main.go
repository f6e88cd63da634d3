// SEL CLI - the main entry point for running SEL programs
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/chazu/sel/compiler"
	"github.com/chazu/sel/journal"
	"github.com/chazu/sel/manifest"
	"github.com/chazu/sel/server"
	"github.com/chazu/sel/vm"
	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"
)

var log = commonlog.GetLogger("sel")

func main() {
	interactive := flag.Bool("i", false, "Start interactive REPL")
	evalSrc := flag.String("e", "", "Evaluate source and print the result")
	tokensFile := flag.String("tokens", "", "Print the tokens of a file")
	astFile := flag.String("ast", "", "Print the AST of a file as S-expressions")
	serveMode := flag.Bool("serve", false, "Start the evaluation service (Connect HTTP/JSON + gRPC)")
	servePort := flag.Int("port", 0, "Evaluation service port (default from sel.toml, else 4680)")
	lspMode := flag.Bool("lsp", false, "Run the language server on stdio")
	journalPath := flag.String("journal", "", "Record evaluations to an SQLite journal")
	verbosity := flag.Int("v", 0, "Log verbosity")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: sel [options] [file.sel]\n\n")
		fmt.Fprintf(os.Stderr, "Runs a SEL program, or starts the REPL when no file is given.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  sel                      # REPL (or read stdin when piped)\n")
		fmt.Fprintf(os.Stderr, "  sel fib.sel              # Run a program\n")
		fmt.Fprintf(os.Stderr, "  sel -e 'func sq(x) x*x sq(7)'\n")
		fmt.Fprintf(os.Stderr, "  sel -ast fib.sel         # Dump the parse tree\n")
		fmt.Fprintf(os.Stderr, "\nServers:\n")
		fmt.Fprintf(os.Stderr, "  sel -serve -port 8080    # Evaluation service on :8080\n")
		fmt.Fprintf(os.Stderr, "  sel -lsp                 # Language server on stdio\n")
	}
	flag.Parse()

	commonlog.Configure(*verbosity, nil)

	switch {
	case *tokensFile != "":
		os.Exit(dumpTokens(*tokensFile))
	case *astFile != "":
		os.Exit(dumpAST(*astFile))
	case *lspMode:
		if err := server.NewLSP().Run(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	proj, err := manifest.FindAndLoad(".")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading %s: %v\n", manifest.FileName, err)
		os.Exit(1)
	}
	searchPath, err := projectSearchPath(proj)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error resolving dependencies: %v\n", err)
		os.Exit(1)
	}

	maxDepth := 0
	if proj != nil {
		maxDepth = proj.Runtime.MaxCallDepth
		if *journalPath == "" {
			*journalPath = proj.JournalPath()
		}
	}

	var jrnl *journal.Journal
	if *journalPath != "" {
		jrnl, err = journal.Open(*journalPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening journal: %v\n", err)
			os.Exit(1)
		}
		defer jrnl.Close()
	}

	if *serveMode {
		port := *servePort
		if port == 0 {
			port = manifest.DefaultPort
			if proj != nil {
				port = proj.Server.Port
			}
		}
		opts := []server.ServerOption{server.WithSearchPath(searchPath)}
		if maxDepth > 0 {
			opts = append(opts, server.WithMaxCallDepth(maxDepth))
		}
		if jrnl != nil {
			opts = append(opts, server.WithJournal(jrnl))
		}
		srv := server.New(opts...)
		defer srv.Stop()
		if err := srv.ListenAndServe(fmt.Sprintf(":%d", port)); err != nil {
			fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	vmInst := vm.NewVM()
	vmInst.MaxCallDepth = maxDepth
	vmInst.SearchPath = searchPath

	if *evalSrc != "" {
		os.Exit(evalAndPrint(vmInst, *evalSrc))
	}

	file := flag.Arg(0)
	if file == "" && proj != nil && !*interactive {
		file = proj.EntryPath()
	}
	if file != "" {
		code := runScript(vmInst, file)
		if *interactive && code == 0 {
			os.Exit(runREPL(vmInst, jrnl))
		}
		os.Exit(code)
	}

	if *interactive || isTerminal(os.Stdin) {
		os.Exit(runREPL(vmInst, jrnl))
	}
	os.Exit(runStdin(vmInst))
}

// projectSearchPath returns the import search path for proj, resolving its
// dependencies first. A nil project has an empty search path.
func projectSearchPath(proj *manifest.Manifest) ([]string, error) {
	if proj == nil {
		return nil, nil
	}
	deps, err := manifest.NewResolver(proj).Resolve()
	if err != nil {
		return nil, err
	}
	for _, d := range deps {
		log.Infof("dependency %s: %s", d.Name, d.LocalPath)
	}
	return proj.SearchPath(deps), nil
}

func isTerminal(f *os.File) bool {
	stat, err := f.Stat()
	if err != nil {
		return false
	}
	return stat.Mode()&os.ModeCharDevice != 0
}

// runScript runs a program file, printing diagnostics to stderr.
func runScript(vmInst *vm.VM, path string) int {
	start := time.Now()
	failed := false
	err := vmInst.RunFile(path, func(ev vm.Event) {
		if reportEvent(ev, false) {
			failed = true
		}
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	fmt.Fprintf(os.Stderr, "Finished in %s\n", time.Since(start).Round(time.Microsecond))
	if failed {
		return 1
	}
	return 0
}

// runStdin treats piped standard input as a program.
func runStdin(vmInst *vm.VM) int {
	failed := false
	vmInst.Run(vmInst.NewParser(compiler.NewReaderSource(os.Stdin)), func(ev vm.Event) {
		if reportEvent(ev, false) {
			failed = true
		}
	})
	if failed {
		return 1
	}
	return 0
}

// evalAndPrint evaluates src and prints the value of its last expression.
func evalAndPrint(vmInst *vm.VM, src string) int {
	v, err := vmInst.EvalString(src)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if v.IsError() {
		fmt.Fprintf(os.Stderr, "Error: %s\n", v.Message())
		return 1
	}
	fmt.Println(v)
	return 0
}

// reportEvent prints a unit's outcome. Definitions and values are echoed
// only when echo is set. It returns true for failures.
func reportEvent(ev vm.Event, echo bool) bool {
	switch ev.Kind {
	case vm.EventSyntaxError, vm.EventImportError:
		fmt.Fprintln(os.Stderr, red("Error: "+ev.Err.Error()))
		return true
	case vm.EventExpression:
		if ev.Value.IsError() {
			fmt.Fprintln(os.Stderr, red(fmt.Sprintf("Error at %s: %s", ev.Pos, ev.Value.Message())))
			return true
		}
		if echo {
			fmt.Fprintf(os.Stderr, "Evaluated to %s\n", blue(ev.Value.String()))
		}
	case vm.EventDefinition:
		if echo {
			fmt.Fprintln(os.Stderr, "Read function definition")
		}
	case vm.EventExtern:
		if echo {
			fmt.Fprintln(os.Stderr, "Read extern")
		}
	}
	return false
}

func dumpTokens(path string) int {
	src, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	for _, tok := range compiler.Tokenize(string(src)) {
		fmt.Printf("%s\t%s\n", tok.Pos, tok)
	}
	return 0
}

func dumpAST(path string) int {
	src, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	units, errs := compiler.ParseProgram(string(src), compiler.NewOperatorTable())
	for _, u := range units {
		fmt.Println(compiler.Sexpr(u))
	}
	for _, e := range errs {
		fmt.Fprintf(os.Stderr, "Error: %v\n", e)
	}
	if len(errs) > 0 {
		return 1
	}
	return 0
}
