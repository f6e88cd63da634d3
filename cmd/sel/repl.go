package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/chazu/sel/compiler"
	"github.com/chazu/sel/journal"
	"github.com/chazu/sel/vm"
	"github.com/peterh/liner"
)

const (
	historyFile = ".sel_history"
	promptMain  = "ready> "
	promptCont  = "...... "
	replSession = "repl"
)

func red(s string) string  { return "\x1b[31m" + s + "\x1b[0m" }
func blue(s string) string { return "\x1b[94m" + s + "\x1b[0m" }

// runREPL reads and evaluates input until EOF or :quit.
func runREPL(vmInst *vm.VM, jrnl *journal.Journal) int {
	fmt.Println("SEL REPL")
	fmt.Println("Type :help for commands, :quit to exit")
	fmt.Println()

	home, _ := os.UserHomeDir()
	histPath := filepath.Join(home, historyFile)

	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)

	if f, err := os.Open(histPath); err == nil {
		_, _ = ln.ReadHistory(f)
		_ = f.Close()
	}
	defer func() {
		if f, err := os.Create(histPath); err == nil {
			_, _ = ln.WriteHistory(f)
			_ = f.Close()
		}
	}()

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigc)
	go func() {
		<-sigc
		ln.Close()
		os.Exit(130)
	}()

	for {
		code, ok := readUnit(ln)
		if !ok {
			fmt.Println()
			return 0
		}
		trimmed := strings.TrimSpace(code)
		if trimmed == "" {
			continue
		}
		ln.AppendHistory(strings.ReplaceAll(code, "\n", " "))

		if strings.HasPrefix(trimmed, ":") {
			if quit := handleREPLCommand(vmInst, trimmed); quit {
				return 0
			}
			continue
		}
		evalREPL(vmInst, jrnl, code)
	}
}

// readUnit prompts until the brackets in the accumulated input balance.
// It returns false at end of input.
func readUnit(ln *liner.State) (string, bool) {
	var b strings.Builder
	for {
		prompt := promptMain
		if b.Len() > 0 {
			prompt = promptCont
		}
		line, err := ln.Prompt(prompt)
		if errors.Is(err, io.EOF) {
			return "", false
		}
		if errors.Is(err, liner.ErrPromptAborted) {
			return "", true
		}
		if err != nil {
			return "", false
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(line)
		if !incomplete(b.String()) {
			return b.String(), true
		}
	}
}

// incomplete reports whether src has unclosed brackets.
func incomplete(src string) bool {
	depth := 0
	for _, tok := range compiler.Tokenize(src) {
		switch {
		case tok.Type == compiler.TokenLBlock, tok.Is('('), tok.Is('['):
			depth++
		case tok.Type == compiler.TokenRBlock, tok.Is(')'), tok.Is(']'):
			depth--
		}
	}
	return depth > 0
}

// evalREPL runs one chunk of input, echoing each unit and recording
// expressions to the journal.
func evalREPL(vmInst *vm.VM, jrnl *journal.Journal, code string) {
	start := time.Now()
	var last vm.Value
	evaluated := false
	vmInst.Run(vmInst.NewParser(compiler.NewStringSource(code)), func(ev vm.Event) {
		if ev.Kind == vm.EventExpression {
			last = ev.Value
			evaluated = true
		}
		reportEvent(ev, true)
	})
	if jrnl == nil || !evaluated {
		return
	}
	entry := journal.Entry{
		Session:  replSession,
		Source:   code,
		Value:    last.String(),
		IsError:  last.IsError(),
		Duration: time.Since(start),
	}
	if _, err := jrnl.Record(context.Background(), entry); err != nil {
		log.Warningf("journal: %v", err)
	}
}

// handleREPLCommand runs a colon command. It returns true to quit.
func handleREPLCommand(vmInst *vm.VM, line string) bool {
	fields := strings.Fields(line)
	cmd, args := fields[0], fields[1:]

	switch cmd {
	case ":quit", ":q", ":exit":
		return true

	case ":help", ":h":
		fmt.Println("Commands:")
		fmt.Println("  :help        Show this help")
		fmt.Println("  :quit        Exit the REPL")
		fmt.Println("  :ops         List binary operators and precedences")
		fmt.Println("  :funcs       List defined functions")
		fmt.Println("  :save FILE   Save a snapshot of the session")
		fmt.Println("  :load FILE   Restore a snapshot")
		fmt.Println()
		fmt.Println("Definitions: func name(a, b) body, func binary OP PREC (l, r) body, func unary OP (x) body")

	case ":ops":
		entries := vmInst.Ops.Entries()
		for _, op := range vmInst.Ops.Operators() {
			fmt.Printf("  %-4s %d\n", op, entries[op])
		}
		for _, op := range vmInst.Ops.UnaryOperators() {
			fmt.Printf("  %-4s unary\n", op)
		}

	case ":funcs":
		for _, fn := range vmInst.Funcs.All() {
			fmt.Printf("  %s\n", fn.Proto)
		}

	case ":save":
		if len(args) != 1 {
			fmt.Println("Usage: :save FILE")
			break
		}
		if err := saveSnapshot(vmInst, args[0]); err != nil {
			fmt.Println(red("Error: " + err.Error()))
			break
		}
		fmt.Printf("Saved %d functions to %s\n", vmInst.Funcs.Len(), args[0])

	case ":load":
		if len(args) != 1 {
			fmt.Println("Usage: :load FILE")
			break
		}
		if err := loadSnapshot(vmInst, args[0]); err != nil {
			fmt.Println(red("Error: " + err.Error()))
			break
		}
		fmt.Printf("Loaded %d functions from %s\n", vmInst.Funcs.Len(), args[0])

	default:
		fmt.Printf("Unknown command: %s (type :help for commands)\n", cmd)
	}
	return false
}

func saveSnapshot(vmInst *vm.VM, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := vmInst.SaveSnapshot(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func loadSnapshot(vmInst *vm.VM, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return vmInst.LoadSnapshot(f)
}
