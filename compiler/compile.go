package compiler

import (
	"fmt"
	"strings"

	"github.com/dr8co/weave/code"
	"github.com/dr8co/weave/executor"
	"github.com/dr8co/weave/lexer"
	"github.com/dr8co/weave/parser"
	"github.com/dr8co/weave/state"
)

// Compile parses and lowers source into a single top-level bytecode tree.
// A syntax error aborts compilation and returns every accumulated parse
// error joined into one.
func Compile(source string) (*code.Bytecode, error) {
	p := parser.New(lexer.New(source))
	program := p.ParseProgram()

	if errs := p.Errors(); len(errs) > 0 {
		msgs := make([]string, len(errs))
		for i, e := range errs {
			msgs[i] = e.Error()
		}
		return nil, fmt.Errorf("syntax error: %s", strings.Join(msgs, "; "))
	}

	c := New()
	bc := c.CompileProgram(program)
	if errs := c.Errors(); len(errs) > 0 {
		return nil, fmt.Errorf("compile error: %s", strings.Join(errs, "; "))
	}
	return bc, nil
}

// Execute compiles source and runs it against st as a fresh top-level
// layer, returning the number of values a top-level `return n;` left on
// the current frame's stack (0 if execution ran off the end without one).
// This is the primitive behind the REPL, the CLI, and the stdlib `exec`
// function.
func Execute(st *state.State, source string) (int, error) {
	bc, err := Compile(source)
	if err != nil {
		return 0, err
	}

	sig, err := executor.Run(bc, st)
	if err != nil {
		return 0, err
	}
	if sig.Kind == executor.SignalReturn {
		return sig.N, nil
	}
	return 0, nil
}
