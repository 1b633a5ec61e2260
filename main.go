// weave compiles source into a tree-shaped bytecode and runs it against a
// tree-walking executor.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/user"
	"path/filepath"

	"github.com/dr8co/weave/compiler"
	"github.com/dr8co/weave/repl"
	"github.com/dr8co/weave/state"
	"github.com/dr8co/weave/stdlib"
)

const version = "0.1.0"

func printUsage() {
	_, _ = fmt.Fprintf(os.Stderr, `weave v%s

USAGE:
    %s [OPTIONS]

DESCRIPTION:
    weave compiles source into a tree-shaped bytecode and runs it against a
    tree-walking executor. Without any flags, it starts an interactive REPL.

OPTIONS:
    -f, --file <path>       Execute a weave script file
    -e, --eval <code>       Evaluate weave code (only its own print output is shown)
    -b, --bytecode          Print the translated bytecode instead of running it
    -d, --debug             Enable debug mode with more verbose output
    -v, --version           Show version information
    -h, --help              Show this help message

EXAMPLES:
    # Start interactive REPL
    %s

    # Execute a script file
    %s -f script.wv
    %s --file script.wv

    # Evaluate an expression
    %s -e "x = 5; print(x * 2);"

    # Print a file's bytecode instead of running it
    %s -f script.wv -b

`, version, os.Args[0], os.Args[0], os.Args[0], os.Args[0], os.Args[0], os.Args[0])
}

func main() {
	flag.Usage = printUsage

	fileFlag := flag.String("file", "", "Execute a weave script file")
	evalFlag := flag.String("eval", "", "Evaluate weave code (only its own print output is shown)")
	bytecodeFlag := flag.Bool("bytecode", false, "Print the translated bytecode instead of running it")
	debugFlag := flag.Bool("debug", false, "Enable debug mode with more verbose output")
	versionFlag := flag.Bool("version", false, "Show version information")

	flag.StringVar(fileFlag, "f", "", "Execute a weave script file")
	flag.StringVar(evalFlag, "e", "", "Evaluate weave code (only its own print output is shown)")
	flag.BoolVar(bytecodeFlag, "b", false, "Print the translated bytecode instead of running it")
	flag.BoolVar(debugFlag, "d", false, "Enable debug mode with more verbose output")
	flag.BoolVar(versionFlag, "v", false, "Show version information")

	flag.Parse()

	if *versionFlag {
		fmt.Printf("weave v%s\n", version)
		return
	}

	if *fileFlag != "" {
		executeFile(*fileFlag, *bytecodeFlag, *debugFlag)
		return
	}

	if *evalFlag != "" {
		evaluateSource(*evalFlag, *bytecodeFlag)
		return
	}

	username := "unknown"
	if usr, err := user.Current(); err == nil {
		username = usr.Username
	}

	fmt.Println("Hello", username+",", "welcome to weave!")
	fmt.Println("Feel free to type in weave code. (Ctrl+D or Ctrl+C to exit)")

	repl.Start(username, repl.Options{Debug: debugFlag != nil && *debugFlag})
}

// executeFile reads and runs a weave script file.
func executeFile(filename string, bytecode, debug bool) {
	cleaned := filepath.Clean(filename)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		fmt.Printf("Error getting absolute path: %s\n", err)
		os.Exit(1)
	}
	if debug {
		fmt.Printf("Executing file: %s\n", absolute)
	}

	//nolint:gosec // the path comes from a user-supplied CLI flag, not untrusted input
	content, err := os.ReadFile(absolute)
	if err != nil {
		fmt.Printf("Error reading file: %s\n", err)
		os.Exit(1)
	}

	run(string(content), bytecode, debug)
}

// evaluateSource compiles and runs a single snippet of source passed via -e/--eval.
func evaluateSource(src string, bytecode bool) {
	run(src, bytecode, false)
}

func run(src string, bytecode, debug bool) {
	if bytecode {
		bc, err := compiler.Compile(src)
		if err != nil {
			fmt.Printf("Compile error: %s\n", err)
			os.Exit(1)
		}
		fmt.Println(bc.String())
		return
	}

	st := state.New()
	stdlib.Register(st)

	n, err := compiler.Execute(st, src)
	if err != nil {
		fmt.Printf("Runtime error: %s\n", err)
		os.Exit(1)
	}
	if debug {
		fmt.Printf("DEBUG: top-level return count: %d\n", n)
	}
}
