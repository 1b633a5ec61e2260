// Package stdlib implements weave's built-in global functions: the small
// set of native bindings every program starts with (printing, stringifying,
// numeric coercion, executing source, process control, and the metatable
// accessors), registered into a fresh state's global frame.
package stdlib

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/dr8co/weave/compiler"
	"github.com/dr8co/weave/object"
	"github.com/dr8co/weave/state"
)

// builtin pairs a global name with its native implementation, mirroring the
// teacher's table-of-structs registration pattern.
type builtin struct {
	name string
	fn   object.NativeFunc
}

// Register binds every stdlib function into st's global frame. Callers
// construct a state with state.New() and call Register once before running
// any program against it; kept as an explicit, separate step (rather than
// folded into state.New itself) since state cannot import stdlib without
// stdlib importing state back for the *state.State parameter — Register
// lives on the outside of that boundary instead of inside it.
func Register(st *state.State) {
	for _, b := range builtins(st) {
		st.SetGlobal(b.name, object.NativeFunction(b.name, b.fn))
	}
}

func builtins(st *state.State) []builtin {
	return []builtin{
		{"print", biPrint},
		{"string", biString},
		{"max", biMax},
		{"min", biMin},
		{"int", biInt},
		{"float", biFloat},
		{"round", biRound},
		{"abs", biAbs},
		{"exec", execBuiltin(st)},
		{"exit", biExit},
		{"input", biInput},
		{"getmetatable", biGetMetatable},
		{"setmetatable", biSetMetatable},
	}
}

// popArgs pops nArgs values off ops in call order: since the call protocol
// leaves the first source-order argument on top of a native's frame, a
// plain sequence of Pop calls already yields them first-to-last.
func popArgs(ops object.StateOps, nArgs int) []*object.Value {
	args := make([]*object.Value, nArgs)
	for i := 0; i < nArgs; i++ {
		args[i] = ops.Pop()
	}
	return args
}

func biPrint(ops object.StateOps, nArgs int) (int, error) {
	args := popArgs(ops, nArgs)
	parts := make([]string, nArgs)
	for i, a := range args {
		parts[i] = a.String()
	}
	fmt.Println(strings.Join(parts, ""))
	return 0, nil
}

func biString(ops object.StateOps, nArgs int) (int, error) {
	if nArgs != 1 {
		return 0, fmt.Errorf("string: want 1 argument, got %d", nArgs)
	}
	v := ops.Pop()
	ops.Push(object.String(v.String()))
	return 1, nil
}

func asFloat(v *object.Value) (float64, bool) {
	if i, ok := v.AsInteger(); ok {
		return float64(i), true
	}
	if f, ok := v.AsFloat(); ok {
		return f, true
	}
	return 0, false
}

func biMax(ops object.StateOps, nArgs int) (int, error) {
	return foldExtreme(ops, nArgs, true)
}

func biMin(ops object.StateOps, nArgs int) (int, error) {
	return foldExtreme(ops, nArgs, false)
}

func foldExtreme(ops object.StateOps, nArgs int, wantMax bool) (int, error) {
	if nArgs < 2 {
		return 0, fmt.Errorf("want at least 2 arguments, got %d", nArgs)
	}
	args := popArgs(ops, nArgs)
	best := args[0]
	bestF, ok := asFloat(best)
	if !ok {
		return 0, fmt.Errorf("argument 1 is not numeric, got %s", best.Kind())
	}
	for i, a := range args[1:] {
		f, ok := asFloat(a)
		if !ok {
			return 0, fmt.Errorf("argument %d is not numeric, got %s", i+2, a.Kind())
		}
		if (wantMax && f > bestF) || (!wantMax && f < bestF) {
			best, bestF = a, f
		}
	}
	ops.Push(best)
	return 1, nil
}

func biInt(ops object.StateOps, nArgs int) (int, error) {
	if nArgs != 1 {
		return 0, fmt.Errorf("int: want 1 argument, got %d", nArgs)
	}
	v := ops.Pop()
	switch {
	case v.IsNil():
		ops.Push(object.Nil())
	default:
		if i, ok := v.AsInteger(); ok {
			ops.Push(object.Integer(i))
		} else if f, ok := v.AsFloat(); ok {
			ops.Push(object.Integer(int64(f)))
		} else if b, ok := v.AsBool(); ok {
			if b {
				ops.Push(object.Integer(1))
			} else {
				ops.Push(object.Integer(0))
			}
		} else if s, ok := v.AsString(); ok {
			n, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
			if err != nil {
				ops.Push(object.Nil())
			} else {
				ops.Push(object.Integer(int64(n)))
			}
		} else {
			ops.Push(object.Nil())
		}
	}
	return 1, nil
}

func biFloat(ops object.StateOps, nArgs int) (int, error) {
	if nArgs != 1 {
		return 0, fmt.Errorf("float: want 1 argument, got %d", nArgs)
	}
	v := ops.Pop()
	switch {
	case v.IsNil():
		ops.Push(object.Nil())
	default:
		if f, ok := v.AsFloat(); ok {
			ops.Push(object.Float(f))
		} else if i, ok := v.AsInteger(); ok {
			ops.Push(object.Float(float64(i)))
		} else if b, ok := v.AsBool(); ok {
			if b {
				ops.Push(object.Float(1))
			} else {
				ops.Push(object.Float(0))
			}
		} else if s, ok := v.AsString(); ok {
			f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
			if err != nil {
				ops.Push(object.Nil())
			} else {
				ops.Push(object.Float(f))
			}
		} else {
			ops.Push(object.Nil())
		}
	}
	return 1, nil
}

func biRound(ops object.StateOps, nArgs int) (int, error) {
	if nArgs != 1 {
		return 0, fmt.Errorf("round: want 1 argument, got %d", nArgs)
	}
	v := ops.Pop()
	if i, ok := v.AsInteger(); ok {
		ops.Push(object.Integer(i))
		return 1, nil
	}
	if f, ok := v.AsFloat(); ok {
		ops.Push(object.Integer(roundToInt(f)))
		return 1, nil
	}
	if b, ok := v.AsBool(); ok {
		if b {
			ops.Push(object.Integer(1))
		} else {
			ops.Push(object.Integer(0))
		}
		return 1, nil
	}
	return 0, fmt.Errorf("round: unsupported argument kind %s", v.Kind())
}

func roundToInt(f float64) int64 {
	if f >= 0 {
		return int64(f + 0.5)
	}
	return int64(f - 0.5)
}

func biAbs(ops object.StateOps, nArgs int) (int, error) {
	if nArgs != 1 {
		return 0, fmt.Errorf("abs: want 1 argument, got %d", nArgs)
	}
	v := ops.Pop()
	if i, ok := v.AsInteger(); ok {
		if i < 0 {
			i = -i
		}
		ops.Push(object.Integer(i))
		return 1, nil
	}
	if f, ok := v.AsFloat(); ok {
		if f < 0 {
			f = -f
		}
		ops.Push(object.Float(f))
		return 1, nil
	}
	ops.Push(object.Nil())
	return 1, nil
}

// execBuiltin closes over the State that owns the running program, since
// exec's job is to compile and run more source against that same state
// (in the calling frame), not to spin up an isolated one.
func execBuiltin(st *state.State) object.NativeFunc {
	return func(ops object.StateOps, nArgs int) (int, error) {
		if nArgs != 1 {
			return 0, fmt.Errorf("exec: want 1 argument, got %d", nArgs)
		}
		v := ops.Pop()
		src, ok := v.AsString()
		if !ok {
			return 0, fmt.Errorf("exec: argument must be a string, got %s", v.Kind())
		}
		// Run src in the caller's frame, not this call's own, so the
		// bindings it makes outlive the exec call. A fresh frame stands in
		// for this one meanwhile; the call protocol pops it afterwards.
		st.PopFrame()
		n, err := compiler.Execute(st, src)
		rets := st.PopN(n)
		st.PushFrame()
		if err != nil {
			ops.Push(object.String(err.Error()))
			return 1, nil
		}
		if n == 0 {
			// No top-level `return` in src: report no residual value.
			ops.Push(object.Nil())
			return 1, nil
		}
		for i := len(rets) - 1; i >= 0; i-- {
			ops.Push(rets[i])
		}
		return n, nil
	}
}

func biExit(ops object.StateOps, nArgs int) (int, error) {
	code := 0
	if nArgs == 1 {
		v := ops.Pop()
		if i, ok := v.AsInteger(); ok {
			code = int(i)
		}
	} else if nArgs > 1 {
		return 0, fmt.Errorf("exit: want 0 or 1 arguments, got %d", nArgs)
	}
	os.Exit(code)
	return 0, nil
}

var stdin = bufio.NewReader(os.Stdin)

func biInput(ops object.StateOps, nArgs int) (int, error) {
	if nArgs > 1 {
		return 0, fmt.Errorf("input: want 0 or 1 arguments, got %d", nArgs)
	}
	if nArgs == 1 {
		v := ops.Pop()
		fmt.Print(v.String())
	}
	line, err := stdin.ReadString('\n')
	if err != nil && line == "" {
		ops.Push(object.Nil())
		return 1, nil
	}
	line = strings.TrimSuffix(line, "\n")
	line = strings.TrimSuffix(line, "\r")
	ops.Push(object.String(line))
	return 1, nil
}

func biGetMetatable(ops object.StateOps, nArgs int) (int, error) {
	if nArgs != 1 {
		return 0, fmt.Errorf("getmetatable: want 1 argument, got %d", nArgs)
	}
	v := ops.Pop()
	if v.Metatable != nil {
		ops.Push(v.Metatable)
	} else {
		ops.Push(object.Nil())
	}
	return 1, nil
}

func biSetMetatable(ops object.StateOps, nArgs int) (int, error) {
	if nArgs != 2 {
		return 0, fmt.Errorf("setmetatable: want 2 arguments, got %d", nArgs)
	}
	v := ops.Pop()
	mt := ops.Pop()
	v.Metatable = mt
	ops.Push(v)
	return 1, nil
}
