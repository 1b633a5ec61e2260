// Package executor implements the tree-walking interpreter: it dispatches
// opcodes against a state.State, propagating control-flow signals up
// through nested execution layers exactly as the language's control
// structures require.
//
// There is no instruction pointer and no jump table: If/For/While/Loop
// recurse directly into their nested bytecode fields, and Return/Break/
// Continue unwind by returning a Signal value rather than by panicking or
// using goto.
package executor

import (
	"fmt"

	"github.com/dr8co/weave/code"
	"github.com/dr8co/weave/object"
	"github.com/dr8co/weave/state"
)

// SignalKind distinguishes the four ways a bytecode layer can finish.
type SignalKind int

//nolint:revive
const (
	SignalNone SignalKind = iota
	SignalReturn
	SignalBreak
	SignalContinue
)

// Signal is what a layer returns when it finishes: either nothing special
// (None), or one of the three control-flow unwinding signals.
type Signal struct {
	Kind SignalKind
	// N is the number of values left on the stack by a Return signal.
	N int
}

// None is the signal produced by a layer that ran to completion normally.
var None = Signal{Kind: SignalNone}

// breakSignal is produced by a Break opcode.
var breakSignal = Signal{Kind: SignalBreak}

// continueSignal is produced by a Continue opcode.
var continueSignal = Signal{Kind: SignalContinue}

// ReturnSignal builds the signal produced by a Return(n) opcode.
func ReturnSignal(n int) Signal { return Signal{Kind: SignalReturn, N: n} }

// RuntimeError is a fatal error raised mid-execution: a type mismatch in an
// operator, a call of a non-function, a key access on a non-table, and the
// like. It is returned up through Run, never panicked.
type RuntimeError struct {
	Op      code.Op
	Message string
}

func (e *RuntimeError) Error() string {
	return fmt.Sprintf("runtime error in %s: %s", e.Op, e.Message)
}

func runtimeErrorf(op code.Op, format string, args ...any) *RuntimeError {
	return &RuntimeError{Op: op, Message: fmt.Sprintf(format, args...)}
}

// Run executes bc as one execution layer against st, returning the
// control-flow signal it finished with and any fatal error. A fatal error
// always takes priority: once one occurs, execution of the layer stops and
// the error propagates without a meaningful signal.
func Run(bc *code.Bytecode, st *state.State) (Signal, error) {
	for _, ins := range bc.Instructions {
		switch ins.Op {
		case code.Load:
			v := st.Current().Load(ins.Name)
			if v == nil {
				v = object.Nil()
			}
			st.Push(v)

		case code.Store:
			st.Current().Store(ins.Name, st.Pop())

		case code.GetKey:
			tbl := st.Pop()
			v, err := tbl.GetKey(ins.Name)
			if err != nil {
				return None, runtimeErrorf(ins.Op, "%s", err)
			}
			st.Push(v)

		case code.SetKey:
			v := st.Pop()
			tbl := st.Pop()
			if err := tbl.SetKey(ins.Name, v); err != nil {
				return None, runtimeErrorf(ins.Op, "%s", err)
			}

		case code.PushNil:
			st.Push(object.Nil())

		case code.PushInteger:
			st.Push(object.Integer(ins.Int))

		case code.PushFloat:
			st.Push(object.Float(ins.Float))

		case code.PushString:
			st.Push(object.String(ins.Str))

		case code.PushBool:
			st.Push(object.Boolean(ins.Bool))

		case code.PushFunction:
			st.Push(object.ScriptedFunction(ins.Function, ins.NumParams))

		case code.PushTable:
			st.Push(object.NewTableValue())

		case code.BinaryOperation:
			rhs := st.Pop()
			lhs := st.Pop()
			result, err := object.BinaryOp(ins.BinaryKind, lhs, rhs)
			if err != nil {
				return None, runtimeErrorf(ins.Op, "%s", err)
			}
			if result == nil {
				result = object.Nil()
			}
			st.Push(result)

		case code.UnaryOperation:
			v := st.Pop()
			result, err := object.UnaryOp(ins.UnaryKind, v)
			if err != nil {
				return None, runtimeErrorf(ins.Op, "%s", err)
			}
			if result == nil {
				result = object.Nil()
			}
			st.Push(result)

		case code.Call:
			if err := call(st, ins.NArgs); err != nil {
				return None, err
			}

		case code.Return:
			return ReturnSignal(ins.NValues), nil

		case code.Break:
			return breakSignal, nil

		case code.Continue:
			return continueSignal, nil

		case code.If:
			sig, err := runIf(ins, st)
			if err != nil {
				return None, err
			}
			if sig.Kind != SignalNone {
				return sig, nil
			}

		case code.While:
			sig, err := runWhile(ins, st)
			if err != nil {
				return None, err
			}
			if sig.Kind != SignalNone {
				return sig, nil
			}

		case code.For:
			sig, err := runFor(ins, st)
			if err != nil {
				return None, err
			}
			if sig.Kind != SignalNone {
				return sig, nil
			}

		case code.Loop:
			sig, err := runLoop(ins, st)
			if err != nil {
				return None, err
			}
			if sig.Kind != SignalNone {
				return sig, nil
			}

		default:
			return None, runtimeErrorf(ins.Op, "unhandled opcode")
		}
	}
	return None, nil
}

func evalCondition(op code.Op, bc *code.Bytecode, st *state.State) (bool, error) {
	if _, err := Run(bc, st); err != nil {
		return false, err
	}
	v := st.Pop()
	b, ok := v.AsBool()
	if !ok {
		return false, runtimeErrorf(op, "condition must be boolean, got %s", v.Kind())
	}
	return b, nil
}

// runIf implements §4.5.1: run the condition, branch on it, and re-raise
// whichever sub-layer's signal resulted (an if/else layer never consumes a
// signal itself).
func runIf(ins code.Instruction, st *state.State) (Signal, error) {
	ok, err := evalCondition(code.If, ins.Condition, st)
	if err != nil {
		return None, err
	}
	if ok {
		return Run(ins.Body, st)
	}
	if ins.ElseBody != nil {
		return Run(ins.ElseBody, st)
	}
	return None, nil
}

// runWhile implements §4.5.2.
func runWhile(ins code.Instruction, st *state.State) (Signal, error) {
	for {
		ok, err := evalCondition(code.While, ins.Condition, st)
		if err != nil {
			return None, err
		}
		if !ok {
			return None, nil
		}

		sig, err := Run(ins.Body, st)
		if err != nil {
			return None, err
		}
		switch sig.Kind {
		case SignalBreak:
			return None, nil
		case SignalReturn:
			return sig, nil
		case SignalContinue, SignalNone:
			// loop again
		}
	}
}

// runFor implements §4.5.3.
func runFor(ins code.Instruction, st *state.State) (Signal, error) {
	if ins.Init != nil {
		if _, err := Run(ins.Init, st); err != nil {
			return None, err
		}
	}

	for {
		if ins.Condition != nil {
			ok, err := evalCondition(code.For, ins.Condition, st)
			if err != nil {
				return None, err
			}
			if !ok {
				return None, nil
			}
		}

		sig, err := Run(ins.Body, st)
		if err != nil {
			return None, err
		}
		switch sig.Kind {
		case SignalBreak:
			return None, nil
		case SignalReturn:
			return sig, nil
		case SignalContinue, SignalNone:
			if ins.Increment != nil {
				if _, err := Run(ins.Increment, st); err != nil {
					return None, err
				}
			}
		}
	}
}

// runLoop implements §4.5.4.
func runLoop(ins code.Instruction, st *state.State) (Signal, error) {
	for {
		sig, err := Run(ins.Body, st)
		if err != nil {
			return None, err
		}
		switch sig.Kind {
		case SignalBreak:
			return None, nil
		case SignalReturn:
			return sig, nil
		case SignalContinue, SignalNone:
			// restart the body
		}
	}
}

// call implements the function call protocol of §4.7 against the current
// frame of st.
func call(st *state.State, nArgs int) error {
	fn := st.Pop()
	if fn.IsNil() {
		return runtimeErrorf(code.Call, "cannot call nil value")
	}
	fnVal, ok := fn.AsFunction()
	if !ok {
		return runtimeErrorf(code.Call, "cannot call value of kind %s", fn.Kind())
	}

	args := st.PopN(nArgs) // args[0] was top of stack: the last argument in source order

	frame := st.PushFrame()
	frame.PushAll(args) // bottom-to-top: last-arg, ..., first-arg

	var m int
	if fnVal.IsNative() {
		n, err := fnVal.Native(frame, nArgs)
		if err != nil {
			st.PopFrame()
			return runtimeErrorf(code.Call, "%s: %s", fnVal.Name, err)
		}
		m = n
	} else {
		sig, err := Run(fnVal.Scripted, st)
		if err != nil {
			st.PopFrame()
			return err
		}
		if sig.Kind == SignalReturn {
			m = sig.N
		}
	}

	rets := frame.PopN(m) // top-first
	st.PopFrame()
	st.PushAll(rets)
	return nil
}
