package executor_test

import (
	"bytes"
	"io"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dr8co/weave/ast"
	"github.com/dr8co/weave/code"
	"github.com/dr8co/weave/compiler"
	"github.com/dr8co/weave/executor"
	"github.com/dr8co/weave/object"
	"github.com/dr8co/weave/state"
	"github.com/dr8co/weave/stdlib"
)

func newTestState(t *testing.T) *state.State {
	t.Helper()
	st := state.New()
	stdlib.Register(st)
	return st
}

func captureStdout(t *testing.T, fn func()) string {
	t.Helper()
	orig := os.Stdout
	r, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stdout = w

	fn()

	require.NoError(t, w.Close())
	os.Stdout = orig

	var buf bytes.Buffer
	_, err = io.Copy(&buf, r)
	require.NoError(t, err)
	return buf.String()
}

func run(t *testing.T, st *state.State, src string) {
	t.Helper()
	_, err := compiler.Execute(st, src)
	require.NoError(t, err)
}

func TestArithmeticPrecedenceEndToEnd(t *testing.T) {
	st := newTestState(t)
	out := captureStdout(t, func() {
		run(t, st, "x = (5+5)*5; print(x);")
	})
	require.Equal(t, "50\n", out)
}

func TestFunctionCallEndToEnd(t *testing.T) {
	st := newTestState(t)
	out := captureStdout(t, func() {
		run(t, st, "fn = fn(a,b) { return a - b; }; print(fn(10,3));")
	})
	require.Equal(t, "7\n", out)
}

func TestForLoopAccumulationEndToEnd(t *testing.T) {
	st := newTestState(t)
	out := captureStdout(t, func() {
		run(t, st, "n = 0; for i = 0; i < 5; i = i + 1 { n = n + i; }; print(n);")
	})
	require.Equal(t, "10\n", out)
}

func TestWhileLoopContinueSkipsPrintEndToEnd(t *testing.T) {
	st := newTestState(t)
	out := captureStdout(t, func() {
		run(t, st, `i = 0;
while i < 3 {
	if i == 1 { i = i + 1; continue; }
	print(i);
	i = i + 1;
}`)
	})
	require.Equal(t, "0\n2\n", out)
}

func TestRecursiveFunctionEndToEnd(t *testing.T) {
	st := newTestState(t)
	out := captureStdout(t, func() {
		run(t, st, `f = fn(x) { if x <= 1 { return 1; } return x * f(x - 1); };
print(f(5));`)
	})
	require.Equal(t, "120\n", out)
}

func TestStdlibCoercionEndToEnd(t *testing.T) {
	st := newTestState(t)
	out := captureStdout(t, func() {
		run(t, st, `print(int("42") + float("3.5"));`)
	})
	require.Equal(t, "45.5\n", out)
}

func TestIfElseBranchSelection(t *testing.T) {
	st := newTestState(t)
	out := captureStdout(t, func() {
		run(t, st, `if false { print("a"); } elseif false { print("b"); } else { print("c"); }`)
	})
	require.Equal(t, "c\n", out)
}

func TestBreakStopsLoopStatement(t *testing.T) {
	st := newTestState(t)
	out := captureStdout(t, func() {
		run(t, st, `n = 0; loop { n = n + 1; if n == 3 { break; } }; print(n);`)
	})
	require.Equal(t, "3\n", out)
}

func TestNestedTableLiteralEndToEnd(t *testing.T) {
	st := newTestState(t)
	run(t, st, `x = { "a": 1, "b": { "c": 2 } };`)

	v := st.Current().Load("x")
	require.NotNil(t, v)

	a, err := v.GetKey("a")
	require.NoError(t, err)
	ai, ok := a.AsInteger()
	require.True(t, ok)
	require.Equal(t, int64(1), ai, "outer field must not be clobbered by the nested literal")

	b, err := v.GetKey("b")
	require.NoError(t, err)
	require.Equal(t, object.KindTable, b.Kind())

	c, err := b.GetKey("c")
	require.NoError(t, err)
	ci, ok := c.AsInteger()
	require.True(t, ok)
	require.Equal(t, int64(2), ci)
}

func TestMemberAssignmentThenReadEndToEnd(t *testing.T) {
	st := newTestState(t)
	run(t, st, `t = { "a": 1 }; t.a = 2;`)

	v := st.Current().Load("t")
	require.NotNil(t, v)
	a, err := v.GetKey("a")
	require.NoError(t, err)
	ai, ok := a.AsInteger()
	require.True(t, ok)
	require.Equal(t, int64(2), ai, "t.a = 2 must overwrite the field in place")
}

func TestTopLevelReturnValueIsReportedByExecute(t *testing.T) {
	st := newTestState(t)
	n, err := compiler.Execute(st, "return 9;")
	require.NoError(t, err)
	require.Equal(t, 1, n)
	v := st.Current().Peek()
	i, _ := v.AsInteger()
	require.Equal(t, int64(9), i)
}

func TestSignalBreakPropagatesOutOfBody(t *testing.T) {
	bc := &code.Bytecode{}
	body := &code.Bytecode{Instructions: []code.Instruction{{Op: code.Break}}}
	bc.Append(code.Instruction{Op: code.Loop, Body: body})

	sig, err := executor.Run(bc, state.New())
	require.NoError(t, err)
	require.Equal(t, executor.None, sig, "Loop itself consumes Break and reports None")
}

func TestSignalReturnPropagatesThroughNestedIf(t *testing.T) {
	// if true { return 1; }
	thenBody := &code.Bytecode{Instructions: []code.Instruction{
		{Op: code.PushInteger, Int: 1},
		{Op: code.Return, NValues: 1},
	}}
	cond := &code.Bytecode{Instructions: []code.Instruction{{Op: code.PushBool, Bool: true}}}
	bc := &code.Bytecode{}
	bc.Append(code.Instruction{Op: code.If, Condition: cond, Body: thenBody})

	st := state.New()
	sig, err := executor.Run(bc, st)
	require.NoError(t, err)
	require.Equal(t, executor.SignalReturn, sig.Kind)
	require.Equal(t, 1, sig.N)
}

func TestRuntimeErrorFromBadCondition(t *testing.T) {
	// if 5 { ... } -- condition must be boolean
	cond := &code.Bytecode{Instructions: []code.Instruction{{Op: code.PushInteger, Int: 5}}}
	body := &code.Bytecode{}
	bc := &code.Bytecode{}
	bc.Append(code.Instruction{Op: code.If, Condition: cond, Body: body})

	_, err := executor.Run(bc, state.New())
	require.Error(t, err)
	var rerr *executor.RuntimeError
	require.ErrorAs(t, err, &rerr)
}

func TestCallOfNilIsFatal(t *testing.T) {
	bc := &code.Bytecode{}
	bc.Append(code.Instruction{Op: code.PushNil})
	bc.Append(code.Instruction{Op: code.Call, NArgs: 0})

	_, err := executor.Run(bc, state.New())
	require.Error(t, err)
}

func TestNativeCallRoundTripsArgsAndReturn(t *testing.T) {
	st := state.New()
	st.SetGlobal("double", object.NativeFunction("double", func(ops object.StateOps, n int) (int, error) {
		v := ops.Pop()
		i, _ := v.AsInteger()
		ops.Push(object.Integer(i * 2))
		return 1, nil
	}))

	bc := &code.Bytecode{}
	bc.Append(code.Instruction{Op: code.PushInteger, Int: 21})
	bc.Append(code.Instruction{Op: code.Load, Name: "double"})
	bc.Append(code.Instruction{Op: code.Call, NArgs: 1})

	_, err := executor.Run(bc, st)
	require.NoError(t, err)

	v := st.Pop()
	i, _ := v.AsInteger()
	require.Equal(t, int64(42), i)
}

func TestForLoopIncrementSkippedOnBreak(t *testing.T) {
	// for i = 0; i < 10; i = i + 1 { if i == 2 { break; } i = i + 1; }
	// The break fires with i == 2; had the increment run after it, i would
	// end at 3.
	st := state.New()
	innerIf := code.Instruction{
		Op: code.If,
		Condition: &code.Bytecode{Instructions: []code.Instruction{
			{Op: code.Load, Name: "i"},
			{Op: code.PushInteger, Int: 2},
			{Op: code.BinaryOperation, BinaryKind: ast.Equal},
		}},
		Body: &code.Bytecode{Instructions: []code.Instruction{{Op: code.Break}}},
	}
	body := &code.Bytecode{Instructions: []code.Instruction{
		innerIf,
		{Op: code.Load, Name: "i"},
		{Op: code.PushInteger, Int: 1},
		{Op: code.BinaryOperation, BinaryKind: ast.Add},
		{Op: code.Store, Name: "i"},
	}}
	forIns := code.Instruction{
		Op:   code.For,
		Init: &code.Bytecode{Instructions: []code.Instruction{{Op: code.PushInteger, Int: 0}, {Op: code.Store, Name: "i"}}},
		Condition: &code.Bytecode{Instructions: []code.Instruction{
			{Op: code.Load, Name: "i"},
			{Op: code.PushInteger, Int: 10},
			{Op: code.BinaryOperation, BinaryKind: ast.LessThan},
		}},
		Increment: &code.Bytecode{Instructions: []code.Instruction{
			{Op: code.Load, Name: "i"}, {Op: code.PushInteger, Int: 1}, {Op: code.BinaryOperation, BinaryKind: ast.Add}, {Op: code.Store, Name: "i"},
		}},
		Body: body,
	}
	bc := &code.Bytecode{}
	bc.Append(forIns)

	_, err := executor.Run(bc, st)
	require.NoError(t, err)

	v := st.Current().Load("i")
	i, _ := v.AsInteger()
	require.Equal(t, int64(2), i)
}
