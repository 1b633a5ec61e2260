package compiler

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dr8co/weave/ast"
	"github.com/dr8co/weave/code"
	"github.com/dr8co/weave/lexer"
	"github.com/dr8co/weave/parser"
)

func compileSource(t *testing.T, src string) *code.Bytecode {
	t.Helper()
	p := parser.New(lexer.New(src))
	prog := p.ParseProgram()
	require.Empty(t, p.Errors())
	c := New()
	bc := c.CompileProgram(prog)
	require.Empty(t, c.Errors())
	return bc
}

func TestAssignmentLowersToStore(t *testing.T) {
	bc := compileSource(t, "x = 5;")
	require.Len(t, bc.Instructions, 2)
	require.Equal(t, code.PushInteger, bc.Instructions[0].Op)
	require.Equal(t, code.Store, bc.Instructions[1].Op)
	require.Equal(t, "x", bc.Instructions[1].Name)
}

func TestMemberAssignmentLowersToLoadThenSetKey(t *testing.T) {
	bc := compileSource(t, "t.field = 1;")
	require.Len(t, bc.Instructions, 3)
	require.Equal(t, code.Load, bc.Instructions[0].Op)
	require.Equal(t, "t", bc.Instructions[0].Name)
	require.Equal(t, code.PushInteger, bc.Instructions[1].Op)
	require.Equal(t, code.SetKey, bc.Instructions[2].Op)
	require.Equal(t, "field", bc.Instructions[2].Name)
}

func TestIfStatementLowersConditionBodyElse(t *testing.T) {
	bc := compileSource(t, `if a { x = 1; } else { x = 2; }`)
	require.Len(t, bc.Instructions, 1)
	ins := bc.Instructions[0]
	require.Equal(t, code.If, ins.Op)
	require.NotNil(t, ins.Condition)
	require.NotNil(t, ins.Body)
	require.NotNil(t, ins.ElseBody)
}

func TestForStatementLowersAllThreeClauses(t *testing.T) {
	bc := compileSource(t, "for i = 0; i < 5; i = i + 1 { x = x + i; }")
	ins := bc.Instructions[0]
	require.Equal(t, code.For, ins.Op)
	require.NotNil(t, ins.Init)
	require.NotNil(t, ins.Condition)
	require.NotNil(t, ins.Increment)
	require.NotNil(t, ins.Body)
}

func TestForStatementWithoutClausesLeavesThemNil(t *testing.T) {
	bc := compileSource(t, "for ;; { break; }")
	ins := bc.Instructions[0]
	require.Nil(t, ins.Init)
	require.Nil(t, ins.Condition)
	require.Nil(t, ins.Increment)
}

func TestBinaryExpressionLowersOperandsThenOp(t *testing.T) {
	bc := compileSource(t, "x = 1 + 2;")
	// PushInteger 1, PushInteger 2, BinaryOperation, Store x
	require.Len(t, bc.Instructions, 4)
	require.Equal(t, code.PushInteger, bc.Instructions[0].Op)
	require.Equal(t, int64(1), bc.Instructions[0].Int)
	require.Equal(t, code.PushInteger, bc.Instructions[1].Op)
	require.Equal(t, int64(2), bc.Instructions[1].Int)
	require.Equal(t, code.BinaryOperation, bc.Instructions[2].Op)
	require.Equal(t, ast.Add, bc.Instructions[2].BinaryKind)
}

func TestFunctionLiteralEmitsDeclarationOrderStorePrologue(t *testing.T) {
	bc := compileSource(t, "f = fn(a, b) { return a - b; };")
	fnIns := bc.Instructions[0]
	require.Equal(t, code.PushFunction, fnIns.Op)
	require.Equal(t, 2, fnIns.NumParams)

	body := fnIns.Function
	require.Equal(t, code.Store, body.Instructions[0].Op)
	require.Equal(t, "a", body.Instructions[0].Name)
	require.Equal(t, code.Store, body.Instructions[1].Op)
	require.Equal(t, "b", body.Instructions[1].Name)
}

func TestFunctionCallLowersArgumentsThenLoadThenCall(t *testing.T) {
	bc := compileSource(t, "f(1, 2);")
	require.Len(t, bc.Instructions, 4)
	require.Equal(t, code.PushInteger, bc.Instructions[0].Op)
	require.Equal(t, code.PushInteger, bc.Instructions[1].Op)
	require.Equal(t, code.Load, bc.Instructions[2].Op)
	require.Equal(t, "f", bc.Instructions[2].Name)
	require.Equal(t, code.Call, bc.Instructions[3].Op)
	require.Equal(t, 2, bc.Instructions[3].NArgs)
}

func TestTableLiteralRoundTripsThroughScratchLocal(t *testing.T) {
	bc := compileSource(t, `t = { "a": 1, "b": 2 };`)
	// PushTable, Store $table<n>, [Load $table<n>, PushInteger 1, SetKey a],
	// [Load $table<n>, PushInteger 2, SetKey b], Load $table<n>, Store t
	require.Equal(t, code.PushTable, bc.Instructions[0].Op)
	require.Equal(t, code.Store, bc.Instructions[1].Op)
	scratch := bc.Instructions[1].Name
	require.True(t, strings.HasPrefix(scratch, tableScratchPrefix))

	require.Equal(t, code.Load, bc.Instructions[2].Op)
	require.Equal(t, scratch, bc.Instructions[2].Name)
	require.Equal(t, code.SetKey, bc.Instructions[4].Op)
	require.Equal(t, "a", bc.Instructions[4].Name)

	require.Equal(t, code.Load, bc.Instructions[5].Op)
	require.Equal(t, code.SetKey, bc.Instructions[7].Op)
	require.Equal(t, "b", bc.Instructions[7].Name)

	require.Equal(t, code.Load, bc.Instructions[8].Op)
	require.Equal(t, scratch, bc.Instructions[8].Name)

	require.Equal(t, code.Store, bc.Instructions[9].Op)
	require.Equal(t, "t", bc.Instructions[9].Name)
}

func TestNestedTableLiteralUsesDistinctScratchLocals(t *testing.T) {
	bc := compileSource(t, `x = { "a": 1, "b": { "c": 2 } };`)

	var scratches []string
	var walk func(b *code.Bytecode)
	walk = func(b *code.Bytecode) {
		for _, ins := range b.Instructions {
			if ins.Op == code.Store && strings.HasPrefix(ins.Name, tableScratchPrefix) {
				scratches = append(scratches, ins.Name)
			}
			if ins.Function != nil {
				walk(ins.Function)
			}
		}
	}
	walk(bc)

	require.Len(t, scratches, 2, "outer and inner literal each get their own Store")
	require.NotEqual(t, scratches[0], scratches[1], "nested literals must not share a scratch local")
}

func TestMemberExpressionReadLowersToGetKey(t *testing.T) {
	bc := compileSource(t, "print(t.field);")
	// PushExpr(t.field): Load t, GetKey field -- then Load print, Call
	require.Equal(t, code.Load, bc.Instructions[0].Op)
	require.Equal(t, "t", bc.Instructions[0].Name)
	require.Equal(t, code.GetKey, bc.Instructions[1].Op)
	require.Equal(t, "field", bc.Instructions[1].Name)
}

func TestUnhandledStatementReportsCompilerError(t *testing.T) {
	c := New()
	bc := &code.Bytecode{}
	c.compileStatement(nil, bc)
	require.NotEmpty(t, c.Errors())
}
