package parser

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dr8co/weave/ast"
	"github.com/dr8co/weave/lexer"
)

func parseProgram(t *testing.T, input string) *ast.Program {
	t.Helper()
	p := New(lexer.New(input))
	prog := p.ParseProgram()
	require.Empty(t, p.Errors(), "unexpected parse errors: %v", p.Errors())
	return prog
}

func TestAssignmentStatement(t *testing.T) {
	prog := parseProgram(t, "x = 5;")
	require.Len(t, prog.Statements, 1)
	stmt, ok := prog.Statements[0].(*ast.Assignment)
	require.True(t, ok)
	require.Equal(t, "x", stmt.Name.Value)
	require.Empty(t, stmt.Member)
	num, ok := stmt.Value.(*ast.NumberLiteral)
	require.True(t, ok)
	require.Equal(t, ast.IntegerNumber, num.Kind)
	require.Equal(t, int64(5), num.Int)
}

func TestMemberAssignmentStatement(t *testing.T) {
	prog := parseProgram(t, "t.field = 1;")
	stmt, ok := prog.Statements[0].(*ast.Assignment)
	require.True(t, ok)
	require.Equal(t, "t", stmt.Name.Value)
	require.Equal(t, "field", stmt.Member)
}

func TestExpressionStatementIsNotMisreadAsAssignment(t *testing.T) {
	prog := parseProgram(t, "print(x);")
	_, ok := prog.Statements[0].(*ast.ExpressionStatement)
	require.True(t, ok)
}

func TestMemberExpressionRead(t *testing.T) {
	prog := parseProgram(t, "print(t.field);")
	stmt := prog.Statements[0].(*ast.ExpressionStatement)
	call := stmt.Expression.(*ast.FunctionCall)
	member, ok := call.Arguments[0].(*ast.MemberExpression)
	require.True(t, ok)
	require.Equal(t, "field", member.Member)
}

func TestOperatorPrecedence(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"a + b * c;", "(a + (b * c))"},
		{"a * b + c;", "((a * b) + c)"},
		{"a + b - c;", "((a + b) - c)"},
		{"a < b == c > d;", "(((a < b) == c) > d)"},
		{"a and b or c;", "((a and b) or c)"},
		{"-a * b;", "((-a) * b)"},
		{"!a;", "(!a)"},
		{"(a + b) * c;", "((a + b) * c)"},
	}
	for _, tt := range tests {
		prog := parseProgram(t, tt.input)
		stmt := prog.Statements[0].(*ast.ExpressionStatement)
		require.Equal(t, tt.expected, stmt.Expression.String())
	}
}

func TestIfElseifElseDesugaring(t *testing.T) {
	input := `if a { x = 1; } elseif b { x = 2; } else { x = 3; }`
	prog := parseProgram(t, input)
	outer, ok := prog.Statements[0].(*ast.IfStatement)
	require.True(t, ok)
	require.NotNil(t, outer.Else)
	require.Len(t, outer.Else.Statements, 1)

	inner, ok := outer.Else.Statements[0].(*ast.IfStatement)
	require.True(t, ok, "elseif should desugar into a nested IfStatement")
	require.NotNil(t, inner.Else)
}

func TestForStatementOptionalClauses(t *testing.T) {
	prog := parseProgram(t, "for i = 0; i < 5; i = i + 1 { x = x + i; }")
	fs, ok := prog.Statements[0].(*ast.ForStatement)
	require.True(t, ok)
	require.NotNil(t, fs.Init)
	require.NotNil(t, fs.Condition)
	require.NotNil(t, fs.Increment)

	prog2 := parseProgram(t, "for ;; { break; }")
	fs2 := prog2.Statements[0].(*ast.ForStatement)
	require.Nil(t, fs2.Init)
	require.Nil(t, fs2.Condition)
	require.Nil(t, fs2.Increment)
}

func TestWhileAndLoopStatements(t *testing.T) {
	prog := parseProgram(t, "while x < 3 { x = x + 1; }")
	_, ok := prog.Statements[0].(*ast.WhileStatement)
	require.True(t, ok)

	prog2 := parseProgram(t, "loop { break; }")
	_, ok = prog2.Statements[0].(*ast.LoopStatement)
	require.True(t, ok)
}

func TestFunctionLiteralAndCall(t *testing.T) {
	prog := parseProgram(t, "f = fn(a, b) { return a - b; }; f(10, 3);")
	require.Len(t, prog.Statements, 2)

	assign := prog.Statements[0].(*ast.Assignment)
	fn, ok := assign.Value.(*ast.FunctionLiteral)
	require.True(t, ok)
	require.Len(t, fn.Parameters, 2)
	require.Equal(t, "a", fn.Parameters[0].Value)
	require.Equal(t, "b", fn.Parameters[1].Value)

	exprStmt := prog.Statements[1].(*ast.ExpressionStatement)
	call, ok := exprStmt.Expression.(*ast.FunctionCall)
	require.True(t, ok)
	require.Equal(t, "f", call.Identifier)
	require.Len(t, call.Arguments, 2)
}

func TestCallRequiresIdentifierCallee(t *testing.T) {
	p := New(lexer.New("(fn(){})();"))
	p.ParseProgram()
	require.NotEmpty(t, p.Errors())
}

func TestTableLiteral(t *testing.T) {
	prog := parseProgram(t, `t = { "a": 1, "b": 2 };`)
	assign := prog.Statements[0].(*ast.Assignment)
	tbl, ok := assign.Value.(*ast.TableLiteral)
	require.True(t, ok)
	require.Equal(t, []string{"a", "b"}, tbl.Keys)
	require.Len(t, tbl.Values, 2)
}

func TestReturnVariants(t *testing.T) {
	prog := parseProgram(t, "return;")
	ret := prog.Statements[0].(*ast.ReturnStatement)
	require.Nil(t, ret.Value)

	prog2 := parseProgram(t, "return 5;")
	ret2 := prog2.Statements[0].(*ast.ReturnStatement)
	require.NotNil(t, ret2.Value)
}

func TestNumberLiteralKinds(t *testing.T) {
	prog := parseProgram(t, "x = 0x1F; y = 3.5;")
	xStmt := prog.Statements[0].(*ast.Assignment)
	num := xStmt.Value.(*ast.NumberLiteral)
	require.Equal(t, ast.IntegerNumber, num.Kind)
	require.Equal(t, int64(31), num.Int)

	yStmt := prog.Statements[1].(*ast.Assignment)
	fnum := yStmt.Value.(*ast.NumberLiteral)
	require.Equal(t, ast.FloatNumber, fnum.Kind)
	require.InDelta(t, 3.5, fnum.Float, 0.0001)
}
