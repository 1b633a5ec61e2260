// Package compiler lowers a parsed program into the tree-shaped bytecode
// the executor runs.
//
// Unlike a conventional compiler targeting a flat, jump-addressed
// instruction stream, this translator's job is shape-preserving: an
// ast.IfStatement becomes a code.Instruction carrying its own Condition/
// Body/ElseBody sub-bytecodes, not a sequence of conditional jumps. There
// is no constant pool and no symbol table — identifiers are resolved at
// run time by the executor's frame-chain lookup, not at compile time.
package compiler

import (
	"fmt"

	"github.com/dr8co/weave/ast"
	"github.com/dr8co/weave/code"
)

// Compiler lowers AST nodes into bytecode instructions appended to the
// current layer. Each nested execution layer (a block, a function body, a
// loop body) gets its own *code.Bytecode; the compiler itself holds only
// the errors it accumulates and a counter for naming table-literal
// scratch locals.
type Compiler struct {
	errors       []string
	tableScratch int
}

// New creates a Compiler.
func New() *Compiler {
	return &Compiler{}
}

// Errors returns any errors accumulated while compiling.
func (c *Compiler) Errors() []string {
	return c.errors
}

func (c *Compiler) errorf(format string, args ...any) {
	c.errors = append(c.errors, fmt.Sprintf(format, args...))
}

// CompileProgram lowers an entire program into a single top-level bytecode
// layer.
func (c *Compiler) CompileProgram(prog *ast.Program) *code.Bytecode {
	bc := &code.Bytecode{}
	for _, stmt := range prog.Statements {
		c.compileStatement(stmt, bc)
	}
	return bc
}

// compileBlock lowers a brace-delimited statement list into its own
// bytecode layer (used for if/while/for/loop bodies and function bodies).
func (c *Compiler) compileBlock(block *ast.BlockStatement) *code.Bytecode {
	bc := &code.Bytecode{}
	for _, stmt := range block.Statements {
		c.compileStatement(stmt, bc)
	}
	return bc
}

// compileExpressionLayer lowers a single expression into its own bytecode
// layer, for use as an If/While/For condition.
func (c *Compiler) compileExpressionLayer(expr ast.Expression) *code.Bytecode {
	bc := &code.Bytecode{}
	c.compileExpression(expr, bc)
	return bc
}

func (c *Compiler) compileStatement(stmt ast.Statement, bc *code.Bytecode) {
	switch s := stmt.(type) {
	case *ast.Assignment:
		if s.Member != "" {
			// SetKey expects [table, v]: the table goes on first.
			bc.Append(code.Instruction{Op: code.Load, Name: s.Name.Value})
			c.compileExpression(s.Value, bc)
			bc.Append(code.Instruction{Op: code.SetKey, Name: s.Member})
		} else {
			c.compileExpression(s.Value, bc)
			bc.Append(code.Instruction{Op: code.Store, Name: s.Name.Value})
		}

	case *ast.ExpressionStatement:
		// No OpPop exists in this instruction set: an expression statement
		// deliberately leaves its value on the current frame's operand
		// stack.
		if s.Expression != nil {
			c.compileExpression(s.Expression, bc)
		}

	case *ast.ReturnStatement:
		if s.Value != nil {
			c.compileExpression(s.Value, bc)
			bc.Append(code.Instruction{Op: code.Return, NValues: 1})
		} else {
			bc.Append(code.Instruction{Op: code.Return, NValues: 0})
		}

	case *ast.BreakStatement:
		bc.Append(code.Instruction{Op: code.Break})

	case *ast.ContinueStatement:
		bc.Append(code.Instruction{Op: code.Continue})

	case *ast.IfStatement:
		ins := code.Instruction{
			Op:        code.If,
			Condition: c.compileExpressionLayer(s.Condition),
			Body:      c.compileBlock(s.Body),
		}
		if s.Else != nil {
			ins.ElseBody = c.compileBlock(s.Else)
		}
		bc.Append(ins)

	case *ast.WhileStatement:
		bc.Append(code.Instruction{
			Op:        code.While,
			Condition: c.compileExpressionLayer(s.Condition),
			Body:      c.compileBlock(s.Body),
		})

	case *ast.ForStatement:
		ins := code.Instruction{Op: code.For, Body: c.compileBlock(s.Body)}
		if s.Init != nil {
			ins.Init = c.compileAssignmentLayer(s.Init)
		}
		if s.Condition != nil {
			ins.Condition = c.compileExpressionLayer(s.Condition)
		}
		if s.Increment != nil {
			ins.Increment = c.compileAssignmentLayer(s.Increment)
		}
		bc.Append(ins)

	case *ast.LoopStatement:
		bc.Append(code.Instruction{Op: code.Loop, Body: c.compileBlock(s.Body)})

	case *ast.BlockStatement:
		for _, inner := range s.Statements {
			c.compileStatement(inner, bc)
		}

	default:
		c.errorf("compiler: unhandled statement type %T", stmt)
	}
}

// compileAssignmentLayer lowers a for-loop's init/increment clause into its
// own bytecode layer.
func (c *Compiler) compileAssignmentLayer(a *ast.Assignment) *code.Bytecode {
	bc := &code.Bytecode{}
	c.compileStatement(a, bc)
	return bc
}

func (c *Compiler) compileExpression(expr ast.Expression, bc *code.Bytecode) {
	switch e := expr.(type) {
	case *ast.Identifier:
		bc.Append(code.Instruction{Op: code.Load, Name: e.Value})

	case *ast.NumberLiteral:
		if e.Kind == ast.IntegerNumber {
			bc.Append(code.Instruction{Op: code.PushInteger, Int: e.Int})
		} else {
			bc.Append(code.Instruction{Op: code.PushFloat, Float: e.Float})
		}

	case *ast.StringLiteral:
		bc.Append(code.Instruction{Op: code.PushString, Str: e.Value})

	case *ast.BooleanLiteral:
		bc.Append(code.Instruction{Op: code.PushBool, Bool: e.Value})

	case *ast.NilLiteral:
		bc.Append(code.Instruction{Op: code.PushNil})

	case *ast.UnaryExpression:
		c.compileExpression(e.Operand, bc)
		bc.Append(code.Instruction{Op: code.UnaryOperation, UnaryKind: e.Kind})

	case *ast.BinaryExpression:
		c.compileExpression(e.Left, bc)
		c.compileExpression(e.Right, bc)
		bc.Append(code.Instruction{Op: code.BinaryOperation, BinaryKind: e.Kind})

	case *ast.MemberExpression:
		c.compileExpression(e.Target, bc)
		bc.Append(code.Instruction{Op: code.GetKey, Name: e.Member})

	case *ast.TableLiteral:
		// There is no Dup opcode, and SetKey consumes its table argument,
		// so each field is set by round-tripping the fresh table through
		// a synthetic local ("$table<n>", unreachable from source since
		// the lexer never produces identifiers containing "$") rather
		// than juggling it on the operand stack. A table literal nested
		// inside a field's value expression compiles its own round trip
		// before the enclosing literal's SetKey runs, and frame locals
		// are a flat map (state.Frame.locals), so a shared scratch name
		// would have the inner literal's Store clobber the outer one's
		// binding. c.tableScratch gives every literal its own name so
		// nested round trips can never collide.
		name := c.nextTableScratch()
		bc.Append(code.Instruction{Op: code.PushTable})
		bc.Append(code.Instruction{Op: code.Store, Name: name})
		for i, key := range e.Keys {
			bc.Append(code.Instruction{Op: code.Load, Name: name})
			c.compileExpression(e.Values[i], bc)
			bc.Append(code.Instruction{Op: code.SetKey, Name: key})
		}
		bc.Append(code.Instruction{Op: code.Load, Name: name})

	case *ast.FunctionCall:
		for _, arg := range e.Arguments {
			c.compileExpression(arg, bc)
		}
		bc.Append(code.Instruction{Op: code.Load, Name: e.Identifier})
		bc.Append(code.Instruction{Op: code.Call, NArgs: len(e.Arguments)})

	case *ast.FunctionLiteral:
		body := &code.Bytecode{}
		for _, param := range e.Parameters {
			// Declared order: the first Store binds the value on top of
			// the new frame's stack (the first declared parameter's
			// argument, per the call protocol's stack arrangement) to the
			// first parameter name, and so on.
			body.Append(code.Instruction{Op: code.Store, Name: param.Value})
		}
		for _, stmt := range e.Body.Statements {
			c.compileStatement(stmt, body)
		}
		bc.Append(code.Instruction{Op: code.PushFunction, Function: body, NumParams: len(e.Parameters)})

	default:
		c.errorf("compiler: unhandled expression type %T", expr)
	}
}

// tableScratchPrefix prefixes every synthetic table-literal scratch local.
// The "$" makes it unrepresentable by any identifier the lexer can produce.
const tableScratchPrefix = "$table"

// nextTableScratch returns a scratch local name not used by any other table
// literal compiled so far, so nested literals never share a binding.
func (c *Compiler) nextTableScratch() string {
	name := fmt.Sprintf("%s%d", tableScratchPrefix, c.tableScratch)
	c.tableScratch++
	return name
}
