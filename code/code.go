// Package code defines the bytecode instruction set produced by the
// compiler and interpreted by the executor.
//
// Unlike a conventional instruction set, this bytecode is not a flat,
// jump-addressed stream: control-flow instructions (If, For, While, Loop)
// carry their condition/body/else sub-bytecodes as fields, so a compiled
// program is a tree rather than a line. There is no jump patching and no
// instruction pointer arithmetic; the executor recurses into the nested
// fields directly.
package code

import (
	"fmt"
	"strings"

	"github.com/dr8co/weave/ast"
)

// Op identifies the operation an Instruction performs.
type Op int

const (
	// Load pushes the value bound to Name in the current frame or its
	// ancestors, or nil if unbound.
	//
	// Stack: [] -> [value]
	Load Op = iota

	// Store pops the top of the stack and binds it to Name in the current
	// frame.
	//
	// Stack: [v] -> []
	Store

	// GetKey pops a table and pushes the value bound to Name, or nil if
	// the table has no such field.
	//
	// Stack: [table] -> [value-or-nil]
	GetKey

	// SetKey pops a value and a table and binds the value to Name in the
	// table.
	//
	// Stack: [table, v] -> []
	SetKey

	// PushNil pushes the nil value.
	//
	// Stack: [] -> [nil]
	PushNil

	// PushInteger pushes Int.
	//
	// Stack: [] -> [value]
	PushInteger

	// PushFloat pushes Float.
	//
	// Stack: [] -> [value]
	PushFloat

	// PushString pushes Str.
	//
	// Stack: [] -> [value]
	PushString

	// PushBool pushes Bool.
	//
	// Stack: [] -> [value]
	PushBool

	// PushFunction pushes a scripted function whose body is Function.
	//
	// Stack: [] -> [value]
	PushFunction

	// PushTable pushes a fresh, empty table. A table literal lowers to a
	// PushTable followed by one SetKey per field.
	//
	// Stack: [] -> [table]
	PushTable

	// BinaryOperation pops two operands and pushes the result of applying
	// BinaryKind to them. The left operand was pushed first.
	//
	// Stack: [lhs, rhs] -> [result]
	BinaryOperation

	// UnaryOperation pops one operand and pushes the result of applying
	// UnaryKind to it.
	//
	// Stack: [v] -> [result]
	UnaryOperation

	// Call pops a callee and NArgs arguments and invokes it, per the
	// function call protocol.
	//
	// Stack: [arg0, arg1, ..., arg{n-1}, fn] -> [ret0, ..., ret{m-1}]
	Call

	// Return yields a Return(NValues) control-flow signal. The top
	// NValues values stay on the stack.
	Return

	// Break yields a Break control-flow signal.
	Break

	// Continue yields a Continue control-flow signal.
	Continue

	// If runs Condition, pops a boolean, and runs Body if true or
	// ElseBody (if present) if false. Re-raises whichever sub-layer's
	// signal, if any.
	If

	// For runs Init once (signal ignored), then repeatedly evaluates
	// Condition (absent means true), runs Body, and runs Increment before
	// the next condition check unless the iteration ended in Break or
	// Return.
	For

	// While repeatedly evaluates Condition and runs Body while it holds.
	While

	// Loop repeatedly runs Body until a Break signal.
	Loop
)

var opNames = map[Op]string{
	Load:            "Load",
	Store:           "Store",
	GetKey:          "GetKey",
	SetKey:          "SetKey",
	PushNil:         "PushNil",
	PushInteger:     "PushInteger",
	PushFloat:       "PushFloat",
	PushString:      "PushString",
	PushBool:        "PushBool",
	PushFunction:    "PushFunction",
	PushTable:       "PushTable",
	BinaryOperation: "BinaryOperation",
	UnaryOperation:  "UnaryOperation",
	Call:            "Call",
	Return:          "Return",
	Break:           "Break",
	Continue:        "Continue",
	If:              "If",
	For:             "For",
	While:           "While",
	Loop:            "Loop",
}

func (op Op) String() string {
	if name, ok := opNames[op]; ok {
		return name
	}
	return fmt.Sprintf("Op(%d)", int(op))
}

// Instruction is a single opcode together with the operand fields it uses.
// Only the fields relevant to Op are populated; the rest are zero.
type Instruction struct {
	Op Op

	// Name is used by Load, Store, GetKey, SetKey.
	Name string

	// Int is used by PushInteger.
	Int int64

	// Float is used by PushFloat.
	Float float64

	// Str is used by PushString.
	Str string

	// Bool is used by PushBool.
	Bool bool

	// Function is the lowered body used by PushFunction. NumParams
	// records its declared arity for introspection (e.g. stdlib's
	// string()); the parameter-binding Store prologue already lives
	// inside Function itself (see compiler's translator).
	Function  *Bytecode
	NumParams int

	// BinaryKind is used by BinaryOperation.
	BinaryKind ast.BinaryOperationKind

	// UnaryKind is used by UnaryOperation.
	UnaryKind ast.UnaryOperationKind

	// NArgs is used by Call.
	NArgs int

	// NValues is used by Return; it is always 0 or 1.
	NValues int

	// Condition is used by If, While, For (For's may be nil, meaning
	// "always true").
	Condition *Bytecode

	// Body is used by If, While, For, Loop.
	Body *Bytecode

	// ElseBody is used by If; nil if there is no else/elseif clause.
	ElseBody *Bytecode

	// Init is used by For; nil if the loop has no init clause.
	Init *Bytecode

	// Increment is used by For; nil if the loop has no increment clause.
	Increment *Bytecode
}

// Bytecode is an ordered sequence of instructions: one execution layer.
type Bytecode struct {
	Instructions []Instruction
}

// Append adds an instruction to the end of the bytecode.
func (b *Bytecode) Append(ins Instruction) {
	b.Instructions = append(b.Instructions, ins)
}

// String renders the bytecode tree for debugging (the CLI's --bytecode flag).
func (b *Bytecode) String() string {
	var out strings.Builder
	b.write(&out, 0)
	return out.String()
}

func (b *Bytecode) write(out *strings.Builder, depth int) {
	indent := strings.Repeat("  ", depth)
	for _, ins := range b.Instructions {
		fmt.Fprintf(out, "%s%s", indent, ins.Op)
		switch ins.Op {
		case Load, Store, GetKey, SetKey:
			fmt.Fprintf(out, " %s", ins.Name)
		case PushInteger:
			fmt.Fprintf(out, " %d", ins.Int)
		case PushFloat:
			fmt.Fprintf(out, " %g", ins.Float)
		case PushString:
			fmt.Fprintf(out, " %q", ins.Str)
		case PushBool:
			fmt.Fprintf(out, " %t", ins.Bool)
		case BinaryOperation:
			fmt.Fprintf(out, " kind=%d", ins.BinaryKind)
		case UnaryOperation:
			fmt.Fprintf(out, " kind=%d", ins.UnaryKind)
		case Call:
			fmt.Fprintf(out, " nargs=%d", ins.NArgs)
		case Return:
			fmt.Fprintf(out, " n=%d", ins.NValues)
		}
		out.WriteByte('\n')

		switch ins.Op {
		case PushFunction:
			fmt.Fprintf(out, "%s  params=%d\n", indent, ins.NumParams)
			if ins.Function != nil {
				ins.Function.write(out, depth+1)
			}
		case If:
			fmt.Fprintf(out, "%s  condition:\n", indent)
			ins.Condition.write(out, depth+2)
			fmt.Fprintf(out, "%s  body:\n", indent)
			ins.Body.write(out, depth+2)
			if ins.ElseBody != nil {
				fmt.Fprintf(out, "%s  else:\n", indent)
				ins.ElseBody.write(out, depth+2)
			}
		case While:
			fmt.Fprintf(out, "%s  condition:\n", indent)
			ins.Condition.write(out, depth+2)
			fmt.Fprintf(out, "%s  body:\n", indent)
			ins.Body.write(out, depth+2)
		case For:
			if ins.Init != nil {
				fmt.Fprintf(out, "%s  init:\n", indent)
				ins.Init.write(out, depth+2)
			}
			if ins.Condition != nil {
				fmt.Fprintf(out, "%s  condition:\n", indent)
				ins.Condition.write(out, depth+2)
			}
			if ins.Increment != nil {
				fmt.Fprintf(out, "%s  increment:\n", indent)
				ins.Increment.write(out, depth+2)
			}
			fmt.Fprintf(out, "%s  body:\n", indent)
			ins.Body.write(out, depth+2)
		case Loop:
			fmt.Fprintf(out, "%s  body:\n", indent)
			ins.Body.write(out, depth+2)
		}
	}
}
