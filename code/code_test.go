package code

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOpString(t *testing.T) {
	require.Equal(t, "Load", Load.String())
	require.Equal(t, "PushTable", PushTable.String())
	require.Contains(t, Op(999).String(), "Op(999)")
}

func TestBytecodeStringRendersNestedControlFlow(t *testing.T) {
	cond := &Bytecode{Instructions: []Instruction{{Op: PushBool, Bool: true}}}
	body := &Bytecode{Instructions: []Instruction{{Op: PushInteger, Int: 1}}}

	bc := &Bytecode{}
	bc.Append(Instruction{Op: If, Condition: cond, Body: body})

	out := bc.String()
	require.Contains(t, out, "If")
	require.Contains(t, out, "condition:")
	require.Contains(t, out, "body:")
	require.Contains(t, out, "PushBool true")
	require.Contains(t, out, "PushInteger 1")
}

func TestAppendAccumulatesInstructions(t *testing.T) {
	bc := &Bytecode{}
	bc.Append(Instruction{Op: PushNil})
	bc.Append(Instruction{Op: Store, Name: "x"})
	require.Len(t, bc.Instructions, 2)
	require.Equal(t, PushNil, bc.Instructions[0].Op)
	require.Equal(t, "x", bc.Instructions[1].Name)
}
