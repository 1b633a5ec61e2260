// Package object defines the runtime value model for the weave scripting
// language: primitives, tables, and functions, plus the arithmetic,
// comparison, logical, and equality operations over them.
//
// A Value is a pointer to a mutable struct rather than an open interface of
// concrete types (contrast the teacher's Object interface): §4.3 of the
// originating design centralizes type coercion in one place, so a single
// closed, tagged type is the natural fit, and Go's garbage collector gives
// the shared-mutable-cell ownership the data model calls for without any
// reference counting of our own.
package object

import (
	"fmt"
	"math"
	"reflect"
	"strconv"

	"github.com/dr8co/weave/ast"
	"github.com/dr8co/weave/code"
)

// Kind identifies the content a Value currently holds.
type Kind int

//nolint:revive
const (
	KindNil Kind = iota
	KindInteger
	KindFloat
	KindString
	KindBoolean
	KindFunction
	KindTable
)

func (k Kind) String() string {
	switch k {
	case KindNil:
		return "nil"
	case KindInteger:
		return "integer"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindBoolean:
		return "boolean"
	case KindFunction:
		return "function"
	case KindTable:
		return "table"
	default:
		return "unknown"
	}
}

// StateOps is the slice of state.State behavior a native function needs:
// push/pop against its own frame's operand stack. Kept as an interface
// here, rather than importing the state package directly, since state
// itself depends on Value — a direct import would cycle.
type StateOps interface {
	Push(v *Value)
	Pop() *Value
}

// NativeFunc is the ABI for a host-implemented global: given the state
// operations for its own (freshly pushed) frame and its argument count, it
// pops its arguments, does its work, pushes its results, and reports how
// many it pushed.
type NativeFunc func(st StateOps, nArgs int) (nResults int, err error)

// Function is either a scripted function (its body is bytecode produced by
// the translator) or a native one backed by a Go func.
type Function struct {
	// Scripted holds the function body; nil for native functions.
	Scripted *code.Bytecode

	// NumParams is the function's declared arity.
	NumParams int

	// Native backs the function when Scripted is nil.
	Native NativeFunc

	// Name identifies a native function for display. Identity comparison
	// uses the Go func's code pointer instead (see functionsEqual), since
	// Go func values are not directly comparable.
	Name string
}

// IsNative reports whether f is backed by a Go function rather than
// bytecode.
func (f *Function) IsNative() bool { return f.Scripted == nil }

func (f *Function) String() string {
	if f.IsNative() {
		return fmt.Sprintf("<native function %s>", f.Name)
	}
	return fmt.Sprintf("<scripted function/%d>", f.NumParams)
}

func functionsEqual(a, b *Function) bool {
	if a.IsNative() != b.IsNative() {
		return false
	}
	if a.IsNative() {
		return reflect.ValueOf(a.Native).Pointer() == reflect.ValueOf(b.Native).Pointer()
	}
	return reflect.DeepEqual(a.Scripted, b.Scripted)
}

// Table is a string-keyed mapping of Values. Insertion order is
// irrelevant; keys are unique. It is not an array or list type: only
// named-field access is supported, matching the language's record-like
// table semantics.
type Table struct {
	fields map[string]*Value
}

// NewTable creates an empty table.
func NewTable() *Table {
	return &Table{fields: make(map[string]*Value)}
}

// Get returns the value bound to key, or nil if the table has no such
// field.
func (t *Table) Get(key string) *Value {
	return t.fields[key]
}

// Set binds value to key, overwriting any previous binding.
func (t *Table) Set(key string, value *Value) {
	t.fields[key] = value
}

func tablesEqual(a, b *Table) bool {
	if len(a.fields) != len(b.fields) {
		return false
	}
	for k, av := range a.fields {
		bv, ok := b.fields[k]
		if !ok || !Equal(av, bv) {
			return false
		}
	}
	return true
}

// Value is a shared, mutable cell: the runtime representation of every
// weave value. Multiple operand-stack slots, locals, and table entries may
// point at the same Value; mutating it (e.g. a table write) is visible
// through every reference.
type Value struct {
	kind Kind

	integer  int64
	float    float64
	str      string
	boolean  bool
	function *Function
	table    *Table

	// Metatable is reserved for future operator dispatch (none is
	// implemented); getmetatable/setmetatable read and write it directly.
	Metatable *Value
}

// Kind returns the value's current content tag.
func (v *Value) Kind() Kind { return v.kind }

// Nil constructs the nil value.
func Nil() *Value { return &Value{kind: KindNil} }

// Integer constructs an integer value.
func Integer(i int64) *Value { return &Value{kind: KindInteger, integer: i} }

// Float constructs a float value.
func Float(f float64) *Value { return &Value{kind: KindFloat, float: f} }

// String constructs a string value.
func String(s string) *Value { return &Value{kind: KindString, str: s} }

// Boolean constructs a boolean value.
func Boolean(b bool) *Value { return &Value{kind: KindBoolean, boolean: b} }

// NewTableValue wraps a fresh, empty table.
func NewTableValue() *Value { return &Value{kind: KindTable, table: NewTable()} }

// ScriptedFunction constructs a function value whose body is bc.
func ScriptedFunction(bc *code.Bytecode, numParams int) *Value {
	return &Value{kind: KindFunction, function: &Function{Scripted: bc, NumParams: numParams}}
}

// NativeFunction constructs a function value backed by a Go function.
func NativeFunction(name string, fn NativeFunc) *Value {
	return &Value{kind: KindFunction, function: &Function{Native: fn, Name: name}}
}

// IsNil reports whether v holds no content.
func (v *Value) IsNil() bool { return v == nil || v.kind == KindNil }

// AsInteger returns v's integer content, if any.
func (v *Value) AsInteger() (int64, bool) {
	if v.kind != KindInteger {
		return 0, false
	}
	return v.integer, true
}

// AsFloat returns v's float content, if any.
func (v *Value) AsFloat() (float64, bool) {
	if v.kind != KindFloat {
		return 0, false
	}
	return v.float, true
}

// AsString returns v's string content, if any.
func (v *Value) AsString() (string, bool) {
	if v.kind != KindString {
		return "", false
	}
	return v.str, true
}

// AsBool returns v's boolean content, if any.
func (v *Value) AsBool() (bool, bool) {
	if v.kind != KindBoolean {
		return false, false
	}
	return v.boolean, true
}

// AsFunction returns v's function content, if any.
func (v *Value) AsFunction() (*Function, bool) {
	if v.kind != KindFunction {
		return nil, false
	}
	return v.function, true
}

// AsTable returns v's table content, if any.
func (v *Value) AsTable() (*Table, bool) {
	if v.kind != KindTable {
		return nil, false
	}
	return v.table, true
}

// GetKey reads a field of v, which must be a table. It returns nil (not an
// error) for a missing field, per the executor's GetKey opcode.
func (v *Value) GetKey(key string) (*Value, error) {
	tbl, ok := v.AsTable()
	if !ok {
		return nil, fmt.Errorf("cannot get key %q on non-table value of kind %s", key, v.Kind())
	}
	if val := tbl.Get(key); val != nil {
		return val, nil
	}
	return Nil(), nil
}

// SetKey writes a field of v, which must be a table.
func (v *Value) SetKey(key string, value *Value) error {
	tbl, ok := v.AsTable()
	if !ok {
		return fmt.Errorf("cannot set key %q on non-table value of kind %s", key, v.Kind())
	}
	tbl.Set(key, value)
	return nil
}

// String renders v the way the stdlib's string() native does.
func (v *Value) String() string {
	switch v.kind {
	case KindNil:
		return "nil"
	case KindInteger:
		return strconv.FormatInt(v.integer, 10)
	case KindFloat:
		return strconv.FormatFloat(v.float, 'g', -1, 64)
	case KindString:
		return v.str
	case KindBoolean:
		return strconv.FormatBool(v.boolean)
	case KindFunction:
		return v.function.String()
	case KindTable:
		return "<table>"
	default:
		return "<unknown>"
	}
}

// Equal implements weave's equality: structural for primitives, contents
// for tables, the Go func pointer for native functions and bytecode
// contents for scripted ones; unlike kinds are always unequal.
func Equal(a, b *Value) bool {
	if a.IsNil() || b.IsNil() {
		return a.IsNil() && b.IsNil()
	}
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindInteger:
		return a.integer == b.integer
	case KindFloat:
		return a.float == b.float
	case KindString:
		return a.str == b.str
	case KindBoolean:
		return a.boolean == b.boolean
	case KindFunction:
		return functionsEqual(a.function, b.function)
	case KindTable:
		return tablesEqual(a.table, b.table)
	default:
		return true
	}
}

// BinaryOp applies kind to lhs and rhs, returning the pushed result. A nil
// result (no error) means the operation's value-level result is absent
// (e.g. adding a string to an integer); an error means a fatal runtime
// condition (division by zero, a type mismatch in comparison/logical
// operators).
func BinaryOp(kind ast.BinaryOperationKind, lhs, rhs *Value) (*Value, error) {
	switch kind {
	case ast.Add:
		return arith(kind, lhs, rhs)
	case ast.Subtract, ast.Multiply, ast.Divide, ast.Remainder:
		return arith(kind, lhs, rhs)
	case ast.Equal:
		return Boolean(Equal(lhs, rhs)), nil
	case ast.NotEqual:
		return Boolean(!Equal(lhs, rhs)), nil
	case ast.LessThan, ast.LessThanOrEqual, ast.GreaterThan, ast.GreaterThanOrEqual:
		return compare(kind, lhs, rhs)
	case ast.LogicalAnd, ast.LogicalOr:
		return logical(kind, lhs, rhs)
	default:
		return nil, fmt.Errorf("unknown binary operation kind %d", kind)
	}
}

func arith(kind ast.BinaryOperationKind, lhs, rhs *Value) (*Value, error) {
	li, lIsInt := lhs.AsInteger()
	lf, lIsFloat := lhs.AsFloat()
	ri, rIsInt := rhs.AsInteger()
	rf, rIsFloat := rhs.AsFloat()

	switch {
	case lIsInt && rIsInt:
		return intArith(kind, li, ri)
	case lIsInt && rIsFloat:
		return floatArith(kind, float64(li), rf)
	case lIsFloat && rIsInt:
		return floatArith(kind, lf, float64(ri))
	case lIsFloat && rIsFloat:
		return floatArith(kind, lf, rf)
	}

	if kind == ast.Add {
		if ls, ok := lhs.AsString(); ok {
			if rs, ok := rhs.AsString(); ok {
				return String(ls + rs), nil
			}
		}
	}
	return nil, nil
}

func intArith(kind ast.BinaryOperationKind, a, b int64) (*Value, error) {
	switch kind {
	case ast.Add:
		return Integer(a + b), nil
	case ast.Subtract:
		return Integer(a - b), nil
	case ast.Multiply:
		return Integer(a * b), nil
	case ast.Divide:
		if b == 0 {
			return nil, fmt.Errorf("integer division by zero")
		}
		return Integer(a / b), nil
	case ast.Remainder:
		if b == 0 {
			return nil, fmt.Errorf("integer division by zero")
		}
		return Integer(a % b), nil
	default:
		return nil, fmt.Errorf("unsupported integer arithmetic kind %d", kind)
	}
}

func floatArith(kind ast.BinaryOperationKind, a, b float64) (*Value, error) {
	switch kind {
	case ast.Add:
		return Float(a + b), nil
	case ast.Subtract:
		return Float(a - b), nil
	case ast.Multiply:
		return Float(a * b), nil
	case ast.Divide:
		return Float(a / b), nil
	case ast.Remainder:
		return Float(math.Mod(a, b)), nil
	default:
		return nil, fmt.Errorf("unsupported float arithmetic kind %d", kind)
	}
}

func compare(kind ast.BinaryOperationKind, lhs, rhs *Value) (*Value, error) {
	li, lIsInt := lhs.AsInteger()
	lf, lIsFloat := lhs.AsFloat()
	ri, rIsInt := rhs.AsInteger()
	rf, rIsFloat := rhs.AsFloat()

	var a, b float64
	switch {
	case lIsInt && rIsInt:
		a, b = float64(li), float64(ri)
	case lIsInt && rIsFloat:
		a, b = float64(li), rf
	case lIsFloat && rIsInt:
		a, b = lf, float64(ri)
	case lIsFloat && rIsFloat:
		a, b = lf, rf
	default:
		return nil, fmt.Errorf("cannot compare %s and %s", lhs.Kind(), rhs.Kind())
	}

	switch kind {
	case ast.LessThan:
		return Boolean(a < b), nil
	case ast.LessThanOrEqual:
		return Boolean(a <= b), nil
	case ast.GreaterThan:
		return Boolean(a > b), nil
	case ast.GreaterThanOrEqual:
		return Boolean(a >= b), nil
	default:
		return nil, fmt.Errorf("unsupported comparison kind %d", kind)
	}
}

func logical(kind ast.BinaryOperationKind, lhs, rhs *Value) (*Value, error) {
	a, aOk := lhs.AsBool()
	b, bOk := rhs.AsBool()
	if !aOk || !bOk {
		return nil, fmt.Errorf("logical operator requires boolean operands, got %s and %s", lhs.Kind(), rhs.Kind())
	}
	if kind == ast.LogicalAnd {
		return Boolean(a && b), nil
	}
	return Boolean(a || b), nil
}

// UnaryOp applies kind to v.
func UnaryOp(kind ast.UnaryOperationKind, v *Value) (*Value, error) {
	switch kind {
	case ast.Negate:
		if i, ok := v.AsInteger(); ok {
			return Integer(-i), nil
		}
		if f, ok := v.AsFloat(); ok {
			return Float(-f), nil
		}
		return Nil(), nil
	case ast.Not:
		b, ok := v.AsBool()
		if !ok {
			return nil, fmt.Errorf("! requires a boolean operand, got %s", v.Kind())
		}
		return Boolean(!b), nil
	default:
		return nil, fmt.Errorf("unknown unary operation kind %d", kind)
	}
}
