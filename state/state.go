// Package state implements the interpreter's mutable runtime state: a
// stack of call frames, each owning its own operand stack and local
// variable scope, linked to its parent for lexical lookup.
//
// Lookup is dynamic: a Load walks the parent chain at the time it runs, not
// at the time the enclosing function was defined, so a scripted function
// sees whatever is bound in its defining frame's chain at call time. This
// is deliberate, not an oversight.
package state

import "github.com/dr8co/weave/object"

// Frame is a single call frame: an operand stack, a local scope, and a
// pointer to the frame whose bindings it can see beyond its own.
type Frame struct {
	operands []*object.Value
	locals   map[string]*object.Value
	parent   *Frame
}

func newFrame(parent *Frame) *Frame {
	return &Frame{
		locals: make(map[string]*object.Value),
		parent: parent,
	}
}

// Push pushes a value onto the frame's operand stack.
func (f *Frame) Push(v *object.Value) {
	f.operands = append(f.operands, v)
}

// Pop removes and returns the top of the frame's operand stack, or nil if
// it is empty.
func (f *Frame) Pop() *object.Value {
	n := len(f.operands)
	if n == 0 {
		return nil
	}
	v := f.operands[n-1]
	f.operands = f.operands[:n-1]
	return v
}

// PopN removes and returns the top n values, in the order they were popped
// (so the result's first element was the top of the stack).
func (f *Frame) PopN(n int) []*object.Value {
	out := make([]*object.Value, n)
	for i := 0; i < n; i++ {
		out[i] = f.Pop()
	}
	return out
}

// PushAll pushes each value in vs, in order.
func (f *Frame) PushAll(vs []*object.Value) {
	for _, v := range vs {
		f.Push(v)
	}
}

// Peek returns the top of the operand stack without removing it, or nil if
// empty.
func (f *Frame) Peek() *object.Value {
	if len(f.operands) == 0 {
		return nil
	}
	return f.operands[len(f.operands)-1]
}

// Store binds value to name in this frame only, overwriting any previous
// binding at that name in this frame.
func (f *Frame) Store(name string, value *object.Value) {
	f.locals[name] = value
}

// Load reads the value bound to name: first in this frame, then walking
// parent frames. It returns nil if the name is unbound anywhere. Unlike a
// naive pop-then-push implementation, this never mutates any ancestor
// frame's operand stack — it is a pure read of the bound local.
func (f *Frame) Load(name string) *object.Value {
	for frame := f; frame != nil; frame = frame.parent {
		if v, ok := frame.locals[name]; ok {
			return v
		}
	}
	return nil
}

// State owns the call-frame stack. Frame 0 is always the global frame,
// where standard-library bindings live.
type State struct {
	frames []*Frame
}

// New creates a fresh State with a single global frame.
func New() *State {
	return &State{frames: []*Frame{newFrame(nil)}}
}

// Global returns the bottom-most (global) frame.
func (s *State) Global() *Frame {
	return s.frames[0]
}

// Current returns the top-of-stack frame: the one currently executing.
func (s *State) Current() *Frame {
	return s.frames[len(s.frames)-1]
}

// PushFrame pushes a new frame whose parent is the current top frame, and
// makes it current.
func (s *State) PushFrame() *Frame {
	f := newFrame(s.Current())
	s.frames = append(s.frames, f)
	return f
}

// PopFrame removes the top frame. It must never be called while the global
// frame is the only frame.
func (s *State) PopFrame() {
	if len(s.frames) <= 1 {
		panic("state: cannot pop the global frame")
	}
	s.frames = s.frames[:len(s.frames)-1]
}

// SetGlobal writes directly into the global frame, for standard-library
// registration.
func (s *State) SetGlobal(name string, value *object.Value) {
	s.Global().Store(name, value)
}

// Push pushes a value onto the current frame's operand stack.
func (s *State) Push(v *object.Value) { s.Current().Push(v) }

// Pop pops the top of the current frame's operand stack.
func (s *State) Pop() *object.Value { return s.Current().Pop() }

// PopN pops the top n values from the current frame's operand stack.
func (s *State) PopN(n int) []*object.Value { return s.Current().PopN(n) }

// PushAll pushes each value onto the current frame's operand stack.
func (s *State) PushAll(vs []*object.Value) { s.Current().PushAll(vs) }

// Peek returns the top of the current frame's operand stack without
// removing it.
func (s *State) Peek() *object.Value { return s.Current().Peek() }
