package vm

import (
	"fmt"

	"github.com/chazu/kona/pkg/signature"
)

// ---------------------------------------------------------------------------
// Frame: execution state for an interpreted invocation
// ---------------------------------------------------------------------------

// frameLayout is the link-time slot accounting for a bytecode method:
// locals plus operand stack. It is computed once when the call target
// is constructed and shared by every invocation.
type frameLayout struct {
	locals int
	stack  int
}

func newFrameLayout(maxLocals, maxStack int) frameLayout {
	return frameLayout{locals: maxLocals, stack: maxStack}
}

// slotCount returns the frame's total slot count.
func (l frameLayout) slotCount() int { return l.locals + l.stack }

// newFrame allocates an execution frame over the given bytecode.
func (l frameLayout) newFrame(code []byte) *Frame {
	slots := make([]Value, l.slotCount())
	return &Frame{
		locals: slots[:l.locals],
		stack:  slots[l.locals:],
		code:   code,
	}
}

// Frame holds the local variables, operand stack and instruction
// pointer of a single interpreted invocation. Locals and stack share
// one backing allocation.
type Frame struct {
	locals []Value
	stack  []Value
	sp     int
	pc     int
	code   []byte
}

// loadArguments copies call arguments into the local slots, receiver
// first for instance methods. Long and double arguments occupy two
// slots.
func (f *Frame) loadArguments(m *Method, args []Value) {
	slot := 0
	for _, a := range args {
		f.locals[slot] = a
		switch a.Kind() {
		case signature.KindLong, signature.KindDouble:
			slot += 2
		default:
			slot++
		}
	}
}

// Push pushes a value onto the operand stack.
func (f *Frame) Push(v Value) {
	if f.sp >= len(f.stack) {
		panic(fmt.Sprintf("vm: operand stack overflow: sp=%d, max=%d", f.sp, len(f.stack)))
	}
	f.stack[f.sp] = v
	f.sp++
}

// Pop pops a value from the operand stack.
func (f *Frame) Pop() Value {
	if f.sp <= 0 {
		panic("vm: operand stack underflow")
	}
	f.sp--
	return f.stack[f.sp]
}

// Local returns the value in the given local slot.
func (f *Frame) Local(i int) Value {
	if i < 0 || i >= len(f.locals) {
		panic(fmt.Sprintf("vm: local slot %d out of range (%d slots)", i, len(f.locals)))
	}
	return f.locals[i]
}

// SetLocal stores a value in the given local slot.
func (f *Frame) SetLocal(i int, v Value) {
	if i < 0 || i >= len(f.locals) {
		panic(fmt.Sprintf("vm: local slot %d out of range (%d slots)", i, len(f.locals)))
	}
	f.locals[i] = v
}

// LocalCount returns the number of local slots.
func (f *Frame) LocalCount() int { return len(f.locals) }

// StackCount returns the number of operand stack slots.
func (f *Frame) StackCount() int { return len(f.stack) }

// readU8 reads a one-byte operand and advances the pc.
func (f *Frame) readU8() uint8 {
	v := f.code[f.pc]
	f.pc++
	return v
}

// readI8 reads a signed one-byte operand and advances the pc.
func (f *Frame) readI8() int8 {
	v := int8(f.code[f.pc])
	f.pc++
	return v
}

// readI16 reads a signed big-endian two-byte operand and advances the
// pc.
func (f *Frame) readI16() int16 {
	v := int16(f.code[f.pc])<<8 | int16(f.code[f.pc+1])
	f.pc += 2
	return v
}
