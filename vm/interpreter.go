package vm

import "fmt"

// ---------------------------------------------------------------------------
// Interpreter: bytecode execution for interpreted call targets
// ---------------------------------------------------------------------------

// Opcodes understood by the interpreter. The linkage core only needs a
// working execution strategy behind bytecode call targets; the opcode
// set covers constants, locals, integer arithmetic, comparisons and
// returns.
const (
	opNop       = 0x00
	opIconstM1  = 0x02
	opIconst0   = 0x03
	opIconst1   = 0x04
	opIconst2   = 0x05
	opIconst3   = 0x06
	opIconst4   = 0x07
	opIconst5   = 0x08
	opBipush    = 0x10
	opSipush    = 0x11
	opIload     = 0x15
	opIload0    = 0x1a
	opIload1    = 0x1b
	opIload2    = 0x1c
	opIload3    = 0x1d
	opAload0    = 0x2a
	opAload1    = 0x2b
	opAload2    = 0x2c
	opAload3    = 0x2d
	opIstore    = 0x36
	opIstore0   = 0x3b
	opIstore1   = 0x3c
	opIstore2   = 0x3d
	opIstore3   = 0x3e
	opIadd      = 0x60
	opIsub      = 0x64
	opImul      = 0x68
	opIdiv      = 0x6c
	opIrem      = 0x70
	opIfIcmpGe  = 0xa2
	opGoto      = 0xa7
	opIreturn   = 0xac
	opAreturn   = 0xb0
	opReturn    = 0xb1
)

// interpret executes a method's bytecode in the given frame and
// returns the method's result.
func interpret(m *Method, f *Frame) (Value, error) {
	for f.pc < len(f.code) {
		op := f.readU8()
		switch op {
		case opNop:

		case opIconstM1, opIconst0, opIconst1, opIconst2, opIconst3, opIconst4, opIconst5:
			f.Push(IntValue(int32(op) - int32(opIconst0)))

		case opBipush:
			f.Push(IntValue(int32(f.readI8())))

		case opSipush:
			f.Push(IntValue(int32(f.readI16())))

		case opIload:
			f.Push(f.Local(int(f.readU8())))
		case opIload0, opIload1, opIload2, opIload3:
			f.Push(f.Local(int(op - opIload0)))

		case opAload0, opAload1, opAload2, opAload3:
			f.Push(f.Local(int(op - opAload0)))

		case opIstore:
			f.SetLocal(int(f.readU8()), f.Pop())
		case opIstore0, opIstore1, opIstore2, opIstore3:
			f.SetLocal(int(op-opIstore0), f.Pop())

		case opIadd:
			b, a := f.Pop(), f.Pop()
			f.Push(IntValue(a.Int() + b.Int()))
		case opIsub:
			b, a := f.Pop(), f.Pop()
			f.Push(IntValue(a.Int() - b.Int()))
		case opImul:
			b, a := f.Pop(), f.Pop()
			f.Push(IntValue(a.Int() * b.Int()))
		case opIdiv:
			b, a := f.Pop(), f.Pop()
			if b.Int() == 0 {
				return Void, Throw(ErrArithmetic, "/ by zero")
			}
			f.Push(IntValue(a.Int() / b.Int()))
		case opIrem:
			b, a := f.Pop(), f.Pop()
			if b.Int() == 0 {
				return Void, Throw(ErrArithmetic, "/ by zero")
			}
			f.Push(IntValue(a.Int() % b.Int()))

		case opIfIcmpGe:
			base := f.pc - 1
			target := base + int(f.readI16())
			b, a := f.Pop(), f.Pop()
			if a.Int() >= b.Int() {
				f.pc = target
			}

		case opGoto:
			base := f.pc - 1
			f.pc = base + int(f.readI16())

		case opIreturn:
			return f.Pop(), nil
		case opAreturn:
			return f.Pop(), nil
		case opReturn:
			return Void, nil

		default:
			return Void, Throw(ErrInternal, "unsupported opcode 0x%02x at pc %d in %s", op, f.pc-1, m)
		}
	}
	return Void, fmt.Errorf("vm: fell off bytecode end in %s", m)
}
