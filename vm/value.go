package vm

import (
	"fmt"
	"math"

	"github.com/chazu/kona/pkg/signature"
)

// ---------------------------------------------------------------------------
// Value: raw argument/operand slots
// ---------------------------------------------------------------------------

// Value is a single raw slot in the internal calling convention. A
// value carries its kind, a 64-bit primitive payload, and a reference
// payload for object kinds. Long and double values occupy one Value
// here; the two-slot accounting only matters for frame layout.
type Value struct {
	kind signature.Kind
	bits uint64
	ref  any
}

// Pre-defined values.
var (
	// Null is the guest null reference.
	Null = Value{kind: signature.KindObject}
	// Void is the result of a void-returning call.
	Void = Value{kind: signature.KindVoid}
)

// ---------------------------------------------------------------------------
// Constructors
// ---------------------------------------------------------------------------

// IntValue creates an int slot.
func IntValue(v int32) Value {
	return Value{kind: signature.KindInt, bits: uint64(uint32(v))}
}

// LongValue creates a long slot.
func LongValue(v int64) Value {
	return Value{kind: signature.KindLong, bits: uint64(v)}
}

// FloatValue creates a float slot.
func FloatValue(v float32) Value {
	return Value{kind: signature.KindFloat, bits: uint64(math.Float32bits(v))}
}

// DoubleValue creates a double slot.
func DoubleValue(v float64) Value {
	return Value{kind: signature.KindDouble, bits: math.Float64bits(v)}
}

// BoolValue creates a boolean slot.
func BoolValue(v bool) Value {
	var bits uint64
	if v {
		bits = 1
	}
	return Value{kind: signature.KindBoolean, bits: bits}
}

// ByteValue creates a byte slot.
func ByteValue(v int8) Value {
	return Value{kind: signature.KindByte, bits: uint64(uint8(v))}
}

// ShortValue creates a short slot.
func ShortValue(v int16) Value {
	return Value{kind: signature.KindShort, bits: uint64(uint16(v))}
}

// CharValue creates a char slot.
func CharValue(v uint16) Value {
	return Value{kind: signature.KindChar, bits: uint64(v)}
}

// RefValue creates an object slot. A nil object is the guest null.
func RefValue(obj *Object) Value {
	if obj == nil {
		return Null
	}
	return Value{kind: signature.KindObject, ref: obj}
}

// ---------------------------------------------------------------------------
// Accessors
// ---------------------------------------------------------------------------

// Kind returns the slot's kind.
func (v Value) Kind() signature.Kind { return v.kind }

// Int returns the int payload.
func (v Value) Int() int32 { return int32(uint32(v.bits)) }

// Long returns the long payload.
func (v Value) Long() int64 { return int64(v.bits) }

// Float returns the float payload.
func (v Value) Float() float32 { return math.Float32frombits(uint32(v.bits)) }

// Double returns the double payload.
func (v Value) Double() float64 { return math.Float64frombits(v.bits) }

// Bool returns the boolean payload.
func (v Value) Bool() bool { return v.bits != 0 }

// Byte returns the byte payload.
func (v Value) Byte() int8 { return int8(uint8(v.bits)) }

// Short returns the short payload.
func (v Value) Short() int16 { return int16(uint16(v.bits)) }

// Char returns the char payload.
func (v Value) Char() uint16 { return uint16(v.bits) }

// Ref returns the object payload; nil for the guest null.
func (v Value) Ref() *Object {
	if v.ref == nil {
		return nil
	}
	return v.ref.(*Object)
}

// IsNull reports whether the value is an object slot holding null.
func (v Value) IsNull() bool {
	return v.kind == signature.KindObject && v.ref == nil
}

// IsVoid reports whether the value is the void result.
func (v Value) IsVoid() bool { return v.kind == signature.KindVoid }

// String renders the value for diagnostics.
func (v Value) String() string {
	switch v.kind {
	case signature.KindVoid:
		return "void"
	case signature.KindBoolean:
		return fmt.Sprintf("boolean(%t)", v.Bool())
	case signature.KindByte:
		return fmt.Sprintf("byte(%d)", v.Byte())
	case signature.KindChar:
		return fmt.Sprintf("char(%d)", v.Char())
	case signature.KindShort:
		return fmt.Sprintf("short(%d)", v.Short())
	case signature.KindInt:
		return fmt.Sprintf("int(%d)", v.Int())
	case signature.KindFloat:
		return fmt.Sprintf("float(%g)", v.Float())
	case signature.KindLong:
		return fmt.Sprintf("long(%d)", v.Long())
	case signature.KindDouble:
		return fmt.Sprintf("double(%g)", v.Double())
	case signature.KindObject:
		if v.ref == nil {
			return "null"
		}
		return fmt.Sprintf("ref(%s)", v.Ref().Klass().Name())
	}
	return "unknown"
}

// ---------------------------------------------------------------------------
// Object: guest heap objects
// ---------------------------------------------------------------------------

// Object is a guest heap object: an instance of a Klass with field
// slots. Builtin klasses (strings, loaders) may carry an opaque host
// payload instead of guest fields.
type Object struct {
	klass   *Klass
	fields  []Value
	payload any
}

// NewObject allocates an instance of the given klass.
func NewObject(k *Klass, fieldCount int) *Object {
	return &Object{klass: k, fields: make([]Value, fieldCount)}
}

// NewPayloadObject allocates an instance wrapping a host payload.
func NewPayloadObject(k *Klass, payload any) *Object {
	return &Object{klass: k, payload: payload}
}

// Klass returns the object's klass.
func (o *Object) Klass() *Klass { return o.klass }

// Field returns the field slot at the given index.
func (o *Object) Field(i int) Value { return o.fields[i] }

// SetField sets the field slot at the given index.
func (o *Object) SetField(i int, v Value) { o.fields[i] = v }

// Payload returns the host payload, or nil.
func (o *Object) Payload() any { return o.payload }
