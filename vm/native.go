package vm

import (
	"errors"
	"strings"

	"github.com/chazu/kona/pkg/jni"
	"github.com/chazu/kona/pkg/nativelib"
	"github.com/chazu/kona/pkg/signature"
)

// ---------------------------------------------------------------------------
// Native calling convention
// ---------------------------------------------------------------------------

// kindToNativeType maps a guest kind to its native simple type for the
// calling-convention signature.
func kindToNativeType(k signature.Kind) string {
	switch k {
	case signature.KindBoolean:
		return "UINT8"
	case signature.KindByte:
		return "SINT8"
	case signature.KindChar:
		return "UINT16"
	case signature.KindShort:
		return "SINT16"
	case signature.KindInt:
		return "SINT32"
	case signature.KindFloat:
		return "FLOAT"
	case signature.KindLong:
		return "SINT64"
	case signature.KindDouble:
		return "DOUBLE"
	case signature.KindObject:
		return "NULLABLE"
	}
	return "VOID"
}

// nativeCallSignature derives the native calling-convention signature
// from the parsed signature: an implicit environment handle, then a
// nullable slot carrying the receiver (or the klass, for statics),
// then the declared parameters.
func nativeCallSignature(m *Method) string {
	var sb strings.Builder
	sb.WriteString("(SINT64, NULLABLE")
	sig := m.Signature()
	for i := 0; i < sig.ParameterCount(false); i++ {
		sb.WriteString(", ")
		sb.WriteString(kindToNativeType(sig.ParameterKind(i)))
	}
	sb.WriteString("): ")
	sb.WriteString(kindToNativeType(sig.ReturnKind()))
	return sb.String()
}

// ---------------------------------------------------------------------------
// Native linkage
// ---------------------------------------------------------------------------

// linkNative binds a native method to a callable symbol. Strategies,
// in order:
//
//  1. For klasses defined by the bootstrap loader, probe the system
//     library with the short mangled name, then the long
//     (signature-qualified) one.
//  2. Ask the generic findNative guest method (itself linked through
//     this same linker), again short name first, long name second.
//  3. The designated polymorphic invocation methods fall back to a
//     polymorphic-signature lookup instead of failing.
//
// Exhaustion emits one diagnostic line and raises an unsatisfied-link
// guest error. The failure is not cached; see Method.CallTarget.
func (m *Method) linkNative() (*CallTarget, error) {
	ctx := m.declaringKlass.ctx
	callSig := nativeCallSignature(m)

	// A klass with a null defining loader is a system klass; its
	// natives live in the system library.
	if m.declaringKlass.DefinedByBootstrapLoader() {
		if syslib := ctx.SystemLibrary(); syslib != nil {
			for _, withSignature := range []bool{false, true} {
				name := jni.Mangle(m.declaringKlass.name, m.name, m.rawSignature, withSignature)
				bound, err := nativelib.LookupAndBind(syslib, name, callSig)
				if err == nil {
					return newNativeTarget(m, bound), nil
				}
				if !errors.Is(err, nativelib.ErrSymbolNotFound) {
					return nil, err
				}
				// Not found in the system library, keep probing.
			}
		}
	}

	if findNative := ctx.Meta().FindNative; findNative != nil {
		for _, withSignature := range []bool{false, true} {
			ct, err := m.lookupViaFindNative(findNative, withSignature, callSig)
			if err != nil {
				return nil, err
			}
			if ct != nil {
				return ct, nil
			}
		}
	}

	meta := ctx.Meta()
	if m.declaringKlass == meta.MethodHandleKlass && (m.name == "invoke" || m.name == "invokeExact") {
		poly, err := m.declaringKlass.LookupPolysigMethod(m.name, m.rawSignature)
		if err != nil {
			return nil, err
		}
		return poly.CallTarget()
	}

	ctx.Logger().Errorf("failed to link native method: %s.%s -> %s", m.declaringKlass.name, m.name, m.rawSignature)
	return nil, Throw(ErrUnsatisfiedLink, "%s.%s%s", m.declaringKlass.name, m.name, m.rawSignature)
}

// lookupViaFindNative asks the guest findNative method for the symbol
// address. A zero handle means not found and is not an error.
func (m *Method) lookupViaFindNative(findNative *Method, withSignature bool, callSig string) (*CallTarget, error) {
	ctx := m.declaringKlass.ctx
	name := jni.Mangle(m.declaringKlass.name, m.name, m.rawSignature, withSignature)

	ret, err := findNative.InvokeWithConversions(nil, m.declaringKlass.DefiningLoader(), name)
	if err != nil {
		return nil, err
	}
	handle, ok := ret.(int64)
	if !ok {
		return nil, Throw(ErrInternal, "findNative returned %T, want long", ret)
	}
	if handle == 0 {
		return nil, nil
	}

	sym := ctx.FunctionAt(handle)
	if sym == nil {
		return nil, Throw(ErrInternal, "findNative returned stale handle %d for %s", handle, name)
	}
	return newNativeTarget(m, nativelib.Bind(sym, callSig)), nil
}

// newNativeTarget wraps a bound native symbol as a call target. Each
// call prepends the environment handle and the receiver (or declaring
// klass for statics), converts argument slots to host values, and
// converts the result back per the return kind.
func newNativeTarget(m *Method, bound *nativelib.BoundSymbol) *CallTarget {
	ctx := m.declaringKlass.ctx
	return &CallTarget{
		kind:   TargetNative,
		method: m,
		invoke: func(args []Value) (Value, error) {
			sig := m.Signature()
			hostArgs := make([]any, 0, len(args)+2)
			hostArgs = append(hostArgs, ctx.EnvHandle())

			params := args
			if m.HasReceiver() {
				if len(args) == 0 {
					return Void, Throw(ErrInternal, "missing receiver calling %s", m)
				}
				hostArgs = append(hostArgs, slotToHost(args[0]))
				params = args[1:]
			} else {
				hostArgs = append(hostArgs, m.declaringKlass)
			}
			for _, a := range params {
				hostArgs = append(hostArgs, slotToHost(a))
			}

			ret := bound.Call(hostArgs...)
			return hostToSlot(ctx, ret, sig.ReturnKind())
		},
	}
}

// slotToHost converts a raw slot to the host representation used by
// native symbols.
func slotToHost(v Value) any {
	switch v.Kind() {
	case signature.KindBoolean:
		return v.Bool()
	case signature.KindByte:
		return v.Byte()
	case signature.KindChar:
		return v.Char()
	case signature.KindShort:
		return v.Short()
	case signature.KindInt:
		return v.Int()
	case signature.KindFloat:
		return v.Float()
	case signature.KindLong:
		return v.Long()
	case signature.KindDouble:
		return v.Double()
	case signature.KindObject:
		ref := v.Ref()
		if ref == nil {
			return nil
		}
		return ref
	}
	return nil
}

// hostToSlot converts a native return value back to a raw slot of the
// given kind. Types must already match exactly; no widening or
// narrowing is performed.
func hostToSlot(ctx *Context, ret any, kind signature.Kind) (Value, error) {
	switch kind {
	case signature.KindVoid:
		return Void, nil
	case signature.KindBoolean:
		if b, ok := ret.(bool); ok {
			return BoolValue(b), nil
		}
	case signature.KindByte:
		if b, ok := ret.(int8); ok {
			return ByteValue(b), nil
		}
	case signature.KindChar:
		if c, ok := ret.(uint16); ok {
			return CharValue(c), nil
		}
	case signature.KindShort:
		if s, ok := ret.(int16); ok {
			return ShortValue(s), nil
		}
	case signature.KindInt:
		if i, ok := ret.(int32); ok {
			return IntValue(i), nil
		}
	case signature.KindFloat:
		if f, ok := ret.(float32); ok {
			return FloatValue(f), nil
		}
	case signature.KindLong:
		if l, ok := ret.(int64); ok {
			return LongValue(l), nil
		}
	case signature.KindDouble:
		if d, ok := ret.(float64); ok {
			return DoubleValue(d), nil
		}
	case signature.KindObject:
		if ret == nil {
			return Null, nil
		}
		if o, ok := ret.(*Object); ok {
			return RefValue(o), nil
		}
		if s, ok := ret.(string); ok {
			return RefValue(ctx.NewString(s)), nil
		}
	}
	return Void, Throw(ErrInternal, "native symbol returned %T for %s result", ret, kind)
}
