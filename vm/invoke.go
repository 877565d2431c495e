package vm

import (
	"fmt"

	"github.com/chazu/kona/pkg/signature"
)

// ---------------------------------------------------------------------------
// Invocation adapters
// ---------------------------------------------------------------------------

// InvokeWithConversions invokes the guest method with host-visible
// arguments: each argument and the receiver are converted to the guest
// representation before the call, and the result is converted back.
// There is no parameter casting, widening nor narrowing based on the
// method's signature; types must already match exactly. Any pending
// guest error on the context is cleared before dispatch.
func (m *Method) InvokeWithConversions(self any, args ...any) (any, error) {
	ctx := m.declaringKlass.ctx
	ctx.ClearPendingError()

	if got, want := len(args), m.signature.ParameterCount(false); got != want {
		panic(fmt.Sprintf("vm: %s invoked with %d args, want %d", m, got, want))
	}

	var guestArgs []Value
	if m.IsStatic() {
		guestArgs = make([]Value, len(args))
		for i, a := range args {
			v, err := ctx.ToGuest(a, m.signature.ParameterKind(i))
			if err != nil {
				return nil, err
			}
			guestArgs[i] = v
		}
	} else {
		guestArgs = make([]Value, len(args)+1)
		recv, err := ctx.ToGuest(self, signature.KindObject)
		if err != nil {
			return nil, err
		}
		guestArgs[0] = recv
		for i, a := range args {
			v, err := ctx.ToGuest(a, m.signature.ParameterKind(i))
			if err != nil {
				return nil, err
			}
			guestArgs[i+1] = v
		}
	}

	ct, err := m.CallTarget()
	if err != nil {
		return nil, err
	}
	ret, err := ct.Call(guestArgs...)
	if err != nil {
		return nil, err
	}
	return ctx.ToHost(ret), nil
}

// InvokeDirect invokes the guest method without argument conversions:
// raw slots pass through verbatim, with the receiver prepended for
// instance methods. The argument count is asserted against the parsed
// signature. Any pending guest error on the context is cleared before
// dispatch.
func (m *Method) InvokeDirect(self Value, args ...Value) (Value, error) {
	ctx := m.declaringKlass.ctx
	ctx.ClearPendingError()

	if m.IsStatic() {
		if got, want := len(args), m.signature.ParameterCount(false); got != want {
			panic(fmt.Sprintf("vm: %s invoked with %d args, want %d", m, got, want))
		}
		ct, err := m.CallTarget()
		if err != nil {
			return Void, err
		}
		return ct.Call(args...)
	}

	if got, want := len(args)+1, m.signature.ParameterCount(true); got != want {
		panic(fmt.Sprintf("vm: %s invoked with %d args (incl. receiver), want %d", m, got, want))
	}
	full := make([]Value, len(args)+1)
	full[0] = self
	copy(full[1:], args)

	ct, err := m.CallTarget()
	if err != nil {
		return Void, err
	}
	return ct.Call(full...)
}
