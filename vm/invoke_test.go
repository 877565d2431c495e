package vm

import "testing"

func TestInvokeWithConversionsRoundTrip(t *testing.T) {
	ctx := NewContext()
	k := newTestKlass(t, ctx, "app/Adder")
	m := mustAddMethod(t, k, "add", "(II)I", AccPublic|AccStatic, addIntsCode)

	ret, err := m.InvokeWithConversions(nil, int32(40), int32(2))
	if err != nil {
		t.Fatalf("InvokeWithConversions error: %v", err)
	}
	if got, want := ret, int32(42); got != want {
		t.Errorf("InvokeWithConversions = %v (%T), want %v", got, got, want)
	}
}

func TestInvokeWithConversionsStrings(t *testing.T) {
	ctx := NewContext()
	k := newTestKlass(t, ctx, "app/Greeter")
	m := mustAddMethod(t, k, "greet", "(Ljava/lang/String;)Ljava/lang/String;", AccPublic|AccStatic|AccNative, nil)

	ctx.Substitutions().Register("app/Greeter", "greet", "(Ljava/lang/String;)Ljava/lang/String;", func(ctx *Context, args []Value) (Value, error) {
		name, _ := args[0].Ref().Payload().(string)
		return RefValue(ctx.NewString("hello " + name)), nil
	})

	ret, err := m.InvokeWithConversions(nil, "kona")
	if err != nil {
		t.Fatalf("InvokeWithConversions error: %v", err)
	}
	if got, want := ret, "hello kona"; got != want {
		t.Errorf("InvokeWithConversions = %v, want %q", got, want)
	}
}

func TestInvokeWithConversionsReceiver(t *testing.T) {
	ctx := NewContext()
	k := newTestKlass(t, ctx, "app/Self")
	m := mustAddMethod(t, k, "id", "()Ljava/lang/Object;", AccPublic|AccNative, nil)

	ctx.Substitutions().Register("app/Self", "id", "()Ljava/lang/Object;", func(ctx *Context, args []Value) (Value, error) {
		return args[0], nil
	})

	recv := NewObject(k, 0)
	ret, err := m.InvokeWithConversions(recv)
	if err != nil {
		t.Fatalf("InvokeWithConversions error: %v", err)
	}
	if ret != recv {
		t.Errorf("InvokeWithConversions = %v, want the receiver", ret)
	}
}

func TestInvokeWithConversionsRejectsMismatchedTypes(t *testing.T) {
	ctx := NewContext()
	k := newTestKlass(t, ctx, "app/Strict")
	m := mustAddMethod(t, k, "add", "(II)I", AccPublic|AccStatic, addIntsCode)

	// int64 is not widened or narrowed to int.
	if _, err := m.InvokeWithConversions(nil, int64(1), int32(2)); !IsGuestError(err, ErrInternal) {
		t.Errorf("InvokeWithConversions error = %v, want InternalError", err)
	}
}

func TestInvokeWithConversionsArgCountPanics(t *testing.T) {
	ctx := NewContext()
	k := newTestKlass(t, ctx, "app/Arity")
	m := mustAddMethod(t, k, "add", "(II)I", AccPublic|AccStatic, addIntsCode)

	defer func() {
		if recover() == nil {
			t.Error("wrong argument count did not panic")
		}
	}()
	m.InvokeWithConversions(nil, int32(1))
}

func TestInvokeDirectArgCountPanics(t *testing.T) {
	ctx := NewContext()
	k := newTestKlass(t, ctx, "app/DirectArity")
	m := mustAddMethod(t, k, "add", "(II)I", AccPublic|AccStatic, addIntsCode)

	defer func() {
		if recover() == nil {
			t.Error("wrong argument count did not panic")
		}
	}()
	m.InvokeDirect(Void, IntValue(1))
}

func TestInvokeClearsPendingError(t *testing.T) {
	ctx := NewContext()
	k := newTestKlass(t, ctx, "app/Hygiene")
	m := mustAddMethod(t, k, "check", "()V", AccPublic|AccStatic|AccNative, nil)

	var sawPending *GuestError
	ctx.Substitutions().Register("app/Hygiene", "check", "()V", func(ctx *Context, args []Value) (Value, error) {
		sawPending = ctx.PendingError()
		return Void, nil
	})

	ctx.SetPendingError(Throw(ErrArithmetic, "stale"))
	if _, err := m.InvokeDirect(Void); err != nil {
		t.Fatalf("InvokeDirect error: %v", err)
	}
	if sawPending != nil {
		t.Errorf("callee observed pending error %v, want none", sawPending)
	}

	ctx.SetPendingError(Throw(ErrArithmetic, "stale again"))
	if _, err := m.InvokeWithConversions(nil); err != nil {
		t.Fatalf("InvokeWithConversions error: %v", err)
	}
	if sawPending != nil {
		t.Errorf("callee observed pending error %v, want none", sawPending)
	}
}

func TestInvokeDirectNullReceiverReachesCallee(t *testing.T) {
	ctx := NewContext()
	k := newTestKlass(t, ctx, "app/Nullable")
	m := mustAddMethod(t, k, "probe", "()Z", AccPublic|AccNative, nil)

	ctx.Substitutions().Register("app/Nullable", "probe", "()Z", func(ctx *Context, args []Value) (Value, error) {
		return BoolValue(args[0].IsNull()), nil
	})

	ret, err := m.InvokeDirect(Null)
	if err != nil {
		t.Fatalf("InvokeDirect error: %v", err)
	}
	if !ret.Bool() {
		t.Error("callee did not observe the null receiver")
	}
}
