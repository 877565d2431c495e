package vm

import (
	"fmt"
	"sync"
	"testing"
)

// exceptionPool builds a constant pool declaring the given klass names
// as Class entries, returning the pool and the Class entry indices.
func exceptionPool(names ...string) (*ConstantPool, []uint16) {
	entries := make([]PoolEntry, 1, 1+2*len(names))
	indices := make([]uint16, 0, len(names))
	for _, name := range names {
		entries = append(entries, PoolEntry{Tag: PoolUtf8, Utf8: name})
		utf8Index := uint16(len(entries) - 1)
		entries = append(entries, PoolEntry{Tag: PoolClass, NameIndex: utf8Index})
		indices = append(indices, uint16(len(entries)-1))
	}
	return NewConstantPool(entries), indices
}

func TestCheckedExceptionsResolve(t *testing.T) {
	ctx := NewContext()
	ioeKlass := newTestKlass(t, ctx, "java/io/IOException")

	pool, indices := exceptionPool("java/io/IOException")
	k := ctx.NewKlass("app/Files", ctx.Meta().ObjectKlass, AccPublic, nil, pool)
	m, err := k.AddMethod("read", "()I", AccPublic, nil, indices)
	if err != nil {
		t.Fatalf("AddMethod error: %v", err)
	}

	got, err := m.CheckedExceptions()
	if err != nil {
		t.Fatalf("CheckedExceptions() error: %v", err)
	}
	if len(got) != 1 || got[0] != ioeKlass {
		t.Errorf("CheckedExceptions() = %v, want [java/io/IOException]", got)
	}
}

func TestCheckedExceptionsIdentityStable(t *testing.T) {
	ctx := NewContext()
	newTestKlass(t, ctx, "java/io/IOException")

	pool, indices := exceptionPool("java/io/IOException")
	k := ctx.NewKlass("app/Files", ctx.Meta().ObjectKlass, AccPublic, nil, pool)
	m, err := k.AddMethod("read", "()I", AccPublic, nil, indices)
	if err != nil {
		t.Fatalf("AddMethod error: %v", err)
	}

	first, err := m.CheckedExceptions()
	if err != nil {
		t.Fatalf("CheckedExceptions() error: %v", err)
	}
	second, err := m.CheckedExceptions()
	if err != nil {
		t.Fatalf("CheckedExceptions() error: %v", err)
	}
	if fmt.Sprintf("%p", first) != fmt.Sprintf("%p", second) {
		t.Error("CheckedExceptions() returned different slice instances")
	}
}

func TestCheckedExceptionsEmpty(t *testing.T) {
	ctx := NewContext()
	k := newTestKlass(t, ctx, "app/Pure")
	m := mustAddMethod(t, k, "calc", "()I", AccPublic, nil)

	got, err := m.CheckedExceptions()
	if err != nil {
		t.Fatalf("CheckedExceptions() error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("CheckedExceptions() = %v, want empty", got)
	}
	again, err := m.CheckedExceptions()
	if err != nil {
		t.Fatalf("CheckedExceptions() error: %v", err)
	}
	if fmt.Sprintf("%p", got) != fmt.Sprintf("%p", again) {
		t.Error("empty result is not the shared instance")
	}
}

func TestCheckedExceptionsConcurrentSingleResolution(t *testing.T) {
	ctx := NewContext()
	newTestKlass(t, ctx, "java/io/IOException")
	newTestKlass(t, ctx, "java/sql/SQLException")

	pool, indices := exceptionPool("java/io/IOException", "java/sql/SQLException")
	k := ctx.NewKlass("app/Store", ctx.Meta().ObjectKlass, AccPublic, nil, pool)
	m, err := k.AddMethod("query", "()V", AccPublic, nil, indices)
	if err != nil {
		t.Fatalf("AddMethod error: %v", err)
	}

	const n = 16
	results := make([][]*Klass, n)
	start := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			got, err := m.CheckedExceptions()
			if err != nil {
				t.Errorf("goroutine %d: CheckedExceptions() error: %v", i, err)
				return
			}
			results[i] = got
		}(i)
	}
	close(start)
	wg.Wait()

	for i := 1; i < n; i++ {
		if fmt.Sprintf("%p", results[i]) != fmt.Sprintf("%p", results[0]) {
			t.Fatalf("goroutine %d observed a different slice instance", i)
		}
	}
	// One resolution pass over two entries, regardless of contention.
	if got, want := pool.ResolutionCount(), int64(2); got != want {
		t.Errorf("ResolutionCount() = %d, want %d", got, want)
	}
}

func TestCheckedExceptionsMissingKlass(t *testing.T) {
	ctx := NewContext()
	pool, indices := exceptionPool("app/NoSuchException")
	k := ctx.NewKlass("app/Fragile", ctx.Meta().ObjectKlass, AccPublic, nil, pool)
	m, err := k.AddMethod("boom", "()V", AccPublic, nil, indices)
	if err != nil {
		t.Fatalf("AddMethod error: %v", err)
	}

	if _, err := m.CheckedExceptions(); !IsGuestError(err, ErrNoClassDefFound) {
		t.Errorf("CheckedExceptions() error = %v, want NoClassDefFoundError", err)
	}
}

func TestMethodPredicates(t *testing.T) {
	ctx := NewContext()
	k := newTestKlass(t, ctx, "app/Flags")
	iface := ctx.NewKlass("app/Iface", ctx.Meta().ObjectKlass, AccPublic|AccInterface|AccAbstract, nil, nil)

	stat := mustAddMethod(t, k, "s", "()V", AccPublic|AccStatic, nil)
	nat := mustAddMethod(t, k, "n", "()V", AccPublic|AccNative, nil)
	abs := mustAddMethod(t, k, "a", "()V", AccPublic|AccAbstract, nil)
	ctor := mustAddMethod(t, k, "<init>", "()V", AccPublic, addIntsCode)
	clinit := mustAddMethod(t, k, "<clinit>", "()V", AccStatic, addIntsCode)
	def := mustAddMethod(t, iface, "d", "()V", AccPublic, addIntsCode)

	if !stat.IsStatic() || stat.HasReceiver() {
		t.Error("static predicates wrong")
	}
	if !nat.IsNative() || nat.HasBytecodes() {
		t.Error("native predicates wrong")
	}
	if !abs.IsAbstract() || abs.HasBytecodes() {
		t.Error("abstract predicates wrong")
	}
	if !ctor.IsConstructor() || ctor.IsClassInitializer() {
		t.Error("constructor predicates wrong")
	}
	if !clinit.IsClassInitializer() || clinit.IsConstructor() {
		t.Error("class initializer predicates wrong")
	}
	if !def.IsDefault() {
		t.Error("IsDefault() = false for a concrete public interface method")
	}
	if abs.IsDefault() {
		t.Error("IsDefault() = true for an abstract method")
	}
	if !ctor.HasBytecodes() {
		t.Error("HasBytecodes() = false for a bytecode method")
	}
}

func TestVTableIndexSetOnce(t *testing.T) {
	ctx := NewContext()
	k := newTestKlass(t, ctx, "app/Dispatch")
	m := mustAddMethod(t, k, "virt", "()V", AccPublic, nil)

	if got, want := m.VTableIndex(), -1; got != want {
		t.Fatalf("VTableIndex() = %d, want %d", got, want)
	}
	m.SetVTableIndex(4)
	m.SetVTableIndex(4) // same value is fine
	if got, want := m.VTableIndex(), 4; got != want {
		t.Errorf("VTableIndex() = %d, want %d", got, want)
	}

	defer func() {
		if recover() == nil {
			t.Error("rewriting the vtable index did not panic")
		}
	}()
	m.SetVTableIndex(5)
}

func TestITableIndexSetOnce(t *testing.T) {
	ctx := NewContext()
	k := newTestKlass(t, ctx, "app/IDispatch")
	m := mustAddMethod(t, k, "virt", "()V", AccPublic, nil)

	m.SetITableIndex(2)
	if got, want := m.ITableIndex(), 2; got != want {
		t.Errorf("ITableIndex() = %d, want %d", got, want)
	}

	defer func() {
		if recover() == nil {
			t.Error("rewriting the itable index did not panic")
		}
	}()
	m.SetITableIndex(3)
}

func TestSignatureSharedAcrossMethods(t *testing.T) {
	ctx := NewContext()
	k := newTestKlass(t, ctx, "app/Shared")
	a := mustAddMethod(t, k, "a", "(II)I", AccPublic|AccStatic, nil)
	b := mustAddMethod(t, k, "b", "(II)I", AccPublic|AccStatic, nil)

	if a.Signature() != b.Signature() {
		t.Error("identical descriptors parsed to distinct signature instances")
	}
	if got, want := a.ParameterCount(), 2; got != want {
		t.Errorf("ParameterCount() = %d, want %d", got, want)
	}
}

func TestMethodString(t *testing.T) {
	ctx := NewContext()
	k := newTestKlass(t, ctx, "app/Str")
	m := mustAddMethod(t, k, "run", "()V", AccPublic, nil)
	if got, want := m.String(), "Method<app/Str.run -> ()V>"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}
