package bundle

import (
	"testing"

	"github.com/chazu/kona/vm"
)

// mathBundle declares app/Math with a static add(II)I bytecode method.
func mathBundle() *Bundle {
	return &Bundle{
		Name: "math",
		Classes: []LinkedClass{
			{
				Name:  "app/Math",
				Flags: vm.AccPublic,
				Methods: []LinkedMethod{
					{
						Name:      "add",
						Signature: "(II)I",
						Flags:     vm.AccPublic | vm.AccStatic,
						Code: &Code{
							MaxStack:  2,
							MaxLocals: 2,
							Bytecode:  []byte{0x1a, 0x1b, 0x60, 0xac},
						},
					},
				},
			},
		},
	}
}

func TestInstallAndInvoke(t *testing.T) {
	ctx := vm.NewContext()
	if err := Install(ctx, mathBundle()); err != nil {
		t.Fatalf("Install error: %v", err)
	}

	k := ctx.Klasses().Lookup("app/Math")
	if k == nil {
		t.Fatal("app/Math not installed")
	}
	if k.Super() != ctx.Meta().ObjectKlass {
		t.Error("app/Math not rooted at java/lang/Object")
	}

	m := k.LookupDeclaredMethod("add", "(II)I")
	if m == nil {
		t.Fatal("add(II)I not declared")
	}
	ret, err := m.InvokeWithConversions(nil, int32(40), int32(2))
	if err != nil {
		t.Fatalf("InvokeWithConversions error: %v", err)
	}
	if got, want := ret, int32(42); got != want {
		t.Errorf("add(40, 2) = %v, want %v", got, want)
	}
}

func TestInstallWireRoundTrip(t *testing.T) {
	data, err := Marshal(mathBundle())
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}
	b, err := Unmarshal(data)
	if err != nil {
		t.Fatalf("Unmarshal error: %v", err)
	}

	ctx := vm.NewContext()
	if err := Install(ctx, b); err != nil {
		t.Fatalf("Install error: %v", err)
	}
	m := ctx.Klasses().Lookup("app/Math").LookupDeclaredMethod("add", "(II)I")
	ret, err := m.InvokeWithConversions(nil, int32(1), int32(2))
	if err != nil {
		t.Fatalf("InvokeWithConversions error: %v", err)
	}
	if got, want := ret, int32(3); got != want {
		t.Errorf("add(1, 2) = %v, want %v", got, want)
	}
}

func TestMarshalIsDeterministic(t *testing.T) {
	a, err := Marshal(mathBundle())
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}
	b, err := Marshal(mathBundle())
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}
	if Hash(a) != Hash(b) {
		t.Error("equal bundles encoded to different hashes")
	}
}

func TestInstallSupertypeOrdering(t *testing.T) {
	b := &Bundle{
		Name: "hier",
		Classes: []LinkedClass{
			{Name: "app/Base", Flags: vm.AccPublic},
			{Name: "app/Derived", Super: "app/Base", Flags: vm.AccPublic},
		},
	}
	ctx := vm.NewContext()
	if err := Install(ctx, b); err != nil {
		t.Fatalf("Install error: %v", err)
	}
	derived := ctx.Klasses().Lookup("app/Derived")
	if derived == nil || derived.Super() != ctx.Klasses().Lookup("app/Base") {
		t.Error("app/Derived not linked under app/Base")
	}
}

func TestInstallMissingSuperFails(t *testing.T) {
	b := &Bundle{
		Name: "broken",
		Classes: []LinkedClass{
			{Name: "app/Orphan", Super: "app/NoSuchBase", Flags: vm.AccPublic},
		},
	}
	if err := Install(vm.NewContext(), b); err == nil {
		t.Error("Install with a missing superclass did not fail")
	}
}

func TestInstallDuplicateFails(t *testing.T) {
	ctx := vm.NewContext()
	if err := Install(ctx, mathBundle()); err != nil {
		t.Fatalf("Install error: %v", err)
	}
	if err := Install(ctx, mathBundle()); err == nil {
		t.Error("reinstalling the same bundle did not fail")
	}
}

func TestInstallCarriesConstantPoolAndExceptions(t *testing.T) {
	b := &Bundle{
		Name: "exc",
		Classes: []LinkedClass{
			{Name: "java/io/IOException", Flags: vm.AccPublic},
			{
				Name:  "app/Files",
				Flags: vm.AccPublic,
				Pool: []PoolConst{
					{},
					{Tag: uint8(vm.PoolUtf8), Utf8: "java/io/IOException"},
					{Tag: uint8(vm.PoolClass), NameIndex: 1},
				},
				Methods: []LinkedMethod{
					{
						Name:              "read",
						Signature:         "()I",
						Flags:             vm.AccPublic,
						CheckedExceptions: []uint16{2},
					},
				},
			},
		},
	}
	ctx := vm.NewContext()
	if err := Install(ctx, b); err != nil {
		t.Fatalf("Install error: %v", err)
	}

	m := ctx.Klasses().Lookup("app/Files").LookupDeclaredMethod("read", "()I")
	exceptions, err := m.CheckedExceptions()
	if err != nil {
		t.Fatalf("CheckedExceptions error: %v", err)
	}
	if len(exceptions) != 1 || exceptions[0].Name() != "java/io/IOException" {
		t.Errorf("CheckedExceptions = %v, want [java/io/IOException]", exceptions)
	}
}
