// Package bundle defines the serialized form of linked klasses. A
// bundle carries a set of classes with their constant pools, method
// declarations and bytecode, CBOR-encoded for deterministic hashing,
// and installs into a runtime context in one pass.
package bundle

import (
	"crypto/sha256"
	"fmt"

	"github.com/chazu/kona/vm"
)

// Bundle is a named set of classes shipped together. Classes are listed
// supertype-first: a class's superclass is either earlier in the bundle
// or already installed in the target context.
type Bundle struct {
	Name    string        `cbor:"1,keyasint"`
	Version string        `cbor:"2,keyasint,omitempty"`
	Classes []LinkedClass `cbor:"3,keyasint"`
}

// LinkedClass is one class of a bundle.
type LinkedClass struct {
	Name    string         `cbor:"1,keyasint"`
	Super   string         `cbor:"2,keyasint,omitempty"` // empty roots at java/lang/Object
	Flags   uint16         `cbor:"3,keyasint"`
	Pool    []PoolConst    `cbor:"4,keyasint,omitempty"`
	Methods []LinkedMethod `cbor:"5,keyasint,omitempty"`
}

// PoolConst is one constant pool entry. Only the tags the runtime
// consumes are carried.
type PoolConst struct {
	Tag       uint8  `cbor:"1,keyasint"`
	Utf8      string `cbor:"2,keyasint,omitempty"`
	NameIndex uint16 `cbor:"3,keyasint,omitempty"`
}

// LinkedMethod is one method declaration of a class.
type LinkedMethod struct {
	Name              string   `cbor:"1,keyasint"`
	Signature         string   `cbor:"2,keyasint"`
	Flags             uint16   `cbor:"3,keyasint"`
	Code              *Code    `cbor:"4,keyasint,omitempty"`
	CheckedExceptions []uint16 `cbor:"5,keyasint,omitempty"` // Class entry indices
}

// Code is a method's bytecode attribute.
type Code struct {
	MaxStack  uint16    `cbor:"1,keyasint"`
	MaxLocals uint16    `cbor:"2,keyasint"`
	Bytecode  []byte    `cbor:"3,keyasint"`
	Handlers  []Handler `cbor:"4,keyasint,omitempty"`
}

// Handler is one exception handler table entry.
type Handler struct {
	StartPC   uint16 `cbor:"1,keyasint"`
	EndPC     uint16 `cbor:"2,keyasint"`
	HandlerPC uint16 `cbor:"3,keyasint"`
	CatchType uint16 `cbor:"4,keyasint,omitempty"` // Class entry index; 0 catches all
}

// Hash returns the content hash of encoded bundle bytes.
func Hash(data []byte) [32]byte {
	return sha256.Sum256(data)
}

// Install links every class of the bundle into the context,
// supertype-first. Already-registered class names are an error.
func Install(ctx *vm.Context, b *Bundle) error {
	for _, lc := range b.Classes {
		if ctx.Klasses().Has(lc.Name) {
			return fmt.Errorf("bundle %s: class %s already installed", b.Name, lc.Name)
		}

		super := ctx.Meta().ObjectKlass
		if lc.Super != "" {
			super = ctx.Klasses().Lookup(lc.Super)
			if super == nil {
				return fmt.Errorf("bundle %s: class %s: superclass %s not installed", b.Name, lc.Name, lc.Super)
			}
		}

		k := ctx.NewKlass(lc.Name, super, lc.Flags, nil, poolOf(lc.Pool))
		for _, lm := range lc.Methods {
			if _, err := k.AddMethod(lm.Name, lm.Signature, lm.Flags, codeOf(lm.Code), lm.CheckedExceptions); err != nil {
				return fmt.Errorf("bundle %s: %w", b.Name, err)
			}
		}
	}
	return nil
}

func poolOf(consts []PoolConst) *vm.ConstantPool {
	if len(consts) == 0 {
		return nil
	}
	entries := make([]vm.PoolEntry, len(consts))
	for i, c := range consts {
		entries[i] = vm.PoolEntry{
			Tag:       vm.PoolTag(c.Tag),
			Utf8:      c.Utf8,
			NameIndex: c.NameIndex,
		}
	}
	return vm.NewConstantPool(entries)
}

func codeOf(c *Code) *vm.CodeAttr {
	if c == nil {
		return nil
	}
	handlers := make([]vm.ExceptionHandler, len(c.Handlers))
	for i, h := range c.Handlers {
		handlers[i] = vm.ExceptionHandler{
			StartPC:      h.StartPC,
			EndPC:        h.EndPC,
			HandlerPC:    h.HandlerPC,
			CatchTypeCPI: h.CatchType,
		}
	}
	return &vm.CodeAttr{
		MaxStack:  c.MaxStack,
		MaxLocals: c.MaxLocals,
		Bytecode:  c.Bytecode,
		Handlers:  handlers,
	}
}
