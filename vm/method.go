package vm

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/chazu/kona/pkg/signature"
)

// ---------------------------------------------------------------------------
// Method: guest method descriptors
// ---------------------------------------------------------------------------

// CodeAttr carries a method's bytecode metadata.
type CodeAttr struct {
	MaxStack  uint16
	MaxLocals uint16
	Bytecode  []byte
	Handlers  []ExceptionHandler
}

// ExceptionHandler is one entry of a method's exception handler table.
type ExceptionHandler struct {
	StartPC      uint16
	EndPC        uint16
	HandlerPC    uint16
	CatchTypeCPI uint16 // constant pool index of the catch type; 0 catches all
}

// Method is an immutable guest method descriptor with lazily-filled
// caches: the call target, the checked-exception list, and the
// v-table/i-table slot indices (each writable exactly once).
//
// A method may be a proxy: an alternate raw-signature view of an
// origin method sharing the same code and link state. A proxy never
// computes its own call target; it forwards to the origin and caches
// the result.
type Method struct {
	declaringKlass *Klass
	pool           *ConstantPool
	name           string
	rawSignature   string
	signature      *signature.Signature
	flags          uint16
	code           *CodeAttr

	// Constant pool indices from the exceptions attribute; nil when
	// the attribute is absent.
	checkedExceptionIndexes []uint16

	// origin is the proxied method; nil for regular methods.
	origin *Method

	// mu guards call target construction.
	mu     sync.Mutex
	target atomic.Pointer[CallTarget]

	poisoned atomic.Bool

	// Checked-exception materialization follows the same
	// double-checked pattern as call target resolution, with its own
	// lock so the two never contend.
	excMu   sync.Mutex
	checked atomic.Pointer[[]*Klass]

	vtableMu    sync.Mutex
	vtableIndex int32
	itableIndex int32
}

// emptyCheckedExceptions is the shared result for methods without an
// exceptions attribute.
var emptyCheckedExceptions = []*Klass{}

func newMethod(k *Klass, name, rawSignature string, flags uint16, code *CodeAttr, checkedExceptionIndexes []uint16) (*Method, error) {
	sig, err := k.ctx.Signatures().Parsed(rawSignature)
	if err != nil {
		return nil, fmt.Errorf("vm: method %s.%s: %w", k.name, name, err)
	}
	return &Method{
		declaringKlass:          k,
		pool:                    k.pool,
		name:                    name,
		rawSignature:            rawSignature,
		signature:               sig,
		flags:                   flags,
		code:                    code,
		checkedExceptionIndexes: checkedExceptionIndexes,
		vtableIndex:             -1,
		itableIndex:             -1,
	}, nil
}

// WithRawSignature creates a proxy of this method with an alternate
// raw signature: identity fields, constant pool and code are copied,
// and an already-resolved call target is shared immediately. The proxy
// defers call target resolution to this method.
func (m *Method) WithRawSignature(rawSignature string) (*Method, error) {
	sig, err := m.declaringKlass.ctx.Signatures().Parsed(rawSignature)
	if err != nil {
		return nil, fmt.Errorf("vm: proxy of %s: %w", m, err)
	}
	p := &Method{
		declaringKlass:          m.declaringKlass,
		pool:                    m.pool,
		name:                    m.name,
		rawSignature:            rawSignature,
		signature:               sig,
		flags:                   m.flags,
		code:                    m.code,
		checkedExceptionIndexes: m.checkedExceptionIndexes,
		origin:                  m,
		vtableIndex:             -1,
		itableIndex:             -1,
	}
	// Share the call target now if the origin already has one.
	if ct := m.target.Load(); ct != nil {
		p.target.Store(ct)
	}
	return p, nil
}

// ---------------------------------------------------------------------------
// Identity accessors
// ---------------------------------------------------------------------------

// DeclaringKlass returns the klass that declared the method.
func (m *Method) DeclaringKlass() *Klass { return m.declaringKlass }

// Name returns the method name.
func (m *Method) Name() string { return m.name }

// RawSignature returns the raw descriptor string.
func (m *Method) RawSignature() string { return m.rawSignature }

// Signature returns the parsed signature.
func (m *Method) Signature() *signature.Signature { return m.signature }

// ConstantPool returns the method's constant pool. It can differ from
// the declaring klass's pool for methods injected during bootstrap.
func (m *Method) ConstantPool() *ConstantPool { return m.pool }

// Flags returns the access flags.
func (m *Method) Flags() uint16 { return m.flags }

// Origin returns the proxied method, or nil for regular methods.
func (m *Method) Origin() *Method { return m.origin }

// IsProxy reports whether the method is an alternate view of another.
func (m *Method) IsProxy() bool { return m.origin != nil }

// identity returns the method whose identity keys substitution and
// poison bookkeeping: the origin when this is a proxy.
func (m *Method) identity() *Method {
	if m.origin != nil {
		return m.origin
	}
	return m
}

// IsStatic reports whether the method is static.
func (m *Method) IsStatic() bool { return m.flags&AccStatic != 0 }

// IsNative reports whether the method is declared native.
func (m *Method) IsNative() bool { return m.flags&AccNative != 0 }

// IsAbstract reports whether the method is abstract.
func (m *Method) IsAbstract() bool { return m.flags&AccAbstract != 0 }

// IsPrivate reports whether the method is private.
func (m *Method) IsPrivate() bool { return m.flags&AccPrivate != 0 }

// HasReceiver reports whether the method takes a receiver, i.e.
// whether it is not static.
func (m *Method) HasReceiver() bool { return !m.IsStatic() }

// HasBytecodes reports whether the method's definition is bytecode.
// Methods without bytecode are abstract or native.
func (m *Method) HasBytecodes() bool {
	return m.code != nil && !m.IsNative() && !m.IsAbstract()
}

// IsConstructor reports whether the method is an instance initializer.
func (m *Method) IsConstructor() bool { return m.name == "<init>" }

// IsClassInitializer reports whether the method is "<clinit>".
func (m *Method) IsClassInitializer() bool { return m.name == "<clinit>" }

// IsDefault reports whether the method is a non-abstract, non-static
// public interface method.
func (m *Method) IsDefault() bool {
	if m.IsConstructor() {
		return false
	}
	mask := AccAbstract | AccPublic | AccStatic
	return m.flags&mask == AccPublic && m.declaringKlass.IsInterface()
}

// String renders the method for diagnostics.
func (m *Method) String() string {
	return fmt.Sprintf("Method<%s.%s -> %s>", m.declaringKlass.name, m.name, m.rawSignature)
}

// ---------------------------------------------------------------------------
// Code metadata
// ---------------------------------------------------------------------------

// Code returns the method's code attribute, or nil.
func (m *Method) Code() *CodeAttr { return m.code }

// CodeSize returns the bytecode length, or 0.
func (m *Method) CodeSize() int {
	if m.code == nil {
		return 0
	}
	return len(m.code.Bytecode)
}

// MaxLocals returns the local slot count from the code attribute.
func (m *Method) MaxLocals() int {
	if m.code == nil {
		return 0
	}
	return int(m.code.MaxLocals)
}

// MaxStack returns the operand stack slot count from the code attribute.
func (m *Method) MaxStack() int {
	if m.code == nil {
		return 0
	}
	return int(m.code.MaxStack)
}

// ExceptionHandlers returns the handler table, or nil.
func (m *Method) ExceptionHandlers() []ExceptionHandler {
	if m.code == nil {
		return nil
	}
	return m.code.Handlers
}

// ParameterCount returns the declared parameter count, without the
// receiver.
func (m *Method) ParameterCount() int {
	return m.signature.ParameterCount(false)
}

// ReturnKind returns the return kind.
func (m *Method) ReturnKind() signature.Kind {
	return m.signature.ReturnKind()
}

// ---------------------------------------------------------------------------
// Poison pill
// ---------------------------------------------------------------------------

// SetPoisonPill permanently marks the method as unresolvable due to
// conflicting maximally-specific default methods. The flag is
// monotonic: once set it is never cleared.
func (m *Method) SetPoisonPill() {
	m.identity().poisoned.Store(true)
}

// IsPoisoned reports whether the poison flag is set.
func (m *Method) IsPoisoned() bool {
	return m.identity().poisoned.Load()
}

// ---------------------------------------------------------------------------
// Checked exceptions
// ---------------------------------------------------------------------------

// CheckedExceptions returns the method's declared checked exception
// klasses. The list is computed at most once: the accessor returns the
// identical slice on every call, and concurrent first callers perform
// a single constant-pool resolution pass.
func (m *Method) CheckedExceptions() ([]*Klass, error) {
	if p := m.checked.Load(); p != nil {
		return *p, nil
	}

	m.excMu.Lock()
	defer m.excMu.Unlock()

	if p := m.checked.Load(); p != nil {
		return *p, nil
	}

	if len(m.checkedExceptionIndexes) == 0 {
		m.checked.Store(&emptyCheckedExceptions)
		return emptyCheckedExceptions, nil
	}

	resolved := make([]*Klass, len(m.checkedExceptionIndexes))
	for i, cpi := range m.checkedExceptionIndexes {
		k, err := m.pool.ResolvedKlassAt(m.declaringKlass, cpi)
		if err != nil {
			return nil, err
		}
		resolved[i] = k
	}
	m.checked.Store(&resolved)
	return resolved, nil
}

// ---------------------------------------------------------------------------
// Dispatch table slots
// ---------------------------------------------------------------------------

// SetVTableIndex records the method's v-table slot. The slot is
// writable once; rewriting asserts the same value.
func (m *Method) SetVTableIndex(i int) {
	m.vtableMu.Lock()
	defer m.vtableMu.Unlock()
	if m.vtableIndex != -1 && m.vtableIndex != int32(i) {
		panic(fmt.Sprintf("vm: %s vtable index rewritten: %d -> %d", m, m.vtableIndex, i))
	}
	m.vtableIndex = int32(i)
}

// VTableIndex returns the v-table slot, or -1.
func (m *Method) VTableIndex() int {
	m.vtableMu.Lock()
	defer m.vtableMu.Unlock()
	return int(m.vtableIndex)
}

// SetITableIndex records the method's i-table slot. The slot is
// writable once; rewriting asserts the same value.
func (m *Method) SetITableIndex(i int) {
	m.vtableMu.Lock()
	defer m.vtableMu.Unlock()
	if m.itableIndex != -1 && m.itableIndex != int32(i) {
		panic(fmt.Sprintf("vm: %s itable index rewritten: %d -> %d", m, m.itableIndex, i))
	}
	m.itableIndex = int32(i)
}

// ITableIndex returns the i-table slot, or -1.
func (m *Method) ITableIndex() int {
	m.vtableMu.Lock()
	defer m.vtableMu.Unlock()
	return int(m.itableIndex)
}
