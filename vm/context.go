package vm

import (
	"sync"
	"sync/atomic"

	"github.com/tliron/commonlog"

	"github.com/chazu/kona/pkg/nativelib"
	"github.com/chazu/kona/pkg/signature"
)

// ---------------------------------------------------------------------------
// Context: one guest runtime instance
// ---------------------------------------------------------------------------

// Context owns the shared state of one guest runtime: the klass and
// signature tables, the substitution table, the native symbol sources,
// and the well-known bootstrap klasses.
type Context struct {
	signatures    *signature.Table
	klasses       *KlassTable
	substitutions *SubstitutionTable
	meta          *Meta
	log           commonlog.Logger

	envHandle int64

	libMu         sync.RWMutex
	systemLibrary nativelib.Library

	funcMu     sync.RWMutex
	functions  map[int64]nativelib.Symbol
	nextHandle atomic.Int64

	polyMu  sync.Mutex
	polysig map[methodKey]*Method

	pending atomic.Pointer[GuestError]
}

// Meta holds the well-known klasses and methods the linker special-
// cases.
type Meta struct {
	// ObjectKlass is the root of the klass hierarchy.
	ObjectKlass *Klass
	// StringKlass backs guest strings created by host conversion.
	StringKlass *Klass
	// MethodHandleKlass declares the polymorphic invocation methods.
	MethodHandleKlass *Klass
	// FindNative is the generic native-symbol finder, a guest method
	// linked through the same linker it serves. It must be resolvable
	// (normally via a substitution) before any native method needs it.
	FindNative *Method
	// PolysigDispatch executes polymorphic-signature invocations. The
	// runtime embedder installs it; linking succeeds without it, but
	// calls through an uninstalled dispatcher fail.
	PolysigDispatch Substitution
}

// NewContext creates a context and bootstraps the well-known klasses.
func NewContext() *Context {
	ctx := &Context{
		signatures:    signature.NewTable(),
		klasses:       NewKlassTable(),
		substitutions: NewSubstitutionTable(),
		log:           commonlog.GetLogger("kona.vm"),
		envHandle:     1,
		functions:     make(map[int64]nativelib.Symbol),
		polysig:       make(map[methodKey]*Method),
	}
	ctx.bootstrap()
	return ctx
}

// bootstrap creates the minimal klass graph every context carries.
func (ctx *Context) bootstrap() {
	meta := &Meta{}
	meta.ObjectKlass = ctx.NewKlass("java/lang/Object", nil, AccPublic, nil, nil)
	meta.StringKlass = ctx.NewKlass("java/lang/String", meta.ObjectKlass, AccPublic|AccFinal, nil, nil)
	meta.MethodHandleKlass = ctx.NewKlass("java/lang/invoke/MethodHandle", meta.ObjectKlass, AccPublic|AccAbstract, nil, nil)
	ctx.meta = meta
}

// ---------------------------------------------------------------------------
// Accessors
// ---------------------------------------------------------------------------

// Signatures returns the shared parsed-signature table.
func (ctx *Context) Signatures() *signature.Table { return ctx.signatures }

// Klasses returns the klass registry.
func (ctx *Context) Klasses() *KlassTable { return ctx.klasses }

// Substitutions returns the intrinsic substitution table.
func (ctx *Context) Substitutions() *SubstitutionTable { return ctx.substitutions }

// Meta returns the well-known klasses and methods.
func (ctx *Context) Meta() *Meta { return ctx.meta }

// Logger returns the context's diagnostic logger.
func (ctx *Context) Logger() commonlog.Logger { return ctx.log }

// EnvHandle returns the environment handle passed as the implicit
// first native argument.
func (ctx *Context) EnvHandle() int64 { return ctx.envHandle }

// ---------------------------------------------------------------------------
// Klass creation
// ---------------------------------------------------------------------------

// NewKlass links a klass into the context and registers it. A nil
// loader marks a bootstrap (system) klass.
func (ctx *Context) NewKlass(name string, super *Klass, flags uint16, loader *Object, pool *ConstantPool) *Klass {
	if pool == nil {
		pool = NewConstantPool(nil)
	}
	k := &Klass{
		ctx:    ctx,
		name:   name,
		super:  super,
		flags:  flags,
		loader: loader,
		pool:   pool,
	}
	k.initCond = sync.NewCond(&k.initMu)
	ctx.klasses.Register(k)
	return k
}

// NewString allocates a guest string wrapping a host string.
func (ctx *Context) NewString(s string) *Object {
	return NewPayloadObject(ctx.meta.StringKlass, s)
}

// ---------------------------------------------------------------------------
// Native symbol sources
// ---------------------------------------------------------------------------

// SetSystemLibrary installs the native image probed for bootstrap
// klasses' native methods.
func (ctx *Context) SetSystemLibrary(lib nativelib.Library) {
	ctx.libMu.Lock()
	ctx.systemLibrary = lib
	ctx.libMu.Unlock()
}

// SystemLibrary returns the system native image, or nil.
func (ctx *Context) SystemLibrary() nativelib.Library {
	ctx.libMu.RLock()
	defer ctx.libMu.RUnlock()
	return ctx.systemLibrary
}

// RegisterFunction stores a native symbol and returns the numeric
// handle findNative hands back to the linker. Handles are never zero.
func (ctx *Context) RegisterFunction(sym nativelib.Symbol) int64 {
	handle := ctx.nextHandle.Add(1)
	ctx.funcMu.Lock()
	ctx.functions[handle] = sym
	ctx.funcMu.Unlock()
	return handle
}

// FunctionAt returns the symbol behind a handle, or nil.
func (ctx *Context) FunctionAt(handle int64) nativelib.Symbol {
	ctx.funcMu.RLock()
	defer ctx.funcMu.RUnlock()
	return ctx.functions[handle]
}

// ---------------------------------------------------------------------------
// Pending guest error (pre-call hygiene)
// ---------------------------------------------------------------------------

// SetPendingError records a guest error on the context, mirroring a
// native-interface pending exception.
func (ctx *Context) SetPendingError(e *GuestError) {
	ctx.pending.Store(e)
}

// PendingError returns the pending guest error, or nil.
func (ctx *Context) PendingError() *GuestError {
	return ctx.pending.Load()
}

// ClearPendingError clears any pending guest error. Both invocation
// adapters call this before dispatch; it is hygiene, not recovery.
func (ctx *Context) ClearPendingError() {
	ctx.pending.Store(nil)
}

// ---------------------------------------------------------------------------
// Polymorphic-signature intrinsics
// ---------------------------------------------------------------------------

// polysigMethod returns the intrinsic method for a polymorphic-
// signature call site, creating it on first use. The intrinsic is a
// proxy-like view of the declared generic method with an eagerly
// installed call target, so linking it never recurses into native
// binding.
func (ctx *Context) polysigMethod(k *Klass, name, rawSignature string) (*Method, error) {
	key := methodKey{klass: k.name, name: name, signature: rawSignature}

	ctx.polyMu.Lock()
	defer ctx.polyMu.Unlock()

	if m := ctx.polysig[key]; m != nil {
		return m, nil
	}

	m, err := newMethod(k, name, rawSignature, AccPublic|AccFinal|AccNative, nil, nil)
	if err != nil {
		return nil, err
	}
	m.setEagerTarget(&CallTarget{
		kind:   TargetIntrinsic,
		method: m,
		invoke: func(args []Value) (Value, error) {
			dispatch := ctx.meta.PolysigDispatch
			if dispatch == nil {
				return Void, Throw(ErrInternal, "no polymorphic-signature dispatcher installed for %s", m)
			}
			return dispatch(ctx, args)
		},
	})
	ctx.polysig[key] = m
	return m, nil
}

// ---------------------------------------------------------------------------
// Host/guest conversions
// ---------------------------------------------------------------------------

// ToGuest converts a host-visible value to a raw slot of the given
// kind. Primitives are shared verbatim; conversions exist for strings
// and nil. Mismatched types are an error, never coerced.
func (ctx *Context) ToGuest(v any, kind signature.Kind) (Value, error) {
	switch kind {
	case signature.KindBoolean:
		if b, ok := v.(bool); ok {
			return BoolValue(b), nil
		}
	case signature.KindByte:
		if b, ok := v.(int8); ok {
			return ByteValue(b), nil
		}
	case signature.KindChar:
		if c, ok := v.(uint16); ok {
			return CharValue(c), nil
		}
	case signature.KindShort:
		if s, ok := v.(int16); ok {
			return ShortValue(s), nil
		}
	case signature.KindInt:
		if i, ok := v.(int32); ok {
			return IntValue(i), nil
		}
	case signature.KindFloat:
		if f, ok := v.(float32); ok {
			return FloatValue(f), nil
		}
	case signature.KindLong:
		if l, ok := v.(int64); ok {
			return LongValue(l), nil
		}
	case signature.KindDouble:
		if d, ok := v.(float64); ok {
			return DoubleValue(d), nil
		}
	case signature.KindObject:
		switch o := v.(type) {
		case nil:
			return Null, nil
		case *Object:
			return RefValue(o), nil
		case string:
			return RefValue(ctx.NewString(o)), nil
		case Value:
			if o.Kind() == signature.KindObject {
				return o, nil
			}
		}
	}
	return Void, Throw(ErrInternal, "cannot convert host %T to guest %s", v, kind)
}

// ToHost converts a raw slot back to the host representation. Guest
// strings unwrap to host strings; null unwraps to nil.
func (ctx *Context) ToHost(v Value) any {
	switch v.Kind() {
	case signature.KindVoid:
		return nil
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
		if ref.Klass() == ctx.meta.StringKlass {
			if s, ok := ref.Payload().(string); ok {
				return s
			}
		}
		return ref
	}
	return nil
}
