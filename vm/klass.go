package vm

import (
	"runtime"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
)

// ---------------------------------------------------------------------------
// Klass: guest classes
// ---------------------------------------------------------------------------

// Klass initialization states.
const (
	klassLinked int32 = iota
	klassInitializing
	klassInitialized
	klassInitFailed
)

// Klass is a linked guest class: a name, a superclass, declared
// methods, and an initialization state machine. The initialization
// lock is deliberately separate from (and coarser than) the per-method
// linkage locks: initialization may link methods, but linking a method
// never initializes a klass while holding the method lock.
type Klass struct {
	ctx    *Context
	name   string
	super  *Klass
	flags  uint16
	loader *Object // defining loader; nil is the bootstrap loader
	pool   *ConstantPool

	mu      sync.Mutex
	methods []*Method
	clinit  *Method

	initMu        sync.Mutex
	initCond      *sync.Cond
	initState     atomic.Int32
	initGoroutine int64
	initErr       error
}

// Name returns the klass's internal name (e.g. "java/lang/Object").
func (k *Klass) Name() string { return k.name }

// Super returns the superclass, or nil for the root.
func (k *Klass) Super() *Klass { return k.super }

// IsInterface reports whether the klass is an interface type.
func (k *Klass) IsInterface() bool { return k.flags&AccInterface != 0 }

// DefiningLoader returns the guest loader object that defined this
// klass; nil for the bootstrap loader.
func (k *Klass) DefiningLoader() *Object { return k.loader }

// DefinedByBootstrapLoader reports whether the klass was defined by
// the bootstrap (null) loader.
func (k *Klass) DefinedByBootstrapLoader() bool { return k.loader == nil }

// Context returns the runtime context the klass belongs to.
func (k *Klass) Context() *Context { return k.ctx }

// ConstantPool returns the klass's runtime constant pool.
func (k *Klass) ConstantPool() *ConstantPool { return k.pool }

// String implements the Stringer interface.
func (k *Klass) String() string { return k.name }

// ---------------------------------------------------------------------------
// Method registration and lookup
// ---------------------------------------------------------------------------

// AddMethod declares a method on this klass. The raw signature is
// parsed through the context's shared signature table. A method named
// "<clinit>" becomes the klass's initializer.
func (k *Klass) AddMethod(name, rawSignature string, flags uint16, code *CodeAttr, checkedExceptionIndexes []uint16) (*Method, error) {
	m, err := newMethod(k, name, rawSignature, flags, code, checkedExceptionIndexes)
	if err != nil {
		return nil, err
	}

	k.mu.Lock()
	k.methods = append(k.methods, m)
	if name == "<clinit>" {
		k.clinit = m
	}
	k.mu.Unlock()
	return m, nil
}

// LookupDeclaredMethod finds a declared method by name and raw
// signature. Superclasses are not searched.
func (k *Klass) LookupDeclaredMethod(name, rawSignature string) *Method {
	k.mu.Lock()
	defer k.mu.Unlock()
	for _, m := range k.methods {
		if m.name == name && m.rawSignature == rawSignature {
			return m
		}
	}
	return nil
}

// Methods returns the declared methods.
func (k *Klass) Methods() []*Method {
	k.mu.Lock()
	defer k.mu.Unlock()
	out := make([]*Method, len(k.methods))
	copy(out, k.methods)
	return out
}

// LookupPolysigMethod resolves a polymorphic-signature view of a
// declared method, creating and caching an intrinsic method for the
// requested raw signature on first use.
func (k *Klass) LookupPolysigMethod(name, rawSignature string) (*Method, error) {
	return k.ctx.polysigMethod(k, name, rawSignature)
}

// ---------------------------------------------------------------------------
// Initialization
// ---------------------------------------------------------------------------

// EnsureInitialized runs the klass's initializer exactly once,
// superclasses first. Concurrent callers block until initialization
// completes; the initializing goroutine itself re-enters without
// blocking. A failed initialization is permanent.
func (k *Klass) EnsureInitialized() error {
	if k.initState.Load() == klassInitialized {
		return nil
	}
	return k.initialize()
}

func (k *Klass) initialize() error {
	gid := goroutineID()

	k.initMu.Lock()
	for {
		switch k.initState.Load() {
		case klassInitialized:
			k.initMu.Unlock()
			return nil
		case klassInitFailed:
			err := k.initErr
			k.initMu.Unlock()
			return err
		case klassInitializing:
			if k.initGoroutine == gid {
				// Reentrant request from the initializer itself.
				k.initMu.Unlock()
				return nil
			}
			k.initCond.Wait()
		case klassLinked:
			k.initState.Store(klassInitializing)
			k.initGoroutine = gid
			k.initMu.Unlock()

			err := k.runInitializer()

			k.initMu.Lock()
			k.initGoroutine = 0
			if err != nil {
				k.initErr = err
				k.initState.Store(klassInitFailed)
			} else {
				k.initState.Store(klassInitialized)
			}
			k.initCond.Broadcast()
			k.initMu.Unlock()
			return err
		}
	}
}

// runInitializer initializes the superclass and runs <clinit>. No
// lock is held while guest code executes.
func (k *Klass) runInitializer() error {
	if k.super != nil {
		if err := k.super.EnsureInitialized(); err != nil {
			return err
		}
	}

	k.mu.Lock()
	clinit := k.clinit
	k.mu.Unlock()
	if clinit == nil {
		return nil
	}

	ct, err := clinit.CallTarget()
	if err != nil {
		return ThrowWrapped(ErrExceptionInInitializer, err, "%s", k.name)
	}
	if _, err := ct.Call(); err != nil {
		return ThrowWrapped(ErrExceptionInInitializer, err, "%s", k.name)
	}
	return nil
}

// IsInitialized reports whether initialization has completed
// successfully.
func (k *Klass) IsInitialized() bool {
	return k.initState.Load() == klassInitialized
}

// goroutineID returns the current goroutine's ID by parsing the stack.
// This is a workaround since Go doesn't expose goroutine IDs directly.
func goroutineID() int64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	// Stack starts with "goroutine <id> [...]"
	s := string(buf[:n])
	s = strings.TrimPrefix(s, "goroutine ")
	idx := strings.Index(s, " ")
	if idx > 0 {
		s = s[:idx]
	}
	id, _ := strconv.ParseInt(s, 10, 64)
	return id
}

// ---------------------------------------------------------------------------
// KlassTable: klass registry
// ---------------------------------------------------------------------------

// KlassTable manages linked klasses by internal name. It's thread-safe
// for concurrent access.
type KlassTable struct {
	mu      sync.RWMutex
	klasses map[string]*Klass
}

// NewKlassTable creates a new empty klass table.
func NewKlassTable() *KlassTable {
	return &KlassTable{klasses: make(map[string]*Klass)}
}

// Register adds a klass to the table. Returns the previous klass with
// this name, or nil.
func (kt *KlassTable) Register(k *Klass) *Klass {
	kt.mu.Lock()
	defer kt.mu.Unlock()
	old := kt.klasses[k.name]
	kt.klasses[k.name] = k
	return old
}

// Lookup finds a klass by internal name.
func (kt *KlassTable) Lookup(name string) *Klass {
	kt.mu.RLock()
	defer kt.mu.RUnlock()
	return kt.klasses[name]
}

// Has returns true if a klass with this name is registered.
func (kt *KlassTable) Has(name string) bool {
	kt.mu.RLock()
	defer kt.mu.RUnlock()
	_, ok := kt.klasses[name]
	return ok
}

// All returns all registered klasses.
func (kt *KlassTable) All() []*Klass {
	kt.mu.RLock()
	defer kt.mu.RUnlock()
	out := make([]*Klass, 0, len(kt.klasses))
	for _, k := range kt.klasses {
		out = append(out, k)
	}
	return out
}

// Len returns the number of registered klasses.
func (kt *KlassTable) Len() int {
	kt.mu.RLock()
	defer kt.mu.RUnlock()
	return len(kt.klasses)
}

// ---------------------------------------------------------------------------
// Access flags
// ---------------------------------------------------------------------------

// Recognized access flags for klasses and methods.
const (
	AccPublic       uint16 = 0x0001
	AccPrivate      uint16 = 0x0002
	AccProtected    uint16 = 0x0004
	AccStatic       uint16 = 0x0008
	AccFinal        uint16 = 0x0010
	AccSynchronized uint16 = 0x0020
	AccNative       uint16 = 0x0100
	AccInterface    uint16 = 0x0200
	AccAbstract     uint16 = 0x0400
)
