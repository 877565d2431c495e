package vm

// ---------------------------------------------------------------------------
// CallTarget: the executable unit a resolved method reduces to
// ---------------------------------------------------------------------------

// TargetKind tags the execution strategy behind a call target. The set
// of strategies is closed, so dispatch is a tag switch rather than
// interface polymorphism.
type TargetKind uint8

const (
	// TargetIntrinsic is a substituted built-in implementation.
	TargetIntrinsic TargetKind = iota
	// TargetNative is a bound native symbol.
	TargetNative
	// TargetBytecode is an interpreted bytecode body.
	TargetBytecode
)

// String returns the strategy name.
func (k TargetKind) String() string {
	switch k {
	case TargetIntrinsic:
		return "intrinsic"
	case TargetNative:
		return "native"
	case TargetBytecode:
		return "bytecode"
	}
	return "unknown"
}

// CallTarget is an invocable unit of executable logic. A target is
// constructed at most once per non-proxy method and immutable after
// creation. Arguments follow the internal calling convention: raw
// slots with the receiver prepended for instance methods.
type CallTarget struct {
	kind   TargetKind
	method *Method
	invoke func(args []Value) (Value, error)
}

// Kind returns the execution strategy tag.
func (ct *CallTarget) Kind() TargetKind { return ct.kind }

// Method returns the method the target executes.
func (ct *CallTarget) Method() *Method { return ct.method }

// Call invokes the target with raw-slot arguments.
func (ct *CallTarget) Call(args ...Value) (Value, error) {
	return ct.invoke(args)
}

// ---------------------------------------------------------------------------
// Lazy resolution
// ---------------------------------------------------------------------------

// CallTarget resolves the method into its executable call target,
// constructing it on first use. The resolution is safe to race: all
// concurrent callers observe the same target instance, and exactly one
// target is ever constructed for a non-proxy method.
//
// Resolution order: poison check, declaring-klass initialization
// (outside the method lock), cache re-check under the lock, proxy
// short-circuit, substitution lookup, native binding, and finally the
// interpreted bytecode target.
//
// A failed native link is not cached: the next call re-runs the whole
// search, so libraries registered after the failure are found.
func (m *Method) CallTarget() (*CallTarget, error) {
	if ct := m.target.Load(); ct != nil {
		return ct, nil
	}

	if m.IsPoisoned() {
		return nil, Throw(ErrIncompatibleClassChange, "conflicting default methods: %s", m.name)
	}

	// Initializing a klass takes the coarser klass-init lock. Acquire
	// it before the method lock, never inside it, or initialization
	// and linkage can deadlock against each other. Resolution is
	// immediately followed by a call, so initializing here also keeps
	// the init-before-first-invocation ordering.
	if err := m.declaringKlass.EnsureInitialized(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Another thread may have finished first.
	if ct := m.target.Load(); ct != nil {
		return ct, nil
	}

	if m.origin != nil {
		ct, err := m.origin.CallTarget()
		if err != nil {
			return nil, err
		}
		m.target.Store(ct)
		return ct, nil
	}

	ctx := m.declaringKlass.ctx

	if sub := ctx.Substitutions().Lookup(m); sub != nil {
		ct := newIntrinsicTarget(m, sub)
		m.target.Store(ct)
		return ct, nil
	}

	var ct *CallTarget
	switch {
	case m.IsNative():
		var err error
		ct, err = m.linkNative()
		if err != nil {
			return nil, err
		}
	case m.code != nil:
		ct = m.newBytecodeTarget()
	default:
		return nil, Throw(ErrAbstractMethod, "%s.%s%s", m.declaringKlass.name, m.name, m.rawSignature)
	}

	m.target.Store(ct)
	return ct, nil
}

// ResolvedTarget returns the cached call target without triggering
// resolution, or nil.
func (m *Method) ResolvedTarget() *CallTarget {
	return m.target.Load()
}

// setEagerTarget installs a pre-built call target, used for intrinsics
// created at bootstrap time.
func (m *Method) setEagerTarget(ct *CallTarget) {
	m.target.Store(ct)
}

// newIntrinsicTarget wraps a substitution as a call target.
func newIntrinsicTarget(m *Method, sub Substitution) *CallTarget {
	ctx := m.declaringKlass.ctx
	return &CallTarget{
		kind:   TargetIntrinsic,
		method: m,
		invoke: func(args []Value) (Value, error) {
			return sub(ctx, args)
		},
	}
}

// newBytecodeTarget builds an interpreted target. The frame layout is
// sized once, at link time, to max locals plus max stack slots.
func (m *Method) newBytecodeTarget() *CallTarget {
	layout := newFrameLayout(m.MaxLocals(), m.MaxStack())
	return &CallTarget{
		kind:   TargetBytecode,
		method: m,
		invoke: func(args []Value) (Value, error) {
			frame := layout.newFrame(m.code.Bytecode)
			frame.loadArguments(m, args)
			return interpret(m, frame)
		},
	}
}
