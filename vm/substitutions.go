package vm

import "sync"

// ---------------------------------------------------------------------------
// Substitutions: intrinsic replacement implementations
// ---------------------------------------------------------------------------

// Substitution is a built-in implementation that replaces a declared
// method body. Arguments arrive in the internal calling convention,
// receiver included for instance methods.
type Substitution func(ctx *Context, args []Value) (Value, error)

// methodKey identifies a method for substitution lookup. Proxies key
// on their origin, so every view of a method hits the same entry.
type methodKey struct {
	klass     string
	name      string
	signature string
}

func keyOf(m *Method) methodKey {
	id := m.identity()
	return methodKey{
		klass:     id.declaringKlass.name,
		name:      id.name,
		signature: id.rawSignature,
	}
}

// SubstitutionTable maps method identities to intrinsic
// implementations. It's thread-safe for concurrent access.
type SubstitutionTable struct {
	mu      sync.RWMutex
	entries map[methodKey]Substitution
}

// NewSubstitutionTable creates an empty substitution table.
func NewSubstitutionTable() *SubstitutionTable {
	return &SubstitutionTable{entries: make(map[methodKey]Substitution)}
}

// Register installs a substitution for the method identified by klass
// name, method name and raw signature, replacing any previous entry.
func (st *SubstitutionTable) Register(klassName, methodName, rawSignature string, sub Substitution) {
	st.mu.Lock()
	st.entries[methodKey{klass: klassName, name: methodName, signature: rawSignature}] = sub
	st.mu.Unlock()
}

// Lookup returns the substitution for a method, or nil.
func (st *SubstitutionTable) Lookup(m *Method) Substitution {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.entries[keyOf(m)]
}

// Len returns the number of registered substitutions.
func (st *SubstitutionTable) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.entries)
}
