// Package nativelib locates and binds native entry points for guest
// methods. A Library resolves mangled symbol names to raw symbols; a
// raw symbol is bound together with a calling-convention signature to
// produce a callable. Symbol lookup distinguishes "not found" (a
// control-flow signal driving the short-name/long-name fallback chain)
// from hard errors.
package nativelib

import (
	"errors"
	"fmt"
	"sync"
)

// ErrSymbolNotFound reports that a library does not export the
// requested symbol. It drives fallback search and must never surface
// to the caller of method resolution.
var ErrSymbolNotFound = errors.New("nativelib: symbol not found")

// Symbol is a raw native entry point. The argument layout is the
// caller's concern until the symbol is bound to a signature.
type Symbol func(args ...any) any

// Library resolves symbols by mangled name.
type Library interface {
	// Name identifies the library for diagnostics.
	Name() string
	// Lookup returns the symbol exported under the given mangled
	// name, or ErrSymbolNotFound.
	Lookup(symbol string) (Symbol, error)
}

// ---------------------------------------------------------------------------
// Binding
// ---------------------------------------------------------------------------

// BoundSymbol is a symbol attached to a calling-convention signature.
// Creation never fails given a valid symbol.
type BoundSymbol struct {
	sym       Symbol
	signature string
}

// Bind attaches a calling-convention signature to a raw symbol.
func Bind(sym Symbol, signature string) *BoundSymbol {
	return &BoundSymbol{sym: sym, signature: signature}
}

// LookupAndBind resolves a symbol in lib and binds it. Returns
// ErrSymbolNotFound when the library does not export the name.
func LookupAndBind(lib Library, name, signature string) (*BoundSymbol, error) {
	sym, err := lib.Lookup(name)
	if err != nil {
		return nil, err
	}
	return Bind(sym, signature), nil
}

// Call invokes the bound symbol.
func (b *BoundSymbol) Call(args ...any) any {
	return b.sym(args...)
}

// Signature returns the calling-convention signature the symbol was
// bound with.
func (b *BoundSymbol) Signature() string {
	return b.signature
}

// ---------------------------------------------------------------------------
// Registry: in-process library
// ---------------------------------------------------------------------------

// Registry is a Library backed by an in-process symbol map. It backs
// builtin natives and tests, and doubles as the address table for
// symbols handed out as numeric handles.
type Registry struct {
	name string

	mu      sync.RWMutex
	symbols map[string]Symbol
}

// NewRegistry creates an empty registry library.
func NewRegistry(name string) *Registry {
	return &Registry{
		name:    name,
		symbols: make(map[string]Symbol),
	}
}

// Name returns the registry's diagnostic name.
func (r *Registry) Name() string { return r.name }

// Register exports a symbol under the given mangled name, replacing
// any previous export.
func (r *Registry) Register(name string, sym Symbol) {
	r.mu.Lock()
	r.symbols[name] = sym
	r.mu.Unlock()
}

// Lookup implements Library.
func (r *Registry) Lookup(symbol string) (Symbol, error) {
	r.mu.RLock()
	sym := r.symbols[symbol]
	r.mu.RUnlock()
	if sym == nil {
		return nil, fmt.Errorf("%w: %s in %s", ErrSymbolNotFound, symbol, r.name)
	}
	return sym, nil
}

// Len returns the number of exported symbols.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.symbols)
}
