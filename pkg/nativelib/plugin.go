package nativelib

import (
	"fmt"
	"plugin"
	"sync"
)

// ---------------------------------------------------------------------------
// PluginLibrary: Go-plugin-backed native library
// ---------------------------------------------------------------------------

// PluginLibrary resolves symbols from a Go plugin (.so). Exported
// entry points must have the Symbol shape:
//
//	func Java_p_Widget_paint(args ...any) any { ... }
//
// Plugin symbol resolution is memoized; a name that resolves once
// stays resolved for the library's lifetime.
type PluginLibrary struct {
	name string
	plug *plugin.Plugin

	mu    sync.Mutex
	cache map[string]Symbol
}

// OpenPlugin loads a Go plugin as a native library.
func OpenPlugin(path string) (*PluginLibrary, error) {
	plug, err := plugin.Open(path)
	if err != nil {
		return nil, fmt.Errorf("nativelib: opening plugin %s: %w", path, err)
	}
	return &PluginLibrary{
		name:  path,
		plug:  plug,
		cache: make(map[string]Symbol),
	}, nil
}

// Name returns the plugin path.
func (p *PluginLibrary) Name() string { return p.name }

// Lookup implements Library. A symbol present in the plugin but with
// the wrong shape is a hard error, not ErrSymbolNotFound.
func (p *PluginLibrary) Lookup(symbol string) (Symbol, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if sym, ok := p.cache[symbol]; ok {
		return sym, nil
	}

	raw, err := p.plug.Lookup(symbol)
	if err != nil {
		return nil, fmt.Errorf("%w: %s in %s", ErrSymbolNotFound, symbol, p.name)
	}
	fn, ok := raw.(func(args ...any) any)
	if !ok {
		return nil, fmt.Errorf("nativelib: %s in %s has shape %T, want func(...any) any", symbol, p.name, raw)
	}
	sym := Symbol(fn)
	p.cache[symbol] = sym
	return sym, nil
}
