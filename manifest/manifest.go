// Package manifest handles kona.toml runtime configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Manifest represents a kona.toml runtime configuration.
type Manifest struct {
	Runtime Runtime `toml:"runtime"`
	Natives Natives `toml:"natives"`
	Store   Store   `toml:"store"`

	// Dir is the directory containing the kona.toml file (set at load time).
	Dir string `toml:"-"`
}

// Runtime configures what the runtime boots and runs.
type Runtime struct {
	// Bundles lists the bundle names to install from the store, in order.
	Bundles []string `toml:"bundles"`
	// EntryClass is the internal name of the class holding the entry method.
	EntryClass string `toml:"entry-class"`
	// EntryMethod is the entry method name. Defaults to "main".
	EntryMethod string `toml:"entry-method"`
	// EntrySignature is the entry method's raw descriptor. Defaults to "()V".
	EntrySignature string `toml:"entry-signature"`
}

// Natives configures native symbol sources.
type Natives struct {
	// SystemLibrary is a Go plugin path probed for bootstrap natives.
	SystemLibrary string `toml:"system-library"`
}

// Store configures bundle storage.
type Store struct {
	Path string `toml:"path"`
}

// Load parses a kona.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, "kona.toml")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}

	// Defaults
	if m.Runtime.EntryMethod == "" {
		m.Runtime.EntryMethod = "main"
	}
	if m.Runtime.EntrySignature == "" {
		m.Runtime.EntrySignature = "()V"
	}
	if m.Store.Path == "" {
		m.Store.Path = "bundles.db"
	}

	return &m, nil
}

// FindAndLoad walks up from startDir to find a kona.toml file, then
// loads and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, "kona.toml")
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return nil, nil
		}
		dir = parent
	}
}

// StorePath returns the absolute path of the bundle store.
func (m *Manifest) StorePath() string {
	if filepath.IsAbs(m.Store.Path) {
		return m.Store.Path
	}
	return filepath.Join(m.Dir, m.Store.Path)
}

// SystemLibraryPath returns the absolute path of the system native
// library, or "" when none is configured.
func (m *Manifest) SystemLibraryPath() string {
	p := m.Natives.SystemLibrary
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(m.Dir, p)
}
