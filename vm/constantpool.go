package vm

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// ---------------------------------------------------------------------------
// ConstantPool: runtime constant pool
// ---------------------------------------------------------------------------

// PoolTag identifies a constant pool entry type. Only the entry types
// the linkage core consumes are modeled; everything else stays with the
// class-file parser.
type PoolTag uint8

const (
	PoolUtf8  PoolTag = 1
	PoolClass PoolTag = 7
)

// PoolEntry is a single constant pool entry. Class entries reference a
// Utf8 entry holding the klass's internal name.
type PoolEntry struct {
	Tag       PoolTag
	Utf8      string
	NameIndex uint16
}

// ConstantPool is a klass's runtime constant pool. Klass entries are
// resolved lazily and exactly once; resolution results are cached per
// entry under the pool lock.
type ConstantPool struct {
	entries []PoolEntry

	mu       sync.Mutex
	resolved []*Klass

	resolutions atomic.Int64
}

// NewConstantPool creates a runtime pool over the given entries.
// Entry 0 is unused, as in the class-file format.
func NewConstantPool(entries []PoolEntry) *ConstantPool {
	return &ConstantPool{
		entries:  entries,
		resolved: make([]*Klass, len(entries)),
	}
}

// UTF8At returns the text of a Utf8 entry.
func (cp *ConstantPool) UTF8At(i uint16) (string, error) {
	e, err := cp.entryAt(i, PoolUtf8)
	if err != nil {
		return "", err
	}
	return e.Utf8, nil
}

// ClassNameAt returns the internal name referenced by a Class entry.
func (cp *ConstantPool) ClassNameAt(i uint16) (string, error) {
	e, err := cp.entryAt(i, PoolClass)
	if err != nil {
		return "", err
	}
	return cp.UTF8At(e.NameIndex)
}

// ResolvedKlassAt resolves the Class entry at index i against the
// holder's context, caching the result so each entry resolves at most
// once.
func (cp *ConstantPool) ResolvedKlassAt(holder *Klass, i uint16) (*Klass, error) {
	cp.mu.Lock()
	defer cp.mu.Unlock()

	if int(i) < len(cp.resolved) && cp.resolved[i] != nil {
		return cp.resolved[i], nil
	}

	name, err := cp.classNameAtLocked(i)
	if err != nil {
		return nil, err
	}

	cp.resolutions.Add(1)
	k := holder.Context().Klasses().Lookup(name)
	if k == nil {
		return nil, Throw(ErrNoClassDefFound, "%s", name)
	}
	cp.resolved[i] = k
	return k, nil
}

// ResolutionCount returns how many klass entries have actually been
// resolved. Useful for asserting resolve-once behavior.
func (cp *ConstantPool) ResolutionCount() int64 {
	return cp.resolutions.Load()
}

// Len returns the number of entries, including the unused entry 0.
func (cp *ConstantPool) Len() int { return len(cp.entries) }

func (cp *ConstantPool) entryAt(i uint16, tag PoolTag) (PoolEntry, error) {
	if int(i) >= len(cp.entries) {
		return PoolEntry{}, fmt.Errorf("vm: constant pool index %d out of range (%d entries)", i, len(cp.entries))
	}
	e := cp.entries[i]
	if e.Tag != tag {
		return PoolEntry{}, fmt.Errorf("vm: constant pool entry %d has tag %d, want %d", i, e.Tag, tag)
	}
	return e, nil
}

func (cp *ConstantPool) classNameAtLocked(i uint16) (string, error) {
	e, err := cp.entryAt(i, PoolClass)
	if err != nil {
		return "", err
	}
	ne, err := cp.entryAt(e.NameIndex, PoolUtf8)
	if err != nil {
		return "", err
	}
	return ne.Utf8, nil
}
