// Package typetab interns allocated-object type identities. Each distinct
// runtime type key is minted a dense TypeID exactly once; display names
// are derived at registration time so the aggregate never needs to touch
// runtime memory again. Keying the aggregate by TypeID rather than by the
// raw runtime address avoids dangling identities when the type object's
// memory is reclaimed and its address reused.
package typetab

import (
	"sync"
)

// TypeID is a stable dense handle for a registered type.
type TypeID uint32

// Sentinel display names. These mirror the pseudo-types the runtime hands
// to the allocator for memory that has no ordinary type descriptor.
const (
	NameCorrupt = "<corrupt>"
	NameBuffer  = "<buffer>"
	NameMalloc  = "<malloc>"
	NameString  = "<string>"
	NameSymbol  = "<symbol>"
	NameMissing = "<missing>"
)

// Type keys below this boundary cannot be valid descriptor addresses and
// are treated as corrupted or misaligned pointers.
const corruptBoundary = 4096

// Printer renders a type key into a display name using the runtime's
// generic type printer. Implementations may panic or allocate; the table
// guards the former, and the profiler raises its re-entrancy flag around
// each call for the latter.
type Printer interface {
	TypeName(key uint64) string
}

// Tags holds the runtime's pseudo-type descriptor addresses. Zero values
// disable the corresponding sentinel check.
type Tags struct {
	Buffer uint64
	Malloc uint64
	String uint64
	Symbol uint64
}

type Table struct {
	printer Printer
	tags    Tags

	mu      sync.RWMutex
	ids     map[uint64]TypeID
	names   []string
	pending map[TypeID]struct{}
}

func NewTable(printer Printer, tags Tags) *Table {
	return &Table{
		printer: printer,
		tags:    tags,
		ids:     make(map[uint64]TypeID),
		pending: make(map[TypeID]struct{}),
	}
}

// Register interns key and returns its TypeID. It is idempotent: a key
// that already has a printed name is returned as-is without consulting
// the printer again. A key first seen through Intern carries a deferred
// name; Register fills in the real one.
func (t *Table) Register(key uint64) TypeID {
	t.mu.RLock()
	id, ok := t.ids[key]
	if ok {
		_, deferred := t.pending[id]
		t.mu.RUnlock()
		if !deferred {
			return id
		}
	} else {
		t.mu.RUnlock()
	}

	// The printer may re-enter the profiler; never hold the lock across
	// the derivation.
	name := t.deriveName(key)

	t.mu.Lock()
	defer t.mu.Unlock()
	if id, ok := t.ids[key]; ok {
		if _, deferred := t.pending[id]; deferred {
			t.names[id] = name
			delete(t.pending, id)
		}
		return id
	}
	id = TypeID(len(t.names))
	t.names = append(t.names, name)
	t.ids[key] = id
	return id
}

// Intern mints a TypeID for key without consulting the printer, for
// callers that must not re-enter the runtime. Sentinel keys get their
// final name immediately; anything else carries the missing sentinel
// until a later Register derives the printed name.
func (t *Table) Intern(key uint64) TypeID {
	t.mu.Lock()
	defer t.mu.Unlock()
	if id, ok := t.ids[key]; ok {
		return id
	}
	name, final := t.sentinelName(key)
	if !final {
		name = NameMissing
	}
	id := TypeID(len(t.names))
	t.names = append(t.names, name)
	t.ids[key] = id
	if !final {
		t.pending[id] = struct{}{}
	}
	return id
}

func (t *Table) deriveName(key uint64) string {
	if name, ok := t.sentinelName(key); ok {
		return name
	}
	return t.printName(key)
}

func (t *Table) sentinelName(key uint64) (string, bool) {
	switch {
	case key < corruptBoundary:
		return NameCorrupt, true
	case t.tags.Buffer != 0 && key == t.tags.Buffer:
		return NameBuffer, true
	case t.tags.Malloc != 0 && key == t.tags.Malloc:
		return NameMalloc, true
	case t.tags.String != 0 && key == t.tags.String:
		return NameString, true
	case t.tags.Symbol != 0 && key == t.tags.Symbol:
		return NameSymbol, true
	}
	return "", false
}

// printName consults the runtime's generic printer. A missing printer, a
// panic, or an empty result all degrade to the missing sentinel; the hot
// path must never see an error from here.
func (t *Table) printName(key uint64) (name string) {
	if t.printer == nil {
		return NameMissing
	}
	defer func() {
		if recover() != nil {
			name = NameMissing
		}
	}()
	name = t.printer.TypeName(key)
	if name == "" {
		name = NameMissing
	}
	return name
}

// Name returns the display name for id. Every TypeID handed out by
// Register has a name, so an out-of-range id is a caller bug and yields
// the missing sentinel rather than a panic.
func (t *Table) Name(id TypeID) string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if int(id) >= len(t.names) {
		return NameMissing
	}
	return t.names[id]
}

// Names returns a snapshot of the name table indexed by TypeID.
func (t *Table) Names() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	names := make([]string, len(t.names))
	copy(names, t.names)
	return names
}

func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.names)
}

// Reset clears all interned types.
func (t *Table) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ids = make(map[uint64]TypeID)
	t.names = nil
	t.pending = make(map[TypeID]struct{})
}
