// Package heapscope is an in-process allocation profiler meant to be
// embedded in a managed-language runtime's garbage collector. The
// allocator reports every allocation (and optionally every free) through
// the package-level hooks; sampling decides which events get a stack
// capture, symbolication and type interning normalize them, and a
// stack-indexed trie folds them into a queryable aggregate that can be
// rendered as DOT, CSV, JSON or plain text.
//
// The hooks are cheap no-ops while no session is active: the hot path is
// one pointer load and one boolean check.
package heapscope

import (
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/heapscope/heapscope/profile"
	"github.com/heapscope/heapscope/render"
)

var (
	activeSession atomic.Pointer[Session]

	// lifecycleMu serializes StartProfile / StopProfile / FreeProfile.
	lifecycleMu sync.Mutex
)

// StartProfile begins a new process-wide profiling session. Configuration
// errors are rejected here, before any hot-path code runs. Only one
// session may be active at a time.
func StartProfile(cfg Config) (*Session, error) {
	lifecycleMu.Lock()
	defer lifecycleMu.Unlock()
	if s := activeSession.Load(); s != nil && s.Active() {
		return nil, ErrAlreadyActive
	}
	s, err := newSession(cfg)
	if err != nil {
		return nil, err
	}
	activeSession.Store(s)
	return s, nil
}

// StopProfile stops the active session and returns its frozen aggregate.
// Returns nil when no session is active.
func StopProfile() *profile.Profile {
	lifecycleMu.Lock()
	defer lifecycleMu.Unlock()
	s := activeSession.Load()
	if s == nil {
		return nil
	}
	return s.Stop()
}

// FreeProfile releases all memory retained by the current session. After
// FreeProfile a new StartProfile observes a completely fresh state.
func FreeProfile() {
	lifecycleMu.Lock()
	defer lifecycleMu.Unlock()
	s := activeSession.Load()
	if s == nil {
		return
	}
	s.Free()
	activeSession.Store(nil)
}

// ActiveSession returns the current session, or nil.
func ActiveSession() *Session {
	return activeSession.Load()
}

// WriteProfile serializes the stopped session's profile to w.
func WriteProfile(w io.Writer, format render.Format) error {
	s := activeSession.Load()
	if s == nil {
		return ErrNotStopped
	}
	return s.WriteTo(w, format)
}

// RecordAllocated is the allocator's per-allocation hook. valueAddr is
// the address of the new value, typeKey the address of its type
// descriptor, size the requested byte size. It calls into the session at
// the same depth as Session.RecordAllocated, so native captures start at
// the allocation site through either entry point.
func RecordAllocated(valueAddr, typeKey, size uint64) {
	if s := activeSession.Load(); s != nil {
		s.record(valueAddr, typeKey, size)
	}
}

// RecordFreed is the allocator's per-reclaim hook.
func RecordFreed(valueAddr uint64) {
	if s := activeSession.Load(); s != nil {
		s.RecordFreed(valueAddr)
	}
}

// ReportGCCycleStarted is the collection driver's cycle-start hook.
func ReportGCCycleStarted() {
	if s := activeSession.Load(); s != nil {
		s.ReportGCCycleStarted()
	}
}

// ReportGCCycleFinished is the collection driver's cycle-end hook.
func ReportGCCycleFinished(pause time.Duration, bytesFreed, bytesAllocated uint64, full, recollect bool) {
	if s := activeSession.Load(); s != nil {
		s.ReportGCCycleFinished(pause, bytesFreed, bytesAllocated, full, recollect)
	}
}
