// Package symbolic resolves raw frame descriptors into logical stack
// frames. One raw entry may expand into several frames when it covers
// inlined calls. Resolutions are memoized by the exact byte encoding of
// the raw frame, so repeated stacks sharing tail frames reuse work.
package symbolic

import (
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/heapscope/heapscope/backtrace"
	"github.com/heapscope/heapscope/frame"
)

// DebugTable resolves managed frames through the interpreter's own debug
// and line-table metadata. It may legitimately be unable to resolve a
// frame when that metadata is inconsistent or still under construction;
// in that case ok is false and the symbolicator emits an unknown sentinel
// frame instead. Resolved frames are returned innermost-first.
type DebugTable interface {
	Resolve(codeID uint64, ip uint32) (frames []frame.Frame, ok bool)
}

// CacheStats are diagnostic counters for the symbolication cache.
type CacheStats struct {
	Hits       uint64 `json:"hits"`
	Misses     uint64 `json:"misses"`
	Unresolved uint64 `json:"unresolved"`
}

type Symbolicator struct {
	table DebugTable

	mu    sync.Mutex
	cache map[backtrace.Key][]frame.Frame

	hits       atomic.Uint64
	misses     atomic.Uint64
	unresolved atomic.Uint64
}

func New(table DebugTable) *Symbolicator {
	return &Symbolicator{
		table: table,
		cache: make(map[backtrace.Key][]frame.Frame),
	}
}

// Symbolicate resolves one raw frame into zero or more logical frames,
// innermost-first. Managed frames that cannot be resolved yield the
// unknown sentinel; native addresses with no symbol are dropped, so the
// result may be empty. The returned slice is shared with the cache and
// must not be mutated.
func (s *Symbolicator) Symbolicate(raw backtrace.RawFrame) []frame.Frame {
	key := raw.EncodeKey()

	s.mu.Lock()
	if frames, ok := s.cache[key]; ok {
		s.mu.Unlock()
		s.hits.Add(1)
		return frames
	}
	s.mu.Unlock()

	frames := s.resolve(raw)
	s.misses.Add(1)

	s.mu.Lock()
	s.cache[key] = frames
	s.mu.Unlock()
	return frames
}

// SymbolicateStack resolves a whole raw capture, preserving innermost-first
// order across the expanded frames.
func (s *Symbolicator) SymbolicateStack(raw []backtrace.RawFrame) []frame.Frame {
	frames := make([]frame.Frame, 0, len(raw))
	for _, rf := range raw {
		frames = append(frames, s.Symbolicate(rf)...)
	}
	return frames
}

func (s *Symbolicator) resolve(raw backtrace.RawFrame) []frame.Frame {
	switch raw.Kind {
	case backtrace.KindPlaceholder:
		return []frame.Frame{frame.Placeholder()}
	case backtrace.KindManaged:
		if s.table != nil {
			if frames, ok := s.table.Resolve(raw.CodeID, raw.IP); ok {
				return frames
			}
		}
		s.unresolved.Add(1)
		return []frame.Frame{frame.Unknown(raw.CodeID, raw.IP)}
	default:
		return s.resolveNative(raw.PC)
	}
}

// resolveNative expands one program counter through the platform symbol
// table. Inlined calls show up as extra frames sharing the pc. Addresses
// the symbol table knows nothing about are dropped, not reported as
// unknown frames; managed frames get the opposite treatment.
func (s *Symbolicator) resolveNative(pc uintptr) []frame.Frame {
	if pc == 0 {
		s.unresolved.Add(1)
		return nil
	}
	var frames []frame.Frame
	iter := runtime.CallersFrames([]uintptr{pc})
	for {
		f, more := iter.Next()
		if f.Function == "" {
			if !more {
				break
			}
			continue
		}
		frames = append(frames, frame.Frame{
			Function: f.Function,
			File:     f.File,
			Line:     uint32(f.Line),
			Native:   true,
			Inline:   more,
		})
		if !more {
			break
		}
	}
	if len(frames) == 0 {
		s.unresolved.Add(1)
	}
	return frames
}

func (s *Symbolicator) Stats() CacheStats {
	return CacheStats{
		Hits:       s.hits.Load(),
		Misses:     s.misses.Load(),
		Unresolved: s.unresolved.Load(),
	}
}

// Reset drops all memoized resolutions and zeroes the counters.
func (s *Symbolicator) Reset() {
	s.mu.Lock()
	s.cache = make(map[backtrace.Key][]frame.Frame)
	s.mu.Unlock()
	s.hits.Store(0)
	s.misses.Store(0)
	s.unresolved.Store(0)
}
