package heapscope

import (
	"io"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/heapscope/heapscope/aggregate"
	"github.com/heapscope/heapscope/backtrace"
	"github.com/heapscope/heapscope/frame"
	"github.com/heapscope/heapscope/profile"
	"github.com/heapscope/heapscope/render"
	"github.com/heapscope/heapscope/sampler"
	"github.com/heapscope/heapscope/symbolic"
	"github.com/heapscope/heapscope/typetab"
)

type sessionState int32

const (
	stateUninitialized sessionState = iota
	stateActive
	stateStopped
)

// Session owns all state of one profiling run. Allocator hooks are safe
// for concurrent use; lifecycle methods (Stop, Free) are expected from a
// control goroutine.
type Session struct {
	id  string
	cfg Config

	// enabled is the single branch-cheap check every allocation site
	// takes before touching anything else.
	enabled atomic.Bool
	// suppressed is raised while a runtime callback executes; events
	// arriving then take the placeholder path instead of walking the
	// stack, which could re-enter the runtime.
	suppressed atomic.Int32
	state      atomic.Int32

	// inflight counts records between their enabled re-check and
	// completion. Stop flips enabled off and waits for it to reach zero
	// before freezing; a counter rather than a reader lock, because
	// runtime callbacks can re-enter the record path on the same
	// goroutine.
	inflight atomic.Int64

	allocCounter atomic.Uint64

	policy sampler.Policy
	walker backtrace.Walker
	sym    *symbolic.Symbolicator
	types  *typetab.Table
	trie   *aggregate.Trie

	btPool sync.Pool

	// freeMu guards the best-effort free-tracking maps.
	freeMu     sync.Mutex
	valueTypes map[uint64]typetab.TypeID
	frees      map[typetab.TypeID]uint64

	cycleMu sync.Mutex
	cycles  []profile.GCCycle

	startedAt time.Time

	resultMu sync.Mutex
	result   *profile.Profile
}

func newSession(cfg Config) (*Session, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	var policy sampler.Policy
	if cfg.SampleRate != 0 {
		p, err := sampler.NewProbability(cfg.SampleRate, cfg.seed())
		if err != nil {
			return nil, err
		}
		policy = p
	} else {
		policy = sampler.NewSkipEvery(cfg.SkipEvery)
	}

	s := &Session{
		id:         uuid.New().String(),
		cfg:        cfg,
		policy:     policy,
		trie:       aggregate.NewTrie(),
		valueTypes: make(map[uint64]typetab.TypeID),
		frees:      make(map[typetab.TypeID]uint64),
		startedAt:  time.Now(),
	}
	if cfg.Walker != nil {
		s.walker = guardedWalker{s: s, w: cfg.Walker}
	}
	var table symbolic.DebugTable
	if cfg.DebugTable != nil {
		table = guardedTable{s: s, t: cfg.DebugTable}
	}
	s.sym = symbolic.New(table)
	var printer typetab.Printer
	if cfg.TypePrinter != nil {
		printer = guardedPrinter{s: s, p: cfg.TypePrinter}
	}
	s.types = typetab.NewTable(printer, cfg.TypeTags)
	s.btPool.New = func() interface{} { return new(backtrace.Backtrace) }
	s.state.Store(int32(stateActive))
	s.enabled.Store(true)
	return s, nil
}

func (s *Session) ID() string {
	return s.id
}

// Active reports whether the session is still accepting events.
func (s *Session) Active() bool {
	return sessionState(s.state.Load()) == stateActive
}

// suppress raises the re-entrancy flag for the duration of one runtime
// callback. The returned release restores the previous state on every
// exit path, so nested callbacks stack.
func (s *Session) suppress() func() {
	s.suppressed.Add(1)
	return func() { s.suppressed.Add(-1) }
}

// drain spins until every in-flight record has completed. Callers must
// have cleared enabled first, or new records keep the count alive.
func (s *Session) drain() {
	for s.inflight.Load() != 0 {
		runtime.Gosched()
	}
}

// The embedder's callbacks are the only way the profiler can re-enter
// the runtime: walking the managed stack, resolving a frame or printing
// a type name may all allocate managed memory and trip the allocation
// hook again. Each callback runs under the suppression flag; an event
// arriving while it is raised is recorded under the placeholder frame
// rather than walked, so counts stay exact and the recursion bottoms
// out.

type guardedWalker struct {
	s *Session
	w backtrace.Walker
}

func (g guardedWalker) WalkStack(buf []backtrace.RawFrame, skip int) int {
	defer g.s.suppress()()
	return g.w.WalkStack(buf, skip)
}

type guardedTable struct {
	s *Session
	t symbolic.DebugTable
}

func (g guardedTable) Resolve(codeID uint64, ip uint32) ([]frame.Frame, bool) {
	defer g.s.suppress()()
	return g.t.Resolve(codeID, ip)
}

type guardedPrinter struct {
	s *Session
	p typetab.Printer
}

func (g guardedPrinter) TypeName(key uint64) string {
	defer g.s.suppress()()
	return g.p.TypeName(key)
}

var placeholderStack = []frame.Frame{frame.Placeholder()}

// RecordAllocated observes one allocation event. It is the hot-path entry
// point: when the session is inactive it returns after a flag check, and
// no error ever propagates out of it.
func (s *Session) RecordAllocated(valueAddr, typeKey, size uint64) {
	s.record(valueAddr, typeKey, size)
}

// record sits exactly one call below both the method and the
// package-level hook, so native captures skip the same number of
// profiler frames either way.
func (s *Session) record(valueAddr, typeKey, size uint64) {
	if !s.enabled.Load() {
		return
	}
	// Count and sample before anything else can turn the event away, so
	// the offered counter stays truthful under every degradation below.
	s.allocCounter.Add(1)
	if !s.policy.Sample() {
		return
	}

	s.inflight.Add(1)
	defer s.inflight.Add(-1)
	// Stop flips the flag before draining; a record that slipped past
	// the first check would otherwise land in the trie after the freeze
	// and vanish from the result.
	if !s.enabled.Load() {
		return
	}

	if s.suppressed.Load() != 0 {
		// A runtime callback is executing somewhere; walking the stack
		// or printing a type name here could re-enter the runtime. Keep
		// the event countable under the placeholder frame instead.
		s.trie.Record(placeholderStack, s.types.Intern(typeKey), size)
		return
	}

	bt := s.btPool.Get().(*backtrace.Backtrace)
	defer func() {
		bt.Reset()
		s.btPool.Put(bt)
	}()

	// The managed shadow stack never contains profiler frames; native
	// capture must skip the exported hook and record itself.
	skip := s.cfg.SkipFrames
	if s.walker == nil {
		skip += 2
	}
	backtrace.Capture(bt, s.walker, skip)
	stack := s.sym.SymbolicateStack(bt.Frames())
	if len(stack) == 0 {
		// every native frame was unresolvable and silently dropped
		stack = placeholderStack
	}

	id := s.types.Register(typeKey)
	s.trie.Record(stack, id, size)

	if s.cfg.TrackFrees && valueAddr != 0 {
		s.freeMu.Lock()
		s.valueTypes[valueAddr] = id
		s.freeMu.Unlock()
	}
}

// RecordFreed observes one reclaim event. A free for an address the
// profiler never recorded is ignored: sampling makes that the common
// case.
func (s *Session) RecordFreed(valueAddr uint64) {
	if !s.enabled.Load() || !s.cfg.TrackFrees {
		return
	}
	s.inflight.Add(1)
	defer s.inflight.Add(-1)
	if !s.enabled.Load() {
		return
	}

	s.freeMu.Lock()
	defer s.freeMu.Unlock()
	id, ok := s.valueTypes[valueAddr]
	if !ok {
		return
	}
	delete(s.valueTypes, valueAddr)
	s.frees[id]++
}

// ReportGCCycleStarted marks the beginning of a collection cycle.
func (s *Session) ReportGCCycleStarted() {
	if !s.enabled.Load() {
		return
	}
	log.Debug().Str("session", s.id).Msg("GC cycle started")
}

// ReportGCCycleFinished records one collection cycle summary and logs a
// line in the runtime's traditional shape.
func (s *Session) ReportGCCycleFinished(pause time.Duration, bytesFreed, bytesAllocated uint64, full, recollect bool) {
	if !s.enabled.Load() {
		return
	}
	c := profile.GCCycle{
		Pause:      pause,
		BytesFreed: bytesFreed,
		BytesAlloc: bytesAllocated,
		Full:       full,
		Recollect:  recollect,
	}
	s.cycleMu.Lock()
	s.cycles = append(s.cycles, c)
	s.cycleMu.Unlock()

	log.Info().
		Str("session", s.id).
		Dur("pause", pause).
		Float64("collected_mb", float64(bytesFreed)/1e6).
		Uint64("allocs_total", bytesAllocated).
		Bool("full", full).
		Bool("recollect", recollect).
		Msg("GC cycle finished")
}

// Stop freezes the session. No events recorded before the call are lost:
// in-flight records complete, then new ones are refused. Stop is
// idempotent; later calls return the same frozen profile.
func (s *Session) Stop() *profile.Profile {
	s.enabled.Store(false)
	s.drain()

	s.resultMu.Lock()
	defer s.resultMu.Unlock()
	if s.result != nil {
		return s.result
	}
	s.state.Store(int32(stateStopped))
	s.result = s.snapshotLocked(time.Now())
	return s.result
}

// Snapshot builds a point-in-time profile without stopping the session.
// The serializer can drain the aggregate on demand this way.
func (s *Session) Snapshot() *profile.Profile {
	s.resultMu.Lock()
	defer s.resultMu.Unlock()
	if s.result != nil {
		return s.result
	}
	return s.snapshotLocked(time.Now())
}

func (s *Session) snapshotLocked(at time.Time) *profile.Profile {
	view := s.trie.Freeze()

	s.freeMu.Lock()
	frees := make(map[typetab.TypeID]uint64, len(s.frees))
	for id, n := range s.frees {
		frees[id] = n
	}
	s.freeMu.Unlock()

	s.cycleMu.Lock()
	cycles := make([]profile.GCCycle, len(s.cycles))
	copy(cycles, s.cycles)
	s.cycleMu.Unlock()

	stats := s.sym.Stats()
	return &profile.Profile{
		ID:             s.id,
		StartedAt:      s.startedAt,
		StoppedAt:      at,
		View:           view,
		TypeNames:      s.types.Names(),
		Frees:          frees,
		Cycles:         cycles,
		AllocsOffered:  s.allocCounter.Load(),
		AllocsRecorded: view.Total.Count,
		CacheStats:     stats,
	}
}

// WriteTo serializes the frozen profile. The session must be stopped
// first.
func (s *Session) WriteTo(w io.Writer, format render.Format) error {
	if sessionState(s.state.Load()) != stateStopped {
		return ErrNotStopped
	}
	return render.Write(w, s.Stop(), format)
}

// Free releases everything the session retained: the aggregate, the
// symbolication cache, the type table and the free-tracking maps. The
// session reverts to the uninitialized state; a later StartProfile yields
// a session with no leakage of prior counts.
func (s *Session) Free() {
	s.enabled.Store(false)
	s.drain()

	s.trie.Reset()
	s.sym.Reset()
	s.types.Reset()

	s.freeMu.Lock()
	s.valueTypes = make(map[uint64]typetab.TypeID)
	s.frees = make(map[typetab.TypeID]uint64)
	s.freeMu.Unlock()

	s.cycleMu.Lock()
	s.cycles = nil
	s.cycleMu.Unlock()

	s.resultMu.Lock()
	s.result = nil
	s.resultMu.Unlock()

	s.allocCounter.Store(0)
	s.state.Store(int32(stateUninitialized))
}
