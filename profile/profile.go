// Package profile holds the frozen output of a profiling session: the
// aggregate view plus the tables and annotations serializers need.
// External tooling consumes this structure; nothing in it refers back to
// live session state.
package profile

import (
	"time"

	"github.com/heapscope/heapscope/aggregate"
	"github.com/heapscope/heapscope/symbolic"
	"github.com/heapscope/heapscope/typetab"
)

type (
	Profile struct {
		ID        string    `json:"id"`
		StartedAt time.Time `json:"started_at"`
		StoppedAt time.Time `json:"stopped_at"`

		View *aggregate.View `json:"view"`

		// TypeNames is indexed by TypeID. Every TypeID present in the
		// view has an entry here.
		TypeNames []string `json:"type_names"`

		// Frees is best-effort: value addresses are reused after
		// collection, so these counts are advisory only.
		Frees map[typetab.TypeID]uint64 `json:"frees,omitempty"`

		Cycles []GCCycle `json:"gc_cycles,omitempty"`

		// AllocsOffered counts every allocation the profiler saw while
		// active; AllocsRecorded counts the ones sampling accepted.
		AllocsOffered  uint64 `json:"allocs_offered"`
		AllocsRecorded uint64 `json:"allocs_recorded"`

		CacheStats symbolic.CacheStats `json:"cache_stats"`
	}

	// GCCycle annotates one collection cycle observed during the session.
	GCCycle struct {
		Pause      time.Duration `json:"pause_ns"`
		BytesFreed uint64        `json:"bytes_freed"`
		BytesAlloc uint64        `json:"bytes_allocated"`
		Full       bool          `json:"full"`
		Recollect  bool          `json:"recollect"`
	}
)

// TypeName resolves an id against the name table, falling back to the
// missing sentinel for ids the table never saw.
func (p *Profile) TypeName(id typetab.TypeID) string {
	if int(id) >= len(p.TypeNames) {
		return typetab.NameMissing
	}
	return p.TypeNames[id]
}
