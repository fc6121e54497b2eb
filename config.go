package heapscope

import (
	"errors"
	"fmt"
	"time"

	"github.com/heapscope/heapscope/backtrace"
	"github.com/heapscope/heapscope/symbolic"
	"github.com/heapscope/heapscope/typetab"
)

var (
	ErrAlreadyActive = errors.New("heapscope: a profiling session is already active")
	ErrNotStopped    = errors.New("heapscope: session is not stopped")
	ErrConfig        = errors.New("heapscope: invalid config")
)

// Config controls one profiling session. The zero value records every
// allocation with native stack capture and no free tracking.
type Config struct {
	// SkipEvery records one allocation out of every SkipEvery offered
	// ones; 0 records everything. Mutually exclusive with SampleRate.
	SkipEvery uint64

	// SampleRate, when set, records each allocation independently with
	// this probability. 1.0 records everything. Must be in [0, 1].
	SampleRate float64
	Seed       int64

	// TrackFrees keeps a value-address → type map so frees can be
	// attributed back to the allocating type. Best-effort: addresses are
	// reused after collection.
	TrackFrees bool

	// SkipFrames drops that many innermost frames from every capture, on
	// top of the profiler's own frames.
	SkipFrames int

	// Walker captures the managed interpreter stack. Nil captures the
	// native stack of the calling goroutine instead.
	Walker backtrace.Walker

	// DebugTable resolves managed frames. Nil degrades every managed
	// frame to the unknown sentinel.
	DebugTable symbolic.DebugTable

	// TypePrinter renders type keys; nil degrades to <missing>. TypeTags
	// names the runtime's pseudo-type descriptors.
	TypePrinter typetab.Printer
	TypeTags    typetab.Tags
}

func (c Config) validate() error {
	if c.SampleRate < 0 || c.SampleRate > 1 {
		return fmt.Errorf("%w: sample rate %v not in [0, 1]", ErrConfig, c.SampleRate)
	}
	if c.SkipEvery != 0 && c.SampleRate != 0 {
		return fmt.Errorf("%w: skip-every and sample rate are mutually exclusive", ErrConfig)
	}
	if c.SkipFrames < 0 {
		return fmt.Errorf("%w: negative skip frames", ErrConfig)
	}
	return nil
}

func (c Config) seed() int64 {
	if c.Seed != 0 {
		return c.Seed
	}
	return time.Now().UnixNano()
}
