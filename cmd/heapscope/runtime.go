package main

import (
	"fmt"
	"math/rand"

	"github.com/heapscope/heapscope"
	"github.com/heapscope/heapscope/backtrace"
	"github.com/heapscope/heapscope/frame"
)

// toyRuntime is a miniature managed runtime: a shadow stack of
// interpreter frames, a code table acting as the debug metadata, and a
// handful of types. It exists so the CLI can demonstrate the profiler
// without embedding a real language VM.
type toyRuntime struct {
	codes   []toyCode
	codeIDs map[toyCode]uint64
	stack   []backtrace.RawFrame

	types     map[uint64]string
	nextValue uint64
	live      []liveValue

	rng *rand.Rand
}

type toyCode struct {
	function string
	file     string
	line     uint32
}

type liveValue struct {
	addr    uint64
	typeKey uint64
}

// Type descriptor pseudo-addresses. Anything below 4096 reads as corrupt,
// so start well above it.
const (
	typeVector  = 0x10000
	typeDict    = 0x10010
	typeFloat   = 0x10020
	typeClosure = 0x10030
)

func newToyRuntime(seed int64) *toyRuntime {
	return &toyRuntime{
		codeIDs: make(map[toyCode]uint64),
		types: map[uint64]string{
			typeVector:  "Vector{Any}",
			typeDict:    "Dict{Symbol, Any}",
			typeFloat:   "Float64",
			typeClosure: "var\"#closure#42\"",
		},
		rng: rand.New(rand.NewSource(seed)),
	}
}

// WalkStack implements backtrace.Walker over the shadow stack,
// innermost-first.
func (r *toyRuntime) WalkStack(buf []backtrace.RawFrame, skip int) int {
	n := 0
	for i := len(r.stack) - 1 - skip; i >= 0 && n < len(buf); i-- {
		buf[n] = r.stack[i]
		n++
	}
	return n
}

// Resolve implements symbolic.DebugTable against the code table.
func (r *toyRuntime) Resolve(codeID uint64, ip uint32) ([]frame.Frame, bool) {
	if codeID == 0 || int(codeID-1) >= len(r.codes) {
		return nil, false
	}
	c := r.codes[codeID-1]
	return []frame.Frame{{
		Function: c.function,
		File:     c.file,
		Line:     c.line + ip,
	}}, true
}

// TypeName implements typetab.Printer.
func (r *toyRuntime) TypeName(key uint64) string {
	if name, ok := r.types[key]; ok {
		return name
	}
	return fmt.Sprintf("Type@0x%x", key)
}

func (r *toyRuntime) call(function, file string, line uint32) func() {
	code := toyCode{function: function, file: file, line: line}
	id, ok := r.codeIDs[code]
	if !ok {
		r.codes = append(r.codes, code)
		id = uint64(len(r.codes))
		r.codeIDs[code] = id
	}
	r.stack = append(r.stack, backtrace.RawFrame{
		Kind:   backtrace.KindManaged,
		CodeID: id,
	})
	return func() { r.stack = r.stack[:len(r.stack)-1] }
}

func (r *toyRuntime) allocate(typeKey, size uint64) {
	r.nextValue += 16
	addr := r.nextValue
	r.live = append(r.live, liveValue{addr: addr, typeKey: typeKey})
	heapscope.RecordAllocated(addr, typeKey, size)
}

// collect frees roughly half of the live set and reports a GC cycle.
func (r *toyRuntime) collect(full bool) {
	heapscope.ReportGCCycleStarted()
	var kept []liveValue
	var freedBytes uint64
	for _, v := range r.live {
		if r.rng.Intn(2) == 0 {
			heapscope.RecordFreed(v.addr)
			freedBytes += 64
		} else {
			kept = append(kept, v)
		}
	}
	r.live = kept
	heapscope.ReportGCCycleFinished(1200000, freedBytes, uint64(len(r.live)), full, false)
}

// run executes the demo program: nested managed calls allocating a mix
// of types, with periodic collections.
func (r *toyRuntime) run(iterations int) {
	defer r.call("main", "main.jl", 1)()
	for i := 0; i < iterations; i++ {
		r.simulate()
		if i%32 == 31 {
			r.collect(i%128 == 127)
		}
	}
}

func (r *toyRuntime) simulate() {
	done := r.call("simulate", "model.jl", 14)
	defer done()

	func() {
		defer r.call("build_state", "model.jl", 40)()
		r.allocate(typeVector, 256)
		r.allocate(typeDict, 512)
	}()

	func() {
		defer r.call("step", "model.jl", 77)()
		for i := 0; i < 4; i++ {
			func() {
				defer r.call("integrate", "solver.jl", 9)()
				r.allocate(typeFloat, 8)
			}()
		}
		r.allocate(typeClosure, 32)
	}()
}
