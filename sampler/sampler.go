// Package sampler decides which allocation events get recorded. Policies
// are callable from contexts where general allocation is disallowed: they
// touch nothing beyond their own counters or RNG.
package sampler

import (
	"errors"
	"math/rand"
	"sync"
	"sync/atomic"
)

var ErrInvalidRate = errors.New("sampler: rate must be in [0, 1]")

// Policy decides, per event, whether to record it.
type Policy interface {
	Sample() bool
}

// SkipEvery records one event out of every interval offered ones. The
// decision is based on actual elapsed allocations since the last recorded
// one, not on a free-running modulus, so bursts are tolerated. interval 0
// records everything.
type SkipEvery struct {
	interval     uint64
	counter      atomic.Uint64
	lastRecorded atomic.Uint64
}

func NewSkipEvery(interval uint64) *SkipEvery {
	return &SkipEvery{interval: interval}
}

func (s *SkipEvery) Sample() bool {
	if s.interval == 0 {
		return true
	}
	counter := s.counter.Add(1)
	last := s.lastRecorded.Load()
	if counter-last < s.interval {
		return false
	}
	// A lost race means a concurrent event was just recorded; this one
	// is then within the interval and skipped.
	return s.lastRecorded.CompareAndSwap(last, counter)
}

// Probability records each event independently with the configured rate.
// No state beyond the RNG.
type Probability struct {
	rate float64

	mu  sync.Mutex
	rng *rand.Rand
}

func NewProbability(rate float64, seed int64) (*Probability, error) {
	if rate < 0 || rate > 1 {
		return nil, ErrInvalidRate
	}
	return &Probability{
		rate: rate,
		rng:  rand.New(rand.NewSource(seed)),
	}, nil
}

func (p *Probability) Sample() bool {
	if p.rate >= 1 {
		return true
	}
	if p.rate <= 0 {
		return false
	}
	p.mu.Lock()
	v := p.rng.Float64()
	p.mu.Unlock()
	return v < p.rate
}
