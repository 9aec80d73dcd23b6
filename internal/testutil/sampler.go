package testutil

import (
	"fmt"
	"sync"
)

// FixedSampler returns predetermined random values for tests.
//
// Intn and Float64 each consume from their own queue, so a test can
// script item picks and probability draws independently. Exhausting a
// queue panics: fail-fast on test misconfiguration, the same way an
// exhausted fixed key generator does.
//
// Thread-safety: safe for concurrent use via internal mutex.
type FixedSampler struct {
	mu     sync.Mutex
	ints   []int
	floats []float64
	intIdx int
	fltIdx int
}

// NewFixedSampler creates a sampler with scripted Intn and Float64 results.
func NewFixedSampler(ints []int, floats []float64) *FixedSampler {
	return &FixedSampler{ints: ints, floats: floats}
}

// Intn returns the next scripted value. Panics if the value is out of
// range for n, which would mean the script does not match the code path.
func (s *FixedSampler) Intn(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.intIdx >= len(s.ints) {
		panic("testutil: FixedSampler int queue exhausted")
	}
	v := s.ints[s.intIdx]
	s.intIdx++
	if v < 0 || v >= n {
		panic(fmt.Sprintf("testutil: scripted Intn value %d out of range [0,%d)", v, n))
	}
	return v
}

// Float64 returns the next scripted value in [0,1).
func (s *FixedSampler) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fltIdx >= len(s.floats) {
		panic("testutil: FixedSampler float queue exhausted")
	}
	v := s.floats[s.fltIdx]
	s.fltIdx++
	return v
}
