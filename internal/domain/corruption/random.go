package corruption

import "math/rand/v2"

// RandomSource is the randomness used by every corruption effect. A
// *rand.Rand from math/rand/v2 satisfies it.
type RandomSource interface {
	Float64() float64
	IntN(n int) int
}

// NewSource returns a seeded source for a single owner. It is not safe for
// concurrent use.
func NewSource(seed uint64) RandomSource {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// SharedSource draws from the process-wide generator and is safe for
// concurrent use.
type SharedSource struct{}

func (SharedSource) Float64() float64 { return rand.Float64() }

func (SharedSource) IntN(n int) int { return rand.IntN(n) }
