// Package randutil derives rand/v2 generators for deck shuffling.
package randutil

import (
	rand "math/rand/v2"
	"time"
)

const goldenRatio64 = 0x9e3779b97f4a7c15

// New returns a PCG generator seeded deterministically from seed, so a table
// configured with a seed deals the same sequence of decks on every run.
func New(seed int64) *rand.Rand {
	u := uint64(seed)
	return rand.New(rand.NewPCG(splitmix(u), splitmix(u+goldenRatio64)))
}

// NewFromTime seeds a generator from the wall clock.
func NewFromTime() *rand.Rand {
	return New(time.Now().UnixNano())
}

// Seed returns seed when non-zero and a wall-clock seed otherwise, so callers
// can log the seed actually used.
func Seed(seed int64) int64 {
	if seed != 0 {
		return seed
	}
	return time.Now().UnixNano()
}

func splitmix(x uint64) uint64 {
	x ^= x >> 30
	x *= 0xbf58476d1ce4e5b9
	x ^= x >> 27
	x *= 0x94d049bb133111eb
	x ^= x >> 31
	return x
}
