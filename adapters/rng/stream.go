package rng

import (
	"hash/fnv"
	"math/rand/v2"
	"strconv"
)

// StreamAdapter implements ports.RNGPort with PCG streams. Each stream is
// keyed by hashing the operation name and index into the second PCG word,
// so the same (seed, name, index) always yields the same draws.
type StreamAdapter struct {
	seed uint64
}

// NewStreamAdapter creates an adapter rooted at seed
func NewStreamAdapter(seed uint64) *StreamAdapter {
	return &StreamAdapter{seed: seed}
}

// Stream returns the generator for one unit of work
func (a *StreamAdapter) Stream(name string, index int) *rand.Rand {
	return rand.New(rand.NewPCG(a.seed, streamKey(name, index)))
}

// Seed returns the base seed
func (a *StreamAdapter) Seed() uint64 {
	return a.seed
}

// streamKey mixes the name and index into a 64-bit key
func streamKey(name string, index int) uint64 {
	h := fnv.New64a()
	h.Write([]byte(name))
	h.Write([]byte{0})
	h.Write([]byte(strconv.Itoa(index)))
	return h.Sum64()
}
