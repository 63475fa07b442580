package ports

import (
	"math/rand/v2"
)

// RNGPort hands out deterministic random streams. A stream depends only on
// the base seed, the operation name and the index, so concurrent workers get
// reproducible draws regardless of scheduling.
type RNGPort interface {
	// Stream returns the generator for one unit of work (a row, a replicate)
	Stream(name string, index int) *rand.Rand

	// Seed returns the base seed streams are derived from
	Seed() uint64
}
