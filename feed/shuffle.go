package feed

import "math/rand/v2"

// Shuffler randomizes the order of a sequence of length n in place via
// swap. Swappable so tests can inject a deterministic (or no-op)
// implementation instead of comparing exact output order, per spec.md §9
// ("the engine's randomness source must be swappable for testing").
type Shuffler interface {
	Shuffle(n int, swap func(i, j int))
}

// defaultShuffler shuffles using math/rand/v2's package-level source.
type defaultShuffler struct{}

func (defaultShuffler) Shuffle(n int, swap func(i, j int)) {
	rand.Shuffle(n, swap)
}

// DefaultShuffler is the production Shuffler used when a node has no
// shuffler of its own set.
var DefaultShuffler Shuffler = defaultShuffler{}

// shuffleItems shuffles data in place using shuf, or DefaultShuffler if
// shuf is nil.
func shuffleItems(data []any, shuf Shuffler) {
	if shuf == nil {
		shuf = DefaultShuffler
	}
	shuf.Shuffle(len(data), func(i, j int) { data[i], data[j] = data[j], data[i] })
}
