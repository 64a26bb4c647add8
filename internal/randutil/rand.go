// Package randutil centralises deterministic randomness. Every shuffle and
// policy sample in the repo draws from a *rand.Rand built here from a caller
// supplied seed, so whole sessions replay bit for bit.
package randutil

import rand "math/rand/v2"

// New returns a PCG-backed *rand.Rand derived from seed. rand/v2 wants two
// 64-bit seeds; both are produced by running the input through a splitmix64
// finalizer so nearby seeds still give unrelated streams.
func New(seed int64) *rand.Rand {
	const goldenGamma = 0x9e3779b97f4a7c15
	u := uint64(seed)
	return rand.New(rand.NewPCG(splitmix64(u), splitmix64(u+goldenGamma)))
}

func splitmix64(x uint64) uint64 {
	x ^= x >> 30
	x *= 0xbf58476d1ce4e5b9
	x ^= x >> 27
	x *= 0x94d049bb133111eb
	x ^= x >> 31
	return x
}
