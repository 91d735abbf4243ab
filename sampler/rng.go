package sampler

import "math/rand/v2"

// splitmix64 is the finalizer of the SplitMix64 generator, used here to
// expand a base seed plus worker/chain indices into well-separated PCG
// seeds. The constants are the reference ones from Steele et al.
func splitmix64(x uint64) uint64 {
	x += 0x9E3779B97F4A7C15
	z := x
	z = (z ^ (z >> 30)) * 0xBF58476D1CE4E5B9
	z = (z ^ (z >> 27)) * 0x94D049BB133111EB
	return z ^ (z >> 31)
}

// newStream builds the RNG stream for one (worker, chain) pair. The same
// (baseSeed, worker, chain) triple always yields the same stream, and
// distinct triples yield streams with unrelated seed states, so chains on
// one worker and chains across workers never collide.
func newStream(baseSeed uint64, worker, chain int) *rand.Rand {
	x := splitmix64(baseSeed)
	x = splitmix64(x ^ (uint64(worker+1) * 0xA24BAED4963EE407))
	x = splitmix64(x ^ (uint64(chain+1) * 0x9FB21C651E98DF25))
	return rand.New(rand.NewPCG(x, splitmix64(x)))
}
