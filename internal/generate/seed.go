package generate

// splitmix64 advances the SplitMix64 sequence from x. It is the standard
// finalizer-style mixer, used here to derive per-sample seeds.
func splitmix64(x uint64) uint64 {
	x += 0x9E3779B97F4A7C15
	z := x
	z = (z ^ (z >> 30)) * 0xBF58476D1CE4E5B9
	z = (z ^ (z >> 27)) * 0x94D049BB133111EB
	return z ^ (z >> 31)
}

// SampleSeed derives the seed for one attempt of one sample. The mapping
// depends only on (globalSeed, sampleIndex, attempt), never on worker
// scheduling, so repeated runs resolve identical parameters regardless of
// how samples are distributed across the pool. Retries get a fresh seed so
// a rejected draw is replaced rather than repeated.
func SampleSeed(globalSeed uint64, sampleIndex, attempt int) uint64 {
	return splitmix64(splitmix64(globalSeed+uint64(sampleIndex)) + uint64(attempt))
}
