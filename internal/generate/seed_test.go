package generate

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSampleSeed(t *testing.T) {
	t.Run("deterministic", func(t *testing.T) {
		assert.Equal(t, SampleSeed(42, 3, 0), SampleSeed(42, 3, 0))
	})

	t.Run("distinct per sample", func(t *testing.T) {
		seen := make(map[uint64]int)
		for i := 0; i < 1000; i++ {
			seen[SampleSeed(42, i, 0)]++
		}
		assert.Len(t, seen, 1000)
	})

	t.Run("retries draw fresh seeds", func(t *testing.T) {
		assert.NotEqual(t, SampleSeed(42, 3, 0), SampleSeed(42, 3, 1))
		assert.NotEqual(t, SampleSeed(42, 3, 1), SampleSeed(42, 3, 2))
	})

	t.Run("global seed shifts everything", func(t *testing.T) {
		assert.NotEqual(t, SampleSeed(1, 0, 0), SampleSeed(2, 0, 0))
	})
}
