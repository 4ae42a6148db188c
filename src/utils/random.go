package utils

import (
	"math/rand"
	"time"
)

// ChunkNum splits n into `times` parts that still sum to n, then makes them
// uneven with `shuffle` rounds of random transfers between two parts.
func ChunkNum(rng *rand.Rand, n float64, times, shuffle int) []float64 {
	if times < 1 {
		times = 1
	}

	d := n / float64(times)
	res := make([]float64, times)
	for i := range res {
		res[i] = d
	}

	for i := 0; i < shuffle; i++ {
		from := rng.Intn(times)
		to := rng.Intn(times)

		moved := res[from] * rng.Float64()
		res[from] -= moved
		res[to] += moved
	}

	return res
}

// MinusPlus returns 1 or -1 with equal probability.
func MinusPlus(rng *rand.Rand) float64 {
	if rng.Float64() < 0.5 {
		return 1
	}
	return -1
}

// RandomDelay returns min plus a uniform jitter in [0, jitter).
func RandomDelay(rng *rand.Rand, min, jitter time.Duration) time.Duration {
	if jitter <= 0 {
		return min
	}
	return min + time.Duration(rng.Float64()*float64(jitter))
}
