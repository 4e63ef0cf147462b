package band

import (
	"math"
	"math/rand"
)

// composition is one way to distribute m resample draws across m wells,
// with its exact multinomial probability under a size-m bootstrap.
type composition struct {
	counts []int
	weight float64
}

// enumerateCompositions lists every composition of m into m non-negative
// parts using the classic NEXCOM iteration, so deep replicate counts cannot
// blow the stack. Weights sum to 1 for any m.
func enumerateCompositions(m int) []composition {
	if m <= 0 {
		return nil
	}
	counts := make([]int, m)
	counts[0] = m

	out := []composition{{counts: cloneCounts(counts), weight: multinomialWeight(counts)}}
	if m == 1 {
		return out
	}

	t, h := m, 0
	for counts[m-1] != m {
		if t != 1 {
			h = 0
		}
		t = counts[h]
		counts[h] = 0
		counts[0] = t - 1
		counts[h+1]++
		h++
		out = append(out, composition{counts: cloneCounts(counts), weight: multinomialWeight(counts)})
	}
	return out
}

// sampleCompositions draws n multinomial count vectors of size m, each with
// weight 1/n. This is the Monte-Carlo stand-in for exact enumeration when
// the replicate count is too large to enumerate.
func sampleCompositions(m, n int, rng *rand.Rand) []composition {
	out := make([]composition, 0, n)
	w := 1 / float64(n)
	for i := 0; i < n; i++ {
		counts := make([]int, m)
		for d := 0; d < m; d++ {
			counts[rng.Intn(m)]++
		}
		out = append(out, composition{counts: counts, weight: w})
	}
	return out
}

// multinomialWeight is m! / (prod c_i!) / m^m, computed in log space to stay
// finite for larger m.
func multinomialWeight(counts []int) float64 {
	m := 0
	for _, c := range counts {
		m += c
	}
	lw, _ := math.Lgamma(float64(m) + 1)
	for _, c := range counts {
		lc, _ := math.Lgamma(float64(c) + 1)
		lw -= lc
	}
	lw -= float64(m) * math.Log(float64(m))
	return math.Exp(lw)
}

func cloneCounts(counts []int) []int {
	out := make([]int, len(counts))
	copy(out, counts)
	return out
}
