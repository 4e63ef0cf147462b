package band

import (
	"math"
	"math/rand"
	"testing"
)

// binomial computes C(n, k) for the expected composition counts.
func binomial(n, k int) int {
	out := 1
	for i := 0; i < k; i++ {
		out = out * (n - i) / (i + 1)
	}
	return out
}

func TestEnumerateCompositions_Count(t *testing.T) {
	// Compositions of m into m parts number C(2m-1, m).
	for m := 1; m <= 6; m++ {
		comps := enumerateCompositions(m)
		want := binomial(2*m-1, m)
		if len(comps) != want {
			t.Errorf("m=%d: expected %d compositions, got %d", m, want, len(comps))
		}
	}
}

func TestEnumerateCompositions_WeightsSumToOne(t *testing.T) {
	for m := 1; m <= 6; m++ {
		comps := enumerateCompositions(m)
		sum := 0.0
		for _, c := range comps {
			sum += c.weight
		}
		if math.Abs(sum-1.0) > 1e-9 {
			t.Errorf("m=%d: weights sum to %.12f, want 1", m, sum)
		}
	}
}

func TestEnumerateCompositions_CountsSumToM(t *testing.T) {
	m := 4
	for _, comp := range enumerateCompositions(m) {
		sum := 0
		for _, c := range comp.counts {
			sum += c
		}
		if sum != m {
			t.Errorf("Composition %v sums to %d, want %d", comp.counts, sum, m)
		}
	}
}

func TestEnumerateCompositions_Distinct(t *testing.T) {
	seen := make(map[[4]int]bool)
	for _, comp := range enumerateCompositions(4) {
		var key [4]int
		copy(key[:], comp.counts)
		if seen[key] {
			t.Errorf("Duplicate composition %v", comp.counts)
		}
		seen[key] = true
	}
}

func TestMultinomialWeight_KnownValues(t *testing.T) {
	// m=2: (2,0) has probability 1/4, (1,1) has 2/4.
	if w := multinomialWeight([]int{2, 0}); math.Abs(w-0.25) > 1e-12 {
		t.Errorf("weight(2,0) = %.6f, want 0.25", w)
	}
	if w := multinomialWeight([]int{1, 1}); math.Abs(w-0.5) > 1e-12 {
		t.Errorf("weight(1,1) = %.6f, want 0.5", w)
	}
	// m=3: (1,1,1) has 3!/27 = 6/27.
	if w := multinomialWeight([]int{1, 1, 1}); math.Abs(w-6.0/27.0) > 1e-12 {
		t.Errorf("weight(1,1,1) = %.6f, want %.6f", w, 6.0/27.0)
	}
}

func TestSampleCompositions(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	comps := sampleCompositions(8, 50, rng)

	if len(comps) != 50 {
		t.Fatalf("Expected 50 samples, got %d", len(comps))
	}
	totalW := 0.0
	for _, comp := range comps {
		totalW += comp.weight
		sum := 0
		for _, c := range comp.counts {
			sum += c
		}
		if sum != 8 {
			t.Errorf("Sampled counts %v sum to %d, want 8", comp.counts, sum)
		}
	}
	if math.Abs(totalW-1.0) > 1e-9 {
		t.Errorf("Sampled weights sum to %.6f, want 1", totalW)
	}
}
