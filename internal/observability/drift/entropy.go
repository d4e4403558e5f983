package drift

import (
	"math"
	"strings"

	"gonum.org/v1/gonum/stat"
)

// CharEntropy returns the base-2 Shannon entropy of the character
// distribution over the concatenated samples. Higher entropy means more
// diverse output; a single repeated character yields 0.
func CharEntropy(samples []string) float64 {
	if len(samples) == 0 {
		return 0
	}
	all := strings.Join(samples, " ")
	counts := make(map[rune]int)
	total := 0
	for _, r := range all {
		counts[r]++
		total++
	}
	return frequencyEntropy(counts, total)
}

// WordEntropy returns the base-2 Shannon entropy of the lower-cased,
// whitespace-split token distribution over the samples.
func WordEntropy(samples []string) float64 {
	if len(samples) == 0 {
		return 0
	}
	counts := make(map[string]int)
	total := 0
	for _, s := range samples {
		for _, w := range strings.Fields(strings.ToLower(s)) {
			counts[w]++
			total++
		}
	}
	return frequencyEntropy(counts, total)
}

// frequencyEntropy converts symbol counts into a probability distribution
// and evaluates H = -sum p log2 p. gonum computes entropy in nats.
func frequencyEntropy[K comparable](counts map[K]int, total int) float64 {
	if total == 0 {
		return 0
	}
	p := make([]float64, 0, len(counts))
	for _, c := range counts {
		p = append(p, float64(c)/float64(total))
	}
	return stat.Entropy(p) / math.Ln2
}
