package app

import (
	"math"
	"strings"

	"review_pulse/internal/domain"
)

// Deduplicator collapses near-duplicate reviews by fuzzy similarity.
// Clustering is sequential first-match: each review in input order is
// attached to the first existing cluster whose representative scores at or
// above the threshold, else it opens a new cluster. Similarity is not
// transitive; first-match against representatives in creation order keeps
// the outcome deterministic on input order.
type Deduplicator struct {
	threshold int
}

func NewDeduplicator(threshold int) *Deduplicator {
	if threshold <= 0 {
		threshold = 85
	}
	if threshold > 100 {
		threshold = 100
	}
	return &Deduplicator{threshold: threshold}
}

type cluster struct {
	idx   int    // input index of the representative (first seen)
	runes []rune // lowercased normalized text
	count int    // cluster size including the representative
}

// Collapse returns one representative per cluster, in the original input
// order of the representatives, with the number of collapsed duplicates.
func (d *Deduplicator) Collapse(in []domain.CleanedReview) []domain.Representative {
	clusters := make([]cluster, 0, len(in))
next:
	for i := range in {
		r := []rune(strings.ToLower(in[i].NormalizedText))
		for c := range clusters {
			if bestPossible(len(clusters[c].runes), len(r)) < d.threshold {
				continue
			}
			if similarity(clusters[c].runes, r) >= d.threshold {
				clusters[c].count++
				continue next
			}
		}
		clusters = append(clusters, cluster{idx: i, runes: r, count: 1})
	}

	out := make([]domain.Representative, len(clusters))
	for j, c := range clusters {
		out[j] = domain.Representative{CleanedReview: in[c.idx], DuplicateCount: c.count - 1}
	}
	return out
}

// Similarity scores two strings in [0,100]: 100 for equal, scaled down by
// edit distance relative to the longer string. Symmetric in its arguments.
func Similarity(a, b string) int {
	return similarity([]rune(a), []rune(b))
}

func similarity(a, b []rune) int {
	la, lb := len(a), len(b)
	if la == 0 && lb == 0 {
		return 100
	}
	max := la
	if lb > max {
		max = lb
	}
	dist := levenshtein(a, b)
	return int(math.Round(100 * (1 - float64(dist)/float64(max))))
}

// bestPossible bounds the similarity of two strings by length alone: the
// edit distance is at least the length difference.
func bestPossible(la, lb int) int {
	if la == 0 && lb == 0 {
		return 100
	}
	diff, max := la-lb, la
	if diff < 0 {
		diff = -diff
	}
	if lb > max {
		max = lb
	}
	return int(math.Round(100 * (1 - float64(diff)/float64(max))))
}

// levenshtein computes edit distance with a rolling two-row table.
func levenshtein(a, b []rune) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for j := 0; j <= len(b); j++ {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		cur[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			ins := cur[j-1] + 1
			del := prev[j] + 1
			sub := prev[j-1] + cost
			m := ins
			if del < m {
				m = del
			}
			if sub < m {
				m = sub
			}
			cur[j] = m
		}
		prev, cur = cur, prev
	}
	return prev[len(b)]
}
