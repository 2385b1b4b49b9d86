package retrieval

import "strings"

// TextSimilarity is a pluggable similarity capability for causal-chain
// traversal; a vector-backed implementation is preferred when an
// embedding client is available, falling back to heuristic similarity
// (substring containment, word Jaccard and word overlap; spec.md §4.5.3).
type TextSimilarity func(a, b string) float64

// HeuristicTextSimilarity implements spec.md §4.5.3's built-in text
// similarity: exact substring containment scores 0.85; otherwise the
// max of word-level Jaccard (for strings with >2 words), 0.7×
// partial-word overlap, and 0.8× overlap restricted to tokens longer
// than 4 characters.
func HeuristicTextSimilarity(a, b string) float64 {
	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))
	if a == "" || b == "" {
		return 0
	}
	if strings.Contains(a, b) || strings.Contains(b, a) {
		return 0.85
	}

	wordsA := strings.Fields(a)
	wordsB := strings.Fields(b)

	var best float64

	if len(wordsA) > 2 && len(wordsB) > 2 {
		if j := jaccard(wordsA, wordsB); j > best {
			best = j
		}
	}

	if p := 0.7 * partialWordOverlap(wordsA, wordsB); p > best {
		best = p
	}

	longA := filterLonger(wordsA, 4)
	longB := filterLonger(wordsB, 4)
	if len(longA) > 0 && len(longB) > 0 {
		if o := 0.8 * overlapRatio(longA, longB); o > best {
			best = o
		}
	}

	return best
}

func jaccard(a, b []string) float64 {
	setA := toSet(a)
	setB := toSet(b)
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}
	inter := 0
	for w := range setA {
		if setB[w] {
			inter++
		}
	}
	union := len(setA) + len(setB) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

// partialWordOverlap scores how many of the shorter word list's tokens
// appear (as substring) in any token of the other list.
func partialWordOverlap(a, b []string) float64 {
	shorter, longer := a, b
	if len(longer) < len(shorter) {
		shorter, longer = longer, shorter
	}
	if len(shorter) == 0 {
		return 0
	}
	matches := 0
	for _, sw := range shorter {
		for _, lw := range longer {
			if strings.Contains(lw, sw) || strings.Contains(sw, lw) {
				matches++
				break
			}
		}
	}
	return float64(matches) / float64(len(shorter))
}

func overlapRatio(a, b []string) float64 {
	setA := toSet(a)
	setB := toSet(b)
	inter := 0
	for w := range setA {
		if setB[w] {
			inter++
		}
	}
	smaller := len(setA)
	if len(setB) < smaller {
		smaller = len(setB)
	}
	if smaller == 0 {
		return 0
	}
	return float64(inter) / float64(smaller)
}

func toSet(words []string) map[string]bool {
	out := make(map[string]bool, len(words))
	for _, w := range words {
		out[w] = true
	}
	return out
}

func filterLonger(words []string, minLen int) []string {
	var out []string
	for _, w := range words {
		if len(w) > minLen {
			out = append(out, w)
		}
	}
	return out
}
