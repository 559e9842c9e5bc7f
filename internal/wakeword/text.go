package wakeword

import "strings"

// normalizeText lowercases and strips punctuation, collapsing runs of
// whitespace to a single space, the way a fuzzy phrase match needs its
// input prepared regardless of how the model happened to punctuate the
// recognized text.
func normalizeText(s string) string {
	var b strings.Builder
	lastSpace := false
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastSpace = false
		case r == ' ' || r == '\t' || r == '\n':
			if !lastSpace {
				b.WriteByte(' ')
				lastSpace = true
			}
		default:
			// punctuation: dropped, not treated as a word boundary
		}
	}
	return strings.TrimSpace(b.String())
}

// maxEditDistance is how many character edits a normalized recognized
// phrase may be from a configured phrase and still count as a match,
// covering small ASR substitutions ("hey cats" / "hey cap") without
// opening the door to unrelated utterances.
const maxEditDistance = 2

// matchPhrase returns the first configured phrase that fuzzy-matches
// normalized text, either as a substring or within maxEditDistance.
func matchPhrase(normalizedText string, phrases []string) (string, bool) {
	for _, phrase := range phrases {
		np := normalizeText(phrase)
		if np == "" {
			continue
		}
		if strings.Contains(normalizedText, np) {
			return phrase, true
		}
		if levenshtein(normalizedText, np) <= maxEditDistance {
			return phrase, true
		}
	}
	return "", false
}

// levenshtein computes the classic edit distance with two rolling rows,
// O(len(a)*len(b)) time and O(len(b)) space.
func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	prev := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	cur := make([]int, len(rb)+1)

	for i := 1; i <= len(ra); i++ {
		cur[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			del := prev[j] + 1
			ins := cur[j-1] + 1
			sub := prev[j-1] + cost
			m := del
			if ins < m {
				m = ins
			}
			if sub < m {
				m = sub
			}
			cur[j] = m
		}
		prev, cur = cur, prev
	}
	return prev[len(rb)]
}
