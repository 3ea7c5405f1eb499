package metadata

import "strings"

// titleSimilarity scores how well a search query matches a candidate title:
// exact match is 1.0, prefix containment is 0.9, otherwise word-overlap with
// a penalty when the candidate carries extra words the query didn't ask for.
func titleSimilarity(query, result string) float64 {
	q := strings.ToLower(strings.TrimSpace(query))
	r := strings.ToLower(strings.TrimSpace(result))

	if q == r {
		return 1.0
	}
	if strings.HasPrefix(r, q+" ") || strings.HasPrefix(q, r+" ") {
		return 0.9
	}

	qWords := strings.Fields(q)
	rWords := strings.Fields(r)
	if len(qWords) == 0 || len(rWords) == 0 {
		return 0.0
	}

	rSet := make(map[string]bool, len(rWords))
	for _, w := range rWords {
		rSet[w] = true
	}

	matches := 0
	for _, w := range qWords {
		if rSet[w] {
			matches++
		}
	}

	total := len(qWords)
	if len(rWords) > total {
		total = len(rWords)
	}
	score := float64(matches) / float64(total)

	if len(rWords) > len(qWords) {
		score *= float64(len(qWords)) / float64(len(rWords))
	}
	return score
}
