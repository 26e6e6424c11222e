package usecase

import (
	"sort"
	"strings"
)

// dedupeKey is the source URL when the source supplied one, otherwise
// the platform plus the lower-cased name.
func dedupeKey(c candidate) string {
	if c.sourceURL {
		return "url:" + strings.TrimSuffix(c.offer.URL, "/")
	}
	return "name:" + strings.ToLower(strings.TrimSpace(c.offer.Platform)) + "|" + strings.ToLower(strings.TrimSpace(c.offer.Name))
}

// dedupe keeps the first candidate seen for every key
func dedupe(candidates []candidate) []candidate {
	seen := make(map[string]struct{}, len(candidates))
	out := make([]candidate, 0, len(candidates))
	for _, c := range candidates {
		key := dedupeKey(c)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, c)
	}
	return out
}

// sortByTotal orders candidates by price plus shipping, cheapest first.
// Ties keep their arrival order.
func sortByTotal(candidates []candidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].offer.Total().LessThan(candidates[j].offer.Total())
	})
}
