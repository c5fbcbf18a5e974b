package evaluation

import "strings"

// RecallAtK computes Recall@K: the fraction of relevant labels found in the
// top-K retrieved labels. Matching is case-insensitive since merchant
// domains arrive in mixed casing across providers. Returns 0.0 when nothing
// is relevant.
func RecallAtK(relevant, retrieved []string, k int) float64 {
	if len(relevant) == 0 {
		return 0.0
	}

	relevantSet := normalizeSet(relevant)

	found := 0
	for i, r := range retrieved {
		if i >= k {
			break
		}
		key := normalizeLabel(r)
		if _, ok := relevantSet[key]; ok {
			found++
			// Count each relevant label once even if retrieved twice.
			delete(relevantSet, key)
		}
	}

	return float64(found) / float64(len(relevant))
}

// MRRAtK computes the reciprocal rank of the first relevant label in the
// top-K retrieved labels. Matching is case-insensitive. Returns 0.0 when no
// relevant label appears in the top-K.
func MRRAtK(relevant, retrieved []string, k int) float64 {
	if len(relevant) == 0 || len(retrieved) == 0 {
		return 0.0
	}

	relevantSet := normalizeSet(relevant)

	for i, r := range retrieved {
		if i >= k {
			break
		}
		if _, ok := relevantSet[normalizeLabel(r)]; ok {
			return 1.0 / float64(i+1)
		}
	}

	return 0.0
}

// KeywordCoverage reports the fraction of expected keywords that appear as a
// case-insensitive substring of at least one retrieved title. Returns 0.0
// when no keywords are expected.
func KeywordCoverage(keywords, titles []string) float64 {
	if len(keywords) == 0 {
		return 0.0
	}

	lowered := make([]string, 0, len(titles))
	for _, title := range titles {
		lowered = append(lowered, strings.ToLower(title))
	}

	covered := 0
	for _, keyword := range keywords {
		needle := normalizeLabel(keyword)
		if needle == "" {
			continue
		}
		for _, title := range lowered {
			if strings.Contains(title, needle) {
				covered++
				break
			}
		}
	}

	return float64(covered) / float64(len(keywords))
}

func normalizeSet(labels []string) map[string]struct{} {
	set := make(map[string]struct{}, len(labels))
	for _, label := range labels {
		set[normalizeLabel(label)] = struct{}{}
	}
	return set
}

func normalizeLabel(label string) string {
	return strings.ToLower(strings.TrimSpace(label))
}
