package utils

import (
	"regexp"
	"strings"
)

// Category taxonomy used as scoring context. Labels and paths cover the
// categories the intent builder emits today; unknown categories degrade to a
// humanized form of the slug.

var categoryLabels = map[string]string{
	"running_shoes": "running shoes",
	"laptop":        "laptop",
	"headphones":    "headphones",
	"office_chair":  "office chair",
}

var categoryPaths = map[string][]string{
	"running_shoes": {"shoes", "running shoes"},
	"laptop":        {"electronics", "computers", "laptop"},
	"headphones":    {"electronics", "audio", "headphones"},
	"office_chair":  {"furniture", "office", "chair"},
}

var nonAlphanumericPattern = regexp.MustCompile(`[^a-z0-9]+`)

// NormalizeCategory converts a free-form category into a stable slug:
// lower-cased, non-alphanumerics collapsed to underscores.
func NormalizeCategory(category string) string {
	normalized := nonAlphanumericPattern.ReplaceAllString(strings.ToLower(strings.TrimSpace(category)), "_")
	return strings.Trim(normalized, "_")
}

// CategoryLabel resolves the human-readable label for a category slug.
func CategoryLabel(category string) string {
	normalized := NormalizeCategory(category)
	if label, ok := categoryLabels[normalized]; ok {
		return strings.TrimSpace(label)
	}
	return strings.TrimSpace(strings.ReplaceAll(normalized, "_", " "))
}

// CategoryPath resolves the hierarchical path for a category slug, falling
// back to the label's words when the category is not in the taxonomy.
func CategoryPath(category string) []string {
	normalized := NormalizeCategory(category)
	if path, ok := categoryPaths[normalized]; ok {
		return path
	}
	label := CategoryLabel(normalized)
	var segments []string
	for _, segment := range strings.Fields(label) {
		segments = append(segments, segment)
	}
	return segments
}
