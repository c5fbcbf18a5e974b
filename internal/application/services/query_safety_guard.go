package services

import (
	"regexp"
	"strings"

	apperrors "github.com/dealscout/sourcing/pkg/errors"
)

// blockedQueryPatterns match queries the engine refuses to source outright.
// Matching happens before any provider call, so a blocked query costs nothing.
var blockedQueryPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(firearms?|guns?|rifles?|pistols?|handguns?)\b`),
	regexp.MustCompile(`(?i)\b(ammunition|ammo|silencers?|suppressors?)\b`),
	regexp.MustCompile(`(?i)\b(explosives?|grenades?|detonators?)\b`),
	regexp.MustCompile(`(?i)\bpipe\s+bombs?\b`),
	regexp.MustCompile(`(?i)\b(cocaine|heroin|methamphetamine|fentanyl|narcotics?)\b`),
	regexp.MustCompile(`(?i)\bcounterfeit\b`),
	regexp.MustCompile(`(?i)\bstolen\s+(goods?|property|merchandise)\b`),
	regexp.MustCompile(`(?i)\bhuman\s+organs?\b`),
	regexp.MustCompile(`(?i)\b(ivory|rhino\s+horn|endangered\s+species)\b`),
}

// sensitiveCategoryPattern flags categories that are legal to source but get
// conservative handling downstream (no caching of user terms in analytics).
var sensitiveCategoryPattern = regexp.MustCompile(`(?i)\b(medical|pharmacy|prescription|adult|tobacco|vape|alcohol)\b`)

// QuerySafetyGuard screens raw queries before fan-out. It is stateless and
// safe for concurrent use.
type QuerySafetyGuard struct{}

func NewQuerySafetyGuard() *QuerySafetyGuard {
	return &QuerySafetyGuard{}
}

// Check returns a validation error when the query text matches the blocklist.
// Both the raw user input and the assembled provider query are screened, since
// extraction can surface terms the raw input spelled differently.
func (g *QuerySafetyGuard) Check(texts ...string) error {
	for _, text := range texts {
		if text == "" {
			continue
		}
		for _, pattern := range blockedQueryPatterns {
			if pattern.MatchString(text) {
				return apperrors.NewValidationError("query contains blocked terms and cannot be searched")
			}
		}
	}
	return nil
}

// IsSensitive reports whether a category or query needs conservative handling
func (g *QuerySafetyGuard) IsSensitive(text string) bool {
	return text != "" && sensitiveCategoryPattern.MatchString(strings.ToLower(text))
}
