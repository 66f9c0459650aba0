package classify

import (
	"strings"

	"github.com/mm-osint/newswire/internal/models"
)

// ShouldExclude reports whether text matches any active exclusion rule.
// Matching short-circuits on the first hit. Comparison is case-folded unless
// the rule is case-sensitive. An empty rule set excludes nothing.
func ShouldExclude(text string, rules []models.ExclusionRule) bool {
	for _, rule := range rules {
		if !rule.IsActive {
			continue
		}

		pattern := rule.Pattern
		candidate := text
		if !rule.IsCaseSensitive {
			pattern = strings.ToLower(pattern)
			candidate = strings.ToLower(candidate)
		}

		switch rule.RuleType {
		case models.RuleTypeExact:
			if candidate == pattern {
				return true
			}
		case models.RuleTypeContains:
			if strings.Contains(candidate, pattern) {
				return true
			}
		}
	}
	return false
}
