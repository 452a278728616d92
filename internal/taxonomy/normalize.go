package taxonomy

import "strings"

// alias maps a free-form key (already in canonical key form) to a vocabulary
// member. Aliases live in ordered slices, not maps: the substring fallback in
// normalize iterates them in declaration order, and that order is part of the
// observable contract.
type alias[T ~string] struct {
	key string
	val T
}

// vocabulary bundles a closed member set, its ordered alias table, and the
// default member returned when nothing matches.
type vocabulary[T ~string] struct {
	members map[T]bool
	aliases []alias[T]
	def     T
}

func newVocabulary[T ~string](members []T, aliases []alias[T], def T) vocabulary[T] {
	set := make(map[T]bool, len(members))
	for _, m := range members {
		set[m] = true
	}
	return vocabulary[T]{members: set, aliases: aliases, def: def}
}

// canonicalKey lowercases, trims, and turns spaces and hyphens into
// underscores, matching how canonical member values are spelled.
func canonicalKey(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.ReplaceAll(s, " ", "_")
	s = strings.ReplaceAll(s, "-", "_")
	return s
}

// normalize maps an arbitrary string onto a vocabulary member. It is total:
// every input produces a member. Lookup order is exact member match, exact
// alias match, then a permissive substring scan over the alias table (either
// containment direction). The substring step trades occasional
// misclassification for never leaving a value unmapped.
func (v vocabulary[T]) normalize(raw string) T {
	if strings.TrimSpace(raw) == "" {
		return v.def
	}
	key := canonicalKey(raw)
	if v.members[T(key)] {
		return T(key)
	}
	for _, a := range v.aliases {
		if a.key == key {
			return a.val
		}
	}
	for _, a := range v.aliases {
		if strings.Contains(key, a.key) || strings.Contains(a.key, key) {
			return a.val
		}
	}
	return v.def
}

var (
	errorCategoryVocab = newVocabulary(ErrorCategories, errorCategoryAliases, CategoryUnknown)
	failureTypeVocab   = newVocabulary(FailureTypes, failureTypeAliases, FailureUnknown)
	severityVocab      = newVocabulary(Severities, severityAliases, SeverityMedium)
)

// NormalizeErrorCategory maps a free-form error category string onto the
// canonical vocabulary. Empty input yields CategoryUnknown.
func NormalizeErrorCategory(raw string) ErrorCategory {
	return errorCategoryVocab.normalize(raw)
}

// NormalizeFailureType maps a free-form failure type string onto the
// canonical vocabulary. Empty input yields FailureUnknown.
func NormalizeFailureType(raw string) FailureType {
	return failureTypeVocab.normalize(raw)
}

// NormalizeSeverity maps a free-form severity string onto the canonical
// vocabulary. Empty input yields SeverityMedium, not an unknown marker:
// an unclassified issue is treated as moderately important rather than
// invisible.
func NormalizeSeverity(raw string) Severity {
	return severityVocab.normalize(raw)
}
