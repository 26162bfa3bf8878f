package remaps

import (
	"sort"
	"strings"

	"github.com/MarcoPoloResearchLab/keyhub/internal/keycodes"
)

// Candidate is an existing stored remap considered during an upsert.
type Candidate struct {
	ID               int64
	Source           string
	UpdatedAtSeconds int64
}

// Matches reports whether a stored source spelling refers to the same key as rawSource.
// Older rows may hold un-normalized spellings, so both the normalized form and the
// upper-cased raw form are compared.
func Matches(storedSource, rawSource string) bool {
	if keycodes.Normalize(storedSource) == keycodes.Normalize(rawSource) {
		return true
	}
	return strings.ToUpper(strings.TrimSpace(storedSource)) == strings.ToUpper(strings.TrimSpace(rawSource))
}

// ResolveUpsert picks the row an upsert for rawSource should update. Rows already stored
// under the normalized spelling win, then the most recently updated, then the lowest id.
// The remaining matches are duplicates that must be retired. ok is false when nothing matches.
func ResolveUpsert(candidates []Candidate, rawSource string) (primary Candidate, duplicates []Candidate, ok bool) {
	matches := make([]Candidate, 0, len(candidates))
	for _, candidate := range candidates {
		if Matches(candidate.Source, rawSource) {
			matches = append(matches, candidate)
		}
	}
	if len(matches) == 0 {
		return Candidate{}, nil, false
	}

	normalized := keycodes.Normalize(rawSource).String()
	sort.SliceStable(matches, func(i, j int) bool {
		left, right := matches[i], matches[j]
		leftExact, rightExact := left.Source == normalized, right.Source == normalized
		if leftExact != rightExact {
			return leftExact
		}
		if left.UpdatedAtSeconds != right.UpdatedAtSeconds {
			return left.UpdatedAtSeconds > right.UpdatedAtSeconds
		}
		return left.ID < right.ID
	})
	return matches[0], matches[1:], true
}
