package consolidation

import (
	"regexp"
	"strings"

	"github.com/Harshitk-cp/engram/internal/domain"
)

var negationWord = regexp.MustCompile(`(?i)\b(not|no|never|n't|none|without)\b`)

// stripNegation removes negation markers so the remaining content can
// be compared for "same underlying claim, opposite polarity".
func stripNegation(s string) string {
	s = negationWord.ReplaceAllString(s, "")
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(s, " "))
}

var whitespaceRun = regexp.MustCompile(`\s+`)

// IsContradiction reports whether two active facts sharing a subject
// contradict each other: either they share a singular predicate (at
// most one may be true), or one negates the other's content
// (spec.md §4.6).
func IsContradiction(a, b domain.Fact) bool {
	if a.Subject != b.Subject {
		return false
	}
	if a.Predicate == b.Predicate && domain.IsSingularPredicate(a.Predicate) && a.Object != b.Object {
		return true
	}
	if a.Predicate != b.Predicate {
		return false
	}
	aNeg := negationWord.MatchString(a.Object)
	bNeg := negationWord.MatchString(b.Object)
	if aNeg == bNeg {
		return false
	}
	return stripNegation(a.Object) == stripNegation(b.Object)
}

// Resolve applies the spec's five-step precedence and returns the
// winner followed by the loser (spec.md §4.6):
//  1. userAffirmed beats non-affirmed
//  2. else more recent LastConfirmed wins
//  3. else higher Confidence wins
//  4. else larger Evidence wins
//  5. else the first-inserted (by FirstSeen, then id) wins
func Resolve(a, b domain.Fact) (winner, loser domain.Fact) {
	if a.UserAffirmed != b.UserAffirmed {
		if a.UserAffirmed {
			return a, b
		}
		return b, a
	}
	if !a.LastConfirmed.Equal(b.LastConfirmed) {
		if a.LastConfirmed.After(b.LastConfirmed) {
			return a, b
		}
		return b, a
	}
	if a.Confidence != b.Confidence {
		if a.Confidence > b.Confidence {
			return a, b
		}
		return b, a
	}
	if len(a.Evidence) != len(b.Evidence) {
		if len(a.Evidence) > len(b.Evidence) {
			return a, b
		}
		return b, a
	}
	if a.FirstSeen.Before(b.FirstSeen) {
		return a, b
	}
	if b.FirstSeen.Before(a.FirstSeen) {
		return b, a
	}
	if a.ID <= b.ID {
		return a, b
	}
	return b, a
}

// ContradictionRetractReason is the fixed reason recorded against the
// losing fact (spec.md §4.6).
const ContradictionRetractReason = "contradiction resolution"
