package health

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/Harshitk-cp/engram/internal/domain"
)

// PredicateMinObjectLength is the predicate-specific minimum object
// length used by low-quality detection (spec.md §6).
var PredicateMinObjectLength = map[string]int{
	"prefers":          5,
	"uses":             3,
	"wants":            5,
	"needs":            5,
	"likes":            3,
	"dislikes":         3,
	"is_interested_in": 5,
	"works_on":         5,
	"working_on":       5,
	"location":         3,
	"email":            5,
	"is":               3,
}

var meaninglessObjects = map[string]bool{
	"it": true, "this": true, "that": true, "what": true, "the": true,
	"a": true, "an": true, "yes": true, "no": true, "ok": true,
	"okay": true, "done": true, "here": true, "there": true,
}

var pureDigits = regexp.MustCompile(`^[0-9]+$`)

// Issue severity levels used by the health score formula.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// SeverityWeight is the health-score weight table (spec.md §4.7).
var SeverityWeight = map[Severity]int{
	SeverityCritical: 10,
	SeverityHigh:     5,
	SeverityMedium:   2,
	SeverityLow:      1,
}

// Issue is one detected problem with an active fact.
type Issue struct {
	FactID   string
	Kind     string
	Severity Severity
	Detail   string
}

// IsMeaninglessObject reports whether obj matches the meaningless-object
// pattern: stopword-like filler, or pure digits.
func IsMeaninglessObject(obj string) bool {
	n := normalizeText(obj)
	if meaninglessObjects[n] {
		return true
	}
	return pureDigits.MatchString(n)
}

// IsTruncated reports whether obj looks like it was cut off mid-sentence:
// it is shorter than 3 characters, or its last whitespace-separated word
// is only 1-2 characters long.
func IsTruncated(obj string) bool {
	n := strings.TrimSpace(obj)
	if len(n) < 3 {
		return true
	}
	words := strings.Fields(n)
	if len(words) == 0 {
		return true
	}
	last := words[len(words)-1]
	if len(last) <= 2 {
		return true
	}
	lastRune := rune(n[len(n)-1])
	endsWithPunctuation := unicode.IsPunct(lastRune)
	if !endsWithPunctuation && len(words) > 3 && len(last) < 3 {
		return true
	}
	return false
}

// BelowPredicateMinimum reports whether obj is shorter than the
// predicate-specific minimum object length, if one is defined.
func BelowPredicateMinimum(predicate, obj string) bool {
	min, ok := PredicateMinObjectLength[normalizeText(predicate)]
	if !ok {
		return false
	}
	return len(strings.TrimSpace(obj)) < min
}

// IsLowQuality reports whether a fact is low-quality per spec.md §4.7.
// userAffirmed facts are always exempt.
func IsLowQuality(f domain.Fact) (bool, string) {
	if f.UserAffirmed {
		return false, ""
	}
	if IsMeaninglessObject(f.Object) {
		return true, "meaningless object"
	}
	if IsTruncated(f.Object) {
		return true, "truncated object"
	}
	if BelowPredicateMinimum(f.Predicate, f.Object) {
		return true, "object shorter than predicate minimum"
	}
	if f.Confidence < 0.3 {
		return true, "confidence below 0.3"
	}
	return false, ""
}

// IsSafeToAutoRetract reports whether a low-quality fact may be retracted
// automatically without human review (spec.md §4.7): never user-affirmed,
// and either the object is in the meaningless set, too short, or the
// confidence is below the stricter 0.2 auto-fix floor.
func IsSafeToAutoRetract(f domain.Fact) bool {
	if f.UserAffirmed {
		return false
	}
	if IsMeaninglessObject(f.Object) {
		return true
	}
	if len(strings.TrimSpace(f.Object)) < 3 {
		return true
	}
	return f.Confidence < 0.2
}

// HealthScore computes the 0-100 health score from a weighted issue
// list and the active fact count (spec.md §4.7).
func HealthScore(issues []Issue, activeFactCount int) int {
	if activeFactCount == 0 {
		return 100
	}
	var total float64
	for _, iss := range issues {
		total += float64(SeverityWeight[iss.Severity])
	}
	score := 100 - (total/(2*float64(activeFactCount)))*100
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return int(score + 0.5)
}
