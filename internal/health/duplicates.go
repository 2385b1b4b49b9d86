package health

import (
	"sort"
	"strings"

	"github.com/agext/levenshtein"

	"github.com/Harshitk-cp/engram/internal/domain"
)

// DuplicateGroup is one (subject,predicate) bucket of active facts with
// the best-quality member identified as the keeper.
type DuplicateGroup struct {
	Subject   string
	Predicate string
	Best      domain.Fact
	Members   []domain.Fact // sorted best-first, Members[0] == Best
}

// DuplicatePair is a non-head member judged a true duplicate of the
// group's best fact.
type DuplicatePair struct {
	Best domain.Fact
	Dup  domain.Fact
}

func normalizeText(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// GroupBySubjectPredicate buckets active facts by normalized
// (subject,predicate) and sorts each bucket best-first: userAffirmed
// descending, then confidence, then evidence count, then object length.
func GroupBySubjectPredicate(facts []domain.Fact) []DuplicateGroup {
	buckets := make(map[string][]domain.Fact)
	order := make([]string, 0)
	for _, f := range facts {
		key := normalizeText(f.Subject) + "\x00" + normalizeText(f.Predicate)
		if _, ok := buckets[key]; !ok {
			order = append(order, key)
		}
		buckets[key] = append(buckets[key], f)
	}

	groups := make([]DuplicateGroup, 0, len(order))
	for _, key := range order {
		members := buckets[key]
		if len(members) < 2 {
			continue
		}
		sort.SliceStable(members, func(i, j int) bool {
			return qualityLess(members[j], members[i])
		})
		groups = append(groups, DuplicateGroup{
			Subject:   members[0].Subject,
			Predicate: members[0].Predicate,
			Best:      members[0],
			Members:   members,
		})
	}
	return groups
}

// qualityLess reports whether a ranks strictly below b in quality order.
func qualityLess(a, b domain.Fact) bool {
	if a.UserAffirmed != b.UserAffirmed {
		return !a.UserAffirmed && b.UserAffirmed
	}
	if a.Confidence != b.Confidence {
		return a.Confidence < b.Confidence
	}
	if len(a.Evidence) != len(b.Evidence) {
		return len(a.Evidence) < len(b.Evidence)
	}
	return len(a.Object) < len(b.Object)
}

// IsDuplicateObject reports whether obj is a duplicate of best under
// spec's normalized-equality / prefix / Levenshtein-similarity rules.
func IsDuplicateObject(best, obj string) bool {
	nb, no := normalizeText(best), normalizeText(obj)
	if nb == no {
		return true
	}
	if isLengthPrefix(nb, no) || isLengthPrefix(no, nb) {
		return true
	}
	if len(nb) > 10 && len(no) > 10 {
		if levenshtein.Match(nb, no, nil) > 0.85 {
			return true
		}
	}
	return false
}

// isLengthPrefix reports whether short is a prefix of long covering at
// least 80% of long's length.
func isLengthPrefix(long, short string) bool {
	if len(long) == 0 || len(short) >= len(long) {
		return false
	}
	if !strings.HasPrefix(long, short) {
		return false
	}
	return float64(len(short))/float64(len(long)) >= 0.8
}

// FindDuplicates runs duplicate detection over one subject/predicate
// group, returning every non-head member judged a true duplicate of the
// group's best fact.
func FindDuplicates(group DuplicateGroup) []DuplicatePair {
	var pairs []DuplicatePair
	for _, m := range group.Members[1:] {
		if IsDuplicateObject(group.Best.Object, m.Object) {
			pairs = append(pairs, DuplicatePair{Best: group.Best, Dup: m})
		}
	}
	return pairs
}
