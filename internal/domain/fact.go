package domain

import "time"

// SingularPredicates is the set of predicates for which at most one
// active fact may exist per subject at any time (spec.md §6).
var SingularPredicates = map[string]bool{
	"has_name":  true,
	"works_at":  true,
	"lives_in":  true,
	"timezone":  true,
	"is_a":      true,
}

func IsSingularPredicate(predicate string) bool {
	return SingularPredicates[predicate]
}

// Fact is "what I know" — a subject-predicate-object triple (spec.md §3).
type Fact struct {
	ID              string    `json:"id"`
	Subject         string    `json:"subject"`
	Predicate       string    `json:"predicate"`
	Object          string    `json:"object"`
	Confidence      float32   `json:"confidence"`
	Evidence        []string  `json:"evidence"` // Episode ids
	FirstSeen       time.Time `json:"first_seen"`
	LastConfirmed   time.Time `json:"last_confirmed"`
	Contradictions  []string  `json:"contradictions"` // Fact ids
	UserAffirmed    bool      `json:"user_affirmed"`
	IsActive        bool      `json:"is_active"`
	RetractedReason string    `json:"retracted_reason,omitempty"`
	AccessCount     int       `json:"access_count"`
	Embedding       []float32 `json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Key returns the subject:predicate:object dedup key used by the
// extractor's intra-batch dedup (spec.md §4.2).
func (f *Fact) Key() string {
	return f.Subject + ":" + f.Predicate + ":" + f.Object
}

// FactFilter narrows FactStore.Find results.
type FactFilter struct {
	Subject    string
	Predicate  string
	Object     string
	ActiveOnly bool
}

// FactWithScore pairs a Fact with a retrieval score.
type FactWithScore struct {
	Fact
	Score float32 `json:"score"`
}
