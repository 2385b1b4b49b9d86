package domain

import "time"

// Foresight is a predicted future outcome the agent is tracking,
// following the same id/timestamps/confidence shape as the other
// auxiliary record types (spec.md §3).
type Foresight struct {
	ID          string    `json:"id"`
	Prediction  string    `json:"prediction"`
	BasedOn     []string  `json:"based_on"` // Fact/Episode ids
	Confidence  float32   `json:"confidence"`
	Horizon     string    `json:"horizon,omitempty"`
	Resolved    bool      `json:"resolved"`
	ResolvedOutcome string `json:"resolved_outcome,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// UserProfile aggregates stable attributes about the human on the
// other end of the conversation.
type UserProfile struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"display_name,omitempty"`
	Attributes  map[string]string `json:"attributes,omitempty"`
	Importance  float32   `json:"importance"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Preference is a standalone lightweight like/dislike record, distinct
// from a Fact with predicate "prefers" in that it carries a strength
// and an optional category for quick profile rendering.
type Preference struct {
	ID         string    `json:"id"`
	Category   string    `json:"category,omitempty"`
	Subject    string    `json:"subject"`
	Value      string    `json:"value"`
	Strength   float32   `json:"strength"`
	Confidence float32   `json:"confidence"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Relationship records a named connection between the user and a
// third party (person, org, tool) referenced in conversation.
type Relationship struct {
	ID         string    `json:"id"`
	Party      string    `json:"party"`
	Kind       string    `json:"kind"` // e.g. "colleague", "manager", "friend"
	Sentiment  float32   `json:"sentiment,omitempty"`
	Confidence float32   `json:"confidence"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CoreMemory is a small, never-forgotten record an operator or the
// user has pinned (spec.md §4.6: "CoreMemory is never recommended for
// forgetting").
type CoreMemory struct {
	ID         string    `json:"id"`
	Content    string    `json:"content"`
	Importance float32   `json:"importance"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
