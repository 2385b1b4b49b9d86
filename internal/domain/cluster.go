package domain

import "time"

// MemberType identifies which record table a cluster member belongs to.
type MemberType string

const (
	MemberFact      MemberType = "fact"
	MemberEpisode   MemberType = "episode"
	MemberProcedure MemberType = "procedure"
)

const (
	// MaxClusterKeywords bounds MemoryCluster.Keywords (spec.md §3).
	MaxClusterKeywords = 20
	// DefaultMinClusterSize is the minimum member count for a cluster
	// to be considered "valid" (spec.md §3, §6).
	DefaultMinClusterSize = 2
	// DefaultMaxClusters is the cap before the most-similar pair
	// is merged to make room (spec.md §4.4, §6).
	DefaultMaxClusters = 100
)

// MemoryCluster ("scene") groups records whose embeddings are mutually
// close, for scene-level retrieval (spec.md §3).
type MemoryCluster struct {
	ID            string       `json:"id"`
	Centroid      []float32    `json:"-"`
	MemberIDs     []string     `json:"member_ids"`
	MemberTypes   []MemberType `json:"member_types"` // parallel to MemberIDs
	Theme         string       `json:"theme"`
	Keywords      []string     `json:"keywords"`
	LastTimestamp time.Time    `json:"last_timestamp"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Valid reports whether the cluster has enough members to be returned
// by "valid cluster" queries.
func (c *MemoryCluster) Valid(minSize int) bool {
	if minSize <= 0 {
		minSize = DefaultMinClusterSize
	}
	return len(c.MemberIDs) >= minSize
}

// AddMember appends a member, updates the running-average centroid, and
// caps the keyword set — spec.md §4.4's online clustering update rule.
func (c *MemoryCluster) AddMember(id string, typ MemberType, embedding []float32, timestamp time.Time, keywords []string) {
	n := len(c.MemberIDs)
	c.MemberIDs = append(c.MemberIDs, id)
	c.MemberTypes = append(c.MemberTypes, typ)

	if len(c.Centroid) == 0 {
		c.Centroid = append([]float32(nil), embedding...)
	} else if len(embedding) == len(c.Centroid) {
		for i := range c.Centroid {
			c.Centroid[i] = (float32(n)*c.Centroid[i] + embedding[i]) / float32(n+1)
		}
	}

	if timestamp.After(c.LastTimestamp) {
		c.LastTimestamp = timestamp
	}

	c.Keywords = mergeKeywordsCapped(c.Keywords, keywords, MaxClusterKeywords)
}

func mergeKeywordsCapped(existing, add []string, cap int) []string {
	seen := make(map[string]bool, len(existing))
	out := make([]string, 0, len(existing)+len(add))
	for _, k := range existing {
		if !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	for _, k := range add {
		if len(out) >= cap {
			break
		}
		if !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	if len(out) > cap {
		out = out[:cap]
	}
	return out
}

// MergeWeighted merges `other` into c by member-count-weighted centroid
// average — used when evicting the two most-similar clusters to make
// room for a new one at the maxClusters cap (spec.md §4.4).
func (c *MemoryCluster) MergeWeighted(other *MemoryCluster) {
	n1, n2 := len(c.MemberIDs), len(other.MemberIDs)
	total := n1 + n2
	if total > 0 && len(c.Centroid) == len(other.Centroid) && len(c.Centroid) > 0 {
		merged := make([]float32, len(c.Centroid))
		for i := range merged {
			merged[i] = (float32(n1)*c.Centroid[i] + float32(n2)*other.Centroid[i]) / float32(total)
		}
		c.Centroid = merged
	}
	c.MemberIDs = append(c.MemberIDs, other.MemberIDs...)
	c.MemberTypes = append(c.MemberTypes, other.MemberTypes...)
	c.Keywords = mergeKeywordsCapped(c.Keywords, other.Keywords, MaxClusterKeywords)
	if other.LastTimestamp.After(c.LastTimestamp) {
		c.LastTimestamp = other.LastTimestamp
	}
}
