package retrieval

import (
	"context"

	"github.com/Harshitk-cp/engram/internal/domain"
)

// DefaultCausalChainMaxDepth and DefaultCausalChainMinSimilarity are
// spec.md §4.5.3/§6's defaults.
const (
	DefaultCausalChainMaxDepth       = 5
	DefaultCausalChainMinSimilarity  = 0.15
)

// CausalChain is the result of a traversal: the ordered links from
// target effect back through its causes, and the product of their
// confidences.
type CausalChain struct {
	Links           []domain.CausalLink
	TotalConfidence float32
}

// CausalConfig carries the tunables for TraverseCausalChain.
type CausalConfig struct {
	MaxDepth      int
	MinSimilarity float64
}

// TraverseCausalChain builds the causal chain explaining targetEffect
// (spec.md §4.5.3): find links whose effect description matches, push
// them into the chain, then recurse on each link's cause description
// up to maxDepth hops, never revisiting a link id. sim defaults to
// HeuristicTextSimilarity when nil; pass a vector-backed similarity
// function when an embedding client is available.
func TraverseCausalChain(ctx context.Context, links domain.CausalLinkStore, targetEffect string, cfg CausalConfig, sim TextSimilarity) (CausalChain, error) {
	if sim == nil {
		sim = HeuristicTextSimilarity
	}
	maxDepth := cfg.MaxDepth
	if maxDepth <= 0 {
		maxDepth = DefaultCausalChainMaxDepth
	}
	minSim := cfg.MinSimilarity
	if minSim == 0 {
		minSim = DefaultCausalChainMinSimilarity
	}

	all, err := links.ListAll(ctx)
	if err != nil {
		return CausalChain{}, domain.Wrap("causal.listAll", domain.ErrStorageError, err)
	}

	visited := map[string]bool{}
	chain := CausalChain{TotalConfidence: 0}
	frontier := []string{targetEffect}

	for depth := 0; depth < maxDepth && len(frontier) > 0; depth++ {
		var next []string
		for _, effect := range frontier {
			for _, l := range all {
				if visited[l.ID] {
					continue
				}
				if sim(effect, l.EffectDescription) < minSim {
					continue
				}
				visited[l.ID] = true
				chain.Links = append(chain.Links, l)
				next = append(next, l.CauseDescription)
			}
		}
		frontier = next
	}

	chain.TotalConfidence = productConfidence(chain.Links)
	return chain, nil
}

func productConfidence(links []domain.CausalLink) float32 {
	if len(links) == 0 {
		return 0
	}
	product := float32(1)
	for _, l := range links {
		product *= l.Confidence
	}
	return product
}
