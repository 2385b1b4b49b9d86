package consolidation

import (
	"context"
	"encoding/json"
	"strings"

	"go.uber.org/zap"

	"github.com/Harshitk-cp/engram/internal/domain"
	"github.com/Harshitk-cp/engram/internal/llm"
)

// Pattern is a recurring theme the LLM found across a batch of recent
// Episodes (spec.md §4.6 stage 1).
type Pattern struct {
	Theme         string   `json:"theme"`
	SupportingIDs []string `json:"supporting_ids"`
	Summary       string   `json:"summary"`
}

type patternDiscoveryResponse struct {
	Patterns []Pattern `json:"patterns"`
}

// DiscoverPatterns asks the LLM to find recurring patterns across
// recent episodes; a nil llmClient or any failure yields an empty,
// non-fatal result so the consolidation run proceeds to later stages.
func DiscoverPatterns(ctx context.Context, llmClient domain.LLMClient, episodes []domain.Episode, logger *zap.Logger) []Pattern {
	if llmClient == nil || len(episodes) == 0 {
		return nil
	}

	var b strings.Builder
	for _, ep := range episodes {
		b.WriteString(ep.ID)
		b.WriteString(": ")
		b.WriteString(ep.Summary)
		b.WriteString("\n")
	}

	out, err := llmClient.Complete(ctx, llm.PatternDiscoveryPrompt(b.String()), domain.CompletionOpts{Temperature: 0.3, JSONMode: true})
	if err != nil {
		logger.Info("pattern discovery unavailable", zap.Error(err))
		return nil
	}

	var parsed patternDiscoveryResponse
	if err := json.Unmarshal([]byte(out), &parsed); err != nil {
		logger.Warn("pattern discovery response unparseable", zap.Error(err))
		return nil
	}
	return parsed.Patterns
}

// Connection is a proposed CausalLink the LLM inferred from evidence
// that wasn't explicitly stated (spec.md §4.6 stage 3).
type Connection struct {
	CauseID    string  `json:"cause_id"`
	EffectID   string  `json:"effect_id"`
	Mechanism  string  `json:"mechanism"`
	Confidence float32 `json:"confidence"`
}

type connectionDiscoveryResponse struct {
	Connections []Connection `json:"connections"`
}

// DiscoverConnections asks the LLM to propose new causal links between
// already-stored facts, filtering out any pair that already has a
// link recorded between them.
func DiscoverConnections(ctx context.Context, llmClient domain.LLMClient, facts []domain.Fact, existing []domain.CausalLink, logger *zap.Logger) []Connection {
	if llmClient == nil || len(facts) < 2 {
		return nil
	}

	var b strings.Builder
	for _, f := range facts {
		b.WriteString(f.ID)
		b.WriteString(": ")
		b.WriteString(f.Subject)
		b.WriteString(" ")
		b.WriteString(f.Predicate)
		b.WriteString(" ")
		b.WriteString(f.Object)
		b.WriteString("\n")
	}

	out, err := llmClient.Complete(ctx, llm.ConnectionDiscoveryPrompt(b.String()), domain.CompletionOpts{Temperature: 0.2, JSONMode: true})
	if err != nil {
		logger.Info("connection discovery unavailable", zap.Error(err))
		return nil
	}

	var parsed connectionDiscoveryResponse
	if err := json.Unmarshal([]byte(out), &parsed); err != nil {
		logger.Warn("connection discovery response unparseable", zap.Error(err))
		return nil
	}

	seen := make(map[string]bool, len(existing))
	for _, l := range existing {
		seen[l.CauseID+"->"+l.EffectID] = true
	}

	out2 := make([]Connection, 0, len(parsed.Connections))
	for _, c := range parsed.Connections {
		key := c.CauseID + "->" + c.EffectID
		if seen[key] || c.CauseID == "" || c.EffectID == "" {
			continue
		}
		seen[key] = true
		out2 = append(out2, c)
	}
	return out2
}
