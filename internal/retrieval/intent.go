// Package retrieval implements the four C5 operations (spec.md
// §4.5): intent planning, hybrid search, causal-chain traversal, and
// prefetch. Scoring/ranking shape is grounded on the teacher's
// internal/service/{recall,hybrid_recall}.go (vector+graph weighted
// combination, sort-then-limit), generalized to this spec's BM25+vector
// hybrid and its own record model.
package retrieval

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/Harshitk-cp/engram/internal/domain"
	"github.com/Harshitk-cp/engram/internal/llm"
)

// RetrievalDepth controls how much of the pipeline a plan should run.
type RetrievalDepth string

const (
	DepthShallow RetrievalDepth = "shallow"
	DepthDeep    RetrievalDepth = "deep"
)

// Intent classifies what the query is trying to accomplish.
type Intent struct {
	Type       string  `json:"type"`
	Confidence float32 `json:"confidence"`
}

// Plan is the output of intent planning (spec.md §4.5.1), consumed by
// hybrid search.
type Plan struct {
	SemanticQueries []string          `json:"semantic_queries"`
	KeywordQueries  []string          `json:"keyword_queries"`
	MetadataFilters map[string]string `json:"metadata_filters"`
	RetrievalDepth  RetrievalDepth    `json:"retrieval_depth"`
	Intent          Intent            `json:"intent"`
	Entities        []string          `json:"entities"`
}

// IntentPlanner produces a Plan from a raw query, preferring an LLM
// call and falling back to the regex/heuristic rules spec.md §4.5.1
// spells out.
type IntentPlanner struct {
	llm    domain.LLMClient // nil means heuristic-only
	logger *zap.Logger
}

func NewIntentPlanner(llm domain.LLMClient, logger *zap.Logger) *IntentPlanner {
	return &IntentPlanner{llm: llm, logger: logger}
}

func (p *IntentPlanner) Plan(ctx context.Context, query string) Plan {
	if p.llm != nil {
		if plan, ok := p.planLLM(ctx, query); ok {
			return plan
		}
		p.logger.Info("llm intent planning unavailable, falling back to heuristics")
	}
	return PlanHeuristic(query)
}

var questionWords = map[string]string{
	"who":   "lookup_entity",
	"what":  "lookup_fact",
	"when":  "lookup_temporal",
	"where": "lookup_location",
	"why":   "lookup_causal",
	"how":   "lookup_procedure",
}

var conjunctionMarker = regexp.MustCompile(`(?i)\b(and|also|then|after|before|since)\b`)
var capitalizedWord = regexp.MustCompile(`\b[A-Z][a-zA-Z]{1,40}\b`)
var quotedString = regexp.MustCompile(`"([^"]+)"|'([^']+)'`)
var wordSplit = regexp.MustCompile(`\s+`)

var stopwords = map[string]bool{
	"a": true, "an": true, "the": true, "is": true, "are": true, "was": true,
	"were": true, "be": true, "been": true, "being": true, "to": true, "of": true,
	"and": true, "or": true, "in": true, "on": true, "at": true, "for": true,
	"with": true, "about": true, "do": true, "does": true, "did": true, "i": true,
	"you": true, "my": true, "me": true, "what": true, "who": true, "when": true,
	"where": true, "why": true, "how": true,
}

// PlanHeuristic implements spec.md §4.5.1's fallback rules.
func PlanHeuristic(query string) Plan {
	lower := strings.ToLower(strings.TrimSpace(query))
	firstWord := strings.SplitN(lower, " ", 2)[0]
	firstWord = strings.TrimRight(firstWord, "?.,!")

	intentType := "lookup_general"
	confidence := float32(0.4)
	if t, ok := questionWords[firstWord]; ok {
		intentType = t
		confidence = 0.7
	}

	entities := extractEntities(query)
	keywords := extractKeywords(query)

	depth := DepthShallow
	if conjunctionMarker.MatchString(query) || len(keywords) > 5 {
		depth = DepthDeep
	}

	return Plan{
		SemanticQueries: []string{query},
		KeywordQueries:  keywords,
		MetadataFilters: map[string]string{},
		RetrievalDepth:  depth,
		Intent:          Intent{Type: intentType, Confidence: confidence},
		Entities:        entities,
	}
}

func extractEntities(query string) []string {
	seen := map[string]bool{}
	var out []string
	for _, m := range capitalizedWord.FindAllString(query, -1) {
		if !seen[m] {
			seen[m] = true
			out = append(out, m)
		}
	}
	for _, m := range quotedString.FindAllStringSubmatch(query, -1) {
		val := m[1]
		if val == "" {
			val = m[2]
		}
		if val != "" && !seen[val] {
			seen[val] = true
			out = append(out, val)
		}
	}
	return out
}

func extractKeywords(query string) []string {
	var out []string
	for _, w := range wordSplit.Split(strings.ToLower(query), -1) {
		w = strings.Trim(w, "?.,!'\"")
		if w == "" || stopwords[w] {
			continue
		}
		out = append(out, w)
	}
	return out
}

type llmIntentResponse struct {
	SemanticQueries []string          `json:"semantic_queries"`
	KeywordQueries  []string          `json:"keyword_queries"`
	MetadataFilters map[string]string `json:"metadata_filters"`
	RetrievalDepth  string            `json:"retrieval_depth"`
	IntentType      string            `json:"intent_type"`
	IntentConfidence float32          `json:"intent_confidence"`
	Entities        []string          `json:"entities"`
}

func (p *IntentPlanner) planLLM(ctx context.Context, query string) (Plan, bool) {
	prompt := llm.IntentPlanningPrompt(query)
	out, err := p.llm.Complete(ctx, prompt, domain.CompletionOpts{Temperature: 0.2, JSONMode: true})
	if err != nil {
		return Plan{}, false
	}

	var resp llmIntentResponse
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		p.logger.Warn("llm intent plan unparseable, falling back", zap.Error(err))
		return Plan{}, false
	}

	depth := DepthShallow
	if resp.RetrievalDepth == string(DepthDeep) {
		depth = DepthDeep
	}
	return Plan{
		SemanticQueries: resp.SemanticQueries,
		KeywordQueries:  resp.KeywordQueries,
		MetadataFilters: resp.MetadataFilters,
		RetrievalDepth:  depth,
		Intent:          Intent{Type: resp.IntentType, Confidence: resp.IntentConfidence},
		Entities:        resp.Entities,
	}, true
}
