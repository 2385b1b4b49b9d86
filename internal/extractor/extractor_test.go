package extractor

import (
	"context"
	"testing"

	"github.com/Harshitk-cp/engram/internal/domain"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func newTestExtractor(llm domain.LLMClient) *Extractor {
	return New(llm, zap.NewNop())
}

func TestExtractRegex_HasName(t *testing.T) {
	x := newTestExtractor(nil)
	res := x.Extract(context.Background(), "sess-1", []string{"m1"}, "My name is Alice.")

	assert.Len(t, res.Facts, 1)
	f := res.Facts[0]
	assert.Equal(t, "user", f.Subject)
	assert.Equal(t, "has_name", f.Predicate)
	assert.Equal(t, "alice", f.Object)
	assert.Equal(t, SourcePattern, f.Source)
	assert.InDelta(t, 1.0, f.Confidence, 0.001) // 0.95 + 0.15 singular-predicate bonus, clamped to 1
}

func TestExtractRegex_WorksAtAndLivesIn(t *testing.T) {
	x := newTestExtractor(nil)
	res := x.Extract(context.Background(), "sess-1", nil, "I work at Acme Corp. I live in Berlin.")

	assert.Len(t, res.Facts, 2)
	predicates := map[string]string{}
	for _, f := range res.Facts {
		predicates[f.Predicate] = f.Object
	}
	assert.Equal(t, "acme corp", predicates["works_at"])
	assert.Equal(t, "berlin", predicates["lives_in"])
}

func TestExtractRegex_GenericMyXIsY(t *testing.T) {
	x := newTestExtractor(nil)
	res := x.Extract(context.Background(), "sess-1", nil, "My favorite color is blue.")

	assert.Len(t, res.Facts, 1)
	f := res.Facts[0]
	assert.Equal(t, "is", f.Predicate)
	assert.Equal(t, "blue", f.Object)
}

func TestExtractRegex_InferenceKeyword(t *testing.T) {
	x := newTestExtractor(nil)
	res := x.Extract(context.Background(), "sess-1", nil, "I've been debugging this Postgres query all day.")

	var found bool
	for _, f := range res.Facts {
		if f.Source == SourceInference && f.Predicate == "uses" && f.Object == "postgres" {
			found = true
		}
	}
	assert.True(t, found, "expected an inference-sourced uses/postgres fact")
}

func TestExtractRegex_CausalBecause(t *testing.T) {
	x := newTestExtractor(nil)
	res := x.Extract(context.Background(), "sess-1", nil, "The deploy failed because the config was missing.")

	assert.Len(t, res.CausalLinks, 1)
	c := res.CausalLinks[0]
	assert.Equal(t, "the config was missing", c.CauseDescription)
	assert.Equal(t, "The deploy failed", c.EffectDescription)
}

func TestDedupFacts_PatternBeatsInference(t *testing.T) {
	facts := []FactCandidate{
		{Subject: "user", Predicate: "uses", Object: "go", Source: SourceInference, Confidence: 0.6},
		{Subject: "user", Predicate: "uses", Object: "go", Source: SourcePattern, Confidence: 0.9},
	}
	out := dedupFacts(facts)
	assert.Len(t, out, 1)
	assert.Equal(t, SourcePattern, out[0].Source)
}

func TestDedupFacts_PreservesOrderAndDistinctKeys(t *testing.T) {
	facts := []FactCandidate{
		{Subject: "user", Predicate: "has_name", Object: "alice", Source: SourcePattern},
		{Subject: "user", Predicate: "works_at", Object: "acme", Source: SourcePattern},
	}
	out := dedupFacts(facts)
	assert.Len(t, out, 2)
	assert.Equal(t, "has_name", out[0].Predicate)
	assert.Equal(t, "works_at", out[1].Predicate)
}

func TestComputeConfidence_ShortObjectPenalty(t *testing.T) {
	f := FactCandidate{Subject: "user", Predicate: "prefers", Object: "go", Source: SourceInference}
	c := clampConfidence(computeConfidence(f, 0))
	// base 0.5 + 0.1 inference - 0.2 short-object = 0.4
	assert.InDelta(t, 0.4, c, 0.001)
}

func TestComputeConfidence_SingularPredicateBonus(t *testing.T) {
	f := FactCandidate{Subject: "user", Predicate: "timezone", Object: "america/new_york", Source: SourceLLM}
	c := clampConfidence(computeConfidence(f, 0))
	// base 0.5 + 0.3 llm + 0.15 singular = 0.95
	assert.InDelta(t, 0.95, c, 0.001)
}

func TestComputeConfidence_ClampedToOne(t *testing.T) {
	f := FactCandidate{Subject: "user", Predicate: "timezone", Object: "america/new_york", Source: SourceLLM}
	c := clampConfidence(computeConfidence(f, 1))
	assert.Equal(t, float32(1), c)
}

func TestNormalizeObject_StripsArticleAndQuotes(t *testing.T) {
	assert.Equal(t, "red bicycle", normalizeObject("'a Red Bicycle'"))
	assert.Equal(t, "engineer", normalizeObject("an Engineer"))
}

func TestNormalizePredicate_SnakeCases(t *testing.T) {
	assert.Equal(t, "favorite_color", normalizePredicate("Favorite  Color"))
}

// --- LLM mode ---

type fakeLLM struct {
	completions []string
	errs        []error
	calls       int
}

func (f *fakeLLM) Name() string { return "fake" }

func (f *fakeLLM) Complete(ctx context.Context, prompt string, opts domain.CompletionOpts) (string, error) {
	i := f.calls
	f.calls++
	if i >= len(f.completions) {
		i = len(f.completions) - 1
	}
	var err error
	if i < len(f.errs) {
		err = f.errs[i]
	}
	return f.completions[i], err
}

func TestExtractLLM_HappyPath(t *testing.T) {
	factsJSON := `{"facts":[{"subject":"user","predicate":"has_name","object":"Alice","confidence":0.9}],"causal_links":[]}`
	summaryJSON := `{"summary":"Alice introduced herself","topic":"introduction","keywords":["alice"],"emotional_salience":0.2}`
	llm := &fakeLLM{completions: []string{factsJSON, summaryJSON}}
	x := newTestExtractor(llm)

	res := x.Extract(context.Background(), "sess-1", nil, "My name is Alice.")
	assert.Len(t, res.Facts, 1)
	assert.Equal(t, SourceLLM, res.Facts[0].Source)
	assert.Equal(t, "introduction", res.Episode.Topic)
}

func TestExtractLLM_MalformedJSONRetriesThenFallsBack(t *testing.T) {
	llm := &fakeLLM{completions: []string{"not json", "still not json"}}
	x := newTestExtractor(llm)

	res := x.Extract(context.Background(), "sess-1", nil, "My name is Alice.")
	// Falls back to regex mode after the retry is exhausted.
	assert.Len(t, res.Facts, 1)
	assert.Equal(t, SourcePattern, res.Facts[0].Source)
}

func TestExtractLLM_MalformedJSONRecoversOnRetry(t *testing.T) {
	factsJSON := `{"facts":[{"subject":"user","predicate":"has_name","object":"Alice","confidence":0.9}],"causal_links":[]}`
	llm := &fakeLLM{completions: []string{"not json", factsJSON, "not json either"}}
	x := newTestExtractor(llm)

	res := x.Extract(context.Background(), "sess-1", nil, "My name is Alice.")
	assert.Len(t, res.Facts, 1)
	assert.Equal(t, SourceLLM, res.Facts[0].Source)
}
