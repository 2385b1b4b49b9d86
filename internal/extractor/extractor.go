// Package extractor turns one conversation turn into at most one
// Episode plus zero or more Facts and CausalLinks (spec.md §4.2).
package extractor

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Harshitk-cp/engram/internal/domain"
	"github.com/Harshitk-cp/engram/internal/idgen"
	"github.com/Harshitk-cp/engram/internal/llm"
	"github.com/Harshitk-cp/engram/internal/retry"
)

// Source tags a candidate by how it was produced (spec.md §4.2).
type Source string

const (
	SourcePattern   Source = "pattern"
	SourceInference Source = "inference"
	SourceLLM       Source = "llm"
)

// FactCandidate is a not-yet-persisted Fact plus its source tag.
type FactCandidate struct {
	Subject    string
	Predicate  string
	Object     string
	Source     Source
	Confidence float32
	RawSpan    string
}

// CausalCandidate is a not-yet-persisted CausalLink.
type CausalCandidate struct {
	CauseDescription  string
	EffectDescription string
	Mechanism         string
	Confidence        float32
}

// Result is the extractor's full output for one conversation turn.
type Result struct {
	Episode     domain.Episode
	Facts       []FactCandidate
	CausalLinks []CausalCandidate
}

// Extractor implements both the regex/heuristic mode and the LLM mode
// (spec.md §4.2), falling back to the former when the latter is
// unavailable or fails after retry.
type Extractor struct {
	llm    domain.LLMClient // nil means regex-only mode
	logger *zap.Logger
}

func New(llm domain.LLMClient, logger *zap.Logger) *Extractor {
	return &Extractor{llm: llm, logger: logger}
}

// Extract runs LLM mode when an LLM client is configured, falling back
// to regex mode on any unrecoverable failure (spec.md §4.2, §7).
func (x *Extractor) Extract(ctx context.Context, sessionID string, messageIDs []string, text string) Result {
	if x.llm != nil {
		if res, ok := x.extractLLM(ctx, sessionID, messageIDs, text); ok {
			return res
		}
		x.logger.Info("llm extraction unavailable, falling back to regex mode")
	}
	return x.extractRegex(sessionID, messageIDs, text)
}

// --- regex/heuristic mode ---

func (x *Extractor) extractRegex(sessionID string, messageIDs []string, text string) Result {
	sentences := splitSentences(text)

	var facts []FactCandidate
	for _, sent := range sentences {
		facts = append(facts, matchFactPatterns(sent)...)
		facts = append(facts, matchInferenceKeywords(sent)...)
	}
	facts = dedupFacts(facts)

	var causal []CausalCandidate
	for _, sent := range sentences {
		if c, ok := matchCausalPatterns(sent); ok {
			causal = append(causal, c)
		}
	}

	episode := domain.Episode{
		ID:               idgen.New("ep"),
		Timestamp:        time.Now().UTC(),
		Summary:          stubSummary(text),
		Topic:            "",
		Keywords:         nil,
		SourceSessionID:  sessionID,
		SourceMessageIDs: messageIDs,
		TTL:              domain.TTL30Days,
	}

	for i := range facts {
		facts[i].Confidence = clampConfidence(computeConfidence(facts[i], episode.EmotionalSalience))
	}

	return Result{Episode: episode, Facts: facts, CausalLinks: causal}
}

var sentenceSplit = regexp.MustCompile(`[.!?\n]+`)

func splitSentences(text string) []string {
	parts := sentenceSplit.Split(text, -1)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func matchFactPatterns(sentence string) []FactCandidate {
	var out []FactCandidate
	for _, p := range factPatterns {
		m := p.re.FindStringSubmatch(sentence)
		if m == nil {
			continue
		}
		subject := p.subject
		object := m[p.objectIdx]
		if subject == "" {
			// The "my <attr> is <value>" pattern has no literal subject;
			// its facts are attributed to the user and keep the fixed
			// "is" predicate.
			subject = "user"
		}
		out = append(out, FactCandidate{
			Subject:    subject,
			Predicate:  normalizePredicate(p.predicate),
			Object:     normalizeObject(object),
			Source:     SourcePattern,
			Confidence: p.confidence,
			RawSpan:    sentence,
		})
		break
	}
	return out
}

func matchInferenceKeywords(sentence string) []FactCandidate {
	lower := strings.ToLower(sentence)
	var out []FactCandidate
	for kw, predicate := range inferenceKeywords {
		if strings.Contains(lower, kw) {
			out = append(out, FactCandidate{
				Subject:    "user",
				Predicate:  normalizePredicate(predicate),
				Object:     normalizeObject(kw),
				Source:     SourceInference,
				Confidence: 0.5 + inferenceConfidenceDelta,
				RawSpan:    sentence,
			})
		}
	}
	return out
}

func matchCausalPatterns(sentence string) (CausalCandidate, bool) {
	for _, p := range causalPatterns {
		m := p.re.FindStringSubmatch(sentence)
		if m == nil {
			continue
		}
		cause := ""
		if p.causeIdx >= 0 && p.causeIdx < len(m) {
			cause = strings.TrimSpace(m[p.causeIdx])
		}
		effect := strings.TrimSpace(m[p.effectIdx])
		if effect == "" {
			continue
		}
		return CausalCandidate{
			CauseDescription:  cause,
			EffectDescription: effect,
			Confidence:        p.confidence,
		}, true
	}
	return CausalCandidate{}, false
}

// dedupFacts implements the intra-batch dedup rule: candidates keyed
// by subject:predicate:object, pattern beats inference on collision
// (spec.md §4.2).
func dedupFacts(facts []FactCandidate) []FactCandidate {
	best := make(map[string]FactCandidate, len(facts))
	order := make([]string, 0, len(facts))
	for _, f := range facts {
		key := f.Subject + ":" + f.Predicate + ":" + f.Object
		existing, ok := best[key]
		if !ok {
			best[key] = f
			order = append(order, key)
			continue
		}
		if existing.Source != SourcePattern && f.Source == SourcePattern {
			best[key] = f
		}
	}
	out := make([]FactCandidate, 0, len(order))
	for _, k := range order {
		out = append(out, best[k])
	}
	return out
}

// normalizePredicate snake-cases and collapses whitespace (spec.md §4.2).
func normalizePredicate(p string) string {
	p = strings.TrimSpace(strings.ToLower(p))
	p = whitespaceRun.ReplaceAllString(p, "_")
	return p
}

var whitespaceRun = regexp.MustCompile(`\s+`)

var leadingArticle = regexp.MustCompile(`(?i)^(a|an|the)\s+`)

// normalizeObject trims, strips a leading article and surrounding
// single quotes, lower-cases, and truncates to 200 chars (spec.md §4.2).
func normalizeObject(o string) string {
	o = strings.TrimSpace(o)
	o = strings.Trim(o, "'")
	o = leadingArticle.ReplaceAllString(o, "")
	o = strings.ToLower(strings.TrimSpace(o))
	if len(o) > 200 {
		o = o[:200]
	}
	return o
}

// computeConfidence implements spec.md §4.2's regex-path formula:
// start at 0.5, add up to 0.3 by source, +0.15 for singular
// predicates, +0.1·emotionalSalience, -0.2 if object < 3 chars.
func computeConfidence(f FactCandidate, emotionalSalience float32) float32 {
	// Pattern-sourced candidates already carry their own fixed
	// confidence from the pattern table; only inference/llm candidates
	// use the generic additive formula.
	if f.Source == SourcePattern {
		return adjustForSingularAndLength(f)
	}
	c := float32(0.5)
	switch f.Source {
	case SourceInference:
		c += inferenceConfidenceDelta
	case SourceLLM:
		c += 0.3
	}
	if domain.IsSingularPredicate(f.Predicate) {
		c += 0.15
	}
	c += 0.1 * emotionalSalience
	if len(f.Object) < 3 {
		c -= 0.2
	}
	return c
}

func adjustForSingularAndLength(f FactCandidate) float32 {
	c := f.Confidence
	if domain.IsSingularPredicate(f.Predicate) {
		c += 0.15
	}
	if len(f.Object) < 3 {
		c -= 0.2
	}
	return c
}

func clampConfidence(c float32) float32 {
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}

func stubSummary(text string) string {
	text = strings.TrimSpace(text)
	if len(text) > 160 {
		return text[:160] + "..."
	}
	return text
}

// --- LLM mode ---

type llmFactOut struct {
	Subject    string  `json:"subject"`
	Predicate  string  `json:"predicate"`
	Object     string  `json:"object"`
	Confidence float32 `json:"confidence"`
}

type llmCausalOut struct {
	Cause      string  `json:"cause"`
	Effect     string  `json:"effect"`
	Mechanism  string  `json:"mechanism"`
	Confidence float32 `json:"confidence"`
}

type llmFactsResponse struct {
	Facts       []llmFactOut   `json:"facts"`
	CausalLinks []llmCausalOut `json:"causal_links"`
}

type llmSummaryResponse struct {
	Summary           string   `json:"summary"`
	Topic             string   `json:"topic"`
	Keywords          []string `json:"keywords"`
	EmotionalSalience float32  `json:"emotional_salience"`
}

func (x *Extractor) extractLLM(ctx context.Context, sessionID string, messageIDs []string, text string) (Result, bool) {
	facts, causal, ok := x.extractFactsLLM(ctx, text)
	if !ok {
		return Result{}, false
	}
	episode := x.summarizeLLM(ctx, sessionID, messageIDs, text)

	for i := range facts {
		facts[i].Confidence = clampConfidence(facts[i].Confidence)
	}
	return Result{Episode: episode, Facts: facts, CausalLinks: causal}, true
}

func (x *Extractor) extractFactsLLM(ctx context.Context, text string) ([]FactCandidate, []CausalCandidate, bool) {
	prompt := llm.FactExtractionPrompt(text)

	// Rate-limit retry (up to 3x, exponential backoff) is handled by
	// retry.Do; a malformed JSON response gets exactly one further
	// completion attempt before falling back (spec.md §7).
	var raw string
	err := retry.Do(ctx, retry.Default(), func(ctx context.Context) error {
		out, err := x.llm.Complete(ctx, prompt, domain.CompletionOpts{Temperature: 0.2, JSONMode: true})
		if err != nil {
			return err
		}
		raw = out
		return nil
	})
	if err != nil {
		x.logger.Info("llm fact extraction unavailable, falling back", zap.Error(err))
		return nil, nil, false
	}

	var parsed llmFactsResponse
	if jsonErr := json.Unmarshal([]byte(raw), &parsed); jsonErr != nil {
		x.logger.Warn("llm fact extraction response unparseable, retrying once",
			zap.Error(jsonErr), zap.String("response_prefix", truncate(raw, 200)))

		out, err := x.llm.Complete(ctx, prompt, domain.CompletionOpts{Temperature: 0.2, JSONMode: true})
		if err != nil || json.Unmarshal([]byte(out), &parsed) != nil {
			x.logger.Warn("llm fact extraction unparseable after retry, falling back")
			return nil, nil, false
		}
	}

	facts := make([]FactCandidate, 0, len(parsed.Facts))
	for _, f := range parsed.Facts {
		facts = append(facts, FactCandidate{
			Subject:    strings.ToLower(strings.TrimSpace(f.Subject)),
			Predicate:  normalizePredicate(f.Predicate),
			Object:     normalizeObject(f.Object),
			Source:     SourceLLM,
			Confidence: f.Confidence,
		})
	}
	facts = dedupFacts(facts)

	causal := make([]CausalCandidate, 0, len(parsed.CausalLinks))
	for _, c := range parsed.CausalLinks {
		causal = append(causal, CausalCandidate{
			CauseDescription:  strings.TrimSpace(c.Cause),
			EffectDescription: strings.TrimSpace(c.Effect),
			Mechanism:         strings.TrimSpace(c.Mechanism),
			Confidence:        clampConfidence(c.Confidence),
		})
	}

	return facts, causal, true
}

func (x *Extractor) summarizeLLM(ctx context.Context, sessionID string, messageIDs []string, text string) domain.Episode {
	episode := domain.Episode{
		ID:               idgen.New("ep"),
		Timestamp:        time.Now().UTC(),
		SourceSessionID:  sessionID,
		SourceMessageIDs: messageIDs,
		TTL:              domain.TTL30Days,
	}

	prompt := llm.EpisodeSummaryPrompt(text)
	out, err := x.llm.Complete(ctx, prompt, domain.CompletionOpts{Temperature: 0.2, JSONMode: true})
	if err != nil {
		x.logger.Info("llm episode summary unavailable, using stub", zap.Error(err))
		episode.Summary = stubSummary(text)
		return episode
	}

	var parsed llmSummaryResponse
	if err := json.Unmarshal([]byte(out), &parsed); err != nil {
		x.logger.Warn("llm episode summary unparseable, using stub", zap.Error(err))
		episode.Summary = stubSummary(text)
		return episode
	}

	episode.Summary = parsed.Summary
	episode.Topic = parsed.Topic
	if len(parsed.Keywords) > 10 {
		parsed.Keywords = parsed.Keywords[:10]
	}
	episode.Keywords = parsed.Keywords
	episode.EmotionalSalience = clampConfidence(parsed.EmotionalSalience)
	return episode
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
