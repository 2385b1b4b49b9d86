package llm

import "fmt"

// Prompt templates for the JSON-mode extraction and consolidation
// stages. Every prompt instructs the model to return a single JSON
// object or array and nothing else; callers pass opts.JSONMode=true.

// FactExtractionPrompt asks the model to pull subject/predicate/object
// facts and causal statements out of a conversation turn.
func FactExtractionPrompt(text string) string {
	return fmt.Sprintf(`Extract durable facts and cause-effect statements from the text below.

Return JSON of the shape:
{
  "facts": [{"subject": "...", "predicate": "...", "object": "...", "confidence": 0.0}],
  "causal_links": [{"cause": "...", "effect": "...", "mechanism": "...", "confidence": 0.0}]
}

Only include statements the speaker asserts as true about themselves or
their world, not hypotheticals or questions. confidence is between 0 and 1.

Text:
%s`, text)
}

// EpisodeSummaryPrompt asks the model to produce a one or two sentence
// summary plus topic and keywords for a conversation turn.
func EpisodeSummaryPrompt(text string) string {
	return fmt.Sprintf(`Summarize the text below for long-term memory storage.

Return JSON of the shape:
{"summary": "...", "topic": "...", "keywords": ["...", "..."], "emotional_salience": 0.0}

summary is one or two sentences. emotional_salience is between 0 (neutral)
and 1 (highly charged).

Text:
%s`, text)
}

// SynthesisMergePrompt asks the model to decide whether two candidate
// facts describe the same underlying claim and, if so, how to merge
// them.
func SynthesisMergePrompt(a, b string) string {
	return fmt.Sprintf(`Do these two facts describe the same underlying claim?

Fact A: %s
Fact B: %s

Return JSON: {"same_claim": true/false, "merged_object": "...", "reason": "..."}
merged_object is the most complete/specific phrasing, populated only when
same_claim is true.`, a, b)
}

// FactConsolidationPrompt asks the model to decide what, if anything,
// should happen to a pair of similar stored facts during a
// consolidation run: merge, strengthen the stronger one, retract the
// weaker one, or leave both alone.
func FactConsolidationPrompt(a, b string) string {
	return fmt.Sprintf(`Two stored facts look related. Decide what action consolidation
should take.

Fact A: %s
Fact B: %s

Return JSON: {"action": "merge|strengthen|retract|none", "merged_object": "...",
"retract_target": "a|b", "reason": "..."}
merged_object is populated only when action is "merge". retract_target is
populated only when action is "retract" and names which fact to remove.`, a, b)
}

// PatternDiscoveryPrompt asks the model to find recurring patterns
// across a batch of facts and episodes during consolidation.
func PatternDiscoveryPrompt(items string) string {
	return fmt.Sprintf(`Identify recurring patterns, themes, or procedures across the
memory items below. Each line is one item.

Return JSON: {"patterns": [{"theme": "...", "supporting_ids": ["..."], "summary": "..."}]}

Items:
%s`, items)
}

// IntentPlanningPrompt asks the model to turn a user query into a
// structured retrieval plan.
func IntentPlanningPrompt(query string) string {
	return fmt.Sprintf(`Plan a memory retrieval for the query below.

Return JSON: {"semantic_queries": ["..."], "keyword_queries": ["..."], "metadata_filters": {},
"retrieval_depth": "shallow|deep", "intent_type": "...", "intent_confidence": 0.0, "entities": ["..."]}

Query:
%s`, query)
}

// ConnectionDiscoveryPrompt asks the model to propose new causal links
// between facts/episodes that were not explicitly stated but are
// plausible given the evidence.
func ConnectionDiscoveryPrompt(items string) string {
	return fmt.Sprintf(`Given the memory items below, propose plausible cause-effect
connections that are not already recorded. Be conservative: only propose
a connection when the evidence clearly supports it.

Return JSON: {"connections": [{"cause_id": "...", "effect_id": "...", "mechanism": "...", "confidence": 0.0}]}

Items:
%s`, items)
}
