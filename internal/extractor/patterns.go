package extractor

import "regexp"

// factPattern is one entry of the ordered regex-mode fact pattern
// table (spec.md §6). subject is the literal subject (empty for the
// "my X is Y" entry, whose facts are attributed to "user"); objectIdx
// is the regexp submatch index holding the object.
type factPattern struct {
	re         *regexp.Regexp
	subject    string // literal subject when the pattern has no subject group
	predicate  string
	objectIdx  int
	confidence float32
}

// factPatterns is the ordered table from spec.md §6. Order matters:
// the first matching pattern for a sentence wins.
var factPatterns = []factPattern{
	{regexp.MustCompile(`(?i)\bmy name is ([a-z][a-z '\-]{1,60})`), "user", "has_name", 1, 0.95},
	{regexp.MustCompile(`(?i)\bi work (?:at|for) ([a-z0-9][a-z0-9 .,&'\-]{1,80})`), "user", "works_at", 1, 0.90},
	{regexp.MustCompile(`(?i)\bi live in ([a-z][a-z0-9 .,'\-]{1,80})`), "user", "lives_in", 1, 0.90},
	{regexp.MustCompile(`(?i)\bi speak ([a-z][a-z '\-]{1,40})`), "user", "speaks", 1, 0.85},
	{regexp.MustCompile(`(?i)\bi am an? ([a-z][a-z0-9 \-]{1,60})`), "user", "is_a", 1, 0.80},
	{regexp.MustCompile(`(?i)\bi (?:prefer|like|love) ([a-z0-9][a-z0-9 .,'\-]{1,80})`), "user", "prefers", 1, 0.75},
	{regexp.MustCompile(`(?i)\bmy ([a-z][a-z \-]{1,40}) is ([a-z0-9][a-z0-9 .,'\-]{1,80})`), "", "is", 2, 0.70},
}

// causalPattern is one entry of the ordered regex-mode causal pattern
// table (spec.md §6). causeIdx/effectIdx index into the submatch slice.
type causalPattern struct {
	re         *regexp.Regexp
	causeIdx   int
	effectIdx  int
	confidence float32
}

var causalPatterns = []causalPattern{
	{regexp.MustCompile(`(?i)^(.+?)\s+because\s+(.+)$`), 2, 1, 0.80},
	{regexp.MustCompile(`(?i)^(.+?)\s+caused\s+(.+)$`), 1, 2, 0.90},
	{regexp.MustCompile(`(?i)^due to\s+(.+?),\s*(.+)$`), 1, 2, 0.75},
	{regexp.MustCompile(`(?i)^(.+?)\s+led to\s+(.+)$`), 1, 2, 0.80},
	{regexp.MustCompile(`(?i)^after\s+(.+?),\s*(.+)$`), 1, 2, 0.50},
	{regexp.MustCompile(`(?i)^(.+?)\s+triggered\s+(.+)$`), 1, 2, 0.85},
	{regexp.MustCompile(`(?i)^that'?s why\s+(.+)$`), -1, 1, 0.70},
}

// inferenceKeyword maps a recognized technology term to the predicate
// it implies when mentioned in passing (spec.md §6: "inference-mode
// heuristics scan for language/framework/DB/model keywords").
var inferenceKeywords = map[string]string{
	"golang":     "uses",
	"go":         "uses",
	"python":     "uses",
	"typescript": "uses",
	"javascript": "uses",
	"rust":       "uses",
	"react":      "uses",
	"postgres":   "uses",
	"postgresql": "uses",
	"sqlite":     "uses",
	"redis":      "uses",
	"kafka":      "uses",
	"docker":     "uses",
	"kubernetes": "uses",
	"gpt-4":      "uses",
	"claude":     "uses",
}

// inferenceConfidenceDelta is the "+0.1 above the base" offset spec.md
// §6 specifies for inference-sourced candidates relative to the base
// confidence formula's starting point.
const inferenceConfidenceDelta = 0.1
