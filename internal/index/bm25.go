// Package index holds the three in-memory indexes the retrieval layer
// queries (spec.md §4.4): BM25 keyword search, brute-force cosine
// vector search, and an entity mention index, plus the online topic
// clustering upkeep that feeds domain.MemoryCluster. None of these
// existed in the teacher, which relied on pgvector/Postgres for
// similarity search; they are new domain logic grounded directly on
// spec.md §4.4, with the brute-force scan shape borrowed from
// liliang-cn-sqvect's in-memory store.
package index

import (
	"math"
	"regexp"
	"sort"
	"strings"
	"sync"
)

const (
	bm25K1 = 1.2
	bm25B  = 0.75
)

var (
	tokenPunct     = regexp.MustCompile(`[^\w\s]+`)
	tokenWhitespace = regexp.MustCompile(`\s+`)
)

// Tokenize normalizes text into a BM25 token stream: lower-cased,
// punctuation stripped, whitespace collapsed (spec.md §4.4).
func Tokenize(text string) []string {
	text = strings.ToLower(text)
	text = tokenPunct.ReplaceAllString(text, " ")
	text = tokenWhitespace.ReplaceAllString(text, " ")
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	return strings.Split(text, " ")
}

// doc is one indexed record's token statistics.
type doc struct {
	recordType string
	termFreq   map[string]int
	length     int
}

// BM25Index is an incremental, in-memory BM25 keyword index over
// heterogeneous record types (facts, episodes, procedures, ...).
// Safe for concurrent use.
type BM25Index struct {
	mu         sync.RWMutex
	docs       map[string]*doc
	docFreq    map[string]int // term -> number of docs containing it
	totalLen   int
}

func NewBM25Index() *BM25Index {
	return &BM25Index{
		docs:    make(map[string]*doc),
		docFreq: make(map[string]int),
	}
}

// Add indexes (or reindexes) id with the given record type and text.
func (b *BM25Index) Add(id, recordType, text string) {
	tokens := Tokenize(text)

	b.mu.Lock()
	defer b.mu.Unlock()

	if existing, ok := b.docs[id]; ok {
		b.removeLocked(id, existing)
	}

	tf := make(map[string]int, len(tokens))
	for _, t := range tokens {
		tf[t]++
	}
	for t := range tf {
		b.docFreq[t]++
	}
	d := &doc{recordType: recordType, termFreq: tf, length: len(tokens)}
	b.docs[id] = d
	b.totalLen += d.length
}

// Remove drops id from the index.
func (b *BM25Index) Remove(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if d, ok := b.docs[id]; ok {
		b.removeLocked(id, d)
	}
}

func (b *BM25Index) removeLocked(id string, d *doc) {
	for t := range d.termFreq {
		b.docFreq[t]--
		if b.docFreq[t] <= 0 {
			delete(b.docFreq, t)
		}
	}
	b.totalLen -= d.length
	delete(b.docs, id)
}

// Scored is one (id, score) search result.
type Scored struct {
	ID    string
	Score float64
}

// Search runs BM25 scoring over query, optionally filtering to
// recordTypes (nil/empty means all types), returning the topN results
// sorted by descending score.
func (b *BM25Index) Search(query string, recordTypes []string, topN int) []Scored {
	terms := Tokenize(query)
	if len(terms) == 0 {
		return nil
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	n := len(b.docs)
	if n == 0 {
		return nil
	}
	avgLen := float64(b.totalLen) / float64(n)

	var typeSet map[string]bool
	if len(recordTypes) > 0 {
		typeSet = make(map[string]bool, len(recordTypes))
		for _, t := range recordTypes {
			typeSet[t] = true
		}
	}

	var results []Scored
	for id, d := range b.docs {
		if typeSet != nil && !typeSet[d.recordType] {
			continue
		}
		score := b.scoreLocked(d, terms, n, avgLen)
		if score > 0 {
			results = append(results, Scored{ID: id, Score: score})
		}
	}

	sortScoredDesc(results)
	if topN > 0 && len(results) > topN {
		results = results[:topN]
	}
	return results
}

func (b *BM25Index) scoreLocked(d *doc, terms []string, n int, avgLen float64) float64 {
	var score float64
	for _, term := range terms {
		tf, ok := d.termFreq[term]
		if !ok {
			continue
		}
		df := b.docFreq[term]
		if df == 0 {
			continue
		}
		idf := idf(n, df)
		numerator := float64(tf) * (bm25K1 + 1)
		denominator := float64(tf) + bm25K1*(1-bm25B+bm25B*float64(d.length)/avgLen)
		score += idf * numerator / denominator
	}
	return score
}

// idf is the standard BM25+ (Robertson/Sparck-Jones) inverse document
// frequency, floored at 0; the +1 inside the log keeps a term present in
// every document positive instead of negative.
func idf(n, df int) float64 {
	v := math.Log((float64(n)-float64(df)+0.5)/(float64(df)+0.5) + 1)
	if v < 0 {
		return 0
	}
	return v
}

func sortScoredDesc(s []Scored) {
	sort.Slice(s, func(i, j int) bool { return s[i].Score > s[j].Score })
}
