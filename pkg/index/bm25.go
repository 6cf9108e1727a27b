package index

import (
	"math"
	"regexp"
	"strings"
	"sync"
)

var tokenPattern = regexp.MustCompile(`[A-Za-z0-9_]+`)

// tokenize lowercases and splits on runs of identifier characters, and
// additionally splits camelCase/snake_case identifiers into sub-words so
// a query for "readFile" also matches a chunk that only contains
// "read_file" or "ReadFile".
func tokenize(text string) []string {
	var out []string
	for _, word := range tokenPattern.FindAllString(text, -1) {
		out = append(out, strings.ToLower(word))
		for _, sub := range splitIdentifier(word) {
			if sub != word {
				out = append(out, strings.ToLower(sub))
			}
		}
	}
	return out
}

func splitIdentifier(word string) []string {
	var parts []string
	var current strings.Builder
	runes := []rune(word)
	for i, r := range runes {
		if r == '_' {
			if current.Len() > 0 {
				parts = append(parts, current.String())
				current.Reset()
			}
			continue
		}
		if i > 0 && isUpper(r) && !isUpper(runes[i-1]) && current.Len() > 0 {
			parts = append(parts, current.String())
			current.Reset()
		}
		current.WriteRune(r)
	}
	if current.Len() > 0 {
		parts = append(parts, current.String())
	}
	return parts
}

func isUpper(r rune) bool { return r >= 'A' && r <= 'Z' }

// BM25Index is a hand-rolled Okapi BM25 keyword index over chunk IDs.
// chromem-go (the vector store) has no keyword-search mode of its own,
// so BM25 is implemented directly rather than pulled from a library —
// there is no corpus dependency that does this.
type BM25Index struct {
	mu sync.RWMutex

	k1 float64
	b  float64

	docs     map[string][]string // chunkID -> tokens
	docLen   map[string]int
	postings map[string]map[string]int // term -> chunkID -> term frequency
	avgLen   float64
	totalLen int
}

// NewBM25Index builds an index with the conventional k1=1.2, b=0.75.
func NewBM25Index() *BM25Index {
	return &BM25Index{
		k1:       1.2,
		b:        0.75,
		docs:     make(map[string][]string),
		docLen:   make(map[string]int),
		postings: make(map[string]map[string]int),
	}
}

// Add indexes a chunk's content under chunkID, replacing any prior entry.
func (idx *BM25Index) Add(chunkID, content string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.remove(chunkID)

	tokens := tokenize(content)
	idx.docs[chunkID] = tokens
	idx.docLen[chunkID] = len(tokens)
	idx.totalLen += len(tokens)

	counts := make(map[string]int)
	for _, t := range tokens {
		counts[t]++
	}
	for term, tf := range counts {
		if idx.postings[term] == nil {
			idx.postings[term] = make(map[string]int)
		}
		idx.postings[term][chunkID] = tf
	}
	idx.recomputeAvgLen()
}

// Remove deletes a chunk from the index.
func (idx *BM25Index) Remove(chunkID string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.remove(chunkID)
	idx.recomputeAvgLen()
}

func (idx *BM25Index) remove(chunkID string) {
	tokens, ok := idx.docs[chunkID]
	if !ok {
		return
	}
	idx.totalLen -= len(tokens)
	delete(idx.docs, chunkID)
	delete(idx.docLen, chunkID)
	for term, posting := range idx.postings {
		delete(posting, chunkID)
		if len(posting) == 0 {
			delete(idx.postings, term)
		}
	}
}

func (idx *BM25Index) recomputeAvgLen() {
	if len(idx.docs) == 0 {
		idx.avgLen = 0
		return
	}
	idx.avgLen = float64(idx.totalLen) / float64(len(idx.docs))
}

// Scored is one chunk's score against a query.
type Scored struct {
	ChunkID string
	Score   float64
}

// Search scores every chunk containing at least one query term and
// returns results sorted by descending BM25 score.
func (idx *BM25Index) Search(query string, limit int) []Scored {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	terms := uniqueTerms(tokenize(query))
	n := float64(len(idx.docs))
	if n == 0 || len(terms) == 0 {
		return nil
	}

	scores := make(map[string]float64)
	for _, term := range terms {
		posting := idx.postings[term]
		if len(posting) == 0 {
			continue
		}
		df := float64(len(posting))
		idf := math.Log(1 + (n-df+0.5)/(df+0.5))
		for chunkID, tf := range posting {
			dl := float64(idx.docLen[chunkID])
			denom := float64(tf) + idx.k1*(1-idx.b+idx.b*dl/idx.avgLen)
			scores[chunkID] += idf * (float64(tf) * (idx.k1 + 1) / denom)
		}
	}

	results := make([]Scored, 0, len(scores))
	for chunkID, score := range scores {
		results = append(results, Scored{ChunkID: chunkID, Score: score})
	}
	sortScoredDesc(results)
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results
}

func uniqueTerms(tokens []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, t := range tokens {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}

func sortScoredDesc(results []Scored) {
	for i := 1; i < len(results); i++ {
		key := results[i]
		j := i - 1
		for j >= 0 && results[j].Score < key.Score {
			results[j+1] = results[j]
			j--
		}
		results[j+1] = key
	}
}
