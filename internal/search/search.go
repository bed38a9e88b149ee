// Package search is the in-memory keyword index behind domain evidence
// lookup. Each document page is one searchable unit; queries are OR-combined
// word terms matched exactly, by prefix or within an edit distance, and pages
// are ranked with BM25.
package search

import (
	"math"
	"slices"
	"sort"
	"strings"
	"unicode"

	"github.com/ahrav/go-appraise/internal/document"
)

// Options tune term matching for one query.
type Options struct {
	// Fuzzy is the allowed edit distance as a fraction of the query term
	// length (0.2 allows one edit per five runes). Zero disables fuzzy matching.
	Fuzzy float64
	// Prefix lets a query term match longer indexed terms it starts.
	Prefix bool
}

// Result is one ranked page.
type Result struct {
	Text  string   `json:"text"`
	Page  int      `json:"page"`
	Score float64  `json:"score"`
	Terms []string `json:"terms"`
}

// Searcher answers ranked keyword queries.
type Searcher interface {
	Search(query string, opts Options) []Result
}

// Match weights relative to an exact hit.
const (
	prefixWeight = 0.375
	fuzzyWeight  = 0.45

	bm25K1 = 1.2
	bm25B  = 0.7
)

// Index is an immutable inverted index over pages. Safe for concurrent use.
type Index struct {
	pages     []document.Page
	lengths   []int
	avgLength float64
	postings  map[string]map[int]int // term -> page index -> frequency
	terms     []string               // sorted vocabulary for prefix scans
}

// NewIndex tokenizes and indexes the given pages.
func NewIndex(pages []document.Page) *Index {
	idx := &Index{
		pages:    slices.Clone(pages),
		lengths:  make([]int, len(pages)),
		postings: make(map[string]map[int]int),
	}

	total := 0
	for i, p := range pages {
		tokens := Tokenize(p.Text)
		idx.lengths[i] = len(tokens)
		total += len(tokens)
		for _, tok := range tokens {
			post, ok := idx.postings[tok]
			if !ok {
				post = make(map[int]int)
				idx.postings[tok] = post
			}
			post[i]++
		}
	}
	if len(pages) > 0 {
		idx.avgLength = float64(total) / float64(len(pages))
	}

	idx.terms = make([]string, 0, len(idx.postings))
	for term := range idx.postings {
		idx.terms = append(idx.terms, term)
	}
	sort.Strings(idx.terms)
	return idx
}

// Len returns the number of indexed pages.
func (x *Index) Len() int { return len(x.pages) }

// Search returns matching pages ordered by descending score, ties broken by
// page order.
func (x *Index) Search(query string, opts Options) []Result {
	if len(x.pages) == 0 {
		return nil
	}

	scores := make(map[int]float64)
	matched := make(map[int][]string)

	for _, qt := range dedupe(Tokenize(query)) {
		for term, weight := range x.expand(qt, opts) {
			post := x.postings[term]
			idf := x.idf(len(post))
			for page, tf := range post {
				scores[page] += weight * idf * x.saturate(tf, x.lengths[page])
				if !slices.Contains(matched[page], qt) {
					matched[page] = append(matched[page], qt)
				}
			}
		}
	}

	results := make([]Result, 0, len(scores))
	for i, s := range scores {
		results = append(results, Result{
			Text:  x.pages[i].Text,
			Page:  x.pages[i].Number,
			Score: s,
			Terms: matched[i],
		})
	}
	sort.SliceStable(results, func(a, b int) bool {
		if results[a].Score != results[b].Score {
			return results[a].Score > results[b].Score
		}
		return results[a].Page < results[b].Page
	})
	return results
}

// expand maps a query term to the indexed terms it matches, keeping the best
// weight per indexed term.
func (x *Index) expand(qt string, opts Options) map[string]float64 {
	out := make(map[string]float64)
	if _, ok := x.postings[qt]; ok {
		out[qt] = 1
	}

	if opts.Prefix {
		start := sort.SearchStrings(x.terms, qt)
		for _, term := range x.terms[start:] {
			if !strings.HasPrefix(term, qt) {
				break
			}
			if term == qt {
				continue
			}
			// Longer completions count for less.
			w := prefixWeight * float64(len(qt)) / float64(len(term))
			out[term] = max(out[term], w)
		}
	}

	if opts.Fuzzy > 0 {
		maxDist := int(math.Round(opts.Fuzzy * float64(len([]rune(qt)))))
		if maxDist > 0 {
			for _, term := range x.terms {
				if term == qt {
					continue
				}
				d, ok := levenshtein(qt, term, maxDist)
				if !ok {
					continue
				}
				w := fuzzyWeight * float64(len([]rune(qt))) / float64(len([]rune(qt))+d)
				out[term] = max(out[term], w)
			}
		}
	}
	return out
}

func (x *Index) idf(docFreq int) float64 {
	n := float64(len(x.pages))
	df := float64(docFreq)
	return math.Log(1 + (n-df+0.5)/(df+0.5))
}

func (x *Index) saturate(tf, length int) float64 {
	norm := 1.0
	if x.avgLength > 0 {
		norm = 1 - bm25B + bm25B*float64(length)/x.avgLength
	}
	f := float64(tf)
	return f * (bm25K1 + 1) / (f + bm25K1*norm)
}

// Tokenize lower-cases text and splits it into letter/digit words.
func Tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func dedupe(tokens []string) []string {
	seen := make(map[string]bool, len(tokens))
	out := tokens[:0]
	for _, t := range tokens {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}

// levenshtein returns the edit distance between a and b when it is at most
// limit. Rows are abandoned as soon as every cell exceeds the limit.
func levenshtein(a, b string, limit int) (int, bool) {
	ra, rb := []rune(a), []rune(b)
	if abs(len(ra)-len(rb)) > limit {
		return 0, false
	}

	prev := make([]int, len(rb)+1)
	cur := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		cur[0] = i
		rowMin := cur[0]
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			cur[j] = min(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
			rowMin = min(rowMin, cur[j])
		}
		if rowMin > limit {
			return 0, false
		}
		prev, cur = cur, prev
	}
	if prev[len(rb)] > limit {
		return 0, false
	}
	return prev[len(rb)], true
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
