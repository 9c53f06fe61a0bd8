package search

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
)

const (
	weightTitle = 3.0
	weightTags  = 2.0
	weightBody  = 1.0

	prefixFactor   = 0.5
	minPrefixRunes = 3
)

// MemoryIndex is an inverted index held in process memory. Postings map a
// term to the weighted frequency of that term in each document.
type MemoryIndex struct {
	mu       sync.RWMutex
	docs     map[string]Document
	postings map[string]map[string]float64 // term -> doc key -> weight
	terms    map[string][]string           // doc key -> terms, for removal
}

func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{
		docs:     make(map[string]Document),
		postings: make(map[string]map[string]float64),
		terms:    make(map[string][]string),
	}
}

func (m *MemoryIndex) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.docs)
}

func docWeights(d Document) map[string]float64 {
	w := map[string]float64{}
	for _, t := range Tokenize(d.Title) {
		w[t] += weightTitle
	}
	for _, tag := range d.Tags {
		for _, t := range Tokenize(tag) {
			w[t] += weightTags
		}
	}
	for _, t := range Tokenize(d.Body) {
		w[t] += weightBody
	}
	return w
}

// Index adds or replaces doc.
func (m *MemoryIndex) Index(_ context.Context, d Document) error {
	key := d.Key()
	weights := docWeights(d)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.removeLocked(key)
	m.docs[key] = d
	terms := make([]string, 0, len(weights))
	for t, w := range weights {
		p, ok := m.postings[t]
		if !ok {
			p = make(map[string]float64)
			m.postings[t] = p
		}
		p[key] = w
		terms = append(terms, t)
	}
	m.terms[key] = terms
	return nil
}

func (m *MemoryIndex) Delete(_ context.Context, docType DocType, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removeLocked(string(docType) + ":" + id)
	return nil
}

func (m *MemoryIndex) removeLocked(key string) {
	for _, t := range m.terms[key] {
		if p, ok := m.postings[t]; ok {
			delete(p, key)
			if len(p) == 0 {
				delete(m.postings, t)
			}
		}
	}
	delete(m.terms, key)
	delete(m.docs, key)
}

type termMatch struct {
	term   string
	factor float64
}

// expandLocked returns the vocabulary terms a query term matches: itself when
// indexed, otherwise terms within the edit budget, plus prefix extensions.
func (m *MemoryIndex) expandLocked(q string) []termMatch {
	var out []termMatch
	_, exact := m.postings[q]
	if exact {
		out = append(out, termMatch{term: q, factor: 1})
	}
	budget := maxEdits(q)
	qLen := utf8.RuneCountInString(q)
	for t := range m.postings {
		if t == q {
			continue
		}
		if qLen >= minPrefixRunes && strings.HasPrefix(t, q) {
			out = append(out, termMatch{term: t, factor: prefixFactor})
			continue
		}
		if exact {
			continue
		}
		tLen := utf8.RuneCountInString(t)
		if abs(tLen-qLen) > budget {
			continue
		}
		if d := levenshtein.ComputeDistance(q, t); d <= budget {
			out = append(out, termMatch{term: t, factor: 1 / float64(1+d)})
		}
	}
	return out
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func (m *MemoryIndex) idfLocked(term string) float64 {
	df := len(m.postings[term])
	if df == 0 {
		return 0
	}
	return math.Log(1 + float64(len(m.docs))/float64(df))
}

func (m *MemoryIndex) Search(_ context.Context, q Query) (Result, error) {
	q = q.Normalize()
	qterms := Tokenize(q.Text)
	if len(qterms) == 0 {
		return Result{Hits: []Hit{}}, nil
	}
	types := map[DocType]bool{}
	for _, t := range q.Types {
		types[t] = true
	}

	m.mu.RLock()
	scores := map[string]float64{}
	matched := map[string]map[string]struct{}{}
	for _, qt := range qterms {
		for _, tm := range m.expandLocked(qt) {
			idf := m.idfLocked(tm.term)
			for key, w := range m.postings[tm.term] {
				scores[key] += w * idf * tm.factor
				if matched[key] == nil {
					matched[key] = map[string]struct{}{}
				}
				matched[key][tm.term] = struct{}{}
			}
		}
	}
	hits := make([]Hit, 0, len(scores))
	for key, s := range scores {
		d := m.docs[key]
		if len(types) > 0 && !types[d.Type] {
			continue
		}
		if q.City != "" && !strings.EqualFold(d.City, q.City) {
			continue
		}
		terms := make([]string, 0, len(matched[key]))
		for t := range matched[key] {
			terms = append(terms, t)
		}
		sort.Strings(terms)
		hits = append(hits, Hit{Document: d, Score: s, Matched: terms})
	}
	m.mu.RUnlock()

	sort.Slice(hits, func(i, j int) bool {
		a, b := hits[i], hits[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if !a.Document.CreatedAt.Equal(b.Document.CreatedAt) {
			return a.Document.CreatedAt.After(b.Document.CreatedAt)
		}
		return a.Document.Key() < b.Document.Key()
	})

	res := Result{Total: len(hits), Hits: []Hit{}}
	if q.Offset < len(hits) {
		end := q.Offset + q.Limit
		if end > len(hits) {
			end = len(hits)
		}
		res.Hits = hits[q.Offset:end]
	}
	return res, nil
}

// Suggest returns indexed terms starting with prefix, most frequent first.
func (m *MemoryIndex) Suggest(prefix string, limit int) []string {
	prefix = strings.ToLower(strings.TrimSpace(prefix))
	if prefix == "" {
		return []string{}
	}
	switch {
	case limit <= 0:
		limit = 10
	case limit > 20:
		limit = 20
	}
	type cand struct {
		term string
		df   int
	}
	m.mu.RLock()
	var cands []cand
	for t, p := range m.postings {
		if strings.HasPrefix(t, prefix) {
			cands = append(cands, cand{term: t, df: len(p)})
		}
	}
	m.mu.RUnlock()

	sort.Slice(cands, func(i, j int) bool {
		if cands[i].df != cands[j].df {
			return cands[i].df > cands[j].df
		}
		return cands[i].term < cands[j].term
	})
	out := make([]string, 0, limit)
	for i := 0; i < len(cands) && i < limit; i++ {
		out = append(out, cands[i].term)
	}
	return out
}

var _ Searcher = (*MemoryIndex)(nil)
