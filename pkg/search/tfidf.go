package search

import (
	"math"
	"sort"
)

// TFIDF is an inverted-index Engine with cosine scoring over TF-IDF
// weighted term vectors. IDF uses the smoothed form
// log((N+1)/(df+1)) + 1 so terms present in every document still carry
// a small weight.
//
// LoadIndex must complete before Search; after that the engine is
// read-only and safe for concurrent Search calls.
type TFIDF struct {
	postings map[int][]posting // term -> documents containing it
	idf      map[int]float64
	norms    []float64 // per-document vector norm
	numDocs  int
}

type posting struct {
	doc int
	tf  float64
}

var _ Engine = (*TFIDF)(nil)

// NewTFIDF creates an empty engine.
func NewTFIDF() *TFIDF {
	return &TFIDF{
		postings: make(map[int][]posting),
		idf:      make(map[int]float64),
	}
}

func (t *TFIDF) LoadIndex(docs [][]int) {
	t.postings = make(map[int][]posting)
	t.idf = make(map[int]float64)
	t.numDocs = len(docs)
	t.norms = make([]float64, len(docs))

	df := make(map[int]int)
	counts := make([]map[int]int, len(docs))
	for i, doc := range docs {
		tf := make(map[int]int)
		for _, term := range doc {
			tf[term]++
		}
		counts[i] = tf
		for term := range tf {
			df[term]++
		}
	}

	for term, n := range df {
		t.idf[term] = math.Log(float64(t.numDocs+1)/float64(n+1)) + 1
	}

	for i, tf := range counts {
		var norm float64
		for term, n := range tf {
			w := float64(n) * t.idf[term]
			norm += w * w
			t.postings[term] = append(t.postings[term], posting{doc: i, tf: float64(n)})
		}
		t.norms[i] = math.Sqrt(norm)
	}

	// Postings sorted by doc ID keep accumulation order deterministic.
	for term := range t.postings {
		p := t.postings[term]
		sort.Slice(p, func(a, b int) bool { return p[a].doc < p[b].doc })
	}
}

func (t *TFIDF) Search(query []int, topN int) []Match {
	if len(query) == 0 || t.numDocs == 0 || topN <= 0 {
		return nil
	}

	qtf := make(map[int]int)
	for _, term := range query {
		qtf[term]++
	}

	var qnorm float64
	scores := make(map[int]float64)
	for term, n := range qtf {
		idf, ok := t.idf[term]
		if !ok {
			continue
		}
		qw := float64(n) * idf
		qnorm += qw * qw
		for _, p := range t.postings[term] {
			scores[p.doc] += qw * p.tf * idf
		}
	}
	if len(scores) == 0 {
		return nil
	}
	qnorm = math.Sqrt(qnorm)

	matches := make([]Match, 0, len(scores))
	for doc, s := range scores {
		denom := qnorm * t.norms[doc]
		if denom == 0 {
			continue
		}
		matches = append(matches, Match{ID: doc, Score: s / denom})
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].ID < matches[j].ID
	})
	if len(matches) > topN {
		matches = matches[:topN]
	}
	return matches
}
