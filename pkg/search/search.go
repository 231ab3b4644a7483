// Package search provides lexical nearest-template lookup over token-ID
// documents.
//
// The [Engine] interface is the contract the dialog core consumes: an
// offline LoadIndex over the full document set, then Search calls
// returning ranked matches. The built-in [TFIDF] implementation scores
// by cosine similarity of TF-IDF weighted term vectors with a
// deterministic tie-break (ascending document ID), so rankings are
// reproducible across runs.
package search

// Match is a single ranked search result.
type Match struct {
	// ID is the document (template) index given to LoadIndex.
	ID int

	// Score is the relevance score; higher is better.
	Score float64
}

// Engine indexes token-ID documents and answers ranked queries.
type Engine interface {
	// LoadIndex builds the search structure over the document set.
	// Document i is addressed as ID i in later Search results. Must be
	// called once, before any Search.
	LoadIndex(docs [][]int)

	// Search returns up to topN documents ranked by relevance to the
	// query. An empty query or an empty index yields no matches.
	Search(query []int, topN int) []Match
}
