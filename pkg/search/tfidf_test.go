package search_test

import (
	"testing"

	"github.com/elsabot/elsabot/pkg/search"
)

func TestSearchRanksExactMatchFirst(t *testing.T) {
	e := search.NewTFIDF()
	e.LoadIndex([][]int{
		{1, 2, 3},    // 0
		{4, 5},       // 1
		{1, 2, 3, 4}, // 2
	})

	matches := e.Search([]int{4, 5}, 2)
	if len(matches) == 0 {
		t.Fatalf("no matches")
	}
	if matches[0].ID != 1 {
		t.Fatalf("top match = %d, want 1", matches[0].ID)
	}
}

func TestSearchEmptyQuery(t *testing.T) {
	e := search.NewTFIDF()
	e.LoadIndex([][]int{{1, 2}})

	if got := e.Search(nil, 1); got != nil {
		t.Fatalf("Search(nil) = %v, want nil", got)
	}
	if got := e.Search([]int{99}, 1); got != nil {
		t.Fatalf("Search(unknown term) = %v, want nil", got)
	}
}

func TestSearchEmptyIndex(t *testing.T) {
	e := search.NewTFIDF()
	e.LoadIndex(nil)
	if got := e.Search([]int{1}, 1); got != nil {
		t.Fatalf("Search on empty index = %v, want nil", got)
	}
}

func TestSearchDeterministicTieBreak(t *testing.T) {
	e := search.NewTFIDF()
	// Two identical documents tie exactly; the lower ID must win.
	e.LoadIndex([][]int{
		{7, 8},
		{7, 8},
	})
	for i := 0; i < 5; i++ {
		matches := e.Search([]int{7, 8}, 2)
		if len(matches) != 2 {
			t.Fatalf("got %d matches, want 2", len(matches))
		}
		if matches[0].ID != 0 || matches[1].ID != 1 {
			t.Fatalf("tie-break order = %d, %d", matches[0].ID, matches[1].ID)
		}
	}
}

func TestSearchTopN(t *testing.T) {
	e := search.NewTFIDF()
	e.LoadIndex([][]int{
		{1}, {1}, {1}, {1},
	})
	matches := e.Search([]int{1}, 2)
	if len(matches) != 2 {
		t.Fatalf("topN not honored: got %d matches", len(matches))
	}
}

func TestSearchScoresOrdered(t *testing.T) {
	e := search.NewTFIDF()
	e.LoadIndex([][]int{
		{1, 2, 3, 4, 5, 6},
		{1, 2},
	})
	matches := e.Search([]int{1, 2}, 2)
	if len(matches) != 2 {
		t.Fatalf("got %d matches, want 2", len(matches))
	}
	if matches[0].Score < matches[1].Score {
		t.Fatalf("scores out of order: %f < %f", matches[0].Score, matches[1].Score)
	}
	// The short document is a closer cosine match to the short query.
	if matches[0].ID != 1 {
		t.Fatalf("top match = %d, want 1", matches[0].ID)
	}
}
