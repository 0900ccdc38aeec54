package tasks

import (
	"testing"
	"time"

	"github.com/iiab/tubeshelf/internal/catalog"
)

func TestRankCandidatesStableDescendingWithCap(t *testing.T) {
	input := []catalog.Candidate{
		{Path: "a", ViewsPerDay: 5},
		{Path: "b", ViewsPerDay: 20},
		{Path: "c", ViewsPerDay: 1},
		{Path: "d", ViewsPerDay: 20},
	}

	got := rankCandidates(input, 2)
	if len(got) != 2 {
		t.Fatalf("expected cap of 2, got %d", len(got))
	}
	// Equal rates keep catalog order: b before d.
	if got[0].Path != "b" || got[1].Path != "d" {
		t.Fatalf("unexpected order %q, %q", got[0].Path, got[1].Path)
	}
	// Input is untouched.
	if input[0].Path != "a" || input[3].Path != "d" {
		t.Fatalf("input mutated: %+v", input)
	}
}

func TestRankCandidatesNoCap(t *testing.T) {
	input := []catalog.Candidate{
		{Path: "a", ViewsPerDay: 1},
		{Path: "b", ViewsPerDay: 3},
	}
	got := rankCandidates(input, 0)
	if len(got) != 2 || got[0].Path != "b" {
		t.Fatalf("unexpected result %+v", got)
	}
}

func TestViewsPerDay(t *testing.T) {
	now := time.Unix(1700000000, 0)

	tenDaysAgo := now.Add(-10 * 24 * time.Hour).Unix()
	if got := viewsPerDay(1000, tenDaysAgo, now); got != 100 {
		t.Fatalf("expected 100 views/day, got %f", got)
	}

	// Fresh uploads divide by one day, not zero.
	if got := viewsPerDay(500, now.Unix(), now); got != 500 {
		t.Fatalf("expected floor of one day, got %f", got)
	}
}
