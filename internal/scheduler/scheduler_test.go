package scheduler

import (
	"testing"
	"time"
)

func TestOverlapTracker_FirstClaimWins(t *testing.T) {
	tr := NewOverlapTracker()
	boundary := time.Date(2026, 1, 1, 0, 15, 0, 0, time.UTC)

	if !tr.Claim(boundary, "15m") {
		t.Fatal("expected the first claim on a boundary to succeed")
	}
	if tr.Claim(boundary, "5m") {
		t.Fatal("expected a second claim on the same boundary to be rejected")
	}
}

func TestOverlapTracker_DistinctBoundariesIndependent(t *testing.T) {
	tr := NewOverlapTracker()
	b1 := time.Date(2026, 1, 1, 0, 15, 0, 0, time.UTC)
	b2 := time.Date(2026, 1, 1, 0, 30, 0, 0, time.UTC)

	if !tr.Claim(b1, "15m") {
		t.Fatal("expected claim on b1 to succeed")
	}
	if !tr.Claim(b2, "5m") {
		t.Fatal("expected claim on a distinct boundary to succeed independently")
	}
}

func TestNextBoundary_AlwaysStrictlyAfterNow(t *testing.T) {
	cases := []time.Time{
		time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),     // exactly on a boundary
		time.Date(2026, 1, 1, 0, 14, 59, 0, time.UTC),   // just before
		time.Date(2026, 1, 1, 0, 15, 0, 1, time.UTC),    // just after
	}
	tf := 15 * time.Minute
	for _, now := range cases {
		next := nextBoundary(now, tf)
		if !next.After(now) {
			t.Fatalf("nextBoundary(%s) = %s, expected strictly after now", now, next)
		}
		if next.Truncate(tf) != next {
			t.Fatalf("nextBoundary(%s) = %s, expected to land exactly on a %s boundary", now, next, tf)
		}
	}
}
