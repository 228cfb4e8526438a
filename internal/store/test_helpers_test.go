package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/histcore/internal/history"
)

// createTestStore creates a new store in a temp directory for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// baseTime is a fixed, microsecond-aligned reference time.
var baseTime = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func at(minutes int) time.Time {
	return baseTime.Add(time.Duration(minutes) * time.Minute)
}

// mustInsertURL stores a URL row with zero aggregates.
func mustInsertURL(t *testing.T, s *Store, url string) history.URLID {
	t.Helper()
	id, err := s.InsertURL(context.Background(), history.URLRow{URL: url})
	if err != nil {
		t.Fatalf("InsertURL(%q) failed: %v", url, err)
	}
	return id
}

// mustInsertVisit stores a browsed chain-start/chain-end visit.
func mustInsertVisit(t *testing.T, s *Store, urlID history.URLID, when time.Time, core history.Transition, typed bool) history.VisitID {
	t.Helper()
	id, err := s.InsertVisit(context.Background(), history.VisitRow{
		URLID:       urlID,
		VisitTime:   when,
		Transition:  core | history.QualifierChainStart | history.QualifierChainEnd,
		Source:      history.SourceBrowsed,
		TypedCredit: typed,
	})
	if err != nil {
		t.Fatalf("InsertVisit() failed: %v", err)
	}
	return id
}
