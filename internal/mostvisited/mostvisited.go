// Package mostvisited compares most-visited rankings and tracks the last
// one a consumer has seen.
package mostvisited

import (
	"context"
	"sync"

	"github.com/roach88/histcore/internal/history"
)

// Ranked is a URL at a position in a ranking.
type Ranked struct {
	URL  history.MostVisitedURL
	Rank int
}

// Delta is the difference between two rankings. Added and Moved carry the
// rank in the new ranking; Deleted carries the old rank.
type Delta struct {
	Added   []Ranked
	Deleted []Ranked
	Moved   []Ranked
}

// Empty reports whether the rankings were identical by URL and position.
func (d Delta) Empty() bool {
	return len(d.Added) == 0 && len(d.Deleted) == 0 && len(d.Moved) == 0
}

// Diff computes the changes that turn old into next. Entries are matched by
// URL; title and count changes alone are not reported.
func Diff(old, next []history.MostVisitedURL) Delta {
	oldRank := make(map[string]int, len(old))
	for i, u := range old {
		oldRank[u.URL] = i
	}

	var d Delta
	seen := make(map[string]bool, len(next))
	for i, u := range next {
		seen[u.URL] = true
		prev, ok := oldRank[u.URL]
		switch {
		case !ok:
			d.Added = append(d.Added, Ranked{URL: u, Rank: i})
		case prev != i:
			d.Moved = append(d.Moved, Ranked{URL: u, Rank: i})
		}
	}
	for i, u := range old {
		if !seen[u.URL] {
			d.Deleted = append(d.Deleted, Ranked{URL: u, Rank: i})
		}
	}
	return d
}

// Source produces rankings.
type Source interface {
	QueryMostVisited(ctx context.Context, count, daysBack int) ([]history.MostVisitedURL, error)
}

// Tracker remembers the last ranking it fetched and reports what changed
// on each refresh.
type Tracker struct {
	src      Source
	count    int
	daysBack int

	mu   sync.Mutex
	last []history.MostVisitedURL
}

// NewTracker returns a tracker for the top count URLs of the last daysBack
// days.
func NewTracker(src Source, count, daysBack int) *Tracker {
	return &Tracker{src: src, count: count, daysBack: daysBack}
}

// Refresh fetches a new ranking and returns its difference to the previous
// one. The first refresh reports every entry as added.
func (t *Tracker) Refresh(ctx context.Context) (Delta, error) {
	next, err := t.src.QueryMostVisited(ctx, t.count, t.daysBack)
	if err != nil {
		return Delta{}, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	d := Diff(t.last, next)
	t.last = next
	return d, nil
}

// Current returns a copy of the last ranking.
func (t *Tracker) Current() []history.MostVisitedURL {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]history.MostVisitedURL(nil), t.last...)
}
