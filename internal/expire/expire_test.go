package expire

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/histcore/internal/history"
	"github.com/roach88/histcore/internal/store"
)

var baseTime = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func at(minutes int) time.Time {
	return baseTime.Add(time.Duration(minutes) * time.Minute)
}

type pinSet map[string]bool

func (p pinSet) IsPinned(url string) bool { return p[url] }

type fixture struct {
	t     *testing.T
	store *store.Store
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return &fixture{t: t, store: s}
}

// visit stores one visit to url, creating the row if needed, and recomputes
// its aggregates.
func (f *fixture) visit(url string, when time.Time, typed bool) history.VisitID {
	f.t.Helper()
	ctx := context.Background()
	row, err := f.store.GetURLByString(ctx, url)
	if err != nil {
		id, err := f.store.InsertURL(ctx, history.URLRow{URL: url})
		require.NoError(f.t, err)
		row.ID = id
	}
	core := history.TransitionLink
	if typed {
		core = history.TransitionTyped
	}
	id, err := f.store.InsertVisit(ctx, history.VisitRow{
		URLID:       row.ID,
		VisitTime:   when,
		Transition:  core | history.QualifierChainStart | history.QualifierChainEnd,
		TypedCredit: typed,
	})
	require.NoError(f.t, err)
	_, err = f.store.RecomputeURL(ctx, row.ID)
	require.NoError(f.t, err)
	return id
}

func (f *fixture) row(url string) (history.URLRow, bool) {
	f.t.Helper()
	row, err := f.store.GetURLByString(context.Background(), url)
	if errors.Is(err, store.ErrNotFound) {
		return history.URLRow{}, false
	}
	require.NoError(f.t, err)
	return row, true
}

func TestExpireBetween_DeletesRangeAndRecomputes(t *testing.T) {
	f := newFixture(t)
	e := New(f.store)
	ctx := context.Background()

	f.visit("https://a.test/", at(1), true)
	f.visit("https://a.test/", at(5), false)
	f.visit("https://b.test/", at(2), false)

	res, err := e.ExpireBetween(ctx, nil, at(0), at(3))
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.DeletedVisits)
	assert.False(t, res.AllHistory)

	require.Len(t, res.DeletedRows, 1)
	assert.Equal(t, "https://b.test/", res.DeletedRows[0].URL)

	require.Len(t, res.ModifiedRows, 1)
	a := res.ModifiedRows[0]
	assert.Equal(t, "https://a.test/", a.URL)
	assert.Equal(t, 1, a.VisitCount)
	assert.Equal(t, 0, a.TypedCount)
	assert.Equal(t, at(5), a.LastVisit)

	_, ok := f.row("https://b.test/")
	assert.False(t, ok)

	first, err := f.store.FirstRecordedTime(ctx)
	require.NoError(t, err)
	assert.Equal(t, at(5), first)
}

func TestExpireBetween_Idempotent(t *testing.T) {
	f := newFixture(t)
	e := New(f.store)
	ctx := context.Background()

	f.visit("https://a.test/", at(1), false)
	f.visit("https://a.test/", at(10), false)

	first, err := e.ExpireBetween(ctx, nil, at(0), at(5))
	require.NoError(t, err)
	assert.True(t, first.Changed())

	second, err := e.ExpireBetween(ctx, nil, at(0), at(5))
	require.NoError(t, err)
	assert.False(t, second.Changed())
	assert.Zero(t, second.DeletedVisits)
}

func TestExpireBetween_RestrictedToURLs(t *testing.T) {
	f := newFixture(t)
	e := New(f.store)
	ctx := context.Background()

	f.visit("https://a.test/", at(1), false)
	f.visit("https://b.test/", at(1), false)

	res, err := e.ExpireBetween(ctx, []string{"https://a.test/", "https://unknown.test/"}, time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.DeletedVisits)
	assert.False(t, res.AllHistory)

	_, ok := f.row("https://b.test/")
	assert.True(t, ok)

	res, err = e.ExpireBetween(ctx, []string{"https://unknown.test/"}, time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.False(t, res.Changed(), "an unknown URL must not widen to all visits")
	_, ok = f.row("https://b.test/")
	assert.True(t, ok)
}

func TestExpireBetween_PinnedSurvives(t *testing.T) {
	f := newFixture(t)
	e := New(f.store, WithPinnedURLs(pinSet{"https://pinned.test/": true}))
	ctx := context.Background()

	f.visit("https://pinned.test/", at(1), true)

	res, err := e.ExpireBetween(ctx, nil, at(0), at(2))
	require.NoError(t, err)
	assert.Empty(t, res.DeletedRows)
	require.Len(t, res.ModifiedRows, 1)

	row, ok := f.row("https://pinned.test/")
	require.True(t, ok)
	assert.Zero(t, row.VisitCount)
	assert.Zero(t, row.TypedCount)
	assert.True(t, row.LastVisit.IsZero())
}

func TestExpireForTimes(t *testing.T) {
	f := newFixture(t)
	e := New(f.store)
	ctx := context.Background()

	f.visit("https://a.test/", at(1), false)
	f.visit("https://a.test/", at(2), false)
	f.visit("https://a.test/", at(3), false)

	res, err := e.ExpireForTimes(ctx, []time.Time{at(2), at(3), at(9)}, at(0), at(3))
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.DeletedVisits, "at(3) is outside [begin, end)")

	res, err = e.ExpireForTimes(ctx, []time.Time{at(20)}, at(0), time.Time{})
	require.NoError(t, err)
	assert.False(t, res.Changed())

	row, ok := f.row("https://a.test/")
	require.True(t, ok)
	assert.Equal(t, 2, row.VisitCount)
}

func TestExpireOlderThan(t *testing.T) {
	f := newFixture(t)
	e := New(f.store)
	ctx := context.Background()

	f.visit("https://old.test/", at(1), false)
	f.visit("https://new.test/", at(100), false)

	res, err := e.ExpireOlderThan(ctx, at(50))
	require.NoError(t, err)
	require.Len(t, res.DeletedRows, 1)
	assert.Equal(t, "https://old.test/", res.DeletedRows[0].URL)

	res, err = e.ExpireOlderThan(ctx, time.Time{})
	require.NoError(t, err)
	assert.False(t, res.Changed())
}

func TestDeleteAll(t *testing.T) {
	f := newFixture(t)
	e := New(f.store, WithPinnedURLs(pinSet{"https://pinned.test/": true}))
	ctx := context.Background()

	v := f.visit("https://a.test/", at(1), true)
	f.visit("https://pinned.test/", at(2), false)
	require.NoError(t, f.store.SetKeywordSearchTerm(ctx, history.KeywordSearchTerm{
		URLID: 1, KeywordID: 1, Term: "a", NormalizedTerm: "a",
	}))
	cid, err := f.store.InsertCluster(ctx, "c")
	require.NoError(t, err)
	require.NoError(t, f.store.InsertClusterVisit(ctx, cid, 0, store.ClusterVisitRow{VisitID: v}))

	res, err := e.ExpireBetween(ctx, nil, time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.True(t, res.AllHistory)
	assert.Equal(t, int64(2), res.DeletedVisits)
	require.Len(t, res.DeletedRows, 1)
	require.Len(t, res.ModifiedRows, 1)
	assert.Equal(t, "https://pinned.test/", res.ModifiedRows[0].URL)
	assert.Zero(t, res.ModifiedRows[0].VisitCount)

	terms, err := f.store.AllKeywordSearchTerms(ctx)
	require.NoError(t, err)
	assert.Empty(t, terms)

	_, err = f.store.GetClusterLabel(ctx, cid)
	assert.ErrorIs(t, err, store.ErrNotFound)

	again, err := e.DeleteAll(ctx)
	require.NoError(t, err)
	assert.True(t, again.AllHistory)
	assert.False(t, again.Changed())
}

func TestDeleteURLs(t *testing.T) {
	f := newFixture(t)
	e := New(f.store)
	ctx := context.Background()

	f.visit("https://a.test/", at(1), false)
	f.visit("https://a.test/", at(2), false)
	f.visit("https://b.test/", at(3), false)

	res, err := e.DeleteURLs(ctx, []string{"https://a.test/"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.DeletedVisits)
	require.Len(t, res.DeletedRows, 1)
	assert.Equal(t, "https://a.test/", res.DeletedRows[0].URL)

	first, err := f.store.FirstRecordedTime(ctx)
	require.NoError(t, err)
	assert.Equal(t, at(3), first)
}
