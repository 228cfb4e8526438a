package cluster

import (
	"context"
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

func newTestManager(t *testing.T) (*Manager, *store.Store) {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return New(s, nil), s
}

func addVisit(t *testing.T, s *store.Store, url string, when time.Time) history.VisitID {
	t.Helper()
	ctx := context.Background()
	urlID, err := s.InsertURL(ctx, history.URLRow{URL: url})
	require.NoError(t, err)
	id, err := s.InsertVisit(ctx, history.VisitRow{
		URLID:      urlID,
		VisitTime:  when,
		Transition: history.TransitionLink | history.QualifierChainStart | history.QualifierChainEnd,
	})
	require.NoError(t, err)
	return id
}

func clusterOf(label string, visits ...history.VisitID) history.Cluster {
	c := history.Cluster{Label: label}
	for i, id := range visits {
		c.Visits = append(c.Visits, history.ClusterVisit{
			Visit: history.AnnotatedVisit{Visit: history.VisitRow{ID: id}},
			Score: float64(len(visits) - i),
		})
	}
	return c
}

func TestReplaceClusters_RoundTrip(t *testing.T) {
	m, s := newTestManager(t)
	ctx := context.Background()
	v1 := addVisit(t, s, "https://a.test/", at(1))
	v2 := addVisit(t, s, "https://b.test/", at(2))

	in := clusterOf("Shopping", v1, v2)
	in.Visits[0].DisplayURL = "a.test"
	in.Visits[1].DuplicateVisitIDs = []history.VisitID{v1}
	in.Keywords = map[string]history.ClusterKeywordData{
		"shoes": {Type: history.KeywordTypeSearchTerms, Score: 2, EntityCollections: []string{"fashion", "retail"}},
	}

	ids, err := m.ReplaceClusters(ctx, nil, []history.Cluster{in})
	require.NoError(t, err)
	require.Len(t, ids, 1)

	got, err := m.MostRecentClusters(ctx, at(0), at(10), 10, true)
	require.NoError(t, err)
	require.Len(t, got, 1)

	c := got[0]
	assert.Equal(t, ids[0], c.ID)
	assert.Equal(t, "Shopping", c.Label)
	assert.Equal(t, []history.VisitID{v1, v2}, c.VisitIDs())
	assert.Equal(t, "a.test", c.Visits[0].DisplayURL)
	assert.Equal(t, 2.0, c.Visits[0].Score)
	assert.Equal(t, []history.VisitID{v1}, c.Visits[1].DuplicateVisitIDs)
	assert.Equal(t, "https://a.test/", c.Visits[0].Visit.URL.URL)
	assert.Equal(t, map[string]history.ClusterKeywordData{
		"shoes": {Type: history.KeywordTypeSearchTerms, Score: 2, EntityCollections: []string{"fashion"}},
	}, c.Keywords, "only one entity collection is kept")
}

func TestReplaceClusters_DropsEmptyAndUnknownVisits(t *testing.T) {
	m, s := newTestManager(t)
	ctx := context.Background()
	v := addVisit(t, s, "https://a.test/", at(1))

	ids, err := m.ReplaceClusters(ctx, nil, []history.Cluster{
		clusterOf("gone", 999),
		clusterOf("kept", v, 998, v),
	})
	require.NoError(t, err)
	require.Len(t, ids, 1, "the cluster with no valid visit gets no id")

	c, ok, err := m.GetCluster(ctx, ids[0], false)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []history.VisitID{v}, c.VisitIDs())
	assert.Nil(t, c.Keywords)
}

func TestReplaceClusters_DeletesByID(t *testing.T) {
	m, s := newTestManager(t)
	ctx := context.Background()
	v := addVisit(t, s, "https://a.test/", at(1))

	first, err := m.ReplaceClusters(ctx, nil, []history.Cluster{clusterOf("one", v)})
	require.NoError(t, err)

	second, err := m.ReplaceClusters(ctx, first, []history.Cluster{clusterOf("two", v)})
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Greater(t, second[0], first[0])

	_, ok, err := m.GetCluster(ctx, first[0], false)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMostRecentClusters_RangeAndOrder(t *testing.T) {
	m, s := newTestManager(t)
	ctx := context.Background()
	early := addVisit(t, s, "https://early.test/", at(1))
	middle := addVisit(t, s, "https://middle.test/", at(5))
	late := addVisit(t, s, "https://late.test/", at(9))

	ids, err := m.ReplaceClusters(ctx, nil, []history.Cluster{
		clusterOf("early", early),
		clusterOf("spans", early, late),
		clusterOf("middle", middle),
	})
	require.NoError(t, err)
	require.Len(t, ids, 3)

	got, err := m.MostRecentClusters(ctx, at(0), at(20), 0, false)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "spans", got[0].Label)
	assert.Equal(t, "middle", got[1].Label)
	assert.Equal(t, "early", got[2].Label)

	got, err = m.MostRecentClusters(ctx, at(0), at(6), 0, false)
	require.NoError(t, err)
	require.Len(t, got, 2, "a cluster is selected by its newest visit")
	assert.Equal(t, "middle", got[0].Label)

	got, err = m.MostRecentClusters(ctx, at(0), at(20), 1, false)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestMostRecentClusters_DeletedURLIsUnfetchable(t *testing.T) {
	m, s := newTestManager(t)
	ctx := context.Background()
	keep := addVisit(t, s, "https://keep.test/", at(1))
	gone := addVisit(t, s, "https://gone.test/", at(2))
	only := addVisit(t, s, "https://only.test/", at(3))

	_, err := m.ReplaceClusters(ctx, nil, []history.Cluster{
		clusterOf("mixed", keep, gone),
		clusterOf("lonely", only),
	})
	require.NoError(t, err)

	for _, url := range []string{"https://gone.test/", "https://only.test/"} {
		row, err := s.GetURLByString(ctx, url)
		require.NoError(t, err)
		require.NoError(t, s.DeleteURL(ctx, row.ID))
	}

	got, err := m.MostRecentClusters(ctx, at(0), time.Time{}, 0, true)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, []history.VisitID{keep}, got[0].VisitIDs())
}
