package mostvisited

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/histcore/internal/history"
)

func urls(list ...string) []history.MostVisitedURL {
	out := make([]history.MostVisitedURL, 0, len(list))
	for _, u := range list {
		out = append(out, history.MostVisitedURL{URL: u})
	}
	return out
}

func rankedURLs(rs []Ranked) map[string]int {
	out := make(map[string]int, len(rs))
	for _, r := range rs {
		out[r.URL.URL] = r.Rank
	}
	return out
}

func TestDiff(t *testing.T) {
	old := urls("http://same/", "http://deleted/", "http://moved/")
	next := urls("http://same/", "http://added1/", "http://added2/", "http://moved/")

	d := Diff(old, next)

	require.Len(t, d.Added, 2)
	assert.Equal(t, "http://added1/", d.Added[0].URL.URL)
	assert.Equal(t, 1, d.Added[0].Rank)
	assert.Equal(t, "http://added2/", d.Added[1].URL.URL)
	assert.Equal(t, 2, d.Added[1].Rank)

	assert.Equal(t, map[string]int{"http://deleted/": 1}, rankedURLs(d.Deleted))
	assert.Equal(t, map[string]int{"http://moved/": 3}, rankedURLs(d.Moved))
	assert.False(t, d.Empty())
}

func TestDiff_IgnoresCountChanges(t *testing.T) {
	old := []history.MostVisitedURL{{URL: "http://a/", VisitCount: 1}}
	next := []history.MostVisitedURL{{URL: "http://a/", VisitCount: 7, Title: "A"}}

	assert.True(t, Diff(old, next).Empty())
	assert.True(t, Diff(nil, nil).Empty())
}

type fakeSource struct {
	lists [][]history.MostVisitedURL
	err   error
}

func (f *fakeSource) QueryMostVisited(context.Context, int, int) ([]history.MostVisitedURL, error) {
	if f.err != nil {
		return nil, f.err
	}
	next := f.lists[0]
	f.lists = f.lists[1:]
	return next, nil
}

func TestTracker_Refresh(t *testing.T) {
	src := &fakeSource{lists: [][]history.MostVisitedURL{
		urls("http://a/", "http://b/"),
		urls("http://b/", "http://a/"),
	}}
	tr := NewTracker(src, 2, 7)
	ctx := context.Background()

	d, err := tr.Refresh(ctx)
	require.NoError(t, err)
	assert.Len(t, d.Added, 2)

	d, err = tr.Refresh(ctx)
	require.NoError(t, err)
	assert.Empty(t, d.Added)
	assert.Equal(t, map[string]int{"http://a/": 1, "http://b/": 0}, rankedURLs(d.Moved))
	assert.Equal(t, urls("http://b/", "http://a/"), tr.Current())
}

func TestTracker_RefreshErrorKeepsLast(t *testing.T) {
	src := &fakeSource{lists: [][]history.MostVisitedURL{urls("http://a/")}}
	tr := NewTracker(src, 1, 0)

	_, err := tr.Refresh(context.Background())
	require.NoError(t, err)

	src.err = errors.New("store failed")
	_, err = tr.Refresh(context.Background())
	require.Error(t, err)
	assert.Equal(t, urls("http://a/"), tr.Current())
}
