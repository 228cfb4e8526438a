package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/histcore/internal/history"
)

func TestAnnotations_OnVisitAndOnCloseAreIndependent(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	v := mustInsertVisit(t, s, mustInsertURL(t, s, "https://a.test/"), at(1), history.TransitionLink, false)

	onVisit := history.OnVisitFields{
		BrowserType: history.BrowserTabbed, WindowID: 1, TabID: 2,
		TaskID: 3, RootTaskID: 4, ParentTaskID: 5, ResponseCode: 200,
	}
	onClose := history.OnCloseFields{
		PageEndReason:           2,
		TotalForegroundDuration: 3 * time.Second,
		IsNewBookmark:           true,
		IsPlacedInTabGroup:      true,
	}

	require.NoError(t, s.PutOnVisitAnnotations(ctx, v, onVisit))
	require.NoError(t, s.PutOnCloseAnnotations(ctx, v, onClose))

	got, ok, err := s.GetContextAnnotations(ctx, v)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, onVisit, got.OnVisit)
	assert.Equal(t, onClose, got.OnClose)

	// Rewriting the on-visit half keeps the on-close half.
	onVisit.TabID = 9
	require.NoError(t, s.PutOnVisitAnnotations(ctx, v, onVisit))
	got, _, err = s.GetContextAnnotations(ctx, v)
	require.NoError(t, err)
	assert.Equal(t, int64(9), got.OnVisit.TabID)
	assert.Equal(t, onClose, got.OnClose)
}

func TestAnnotations_ContentRoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	v := mustInsertVisit(t, s, mustInsertURL(t, s, "https://a.test/"), at(1), history.TransitionLink, false)

	_, ok, err := s.GetContentAnnotations(ctx, v)
	require.NoError(t, err)
	assert.False(t, ok)

	want := history.ContentAnnotations{
		VisibilityScore:  0.5,
		Categories:       []history.Category{{ID: "news", Weight: 80}},
		Entities:         []history.Category{},
		RelatedSearches:  []string{"a", "b"},
		SearchTerms:      "a b",
		AlternativeTitle: "Alt",
		PageLanguage:     "en",
		Flags:            history.ContentFlagTopicEligible,
	}
	require.NoError(t, s.PutContentAnnotations(ctx, v, want))

	got, ok, err := s.GetContentAnnotations(ctx, v)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, want, got)
}

func TestKeywords_UpsertAndDelete(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	u := mustInsertURL(t, s, "https://search.test/?q=go")

	require.NoError(t, s.SetKeywordSearchTerm(ctx, history.KeywordSearchTerm{URLID: u, KeywordID: 1, Term: "go", NormalizedTerm: "go"}))
	require.NoError(t, s.SetKeywordSearchTerm(ctx, history.KeywordSearchTerm{URLID: u, KeywordID: 1, Term: "Go", NormalizedTerm: "go"}))
	require.NoError(t, s.SetKeywordSearchTerm(ctx, history.KeywordSearchTerm{URLID: u, KeywordID: 2, Term: "golang", NormalizedTerm: "golang"}))

	terms, err := s.KeywordSearchTermsForURL(ctx, u)
	require.NoError(t, err)
	require.Len(t, terms, 2)
	assert.Equal(t, "Go", terms[0].Term)

	has, err := s.HasKeywordSearchTerm(ctx, u)
	require.NoError(t, err)
	assert.True(t, has)

	n, err := s.DeleteKeywordSearchTermsForURL(ctx, u)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	has, err = s.HasKeywordSearchTerm(ctx, u)
	require.NoError(t, err)
	assert.False(t, has)
}
