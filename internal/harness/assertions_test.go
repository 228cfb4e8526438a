package harness

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTrace() []TraceEvent {
	r := NewResult()
	r.add(KindStep, "add_page", "https://a.com/", "")
	r.add(KindEvent, "url_visited", "https://a.com/", "visits=1 typed=0 transition=link|chain_start|chain_end")
	r.add(KindStep, "add_page", "https://b.com/", "")
	r.add(KindEvent, "url_visited", "https://b.com/", "visits=1 typed=0 transition=link|chain_start|chain_end")
	r.add(KindStep, "delete_urls", "", "urls=https://a.com/")
	r.add(KindEvent, "urls_deleted", "", "all_history=false expired=false rows=https://a.com/")
	return r.Trace
}

func TestResult_AddNumbersEntries(t *testing.T) {
	trace := sampleTrace()
	for i, e := range trace {
		assert.Equal(t, i+1, e.Seq)
	}
}

func TestAssertTraceContains(t *testing.T) {
	trace := sampleTrace()

	assert.NoError(t, assertTraceContains(trace, Assertion{Name: "url_visited", URL: "https://b.com/"}))
	assert.NoError(t, assertTraceContains(trace, Assertion{Kind: KindEvent, Name: "urls_deleted"}))

	err := assertTraceContains(trace, Assertion{Kind: KindResult, Name: "url_visited"})
	var ae *AssertionError
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, AssertTraceContains, ae.Type)
	assert.Equal(t, "not found in trace", ae.Actual)
}

func TestAssertTraceOrder(t *testing.T) {
	trace := sampleTrace()

	assert.NoError(t, assertTraceOrder(trace, Assertion{Names: []string{"add_page", "url_visited", "urls_deleted"}}))
	assert.NoError(t, assertTraceOrder(trace, Assertion{Kind: KindEvent, Names: []string{"url_visited", "url_visited"}}))

	err := assertTraceOrder(trace, Assertion{Names: []string{"urls_deleted", "add_page"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "add_page not found after [urls_deleted]")
}

func TestAssertTraceCount(t *testing.T) {
	trace := sampleTrace()

	assert.NoError(t, assertTraceCount(trace, Assertion{Name: "add_page", Count: 2}))
	assert.NoError(t, assertTraceCount(trace, Assertion{Name: "url_visited", URL: "https://a.com/", Count: 1}))
	assert.NoError(t, assertTraceCount(trace, Assertion{Kind: KindResult, Name: "add_page", Count: 0}))

	err := assertTraceCount(trace, Assertion{Kind: KindEvent, Name: "url_visited", Count: 3})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Expected: 3 occurrences of event url_visited")
	assert.Contains(t, err.Error(), "Actual: 2 occurrences")
	assert.Contains(t, err.Error(), "Full trace:")
}

func TestCompareExpect(t *testing.T) {
	yes, no := true, false
	one, two := 1, 2
	title := "A"

	got := observed{found: true, visitCount: 1, typedCount: 1, title: "A", cached: true, urls: []string{"https://a.com/"}}

	assert.Empty(t, compareExpect(&Expect{}, got))
	assert.Empty(t, compareExpect(&Expect{
		Found: &yes, VisitCount: &one, TypedCount: &one, Title: &title, Hidden: &no, Cached: &yes,
		URLs: []string{"https://a.com/"}, HasMore: &no,
	}, got))

	mismatches := compareExpect(&Expect{VisitCount: &two, Cached: &no, URLs: []string{}}, got)
	assert.Equal(t, []string{
		"visit_count: expected 2, got 1",
		"cached: expected false, got true",
		"urls: expected [], got [https://a.com/]",
	}, mismatches)
}
