package harness

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/histcore/internal/history"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s %s %s %s\n", event.Seq, event.Kind, event.Name, event.URL, event.Detail)
		}
	}

	return buf.String()
}

func matches(event TraceEvent, a Assertion) bool {
	if a.Kind != "" && event.Kind != a.Kind {
		return false
	}
	if event.Name != a.Name {
		return false
	}
	return a.URL == "" || event.URL == a.URL
}

// assertTraceContains checks that some entry matches the assertion's kind,
// name and url.
func assertTraceContains(trace []TraceEvent, a Assertion) error {
	for _, event := range trace {
		if matches(event, a) {
			return nil
		}
	}

	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: fmt.Sprintf("%s %s %s", kindOrAny(a.Kind), a.Name, a.URL),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks that entries with the given names appear in
// order. Other entries may sit between them.
func assertTraceOrder(trace []TraceEvent, a Assertion) error {
	next := 0
	for _, event := range trace {
		if next == len(a.Names) {
			break
		}
		if (a.Kind == "" || event.Kind == a.Kind) && event.Name == a.Names[next] {
			next++
		}
	}
	if next == len(a.Names) {
		return nil
	}

	return &AssertionError{
		Type:     AssertTraceOrder,
		Expected: fmt.Sprintf("entries in order: %v", a.Names),
		Actual:   fmt.Sprintf("%s not found after %v", a.Names[next], a.Names[:next]),
		Trace:    trace,
	}
}

// assertTraceCount checks the exact number of matching entries.
func assertTraceCount(trace []TraceEvent, a Assertion) error {
	count := 0
	for _, event := range trace {
		if matches(event, a) {
			count++
		}
	}

	if count != a.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d occurrences of %s %s", a.Count, kindOrAny(a.Kind), a.Name),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    trace,
		}
	}
	return nil
}

func kindOrAny(kind string) string {
	if kind == "" {
		return "any"
	}
	return kind
}

// check evaluates one assertion against the finished run.
func (h *Harness) check(a Assertion) error {
	switch a.Type {
	case AssertTraceContains:
		return assertTraceContains(h.result.Trace, a)
	case AssertTraceOrder:
		return assertTraceOrder(h.result.Trace, a)
	case AssertTraceCount:
		return assertTraceCount(h.result.Trace, a)
	case AssertURLState:
		return h.assertURLState(a)
	}
	return fmt.Errorf("unknown assertion type %q", a.Type)
}

// assertURLState reads the row of a.URL through the service and compares
// it, and its cache membership, with a.Expect.
func (h *Harness) assertURLState(a Assertion) error {
	var (
		got    observed
		runErr error
	)
	h.svc.QueryURL(a.URL, false, func(res history.QueryURLResult, err error) {
		runErr = err
		got = h.observeRow(a.URL, res)
	})
	h.svc.Flush()
	if runErr != nil {
		return fmt.Errorf("url_state %s: %w", a.URL, runErr)
	}

	if mismatches := compareExpect(a.Expect, got); len(mismatches) > 0 {
		return &AssertionError{
			Type:     AssertURLState,
			Expected: a.URL,
			Actual:   strings.Join(mismatches, "; "),
		}
	}
	return nil
}

// observed is what a query step or url_state read saw.
type observed struct {
	found      bool
	visitCount int
	typedCount int
	title      string
	hidden     bool
	cached     bool
	urls       []string
	hasMore    bool
}

// compareExpect returns one message per expected field that differs.
func compareExpect(e *Expect, got observed) []string {
	var out []string
	if e.Found != nil && *e.Found != got.found {
		out = append(out, fmt.Sprintf("found: expected %t, got %t", *e.Found, got.found))
	}
	if e.VisitCount != nil && *e.VisitCount != got.visitCount {
		out = append(out, fmt.Sprintf("visit_count: expected %d, got %d", *e.VisitCount, got.visitCount))
	}
	if e.TypedCount != nil && *e.TypedCount != got.typedCount {
		out = append(out, fmt.Sprintf("typed_count: expected %d, got %d", *e.TypedCount, got.typedCount))
	}
	if e.Title != nil && *e.Title != got.title {
		out = append(out, fmt.Sprintf("title: expected %q, got %q", *e.Title, got.title))
	}
	if e.Hidden != nil && *e.Hidden != got.hidden {
		out = append(out, fmt.Sprintf("hidden: expected %t, got %t", *e.Hidden, got.hidden))
	}
	if e.Cached != nil && *e.Cached != got.cached {
		out = append(out, fmt.Sprintf("cached: expected %t, got %t", *e.Cached, got.cached))
	}
	if e.URLs != nil && !slices.Equal(e.URLs, got.urls) {
		out = append(out, fmt.Sprintf("urls: expected %v, got %v", e.URLs, got.urls))
	}
	if e.HasMore != nil && *e.HasMore != got.hasMore {
		out = append(out, fmt.Sprintf("has_more: expected %t, got %t", *e.HasMore, got.hasMore))
	}
	return out
}
