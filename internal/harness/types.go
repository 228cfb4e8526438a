package harness

import (
	"fmt"
	"strings"

	"github.com/roach88/histcore/internal/history"
)

// Trace entry kinds.
const (
	KindStep   = "step"
	KindEvent  = "event"
	KindResult = "result"
)

// TraceEvent is one entry of a scenario trace: a step that ran, an event an
// observer saw, or the result a query callback received.
type TraceEvent struct {
	Seq    int    `json:"seq"`
	Kind   string `json:"kind"`
	Name   string `json:"name"`
	URL    string `json:"url,omitempty"`
	Detail string `json:"detail,omitempty"`
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass is true if every step expectation and assertion held.
	Pass bool `json:"pass"`

	// Trace holds the flow's steps, events and results in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

func (r *Result) add(kind, name, url, detail string) {
	r.Trace = append(r.Trace, TraceEvent{
		Seq:    len(r.Trace) + 1,
		Kind:   kind,
		Name:   name,
		URL:    url,
		Detail: detail,
	})
}

// traceObserver appends every event it sees to a result. It runs on the
// owner sequence, which the harness pumps from its own goroutine.
type traceObserver struct {
	result *Result
	on     bool
}

func (o *traceObserver) OnURLVisited(e history.URLVisited) {
	o.event("url_visited", e.Row.URL,
		fmt.Sprintf("visits=%d typed=%d transition=%s", e.Row.VisitCount, e.Row.TypedCount, e.Visit.Transition))
}

func (o *traceObserver) OnURLsModified(e history.URLsModified) {
	detail := "rows=" + joinRows(e.Rows)
	if e.FromExpiration {
		detail += " from_expiration"
	}
	o.event("urls_modified", "", detail)
}

func (o *traceObserver) OnURLsDeleted(e history.URLsDeleted) {
	o.event("urls_deleted", "",
		fmt.Sprintf("all_history=%t expired=%t rows=%s", e.AllHistory, e.Expired, joinRows(e.Rows)))
}

func (o *traceObserver) OnKeywordSearchTermUpdated(e history.KeywordSearchTermUpdated) {
	o.event("keyword_search_term_updated", e.Row.URL, fmt.Sprintf("keyword=%d term=%s", e.KeywordID, e.Term))
}

func (o *traceObserver) OnKeywordSearchTermDeleted(e history.KeywordSearchTermDeleted) {
	o.event("keyword_search_term_deleted", "", fmt.Sprintf("url_id=%d", e.URLID))
}

func (o *traceObserver) OnFaviconsChanged(e history.FaviconsChanged) {
	o.event("favicons_changed", e.IconURL, "pages="+strings.Join(e.PageURLs, ","))
}

func (o *traceObserver) event(name, url, detail string) {
	if o.on {
		o.result.add(KindEvent, name, url, detail)
	}
}

func joinRows(rows []history.URLRow) string {
	urls := make([]string, len(rows))
	for i, r := range rows {
		urls[i] = r.URL
	}
	return strings.Join(urls, ",")
}
