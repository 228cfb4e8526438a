package harness

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/roach88/histcore/internal/engine"
	"github.com/roach88/histcore/internal/history"
	"github.com/roach88/histcore/internal/service"
	"github.com/roach88/histcore/internal/store"
	"github.com/roach88/histcore/internal/testutil"
)

// Harness runs one scenario against a fresh service with a manual clock
// and a fixed cache GUID.
type Harness struct {
	svc      *service.Service
	clock    *testutil.Clock
	observer *traceObserver
	result   *Result
}

// defaultCacheGUID is the cache GUID of scenarios that do not set one.
var defaultCacheGUID = testutil.NewFixedGUID("").Generate()

type pinSet map[string]bool

func (p pinSet) IsPinned(url string) bool { return p[url] }

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database. The clock starts at
// testutil.Epoch and the cache GUID is fixed, so the same scenario always
// produces the same trace. A failed assertion is reported in the result;
// the error return is for scenarios that cannot run at all.
func Run(scenario *Scenario) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create store: %w", err)
	}

	clock := testutil.NewClock(testutil.Epoch)
	guid := testutil.NewFixedGUID(scenario.CacheGUID).Generate()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	pins := pinSet{}
	for _, u := range scenario.Pinned {
		pins[u] = true
	}
	engineOpts := []engine.EngineOption{
		engine.WithClock(clock.Now),
		engine.WithCacheGUID(guid),
		engine.WithPinnedURLs(pins),
	}
	if scenario.RetentionDays > 0 {
		engineOpts = append(engineOpts, engine.WithRetention(time.Duration(scenario.RetentionDays)*24*time.Hour))
	}

	result := NewResult()
	h := &Harness{
		svc: service.New(st,
			service.WithEngineOptions(engineOpts...),
			service.WithLogger(logger),
		),
		clock:    clock,
		observer: &traceObserver{result: result},
		result:   result,
	}
	defer func() {
		h.svc.Close(nil)
		h.svc.Pump()
	}()
	h.svc.AddObserver(h.observer)

	for i, step := range scenario.Setup {
		h.runStep(fmt.Sprintf("setup[%d]", i), step)
	}

	h.observer.on = true
	for i, step := range scenario.Flow {
		h.result.add(KindStep, step.Op, step.URL, describeStep(step))
		h.runStep(fmt.Sprintf("flow[%d]", i), step)
	}
	h.observer.on = false

	for i, a := range scenario.Assertions {
		if err := h.check(a); err != nil {
			h.result.AddError(fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return h.result, nil
}

// runStep issues one facade call and flushes so its events and results are
// traced before the next step.
func (h *Harness) runStep(where string, st Step) {
	if st.At > 0 {
		h.clock.Set(testutil.At(st.At))
	}
	now := h.clock.Now()

	switch st.Op {
	case OpAddPage:
		transition := history.TransitionLink
		if st.Transition != "" {
			transition, _ = history.ParseTransition(st.Transition)
		}
		h.svc.AddPage(history.AddPageArgs{
			URL:             st.URL,
			Time:            now,
			Context:         history.ContextID(st.Context),
			NavEntryID:      st.NavEntry,
			Referrer:        st.Referrer,
			Redirects:       history.RedirectList(st.Redirects),
			Transition:      transition,
			Hidden:          st.Hidden,
			Source:          history.SourceBrowsed,
			DidReplaceEntry: st.ReplaceEntry,
			Title:           st.Title,
			HTTPStatus:      st.HTTPStatus,
		})
	case OpAddPageNoVisit:
		h.svc.AddPageNoVisit(st.URL, st.Title, now)
	case OpSetTitle:
		h.svc.SetTitle(st.URL, st.Title)
	case OpDeleteURLs:
		h.svc.DeleteURLs(st.URLs)
	case OpExpireBetween:
		h.svc.ExpireBetween(st.URLs, minutes(st.Begin), minutes(st.End))
	case OpExpireRetention:
		h.svc.ExpireRetention()
	case OpSetKeywordSearchTerm:
		h.svc.SetKeywordSearchTerm(st.URL, history.KeywordID(st.Keyword), st.Term)
	case OpDeleteKeywordSearchTerm:
		h.svc.DeleteKeywordSearchTerm(st.URL)
	case OpNotifyFaviconsChanged:
		h.svc.NotifyFaviconsChanged(st.URLs, st.Icon)

	case OpQueryURL:
		h.svc.QueryURL(st.URL, true, func(res history.QueryURLResult, err error) {
			if h.failed(where, st, err) {
				return
			}
			obs := h.observeRow(st.URL, res)
			h.traceResult(st.Op, st.URL, fmt.Sprintf("found=%t visits=%d typed=%d title=%s",
				res.Found, res.Row.VisitCount, res.Row.TypedCount, res.Row.Title))
			h.expect(where, st.Expect, obs)
		})
	case OpQueryHistory:
		opts := history.QueryOptions{
			BeginTime:       minutes(st.Begin),
			EndTime:         minutes(st.End),
			MaxCount:        st.MaxCount,
			DuplicatePolicy: duplicatePolicies[st.Duplicates],
			HostOnly:        st.HostOnly,
		}
		if st.OldestFirst {
			opts.VisitOrder = history.OldestFirst
		}
		h.svc.QueryHistory(st.Text, opts, func(res history.QueryResults, err error) {
			if h.failed(where, st, err) {
				return
			}
			urls := make([]string, len(res.Items))
			for i, item := range res.Items {
				urls[i] = item.URL.URL
			}
			h.traceResult(st.Op, "", fmt.Sprintf("items=%s has_more=%t", strings.Join(urls, ","), res.HasMore))
			h.expect(where, st.Expect, observed{urls: urls, hasMore: res.HasMore})
		})
	case OpQueryMostVisited:
		h.svc.QueryMostVisited(st.Count, st.DaysBack, func(res []history.MostVisitedURL, err error) {
			if h.failed(where, st, err) {
				return
			}
			urls := make([]string, len(res))
			for i, mv := range res {
				urls[i] = mv.URL
			}
			h.traceResult(st.Op, "", "urls="+strings.Join(urls, ","))
			h.expect(where, st.Expect, observed{urls: urls})
		})
	case OpQueryRedirectsFrom, OpQueryRedirectsTo:
		cb := func(res history.RedirectList, err error) {
			if h.failed(where, st, err) {
				return
			}
			h.traceResult(st.Op, st.URL, "chain="+strings.Join(res, ","))
			h.expect(where, st.Expect, observed{urls: res})
		}
		if st.Op == OpQueryRedirectsFrom {
			h.svc.QueryRedirectsFrom(st.URL, cb)
		} else {
			h.svc.QueryRedirectsTo(st.URL, cb)
		}
	case OpCacheLookup:
		h.svc.Flush()
		_, cached := h.svc.Cache().Lookup(st.URL)
		h.traceResult(st.Op, st.URL, fmt.Sprintf("cached=%t", cached))
		h.expect(where, st.Expect, observed{cached: cached})
	}

	h.svc.Flush()
}

// failed records a query error. Only the flow is traced, but an error
// fails the scenario wherever it happens.
func (h *Harness) failed(where string, st Step, err error) bool {
	if err == nil {
		return false
	}
	h.traceResult(st.Op, st.URL, "error="+err.Error())
	h.result.AddError(fmt.Sprintf("%s: %s failed: %v", where, st.Op, err))
	return true
}

// traceResult records a query result. Results of setup steps are not
// traced.
func (h *Harness) traceResult(name, url, detail string) {
	if h.observer.on {
		h.result.add(KindResult, name, url, detail)
	}
}

func (h *Harness) observeRow(url string, res history.QueryURLResult) observed {
	_, cached := h.svc.Cache().Lookup(url)
	return observed{
		found:      res.Found,
		visitCount: res.Row.VisitCount,
		typedCount: res.Row.TypedCount,
		title:      res.Row.Title,
		hidden:     res.Row.Hidden,
		cached:     cached,
	}
}

func (h *Harness) expect(where string, e *Expect, got observed) {
	if e == nil {
		return
	}
	for _, mismatch := range compareExpect(e, got) {
		h.result.AddError(fmt.Sprintf("%s: %s", where, mismatch))
	}
}

func minutes(m *int) time.Time {
	if m == nil {
		return time.Time{}
	}
	return testutil.At(*m)
}

func describeStep(st Step) string {
	var parts []string
	if st.Transition != "" {
		parts = append(parts, "transition="+st.Transition)
	}
	if len(st.Redirects) > 0 {
		parts = append(parts, "redirects="+strings.Join(st.Redirects, ","))
	}
	if st.Title != "" {
		parts = append(parts, "title="+st.Title)
	}
	if len(st.URLs) > 0 {
		parts = append(parts, "urls="+strings.Join(st.URLs, ","))
	}
	if st.Term != "" {
		parts = append(parts, fmt.Sprintf("keyword=%d term=%s", st.Keyword, st.Term))
	}
	if st.Text != "" {
		parts = append(parts, "text="+st.Text)
	}
	return strings.Join(parts, " ")
}
