package engine

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/roach88/histcore/internal/history"
	"github.com/roach88/histcore/internal/resolver"
	"github.com/roach88/histcore/internal/store"
	"github.com/roach88/histcore/internal/urlutil"
)

// initialQueryBatch is the first number of visits fetched for a paged
// query; the batch grows while duplicates keep the page short.
const initialQueryBatch = 64

// QueryURL looks up a URL row, hidden rows included, and optionally its
// visits newest first. Unknown URLs return Found == false.
func (e *Engine) QueryURL(ctx context.Context, rawURL string, wantVisits bool) (history.QueryURLResult, error) {
	empty := history.QueryURLResult{Visits: []history.VisitRow{}}
	if err := e.usable(); err != nil {
		return empty, err
	}

	row, err := e.store.GetURLByString(ctx, urlutil.MustCanonical(rawURL))
	if errors.Is(err, store.ErrNotFound) {
		return empty, nil
	}
	if err != nil {
		return empty, e.check("query url", err)
	}

	res := history.QueryURLResult{Found: true, Row: row, Visits: []history.VisitRow{}}
	if wantVisits {
		if res.Visits, err = e.store.VisitsForURL(ctx, row.ID); err != nil {
			return empty, e.check("query url", err)
		}
	}
	return res, nil
}

// QueryHistory returns one page of visible visits. An empty text lists the
// time range; otherwise every term must appear in the title or URL, or with
// HostOnly the host must equal the text.
func (e *Engine) QueryHistory(ctx context.Context, text string, opts history.QueryOptions) (history.QueryResults, error) {
	empty := history.QueryResults{Items: []history.ResultItem{}}
	if err := e.usable(); err != nil {
		return empty, err
	}

	vq := store.VisitQuery{
		Begin:       opts.BeginTime,
		End:         opts.EndTime,
		OldestFirst: opts.VisitOrder == history.OldestFirst,
	}
	if strings.TrimSpace(text) != "" {
		ids, err := e.matchURLs(ctx, text, opts.HostOnly)
		if err != nil {
			return empty, e.check("query history", err)
		}
		if len(ids) == 0 {
			return e.finishPage(ctx, empty, opts)
		}
		vq.URLIDs = ids
	}

	res, err := e.collectPage(ctx, vq, opts)
	if err != nil {
		return empty, e.check("query history", err)
	}
	return e.finishPage(ctx, res, opts)
}

// collectPage reads visible visits in growing batches until the page is
// full or the range is exhausted.
func (e *Engine) collectPage(ctx context.Context, vq store.VisitQuery, opts history.QueryOptions) (history.QueryResults, error) {
	batch := initialQueryBatch
	if opts.MaxCount > 0 && opts.MaxCount*2+1 > batch {
		batch = opts.MaxCount*2 + 1
	}
	if opts.MaxCount <= 0 {
		batch = 0
	}

	for {
		vq.Limit = batch
		visits, err := e.store.VisibleVisits(ctx, vq)
		if err != nil {
			return history.QueryResults{}, err
		}

		page, full := paginate(visits, opts)
		exhausted := batch == 0 || len(visits) < batch
		if full || exhausted {
			rows := make(map[history.URLID]history.URLRow)
			items := make([]history.ResultItem, 0, len(page.visits))
			for _, v := range page.visits {
				row, ok := rows[v.URLID]
				if !ok {
					row, err = e.store.GetURL(ctx, v.URLID)
					if errors.Is(err, store.ErrNotFound) {
						continue
					}
					if err != nil {
						return history.QueryResults{}, err
					}
					rows[v.URLID] = row
				}
				items = append(items, history.ResultItem{URL: row, Visit: v})
			}
			return history.QueryResults{
				Items:               items,
				HasMore:             page.hasMore,
				ContinuationEndTime: page.continuation,
			}, nil
		}
		batch *= 4
	}
}

type pageResult struct {
	visits       []history.VisitRow
	hasMore      bool
	continuation time.Time
}

// paginate applies the duplicate policy and the page size to visits in
// result order. full is true once MaxCount items were kept and a further
// visit was seen.
func paginate(visits []history.VisitRow, opts history.QueryOptions) (pageResult, bool) {
	var page pageResult
	seen := make(map[dedupKey]bool)
	for _, v := range visits {
		if opts.MaxCount > 0 && len(page.visits) == opts.MaxCount {
			page.hasMore = true
			return page, true
		}
		page.continuation = v.VisitTime

		if key, ok := keyFor(v, opts); ok {
			if seen[key] {
				continue
			}
			seen[key] = true
		}
		page.visits = append(page.visits, v)
	}
	return page, false
}

type dedupKey struct {
	url history.URLID
	day string
}

// keyFor returns the key duplicates collapse on. ok is false when every
// visit is kept.
func keyFor(v history.VisitRow, opts history.QueryOptions) (dedupKey, bool) {
	switch opts.DuplicatePolicy {
	case history.KeepAllDuplicates:
		return dedupKey{}, false
	case history.RemoveDuplicatesPerDay:
		loc := opts.Location
		if loc == nil {
			loc = time.UTC
		}
		return dedupKey{url: v.URLID, day: v.VisitTime.In(loc).Format(time.DateOnly)}, true
	default:
		return dedupKey{url: v.URLID}, true
	}
}

// finishPage sets ReachedBeginning once no more results remain and the
// range reaches back to the first recorded visit.
func (e *Engine) finishPage(ctx context.Context, res history.QueryResults, opts history.QueryOptions) (history.QueryResults, error) {
	if res.HasMore {
		return res, nil
	}
	first, err := e.store.FirstRecordedTime(ctx)
	if err != nil {
		return history.QueryResults{Items: []history.ResultItem{}}, e.check("query history", err)
	}
	res.ReachedBeginning = first.IsZero() || !opts.BeginTime.After(first)
	return res, nil
}

// matchURLs returns the ids of URLs matching a text query.
func (e *Engine) matchURLs(ctx context.Context, text string, hostOnly bool) ([]history.URLID, error) {
	ids := []history.URLID{}
	if hostOnly {
		host := strings.ToLower(strings.TrimSpace(text))
		err := e.store.ScanURLs(ctx, func(row history.URLRow) bool {
			if urlutil.Host(row.URL) == host {
				ids = append(ids, row.ID)
			}
			return true
		})
		return ids, err
	}

	terms := urlutil.Terms(text)
	err := e.store.ScanURLs(ctx, func(row history.URLRow) bool {
		if row.Hidden {
			return true
		}
		haystack := urlutil.NormalizeTerm(row.Title) + " " + urlutil.NormalizeTerm(row.URL)
		for _, term := range terms {
			if !strings.Contains(haystack, term) {
				return true
			}
		}
		ids = append(ids, row.ID)
		return true
	})
	return ids, err
}

// QueryMostVisited ranks non-hidden URLs by visible visits in the last
// daysBack days.
func (e *Engine) QueryMostVisited(ctx context.Context, count, daysBack int) ([]history.MostVisitedURL, error) {
	empty := []history.MostVisitedURL{}
	if err := e.usable(); err != nil {
		return empty, err
	}
	if count <= 0 {
		return empty, nil
	}
	var since time.Time
	if daysBack > 0 {
		since = e.now().Add(-time.Duration(daysBack) * 24 * time.Hour)
	}
	out, err := e.store.MostVisited(ctx, since, count)
	if err != nil {
		return empty, e.check("query most visited", err)
	}
	return out, nil
}

// QueryRedirectsFrom returns the URLs the most recent visit to rawURL
// redirected through, in order.
func (e *Engine) QueryRedirectsFrom(ctx context.Context, rawURL string) (history.RedirectList, error) {
	return e.queryRedirects(ctx, "query redirects from", rawURL, resolver.RedirectsFrom)
}

// QueryRedirectsTo returns the URLs that redirected to the most recent
// visit of rawURL, nearest first.
func (e *Engine) QueryRedirectsTo(ctx context.Context, rawURL string) (history.RedirectList, error) {
	return e.queryRedirects(ctx, "query redirects to", rawURL, resolver.RedirectsTo)
}

type redirectWalk func(ctx context.Context, g resolver.Graph, v history.VisitRow) (history.RedirectList, error)

func (e *Engine) queryRedirects(ctx context.Context, op, rawURL string, walk redirectWalk) (history.RedirectList, error) {
	empty := history.RedirectList{}
	if err := e.usable(); err != nil {
		return empty, err
	}
	row, err := e.store.GetURLByString(ctx, urlutil.MustCanonical(rawURL))
	if errors.Is(err, store.ErrNotFound) {
		return empty, nil
	}
	if err != nil {
		return empty, e.check(op, err)
	}
	visits, err := e.store.VisitsForURL(ctx, row.ID)
	if err != nil {
		return empty, e.check(op, err)
	}
	if len(visits) == 0 {
		return empty, nil
	}
	out, err := walk(resolver.WithLogger(ctx, e.logger), e.store, visits[0])
	if err != nil {
		return empty, e.check(op, err)
	}
	return out, nil
}

// GetAnnotatedVisits returns visits in the range newest first with their
// annotations and the referring and opener visits of their chain start.
// Visits whose URL row is gone are skipped.
func (e *Engine) GetAnnotatedVisits(ctx context.Context, opts history.AnnotatedVisitsOptions) ([]history.AnnotatedVisit, error) {
	empty := []history.AnnotatedVisit{}
	if err := e.usable(); err != nil {
		return empty, err
	}
	visits, err := e.store.VisitsInRange(ctx, store.VisitQuery{
		Begin: opts.BeginTime,
		End:   opts.EndTime,
		Limit: opts.MaxCount,
	})
	if err != nil {
		return empty, e.check("get annotated visits", err)
	}

	walkCtx := resolver.WithLogger(ctx, e.logger)
	out := make([]history.AnnotatedVisit, 0, len(visits))
	for _, v := range visits {
		av, ok, err := resolver.Annotate(walkCtx, e.store, v)
		if err != nil {
			return empty, e.check("get annotated visits", err)
		}
		if ok {
			out = append(out, av)
		}
	}
	return out, nil
}

// AutocompleteRows returns the rows the autocomplete cache is built from.
func (e *Engine) AutocompleteRows(ctx context.Context) ([]history.URLRow, []history.KeywordSearchTerm, error) {
	if err := e.usable(); err != nil {
		return []history.URLRow{}, []history.KeywordSearchTerm{}, err
	}
	rows, err := e.store.AutocompleteURLs(ctx)
	if err != nil {
		return []history.URLRow{}, []history.KeywordSearchTerm{}, e.check("autocomplete rows", err)
	}
	terms, err := e.store.AllKeywordSearchTerms(ctx)
	if err != nil {
		return []history.URLRow{}, []history.KeywordSearchTerm{}, e.check("autocomplete rows", err)
	}
	return rows, terms, nil
}
