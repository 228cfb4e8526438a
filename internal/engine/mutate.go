package engine

import (
	"context"
	"errors"
	"time"

	"github.com/roach88/histcore/internal/expire"
	"github.com/roach88/histcore/internal/history"
	"github.com/roach88/histcore/internal/store"
	"github.com/roach88/histcore/internal/urlutil"
)

// SetTitle sets the title of rawURL and of every URL in the recent redirect
// chain that ended at it. Rows whose title changed are reported in one
// URLsModified event. An empty title is a no-op.
func (e *Engine) SetTitle(ctx context.Context, rawURL, title string) error {
	if err := e.usable(); err != nil {
		return err
	}
	if title == "" {
		return nil
	}

	canonical := urlutil.MustCanonical(rawURL)
	chain, ok := e.redirects.Get(canonical)
	if !ok {
		chain = history.RedirectList{canonical}
	}

	changed := []history.URLRow{}
	err := e.store.Update(ctx, func(tx *store.Tx) error {
		for _, u := range chain {
			row, err := tx.GetURLByString(ctx, u)
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			ok, err := tx.SetTitle(ctx, row.ID, title)
			if err != nil {
				return err
			}
			if ok {
				row.Title = title
				changed = append(changed, row)
			}
		}
		return nil
	})
	if err != nil {
		return e.check("set title", err)
	}

	if len(changed) > 0 {
		e.emit([]history.Event{history.URLsModified{Rows: changed}})
	}
	return nil
}

// UpdatePageEndTime closes the visit the tracker holds for the navigation
// entry: its duration becomes end minus its visit time, clamped at zero.
func (e *Engine) UpdatePageEndTime(ctx context.Context, id history.ContextID, navEntryID int, rawURL string, end time.Time) error {
	if err := e.usable(); err != nil {
		return err
	}
	visit := e.tracker.lastVisit(id, navEntryID, urlutil.MustCanonical(rawURL))
	if visit == 0 {
		return nil
	}
	err := e.store.Update(ctx, func(tx *store.Tx) error {
		return updateVisitDuration(ctx, tx, visit, end)
	})
	return e.check("update page end time", err)
}

// ClearContext forgets the tracked visits of a navigation context.
func (e *Engine) ClearContext(id history.ContextID) {
	e.tracker.clear(id)
}

// AddPageNoVisit stores a hidden URL row without a visit, as a bookmark
// does. Known URLs are left alone. An empty title stores the URL itself; a
// zero lastVisit uses the current time.
func (e *Engine) AddPageNoVisit(ctx context.Context, rawURL, title string, lastVisit time.Time) error {
	if err := e.usable(); err != nil {
		return err
	}
	u, canonical, err := urlutil.Canonicalize(rawURL)
	if err != nil || !e.policy.CanAddURL(u) {
		e.logger.Debug("not recording url", "url", rawURL)
		return nil
	}
	if title == "" {
		title = canonical
	}
	if lastVisit.IsZero() {
		lastVisit = e.now()
	}

	err = e.store.Update(ctx, func(tx *store.Tx) error {
		_, err := tx.GetURLByString(ctx, canonical)
		if err == nil || !errors.Is(err, store.ErrNotFound) {
			return err
		}
		_, err = tx.InsertURL(ctx, history.URLRow{
			URL:       canonical,
			Title:     title,
			LastVisit: lastVisit,
			Hidden:    true,
		})
		return err
	})
	return e.check("add page no visit", err)
}

// AddPagesWithDetails imports URL rows. Missing rows are created; unless
// the source is SYNCED every row gets one synthetic visit at its last visit
// time. Rows older than the retention window are skipped. Aggregates are
// recomputed from visits, so a synced row starts with zero counters until
// its visits arrive through AddVisits.
func (e *Engine) AddPagesWithDetails(ctx context.Context, rows []history.URLRow, source history.VisitSource) error {
	if err := e.usable(); err != nil {
		return err
	}

	var cutoff time.Time
	if e.retention > 0 {
		cutoff = e.now().Add(-e.retention)
	}

	changed := []history.URLRow{}
	err := e.store.Update(ctx, func(tx *store.Tx) error {
		for _, in := range rows {
			if in.LastVisit.IsZero() || in.LastVisit.Before(cutoff) {
				continue
			}
			u, canonical, err := urlutil.Canonicalize(in.URL)
			if err != nil || !e.policy.CanAddURL(u) {
				continue
			}

			row, err := tx.GetURLByString(ctx, canonical)
			isNew := errors.Is(err, store.ErrNotFound)
			switch {
			case isNew:
				in.URL = canonical
				if row.ID, err = tx.InsertURL(ctx, in); err != nil {
					return err
				}
			case err != nil:
				return err
			}

			if source != history.SourceSynced {
				if _, err := tx.InsertVisit(ctx, history.VisitRow{
					URLID:      row.ID,
					VisitTime:  in.LastVisit,
					Transition: history.TransitionLink | history.QualifierChainStart | history.QualifierChainEnd,
					Source:     source,
				}); err != nil {
					return err
				}
				if err := noteVisitTime(ctx, tx, in.LastVisit); err != nil {
					return err
				}
			}

			before := row
			if row, err = tx.RecomputeURL(ctx, row.ID); err != nil {
				return err
			}
			if isNew || row != before {
				changed = append(changed, row)
			}
		}
		return nil
	})
	if err != nil {
		return e.check("add pages with details", err)
	}

	if len(changed) > 0 {
		e.emit([]history.Event{history.URLsModified{Rows: changed}})
	}
	return nil
}

// AddVisits stores visits that arrived through sync for one URL. Visits
// originating from this profile's cache GUID are echoes and are skipped.
func (e *Engine) AddVisits(ctx context.Context, rawURL string, visits []history.VisitInfo, source history.VisitSource) error {
	if err := e.usable(); err != nil {
		return err
	}
	canonical := urlutil.MustCanonical(rawURL)

	var events []history.Event
	err := e.store.Update(ctx, func(tx *store.Tx) error {
		for _, vi := range visits {
			if e.cacheGUID != "" && vi.OriginatorCacheGUID == e.cacheGUID {
				continue
			}
			_, _, err := e.addPageVisit(ctx, tx, visitSpec{
				url:                 canonical,
				time:                vi.Time,
				transition:          vi.Transition,
				hidden:              !vi.Transition.IsMainFrame(),
				source:              source,
				typed:               history.IsTypedIncrement(vi.Transition),
				originatorCacheGUID: vi.OriginatorCacheGUID,
				originatorVisitID:   vi.OriginatorVisitID,
			}, &events)
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return e.check("add visits", err)
	}
	e.emit(events)
	return nil
}

// DeleteURLs removes the URLs and all their visits. Pinned URLs survive
// with zeroed counters.
func (e *Engine) DeleteURLs(ctx context.Context, urls []string) error {
	if err := e.usable(); err != nil {
		return err
	}
	res, err := e.expirer.DeleteURLs(ctx, canonicalURLs(urls))
	if err != nil {
		return e.check("delete urls", err)
	}
	e.emitExpiration(res, false)
	return nil
}

// ExpireBetween deletes visits with begin <= time < end, restricted to urls
// when given. Zero begin and end with no urls deletes all history.
// userInitiated is false for automatic deletions, which are reported as
// expired.
func (e *Engine) ExpireBetween(ctx context.Context, urls []string, begin, end time.Time, userInitiated bool) error {
	if err := e.usable(); err != nil {
		return err
	}
	res, err := e.expirer.ExpireBetween(ctx, canonicalURLs(urls), begin, end)
	if err != nil {
		return e.check("expire between", err)
	}
	e.emitExpiration(res, !userInitiated)
	return nil
}

// ExpireExactTimes deletes the visits whose time equals one of times and
// lies in [begin, end).
func (e *Engine) ExpireExactTimes(ctx context.Context, times []time.Time, begin, end time.Time) error {
	if err := e.usable(); err != nil {
		return err
	}
	res, err := e.expirer.ExpireForTimes(ctx, times, begin, end)
	if err != nil {
		return e.check("expire exact times", err)
	}
	e.emitExpiration(res, false)
	return nil
}

// ExpireOlderThan deletes every visit before cutoff. It is the retention
// sweep, so its deletions are reported as expired.
func (e *Engine) ExpireOlderThan(ctx context.Context, cutoff time.Time) error {
	if err := e.usable(); err != nil {
		return err
	}
	res, err := e.expirer.ExpireOlderThan(ctx, cutoff)
	if err != nil {
		return e.check("expire older than", err)
	}
	e.emitExpiration(res, true)
	return nil
}

// ExpireRetention runs the retention sweep for the configured window. It is
// a no-op without a window.
func (e *Engine) ExpireRetention(ctx context.Context) error {
	if e.retention <= 0 {
		return nil
	}
	return e.ExpireOlderThan(ctx, e.now().Add(-e.retention))
}

// emitExpiration reports an expiration result. Delete-all always emits one
// URLsDeleted; other calls emit only when something was removed.
func (e *Engine) emitExpiration(res expire.Result, expired bool) {
	var events []history.Event
	if res.AllHistory {
		e.redirects.Purge()
		events = append(events, history.URLsDeleted{
			AllHistory: true,
			Expired:    expired,
			Rows:       nonNilRows(res.DeletedRows),
		})
	} else if res.DeletedVisits > 0 || len(res.DeletedRows) > 0 {
		events = append(events, history.URLsDeleted{
			Expired: expired,
			Rows:    nonNilRows(res.DeletedRows),
		})
	}
	if len(res.ModifiedRows) > 0 {
		events = append(events, history.URLsModified{Rows: res.ModifiedRows, FromExpiration: true})
	}
	e.emit(events)
}

// AddContextAnnotations writes the on-visit context fields of a visit.
// Annotations for unknown visits are dropped.
func (e *Engine) AddContextAnnotations(ctx context.Context, id history.VisitID, f history.OnVisitFields) error {
	return e.annotate(ctx, "add context annotations", id, func(tx *store.Tx) error {
		return tx.PutOnVisitAnnotations(ctx, id, f)
	})
}

// SetOnCloseAnnotations writes the on-close context fields of a visit,
// leaving the on-visit fields untouched.
func (e *Engine) SetOnCloseAnnotations(ctx context.Context, id history.VisitID, f history.OnCloseFields) error {
	return e.annotate(ctx, "set on-close annotations", id, func(tx *store.Tx) error {
		return tx.PutOnCloseAnnotations(ctx, id, f)
	})
}

// AddContentAnnotations merges u into the stored content annotations of a
// visit.
func (e *Engine) AddContentAnnotations(ctx context.Context, id history.VisitID, u history.ContentAnnotationsUpdate) error {
	return e.annotate(ctx, "add content annotations", id, func(tx *store.Tx) error {
		current, _, err := tx.GetContentAnnotations(ctx, id)
		if err != nil {
			return err
		}
		return tx.PutContentAnnotations(ctx, id, current.Merge(u))
	})
}

func (e *Engine) annotate(ctx context.Context, op string, id history.VisitID, write func(tx *store.Tx) error) error {
	if err := e.usable(); err != nil {
		return err
	}
	err := e.store.Update(ctx, func(tx *store.Tx) error {
		_, err := tx.GetVisit(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			e.logger.Debug("dropping annotation for unknown visit", "op", op, "visit_id", id)
			return nil
		}
		if err != nil {
			return err
		}
		return write(tx)
	})
	return e.check(op, err)
}

// SetKeywordSearchTerm associates term with rawURL for a search provider.
// Unknown URLs are ignored.
func (e *Engine) SetKeywordSearchTerm(ctx context.Context, rawURL string, keyword history.KeywordID, term string) error {
	if err := e.usable(); err != nil {
		return err
	}

	var (
		row   history.URLRow
		found bool
	)
	err := e.store.Update(ctx, func(tx *store.Tx) error {
		var err error
		row, err = tx.GetURLByString(ctx, urlutil.MustCanonical(rawURL))
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return tx.SetKeywordSearchTerm(ctx, history.KeywordSearchTerm{
			URLID:          row.ID,
			KeywordID:      keyword,
			Term:           term,
			NormalizedTerm: urlutil.NormalizeTerm(term),
		})
	})
	if err != nil {
		return e.check("set keyword search term", err)
	}
	if found {
		e.emit([]history.Event{history.KeywordSearchTermUpdated{Row: row, KeywordID: keyword, Term: term}})
	}
	return nil
}

// DeleteKeywordSearchTerm removes every term of rawURL.
func (e *Engine) DeleteKeywordSearchTerm(ctx context.Context, rawURL string) error {
	if err := e.usable(); err != nil {
		return err
	}

	var id history.URLID
	err := e.store.Update(ctx, func(tx *store.Tx) error {
		row, err := tx.GetURLByString(ctx, urlutil.MustCanonical(rawURL))
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		id = row.ID
		_, err = tx.DeleteKeywordSearchTermsForURL(ctx, row.ID)
		return err
	})
	if err != nil {
		return e.check("delete keyword search term", err)
	}
	if id != 0 {
		e.emit([]history.Event{history.KeywordSearchTermDeleted{URLID: id}})
	}
	return nil
}

// ReplaceClusters deletes clusters by id and inserts new ones.
func (e *Engine) ReplaceClusters(ctx context.Context, deleteIDs []history.ClusterID, clusters []history.Cluster) ([]history.ClusterID, error) {
	if err := e.usable(); err != nil {
		return []history.ClusterID{}, err
	}
	ids, err := e.clusters.ReplaceClusters(ctx, deleteIDs, clusters)
	if err != nil {
		return []history.ClusterID{}, e.check("replace clusters", err)
	}
	return ids, nil
}

// MostRecentClusters returns clusters whose newest visit lies in
// [minTime, maxTime), newest first.
func (e *Engine) MostRecentClusters(ctx context.Context, minTime, maxTime time.Time, maxCount int, withDetails bool) ([]history.Cluster, error) {
	if err := e.usable(); err != nil {
		return []history.Cluster{}, err
	}
	out, err := e.clusters.MostRecentClusters(ctx, minTime, maxTime, maxCount, withDetails)
	if err != nil {
		return []history.Cluster{}, e.check("most recent clusters", err)
	}
	return out, nil
}

// GetCluster reads one cluster. The bool is false when it does not exist or
// none of its visits is fetchable.
func (e *Engine) GetCluster(ctx context.Context, id history.ClusterID, withDetails bool) (history.Cluster, bool, error) {
	if err := e.usable(); err != nil {
		return history.Cluster{}, false, err
	}
	c, ok, err := e.clusters.GetCluster(ctx, id, withDetails)
	if err != nil {
		return history.Cluster{}, false, e.check("get cluster", err)
	}
	return c, ok, nil
}

// NotifyFaviconsChanged re-emits a favicon change unchanged.
func (e *Engine) NotifyFaviconsChanged(pageURLs []string, iconURL string) {
	if e.usable() != nil {
		return
	}
	e.emit([]history.Event{history.FaviconsChanged{PageURLs: pageURLs, IconURL: iconURL}})
}

func canonicalURLs(urls []string) []string {
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		out = append(out, urlutil.MustCanonical(u))
	}
	return out
}

func nonNilRows(rows []history.URLRow) []history.URLRow {
	if rows == nil {
		return []history.URLRow{}
	}
	return rows
}
