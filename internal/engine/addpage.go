package engine

import (
	"context"
	"errors"
	"time"

	"github.com/roach88/histcore/internal/history"
	"github.com/roach88/histcore/internal/metrics"
	"github.com/roach88/histcore/internal/resolver"
	"github.com/roach88/histcore/internal/store"
	"github.com/roach88/histcore/internal/urlutil"
)

// visitSpec is one visit to write through addPageVisit.
type visitSpec struct {
	url        string
	time       time.Time
	referring  history.VisitID
	opener     history.VisitID
	transition history.Transition
	hidden     bool
	source     history.VisitSource
	typed      bool
	title      string

	originatorCacheGUID string
	originatorVisitID   int64
}

// AddPage records a navigation and returns the ids of the last visit
// written. URLs the policy refuses, and URLs that cannot be parsed, are
// skipped silently and return zero ids.
func (e *Engine) AddPage(ctx context.Context, args history.AddPageArgs) (history.URLID, history.VisitID, error) {
	if err := e.usable(); err != nil {
		return 0, 0, err
	}

	u, canonical, err := urlutil.Canonicalize(args.URL)
	if err != nil {
		e.logger.Debug("not recording url", "url", args.URL, "error", err)
		return 0, 0, nil
	}
	if !e.policy.CanAddURL(u) {
		metrics.PolicyRejections.Inc()
		e.logger.Debug("policy refused url", "url", canonical)
		return 0, 0, nil
	}
	args.URL = canonical
	args.Referrer = canonicalOrEmpty(args.Referrer)
	args.Redirects = canonicalChain(args.Redirects, canonical)
	if args.Opener != nil {
		opener := *args.Opener
		opener.URL = canonicalOrEmpty(opener.URL)
		args.Opener = &opener
	}

	var (
		lastURL   history.URLID
		lastVisit history.VisitID
		events    []history.Event
	)
	err = e.store.Update(ctx, func(tx *store.Tx) error {
		var err error
		lastURL, lastVisit, events, err = e.addPage(ctx, tx, args)
		return err
	})
	if err != nil {
		return 0, 0, e.check("add page", err)
	}

	e.emit(events)
	return lastURL, lastVisit, nil
}

func (e *Engine) addPage(ctx context.Context, tx *store.Tx, args history.AddPageArgs) (history.URLID, history.VisitID, []history.Event, error) {
	var events []history.Event

	fromVisit := e.tracker.lastVisit(args.Context, args.NavEntryID, args.Referrer)
	lastVisit := fromVisit
	var lastURL history.URLID

	transition := args.Transition
	keywordGenerated := transition.CoreIs(history.TransitionKeywordGenerated)
	hasRedirects := len(args.Redirects) > 1

	promote, err := e.shouldPromoteIntranet(ctx, tx, args.URL, transition)
	if err != nil {
		return 0, 0, nil, err
	}
	if !promote && hasRedirects {
		if promote, err = e.shouldPromoteIntranet(ctx, tx, args.Redirects[0], transition); err != nil {
			return 0, 0, nil, err
		}
	}
	if promote {
		transition = history.TransitionTyped | transition.Qualifiers()
	}

	var openerVisit history.VisitID
	if args.Opener != nil {
		openerVisit = e.tracker.lastVisit(args.Opener.Context, args.Opener.NavEntryID, args.Opener.URL)
	}

	hidden := args.Hidden || !transition.IsMainFrame() || args.HTTPStatus >= 400

	var finalVisit history.VisitRow
	if !hasRedirects {
		t := transition | history.QualifierChainStart | history.QualifierChainEnd
		row, visit, err := e.addPageVisit(ctx, tx, visitSpec{
			url:        args.URL,
			time:       args.Time,
			referring:  lastVisit,
			opener:     openerVisit,
			transition: t,
			hidden:     hidden,
			source:     args.Source,
			typed:      history.IsTypedIncrement(t),
			title:      args.Title,
		}, &events)
		if err != nil {
			return 0, 0, nil, err
		}
		lastURL, lastVisit, finalVisit = row.ID, visit.ID, visit

		if !keywordGenerated {
			if err := updateVisitDuration(ctx, tx, fromVisit, args.Time); err != nil {
				return 0, 0, nil, err
			}
		}
	} else {
		redirectInfo := history.QualifierChainStart
		redirects := append(history.RedirectList(nil), args.Redirects...)
		var extended history.RedirectList

		if urlutil.Scheme(redirects[0]) == "about" {
			// The page that opened about:blank is unknown, so the chain is
			// not hooked up to a source.
			redirects = redirects[1:]
		} else if transition&history.QualifierClientRedirect != 0 {
			redirectInfo = history.QualifierClientRedirect
			if args.Referrer != "" {
				// The referrer is already stored as the previous visit.
				redirects = redirects[1:]
				if args.DidReplaceEntry {
					if err := clearChainEnd(ctx, tx, lastVisit); err != nil {
						return 0, 0, nil, err
					}
					if chain, ok := e.redirects.Get(args.Referrer); ok {
						extended = append(extended, chain...)
					}
				}
			}
		}

		creditTarget := resolver.NoTypedCredit
		if len(redirects) > 1 {
			if history.IsTypedIncrement(transition) {
				creditTarget = resolver.TypedCreditTarget(redirects, transition)
			}
			if creditTarget != 1 && transition.CoreIs(history.TransitionFormSubmit) {
				// The posting page already has its title.
				redirects = redirects[1:]
			}
		}

		for i, hop := range redirects {
			t := transition.StripQualifiers() | redirectInfo
			if i == len(redirects)-1 {
				t |= history.QualifierChainEnd
			}

			typed := history.IsTypedIncrement(t)
			if creditTarget == 1 {
				typed = i == 1
			}

			var opener history.VisitID
			if i == 0 {
				opener = openerVisit
			}

			row, visit, err := e.addPageVisit(ctx, tx, visitSpec{
				url:        hop,
				time:       args.Time,
				referring:  lastVisit,
				opener:     opener,
				transition: t,
				hidden:     hidden,
				source:     args.Source,
				typed:      typed,
				title:      args.Title,
			}, &events)
			if err != nil {
				return 0, 0, nil, err
			}
			lastURL, lastVisit, finalVisit = row.ID, visit.ID, visit

			if t.IsChainStart() {
				if err := updateVisitDuration(ctx, tx, fromVisit, args.Time); err != nil {
					return 0, 0, nil, err
				}
			}

			redirectInfo = history.QualifierServerRedirect
		}

		e.redirects.Add(args.URL, append(extended, redirects...))
	}

	if args.ContextAnnotations != nil && finalVisit.ID != 0 {
		if err := tx.PutOnVisitAnnotations(ctx, finalVisit.ID, args.ContextAnnotations.OnVisit); err != nil {
			return 0, 0, nil, err
		}
	}

	if transition.IsMainFrame() && !keywordGenerated {
		e.tracker.addVisit(args.Context, args.NavEntryID, args.URL, lastVisit)
	}

	return lastURL, lastVisit, events, nil
}

// shouldPromoteIntranet reports whether a navigation to rawURL earns the
// intranet promotion to TYPED: an intranet candidate whose host has no
// typed URL yet.
func (e *Engine) shouldPromoteIntranet(ctx context.Context, tx *store.Tx, rawURL string, t history.Transition) (bool, error) {
	if !resolver.ShouldPromoteIntranet(rawURL, t) {
		return false, nil
	}
	typed, err := tx.IsTypedHost(ctx, urlutil.Host(rawURL))
	if err != nil {
		return false, err
	}
	return !typed, nil
}

// addPageVisit writes one visit, creating the URL row when needed, and
// recomputes the URL aggregates. A URL can only be un-hidden here, never
// hidden.
func (e *Engine) addPageVisit(ctx context.Context, tx *store.Tx, vs visitSpec, events *[]history.Event) (history.URLRow, history.VisitRow, error) {
	row, err := tx.GetURLByString(ctx, vs.url)
	switch {
	case errors.Is(err, store.ErrNotFound):
		row = history.URLRow{URL: vs.url, Title: vs.title, Hidden: vs.hidden}
		if row.ID, err = tx.InsertURL(ctx, row); err != nil {
			return history.URLRow{}, history.VisitRow{}, err
		}
	case err != nil:
		return history.URLRow{}, history.VisitRow{}, err
	default:
		if vs.title != "" {
			if _, err := tx.SetTitle(ctx, row.ID, vs.title); err != nil {
				return history.URLRow{}, history.VisitRow{}, err
			}
		}
		if !vs.hidden && row.Hidden {
			if err := tx.SetHidden(ctx, row.ID, false); err != nil {
				return history.URLRow{}, history.VisitRow{}, err
			}
		}
	}

	visit := history.VisitRow{
		URLID:               row.ID,
		VisitTime:           vs.time,
		Transition:          vs.transition,
		ReferringVisit:      vs.referring,
		OpenerVisit:         vs.opener,
		Source:              vs.source,
		TypedCredit:         vs.typed,
		OriginatorCacheGUID: vs.originatorCacheGUID,
		OriginatorVisitID:   vs.originatorVisitID,
	}
	if visit.ID, err = tx.InsertVisit(ctx, visit); err != nil {
		return history.URLRow{}, history.VisitRow{}, err
	}
	// Reload so times carry the stored precision.
	if visit, err = tx.GetVisit(ctx, visit.ID); err != nil {
		return history.URLRow{}, history.VisitRow{}, err
	}
	if row, err = tx.RecomputeURL(ctx, row.ID); err != nil {
		return history.URLRow{}, history.VisitRow{}, err
	}
	if err := noteVisitTime(ctx, tx, visit.VisitTime); err != nil {
		return history.URLRow{}, history.VisitRow{}, err
	}

	*events = append(*events, history.URLVisited{Row: row, Visit: visit})
	return row, visit, nil
}

// noteVisitTime moves the first recorded time back when t is older.
func noteVisitTime(ctx context.Context, tx *store.Tx, t time.Time) error {
	first, err := tx.FirstRecordedTime(ctx)
	if err != nil {
		return err
	}
	if first.IsZero() || t.Before(first) {
		_, err = tx.RefreshFirstRecordedTime(ctx)
	}
	return err
}

// updateVisitDuration sets the duration of a visit to end minus its visit
// time, clamped at zero. Unknown visits are ignored.
func updateVisitDuration(ctx context.Context, tx *store.Tx, id history.VisitID, end time.Time) error {
	if id == 0 {
		return nil
	}
	v, err := tx.GetVisit(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	d := end.Sub(v.VisitTime)
	if d < 0 {
		d = 0
	}
	return tx.SetVisitDuration(ctx, id, d)
}

// clearChainEnd strips CHAIN_END from a visit whose navigation entry was
// replaced by a client redirect.
func clearChainEnd(ctx context.Context, tx *store.Tx, id history.VisitID) error {
	if id == 0 {
		return nil
	}
	v, err := tx.GetVisit(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if !v.Transition.IsChainEnd() {
		return nil
	}
	return tx.SetVisitTransition(ctx, id, v.Transition&^history.QualifierChainEnd)
}

func canonicalOrEmpty(raw string) string {
	if raw == "" {
		return ""
	}
	_, s, err := urlutil.Canonicalize(raw)
	if err != nil {
		return ""
	}
	return s
}

// canonicalChain canonicalizes every hop and makes sure the chain ends at
// final.
func canonicalChain(chain history.RedirectList, final string) history.RedirectList {
	if len(chain) == 0 {
		return nil
	}
	out := make(history.RedirectList, 0, len(chain)+1)
	for _, hop := range chain {
		out = append(out, urlutil.MustCanonical(hop))
	}
	if out[len(out)-1] != final {
		out = append(out, final)
	}
	return out
}
