// Package resolver walks the redirect and referral graph formed by visit
// records.
//
// Visits reference each other only through integer ids resolved with a
// Graph lookup. Every referring_visit points at a strictly earlier visit, so
// a walk that steps to an equal or larger id, or revisits an id, has found a
// corrupted graph. Such walks report "no chain" instead of looping; builds
// with the histdebug tag panic.
package resolver

import (
	"context"
	"errors"
	"log/slog"

	"github.com/roach88/histcore/internal/history"
	"github.com/roach88/histcore/internal/store"
)

// Graph is the read access the resolver needs. *store.Store and *store.Tx
// implement it.
type Graph interface {
	GetVisit(ctx context.Context, id history.VisitID) (history.VisitRow, error)
	GetURL(ctx context.Context, id history.URLID) (history.URLRow, error)
	RedirectFrom(ctx context.Context, id history.VisitID) (history.VisitRow, bool, error)
}

type loggerKey struct{}

// WithLogger returns a context whose walks report graph invariant
// violations to l. Walks without one use slog.Default.
func WithLogger(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, l)
}

func loggerFrom(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok && l != nil {
		return l
	}
	return slog.Default()
}

// walker tracks the ids a single walk has passed through.
type walker struct {
	op     string
	seen   map[history.VisitID]bool
	logger *slog.Logger
}

func newWalker(ctx context.Context, op string, start history.VisitID) *walker {
	return &walker{op: op, seen: map[history.VisitID]bool{start: true}, logger: loggerFrom(ctx)}
}

// backward validates a step from cur to its referrer.
func (w *walker) backward(cur history.VisitRow, next history.VisitID) bool {
	if next >= cur.ID {
		invariantViolated(w.logger, "forward reference", "op", w.op, "visit_id", cur.ID, "referring_visit", next)
		return false
	}
	return w.mark(next)
}

// forward validates a step from cur to a visit that redirected from it.
func (w *walker) forward(cur history.VisitID, next history.VisitID) bool {
	if next <= cur {
		invariantViolated(w.logger, "backward redirect target", "op", w.op, "visit_id", cur, "redirect_visit", next)
		return false
	}
	return w.mark(next)
}

func (w *walker) mark(id history.VisitID) bool {
	if w.seen[id] {
		invariantViolated(w.logger, "loop in visit chain", "op", w.op, "visit_id", id)
		return false
	}
	w.seen[id] = true
	return true
}

// continuesBackward reports whether v is a redirect hop whose chain began
// at an earlier visit.
func continuesBackward(v history.VisitRow) bool {
	return !v.Transition.IsChainStart() && v.Transition.IsRedirect() && v.ReferringVisit != 0
}

// ChainStart returns the first visit of the redirect chain v belongs to. A
// visit that starts its own chain is returned unchanged. When an earlier hop
// no longer exists the oldest surviving hop is returned. The bool is false
// only when the graph violates its ordering invariant.
func ChainStart(ctx context.Context, g Graph, v history.VisitRow) (history.VisitRow, bool, error) {
	chain, ok, err := walkBack(ctx, g, "chain start", v)
	if err != nil || !ok {
		return history.VisitRow{}, false, err
	}
	return chain[len(chain)-1], true, nil
}

// FullChain returns every visit of v's redirect chain up to and including v,
// oldest first.
func FullChain(ctx context.Context, g Graph, v history.VisitRow) ([]history.VisitRow, bool, error) {
	chain, ok, err := walkBack(ctx, g, "full chain", v)
	if err != nil || !ok {
		return nil, false, err
	}
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain, true, nil
}

// walkBack returns v followed by its predecessors, newest first.
func walkBack(ctx context.Context, g Graph, op string, v history.VisitRow) ([]history.VisitRow, bool, error) {
	w := newWalker(ctx, op, v.ID)
	chain := []history.VisitRow{v}
	cur := v
	for continuesBackward(cur) {
		if !w.backward(cur, cur.ReferringVisit) {
			return nil, false, nil
		}
		prev, err := g.GetVisit(ctx, cur.ReferringVisit)
		if errors.Is(err, store.ErrNotFound) {
			break
		}
		if err != nil {
			return nil, false, err
		}
		chain = append(chain, prev)
		cur = prev
	}
	return chain, true, nil
}

// RedirectAndOpenerForAnnotation returns the referring visit and the opener
// of the chain start of v, so callers see the navigation that really led to
// v instead of intermediate redirect hops.
func RedirectAndOpenerForAnnotation(ctx context.Context, g Graph, v history.VisitRow) (referring, opener history.VisitID, err error) {
	start, ok, err := ChainStart(ctx, g, v)
	if err != nil || !ok {
		return 0, 0, err
	}
	return start.ReferringVisit, start.OpenerVisit, nil
}

// RedirectsFrom follows redirects forward from v and returns the URLs it
// reached, in order.
func RedirectsFrom(ctx context.Context, g Graph, v history.VisitRow) (history.RedirectList, error) {
	w := newWalker(ctx, "redirects from", v.ID)
	out := history.RedirectList{}
	cur := v.ID
	for {
		next, ok, err := g.RedirectFrom(ctx, cur)
		if err != nil {
			return nil, err
		}
		if !ok || !w.forward(cur, next.ID) {
			return out, nil
		}
		row, err := g.GetURL(ctx, next.URLID)
		if errors.Is(err, store.ErrNotFound) {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		out = append(out, row.URL)
		cur = next.ID
	}
}

// RedirectsTo follows redirects backward from v and returns the URLs that led
// to it, nearest first. For a chain A -> B -> C and v = C the result is
// {B, A}.
func RedirectsTo(ctx context.Context, g Graph, v history.VisitRow) (history.RedirectList, error) {
	chain, ok, err := walkBack(ctx, g, "redirects to", v)
	if err != nil {
		return nil, err
	}
	out := history.RedirectList{}
	if !ok {
		return out, nil
	}
	for _, hop := range chain[1:] {
		row, err := g.GetURL(ctx, hop.URLID)
		if errors.Is(err, store.ErrNotFound) {
			break
		}
		if err != nil {
			return nil, err
		}
		out = append(out, row.URL)
	}
	return out, nil
}
