// Package expire deletes visits and URL rows while keeping every derived
// aggregate consistent. Each call runs in a single store transaction, so a
// failure leaves the store untouched.
package expire

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/roach88/histcore/internal/history"
	"github.com/roach88/histcore/internal/metrics"
	"github.com/roach88/histcore/internal/store"
)

// deleteBatch bounds the number of ids bound into one DELETE statement.
const deleteBatch = 500

// PinnedURLs reports URLs kept alive by an external reference, such as a
// saved shortcut. Pinned rows survive expiration with zeroed counters.
type PinnedURLs interface {
	IsPinned(url string) bool
}

// NoPins pins nothing.
type NoPins struct{}

func (NoPins) IsPinned(string) bool { return false }

// Result describes what an expiration removed.
type Result struct {
	// AllHistory is set for delete-all calls.
	AllHistory bool

	// DeletedRows are URL rows removed from the store.
	DeletedRows []history.URLRow

	// ModifiedRows are surviving rows whose aggregates changed.
	ModifiedRows []history.URLRow

	DeletedVisits int64
}

// Changed reports whether anything was removed or modified.
func (r Result) Changed() bool {
	return r.DeletedVisits > 0 || len(r.DeletedRows) > 0 || len(r.ModifiedRows) > 0
}

// Expirer runs deletions against a store.
type Expirer struct {
	store  *store.Store
	pinned PinnedURLs
	logger *slog.Logger
}

// Option configures an Expirer.
type Option func(*Expirer)

// WithPinnedURLs sets the pinned URL collaborator.
func WithPinnedURLs(p PinnedURLs) Option {
	return func(e *Expirer) {
		if p != nil {
			e.pinned = p
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Expirer) {
		if l != nil {
			e.logger = l
		}
	}
}

// New creates an Expirer over s.
func New(s *store.Store, opts ...Option) *Expirer {
	e := &Expirer{store: s, pinned: NoPins{}, logger: slog.Default()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ExpireBetween deletes every visit with begin <= time < end, restricted to
// urls when non-empty. A zero end is unbounded. Zero begin and end with no
// URL restriction deletes all history.
func (e *Expirer) ExpireBetween(ctx context.Context, urls []string, begin, end time.Time) (Result, error) {
	if len(urls) == 0 && begin.IsZero() && end.IsZero() {
		return e.DeleteAll(ctx)
	}

	var res Result
	err := e.store.Update(ctx, func(tx *store.Tx) error {
		vq := store.VisitQuery{Begin: begin, End: end}
		if len(urls) > 0 {
			ids, err := resolveURLs(ctx, tx, urls)
			if err != nil {
				return err
			}
			if len(ids) == 0 {
				return nil
			}
			vq.URLIDs = ids
		}
		visits, err := tx.VisitsInRange(ctx, vq)
		if err != nil {
			return err
		}
		res, err = e.expireVisits(ctx, tx, visits)
		return err
	})
	if err != nil {
		return Result{}, err
	}
	e.record("between", res)
	return res, nil
}

// ExpireForTimes deletes the visits whose time exactly equals one of times.
// Times outside [begin, end) are ignored; a zero end is unbounded.
func (e *Expirer) ExpireForTimes(ctx context.Context, times []time.Time, begin, end time.Time) (Result, error) {
	inRange := make([]time.Time, 0, len(times))
	for _, t := range times {
		if t.Before(begin) || (!end.IsZero() && !t.Before(end)) {
			continue
		}
		inRange = append(inRange, t)
	}
	if len(inRange) == 0 {
		return Result{}, nil
	}

	var res Result
	err := e.store.Update(ctx, func(tx *store.Tx) error {
		visits, err := tx.VisitsAtTimes(ctx, inRange)
		if err != nil {
			return err
		}
		res, err = e.expireVisits(ctx, tx, visits)
		return err
	})
	if err != nil {
		return Result{}, err
	}
	e.record("times", res)
	return res, nil
}

// ExpireOlderThan deletes every visit before cutoff. A zero cutoff is a no-op.
func (e *Expirer) ExpireOlderThan(ctx context.Context, cutoff time.Time) (Result, error) {
	if cutoff.IsZero() {
		return Result{}, nil
	}

	var res Result
	err := e.store.Update(ctx, func(tx *store.Tx) error {
		visits, err := tx.VisitsInRange(ctx, store.VisitQuery{End: cutoff})
		if err != nil {
			return err
		}
		res, err = e.expireVisits(ctx, tx, visits)
		return err
	})
	if err != nil {
		return Result{}, err
	}
	e.record("older_than", res)
	return res, nil
}

// DeleteURLs removes the given URLs and all of their visits. Pinned URLs
// survive with zeroed counters. Unknown URLs are ignored.
func (e *Expirer) DeleteURLs(ctx context.Context, urls []string) (Result, error) {
	var res Result
	err := e.store.Update(ctx, func(tx *store.Tx) error {
		ids, err := resolveURLs(ctx, tx, urls)
		if err != nil || len(ids) == 0 {
			return err
		}
		visits, err := tx.VisitsInRange(ctx, store.VisitQuery{URLIDs: ids})
		if err != nil {
			return err
		}
		if res.DeletedVisits, err = deleteVisits(ctx, tx, visits); err != nil {
			return err
		}
		for _, id := range ids {
			if err := e.settleURL(ctx, tx, id, true, &res); err != nil {
				return err
			}
		}
		return e.finish(ctx, tx)
	})
	if err != nil {
		return Result{}, err
	}
	e.record("urls", res)
	return res, nil
}

// DeleteAll removes every visit, keyword term, annotation and cluster.
// Pinned URLs survive with zeroed counters.
func (e *Expirer) DeleteAll(ctx context.Context) (Result, error) {
	res := Result{AllHistory: true}
	err := e.store.Update(ctx, func(tx *store.Tx) error {
		rows, err := tx.ListURLs(ctx)
		if err != nil {
			return err
		}
		if res.DeletedVisits, err = tx.DeleteAllVisits(ctx); err != nil {
			return err
		}
		if err := tx.DeleteAllKeywordSearchTerms(ctx); err != nil {
			return err
		}
		if err := tx.DeleteAllAnnotations(ctx); err != nil {
			return err
		}
		if err := tx.DeleteAllClusters(ctx); err != nil {
			return err
		}
		for _, row := range rows {
			if err := e.settleURL(ctx, tx, row.ID, true, &res); err != nil {
				return err
			}
		}
		_, err = tx.RefreshFirstRecordedTime(ctx)
		return err
	})
	if err != nil {
		return Result{}, err
	}
	e.record("all", res)
	return res, nil
}

// expireVisits deletes visits and settles every URL they belonged to.
func (e *Expirer) expireVisits(ctx context.Context, tx *store.Tx, visits []history.VisitRow) (Result, error) {
	var res Result
	if len(visits) == 0 {
		return res, nil
	}

	n, err := deleteVisits(ctx, tx, visits)
	if err != nil {
		return Result{}, err
	}
	res.DeletedVisits = n

	seen := make(map[history.URLID]bool, len(visits))
	for _, v := range visits {
		if seen[v.URLID] {
			continue
		}
		seen[v.URLID] = true
		if err := e.settleURL(ctx, tx, v.URLID, false, &res); err != nil {
			return Result{}, err
		}
	}
	return res, e.finish(ctx, tx)
}

// settleURL recomputes a URL's aggregates after some of its visits were
// removed and deletes the row once nothing keeps it alive. With force the
// row is deleted even if visits remain.
func (e *Expirer) settleURL(ctx context.Context, tx *store.Tx, id history.URLID, force bool, res *Result) error {
	before, err := tx.GetURL(ctx, id)
	if err != nil {
		return err
	}
	row, err := tx.RecomputeURL(ctx, id)
	if err != nil {
		return err
	}

	if row.VisitCount > 0 && !force {
		res.ModifiedRows = append(res.ModifiedRows, row)
		return nil
	}
	if e.pinned.IsPinned(row.URL) {
		row, err = tx.ResetURL(ctx, id)
		if err != nil {
			return err
		}
		if row != before {
			res.ModifiedRows = append(res.ModifiedRows, row)
		}
		return nil
	}
	if err := tx.DeleteURL(ctx, id); err != nil {
		return err
	}
	res.DeletedRows = append(res.DeletedRows, row)
	return nil
}

// finish removes clusters left empty and refreshes the first recorded time.
func (e *Expirer) finish(ctx context.Context, tx *store.Tx) error {
	n, err := tx.DeleteEmptyClusters(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		e.logger.Debug("removed empty clusters", "count", n)
	}
	_, err = tx.RefreshFirstRecordedTime(ctx)
	return err
}

func (e *Expirer) record(reason string, res Result) {
	if res.DeletedVisits > 0 {
		metrics.VisitsExpired.WithLabelValues(reason).Add(float64(res.DeletedVisits))
	}
	e.logger.Debug("expired history",
		"reason", reason,
		"visits", res.DeletedVisits,
		"deleted_urls", len(res.DeletedRows),
		"modified_urls", len(res.ModifiedRows),
	)
}

func deleteVisits(ctx context.Context, tx *store.Tx, visits []history.VisitRow) (int64, error) {
	var total int64
	ids := make([]history.VisitID, 0, deleteBatch)
	flush := func() error {
		n, err := tx.DeleteVisits(ctx, ids)
		total += n
		ids = ids[:0]
		return err
	}
	for _, v := range visits {
		ids = append(ids, v.ID)
		if len(ids) == deleteBatch {
			if err := flush(); err != nil {
				return 0, err
			}
		}
	}
	if err := flush(); err != nil {
		return 0, err
	}
	return total, nil
}

func resolveURLs(ctx context.Context, tx *store.Tx, urls []string) ([]history.URLID, error) {
	ids := make([]history.URLID, 0, len(urls))
	seen := make(map[history.URLID]bool, len(urls))
	for _, u := range urls {
		row, err := tx.GetURLByString(ctx, u)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if !seen[row.ID] {
			seen[row.ID] = true
			ids = append(ids, row.ID)
		}
	}
	return ids, nil
}
