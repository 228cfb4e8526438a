package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/roach88/histcore/internal/history"
)

const visitColumns = `v.id, v.url_id, v.visit_time, v.transition, v.referring_visit, v.opener_visit,
	v.duration, v.typed_credit, v.originator_cache_guid, v.originator_visit_id,
	COALESCE(vs.source, 1)`

const visitFrom = `FROM visits v LEFT JOIN visit_source vs ON vs.visit_id = v.id`

// visibleFilter selects visits shown in history listings: chain ends of
// main-frame, non keyword-generated navigations on non-hidden URLs.
const visibleFilter = `(v.transition & 536870912) != 0
	AND (v.transition & 255) NOT IN (3, 4, 10)
	AND v.url_id IN (SELECT id FROM urls WHERE hidden = 0)`

func scanVisit(r rowScanner) (history.VisitRow, error) {
	var (
		v                           history.VisitRow
		id, urlID, visitTime        int64
		transition                  int64
		referring, opener, duration int64
		typed                       int
		originatorVisit             int64
		source                      int
	)
	if err := r.Scan(&id, &urlID, &visitTime, &transition, &referring, &opener,
		&duration, &typed, &v.OriginatorCacheGUID, &originatorVisit, &source); err != nil {
		return history.VisitRow{}, err
	}
	v.ID = history.VisitID(id)
	v.URLID = history.URLID(urlID)
	v.VisitTime = fromMicros(visitTime)
	v.Transition = history.Transition(uint32(transition))
	v.ReferringVisit = history.VisitID(referring)
	v.OpenerVisit = history.VisitID(opener)
	v.Duration = time.Duration(duration) * time.Microsecond
	v.TypedCredit = typed != 0
	v.OriginatorVisitID = originatorVisit
	v.Source = history.VisitSource(source)
	return v, nil
}

func (q queries) collectVisits(ctx context.Context, op, query string, args ...any) ([]history.VisitRow, error) {
	rows, err := q.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrap(op, err)
	}
	defer rows.Close()

	out := []history.VisitRow{}
	for rows.Next() {
		v, err := scanVisit(rows)
		if err != nil {
			return nil, wrap(op, err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap(op, err)
	}
	return out, nil
}

// InsertVisit stores a visit and, for non-browsed sources, its source row.
// The id in v is ignored.
func (q queries) InsertVisit(ctx context.Context, v history.VisitRow) (history.VisitID, error) {
	res, err := q.q.ExecContext(ctx, `
		INSERT INTO visits
		(url_id, visit_time, transition, referring_visit, opener_visit, duration,
		 typed_credit, originator_cache_guid, originator_visit_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		int64(v.URLID),
		toMicros(v.VisitTime),
		int64(v.Transition),
		int64(v.ReferringVisit),
		int64(v.OpenerVisit),
		v.Duration.Microseconds(),
		boolToInt(v.TypedCredit),
		v.OriginatorCacheGUID,
		v.OriginatorVisitID,
	)
	if err != nil {
		return 0, wrap("insert visit", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, wrap("insert visit: last insert id", err)
	}

	if v.Source != history.SourceBrowsed {
		if _, err := q.q.ExecContext(ctx,
			`INSERT INTO visit_source (visit_id, source) VALUES (?, ?)`, id, int(v.Source)); err != nil {
			return 0, wrap("insert visit source", err)
		}
	}
	return history.VisitID(id), nil
}

// GetVisit retrieves a visit by id.
// Returns ErrNotFound if absent.
func (q queries) GetVisit(ctx context.Context, id history.VisitID) (history.VisitRow, error) {
	v, err := scanVisit(q.q.QueryRowContext(ctx,
		`SELECT `+visitColumns+` `+visitFrom+` WHERE v.id = ?`, int64(id)))
	if errors.Is(err, sql.ErrNoRows) {
		return history.VisitRow{}, ErrNotFound
	}
	return v, wrap("get visit", err)
}

// SetVisitTransition rewrites the transition of a visit.
func (q queries) SetVisitTransition(ctx context.Context, id history.VisitID, t history.Transition) error {
	_, err := q.q.ExecContext(ctx,
		`UPDATE visits SET transition = ? WHERE id = ?`, int64(t), int64(id))
	return wrap("set visit transition", err)
}

// SetVisitDuration rewrites the duration of a visit.
func (q queries) SetVisitDuration(ctx context.Context, id history.VisitID, d time.Duration) error {
	_, err := q.q.ExecContext(ctx,
		`UPDATE visits SET duration = ? WHERE id = ?`, d.Microseconds(), int64(id))
	return wrap("set visit duration", err)
}

// VisitsForURL returns the visits of a URL, newest first.
func (q queries) VisitsForURL(ctx context.Context, urlID history.URLID) ([]history.VisitRow, error) {
	return q.collectVisits(ctx, "visits for url",
		`SELECT `+visitColumns+` `+visitFrom+`
		 WHERE v.url_id = ?
		 ORDER BY v.visit_time DESC, v.id DESC`, int64(urlID))
}

// VisitQuery bounds VisibleVisits and VisitsInRange. A zero End is
// unbounded. URLIDs, when non-empty, restricts the result.
type VisitQuery struct {
	Begin       time.Time
	End         time.Time
	URLIDs      []history.URLID
	OldestFirst bool
	Limit       int
}

func (vq VisitQuery) where(extra string) (string, []any) {
	clause := `v.visit_time >= ?`
	args := []any{toMicros(vq.Begin)}
	if !vq.End.IsZero() {
		clause += ` AND v.visit_time < ?`
		args = append(args, toMicros(vq.End))
	}
	if len(vq.URLIDs) > 0 {
		clause += ` AND v.url_id` + inList
		args = append(args, idList(vq.URLIDs))
	}
	if extra != "" {
		clause += ` AND ` + extra
	}
	return clause, args
}

func (vq VisitQuery) orderLimit() string {
	order := ` ORDER BY v.visit_time DESC, v.id DESC`
	if vq.OldestFirst {
		order = ` ORDER BY v.visit_time ASC, v.id ASC`
	}
	if vq.Limit > 0 {
		order += ` LIMIT ` + formatInt(int64(vq.Limit))
	}
	return order
}

// VisibleVisits returns the visits shown in history listings that fall in
// the query range.
func (q queries) VisibleVisits(ctx context.Context, vq VisitQuery) ([]history.VisitRow, error) {
	where, args := vq.where(visibleFilter)
	return q.collectVisits(ctx, "visible visits",
		`SELECT `+visitColumns+` `+visitFrom+` WHERE `+where+vq.orderLimit(), args...)
}

// VisitsInRange returns every visit in the query range.
func (q queries) VisitsInRange(ctx context.Context, vq VisitQuery) ([]history.VisitRow, error) {
	where, args := vq.where("")
	return q.collectVisits(ctx, "visits in range",
		`SELECT `+visitColumns+` `+visitFrom+` WHERE `+where+vq.orderLimit(), args...)
}

// VisitsAtTimes returns every visit whose time exactly equals one of times.
func (q queries) VisitsAtTimes(ctx context.Context, times []time.Time) ([]history.VisitRow, error) {
	if len(times) == 0 {
		return []history.VisitRow{}, nil
	}
	micros := make([]int64, len(times))
	for i, t := range times {
		micros[i] = toMicros(t)
	}
	return q.collectVisits(ctx, "visits at times",
		`SELECT `+visitColumns+` `+visitFrom+`
		 WHERE v.visit_time`+inList+`
		 ORDER BY v.visit_time DESC, v.id DESC`, idList(micros))
}

// DeleteVisits removes visits by id. Annotations, sources and cluster visits
// cascade.
func (q queries) DeleteVisits(ctx context.Context, ids []history.VisitID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res, err := q.q.ExecContext(ctx,
		`DELETE FROM visits WHERE id`+inList, idList(ids))
	if err != nil {
		return 0, wrap("delete visits", err)
	}
	n, err := res.RowsAffected()
	return n, wrap("delete visits: rows affected", err)
}

// RedirectFrom returns the visit that visit redirected to, if any.
func (q queries) RedirectFrom(ctx context.Context, id history.VisitID) (history.VisitRow, bool, error) {
	v, err := scanVisit(q.q.QueryRowContext(ctx,
		`SELECT `+visitColumns+` `+visitFrom+`
		 WHERE v.referring_visit = ? AND (v.transition & 3221225472) != 0
		 ORDER BY v.id ASC LIMIT 1`, int64(id)))
	if errors.Is(err, sql.ErrNoRows) {
		return history.VisitRow{}, false, nil
	}
	if err != nil {
		return history.VisitRow{}, false, wrap("redirect from", err)
	}
	return v, true, nil
}

// FirstVisitTime returns the oldest stored visit time, or the zero time for
// an empty store.
func (q queries) FirstVisitTime(ctx context.Context) (time.Time, error) {
	var t int64
	err := q.q.QueryRowContext(ctx, `SELECT COALESCE(MIN(visit_time), 0) FROM visits`).Scan(&t)
	if err != nil {
		return time.Time{}, wrap("first visit time", err)
	}
	return fromMicros(t), nil
}

// MostVisited ranks non-hidden URLs by their visible visits since the given
// time. Ties break on the newest visit, then on id.
func (q queries) MostVisited(ctx context.Context, since time.Time, limit int) ([]history.MostVisitedURL, error) {
	rows, err := q.q.QueryContext(ctx, `
		SELECT u.url, u.title, COUNT(*) AS n, MAX(v.visit_time) AS last
		FROM visits v JOIN urls u ON u.id = v.url_id
		WHERE v.visit_time >= ?
		  AND u.hidden = 0
		  AND (v.transition & 536870912) != 0
		  AND (v.transition & 255) NOT IN (3, 4, 10)
		GROUP BY u.id
		ORDER BY n DESC, last DESC, u.id ASC
		LIMIT ?
	`, toMicros(since), limit)
	if err != nil {
		return nil, wrap("most visited", err)
	}
	defer rows.Close()

	out := []history.MostVisitedURL{}
	for rows.Next() {
		var (
			mv   history.MostVisitedURL
			last int64
		)
		if err := rows.Scan(&mv.URL, &mv.Title, &mv.VisitCount, &last); err != nil {
			return nil, wrap("most visited", err)
		}
		out = append(out, mv)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("most visited", err)
	}
	return out, nil
}
