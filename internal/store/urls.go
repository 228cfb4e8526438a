package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/roach88/histcore/internal/history"
)

const urlColumns = `id, url, title, visit_count, typed_count, last_visit, hidden`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanURL(r rowScanner) (history.URLRow, error) {
	var (
		row       history.URLRow
		id        int64
		lastVisit int64
		hidden    int
	)
	if err := r.Scan(&id, &row.URL, &row.Title, &row.VisitCount, &row.TypedCount, &lastVisit, &hidden); err != nil {
		return history.URLRow{}, err
	}
	row.ID = history.URLID(id)
	row.LastVisit = fromMicros(lastVisit)
	row.Hidden = hidden != 0
	return row, nil
}

func (q queries) collectURLs(ctx context.Context, op, query string, args ...any) ([]history.URLRow, error) {
	rows, err := q.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrap(op, err)
	}
	defer rows.Close()

	out := []history.URLRow{}
	for rows.Next() {
		row, err := scanURL(rows)
		if err != nil {
			return nil, wrap(op, err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap(op, err)
	}
	return out, nil
}

// GetURL retrieves a URL row by id.
// Returns ErrNotFound if absent.
func (q queries) GetURL(ctx context.Context, id history.URLID) (history.URLRow, error) {
	row, err := scanURL(q.q.QueryRowContext(ctx,
		`SELECT `+urlColumns+` FROM urls WHERE id = ?`, int64(id)))
	if errors.Is(err, sql.ErrNoRows) {
		return history.URLRow{}, ErrNotFound
	}
	return row, wrap("get url", err)
}

// GetURLByString retrieves a URL row by its exact canonical string.
// Returns ErrNotFound if absent.
func (q queries) GetURLByString(ctx context.Context, url string) (history.URLRow, error) {
	row, err := scanURL(q.q.QueryRowContext(ctx,
		`SELECT `+urlColumns+` FROM urls WHERE url = ?`, url))
	if errors.Is(err, sql.ErrNoRows) {
		return history.URLRow{}, ErrNotFound
	}
	return row, wrap("get url by string", err)
}

// InsertURL stores a new URL row and returns its id. Aggregates in row are
// written as given; callers recompute them once visits exist.
func (q queries) InsertURL(ctx context.Context, row history.URLRow) (history.URLID, error) {
	res, err := q.q.ExecContext(ctx, `
		INSERT INTO urls (url, title, visit_count, typed_count, last_visit, hidden)
		VALUES (?, ?, ?, ?, ?, ?)
	`, row.URL, row.Title, row.VisitCount, row.TypedCount, toMicros(row.LastVisit), boolToInt(row.Hidden))
	if err != nil {
		return 0, wrap("insert url", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, wrap("insert url: last insert id", err)
	}
	return history.URLID(id), nil
}

// SetTitle updates a URL's title. Returns false when the title was already
// equal or the row is missing.
func (q queries) SetTitle(ctx context.Context, id history.URLID, title string) (bool, error) {
	res, err := q.q.ExecContext(ctx,
		`UPDATE urls SET title = ? WHERE id = ? AND title != ?`, title, int64(id), title)
	if err != nil {
		return false, wrap("set title", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, wrap("set title: rows affected", err)
	}
	return n > 0, nil
}

// SetHidden updates a URL's hidden flag.
func (q queries) SetHidden(ctx context.Context, id history.URLID, hidden bool) error {
	_, err := q.q.ExecContext(ctx,
		`UPDATE urls SET hidden = ? WHERE id = ?`, boolToInt(hidden), int64(id))
	return wrap("set hidden", err)
}

// SetLastVisit overrides last_visit. Used for rows without visits, such as
// bookmark-style inserts.
func (q queries) SetLastVisit(ctx context.Context, id history.URLID, lastVisit int64) error {
	_, err := q.q.ExecContext(ctx,
		`UPDATE urls SET last_visit = ? WHERE id = ?`, lastVisit, int64(id))
	return wrap("set last visit", err)
}

// RecomputeURL rewrites visit_count, typed_count and last_visit from the
// surviving visits of the URL and returns the updated row.
func (q queries) RecomputeURL(ctx context.Context, id history.URLID) (history.URLRow, error) {
	_, err := q.q.ExecContext(ctx, `
		UPDATE urls SET
			visit_count = (SELECT COUNT(*) FROM visits WHERE url_id = urls.id),
			typed_count = (SELECT COUNT(*) FROM visits WHERE url_id = urls.id AND typed_credit = 1),
			last_visit  = COALESCE((SELECT MAX(visit_time) FROM visits WHERE url_id = urls.id), 0)
		WHERE id = ?
	`, int64(id))
	if err != nil {
		return history.URLRow{}, wrap("recompute url", err)
	}
	return q.GetURL(ctx, id)
}

// ResetURL zeroes the aggregates of a row kept alive without visits.
func (q queries) ResetURL(ctx context.Context, id history.URLID) (history.URLRow, error) {
	_, err := q.q.ExecContext(ctx,
		`UPDATE urls SET visit_count = 0, typed_count = 0, last_visit = 0 WHERE id = ?`, int64(id))
	if err != nil {
		return history.URLRow{}, wrap("reset url", err)
	}
	return q.GetURL(ctx, id)
}

// DeleteURL removes a URL row. Its visits, keyword terms and dependent
// annotations cascade.
func (q queries) DeleteURL(ctx context.Context, id history.URLID) error {
	_, err := q.q.ExecContext(ctx, `DELETE FROM urls WHERE id = ?`, int64(id))
	return wrap("delete url", err)
}

// CountVisitsForURL returns the number of stored visits of a URL.
func (q queries) CountVisitsForURL(ctx context.Context, id history.URLID) (int, error) {
	var n int
	err := q.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM visits WHERE url_id = ?`, int64(id)).Scan(&n)
	return n, wrap("count visits for url", err)
}

// ListURLs returns every URL row ordered by id.
func (q queries) ListURLs(ctx context.Context) ([]history.URLRow, error) {
	return q.collectURLs(ctx, "list urls",
		`SELECT `+urlColumns+` FROM urls ORDER BY id ASC`)
}

// ScanURLs calls fn for every URL row in id order until fn returns false.
func (q queries) ScanURLs(ctx context.Context, fn func(history.URLRow) bool) error {
	rows, err := q.q.QueryContext(ctx, `SELECT `+urlColumns+` FROM urls ORDER BY id ASC`)
	if err != nil {
		return wrap("scan urls", err)
	}
	defer rows.Close()

	for rows.Next() {
		row, err := scanURL(rows)
		if err != nil {
			return wrap("scan urls", err)
		}
		if !fn(row) {
			break
		}
	}
	return wrap("scan urls", rows.Err())
}

// AutocompleteURLs returns the rows the autocomplete cache holds: typed URLs
// and URLs with a keyword search term.
func (q queries) AutocompleteURLs(ctx context.Context) ([]history.URLRow, error) {
	return q.collectURLs(ctx, "autocomplete urls", `
		SELECT `+urlColumns+` FROM urls
		WHERE typed_count > 0
		   OR id IN (SELECT url_id FROM keyword_search_terms)
		ORDER BY id ASC
	`)
}

// escapeLike escapes LIKE wildcards with a backslash.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// IsTypedHost reports whether any http, https or ftp URL on host has
// typed_count > 0.
func (q queries) IsTypedHost(ctx context.Context, host string) (bool, error) {
	host = escapeLike(strings.ToLower(host))
	for _, scheme := range []string{"http", "https", "ftp"} {
		prefix := scheme + "://" + host
		var found int
		err := q.q.QueryRowContext(ctx, `
			SELECT 1 FROM urls
			WHERE typed_count > 0
			  AND (url LIKE ? ESCAPE '\' OR url LIKE ? ESCAPE '\')
			LIMIT 1
		`, prefix+"/%", prefix+":%").Scan(&found)
		if errors.Is(err, sql.ErrNoRows) {
			continue
		}
		if err != nil {
			return false, wrap("is typed host", err)
		}
		return true, nil
	}
	return false, nil
}
