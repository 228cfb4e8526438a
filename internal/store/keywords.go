package store

import (
	"context"

	"github.com/roach88/histcore/internal/history"
)

// SetKeywordSearchTerm stores term for (keyword, url), replacing any earlier
// term for that pair.
func (q queries) SetKeywordSearchTerm(ctx context.Context, kt history.KeywordSearchTerm) error {
	_, err := q.q.ExecContext(ctx, `
		INSERT INTO keyword_search_terms (keyword_id, url_id, term, normalized_term)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(keyword_id, url_id) DO UPDATE SET
			term = excluded.term,
			normalized_term = excluded.normalized_term
	`, int64(kt.KeywordID), int64(kt.URLID), kt.Term, kt.NormalizedTerm)
	return wrap("set keyword search term", err)
}

// DeleteKeywordSearchTermsForURL removes every term of a URL and reports how
// many rows were removed.
func (q queries) DeleteKeywordSearchTermsForURL(ctx context.Context, urlID history.URLID) (int64, error) {
	res, err := q.q.ExecContext(ctx,
		`DELETE FROM keyword_search_terms WHERE url_id = ?`, int64(urlID))
	if err != nil {
		return 0, wrap("delete keyword search terms", err)
	}
	n, err := res.RowsAffected()
	return n, wrap("delete keyword search terms: rows affected", err)
}

// DeleteAllKeywordSearchTerms empties the table.
func (q queries) DeleteAllKeywordSearchTerms(ctx context.Context) error {
	_, err := q.q.ExecContext(ctx, `DELETE FROM keyword_search_terms`)
	return wrap("delete all keyword search terms", err)
}

// HasKeywordSearchTerm reports whether any term exists for the URL.
func (q queries) HasKeywordSearchTerm(ctx context.Context, urlID history.URLID) (bool, error) {
	var n int
	err := q.q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM keyword_search_terms WHERE url_id = ?`, int64(urlID)).Scan(&n)
	return n > 0, wrap("has keyword search term", err)
}

func (q queries) collectTerms(ctx context.Context, op, query string, args ...any) ([]history.KeywordSearchTerm, error) {
	rows, err := q.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrap(op, err)
	}
	defer rows.Close()

	out := []history.KeywordSearchTerm{}
	for rows.Next() {
		var (
			kt             history.KeywordSearchTerm
			keywordID, uid int64
		)
		if err := rows.Scan(&keywordID, &uid, &kt.Term, &kt.NormalizedTerm); err != nil {
			return nil, wrap(op, err)
		}
		kt.KeywordID = history.KeywordID(keywordID)
		kt.URLID = history.URLID(uid)
		out = append(out, kt)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap(op, err)
	}
	return out, nil
}

// KeywordSearchTermsForURL returns the terms of a URL ordered by keyword.
func (q queries) KeywordSearchTermsForURL(ctx context.Context, urlID history.URLID) ([]history.KeywordSearchTerm, error) {
	return q.collectTerms(ctx, "keyword search terms for url", `
		SELECT keyword_id, url_id, term, normalized_term
		FROM keyword_search_terms
		WHERE url_id = ?
		ORDER BY keyword_id ASC
	`, int64(urlID))
}

// AllKeywordSearchTerms returns every stored term.
func (q queries) AllKeywordSearchTerms(ctx context.Context) ([]history.KeywordSearchTerm, error) {
	return q.collectTerms(ctx, "all keyword search terms", `
		SELECT keyword_id, url_id, term, normalized_term
		FROM keyword_search_terms
		ORDER BY keyword_id ASC, url_id ASC
	`)
}
