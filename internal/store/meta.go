package store

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"time"
)

const metaFirstRecordedTime = "first_recorded_time"

// GetMeta reads a meta value. Returns ErrNotFound if absent.
func (q queries) GetMeta(ctx context.Context, key string) (string, error) {
	var value string
	err := q.q.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	return value, wrap("get meta", err)
}

// SetMeta writes a meta value.
func (q queries) SetMeta(ctx context.Context, key, value string) error {
	_, err := q.q.ExecContext(ctx, `
		INSERT INTO meta (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return wrap("set meta", err)
}

// FirstRecordedTime returns the cached oldest visit time watermark.
func (q queries) FirstRecordedTime(ctx context.Context) (time.Time, error) {
	value, err := q.GetMeta(ctx, metaFirstRecordedTime)
	if errors.Is(err, ErrNotFound) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	micros, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return time.Time{}, wrap("first recorded time", err)
	}
	return fromMicros(micros), nil
}

// RefreshFirstRecordedTime recomputes the watermark from the visits table and
// returns it.
func (q queries) RefreshFirstRecordedTime(ctx context.Context) (time.Time, error) {
	first, err := q.FirstVisitTime(ctx)
	if err != nil {
		return time.Time{}, err
	}
	if err := q.SetMeta(ctx, metaFirstRecordedTime, formatInt(toMicros(first))); err != nil {
		return time.Time{}, err
	}
	return first, nil
}

// DeleteAllVisits removes every visit. Dependent rows cascade.
func (q queries) DeleteAllVisits(ctx context.Context) (int64, error) {
	res, err := q.q.ExecContext(ctx, `DELETE FROM visits`)
	if err != nil {
		return 0, wrap("delete all visits", err)
	}
	n, err := res.RowsAffected()
	return n, wrap("delete all visits: rows affected", err)
}
