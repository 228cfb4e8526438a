package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/roach88/histcore/internal/history"
)

// ClusterVisitRow is the stored form of a cluster visit.
type ClusterVisitRow struct {
	VisitID           history.VisitID
	Score             float64
	DisplayURL        string
	DuplicateVisitIDs []history.VisitID
}

// InsertCluster stores a cluster row and returns its id.
func (q queries) InsertCluster(ctx context.Context, label string) (history.ClusterID, error) {
	res, err := q.q.ExecContext(ctx, `INSERT INTO clusters (label) VALUES (?)`, label)
	if err != nil {
		return 0, wrap("insert cluster", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, wrap("insert cluster: last insert id", err)
	}
	return history.ClusterID(id), nil
}

// InsertClusterVisit appends a visit to a cluster at the given position.
func (q queries) InsertClusterVisit(ctx context.Context, id history.ClusterID, position int, cv ClusterVisitRow) error {
	dups := cv.DuplicateVisitIDs
	if dups == nil {
		dups = []history.VisitID{}
	}
	dupJSON, err := json.Marshal(dups)
	if err != nil {
		return wrap("insert cluster visit: marshal duplicates", err)
	}
	_, err = q.q.ExecContext(ctx, `
		INSERT INTO cluster_visits (cluster_id, visit_id, position, score, display_url, duplicate_visit_ids)
		VALUES (?, ?, ?, ?, ?, ?)
	`, int64(id), int64(cv.VisitID), position, cv.Score, cv.DisplayURL, string(dupJSON))
	return wrap("insert cluster visit", err)
}

// InsertClusterKeyword stores one keyword of a cluster.
func (q queries) InsertClusterKeyword(ctx context.Context, id history.ClusterID, keyword string, data history.ClusterKeywordData) error {
	collections := data.EntityCollections
	if collections == nil {
		collections = []string{}
	}
	colJSON, err := json.Marshal(collections)
	if err != nil {
		return wrap("insert cluster keyword: marshal collections", err)
	}
	_, err = q.q.ExecContext(ctx, `
		INSERT INTO cluster_keywords (cluster_id, keyword, type, score, entity_collections)
		VALUES (?, ?, ?, ?, ?)
	`, int64(id), keyword, int(data.Type), data.Score, string(colJSON))
	return wrap("insert cluster keyword", err)
}

// DeleteClusters removes clusters by id. Their visits and keywords cascade.
func (q queries) DeleteClusters(ctx context.Context, ids []history.ClusterID) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := q.q.ExecContext(ctx,
		`DELETE FROM clusters WHERE id`+inList, idList(ids))
	return wrap("delete clusters", err)
}

// DeleteEmptyClusters removes clusters that no longer reference any visit
// and reports how many were removed.
func (q queries) DeleteEmptyClusters(ctx context.Context) (int64, error) {
	res, err := q.q.ExecContext(ctx, `
		DELETE FROM clusters
		WHERE id NOT IN (SELECT DISTINCT cluster_id FROM cluster_visits)
	`)
	if err != nil {
		return 0, wrap("delete empty clusters", err)
	}
	n, err := res.RowsAffected()
	return n, wrap("delete empty clusters: rows affected", err)
}

// DeleteAllClusters empties the cluster tables.
func (q queries) DeleteAllClusters(ctx context.Context) error {
	_, err := q.q.ExecContext(ctx, `DELETE FROM clusters`)
	return wrap("delete all clusters", err)
}

// GetClusterLabel reads a cluster's label.
// Returns ErrNotFound if absent.
func (q queries) GetClusterLabel(ctx context.Context, id history.ClusterID) (string, error) {
	var label string
	err := q.q.QueryRowContext(ctx, `SELECT label FROM clusters WHERE id = ?`, int64(id)).Scan(&label)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	return label, wrap("get cluster label", err)
}

// ClusterIDsByMaxVisitTime returns the ids of clusters whose newest visit
// falls in [minTime, maxTime), newest first. A zero maxTime is unbounded; limit <= 0 is
// unlimited.
func (q queries) ClusterIDsByMaxVisitTime(ctx context.Context, minTime, maxTime time.Time, limit int) ([]history.ClusterID, error) {
	query := `
		SELECT cv.cluster_id, MAX(v.visit_time) AS newest
		FROM cluster_visits cv JOIN visits v ON v.id = cv.visit_id
		GROUP BY cv.cluster_id
		HAVING newest >= ?`
	args := []any{toMicros(minTime)}
	if !maxTime.IsZero() {
		query += ` AND newest < ?`
		args = append(args, toMicros(maxTime))
	}
	query += ` ORDER BY newest DESC, cv.cluster_id DESC`
	if limit > 0 {
		query += ` LIMIT ` + formatInt(int64(limit))
	}

	rows, err := q.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrap("cluster ids by max visit time", err)
	}
	defer rows.Close()

	ids := []history.ClusterID{}
	for rows.Next() {
		var id, newest int64
		if err := rows.Scan(&id, &newest); err != nil {
			return nil, wrap("cluster ids by max visit time", err)
		}
		ids = append(ids, history.ClusterID(id))
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("cluster ids by max visit time", err)
	}
	return ids, nil
}

// ClusterVisitRows returns the visits of a cluster in insertion order.
func (q queries) ClusterVisitRows(ctx context.Context, id history.ClusterID) ([]ClusterVisitRow, error) {
	rows, err := q.q.QueryContext(ctx, `
		SELECT visit_id, score, display_url, duplicate_visit_ids
		FROM cluster_visits
		WHERE cluster_id = ?
		ORDER BY position ASC, visit_id ASC
	`, int64(id))
	if err != nil {
		return nil, wrap("cluster visit rows", err)
	}
	defer rows.Close()

	out := []ClusterVisitRow{}
	for rows.Next() {
		var (
			cv      ClusterVisitRow
			visitID int64
			dups    string
		)
		if err := rows.Scan(&visitID, &cv.Score, &cv.DisplayURL, &dups); err != nil {
			return nil, wrap("cluster visit rows", err)
		}
		cv.VisitID = history.VisitID(visitID)
		if err := json.Unmarshal([]byte(dups), &cv.DuplicateVisitIDs); err != nil {
			return nil, wrap("cluster visit rows: duplicates", err)
		}
		if len(cv.DuplicateVisitIDs) == 0 {
			cv.DuplicateVisitIDs = nil
		}
		out = append(out, cv)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("cluster visit rows", err)
	}
	return out, nil
}

// ClusterKeywords returns the keyword map of a cluster.
func (q queries) ClusterKeywords(ctx context.Context, id history.ClusterID) (map[string]history.ClusterKeywordData, error) {
	rows, err := q.q.QueryContext(ctx, `
		SELECT keyword, type, score, entity_collections
		FROM cluster_keywords
		WHERE cluster_id = ?
		ORDER BY keyword ASC
	`, int64(id))
	if err != nil {
		return nil, wrap("cluster keywords", err)
	}
	defer rows.Close()

	out := map[string]history.ClusterKeywordData{}
	for rows.Next() {
		var (
			keyword     string
			data        history.ClusterKeywordData
			kind        int
			collections string
		)
		if err := rows.Scan(&keyword, &kind, &data.Score, &collections); err != nil {
			return nil, wrap("cluster keywords", err)
		}
		data.Type = history.ClusterKeywordType(kind)
		if err := json.Unmarshal([]byte(collections), &data.EntityCollections); err != nil {
			return nil, wrap("cluster keywords: collections", err)
		}
		if len(data.EntityCollections) == 0 {
			data.EntityCollections = nil
		}
		out[keyword] = data
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("cluster keywords", err)
	}
	return out, nil
}
