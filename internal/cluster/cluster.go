// Package cluster stores visit clusters and reads them back as annotated
// projections. Clusters are replaced wholesale, never edited in place.
package cluster

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/roach88/histcore/internal/history"
	"github.com/roach88/histcore/internal/resolver"
	"github.com/roach88/histcore/internal/store"
)

// Manager reads and writes clusters.
type Manager struct {
	store  *store.Store
	logger *slog.Logger
}

// New creates a Manager over s.
func New(s *store.Store, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{store: s, logger: logger}
}

// ReplaceClusters deletes the clusters in deleteIDs and inserts clusters in
// order, returning the ids assigned to the inserted ones. Visits that no
// longer exist are dropped; a cluster left with no visit is skipped and gets
// no id.
func (m *Manager) ReplaceClusters(ctx context.Context, deleteIDs []history.ClusterID, clusters []history.Cluster) ([]history.ClusterID, error) {
	ids := []history.ClusterID{}
	err := m.store.Update(ctx, func(tx *store.Tx) error {
		if err := tx.DeleteClusters(ctx, deleteIDs); err != nil {
			return err
		}
		for _, c := range clusters {
			id, ok, err := m.insert(ctx, tx, c)
			if err != nil {
				return err
			}
			if ok {
				ids = append(ids, id)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	m.logger.Debug("replaced clusters", "deleted", len(deleteIDs), "inserted", len(ids), "requested", len(clusters))
	return ids, nil
}

func (m *Manager) insert(ctx context.Context, tx *store.Tx, c history.Cluster) (history.ClusterID, bool, error) {
	visits := make([]history.ClusterVisit, 0, len(c.Visits))
	seen := make(map[history.VisitID]bool, len(c.Visits))
	for _, cv := range c.Visits {
		id := cv.Visit.Visit.ID
		if seen[id] {
			continue
		}
		_, err := tx.GetVisit(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			m.logger.Debug("dropping cluster visit without a visit row", "visit_id", id)
			continue
		}
		if err != nil {
			return 0, false, err
		}
		seen[id] = true
		visits = append(visits, cv)
	}
	if len(visits) == 0 {
		return 0, false, nil
	}

	id, err := tx.InsertCluster(ctx, c.Label)
	if err != nil {
		return 0, false, err
	}
	for i, cv := range visits {
		if err := tx.InsertClusterVisit(ctx, id, i, store.ClusterVisitRow{
			VisitID:           cv.Visit.Visit.ID,
			Score:             cv.Score,
			DisplayURL:        cv.DisplayURL,
			DuplicateVisitIDs: cv.DuplicateVisitIDs,
		}); err != nil {
			return 0, false, err
		}
	}
	for keyword, data := range c.Keywords {
		if len(data.EntityCollections) > 1 {
			data.EntityCollections = data.EntityCollections[:1]
		}
		if err := tx.InsertClusterKeyword(ctx, id, keyword, data); err != nil {
			return 0, false, err
		}
	}
	return id, true, nil
}

// MostRecentClusters returns the clusters whose newest visit falls in
// [minTime, maxTime), newest first, at most maxCount of them (0 = unlimited). Each
// cluster is returned whole, including visits outside the range.
func (m *Manager) MostRecentClusters(ctx context.Context, minTime, maxTime time.Time, maxCount int, withDetails bool) ([]history.Cluster, error) {
	ids, err := m.store.ClusterIDsByMaxVisitTime(ctx, minTime, maxTime, 0)
	if err != nil {
		return nil, err
	}

	out := []history.Cluster{}
	for _, id := range ids {
		if maxCount > 0 && len(out) >= maxCount {
			break
		}
		c, ok, err := m.GetCluster(ctx, id, withDetails)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, c)
		}
	}
	return out, nil
}

// GetCluster reads one cluster. Keywords and duplicate visit ids are filled
// only when withDetails is set. The bool is false when the cluster does not
// exist or none of its visits can be fetched.
func (m *Manager) GetCluster(ctx context.Context, id history.ClusterID, withDetails bool) (history.Cluster, bool, error) {
	label, err := m.store.GetClusterLabel(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return history.Cluster{}, false, nil
	}
	if err != nil {
		return history.Cluster{}, false, err
	}

	rows, err := m.store.ClusterVisitRows(ctx, id)
	if err != nil {
		return history.Cluster{}, false, err
	}

	walkCtx := resolver.WithLogger(ctx, m.logger)
	c := history.Cluster{ID: id, Label: label, Visits: []history.ClusterVisit{}}
	for _, row := range rows {
		av, ok, err := resolver.AnnotateByID(walkCtx, m.store, row.VisitID)
		if err != nil {
			return history.Cluster{}, false, err
		}
		if !ok {
			continue
		}
		cv := history.ClusterVisit{Visit: av, Score: row.Score, DisplayURL: row.DisplayURL}
		if withDetails {
			cv.DuplicateVisitIDs = row.DuplicateVisitIDs
		}
		c.Visits = append(c.Visits, cv)
	}
	if len(c.Visits) == 0 {
		return history.Cluster{}, false, nil
	}

	if withDetails {
		keywords, err := m.store.ClusterKeywords(ctx, id)
		if err != nil {
			return history.Cluster{}, false, err
		}
		if len(keywords) > 0 {
			c.Keywords = keywords
		}
	}
	return c, true, nil
}
