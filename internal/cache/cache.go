// Package cache holds the in-memory autocomplete cache: typed URLs and URLs
// with keyword search terms, kept in step with the store by replaying
// history events.
//
// The cache is written on the caller sequence only, through the
// history.Observer methods and Reload. Reads may come from any goroutine.
package cache

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/roach88/histcore/internal/history"
	"github.com/roach88/histcore/internal/metrics"
	"github.com/roach88/histcore/internal/urlutil"
)

// Loader supplies the rows a full rebuild starts from.
type Loader interface {
	AutocompleteRows(ctx context.Context) ([]history.URLRow, []history.KeywordSearchTerm, error)
}

// Cache is the autocomplete state machine. A row is a member while its
// typed count is positive or it has at least one keyword term.
type Cache struct {
	mu    sync.RWMutex
	rows  map[history.URLID]history.URLRow
	byURL map[string]history.URLID
	terms map[history.URLID][]history.KeywordSearchTerm

	logger *slog.Logger
}

var _ history.Observer = (*Cache)(nil)

// New returns an empty cache.
func New(logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Cache{logger: logger}
	c.reset()
	return c
}

func (c *Cache) reset() {
	c.rows = make(map[history.URLID]history.URLRow)
	c.byURL = make(map[string]history.URLID)
	c.terms = make(map[history.URLID][]history.KeywordSearchTerm)
}

// Reload replaces the cache contents with a fresh read from l.
func (c *Cache) Reload(ctx context.Context, l Loader) error {
	rows, terms, err := l.AutocompleteRows(ctx)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.reset()
	for _, kt := range terms {
		c.terms[kt.URLID] = append(c.terms[kt.URLID], kt)
	}
	for _, row := range rows {
		c.evaluate(row)
	}
	c.publish()
	c.logger.Debug("autocomplete cache reloaded", "rows", len(c.rows), "terms", len(terms))
	return nil
}

// evaluate inserts or evicts row by the membership rule. Caller holds mu.
func (c *Cache) evaluate(row history.URLRow) {
	if row.TypedCount > 0 || len(c.terms[row.ID]) > 0 {
		if old, ok := c.rows[row.ID]; ok && old.URL != row.URL {
			delete(c.byURL, old.URL)
		}
		c.rows[row.ID] = row
		c.byURL[row.URL] = row.ID
		return
	}
	c.evict(row.ID)
}

// evict removes a row and its terms. Caller holds mu.
func (c *Cache) evict(id history.URLID) {
	if old, ok := c.rows[id]; ok {
		delete(c.byURL, old.URL)
		delete(c.rows, id)
	}
	delete(c.terms, id)
}

// publish updates the size gauge. Caller holds mu.
func (c *Cache) publish() {
	metrics.CacheRows.Set(float64(len(c.rows)))
}

func (c *Cache) OnURLVisited(e history.URLVisited) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.evaluate(e.Row)
	c.publish()
}

func (c *Cache) OnURLsModified(e history.URLsModified) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, row := range e.Rows {
		c.evaluate(row)
	}
	c.publish()
}

// OnURLsDeleted clears the cache for a delete-all; keyword terms are gone
// with it, so pinned rows that survive do not qualify.
func (c *Cache) OnURLsDeleted(e history.URLsDeleted) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e.AllHistory {
		c.reset()
	} else {
		for _, row := range e.Rows {
			c.evict(row.ID)
		}
	}
	c.publish()
}

func (c *Cache) OnKeywordSearchTermUpdated(e history.KeywordSearchTermUpdated) {
	c.mu.Lock()
	defer c.mu.Unlock()

	kt := history.KeywordSearchTerm{
		URLID:          e.Row.ID,
		KeywordID:      e.KeywordID,
		Term:           e.Term,
		NormalizedTerm: urlutil.NormalizeTerm(e.Term),
	}
	var terms []history.KeywordSearchTerm
	for _, existing := range c.terms[e.Row.ID] {
		if existing.KeywordID != e.KeywordID {
			terms = append(terms, existing)
		}
	}
	c.terms[e.Row.ID] = append(terms, kt)
	c.evaluate(e.Row)
	c.publish()
}

func (c *Cache) OnKeywordSearchTermDeleted(e history.KeywordSearchTermDeleted) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.terms, e.URLID)
	if row, ok := c.rows[e.URLID]; ok {
		c.evaluate(row)
	}
	c.publish()
}

// OnFaviconsChanged does not affect autocomplete rows.
func (c *Cache) OnFaviconsChanged(history.FaviconsChanged) {}

// Lookup returns the cached row for a canonical URL.
func (c *Cache) Lookup(url string) (history.URLRow, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	id, ok := c.byURL[url]
	if !ok {
		return history.URLRow{}, false
	}
	return c.rows[id], true
}

// TypedPrefix returns typed rows whose URL, with or without its scheme and
// a leading "www.", starts with prefix. Results are ordered by typed count,
// then by last visit, newest first; limit <= 0 returns all of them.
func (c *Cache) TypedPrefix(prefix string, limit int) []history.URLRow {
	prefix = strings.ToLower(strings.TrimSpace(prefix))

	c.mu.RLock()
	out := []history.URLRow{}
	for _, row := range c.rows {
		if row.TypedCount > 0 && matchesPrefix(row.URL, prefix) {
			out = append(out, row)
		}
	}
	c.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].TypedCount != out[j].TypedCount {
			return out[i].TypedCount > out[j].TypedCount
		}
		if !out[i].LastVisit.Equal(out[j].LastVisit) {
			return out[i].LastVisit.After(out[j].LastVisit)
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func matchesPrefix(url, prefix string) bool {
	if prefix == "" {
		return true
	}
	url = strings.ToLower(url)
	if strings.HasPrefix(url, prefix) {
		return true
	}
	if i := strings.Index(url, "://"); i >= 0 {
		rest := url[i+3:]
		return strings.HasPrefix(rest, prefix) || strings.HasPrefix(strings.TrimPrefix(rest, "www."), prefix)
	}
	return false
}

// SearchTerms returns keyword terms whose normalized form starts with the
// normalized prefix, most recently visited URL first. A term typed into
// several providers is reported once per provider.
func (c *Cache) SearchTerms(prefix string, limit int) []history.KeywordSearchTerm {
	prefix = urlutil.NormalizeTerm(prefix)

	type hit struct {
		kt  history.KeywordSearchTerm
		row history.URLRow
	}

	c.mu.RLock()
	var hits []hit
	for id, terms := range c.terms {
		row := c.rows[id]
		for _, kt := range terms {
			if strings.HasPrefix(kt.NormalizedTerm, prefix) {
				hits = append(hits, hit{kt: kt, row: row})
			}
		}
	}
	c.mu.RUnlock()

	sort.Slice(hits, func(i, j int) bool {
		if !hits[i].row.LastVisit.Equal(hits[j].row.LastVisit) {
			return hits[i].row.LastVisit.After(hits[j].row.LastVisit)
		}
		if hits[i].kt.URLID != hits[j].kt.URLID {
			return hits[i].kt.URLID < hits[j].kt.URLID
		}
		return hits[i].kt.KeywordID < hits[j].kt.KeywordID
	})

	out := make([]history.KeywordSearchTerm, 0, len(hits))
	for _, h := range hits {
		if limit > 0 && len(out) == limit {
			break
		}
		out = append(out, h.kt)
	}
	return out
}

// Rows returns every cached row ordered by id.
func (c *Cache) Rows() []history.URLRow {
	c.mu.RLock()
	out := make([]history.URLRow, 0, len(c.rows))
	for _, row := range c.rows {
		out = append(out, row)
	}
	c.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Len returns the number of cached rows.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.rows)
}
