package service

import (
	"context"
	"time"

	"github.com/roach88/histcore/internal/history"
)

// Recording.

// AddPage records a navigation.
func (s *Service) AddPage(args history.AddPageArgs) {
	s.post("add_page", func(ctx context.Context) error {
		_, _, err := s.engine.AddPage(ctx, args)
		return err
	})
}

// AddPageNoVisit stores a hidden URL without a visit.
func (s *Service) AddPageNoVisit(url, title string, lastVisit time.Time) {
	s.post("add_page_no_visit", func(ctx context.Context) error {
		return s.engine.AddPageNoVisit(ctx, url, title, lastVisit)
	})
}

// SetTitle sets the title of url and of the redirect chain that reached it.
func (s *Service) SetTitle(url, title string) {
	s.post("set_title", func(ctx context.Context) error {
		return s.engine.SetTitle(ctx, url, title)
	})
}

// UpdatePageEndTime records when the page of a navigation entry went away.
func (s *Service) UpdatePageEndTime(id history.ContextID, navEntryID int, url string, end time.Time) {
	s.post("update_page_end_time", func(ctx context.Context) error {
		return s.engine.UpdatePageEndTime(ctx, id, navEntryID, url, end)
	})
}

// ClearContext forgets the tracked visits of a closed tab.
func (s *Service) ClearContext(id history.ContextID) {
	s.post("clear_context", func(context.Context) error {
		s.engine.ClearContext(id)
		return nil
	})
}

// AddPagesWithDetails imports URL rows.
func (s *Service) AddPagesWithDetails(rows []history.URLRow, source history.VisitSource) {
	s.post("add_pages_with_details", func(ctx context.Context) error {
		return s.engine.AddPagesWithDetails(ctx, rows, source)
	})
}

// AddVisits stores synced visits of one URL.
func (s *Service) AddVisits(url string, visits []history.VisitInfo, source history.VisitSource) {
	s.post("add_visits", func(ctx context.Context) error {
		return s.engine.AddVisits(ctx, url, visits, source)
	})
}

// Queries.

// QueryURL looks up one URL and, when wantVisits is set, its visits.
func (s *Service) QueryURL(url string, wantVisits bool, cb func(history.QueryURLResult, error)) *Ticket {
	return query(s, "query_url", func(ctx context.Context) (history.QueryURLResult, error) {
		return s.engine.QueryURL(ctx, url, wantVisits)
	}, cb)
}

// QueryHistory returns one page of history matching text.
func (s *Service) QueryHistory(text string, opts history.QueryOptions, cb func(history.QueryResults, error)) *Ticket {
	return query(s, "query_history", func(ctx context.Context) (history.QueryResults, error) {
		return s.engine.QueryHistory(ctx, text, opts)
	}, cb)
}

// QueryMostVisited ranks URLs by visible visits in the last daysBack days.
func (s *Service) QueryMostVisited(count, daysBack int, cb func([]history.MostVisitedURL, error)) *Ticket {
	return query(s, "query_most_visited", func(ctx context.Context) ([]history.MostVisitedURL, error) {
		return s.engine.QueryMostVisited(ctx, count, daysBack)
	}, cb)
}

// QueryRedirectsFrom returns the chain the latest visit of url went through.
func (s *Service) QueryRedirectsFrom(url string, cb func(history.RedirectList, error)) *Ticket {
	return query(s, "query_redirects_from", func(ctx context.Context) (history.RedirectList, error) {
		return s.engine.QueryRedirectsFrom(ctx, url)
	}, cb)
}

// QueryRedirectsTo returns the URLs that redirected to the latest visit of
// url.
func (s *Service) QueryRedirectsTo(url string, cb func(history.RedirectList, error)) *Ticket {
	return query(s, "query_redirects_to", func(ctx context.Context) (history.RedirectList, error) {
		return s.engine.QueryRedirectsTo(ctx, url)
	}, cb)
}

// GetAnnotatedVisits returns annotated visits in a time range.
func (s *Service) GetAnnotatedVisits(opts history.AnnotatedVisitsOptions, cb func([]history.AnnotatedVisit, error)) *Ticket {
	return query(s, "get_annotated_visits", func(ctx context.Context) ([]history.AnnotatedVisit, error) {
		return s.engine.GetAnnotatedVisits(ctx, opts)
	}, cb)
}

// Deletion.

// DeleteURLs removes URLs with all their visits.
func (s *Service) DeleteURLs(urls []string) {
	s.post("delete_urls", func(ctx context.Context) error {
		return s.engine.DeleteURLs(ctx, urls)
	})
}

// ExpireBetween deletes visits in [begin, end), optionally restricted to
// urls. Zero times and no URLs delete all history.
func (s *Service) ExpireBetween(urls []string, begin, end time.Time) {
	s.post("expire_between", func(ctx context.Context) error {
		return s.engine.ExpireBetween(ctx, urls, begin, end, true)
	})
}

// ExpireExactTimes deletes the visits at exactly the given times.
func (s *Service) ExpireExactTimes(times []time.Time, begin, end time.Time) {
	s.post("expire_exact_times", func(ctx context.Context) error {
		return s.engine.ExpireExactTimes(ctx, times, begin, end)
	})
}

// ExpireOlderThan deletes visits before cutoff as an automatic expiration.
func (s *Service) ExpireOlderThan(cutoff time.Time) {
	s.post("expire_older_than", func(ctx context.Context) error {
		return s.engine.ExpireOlderThan(ctx, cutoff)
	})
}

// ExpireRetention runs the retention sweep for the configured window.
func (s *Service) ExpireRetention() {
	s.post("expire_retention", func(ctx context.Context) error {
		return s.engine.ExpireRetention(ctx)
	})
}

// Annotations.

// AddContextAnnotations writes the on-visit context fields of a visit.
func (s *Service) AddContextAnnotations(id history.VisitID, f history.OnVisitFields) {
	s.post("add_context_annotations", func(ctx context.Context) error {
		return s.engine.AddContextAnnotations(ctx, id, f)
	})
}

// SetOnCloseAnnotations writes the on-close context fields of a visit.
func (s *Service) SetOnCloseAnnotations(id history.VisitID, f history.OnCloseFields) {
	s.post("set_on_close_annotations", func(ctx context.Context) error {
		return s.engine.SetOnCloseAnnotations(ctx, id, f)
	})
}

// AddContentAnnotations merges content fields into a visit's annotations.
func (s *Service) AddContentAnnotations(id history.VisitID, u history.ContentAnnotationsUpdate) {
	s.post("add_content_annotations", func(ctx context.Context) error {
		return s.engine.AddContentAnnotations(ctx, id, u)
	})
}

// Clusters.

// ReplaceClusters deletes clusters by id and stores new ones; cb receives
// the ids assigned to the stored clusters.
func (s *Service) ReplaceClusters(deleteIDs []history.ClusterID, clusters []history.Cluster, cb func([]history.ClusterID, error)) *Ticket {
	return query(s, "replace_clusters", func(ctx context.Context) ([]history.ClusterID, error) {
		return s.engine.ReplaceClusters(ctx, deleteIDs, clusters)
	}, cb)
}

// MostRecentClusters returns clusters whose newest visit is in
// [minTime, maxTime), newest first.
func (s *Service) MostRecentClusters(minTime, maxTime time.Time, maxCount int, withDetails bool, cb func([]history.Cluster, error)) *Ticket {
	return query(s, "most_recent_clusters", func(ctx context.Context) ([]history.Cluster, error) {
		return s.engine.MostRecentClusters(ctx, minTime, maxTime, maxCount, withDetails)
	}, cb)
}

// ClusterResult is the answer to GetCluster. Found is false when the
// cluster is gone or has no fetchable visit.
type ClusterResult struct {
	Cluster history.Cluster
	Found   bool
}

// GetCluster reads one cluster.
func (s *Service) GetCluster(id history.ClusterID, withDetails bool, cb func(ClusterResult, error)) *Ticket {
	return query(s, "get_cluster", func(ctx context.Context) (ClusterResult, error) {
		c, ok, err := s.engine.GetCluster(ctx, id, withDetails)
		return ClusterResult{Cluster: c, Found: ok}, err
	}, cb)
}

// Keyword search terms.

// SetKeywordSearchTerm associates a search term with url.
func (s *Service) SetKeywordSearchTerm(url string, keyword history.KeywordID, term string) {
	s.post("set_keyword_search_term", func(ctx context.Context) error {
		return s.engine.SetKeywordSearchTerm(ctx, url, keyword, term)
	})
}

// DeleteKeywordSearchTerm removes the search terms of url.
func (s *Service) DeleteKeywordSearchTerm(url string) {
	s.post("delete_keyword_search_term", func(ctx context.Context) error {
		return s.engine.DeleteKeywordSearchTerm(ctx, url)
	})
}

// NotifyFaviconsChanged forwards a favicon change to observers.
func (s *Service) NotifyFaviconsChanged(pageURLs []string, iconURL string) {
	s.post("notify_favicons_changed", func(context.Context) error {
		s.engine.NotifyFaviconsChanged(pageURLs, iconURL)
		return nil
	})
}

// Status reports the engine state. cb runs on the owner sequence.
func (s *Service) Status(cb func(Status, error)) *Ticket {
	return query(s, "status", func(ctx context.Context) (Status, error) {
		return Status{Failed: s.engine.Failed(), QueueDepth: s.engineSeq.Len()}, nil
	}, cb)
}

// Status is a snapshot of the engine state.
type Status struct {
	Failed     bool `json:"failed"`
	QueueDepth int  `json:"queue_depth"`
}
