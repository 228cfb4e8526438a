package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/roach88/histcore/internal/history"
)

// On-close booleans are packed into close_flags.
const (
	closeFlagOmniboxURLCopied = 1 << iota
	closeFlagExistingPartOfTabGroup
	closeFlagPlacedInTabGroup
	closeFlagExistingBookmark
	closeFlagNewBookmark
	closeFlagNTPCustomLink
)

func packCloseFlags(f history.OnCloseFields) int64 {
	var flags int64
	set := func(b bool, bit int64) {
		if b {
			flags |= bit
		}
	}
	set(f.OmniboxURLCopied, closeFlagOmniboxURLCopied)
	set(f.IsExistingPartOfTabGroup, closeFlagExistingPartOfTabGroup)
	set(f.IsPlacedInTabGroup, closeFlagPlacedInTabGroup)
	set(f.IsExistingBookmark, closeFlagExistingBookmark)
	set(f.IsNewBookmark, closeFlagNewBookmark)
	set(f.IsNTPCustomLinkOrTile, closeFlagNTPCustomLink)
	return flags
}

func unpackCloseFlags(flags int64, f *history.OnCloseFields) {
	f.OmniboxURLCopied = flags&closeFlagOmniboxURLCopied != 0
	f.IsExistingPartOfTabGroup = flags&closeFlagExistingPartOfTabGroup != 0
	f.IsPlacedInTabGroup = flags&closeFlagPlacedInTabGroup != 0
	f.IsExistingBookmark = flags&closeFlagExistingBookmark != 0
	f.IsNewBookmark = flags&closeFlagNewBookmark != 0
	f.IsNTPCustomLinkOrTile = flags&closeFlagNTPCustomLink != 0
}

// PutOnVisitAnnotations writes the on-visit context fields of a visit,
// leaving any on-close fields untouched.
func (q queries) PutOnVisitAnnotations(ctx context.Context, id history.VisitID, f history.OnVisitFields) error {
	_, err := q.q.ExecContext(ctx, `
		INSERT INTO context_annotations
		(visit_id, browser_type, window_id, tab_id, task_id, root_task_id, parent_task_id, response_code)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(visit_id) DO UPDATE SET
			browser_type = excluded.browser_type,
			window_id = excluded.window_id,
			tab_id = excluded.tab_id,
			task_id = excluded.task_id,
			root_task_id = excluded.root_task_id,
			parent_task_id = excluded.parent_task_id,
			response_code = excluded.response_code
	`, int64(id), int(f.BrowserType), f.WindowID, f.TabID, f.TaskID, f.RootTaskID, f.ParentTaskID, f.ResponseCode)
	return wrap("put on-visit annotations", err)
}

// PutOnCloseAnnotations writes the on-close context fields of a visit,
// leaving the on-visit fields untouched.
func (q queries) PutOnCloseAnnotations(ctx context.Context, id history.VisitID, f history.OnCloseFields) error {
	_, err := q.q.ExecContext(ctx, `
		INSERT INTO context_annotations
		(visit_id, page_end_reason, total_foreground_duration, close_flags)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(visit_id) DO UPDATE SET
			page_end_reason = excluded.page_end_reason,
			total_foreground_duration = excluded.total_foreground_duration,
			close_flags = excluded.close_flags
	`, int64(id), f.PageEndReason, f.TotalForegroundDuration.Microseconds(), packCloseFlags(f))
	return wrap("put on-close annotations", err)
}

// GetContextAnnotations reads the context fields of a visit. The bool is
// false when none were stored.
func (q queries) GetContextAnnotations(ctx context.Context, id history.VisitID) (history.ContextAnnotations, bool, error) {
	var (
		a          history.ContextAnnotations
		browser    int
		foreground int64
		flags      int64
	)
	err := q.q.QueryRowContext(ctx, `
		SELECT browser_type, window_id, tab_id, task_id, root_task_id, parent_task_id, response_code,
		       page_end_reason, total_foreground_duration, close_flags
		FROM context_annotations WHERE visit_id = ?
	`, int64(id)).Scan(&browser, &a.OnVisit.WindowID, &a.OnVisit.TabID, &a.OnVisit.TaskID,
		&a.OnVisit.RootTaskID, &a.OnVisit.ParentTaskID, &a.OnVisit.ResponseCode,
		&a.OnClose.PageEndReason, &foreground, &flags)
	if errors.Is(err, sql.ErrNoRows) {
		return history.ContextAnnotations{}, false, nil
	}
	if err != nil {
		return history.ContextAnnotations{}, false, wrap("get context annotations", err)
	}
	a.OnVisit.BrowserType = history.BrowserType(browser)
	a.OnClose.TotalForegroundDuration = time.Duration(foreground) * time.Microsecond
	unpackCloseFlags(flags, &a.OnClose)
	return a, true, nil
}

// PutContentAnnotations replaces the content annotations of a visit. Merging
// partial updates is the caller's job.
func (q queries) PutContentAnnotations(ctx context.Context, id history.VisitID, c history.ContentAnnotations) error {
	categories, err := json.Marshal(nonNilCategories(c.Categories))
	if err != nil {
		return wrap("put content annotations: marshal categories", err)
	}
	entities, err := json.Marshal(nonNilCategories(c.Entities))
	if err != nil {
		return wrap("put content annotations: marshal entities", err)
	}
	related, err := json.Marshal(nonNilStrings(c.RelatedSearches))
	if err != nil {
		return wrap("put content annotations: marshal related searches", err)
	}

	_, err = q.q.ExecContext(ctx, `
		INSERT INTO content_annotations
		(visit_id, visibility_score, categories, entities, related_searches,
		 search_normalized_url, search_terms, alternative_title, page_language, flags)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(visit_id) DO UPDATE SET
			visibility_score = excluded.visibility_score,
			categories = excluded.categories,
			entities = excluded.entities,
			related_searches = excluded.related_searches,
			search_normalized_url = excluded.search_normalized_url,
			search_terms = excluded.search_terms,
			alternative_title = excluded.alternative_title,
			page_language = excluded.page_language,
			flags = excluded.flags
	`, int64(id), c.VisibilityScore, string(categories), string(entities), string(related),
		c.SearchNormalizedURL, c.SearchTerms, c.AlternativeTitle, c.PageLanguage, int64(c.Flags))
	return wrap("put content annotations", err)
}

// GetContentAnnotations reads the content annotations of a visit. The bool
// is false when none were stored.
func (q queries) GetContentAnnotations(ctx context.Context, id history.VisitID) (history.ContentAnnotations, bool, error) {
	var (
		c                            history.ContentAnnotations
		categories, entities, related string
		flags                        int64
	)
	err := q.q.QueryRowContext(ctx, `
		SELECT visibility_score, categories, entities, related_searches,
		       search_normalized_url, search_terms, alternative_title, page_language, flags
		FROM content_annotations WHERE visit_id = ?
	`, int64(id)).Scan(&c.VisibilityScore, &categories, &entities, &related,
		&c.SearchNormalizedURL, &c.SearchTerms, &c.AlternativeTitle, &c.PageLanguage, &flags)
	if errors.Is(err, sql.ErrNoRows) {
		return history.ContentAnnotations{}, false, nil
	}
	if err != nil {
		return history.ContentAnnotations{}, false, wrap("get content annotations", err)
	}
	if err := json.Unmarshal([]byte(categories), &c.Categories); err != nil {
		return history.ContentAnnotations{}, false, wrap("get content annotations: categories", err)
	}
	if err := json.Unmarshal([]byte(entities), &c.Entities); err != nil {
		return history.ContentAnnotations{}, false, wrap("get content annotations: entities", err)
	}
	if err := json.Unmarshal([]byte(related), &c.RelatedSearches); err != nil {
		return history.ContentAnnotations{}, false, wrap("get content annotations: related searches", err)
	}
	c.Flags = uint32(flags)
	return c, true, nil
}

// DeleteAllAnnotations empties both annotation tables.
func (q queries) DeleteAllAnnotations(ctx context.Context) error {
	if _, err := q.q.ExecContext(ctx, `DELETE FROM context_annotations`); err != nil {
		return wrap("delete context annotations", err)
	}
	_, err := q.q.ExecContext(ctx, `DELETE FROM content_annotations`)
	return wrap("delete content annotations", err)
}

func nonNilCategories(c []history.Category) []history.Category {
	if c == nil {
		return []history.Category{}
	}
	return c
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
