package history

import "time"

// BrowserType is the kind of window a visit happened in.
type BrowserType int

const (
	BrowserUnknown BrowserType = iota
	BrowserTabbed
	BrowserPopup
	BrowserCustomTab
)

// ContextAnnotations are the context fields of a visit. The OnVisit half is
// written with the visit, the OnClose half when the page is closed.
type ContextAnnotations struct {
	OnVisit OnVisitFields `json:"on_visit"`
	OnClose OnCloseFields `json:"on_close"`
}

// OnVisitFields are known when the navigation is recorded.
type OnVisitFields struct {
	BrowserType  BrowserType `json:"browser_type"`
	WindowID     int64       `json:"window_id"`
	TabID        int64       `json:"tab_id"`
	TaskID       int64       `json:"task_id"`
	RootTaskID   int64       `json:"root_task_id"`
	ParentTaskID int64       `json:"parent_task_id"`
	ResponseCode int         `json:"response_code"`
}

// OnCloseFields are known only once the page goes away.
type OnCloseFields struct {
	PageEndReason            int           `json:"page_end_reason"`
	TotalForegroundDuration  time.Duration `json:"total_foreground_duration"`
	OmniboxURLCopied         bool          `json:"omnibox_url_copied"`
	IsExistingPartOfTabGroup bool          `json:"is_existing_part_of_tab_group"`
	IsPlacedInTabGroup       bool          `json:"is_placed_in_tab_group"`
	IsExistingBookmark       bool          `json:"is_existing_bookmark"`
	IsNewBookmark            bool          `json:"is_new_bookmark"`
	IsNTPCustomLinkOrTile    bool          `json:"is_ntp_custom_link"`
}

// Content annotation flags.
const (
	ContentFlagNone           uint32 = 0
	ContentFlagTopicEligible  uint32 = 1 << 0
	ContentFlagPageLanguageOK uint32 = 1 << 1
)

// Category is a weighted label produced by a page model.
type Category struct {
	ID     string `json:"id"`
	Weight int    `json:"weight"`
}

// ContentAnnotations are model and page derived fields of a visit.
type ContentAnnotations struct {
	VisibilityScore     float64    `json:"visibility_score"`
	Categories          []Category `json:"categories"`
	Entities            []Category `json:"entities"`
	RelatedSearches     []string   `json:"related_searches"`
	SearchNormalizedURL string     `json:"search_normalized_url"`
	SearchTerms         string     `json:"search_terms"`
	AlternativeTitle    string     `json:"alternative_title"`
	PageLanguage        string     `json:"page_language"`
	Flags               uint32     `json:"flags"`
}

// ContentAnnotationsUpdate carries a partial content annotation write. Nil
// fields keep the stored value; Flags are OR-ed into the stored flags.
type ContentAnnotationsUpdate struct {
	VisibilityScore     *float64
	Categories          []Category
	Entities            []Category
	RelatedSearches     []string
	SearchNormalizedURL *string
	SearchTerms         *string
	AlternativeTitle    *string
	PageLanguage        *string
	Flags               uint32
}

// Merge applies u on top of c and returns the result.
func (c ContentAnnotations) Merge(u ContentAnnotationsUpdate) ContentAnnotations {
	if u.VisibilityScore != nil {
		c.VisibilityScore = *u.VisibilityScore
	}
	if u.Categories != nil {
		c.Categories = u.Categories
	}
	if u.Entities != nil {
		c.Entities = u.Entities
	}
	if u.RelatedSearches != nil {
		c.RelatedSearches = u.RelatedSearches
	}
	if u.SearchNormalizedURL != nil {
		c.SearchNormalizedURL = *u.SearchNormalizedURL
	}
	if u.SearchTerms != nil {
		c.SearchTerms = *u.SearchTerms
	}
	if u.AlternativeTitle != nil {
		c.AlternativeTitle = *u.AlternativeTitle
	}
	if u.PageLanguage != nil {
		c.PageLanguage = *u.PageLanguage
	}
	c.Flags |= u.Flags
	return c
}

// AnnotatedVisit is the projection returned by GetAnnotatedVisits and by
// cluster reads.
type AnnotatedVisit struct {
	URL                        URLRow             `json:"url"`
	Visit                      VisitRow           `json:"visit"`
	Context                    ContextAnnotations `json:"context"`
	Content                    ContentAnnotations `json:"content"`
	ReferringVisitOfChainStart VisitID            `json:"referring_visit_of_chain_start"`
	OpenerVisitOfChainStart    VisitID            `json:"opener_visit_of_chain_start"`
}
