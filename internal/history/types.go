package history

import "time"

// URLID identifies a row in the urls table.
type URLID int64

// VisitID identifies a row in the visits table. Zero means "no visit".
type VisitID int64

// KeywordID identifies the search provider a keyword term belongs to.
type KeywordID int64

// ContextID identifies a tab-scoped navigation context. It is never persisted.
type ContextID int64

// VisitSource records where a visit came from.
type VisitSource int

const (
	SourceSynced VisitSource = iota
	SourceBrowsed
	SourceExtension
	SourceFirefoxImported
	SourceIEImported
	SourceSafariImported
)

var sourceNames = [...]string{"synced", "browsed", "extension", "firefox_imported", "ie_imported", "safari_imported"}

func (s VisitSource) String() string {
	if s >= 0 && int(s) < len(sourceNames) {
		return sourceNames[s]
	}
	return "unknown"
}

// URLRow is a stored URL with its visit aggregates.
type URLRow struct {
	ID         URLID     `json:"id"`
	URL        string    `json:"url"`
	Title      string    `json:"title"`
	VisitCount int       `json:"visit_count"`
	TypedCount int       `json:"typed_count"`
	LastVisit  time.Time `json:"last_visit"`
	Hidden     bool      `json:"hidden"`
}

// VisitRow is one recorded navigation.
type VisitRow struct {
	ID             VisitID       `json:"id"`
	URLID          URLID         `json:"url_id"`
	VisitTime      time.Time     `json:"visit_time"`
	Transition     Transition    `json:"transition"`
	ReferringVisit VisitID       `json:"referring_visit"`
	OpenerVisit    VisitID       `json:"opener_visit"`
	Duration       time.Duration `json:"duration"`
	Source         VisitSource   `json:"source"`

	// TypedCredit marks visits counted in the URL's typed_count.
	TypedCredit bool `json:"typed_credit"`

	// OriginatorCacheGUID and OriginatorVisitID are set for visits that
	// arrived through sync.
	OriginatorCacheGUID string `json:"originator_cache_guid,omitempty"`
	OriginatorVisitID   int64  `json:"originator_visit_id,omitempty"`
}

// KeywordSearchTerm associates a URL with the term typed into a search
// provider.
type KeywordSearchTerm struct {
	URLID          URLID     `json:"url_id"`
	KeywordID      KeywordID `json:"keyword_id"`
	Term           string    `json:"term"`
	NormalizedTerm string    `json:"normalized_term"`
}

// RedirectList is an ordered list of URLs in a redirect chain.
type RedirectList []string

// MostVisitedURL is one ranked entry of QueryMostVisited.
type MostVisitedURL struct {
	URL        string `json:"url"`
	Title      string `json:"title"`
	VisitCount int    `json:"visit_count"`
}

// Opener identifies the navigation that opened a new context.
type Opener struct {
	Context    ContextID
	NavEntryID int
	URL        string
}

// AddPageArgs describes one navigation reported by the tab layer.
type AddPageArgs struct {
	URL        string
	Time       time.Time
	Context    ContextID
	NavEntryID int
	Referrer   string

	// Redirects lists the chain that ended at URL, origin first. When
	// non-empty its last element must equal URL.
	Redirects RedirectList

	Transition      Transition
	Hidden          bool
	Source          VisitSource
	DidReplaceEntry bool
	Title           string
	HTTPStatus      int
	Opener          *Opener

	// ContextAnnotations, when set, are written atomically with the final
	// visit of the chain.
	ContextAnnotations *ContextAnnotations
}

// QueryURLResult is the answer to QueryURL. Found is false for unknown URLs.
type QueryURLResult struct {
	Found  bool       `json:"found"`
	Row    URLRow     `json:"row"`
	Visits []VisitRow `json:"visits"`
}

// VisitInfo is a minimal (time, transition) pair used by sync.
type VisitInfo struct {
	Time                time.Time
	Transition          Transition
	OriginatorCacheGUID string
	OriginatorVisitID   int64
}
