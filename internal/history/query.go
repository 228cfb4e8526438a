package history

import "time"

// DuplicatePolicy controls how repeated visits to one URL collapse in a
// query_history page.
type DuplicatePolicy int

const (
	RemoveAllDuplicates DuplicatePolicy = iota
	RemoveDuplicatesPerDay
	KeepAllDuplicates
)

// VisitOrder is the ordering of query_history results.
type VisitOrder int

const (
	RecentFirst VisitOrder = iota
	OldestFirst
)

// QueryOptions bounds a history query. A zero EndTime means "now and later".
type QueryOptions struct {
	BeginTime       time.Time
	EndTime         time.Time
	MaxCount        int
	DuplicatePolicy DuplicatePolicy
	VisitOrder      VisitOrder
	HostOnly        bool

	// Location draws the day boundaries of RemoveDuplicatesPerDay. Nil
	// means UTC.
	Location *time.Location
}

// ResultItem is one entry of a history page.
type ResultItem struct {
	URL   URLRow   `json:"url"`
	Visit VisitRow `json:"visit"`
}

// QueryResults is one page of query_history.
type QueryResults struct {
	Items []ResultItem `json:"items"`

	// HasMore is set when visible visits remained past MaxCount.
	HasMore bool `json:"has_more"`

	// ContinuationEndTime is the EndTime to pass for the next page.
	ContinuationEndTime time.Time `json:"continuation_end_time"`

	ReachedBeginning bool `json:"reached_beginning"`
}

// AnnotatedVisitsOptions bounds GetAnnotatedVisits.
type AnnotatedVisitsOptions struct {
	BeginTime time.Time
	EndTime   time.Time
	MaxCount  int
}
