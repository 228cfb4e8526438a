package history

// ClusterID identifies a stored cluster.
type ClusterID int64

// ClusterKeywordType classifies a cluster keyword.
type ClusterKeywordType int

const (
	KeywordTypeUnknown ClusterKeywordType = iota
	KeywordTypeEntityCategory
	KeywordTypeEntityAlias
	KeywordTypeEntity
	KeywordTypeSearchTerms
)

// ClusterKeywordData is the metadata kept per cluster keyword. At most one
// entity collection is retained.
type ClusterKeywordData struct {
	Type              ClusterKeywordType `json:"type"`
	Score             float64            `json:"score"`
	EntityCollections []string           `json:"entity_collections,omitempty"`
}

// ClusterVisit is one entry of a cluster.
type ClusterVisit struct {
	Visit             AnnotatedVisit `json:"visit"`
	Score             float64        `json:"score"`
	DisplayURL        string         `json:"display_url,omitempty"`
	DuplicateVisitIDs []VisitID      `json:"duplicate_visit_ids,omitempty"`
}

// Cluster is a UI-level grouping of related visits.
type Cluster struct {
	ID       ClusterID                     `json:"id"`
	Label    string                        `json:"label"`
	Visits   []ClusterVisit                `json:"visits"`
	Keywords map[string]ClusterKeywordData `json:"keywords,omitempty"`
}

// VisitIDs returns the visit id of every entry in order.
func (c Cluster) VisitIDs() []VisitID {
	ids := make([]VisitID, 0, len(c.Visits))
	for _, v := range c.Visits {
		ids = append(ids, v.Visit.Visit.ID)
	}
	return ids
}
