package history

// Event is a change notification emitted by the engine. Dispatch calls the
// Observer method matching the concrete event kind.
type Event interface {
	Dispatch(o Observer)
}

// Observer receives change events on the caller sequence. Every event kind
// has its own method, so a new kind forces every observer to handle it.
type Observer interface {
	OnURLVisited(e URLVisited)
	OnURLsModified(e URLsModified)
	OnURLsDeleted(e URLsDeleted)
	OnKeywordSearchTermUpdated(e KeywordSearchTermUpdated)
	OnKeywordSearchTermDeleted(e KeywordSearchTermDeleted)
	OnFaviconsChanged(e FaviconsChanged)
}

// URLVisited is emitted for every stored visit.
type URLVisited struct {
	Row   URLRow
	Visit VisitRow
}

// URLsModified is emitted when stored rows changed without a new visit.
type URLsModified struct {
	Rows           []URLRow
	FromExpiration bool
}

// URLsDeleted is emitted when rows or visits were removed. AllHistory and
// Expired are passed through to observers exactly as the deletion was
// requested.
type URLsDeleted struct {
	AllHistory bool
	Expired    bool
	Rows       []URLRow
}

// KeywordSearchTermUpdated is emitted when a term is stored for a URL.
type KeywordSearchTermUpdated struct {
	Row       URLRow
	KeywordID KeywordID
	Term      string
}

// KeywordSearchTermDeleted is emitted when a URL's terms are removed.
type KeywordSearchTermDeleted struct {
	URLID URLID
}

// FaviconsChanged is re-emitted unchanged from the favicon store.
type FaviconsChanged struct {
	PageURLs []string
	IconURL  string
}

func (e URLVisited) Dispatch(o Observer)               { o.OnURLVisited(e) }
func (e URLsModified) Dispatch(o Observer)             { o.OnURLsModified(e) }
func (e URLsDeleted) Dispatch(o Observer)              { o.OnURLsDeleted(e) }
func (e KeywordSearchTermUpdated) Dispatch(o Observer) { o.OnKeywordSearchTermUpdated(e) }
func (e KeywordSearchTermDeleted) Dispatch(o Observer) { o.OnKeywordSearchTermDeleted(e) }
func (e FaviconsChanged) Dispatch(o Observer)          { o.OnFaviconsChanged(e) }

// BaseObserver implements Observer with no-op methods. Embed it in observers
// that only care about a few events.
type BaseObserver struct{}

func (BaseObserver) OnURLVisited(URLVisited)                             {}
func (BaseObserver) OnURLsModified(URLsModified)                         {}
func (BaseObserver) OnURLsDeleted(URLsDeleted)                           {}
func (BaseObserver) OnKeywordSearchTermUpdated(KeywordSearchTermUpdated) {}
func (BaseObserver) OnKeywordSearchTermDeleted(KeywordSearchTermDeleted) {}
func (BaseObserver) OnFaviconsChanged(FaviconsChanged)                   {}
