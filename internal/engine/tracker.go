package engine

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/roach88/histcore/internal/history"
)

const (
	// A context keeps at most maxTrackedVisits entries; when exceeded the
	// oldest are dropped down to trimTrackedVisits.
	maxTrackedVisits  = 96
	trimTrackedVisits = 64

	maxRecentRedirects = 32
)

type trackedVisit struct {
	navEntryID int
	url        string
	visitID    history.VisitID
}

// visitTracker remembers the last visits of each navigation context so a
// new navigation can find its referring and opener visits. It is never
// persisted.
type visitTracker struct {
	contexts map[history.ContextID][]trackedVisit
}

func newVisitTracker() *visitTracker {
	return &visitTracker{contexts: make(map[history.ContextID][]trackedVisit)}
}

// lastVisit returns the newest visit to url in the context, preferring an
// entry recorded for navEntryID. Zero when nothing matches.
func (t *visitTracker) lastVisit(id history.ContextID, navEntryID int, url string) history.VisitID {
	if id == 0 || url == "" {
		return 0
	}
	entries := t.contexts[id]
	var fallback history.VisitID
	for i := len(entries) - 1; i >= 0; i-- {
		if entries[i].url != url {
			continue
		}
		if entries[i].navEntryID == navEntryID {
			return entries[i].visitID
		}
		if fallback == 0 {
			fallback = entries[i].visitID
		}
	}
	return fallback
}

func (t *visitTracker) addVisit(id history.ContextID, navEntryID int, url string, visit history.VisitID) {
	if id == 0 || visit == 0 {
		return
	}
	entries := append(t.contexts[id], trackedVisit{navEntryID: navEntryID, url: url, visitID: visit})
	if len(entries) > maxTrackedVisits {
		entries = append(entries[:0:0], entries[len(entries)-trimTrackedVisits:]...)
	}
	t.contexts[id] = entries
}

func (t *visitTracker) clear(id history.ContextID) {
	delete(t.contexts, id)
}

func (t *visitTracker) len() int { return len(t.contexts) }

// redirectCache maps a final URL to the redirect chain that reached it,
// least recently used entries evicted first.
type redirectCache = lru.Cache[string, history.RedirectList]

func newRedirectCache(capacity int) *redirectCache {
	c, err := lru.New[string, history.RedirectList](capacity)
	if err != nil {
		// lru.New only fails for a non-positive size.
		panic(err)
	}
	return c
}
