package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/roach88/histcore/internal/history"
)

// Views are the shapes commands print. JSON output encodes them as is;
// text output uses their String methods.

const timeLayout = "2006-01-02 15:04:05"

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format(timeLayout)
}

type urlView struct {
	URL        string    `json:"url"`
	Title      string    `json:"title,omitempty"`
	VisitCount int       `json:"visit_count"`
	TypedCount int       `json:"typed_count"`
	LastVisit  time.Time `json:"last_visit"`
	Hidden     bool      `json:"hidden,omitempty"`
}

func newURLView(r history.URLRow) urlView {
	return urlView{
		URL:        r.URL,
		Title:      r.Title,
		VisitCount: r.VisitCount,
		TypedCount: r.TypedCount,
		LastVisit:  r.LastVisit,
		Hidden:     r.Hidden,
	}
}

func (v urlView) String() string {
	s := fmt.Sprintf("%s  visits=%d typed=%d last=%s", v.URL, v.VisitCount, v.TypedCount, formatTime(v.LastVisit))
	if v.Title != "" {
		s += fmt.Sprintf("  %q", v.Title)
	}
	if v.Hidden {
		s += "  (hidden)"
	}
	return s
}

type visitView struct {
	ID         history.VisitID `json:"id"`
	Time       time.Time       `json:"time"`
	Transition string          `json:"transition"`
	Source     string          `json:"source"`
}

func newVisitView(v history.VisitRow) visitView {
	return visitView{ID: v.ID, Time: v.VisitTime, Transition: v.Transition.String(), Source: v.Source.String()}
}

type lookupView struct {
	Found  bool        `json:"found"`
	URL    *urlView    `json:"url,omitempty"`
	Visits []visitView `json:"visits"`
	Cached bool        `json:"cached"`
}

func (v lookupView) String() string {
	if !v.Found {
		return "not found"
	}
	var b strings.Builder
	b.WriteString(v.URL.String())
	if v.Cached {
		b.WriteString("  [autocomplete]")
	}
	for _, visit := range v.Visits {
		fmt.Fprintf(&b, "\n  #%d %s %s (%s)", visit.ID, formatTime(visit.Time), visit.Transition, visit.Source)
	}
	return b.String()
}

type itemView struct {
	URL        string    `json:"url"`
	Title      string    `json:"title,omitempty"`
	VisitTime  time.Time `json:"visit_time"`
	Transition string    `json:"transition"`
}

type queryView struct {
	Items               []itemView `json:"items"`
	HasMore             bool       `json:"has_more"`
	ContinuationEndTime time.Time  `json:"continuation_end_time"`
}

func newQueryView(res history.QueryResults) queryView {
	v := queryView{Items: make([]itemView, 0, len(res.Items)), HasMore: res.HasMore, ContinuationEndTime: res.ContinuationEndTime}
	for _, item := range res.Items {
		v.Items = append(v.Items, itemView{
			URL:        item.URL.URL,
			Title:      item.URL.Title,
			VisitTime:  item.Visit.VisitTime,
			Transition: item.Visit.Transition.String(),
		})
	}
	return v
}

func (v queryView) String() string {
	if len(v.Items) == 0 {
		return "no results"
	}
	lines := make([]string, 0, len(v.Items)+1)
	for _, item := range v.Items {
		line := fmt.Sprintf("%s  %s", formatTime(item.VisitTime), item.URL)
		if item.Title != "" {
			line += fmt.Sprintf("  %q", item.Title)
		}
		lines = append(lines, line)
	}
	if v.HasMore {
		lines = append(lines, fmt.Sprintf("... more before %s (use --end)", v.ContinuationEndTime.Format(time.RFC3339)))
	}
	return strings.Join(lines, "\n")
}

type rankedView struct {
	Rank       int    `json:"rank"`
	URL        string `json:"url"`
	Title      string `json:"title,omitempty"`
	VisitCount int    `json:"visit_count"`
}

type rankedList []rankedView

func newRankedList(urls []history.MostVisitedURL) rankedList {
	out := make(rankedList, 0, len(urls))
	for i, u := range urls {
		out = append(out, rankedView{Rank: i + 1, URL: u.URL, Title: u.Title, VisitCount: u.VisitCount})
	}
	return out
}

func (l rankedList) String() string {
	if len(l) == 0 {
		return "no results"
	}
	lines := make([]string, len(l))
	for i, r := range l {
		lines[i] = fmt.Sprintf("%2d. %s  visits=%d", r.Rank, r.URL, r.VisitCount)
	}
	return strings.Join(lines, "\n")
}

type chainView []string

func (c chainView) String() string {
	if len(c) == 0 {
		return "no redirects"
	}
	return strings.Join(c, "\n")
}

type completionView struct {
	URLs  []urlView `json:"urls"`
	Terms []string  `json:"terms"`
}

func (v completionView) String() string {
	var lines []string
	for _, u := range v.URLs {
		lines = append(lines, u.String())
	}
	for _, t := range v.Terms {
		lines = append(lines, "search: "+t)
	}
	if len(lines) == 0 {
		return "no suggestions"
	}
	return strings.Join(lines, "\n")
}

type clusterView struct {
	ID     history.ClusterID `json:"id"`
	Label  string            `json:"label,omitempty"`
	Visits []itemView        `json:"visits"`
}

type clusterList []clusterView

func newClusterList(clusters []history.Cluster) clusterList {
	out := make(clusterList, 0, len(clusters))
	for _, c := range clusters {
		cv := clusterView{ID: c.ID, Label: c.Label, Visits: make([]itemView, 0, len(c.Visits))}
		for _, v := range c.Visits {
			cv.Visits = append(cv.Visits, itemView{
				URL:        v.Visit.URL.URL,
				Title:      v.Visit.URL.Title,
				VisitTime:  v.Visit.Visit.VisitTime,
				Transition: v.Visit.Visit.Transition.String(),
			})
		}
		out = append(out, cv)
	}
	return out
}

func (l clusterList) String() string {
	if len(l) == 0 {
		return "no clusters"
	}
	var b strings.Builder
	for i, c := range l {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "cluster %d", c.ID)
		if c.Label != "" {
			fmt.Fprintf(&b, " %q", c.Label)
		}
		for _, v := range c.Visits {
			fmt.Fprintf(&b, "\n  %s  %s", formatTime(v.VisitTime), v.URL)
		}
	}
	return b.String()
}

type messageView struct {
	Message string `json:"message"`
}

func (m messageView) String() string { return m.Message }
