package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/histcore/internal/history"
)

// Scenario is a scripted run against a fresh history service.
// Steps run in order; the observed events and query results form the trace
// that assertions and golden files are checked against.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// CacheGUID is the sync cache GUID of the profile. Defaults to the
	// fixed test GUID so traces stay byte-identical.
	CacheGUID string `yaml:"cache_guid,omitempty"`

	// Pinned lists URLs that survive deletion with zeroed counters.
	Pinned []string `yaml:"pinned,omitempty"`

	// RetentionDays enables the retention sweep for expire_retention steps.
	RetentionDays int `yaml:"retention_days,omitempty"`

	// Setup steps establish history before the flow. Their events are not
	// traced.
	Setup []Step `yaml:"setup,omitempty"`

	// Flow is the traced part of the scenario.
	Flow []Step `yaml:"flow"`

	// Assertions validate the final trace and state.
	Assertions []Assertion `yaml:"assertions"`
}

// Step is one facade call. Which fields apply depends on Op.
type Step struct {
	Op string `yaml:"op"`

	// At is the step time in minutes after the scenario epoch. The clock is
	// moved there before the step runs; visits are recorded at it.
	At int `yaml:"at,omitempty"`

	URL  string   `yaml:"url,omitempty"`
	URLs []string `yaml:"urls,omitempty"`

	// Navigation fields for add_page.
	Transition   string   `yaml:"transition,omitempty"`
	Redirects    []string `yaml:"redirects,omitempty"`
	Referrer     string   `yaml:"referrer,omitempty"`
	Context      int64    `yaml:"context,omitempty"`
	NavEntry     int      `yaml:"nav_entry,omitempty"`
	ReplaceEntry bool     `yaml:"replace_entry,omitempty"`
	HTTPStatus   int      `yaml:"http_status,omitempty"`
	Hidden       bool     `yaml:"hidden,omitempty"`
	Title        string   `yaml:"title,omitempty"`

	// Begin and End bound expire_between and query_history, in minutes
	// after the epoch. Absent means unbounded.
	Begin *int `yaml:"begin,omitempty"`
	End   *int `yaml:"end,omitempty"`

	Keyword int64  `yaml:"keyword,omitempty"`
	Term    string `yaml:"term,omitempty"`
	Icon    string `yaml:"icon,omitempty"`

	// Query fields.
	Text        string `yaml:"text,omitempty"`
	MaxCount    int    `yaml:"max_count,omitempty"`
	Duplicates  string `yaml:"duplicates,omitempty"`
	OldestFirst bool   `yaml:"oldest_first,omitempty"`
	HostOnly    bool   `yaml:"host_only,omitempty"`
	Count       int    `yaml:"count,omitempty"`
	DaysBack    int    `yaml:"days_back,omitempty"`

	// Expect checks the result of a query step.
	Expect *Expect `yaml:"expect,omitempty"`
}

// Expect is a subset match: only the fields that are set are compared.
type Expect struct {
	Found      *bool    `yaml:"found,omitempty"`
	VisitCount *int     `yaml:"visit_count,omitempty"`
	TypedCount *int     `yaml:"typed_count,omitempty"`
	Title      *string  `yaml:"title,omitempty"`
	Hidden     *bool    `yaml:"hidden,omitempty"`
	Cached     *bool    `yaml:"cached,omitempty"`
	URLs       []string `yaml:"urls,omitempty"`
	HasMore    *bool    `yaml:"has_more,omitempty"`
}

// Assertion validates the trace or the final state.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Kind and Name select trace entries (trace_contains, trace_count).
	// Kind is "step", "event" or "result"; empty matches any kind.
	Kind string `yaml:"kind,omitempty"`
	Name string `yaml:"name,omitempty"`

	// URL narrows trace_contains, and names the row for url_state.
	URL string `yaml:"url,omitempty"`

	// Count is the expected number of matches (trace_count).
	Count int `yaml:"count,omitempty"`

	// Names is the expected order of entry names (trace_order).
	Names []string `yaml:"names,omitempty"`

	// Expect is the expected row state (url_state).
	Expect *Expect `yaml:"expect,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertURLState      = "url_state"
)

// Step ops.
const (
	OpAddPage                 = "add_page"
	OpAddPageNoVisit          = "add_page_no_visit"
	OpSetTitle                = "set_title"
	OpDeleteURLs              = "delete_urls"
	OpExpireBetween           = "expire_between"
	OpExpireRetention         = "expire_retention"
	OpSetKeywordSearchTerm    = "set_keyword_search_term"
	OpDeleteKeywordSearchTerm = "delete_keyword_search_term"
	OpNotifyFaviconsChanged   = "notify_favicons_changed"
	OpQueryURL                = "query_url"
	OpQueryHistory            = "query_history"
	OpQueryMostVisited        = "query_most_visited"
	OpQueryRedirectsFrom      = "query_redirects_from"
	OpQueryRedirectsTo        = "query_redirects_to"
	OpCacheLookup             = "cache_lookup"
)

// stepFields lists, per op, whether it needs a url and whether it needs
// urls.
var stepFields = map[string]struct{ url, urls bool }{
	OpAddPage:                 {url: true},
	OpAddPageNoVisit:          {url: true},
	OpSetTitle:                {url: true},
	OpDeleteURLs:              {urls: true},
	OpExpireBetween:           {},
	OpExpireRetention:         {},
	OpSetKeywordSearchTerm:    {url: true},
	OpDeleteKeywordSearchTerm: {url: true},
	OpNotifyFaviconsChanged:   {urls: true},
	OpQueryURL:                {url: true},
	OpQueryHistory:            {},
	OpQueryMostVisited:        {},
	OpQueryRedirectsFrom:      {url: true},
	OpQueryRedirectsTo:        {url: true},
	OpCacheLookup:             {url: true},
}

var duplicatePolicies = map[string]history.DuplicatePolicy{
	"":        history.RemoveAllDuplicates,
	"remove":  history.RemoveAllDuplicates,
	"per_day": history.RemoveDuplicatesPerDay,
	"keep":    history.KeepAllDuplicates,
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict decoding catches typos like "assertion:" for "assertions:".
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}
	if s.RetentionDays < 0 {
		return fmt.Errorf("retention_days must be non-negative")
	}

	for i, step := range s.Setup {
		if err := validateStep(fmt.Sprintf("setup[%d]", i), &step); err != nil {
			return err
		}
	}
	for i, step := range s.Flow {
		if err := validateStep(fmt.Sprintf("flow[%d]", i), &step); err != nil {
			return err
		}
	}
	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(where string, st *Step) error {
	if st.Op == "" {
		return fmt.Errorf("%s: op is required", where)
	}
	fields, ok := stepFields[st.Op]
	if !ok {
		return fmt.Errorf("%s: unknown op %q", where, st.Op)
	}
	if fields.url && st.URL == "" {
		return fmt.Errorf("%s: url is required for %s", where, st.Op)
	}
	if fields.urls && len(st.URLs) == 0 {
		return fmt.Errorf("%s: urls is required for %s", where, st.Op)
	}
	if st.At < 0 {
		return fmt.Errorf("%s: at must be non-negative", where)
	}
	if st.Transition != "" {
		if _, err := history.ParseTransition(st.Transition); err != nil {
			return fmt.Errorf("%s: %w", where, err)
		}
	}
	if _, ok := duplicatePolicies[st.Duplicates]; !ok {
		return fmt.Errorf("%s: unknown duplicates policy %q", where, st.Duplicates)
	}
	if st.Op == OpSetKeywordSearchTerm && st.Keyword == 0 {
		return fmt.Errorf("%s: keyword is required for %s", where, st.Op)
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertTraceContains:
		if a.Name == "" {
			return fmt.Errorf("assertions[%d]: name is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Names) == 0 {
			return fmt.Errorf("assertions[%d]: names list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Name == "" {
			return fmt.Errorf("assertions[%d]: name is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertURLState:
		if a.URL == "" {
			return fmt.Errorf("assertions[%d]: url is required for url_state", index)
		}
		if a.Expect == nil {
			return fmt.Errorf("assertions[%d]: expect is required for url_state", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	switch a.Kind {
	case "", KindStep, KindEvent, KindResult:
	default:
		return fmt.Errorf("assertions[%d]: unknown kind %q", index, a.Kind)
	}
	return nil
}
