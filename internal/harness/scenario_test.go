package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalScenario = `
name: minimal
description: one visit
flow:
  - op: add_page
    url: https://a.com/
assertions:
  - type: trace_count
    name: url_visited
    count: 1
`

func TestLoadScenario(t *testing.T) {
	path := filepath.Join(t.TempDir(), "minimal.yaml")
	require.NoError(t, os.WriteFile(path, []byte(minimalScenario), 0o644))

	s, err := LoadScenario(path)
	require.NoError(t, err)
	assert.Equal(t, "minimal", s.Name)
	require.Len(t, s.Flow, 1)
	assert.Equal(t, OpAddPage, s.Flow[0].Op)
	assert.Equal(t, "https://a.com/", s.Flow[0].URL)
	require.Len(t, s.Assertions, 1)
	assert.Equal(t, 1, s.Assertions[0].Count)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestLoadScenario_TestdataScenariosParse(t *testing.T) {
	paths, err := filepath.Glob("testdata/scenarios/*.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		_, err := LoadScenario(path)
		assert.NoError(t, err, path)
	}
}

func TestParseScenario_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "unknown field",
			yaml: minimalScenario + "assertion: []\n",
			want: "failed to parse YAML",
		},
		{
			name: "missing name",
			yaml: `
description: d
flow: [{op: add_page, url: "https://a.com/"}]
assertions: [{type: trace_count, name: x}]
`,
			want: "name is required",
		},
		{
			name: "empty flow",
			yaml: `
name: n
description: d
assertions: [{type: trace_count, name: x}]
`,
			want: "flow list is required",
		},
		{
			name: "unknown op",
			yaml: `
name: n
description: d
flow: [{op: teleport}]
assertions: [{type: trace_count, name: x}]
`,
			want: `unknown op "teleport"`,
		},
		{
			name: "missing url",
			yaml: `
name: n
description: d
flow: [{op: query_url}]
assertions: [{type: trace_count, name: x}]
`,
			want: "flow[0]: url is required for query_url",
		},
		{
			name: "bad transition",
			yaml: `
name: n
description: d
flow: [{op: add_page, url: "https://a.com/", transition: "link|sideways"}]
assertions: [{type: trace_count, name: x}]
`,
			want: "unknown transition qualifier",
		},
		{
			name: "bad duplicates policy",
			yaml: `
name: n
description: d
flow: [{op: query_history, duplicates: some}]
assertions: [{type: trace_count, name: x}]
`,
			want: "unknown duplicates policy",
		},
		{
			name: "keyword term without keyword",
			yaml: `
name: n
description: d
flow: [{op: set_keyword_search_term, url: "https://a.com/", term: t}]
assertions: [{type: trace_count, name: x}]
`,
			want: "keyword is required",
		},
		{
			name: "url_state without expect",
			yaml: `
name: n
description: d
flow: [{op: add_page, url: "https://a.com/"}]
assertions: [{type: url_state, url: "https://a.com/"}]
`,
			want: "expect is required for url_state",
		},
		{
			name: "unknown assertion kind",
			yaml: `
name: n
description: d
flow: [{op: add_page, url: "https://a.com/"}]
assertions: [{type: trace_count, kind: rumor, name: x}]
`,
			want: `unknown kind "rumor"`,
		},
		{
			name: "unknown assertion type",
			yaml: `
name: n
description: d
flow: [{op: add_page, url: "https://a.com/"}]
assertions: [{type: vibes}]
`,
			want: `unknown assertion type "vibes"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
