package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunWithGolden(t *testing.T) {
	for _, name := range []string{"http_upgrade", "delete_all_keeps_pinned"} {
		t.Run(name, func(t *testing.T) {
			s, err := LoadScenario("testdata/scenarios/" + name + ".yaml")
			require.NoError(t, err)

			result, err := RunWithGolden(t, s)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
}

func TestTraceSnapshot_MarshalIsStable(t *testing.T) {
	snap := TraceSnapshot{
		ScenarioName: "s",
		CacheGUID:    defaultCacheGUID,
		Trace:        []TraceEvent{{Seq: 1, Kind: KindStep, Name: "expire_between"}},
	}

	first, err := snap.Marshal()
	require.NoError(t, err)
	second, err := snap.Marshal()
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, `{
  "scenario_name": "s",
  "cache_guid": "00000000-0000-0000-0000-000000000001",
  "trace": [
    {
      "seq": 1,
      "kind": "step",
      "name": "expire_between"
    }
  ]
}
`, string(first))
}
