package harness

import (
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// TraceSnapshot captures the complete trace for a scenario execution.
type TraceSnapshot struct {
	ScenarioName string       `json:"scenario_name"`
	CacheGUID    string       `json:"cache_guid"`
	Trace        []TraceEvent `json:"trace"`
}

// Marshal renders the snapshot as indented JSON with a trailing newline.
// Struct field order fixes the key order, so equal traces give equal bytes.
func (s TraceSnapshot) Marshal() ([]byte, error) {
	out, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(out, '\n'), nil
}

// SnapshotOf builds the golden snapshot of a finished run.
func SnapshotOf(scenario *Scenario, result *Result) TraceSnapshot {
	guid := scenario.CacheGUID
	if guid == "" {
		guid = defaultCacheGUID
	}
	return TraceSnapshot{
		ScenarioName: scenario.Name,
		CacheGUID:    guid,
		Trace:        result.Trace,
	}
}

// RunWithGolden executes a scenario and compares the trace against a golden file.
// The golden file is stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns the result so callers can also check Pass.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := assertSnapshot(t, SnapshotOf(scenario, result)); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares the given result's trace against a golden file
// without re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()
	return assertSnapshot(t, SnapshotOf(&Scenario{Name: scenarioName}, result))
}

func assertSnapshot(t *testing.T, snap TraceSnapshot) error {
	t.Helper()

	data, err := snap.Marshal()
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, snap.ScenarioName, data)
	return nil
}
