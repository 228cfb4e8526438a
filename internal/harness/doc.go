// Package harness runs scripted scenarios against the history service.
//
// A scenario drives the service facade step by step and records what an
// observer and the query callbacks saw. Assertions and golden files are
// checked against that trace.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	pinned: [https://pinned.com/]
//	retention_days: 90
//	setup:
//	  - op: add_page
//	    url: https://example.com/
//	    transition: typed
//	flow:
//	  - op: set_title
//	    at: 5
//	    url: https://example.com/
//	    title: Example
//	  - op: query_url
//	    url: https://example.com/
//	    expect: { found: true, title: Example }
//	assertions:
//	  - type: trace_count
//	    kind: event
//	    name: urls_modified
//	    count: 1
//	  - type: url_state
//	    url: https://example.com/
//	    expect: { typed_count: 1, cached: true }
//
// Setup steps are not traced. "at" moves the clock to the given minute
// after testutil.Epoch before the step runs.
//
// # Assertion Types
//
//   - trace_contains: some entry has the given kind, name and url
//   - trace_order: entries with the given names appear in order
//   - trace_count: exactly count entries match
//   - url_state: the stored row and its cache membership match expect
//
// # Deterministic Testing
//
// Every scenario gets a fresh in-memory database, a manual clock starting
// at testutil.Epoch and a fixed cache GUID. The harness pumps the owner
// sequence itself, so events and callbacks land in the trace in the order
// they were delivered.
//
// # Usage
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/http_upgrade.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := harness.Run(scenario)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if !result.Pass {
//	    for _, e := range result.Errors {
//	        log.Println(e)
//	    }
//	}
package harness
