// Package harness runs scheduler scenarios and records deterministic traces.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	shards: 2
//	domains: 1
//	capacity: 8
//	beats: 9
//	kernel_cost: 0        # optional fixed cost per batch; 0 = one tick per lane
//	tick_budget: 8        # optional
//	deltas:
//	  - at_beat: 0        # admitted before this beat runs
//	    domain: 0
//	    cycle: 0
//	    expect: admitted  # admitted | ring_full | conversion_failed | invalid_domain
//	    triples:
//	      - { subject: "http://ex/s", predicate: "http://ex/p", object: "http://ex/o" }
//	assertions:
//	  - type: trace_count
//	    event: commit
//	    count: 2
//	  - type: trace_contains
//	    event: park
//	    where: { domain: 0, cause: tick_budget_exceeded }
//	  - type: trace_order
//	    events: [admit, beat, commit]
//	  - type: receipts_total
//	    count: 1
//	  - type: parked_total
//	    count: 0
//
// # Deterministic Testing
//
// Every scenario runs against a fresh scheduler with:
//   - a deterministic clock starting at cycle 0 (testutil.DeterministicClock)
//   - sequential parked IDs ("parked-1", "parked-2", ...)
//   - an in-memory Lockchain (Merkle tree and self-quorum, no storage)
//
// Trace events carry only structural fields (cycles, ticks, counts,
// shards, causes), so golden files are stable across hash changes.
//
// # Usage
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/end_to_end.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := harness.Run(scenario)
//	if !result.Pass {
//	    for _, e := range result.Errors {
//	        log.Println(e)
//	    }
//	}
package harness
