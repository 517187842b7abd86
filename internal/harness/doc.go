// Package harness runs scripted scenarios against an engine session manager.
//
// A scenario is a list of steps, each one a manager operation, with
// optional expectations on the step's outcome. The harness records every
// step in a trace that can be compared against a golden snapshot.
//
// # Scenario Format
//
//	name: reload_preserves_nothing
//	description: "Reset drops the previous engine's tables"
//	steps:
//	  - op: exec
//	    sql: CREATE TABLE t (x INTEGER)
//	  - op: exec
//	    sql: INSERT INTO t VALUES (?)
//	    args: [1]
//	  - op: query
//	    sql: SELECT x FROM t
//	    expect:
//	      rows: [{x: 1}]
//	  - op: reset
//	    expect: { state: absent }
//	  - op: query
//	    sql: SELECT x FROM t
//	    expect: { error: "no such table" }
//
// # Step Ops
//
//   - ensure_ready: start the session if needed
//   - query: run sql and capture rows
//   - exec: run sql with bound args
//   - load_csv: reset the engine and load path into table
//   - close: close the session, failing on teardown warnings
//   - reset: reset the session, never failing
//   - state: record the lifecycle state
//
// # Expectations
//
// Every field of expect is optional. rows must match exactly and in order,
// count checks the number of rows returned or loaded, error is a substring
// the step's error must contain, and state is the lifecycle state after the
// step. A step without an error expectation must succeed.
//
// # Usage
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/reload.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := harness.Run(ctx, scenario, mgr)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, msg := range result.Errors {
//	    log.Println(msg)
//	}
package harness
