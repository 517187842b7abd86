package harness

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sqlchef/internal/bundle"
	"github.com/roach88/sqlchef/internal/engine"
	"github.com/roach88/sqlchef/internal/session"
	"github.com/roach88/sqlchef/internal/testutil"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newPortableManager drives the real modernc.org/sqlite engine with
// deterministic session IDs.
func newPortableManager(t *testing.T) *session.Manager {
	t.Helper()
	logger := quietLogger()
	m := session.New(engine.NewSQLLauncher(logger),
		session.WithBundles(bundle.Set{"portable": {Driver: "sqlite", DSN: ":memory:", Threads: 1}}),
		session.WithIDGenerator(testutil.NewSequenceIDGenerator("")),
		session.WithClock(testutil.NewDeterministicClock().Now),
		session.WithLogger(logger),
	)
	t.Cleanup(func() { m.Reset(context.Background()) })
	return m
}

func newFakeManager(t *testing.T, l *testutil.FakeLauncher) *session.Manager {
	t.Helper()
	m := session.New(l,
		session.WithCapabilities(func() bundle.Capabilities {
			return bundle.Capabilities{Native: true, Threads: 4, Drivers: []string{"sqlite", "sqlite3"}}
		}),
		session.WithIDGenerator(testutil.NewSequenceIDGenerator("")),
		session.WithLogger(quietLogger()),
	)
	t.Cleanup(func() { m.Reset(context.Background()) })
	return m
}

func mustParse(t *testing.T, data string) *Scenario {
	t.Helper()
	s, err := ParseScenario([]byte(data))
	require.NoError(t, err)
	return s
}

func TestRun_PassingScenario(t *testing.T) {
	s := mustParse(t, `
name: roundtrip
description: "Write and read back"
steps:
  - op: state
    expect: { state: absent }
  - op: exec
    sql: CREATE TABLE t (x INTEGER, label TEXT)
    expect: { state: ready }
  - op: exec
    sql: INSERT INTO t VALUES (?, ?)
    args: [1, one]
  - op: exec
    sql: INSERT INTO t VALUES (?, ?)
    args: [2, two]
  - op: query
    sql: SELECT x, label FROM t ORDER BY x
    expect:
      rows:
        - {x: 1, label: one}
        - {x: 2, label: two}
      count: 2
`)

	result, err := Run(context.Background(), s, newPortableManager(t))
	require.NoError(t, err)

	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Empty(t, result.Errors)
	require.Len(t, result.Trace, 5)
	for i, event := range result.Trace {
		assert.Equal(t, i+1, event.Seq)
	}
	assert.Equal(t, "absent", result.Trace[0].State)
	assert.Equal(t, "ready", result.Trace[4].State)
	assert.Equal(t, []session.Row{{"x": int64(1), "label": "one"}, {"x": int64(2), "label": "two"}}, result.Trace[4].Rows)
}

func TestRun_ExpectedErrorKeepsSessionReady(t *testing.T) {
	s := mustParse(t, `
name: malformed
description: "A bad query fails without closing the session"
steps:
  - op: query
    sql: SELEC 1
    expect:
      error: syntax error
      state: ready
  - op: query
    sql: SELECT 2 AS y
    expect:
      rows: [{y: 2}]
`)

	result, err := Run(context.Background(), s, newPortableManager(t))
	require.NoError(t, err)

	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Contains(t, result.Trace[0].Error, "query failed")
	assert.Nil(t, result.Trace[0].Rows)
}

func TestRun_ResetDropsTables(t *testing.T) {
	s := mustParse(t, `
name: reset
description: "Reset starts a fresh engine"
steps:
  - op: exec
    sql: CREATE TABLE t (x INTEGER)
  - op: reset
    expect: { state: absent }
  - op: query
    sql: SELECT x FROM t
    expect: { error: no such table }
  - op: close
    expect: { state: absent }
`)

	result, err := Run(context.Background(), s, newPortableManager(t))
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_LoadCSV(t *testing.T) {
	dir := t.TempDir()
	csvData := "name,qty\napple,3\npear,5\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "fruit.csv"), []byte(csvData), 0644))

	scenarioPath := filepath.Join(dir, "load.yaml")
	content := `
name: load
description: "CSV rows land in a fresh table"
steps:
  - op: exec
    sql: CREATE TABLE leftover (x INTEGER)
  - op: load_csv
    path: fruit.csv
    table: fruit
    expect: { count: 2, state: ready }
  - op: query
    sql: SELECT name, qty FROM fruit ORDER BY name
    expect:
      rows:
        - {name: apple, qty: "3"}
        - {name: pear, qty: "5"}
  - op: query
    sql: SELECT * FROM leftover
    expect: { error: no such table }
`
	require.NoError(t, os.WriteFile(scenarioPath, []byte(content), 0644))

	s, err := LoadScenario(scenarioPath)
	require.NoError(t, err)

	result, err := Run(context.Background(), s, newPortableManager(t))
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	require.NotNil(t, result.Trace[1].Count)
	assert.Equal(t, 2, *result.Trace[1].Count)
	assert.Equal(t, "fruit", result.Trace[1].Table)
}

func TestRun_ReportsMismatches(t *testing.T) {
	s := mustParse(t, `
name: mismatches
description: "Every kind of expectation failure"
steps:
  - op: query
    sql: SELECT 1 AS x
    expect:
      rows: [{x: 2}]
  - op: query
    sql: SELECT 1 AS x
    expect: { count: 3 }
  - op: query
    sql: SELECT 1 AS x
    expect: { error: boom }
  - op: state
    expect: { state: absent }
  - op: query
    sql: DROP TABLE nothing
`)

	result, err := Run(context.Background(), s, newFakeManager(t, testutil.NewFakeLauncher()))
	require.NoError(t, err)

	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 5)
	assert.Contains(t, result.Errors[0], "steps[0] query: row[0].x: expected 2")
	assert.Contains(t, result.Errors[1], "expected count 3, got 1")
	assert.Contains(t, result.Errors[2], `expected error containing "boom", got success`)
	assert.Contains(t, result.Errors[3], "expected state absent, got ready")
	assert.Contains(t, result.Errors[4], "unexpected error: query failed: Parser Error")

	// A failing step does not stop the run.
	assert.Len(t, result.Trace, 5)
}

func TestRun_EnsureReadyRecordsSession(t *testing.T) {
	s := mustParse(t, `
name: ensure
description: "Session IDs are traced"
steps:
  - op: ensure_ready
  - op: close
  - op: ensure_ready
`)

	result, err := Run(context.Background(), s, newFakeManager(t, testutil.NewFakeLauncher()))
	require.NoError(t, err)
	require.True(t, result.Pass, "errors: %v", result.Errors)

	assert.Equal(t, "session-1", result.Trace[0].Session)
	assert.Equal(t, "absent", result.Trace[1].State)
	assert.Equal(t, "session-2", result.Trace[2].Session)
}

func TestRun_InitializationFailure(t *testing.T) {
	l := testutil.NewFakeLauncher()
	l.FailConnect(errors.New("connection refused"))

	s := mustParse(t, `
name: init_fail
description: "Connect failure leaves nothing behind"
steps:
  - op: ensure_ready
    expect:
      error: "initialization failed at connect"
      state: absent
`)

	result, err := Run(context.Background(), s, newFakeManager(t, l))
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	require.Len(t, l.Instances(), 1)
	assert.True(t, l.Instances()[0].Terminated())
}

func TestRun_CloseWarningsFailStep(t *testing.T) {
	l := testutil.NewFakeLauncher()
	l.FailTerminate(errors.New("engine stuck"))

	s := mustParse(t, `
name: close_warn
description: "Close surfaces teardown warnings; reset swallows them"
steps:
  - op: ensure_ready
  - op: close
    expect:
      error: "terminate engine: engine stuck"
      state: absent
  - op: ensure_ready
  - op: reset
    expect: { state: absent }
`)

	result, err := Run(context.Background(), s, newFakeManager(t, l))
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_RejectsInvalidScenario(t *testing.T) {
	_, err := Run(context.Background(), nil, nil)
	require.Error(t, err)

	_, err = Run(context.Background(), &Scenario{Name: "x"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "description is required")
}

func TestRun_StopsOnCancelledContext(t *testing.T) {
	s := mustParse(t, `
name: cancelled
description: "Nothing runs after cancel"
steps:
  - op: state
`)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := Run(ctx, s, newFakeManager(t, testutil.NewFakeLauncher()))
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, result)
	assert.Empty(t, result.Trace)
}

func TestValuesEqual(t *testing.T) {
	assert.True(t, valuesEqual(1, int64(1)))
	assert.True(t, valuesEqual(int64(1), int64(1)))
	assert.True(t, valuesEqual(1.5, 1.5))
	assert.True(t, valuesEqual(2.0, int64(2)))
	assert.True(t, valuesEqual(true, int64(1)))
	assert.True(t, valuesEqual(false, int64(0)))
	assert.True(t, valuesEqual(nil, nil))
	assert.True(t, valuesEqual("a", "a"))

	assert.False(t, valuesEqual("1", int64(1)))
	assert.False(t, valuesEqual(1, "1"))
	assert.False(t, valuesEqual(nil, int64(0)))
	assert.False(t, valuesEqual(true, "true"))
}

func TestCompareRows(t *testing.T) {
	actual := []session.Row{{"a": int64(1), "b": nil}}

	assert.NoError(t, compareRows([]map[string]any{{"a": 1, "b": nil}}, actual))

	err := compareRows([]map[string]any{{"a": 1}}, actual)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected columns [a], got [a b]")

	err = compareRows(nil, actual)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected 0 rows, got 1")
}
