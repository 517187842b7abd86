package harness

import (
	"fmt"
	"reflect"
	"slices"
	"strings"

	"github.com/roach88/sqlchef/internal/session"
)

// checkExpect compares a step's outcome with its expectations.
// Returns one message per mismatch.
func checkExpect(step Step, event TraceEvent, stepErr error) []string {
	e := step.Expect
	if e == nil {
		e = &Expect{}
	}

	var failures []string
	switch {
	case e.Error == "" && stepErr != nil:
		failures = append(failures, fmt.Sprintf("unexpected error: %v", stepErr))
	case e.Error != "" && stepErr == nil:
		failures = append(failures, fmt.Sprintf("expected error containing %q, got success", e.Error))
	case e.Error != "" && !strings.Contains(stepErr.Error(), e.Error):
		failures = append(failures, fmt.Sprintf("error %q does not contain %q", stepErr.Error(), e.Error))
	}

	if e.Rows != nil && stepErr == nil {
		if err := compareRows(e.Rows, event.Rows); err != nil {
			failures = append(failures, err.Error())
		}
	}

	if e.Count != nil && stepErr == nil {
		switch {
		case event.Count == nil:
			failures = append(failures, fmt.Sprintf("expected count %d, none recorded", *e.Count))
		case *event.Count != *e.Count:
			failures = append(failures, fmt.Sprintf("expected count %d, got %d", *e.Count, *event.Count))
		}
	}

	if e.State != "" && e.State != event.State {
		failures = append(failures, fmt.Sprintf("expected state %s, got %s", e.State, event.State))
	}

	return failures
}

// compareRows requires the same number of rows, in order, each with the
// same column set and equal values.
func compareRows(expected []map[string]any, actual []session.Row) error {
	if len(expected) != len(actual) {
		return fmt.Errorf("expected %d rows, got %d", len(expected), len(actual))
	}

	for i := range expected {
		want, got := expected[i], actual[i]

		if !slices.Equal(sortedKeys(want), sortedKeys(got)) {
			return fmt.Errorf("row[%d]: expected columns %v, got %v", i, sortedKeys(want), sortedKeys(got))
		}
		for _, col := range sortedKeys(want) {
			if !valuesEqual(want[col], got[col]) {
				return fmt.Errorf("row[%d].%s: expected %v (%T), got %v (%T)", i, col, want[col], want[col], got[col], got[col])
			}
		}
	}
	return nil
}

func sortedKeys[M ~map[string]any](m M) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// valuesEqual compares a YAML-decoded expected value with an engine value.
// YAML integers decode as int while the engine returns int64, and booleans
// may come back as 0/1 integers.
func valuesEqual(expected, actual any) bool {
	switch exp := expected.(type) {
	case nil:
		return actual == nil
	case string:
		got, ok := actual.(string)
		return ok && got == exp
	case int:
		return intEqual(int64(exp), actual)
	case int64:
		return intEqual(exp, actual)
	case float64:
		switch got := actual.(type) {
		case float64:
			return got == exp
		case int64:
			return float64(got) == exp
		}
		return false
	case bool:
		switch got := actual.(type) {
		case bool:
			return got == exp
		case int64:
			return exp == (got != 0)
		}
		return false
	}

	return reflect.DeepEqual(expected, actual)
}

func intEqual(exp int64, actual any) bool {
	switch got := actual.(type) {
	case int64:
		return got == exp
	case int:
		return int64(got) == exp
	case float64:
		return got == float64(exp)
	}
	return false
}
