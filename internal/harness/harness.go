package harness

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/sqlchef/internal/session"
	"github.com/roach88/sqlchef/internal/source"
)

// Run executes scenario against mgr and returns the result.
//
// Steps run in order. A step that fails or misses an expectation marks the
// result failed but does not stop the run, so the trace always covers every
// step. The returned error is reserved for an invalid scenario or a
// cancelled ctx.
func Run(ctx context.Context, scenario *Scenario, mgr *session.Manager) (*Result, error) {
	if scenario == nil {
		return nil, errors.New("scenario is nil")
	}
	if err := validateScenario(scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	result := NewResult()
	for i, step := range scenario.Steps {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		event, err := runStep(ctx, scenario, mgr, step)
		event.State = mgr.State().String()
		if err != nil {
			event.Error = err.Error()
		}
		result.AddTrace(event)

		for _, msg := range checkExpect(step, event, err) {
			result.AddError(fmt.Sprintf("steps[%d] %s: %s", i, step.Op, msg))
		}
	}

	return result, nil
}

// runStep performs one operation. The caller fills in State and Error.
func runStep(ctx context.Context, scenario *Scenario, mgr *session.Manager, step Step) (TraceEvent, error) {
	event := TraceEvent{Op: step.Op, SQL: step.SQL, Table: step.Table}

	switch step.Op {
	case OpEnsureReady:
		s, err := mgr.EnsureReady(ctx)
		if err != nil {
			return event, err
		}
		event.Session = s.ID
		return event, nil

	case OpQuery:
		rows, err := mgr.RunQuery(ctx, step.SQL)
		if err != nil {
			return event, err
		}
		n := len(rows)
		event.Rows = rows
		event.Count = &n
		return event, nil

	case OpExec:
		return event, mgr.Exec(ctx, step.SQL, step.Args...)

	case OpLoadCSV:
		n, err := source.LoadCSVFile(ctx, mgr, scenario.resolve(step.Path), step.Table)
		if err != nil {
			return event, err
		}
		event.Count = &n
		return event, nil

	case OpClose:
		return event, mgr.Close(ctx)

	case OpReset:
		mgr.Reset(ctx)
		return event, nil

	case OpState:
		return event, nil

	default:
		return event, fmt.Errorf("unknown op %q", step.Op)
	}
}
