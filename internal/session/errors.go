package session

import (
	"errors"
	"fmt"
)

// Stage names the construction step that failed.
type Stage string

const (
	// StageSelect is bundle selection.
	StageSelect Stage = "select"

	// StageLaunch covers worker start and engine instantiation.
	StageLaunch Stage = "launch"

	// StageConnect is opening the session's connection.
	StageConnect Stage = "connect"
)

// InitializationError reports a failed session construction.
type InitializationError struct {
	Stage  Stage
	Bundle string // empty when selection failed
	Err    error
}

func (e *InitializationError) Error() string {
	if e.Bundle != "" {
		return fmt.Sprintf("engine initialization failed at %s (bundle=%s): %v", e.Stage, e.Bundle, e.Err)
	}
	return fmt.Sprintf("engine initialization failed at %s: %v", e.Stage, e.Err)
}

func (e *InitializationError) Unwrap() error {
	return e.Err
}

// QueryError reports a query the engine rejected or failed to run.
// The engine's message is kept intact in Err.
type QueryError struct {
	SQL string
	Err error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("query failed: %v", e.Err)
}

func (e *QueryError) Unwrap() error {
	return e.Err
}

// TeardownWarning reports a non-fatal failure while releasing a session.
type TeardownWarning struct {
	Op  string // "close connection" or "terminate engine"
	Err error
}

func (w *TeardownWarning) Error() string {
	return fmt.Sprintf("%s: %v", w.Op, w.Err)
}

func (w *TeardownWarning) Unwrap() error {
	return w.Err
}

// IsInitializationError returns true if err is or wraps an InitializationError.
func IsInitializationError(err error) bool {
	var ie *InitializationError
	return errors.As(err, &ie)
}

// IsQueryError returns true if err is or wraps a QueryError.
func IsQueryError(err error) bool {
	var qe *QueryError
	return errors.As(err, &qe)
}
