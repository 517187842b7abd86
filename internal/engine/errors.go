package engine

import "errors"

var (
	// ErrWorkerStopped is returned for work submitted to a stopped worker.
	ErrWorkerStopped = errors.New("engine worker stopped")

	// ErrTerminated is returned when connecting to a terminated instance.
	ErrTerminated = errors.New("engine instance terminated")

	// ErrConnClosed is returned when using a closed connection.
	ErrConnClosed = errors.New("engine connection closed")
)
