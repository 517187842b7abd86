package engine

import (
	"context"

	"github.com/roach88/sqlchef/internal/bundle"
)

// Launcher starts engine instances.
//
// Launch starts a worker bound to the bundle and instantiates the engine on
// it. If any step fails, everything started so far is released before the
// error is returned.
type Launcher interface {
	Launch(ctx context.Context, b bundle.Bundle) (Instance, error)
}

// Instance is a running engine.
type Instance interface {
	// Connect opens a connection to the engine.
	Connect(ctx context.Context) (Conn, error)

	// Terminate releases the engine and its worker. Calling Terminate more
	// than once is a no-op.
	Terminate(ctx context.Context) error
}

// Conn is an open connection to an engine instance.
type Conn interface {
	// Query submits a query and returns the engine's columnar result.
	// Engine errors are returned as-is.
	Query(ctx context.Context, query string) (*Table, error)

	// Exec runs a statement with bound arguments, discarding any result.
	Exec(ctx context.Context, query string, args ...any) error

	// Close releases the connection. Calling Close more than once is a no-op.
	Close(ctx context.Context) error
}
