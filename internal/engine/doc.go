// Package engine starts and drives the embedded SQL engine behind a session.
//
// The engine is an opaque database/sql driver running in-process. This
// package only arranges to start it, hand it one connection, and shuttle
// queries to it.
//
// ARCHITECTURE:
//
// Dedicated Worker:
// Every engine instance owns one Worker goroutine. All calls into the
// engine (instantiate, connect, query, close, terminate) run on that
// goroutine in FIFO order. This ensures:
// - Engine calls never run concurrently against the same instance
// - Callers can stop waiting (ctx) without corrupting engine state
// - Teardown drains in-flight work before the instance is released
//
// Launch Flow:
// 1. Launcher.Launch starts a Worker bound to the chosen bundle
// 2. The worker opens the driver with the bundle's DSN and pings it
// 3. Instance.Connect checks out a dedicated connection and applies pragmas
// 4. Conn.Query returns the engine's columnar Table
//
// Results are columnar (Table); Table.Rows converts them to row records in
// engine order.
package engine
