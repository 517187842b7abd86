// Package session owns the single live connection to the embedded engine.
//
// A Manager lazily starts the engine on first use, shares one in-flight
// construction between concurrent callers, proxies queries to the live
// connection, and tears everything down on Close or Reset.
//
// # States
//
//	Absent ──EnsureReady──▶ Constructing ──ok──▶ Ready
//	   ▲                        │                  │
//	   └────────failure─────────┘                  │
//	   └───────────────Close / Reset───────────────┘
//
// Concurrent EnsureReady calls while Constructing do not start another
// construction; they wait for the one in flight and share its outcome,
// success or failure. The in-flight marker is cleared in both cases, so a
// failed construction is retried from scratch on the next call.
//
// # Errors
//
//   - InitializationError: bundle selection, launch, or connect failed
//   - QueryError: the engine rejected or failed a query
//   - TeardownWarning: releasing the connection or engine failed; Close
//     returns these, Reset only logs them
package session
