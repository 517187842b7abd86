// Package bundle describes the capability tiers an embedded SQL engine can
// be started with and picks one for the current runtime.
//
// A bundle names a database/sql driver, the data source handed to it, the
// worker thread budget the engine may use, and whether the driver needs a
// native (cgo) build. Bundles are grouped in a Set keyed by name.
//
// # Selection Order
//
// Select is a pure function over a Set and a Capabilities description:
//
//  1. "parallel" if present and the runtime supports it
//  2. "single" if present and the runtime supports it
//  3. the first remaining bundle, by name, that the runtime supports
//
// Detect reports the Capabilities of the running binary. Keeping detection
// apart from selection lets tests drive Select with any runtime description.
package bundle
