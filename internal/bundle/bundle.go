package bundle

import (
	"database/sql"
	"errors"
	"fmt"
	"runtime"
	"slices"
	"sort"
	"strings"
)

// Well-known bundle names, in preference order.
const (
	Parallel = "parallel"
	Single   = "single"
)

// ErrNoBundle is returned by Select when no bundle in the set can run.
var ErrNoBundle = errors.New("no engine bundle is supported by this runtime")

// Bundle is a named engine configuration representing one capability tier.
type Bundle struct {
	// Name is the bundle's key in its Set. Filled in by Set lookups.
	Name string `yaml:"-" json:"-"`

	// Driver is the database/sql driver name ("sqlite3", "sqlite").
	Driver string `yaml:"driver" json:"driver"`

	// DSN is the data source passed to the driver.
	DSN string `yaml:"dsn" json:"dsn"`

	// Threads is the engine's worker thread budget. Values above 1 mark a
	// parallel-capable bundle.
	Threads int `yaml:"threads" json:"threads"`

	// Native marks bundles whose driver requires a cgo build.
	Native bool `yaml:"native" json:"native"`
}

// Parallelism reports whether the bundle asks for more than one engine thread.
func (b Bundle) Parallelism() bool {
	return b.Threads > 1
}

// InMemory reports whether the bundle's database lives only in memory.
func (b Bundle) InMemory() bool {
	return b.DSN == "" || b.DSN == ":memory:" ||
		strings.HasPrefix(b.DSN, "file::memory:") || strings.Contains(b.DSN, "mode=memory")
}

func (b Bundle) String() string {
	return fmt.Sprintf("%s(%s threads=%d)", b.Name, b.Driver, b.Threads)
}

// Set maps bundle names to bundles.
type Set map[string]Bundle

// Get returns the named bundle with its Name populated.
func (s Set) Get(name string) (Bundle, bool) {
	b, ok := s[name]
	if !ok {
		return Bundle{}, false
	}
	b.Name = name
	return b, true
}

// Names returns bundle names in selection order: the well-known tiers
// first, then the rest sorted by name.
func (s Set) Names() []string {
	names := make([]string, 0, len(s))
	for _, tier := range []string{Parallel, Single} {
		if _, ok := s[tier]; ok {
			names = append(names, tier)
		}
	}
	rest := make([]string, 0, len(s))
	for name := range s {
		if name != Parallel && name != Single {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	return append(names, rest...)
}

// Capabilities describes what the running binary can offer an engine.
type Capabilities struct {
	// Native is true when the binary was built with cgo.
	Native bool

	// Threads is the number of OS threads Go may run simultaneously.
	Threads int

	// Drivers lists the registered database/sql drivers.
	Drivers []string
}

// Supports reports whether a bundle can run under these capabilities.
func (c Capabilities) Supports(b Bundle) bool {
	if b.Native && !c.Native {
		return false
	}
	if b.Parallelism() && c.Threads < 2 {
		return false
	}
	return slices.Contains(c.Drivers, b.Driver)
}

// Detect reports the capabilities of the running binary.
func Detect() Capabilities {
	return Capabilities{
		Native:  cgoEnabled,
		Threads: runtime.GOMAXPROCS(0),
		Drivers: sql.Drivers(),
	}
}

// Select picks the bundle to start the engine with.
//
// The parallel tier wins when the runtime supports it, then the
// single-threaded tier, then the first other supported bundle by name.
func Select(set Set, caps Capabilities) (Bundle, error) {
	for _, name := range set.Names() {
		b, _ := set.Get(name)
		if caps.Supports(b) {
			return b, nil
		}
	}
	return Bundle{}, ErrNoBundle
}

// Defaults returns the built-in bundle set.
func Defaults() Set {
	return Set{
		Parallel:   {Driver: "sqlite3", DSN: ":memory:", Threads: 4, Native: true},
		Single:     {Driver: "sqlite3", DSN: ":memory:", Threads: 1, Native: true},
		"portable": {Driver: "sqlite", DSN: ":memory:", Threads: 1},
	}
}
